package utils

// ResultWithTotal pairs one page of results with the unpaged total, for the
// paginated listing endpoints.
type ResultWithTotal struct {
	Total  int
	Result interface{}
}

func NewResultWithTotal(total int, result interface{}) *ResultWithTotal {
	return &ResultWithTotal{
		Total:  total,
		Result: result,
	}
}
