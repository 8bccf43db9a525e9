package data

import "fmt"

type QueryParams struct {
	Query     string
	Page      int
	PageLimit int
	SortBy    SortField
	SortOrder SortOrder
	Filters   map[FilterKey]interface{}
}

type SortOrder string

const (
	SortOrderASC  SortOrder = "ASC"
	SortOrderDESC SortOrder = "DESC"
)

type SortField string

const (
	SortFieldName        SortField = "name"
	SortFieldCreatedAt   SortField = "created_at"
	SortFieldUpdatedAt   SortField = "updated_at"
	SortFieldRequestedAt SortField = "requested_at"
	SortFieldBatchDate   SortField = "batch_date"
)

type FilterKey string

const (
	FilterKeyID              FilterKey = "id"
	FilterKeyStatus          FilterKey = "status"
	FilterKeyClientID        FilterKey = "client_id"
	FilterKeyProviderID      FilterKey = "provider_id"
	FilterKeyPaymentMethod   FilterKey = "payment_method"
	FilterKeyMethod          FilterKey = "method"
	FilterKeyBatchID         FilterKey = "batch_id"
	FilterKeyCreatedAtAfter  FilterKey = "created_at_after"
	FilterKeyCreatedAtBefore FilterKey = "created_at_before"
)

func (fk FilterKey) Equals() string {
	return fmt.Sprintf("%s = ?", fk)
}

func (fk FilterKey) LowerThan() string {
	return fmt.Sprintf("%s < ?", fk)
}

type Filter struct {
	Key   FilterKey
	Value interface{}
}

func NewFilter(key FilterKey, value interface{}) Filter {
	return Filter{
		Key:   key,
		Value: value,
	}
}
