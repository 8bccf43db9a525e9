package validators

import (
	"strings"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
)

type SettlementQueryValidator struct {
	QueryValidator
}

// NewSettlementQueryValidator creates a new SettlementQueryValidator with the provided configuration.
func NewSettlementQueryValidator() *SettlementQueryValidator {
	return &SettlementQueryValidator{
		QueryValidator: QueryValidator{
			DefaultSortField:  data.SortFieldBatchDate,
			DefaultSortOrder:  data.SortOrderDESC,
			AllowedSortFields: []data.SortField{data.SortFieldBatchDate},
			AllowedFilters:    []data.FilterKey{data.FilterKeyStatus},
			Validator:         NewValidator(),
		},
	}
}

// ValidateAndGetSettlementFilters validates the filters and returns a map of valid filters.
func (qv *SettlementQueryValidator) ValidateAndGetSettlementFilters(filters map[data.FilterKey]interface{}) map[data.FilterKey]interface{} {
	validFilters := make(map[data.FilterKey]interface{})
	if filters[data.FilterKeyStatus] != nil {
		status := data.SettlementStatus(strings.ToUpper(filters[data.FilterKeyStatus].(string)))
		if err := status.Validate(); err != nil {
			qv.Check(false, string(data.FilterKeyStatus), "invalid parameter. valid values are: pending, reconciled, mismatch")
		} else {
			validFilters[data.FilterKeyStatus] = status
		}
	}
	return validFilters
}
