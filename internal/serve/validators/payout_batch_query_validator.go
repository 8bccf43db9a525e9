package validators

import (
	"strings"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
)

type PayoutBatchQueryValidator struct {
	QueryValidator
}

// NewPayoutBatchQueryValidator creates a new PayoutBatchQueryValidator with the provided configuration.
func NewPayoutBatchQueryValidator() *PayoutBatchQueryValidator {
	return &PayoutBatchQueryValidator{
		QueryValidator: QueryValidator{
			DefaultSortField:  data.SortFieldCreatedAt,
			DefaultSortOrder:  data.SortOrderDESC,
			AllowedSortFields: []data.SortField{data.SortFieldCreatedAt},
			AllowedFilters:    []data.FilterKey{data.FilterKeyStatus, data.FilterKeyCreatedAtAfter, data.FilterKeyCreatedAtBefore},
			Validator:         NewValidator(),
		},
	}
}

// ValidateAndGetBatchFilters validates the filters and returns a map of valid filters.
func (qv *PayoutBatchQueryValidator) ValidateAndGetBatchFilters(filters map[data.FilterKey]interface{}) map[data.FilterKey]interface{} {
	validFilters := make(map[data.FilterKey]interface{})
	if filters[data.FilterKeyStatus] != nil {
		status := data.PayoutBatchStatus(strings.ToUpper(filters[data.FilterKeyStatus].(string)))
		if err := status.Validate(); err != nil {
			qv.Check(false, string(data.FilterKeyStatus), "invalid parameter. valid values are: exported, executed")
		} else {
			validFilters[data.FilterKeyStatus] = status
		}
	}

	createdAtAfter := qv.ValidateAndGetTimeParams(string(data.FilterKeyCreatedAtAfter), filters[data.FilterKeyCreatedAtAfter])
	createdAtBefore := qv.ValidateAndGetTimeParams(string(data.FilterKeyCreatedAtBefore), filters[data.FilterKeyCreatedAtBefore])

	if qv.HasErrors() {
		return validFilters
	}

	if !createdAtAfter.IsZero() {
		validFilters[data.FilterKeyCreatedAtAfter] = createdAtAfter
	}
	if !createdAtBefore.IsZero() {
		validFilters[data.FilterKeyCreatedAtBefore] = createdAtBefore
	}
	return validFilters
}
