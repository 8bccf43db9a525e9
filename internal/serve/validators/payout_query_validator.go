package validators

import (
	"strings"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
)

type PayoutQueryValidator struct {
	QueryValidator
}

// NewPayoutQueryValidator creates a new PayoutQueryValidator with the provided configuration.
func NewPayoutQueryValidator() *PayoutQueryValidator {
	return &PayoutQueryValidator{
		QueryValidator: QueryValidator{
			DefaultSortField:  data.DefaultPayoutSortField,
			DefaultSortOrder:  data.DefaultPayoutSortOrder,
			AllowedSortFields: data.AllowedPayoutSorts,
			AllowedFilters:    data.AllowedPayoutFilters,
			Validator:         NewValidator(),
		},
	}
}

// ValidateAndGetPayoutFilters validates the filters and returns a map of valid filters.
func (qv *PayoutQueryValidator) ValidateAndGetPayoutFilters(filters map[data.FilterKey]interface{}) map[data.FilterKey]interface{} {
	validFilters := make(map[data.FilterKey]interface{})
	if filters[data.FilterKeyStatus] != nil {
		validFilters[data.FilterKeyStatus] = qv.validateAndGetPayoutStatus(filters[data.FilterKeyStatus].(string))
	}
	if filters[data.FilterKeyMethod] != nil {
		validFilters[data.FilterKeyMethod] = qv.validateAndGetPayoutMethod(filters[data.FilterKeyMethod].(string))
	}
	if filters[data.FilterKeyProviderID] != nil {
		validFilters[data.FilterKeyProviderID] = filters[data.FilterKeyProviderID]
	}
	if filters[data.FilterKeyBatchID] != nil {
		validFilters[data.FilterKeyBatchID] = filters[data.FilterKeyBatchID]
	}
	return validFilters
}

// validateAndGetPayoutStatus validates the status parameter and returns the corresponding PayoutStatus.
func (qv *PayoutQueryValidator) validateAndGetPayoutStatus(status string) data.PayoutStatus {
	s, err := data.ToPayoutStatus(strings.ToUpper(status))
	if err != nil {
		qv.Check(false, string(data.FilterKeyStatus), "invalid parameter. valid values are: pending_approval, approved, processing, completed, rejected, failed")
		return ""
	}
	return s
}

// validateAndGetPayoutMethod validates the method parameter and returns the corresponding PayoutMethod.
func (qv *PayoutQueryValidator) validateAndGetPayoutMethod(method string) data.PayoutMethod {
	m, err := data.ToPayoutMethod(strings.ToUpper(method))
	if err != nil {
		qv.Check(false, string(data.FilterKeyMethod), "invalid parameter. valid values are: auto, manual")
		return ""
	}
	return m
}
