package validators

import (
	"strings"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
)

type PaymentQueryValidator struct {
	QueryValidator
}

// NewPaymentQueryValidator creates a new PaymentQueryValidator with the provided configuration.
func NewPaymentQueryValidator() *PaymentQueryValidator {
	return &PaymentQueryValidator{
		QueryValidator: QueryValidator{
			DefaultSortField:  data.DefaultPaymentSortField,
			DefaultSortOrder:  data.DefaultPaymentSortOrder,
			AllowedSortFields: data.AllowedPaymentSorts,
			AllowedFilters:    data.AllowedPaymentFilters,
			Validator:         NewValidator(),
		},
	}
}

// ValidateAndGetPaymentFilters validates the filters and returns a map of valid filters.
func (qv *PaymentQueryValidator) ValidateAndGetPaymentFilters(filters map[data.FilterKey]interface{}) map[data.FilterKey]interface{} {
	validFilters := make(map[data.FilterKey]interface{})
	if filters[data.FilterKeyStatus] != nil {
		validFilters[data.FilterKeyStatus] = qv.validateAndGetPaymentStatus(filters[data.FilterKeyStatus].(string))
	}
	if filters[data.FilterKeyPaymentMethod] != nil {
		validFilters[data.FilterKeyPaymentMethod] = qv.validateAndGetPaymentMethod(filters[data.FilterKeyPaymentMethod].(string))
	}
	if filters[data.FilterKeyClientID] != nil {
		validFilters[data.FilterKeyClientID] = filters[data.FilterKeyClientID]
	}
	if filters[data.FilterKeyProviderID] != nil {
		validFilters[data.FilterKeyProviderID] = filters[data.FilterKeyProviderID]
	}

	createdAtAfter := qv.ValidateAndGetTimeParams(string(data.FilterKeyCreatedAtAfter), filters[data.FilterKeyCreatedAtAfter])
	createdAtBefore := qv.ValidateAndGetTimeParams(string(data.FilterKeyCreatedAtBefore), filters[data.FilterKeyCreatedAtBefore])

	if qv.HasErrors() {
		return validFilters
	}

	if !createdAtAfter.IsZero() && !createdAtBefore.IsZero() {
		qv.Check(createdAtAfter.Before(createdAtBefore), string(data.FilterKeyCreatedAtAfter), "created_at_after must be before created_at_before")
	}

	if !createdAtAfter.IsZero() {
		validFilters[data.FilterKeyCreatedAtAfter] = createdAtAfter
	}
	if !createdAtBefore.IsZero() {
		validFilters[data.FilterKeyCreatedAtBefore] = createdAtBefore
	}
	return validFilters
}

// validateAndGetPaymentStatus validates the status parameter and returns the corresponding PaymentStatus.
func (qv *PaymentQueryValidator) validateAndGetPaymentStatus(status string) data.PaymentStatus {
	s, err := data.ToPaymentStatus(strings.ToUpper(status))
	if err != nil {
		qv.Check(false, string(data.FilterKeyStatus), "invalid parameter. valid values are: pending, escrow, released, failed, refunded, cash_paid, cash_received")
		return ""
	}
	return s
}

// validateAndGetPaymentMethod validates the payment_method parameter and returns the corresponding PaymentMethod.
func (qv *PaymentQueryValidator) validateAndGetPaymentMethod(method string) data.PaymentMethod {
	m, err := data.ToPaymentMethod(strings.ToUpper(method))
	if err != nil {
		qv.Check(false, string(data.FilterKeyPaymentMethod), "invalid parameter. valid values are: card, cash")
		return ""
	}
	return m
}
