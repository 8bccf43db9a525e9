package data

import (
	"fmt"
	"strings"
)

// PaymentMethod distinguishes card charges collected through the processor
// from cash handed directly to the provider.
type PaymentMethod string

const (
	CardPaymentMethod PaymentMethod = "CARD"
	CashPaymentMethod PaymentMethod = "CASH"
)

func (method PaymentMethod) Validate() error {
	switch PaymentMethod(strings.ToUpper(string(method))) {
	case CardPaymentMethod, CashPaymentMethod:
		return nil
	default:
		return fmt.Errorf("invalid payment method: %s", method)
	}
}

func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{CardPaymentMethod, CashPaymentMethod}
}

// ToPaymentMethod converts a string to a PaymentMethod
func ToPaymentMethod(s string) (PaymentMethod, error) {
	err := PaymentMethod(s).Validate()
	if err != nil {
		return "", err
	}

	return PaymentMethod(strings.ToUpper(s)), nil
}
