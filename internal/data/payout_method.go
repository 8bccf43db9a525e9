package data

import (
	"fmt"
	"strings"
)

// PayoutMethod selects how an approved payout reaches the provider's bank:
// AUTO goes through the processor's transfer API, MANUAL goes through a CSV
// batch an operator uploads to the bank portal.
type PayoutMethod string

const (
	AutoPayoutMethod   PayoutMethod = "AUTO"
	ManualPayoutMethod PayoutMethod = "MANUAL"
)

func (method PayoutMethod) Validate() error {
	switch PayoutMethod(strings.ToUpper(string(method))) {
	case AutoPayoutMethod, ManualPayoutMethod:
		return nil
	default:
		return fmt.Errorf("invalid payout method: %s", method)
	}
}

func PayoutMethods() []PayoutMethod {
	return []PayoutMethod{AutoPayoutMethod, ManualPayoutMethod}
}

// ToPayoutMethod converts a string to a PayoutMethod
func ToPayoutMethod(s string) (PayoutMethod, error) {
	err := PayoutMethod(s).Validate()
	if err != nil {
		return "", err
	}

	return PayoutMethod(strings.ToUpper(s)), nil
}
