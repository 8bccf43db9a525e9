package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// SplitFee divides a payment amount into the provider's escrow share and the
// platform fee. The escrow share is rounded half-to-even to cents and the fee
// takes the remainder, so fee + escrow reproduces the amount exactly.
func SplitFee(amount, feeRate decimal.Decimal) (platformFee, escrowAmount decimal.Decimal, err error) {
	if !amount.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("amount %s must be greater than zero", amount)
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(one) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("fee rate %s must be within [0, 1)", feeRate)
	}

	escrowAmount = amount.Mul(one.Sub(feeRate)).RoundBank(2)
	platformFee = amount.Sub(escrowAmount)

	return platformFee, escrowAmount, nil
}
