package paystack

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ToMinorUnits converts a decimal amount into the integer subunits (cents)
// the processor expects on the wire.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts integer subunits (cents) from the wire into a
// decimal amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

// InitializeTransactionRequest is the payload for POST /transaction/initialize.
// Amount is in minor units.
type InitializeTransactionRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Reference   string            `json:"reference"`
	Currency    string            `json:"currency,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (tr InitializeTransactionRequest) validate() error {
	if tr.Email == "" {
		return fmt.Errorf("email must be provided")
	}

	if tr.Amount <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}

	if tr.Reference == "" {
		return fmt.Errorf("reference must be provided")
	}

	return nil
}

// InitializedTransaction is the result of initializing a transaction. The
// client is redirected to AuthorizationURL to complete the charge.
type InitializedTransaction struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// TransactionStatus is the processor-side status of a charge.
type TransactionStatus string

const (
	TransactionStatusSuccess   TransactionStatus = "success"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusAbandoned TransactionStatus = "abandoned"
	TransactionStatusPending   TransactionStatus = "pending"
)

// TransactionVerification is the result of GET /transaction/verify/{reference}.
// Amount is in minor units.
type TransactionVerification struct {
	ID              int64             `json:"id"`
	Status          TransactionStatus `json:"status"`
	Reference       string            `json:"reference"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Channel         string            `json:"channel"`
	GatewayResponse string            `json:"gateway_response"`
	PaidAt          *time.Time        `json:"paid_at"`
}
