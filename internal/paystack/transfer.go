package paystack

import (
	"fmt"
)

const (
	// RecipientTypeBASA is Paystack's recipient type for South African bank
	// accounts.
	RecipientTypeBASA = "basa"

	// TransferSourceBalance funds transfers from the integration's Paystack
	// balance.
	TransferSourceBalance = "balance"
)

// TransferRecipientRequest is the payload for POST /transferrecipient.
type TransferRecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

func (rr TransferRecipientRequest) validate() error {
	if rr.Type == "" {
		return fmt.Errorf("type must be provided")
	}

	if rr.Name == "" {
		return fmt.Errorf("name must be provided")
	}

	if rr.AccountNumber == "" {
		return fmt.Errorf("account number must be provided")
	}

	if rr.BankCode == "" {
		return fmt.Errorf("bank code must be provided")
	}

	return nil
}

// TransferRecipient is a stored beneficiary on the processor side. The
// RecipientCode is persisted on the provider and reused for later transfers.
type TransferRecipient struct {
	RecipientCode string `json:"recipient_code"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	Active        bool   `json:"active"`
}

// TransferRequest is the payload for POST /transfer. Amount is in minor
// units. Reference doubles as the idempotency key: re-posting the same
// reference returns the original transfer instead of moving money twice.
type TransferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

func (tr TransferRequest) validate() error {
	if tr.Source != TransferSourceBalance {
		return fmt.Errorf("source must be balance")
	}

	if tr.Amount <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}

	if tr.Recipient == "" {
		return fmt.Errorf("recipient must be provided")
	}

	if tr.Reference == "" {
		return fmt.Errorf("reference must be provided")
	}

	return nil
}

// TransferStatus is the processor-side status of a transfer.
type TransferStatus string

const (
	TransferStatusPending  TransferStatus = "pending"
	TransferStatusSuccess  TransferStatus = "success"
	TransferStatusFailed   TransferStatus = "failed"
	TransferStatusReversed TransferStatus = "reversed"
)

// Transfer is the processor's record of a transfer to a recipient.
// Completion arrives asynchronously through transfer.* webhooks keyed by
// TransferCode.
type Transfer struct {
	ID           int64          `json:"id"`
	TransferCode string         `json:"transfer_code"`
	Reference    string         `json:"reference"`
	Amount       int64          `json:"amount"`
	Currency     string         `json:"currency"`
	Status       TransferStatus `json:"status"`
}
