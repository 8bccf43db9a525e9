package services

import (
	"github.com/shopspring/decimal"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
)

// Ledger postings for every money movement in the platform. Each function
// returns the full entry set for one reference so the caller records them in
// a single call; the uniqueness key on ledger_entries turns an accidental
// re-posting into data.ErrDuplicateLedgerEntry.
//
// Zero-amount components are omitted: the amount CHECK rejects them and a
// zero movement means nothing happened on that account.

// escrowLedgerEntries books a confirmed card charge: the provider's share is
// owed to the provider, the fee is platform revenue.
func escrowLedgerEntries(payment *data.Payment) []data.LedgerEntryInsert {
	entries := make([]data.LedgerEntryInsert, 0, 2)
	if payment.EscrowAmount.IsPositive() {
		entries = append(entries, data.LedgerEntryInsert{
			AccountType:   data.ProviderBalanceAccountType,
			AccountID:     payment.ProviderID,
			EntryType:     data.CreditLedgerEntryType,
			Amount:        payment.EscrowAmount,
			Currency:      payment.Currency,
			ReferenceType: data.PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
			Description:   "escrow share of card payment",
		})
	}
	if payment.PlatformFee.IsPositive() {
		entries = append(entries, data.LedgerEntryInsert{
			AccountType:   data.PlatformRevenueAccountType,
			AccountID:     data.PlatformAccountID,
			EntryType:     data.CreditLedgerEntryType,
			Amount:        payment.PlatformFee,
			Currency:      payment.Currency,
			ReferenceType: data.PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
			Description:   "platform fee on card payment",
		})
	}
	return entries
}

// payoutCompletionLedgerEntries books the release of escrowed funds to the
// provider's bank. The PAYOUT reference carries the bank movement, the
// PAYMENT reference closes out what the escrow credit opened.
func payoutCompletionLedgerEntries(payout *data.Payout, payment *data.Payment, bankMainAccountID string) []data.LedgerEntryInsert {
	entries := []data.LedgerEntryInsert{
		{
			AccountType:   data.BankAccountAccountType,
			AccountID:     bankMainAccountID,
			EntryType:     data.DebitLedgerEntryType,
			Amount:        payout.Amount,
			Currency:      payout.Currency,
			ReferenceType: data.PayoutLedgerReferenceType,
			ReferenceID:   payout.ID,
			Description:   "transfer to provider bank account",
		},
		{
			AccountType:   data.SettlementAccountType,
			AccountID:     payout.ProviderID,
			EntryType:     data.CreditLedgerEntryType,
			Amount:        payout.Amount,
			Currency:      payout.Currency,
			ReferenceType: data.PayoutLedgerReferenceType,
			ReferenceID:   payout.ID,
			Description:   "funds settled to provider",
		},
	}
	if payment.EscrowAmount.IsPositive() {
		entries = append(entries, data.LedgerEntryInsert{
			AccountType:   data.ProviderBalanceAccountType,
			AccountID:     payment.ProviderID,
			EntryType:     data.DebitLedgerEntryType,
			Amount:        payment.EscrowAmount,
			Currency:      payment.Currency,
			ReferenceType: data.PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
			Description:   "escrow released to provider",
		})
	}
	if payment.PlatformFee.IsPositive() {
		entries = append(entries, data.LedgerEntryInsert{
			AccountType:   data.SettlementAccountType,
			AccountID:     data.PlatformAccountID,
			EntryType:     data.DebitLedgerEntryType,
			Amount:        payment.PlatformFee,
			Currency:      payment.Currency,
			ReferenceType: data.PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
			Description:   "platform fee retained at release",
		})
	}
	return entries
}

// cashLedgerEntries books a cash payment the provider confirmed receiving.
// The money never touched the platform, so every movement nets to zero: the
// full amount flows through the provider balance and the settlement boundary
// in the same breath.
func cashLedgerEntries(payment *data.Payment) []data.LedgerEntryInsert {
	return []data.LedgerEntryInsert{
		{
			AccountType:   data.ProviderBalanceAccountType,
			AccountID:     payment.ProviderID,
			EntryType:     data.CreditLedgerEntryType,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			ReferenceType: data.PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
			Description:   "cash payment received by provider",
		},
		{
			AccountType:   data.ProviderBalanceAccountType,
			AccountID:     payment.ProviderID,
			EntryType:     data.DebitLedgerEntryType,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			ReferenceType: data.PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
			Description:   "cash payment settled outside platform",
		},
		{
			AccountType:   data.SettlementAccountType,
			AccountID:     payment.ProviderID,
			EntryType:     data.CreditLedgerEntryType,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			ReferenceType: data.PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
			Description:   "cash settlement in",
		},
		{
			AccountType:   data.SettlementAccountType,
			AccountID:     payment.ProviderID,
			EntryType:     data.DebitLedgerEntryType,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			ReferenceType: data.PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
			Description:   "cash settlement out",
		},
	}
}

// refundLedgerEntries reverses an escrowed card payment before release.
func refundLedgerEntries(payment *data.Payment) []data.LedgerEntryInsert {
	entries := make([]data.LedgerEntryInsert, 0, 2)
	if payment.EscrowAmount.IsPositive() {
		entries = append(entries, data.LedgerEntryInsert{
			AccountType:   data.ProviderBalanceAccountType,
			AccountID:     payment.ProviderID,
			EntryType:     data.DebitLedgerEntryType,
			Amount:        payment.EscrowAmount,
			Currency:      payment.Currency,
			ReferenceType: data.PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
			Description:   "escrow reversed on refund",
		})
	}
	if payment.PlatformFee.IsPositive() {
		entries = append(entries, data.LedgerEntryInsert{
			AccountType:   data.PlatformRevenueAccountType,
			AccountID:     data.PlatformAccountID,
			EntryType:     data.DebitLedgerEntryType,
			Amount:        payment.PlatformFee,
			Currency:      payment.Currency,
			ReferenceType: data.PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
			Description:   "platform fee reversed on refund",
		})
	}
	return entries
}

// bankFundingLedgerEntries books money arriving on the platform's bank
// account, either from a settlement reconciliation or a manual adjustment.
func bankFundingLedgerEntries(referenceID, bankMainAccountID string, amount decimal.Decimal, currency, description string) []data.LedgerEntryInsert {
	return []data.LedgerEntryInsert{
		{
			AccountType:   data.BankAccountAccountType,
			AccountID:     bankMainAccountID,
			EntryType:     data.CreditLedgerEntryType,
			Amount:        amount,
			Currency:      currency,
			ReferenceType: data.AdjustmentLedgerReferenceType,
			ReferenceID:   referenceID,
			Description:   description,
		},
		{
			AccountType:   data.SettlementAccountType,
			AccountID:     data.PlatformAccountID,
			EntryType:     data.DebitLedgerEntryType,
			Amount:        amount,
			Currency:      currency,
			ReferenceType: data.AdjustmentLedgerReferenceType,
			ReferenceID:   referenceID,
			Description:   description,
		},
	}
}
