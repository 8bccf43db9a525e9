package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
)

// ReceiptResponse is the proof-of-payment document for a completed payout.
// Regenerating it for the same payout always yields the same content.
type ReceiptResponse struct {
	ReceiptNumber  string            `json:"receipt_number"`
	PayoutID       string            `json:"payout_id"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Method         data.PayoutMethod `json:"method"`
	BatchReference string            `json:"batch_reference,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at"`
	Provider       ReceiptProvider   `json:"provider"`
	Payment        ReceiptPayment    `json:"payment"`
	Booking        ReceiptBooking    `json:"booking"`
}

type ReceiptProvider struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
}

type ReceiptPayment struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	EscrowAmount decimal.Decimal `json:"escrow_amount"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
}

type ReceiptBooking struct {
	ID           string     `json:"id"`
	ServiceName  string     `json:"service_name"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	BookedAt     time.Time  `json:"booked_at"`
}

// ReceiptService assembles payout receipts. Receipts exist only for
// COMPLETED payouts; anything earlier has nothing to prove yet.
type ReceiptService struct {
	models           *data.Models
	dbConnectionPool db.DBConnectionPool
}

func NewReceiptService(models *data.Models, dbConnectionPool db.DBConnectionPool) *ReceiptService {
	return &ReceiptService{
		models:           models,
		dbConnectionPool: dbConnectionPool,
	}
}

// receiptNumber derives the stable receipt identifier from the payout ID.
func receiptNumber(payoutID string) string {
	if len(payoutID) > 8 {
		return "RCP_" + payoutID[:8]
	}
	return "RCP_" + payoutID
}

// maskAccountNumber hides all but the last four digits of a bank account
// number. Receipts travel outside the platform; the full number stays in.
func maskAccountNumber(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	return strings.Repeat("*", len(accountNumber)-4) + accountNumber[len(accountNumber)-4:]
}

// GetReceipt builds the receipt for a completed payout.
func (s *ReceiptService) GetReceipt(ctx context.Context, payoutID string) (*ReceiptResponse, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}, func(dbTx db.DBTransaction) (*ReceiptResponse, error) {
		payout, err := s.models.Payouts.Get(ctx, dbTx, payoutID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return nil, ErrPayoutNotFound
			}
			return nil, fmt.Errorf("getting payout with id %s: %w", payoutID, err)
		}
		if payout.Status != data.CompletedPayoutStatus {
			return nil, ErrInvalidPayoutStatus
		}

		payment, err := s.models.Payments.Get(ctx, dbTx, payout.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("getting payment %s for receipt: %w", payout.PaymentID, err)
		}
		booking, err := s.models.Bookings.Get(ctx, dbTx, payout.BookingID)
		if err != nil {
			return nil, fmt.Errorf("getting booking %s for receipt: %w", payout.BookingID, err)
		}
		provider, err := s.models.Providers.Get(ctx, dbTx, payout.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("getting provider %s for receipt: %w", payout.ProviderID, err)
		}

		batchReference := ""
		if payout.BatchID != nil {
			batch, batchErr := s.models.PayoutBatches.Get(ctx, dbTx, *payout.BatchID)
			if batchErr != nil {
				return nil, fmt.Errorf("getting batch %s for receipt: %w", *payout.BatchID, batchErr)
			}
			batchReference = batch.Reference
		}

		return &ReceiptResponse{
			ReceiptNumber:  receiptNumber(payout.ID),
			PayoutID:       payout.ID,
			Amount:         payout.Amount,
			Currency:       payout.Currency,
			Method:         payout.Method,
			BatchReference: batchReference,
			CompletedAt:    payout.CompletedAt,
			Provider: ReceiptProvider{
				Name:          provider.Name,
				AccountNumber: maskAccountNumber(provider.AccountNumber),
				BankCode:      provider.BankCode,
			},
			Payment: ReceiptPayment{
				ID:           payment.ID,
				Amount:       payment.Amount,
				PlatformFee:  payment.PlatformFee,
				EscrowAmount: payment.EscrowAmount,
				PaidAt:       payment.PaidAt,
			},
			Booking: ReceiptBooking{
				ID:           booking.ID,
				ServiceName:  booking.ServiceName,
				ScheduledFor: booking.ScheduledFor,
				BookedAt:     booking.CreatedAt,
			},
		}, nil
	})
}
