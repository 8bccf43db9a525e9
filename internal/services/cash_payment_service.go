package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
)

var (
	ErrPaymentNotOwned      = errors.New("payment does not belong to the requesting user")
	ErrInvalidPaymentMethod = errors.New("payment method does not allow this operation")
	ErrAmountMismatch       = errors.New("claimed amount does not match the payment amount")
)

// cashAmountTolerance is how far a reported cash amount may drift from the
// payment amount and still be accepted, one cent either way. The ledger
// always moves the payment amount, never the reported one.
var cashAmountTolerance = decimal.New(1, -2)

func cashAmountMatches(reported, paymentAmount decimal.Decimal) bool {
	return reported.Sub(paymentAmount).Abs().LessThanOrEqual(cashAmountTolerance)
}

// CashPaymentService handles payments settled with physical cash. The client
// claims the handover, the provider confirms it; only the confirmation moves
// the ledger, and the money itself never touches the platform.
type CashPaymentService struct {
	models              *data.Models
	dbConnectionPool    db.DBConnectionPool
	notificationService NotificationServiceInterface
}

func NewCashPaymentService(models *data.Models, dbConnectionPool db.DBConnectionPool, notificationService NotificationServiceInterface) *CashPaymentService {
	return &CashPaymentService{
		models:              models,
		dbConnectionPool:    dbConnectionPool,
		notificationService: notificationService,
	}
}

// MarkCashPaid records the client's claim of handing cash to the provider.
// clientID is the caller's identity; empty means an admin acting on any
// payment. The claimed amount must match the payment to within one cent so a
// partial handover can never complete a booking.
func (s *CashPaymentService) MarkCashPaid(ctx context.Context, paymentID, clientID string, amount decimal.Decimal) (*data.Payment, error) {
	payment, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Payment, error) {
		payment, err := s.models.Payments.GetForUpdate(ctx, dbTx, paymentID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return nil, ErrPaymentNotFound
			}
			return nil, fmt.Errorf("getting payment with id %s: %w", paymentID, err)
		}
		if clientID != "" && payment.ClientID != clientID {
			return nil, ErrPaymentNotOwned
		}
		if payment.PaymentMethod != data.CashPaymentMethod {
			return nil, ErrInvalidPaymentMethod
		}
		if !cashAmountMatches(amount, payment.Amount) {
			return nil, ErrAmountMismatch
		}

		numRowsAffected, err := s.models.Payments.MarkCashPaid(ctx, dbTx, paymentID)
		if err != nil {
			return nil, fmt.Errorf("marking payment %s as cash paid: %w", paymentID, err)
		}
		if numRowsAffected == 0 {
			return nil, ErrInvalidPaymentStatus
		}

		return s.models.Payments.Get(ctx, dbTx, paymentID)
	})
	if err != nil {
		return nil, err
	}

	if booking, bookingErr := s.models.Bookings.Get(ctx, s.dbConnectionPool, payment.BookingID); bookingErr == nil {
		if notifyErr := s.notificationService.NotifyCashClaimed(ctx, payment, booking); notifyErr != nil {
			log.Ctx(ctx).Errorf("notifying provider about cash claim on payment %s: %v", paymentID, notifyErr)
		}
	}

	return payment, nil
}

// ConfirmCashReceived is the provider acknowledging the cash arrived. This
// is the terminal cash transition: the payment closes, the booking completes
// and the zero-sum cash entries land, all in one serializable transaction.
func (s *CashPaymentService) ConfirmCashReceived(ctx context.Context, paymentID, providerID string, amount decimal.Decimal) (*data.Payment, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, serializableTxOpts, func(dbTx db.DBTransaction) (*data.Payment, error) {
		payment, err := s.models.Payments.GetForUpdate(ctx, dbTx, paymentID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return nil, ErrPaymentNotFound
			}
			return nil, fmt.Errorf("getting payment with id %s: %w", paymentID, err)
		}
		if providerID != "" && payment.ProviderID != providerID {
			return nil, ErrPaymentNotOwned
		}
		if payment.PaymentMethod != data.CashPaymentMethod {
			return nil, ErrInvalidPaymentMethod
		}
		if !cashAmountMatches(amount, payment.Amount) {
			return nil, ErrAmountMismatch
		}

		numRowsAffected, err := s.models.Payments.MarkCashReceived(ctx, dbTx, paymentID)
		if err != nil {
			return nil, fmt.Errorf("marking payment %s as cash received: %w", paymentID, err)
		}
		if numRowsAffected == 0 {
			return nil, ErrInvalidPaymentStatus
		}

		if err = s.models.LedgerEntries.Record(ctx, dbTx, cashLedgerEntries(payment)...); err != nil {
			return nil, fmt.Errorf("recording cash entries for payment %s: %w", paymentID, err)
		}

		numRowsAffected, err = s.models.Bookings.UpdateStatus(ctx, dbTx, payment.BookingID, data.CompletedBookingStatus, "cash payment confirmed")
		if err != nil {
			return nil, fmt.Errorf("completing booking %s: %w", payment.BookingID, err)
		}
		if numRowsAffected == 0 {
			return nil, fmt.Errorf("booking %s could not be completed", payment.BookingID)
		}

		return s.models.Payments.Get(ctx, dbTx, paymentID)
	})
}
