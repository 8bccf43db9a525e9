package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/utils"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrInvalidPaymentStatus = errors.New("payment status does not allow this operation")
)

// PaymentManagementService covers the operator side of payments: paginated
// reads and the refund path.
type PaymentManagementService struct {
	models           *data.Models
	dbConnectionPool db.DBConnectionPool
}

func NewPaymentManagementService(models *data.Models, dbConnectionPool db.DBConnectionPool) *PaymentManagementService {
	return &PaymentManagementService{
		models:           models,
		dbConnectionPool: dbConnectionPool,
	}
}

// GetPayment returns one payment.
func (s *PaymentManagementService) GetPayment(ctx context.Context, paymentID string) (*data.Payment, error) {
	payment, err := s.models.Payments.Get(ctx, s.dbConnectionPool, paymentID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("getting payment with id %s: %w", paymentID, err)
	}
	return payment, nil
}

// GetPaymentsWithCount returns a page of payments plus the unpaged total.
func (s *PaymentManagementService) GetPaymentsWithCount(ctx context.Context, queryParams *data.QueryParams) (*utils.ResultWithTotal, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true},
		func(dbTx db.DBTransaction) (*utils.ResultWithTotal, error) {
			totalPayments, err := s.models.Payments.Count(ctx, dbTx, queryParams)
			if err != nil {
				return nil, fmt.Errorf("counting payments: %w", err)
			}

			var payments []data.Payment
			if totalPayments != 0 {
				payments, err = s.models.Payments.GetAll(ctx, dbTx, queryParams)
				if err != nil {
					return nil, fmt.Errorf("getting payments: %w", err)
				}
			}

			return utils.NewResultWithTotal(totalPayments, payments), nil
		})
}

// RefundPayment reverses an escrowed card payment. The escrow credit and the
// fee are debited back and any payout still waiting on the money is closed
// out in the same transaction. A payout whose transfer is already in flight
// blocks the refund.
func (s *PaymentManagementService) RefundPayment(ctx context.Context, paymentID, reason, actorID string) (*data.Payment, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, serializableTxOpts, func(dbTx db.DBTransaction) (*data.Payment, error) {
		payment, err := s.models.Payments.GetForUpdate(ctx, dbTx, paymentID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return nil, ErrPaymentNotFound
			}
			return nil, fmt.Errorf("getting payment with id %s: %w", paymentID, err)
		}

		// 1. A payout already processing means money may be leaving the bank;
		// the refund has to wait for the transfer to settle or fail.
		payout, err := s.models.Payouts.GetByPaymentID(ctx, dbTx, paymentID)
		if err != nil && !errors.Is(err, data.ErrRecordNotFound) {
			return nil, fmt.Errorf("getting payout for payment %s: %w", paymentID, err)
		}
		if payout != nil && payout.Status == data.ProcessingPayoutStatus {
			return nil, ErrInvalidPayoutStatus
		}

		// 2. Flip the payment; only ESCROW can be refunded.
		numRowsAffected, err := s.models.Payments.MarkRefunded(ctx, dbTx, paymentID, reason)
		if err != nil {
			return nil, fmt.Errorf("refunding payment %s: %w", paymentID, err)
		}
		if numRowsAffected == 0 {
			return nil, ErrInvalidPaymentStatus
		}

		// 3. Close out a payout that was still waiting on the money.
		if payout != nil {
			switch payout.Status {
			case data.PendingApprovalPayoutStatus:
				if _, err = s.models.Payouts.UpdateToRejected(ctx, dbTx, payout.ID, actorID, "payment refunded"); err != nil {
					return nil, fmt.Errorf("rejecting payout %s after refund: %w", payout.ID, err)
				}
			case data.ApprovedPayoutStatus:
				if _, err = s.models.Payouts.UpdateToFailed(ctx, dbTx, payout.ID, "payment refunded"); err != nil {
					return nil, fmt.Errorf("failing payout %s after refund: %w", payout.ID, err)
				}
			}
		}

		// 4. Reverse the escrow entries.
		if err = s.models.LedgerEntries.Record(ctx, dbTx, refundLedgerEntries(payment)...); err != nil {
			return nil, fmt.Errorf("recording refund entries for payment %s: %w", paymentID, err)
		}

		return s.models.Payments.Get(ctx, dbTx, paymentID)
	})
}
