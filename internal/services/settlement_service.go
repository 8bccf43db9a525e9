package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/crashtracker"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/utils"
)

var (
	ErrSettlementNotFound      = errors.New("settlement batch not found")
	ErrInvalidSettlementStatus = errors.New("settlement batch status does not allow this operation")
)

// SettlementService reconciles the processor's daily settlement against what
// the platform expected to receive. Matching a day is what funds BANK_MAIN on
// the ledger; payouts draw that liquidity down.
type SettlementService struct {
	models             *data.Models
	dbConnectionPool   db.DBConnectionPool
	crashTrackerClient crashtracker.CrashTrackerClient
	bankMainAccountID  string
	currency           string
}

func NewSettlementService(models *data.Models, dbConnectionPool db.DBConnectionPool, crashTrackerClient crashtracker.CrashTrackerClient, bankMainAccountID, currency string) *SettlementService {
	return &SettlementService{
		models:             models,
		dbConnectionPool:   dbConnectionPool,
		crashTrackerClient: crashTrackerClient,
		bankMainAccountID:  bankMainAccountID,
		currency:           currency,
	}
}

// RollUpDay recomputes the day's expected settlement from the card payments
// that reached escrow and upserts the roll-up row. Days without card payments
// get no row. The scheduler calls this for today and yesterday, so charges
// landing around midnight are counted on whichever day their paid_at falls.
func (s *SettlementService) RollUpDay(ctx context.Context, batchDate time.Time) (*data.SettlementBatch, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.SettlementBatch, error) {
		expectedAmount, paymentCount, err := s.models.SettlementBatches.SumEscrowedCardPaymentsByDay(ctx, dbTx, batchDate)
		if err != nil {
			return nil, fmt.Errorf("summing card payments for %s: %w", batchDate.Format("2006-01-02"), err)
		}
		if paymentCount == 0 {
			return nil, nil
		}

		batch, err := s.models.SettlementBatches.Upsert(ctx, dbTx, batchDate, expectedAmount, paymentCount)
		if err != nil {
			return nil, fmt.Errorf("upserting settlement batch for %s: %w", batchDate.Format("2006-01-02"), err)
		}

		return batch, nil
	})
}

// Reconcile compares the amount the bank actually received for the day
// against the recomputed expectation. A match funds BANK_MAIN on the ledger;
// a mismatch freezes the day as MISMATCH and pages whoever watches the crash
// tracker. Either way the row leaves PENDING exactly once.
func (s *SettlementService) Reconcile(ctx context.Context, batchDate time.Time, receivedAmount decimal.Decimal, actorID, notes string) (*data.SettlementBatch, error) {
	batch, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, serializableTxOpts, func(dbTx db.DBTransaction) (*data.SettlementBatch, error) {
		batch, err := s.models.SettlementBatches.GetByDate(ctx, dbTx, batchDate)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return nil, ErrSettlementNotFound
			}
			return nil, fmt.Errorf("getting settlement batch for %s: %w", batchDate.Format("2006-01-02"), err)
		}
		if batch.Status != data.PendingSettlementStatus {
			return nil, ErrInvalidSettlementStatus
		}

		// The roll-up job may not have run since the last charge landed.
		expectedAmount, paymentCount, err := s.models.SettlementBatches.SumEscrowedCardPaymentsByDay(ctx, dbTx, batchDate)
		if err != nil {
			return nil, fmt.Errorf("summing card payments for %s: %w", batchDate.Format("2006-01-02"), err)
		}
		batch, err = s.models.SettlementBatches.Upsert(ctx, dbTx, batchDate, expectedAmount, paymentCount)
		if err != nil {
			return nil, fmt.Errorf("refreshing settlement batch for %s: %w", batchDate.Format("2006-01-02"), err)
		}

		if !receivedAmount.Equal(batch.ExpectedAmount) {
			mismatchNotes := fmt.Sprintf("expected %s, received %s", batch.ExpectedAmount.StringFixed(2), receivedAmount.StringFixed(2))
			if notes != "" {
				mismatchNotes = mismatchNotes + "; " + notes
			}
			numRowsAffected, updateErr := s.models.SettlementBatches.UpdateToMismatch(ctx, dbTx, batch.ID, actorID, mismatchNotes)
			if updateErr != nil {
				return nil, fmt.Errorf("updating settlement batch %s to mismatch: %w", batch.ID, updateErr)
			}
			if numRowsAffected == 0 {
				return nil, ErrInvalidSettlementStatus
			}
			return s.models.SettlementBatches.Get(ctx, dbTx, batch.ID)
		}

		numRowsAffected, err := s.models.SettlementBatches.UpdateToReconciled(ctx, dbTx, batch.ID, actorID, notes)
		if err != nil {
			return nil, fmt.Errorf("updating settlement batch %s to reconciled: %w", batch.ID, err)
		}
		if numRowsAffected == 0 {
			return nil, ErrInvalidSettlementStatus
		}

		description := fmt.Sprintf("processor settlement for %s", batchDate.Format("2006-01-02"))
		entries := bankFundingLedgerEntries(batch.ID, s.bankMainAccountID, receivedAmount, s.currency, description)
		if err = s.models.LedgerEntries.Record(ctx, dbTx, entries...); err != nil {
			return nil, fmt.Errorf("recording settlement funding for batch %s: %w", batch.ID, err)
		}

		return s.models.SettlementBatches.Get(ctx, dbTx, batch.ID)
	})
	if err != nil {
		return nil, err
	}

	if batch.Status == data.MismatchSettlementStatus {
		s.crashTrackerClient.LogAndReportMessages(ctx, fmt.Sprintf("settlement mismatch for %s: %s", batchDate.Format("2006-01-02"), batch.Notes))
	}

	return batch, nil
}

// RecordBankFunding posts a manual adjustment that moves money onto
// BANK_MAIN outside the daily settlement flow, for example an operator
// topping the account up by EFT.
func (s *SettlementService) RecordBankFunding(ctx context.Context, amount decimal.Decimal, description, actorID string) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("funding amount %s must be greater than zero", amount)
	}
	if description == "" {
		description = "manual bank funding"
	}

	adjustmentID := uuid.NewString()
	err := db.RunInTransaction(ctx, s.dbConnectionPool, serializableTxOpts, func(dbTx db.DBTransaction) error {
		entries := bankFundingLedgerEntries(adjustmentID, s.bankMainAccountID, amount, s.currency, fmt.Sprintf("%s (by %s)", description, actorID))
		if err := s.models.LedgerEntries.Record(ctx, dbTx, entries...); err != nil {
			return fmt.Errorf("recording bank funding adjustment %s: %w", adjustmentID, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Ctx(ctx).Infof("recorded bank funding adjustment %s for %s %s", adjustmentID, amount.StringFixed(2), s.currency)
	return adjustmentID, nil
}

// GetSettlementByDate returns the roll-up for one day.
func (s *SettlementService) GetSettlementByDate(ctx context.Context, batchDate time.Time) (*data.SettlementBatch, error) {
	batch, err := s.models.SettlementBatches.GetByDate(ctx, s.dbConnectionPool, batchDate)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, fmt.Errorf("getting settlement batch for %s: %w", batchDate.Format("2006-01-02"), err)
	}
	return batch, nil
}

// GetSettlementsWithCount returns a page of settlement batches plus the
// unpaged total.
func (s *SettlementService) GetSettlementsWithCount(ctx context.Context, queryParams *data.QueryParams) (*utils.ResultWithTotal, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true},
		func(dbTx db.DBTransaction) (*utils.ResultWithTotal, error) {
			totalBatches, err := s.models.SettlementBatches.Count(ctx, dbTx, queryParams)
			if err != nil {
				return nil, fmt.Errorf("counting settlement batches: %w", err)
			}

			var batches []data.SettlementBatch
			if totalBatches != 0 {
				batches, err = s.models.SettlementBatches.GetAll(ctx, dbTx, queryParams)
				if err != nil {
					return nil, fmt.Errorf("getting settlement batches: %w", err)
				}
			}

			return utils.NewResultWithTotal(totalBatches, batches), nil
		})
}
