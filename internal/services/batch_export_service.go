package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/utils"
)

var (
	ErrBatchNotFound      = errors.New("payout batch not found")
	ErrInvalidBatchStatus = errors.New("payout batch status does not allow this operation")
	ErrNoPayoutsToExport  = errors.New("no approved manual payouts to export")
)

const defaultBatchExecuteTimeout = 60 * time.Second

// batchRowReference is the payment reference printed on the bank file row
// and stored as the payout's external ref once the batch executes. The full
// payout ID keeps it traceable from a bank statement line alone.
func batchRowReference(payoutID string) string {
	return "PAYOUT_" + payoutID
}

// batchCSVRow is one line of the bank upload file. Field order is the column
// order the bank's bulk payment portal expects.
type batchCSVRow struct {
	AccountName   string `csv:"Account Name"`
	AccountNumber string `csv:"Account Number"`
	BankCode      string `csv:"Bank Code"`
	Amount        string `csv:"Amount"`
	Reference     string `csv:"Reference"`
	Description   string `csv:"Description"`
}

// BatchExportService turns approved MANUAL payouts into bank upload files and
// marks them paid once the operator confirms the bank run went through. The
// CSV is stored on the batch row, so downloading it again returns the exact
// bytes that were handed to the bank.
type BatchExportService struct {
	models              *data.Models
	dbConnectionPool    db.DBConnectionPool
	payoutCompleter     PayoutCompleter
	notificationService NotificationServiceInterface
	executeTimeout      time.Duration
}

func NewBatchExportService(models *data.Models, dbConnectionPool db.DBConnectionPool, payoutCompleter PayoutCompleter, notificationService NotificationServiceInterface, executeTimeout time.Duration) *BatchExportService {
	if executeTimeout <= 0 {
		executeTimeout = defaultBatchExecuteTimeout
	}
	return &BatchExportService{
		models:              models,
		dbConnectionPool:    dbConnectionPool,
		payoutCompleter:     payoutCompleter,
		notificationService: notificationService,
		executeTimeout:      executeTimeout,
	}
}

// ExportBatch collects the approved MANUAL payouts, renders them into a CSV
// and moves them to PROCESSING under a new batch. payoutIDs restricts the
// selection; empty means every eligible payout. Payouts whose provider still
// has no bank details are left behind for a later run.
func (s *BatchExportService) ExportBatch(ctx context.Context, actorID string, payoutIDs ...string) (*data.PayoutBatch, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.PayoutBatch, error) {
		payouts, err := s.models.Payouts.GetApprovedManualForUpdate(ctx, dbTx, payoutIDs...)
		if err != nil {
			return nil, fmt.Errorf("selecting payouts for export: %w", err)
		}

		providersByID, err := s.providersByID(ctx, dbTx, payouts)
		if err != nil {
			return nil, err
		}

		exportable := make([]data.Payout, 0, len(payouts))
		for _, payout := range payouts {
			provider, ok := providersByID[payout.ProviderID]
			if !ok || !provider.HasBankAccount() {
				log.Ctx(ctx).Warnf("skipping payout %s: provider %s has no bank details", payout.ID, payout.ProviderID)
				continue
			}
			exportable = append(exportable, payout)
		}
		if len(exportable) == 0 {
			return nil, ErrNoPayoutsToExport
		}

		batchDate := time.Now().UTC()
		reference, err := s.models.PayoutBatches.NextReference(ctx, dbTx, batchDate)
		if err != nil {
			return nil, fmt.Errorf("allocating batch reference: %w", err)
		}

		csvContent, totalAmount, err := renderBatchCSV(exportable, providersByID)
		if err != nil {
			return nil, fmt.Errorf("rendering CSV for batch %s: %w", reference, err)
		}

		batch, err := s.models.PayoutBatches.Insert(ctx, dbTx, data.PayoutBatchInsert{
			Reference:   reference,
			BatchDate:   batchDate,
			PayoutCount: len(exportable),
			TotalAmount: totalAmount,
			CSVContent:  csvContent,
			ExportedBy:  actorID,
		})
		if err != nil {
			return nil, fmt.Errorf("inserting batch %s: %w", reference, err)
		}

		exportableIDs := make([]string, 0, len(exportable))
		for _, payout := range exportable {
			exportableIDs = append(exportableIDs, payout.ID)
		}
		numRowsAffected, err := s.models.Payouts.AssignToBatch(ctx, dbTx, exportableIDs, batch.ID)
		if err != nil {
			return nil, fmt.Errorf("assigning payouts to batch %s: %w", reference, err)
		}
		if numRowsAffected != int64(len(exportableIDs)) {
			return nil, fmt.Errorf("assigned %d of %d payouts to batch %s", numRowsAffected, len(exportableIDs), reference)
		}

		return batch, nil
	})
}

func (s *BatchExportService) providersByID(ctx context.Context, dbTx db.DBTransaction, payouts []data.Payout) (map[string]data.Provider, error) {
	providerIDs := make([]string, 0, len(payouts))
	seen := make(map[string]bool, len(payouts))
	for _, payout := range payouts {
		if !seen[payout.ProviderID] {
			seen[payout.ProviderID] = true
			providerIDs = append(providerIDs, payout.ProviderID)
		}
	}

	providers, err := s.models.Providers.GetByIDs(ctx, dbTx, providerIDs...)
	if err != nil {
		return nil, fmt.Errorf("getting providers for export: %w", err)
	}

	providersByID := make(map[string]data.Provider, len(providers))
	for _, provider := range providers {
		providersByID[provider.ID] = provider
	}
	return providersByID, nil
}

// renderBatchCSV produces the bank upload file for the payouts, in the order
// they were selected. Amounts are plain decimals with two places, no currency
// symbol; the bank derives the currency from the account.
func renderBatchCSV(payouts []data.Payout, providersByID map[string]data.Provider) (string, decimal.Decimal, error) {
	rows := make([]batchCSVRow, 0, len(payouts))
	totalAmount := decimal.Zero
	for _, payout := range payouts {
		provider := providersByID[payout.ProviderID]
		reference := batchRowReference(payout.ID)
		rows = append(rows, batchCSVRow{
			AccountName:   provider.AccountName,
			AccountNumber: provider.AccountNumber,
			BankCode:      provider.BankCode,
			Amount:        payout.Amount.StringFixed(2),
			Reference:     reference,
			Description:   fmt.Sprintf("Payout %s", reference),
		})
		totalAmount = totalAmount.Add(payout.Amount)
	}

	csvBytes, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("marshalling CSV rows: %w", err)
	}

	return string(csvBytes), totalAmount, nil
}

// GetBatchCSV returns the batch and the stored CSV bytes. The content is
// never re-rendered, so a second download is byte-identical to the first.
func (s *BatchExportService) GetBatchCSV(ctx context.Context, batchID string) (*data.PayoutBatch, []byte, error) {
	batch, err := s.models.PayoutBatches.Get(ctx, s.dbConnectionPool, batchID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, nil, ErrBatchNotFound
		}
		return nil, nil, fmt.Errorf("getting batch with id %s: %w", batchID, err)
	}

	return batch, []byte(batch.CSVContent), nil
}

// GetBatch returns one batch by ID.
func (s *BatchExportService) GetBatch(ctx context.Context, batchID string) (*data.PayoutBatch, error) {
	batch, err := s.models.PayoutBatches.Get(ctx, s.dbConnectionPool, batchID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("getting batch with id %s: %w", batchID, err)
	}
	return batch, nil
}

// GetBatchesWithCount returns a page of batches plus the unpaged total.
func (s *BatchExportService) GetBatchesWithCount(ctx context.Context, queryParams *data.QueryParams) (*utils.ResultWithTotal, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true},
		func(dbTx db.DBTransaction) (*utils.ResultWithTotal, error) {
			totalBatches, err := s.models.PayoutBatches.Count(ctx, dbTx, queryParams)
			if err != nil {
				return nil, fmt.Errorf("counting batches: %w", err)
			}

			var batches []data.PayoutBatch
			if totalBatches != 0 {
				batches, err = s.models.PayoutBatches.GetAll(ctx, dbTx, queryParams)
				if err != nil {
					return nil, fmt.Errorf("getting batches: %w", err)
				}
			}

			return utils.NewResultWithTotal(totalBatches, batches), nil
		})
}

// ExecuteBatch marks every payout in the batch as paid after the operator
// confirms the bank processed the file. The whole batch completes in one
// transaction; if any payout cannot complete, none of them do and the batch
// stays EXPORTED.
func (s *BatchExportService) ExecuteBatch(ctx context.Context, batchID, actorID string) (*data.PayoutBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, s.executeTimeout)
	defer cancel()

	type executeResult struct {
		batch   *data.PayoutBatch
		payouts []data.Payout
	}

	result, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, serializableTxOpts, func(dbTx db.DBTransaction) (executeResult, error) {
		batch, err := s.models.PayoutBatches.GetForUpdate(ctx, dbTx, batchID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return executeResult{}, ErrBatchNotFound
			}
			return executeResult{}, fmt.Errorf("getting batch with id %s: %w", batchID, err)
		}
		if batch.Status != data.ExportedPayoutBatchStatus {
			return executeResult{}, ErrInvalidBatchStatus
		}

		payouts, err := s.models.Payouts.GetByBatchID(ctx, dbTx, batch.ID)
		if err != nil {
			return executeResult{}, fmt.Errorf("getting payouts for batch %s: %w", batch.Reference, err)
		}

		for _, payout := range payouts {
			err = s.payoutCompleter.CompletePayoutInTx(ctx, dbTx, payout.ID, batchRowReference(payout.ID))
			if err != nil {
				return executeResult{}, fmt.Errorf("completing payout %s in batch %s: %w", payout.ID, batch.Reference, err)
			}
		}

		numRowsAffected, err := s.models.PayoutBatches.UpdateToExecuted(ctx, dbTx, batch.ID, actorID)
		if err != nil {
			return executeResult{}, fmt.Errorf("updating batch %s to executed: %w", batch.Reference, err)
		}
		if numRowsAffected == 0 {
			return executeResult{}, ErrInvalidBatchStatus
		}

		executedBatch, err := s.models.PayoutBatches.Get(ctx, dbTx, batch.ID)
		if err != nil {
			return executeResult{}, fmt.Errorf("reloading batch %s: %w", batch.Reference, err)
		}

		return executeResult{batch: executedBatch, payouts: payouts}, nil
	})
	if err != nil {
		return nil, err
	}

	for _, payout := range result.payouts {
		completedPayout, getErr := s.models.Payouts.Get(ctx, s.dbConnectionPool, payout.ID)
		if getErr != nil {
			log.Ctx(ctx).Errorf("reloading payout %s after batch execution: %v", payout.ID, getErr)
			continue
		}
		if notifyErr := s.notificationService.NotifyPayoutCompleted(ctx, completedPayout); notifyErr != nil {
			log.Ctx(ctx).Errorf("notifying provider about payout %s: %v", payout.ID, notifyErr)
		}
	}

	return result.batch, nil
}
