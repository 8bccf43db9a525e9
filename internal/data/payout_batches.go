package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sebenzapay/escrow-platform-backend/db"
)

type PayoutBatchStatus string

const (
	ExportedPayoutBatchStatus PayoutBatchStatus = "EXPORTED"
	ExecutedPayoutBatchStatus PayoutBatchStatus = "EXECUTED"
)

func (status PayoutBatchStatus) Validate() error {
	switch status {
	case ExportedPayoutBatchStatus, ExecutedPayoutBatchStatus:
		return nil
	default:
		return fmt.Errorf("invalid payout batch status: %s", status)
	}
}

// PayoutBatch groups MANUAL payouts for one bank run. The CSV is stored
// verbatim so re-export returns byte-identical content.
type PayoutBatch struct {
	ID          string            `json:"id" db:"id"`
	Reference   string            `json:"reference" db:"reference"`
	BatchDate   time.Time         `json:"batch_date" db:"batch_date"`
	PayoutCount int               `json:"payout_count" db:"payout_count"`
	TotalAmount decimal.Decimal   `json:"total_amount" db:"total_amount"`
	CSVContent  string            `json:"-" db:"csv_content"`
	Status      PayoutBatchStatus `json:"status" db:"status"`
	ExportedBy  string            `json:"exported_by" db:"exported_by"`
	ExecutedBy  string            `json:"executed_by,omitempty" db:"executed_by"`
	ExecutedAt  *time.Time        `json:"executed_at,omitempty" db:"executed_at"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

type PayoutBatchInsert struct {
	Reference   string          `db:"reference"`
	BatchDate   time.Time       `db:"batch_date"`
	PayoutCount int             `db:"payout_count"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	CSVContent  string          `db:"csv_content"`
	ExportedBy  string          `db:"exported_by"`
}

func (pbi *PayoutBatchInsert) Validate() error {
	if strings.TrimSpace(pbi.Reference) == "" {
		return fmt.Errorf("reference is required")
	}
	if pbi.BatchDate.IsZero() {
		return fmt.Errorf("batch_date is required")
	}
	if pbi.PayoutCount <= 0 {
		return fmt.Errorf("payout_count must be greater than 0")
	}
	if !pbi.TotalAmount.IsPositive() {
		return fmt.Errorf("total_amount must be greater than 0")
	}
	if strings.TrimSpace(pbi.ExportedBy) == "" {
		return fmt.Errorf("exported_by is required")
	}
	return nil
}

type PayoutBatchModel struct {
	dbConnectionPool db.DBConnectionPool
}

const basePayoutBatchQuery = `
	SELECT
		pb.id,
		pb.reference,
		pb.batch_date,
		pb.payout_count,
		pb.total_amount,
		pb.csv_content,
		pb.status,
		pb.exported_by,
		COALESCE(pb.executed_by, '') AS executed_by,
		pb.executed_at,
		pb.created_at,
		pb.updated_at
	FROM payout_batches pb
`

// NextReference allocates the day's next batch number, BATCH_<yyyymmdd>_<seq>.
// The per-day counter row serializes concurrent exports on the same date.
func (m *PayoutBatchModel) NextReference(ctx context.Context, sqlExec db.SQLExecuter, batchDate time.Time) (string, error) {
	const query = `
		INSERT INTO batch_sequences (batch_date, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (batch_date) DO UPDATE SET last_sequence = batch_sequences.last_sequence + 1
		RETURNING last_sequence
	`

	var sequence int
	err := sqlExec.GetContext(ctx, &sequence, query, batchDate.Format("2006-01-02"))
	if err != nil {
		return "", fmt.Errorf("allocating batch sequence for %s: %w", batchDate.Format("2006-01-02"), err)
	}

	return fmt.Sprintf("BATCH_%s_%03d", batchDate.Format("20060102"), sequence), nil
}

func (m *PayoutBatchModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*PayoutBatch, error) {
	batch := PayoutBatch{}
	query := basePayoutBatchQuery + ` WHERE pb.id = $1`

	err := sqlExec.GetContext(ctx, &batch, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payout batch ID %s: %w", id, err)
	}

	return &batch, nil
}

func (m *PayoutBatchModel) GetByReference(ctx context.Context, sqlExec db.SQLExecuter, reference string) (*PayoutBatch, error) {
	batch := PayoutBatch{}
	query := basePayoutBatchQuery + ` WHERE pb.reference = $1`

	err := sqlExec.GetContext(ctx, &batch, query, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payout batch by reference %s: %w", reference, err)
	}

	return &batch, nil
}

// GetForUpdate loads the batch with a row lock. Must run inside a transaction.
func (m *PayoutBatchModel) GetForUpdate(ctx context.Context, dbTx db.DBTransaction, id string) (*PayoutBatch, error) {
	batch := PayoutBatch{}
	query := basePayoutBatchQuery + ` WHERE pb.id = $1 FOR UPDATE`

	err := dbTx.GetContext(ctx, &batch, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payout batch ID %s for update: %w", id, err)
	}

	return &batch, nil
}

func (m *PayoutBatchModel) Count(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) (int, error) {
	var count int
	baseQuery := `SELECT count(*) FROM payout_batches pb`

	query, params := newPayoutBatchQuery(baseQuery, queryParams, false, sqlExec)
	err := sqlExec.GetContext(ctx, &count, query, params...)
	if err != nil {
		return 0, fmt.Errorf("counting payout batches: %w", err)
	}

	return count, nil
}

func (m *PayoutBatchModel) GetAll(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) ([]PayoutBatch, error) {
	batches := []PayoutBatch{}

	query, params := newPayoutBatchQuery(basePayoutBatchQuery, queryParams, true, sqlExec)
	err := sqlExec.SelectContext(ctx, &batches, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying payout batches: %w", err)
	}

	return batches, nil
}

func (m *PayoutBatchModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert PayoutBatchInsert) (*PayoutBatch, error) {
	if err := insert.Validate(); err != nil {
		return nil, fmt.Errorf("validating payout batch insert: %w", err)
	}

	const query = `
		INSERT INTO payout_batches (reference, batch_date, payout_count, total_amount, csv_content, exported_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query,
		insert.Reference, insert.BatchDate.Format("2006-01-02"), insert.PayoutCount, insert.TotalAmount, insert.CSVContent, insert.ExportedBy)
	if err != nil {
		return nil, fmt.Errorf("inserting payout batch: %w", err)
	}

	return m.Get(ctx, sqlExec, id)
}

// UpdateToExecuted stamps the operator's confirmation that the CSV went to
// the bank. Zero rows means the batch was already executed.
func (m *PayoutBatchModel) UpdateToExecuted(ctx context.Context, sqlExec db.SQLExecuter, id, adminID string) (int64, error) {
	const query = `
		UPDATE payout_batches
		SET status = 'EXECUTED', executed_by = $2, executed_at = NOW()
		WHERE id = $1
		AND status = 'EXPORTED'
	`

	result, err := sqlExec.ExecContext(ctx, query, id, adminID)
	if err != nil {
		return 0, fmt.Errorf("updating payout batch %s to executed: %w", id, err)
	}
	return result.RowsAffected()
}

func newPayoutBatchQuery(baseQuery string, queryParams *QueryParams, paginated bool, sqlExec db.SQLExecuter) (string, []interface{}) {
	qb := NewQueryBuilder(baseQuery)
	if queryParams.Filters[FilterKeyStatus] != nil {
		qb.AddCondition("pb.status = ?", queryParams.Filters[FilterKeyStatus])
	}
	if queryParams.Filters[FilterKeyCreatedAtAfter] != nil {
		qb.AddCondition("pb.created_at >= ?", queryParams.Filters[FilterKeyCreatedAtAfter])
	}
	if queryParams.Filters[FilterKeyCreatedAtBefore] != nil {
		qb.AddCondition("pb.created_at <= ?", queryParams.Filters[FilterKeyCreatedAtBefore])
	}
	if paginated {
		qb.AddSorting(queryParams.SortBy, queryParams.SortOrder, "pb")
		qb.AddPagination(queryParams.Page, queryParams.PageLimit)
	}
	query, params := qb.Build()
	return sqlExec.Rebind(query), params
}
