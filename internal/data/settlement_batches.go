package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sebenzapay/escrow-platform-backend/db"
)

type SettlementStatus string

const (
	PendingSettlementStatus    SettlementStatus = "PENDING"
	ReconciledSettlementStatus SettlementStatus = "RECONCILED"
	MismatchSettlementStatus   SettlementStatus = "MISMATCH"
)

func (status SettlementStatus) Validate() error {
	switch status {
	case PendingSettlementStatus, ReconciledSettlementStatus, MismatchSettlementStatus:
		return nil
	default:
		return fmt.Errorf("invalid settlement status: %s", status)
	}
}

// SettlementBatch is the daily roll-up the platform reconciles against what
// the processor actually settled to the bank account.
type SettlementBatch struct {
	ID             string           `json:"id" db:"id"`
	BatchDate      time.Time        `json:"batch_date" db:"batch_date"`
	ExpectedAmount decimal.Decimal  `json:"expected_amount" db:"expected_amount"`
	PaymentCount   int              `json:"payment_count" db:"payment_count"`
	Status         SettlementStatus `json:"status" db:"status"`
	ReconciledBy   string           `json:"reconciled_by,omitempty" db:"reconciled_by"`
	ReconciledAt   *time.Time       `json:"reconciled_at,omitempty" db:"reconciled_at"`
	Notes          string           `json:"notes,omitempty" db:"notes"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

type SettlementBatchModel struct {
	dbConnectionPool db.DBConnectionPool
}

const baseSettlementBatchQuery = `
	SELECT
		sb.id,
		sb.batch_date,
		sb.expected_amount,
		sb.payment_count,
		sb.status,
		COALESCE(sb.reconciled_by, '') AS reconciled_by,
		sb.reconciled_at,
		COALESCE(sb.notes, '') AS notes,
		sb.created_at,
		sb.updated_at
	FROM settlement_batches sb
`

func (m *SettlementBatchModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*SettlementBatch, error) {
	batch := SettlementBatch{}
	query := baseSettlementBatchQuery + ` WHERE sb.id = $1`

	err := sqlExec.GetContext(ctx, &batch, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying settlement batch ID %s: %w", id, err)
	}

	return &batch, nil
}

func (m *SettlementBatchModel) GetByDate(ctx context.Context, sqlExec db.SQLExecuter, batchDate time.Time) (*SettlementBatch, error) {
	batch := SettlementBatch{}
	query := baseSettlementBatchQuery + ` WHERE sb.batch_date = $1`

	err := sqlExec.GetContext(ctx, &batch, query, batchDate.Format("2006-01-02"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying settlement batch for %s: %w", batchDate.Format("2006-01-02"), err)
	}

	return &batch, nil
}

func (m *SettlementBatchModel) GetAll(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) ([]SettlementBatch, error) {
	batches := []SettlementBatch{}

	qb := NewQueryBuilder(baseSettlementBatchQuery)
	if queryParams.Filters[FilterKeyStatus] != nil {
		qb.AddCondition("sb.status = ?", queryParams.Filters[FilterKeyStatus])
	}
	qb.AddSorting(SortFieldBatchDate, SortOrderDESC, "sb")
	qb.AddPagination(queryParams.Page, queryParams.PageLimit)
	query, params := qb.BuildAndRebind(sqlExec)

	err := sqlExec.SelectContext(ctx, &batches, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying settlement batches: %w", err)
	}

	return batches, nil
}

func (m *SettlementBatchModel) Count(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) (int, error) {
	var count int
	qb := NewQueryBuilder(`SELECT count(*) FROM settlement_batches sb`)
	if queryParams.Filters[FilterKeyStatus] != nil {
		qb.AddCondition("sb.status = ?", queryParams.Filters[FilterKeyStatus])
	}
	query, params := qb.BuildAndRebind(sqlExec)

	err := sqlExec.GetContext(ctx, &count, query, params...)
	if err != nil {
		return 0, fmt.Errorf("counting settlement batches: %w", err)
	}

	return count, nil
}

// Upsert refreshes the day's roll-up with the recomputed expectation. The
// daily job runs it repeatedly; PENDING rows track the moving total, already
// reconciled rows are left alone.
func (m *SettlementBatchModel) Upsert(ctx context.Context, sqlExec db.SQLExecuter, batchDate time.Time, expectedAmount decimal.Decimal, paymentCount int) (*SettlementBatch, error) {
	const query = `
		INSERT INTO settlement_batches (batch_date, expected_amount, payment_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (batch_date) DO UPDATE
			SET expected_amount = EXCLUDED.expected_amount,
				payment_count = EXCLUDED.payment_count
			WHERE settlement_batches.status = 'PENDING'
		RETURNING id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query, batchDate.Format("2006-01-02"), expectedAmount, paymentCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict row was not PENDING; the roll-up is frozen.
			return m.GetByDate(ctx, sqlExec, batchDate)
		}
		return nil, fmt.Errorf("upserting settlement batch for %s: %w", batchDate.Format("2006-01-02"), err)
	}

	return m.Get(ctx, sqlExec, id)
}

// UpdateToReconciled closes the day as matched.
func (m *SettlementBatchModel) UpdateToReconciled(ctx context.Context, sqlExec db.SQLExecuter, id, adminID, notes string) (int64, error) {
	const query = `
		UPDATE settlement_batches
		SET status = 'RECONCILED', reconciled_by = $2, reconciled_at = NOW(), notes = NULLIF($3, '')
		WHERE id = $1
		AND status = 'PENDING'
	`

	result, err := sqlExec.ExecContext(ctx, query, id, adminID, notes)
	if err != nil {
		return 0, fmt.Errorf("updating settlement batch %s to reconciled: %w", id, err)
	}
	return result.RowsAffected()
}

// UpdateToMismatch flags the day for investigation.
func (m *SettlementBatchModel) UpdateToMismatch(ctx context.Context, sqlExec db.SQLExecuter, id, adminID, notes string) (int64, error) {
	const query = `
		UPDATE settlement_batches
		SET status = 'MISMATCH', reconciled_by = $2, reconciled_at = NOW(), notes = NULLIF($3, '')
		WHERE id = $1
		AND status = 'PENDING'
	`

	result, err := sqlExec.ExecContext(ctx, query, id, adminID, notes)
	if err != nil {
		return 0, fmt.Errorf("updating settlement batch %s to mismatch: %w", id, err)
	}
	return result.RowsAffected()
}

// SumEscrowedCardPaymentsByDay totals the gross amounts of card payments that
// reached escrow on the given day. This is what the processor owes the
// platform for that day's charges.
func (m *SettlementBatchModel) SumEscrowedCardPaymentsByDay(ctx context.Context, sqlExec db.SQLExecuter, batchDate time.Time) (decimal.Decimal, int, error) {
	const query = `
		SELECT
			COALESCE(SUM(p.amount), 0) AS total,
			COUNT(*) AS payment_count
		FROM payments p
		WHERE p.payment_method = 'CARD'
		AND p.paid_at >= $1::date
		AND p.paid_at < $1::date + INTERVAL '1 day'
		AND p.status IN ('ESCROW', 'RELEASED', 'REFUNDED')
	`

	var row struct {
		Total        decimal.Decimal `db:"total"`
		PaymentCount int             `db:"payment_count"`
	}
	err := sqlExec.GetContext(ctx, &row, query, batchDate.Format("2006-01-02"))
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("summing escrowed card payments for %s: %w", batchDate.Format("2006-01-02"), err)
	}

	return row.Total, row.PaymentCount, nil
}
