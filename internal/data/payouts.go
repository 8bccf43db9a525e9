package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/db"
)

// Payout is the release of one escrowed payment to its provider. At most one
// payout ever exists per payment; the unique constraint on payment_id backs
// that up.
type Payout struct {
	ID            string              `json:"id" db:"id"`
	PaymentID     string              `json:"payment_id" db:"payment_id"`
	BookingID     string              `json:"booking_id" db:"booking_id"`
	ProviderID    string              `json:"provider_id" db:"provider_id"`
	Amount        decimal.Decimal     `json:"amount" db:"amount"`
	Currency      string              `json:"currency" db:"currency"`
	Method        PayoutMethod        `json:"method" db:"method"`
	Status        PayoutStatus        `json:"status" db:"status"`
	StatusHistory PayoutStatusHistory `json:"status_history,omitempty" db:"status_history"`
	BatchID       *string             `json:"batch_id,omitempty" db:"batch_id"`
	TransferCode  string              `json:"transfer_code,omitempty" db:"transfer_code"`
	ExternalRef   string              `json:"external_ref,omitempty" db:"external_ref"`
	FailureReason string              `json:"failure_reason,omitempty" db:"failure_reason"`
	RequestedAt   time.Time           `json:"requested_at" db:"requested_at"`
	ApprovedAt    *time.Time          `json:"approved_at,omitempty" db:"approved_at"`
	ApprovedBy    string              `json:"approved_by,omitempty" db:"approved_by"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty" db:"completed_at"`
	Provider      *Provider           `json:"provider,omitempty" db:"provider"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

type PayoutStatusHistoryEntry struct {
	Status        PayoutStatus `json:"status"`
	StatusMessage string       `json:"status_message"`
	Timestamp     time.Time    `json:"timestamp"`
}

type PayoutStatusHistory []PayoutStatusHistoryEntry

// Value implements the driver.Valuer interface.
func (psh PayoutStatusHistory) Value() (driver.Value, error) {
	var statusHistoryJSON []string
	for _, sh := range psh {
		shJSONBytes, err := json.Marshal(sh)
		if err != nil {
			return nil, fmt.Errorf("converting payout status history to json: %w", err)
		}
		statusHistoryJSON = append(statusHistoryJSON, string(shJSONBytes))
	}

	return pq.Array(statusHistoryJSON).Value()
}

var _ driver.Valuer = (*PayoutStatusHistory)(nil)

// Scan implements the sql.Scanner interface.
func (psh *PayoutStatusHistory) Scan(src interface{}) error {
	var statusHistoryJSON []string
	if err := pq.Array(&statusHistoryJSON).Scan(src); err != nil {
		return fmt.Errorf("scanning payout status history value: %w", err)
	}

	for _, sh := range statusHistoryJSON {
		var shEntry PayoutStatusHistoryEntry
		err := json.Unmarshal([]byte(sh), &shEntry)
		if err != nil {
			return fmt.Errorf("unmarshaling payout status_history column: %w", err)
		}
		*psh = append(*psh, shEntry)
	}

	return nil
}

var _ sql.Scanner = (*PayoutStatusHistory)(nil)

type PayoutInsert struct {
	PaymentID  string          `db:"payment_id"`
	BookingID  string          `db:"booking_id"`
	ProviderID string          `db:"provider_id"`
	Amount     decimal.Decimal `db:"amount"`
	Currency   string          `db:"currency"`
	Method     PayoutMethod    `db:"method"`
}

func (pi *PayoutInsert) Validate() error {
	if strings.TrimSpace(pi.PaymentID) == "" {
		return fmt.Errorf("payment_id is required")
	}
	if strings.TrimSpace(pi.BookingID) == "" {
		return fmt.Errorf("booking_id is required")
	}
	if strings.TrimSpace(pi.ProviderID) == "" {
		return fmt.Errorf("provider_id is required")
	}
	if !pi.Amount.IsPositive() {
		return fmt.Errorf("amount must be greater than 0")
	}
	if err := pi.Method.Validate(); err != nil {
		return err
	}
	return nil
}

type PayoutModel struct {
	dbConnectionPool db.DBConnectionPool
}

var (
	DefaultPayoutSortField = SortFieldRequestedAt
	DefaultPayoutSortOrder = SortOrderDESC
	AllowedPayoutFilters   = []FilterKey{FilterKeyStatus, FilterKeyProviderID, FilterKeyMethod, FilterKeyBatchID}
	AllowedPayoutSorts     = []SortField{SortFieldRequestedAt, SortFieldCreatedAt, SortFieldUpdatedAt}
)

const basePayoutQuery = `
	SELECT
		y.id,
		y.payment_id,
		y.booking_id,
		y.provider_id,
		y.amount,
		y.currency,
		y.method,
		y.status,
		y.status_history,
		y.batch_id,
		COALESCE(y.transfer_code, '') AS transfer_code,
		COALESCE(y.external_ref, '') AS external_ref,
		COALESCE(y.failure_reason, '') AS failure_reason,
		y.requested_at,
		y.approved_at,
		COALESCE(y.approved_by, '') AS approved_by,
		y.completed_at,
		y.created_at,
		y.updated_at,
		p.id AS "provider.id",
		p.name AS "provider.name",
		p.email AS "provider.email",
		COALESCE(p.bank_code, '') AS "provider.bank_code",
		COALESCE(p.account_number, '') AS "provider.account_number",
		COALESCE(p.account_name, '') AS "provider.account_name",
		COALESCE(p.recipient_code, '') AS "provider.recipient_code",
		p.created_at AS "provider.created_at",
		p.updated_at AS "provider.updated_at"
	FROM payouts y
	JOIN providers p ON y.provider_id = p.id
`

func (m *PayoutModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Payout, error) {
	payout := Payout{}
	query := basePayoutQuery + ` WHERE y.id = $1`

	err := sqlExec.GetContext(ctx, &payout, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payout ID %s: %w", id, err)
	}

	return &payout, nil
}

// GetForUpdate loads the payout with a row lock. Must run inside a transaction.
func (m *PayoutModel) GetForUpdate(ctx context.Context, dbTx db.DBTransaction, id string) (*Payout, error) {
	payout := Payout{}
	const query = `
		SELECT
			y.id, y.payment_id, y.booking_id, y.provider_id, y.amount, y.currency,
			y.method, y.status, y.status_history, y.batch_id,
			COALESCE(y.transfer_code, '') AS transfer_code,
			COALESCE(y.external_ref, '') AS external_ref,
			COALESCE(y.failure_reason, '') AS failure_reason,
			y.requested_at, y.approved_at, COALESCE(y.approved_by, '') AS approved_by,
			y.completed_at, y.created_at, y.updated_at
		FROM payouts y
		WHERE y.id = $1
		FOR UPDATE
	`

	err := dbTx.GetContext(ctx, &payout, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payout ID %s for update: %w", id, err)
	}

	return &payout, nil
}

func (m *PayoutModel) GetByPaymentID(ctx context.Context, sqlExec db.SQLExecuter, paymentID string) (*Payout, error) {
	payout := Payout{}
	query := basePayoutQuery + ` WHERE y.payment_id = $1`

	err := sqlExec.GetContext(ctx, &payout, query, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payout for payment %s: %w", paymentID, err)
	}

	return &payout, nil
}

// GetByTransferCode resolves the payout a transfer webhook refers to. The
// processor echoes either our transfer code or the payout's own reference.
func (m *PayoutModel) GetByTransferCode(ctx context.Context, sqlExec db.SQLExecuter, transferCode string) (*Payout, error) {
	payout := Payout{}
	query := basePayoutQuery + ` WHERE y.transfer_code = $1 OR y.external_ref = $1`

	err := sqlExec.GetContext(ctx, &payout, query, transferCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payout by transfer code %s: %w", transferCode, err)
	}

	return &payout, nil
}

// Count returns the number of payouts matching the given query parameters.
func (m *PayoutModel) Count(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) (int, error) {
	var count int
	baseQuery := `SELECT count(*) FROM payouts y`

	query, params := newPayoutQuery(baseQuery, queryParams, false, sqlExec)
	err := sqlExec.GetContext(ctx, &count, query, params...)
	if err != nil {
		return 0, fmt.Errorf("counting payouts: %w", err)
	}

	return count, nil
}

// GetAll returns all payouts matching the given query parameters.
func (m *PayoutModel) GetAll(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) ([]Payout, error) {
	payouts := []Payout{}

	query, params := newPayoutQuery(basePayoutQuery, queryParams, true, sqlExec)
	err := sqlExec.SelectContext(ctx, &payouts, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying payouts: %w", err)
	}

	return payouts, nil
}

func (m *PayoutModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert PayoutInsert) (*Payout, error) {
	if err := insert.Validate(); err != nil {
		return nil, fmt.Errorf("validating payout insert: %w", err)
	}

	currency := insert.Currency
	if currency == "" {
		currency = "ZAR"
	}

	const query = `
		INSERT INTO payouts (payment_id, booking_id, provider_id, amount, currency, method)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query, insert.PaymentID, insert.BookingID, insert.ProviderID, insert.Amount, currency, insert.Method)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting payout: %w", err)
	}

	return m.Get(ctx, sqlExec, id)
}

// UpdateToApproved stamps the approval. The status guard makes concurrent
// approvals of the same payout a zero-row no-op for the loser.
func (m *PayoutModel) UpdateToApproved(ctx context.Context, sqlExec db.SQLExecuter, id, adminID string) (int64, error) {
	const query = `
		UPDATE payouts
		SET status = 'APPROVED',
			status_history = array_append(status_history, create_status_history(NOW(), 'APPROVED', $2)),
			approved_at = NOW(),
			approved_by = $2
		WHERE id = $1
		AND status = 'PENDING_APPROVAL'
	`

	return m.execStatusUpdate(ctx, sqlExec, query, ApprovedPayoutStatus, id, adminID)
}

// UpdateToRejected stamps the rejection with the operator's reason.
func (m *PayoutModel) UpdateToRejected(ctx context.Context, sqlExec db.SQLExecuter, id, adminID, reason string) (int64, error) {
	const query = `
		UPDATE payouts
		SET status = 'REJECTED',
			status_history = array_append(status_history, create_status_history(NOW(), 'REJECTED', $3)),
			approved_by = $2,
			failure_reason = NULLIF($3, '')
		WHERE id = $1
		AND status = 'PENDING_APPROVAL'
	`

	result, err := sqlExec.ExecContext(ctx, query, id, adminID, reason)
	if err != nil {
		return 0, fmt.Errorf("updating payout %s status to %s: %w", id, RejectedPayoutStatus, err)
	}
	return result.RowsAffected()
}

// UpdateToProcessing records the initiated transfer. Zero rows means the
// payout was not APPROVED anymore.
func (m *PayoutModel) UpdateToProcessing(ctx context.Context, sqlExec db.SQLExecuter, id, transferCode, externalRef string) (int64, error) {
	const query = `
		UPDATE payouts
		SET status = 'PROCESSING',
			status_history = array_append(status_history, create_status_history(NOW(), 'PROCESSING', NULL)),
			transfer_code = NULLIF($2, ''),
			external_ref = NULLIF($3, '')
		WHERE id = $1
		AND status = 'APPROVED'
	`

	result, err := sqlExec.ExecContext(ctx, query, id, transferCode, externalRef)
	if err != nil {
		return 0, fmt.Errorf("updating payout %s status to %s: %w", id, ProcessingPayoutStatus, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected > 0 {
		log.Ctx(ctx).Infof("Set payout %s status to %s", id, ProcessingPayoutStatus)
	}

	return numRowsAffected, nil
}

// SetTransferCode stores the processor's transfer code once the transfer has
// been initiated. The PROCESSING guard keeps a late response from scribbling
// on a payout that already failed or completed.
func (m *PayoutModel) SetTransferCode(ctx context.Context, sqlExec db.SQLExecuter, id, transferCode string) error {
	const query = `
		UPDATE payouts
		SET transfer_code = NULLIF($2, '')
		WHERE id = $1
		AND status = 'PROCESSING'
	`

	result, err := sqlExec.ExecContext(ctx, query, id, transferCode)
	if err != nil {
		return fmt.Errorf("setting payout %s transfer code: %w", id, err)
	}

	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// UpdateToCompleted finishes the payout from either APPROVED (manual mark
// paid) or PROCESSING (transfer confirmed, batch executed).
func (m *PayoutModel) UpdateToCompleted(ctx context.Context, sqlExec db.SQLExecuter, id, externalRef string) (int64, error) {
	sourceStatuses := CompletedPayoutStatus.SourceStatuses()

	const query = `
		UPDATE payouts
		SET status = 'COMPLETED',
			status_history = array_append(status_history, create_status_history(NOW(), 'COMPLETED', NULL)),
			external_ref = COALESCE(NULLIF($2, ''), external_ref),
			completed_at = NOW()
		WHERE id = $1
		AND status = ANY($3)
	`

	result, err := sqlExec.ExecContext(ctx, query, id, externalRef, pq.Array(sourceStatuses))
	if err != nil {
		return 0, fmt.Errorf("updating payout %s status to %s: %w", id, CompletedPayoutStatus, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected > 0 {
		log.Ctx(ctx).Infof("Set payout %s status to %s", id, CompletedPayoutStatus)
	}

	return numRowsAffected, nil
}

// UpdateToFailed records a failed transfer, from APPROVED or PROCESSING.
func (m *PayoutModel) UpdateToFailed(ctx context.Context, sqlExec db.SQLExecuter, id, reason string) (int64, error) {
	sourceStatuses := FailedPayoutStatus.SourceStatuses()

	const query = `
		UPDATE payouts
		SET status = 'FAILED',
			status_history = array_append(status_history, create_status_history(NOW(), 'FAILED', $2)),
			failure_reason = $2
		WHERE id = $1
		AND status = ANY($3)
	`

	result, err := sqlExec.ExecContext(ctx, query, id, reason, pq.Array(sourceStatuses))
	if err != nil {
		return 0, fmt.Errorf("updating payout %s status to %s: %w", id, FailedPayoutStatus, err)
	}
	return result.RowsAffected()
}

// GetApprovedManualForUpdate locks the payouts eligible for batch export,
// optionally restricted to the given IDs. SKIP LOCKED lets two concurrent
// exports split the set instead of blocking; each payout lands in exactly one
// batch either way.
func (m *PayoutModel) GetApprovedManualForUpdate(ctx context.Context, dbTx db.DBTransaction, payoutIDs ...string) ([]Payout, error) {
	payouts := []Payout{}
	const query = `
		SELECT
			y.id, y.payment_id, y.booking_id, y.provider_id, y.amount, y.currency,
			y.method, y.status, y.batch_id,
			COALESCE(y.transfer_code, '') AS transfer_code,
			COALESCE(y.external_ref, '') AS external_ref,
			y.requested_at, y.approved_at, COALESCE(y.approved_by, '') AS approved_by,
			y.completed_at, y.created_at, y.updated_at
		FROM payouts y
		WHERE y.status = 'APPROVED'
		AND y.method = 'MANUAL'
		AND (cardinality($1::text[]) = 0 OR y.id = ANY($1))
		ORDER BY y.requested_at, y.id
		FOR UPDATE SKIP LOCKED
	`

	err := dbTx.SelectContext(ctx, &payouts, query, pq.Array(payoutIDs))
	if err != nil {
		return nil, fmt.Errorf("querying approved manual payouts: %w", err)
	}

	return payouts, nil
}

// GetByBatchID returns the batch's payouts with bank details joined in.
func (m *PayoutModel) GetByBatchID(ctx context.Context, sqlExec db.SQLExecuter, batchID string) ([]Payout, error) {
	payouts := []Payout{}
	query := basePayoutQuery + ` WHERE y.batch_id = $1 ORDER BY y.requested_at, y.id`

	err := sqlExec.SelectContext(ctx, &payouts, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("querying payouts for batch %s: %w", batchID, err)
	}

	return payouts, nil
}

// AssignToBatch moves the payouts into the batch and to PROCESSING in one
// statement. The returned count must equal len(payoutIDs); anything less
// means a payout changed state between selection and assignment.
func (m *PayoutModel) AssignToBatch(ctx context.Context, sqlExec db.SQLExecuter, payoutIDs []string, batchID string) (int64, error) {
	if len(payoutIDs) == 0 {
		return 0, nil
	}

	const query = `
		UPDATE payouts
		SET batch_id = $1::text,
			status = 'PROCESSING',
			status_history = array_append(status_history, create_status_history(NOW(), 'PROCESSING', $1::text))
		WHERE id = ANY($2)
		AND status = 'APPROVED'
	`

	result, err := sqlExec.ExecContext(ctx, query, batchID, pq.Array(payoutIDs))
	if err != nil {
		return 0, fmt.Errorf("assigning payouts to batch %s: %w", batchID, err)
	}
	return result.RowsAffected()
}

func (m *PayoutModel) execStatusUpdate(ctx context.Context, sqlExec db.SQLExecuter, query string, targetStatus PayoutStatus, args ...interface{}) (int64, error) {
	result, err := sqlExec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("updating payout status to %s: %w", targetStatus, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected > 0 {
		log.Ctx(ctx).Infof("Set payout %v status to %s", args[0], targetStatus)
	}

	return numRowsAffected, nil
}

func newPayoutQuery(baseQuery string, queryParams *QueryParams, paginated bool, sqlExec db.SQLExecuter) (string, []interface{}) {
	qb := NewQueryBuilder(baseQuery)
	if queryParams.Filters[FilterKeyStatus] != nil {
		qb.AddCondition("y.status = ?", queryParams.Filters[FilterKeyStatus])
	}
	if queryParams.Filters[FilterKeyProviderID] != nil {
		qb.AddCondition("y.provider_id = ?", queryParams.Filters[FilterKeyProviderID])
	}
	if queryParams.Filters[FilterKeyMethod] != nil {
		qb.AddCondition("y.method = ?", queryParams.Filters[FilterKeyMethod])
	}
	if queryParams.Filters[FilterKeyBatchID] != nil {
		qb.AddCondition("y.batch_id = ?", queryParams.Filters[FilterKeyBatchID])
	}
	if paginated {
		qb.AddSorting(queryParams.SortBy, queryParams.SortOrder, "y")
		qb.AddPagination(queryParams.Page, queryParams.PageLimit)
	}
	query, params := qb.Build()
	return sqlExec.Rebind(query), params
}
