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

// Payment tracks one attempt to collect a booking's money. The amount always
// splits exactly into platform_fee + escrow_amount; the database enforces it.
type Payment struct {
	ID               string               `json:"id" db:"id"`
	BookingID        string               `json:"booking_id" db:"booking_id"`
	ClientID         string               `json:"client_id" db:"client_id"`
	ProviderID       string               `json:"provider_id" db:"provider_id"`
	Amount           decimal.Decimal      `json:"amount" db:"amount"`
	PlatformFee      decimal.Decimal      `json:"platform_fee" db:"platform_fee"`
	EscrowAmount     decimal.Decimal      `json:"escrow_amount" db:"escrow_amount"`
	Currency         string               `json:"currency" db:"currency"`
	PaymentMethod    PaymentMethod        `json:"payment_method" db:"payment_method"`
	Status           PaymentStatus        `json:"status" db:"status"`
	StatusHistory    PaymentStatusHistory `json:"status_history,omitempty" db:"status_history"`
	ExternalRef      string               `json:"external_ref,omitempty" db:"external_ref"`
	AuthorizationURL string               `json:"authorization_url,omitempty" db:"authorization_url"`
	FailureReason    string               `json:"failure_reason,omitempty" db:"failure_reason"`
	PaidAt           *time.Time           `json:"paid_at,omitempty" db:"paid_at"`
	ReleasedAt       *time.Time           `json:"released_at,omitempty" db:"released_at"`
	CreatedAt        time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at" db:"updated_at"`
}

type PaymentStatusHistoryEntry struct {
	Status        PaymentStatus `json:"status"`
	StatusMessage string        `json:"status_message"`
	Timestamp     time.Time     `json:"timestamp"`
}

type PaymentStatusHistory []PaymentStatusHistoryEntry

// Value implements the driver.Valuer interface.
func (psh PaymentStatusHistory) Value() (driver.Value, error) {
	var statusHistoryJSON []string
	for _, sh := range psh {
		shJSONBytes, err := json.Marshal(sh)
		if err != nil {
			return nil, fmt.Errorf("converting payment status history to json: %w", err)
		}
		statusHistoryJSON = append(statusHistoryJSON, string(shJSONBytes))
	}

	return pq.Array(statusHistoryJSON).Value()
}

var _ driver.Valuer = (*PaymentStatusHistory)(nil)

// Scan implements the sql.Scanner interface.
func (psh *PaymentStatusHistory) Scan(src interface{}) error {
	var statusHistoryJSON []string
	if err := pq.Array(&statusHistoryJSON).Scan(src); err != nil {
		return fmt.Errorf("scanning payment status history value: %w", err)
	}

	for _, sh := range statusHistoryJSON {
		var shEntry PaymentStatusHistoryEntry
		err := json.Unmarshal([]byte(sh), &shEntry)
		if err != nil {
			return fmt.Errorf("unmarshaling payment status_history column: %w", err)
		}
		*psh = append(*psh, shEntry)
	}

	return nil
}

var _ sql.Scanner = (*PaymentStatusHistory)(nil)

type PaymentInsert struct {
	BookingID        string          `db:"booking_id"`
	ClientID         string          `db:"client_id"`
	ProviderID       string          `db:"provider_id"`
	Amount           decimal.Decimal `db:"amount"`
	PlatformFee      decimal.Decimal `db:"platform_fee"`
	EscrowAmount     decimal.Decimal `db:"escrow_amount"`
	Currency         string          `db:"currency"`
	PaymentMethod    PaymentMethod   `db:"payment_method"`
	ExternalRef      string          `db:"external_ref"`
	AuthorizationURL string          `db:"authorization_url"`
}

func (pi *PaymentInsert) Validate() error {
	if strings.TrimSpace(pi.BookingID) == "" {
		return fmt.Errorf("booking_id is required")
	}
	if strings.TrimSpace(pi.ClientID) == "" {
		return fmt.Errorf("client_id is required")
	}
	if strings.TrimSpace(pi.ProviderID) == "" {
		return fmt.Errorf("provider_id is required")
	}
	if !pi.Amount.IsPositive() {
		return fmt.Errorf("amount must be greater than 0")
	}
	if pi.PlatformFee.IsNegative() {
		return fmt.Errorf("platform_fee cannot be negative")
	}
	if pi.EscrowAmount.IsNegative() {
		return fmt.Errorf("escrow_amount cannot be negative")
	}
	if !pi.PlatformFee.Add(pi.EscrowAmount).Equal(pi.Amount) {
		return fmt.Errorf("platform_fee %s + escrow_amount %s does not add up to amount %s", pi.PlatformFee, pi.EscrowAmount, pi.Amount)
	}
	if err := pi.PaymentMethod.Validate(); err != nil {
		return err
	}
	return nil
}

type PaymentModel struct {
	dbConnectionPool db.DBConnectionPool
}

var (
	DefaultPaymentSortField = SortFieldCreatedAt
	DefaultPaymentSortOrder = SortOrderDESC
	AllowedPaymentFilters   = []FilterKey{FilterKeyStatus, FilterKeyClientID, FilterKeyProviderID, FilterKeyPaymentMethod, FilterKeyCreatedAtAfter, FilterKeyCreatedAtBefore}
	AllowedPaymentSorts     = []SortField{SortFieldCreatedAt, SortFieldUpdatedAt}
)

const basePaymentQuery = `
	SELECT
		p.id,
		p.booking_id,
		p.client_id,
		p.provider_id,
		p.amount,
		p.platform_fee,
		p.escrow_amount,
		p.currency,
		p.payment_method,
		p.status,
		p.status_history,
		COALESCE(p.external_ref, '') AS external_ref,
		COALESCE(p.authorization_url, '') AS authorization_url,
		COALESCE(p.failure_reason, '') AS failure_reason,
		p.paid_at,
		p.released_at,
		p.created_at,
		p.updated_at
	FROM payments p
`

func (m *PaymentModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Payment, error) {
	payment := Payment{}
	query := basePaymentQuery + ` WHERE p.id = $1`

	err := sqlExec.GetContext(ctx, &payment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payment ID %s: %w", id, err)
	}

	return &payment, nil
}

// GetByExternalRef resolves a payment from the processor-side reference
// carried by webhook events.
func (m *PaymentModel) GetByExternalRef(ctx context.Context, sqlExec db.SQLExecuter, externalRef string) (*Payment, error) {
	payment := Payment{}
	query := basePaymentQuery + ` WHERE p.external_ref = $1`

	err := sqlExec.GetContext(ctx, &payment, query, externalRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payment by external ref %s: %w", externalRef, err)
	}

	return &payment, nil
}

// GetLiveByBookingID returns the booking's non-FAILED payment, if any. The
// partial unique index guarantees at most one exists.
func (m *PaymentModel) GetLiveByBookingID(ctx context.Context, sqlExec db.SQLExecuter, bookingID string) (*Payment, error) {
	payment := Payment{}
	query := basePaymentQuery + ` WHERE p.booking_id = $1 AND p.status != 'FAILED'`

	err := sqlExec.GetContext(ctx, &payment, query, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying live payment for booking %s: %w", bookingID, err)
	}

	return &payment, nil
}

// GetForUpdate loads the payment with a row lock. Must run inside a transaction.
func (m *PaymentModel) GetForUpdate(ctx context.Context, dbTx db.DBTransaction, id string) (*Payment, error) {
	payment := Payment{}
	query := basePaymentQuery + ` WHERE p.id = $1 FOR UPDATE`

	err := dbTx.GetContext(ctx, &payment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying payment ID %s for update: %w", id, err)
	}

	return &payment, nil
}

// Count returns the number of payments matching the given query parameters.
func (m *PaymentModel) Count(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) (int, error) {
	var count int
	baseQuery := `SELECT count(*) FROM payments p`

	query, params := newPaymentQuery(baseQuery, queryParams, false, sqlExec)
	err := sqlExec.GetContext(ctx, &count, query, params...)
	if err != nil {
		return 0, fmt.Errorf("counting payments: %w", err)
	}

	return count, nil
}

// GetAll returns all payments matching the given query parameters.
func (m *PaymentModel) GetAll(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) ([]Payment, error) {
	payments := []Payment{}

	query, params := newPaymentQuery(basePaymentQuery, queryParams, true, sqlExec)
	err := sqlExec.SelectContext(ctx, &payments, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying payments: %w", err)
	}

	return payments, nil
}

func (m *PaymentModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert PaymentInsert) (*Payment, error) {
	if err := insert.Validate(); err != nil {
		return nil, fmt.Errorf("validating payment insert: %w", err)
	}

	currency := insert.Currency
	if currency == "" {
		currency = "ZAR"
	}

	const query = `
		INSERT INTO payments (
			booking_id, client_id, provider_id,
			amount, platform_fee, escrow_amount, currency,
			payment_method, external_ref, authorization_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''))
		RETURNING id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query,
		insert.BookingID, insert.ClientID, insert.ProviderID,
		insert.Amount, insert.PlatformFee, insert.EscrowAmount, currency,
		insert.PaymentMethod, insert.ExternalRef, insert.AuthorizationURL)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting payment: %w", err)
	}

	return m.Get(ctx, sqlExec, id)
}

// UpdateProcessorRefs stores the reference and redirect URL handed back by
// the processor when the charge was initialized. Only a PENDING payment can
// be updated; anything else means the intent already moved on.
func (m *PaymentModel) UpdateProcessorRefs(ctx context.Context, sqlExec db.SQLExecuter, id, externalRef, authorizationURL string) error {
	const query = `
		UPDATE payments
		SET external_ref = NULLIF($2, ''),
			authorization_url = NULLIF($3, '')
		WHERE id = $1
		AND status = 'PENDING'
	`

	result, err := sqlExec.ExecContext(ctx, query, id, externalRef, authorizationURL)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrRecordAlreadyExists
		}
		return fmt.Errorf("updating payment %s processor refs: %w", id, err)
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

// MarkEscrowed performs the optimistic PENDING->ESCROW transition and stamps
// paid_at. Zero rows affected means another writer already moved the payment.
func (m *PaymentModel) MarkEscrowed(ctx context.Context, sqlExec db.SQLExecuter, paymentID string) (int64, error) {
	const query = `
		UPDATE payments
		SET status = 'ESCROW',
			status_history = array_append(status_history, create_status_history(NOW(), 'ESCROW', NULL)),
			paid_at = NOW()
		WHERE id = $1
		AND status = 'PENDING'
	`

	return m.execStatusUpdate(ctx, sqlExec, query, EscrowPaymentStatus, paymentID)
}

// MarkFailed moves a PENDING payment to FAILED and records the processor's reason.
func (m *PaymentModel) MarkFailed(ctx context.Context, sqlExec db.SQLExecuter, paymentID, reason string) (int64, error) {
	const query = `
		UPDATE payments
		SET status = 'FAILED',
			status_history = array_append(status_history, create_status_history(NOW(), 'FAILED', $2)),
			failure_reason = $2
		WHERE id = $1
		AND status = 'PENDING'
	`

	result, err := sqlExec.ExecContext(ctx, query, paymentID, reason)
	if err != nil {
		return 0, fmt.Errorf("updating payment %s status to %s: %w", paymentID, FailedPaymentStatus, err)
	}
	return result.RowsAffected()
}

// MarkReleased moves an ESCROW payment to RELEASED and stamps released_at.
func (m *PaymentModel) MarkReleased(ctx context.Context, sqlExec db.SQLExecuter, paymentID string) (int64, error) {
	const query = `
		UPDATE payments
		SET status = 'RELEASED',
			status_history = array_append(status_history, create_status_history(NOW(), 'RELEASED', NULL)),
			released_at = NOW()
		WHERE id = $1
		AND status = 'ESCROW'
	`

	return m.execStatusUpdate(ctx, sqlExec, query, ReleasedPaymentStatus, paymentID)
}

// MarkRefunded reverses an ESCROW payment.
func (m *PaymentModel) MarkRefunded(ctx context.Context, sqlExec db.SQLExecuter, paymentID, reason string) (int64, error) {
	const query = `
		UPDATE payments
		SET status = 'REFUNDED',
			status_history = array_append(status_history, create_status_history(NOW(), 'REFUNDED', $2)),
			failure_reason = $2
		WHERE id = $1
		AND status = 'ESCROW'
	`

	result, err := sqlExec.ExecContext(ctx, query, paymentID, reason)
	if err != nil {
		return 0, fmt.Errorf("updating payment %s status to %s: %w", paymentID, RefundedPaymentStatus, err)
	}
	return result.RowsAffected()
}

// MarkCashPaid records the client's claim that cash changed hands.
func (m *PaymentModel) MarkCashPaid(ctx context.Context, sqlExec db.SQLExecuter, paymentID string) (int64, error) {
	const query = `
		UPDATE payments
		SET status = 'CASH_PAID',
			status_history = array_append(status_history, create_status_history(NOW(), 'CASH_PAID', NULL)),
			paid_at = NOW()
		WHERE id = $1
		AND status = 'PENDING'
		AND payment_method = 'CASH'
	`

	return m.execStatusUpdate(ctx, sqlExec, query, CashPaidPaymentStatus, paymentID)
}

// MarkCashReceived records the provider's confirmation of the cash claim.
func (m *PaymentModel) MarkCashReceived(ctx context.Context, sqlExec db.SQLExecuter, paymentID string) (int64, error) {
	const query = `
		UPDATE payments
		SET status = 'CASH_RECEIVED',
			status_history = array_append(status_history, create_status_history(NOW(), 'CASH_RECEIVED', NULL)),
			released_at = NOW()
		WHERE id = $1
		AND status = 'CASH_PAID'
	`

	return m.execStatusUpdate(ctx, sqlExec, query, CashReceivedPaymentStatus, paymentID)
}

func (m *PaymentModel) execStatusUpdate(ctx context.Context, sqlExec db.SQLExecuter, query string, targetStatus PaymentStatus, paymentID string) (int64, error) {
	result, err := sqlExec.ExecContext(ctx, query, paymentID)
	if err != nil {
		return 0, fmt.Errorf("updating payment %s status to %s: %w", paymentID, targetStatus, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected > 0 {
		log.Ctx(ctx).Infof("Set payment %s status to %s", paymentID, targetStatus)
	}

	return numRowsAffected, nil
}

// GetStalePending returns card payments that have sat in PENDING beyond the
// given age, including rows whose processor initialization never stored a
// reference. The reconciler asks the processor what happened to the former
// and fails the latter outright.
func (m *PaymentModel) GetStalePending(ctx context.Context, sqlExec db.SQLExecuter, olderThan time.Duration, limit int) ([]Payment, error) {
	payments := []Payment{}
	query := basePaymentQuery + `
		WHERE p.status = 'PENDING'
		AND p.payment_method = 'CARD'
		AND p.created_at < NOW() - $1 * INTERVAL '1 second'
		ORDER BY p.created_at
		LIMIT $2
	`

	err := sqlExec.SelectContext(ctx, &payments, query, int64(olderThan.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("querying stale pending payments: %w", err)
	}

	return payments, nil
}

func newPaymentQuery(baseQuery string, queryParams *QueryParams, paginated bool, sqlExec db.SQLExecuter) (string, []interface{}) {
	qb := NewQueryBuilder(baseQuery)
	if queryParams.Filters[FilterKeyStatus] != nil {
		qb.AddCondition("p.status = ?", queryParams.Filters[FilterKeyStatus])
	}
	if queryParams.Filters[FilterKeyClientID] != nil {
		qb.AddCondition("p.client_id = ?", queryParams.Filters[FilterKeyClientID])
	}
	if queryParams.Filters[FilterKeyProviderID] != nil {
		qb.AddCondition("p.provider_id = ?", queryParams.Filters[FilterKeyProviderID])
	}
	if queryParams.Filters[FilterKeyPaymentMethod] != nil {
		qb.AddCondition("p.payment_method = ?", queryParams.Filters[FilterKeyPaymentMethod])
	}
	if queryParams.Filters[FilterKeyCreatedAtAfter] != nil {
		qb.AddCondition("p.created_at >= ?", queryParams.Filters[FilterKeyCreatedAtAfter])
	}
	if queryParams.Filters[FilterKeyCreatedAtBefore] != nil {
		qb.AddCondition("p.created_at <= ?", queryParams.Filters[FilterKeyCreatedAtBefore])
	}
	if paginated {
		qb.AddSorting(queryParams.SortBy, queryParams.SortOrder, "p")
		qb.AddPagination(queryParams.Page, queryParams.PageLimit)
	}
	query, params := qb.Build()
	return sqlExec.Rebind(query), params
}
