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

// Booking is the commercial parent of a payment: one client buying one
// service from one provider for a fixed amount.
type Booking struct {
	ID            string               `json:"id" db:"id"`
	ClientID      string               `json:"client_id" db:"client_id"`
	ProviderID    string               `json:"provider_id" db:"provider_id"`
	ServiceName   string               `json:"service_name" db:"service_name"`
	Amount        decimal.Decimal      `json:"amount" db:"amount"`
	Currency      string               `json:"currency" db:"currency"`
	ScheduledFor  *time.Time           `json:"scheduled_for,omitempty" db:"scheduled_for"`
	Status        BookingStatus        `json:"status" db:"status"`
	StatusHistory BookingStatusHistory `json:"status_history,omitempty" db:"status_history"`
	Provider      *Provider            `json:"provider,omitempty" db:"provider"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at" db:"updated_at"`
}

type BookingStatusHistoryEntry struct {
	Status        BookingStatus `json:"status"`
	StatusMessage string        `json:"status_message"`
	Timestamp     time.Time     `json:"timestamp"`
}

type BookingStatusHistory []BookingStatusHistoryEntry

// Value implements the driver.Valuer interface.
func (bsh BookingStatusHistory) Value() (driver.Value, error) {
	var statusHistoryJSON []string
	for _, sh := range bsh {
		shJSONBytes, err := json.Marshal(sh)
		if err != nil {
			return nil, fmt.Errorf("converting booking status history to json: %w", err)
		}
		statusHistoryJSON = append(statusHistoryJSON, string(shJSONBytes))
	}

	return pq.Array(statusHistoryJSON).Value()
}

var _ driver.Valuer = (*BookingStatusHistory)(nil)

// Scan implements the sql.Scanner interface.
func (bsh *BookingStatusHistory) Scan(src interface{}) error {
	var statusHistoryJSON []string
	if err := pq.Array(&statusHistoryJSON).Scan(src); err != nil {
		return fmt.Errorf("scanning booking status history value: %w", err)
	}

	for _, sh := range statusHistoryJSON {
		var shEntry BookingStatusHistoryEntry
		err := json.Unmarshal([]byte(sh), &shEntry)
		if err != nil {
			return fmt.Errorf("unmarshaling booking status_history column: %w", err)
		}
		*bsh = append(*bsh, shEntry)
	}

	return nil
}

var _ sql.Scanner = (*BookingStatusHistory)(nil)

type BookingInsert struct {
	ClientID     string          `db:"client_id"`
	ProviderID   string          `db:"provider_id"`
	ServiceName  string          `db:"service_name"`
	Amount       decimal.Decimal `db:"amount"`
	Currency     string          `db:"currency"`
	ScheduledFor *time.Time      `db:"scheduled_for"`
}

func (bi *BookingInsert) Validate() error {
	if strings.TrimSpace(bi.ClientID) == "" {
		return fmt.Errorf("client_id is required")
	}
	if strings.TrimSpace(bi.ProviderID) == "" {
		return fmt.Errorf("provider_id is required")
	}
	if strings.TrimSpace(bi.ServiceName) == "" {
		return fmt.Errorf("service_name is required")
	}
	if !bi.Amount.IsPositive() {
		return fmt.Errorf("amount must be greater than 0")
	}
	return nil
}

type BookingModel struct {
	dbConnectionPool db.DBConnectionPool
}

var (
	DefaultBookingSortField = SortFieldCreatedAt
	DefaultBookingSortOrder = SortOrderDESC
	AllowedBookingFilters   = []FilterKey{FilterKeyStatus, FilterKeyClientID, FilterKeyProviderID, FilterKeyCreatedAtAfter, FilterKeyCreatedAtBefore}
	AllowedBookingSorts     = []SortField{SortFieldCreatedAt, SortFieldUpdatedAt}
)

const baseBookingQuery = `
	SELECT
		b.id,
		b.client_id,
		b.provider_id,
		b.service_name,
		b.amount,
		b.currency,
		b.scheduled_for,
		b.status,
		b.status_history,
		b.created_at,
		b.updated_at,
		p.id AS "provider.id",
		p.name AS "provider.name",
		p.email AS "provider.email",
		p.created_at AS "provider.created_at",
		p.updated_at AS "provider.updated_at"
	FROM bookings b
	JOIN providers p ON b.provider_id = p.id
`

func (m *BookingModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Booking, error) {
	booking := Booking{}
	query := baseBookingQuery + ` WHERE b.id = $1`

	err := sqlExec.GetContext(ctx, &booking, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying booking ID %s: %w", id, err)
	}

	return &booking, nil
}

// GetForUpdate loads the booking with a row lock. Must run inside a transaction.
func (m *BookingModel) GetForUpdate(ctx context.Context, dbTx db.DBTransaction, id string) (*Booking, error) {
	booking := Booking{}
	const query = `
		SELECT
			b.id, b.client_id, b.provider_id, b.service_name, b.amount, b.currency,
			b.scheduled_for, b.status, b.status_history, b.created_at, b.updated_at
		FROM bookings b
		WHERE b.id = $1
		FOR UPDATE
	`

	err := dbTx.GetContext(ctx, &booking, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying booking ID %s for update: %w", id, err)
	}

	return &booking, nil
}

// Count returns the number of bookings matching the given query parameters.
func (m *BookingModel) Count(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) (int, error) {
	var count int
	baseQuery := `SELECT count(*) FROM bookings b`

	query, params := newBookingQuery(baseQuery, queryParams, false, sqlExec)
	err := sqlExec.GetContext(ctx, &count, query, params...)
	if err != nil {
		return 0, fmt.Errorf("counting bookings: %w", err)
	}

	return count, nil
}

// GetAll returns all bookings matching the given query parameters.
func (m *BookingModel) GetAll(ctx context.Context, sqlExec db.SQLExecuter, queryParams *QueryParams) ([]Booking, error) {
	bookings := []Booking{}

	query, params := newBookingQuery(baseBookingQuery, queryParams, true, sqlExec)
	err := sqlExec.SelectContext(ctx, &bookings, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}

	return bookings, nil
}

func (m *BookingModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert BookingInsert) (*Booking, error) {
	if err := insert.Validate(); err != nil {
		return nil, fmt.Errorf("validating booking insert: %w", err)
	}

	currency := insert.Currency
	if currency == "" {
		currency = "ZAR"
	}

	const query = `
		INSERT INTO bookings (client_id, provider_id, service_name, amount, currency, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query, insert.ClientID, insert.ProviderID, insert.ServiceName, insert.Amount, currency, insert.ScheduledFor)
	if err != nil {
		return nil, fmt.Errorf("inserting booking: %w", err)
	}

	return m.Get(ctx, sqlExec, id)
}

// UpdateStatus advances the booking to targetStatus when its current status is
// one of the machine's source states for that target. Returns the number of
// rows updated: zero means the booking was not in a source state, which
// callers treat as already-performed.
func (m *BookingModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, bookingID string, targetStatus BookingStatus, statusMessage string) (int64, error) {
	sourceStatuses := targetStatus.SourceStatuses()
	if len(sourceStatuses) == 0 {
		return 0, fmt.Errorf("booking status %s has no source statuses", targetStatus)
	}

	query := `
		UPDATE bookings
		SET status = $1::text::booking_status,
			status_history = array_append(status_history, create_status_history(NOW(), $1::text, $2))
		WHERE id = $3
		AND status = ANY($4)
	`

	result, err := sqlExec.ExecContext(ctx, query, targetStatus, sql.NullString{String: statusMessage, Valid: statusMessage != ""}, bookingID, pq.Array(sourceStatuses))
	if err != nil {
		return 0, fmt.Errorf("updating booking %s status to %s: %w", bookingID, targetStatus, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected > 0 {
		log.Ctx(ctx).Infof("Set booking %s status to %s", bookingID, targetStatus)
	}

	return numRowsAffected, nil
}

func newBookingQuery(baseQuery string, queryParams *QueryParams, paginated bool, sqlExec db.SQLExecuter) (string, []interface{}) {
	qb := NewQueryBuilder(baseQuery)
	if queryParams.Filters[FilterKeyStatus] != nil {
		qb.AddCondition("b.status = ?", queryParams.Filters[FilterKeyStatus])
	}
	if queryParams.Filters[FilterKeyClientID] != nil {
		qb.AddCondition("b.client_id = ?", queryParams.Filters[FilterKeyClientID])
	}
	if queryParams.Filters[FilterKeyProviderID] != nil {
		qb.AddCondition("b.provider_id = ?", queryParams.Filters[FilterKeyProviderID])
	}
	if queryParams.Filters[FilterKeyCreatedAtAfter] != nil {
		qb.AddCondition("b.created_at >= ?", queryParams.Filters[FilterKeyCreatedAtAfter])
	}
	if queryParams.Filters[FilterKeyCreatedAtBefore] != nil {
		qb.AddCondition("b.created_at <= ?", queryParams.Filters[FilterKeyCreatedAtBefore])
	}
	if paginated {
		qb.AddSorting(queryParams.SortBy, queryParams.SortOrder, "b")
		qb.AddPagination(queryParams.Page, queryParams.PageLimit)
	}
	query, params := qb.Build()
	return sqlExec.Rebind(query), params
}
