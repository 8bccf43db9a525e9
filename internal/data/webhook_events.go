package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/sebenzapay/escrow-platform-backend/db"
)

// WebhookEvent is the durable record of one inbound processor event. The
// unique (event_type, external_ref) constraint is the ingest-side dedup:
// the first insert wins, later deliveries collide and are acknowledged
// without effect.
type WebhookEvent struct {
	ID              string          `json:"id" db:"id"`
	EventType       string          `json:"event_type" db:"event_type"`
	ExternalRef     string          `json:"external_ref" db:"external_ref"`
	RawPayload      json.RawMessage `json:"raw_payload,omitempty" db:"raw_payload"`
	Signature       string          `json:"-" db:"signature"`
	Processed       bool            `json:"processed" db:"processed"`
	ProcessingError string          `json:"processing_error,omitempty" db:"processing_error"`
	RetryCount      int             `json:"retry_count" db:"retry_count"`
	ReceivedAt      time.Time       `json:"received_at" db:"received_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
}

type WebhookEventInsert struct {
	EventType   string          `db:"event_type"`
	ExternalRef string          `db:"external_ref"`
	RawPayload  json.RawMessage `db:"raw_payload"`
	Signature   string          `db:"signature"`
}

func (wei *WebhookEventInsert) Validate() error {
	if strings.TrimSpace(wei.EventType) == "" {
		return fmt.Errorf("event_type is required")
	}
	if strings.TrimSpace(wei.ExternalRef) == "" {
		return fmt.Errorf("external_ref is required")
	}
	if len(wei.RawPayload) == 0 {
		return fmt.Errorf("raw_payload is required")
	}
	return nil
}

type WebhookEventModel struct {
	dbConnectionPool db.DBConnectionPool
}

const baseWebhookEventQuery = `
	SELECT
		we.id,
		we.event_type,
		we.external_ref,
		we.raw_payload,
		we.signature,
		we.processed,
		COALESCE(we.processing_error, '') AS processing_error,
		we.retry_count,
		we.received_at,
		we.processed_at
	FROM webhook_events we
`

func (m *WebhookEventModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*WebhookEvent, error) {
	event := WebhookEvent{}
	query := baseWebhookEventQuery + ` WHERE we.id = $1`

	err := sqlExec.GetContext(ctx, &event, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying webhook event ID %s: %w", id, err)
	}

	return &event, nil
}

// Insert persists a new event. A collision on (event_type, external_ref)
// returns ErrRecordAlreadyExists so the caller can acknowledge the duplicate
// delivery without reprocessing.
func (m *WebhookEventModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert WebhookEventInsert) (*WebhookEvent, error) {
	if err := insert.Validate(); err != nil {
		return nil, fmt.Errorf("validating webhook event insert: %w", err)
	}

	const query = `
		INSERT INTO webhook_events (event_type, external_ref, raw_payload, signature)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query, insert.EventType, insert.ExternalRef, insert.RawPayload, insert.Signature)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting webhook event: %w", err)
	}

	return m.Get(ctx, sqlExec, id)
}

// MarkProcessed stamps the event as done. Runs in the same transaction as the
// state transition it caused.
func (m *WebhookEventModel) MarkProcessed(ctx context.Context, sqlExec db.SQLExecuter, id string) error {
	const query = `
		UPDATE webhook_events
		SET processed = TRUE, processed_at = NOW(), processing_error = NULL
		WHERE id = $1
	`

	result, err := sqlExec.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("marking webhook event %s processed: %w", id, err)
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

// MarkProcessingFailed records the failure and bumps retry_count so the
// replay job can pick the event up again, up to its retry budget.
func (m *WebhookEventModel) MarkProcessingFailed(ctx context.Context, sqlExec db.SQLExecuter, id, processingError string) error {
	const query = `
		UPDATE webhook_events
		SET processing_error = $2, retry_count = retry_count + 1
		WHERE id = $1
		AND processed = FALSE
	`

	result, err := sqlExec.ExecContext(ctx, query, id, processingError)
	if err != nil {
		return fmt.Errorf("marking webhook event %s failed: %w", id, err)
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

// GetUnprocessedForReplay returns events still unprocessed after the given
// age with retries left, restricted to event types the dispatcher knows how
// to handle. Oldest first so replay preserves rough arrival order.
func (m *WebhookEventModel) GetUnprocessedForReplay(ctx context.Context, sqlExec db.SQLExecuter, olderThan time.Duration, maxRetries int, eventTypes []string, limit int) ([]WebhookEvent, error) {
	events := []WebhookEvent{}
	query := baseWebhookEventQuery + `
		WHERE we.processed = FALSE
		AND we.received_at < NOW() - $1 * INTERVAL '1 second'
		AND we.retry_count < $2
		AND we.event_type = ANY($3)
		ORDER BY we.received_at
		LIMIT $4
	`

	err := sqlExec.SelectContext(ctx, &events, query, int64(olderThan.Seconds()), maxRetries, pq.Array(eventTypes), limit)
	if err != nil {
		return nil, fmt.Errorf("querying unprocessed webhook events: %w", err)
	}

	return events, nil
}
