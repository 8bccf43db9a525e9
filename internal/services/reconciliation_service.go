package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/crashtracker"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/paystack"
)

const (
	// webhookReplayBatchLimit caps how many stored events one replay run picks
	// up. The next run gets whatever is left.
	webhookReplayBatchLimit = 100
	// stalePaymentBatchLimit caps how many pending payments one verification
	// run checks against the processor.
	stalePaymentBatchLimit = 50

	// reconcilerSignature marks webhook event rows the reconciler synthesized
	// from a verification result rather than received from the processor.
	reconcilerSignature = "reconciler-verification"
)

// WebhookEventProcessor dispatches a stored webhook event through the same
// path a live delivery takes.
type WebhookEventProcessor interface {
	ProcessStoredEvent(ctx context.Context, webhookEvent data.WebhookEvent) error
}

type ReconciliationServiceInterface interface {
	ReplayUnprocessedWebhooks(ctx context.Context) (int, error)
	VerifyStalePendingPayments(ctx context.Context) (int, error)
}

var _ ReconciliationServiceInterface = (*ReconciliationService)(nil)

// ReconciliationService closes the gaps webhooks leave behind: stored events
// that failed to process get replayed, and card payments stuck in PENDING get
// their authoritative state pulled from the processor. Both paths funnel into
// the stored-event dispatch, so the idempotency and ordering rules are the
// same as for live deliveries.
type ReconciliationService struct {
	models               *data.Models
	dbConnectionPool     db.DBConnectionPool
	processorClient      paystack.ClientInterface
	webhookProcessor     WebhookEventProcessor
	crashTrackerClient   crashtracker.CrashTrackerClient
	replayThreshold      time.Duration
	maxWebhookRetries    int
	pendingPaymentMaxAge time.Duration
}

func NewReconciliationService(
	models *data.Models,
	dbConnectionPool db.DBConnectionPool,
	processorClient paystack.ClientInterface,
	webhookProcessor WebhookEventProcessor,
	crashTrackerClient crashtracker.CrashTrackerClient,
	replayThreshold time.Duration,
	maxWebhookRetries int,
	pendingPaymentMaxAge time.Duration,
) *ReconciliationService {
	return &ReconciliationService{
		models:               models,
		dbConnectionPool:     dbConnectionPool,
		processorClient:      processorClient,
		webhookProcessor:     webhookProcessor,
		crashTrackerClient:   crashTrackerClient,
		replayThreshold:      replayThreshold,
		maxWebhookRetries:    maxWebhookRetries,
		pendingPaymentMaxAge: pendingPaymentMaxAge,
	}
}

// ReplayUnprocessedWebhooks re-dispatches stored events that are still
// unprocessed past the replay threshold. Each failed attempt bumps the
// event's retry count; an event burning its last attempt is reported to the
// crash tracker exactly once and never picked up again.
func (s *ReconciliationService) ReplayUnprocessedWebhooks(ctx context.Context) (int, error) {
	events, err := s.models.WebhookEvents.GetUnprocessedForReplay(ctx, s.dbConnectionPool, s.replayThreshold, s.maxWebhookRetries, paystack.KnownEventTypes(), webhookReplayBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("querying webhook events for replay: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	log.Ctx(ctx).Infof("replaying %d unprocessed webhook event(s)", len(events))

	processedCount := 0
	for _, event := range events {
		if procErr := s.webhookProcessor.ProcessStoredEvent(ctx, event); procErr != nil {
			log.Ctx(ctx).Errorf("replaying webhook event %s (%s): %v", event.ID, event.EventType, procErr)
			if event.RetryCount+1 >= s.maxWebhookRetries {
				s.crashTrackerClient.LogAndReportMessages(ctx, fmt.Sprintf("webhook event %s (%s, ref %s) exhausted %d replay attempts: %v", event.ID, event.EventType, event.ExternalRef, s.maxWebhookRetries, procErr))
			}
			continue
		}
		processedCount++
	}

	return processedCount, nil
}

// VerifyStalePendingPayments asks the processor for the authoritative state
// of card payments stuck in PENDING and feeds the answer through the webhook
// path as a synthesized event. The dedup constraint on webhook_events makes a
// late real delivery collide harmlessly with the synthesized row.
func (s *ReconciliationService) VerifyStalePendingPayments(ctx context.Context) (int, error) {
	payments, err := s.models.Payments.GetStalePending(ctx, s.dbConnectionPool, s.pendingPaymentMaxAge, stalePaymentBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("querying stale pending payments: %w", err)
	}
	if len(payments) == 0 {
		return 0, nil
	}

	log.Ctx(ctx).Infof("verifying %d stale pending payment(s) with the processor", len(payments))

	verifiedCount := 0
	for _, payment := range payments {
		// A PENDING card payment with no reference means the intent crashed
		// between committing the row and storing the processor refs. The
		// processor has nothing to verify; failing the row frees the booking
		// for a fresh intent.
		if payment.ExternalRef == "" {
			numRowsAffected, failErr := s.models.Payments.MarkFailed(ctx, s.dbConnectionPool, payment.ID, "payment processor initialization never completed")
			if failErr != nil {
				log.Ctx(ctx).Errorf("failing uninitialized payment %s: %v", payment.ID, failErr)
				continue
			}
			if numRowsAffected > 0 {
				log.Ctx(ctx).Infof("failed stale pending payment %s: no processor reference", payment.ID)
				verifiedCount++
			}
			continue
		}

		verification, verifyErr := s.processorClient.VerifyTransaction(ctx, payment.ExternalRef)
		if verifyErr != nil {
			log.Ctx(ctx).Errorf("verifying payment %s (%s) with the processor: %v", payment.ID, payment.ExternalRef, verifyErr)
			continue
		}
		if verification.Status == paystack.TransactionStatusPending {
			// The customer may still be mid-checkout; check again next run.
			continue
		}

		if dispatchErr := s.dispatchVerification(ctx, payment, verification); dispatchErr != nil {
			log.Ctx(ctx).Errorf("dispatching verification for payment %s: %v", payment.ID, dispatchErr)
			continue
		}
		verifiedCount++
	}

	return verifiedCount, nil
}

// dispatchVerification stores the verification result as a webhook event and
// runs it through the stored-event path. A row already present means the real
// webhook arrived in the meantime; the replay job owns it from there.
func (s *ReconciliationService) dispatchVerification(ctx context.Context, payment data.Payment, verification *paystack.TransactionVerification) error {
	event := paystack.EventForVerification(verification)
	rawPayload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling synthesized event for payment %s: %w", payment.ID, err)
	}

	webhookEvent, err := s.models.WebhookEvents.Insert(ctx, s.dbConnectionPool, data.WebhookEventInsert{
		EventType:   string(event.Type),
		ExternalRef: event.ExternalRef(),
		RawPayload:  rawPayload,
		Signature:   reconcilerSignature,
	})
	if err != nil {
		if errors.Is(err, data.ErrRecordAlreadyExists) {
			log.Ctx(ctx).Infof("webhook event for payment %s already stored; skipping synthesized copy", payment.ID)
			return nil
		}
		return fmt.Errorf("inserting synthesized webhook event: %w", err)
	}

	log.Ctx(ctx).Infof("synthesized %s event for payment %s from verification", event.Type, payment.ID)

	if procErr := s.webhookProcessor.ProcessStoredEvent(ctx, *webhookEvent); procErr != nil {
		return fmt.Errorf("processing synthesized webhook event %s: %w", webhookEvent.ID, procErr)
	}
	return nil
}
