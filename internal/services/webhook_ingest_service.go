package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/crashtracker"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/paystack"
)

var (
	ErrInvalidWebhookSignature = errors.New("webhook signature verification failed")
	ErrMalformedWebhookPayload = errors.New("webhook payload is malformed")
)

const (
	webhookSeenCacheSize = 2048
	webhookSeenCacheTTL  = 10 * time.Minute
)

// PayoutCompleter is the slice of the payout service the webhook dispatcher
// needs: running the completion transaction when the processor confirms a
// transfer.
type PayoutCompleter interface {
	CompletePayoutInTx(ctx context.Context, dbTx db.DBTransaction, payoutID, externalRef string) error
}

type WebhookIngestServiceInterface interface {
	Ingest(ctx context.Context, payload []byte, signature string) error
	ProcessStoredEvent(ctx context.Context, webhookEvent data.WebhookEvent) error
}

var _ WebhookIngestServiceInterface = (*WebhookIngestService)(nil)

// WebhookIngestService receives processor webhooks and turns them into state
// transitions. Deliveries are persisted before they are processed; the
// UNIQUE(event_type, external_ref) constraint is what makes duplicates
// harmless, the in-memory seen cache only spares the database a round trip.
type WebhookIngestService struct {
	models              *data.Models
	dbConnectionPool    db.DBConnectionPool
	secretKey           string
	payoutCompleter     PayoutCompleter
	notificationService NotificationServiceInterface
	crashTrackerClient  crashtracker.CrashTrackerClient
	seenCache           *expirable.LRU[string, struct{}]
}

func NewWebhookIngestService(models *data.Models, dbConnectionPool db.DBConnectionPool, secretKey string, payoutCompleter PayoutCompleter, notificationService NotificationServiceInterface, crashTrackerClient crashtracker.CrashTrackerClient) *WebhookIngestService {
	return &WebhookIngestService{
		models:              models,
		dbConnectionPool:    dbConnectionPool,
		secretKey:           secretKey,
		payoutCompleter:     payoutCompleter,
		notificationService: notificationService,
		crashTrackerClient:  crashTrackerClient,
		seenCache:           expirable.NewLRU[string, struct{}](webhookSeenCacheSize, nil, webhookSeenCacheTTL),
	}
}

// Ingest authenticates, persists and processes one webhook delivery. A nil
// return means the delivery is acknowledged: either it was processed, or it
// is a duplicate, or it is stored with a processing error for the replay job
// to retry. Only signature and parse failures bubble up to the handler.
func (s *WebhookIngestService) Ingest(ctx context.Context, payload []byte, signature string) error {
	// 1. Authenticate before anything touches the database.
	if !paystack.VerifyWebhookSignature(payload, signature, s.secretKey) {
		return ErrInvalidWebhookSignature
	}

	// 2. Parse the envelope.
	event, err := paystack.ParseEvent(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedWebhookPayload, err)
	}
	externalRef := event.ExternalRef()
	if externalRef == "" {
		return fmt.Errorf("%w: event carries no reference", ErrMalformedWebhookPayload)
	}

	// 3. Short-circuit deliveries we have seen recently. Advisory only; the
	// database constraint is the authority.
	cacheKey := string(event.Type) + ":" + externalRef
	if _, seen := s.seenCache.Get(cacheKey); seen {
		return nil
	}

	// 4. Persist the delivery. A duplicate collides on the unique key and is
	// acknowledged without reprocessing.
	webhookEvent, err := s.models.WebhookEvents.Insert(ctx, s.dbConnectionPool, data.WebhookEventInsert{
		EventType:   string(event.Type),
		ExternalRef: externalRef,
		RawPayload:  payload,
		Signature:   signature,
	})
	if err != nil {
		if errors.Is(err, data.ErrRecordAlreadyExists) {
			s.seenCache.Add(cacheKey, struct{}{})
			return nil
		}
		return fmt.Errorf("persisting webhook event: %w", err)
	}
	s.seenCache.Add(cacheKey, struct{}{})

	// 5. Unknown kinds stay on record for the audit trail and are
	// acknowledged so the processor stops redelivering them.
	if !event.Type.IsKnown() {
		unknownErr := fmt.Sprintf("unsupported event type: %s", event.Type)
		if failErr := s.models.WebhookEvents.MarkProcessingFailed(ctx, s.dbConnectionPool, webhookEvent.ID, unknownErr); failErr != nil {
			log.Ctx(ctx).Errorf("recording unsupported webhook event %s: %v", webhookEvent.ID, failErr)
		}
		return nil
	}

	// 6. Process. Failures are recorded on the event and acknowledged; the
	// replay job retries them.
	_ = s.dispatchEvent(ctx, webhookEvent.ID, event)
	return nil
}

// ProcessStoredEvent re-runs a persisted delivery, used by the replay job and
// the pending payment verifier.
func (s *WebhookIngestService) ProcessStoredEvent(ctx context.Context, webhookEvent data.WebhookEvent) error {
	event, err := paystack.ParseEvent(webhookEvent.RawPayload)
	if err != nil {
		parseErr := fmt.Errorf("parsing stored webhook event %s: %w", webhookEvent.ID, err)
		if failErr := s.models.WebhookEvents.MarkProcessingFailed(ctx, s.dbConnectionPool, webhookEvent.ID, parseErr.Error()); failErr != nil {
			log.Ctx(ctx).Errorf("recording processing failure on webhook event %s: %v", webhookEvent.ID, failErr)
		}
		return parseErr
	}

	return s.dispatchEvent(ctx, webhookEvent.ID, event)
}

// dispatchEvent runs the event through its handler and records the outcome.
func (s *WebhookIngestService) dispatchEvent(ctx context.Context, eventID string, event *paystack.Event) error {
	if procErr := s.processEvent(ctx, eventID, event); procErr != nil {
		log.Ctx(ctx).Errorf("processing webhook event %s (%s): %v", eventID, event.Type, procErr)
		if failErr := s.models.WebhookEvents.MarkProcessingFailed(ctx, s.dbConnectionPool, eventID, procErr.Error()); failErr != nil {
			log.Ctx(ctx).Errorf("recording processing failure on webhook event %s: %v", eventID, failErr)
		}
		return procErr
	}

	s.notifyAfterProcessing(ctx, event)
	return nil
}

// processEvent applies the state transition for one event inside a single
// serializable transaction, marking the event processed in the same breath.
func (s *WebhookIngestService) processEvent(ctx context.Context, eventID string, event *paystack.Event) error {
	return db.RunInTransaction(ctx, s.dbConnectionPool, serializableTxOpts, func(dbTx db.DBTransaction) error {
		var err error
		switch event.Type {
		case paystack.EventTypeChargeSuccess:
			err = s.handleChargeSuccess(ctx, dbTx, event)
		case paystack.EventTypeChargeFailed:
			err = s.handleChargeFailed(ctx, dbTx, event)
		case paystack.EventTypeTransferSuccess:
			err = s.handleTransferSuccess(ctx, dbTx, event)
		case paystack.EventTypeTransferFailed, paystack.EventTypeTransferReversed:
			err = s.handleTransferFailure(ctx, dbTx, event)
		default:
			err = fmt.Errorf("no handler for event type %s", event.Type)
		}
		if err != nil {
			return err
		}

		return s.models.WebhookEvents.MarkProcessed(ctx, dbTx, eventID)
	})
}

func (s *WebhookIngestService) handleChargeSuccess(ctx context.Context, dbTx db.DBTransaction, event *paystack.Event) error {
	payment, err := s.models.Payments.GetByExternalRef(ctx, dbTx, event.Data.Reference)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return fmt.Errorf("no payment carries reference %q", event.Data.Reference)
		}
		return fmt.Errorf("getting payment by reference %q: %w", event.Data.Reference, err)
	}

	// The processor's word on how much was charged must match the intent
	// exactly; a mismatch freezes the event for an operator instead of
	// escrowing the wrong amount.
	if event.Data.Amount <= 0 {
		return fmt.Errorf("charge event for payment %s carries no amount", payment.ID)
	}
	chargedAmount := paystack.FromMinorUnits(event.Data.Amount)
	if !chargedAmount.Equal(payment.Amount) {
		return fmt.Errorf("charged amount %s does not match payment %s amount %s", chargedAmount, payment.ID, payment.Amount)
	}
	if event.Data.Currency != "" && event.Data.Currency != payment.Currency {
		return fmt.Errorf("charged currency %s does not match payment %s currency %s", event.Data.Currency, payment.ID, payment.Currency)
	}

	numRowsAffected, err := s.models.Payments.MarkEscrowed(ctx, dbTx, payment.ID)
	if err != nil {
		return fmt.Errorf("escrowing payment %s: %w", payment.ID, err)
	}
	if numRowsAffected == 0 {
		switch payment.Status {
		case data.EscrowPaymentStatus, data.ReleasedPaymentStatus:
			// Replay of an already-applied charge.
			return nil
		default:
			// The processor collected money for a payment we no longer expect
			// to succeed. Nothing safe to do automatically.
			s.crashTrackerClient.LogAndReportMessages(ctx, fmt.Sprintf("charge.success for payment %s in status %s", payment.ID, payment.Status))
			return nil
		}
	}

	if err = s.models.LedgerEntries.Record(ctx, dbTx, escrowLedgerEntries(payment)...); err != nil {
		return fmt.Errorf("recording escrow entries for payment %s: %w", payment.ID, err)
	}

	numRowsAffected, err = s.models.Bookings.UpdateStatus(ctx, dbTx, payment.BookingID, data.PendingExecutionBookingStatus, "payment escrowed")
	if err != nil {
		return fmt.Errorf("moving booking %s to pending execution: %w", payment.BookingID, err)
	}
	if numRowsAffected == 0 {
		// The payment is escrowed either way; a booking that raced into
		// CANCELLED needs an operator to refund.
		s.crashTrackerClient.LogAndReportMessages(ctx, fmt.Sprintf("payment %s escrowed but booking %s could not move to PENDING_EXECUTION", payment.ID, payment.BookingID))
	}

	return nil
}

func (s *WebhookIngestService) handleChargeFailed(ctx context.Context, dbTx db.DBTransaction, event *paystack.Event) error {
	payment, err := s.models.Payments.GetByExternalRef(ctx, dbTx, event.Data.Reference)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return fmt.Errorf("no payment carries reference %q", event.Data.Reference)
		}
		return fmt.Errorf("getting payment by reference %q: %w", event.Data.Reference, err)
	}

	numRowsAffected, err := s.models.Payments.MarkFailed(ctx, dbTx, payment.ID, event.FailureReason())
	if err != nil {
		return fmt.Errorf("failing payment %s: %w", payment.ID, err)
	}
	if numRowsAffected == 0 && payment.Status != data.FailedPaymentStatus {
		// A failure report for money we already escrowed.
		s.crashTrackerClient.LogAndReportMessages(ctx, fmt.Sprintf("charge.failed for payment %s in status %s", payment.ID, payment.Status))
	}

	return nil
}

func (s *WebhookIngestService) handleTransferSuccess(ctx context.Context, dbTx db.DBTransaction, event *paystack.Event) error {
	payout, err := s.resolvePayout(ctx, dbTx, event)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return fmt.Errorf("no payout matches transfer %q", event.ExternalRef())
		}
		return fmt.Errorf("resolving payout for transfer %q: %w", event.ExternalRef(), err)
	}

	err = s.payoutCompleter.CompletePayoutInTx(ctx, dbTx, payout.ID, "")
	if err != nil {
		if errors.Is(err, ErrInvalidPayoutStatus) {
			// The bank moved money for a payout we recorded as failed or
			// rejected. An operator has to reconcile this by hand.
			s.crashTrackerClient.LogAndReportMessages(ctx, fmt.Sprintf("transfer.success for payout %s in status %s", payout.ID, payout.Status))
		}
		return fmt.Errorf("completing payout %s: %w", payout.ID, err)
	}

	return nil
}

func (s *WebhookIngestService) handleTransferFailure(ctx context.Context, dbTx db.DBTransaction, event *paystack.Event) error {
	payout, err := s.resolvePayout(ctx, dbTx, event)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return fmt.Errorf("no payout matches transfer %q", event.ExternalRef())
		}
		return fmt.Errorf("resolving payout for transfer %q: %w", event.ExternalRef(), err)
	}

	numRowsAffected, err := s.models.Payouts.UpdateToFailed(ctx, dbTx, payout.ID, event.FailureReason())
	if err != nil {
		return fmt.Errorf("failing payout %s: %w", payout.ID, err)
	}
	if numRowsAffected == 0 {
		switch payout.Status {
		case data.FailedPayoutStatus:
			return nil
		case data.CompletedPayoutStatus:
			// A reversal after completion claws back money we already booked
			// as released. Ledger correction is an operator decision.
			s.crashTrackerClient.LogAndReportMessages(ctx, fmt.Sprintf("%s for payout %s after completion", event.Type, payout.ID))
			return nil
		default:
			return fmt.Errorf("payout %s is %s, cannot record transfer failure", payout.ID, payout.Status)
		}
	}

	return nil
}

// resolvePayout finds the payout a transfer event refers to, trying the
// processor's transfer code first and falling back to our own reference for
// the case where the transfer code never got stored.
func (s *WebhookIngestService) resolvePayout(ctx context.Context, sqlExec db.SQLExecuter, event *paystack.Event) (*data.Payout, error) {
	for _, key := range []string{event.Data.TransferCode, event.Data.Reference} {
		if key == "" {
			continue
		}
		payout, err := s.models.Payouts.GetByTransferCode(ctx, sqlExec, key)
		if err == nil {
			return payout, nil
		}
		if !errors.Is(err, data.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, data.ErrRecordNotFound
}

// notifyAfterProcessing sends the provider-facing messages for a processed
// event. Runs after the transaction committed; failures are logged only.
func (s *WebhookIngestService) notifyAfterProcessing(ctx context.Context, event *paystack.Event) {
	var notifyErr error
	switch event.Type {
	case paystack.EventTypeChargeSuccess:
		payment, err := s.models.Payments.GetByExternalRef(ctx, s.dbConnectionPool, event.Data.Reference)
		if err != nil || payment.Status != data.EscrowPaymentStatus {
			return
		}
		booking, err := s.models.Bookings.Get(ctx, s.dbConnectionPool, payment.BookingID)
		if err != nil {
			return
		}
		notifyErr = s.notificationService.NotifyPaymentEscrowed(ctx, payment, booking)
	case paystack.EventTypeTransferSuccess:
		payout, err := s.resolvePayout(ctx, s.dbConnectionPool, event)
		if err != nil || payout.Status != data.CompletedPayoutStatus {
			return
		}
		notifyErr = s.notificationService.NotifyPayoutCompleted(ctx, payout)
	case paystack.EventTypeTransferFailed, paystack.EventTypeTransferReversed:
		payout, err := s.resolvePayout(ctx, s.dbConnectionPool, event)
		if err != nil || payout.Status != data.FailedPayoutStatus {
			return
		}
		notifyErr = s.notificationService.NotifyPayoutFailed(ctx, payout, event.FailureReason())
	}

	if notifyErr != nil {
		log.Ctx(ctx).Errorf("sending notification for %s event: %v", event.Type, notifyErr)
	}
}
