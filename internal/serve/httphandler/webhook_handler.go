package httphandler

import (
	"errors"
	"io"
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

// paystackSignatureHeader carries the hex HMAC-SHA512 of the raw request
// body, keyed with the processor secret key.
const paystackSignatureHeader = "x-paystack-signature"

// maxWebhookBodyBytes caps the webhook body read. Real processor events are
// a few KB; anything larger is not one of ours.
const maxWebhookBodyBytes = 1 << 20

type WebhookHandler struct {
	WebhookIngestService services.WebhookIngestServiceInterface
	MonitorService       monitor.MonitorServiceInterface
}

// PostWebhook receives processor events. The raw body is verified before
// anything is parsed or persisted; replays of an already stored event are
// acknowledged with a 200 so the processor stops retrying.
func (h WebhookHandler) PostWebhook(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	payload, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBodyBytes))
	if err != nil {
		httperror.BadRequest("Could not read request body.", err, nil).Render(rw)
		return
	}

	signature := req.Header.Get(paystackSignatureHeader)

	err = h.WebhookIngestService.Ingest(ctx, payload, signature)
	if err != nil {
		h.monitorOutcome(monitor.WebhookOutcomeRejected)

		switch {
		case errors.Is(err, services.ErrInvalidWebhookSignature):
			httperror.Unauthorized(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeInvalidSignature).Render(rw)
		case errors.Is(err, services.ErrMalformedWebhookPayload):
			httperror.BadRequest(err.Error(), err, nil).Render(rw)
		default:
			httperror.InternalError(ctx, "Cannot ingest webhook event", err, nil).Render(rw)
		}
		return
	}

	h.monitorOutcome(monitor.WebhookOutcomeAccepted)

	httpjson.RenderStatus(rw, http.StatusOK, map[string]string{"status": "ok"}, httpjson.JSON)
}

func (h WebhookHandler) monitorOutcome(outcome string) {
	labels := monitor.WebhookEventLabels{Outcome: outcome}
	if err := h.MonitorService.MonitorCounters(monitor.WebhookEventsCounterTag, labels.ToMap()); err != nil {
		log.Errorf("Error trying to monitor webhook events counter: %s", err)
	}
}
