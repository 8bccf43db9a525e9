package httphandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/auth"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httpresponse"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/validators"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

type PayoutsHandler struct {
	PayoutService  *services.PayoutService
	ReceiptService *services.ReceiptService
	MonitorService monitor.MonitorServiceInterface
}

// GetPayouts returns a paginated list of payouts.
func (p PayoutsHandler) GetPayouts(w http.ResponseWriter, r *http.Request) {
	validator := validators.NewPayoutQueryValidator()
	queryParams := validator.ParseParametersFromRequest(r)

	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(w)
		return
	}

	queryParams.Filters = validator.ValidateAndGetPayoutFilters(queryParams.Filters)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(w)
		return
	}

	ctx := r.Context()

	result, err := p.PayoutService.GetPayoutsWithCount(ctx, queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve payouts", err, nil).Render(w)
		return
	}
	if result.Total == 0 {
		httpjson.RenderStatus(w, http.StatusOK, httpresponse.NewEmptyPaginatedResponse(), httpjson.JSON)
	} else {
		response, errGet := httpresponse.NewPaginatedResponse(r, result.Result, queryParams.Page, queryParams.PageLimit, result.Total)
		if errGet != nil {
			httperror.InternalError(ctx, "Cannot create paginated payouts response", errGet, nil).Render(w)
			return
		}
		httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
	}
}

func (p PayoutsHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payoutID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	payout, err := p.PayoutService.GetPayout(ctx, payoutID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot retrieve payout", err).Render(w)
		return
	}

	if !user.HasAnyRole(data.AdminUserRole.String()) && payout.ProviderID != user.ID {
		httperror.Forbidden("", nil, nil).WithErrorCode(httperror.ErrorCodeForbidden).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, payout, httpjson.JSON)
}

func (p PayoutsHandler) PostApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payoutID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	payout, err := p.PayoutService.Approve(ctx, payoutID, user.ID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot approve payout", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, payout, httpjson.JSON)
}

type RejectPayoutRequest struct {
	Reason string `json:"reason"`
}

func (p PayoutsHandler) PostReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payoutID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	var reqBody RejectPayoutRequest
	if err = httpdecode.DecodeJSON(r, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(w)
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.Reason != "", "reason", "reason is required")
	if v.HasErrors() {
		httperror.BadRequest("Request invalid", nil, v.Errors).Render(w)
		return
	}

	payout, err := p.PayoutService.Reject(ctx, payoutID, reqBody.Reason, user.ID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot reject payout", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, payout, httpjson.JSON)
}

// PostExecute sends an approved AUTO payout to the processor.
func (p PayoutsHandler) PostExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payoutID := chi.URLParam(r, "id")

	payout, err := p.PayoutService.Execute(ctx, payoutID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot execute payout", err).Render(w)
		return
	}

	p.monitorPayout(ctx, payout)

	httpjson.RenderStatus(w, http.StatusOK, payout, httpjson.JSON)
}

type MarkPaidRequest struct {
	ExternalRef string `json:"external_ref"`
}

// PostMarkPaid records an out-of-band transfer for a MANUAL payout that was
// settled outside a batch, for example a one-off EFT.
func (p PayoutsHandler) PostMarkPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payoutID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	var reqBody MarkPaidRequest
	if err = httpdecode.DecodeJSON(r, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(w)
		return
	}

	payout, err := p.PayoutService.MarkPaid(ctx, payoutID, reqBody.ExternalRef, user.ID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot mark payout as paid", err).Render(w)
		return
	}

	p.monitorPayout(ctx, payout)

	httpjson.RenderStatus(w, http.StatusOK, payout, httpjson.JSON)
}

func (p PayoutsHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payoutID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	payout, err := p.PayoutService.GetPayout(ctx, payoutID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot retrieve payout", err).Render(w)
		return
	}

	if !user.HasAnyRole(data.AdminUserRole.String()) && payout.ProviderID != user.ID {
		httperror.Forbidden("", nil, nil).WithErrorCode(httperror.ErrorCodeForbidden).Render(w)
		return
	}

	receipt, err := p.ReceiptService.GetReceipt(ctx, payoutID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot generate receipt", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, receipt, httpjson.JSON)
}

func (p PayoutsHandler) monitorPayout(ctx context.Context, payout *data.Payout) {
	labels := monitor.PayoutLabels{
		PayoutMethod: string(payout.Method),
		Currency:     payout.Currency,
	}
	if err := p.MonitorService.MonitorCounters(monitor.PayoutsCounterTag, labels.ToMap()); err != nil {
		log.Ctx(ctx).Errorf("Error trying to monitor payouts counter: %s", err)
	}
}
