package httphandler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/sebenzapay/escrow-platform-backend/internal/serve/auth"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httpresponse"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/validators"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

type SettlementsHandler struct {
	SettlementService *services.SettlementService
}

func settlementDateFromRequest(r *http.Request) (time.Time, *httperror.HTTPError) {
	batchDate, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		extras := map[string]interface{}{"date": "invalid date format. valid format is 'YYYY-MM-DD'"}
		return time.Time{}, httperror.BadRequest("Request invalid", err, extras)
	}
	return batchDate, nil
}

type ReconcileSettlementRequest struct {
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	Notes          string          `json:"notes"`
}

// PostReconcile closes the day's settlement batch against the amount the
// bank statement shows. A match credits BANK_MAIN; a mismatch freezes the
// batch as MISMATCH for an operator to chase.
func (s SettlementsHandler) PostReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batchDate, httpErr := settlementDateFromRequest(r)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	var reqBody ReconcileSettlementRequest
	if err = httpdecode.DecodeJSON(r, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(w)
		return
	}

	v := validators.NewValidator()
	v.Check(!reqBody.ReceivedAmount.IsNegative(), "received_amount", "received_amount cannot be negative")
	if v.HasErrors() {
		httperror.BadRequest("Request invalid", nil, v.Errors).Render(w)
		return
	}

	settlement, err := s.SettlementService.Reconcile(ctx, batchDate, reqBody.ReceivedAmount, user.ID, reqBody.Notes)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot reconcile settlement batch", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, settlement, httpjson.JSON)
}

func (s SettlementsHandler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batchDate, httpErr := settlementDateFromRequest(r)
	if httpErr != nil {
		httpErr.Render(w)
		return
	}

	settlement, err := s.SettlementService.GetSettlementByDate(ctx, batchDate)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot retrieve settlement batch", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, settlement, httpjson.JSON)
}

// GetSettlements returns a paginated list of settlement batches.
func (s SettlementsHandler) GetSettlements(w http.ResponseWriter, r *http.Request) {
	validator := validators.NewSettlementQueryValidator()
	queryParams := validator.ParseParametersFromRequest(r)

	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(w)
		return
	}

	queryParams.Filters = validator.ValidateAndGetSettlementFilters(queryParams.Filters)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(w)
		return
	}

	ctx := r.Context()

	result, err := s.SettlementService.GetSettlementsWithCount(ctx, queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve settlement batches", err, nil).Render(w)
		return
	}
	if result.Total == 0 {
		httpjson.RenderStatus(w, http.StatusOK, httpresponse.NewEmptyPaginatedResponse(), httpjson.JSON)
	} else {
		response, errGet := httpresponse.NewPaginatedResponse(r, result.Result, queryParams.Page, queryParams.PageLimit, result.Total)
		if errGet != nil {
			httperror.InternalError(ctx, "Cannot create paginated settlement batches response", errGet, nil).Render(w)
			return
		}
		httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
	}
}
