package httphandler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/auth"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httpresponse"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/validators"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

type PayoutBatchesHandler struct {
	BatchExportService *services.BatchExportService
	MonitorService     monitor.MonitorServiceInterface
}

type PostBatchExportRequest struct {
	PayoutIDs []string `json:"payout_ids"`
}

// PostExport freezes a set of approved MANUAL payouts into a batch and
// renders the bank upload CSV. An empty payout_ids list exports every
// approved manual payout.
func (p PayoutBatchesHandler) PostExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	var reqBody PostBatchExportRequest
	if err = httpdecode.DecodeJSON(r, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(w)
		return
	}

	batch, err := p.BatchExportService.ExportBatch(ctx, user.ID, reqBody.PayoutIDs...)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot export payout batch", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusCreated, batch, httpjson.JSON)
}

// GetBatches returns a paginated list of payout batches.
func (p PayoutBatchesHandler) GetBatches(w http.ResponseWriter, r *http.Request) {
	validator := validators.NewPayoutBatchQueryValidator()
	queryParams := validator.ParseParametersFromRequest(r)

	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(w)
		return
	}

	queryParams.Filters = validator.ValidateAndGetBatchFilters(queryParams.Filters)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(w)
		return
	}

	ctx := r.Context()

	result, err := p.BatchExportService.GetBatchesWithCount(ctx, queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve payout batches", err, nil).Render(w)
		return
	}
	if result.Total == 0 {
		httpjson.RenderStatus(w, http.StatusOK, httpresponse.NewEmptyPaginatedResponse(), httpjson.JSON)
	} else {
		response, errGet := httpresponse.NewPaginatedResponse(r, result.Result, queryParams.Page, queryParams.PageLimit, result.Total)
		if errGet != nil {
			httperror.InternalError(ctx, "Cannot create paginated payout batches response", errGet, nil).Render(w)
			return
		}
		httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
	}
}

func (p PayoutBatchesHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID := chi.URLParam(r, "id")

	batch, err := p.BatchExportService.GetBatch(ctx, batchID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot retrieve payout batch", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, batch, httpjson.JSON)
}

// GetBatchCSV serves the stored CSV bytes. The content was frozen at export
// time; re-downloading always yields the identical file.
func (p PayoutBatchesHandler) GetBatchCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID := chi.URLParam(r, "id")

	batch, csvContent, err := p.BatchExportService.GetBatchCSV(ctx, batchID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot retrieve payout batch CSV", err).Render(w)
		return
	}

	fileName := fmt.Sprintf("%s.csv", batch.Reference)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", fileName))

	if _, err = w.Write(csvContent); err != nil {
		log.Ctx(ctx).Errorf("Error writing CSV for batch %s: %s", batchID, err)
	}
}

// PostExecuteBatch settles every payout in an EXPORTED batch after the bank
// upload went through.
func (p PayoutBatchesHandler) PostExecuteBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	batchID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	started := time.Now()
	batch, err := p.BatchExportService.ExecuteBatch(ctx, batchID, user.ID)
	if err != nil {
		p.monitorBatchExecution(ctx, time.Since(started), "ERROR")
		serviceErrorResponse(ctx, "Cannot execute payout batch", err).Render(w)
		return
	}
	p.monitorBatchExecution(ctx, time.Since(started), string(batch.Status))

	httpjson.RenderStatus(w, http.StatusOK, batch, httpjson.JSON)
}

func (p PayoutBatchesHandler) monitorBatchExecution(ctx context.Context, duration time.Duration, status string) {
	labels := map[string]string{"status": status}
	if err := p.MonitorService.MonitorHistogram(duration.Seconds(), monitor.BatchExecutionDurationTag, labels); err != nil {
		log.Ctx(ctx).Errorf("Error trying to monitor batch execution duration: %s", err)
	}
}
