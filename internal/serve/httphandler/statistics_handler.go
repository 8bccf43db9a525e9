package httphandler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/auth"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/statistics"
)

type StatisticsHandler struct {
	DBConnectionPool db.DBConnectionPool
}

func (s StatisticsHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := statistics.CalculateStatistics(ctx, s.DBConnectionPool)
	if err != nil {
		httperror.InternalError(ctx, "Cannot calculate statistics", err, nil).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, stats, httpjson.JSON)
}

func (s StatisticsHandler) GetStatisticsByProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}
	if !user.HasAnyRole(data.AdminUserRole.String()) && providerID != user.ID {
		httperror.Forbidden("", nil, nil).WithErrorCode(httperror.ErrorCodeForbidden).Render(w)
		return
	}

	stats, err := statistics.CalculateStatisticsByProvider(ctx, s.DBConnectionPool, providerID)
	if err != nil {
		if errors.Is(statistics.ErrResourcesNotFound, err) {
			errorMsg := fmt.Sprintf("a provider with the id %s does not exist", providerID)
			httperror.NotFound(errorMsg, err, nil).Render(w)
			return
		} else {
			httperror.InternalError(ctx, "Cannot calculate statistics", err, nil).Render(w)
			return
		}
	}

	httpjson.RenderStatus(w, http.StatusOK, stats, httpjson.JSON)
}
