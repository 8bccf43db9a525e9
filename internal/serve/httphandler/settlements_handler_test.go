package httphandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/db/dbtest"
	"github.com/sebenzapay/escrow-platform-backend/internal/crashtracker"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

func Test_SettlementsHandler_PostReconcile(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()

	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	ctx := context.Background()

	crashMock := &crashtracker.MockCrashTrackerClient{}
	handler := SettlementsHandler{
		SettlementService: services.NewSettlementService(models, dbConnectionPool, crashMock, "BANK_MAIN", "ZAR"),
	}

	r := chi.NewRouter()
	r.Post("/settlements/{date}/reconcile", handler.PostReconcile)

	post := func(t *testing.T, date, body string) *httptest.ResponseRecorder {
		t.Helper()
		req := requestWithUser(httptest.NewRequest(http.MethodPost, "/settlements/"+date+"/reconcile", strings.NewReader(body)), adminUser())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	today := time.Now().UTC().Format("2006-01-02")

	t.Run("returns a 400 for a malformed date", func(t *testing.T) {
		w := post(t, "15-01-2024", `{"received_amount": "100.00"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{
			"error": "Request invalid",
			"extras": {"date": "invalid date format. valid format is 'YYYY-MM-DD'"}
		}`, w.Body.String())
	})

	t.Run("returns a 400 for a negative received amount", func(t *testing.T) {
		w := post(t, today, `{"received_amount": "-10.00"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{
			"error": "Request invalid",
			"extras": {"received_amount": "received_amount cannot be negative"}
		}`, w.Body.String())
	})

	t.Run("returns a 404 when the day has no settlement batch", func(t *testing.T) {
		w := post(t, "2020-01-01", `{"received_amount": "100.00"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error": "settlement batch not found", "error_code": "not_found"}`, w.Body.String())
	})

	t.Run("flags a mismatch and keeps the bank account untouched", func(t *testing.T) {
		yesterday := time.Now().UTC().AddDate(0, 0, -1)
		data.CreateSettlementBatchFixture(t, ctx, dbConnectionPool, &data.SettlementBatch{
			BatchDate: yesterday,
		})
		crashMock.On("LogAndReportMessages", mock.Anything, mock.AnythingOfType("string")).Once()

		w := post(t, yesterday.Format("2006-01-02"), `{"received_amount": "50.00"}`)
		assert.Equal(t, http.StatusOK, w.Code)

		var settlement data.SettlementBatch
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settlement))
		assert.Equal(t, data.MismatchSettlementStatus, settlement.Status)
		assert.Contains(t, settlement.Notes, "expected 0.00, received 50.00")

		balance, err := models.LedgerEntries.Balance(ctx, dbConnectionPool, data.BankAccountAccountType, "BANK_MAIN")
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
		crashMock.AssertExpectations(t)
	})

	t.Run("🎉 reconciles the day and funds the bank account", func(t *testing.T) {
		data.CreateEscrowedPaymentFixture(t, ctx, dbConnectionPool,
			decimal.RequireFromString("200.00"), decimal.RequireFromString("20.00"), decimal.RequireFromString("180.00"))
		data.CreateSettlementBatchFixture(t, ctx, dbConnectionPool, &data.SettlementBatch{
			BatchDate: time.Now().UTC(),
		})

		w := post(t, today, `{"received_amount": "200.00", "notes": "statement line 42"}`)
		assert.Equal(t, http.StatusOK, w.Code)

		var settlement data.SettlementBatch
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settlement))
		assert.Equal(t, data.ReconciledSettlementStatus, settlement.Status)
		assert.Equal(t, "admin-1", settlement.ReconciledBy)
		assert.Equal(t, "200.00", settlement.ExpectedAmount.StringFixed(2))
		assert.Equal(t, 1, settlement.PaymentCount)

		balance, err := models.LedgerEntries.Balance(ctx, dbConnectionPool, data.BankAccountAccountType, "BANK_MAIN")
		require.NoError(t, err)
		assert.Equal(t, "200.00", balance.StringFixed(2))

		t.Run("re-reconciling the day returns a 409", func(t *testing.T) {
			again := post(t, today, `{"received_amount": "200.00"}`)
			assert.Equal(t, http.StatusConflict, again.Code)
			assert.JSONEq(t, `{"error": "settlement batch status does not allow this operation", "error_code": "invalid_settlement_status"}`, again.Body.String())
		})
	})
}

func Test_SettlementsHandler_GetSettlement(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()

	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	ctx := context.Background()

	handler := SettlementsHandler{
		SettlementService: services.NewSettlementService(models, dbConnectionPool, &crashtracker.MockCrashTrackerClient{}, "BANK_MAIN", "ZAR"),
	}

	r := chi.NewRouter()
	r.Get("/settlements/{date}", handler.GetSettlement)

	get := func(t *testing.T, date string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/settlements/"+date, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("returns a 400 for a malformed date", func(t *testing.T) {
		w := get(t, "yesterday")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns a 404 when the day has no settlement batch", func(t *testing.T) {
		w := get(t, "2020-01-01")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("🎉 returns the settlement batch for the day", func(t *testing.T) {
		batch := data.CreateSettlementBatchFixture(t, ctx, dbConnectionPool, &data.SettlementBatch{
			BatchDate:      time.Now().UTC(),
			ExpectedAmount: decimal.RequireFromString("540.00"),
			PaymentCount:   3,
		})

		w := get(t, time.Now().UTC().Format("2006-01-02"))
		assert.Equal(t, http.StatusOK, w.Code)

		var got data.SettlementBatch
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, batch.ID, got.ID)
		assert.Equal(t, "540.00", got.ExpectedAmount.StringFixed(2))
	})
}

func Test_SettlementsHandler_GetSettlements(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()

	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	ctx := context.Background()

	handler := SettlementsHandler{
		SettlementService: services.NewSettlementService(models, dbConnectionPool, &crashtracker.MockCrashTrackerClient{}, "BANK_MAIN", "ZAR"),
	}

	r := chi.NewRouter()
	r.Get("/settlements", handler.GetSettlements)

	t.Run("returns an empty list when there are no settlement batches", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/settlements", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data": [], "pagination": {"pages": 0, "total": 0}}`, w.Body.String())
	})

	t.Run("returns a 400 for an invalid status filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/settlements?status=open", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("🎉 returns settlement batches filtered by status", func(t *testing.T) {
		reconciledBy := "admin-1"
		now := time.Now().UTC()
		data.CreateSettlementBatchFixture(t, ctx, dbConnectionPool, &data.SettlementBatch{
			BatchDate: now.AddDate(0, 0, -2),
		})
		reconciled := data.CreateSettlementBatchFixture(t, ctx, dbConnectionPool, &data.SettlementBatch{
			BatchDate:    now.AddDate(0, 0, -1),
			Status:       data.ReconciledSettlementStatus,
			ReconciledBy: reconciledBy,
			ReconciledAt: &now,
		})

		req := httptest.NewRequest(http.MethodGet, "/settlements?status=reconciled", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data []data.SettlementBatch `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, reconciled.ID, response.Data[0].ID)
	})
}
