package httphandler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/db/dbtest"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/paystack"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

func Test_PayoutBatchesHandler_PostExport(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()

	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	ctx := context.Background()

	notificationMock := &services.MockNotificationService{}
	payoutService := services.NewPayoutService(models, dbConnectionPool, &paystack.ClientMock{}, notificationMock, data.AutoPayoutMethod, "BANK_MAIN")
	handler := PayoutBatchesHandler{
		BatchExportService: services.NewBatchExportService(models, dbConnectionPool, payoutService, notificationMock, 0),
		MonitorService:     &monitor.MockMonitorService{},
	}

	r := chi.NewRouter()
	r.Post("/payouts/batches/export", handler.PostExport)

	post := func(t *testing.T, body string) *httptest.ResponseRecorder {
		t.Helper()
		req := requestWithUser(httptest.NewRequest(http.MethodPost, "/payouts/batches/export", strings.NewReader(body)), adminUser())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("returns a 422 when nothing is approved for export", func(t *testing.T) {
		w := post(t, `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.JSONEq(t, `{"error": "no approved manual payouts to export", "error_code": "no_payouts_to_export"}`, w.Body.String())
	})

	t.Run("🎉 exports approved manual payouts into a batch", func(t *testing.T) {
		data.CreatePayoutChainFixture(t, ctx, dbConnectionPool,
			data.ManualPayoutMethod, data.ApprovedPayoutStatus, decimal.RequireFromString("200.00"))
		data.CreatePayoutChainFixture(t, ctx, dbConnectionPool,
			data.ManualPayoutMethod, data.ApprovedPayoutStatus, decimal.RequireFromString("100.00"))

		w := post(t, `{}`)
		assert.Equal(t, http.StatusCreated, w.Code)

		var batch data.PayoutBatch
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
		assert.Equal(t, data.ExportedPayoutBatchStatus, batch.Status)
		assert.Equal(t, 2, batch.PayoutCount)
		assert.Equal(t, "270.00", batch.TotalAmount.StringFixed(2))
		assert.Equal(t, "admin-1", batch.ExportedBy)
	})

	t.Run("🎉 exports only the listed payouts", func(t *testing.T) {
		listed := data.CreatePayoutChainFixture(t, ctx, dbConnectionPool,
			data.ManualPayoutMethod, data.ApprovedPayoutStatus, decimal.RequireFromString("200.00"))
		data.CreatePayoutChainFixture(t, ctx, dbConnectionPool,
			data.ManualPayoutMethod, data.ApprovedPayoutStatus, decimal.RequireFromString("100.00"))

		w := post(t, fmt.Sprintf(`{"payout_ids": [%q]}`, listed.ID))
		assert.Equal(t, http.StatusCreated, w.Code)

		var batch data.PayoutBatch
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
		assert.Equal(t, 1, batch.PayoutCount)
		assert.Equal(t, "180.00", batch.TotalAmount.StringFixed(2))
	})
}

func Test_PayoutBatchesHandler_GetBatches(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()

	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	ctx := context.Background()

	notificationMock := &services.MockNotificationService{}
	payoutService := services.NewPayoutService(models, dbConnectionPool, &paystack.ClientMock{}, notificationMock, data.AutoPayoutMethod, "BANK_MAIN")
	handler := PayoutBatchesHandler{
		BatchExportService: services.NewBatchExportService(models, dbConnectionPool, payoutService, notificationMock, 0),
	}

	r := chi.NewRouter()
	r.Get("/payouts/batches", handler.GetBatches)

	t.Run("returns an empty list when there are no batches", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/payouts/batches", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data": [], "pagination": {"pages": 0, "total": 0}}`, w.Body.String())
	})

	t.Run("returns a 400 for an invalid status filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/payouts/batches?status=open", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("🎉 returns batches filtered by status", func(t *testing.T) {
		batch := data.CreatePayoutBatchFixture(t, ctx, dbConnectionPool, &data.PayoutBatch{
			CSVContent: "Account Name,Account Number,Bank Code,Amount,Reference,Description\n",
			ExportedBy: "admin-1",
		})

		req := httptest.NewRequest(http.MethodGet, "/payouts/batches?status=exported", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data []data.PayoutBatch `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, batch.ID, response.Data[0].ID)
	})
}

func Test_PayoutBatchesHandler_GetBatchCSV(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()

	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	ctx := context.Background()

	notificationMock := &services.MockNotificationService{}
	payoutService := services.NewPayoutService(models, dbConnectionPool, &paystack.ClientMock{}, notificationMock, data.AutoPayoutMethod, "BANK_MAIN")
	handler := PayoutBatchesHandler{
		BatchExportService: services.NewBatchExportService(models, dbConnectionPool, payoutService, notificationMock, 0),
	}

	r := chi.NewRouter()
	r.Get("/payouts/batches/{id}/csv", handler.GetBatchCSV)

	t.Run("returns a 404 for an unknown batch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/payouts/batches/invalid_id/csv", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("🎉 serves the stored bytes as a CSV download", func(t *testing.T) {
		csvContent := "Account Name,Account Number,Bank Code,Amount,Reference,Description\nThabo's Plumbing,1234567890,632005,180.00,PAYOUT_1,Payout PAYOUT_1\n"
		batch := data.CreatePayoutBatchFixture(t, ctx, dbConnectionPool, &data.PayoutBatch{
			CSVContent: csvContent,
			ExportedBy: "admin-1",
		})

		req := httptest.NewRequest(http.MethodGet, "/payouts/batches/"+batch.ID+"/csv", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Equal(t, fmt.Sprintf("attachment; filename=%s.csv", batch.Reference), w.Header().Get("Content-Disposition"))
		assert.Equal(t, csvContent, w.Body.String())
	})
}

func Test_PayoutBatchesHandler_PostExecuteBatch(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()

	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool)
	require.NoError(t, err)

	ctx := context.Background()

	notificationMock := &services.MockNotificationService{}
	notificationMock.
		On("NotifyPayoutCompleted", mock.Anything, mock.AnythingOfType("*data.Payout")).
		Return(nil).
		Maybe()
	monitorMock := &monitor.MockMonitorService{}
	monitorMock.
		On("MonitorHistogram", mock.AnythingOfType("float64"), monitor.BatchExecutionDurationTag, mock.AnythingOfType("map[string]string")).
		Return(nil)

	payoutService := services.NewPayoutService(models, dbConnectionPool, &paystack.ClientMock{}, notificationMock, data.AutoPayoutMethod, "BANK_MAIN")
	batchService := services.NewBatchExportService(models, dbConnectionPool, payoutService, notificationMock, 0)
	handler := PayoutBatchesHandler{
		BatchExportService: batchService,
		MonitorService:     monitorMock,
	}

	r := chi.NewRouter()
	r.Post("/payouts/batches/{id}/execute", handler.PostExecuteBatch)

	post := func(t *testing.T, batchID string) *httptest.ResponseRecorder {
		t.Helper()
		req := requestWithUser(httptest.NewRequest(http.MethodPost, "/payouts/batches/"+batchID+"/execute", nil), adminUser())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("returns a 404 for an unknown batch", func(t *testing.T) {
		w := post(t, "invalid_id")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("🎉 executes an exported batch", func(t *testing.T) {
		data.CreatePayoutChainFixture(t, ctx, dbConnectionPool,
			data.ManualPayoutMethod, data.ApprovedPayoutStatus, decimal.RequireFromString("200.00"))
		data.CreatePayoutChainFixture(t, ctx, dbConnectionPool,
			data.ManualPayoutMethod, data.ApprovedPayoutStatus, decimal.RequireFromString("100.00"))
		batch, err := batchService.ExportBatch(ctx, "admin-1")
		require.NoError(t, err)

		w := post(t, batch.ID)
		assert.Equal(t, http.StatusOK, w.Code)

		var executed data.PayoutBatch
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &executed))
		assert.Equal(t, data.ExecutedPayoutBatchStatus, executed.Status)
		assert.Equal(t, "admin-1", executed.ExecutedBy)
		assert.NotNil(t, executed.ExecutedAt)

		bankDebits, err := models.LedgerEntries.GetByAccount(ctx, dbConnectionPool,
			data.BankAccountAccountType, "BANK_MAIN", &data.QueryParams{Page: 1, PageLimit: 20})
		require.NoError(t, err)
		debitCount := 0
		for _, entry := range bankDebits {
			if entry.EntryType == data.DebitLedgerEntryType {
				debitCount++
			}
		}
		assert.Equal(t, 2, debitCount)

		t.Run("re-executing the batch returns a 409", func(t *testing.T) {
			again := post(t, batch.ID)
			assert.Equal(t, http.StatusConflict, again.Code)
			assert.JSONEq(t, `{"error": "payout batch status does not allow this operation", "error_code": "invalid_batch_status"}`, again.Body.String())
		})
	})
}
