package httphandler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/db/dbtest"
)

func Test_HealthHandler(t *testing.T) {
	dbt := dbtest.OpenWithoutMigrations(t)
	defer dbt.Close()

	dbConnectionPool, outerErr := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, outerErr)
	defer dbConnectionPool.Close()

	r := chi.NewRouter()
	handler := HealthHandler{
		Version:          "x.y.z",
		ServiceID:        "escrow-api",
		ReleaseID:        "1234567890abcdef",
		DBConnectionPool: dbConnectionPool,
	}
	r.Get("/health", handler.ServeHTTP)

	t.Run("🎉 healthy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"status": "pass",
			"version": "x.y.z",
			"service_id": "escrow-api",
			"release_id": "1234567890abcdef",
			"services": {
				"database": "pass"
			}
		}`, w.Body.String())
	})

	t.Run("unhealthy when the database is unreachable", func(t *testing.T) {
		closedPool, err := db.OpenDBConnectionPool(dbt.DSN)
		require.NoError(t, err)
		require.NoError(t, closedPool.Close())

		closedRouter := chi.NewRouter()
		closedRouter.Get("/health", HealthHandler{
			Version:          "x.y.z",
			ServiceID:        "escrow-api",
			ReleaseID:        "1234567890abcdef",
			DBConnectionPool: closedPool,
		}.ServeHTTP)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		closedRouter.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{
			"status": "fail",
			"version": "x.y.z",
			"service_id": "escrow-api",
			"release_id": "1234567890abcdef",
			"services": {
				"database": "fail"
			}
		}`, w.Body.String())
	})
}
