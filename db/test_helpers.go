package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sebenzapay/escrow-platform-backend/db/dbtest"
)

func openTestDBConnectionPool(t *testing.T) DBConnectionPool {
	t.Helper()

	dbt := dbtest.Open(t)
	dbConnectionPool, err := OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)

	t.Cleanup(func() {
		dbConnectionPool.Close()
	})

	return dbConnectionPool
}
