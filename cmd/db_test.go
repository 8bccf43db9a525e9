package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmdUtils "github.com/sebenzapay/escrow-platform-backend/cmd/utils"
	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/db/dbtest"
)

func getMigrationsApplied(t *testing.T, ctx context.Context, dbConnectionPool db.DBConnectionPool) []string {
	t.Helper()

	rows, err := dbConnectionPool.QueryContext(ctx, "SELECT id FROM escrow_migrations")
	require.NoError(t, err)
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		err := rows.Scan(&id)
		require.NoError(t, err)

		ids = append(ids, id)
	}

	require.NoError(t, rows.Err())

	return ids
}

func Test_DatabaseCommand_db_help(t *testing.T) {
	buf := new(strings.Builder)

	rootCmd := SetupCLI("x.y.z", "1234567890abcdef")
	rootCmd.SetArgs([]string{"db"})
	rootCmd.SetOut(buf)
	err := rootCmd.Execute()
	require.NoError(t, err)

	expectedContains := []string{
		"Database related commands",
		"sebenzapay-escrow db [flags]",
		"sebenzapay-escrow db [command]",
		"Schema migration helpers",
		"help for db",
		"--database-url string",
		`(default "postgres://localhost:5432/escrow?sslmode=disable")`,
	}

	output := buf.String()
	for _, expected := range expectedContains {
		assert.Contains(t, output, expected)
	}

	buf.Reset()
	rootCmd.SetArgs([]string{"db", "--help"})
	err = rootCmd.Execute()
	require.NoError(t, err)

	output = buf.String()
	for _, expected := range expectedContains {
		assert.Contains(t, output, expected)
	}
}

func Test_DatabaseCommand_db_migrate(t *testing.T) {
	dbt := dbtest.OpenWithoutMigrations(t)
	defer dbt.Close()

	cmdUtils.ClearTestEnvironment(t)

	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	ctx := context.Background()
	buf := new(strings.Builder)

	t.Run("migrate usage", func(t *testing.T) {
		rootCmd := SetupCLI("x.y.z", "1234567890abcdef")
		rootCmd.SetArgs([]string{"db", "migrate"})
		rootCmd.SetOut(buf)
		err = rootCmd.Execute()
		require.NoError(t, err)

		expectedContains := []string{
			"Schema migration helpers",
			"sebenzapay-escrow db migrate [flags]",
			"sebenzapay-escrow db migrate [command]",
			"Migrates database down [count] migrations",
			"Migrates database up [count] migrations",
			"help for migrate",
		}

		output := buf.String()
		for _, expected := range expectedContains {
			assert.Contains(t, output, expected)
		}
	})

	t.Run("db migrate up 1 and down 1", func(t *testing.T) {
		buf.Reset()
		log.DefaultLogger.SetOutput(buf)

		rootCmd := SetupCLI("x.y.z", "1234567890abcdef")
		rootCmd.SetArgs([]string{"db", "migrate", "up", "1", "--database-url", dbt.DSN})
		err = rootCmd.Execute()
		require.NoError(t, err)

		ids := getMigrationsApplied(t, ctx, dbConnectionPool)
		assert.Equal(t, []string{"2026-01-12.0.create-extensions-and-helpers.sql"}, ids)
		assert.Contains(t, buf.String(), "Successfully applied 1 migrations up.")

		buf.Reset()
		rootCmd.SetArgs([]string{"db", "migrate", "down", "1", "--database-url", dbt.DSN, "--yes"})
		err = rootCmd.Execute()
		require.NoError(t, err)

		ids = getMigrationsApplied(t, ctx, dbConnectionPool)
		assert.Equal(t, []string{}, ids)
		assert.Contains(t, buf.String(), "Successfully applied 1 migrations down.")
	})

	t.Run("db migrate up applies all remaining migrations", func(t *testing.T) {
		buf.Reset()
		log.DefaultLogger.SetOutput(buf)

		rootCmd := SetupCLI("x.y.z", "1234567890abcdef")
		rootCmd.SetArgs([]string{"db", "migrate", "up", "--database-url", dbt.DSN})
		err = rootCmd.Execute()
		require.NoError(t, err)

		ids := getMigrationsApplied(t, ctx, dbConnectionPool)
		assert.Len(t, ids, 7)
		assert.Contains(t, ids, "2026-01-13.0.create-payments.sql")
		assert.Contains(t, ids, "2026-02-02.0.create-settlement-batches.sql")
		assert.Contains(t, buf.String(), "Successfully applied 7 migrations up.")
	})
}
