package dbtest

import (
	"net/http"
	"testing"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/stellar/go-stellar-sdk/support/db/dbtest"

	"github.com/sebenzapay/escrow-platform-backend/db/migrations"
)

// OpenWithoutMigrations opens a disposable Postgres database for tests.
func OpenWithoutMigrations(t *testing.T) *dbtest.DB {
	return dbtest.Postgres(t)
}

// Open opens a disposable Postgres database and applies all migrations.
func Open(t *testing.T) *dbtest.DB {
	database := OpenWithoutMigrations(t)

	conn := database.Open()
	defer conn.Close()

	ms := migrate.MigrationSet{TableName: "escrow_migrations"}
	m := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrations.FS)}
	_, err := ms.ExecMax(conn.DB, "postgres", m, migrate.Up, 0)
	if err != nil {
		t.Fatal(err)
	}

	return database
}
