package db

import (
	"fmt"
	"net/http"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/sebenzapay/escrow-platform-backend/db/migrations"
	"github.com/sebenzapay/escrow-platform-backend/internal/utils"
)

const MigrationsTableName = "escrow_migrations"

// Migrate applies the embedded SQL migrations in dir direction, up to count
// steps (0 means all).
func Migrate(dbURL string, dir migrate.MigrationDirection, count int) (int, error) {
	dbConnectionPool, err := OpenDBConnectionPool(dbURL)
	if err != nil {
		return 0, fmt.Errorf("database URL '%s': %w", utils.TruncateString(dbURL, len(dbURL)/4), err)
	}
	defer dbConnectionPool.Close()

	ms := migrate.MigrationSet{
		TableName: MigrationsTableName,
	}

	m := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrations.FS)}
	return ms.ExecMax(dbConnectionPool.SqlDB(), dbConnectionPool.DriverName(), m, dir, count)
}
