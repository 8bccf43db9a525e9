package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/cmd/utils"
	"github.com/sebenzapay/escrow-platform-backend/db"
)

const dbConfigOptionFlagName = "database-url"

type DatabaseCommand struct{}

func (c *DatabaseCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:              "db",
		Short:            "Database related commands",
		PersistentPreRun: utils.DefaultPersistentPreRun,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Fatalf("Error calling help command: %s", err.Error())
			}
		},
	}

	cmd.AddCommand(c.migrateCmd())

	return cmd
}

// migrateCmd returns a cobra.Command responsible for running the database
// migrations embedded in db/migrations. Applied files are tracked in the
// `escrow_migrations` table.
func (c *DatabaseCommand) migrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:              "migrate",
		Short:            "Schema migration helpers",
		PersistentPreRun: utils.DefaultPersistentPreRun,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Fatalf("Error calling help command: %s", err.Error())
			}
		},
	}

	migrateUpCmd := &cobra.Command{
		Use:              "up",
		Short:            "Migrates database up [count] migrations",
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRun: utils.DefaultPersistentPreRun,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			var count int
			if len(args) > 0 {
				var err error
				count, err = strconv.Atoi(args[0])
				if err != nil {
					log.Ctx(ctx).Fatalf("Invalid [count] argument: %s", args[0])
				}
			}

			if err := executeMigrations(ctx, globalOptions.DatabaseURL, migrate.Up, count); err != nil {
				log.Ctx(ctx).Fatalf("Error executing migrate up: %v", err)
			}
		},
	}

	var skipConfirmation bool
	migrateDownCmd := &cobra.Command{
		Use:              "down [count]",
		Short:            "Migrates database down [count] migrations",
		Args:             cobra.ExactArgs(1),
		PersistentPreRun: utils.DefaultPersistentPreRun,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			count, err := strconv.Atoi(args[0])
			if err != nil {
				log.Ctx(ctx).Fatalf("Invalid [count] argument: %s", args[0])
			}

			// Down migrations drop tables, payments and ledger entries
			// included.
			if !skipConfirmation && !confirmMigrateDown(count) {
				log.Ctx(ctx).Info("Migrate down aborted.")
				return
			}

			if err := executeMigrations(ctx, globalOptions.DatabaseURL, migrate.Down, count); err != nil {
				log.Ctx(ctx).Fatalf("Error executing migrate down: %v", err)
			}
		},
	}
	migrateDownCmd.Flags().BoolVar(&skipConfirmation, "yes", false, "Skip the confirmation prompt")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	return migrateCmd
}

func confirmMigrateDown(count int) bool {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Roll back %d migration(s)? This deletes the data in the dropped tables", count),
		IsConfirm: true,
	}

	res, err := prompt.Run()
	if err != nil {
		return false
	}
	return res == "y" || res == "Y"
}

// executeMigrations executes the migrations on the database, according with
// the direction and count.
func executeMigrations(ctx context.Context, dbURL string, dir migrate.MigrationDirection, count int) error {
	numMigrationsRun, err := db.Migrate(dbURL, dir, count)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	if numMigrationsRun == 0 {
		log.Ctx(ctx).Info("No migrations applied.")
	} else {
		log.Ctx(ctx).Infof("Successfully applied %d migrations %s.", numMigrationsRun, migrationDirectionStr(dir))
	}
	return nil
}

// migrationDirectionStr returns a string representation of the migration direction (up or down).
func migrationDirectionStr(dir migrate.MigrationDirection) string {
	if dir == migrate.Up {
		return "up"
	}
	return "down"
}
