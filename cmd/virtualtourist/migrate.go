package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msomdec/virtual-tourist/internal/repository/sqlite"
	"github.com/msomdec/virtual-tourist/internal/repository/sqlite/migrations"
)

func newMigrateCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			db, err := openDatabase(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			// Postgres schemas are reconciled by the ORM and have no
			// migration history to report.
			if sq, ok := db.(*sqlite.DB); ok {
				pending, err := migrations.Pending(cmd.Context(), sq.SqlDB)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Fprintln(out, "schema is up to date")
					return nil
				}
				for _, name := range pending {
					fmt.Fprintln(out, "pending:", name)
				}
			}
			if dryRun {
				return nil
			}

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintln(out, "migrations applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	return cmd
}
