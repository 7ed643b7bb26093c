package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Strob0t/CodeAssist/internal/adapter/postgres"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate <up|down|status>",
	Short: "Manage the audit database schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logs, err := loadConfig()
		if err != nil {
			return err
		}
		defer flushLogs(logs)

		ctx := cmd.Context()
		dsn := cfg.Postgres.DSN
		switch args[0] {
		case "up":
			return postgres.RunMigrations(ctx, dsn)
		case "down":
			return postgres.RollbackMigrations(ctx, dsn, migrateSteps)
		case "status":
			v, err := postgres.MigrationVersion(ctx, dsn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		default:
			return fmt.Errorf("unknown migrate command %q", args[0])
		}
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
}
