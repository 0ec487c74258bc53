package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/observability"
	"github.com/civicdesk/grievance-service/internal/persistence"
)

func newMigrateCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				names, err := persistence.MigrationNames()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is required to migrate")
			}
			logger, err := observability.NewLogger(cfg.Logger, cfg.App)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("failed to connect postgres: %w", err)
			}
			defer pg.Close()
			return persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), logger)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print embedded migrations without applying them")
	return cmd
}
