package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/engine/infra/postgres"
	"github.com/taskgate/taskgate/pkg/config"
	"github.com/taskgate/taskgate/pkg/logger"
)

// NewMigrateCmd applies the embedded database migrations and exits.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := logger.NewLogger(&logger.Config{
				Level:  logger.LogLevel(cfg.Log.Level),
				Output: os.Stdout,
				JSON:   cfg.Log.JSON,
			})
			ctx := logger.ContextWithLogger(cmd.Context(), log)

			if err := postgres.ApplyMigrations(ctx, cfg.Database.DSN()); err != nil {
				return fmt.Errorf("applying migrations: %w", err)
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
