package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/app"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/database"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "campctl",
		Short: "Maintenance tasks for the camp registration service",
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	logger.Init(cfg.LogMode, logger.Options{Dir: cfg.LogDir})
	return cfg
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s database\n", cfg.DatabaseDriver)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove abandoned pending registrations and donations",
		Long: `Cancels open payment intents of pending records older than the
staleness window and deletes those records. Records whose payment in fact
succeeded are reconciled instead of deleted. Records whose intent cannot be
fetched are kept for the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if olderThan > 0 {
				cfg.StalePendingAfter = olderThan
			}
			container, err := app.NewContainer(cfg, false)
			if err != nil {
				return err
			}
			defer container.Close()

			result, err := container.Engine.SweepAbandoned(context.Background(), time.Now())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d registrations and %d donations, reconciled %d, skipped %d\n",
				result.Registrations, result.Donations, result.Reconciled, result.Skipped)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override STALE_PENDING_AFTER")
	return cmd
}
