package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/trendbot/internal/app"
	"github.com/abdulachik/trendbot/internal/config"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old rows and optimize the database",
	Long: `Delete trends and posts older than the retention window (analyses are
kept twice as long), then refresh the query planner statistics.

Examples:
  trendbot cleanup            # Use RETENTION_DAYS from the environment
  trendbot cleanup --days 7   # Override the retention window`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "Retention window in days (default: RETENTION_DAYS)")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	days := cleanupDays
	if days <= 0 {
		days = cfg.RetentionDays
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Store.Cleanup(ctx, days)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	if err := a.Store.Optimize(ctx); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}

	fmt.Printf("Removed %d rows (%d trends, %d analyses, %d posts) older than %d days.\n",
		stats.Total(), stats.Trends, stats.Analyses, stats.Posts, days)

	return nil
}
