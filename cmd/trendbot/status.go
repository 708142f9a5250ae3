package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/trendbot/internal/app"
	"github.com/abdulachik/trendbot/internal/config"
	"github.com/abdulachik/trendbot/internal/source"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bot status",
	Long:  `Display database health, source availability, and today's posting budget.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("=== TrendBot Status ===")
	fmt.Println()

	health := a.Store.HealthStatus(ctx)
	fmt.Println("Database:")
	fmt.Printf("  Path:      %s\n", cfg.DatabasePath)
	fmt.Printf("  Healthy:   %t\n", health.Healthy)
	fmt.Printf("  Journal:   %s\n", health.JournalMode)
	fmt.Printf("  Integrity: %s\n", health.Integrity)
	if health.Error != "" {
		fmt.Printf("  Error:     %s\n", health.Error)
	}
	fmt.Println()

	fmt.Println("Sources:")
	for _, name := range []string{source.HackerNews, source.GitHub, source.Reddit, source.Twitter} {
		st := a.Status.Status(name)
		state := "available"
		if !st.Available {
			state = "unavailable (no credentials)"
		}
		fmt.Printf("  %s: %s", name, state)
		if st.ErrorCount > 0 {
			fmt.Printf(", %d recent errors (last: %v)", st.ErrorCount, st.LastError)
		}
		fmt.Println()
	}
	fmt.Println()

	fmt.Println("Posting:")
	if a.Publisher == nil {
		fmt.Println("  Not configured (set BLUESKY_HANDLE and BLUESKY_APP_PASSWORD).")
	} else {
		st, err := a.Publisher.Status(ctx)
		if err != nil {
			return fmt.Errorf("posting status: %w", err)
		}
		fmt.Printf("  Platform:     %s\n", st.Platform)
		fmt.Printf("  Posted today: %d/%d\n", st.PostedToday, st.DailyLimit)
		fmt.Printf("  Can post now: %t\n", st.CanPostNow)
		if st.WaitTime > 0 {
			fmt.Printf("  Next slot in: %s\n", st.WaitTime)
		}
	}
	fmt.Println()

	fmt.Println("Trend index:")
	if a.Index == nil {
		fmt.Println("  Disabled (set VECLITE_PATH to enable).")
	} else {
		fmt.Printf("  Path:      %s\n", cfg.VecLitePath)
		fmt.Printf("  Documents: %d\n", a.Index.Count())
	}

	return nil
}
