package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/trendbot/internal/app"
	"github.com/abdulachik/trendbot/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  `Display statistics about stored trends, analyses, and published posts.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	stats, err := a.Store.DatabaseStats(ctx)
	if err != nil {
		return fmt.Errorf("database stats: %w", err)
	}

	version, err := a.Store.SchemaVersion(ctx)
	if err != nil {
		slog.Warn("failed to read schema version", "error", err)
		version = "unknown"
	}

	fmt.Println("=== TrendBot Statistics ===")
	fmt.Println()
	fmt.Printf("Database: %s (schema %s, %.1f MB)\n",
		cfg.DatabasePath, version, float64(stats.SizeBytes)/(1024*1024))
	fmt.Println()
	fmt.Println("Rows:")
	fmt.Printf("  Trends:   %d\n", stats.TrendCount)
	fmt.Printf("  Analyses: %d\n", stats.AnalysisCount)
	fmt.Printf("  Posts:    %d\n", stats.PostCount)
	fmt.Println()
	fmt.Println("Last 24h:")
	fmt.Printf("  Trends collected: %d\n", stats.TrendsLast24h)
	fmt.Printf("  Avg engagement:   %.1f\n", stats.AvgEngagement24h)
	fmt.Printf("  Max engagement:   %.1f\n", stats.MaxEngagement24h)
	fmt.Println()

	engagement, err := a.Store.EngagementStats(ctx, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("engagement stats: %w", err)
	}

	if len(engagement) > 0 {
		fmt.Println("  By source:")
		sources := make([]string, 0, len(engagement))
		for name := range engagement {
			sources = append(sources, name)
		}
		sort.Strings(sources)
		for _, name := range sources {
			st := engagement[name]
			fmt.Printf("    %s: %d trends, avg %.1f, max %.1f\n",
				name, st.Count, st.AvgEngagement, st.MaxEngagement)
		}
		fmt.Println()
	}

	if a.Index != nil {
		fmt.Println("Trend index:")
		fmt.Printf("  Documents: %d\n", a.Index.Count())
		fmt.Println()
	}

	return nil
}
