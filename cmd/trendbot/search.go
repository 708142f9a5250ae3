package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/trendbot/internal/app"
	"github.com/abdulachik/trendbot/internal/config"
	"github.com/abdulachik/trendbot/internal/trendindex"
)

var (
	searchKeyword  bool
	searchLimit    int
	searchBackfill bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed trends",
	Long: `Search the trend index for stored trends related to a query.

Semantic search embeds the query with Ollama and ranks by vector
similarity; --keyword ranks by BM25 text match instead.

Examples:
  trendbot search "rust async runtimes"
  trendbot search --keyword "postgres"
  trendbot search --backfill "kubernetes"  # index the recent window first`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchKeyword, "keyword", false, "Use BM25 keyword search instead of semantic search")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.Flags().BoolVar(&searchBackfill, "backfill", false, "Index the recent trend window before searching")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForIndex(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Index == nil {
		return fmt.Errorf("trend index unavailable at %s", cfg.VecLitePath)
	}

	if searchBackfill {
		window := time.Duration(cfg.RetentionDays) * 24 * time.Hour
		indexed, err := a.Index.Backfill(ctx, a.Store, window)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		fmt.Printf("Indexed %d trends.\n\n", indexed)
	}

	var results []trendindex.Result
	if searchKeyword {
		results, err = a.Index.Keyword(ctx, query, searchLimit)
	} else {
		results, err = a.Index.Related(ctx, query, searchLimit)
	}
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No matching trends found.")
		return nil
	}

	mode := "semantic"
	if searchKeyword {
		mode = "keyword"
	}
	fmt.Printf("=== %d results (%s) ===\n", len(results), mode)
	fmt.Println()

	for i, r := range results {
		fmt.Printf("%d. %s\n", i+1, r.Topic)
		fmt.Printf("   source: %s  engagement: %.0f  score: %.3f\n", r.Source, r.Engagement, r.Score)
	}

	return nil
}
