package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/trendbot/internal/app"
	"github.com/abdulachik/trendbot/internal/config"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection pass",
	Long: `Fetch current trends from every available source, clean and dedup
the batch, and store it.`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForCollection(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Collector.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	fmt.Println("=== Collection Results ===")
	fmt.Println()
	fmt.Printf("Operation: %s\n", res.OperationID)
	fmt.Printf("Duration:  %s\n", res.Duration.Round(time.Millisecond))
	fmt.Println()

	sources := make([]string, 0, len(res.Sources))
	for name := range res.Sources {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	for _, name := range sources {
		fmt.Printf("  %s: %d\n", name, res.Sources[name])
	}
	fmt.Println()

	fmt.Printf("Collected:  %d\n", res.Collected)
	fmt.Printf("Stored:     %d\n", res.Stored)
	fmt.Printf("Duplicates: %d\n", res.Duplicates)
	fmt.Printf("Dropped:    %d\n", res.Dropped)
	fmt.Printf("Failed:     %d\n", res.Failed)

	if res.TimedOut {
		fmt.Println()
		fmt.Println("Warning: the pass timed out before every source finished.")
	}

	if res.Aborted {
		return fmt.Errorf("batch store aborted after %d failures", res.Failed)
	}

	return nil
}
