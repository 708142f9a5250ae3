package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/trendbot/internal/analyzer"
	"github.com/abdulachik/trendbot/internal/app"
	"github.com/abdulachik/trendbot/internal/config"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the recent trend window",
	Long: `Aggregate the last day of stored trends into an analysis snapshot:
summary, sentiment, insights, and per-source breakdown. Uses Claude
when ANTHROPIC_API_KEY is set, a heuristic summarizer otherwise.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	res, err := a.Analyzer.Analyze(ctx)
	if errors.Is(err, analyzer.ErrNoTrends) {
		fmt.Println("No recent trends to analyze. Run `trendbot collect` first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	fmt.Println("=== Analysis ===")
	fmt.Println()
	fmt.Println(res.Summary)
	fmt.Println()
	fmt.Printf("Sentiment:   %.2f\n", res.Sentiment)
	fmt.Printf("Data points: %d\n", res.DataPoints)
	fmt.Printf("Duration:    %s\n", res.Duration.Round(time.Millisecond))
	fmt.Println()

	if len(res.TopTopics) > 0 {
		fmt.Println("Top topics:")
		for i, topic := range res.TopTopics {
			fmt.Printf("  %d. %s (%s, %.0f)\n", i+1, topic.Topic, topic.Source, topic.EngagementScore)
		}
		fmt.Println()
	}

	if res.Insights != "" {
		fmt.Println("Insights:")
		fmt.Println(res.Insights)
		fmt.Println()
	}

	if res.Stored() {
		fmt.Printf("Stored as analysis %d (quality %.2f).\n", res.AnalysisID, res.Quality.Score)
		return nil
	}

	fmt.Printf("Discarded (quality %.2f):\n", res.Quality.Score)
	for _, issue := range res.Quality.Issues {
		fmt.Printf("  - %s\n", issue)
	}

	return nil
}
