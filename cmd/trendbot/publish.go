package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/trendbot/internal/analyzer"
	"github.com/abdulachik/trendbot/internal/app"
	"github.com/abdulachik/trendbot/internal/config"
	"github.com/abdulachik/trendbot/internal/publisher"
)

var publishDryRun bool

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the latest analysis",
	Long: `Format the latest analysis as a short update and post it to Bluesky.

Examples:
  trendbot publish            # Actually post
  trendbot publish --dry-run  # Show what would be posted without posting`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().BoolVar(&publishDryRun, "dry-run", false, "Show what would be posted without actually posting")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !publishDryRun {
		if err := cfg.ValidateForPublishing(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if publishDryRun {
		return dryRunPublish(ctx, a)
	}

	res, err := a.Publisher.Publish(ctx)
	switch {
	case errors.Is(err, publisher.ErrNoAnalysis):
		fmt.Println("No analysis available to publish. Run `trendbot analyze` first.")
		return nil
	case errors.Is(err, publisher.ErrDailyLimit), errors.Is(err, publisher.ErrTooSoon):
		fmt.Printf("Not posting: %s.\n", err)
		return nil
	case err != nil:
		return fmt.Errorf("publish: %w", err)
	}

	fmt.Println("Posted successfully!")
	fmt.Println()
	fmt.Println(res.Text)
	fmt.Println()
	fmt.Printf("URL: %s\n", res.PostURL)

	return nil
}

// dryRunPublish formats and moderates the latest analysis without
// touching the platform or the publish log.
func dryRunPublish(ctx context.Context, a *app.App) error {
	analysis, err := a.Store.LatestAnalysis(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		fmt.Println("No analysis available to publish. Run `trendbot analyze` first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load analysis: %w", err)
	}

	text := publisher.FormatUpdate(analysis)

	fmt.Println("=== Post Content ===")
	fmt.Println()
	fmt.Println(text)
	fmt.Println()
	fmt.Printf("Length: %d/%d\n", len([]rune(text)), publisher.BlueskyMaxLength)

	verdict := analyzer.Moderate(text)
	fmt.Printf("Moderation: %s\n", verdict.Reason())
	fmt.Println()
	fmt.Println("=== DRY RUN - Not posting ===")

	return nil
}
