package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trendbot",
	Short: "A tech trend aggregation and publishing bot",
	Long: `TrendBot collects trending tech topics from Twitter, GitHub, Reddit,
and Hacker News, distills them into periodic analyses, and publishes
short updates to Bluesky.`,
}

func init() {
	// Load .env file if present
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
