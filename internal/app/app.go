// Package app wires configuration into the bot's components. Every
// command goes through New so the wiring lives in exactly one place.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abdulachik/trendbot/internal/analyzer"
	"github.com/abdulachik/trendbot/internal/collector"
	"github.com/abdulachik/trendbot/internal/config"
	"github.com/abdulachik/trendbot/internal/db"
	"github.com/abdulachik/trendbot/internal/embedder"
	"github.com/abdulachik/trendbot/internal/notify"
	"github.com/abdulachik/trendbot/internal/publisher"
	"github.com/abdulachik/trendbot/internal/ratelimit"
	"github.com/abdulachik/trendbot/internal/source"
	"github.com/abdulachik/trendbot/internal/trendindex"
)

// App holds the wired components. Poster and Publisher are nil without
// Bluesky credentials; Index is nil unless VECLITE_PATH is set and the
// index opens; Notifier is nil without NOTIFY_HANDLE.
type App struct {
	Config    *config.Config
	Store     *db.Store
	Status    *source.StatusTracker
	Collector *collector.Collector
	Analyzer  *analyzer.Analyzer
	Publisher *publisher.Publisher
	Poster    publisher.Poster
	Index     *trendindex.Index
	Notifier  notify.Notifier
}

// New opens the store, runs migrations, and wires every component the
// configuration enables.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	status := source.NewStatusTracker()
	status.SetAvailable(source.Twitter, cfg.TwitterBearerToken != "")
	status.SetAvailable(source.Reddit, cfg.RedditClientID != "" && cfg.RedditClientSecret != "")
	// GitHub works unauthenticated at a lower rate limit, and Hacker
	// News needs no credentials at all.
	status.SetAvailable(source.GitHub, true)
	status.SetAvailable(source.HackerNews, true)

	gate := ratelimit.New(ratelimit.DefaultIntervals(), status)

	fetchers := []source.Fetcher{
		source.NewHackerNewsFetcher(source.HackerNewsConfig{Gate: gate}),
		source.NewGitHubFetcher(source.GitHubConfig{Token: cfg.GitHubToken, Gate: gate}),
		source.NewRedditFetcher(source.RedditConfig{
			ClientID:     cfg.RedditClientID,
			ClientSecret: cfg.RedditClientSecret,
			UserAgent:    cfg.RedditUserAgent,
			Gate:         gate,
		}),
		source.NewTwitterFetcher(source.TwitterConfig{BearerToken: cfg.TwitterBearerToken, Gate: gate}),
	}

	var index *trendindex.Index
	if cfg.IndexEnabled() {
		emb := embedder.New(embedder.Config{Host: cfg.OllamaHost, Model: cfg.EmbeddingModel})
		index, err = trendindex.Open(trendindex.Config{Path: cfg.VecLitePath, Embedder: emb})
		if err != nil {
			// The index is an enrichment; the pipeline runs without it.
			slog.Error("trend index unavailable", "path", cfg.VecLitePath, "error", err)
			index = nil
		}
	}

	collectorCfg := collector.Config{
		Store:    store,
		Fetchers: fetchers,
		Status:   status,
		Limits: map[string]int{
			source.Twitter:    cfg.TwitterLimit,
			source.GitHub:     cfg.GitHubLimit,
			source.Reddit:     cfg.RedditLimit,
			source.HackerNews: cfg.HackerNewsLimit,
		},
		Timeout:          cfg.CollectionTimeout,
		FailureThreshold: cfg.StoreFailureThreshold,
	}
	// Assign only a non-nil index so the collector's nil check on the
	// interface holds.
	if index != nil {
		collectorCfg.Indexer = index
	}

	var insighter analyzer.Insighter
	if cfg.AnthropicAPIKey != "" {
		insighter = analyzer.NewClaudeInsighter(analyzer.ClaudeConfig{APIKey: cfg.AnthropicAPIKey})
	}

	var poster publisher.Poster
	var pub *publisher.Publisher
	if cfg.BlueskyHandle != "" && cfg.BlueskyAppPassword != "" {
		poster = publisher.NewBlueskyPoster(publisher.BlueskyConfig{
			Handle:      cfg.BlueskyHandle,
			AppPassword: cfg.BlueskyAppPassword,
		})
		pub = publisher.New(publisher.Config{
			Store:       store,
			Poster:      poster,
			DailyLimit:  cfg.DailyPostLimit,
			MinInterval: cfg.MinPostInterval,
		})
	}

	var notifier notify.Notifier
	if cfg.NotifyHandle != "" {
		notifier = notify.NewLogNotifier(cfg.NotifyHandle)
	}

	return &App{
		Config:    cfg,
		Store:     store,
		Status:    status,
		Collector: collector.New(collectorCfg),
		Analyzer:  analyzer.New(analyzer.Config{Store: store, Insighter: insighter}),
		Publisher: pub,
		Poster:    poster,
		Index:     index,
		Notifier:  notifier,
	}, nil
}

// Close releases the store and, when open, the trend index.
func (a *App) Close() error {
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			slog.Error("close trend index", "error", err)
		}
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
