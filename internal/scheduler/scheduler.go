// Package scheduler runs the standing pipeline: periodic collection,
// analysis, publishing, and cleanup, each on its own interval, with
// per-component health tracking.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/trendbot/internal/analyzer"
	"github.com/abdulachik/trendbot/internal/collector"
	"github.com/abdulachik/trendbot/internal/config"
	"github.com/abdulachik/trendbot/internal/db"
	"github.com/abdulachik/trendbot/internal/notify"
	"github.com/abdulachik/trendbot/internal/publisher"
)

// Component names used in health reporting.
const (
	componentCollector = "collector"
	componentAnalyzer  = "analyzer"
	componentPublisher = "publisher"
	componentCleanup   = "cleanup"
	componentPlatform  = "bluesky"
)

// Config holds the scheduler's already-built components.
type Config struct {
	Cfg       *config.Config
	Store     *db.Store
	Collector *collector.Collector
	Analyzer  *analyzer.Analyzer
	Publisher *publisher.Publisher
	Poster    publisher.Poster

	// Notifier, when set, receives publish and failure notices.
	Notifier notify.Notifier
}

// Scheduler drives the collection, analysis, publish, and cleanup
// loops.
type Scheduler struct {
	cfg       *config.Config
	store     *db.Store
	collector *collector.Collector
	analyzer  *analyzer.Analyzer
	publisher *publisher.Publisher
	poster    publisher.Poster
	notifier  notify.Notifier
	health    *Health
}

// New creates a Scheduler from pre-built components.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		cfg:       cfg.Cfg,
		store:     cfg.Store,
		collector: cfg.Collector,
		analyzer:  cfg.Analyzer,
		publisher: cfg.Publisher,
		poster:    cfg.Poster,
		notifier:  cfg.Notifier,
		health:    NewHealth(),
	}
}

// Health returns the scheduler's health tracker.
func (s *Scheduler) Health() *Health {
	return s.health
}

// Run starts the loops and blocks until ctx is cancelled. One
// collection pass runs immediately; everything else waits for its
// first tick.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting",
		"collect_interval", s.cfg.CollectInterval,
		"analysis_interval", s.cfg.AnalysisInterval,
		"publish_interval", s.cfg.PublishInterval,
		"cleanup_interval", s.cfg.CleanupInterval,
	)

	s.checkPlatform(ctx)

	collectTicker := time.NewTicker(s.cfg.CollectInterval)
	defer collectTicker.Stop()

	analysisTicker := time.NewTicker(s.cfg.AnalysisInterval)
	defer analysisTicker.Stop()

	publishTicker := time.NewTicker(s.cfg.PublishInterval)
	defer publishTicker.Stop()

	cleanupTicker := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	// Collect right away so a fresh deployment has data before the
	// first analysis tick.
	s.runCollect(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-collectTicker.C:
			s.runCollect(ctx)
		case <-analysisTicker.C:
			s.runAnalyze(ctx)
		case <-publishTicker.C:
			s.runPublish(ctx)
		case <-cleanupTicker.C:
			s.runCleanup(ctx)
		}
	}
}

// checkPlatform validates posting credentials once at startup so a bad
// app password surfaces immediately rather than at the first publish
// tick hours later.
func (s *Scheduler) checkPlatform(ctx context.Context) {
	if s.poster == nil {
		return
	}

	if err := s.poster.ValidateCredentials(ctx); err != nil {
		slog.Error("platform credential check failed", "platform", s.poster.Platform(), "error", err)
		s.health.SetUnhealthy(componentPlatform, err)
		return
	}

	s.health.SetHealthy(componentPlatform, "credentials valid")
}

func (s *Scheduler) runCollect(ctx context.Context) {
	res, err := s.collector.Collect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("collection failed", "error", err)
		s.health.SetUnhealthy(componentCollector, err)
		return
	}

	if res.Aborted {
		s.health.SetUnhealthy(componentCollector, errors.New("collection aborted: store failure threshold exceeded"))
		s.send(ctx, "Collection aborted",
			fmt.Sprintf("Store failures aborted the batch after %d of %d trends.", res.Stored, res.Collected))
		return
	}

	msg := fmt.Sprintf("stored %d of %d trends", res.Stored, res.Collected)
	if res.TimedOut {
		msg += " (pass timed out)"
	}
	s.health.SetHealthy(componentCollector, msg)
}

func (s *Scheduler) runAnalyze(ctx context.Context) {
	res, err := s.analyzer.Analyze(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, analyzer.ErrNoTrends) {
			// An empty window is a data gap, not an analyzer fault.
			slog.Info("analysis skipped", "reason", err)
			s.health.SetHealthy(componentAnalyzer, "no recent trends")
			return
		}
		slog.Error("analysis failed", "error", err)
		s.health.SetUnhealthy(componentAnalyzer, err)
		return
	}

	if !res.Stored() {
		// The pass ran but its output failed validation. The analyzer
		// already logged the issues.
		s.health.SetHealthy(componentAnalyzer, fmt.Sprintf("analysis discarded (quality %.2f)", res.Quality.Score))
		return
	}

	s.health.SetHealthy(componentAnalyzer, fmt.Sprintf("analyzed %d trends", res.DataPoints))
}

func (s *Scheduler) runPublish(ctx context.Context) {
	res, err := s.publisher.Publish(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		switch {
		case errors.Is(err, publisher.ErrNoAnalysis):
			slog.Info("publish skipped", "reason", "no analysis available")
			s.health.SetHealthy(componentPublisher, "waiting for first analysis")
		case errors.Is(err, publisher.ErrDailyLimit):
			slog.Info("publish skipped", "reason", "daily limit reached")
			s.health.SetHealthy(componentPublisher, "daily limit reached")
		case errors.Is(err, publisher.ErrTooSoon):
			slog.Info("publish skipped", "reason", "minimum interval not elapsed")
			s.health.SetHealthy(componentPublisher, "minimum interval not elapsed")
		default:
			slog.Error("publish failed", "error", err)
			s.health.SetUnhealthy(componentPublisher, err)
			s.send(ctx, "Publish failed", err.Error())
		}
		return
	}

	s.health.SetHealthy(componentPublisher, fmt.Sprintf("posted to %s", res.Platform))
	s.send(ctx, "Update published", fmt.Sprintf("Posted to %s: %s", res.Platform, res.PostURL))
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	stats, err := s.store.Cleanup(ctx, s.cfg.RetentionDays)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("cleanup failed", "error", err)
		s.health.SetUnhealthy(componentCleanup, err)
		return
	}

	s.health.SetHealthy(componentCleanup, fmt.Sprintf("removed %d rows", stats.Total()))
}

// send delivers a notification when a notifier is configured. Delivery
// failures are logged and dropped.
func (s *Scheduler) send(ctx context.Context, subject, body string) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.Send(ctx, notify.Notification{Subject: subject, Body: body}); err != nil {
		slog.Error("notification failed", "subject", subject, "error", err)
	}
}
