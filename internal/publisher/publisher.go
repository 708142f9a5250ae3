// Package publisher posts analysis summaries to a social platform
// behind daily-limit and interval gates.
package publisher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abdulachik/trendbot/internal/analyzer"
	"github.com/abdulachik/trendbot/internal/db"
)

const (
	defaultDailyLimit = 3

	// defaultMinInterval is the shortest allowed gap between posts.
	defaultMinInterval = 5 * time.Minute
)

var (
	// ErrNoAnalysis reports an empty analysis table.
	ErrNoAnalysis = errors.New("no analysis available to publish")

	// ErrDailyLimit reports that today's posting budget is spent.
	ErrDailyLimit = errors.New("daily publish limit reached")

	// ErrTooSoon reports a publish attempt inside the minimum interval.
	ErrTooSoon = errors.New("minimum publish interval not elapsed")
)

// Config holds publisher configuration.
type Config struct {
	Store  *db.Store
	Poster Poster

	// DailyLimit caps successful posts per UTC day. Zero means 3.
	DailyLimit int

	// MinInterval is the in-process gap between posts. Zero means 5m.
	MinInterval time.Duration
}

// Publisher publishes the latest analysis through a Poster.
type Publisher struct {
	store       *db.Store
	poster      Poster
	dailyLimit  int
	minInterval time.Duration

	mu       sync.Mutex
	lastPost time.Time
}

// New creates a Publisher.
func New(cfg Config) *Publisher {
	dailyLimit := cfg.DailyLimit
	if dailyLimit <= 0 {
		dailyLimit = defaultDailyLimit
	}

	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = defaultMinInterval
	}

	return &Publisher{
		store:       cfg.Store,
		poster:      cfg.Poster,
		dailyLimit:  dailyLimit,
		minInterval: minInterval,
	}
}

// Result is one successful publish.
type Result struct {
	Platform   string
	Text       string
	PostID     string
	PostURL    string
	AnalysisID int64
}

// Publish formats the latest analysis and posts it. Gate refusals
// (no analysis, moderation, daily limit, interval) return sentinel or
// descriptive errors without touching the platform; actual post
// attempts are recorded in the publish log whether they succeed or
// fail.
func (p *Publisher) Publish(ctx context.Context) (*Result, error) {
	analysis, err := p.store.LatestAnalysis(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAnalysis
	}
	if err != nil {
		return nil, fmt.Errorf("load latest analysis: %w", err)
	}

	platform := p.poster.Platform()
	text := FormatUpdate(analysis)

	if mod := analyzer.Moderate(text); !mod.Safe {
		return nil, fmt.Errorf("post rejected by moderation: %s", mod.Reason())
	}

	count, err := p.store.TodayPublishedCount(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("check daily limit: %w", err)
	}
	if count >= int64(p.dailyLimit) {
		return nil, fmt.Errorf("%w (%d/%d today)", ErrDailyLimit, count, p.dailyLimit)
	}

	if wait := p.untilNextSlot(); wait > 0 {
		return nil, fmt.Errorf("%w (wait %s)", ErrTooSoon, wait.Round(time.Second))
	}

	postRes, postErr := p.poster.Post(ctx, text)

	record := db.PublishRecord{
		Platform:   platform,
		Content:    text,
		AnalysisID: analysis.ID,
		Success:    postErr == nil,
	}
	if postErr != nil {
		record.ErrorMsg = postErr.Error()
	} else {
		record.PostURI = postRes.PostID
	}
	if _, recErr := p.store.RecordPublish(ctx, record); recErr != nil {
		slog.Error("failed to record publish attempt", "error", recErr)
	}

	if postErr != nil {
		return nil, fmt.Errorf("post to %s: %w", platform, postErr)
	}

	p.mu.Lock()
	p.lastPost = time.Now()
	p.mu.Unlock()

	slog.Info("published analysis",
		"platform", platform,
		"analysis_id", analysis.ID,
		"post_id", postRes.PostID,
	)

	return &Result{
		Platform:   platform,
		Text:       text,
		PostID:     postRes.PostID,
		PostURL:    postRes.PostURL,
		AnalysisID: analysis.ID,
	}, nil
}

// untilNextSlot returns how long until the interval gate opens, zero
// when it already has.
func (p *Publisher) untilNextSlot() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastPost.IsZero() {
		return 0
	}
	wait := p.minInterval - time.Since(p.lastPost)
	if wait < 0 {
		return 0
	}
	return wait
}

// Status describes the current posting budget.
type Status struct {
	Platform    string
	DailyLimit  int
	PostedToday int64
	Remaining   int64
	CanPostNow  bool
	WaitTime    time.Duration
}

// Status reports today's posting budget and the interval gate.
func (p *Publisher) Status(ctx context.Context) (*Status, error) {
	platform := p.poster.Platform()

	count, err := p.store.TodayPublishedCount(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("count today's posts: %w", err)
	}

	remaining := int64(p.dailyLimit) - count
	if remaining < 0 {
		remaining = 0
	}

	wait := p.untilNextSlot()

	return &Status{
		Platform:    platform,
		DailyLimit:  p.dailyLimit,
		PostedToday: count,
		Remaining:   remaining,
		CanPostNow:  remaining > 0 && wait == 0,
		WaitTime:    wait,
	}, nil
}
