// Package collector orchestrates one collection pass: fetch from every
// available source concurrently, clean and dedup the batch, and store it.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abdulachik/trendbot/internal/db"
	"github.com/abdulachik/trendbot/internal/retry"
	"github.com/abdulachik/trendbot/internal/source"
)

const (
	// defaultTimeout bounds one whole collection pass.
	defaultTimeout = 5 * time.Minute

	// defaultWorkers bounds concurrent source fetches.
	defaultWorkers = 4

	// defaultFailureThreshold is the batch fraction of store failures
	// past which the store loop aborts.
	defaultFailureThreshold = 0.5

	defaultLimit = 20
)

// Phase is the lifecycle stage of a collection pass.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDispatching
	PhaseAwaiting
	PhaseAggregating
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDispatching:
		return "dispatching"
	case PhaseAwaiting:
		return "awaiting"
	case PhaseAggregating:
		return "aggregating"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// Indexer receives stored trends for similarity search. Index failures
// never fail collection.
type Indexer interface {
	IndexTrend(ctx context.Context, trend db.StoredTrend) error
}

// Result summarizes one collection pass.
type Result struct {
	OperationID string
	StartedAt   time.Time
	Duration    time.Duration

	// TimedOut is set when the pass hit its global timeout; the counts
	// then cover only the sources that finished in time.
	TimedOut bool

	// Sources maps each dispatched source to its fetched count. Failed
	// sources appear with a zero count.
	Sources map[string]int

	Collected int
	Dropped   int
	// Duplicates counts both in-batch repeats and records already
	// stored within the dedup window.
	Duplicates int
	Stored     int
	Failed     int
	Aborted    bool
}

// DefaultLimits returns the per-source fetch limits.
func DefaultLimits() map[string]int {
	return map[string]int{
		source.Twitter:    50,
		source.GitHub:     30,
		source.Reddit:     30,
		source.HackerNews: 20,
	}
}

// DefaultPolicies returns the per-source retry policies.
func DefaultPolicies() map[string]retry.Policy {
	return map[string]retry.Policy{
		source.Twitter:    {MaxAttempts: 3, BaseDelay: 2 * time.Second, BackoffFactor: 2, MaxDelay: 60 * time.Second},
		source.GitHub:     {MaxAttempts: 3, BaseDelay: 1500 * time.Millisecond, BackoffFactor: 2, MaxDelay: 60 * time.Second},
		source.Reddit:     {MaxAttempts: 2, BaseDelay: 3 * time.Second, BackoffFactor: 2, MaxDelay: 60 * time.Second},
		source.HackerNews: {MaxAttempts: 3, BaseDelay: time.Second, BackoffFactor: 2, MaxDelay: 60 * time.Second},
	}
}

// Config holds collector configuration.
type Config struct {
	Store    *db.Store
	Fetchers []source.Fetcher
	Status   *source.StatusTracker

	// Limits overrides per-source fetch limits.
	Limits map[string]int

	// Policies overrides per-source retry policies.
	Policies map[string]retry.Policy

	// Timeout bounds the whole pass. Zero means the default.
	Timeout time.Duration

	// Workers bounds concurrent fetches. Zero means the default.
	Workers int

	// FailureThreshold is the store-failure fraction past which the
	// batch aborts. Zero or negative means the default.
	FailureThreshold float64

	// Indexer, when set, receives stored trends best effort.
	Indexer Indexer
}

// Collector fans a collection pass out over the configured fetchers.
type Collector struct {
	store    *db.Store
	fetchers []source.Fetcher
	status   *source.StatusTracker
	limits   map[string]int
	policies map[string]retry.Policy
	timeout  time.Duration
	workers  int
	failFrac float64
	indexer  Indexer

	runMu sync.Mutex
	phase atomic.Int32
}

// New creates a Collector.
func New(cfg Config) *Collector {
	status := cfg.Status
	if status == nil {
		status = source.NewStatusTracker()
	}

	limits := cfg.Limits
	if limits == nil {
		limits = DefaultLimits()
	}

	policies := cfg.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	failFrac := cfg.FailureThreshold
	if failFrac <= 0 {
		failFrac = defaultFailureThreshold
	}

	return &Collector{
		store:    cfg.Store,
		fetchers: cfg.Fetchers,
		status:   status,
		limits:   limits,
		policies: policies,
		timeout:  timeout,
		workers:  workers,
		failFrac: failFrac,
		indexer:  cfg.Indexer,
	}
}

// Phase reports the current lifecycle stage.
func (c *Collector) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Collector) setPhase(p Phase) {
	c.phase.Store(int32(p))
}

// Status exposes the shared source status tracker.
func (c *Collector) Status() *source.StatusTracker {
	return c.status
}

type fetchOutcome struct {
	source string
	trends []source.Trend
	err    error
}

// Collect runs one collection pass. A source failing or the pass timing
// out degrades the result, it does not error; only one pass runs at a
// time.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	start := time.Now()
	res := &Result{
		OperationID: uuid.NewString(),
		StartedAt:   start,
		Sources:     make(map[string]int),
	}

	c.setPhase(PhaseDispatching)
	defer c.setPhase(PhaseDone)

	dispatch := c.dispatchable()
	slog.Info("starting collection",
		"operation_id", res.OperationID,
		"sources", len(dispatch),
	)

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Buffered so late fetches can finish and be discarded without
	// blocking.
	results := make(chan fetchOutcome, len(dispatch))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, f := range dispatch {
		g.Go(func() error {
			trends, err := c.fetchOne(fetchCtx, f)
			results <- fetchOutcome{source: f.Name(), trends: trends, err: err}
			return nil
		})
	}

	c.setPhase(PhaseAwaiting)

	var collected []source.Trend
	received := 0
await:
	for received < len(dispatch) {
		select {
		case out := <-results:
			received++
			res.Sources[out.source] = len(out.trends)
			collected = append(collected, out.trends...)
		case <-fetchCtx.Done():
			res.TimedOut = true
			slog.Warn("collection timed out",
				"operation_id", res.OperationID,
				"received", received,
				"dispatched", len(dispatch),
			)
			break await
		}
	}

	c.setPhase(PhaseAggregating)

	res.Collected = len(collected)

	cleaned, dropped := cleanBatch(collected, start)
	res.Dropped = dropped

	unique, repeats := dedupeBatch(cleaned)
	res.Duplicates = repeats

	sortByEngagement(unique)

	c.storeBatch(ctx, unique, res)

	res.Duration = time.Since(start)
	slog.Info("collection complete",
		"operation_id", res.OperationID,
		"collected", res.Collected,
		"stored", res.Stored,
		"duplicates", res.Duplicates,
		"dropped", res.Dropped,
		"failed", res.Failed,
		"timed_out", res.TimedOut,
		"duration", res.Duration,
	)

	return res, nil
}

// dispatchable filters fetchers by source availability. Hacker News
// needs no credentials and is always dispatched.
func (c *Collector) dispatchable() []source.Fetcher {
	var out []source.Fetcher
	for _, f := range c.fetchers {
		if f.Name() == source.HackerNews || c.status.Available(f.Name()) {
			out = append(out, f)
			continue
		}
		slog.Info("skipping unavailable source", "source", f.Name())
	}
	return out
}

// fetchOne runs a single source fetch under its retry policy, recording
// the outcome on the status tracker.
func (c *Collector) fetchOne(ctx context.Context, f source.Fetcher) ([]source.Trend, error) {
	name := f.Name()

	policy, ok := c.policies[name]
	if !ok {
		policy = retry.DefaultPolicy()
	}
	policy.RetryIf = source.Retryable

	trends, err := retry.Do(ctx, policy, name+" fetch", func(ctx context.Context) ([]source.Trend, error) {
		return f.Fetch(ctx, c.limitFor(name))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("fetch cancelled", "source", name, "error", err)
		} else {
			c.status.RecordFailure(name, err)
			slog.Error("fetch failed", "source", name, "error", err)
		}
		return nil, err
	}

	c.status.RecordSuccess(name)
	slog.Debug("fetched trends", "source", name, "count", len(trends))
	return trends, nil
}

func (c *Collector) limitFor(name string) int {
	if n, ok := c.limits[name]; ok && n > 0 {
		return n
	}
	return defaultLimit
}

// storeBatch writes the batch, tolerating per-item failures until they
// exceed the configured fraction of the batch.
func (c *Collector) storeBatch(ctx context.Context, batch []source.Trend, res *Result) {
	for _, trend := range batch {
		id, outcome, err := c.store.InsertTrend(ctx, trend)
		if err != nil {
			res.Failed++
			slog.Error("failed to store trend",
				"source", trend.Source,
				"topic", trend.Topic,
				"error", err,
			)
			if float64(res.Failed) > float64(len(batch))*c.failFrac {
				res.Aborted = true
				slog.Error("aborting batch store",
					"failed", res.Failed,
					"batch", len(batch),
				)
				return
			}
			continue
		}

		switch outcome {
		case db.Stored:
			res.Stored++
			c.indexTrend(ctx, id, trend)
		case db.Duplicate:
			res.Duplicates++
		case db.Rejected:
			res.Dropped++
		}
	}
}

func (c *Collector) indexTrend(ctx context.Context, id int64, trend source.Trend) {
	if c.indexer == nil {
		return
	}

	err := c.indexer.IndexTrend(ctx, db.StoredTrend{
		ID:              id,
		Source:          trend.Source,
		Topic:           trend.Topic,
		Content:         trend.Content,
		URL:             trend.URL,
		EngagementScore: trend.EngagementScore,
		CollectedAt:     trend.CollectionTime,
	})
	if err != nil {
		slog.Warn("trend index insert failed", "id", id, "error", err)
	}
}
