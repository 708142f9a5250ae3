// Package ratelimit spaces outbound calls per source, slowing down
// further when a source has been failing.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// defaultInterval applies to sources without a configured interval.
	defaultInterval = time.Second

	// delayPerError is the extra spacing added per recent error.
	delayPerError = 500 * time.Millisecond

	// maxAdaptiveDelay caps the error-driven extra spacing.
	maxAdaptiveDelay = 5 * time.Second
)

// Intervals enumerates the minimum request spacing for each recognized
// source. There is no way to configure a source outside this set.
type Intervals struct {
	Twitter    time.Duration
	GitHub     time.Duration
	Reddit     time.Duration
	HackerNews time.Duration
}

// DefaultIntervals returns the standard per-source spacing.
func DefaultIntervals() Intervals {
	return Intervals{
		Twitter:    time.Second,
		GitHub:     500 * time.Millisecond,
		Reddit:     2 * time.Second,
		HackerNews: time.Second,
	}
}

// ErrorCounter reports the recent consecutive error count for a source.
type ErrorCounter interface {
	ErrorCount(source string) int
}

// Limiter gates outbound calls so that consecutive calls for one source
// are spaced by at least that source's minimum interval, stretched by an
// adaptive delay while the source is erroring. Sources never share a
// limiter, so gating one source does not slow another.
type Limiter struct {
	intervals map[string]time.Duration
	counts    ErrorCounter

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	lim  *rate.Limiter
	base time.Duration
}

// New creates a Limiter. counts may be nil, in which case no adaptive
// delay is ever applied.
func New(intervals Intervals, counts ErrorCounter) *Limiter {
	return &Limiter{
		intervals: map[string]time.Duration{
			"twitter":    intervals.Twitter,
			"github":     intervals.GitHub,
			"reddit":     intervals.Reddit,
			"hackernews": intervals.HackerNews,
		},
		counts:  counts,
		entries: make(map[string]*entry),
	}
}

// Gate blocks until the source's spacing allows another call. The first
// call for a source passes immediately. Returns early with the context
// error if ctx is cancelled while waiting.
func (l *Limiter) Gate(ctx context.Context, source string) error {
	e := l.entry(source)

	interval := e.base
	if l.counts != nil {
		interval += AdaptiveDelay(l.counts.ErrorCount(source))
	}
	e.lim.SetLimit(rate.Every(interval))

	return e.lim.Wait(ctx)
}

func (l *Limiter) entry(source string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[source]; ok {
		return e
	}

	base, ok := l.intervals[source]
	if !ok || base <= 0 {
		base = defaultInterval
	}
	e := &entry{
		lim:  rate.NewLimiter(rate.Every(base), 1),
		base: base,
	}
	l.entries[source] = e
	return e
}

// AdaptiveDelay returns the extra spacing for a source with the given
// error count: half a second per error, capped at five seconds.
func AdaptiveDelay(errorCount int) time.Duration {
	if errorCount <= 0 {
		return 0
	}
	d := time.Duration(errorCount) * delayPerError
	if d > maxAdaptiveDelay {
		return maxAdaptiveDelay
	}
	return d
}
