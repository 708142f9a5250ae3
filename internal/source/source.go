package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Recognized source names.
const (
	Twitter    = "twitter"
	GitHub     = "github"
	Reddit     = "reddit"
	HackerNews = "hackernews"
)

// Names returns all recognized source names in canonical order.
func Names() []string {
	return []string{Twitter, GitHub, Reddit, HackerNews}
}

// Field caps applied during validation and cleaning.
const (
	MinTopicLen   = 2
	MaxTopicLen   = 200
	MaxContentLen = 1000
	MaxURLLen     = 500
)

// Trend represents a single trend item harvested from one source.
type Trend struct {
	Source          string
	Topic           string
	Content         string
	URL             string
	EngagementScore float64
	Metadata        map[string]any
	CollectionTime  time.Time
}

// Clean trims the topic, caps text fields at their limits, and clamps a
// negative engagement score to zero. It returns the cleaned copy.
func (t Trend) Clean() Trend {
	t.Topic = Truncate(strings.TrimSpace(t.Topic), MaxTopicLen)
	t.Content = Truncate(t.Content, MaxContentLen)
	t.URL = Truncate(t.URL, MaxURLLen)
	if t.EngagementScore < 0 {
		t.EngagementScore = 0
	}
	return t
}

// Validate reports whether the trend satisfies the storage invariant:
// non-empty source, trimmed topic length within bounds, non-negative
// engagement score.
func (t Trend) Validate() error {
	if t.Source == "" {
		return errors.New("empty source")
	}
	topic := strings.TrimSpace(t.Topic)
	if n := len([]rune(topic)); n < MinTopicLen || n > MaxTopicLen {
		return fmt.Errorf("topic length %d outside [%d,%d]", n, MinTopicLen, MaxTopicLen)
	}
	if t.EngagementScore < 0 {
		return fmt.Errorf("negative engagement score %v", t.EngagementScore)
	}
	return nil
}

// Fetcher is the interface for trend sources.
type Fetcher interface {
	// Name returns the source name.
	Name() string

	// Fetch retrieves up to limit current trends from the source.
	Fetch(ctx context.Context, limit int) ([]Trend, error)
}

// Gater blocks until a source may make its next outbound call. Fetchers
// call it before every network request.
type Gater interface {
	Gate(ctx context.Context, source string) error
}

// gateWait applies the gate if one is configured.
func gateWait(ctx context.Context, g Gater, source string) error {
	if g == nil {
		return nil
	}
	return g.Gate(ctx, source)
}

// StatusError reports a non-success response from an upstream API.
type StatusError struct {
	Source string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned status %d", e.Source, e.Code)
}

// Retryable reports whether a fetch error is worth retrying. Transport
// failures and 429 or 5xx responses are; other upstream rejections and
// context cancellation are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= http.StatusInternalServerError
	}
	return true
}

// Status describes the recorded health of one source.
type Status struct {
	Available  bool
	LastError  string
	ErrorCount int
}

// StatusTracker records per-source availability and failure counts. Each
// source carries its own lock so bookkeeping for one source never blocks
// another's.
type StatusTracker struct {
	mu     sync.Mutex // guards the states map only
	states map[string]*sourceState
}

type sourceState struct {
	mu         sync.Mutex
	available  bool
	lastError  string
	errorCount int
}

// NewStatusTracker creates a tracker with every recognized source
// registered and marked unavailable.
func NewStatusTracker() *StatusTracker {
	t := &StatusTracker{states: make(map[string]*sourceState)}
	for _, name := range Names() {
		t.states[name] = &sourceState{}
	}
	return t
}

func (t *StatusTracker) state(source string) *sourceState {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[source]
	if !ok {
		st = &sourceState{}
		t.states[source] = st
	}
	return st
}

// SetAvailable marks whether a source may be dispatched. Called at wiring
// time from credential presence.
func (t *StatusTracker) SetAvailable(source string, available bool) {
	st := t.state(source)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.available = available
}

// Available reports whether the source is currently dispatchable.
func (t *StatusTracker) Available(source string) bool {
	st := t.state(source)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.available
}

// RecordSuccess marks the source available after a successful fetch.
func (t *StatusTracker) RecordSuccess(source string) {
	st := t.state(source)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.available = true
}

// RecordFailure notes a failed fetch attempt against the source. Auth
// rejections also mark the source unavailable; other failures only raise
// the error count, which feeds the adaptive rate delay.
func (t *StatusTracker) RecordFailure(source string, err error) {
	st := t.state(source)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.errorCount++
	if err == nil {
		return
	}
	st.lastError = err.Error()

	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden) {
		st.available = false
	}
}

// ErrorCount returns the number of recorded failures for the source.
func (t *StatusTracker) ErrorCount(source string) int {
	st := t.state(source)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.errorCount
}

// Status returns a copy of the source's current status.
func (t *StatusTracker) Status(source string) Status {
	st := t.state(source)
	st.mu.Lock()
	defer st.mu.Unlock()
	return Status{
		Available:  st.available,
		LastError:  st.lastError,
		ErrorCount: st.errorCount,
	}
}

// Snapshot returns the current status of every registered source.
func (t *StatusTracker) Snapshot() map[string]Status {
	t.mu.Lock()
	names := make([]string, 0, len(t.states))
	for name := range t.states {
		names = append(names, name)
	}
	t.mu.Unlock()

	out := make(map[string]Status, len(names))
	for _, name := range names {
		out[name] = t.Status(name)
	}
	return out
}

// Truncate shortens a string to at most max runes, adding an ellipsis if
// truncated.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
