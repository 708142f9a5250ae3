// Package analyzer turns recent trends into stored analysis snapshots.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/abdulachik/trendbot/internal/db"
	"github.com/abdulachik/trendbot/internal/stats"
)

// ErrNoTrends reports an analysis window with nothing in it.
var ErrNoTrends = errors.New("no recent trends to analyze")

const (
	defaultWindow = 24 * time.Hour

	// minDataPoints is the smallest window a stored analysis may cover.
	minDataPoints = 5

	minInsightLen = 20
)

// Config holds analyzer configuration.
type Config struct {
	Store *db.Store

	// Insighter generates the prose insights. Nil means the heuristic
	// implementation.
	Insighter Insighter

	// Window is how far back to read trends. Zero means 24h.
	Window time.Duration
}

// Analyzer derives an analysis snapshot from the recent trend window.
type Analyzer struct {
	store     *db.Store
	insighter Insighter
	window    time.Duration
}

// New creates an Analyzer.
func New(cfg Config) *Analyzer {
	insighter := cfg.Insighter
	if insighter == nil {
		insighter = HeuristicInsighter{}
	}

	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}

	return &Analyzer{
		store:     cfg.Store,
		insighter: insighter,
		window:    window,
	}
}

// Quality is the validation verdict on an analysis.
type Quality struct {
	Valid  bool
	Issues []string
	Score  float64
}

// Result is one completed analysis pass.
type Result struct {
	// AnalysisID is the stored row id, zero when validation failed and
	// nothing was persisted.
	AnalysisID int64

	Summary    string
	Sentiment  float64
	Insights   string
	DataPoints int
	TopTopics  []stats.TopicPreview
	Breakdown  map[string]stats.SourceBreakdown
	Quality    Quality
	Duration   time.Duration
}

// Stored reports whether the analysis passed validation and was
// persisted.
func (r *Result) Stored() bool {
	return r.AnalysisID > 0
}

// Analyze reads the recent trend window, generates insights, validates
// the outcome, and persists it when valid. Insighter failures degrade
// to empty insights with neutral sentiment; an empty window returns
// ErrNoTrends.
func (a *Analyzer) Analyze(ctx context.Context) (*Result, error) {
	start := time.Now()

	trends, err := a.store.RecentTrends(ctx, a.window, "", 0)
	if err != nil {
		return nil, fmt.Errorf("load recent trends: %w", err)
	}
	if len(trends) == 0 {
		return nil, ErrNoTrends
	}

	digest := buildDigest(trends)

	insight, err := a.insighter.Summarize(ctx, digest)
	if err != nil {
		slog.Warn("insight generation failed, continuing without", "error", err)
		insight = Insight{}
	}

	sentiment := clampSentiment(insight.Sentiment)
	summary := buildSummary(trends, sentiment, digest.Breakdown)
	quality := validateQuality(insight.Text, len(trends), digest.Breakdown)

	res := &Result{
		Summary:    summary,
		Sentiment:  sentiment,
		Insights:   insight.Text,
		DataPoints: len(trends),
		TopTopics:  digest.Topics,
		Breakdown:  digest.Breakdown,
		Quality:    quality,
	}

	if !quality.Valid {
		res.Duration = time.Since(start)
		slog.Warn("analysis failed validation, not storing",
			"issues", strings.Join(quality.Issues, "; "),
			"data_points", len(trends),
		)
		return res, nil
	}

	id, err := a.store.InsertAnalysis(ctx, db.Analysis{
		Summary:        summary,
		SentimentScore: sentiment,
		Insights:       insight.Text,
		DataPoints:     int64(len(trends)),
		QualityScore:   quality.Score,
		ProcessingMS:   time.Since(start).Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}

	res.AnalysisID = id
	res.Duration = time.Since(start)

	slog.Info("analysis complete",
		"analysis_id", id,
		"data_points", len(trends),
		"sentiment", sentiment,
		"duration", res.Duration,
	)

	return res, nil
}

// buildSummary writes the one-line analysis summary.
func buildSummary(trends []db.StoredTrend, sentiment float64, breakdown map[string]stats.SourceBreakdown) string {
	descriptor := "neutral"
	switch {
	case sentiment > 0.1:
		descriptor = "positive"
	case sentiment < -0.1:
		descriptor = "negative"
	}

	var avg float64
	if len(trends) > 0 {
		avg = stats.TotalEngagement(trends) / float64(len(trends))
	}

	sources := make([]string, 0, len(breakdown))
	for src := range breakdown {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		parts = append(parts, fmt.Sprintf("%s(%d)", src, breakdown[src].Count))
	}

	return fmt.Sprintf("Analyzed %d trends with %s sentiment (score: %.2f). Average engagement: %.1f. Sources: %s.",
		len(trends), descriptor, sentiment, avg, strings.Join(parts, ", "))
}

// validateQuality checks an analysis before it may be stored: usable
// insights, enough data points, and a non-empty source breakdown.
func validateQuality(insights string, dataPoints int, breakdown map[string]stats.SourceBreakdown) Quality {
	const checks = 3
	var issues []string

	trimmed := strings.TrimSpace(insights)
	lower := strings.ToLower(trimmed)
	switch {
	case trimmed == "":
		issues = append(issues, "empty insights")
	case len(trimmed) < minInsightLen:
		issues = append(issues, "insights too short")
	case strings.Contains(lower, "error") || strings.Contains(lower, "failed"):
		issues = append(issues, "insights indicate a processing problem")
	default:
		if mod := Moderate(trimmed); !mod.Safe {
			issues = append(issues, "insights rejected by moderation: "+mod.Reason())
		}
	}

	if dataPoints < minDataPoints {
		issues = append(issues, fmt.Sprintf("insufficient data points (%d < %d)", dataPoints, minDataPoints))
	}

	if len(breakdown) == 0 {
		issues = append(issues, "no source breakdown")
	}

	score := math.Round(float64(checks-len(issues))/checks*100) / 100
	return Quality{Valid: len(issues) == 0, Issues: issues, Score: score}
}

func clampSentiment(s float64) float64 {
	return math.Max(-1, math.Min(1, s))
}
