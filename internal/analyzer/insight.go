package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/abdulachik/trendbot/internal/db"
	"github.com/abdulachik/trendbot/internal/stats"
)

const (
	// digestMaxItems caps how many trends feed the digest text.
	digestMaxItems = 30

	// digestPerSource caps listed items per source in the digest text.
	digestPerSource = 10
)

// Digest is the condensed view of a trend window handed to an
// Insighter.
type Digest struct {
	Total     int
	Topics    []stats.TopicPreview
	Breakdown map[string]stats.SourceBreakdown

	// Text is a per-source listing of the top items, rendered for
	// prompting.
	Text string
}

// Insight is what an Insighter reads out of a digest.
type Insight struct {
	Text      string
	Sentiment float64
}

// Insighter turns a trend digest into prose insights and an overall
// sentiment between -1 and 1.
type Insighter interface {
	Summarize(ctx context.Context, d Digest) (Insight, error)
}

// buildDigest condenses a trend window for analysis.
func buildDigest(trends []db.StoredTrend) Digest {
	d := Digest{
		Total:     len(trends),
		Topics:    stats.TopTopics(trends, 10),
		Breakdown: stats.BySource(trends),
	}

	capped := trends
	if len(capped) > digestMaxItems {
		capped = capped[:digestMaxItems]
	}

	bySource := make(map[string][]db.StoredTrend)
	for _, trend := range capped {
		bySource[trend.Source] = append(bySource[trend.Source], trend)
	}

	sources := make([]string, 0, len(bySource))
	for src := range bySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	var b strings.Builder
	for _, src := range sources {
		fmt.Fprintf(&b, "\n%s:\n", strings.ToUpper(src))
		for i, trend := range bySource[src] {
			if i >= digestPerSource {
				break
			}
			preview := trend.Content
			if r := []rune(preview); len(r) > 100 {
				preview = string(r[:100])
			}
			fmt.Fprintf(&b, "%d. %s (score: %.0f): %s\n", i+1, trend.Topic, trend.EngagementScore, preview)
		}
	}
	d.Text = b.String()

	return d
}

// HeuristicInsighter writes insight prose from the digest itself, with
// no external model. Sentiment always reads neutral.
type HeuristicInsighter struct{}

func (HeuristicInsighter) Summarize(_ context.Context, d Digest) (Insight, error) {
	if d.Total == 0 {
		return Insight{Text: "No trend data available for analysis."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Collected %d trends across %d sources. ", d.Total, len(d.Breakdown))

	if len(d.Topics) > 0 {
		names := make([]string, 0, 3)
		for i, topic := range d.Topics {
			if i >= 3 {
				break
			}
			names = append(names, fmt.Sprintf("%s (%s, %.0f)", topic.Topic, topic.Source, topic.EngagementScore))
		}
		fmt.Fprintf(&b, "Leading topics by engagement: %s. ", strings.Join(names, ", "))
	}

	if busiest, count := busiestSource(d.Breakdown); busiest != "" {
		fmt.Fprintf(&b, "%s contributed the most items (%d).", busiest, count)
	}

	return Insight{Text: strings.TrimSpace(b.String())}, nil
}

// busiestSource returns the source with the most items; ties resolve
// alphabetically.
func busiestSource(breakdown map[string]stats.SourceBreakdown) (string, int) {
	var name string
	var count int
	for src, b := range breakdown {
		if b.Count > count || (b.Count == count && (name == "" || src < name)) {
			name = src
			count = b.Count
		}
	}
	return name, count
}
