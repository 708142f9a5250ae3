// Package stats computes aggregate views over collected trends.
package stats

import (
	"math"
	"sort"

	"github.com/abdulachik/trendbot/internal/db"
)

// previewLen caps the content preview attached to top topics.
const previewLen = 100

// SourceBreakdown summarizes one source's share of a trend set.
type SourceBreakdown struct {
	Count           int
	TotalEngagement float64
	AvgEngagement   float64
}

// TopicPreview pairs a topic with its engagement and a short content
// excerpt.
type TopicPreview struct {
	Topic           string
	Source          string
	EngagementScore float64
	Preview         string
}

// TopN returns the n highest-engagement trends. The input is not
// modified; ties keep their input order.
func TopN(trends []db.StoredTrend, n int) []db.StoredTrend {
	if len(trends) == 0 || n <= 0 {
		return nil
	}

	sorted := make([]db.StoredTrend, len(trends))
	copy(sorted, trends)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EngagementScore > sorted[j].EngagementScore
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// BySource groups a trend set into per-source breakdowns. Averages are
// rounded to two decimal places.
func BySource(trends []db.StoredTrend) map[string]SourceBreakdown {
	breakdown := make(map[string]SourceBreakdown)

	for _, trend := range trends {
		b := breakdown[trend.Source]
		b.Count++
		b.TotalEngagement += trend.EngagementScore
		breakdown[trend.Source] = b
	}

	for src, b := range breakdown {
		b.AvgEngagement = round2(b.TotalEngagement / float64(b.Count))
		breakdown[src] = b
	}

	return breakdown
}

// TopTopics returns previews of the n highest-engagement trends.
func TopTopics(trends []db.StoredTrend, n int) []TopicPreview {
	top := TopN(trends, n)
	if len(top) == 0 {
		return nil
	}

	previews := make([]TopicPreview, len(top))
	for i, trend := range top {
		previews[i] = TopicPreview{
			Topic:           trend.Topic,
			Source:          trend.Source,
			EngagementScore: trend.EngagementScore,
			Preview:         preview(trend.Content, previewLen),
		}
	}

	return previews
}

// TotalEngagement sums engagement across a trend set.
func TotalEngagement(trends []db.StoredTrend) float64 {
	var total float64
	for _, trend := range trends {
		total += trend.EngagementScore
	}
	return total
}

func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
