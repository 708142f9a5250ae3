package collector

import (
	"log/slog"
	"sort"
	"time"

	"github.com/abdulachik/trendbot/internal/db"
	"github.com/abdulachik/trendbot/internal/source"
)

// cleanBatch normalizes each record and drops the ones that remain
// invalid after cleaning. Records without a collection time are stamped
// with the pass start.
func cleanBatch(trends []source.Trend, collectedAt time.Time) ([]source.Trend, int) {
	cleaned := make([]source.Trend, 0, len(trends))
	dropped := 0

	for _, trend := range trends {
		trend = trend.Clean()
		if trend.CollectionTime.IsZero() {
			trend.CollectionTime = collectedAt
		}

		if err := trend.Validate(); err != nil {
			slog.Debug("dropping invalid trend",
				"source", trend.Source,
				"topic", trend.Topic,
				"error", err,
			)
			dropped++
			continue
		}

		cleaned = append(cleaned, trend)
	}

	return cleaned, dropped
}

// dedupeBatch removes in-batch repeats by content hash, keeping the
// first occurrence.
func dedupeBatch(trends []source.Trend) ([]source.Trend, int) {
	seen := make(map[string]struct{}, len(trends))
	unique := make([]source.Trend, 0, len(trends))
	removed := 0

	for _, trend := range trends {
		hash := db.TrendHash(trend.Source, trend.Topic, trend.Content)
		if _, ok := seen[hash]; ok {
			removed++
			continue
		}
		seen[hash] = struct{}{}
		unique = append(unique, trend)
	}

	return unique, removed
}

// sortByEngagement orders a batch by engagement descending. Ties keep
// their arrival order.
func sortByEngagement(trends []source.Trend) {
	sort.SliceStable(trends, func(i, j int) bool {
		return trends[i].EngagementScore > trends[j].EngagementScore
	})
}
