package analyzer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/trendbot/internal/db"
	"github.com/abdulachik/trendbot/internal/stats"
)

func TestBuildDigest(t *testing.T) {
	t.Run("condenses a window", func(t *testing.T) {
		trends := []db.StoredTrend{
			{Source: "hackernews", Topic: "Go 1.25 released", Content: "the release notes", EngagementScore: 300},
			{Source: "hackernews", Topic: "SQLite internals", Content: "a deep dive", EngagementScore: 150},
			{Source: "reddit", Topic: "r/golang weekly", Content: "questions thread", EngagementScore: 80},
		}

		d := buildDigest(trends)

		assert.Equal(t, 3, d.Total)
		require.NotEmpty(t, d.Topics)
		assert.Equal(t, "Go 1.25 released", d.Topics[0].Topic)
		assert.Equal(t, 2, d.Breakdown["hackernews"].Count)
		assert.Equal(t, 1, d.Breakdown["reddit"].Count)

		assert.Contains(t, d.Text, "\nHACKERNEWS:\n")
		assert.Contains(t, d.Text, "\nREDDIT:\n")
		assert.Contains(t, d.Text, "1. Go 1.25 released (score: 300): the release notes\n")
		assert.Contains(t, d.Text, "2. SQLite internals (score: 150): a deep dive\n")
	})

	t.Run("lists source sections alphabetically", func(t *testing.T) {
		trends := []db.StoredTrend{
			{Source: "reddit", Topic: "r", Content: "c", EngagementScore: 1},
			{Source: "github", Topic: "g", Content: "c", EngagementScore: 1},
			{Source: "hackernews", Topic: "h", Content: "c", EngagementScore: 1},
		}

		d := buildDigest(trends)

		gh := strings.Index(d.Text, "GITHUB:")
		hn := strings.Index(d.Text, "HACKERNEWS:")
		rd := strings.Index(d.Text, "REDDIT:")
		assert.True(t, gh < hn && hn < rd)
	})

	t.Run("caps items per source", func(t *testing.T) {
		var trends []db.StoredTrend
		for i := 0; i < 12; i++ {
			trends = append(trends, db.StoredTrend{
				Source:          "hackernews",
				Topic:           fmt.Sprintf("story-%d", i+1),
				Content:         "c",
				EngagementScore: float64(100 - i),
			})
		}

		d := buildDigest(trends)

		assert.Contains(t, d.Text, "10. story-10")
		assert.NotContains(t, d.Text, "11.")
		assert.NotContains(t, d.Text, "story-11")
	})

	t.Run("caps the digest at thirty items", func(t *testing.T) {
		var trends []db.StoredTrend
		for _, src := range []string{"alpha", "beta", "gamma", "delta"} {
			for i := 0; i < 9; i++ {
				trends = append(trends, db.StoredTrend{
					Source:          src,
					Topic:           fmt.Sprintf("%s-%d", src, i+1),
					Content:         "c",
					EngagementScore: 1,
				})
			}
		}

		d := buildDigest(trends)

		assert.Equal(t, 30, strings.Count(d.Text, "(score:"))
	})

	t.Run("truncates long content previews", func(t *testing.T) {
		long := strings.Repeat("x", 150)
		d := buildDigest([]db.StoredTrend{
			{Source: "reddit", Topic: "wall of text", Content: long, EngagementScore: 10},
		})

		assert.Contains(t, d.Text, strings.Repeat("x", 100))
		assert.NotContains(t, d.Text, strings.Repeat("x", 101))
	})
}

func TestHeuristicInsighter(t *testing.T) {
	ctx := context.Background()

	t.Run("summarizes a digest", func(t *testing.T) {
		trends := []db.StoredTrend{
			{Source: "hackernews", Topic: "Go 1.25 released", Content: "notes", EngagementScore: 300},
			{Source: "hackernews", Topic: "SQLite internals", Content: "dive", EngagementScore: 150},
			{Source: "reddit", Topic: "r/golang weekly", Content: "thread", EngagementScore: 80},
		}
		d := buildDigest(trends)

		insight, err := HeuristicInsighter{}.Summarize(ctx, d)
		require.NoError(t, err)

		assert.Contains(t, insight.Text, "Collected 3 trends across 2 sources.")
		assert.Contains(t, insight.Text, "Go 1.25 released (hackernews, 300)")
		assert.Contains(t, insight.Text, "hackernews contributed the most items (2).")
		assert.Equal(t, float64(0), insight.Sentiment)

		q := validateQuality(insight.Text, 10, d.Breakdown)
		assert.True(t, q.Valid)
	})

	t.Run("handles an empty digest", func(t *testing.T) {
		insight, err := HeuristicInsighter{}.Summarize(ctx, Digest{})
		require.NoError(t, err)
		assert.Equal(t, "No trend data available for analysis.", insight.Text)
	})
}

func TestBusiestSource(t *testing.T) {
	t.Run("picks the highest count", func(t *testing.T) {
		name, count := busiestSource(map[string]stats.SourceBreakdown{
			"reddit":     {Count: 3},
			"hackernews": {Count: 7},
		})
		assert.Equal(t, "hackernews", name)
		assert.Equal(t, 7, count)
	})

	t.Run("ties resolve alphabetically", func(t *testing.T) {
		name, _ := busiestSource(map[string]stats.SourceBreakdown{
			"reddit": {Count: 2},
			"github": {Count: 2},
		})
		assert.Equal(t, "github", name)
	})

	t.Run("empty breakdown", func(t *testing.T) {
		name, count := busiestSource(nil)
		assert.Empty(t, name)
		assert.Zero(t, count)
	})
}
