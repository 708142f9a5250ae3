package publisher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abdulachik/trendbot/internal/db"
)

func TestFormatUpdate(t *testing.T) {
	t.Run("renders header summary and footer", func(t *testing.T) {
		post := FormatUpdate(db.Analysis{
			Summary:        "Analyzed 6 trends with positive sentiment (score: 0.25). Average engagement: 150.0. Sources: hackernews(4), reddit(2).",
			SentimentScore: 0.25,
		})

		assert.True(t, strings.HasPrefix(post, "Tech trends update 📈\n\n"))
		assert.Contains(t, post, "Analyzed 6 trends with positive sentiment")
		assert.True(t, strings.HasSuffix(post, updateFooter))
		assert.True(t, FitsInLimit(post, BlueskyMaxLength))
	})

	t.Run("sentiment picks the emoji", func(t *testing.T) {
		assert.Contains(t, FormatUpdate(db.Analysis{SentimentScore: 0.5, Summary: "s"}), "📈")
		assert.Contains(t, FormatUpdate(db.Analysis{SentimentScore: -0.5, Summary: "s"}), "📉")
		assert.Contains(t, FormatUpdate(db.Analysis{SentimentScore: 0.05, Summary: "s"}), "📊")
	})

	t.Run("truncates a long summary to fit", func(t *testing.T) {
		post := FormatUpdate(db.Analysis{
			Summary:        strings.Repeat("engagement keeps climbing ", 30),
			SentimentScore: 0,
		})

		assert.True(t, FitsInLimit(post, BlueskyMaxLength))
		assert.Contains(t, post, "...")
		assert.True(t, strings.HasSuffix(post, updateFooter))
	})
}

func TestTruncateText(t *testing.T) {
	t.Run("returns short text unchanged", func(t *testing.T) {
		assert.Equal(t, "short enough", TruncateText("short enough", 50))
	})

	t.Run("cuts at a word boundary", func(t *testing.T) {
		got := TruncateText("the quick brown fox jumps over the lazy dog", 20)
		assert.Equal(t, "the quick brown...", got)
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		got := TruncateText(strings.Repeat("é", 50), 10)
		assert.Equal(t, strings.Repeat("é", 7)+"...", got)
	})

	t.Run("trims trailing punctuation before the ellipsis", func(t *testing.T) {
		got := TruncateText("alpha beta, gamma delta epsilon", 15)
		assert.Equal(t, "alpha beta...", got)
	})
}

func TestFitsInLimit(t *testing.T) {
	assert.True(t, FitsInLimit("hello", 5))
	assert.False(t, FitsInLimit("hello!", 5))
	assert.True(t, FitsInLimit(strings.Repeat("🤖", 300), 300))
}
