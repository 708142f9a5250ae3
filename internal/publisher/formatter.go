package publisher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abdulachik/trendbot/internal/db"
)

// BlueskyMaxLength is the maximum character count for a Bluesky post.
const BlueskyMaxLength = 300

const updateFooter = "🤖 Automated analysis #TechTrends"

// FormatUpdate renders an analysis as a single post within the Bluesky
// length limit. The summary is truncated at a word boundary when the
// assembled post would run over.
func FormatUpdate(a db.Analysis) string {
	header := "Tech trends update " + sentimentEmoji(a.SentimentScore)

	overhead := utf8.RuneCountInString(header) + utf8.RuneCountInString(updateFooter) + 4
	summary := TruncateText(a.Summary, BlueskyMaxLength-overhead)

	return fmt.Sprintf("%s\n\n%s\n\n%s", header, summary, updateFooter)
}

func sentimentEmoji(score float64) string {
	switch {
	case score > 0.1:
		return "📈"
	case score < -0.1:
		return "📉"
	default:
		return "📊"
	}
}

// TruncateText shortens text to at most maxLen characters, preferring a
// word boundary and ending with an ellipsis.
func TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}

	runes := []rune(text)
	cut := maxLen - 3
	if cut < 1 {
		cut = 1
	}
	truncated := string(runes[:cut])

	// Avoid cutting mid-word unless the boundary is too far back
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > len(truncated)/2 {
		truncated = truncated[:lastSpace]
	}

	return strings.TrimRight(truncated, " .,;:!?") + "..."
}

// FitsInLimit checks if the post fits within the limit.
func FitsInLimit(text string, limit int) bool {
	return utf8.RuneCountInString(text) <= limit
}
