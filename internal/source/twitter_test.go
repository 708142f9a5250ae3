package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twitterTweet(id, text string, likes, retweets, replies int) map[string]any {
	return map[string]any{
		"id":        id,
		"text":      text,
		"author_id": "42",
		"public_metrics": map[string]int{
			"like_count":    likes,
			"retweet_count": retweets,
			"reply_count":   replies,
		},
	}
}

func TestNewTwitterFetcher(t *testing.T) {
	t.Run("uses default search terms", func(t *testing.T) {
		f := NewTwitterFetcher(TwitterConfig{})
		assert.Len(t, f.terms, 5)
		assert.Contains(t, f.terms, "#AI")
	})

	t.Run("uses custom search terms", func(t *testing.T) {
		f := NewTwitterFetcher(TwitterConfig{SearchTerms: []string{"#golang"}})
		assert.Equal(t, []string{"#golang"}, f.terms)
	})

	t.Run("uses public endpoint by default", func(t *testing.T) {
		f := NewTwitterFetcher(TwitterConfig{})
		assert.Equal(t, twitterBaseURL, f.baseURL)
	})
}

func TestTwitterFetcher_Name(t *testing.T) {
	f := NewTwitterFetcher(TwitterConfig{})
	assert.Equal(t, "twitter", f.Name())
}

func TestTwitterFetcher_Fetch(t *testing.T) {
	t.Run("fetches and parses tweets", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/tweets/search/recent", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Contains(t, r.URL.Query().Get("query"), "-is:retweet")

			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					twitterTweet("1", "AI is eating the world", 10, 5, 2),
					twitterTweet("2", "another tech take", 0, 0, 0),
				},
			})
		}))
		defer server.Close()

		f := NewTwitterFetcher(TwitterConfig{
			BearerToken: "test-token",
			SearchTerms: []string{"#AI"},
			BaseURL:     server.URL,
		})

		trends, err := f.Fetch(context.Background(), 10)

		require.NoError(t, err)
		require.Len(t, trends, 2)

		assert.Equal(t, "twitter", trends[0].Source)
		assert.Equal(t, "#AI", trends[0].Topic)
		assert.Equal(t, "AI is eating the world", trends[0].Content)
		assert.Equal(t, "https://twitter.com/user/status/1", trends[0].URL)
		// likes + 2x retweets + replies
		assert.Equal(t, 22.0, trends[0].EngagementScore)
		assert.Equal(t, "1", trends[0].Metadata["tweet_id"])
		assert.Equal(t, "42", trends[0].Metadata["author_id"])
	})

	t.Run("stops querying once limit reached", func(t *testing.T) {
		var requests atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)

			tweets := make([]map[string]any, 10)
			for i := range tweets {
				tweets[i] = twitterTweet("1", "tweet", 1, 0, 0)
			}
			json.NewEncoder(w).Encode(map[string]any{"data": tweets})
		}))
		defer server.Close()

		f := NewTwitterFetcher(TwitterConfig{
			BearerToken: "test-token",
			SearchTerms: []string{"#AI", "#TechNews", "#Programming"},
			BaseURL:     server.URL,
		})

		trends, err := f.Fetch(context.Background(), 10)

		require.NoError(t, err)
		assert.Len(t, trends, 10)
		assert.Equal(t, int32(1), requests.Load())
	})

	t.Run("trims overshoot to limit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tweets := make([]map[string]any, 10)
			for i := range tweets {
				tweets[i] = twitterTweet("1", "tweet", 1, 0, 0)
			}
			json.NewEncoder(w).Encode(map[string]any{"data": tweets})
		}))
		defer server.Close()

		f := NewTwitterFetcher(TwitterConfig{
			BearerToken: "test-token",
			SearchTerms: []string{"#AI", "#TechNews"},
			BaseURL:     server.URL,
		})

		trends, err := f.Fetch(context.Background(), 15)

		require.NoError(t, err)
		assert.Len(t, trends, 15)
	})

	t.Run("requires bearer token", func(t *testing.T) {
		f := NewTwitterFetcher(TwitterConfig{})

		_, err := f.Fetch(context.Background(), 10)
		assert.Error(t, err)
	})

	t.Run("propagates first-term failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		f := NewTwitterFetcher(TwitterConfig{
			BearerToken: "test-token",
			SearchTerms: []string{"#AI"},
			BaseURL:     server.URL,
		})

		_, err := f.Fetch(context.Background(), 10)

		require.Error(t, err)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	})

	t.Run("keeps partial results when a later term fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("query") == "#Broken -is:retweet lang:en" {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{twitterTweet("1", "fine", 3, 0, 0)},
			})
		}))
		defer server.Close()

		f := NewTwitterFetcher(TwitterConfig{
			BearerToken: "test-token",
			SearchTerms: []string{"#AI", "#Broken"},
			BaseURL:     server.URL,
		})

		trends, err := f.Fetch(context.Background(), 10)

		require.NoError(t, err)
		assert.Len(t, trends, 1)
	})
}

// Integration test - requires Twitter credentials
func TestTwitterFetcher_Integration(t *testing.T) {
	token := os.Getenv("TWITTER_BEARER_TOKEN")
	if token == "" {
		t.Skip("TWITTER_BEARER_TOKEN not set")
	}

	f := NewTwitterFetcher(TwitterConfig{BearerToken: token})
	trends, err := f.Fetch(context.Background(), 5)

	require.NoError(t, err)
	for _, trend := range trends {
		assert.Equal(t, "twitter", trend.Source)
		assert.NotEmpty(t, trend.Content)
		assert.GreaterOrEqual(t, trend.EngagementScore, 0.0)
	}
}
