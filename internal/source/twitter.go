package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	twitterBaseURL = "https://api.twitter.com/2"
	twitterPerTerm = 10
)

// Search terms queried in place of the trends endpoint, which the basic
// API tier does not expose.
var defaultTwitterTerms = []string{
	"#AI", "#TechNews", "#Programming", "#Development", "#OpenSource",
}

// TwitterFetcher collects recent tweets matching a fixed set of tech
// search terms.
type TwitterFetcher struct {
	httpClient  *http.Client
	baseURL     string
	bearerToken string
	terms       []string
	gate        Gater
}

// TwitterConfig holds configuration for the Twitter fetcher.
type TwitterConfig struct {
	BearerToken string
	SearchTerms []string
	BaseURL     string // overrides the public API endpoint
	Gate        Gater
}

// NewTwitterFetcher creates a new Twitter fetcher.
func NewTwitterFetcher(cfg TwitterConfig) *TwitterFetcher {
	terms := cfg.SearchTerms
	if len(terms) == 0 {
		terms = defaultTwitterTerms
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twitterBaseURL
	}

	return &TwitterFetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     baseURL,
		bearerToken: cfg.BearerToken,
		terms:       terms,
		gate:        cfg.Gate,
	}
}

// Name returns the source name.
func (f *TwitterFetcher) Name() string {
	return Twitter
}

// twitterSearchResponse is the recent-search API response.
type twitterSearchResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		AuthorID      string `json:"author_id"`
		CreatedAt     string `json:"created_at"`
		PublicMetrics struct {
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
			LikeCount    int `json:"like_count"`
			QuoteCount   int `json:"quote_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// Fetch searches recent tweets for each configured term until limit is
// reached. Engagement is likes + 2x retweets + replies.
func (f *TwitterFetcher) Fetch(ctx context.Context, limit int) ([]Trend, error) {
	if f.bearerToken == "" {
		return nil, errors.New("twitter bearer token not configured")
	}

	var trends []Trend
	for _, term := range f.terms {
		if len(trends) >= limit {
			break
		}

		found, err := f.searchRecent(ctx, term)
		if err != nil {
			if len(trends) == 0 {
				return nil, fmt.Errorf("search %q: %w", term, err)
			}
			slog.Warn("twitter term search failed",
				"term", term,
				"error", err,
			)
			break
		}

		trends = append(trends, found...)
	}

	if len(trends) > limit {
		trends = trends[:limit]
	}

	slog.Debug("fetched twitter trends", "count", len(trends))
	return trends, nil
}

func (f *TwitterFetcher) searchRecent(ctx context.Context, term string) ([]Trend, error) {
	if err := gateWait(ctx, f.gate, Twitter); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("query", term+" -is:retweet lang:en")
	q.Set("max_results", strconv.Itoa(twitterPerTerm))
	q.Set("tweet.fields", "created_at,public_metrics,author_id")

	req, err := http.NewRequestWithContext(ctx, "GET",
		f.baseURL+"/tweets/search/recent?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+f.bearerToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Source: Twitter, Code: resp.StatusCode}
	}

	var result twitterSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	trends := make([]Trend, 0, len(result.Data))
	for _, tweet := range result.Data {
		if tweet.Text == "" {
			continue
		}

		metrics := tweet.PublicMetrics
		score := float64(metrics.LikeCount + metrics.RetweetCount*2 + metrics.ReplyCount)

		trends = append(trends, Trend{
			Source:          Twitter,
			Topic:           term,
			Content:         tweet.Text,
			URL:             "https://twitter.com/user/status/" + tweet.ID,
			EngagementScore: score,
			Metadata: map[string]any{
				"tweet_id":   tweet.ID,
				"author_id":  tweet.AuthorID,
				"created_at": tweet.CreatedAt,
				"likes":      metrics.LikeCount,
				"retweets":   metrics.RetweetCount,
				"replies":    metrics.ReplyCount,
			},
		})
	}

	return trends, nil
}
