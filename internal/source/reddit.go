package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	redditAuthURL = "https://www.reddit.com/api/v1/access_token"
	redditAPIURL  = "https://oauth.reddit.com"

	redditMinScore  = 10
	redditMaxAge    = 7 * 24 * time.Hour
	redditFallbackN = 3
)

// Subreddits polled for tech discussion, with fallbacks used when the
// primary pass comes up short.
var (
	defaultSubreddits = []string{
		"programming", "technology", "MachineLearning",
		"artificial", "webdev", "datascience",
	}
	fallbackSubreddits = []string{
		"Python", "javascript", "reactjs", "opensource",
		"compsci", "ArtificialIntelligence",
	}
)

// RedditFetcher collects hot posts from tech subreddits using the OAuth
// client-credentials flow.
type RedditFetcher struct {
	httpClient   *http.Client
	authURL      string
	apiURL       string
	clientID     string
	clientSecret string
	userAgent    string
	gate         Gater

	accessToken string
	tokenExpiry time.Time

	primary  []string
	fallback []string
}

// RedditConfig holds configuration for the Reddit fetcher.
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Subreddits   []string
	Fallback     []string
	AuthURL      string // overrides the public auth endpoint
	APIURL       string // overrides the public API endpoint
	Gate         Gater
}

// NewRedditFetcher creates a new Reddit fetcher.
func NewRedditFetcher(cfg RedditConfig) *RedditFetcher {
	primary := cfg.Subreddits
	if len(primary) == 0 {
		primary = defaultSubreddits
	}

	fallback := cfg.Fallback
	if len(fallback) == 0 {
		fallback = fallbackSubreddits
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = redditAuthURL
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = redditAPIURL
	}

	return &RedditFetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		authURL:      authURL,
		apiURL:       apiURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		userAgent:    cfg.UserAgent,
		gate:         cfg.Gate,
		primary:      primary,
		fallback:     fallback,
	}
}

// Name returns the source name.
func (f *RedditFetcher) Name() string {
	return Reddit
}

// redditPost is one post from a listing response.
type redditPost struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	URL           string  `json:"url"`
	Permalink     string  `json:"permalink"`
	Score         int     `json:"score"`
	Author        string  `json:"author"`
	Subreddit     string  `json:"subreddit"`
	NumComments   int     `json:"num_comments"`
	CreatedUTC    float64 `json:"created_utc"`
	Stickied      bool    `json:"stickied"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	LinkFlairText string  `json:"link_flair_text"`
}

// redditListing is a Reddit API listing response.
type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Fetch collects posts across the primary subreddits, switching to the
// fallback list when fewer than half the requested posts were found.
// Engagement is score + 2x comments.
func (f *RedditFetcher) Fetch(ctx context.Context, limit int) ([]Trend, error) {
	if f.clientID == "" || f.clientSecret == "" {
		return nil, errors.New("reddit credentials not configured")
	}

	if err := f.ensureAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}

	perSubreddit := limit / len(f.primary)
	if perSubreddit < 1 {
		perSubreddit = 1
	}

	var trends []Trend
	for _, subreddit := range f.primary {
		if len(trends) >= limit {
			break
		}

		found, err := f.fetchSubreddit(ctx, subreddit, perSubreddit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("failed to fetch subreddit",
				"subreddit", subreddit,
				"error", err,
			)
			continue
		}
		trends = append(trends, found...)
	}

	if len(trends) < limit/2 {
		slog.Info("using fallback subreddits", "collected", len(trends))

		for _, subreddit := range f.fallback {
			if len(trends) >= limit {
				break
			}

			want := limit - len(trends)
			if want > redditFallbackN {
				want = redditFallbackN
			}

			found, err := f.fetchSubreddit(ctx, subreddit, want)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				slog.Debug("fallback subreddit failed",
					"subreddit", subreddit,
					"error", err,
				)
				continue
			}
			trends = append(trends, found...)
		}
	}

	slog.Debug("fetched reddit trends", "count", len(trends))
	return trends, nil
}

func (f *RedditFetcher) ensureAccessToken(ctx context.Context) error {
	if f.accessToken != "" && time.Now().Before(f.tokenExpiry) {
		return nil
	}

	if err := gateWait(ctx, f.gate, Reddit); err != nil {
		return err
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, "POST", f.authURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}

	req.SetBasicAuth(f.clientID, f.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Source: Reddit, Code: resp.StatusCode}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return err
	}

	f.accessToken = tokenResp.AccessToken
	f.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)

	slog.Debug("obtained reddit access token",
		"expires_in", tokenResp.ExpiresIn,
	)

	return nil
}

// fetchSubreddit tries the hot listing first, then top-of-day, keeping
// up to want posts that pass the hard filter.
func (f *RedditFetcher) fetchSubreddit(ctx context.Context, subreddit string, want int) ([]Trend, error) {
	listings := []string{
		fmt.Sprintf("%s/r/%s/hot?limit=%d", f.apiURL, subreddit, want*2),
		fmt.Sprintf("%s/r/%s/top?t=day&limit=%d", f.apiURL, subreddit, want*2),
	}

	var lastErr error
	for _, listingURL := range listings {
		posts, err := f.fetchListing(ctx, listingURL)
		if err != nil {
			lastErr = err
			continue
		}

		trends := make([]Trend, 0, want)
		for _, post := range posts {
			if len(trends) >= want {
				break
			}
			if !validRedditPost(post) {
				continue
			}
			trends = append(trends, redditTrend(post, subreddit))
		}

		if len(trends) > 0 {
			return trends, nil
		}
	}

	return nil, lastErr
}

func (f *RedditFetcher) fetchListing(ctx context.Context, listingURL string) ([]redditPost, error) {
	if err := gateWait(ctx, f.gate, Reddit); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", listingURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+f.accessToken)
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Source: Reddit, Code: resp.StatusCode}
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, err
	}

	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}

	return posts, nil
}

// validRedditPost drops stickied, untitled, low-score, deleted-author,
// and week-old posts.
func validRedditPost(post redditPost) bool {
	if post.Stickied || post.Title == "" || post.Score < redditMinScore {
		return false
	}
	if post.Author == "" || post.Author == "[deleted]" {
		return false
	}
	return time.Since(time.Unix(int64(post.CreatedUTC), 0)) <= redditMaxAge
}

func redditTrend(post redditPost, subreddit string) Trend {
	content := post.Title
	if post.Selftext != "" {
		content += "\n" + Truncate(post.Selftext, 200)
	}

	return Trend{
		Source:          Reddit,
		Topic:           "r/" + subreddit,
		Content:         content,
		URL:             "https://reddit.com" + post.Permalink,
		EngagementScore: float64(post.Score + post.NumComments*2),
		Metadata: map[string]any{
			"post_id":      post.ID,
			"subreddit":    subreddit,
			"author":       post.Author,
			"score":        post.Score,
			"num_comments": post.NumComments,
			"created_utc":  post.CreatedUTC,
			"upvote_ratio": post.UpvoteRatio,
			"post_flair":   post.LinkFlairText,
		},
	}
}
