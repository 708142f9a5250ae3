package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const githubBaseURL = "https://api.github.com"

// GitHubFetcher collects trending repositories via the search API. It
// works without a token at a reduced rate limit.
type GitHubFetcher struct {
	httpClient *http.Client
	baseURL    string
	token      string
	gate       Gater
}

// GitHubConfig holds configuration for the GitHub fetcher.
type GitHubConfig struct {
	Token   string
	BaseURL string // overrides the public API endpoint
	Gate    Gater
}

// NewGitHubFetcher creates a new GitHub fetcher.
func NewGitHubFetcher(cfg GitHubConfig) *GitHubFetcher {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = githubBaseURL
	}

	return &GitHubFetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		token:   cfg.Token,
		gate:    cfg.Gate,
	}
}

// Name returns the source name.
func (f *GitHubFetcher) Name() string {
	return GitHub
}

// githubSearchResponse is the repository search API response.
type githubSearchResponse struct {
	Items []struct {
		ID              int64  `json:"id"`
		Name            string `json:"name"`
		FullName        string `json:"full_name"`
		Description     string `json:"description"`
		HTMLURL         string `json:"html_url"`
		Language        string `json:"language"`
		StargazersCount int    `json:"stargazers_count"`
		ForksCount      int    `json:"forks_count"`
		CreatedAt       string `json:"created_at"`
		UpdatedAt       string `json:"updated_at"`
	} `json:"items"`
}

// Fetch tries several search strategies in order and stops at the first
// one yielding results. Engagement is stars + 2x forks.
func (f *GitHubFetcher) Fetch(ctx context.Context, limit int) ([]Trend, error) {
	strategies := []struct {
		name  string
		query string
	}{
		{"created today", "created:>" + daysAgo(1)},
		{"created this week", "created:>" + daysAgo(7)},
		{"recently pushed", "pushed:>" + daysAgo(7)},
	}

	var trends []Trend
	for i, strategy := range strategies {
		found, err := f.searchRepositories(ctx, strategy.query, limit)
		if err != nil {
			if i == len(strategies)-1 {
				return nil, fmt.Errorf("github search %q: %w", strategy.name, err)
			}
			slog.Warn("github search strategy failed",
				"strategy", strategy.name,
				"error", err,
			)
			continue
		}

		if len(found) > 0 {
			trends = append(trends, found...)
			break
		}
	}

	// Deduplicate by repository id
	seen := make(map[int64]bool)
	unique := make([]Trend, 0, len(trends))
	for _, trend := range trends {
		id, ok := trend.Metadata["repo_id"].(int64)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, trend)
	}

	if len(unique) > limit {
		unique = unique[:limit]
	}

	slog.Debug("fetched github trends", "count", len(unique))
	return unique, nil
}

func (f *GitHubFetcher) searchRepositories(ctx context.Context, query string, limit int) ([]Trend, error) {
	if err := gateWait(ctx, f.gate, GitHub); err != nil {
		return nil, err
	}

	perPage := limit
	if perPage > 100 {
		perPage = 100
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "stars")
	q.Set("order", "desc")
	q.Set("per_page", strconv.Itoa(perPage))

	req, err := http.NewRequestWithContext(ctx, "GET",
		f.baseURL+"/search/repositories?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "trendbot/1.0")
	if f.token != "" {
		req.Header.Set("Authorization", "token "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Source: GitHub, Code: resp.StatusCode}
	}

	var result githubSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	trends := make([]Trend, 0, len(result.Items))
	for _, repo := range result.Items {
		if repo.Name == "" {
			continue
		}

		content := repo.Description
		if content == "" {
			content = "Repository: " + repo.FullName
		}

		trends = append(trends, Trend{
			Source:          GitHub,
			Topic:           repo.Name,
			Content:         content,
			URL:             repo.HTMLURL,
			EngagementScore: float64(repo.StargazersCount + repo.ForksCount*2),
			Metadata: map[string]any{
				"repo_id":    repo.ID,
				"full_name":  repo.FullName,
				"language":   repo.Language,
				"stars":      repo.StargazersCount,
				"forks":      repo.ForksCount,
				"created_at": repo.CreatedAt,
				"updated_at": repo.UpdatedAt,
			},
		})
	}

	return trends, nil
}

// daysAgo formats the date n days before now for search qualifiers.
func daysAgo(n int) string {
	return time.Now().AddDate(0, 0, -n).Format("2006-01-02")
}
