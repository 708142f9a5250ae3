package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	hnBaseURL       = "https://hacker-news.firebaseio.com/v0"
	hnTopic         = "Hacker News"
	hnWorkers       = 3
	hnFetchTimeout  = 60 * time.Second
	hnMinEngagement = 5
)

// Story list endpoints tried in order.
var hnEndpoints = []string{
	"/topstories.json",
	"/beststories.json",
	"/newstories.json",
}

// HackerNewsFetcher collects trending stories from Hacker News. No
// credentials required.
type HackerNewsFetcher struct {
	httpClient *http.Client
	baseURL    string
	gate       Gater
}

// HackerNewsConfig holds configuration for the Hacker News fetcher.
type HackerNewsConfig struct {
	BaseURL string // overrides the public API endpoint
	Gate    Gater
}

// NewHackerNewsFetcher creates a new Hacker News fetcher.
func NewHackerNewsFetcher(cfg HackerNewsConfig) *HackerNewsFetcher {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = hnBaseURL
	}

	return &HackerNewsFetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		gate:    cfg.Gate,
	}
}

// Name returns the source name.
func (f *HackerNewsFetcher) Name() string {
	return HackerNews
}

// hnStory is a Hacker News item.
type hnStory struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	By          string `json:"by"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"` // comment count
	Time        int64  `json:"time"`
	Type        string `json:"type"`
	Deleted     bool   `json:"deleted"`
}

// Fetch walks the story list endpoints until limit stories are gathered.
// Engagement is score + 2x comments; stories below the minimum are
// dropped.
func (f *HackerNewsFetcher) Fetch(ctx context.Context, limit int) ([]Trend, error) {
	var trends []Trend
	var lastErr error

	for _, endpoint := range hnEndpoints {
		ids, err := f.fetchStoryIDs(ctx, endpoint)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("HN story list failed",
				"endpoint", endpoint,
				"error", err,
			)
			continue
		}

		if len(ids) > limit {
			ids = ids[:limit]
		}

		found, err := f.fetchStories(ctx, ids)
		if err != nil {
			lastErr = err
			continue
		}

		trends = append(trends, found...)
		if len(trends) >= limit {
			trends = trends[:limit]
			break
		}
	}

	if len(trends) == 0 && lastErr != nil {
		return nil, fmt.Errorf("all story endpoints failed: %w", lastErr)
	}

	slog.Debug("fetched HN trends", "count", len(trends))
	return trends, nil
}

func (f *HackerNewsFetcher) fetchStoryIDs(ctx context.Context, endpoint string) ([]int, error) {
	if err := gateWait(ctx, f.gate, HackerNews); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", f.baseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Source: HackerNews, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var ids []int
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, err
	}

	return ids, nil
}

// fetchStories retrieves story details with a bounded worker pool.
// Individual failures are skipped; stories still outstanding when the
// fan-out deadline passes are abandoned.
func (f *HackerNewsFetcher) fetchStories(ctx context.Context, ids []int) ([]Trend, error) {
	ctx, cancel := context.WithTimeout(ctx, hnFetchTimeout)
	defer cancel()

	stories := make([]*hnStory, len(ids))

	var g errgroup.Group
	g.SetLimit(hnWorkers)

	for i, id := range ids {
		g.Go(func() error {
			story, err := f.fetchStory(ctx, id)
			if err != nil {
				slog.Debug("failed to fetch HN story", "id", id, "error", err)
				return nil
			}
			stories[i] = story
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	trends := make([]Trend, 0, len(stories))
	for _, story := range stories {
		if story == nil || story.Type != "story" || story.Deleted || story.Title == "" {
			continue
		}

		score := float64(story.Score + story.Descendants*2)
		if score < hnMinEngagement {
			continue
		}

		hnURL := fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID)
		storyURL := story.URL
		if storyURL == "" {
			storyURL = hnURL
		}

		trends = append(trends, Trend{
			Source:          HackerNews,
			Topic:           hnTopic,
			Content:         story.Title,
			URL:             storyURL,
			EngagementScore: score,
			Metadata: map[string]any{
				"story_id": story.ID,
				"author":   story.By,
				"score":    story.Score,
				"comments": story.Descendants,
				"time":     story.Time,
				"hn_url":   hnURL,
			},
		})
	}

	return trends, nil
}

func (f *HackerNewsFetcher) fetchStory(ctx context.Context, id int) (*hnStory, error) {
	if err := gateWait(ctx, f.gate, HackerNews); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/item/%d.json", f.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Source: HackerNews, Code: resp.StatusCode}
	}

	var story hnStory
	if err := json.NewDecoder(resp.Body).Decode(&story); err != nil {
		return nil, err
	}

	return &story, nil
}
