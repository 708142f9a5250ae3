// Package trendindex maintains a VecLite vector index over stored
// trends for semantic and keyword search.
package trendindex

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abdul-hamid-achik/veclite"

	"github.com/abdulachik/trendbot/internal/db"
)

const (
	trendsCollection = "trends"

	// defaultDimension matches nomic-embed-text.
	defaultDimension = 768
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds configuration for the trend index.
type Config struct {
	// Path to the VecLite database file (e.g. "data/trends.veclite").
	Path string

	Embedder Embedder

	// Dimension of the embedding vectors. Zero means 768.
	Dimension int
}

// Index wraps a VecLite collection of stored trends.
type Index struct {
	vecdb    *veclite.DB
	coll     *veclite.Collection
	embedder Embedder
}

// Open opens or creates the trend index at cfg.Path.
func Open(cfg Config) (*Index, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = defaultDimension
	}

	vecdb, err := veclite.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open veclite db: %w", err)
	}

	coll, err := vecdb.CreateCollection(trendsCollection,
		veclite.WithDimension(dimension),
		veclite.WithDistanceType(veclite.DistanceCosine),
		veclite.WithHNSW(16, 200), // M=16, efConstruction=200
		veclite.WithTextIndex("topic", "content", "source"),
	)
	if err != nil {
		// Collection might already exist, try to get it
		coll, err = vecdb.GetCollection(trendsCollection)
		if err != nil {
			vecdb.Close()
			return nil, fmt.Errorf("get collection: %w", err)
		}
	}

	slog.Debug("trend index open", "path", cfg.Path, "indexed", coll.Count())

	return &Index{
		vecdb:    vecdb,
		coll:     coll,
		embedder: cfg.Embedder,
	}, nil
}

// Close closes the VecLite database.
func (ix *Index) Close() error {
	if ix.vecdb != nil {
		return ix.vecdb.Close()
	}
	return nil
}

// Count returns the number of indexed trends.
func (ix *Index) Count() int {
	return ix.coll.Count()
}

// Sync persists any pending changes to disk.
func (ix *Index) Sync() error {
	return ix.vecdb.Sync()
}

// IndexTrend embeds and indexes one stored trend.
func (ix *Index) IndexTrend(ctx context.Context, trend db.StoredTrend) error {
	text := trendText(trend)

	embedding, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed trend: %w", err)
	}

	payload := map[string]any{
		"trend_id":   trend.ID,
		"source":     trend.Source,
		"topic":      trend.Topic,
		"content":    trend.Content,
		"engagement": trend.EngagementScore,
	}

	if _, err := ix.coll.InsertDocument(embedding, text, payload); err != nil {
		return fmt.Errorf("index trend: %w", err)
	}

	return nil
}

// Result is one search hit from the index.
type Result struct {
	TrendID    int64
	Source     string
	Topic      string
	Engagement float64
	Score      float32
}

// Related finds trends semantically similar to the query.
func (ix *Index) Related(ctx context.Context, query string, k int) ([]Result, error) {
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := ix.coll.Search(vec, veclite.TopK(k))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return convertResults(results), nil
}

// Keyword runs BM25 text search over topic, content, and source.
func (ix *Index) Keyword(_ context.Context, query string, k int) ([]Result, error) {
	results, err := ix.coll.TextSearch(query, veclite.TopK(k))
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	return convertResults(results), nil
}

// trendText builds the text that represents a trend in the index.
func trendText(trend db.StoredTrend) string {
	text := trend.Topic
	if trend.Content != "" && trend.Content != trend.Topic {
		text += "\n\n" + trend.Content
	}
	return text
}

func convertResults(results []veclite.Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		res := Result{Score: r.Score}

		if r.Record.Payload != nil {
			res.TrendID = payloadInt(r.Record.Payload["trend_id"])
			if source, exists := r.Record.Payload["source"].(string); exists {
				res.Source = source
			}
			if topic, exists := r.Record.Payload["topic"].(string); exists {
				res.Topic = topic
			}
			if engagement, exists := r.Record.Payload["engagement"].(float64); exists {
				res.Engagement = engagement
			}
		}

		out = append(out, res)
	}
	return out
}

// payloadInt reads an integer payload value in whichever numeric type
// the store hands back.
func payloadInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
