package trendindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/trendbot/internal/db"
)

// Backfill indexes every stored trend in the window. Items that fail
// to embed are logged and skipped. The index has no upsert: re-running
// a backfill over already-indexed trends duplicates them, so rebuild
// into a fresh path instead.
func (ix *Index) Backfill(ctx context.Context, store *db.Store, window time.Duration) (int, error) {
	trends, err := store.RecentTrends(ctx, window, "", 0)
	if err != nil {
		return 0, fmt.Errorf("load trends: %w", err)
	}

	if len(trends) == 0 {
		slog.Info("nothing to index")
		return 0, nil
	}

	slog.Info("indexing trends", "count", len(trends))

	indexed := 0
	for _, trend := range trends {
		select {
		case <-ctx.Done():
			return indexed, ctx.Err()
		default:
		}

		if err := ix.IndexTrend(ctx, trend); err != nil {
			slog.Error("failed to index trend",
				"trend_id", trend.ID,
				"error", err,
			)
			continue
		}
		indexed++
	}

	if err := ix.Sync(); err != nil {
		return indexed, fmt.Errorf("sync index: %w", err)
	}

	slog.Info("indexing complete", "indexed", indexed)
	return indexed, nil
}
