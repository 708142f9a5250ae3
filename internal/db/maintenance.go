package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// CleanupStats reports rows removed by a cleanup pass.
type CleanupStats struct {
	Trends   int64
	Analyses int64
	Posts    int64
}

// Total returns all rows removed.
func (c CleanupStats) Total() int64 {
	return c.Trends + c.Analyses + c.Posts
}

// Cleanup deletes trends and posts older than retainDays and analyses
// older than twice that, then vacuums to reclaim space.
func (s *Store) Cleanup(ctx context.Context, retainDays int) (CleanupStats, error) {
	var stats CleanupStats

	now := time.Now().UTC()
	trendCutoff := now.AddDate(0, 0, -retainDays).Unix()
	analysisCutoff := now.AddDate(0, 0, -retainDays*2).Unix()

	res, err := s.ExecContext(ctx, "DELETE FROM trends WHERE collected_at < ?", trendCutoff)
	if err != nil {
		return stats, fmt.Errorf("cleanup trends: %w", err)
	}
	stats.Trends, _ = res.RowsAffected()

	res, err = s.ExecContext(ctx, "DELETE FROM analyses WHERE created_at < ?", analysisCutoff)
	if err != nil {
		return stats, fmt.Errorf("cleanup analyses: %w", err)
	}
	stats.Analyses, _ = res.RowsAffected()

	res, err = s.ExecContext(ctx, "DELETE FROM published_posts WHERE created_at < ?", trendCutoff)
	if err != nil {
		return stats, fmt.Errorf("cleanup posts: %w", err)
	}
	stats.Posts, _ = res.RowsAffected()

	if _, err := s.ExecContext(ctx, "VACUUM"); err != nil {
		return stats, fmt.Errorf("vacuum: %w", err)
	}

	slog.Info("cleanup complete",
		"trends_deleted", stats.Trends,
		"analyses_deleted", stats.Analyses,
		"posts_deleted", stats.Posts,
	)

	return stats, nil
}

// DatabaseStats summarizes table sizes and recent engagement.
type DatabaseStats struct {
	SizeBytes        int64
	TrendCount       int64
	AnalysisCount    int64
	PostCount        int64
	TrendsLast24h    int64
	AvgEngagement24h float64
	MaxEngagement24h float64
}

// DatabaseStats collects row counts, file size, and last-24h engagement
// aggregates.
func (s *Store) DatabaseStats(ctx context.Context) (DatabaseStats, error) {
	var stats DatabaseStats

	if info, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = info.Size()
	}

	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM trends", &stats.TrendCount},
		{"SELECT COUNT(*) FROM analyses", &stats.AnalysisCount},
		{"SELECT COUNT(*) FROM published_posts", &stats.PostCount},
	}
	for _, c := range counts {
		if err := s.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return stats, fmt.Errorf("count rows: %w", err)
		}
	}

	cutoff := time.Now().Add(-24 * time.Hour).UTC().Unix()

	var avg, max sql.NullFloat64
	err := s.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(engagement_score), MAX(engagement_score)
		FROM trends
		WHERE collected_at >= ?
	`, cutoff).Scan(&stats.TrendsLast24h, &avg, &max)
	if err != nil {
		return stats, fmt.Errorf("recent stats: %w", err)
	}
	stats.AvgEngagement24h = avg.Float64
	stats.MaxEngagement24h = max.Float64

	return stats, nil
}

// HealthStatus reports connectivity, journal mode, and integrity.
type HealthStatus struct {
	Healthy     bool
	JournalMode string
	Integrity   string
	Error       string
}

// HealthStatus probes the database with a trivial query, then checks
// the journal mode and runs a quick integrity check.
func (s *Store) HealthStatus(ctx context.Context) HealthStatus {
	var h HealthStatus

	var one int
	if err := s.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		h.Error = err.Error()
		return h
	}

	if err := s.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&h.JournalMode); err != nil {
		h.Error = err.Error()
		return h
	}

	if err := s.QueryRowContext(ctx, "PRAGMA integrity_check(1)").Scan(&h.Integrity); err != nil {
		h.Error = err.Error()
		return h
	}

	h.Healthy = h.Integrity == "ok"
	return h
}

// Optimize refreshes query planner statistics and rebuilds indexes.
func (s *Store) Optimize(ctx context.Context) error {
	for _, stmt := range []string{"ANALYZE", "REINDEX", "PRAGMA optimize"} {
		if _, err := s.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", strings.ToLower(stmt), err)
		}
	}
	return nil
}

// SchemaVersion reads the stored schema version from the meta table.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	var version string
	err := s.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("schema version: %w", err)
	}
	return version, nil
}
