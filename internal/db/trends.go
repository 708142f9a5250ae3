package db

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/trendbot/internal/source"
)

// DedupWindow is the interval during which an identical-hash insert is
// treated as a duplicate rather than a new record.
const DedupWindow = 24 * time.Hour

// InsertOutcome classifies the result of a trend insert.
type InsertOutcome int

const (
	// Stored means a new row was written.
	Stored InsertOutcome = iota
	// Duplicate means an identical trend exists within the dedup window.
	Duplicate
	// Rejected means the trend failed validation.
	Rejected
)

func (o InsertOutcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// StoredTrend is a trends table row.
type StoredTrend struct {
	ID              int64
	Source          string
	Topic           string
	Content         string
	URL             string
	EngagementScore float64
	Metadata        map[string]any
	HashValue       string
	CollectedAt     time.Time
	CreatedAt       time.Time
}

// TrendHash returns the dedup hash over a trend's identity fields.
func TrendHash(src, topic, content string) string {
	sum := md5.Sum([]byte(src + ":" + topic + ":" + content))
	return hex.EncodeToString(sum[:])
}

// InsertTrend writes one trend, deduplicating against identical rows
// collected within the dedup window. Duplicate and Rejected are
// outcomes, not errors; the returned id is the existing row's for a
// duplicate. On error the outcome is Rejected.
func (s *Store) InsertTrend(ctx context.Context, trend source.Trend) (int64, InsertOutcome, error) {
	if err := trend.Validate(); err != nil {
		slog.Debug("trend rejected", "source", trend.Source, "error", err)
		return 0, Rejected, nil
	}

	hash := TrendHash(trend.Source, trend.Topic, trend.Content)
	cutoff := time.Now().Add(-DedupWindow).UTC().Unix()

	var existing int64
	err := s.QueryRowContext(ctx, `
		SELECT id FROM trends
		WHERE hash_value = ? AND collected_at > ?
		LIMIT 1
	`, hash, cutoff).Scan(&existing)
	if err == nil {
		return existing, Duplicate, nil
	}
	if err != sql.ErrNoRows {
		return 0, Rejected, fmt.Errorf("check duplicate: %w", err)
	}

	var metadata any
	if len(trend.Metadata) > 0 {
		raw, err := json.Marshal(trend.Metadata)
		if err != nil {
			return 0, Rejected, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(raw)
	}

	collectedAt := trend.CollectionTime
	if collectedAt.IsZero() {
		collectedAt = time.Now()
	}

	res, err := s.ExecContext(ctx, `
		INSERT INTO trends
			(source, topic, content, url, engagement_score, metadata, hash_value, collected_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trend.Source, trend.Topic, trend.Content, trend.URL, trend.EngagementScore,
		metadata, hash, collectedAt.UTC().Unix(), time.Now().UTC().Unix())
	if err != nil {
		return 0, Rejected, fmt.Errorf("insert trend: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, Rejected, fmt.Errorf("trend id: %w", err)
	}

	return id, Stored, nil
}

// RecentTrends returns trends collected within the window, ordered by
// engagement score then recency. Empty src means all sources; limit <= 0
// means no limit.
func (s *Store) RecentTrends(ctx context.Context, window time.Duration, src string, limit int) ([]StoredTrend, error) {
	cutoff := time.Now().Add(-window).UTC().Unix()

	query := `
		SELECT id, source, topic, content, url, engagement_score, metadata, hash_value, collected_at, created_at
		FROM trends
		WHERE collected_at >= ?
	`
	args := []any{cutoff}

	if src != "" {
		query += " AND source = ?"
		args = append(args, src)
	}

	query += " ORDER BY engagement_score DESC, collected_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent trends: %w", err)
	}
	defer rows.Close()

	var trends []StoredTrend
	for rows.Next() {
		trend, err := scanTrend(rows)
		if err != nil {
			return nil, err
		}
		trends = append(trends, trend)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trends: %w", err)
	}

	return trends, nil
}

func scanTrend(rows *sql.Rows) (StoredTrend, error) {
	var t StoredTrend
	var content, url, metadata sql.NullString
	var collectedAt, createdAt int64

	err := rows.Scan(&t.ID, &t.Source, &t.Topic, &content, &url,
		&t.EngagementScore, &metadata, &t.HashValue, &collectedAt, &createdAt)
	if err != nil {
		return StoredTrend{}, fmt.Errorf("scan trend: %w", err)
	}

	t.Content = content.String
	t.URL = url.String
	t.CollectedAt = time.Unix(collectedAt, 0).UTC()
	t.CreatedAt = time.Unix(createdAt, 0).UTC()

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &t.Metadata); err != nil {
			slog.Warn("failed to parse trend metadata", "id", t.ID, "error", err)
			t.Metadata = map[string]any{}
		}
	}

	return t, nil
}

// SourceStats summarizes engagement for one source over a window.
type SourceStats struct {
	Count         int64
	AvgEngagement float64
	MaxEngagement float64
}

// EngagementStats groups recent engagement by source.
func (s *Store) EngagementStats(ctx context.Context, window time.Duration) (map[string]SourceStats, error) {
	cutoff := time.Now().Add(-window).UTC().Unix()

	rows, err := s.QueryContext(ctx, `
		SELECT source, COUNT(*), AVG(engagement_score), MAX(engagement_score)
		FROM trends
		WHERE collected_at >= ?
		GROUP BY source
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query engagement stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]SourceStats)
	for rows.Next() {
		var src string
		var st SourceStats
		var avg, max sql.NullFloat64

		if err := rows.Scan(&src, &st.Count, &avg, &max); err != nil {
			return nil, fmt.Errorf("scan engagement stats: %w", err)
		}

		st.AvgEngagement = avg.Float64
		st.MaxEngagement = max.Float64
		stats[src] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engagement stats: %w", err)
	}

	return stats, nil
}

// CountTrends returns the total number of stored trends.
func (s *Store) CountTrends(ctx context.Context) (int64, error) {
	var count int64
	if err := s.QueryRowContext(ctx, "SELECT COUNT(*) FROM trends").Scan(&count); err != nil {
		return 0, fmt.Errorf("count trends: %w", err)
	}
	return count, nil
}
