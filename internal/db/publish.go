package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PublishRecord is one publishing attempt, successful or not.
type PublishRecord struct {
	ID         int64
	Platform   string
	Content    string
	AnalysisID int64
	PostURI    string
	Success    bool
	ErrorMsg   string
	CreatedAt  time.Time
}

// RecordPublish stores a publishing attempt. A zero AnalysisID is
// stored as NULL.
func (s *Store) RecordPublish(ctx context.Context, rec PublishRecord) (int64, error) {
	var analysisID any
	if rec.AnalysisID > 0 {
		analysisID = rec.AnalysisID
	}

	res, err := s.ExecContext(ctx, `
		INSERT INTO published_posts
			(platform, content, analysis_id, post_uri, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Platform, rec.Content, analysisID, rec.PostURI, rec.Success,
		rec.ErrorMsg, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("record publish: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("publish id: %w", err)
	}

	return id, nil
}

// TodayPublishedCount counts successful posts for the platform since
// UTC midnight.
func (s *Store) TodayPublishedCount(ctx context.Context, platform string) (int64, error) {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Unix()

	var count int64
	err := s.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM published_posts
		WHERE platform = ? AND success = 1 AND created_at >= ?
	`, platform, dayStart).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count today's posts: %w", err)
	}

	return count, nil
}

// LastPublishedAt returns the time of the newest successful post for
// the platform, or the zero time when none exists.
func (s *Store) LastPublishedAt(ctx context.Context, platform string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.QueryRowContext(ctx, `
		SELECT MAX(created_at) FROM published_posts
		WHERE platform = ? AND success = 1
	`, platform).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("last published: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}

	return time.Unix(ts.Int64, 0).UTC(), nil
}

// RecentPublishes returns the newest publishing attempts, most recent
// first.
func (s *Store) RecentPublishes(ctx context.Context, limit int) ([]PublishRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.QueryContext(ctx, `
		SELECT id, platform, content, analysis_id, post_uri, success, error_message, created_at
		FROM published_posts
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query publishes: %w", err)
	}
	defer rows.Close()

	var recs []PublishRecord
	for rows.Next() {
		var rec PublishRecord
		var analysisID sql.NullInt64
		var postURI, errorMsg sql.NullString
		var createdAt int64

		err := rows.Scan(&rec.ID, &rec.Platform, &rec.Content, &analysisID,
			&postURI, &rec.Success, &errorMsg, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan publish: %w", err)
		}

		rec.AnalysisID = analysisID.Int64
		rec.PostURI = postURI.String
		rec.ErrorMsg = errorMsg.String
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publishes: %w", err)
	}

	return recs, nil
}
