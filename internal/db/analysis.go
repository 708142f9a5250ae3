package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultAnalysisVersion marks rows written by the current analyzer.
const DefaultAnalysisVersion = "1.0"

// Analysis is a stored analysis snapshot.
type Analysis struct {
	ID             int64
	Summary        string
	SentimentScore float64
	Insights       string
	DataPoints     int64
	Version        string
	QualityScore   float64
	ProcessingMS   int64
	CreatedAt      time.Time
}

// InsertAnalysis stores one analysis snapshot.
func (s *Store) InsertAnalysis(ctx context.Context, a Analysis) (int64, error) {
	version := a.Version
	if version == "" {
		version = DefaultAnalysisVersion
	}

	res, err := s.ExecContext(ctx, `
		INSERT INTO analyses
			(summary, sentiment_score, insights, data_points, analysis_version, quality_score, processing_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Summary, a.SentimentScore, a.Insights, a.DataPoints, version,
		a.QualityScore, a.ProcessingMS, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert analysis: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("analysis id: %w", err)
	}

	return id, nil
}

// LatestAnalysis returns the most recent analysis. Callers should check
// for sql.ErrNoRows on an empty table.
func (s *Store) LatestAnalysis(ctx context.Context) (Analysis, error) {
	var a Analysis
	var sentiment, quality sql.NullFloat64
	var insights sql.NullString
	var createdAt int64

	err := s.QueryRowContext(ctx, `
		SELECT id, summary, sentiment_score, insights, data_points, analysis_version, quality_score, processing_ms, created_at
		FROM analyses
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&a.ID, &a.Summary, &sentiment, &insights, &a.DataPoints, &a.Version, &quality, &a.ProcessingMS, &createdAt)
	if err != nil {
		return Analysis{}, err
	}

	a.SentimentScore = sentiment.Float64
	a.Insights = insights.String
	a.QualityScore = quality.Float64
	a.CreatedAt = time.Unix(createdAt, 0).UTC()

	return a, nil
}

// CountAnalyses returns the total number of stored analyses.
func (s *Store) CountAnalyses(ctx context.Context) (int64, error) {
	var count int64
	if err := s.QueryRowContext(ctx, "SELECT COUNT(*) FROM analyses").Scan(&count); err != nil {
		return 0, fmt.Errorf("count analyses: %w", err)
	}
	return count, nil
}
