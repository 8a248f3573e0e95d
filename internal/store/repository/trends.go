package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fortuna/dubs/internal/store"
)

// TrendRepository handles daily search-interest points
type TrendRepository struct {
	db *store.Database
}

// NewTrendRepository creates a new trend repository
func NewTrendRepository(db *store.Database) *TrendRepository {
	return &TrendRepository{db: db}
}

const trendColumns = `trend_date, keyword, raw_value, scaled_value, adjusted_value, updated_at`

// UpsertMany inserts or replaces points by (date, keyword)
func (r *TrendRepository) UpsertMany(ctx context.Context, points []store.TrendPoint) error {
	query := `
		INSERT INTO trend_points (` + trendColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (trend_date, keyword) DO UPDATE SET
			raw_value = EXCLUDED.raw_value,
			scaled_value = EXCLUDED.scaled_value,
			adjusted_value = EXCLUDED.adjusted_value,
			updated_at = EXCLUDED.updated_at
	`

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trend upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare trend upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range points {
		if _, err := stmt.ExecContext(ctx,
			p.TrendDate, p.Keyword, p.RawValue, p.ScaledValue, p.AdjustedValue, now,
		); err != nil {
			return fmt.Errorf("upserting %s trend on %s: %w", p.Keyword, p.TrendDate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trend upsert: %w", err)
	}
	return nil
}

// GetByKeyword returns one keyword's points between start and end inclusive
func (r *TrendRepository) GetByKeyword(ctx context.Context, keyword string, start, end store.Day) ([]store.TrendPoint, error) {
	query := `
		SELECT ` + trendColumns + `
		FROM trend_points
		WHERE keyword = $1 AND trend_date >= $2 AND trend_date <= $3
		ORDER BY trend_date
	`

	rows, err := r.db.DB().QueryContext(ctx, query, keyword, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying %s trend: %w", keyword, err)
	}
	defer rows.Close()

	return scanTrendPoints(rows)
}

// List returns every point between start and end inclusive
func (r *TrendRepository) List(ctx context.Context, start, end store.Day) ([]store.TrendPoint, error) {
	query := `
		SELECT ` + trendColumns + `
		FROM trend_points
		WHERE trend_date >= $1 AND trend_date <= $2
		ORDER BY trend_date, keyword
	`

	rows, err := r.db.DB().QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying trends: %w", err)
	}
	defer rows.Close()

	return scanTrendPoints(rows)
}

// Keywords returns the distinct stored keywords
func (r *TrendRepository) Keywords(ctx context.Context) ([]string, error) {
	rows, err := r.db.DB().QueryContext(ctx, `SELECT DISTINCT keyword FROM trend_points ORDER BY keyword`)
	if err != nil {
		return nil, fmt.Errorf("querying trend keywords: %w", err)
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning trend keyword: %w", err)
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

func scanTrendPoints(rows *sql.Rows) ([]store.TrendPoint, error) {
	var points []store.TrendPoint
	for rows.Next() {
		var p store.TrendPoint
		if err := rows.Scan(&p.TrendDate, &p.Keyword, &p.RawValue, &p.ScaledValue, &p.AdjustedValue, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning trend point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trend points: %w", err)
	}
	return points, nil
}
