package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fortuna/dubs/internal/store"
)

// ArticleRepository handles aggregated article days and their sponsor counts
type ArticleRepository struct {
	db *store.Database
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *store.Database) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// UpsertMany replaces the stored days and their sponsor counts
func (r *ArticleRepository) UpsertMany(ctx context.Context, days []store.ArticleDay) error {
	dayQuery := `
		INSERT INTO article_days (article_date, article_count, total_sponsor_count,
			major_sponsors, other_sponsors, titles, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (article_date) DO UPDATE SET
			article_count = EXCLUDED.article_count,
			total_sponsor_count = EXCLUDED.total_sponsor_count,
			major_sponsors = EXCLUDED.major_sponsors,
			other_sponsors = EXCLUDED.other_sponsors,
			titles = EXCLUDED.titles,
			updated_at = EXCLUDED.updated_at
	`
	countQuery := `
		INSERT INTO article_sponsor_counts (article_date, count_key, mention_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (article_date, count_key) DO UPDATE SET
			mention_count = EXCLUDED.mention_count
	`

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin article upsert: %w", err)
	}
	defer tx.Rollback()

	dayStmt, err := tx.PrepareContext(ctx, dayQuery)
	if err != nil {
		return fmt.Errorf("prepare article upsert: %w", err)
	}
	defer dayStmt.Close()
	countStmt, err := tx.PrepareContext(ctx, countQuery)
	if err != nil {
		return fmt.Errorf("prepare sponsor count upsert: %w", err)
	}
	defer countStmt.Close()

	now := time.Now().UTC()
	for _, d := range days {
		major, other, titles, err := encodeLists(d)
		if err != nil {
			return err
		}
		if _, err := dayStmt.ExecContext(ctx,
			d.ArticleDate, d.ArticleCount, d.TotalSponsorCount, major, other, titles, now,
		); err != nil {
			return fmt.Errorf("upserting article day %s: %w", d.ArticleDate, err)
		}
		for key, n := range d.Counts {
			if _, err := countStmt.ExecContext(ctx, d.ArticleDate, key, n); err != nil {
				return fmt.Errorf("upserting %s count for %s: %w", key, d.ArticleDate, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit article upsert: %w", err)
	}
	return nil
}

// GetByDate returns one article day with its counts
func (r *ArticleRepository) GetByDate(ctx context.Context, day store.Day) (*store.ArticleDay, error) {
	days, err := r.List(ctx, day, day)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("articles on %s: %w", day, store.ErrNotFound)
	}
	return &days[0], nil
}

// List returns article days between start and end inclusive, ordered by date
func (r *ArticleRepository) List(ctx context.Context, start, end store.Day) ([]store.ArticleDay, error) {
	query := `
		SELECT article_date, article_count, total_sponsor_count,
			major_sponsors, other_sponsors, titles, updated_at
		FROM article_days
		WHERE article_date >= $1 AND article_date <= $2
		ORDER BY article_date
	`

	rows, err := r.db.DB().QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying article days: %w", err)
	}
	defer rows.Close()

	var days []store.ArticleDay
	index := map[string]int{}
	for rows.Next() {
		d, err := scanArticleDay(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article day: %w", err)
		}
		index[d.ArticleDate.String()] = len(days)
		days = append(days, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating article days: %w", err)
	}
	rows.Close()

	counts, err := r.db.DB().QueryContext(ctx, `
		SELECT article_date, count_key, mention_count
		FROM article_sponsor_counts
		WHERE article_date >= $1 AND article_date <= $2
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying sponsor counts: %w", err)
	}
	defer counts.Close()

	for counts.Next() {
		var day store.Day
		var key string
		var n int
		if err := counts.Scan(&day, &key, &n); err != nil {
			return nil, fmt.Errorf("scanning sponsor count: %w", err)
		}
		if i, ok := index[day.String()]; ok {
			days[i].Counts[key] = n
		}
	}
	if err := counts.Err(); err != nil {
		return nil, fmt.Errorf("iterating sponsor counts: %w", err)
	}
	return days, nil
}

// SponsorTotals sums mention counts per count key across all days
func (r *ArticleRepository) SponsorTotals(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT count_key, SUM(mention_count)
		FROM article_sponsor_counts
		GROUP BY count_key
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sponsor totals: %w", err)
	}
	defer rows.Close()

	totals := map[string]int{}
	for rows.Next() {
		var key string
		var n sql.NullInt64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scanning sponsor total: %w", err)
		}
		totals[key] = int(n.Int64)
	}
	return totals, rows.Err()
}

func scanArticleDay(row scanner) (*store.ArticleDay, error) {
	d := &store.ArticleDay{Counts: map[string]int{}}
	var major, other, titles string
	if err := row.Scan(&d.ArticleDate, &d.ArticleCount, &d.TotalSponsorCount,
		&major, &other, &titles, &d.UpdatedAt); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{{major, &d.MajorSponsors}, {other, &d.OtherSponsors}, {titles, &d.Titles}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decoding list column: %w", err)
		}
	}
	return d, nil
}

func encodeLists(d store.ArticleDay) (major, other, titles string, err error) {
	for _, f := range []struct {
		src []string
		dst *string
	}{{d.MajorSponsors, &major}, {d.OtherSponsors, &other}, {d.Titles, &titles}} {
		src := f.src
		if src == nil {
			src = []string{}
		}
		b, mErr := json.Marshal(src)
		if mErr != nil {
			return "", "", "", fmt.Errorf("encoding list column for %s: %w", d.ArticleDate, mErr)
		}
		*f.dst = string(b)
	}
	return major, other, titles, nil
}
