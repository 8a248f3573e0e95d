package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/dubs/internal/store"
)

// GameRepository handles game data access
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

const gameColumns = `game_date, season, opponent, home, win, overtime_periods,
	team_score, opponent_score, point_difference, abs_point_difference,
	points_leader, points_value, rebounds_leader, rebounds_value,
	assists_leader, assists_value, featured_points, updated_at`

// UpsertMany inserts or replaces games by date in one transaction
func (r *GameRepository) UpsertMany(ctx context.Context, games []store.Game) error {
	query := `
		INSERT INTO games (` + gameColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (game_date) DO UPDATE SET
			season = EXCLUDED.season,
			opponent = EXCLUDED.opponent,
			home = EXCLUDED.home,
			win = EXCLUDED.win,
			overtime_periods = EXCLUDED.overtime_periods,
			team_score = EXCLUDED.team_score,
			opponent_score = EXCLUDED.opponent_score,
			point_difference = EXCLUDED.point_difference,
			abs_point_difference = EXCLUDED.abs_point_difference,
			points_leader = EXCLUDED.points_leader,
			points_value = EXCLUDED.points_value,
			rebounds_leader = EXCLUDED.rebounds_leader,
			rebounds_value = EXCLUDED.rebounds_value,
			assists_leader = EXCLUDED.assists_leader,
			assists_value = EXCLUDED.assists_value,
			featured_points = EXCLUDED.featured_points,
			updated_at = EXCLUDED.updated_at
	`

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin games upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare games upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, g := range games {
		_, err := stmt.ExecContext(ctx,
			g.GameDate, g.Season, g.Opponent, g.Home, g.Win, g.OvertimePeriods,
			g.TeamScore, g.OpponentScore, g.PointDifference, g.AbsPointDifference,
			g.PointsLeader, g.PointsValue, g.ReboundsLeader, g.ReboundsValue,
			g.AssistsLeader, g.AssistsValue, g.FeaturedPoints, now,
		)
		if err != nil {
			return fmt.Errorf("upserting game %s: %w", g.GameDate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit games upsert: %w", err)
	}
	return nil
}

// GetByDate finds the game played on day
func (r *GameRepository) GetByDate(ctx context.Context, day store.Day) (*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE game_date = $1`

	game, err := scanGame(r.db.DB().QueryRowContext(ctx, query, day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game on %s: %w", day, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying game: %w", err)
	}
	return game, nil
}

// List returns games between start and end inclusive, ordered by date
func (r *GameRepository) List(ctx context.Context, start, end store.Day) ([]store.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE game_date >= $1 AND game_date <= $2
		ORDER BY game_date
	`

	rows, err := r.db.DB().QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// GetBySeason returns every game of a season year, ordered by date
func (r *GameRepository) GetBySeason(ctx context.Context, season int) ([]store.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE season = $1
		ORDER BY game_date
	`

	rows, err := r.db.DB().QueryContext(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("querying season games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// Count returns the number of stored games
func (r *GameRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting games: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (*store.Game, error) {
	g := &store.Game{}
	err := row.Scan(
		&g.GameDate, &g.Season, &g.Opponent, &g.Home, &g.Win, &g.OvertimePeriods,
		&g.TeamScore, &g.OpponentScore, &g.PointDifference, &g.AbsPointDifference,
		&g.PointsLeader, &g.PointsValue, &g.ReboundsLeader, &g.ReboundsValue,
		&g.AssistsLeader, &g.AssistsValue, &g.FeaturedPoints, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func scanGames(rows *sql.Rows) ([]store.Game, error) {
	var games []store.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating games: %w", err)
	}
	return games, nil
}
