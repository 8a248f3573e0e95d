package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/store"
)

func openTestDB(t *testing.T) *store.Database {
	t.Helper()
	ctx := context.Background()
	db, err := store.NewDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx))
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RunMigrations(context.Background()))

	var n int
	require.NoError(t, db.DB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 4, n)
}

func TestGameRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGameRepository(openTestDB(t))

	games := []process.Game{
		{Date: day(2024, 1, 4), Season: 2024, Opponent: "Boston", Win: false, TeamScore: 90, OpponentScore: 120,
			Points: process.Leader{Name: "Curry", Value: 30}, Rebounds: process.Leader{Value: math.NaN()},
			Assists: process.Leader{Name: "Green", Value: 8}, FeaturedPoints: 30},
		{Date: day(2024, 1, 2), Season: 2024, Opponent: "Utah", Home: true, Win: true, OvertimePeriods: 1,
			TeamScore: 110, OpponentScore: 100, Points: process.Leader{Name: "Wiggins", Value: 25},
			Rebounds: process.Leader{Name: "Looney", Value: 12}, Assists: process.Leader{Name: "Paul", Value: 9},
			FeaturedPoints: math.NaN()},
	}
	rows := make([]store.Game, len(games))
	for i, g := range games {
		rows[i] = store.GameFromRecord(g)
	}
	require.NoError(t, repo.UpsertMany(ctx, rows))

	// Upserting again replaces by date
	rows[0].Opponent = "Boston Celtics"
	require.NoError(t, repo.UpsertMany(ctx, rows[:1]))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := repo.List(ctx, store.NewDay(day(2024, 1, 1)), store.NewDay(day(2024, 1, 31)))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-01-02", list[0].GameDate.String())
	assert.Equal(t, "Boston Celtics", list[1].Opponent)

	utah := list[0].Record()
	assert.True(t, utah.Home)
	assert.True(t, utah.Win)
	assert.Equal(t, 1, utah.OvertimePeriods)
	assert.Equal(t, 10, utah.PointDifference())
	assert.True(t, math.IsNaN(utah.FeaturedPoints))

	boston := list[1].Record()
	assert.Equal(t, 30.0, boston.FeaturedPoints)
	assert.False(t, boston.Rebounds.Valid())
	assert.Equal(t, -30, list[1].PointDifference)

	season, err := repo.GetBySeason(ctx, 2024)
	require.NoError(t, err)
	assert.Len(t, season, 2)

	got, err := repo.GetByDate(ctx, store.NewDay(day(2024, 1, 2)))
	require.NoError(t, err)
	assert.Equal(t, "Utah", got.Opponent)

	_, err = repo.GetByDate(ctx, store.NewDay(day(2024, 1, 3)))
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestArticleRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewArticleRepository(openTestDB(t))

	days := []process.ArticleDay{
		{Date: day(2024, 1, 2), ArticleCount: 2, Counts: map[string]int{"Rakuten": 3, "Adobe": 0},
			TotalSponsorCount: 2, MajorSponsors: []string{"Rakuten"}, OtherSponsors: []string{"Acme"}, Titles: []string{"a", "b"}},
		{Date: day(2024, 1, 1), ArticleCount: 1, Counts: map[string]int{"Rakuten": 1}, Titles: []string{"c"}},
	}
	rows := make([]store.ArticleDay, len(days))
	for i, d := range days {
		rows[i] = store.ArticleDayFromRecord(d)
	}
	require.NoError(t, repo.UpsertMany(ctx, rows))

	list, err := repo.List(ctx, store.NewDay(day(2024, 1, 1)), store.NewDay(day(2024, 1, 2)))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-01-01", list[0].ArticleDate.String())
	assert.Empty(t, list[0].MajorSponsors)

	second := list[1].Record()
	assert.Equal(t, 2, second.ArticleCount)
	assert.Equal(t, map[string]int{"Rakuten": 3, "Adobe": 0}, second.Counts)
	assert.Equal(t, []string{"Rakuten"}, second.MajorSponsors)
	assert.Equal(t, []string{"Acme"}, second.OtherSponsors)
	assert.Equal(t, []string{"a", "b"}, second.Titles)

	totals, err := repo.SponsorTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, totals["Rakuten"])

	_, err = repo.GetByDate(ctx, store.NewDay(day(2023, 1, 1)))
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestTrendRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTrendRepository(openTestDB(t))

	table := process.MergeTrends([]process.TrendSeries{
		{Keyword: "Adobe", Points: []process.TrendPoint{
			{Date: day(2024, 1, 1), Raw: 10, Scaled: 5, Adjusted: 6},
			{Date: day(2024, 1, 2), Raw: 12, Scaled: 6, Adjusted: math.NaN()},
		}},
		{Keyword: "Rakuten", Points: []process.TrendPoint{
			{Date: day(2024, 1, 2), Raw: 1, Scaled: math.NaN(), Adjusted: math.NaN()},
		}},
	})
	require.NoError(t, repo.UpsertMany(ctx, store.TrendPointsFromTable(table)))

	adobe, err := repo.GetByKeyword(ctx, "Adobe", store.NewDay(day(2024, 1, 1)), store.NewDay(day(2024, 1, 2)))
	require.NoError(t, err)
	require.Len(t, adobe, 2)
	assert.Equal(t, 6.0, adobe[0].AdjustedValue.Float64)
	assert.False(t, adobe[1].AdjustedValue.Valid)

	keywords, err := repo.Keywords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Adobe", "Rakuten"}, keywords)

	all, err := repo.List(ctx, store.NewDay(day(2024, 1, 1)), store.NewDay(day(2024, 1, 2)))
	require.NoError(t, err)
	rebuilt := store.TrendTableFromPoints([]string{"Rakuten", "Adobe"}, all)
	assert.Equal(t, []string{"Rakuten", "Adobe"}, rebuilt.Keywords)
	require.Len(t, rebuilt.Rows, 2)
	assert.Equal(t, 5.0, rebuilt.Rows[0].Get("Adobe").Scaled)
	assert.True(t, math.IsNaN(rebuilt.Rows[1].Get("Rakuten").Scaled))
	assert.Equal(t, 1.0, rebuilt.Rows[1].Get("Rakuten").Raw)
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t))

	run, err := repo.Create(ctx, `{"dry_run":false}`)
	require.NoError(t, err)
	assert.Equal(t, store.RunQueued, run.Status)

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, repo.MarkRunning(ctx, run.RunID))
	require.NoError(t, repo.UpdateMessage(ctx, run.RunID, "combining"))
	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "combining", active.Message)
	assert.True(t, active.StartedAt.Valid)

	run.Message, run.Games, run.CombinedDays = "done", 80, 1574
	require.NoError(t, repo.Complete(ctx, run))
	got, err := repo.Get(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, got.Status)
	assert.Equal(t, 80, got.Games)
	assert.Equal(t, 1574, got.CombinedDays)
	assert.True(t, got.FinishedAt.Valid)

	failed, err := repo.Create(ctx, "{}")
	require.NoError(t, err)
	require.NoError(t, repo.Fail(ctx, failed.RunID, errors.New("boom")))
	got, err = repo.Get(ctx, failed.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunFailed, got.Status)
	assert.Equal(t, "boom", got.Message)

	stuck, err := repo.Create(ctx, "{}")
	require.NoError(t, err)
	require.NoError(t, repo.MarkRunning(ctx, stuck.RunID))
	n, err := repo.ResetStuck(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
