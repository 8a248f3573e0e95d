package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/dubs/internal/analysis"
	"github.com/fortuna/dubs/internal/cache"
	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/roster"
	"github.com/fortuna/dubs/internal/store"
	"github.com/fortuna/dubs/internal/store/repository"
)

func day(m time.Month, d int) time.Time {
	y := 2021
	if m == time.December {
		y = 2020
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T) *store.Database {
	t.Helper()
	ctx := context.Background()
	db, err := store.NewDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx))

	games := []process.Game{
		{Date: day(time.January, 4), Season: 2021, Opponent: "Utah", Home: true, Win: true, TeamScore: 110, OpponentScore: 100,
			Points: process.Leader{Name: "Curry", Value: 30}, Rebounds: process.Leader{Value: math.NaN()},
			Assists: process.Leader{Name: "Green", Value: 9}, FeaturedPoints: 30},
		{Date: day(time.January, 6), Season: 2021, Opponent: "Boston", Win: false, TeamScore: 90, OpponentScore: 120,
			Points: process.Leader{Name: "Wiggins", Value: 22}, Rebounds: process.Leader{Name: "Looney", Value: 8},
			Assists: process.Leader{Name: "Curry", Value: 6}, FeaturedPoints: math.NaN()},
		{Date: day(time.January, 8), Season: 2021, Opponent: "Denver", Win: true, OvertimePeriods: 1, TeamScore: 125, OpponentScore: 121,
			Points: process.Leader{Name: "Curry", Value: 20}, Rebounds: process.Leader{Name: "Green", Value: 10},
			Assists: process.Leader{Name: "Green", Value: 11}, FeaturedPoints: 20},
	}
	gameRows := make([]store.Game, len(games))
	for i, g := range games {
		gameRows[i] = store.GameFromRecord(g)
	}
	require.NoError(t, repository.NewGameRepository(db).UpsertMany(ctx, gameRows))

	require.NoError(t, repository.NewArticleRepository(db).UpsertMany(ctx, []store.ArticleDay{
		store.ArticleDayFromRecord(process.ArticleDay{Date: day(time.January, 4), ArticleCount: 2,
			Counts: map[string]int{"Rakuten": 3}, TotalSponsorCount: 1, MajorSponsors: []string{"Rakuten"}}),
	}))

	var series []process.TrendSeries
	base := map[string]float64{roster.TeamKeyword: 50, "Rakuten": 5, "United Airlines": 20, "JPMorgan Chase": 10}
	for k, b := range base {
		s := process.TrendSeries{Keyword: k}
		for i := 0; i < 7; i++ {
			v := b + float64(i*i%5)
			s.Points = append(s.Points, process.TrendPoint{Date: day(time.January, 3+i), Raw: v, Scaled: v, Adjusted: math.NaN()})
		}
		series = append(series, s)
	}
	table := process.MergeTrends(series)
	require.NoError(t, repository.NewTrendRepository(db).UpsertMany(ctx, store.TrendPointsFromTable(table)))
	return db
}

func TestDaysServiceDays(t *testing.T) {
	ctx := context.Background()
	svc := NewDaysService(seed(t), "")
	assert.Equal(t, process.DefaultFeatured, svc.Featured())

	days, err := svc.Days(ctx, day(time.January, 3), day(time.January, 7))
	require.NoError(t, err)
	require.Len(t, days, 5)

	assert.Equal(t, "2021-01-03", days[0].Date)
	assert.Nil(t, days[0].Values[process.ColWin], "no game is not a loss")
	require.NotNil(t, days[1].Values[process.ColWin])
	assert.Equal(t, 1.0, *days[1].Values[process.ColWin])
	assert.Equal(t, "Utah", days[1].Opponent)
	assert.Equal(t, []string{"Rakuten"}, days[1].MajorSponsors)
	assert.Equal(t, 3.0, *days[1].Values["Rakuten_Count"])
	assert.Equal(t, 0.0, *days[2].Values[process.ColArticleCount])
	assert.Equal(t, 50.0, *days[0].Values[roster.TeamKeyword])
	assert.Equal(t, 30.0, *days[1].Values["Curry_Hi_Points_Value"])
	assert.Nil(t, days[3].Values["Curry_Hi_Points_Value"])
}

func TestDaysServiceGamesAndTrends(t *testing.T) {
	ctx := context.Background()
	svc := NewDaysService(seed(t), "Curry")

	games, err := svc.Games(ctx, 2021)
	require.NoError(t, err)
	require.Len(t, games, 3)
	assert.Equal(t, 10, games[0].PointDifference)
	assert.Nil(t, games[0].Rebounds.Value)
	require.NotNil(t, games[0].FeaturedPoints)
	assert.True(t, games[2].Overtime)

	all, err := svc.Games(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	trend, err := svc.Trend(ctx, "rakuten", day(time.January, 1), day(time.January, 31))
	require.NoError(t, err)
	require.Len(t, trend, 7)
	assert.Equal(t, "Rakuten", trend[0].Keyword)
	assert.Nil(t, trend[0].Adjusted)

	_, err = svc.Trend(ctx, "Adobe", day(time.January, 1), day(time.January, 31))
	assert.True(t, errors.Is(err, store.ErrNotFound))

	articles, err := svc.ArticleDays(ctx, day(time.January, 1), day(time.January, 31))
	require.NoError(t, err)
	require.Len(t, articles, 1)

	totals, err := svc.SponsorTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, totals["Rakuten"])
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	svc := NewDaysService(seed(t), "")
	table, err := svc.Table(ctx, day(time.January, 1), day(time.January, 10))
	require.NoError(t, err)

	s := Summarize("2021", table)
	assert.Equal(t, 10, s.Days)
	assert.Equal(t, 3, s.Games)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 2.0/3.0, s.WinPct, 1e-9)
	assert.Equal(t, 1.0, s.HomeWinPct)
	assert.Equal(t, 0.5, s.AwayWinPct)
	assert.Equal(t, 1, s.OvertimeGames)
	assert.InDelta(t, (10.0-30.0+4.0)/3.0, s.AvgPointDiff, 1e-9)
	assert.Equal(t, 2, s.FeaturedGames)
	require.NotNil(t, s.FeaturedPPG)
	assert.Equal(t, 25.0, *s.FeaturedPPG)
	assert.Equal(t, 2, s.Articles)
	assert.Equal(t, 3, s.SponsorMentions["Rakuten"])

	empty := Summarize("none", &process.Table{})
	assert.Zero(t, empty.WinPct)
	assert.Nil(t, empty.FeaturedPPG)

	all, err := svc.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(roster.Seasons())+1)
	assert.Equal(t, 3, all[0].Games)
	assert.Equal(t, "2021", all[1].Season)
	assert.Equal(t, 3, all[1].Games)
}

func TestAnalysisServiceCorrelationCaches(t *testing.T) {
	ctx := context.Background()
	mc, err := cache.NewMemoryCache(16)
	require.NoError(t, err)
	svc := NewAnalysisService(NewDaysService(seed(t), ""), mc, time.Minute)
	assert.Len(t, svc.MatrixNames(), 8)

	m, err := svc.Correlation(ctx, "sponsor_counts", 2021)
	require.NoError(t, err)
	assert.Equal(t, "sponsor_counts", m.Name)
	r, ok := m.Get(roster.TeamKeyword, "Rakuten")
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-9, "identically shaped series")
	assert.Equal(t, 1, mc.Len())

	again, err := svc.Correlation(ctx, "sponsor_counts", 2021)
	require.NoError(t, err)
	assert.Equal(t, m.Columns, again.Columns)

	svc.Invalidate(ctx)
	assert.Zero(t, mc.Len())

	_, err = svc.Correlation(ctx, "nope", 0)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	_, err = svc.Correlation(ctx, "performance", 1999)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestAnalysisServiceRegressions(t *testing.T) {
	ctx := context.Background()
	svc := NewAnalysisService(NewDaysService(seed(t), ""), nil, 0)

	results, err := svc.Regressions(ctx, `Abs_Point_Difference ~ Q("Golden State Warriors")`, 2021)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2021", results[0].Dataset)
	require.NotNil(t, results[0].Result)
	assert.Equal(t, 3, results[0].Result.N)

	all, err := svc.Regressions(ctx, `Abs_Point_Difference ~ Q("Golden State Warriors")`, 0)
	require.NoError(t, err)
	assert.Len(t, all, len(roster.Seasons())+1)

	_, err = svc.Regressions(ctx, "no tilde", 0)
	assert.True(t, errors.Is(err, analysis.ErrBadFormula))
	_, err = svc.Regressions(ctx, "Win ~ Home", 1999)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
