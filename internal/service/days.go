package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/roster"
	"github.com/fortuna/dubs/internal/store"
	"github.com/fortuna/dubs/internal/store/repository"
)

func log() *slog.Logger {
	return slog.Default().With("component", "service")
}

// DaysService rebuilds cleaned and combined datasets from the store
type DaysService struct {
	gameRepo    *repository.GameRepository
	articleRepo *repository.ArticleRepository
	trendRepo   *repository.TrendRepository
	featured    string
}

// NewDaysService creates a new days service; featured names the player
// whose point totals get their own column
func NewDaysService(db *store.Database, featured string) *DaysService {
	if featured == "" {
		featured = process.DefaultFeatured
	}
	return &DaysService{
		gameRepo:    repository.NewGameRepository(db),
		articleRepo: repository.NewArticleRepository(db),
		trendRepo:   repository.NewTrendRepository(db),
		featured:    featured,
	}
}

// Featured is the featured player name
func (s *DaysService) Featured() string {
	return s.featured
}

// Window resolves optional bounds against the analysed window
func Window(start, end *time.Time) (time.Time, time.Time) {
	from, to := roster.Window()
	if start != nil {
		from = *start
	}
	if end != nil {
		to = *end
	}
	return from, to
}

// SeasonWindow is the regular-season window of year
func SeasonWindow(year int) (time.Time, time.Time, error) {
	s, ok := roster.SeasonByYear(year)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: season %d", store.ErrNotFound, year)
	}
	return s.Start, s.End, nil
}

// Table joins stored games, article days and trends over start..end
func (s *DaysService) Table(ctx context.Context, start, end time.Time) (*process.Table, error) {
	from, to := store.NewDay(start), store.NewDay(end)

	gameRows, err := s.gameRepo.List(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetching games: %w", err)
	}
	games := make([]process.Game, len(gameRows))
	for i, row := range gameRows {
		games[i] = row.Record()
	}

	dayRows, err := s.articleRepo.List(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetching article days: %w", err)
	}
	days := make([]process.ArticleDay, len(dayRows))
	for i, row := range dayRows {
		days[i] = row.Record()
	}

	keywords, err := s.keywords(ctx)
	if err != nil {
		return nil, err
	}
	points, err := s.trendRepo.List(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetching trends: %w", err)
	}
	trends := store.TrendTableFromPoints(keywords, points)

	return process.Combine(games, days, trends, start, end, s.featured)
}

// Days returns the combined days between start and end
func (s *DaysService) Days(ctx context.Context, start, end time.Time) ([]DayView, error) {
	table, err := s.Table(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return NewDayViews(table)
}

// Games returns games for a season, or every game in the window when season is zero
func (s *DaysService) Games(ctx context.Context, season int) ([]GameView, error) {
	var rows []store.Game
	var err error
	if season > 0 {
		rows, err = s.gameRepo.GetBySeason(ctx, season)
	} else {
		from, to := roster.Window()
		rows, err = s.gameRepo.List(ctx, store.NewDay(from), store.NewDay(to))
	}
	if err != nil {
		return nil, fmt.Errorf("fetching games: %w", err)
	}

	views := make([]GameView, len(rows))
	for i, row := range rows {
		views[i] = NewGameView(row)
	}
	return views, nil
}

// ArticleDays returns aggregated article days between start and end
func (s *DaysService) ArticleDays(ctx context.Context, start, end time.Time) ([]store.ArticleDay, error) {
	days, err := s.articleRepo.List(ctx, store.NewDay(start), store.NewDay(end))
	if err != nil {
		return nil, fmt.Errorf("fetching article days: %w", err)
	}
	return days, nil
}

// SponsorTotals sums mention counts per sponsor over every stored day
func (s *DaysService) SponsorTotals(ctx context.Context) (map[string]int, error) {
	return s.articleRepo.SponsorTotals(ctx)
}

// Trend returns one keyword's series between start and end
func (s *DaysService) Trend(ctx context.Context, keyword string, start, end time.Time) ([]TrendView, error) {
	if sponsor, ok := roster.Lookup(keyword); ok {
		keyword = sponsor.Name
	}
	points, err := s.trendRepo.GetByKeyword(ctx, keyword, store.NewDay(start), store.NewDay(end))
	if err != nil {
		return nil, fmt.Errorf("fetching trend %s: %w", keyword, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("trend %q: %w", keyword, store.ErrNotFound)
	}

	views := make([]TrendView, len(points))
	for i, p := range points {
		views[i] = NewTrendView(p)
	}
	return views, nil
}

// keywords orders stored keywords the way the roster lists them
func (s *DaysService) keywords(ctx context.Context) ([]string, error) {
	stored, err := s.trendRepo.Keywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching trend keywords: %w", err)
	}
	present := make(map[string]bool, len(stored))
	for _, k := range stored {
		present[k] = true
	}

	var out []string
	for _, k := range roster.Keywords() {
		if present[k] {
			out = append(out, k)
			delete(present, k)
		}
	}
	for _, k := range stored {
		if present[k] {
			out = append(out, k)
		}
	}
	return out, nil
}
