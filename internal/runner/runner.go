package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fortuna/dubs/internal/ingest/espn"
	"github.com/fortuna/dubs/internal/ingest/google"
	"github.com/fortuna/dubs/internal/ingest/news"
	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/roster"
)

func log() *slog.Logger {
	return slog.Default().With("component", "runner")
}

// Sink stores the cleaned datasets of a run
type Sink interface {
	SaveGames(ctx context.Context, games []process.Game) error
	SaveArticleDays(ctx context.Context, days []process.ArticleDay) error
	SaveTrends(ctx context.Context, table process.TrendTable) error
}

// DailyPublisher streams combined days to consumers
type DailyPublisher interface {
	PublishDailyRecords(ctx context.Context, t *process.Table) (int, error)
}

// Runner executes pipeline specs against files on disk.
type Runner struct {
	sink      Sink
	publisher DailyPublisher
}

// NewRunner constructs a runner. Either dependency may be nil, in which case
// the matching stage is skipped even when the spec asks for it.
func NewRunner(sink Sink, publisher DailyPublisher) *Runner {
	return &Runner{sink: sink, publisher: publisher}
}

// Run executes the spec, reporting progress via the Reporter if provided.
func (r *Runner) Run(ctx context.Context, spec Spec, reporter Reporter) (*Result, error) {
	if reporter == nil {
		reporter = MultiReporter(nil)
	}
	started := time.Now()
	reporter.OnRunStart(spec)

	result, err := r.run(ctx, normalize(spec), reporter)
	if err != nil {
		reporter.OnRunError(err)
		return nil, err
	}

	result.Duration = time.Since(started)
	reporter.OnRunComplete(result)
	log().Info("run complete", "games", result.Games.Kept, "articles", result.Articles.Kept,
		"combined_days", result.CombinedDays, "duration", result.Duration)
	return result, nil
}

func (r *Runner) run(ctx context.Context, spec Spec, reporter Reporter) (*Result, error) {
	result := &Result{}
	total := len(Stages)
	stage := func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		reporter.OnStage(Stages[i], i, total)
		return nil
	}

	if err := stage(0); err != nil {
		return nil, err
	}
	rawGames, err := loadGames(spec)
	if err != nil {
		return nil, err
	}
	games, gameStats := process.CleanGames(rawGames, spec.Featured)
	result.Games = gameStats
	reporter.OnProgress(fmt.Sprintf("Cleaned %d of %d games", gameStats.Kept, gameStats.Input), gameStats.Kept, gameStats.Input)

	if err := stage(1); err != nil {
		return nil, err
	}
	rawArticles, err := loadArticles(spec)
	if err != nil {
		return nil, err
	}
	sponsors := roster.Sponsors()
	articles, articleStats := process.CleanArticles(rawArticles, sponsors)
	days := process.AggregateArticles(articles)
	result.Articles = articleStats
	result.ArticleDays = len(days)
	reporter.OnProgress(fmt.Sprintf("Aggregated %d articles into %d days", articleStats.Kept, len(days)), articleStats.Kept, articleStats.Input)

	if err := stage(2); err != nil {
		return nil, err
	}
	keywords := roster.Keywords()
	trendSeries, err := google.LoadTrendDir(filepath.Join(spec.DataDir, TrendsDir), keywords)
	if err != nil {
		return nil, err
	}
	processed := make([]process.TrendSeries, len(trendSeries))
	for i, s := range trendSeries {
		processed[i] = process.ProcessTrends(s)
		reporter.OnProgress("Processed trends for "+s.Keyword, i+1, len(trendSeries))
	}
	trends := process.MergeTrends(processed)
	result.TrendDays = len(trends.Rows)
	result.Keywords = trends.Keywords

	if err := stage(3); err != nil {
		return nil, err
	}
	table, err := process.Combine(games, days, trends, spec.WindowStart, spec.WindowEnd, spec.Featured)
	if err != nil {
		return nil, fmt.Errorf("combining datasets: %w", err)
	}
	result.CombinedDays = table.Len()
	result.Table = table

	if spec.DryRun {
		reporter.OnProgress("Dry-run mode: no data will be written", 0, 0)
		return result, nil
	}

	if err := stage(4); err != nil {
		return nil, err
	}
	files, err := writeOutputs(spec, rawGames, rawArticles, games, days, trends, table)
	if err != nil {
		return nil, err
	}
	result.Files = files
	reporter.OnProgress(fmt.Sprintf("Wrote %d files to %s", len(files), spec.CleanedDir), len(files), len(files))

	if err := stage(5); err != nil {
		return nil, err
	}
	if spec.Persist && r.sink != nil {
		if err := r.persist(ctx, games, days, trends); err != nil {
			return nil, err
		}
		reporter.OnProgress("Persisted cleaned datasets", 3, 3)
	}

	if err := stage(6); err != nil {
		return nil, err
	}
	if spec.Publish && r.publisher != nil {
		n, err := r.publisher.PublishDailyRecords(ctx, table)
		if err != nil {
			return nil, err
		}
		result.Published = n
		reporter.OnProgress(fmt.Sprintf("Published %d daily records", n), n, table.Len())
	}

	return result, nil
}

func (r *Runner) persist(ctx context.Context, games []process.Game, days []process.ArticleDay, trends process.TrendTable) error {
	if err := r.sink.SaveGames(ctx, games); err != nil {
		return fmt.Errorf("persisting games: %w", err)
	}
	if err := r.sink.SaveArticleDays(ctx, days); err != nil {
		return fmt.Errorf("persisting article days: %w", err)
	}
	if err := r.sink.SaveTrends(ctx, trends); err != nil {
		return fmt.Errorf("persisting trends: %w", err)
	}
	return nil
}

func normalize(spec Spec) Spec {
	if len(spec.Seasons) == 0 {
		spec.Seasons = append([]int(nil), roster.ScrapeSeasons...)
	}
	if spec.Featured == "" {
		spec.Featured = process.DefaultFeatured
	}
	start, end := roster.Window()
	if spec.WindowStart.IsZero() {
		spec.WindowStart = start
	}
	if spec.WindowEnd.IsZero() {
		spec.WindowEnd = end
	}
	if spec.CleanedDir == "" {
		spec.CleanedDir = filepath.Join(spec.DataDir, "cleaned")
	}
	return spec
}

// loadGames prefers the raw schedule CSV and falls back to saved pages
func loadGames(spec Spec) ([]espn.RawGame, error) {
	raw := filepath.Join(spec.DataDir, RawGamesFile)
	f, err := os.Open(raw)
	switch {
	case err == nil:
		defer f.Close()
		log().Info("loading raw schedule csv", "path", raw)
		return espn.ReadRawCSV(f)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("opening %s: %w", raw, err)
	}
	return espn.LoadScheduleDir(filepath.Join(spec.DataDir, ScheduleDir), spec.Seasons)
}

// loadArticles prefers the raw article CSV and falls back to saved pages
func loadArticles(spec Spec) ([]news.RawArticle, error) {
	raw := filepath.Join(spec.DataDir, RawArticlesFile)
	f, err := os.Open(raw)
	switch {
	case err == nil:
		defer f.Close()
		log().Info("loading raw article csv", "path", raw)
		return news.ReadRawCSV(f)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("opening %s: %w", raw, err)
	}

	dir := filepath.Join(spec.DataDir, ArticlePagesDir)
	articles, err := news.LoadPageDir(dir, spec.ArticleThreshold)
	if errors.Is(err, os.ErrNotExist) {
		log().Warn("no article pages found", "dir", dir)
		return nil, nil
	}
	return articles, err
}

func writeOutputs(spec Spec, rawGames []espn.RawGame, rawArticles []news.RawArticle, games []process.Game,
	days []process.ArticleDay, trends process.TrendTable, table *process.Table) ([]string, error) {
	if err := os.MkdirAll(spec.CleanedDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", spec.CleanedDir, err)
	}

	countKeys := make([]string, 0, len(table.Sponsors))
	for _, s := range table.Sponsors {
		countKeys = append(countKeys, s.CountKey)
	}

	outputs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{RawGamesFile, func(w io.Writer) error { return espn.WriteRawCSV(w, rawGames) }},
		{RawArticlesFile, func(w io.Writer) error { return news.WriteRawCSV(w, rawArticles) }},
		{GamesFile, func(w io.Writer) error { return process.WriteGamesCSV(w, games) }},
		{ArticleDaysFile, func(w io.Writer) error { return process.WriteArticleDaysCSV(w, days, countKeys) }},
		{TrendsFile, func(w io.Writer) error { return process.WriteTrendsCSV(w, trends) }},
		{CombinedFile, func(w io.Writer) error { return process.WriteCombinedCSV(w, table) }},
	}

	var files []string
	for _, out := range outputs {
		path := filepath.Join(spec.CleanedDir, out.name)
		if err := writeFile(path, out.write); err != nil {
			return files, err
		}
		log().Debug("wrote output", "path", path)
		files = append(files, path)
	}
	return files, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
