package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fortuna/dubs/internal/analysis"
	"github.com/fortuna/dubs/internal/cache"
	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/roster"
	"github.com/fortuna/dubs/internal/store"
)

// DefaultCacheTTL bounds how long analysis results are reused
const DefaultCacheTTL = 30 * time.Minute

// AnalysisService computes correlation matrices and regressions over the store
type AnalysisService struct {
	days  *DaysService
	cache cache.Cache
	ttl   time.Duration
}

// NewAnalysisService creates a new analysis service; c may be nil
func NewAnalysisService(days *DaysService, c cache.Cache, ttl time.Duration) *AnalysisService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &AnalysisService{days: days, cache: c, ttl: ttl}
}

// MatrixNames lists the standard matrices
func (s *AnalysisService) MatrixNames() []analysis.MatrixSpec {
	return analysis.StandardMatrices(s.days.Featured())
}

// Correlation returns the named standard matrix over the whole window, or a
// single season when season is non-zero
func (s *AnalysisService) Correlation(ctx context.Context, name string, season int) (*analysis.Matrix, error) {
	spec, ok := analysis.LookupMatrix(name, s.days.Featured())
	if !ok {
		return nil, fmt.Errorf("correlation matrix %q: %w", name, store.ErrNotFound)
	}

	key := "corr:" + name + ":" + datasetKey(season)
	var cached analysis.Matrix
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	start, end, err := s.window(season)
	if err != nil {
		return nil, err
	}
	table, err := s.days.Table(ctx, start, end)
	if err != nil {
		return nil, err
	}
	m, err := analysis.Correlate(table, spec.Columns)
	if err != nil {
		return nil, err
	}
	m.Name = spec.Name

	s.store(ctx, key, m)
	return m, nil
}

// Regressions fits formula on every dataset, or on one season when season is non-zero
func (s *AnalysisService) Regressions(ctx context.Context, formula string, season int) ([]analysis.DatasetRegression, error) {
	f, err := analysis.ParseFormula(formula)
	if err != nil {
		return nil, err
	}

	key := "ols:" + f.String() + ":" + datasetKey(season)
	var cached []analysis.DatasetRegression
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	start, end := roster.Window()
	table, err := s.days.Table(ctx, start, end)
	if err != nil {
		return nil, err
	}

	datasets := analysis.Datasets(table)
	if season > 0 {
		name := strconv.Itoa(season)
		sub, ok := datasets[name]
		if !ok {
			return nil, fmt.Errorf("%w: season %d", store.ErrNotFound, season)
		}
		datasets = map[string]*process.Table{name: sub}
	}

	results := analysis.RunRegressions(datasets, f)
	s.store(ctx, key, results)
	return results, nil
}

// Invalidate drops every cached result, called after new data lands
func (s *AnalysisService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Flush(ctx); err != nil {
		log().Warn("failed to flush analysis cache", "err", err)
	}
}

func (s *AnalysisService) window(season int) (time.Time, time.Time, error) {
	if season > 0 {
		return SeasonWindow(season)
	}
	start, end := roster.Window()
	return start, end, nil
}

func (s *AnalysisService) lookup(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.GetJSON(ctx, key, dst)
	if err != nil {
		log().Warn("analysis cache read failed", "key", key, "err", err)
		return false
	}
	return ok
}

func (s *AnalysisService) store(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.ttl); err != nil {
		log().Warn("analysis cache write failed", "key", key, "err", err)
	}
}

func datasetKey(season int) string {
	if season > 0 {
		return strconv.Itoa(season)
	}
	return analysis.AllDatasets
}
