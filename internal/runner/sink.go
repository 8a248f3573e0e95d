package runner

import (
	"context"

	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/store"
	"github.com/fortuna/dubs/internal/store/repository"
)

// StoreSink persists cleaned datasets through the repositories
type StoreSink struct {
	games    *repository.GameRepository
	articles *repository.ArticleRepository
	trends   *repository.TrendRepository
}

// NewStoreSink builds a sink over db
func NewStoreSink(db *store.Database) *StoreSink {
	return &StoreSink{
		games:    repository.NewGameRepository(db),
		articles: repository.NewArticleRepository(db),
		trends:   repository.NewTrendRepository(db),
	}
}

func (s *StoreSink) SaveGames(ctx context.Context, games []process.Game) error {
	rows := make([]store.Game, len(games))
	for i, g := range games {
		rows[i] = store.GameFromRecord(g)
	}
	return s.games.UpsertMany(ctx, rows)
}

func (s *StoreSink) SaveArticleDays(ctx context.Context, days []process.ArticleDay) error {
	rows := make([]store.ArticleDay, len(days))
	for i, d := range days {
		rows[i] = store.ArticleDayFromRecord(d)
	}
	return s.articles.UpsertMany(ctx, rows)
}

func (s *StoreSink) SaveTrends(ctx context.Context, table process.TrendTable) error {
	return s.trends.UpsertMany(ctx, store.TrendPointsFromTable(table))
}
