package runner

import (
	"time"

	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/store"
)

// Raw input layout under Spec.DataDir
const (
	ScheduleDir     = "schedule"
	ArticlePagesDir = "articles"
	TrendsDir       = "trends"
	RawGamesFile    = "games_raw.csv"
	RawArticlesFile = "articles_raw.csv"
)

// Cleaned outputs written under Spec.CleanedDir
const (
	GamesFile       = "games.csv"
	ArticleDaysFile = "article_days.csv"
	TrendsFile      = "trends.csv"
	CombinedFile    = "combined.csv"
)

// Stage names in execution order
const (
	StageGames    = "games"
	StageArticles = "articles"
	StageTrends   = "trends"
	StageCombine  = "combine"
	StageWrite    = "write"
	StagePersist  = "persist"
	StagePublish  = "publish"
)

// Stages lists every stage a full run passes through
var Stages = []string{StageGames, StageArticles, StageTrends, StageCombine, StageWrite, StagePersist, StagePublish}

// Spec describes the work to be performed by the runner.
type Spec struct {
	DataDir          string    `json:"data_dir"`
	CleanedDir       string    `json:"cleaned_dir"`
	Seasons          []int     `json:"seasons"`
	ArticleThreshold int       `json:"article_threshold"`
	Featured         string    `json:"featured"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	// DryRun builds every table but writes, persists and publishes nothing
	DryRun  bool `json:"dry_run"`
	Persist bool `json:"persist"`
	Publish bool `json:"publish"`
}

// Result summarises a finished run
type Result struct {
	RunID        string         `json:"run_id,omitempty"`
	Games        process.Stats  `json:"games"`
	Articles     process.Stats  `json:"articles"`
	ArticleDays  int            `json:"article_days"`
	TrendDays    int            `json:"trend_days"`
	Keywords     []string       `json:"keywords"`
	CombinedDays int            `json:"combined_days"`
	Files        []string       `json:"files,omitempty"`
	Published    int            `json:"published"`
	Duration     time.Duration  `json:"duration"`
	Table        *process.Table `json:"-"`
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnRunStart(spec Spec)
	OnStage(name string, index int, total int)
	OnProgress(message string, current int, total int)
	OnRunComplete(result *Result)
	OnRunError(err error)
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveRun *store.Run   `json:"active_run,omitempty"`
	History   []*store.Run `json:"recent_runs,omitempty"`
}

// MultiReporter fans callbacks out to every non-nil reporter
type MultiReporter []Reporter

func (m MultiReporter) OnRunStart(spec Spec) {
	for _, r := range m {
		if r != nil {
			r.OnRunStart(spec)
		}
	}
}

func (m MultiReporter) OnStage(name string, index int, total int) {
	for _, r := range m {
		if r != nil {
			r.OnStage(name, index, total)
		}
	}
}

func (m MultiReporter) OnProgress(message string, current int, total int) {
	for _, r := range m {
		if r != nil {
			r.OnProgress(message, current, total)
		}
	}
}

func (m MultiReporter) OnRunComplete(result *Result) {
	for _, r := range m {
		if r != nil {
			r.OnRunComplete(result)
		}
	}
}

func (m MultiReporter) OnRunError(err error) {
	for _, r := range m {
		if r != nil {
			r.OnRunError(err)
		}
	}
}
