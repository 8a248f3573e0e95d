package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/dubs/internal/ingest/espn"
	"github.com/fortuna/dubs/internal/ingest/google"
	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/publisher"
	"github.com/fortuna/dubs/internal/roster"
	"github.com/fortuna/dubs/internal/store"
	"github.com/fortuna/dubs/internal/store/repository"
)

const schedulePage = `<html><body><table class="Table"><tbody>
<tr class="Table__TR Table__TR--sm">
  <td class="Table__TD"><span>Tue, Dec 22</span></td>
  <td class="Table__TD"><span>@</span><a>Brooklyn</a></td>
  <td class="Table__TD"><span>L</span><span>99-125</span></td>
  <td class="Table__TD">0-1</td>
  <td class="Table__TD"><a>Curry</a><span>20</span></td>
  <td class="Table__TD"><a>Green</a><span>6</span></td>
  <td class="Table__TD"><a>Curry</a><span>10</span></td>
</tr>
<tr class="Table__TR Table__TR--sm">
  <td class="Table__TD"><span>Fri, Dec 25</span></td>
  <td class="Table__TD"><span>vs</span><a>Milwaukee</a></td>
  <td class="Table__TD"><span>W</span><span>138-99</span></td>
  <td class="Table__TD">1-1</td>
  <td class="Table__TD"><a>Curry</a><span>28</span></td>
  <td class="Table__TD"><a>Looney</a><span>9</span></td>
  <td class="Table__TD"><a>Draymond Green</a><span>7</span></td>
</tr>
</tbody></table></body></html>`

const articlePage = `{"items":[
 {"title":"Warriors fall in Brooklyn","date":"2020-12-22T23:00:00+00:00","excerpt":"Presented by Rakuten","permalink":"https://example.com/1","authors":[{"name":"PR"}]},
 {"title":"Christmas win","date":"2020-12-25T23:00:00+00:00","excerpt":"A night at Chase Center","permalink":"https://example.com/2","authors":[]}
]}`

const teamTrends = `date,Golden State Warriors
2020-12-21,40
2020-12-22,80
2020-12-23,60
2020-12-25,100
`

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range []struct{ path, content string }{
		{filepath.Join(ScheduleDir, espn.ScheduleFile(2021)), schedulePage},
		{filepath.Join(ArticlePagesDir, "page_1.json"), articlePage},
		{filepath.Join(TrendsDir, google.TrendFile(roster.TeamKeyword)), teamTrends},
	} {
		path := filepath.Join(dir, f.path)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f.content), 0o600))
	}
	return dir
}

func testSpec(dir string) Spec {
	return Spec{
		DataDir:     dir,
		CleanedDir:  filepath.Join(dir, "out"),
		Seasons:     []int{2021},
		WindowStart: time.Date(2020, 12, 20, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2020, 12, 26, 0, 0, 0, 0, time.UTC),
		Persist:     true,
		Publish:     true,
	}
}

type recordingReporter struct {
	mu       sync.Mutex
	stages   []string
	started  bool
	complete *Result
	err      error
}

func (r *recordingReporter) OnRunStart(Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
}

func (r *recordingReporter) OnStage(name string, _, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, name)
}

func (r *recordingReporter) OnProgress(string, int, int) {}

func (r *recordingReporter) OnRunComplete(result *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = result
}

func (r *recordingReporter) OnRunError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

type memorySink struct {
	games []process.Game
	days  []process.ArticleDay
	trend process.TrendTable
}

func (m *memorySink) SaveGames(_ context.Context, games []process.Game) error {
	m.games = games
	return nil
}

func (m *memorySink) SaveArticleDays(_ context.Context, days []process.ArticleDay) error {
	m.days = days
	return nil
}

func (m *memorySink) SaveTrends(_ context.Context, table process.TrendTable) error {
	m.trend = table
	return nil
}

type memoryPublisher struct {
	mu        sync.Mutex
	days      int
	summaries []publisher.RunSummary
}

func (m *memoryPublisher) PublishDailyRecords(_ context.Context, t *process.Table) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days += t.Len()
	return t.Len(), nil
}

func (m *memoryPublisher) PublishRunSummary(_ context.Context, s publisher.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, s)
	return nil
}

func TestRunEndToEnd(t *testing.T) {
	dir := writeDataDir(t)
	sink := &memorySink{}
	pub := &memoryPublisher{}
	reporter := &recordingReporter{}

	result, err := NewRunner(sink, pub).Run(context.Background(), testSpec(dir), reporter)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Games.Kept)
	assert.Equal(t, 2, result.Articles.Kept)
	assert.Equal(t, 2, result.ArticleDays)
	assert.Equal(t, 4, result.TrendDays)
	assert.Equal(t, []string{roster.TeamKeyword}, result.Keywords)
	assert.Equal(t, 7, result.CombinedDays)
	assert.Equal(t, 7, result.Published)
	assert.Len(t, result.Files, 6)
	for _, f := range result.Files {
		assert.FileExists(t, f)
	}

	assert.True(t, reporter.started)
	assert.Equal(t, Stages, reporter.stages)
	assert.Same(t, result, reporter.complete)
	assert.NoError(t, reporter.err)

	require.Len(t, sink.games, 2)
	assert.Equal(t, time.Date(2020, 12, 22, 0, 0, 0, 0, time.UTC), sink.games[0].Date)
	assert.Len(t, sink.days, 2)
	assert.Len(t, sink.trend.Rows, 4)

	win, err := result.Table.Column(process.ColWin)
	require.NoError(t, err)
	assert.Equal(t, 0.0, win[2])
	assert.Equal(t, 1.0, win[5])

	adjusted, err := result.Table.Column(process.AdjustedColumn(roster.TeamKeyword))
	require.NoError(t, err)
	assert.Equal(t, 80.0, adjusted[1], "Dec 21 carries Dec 22 interest")
}

func TestRunDryRunWritesNothing(t *testing.T) {
	dir := writeDataDir(t)
	sink := &memorySink{}
	spec := testSpec(dir)
	spec.DryRun = true

	result, err := NewRunner(sink, nil).Run(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, result.CombinedDays)
	assert.Empty(t, result.Files)
	assert.Nil(t, sink.games)
	assert.NoDirExists(t, spec.CleanedDir)
}

func TestNormalizeDerivesCleanedDir(t *testing.T) {
	spec := normalize(Spec{DataDir: "/srv/data"})
	assert.Equal(t, filepath.Join("/srv/data", "cleaned"), spec.CleanedDir)

	spec = normalize(Spec{DataDir: "/srv/data", CleanedDir: "/tmp/out"})
	assert.Equal(t, "/tmp/out", spec.CleanedDir)
}

func TestRunPrefersRawCSV(t *testing.T) {
	dir := writeDataDir(t)
	f, err := os.Create(filepath.Join(dir, RawGamesFile))
	require.NoError(t, err)
	require.NoError(t, espn.WriteRawCSV(f, []espn.RawGame{
		{Season: 2021, Date: "Wed, Dec 23", Opponent: "@ Chicago", Result: "W 129-128", HiPoints: "Curry 36"},
	}))
	require.NoError(t, f.Close())

	spec := testSpec(dir)
	spec.DryRun = true
	result, err := NewRunner(nil, nil).Run(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Games.Kept)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reporter := &recordingReporter{}

	_, err := NewRunner(nil, nil).Run(ctx, testSpec(writeDataDir(t)), reporter)
	require.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(reporter.err, context.Canceled))
	assert.Empty(t, reporter.stages)
}

func openTestDB(t *testing.T) *store.Database {
	t.Helper()
	ctx := context.Background()
	db, err := store.NewDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx))
	return db
}

func TestStoreSink(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := NewRunner(NewStoreSink(db), nil).Run(ctx, testSpec(writeDataDir(t)), nil)
	require.NoError(t, err)

	n, err := repository.NewGameRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keywords, err := repository.NewTrendRepository(db).Keywords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{roster.TeamKeyword}, keywords)
}

func TestServiceExecuteRecordsRun(t *testing.T) {
	ctx := context.Background()
	runs := repository.NewRunRepository(openTestDB(t))
	pub := &memoryPublisher{}
	var completed *Result

	svc := NewService(NewRunner(nil, pub), ServiceOptions{
		Runs:       runs,
		Summaries:  pub,
		OnComplete: func(_ context.Context, r *Result) { completed = r },
	})
	require.NoError(t, svc.Start(ctx))

	result, err := svc.Execute(ctx, testSpec(writeDataDir(t)), nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)
	assert.Same(t, result, completed)

	got, err := runs.Get(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, got.Status)
	assert.Equal(t, 7, got.CombinedDays)
	assert.Equal(t, 2, got.Games)

	require.Len(t, pub.summaries, 1)
	assert.Equal(t, store.RunCompleted, pub.summaries[0].Status)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Nil(t, status.ActiveRun)
	require.Len(t, status.History, 1)
}

func TestServiceRecordsFailure(t *testing.T) {
	ctx := context.Background()
	runs := repository.NewRunRepository(openTestDB(t))
	svc := NewService(NewRunner(nil, nil), ServiceOptions{Runs: runs})

	spec := testSpec(writeDataDir(t))
	spec.WindowEnd = spec.WindowStart.AddDate(0, 0, -1)
	_, err := svc.Execute(ctx, spec, nil)
	require.Error(t, err)

	recent, err := runs.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, store.RunFailed, recent[0].Status)
	assert.Contains(t, recent[0].Message, "before it starts")
}

type blockingReporter struct {
	recordingReporter
	release chan struct{}
	entered chan struct{}
}

func (b *blockingReporter) OnRunStart(spec Spec) {
	close(b.entered)
	<-b.release
}

func TestServiceAllowsOneActiveRun(t *testing.T) {
	ctx := context.Background()
	block := &blockingReporter{release: make(chan struct{}), entered: make(chan struct{})}
	svc := NewService(NewRunner(nil, nil), ServiceOptions{Reporter: block})

	spec := testSpec(writeDataDir(t))
	spec.DryRun = true
	run, err := svc.Submit(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, store.RunQueued, run.Status)

	<-block.entered
	_, err = svc.Submit(ctx, spec)
	assert.True(t, errors.Is(err, ErrRunActive))

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.ActiveRun)
	assert.Equal(t, run.RunID, status.ActiveRun.RunID)

	close(block.release)
	require.Eventually(t, func() bool {
		status, err = svc.Status(ctx)
		return err == nil && status.ActiveRun == nil
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, svc.Shutdown(ctx))

	require.Len(t, status.History, 1)
	assert.Equal(t, store.RunCompleted, status.History[0].Status)
}
