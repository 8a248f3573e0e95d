package runner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fortuna/dubs/internal/publisher"
	"github.com/fortuna/dubs/internal/store"
)

// ErrRunActive is returned when a run is requested while another is in flight
var ErrRunActive = errors.New("a run is already active")

// RunStore records run history
type RunStore interface {
	Create(ctx context.Context, spec string) (*store.Run, error)
	MarkRunning(ctx context.Context, runID string) error
	UpdateMessage(ctx context.Context, runID, message string) error
	Complete(ctx context.Context, run *store.Run) error
	Fail(ctx context.Context, runID string, runErr error) error
	ResetStuck(ctx context.Context) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]*store.Run, error)
}

// SummaryPublisher announces finished runs
type SummaryPublisher interface {
	PublishRunSummary(ctx context.Context, summary publisher.RunSummary) error
}

// ServiceOptions wires optional collaborators into a Service
type ServiceOptions struct {
	Runs      RunStore
	Summaries SummaryPublisher
	// Reporter observes every run, e.g. a websocket broadcaster
	Reporter Reporter
	// OnComplete runs after a successful run is recorded
	OnComplete   func(ctx context.Context, result *Result)
	HistoryLimit int
}

// Service serialises pipeline runs and records their history.
type Service struct {
	runner *Runner
	opts   ServiceOptions

	mu      sync.Mutex
	active  *store.Run
	history []*store.Run

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService constructs a Service. Call Start before accepting runs.
func NewService(runner *Runner, opts ServiceOptions) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{runner: runner, opts: opts, ctx: ctx, cancel: cancel}
}

// Start fails runs left behind by a previous process
func (s *Service) Start(ctx context.Context) error {
	if s.opts.Runs == nil {
		return nil
	}
	n, err := s.opts.Runs.ResetStuck(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log().Warn("reset interrupted runs", "count", n)
	}
	return nil
}

// Shutdown cancels any background run and waits for it to stop.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Execute runs spec in the caller's goroutine
func (s *Service) Execute(ctx context.Context, spec Spec, reporter Reporter) (*Result, error) {
	run, err := s.begin(ctx, spec)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, run, spec, reporter)
}

// Submit starts spec in the background and returns the queued run
func (s *Service) Submit(ctx context.Context, spec Spec) (*store.Run, error) {
	run, err := s.begin(ctx, spec)
	if err != nil {
		return nil, err
	}
	snapshot := *run

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.execute(s.ctx, run, spec, nil); err != nil {
			log().Error("background run failed", "run_id", run.RunID, "err", err)
		}
	}()
	return &snapshot, nil
}

// Status returns the active run plus recent history.
func (s *Service) Status(ctx context.Context) (*StatusSummary, error) {
	summary := &StatusSummary{}

	s.mu.Lock()
	if s.active != nil {
		active := *s.active
		summary.ActiveRun = &active
	}
	summary.History = append(summary.History, s.history...)
	s.mu.Unlock()

	if s.opts.Runs != nil {
		history, err := s.opts.Runs.ListRecent(ctx, s.opts.HistoryLimit)
		if err != nil {
			return nil, err
		}
		summary.History = history
	}
	return summary, nil
}

func (s *Service) begin(ctx context.Context, spec Spec) (*store.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrRunActive
	}

	encoded, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encoding run spec: %w", err)
	}

	var run *store.Run
	if s.opts.Runs != nil {
		run, err = s.opts.Runs.Create(ctx, string(encoded))
		if err != nil {
			return nil, err
		}
	} else {
		run = &store.Run{
			RunID:     uuid.NewString(),
			Status:    store.RunQueued,
			Spec:      string(encoded),
			CreatedAt: time.Now().UTC(),
		}
	}
	s.active = run
	return run, nil
}

func (s *Service) execute(ctx context.Context, run *store.Run, spec Spec, reporter Reporter) (*Result, error) {
	defer s.finish(run)

	s.update(run, func(r *store.Run) {
		r.Status = store.RunRunning
		r.Message = "running"
		r.StartedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	})
	if s.opts.Runs != nil {
		if err := s.opts.Runs.MarkRunning(ctx, run.RunID); err != nil {
			log().Warn("failed to mark run running", "run_id", run.RunID, "err", err)
		}
	}

	tracker := &runTracker{ctx: ctx, service: s, run: run}
	result, err := s.runner.Run(ctx, spec, MultiReporter{tracker, s.opts.Reporter, reporter})

	// Record the outcome even when ctx was cancelled mid-run
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err != nil {
		s.update(run, func(r *store.Run) {
			r.Status = store.RunFailed
			r.Message = err.Error()
			r.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
		})
		if s.opts.Runs != nil {
			if ferr := s.opts.Runs.Fail(recordCtx, run.RunID, err); ferr != nil {
				log().Error("failed to record run failure", "run_id", run.RunID, "err", ferr)
			}
		}
		s.publishSummary(recordCtx, run)
		return nil, err
	}

	result.RunID = run.RunID
	s.update(run, func(r *store.Run) {
		r.Status = store.RunCompleted
		r.Message = fmt.Sprintf("combined %d days", result.CombinedDays)
		r.Games = result.Games.Kept
		r.Articles = result.Articles.Kept
		r.ArticleDays = result.ArticleDays
		r.TrendDays = result.TrendDays
		r.CombinedDays = result.CombinedDays
		r.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	})
	if s.opts.Runs != nil {
		s.mu.Lock()
		completed := *run
		s.mu.Unlock()
		if err := s.opts.Runs.Complete(recordCtx, &completed); err != nil {
			return result, fmt.Errorf("recording run: %w", err)
		}
	}
	s.publishSummary(recordCtx, run)
	if s.opts.OnComplete != nil {
		s.opts.OnComplete(recordCtx, result)
	}
	return result, nil
}

func (s *Service) publishSummary(ctx context.Context, run *store.Run) {
	if s.opts.Summaries == nil {
		return
	}
	s.mu.Lock()
	summary := publisher.RunSummary{
		RunID:        run.RunID,
		Status:       run.Status,
		Message:      run.Message,
		Games:        run.Games,
		Articles:     run.Articles,
		ArticleDays:  run.ArticleDays,
		TrendDays:    run.TrendDays,
		CombinedDays: run.CombinedDays,
		FinishedAt:   run.FinishedAt.Time,
	}
	s.mu.Unlock()
	if err := s.opts.Summaries.PublishRunSummary(ctx, summary); err != nil {
		log().Warn("failed to publish run summary", "run_id", run.RunID, "err", err)
	}
}

func (s *Service) update(run *store.Run, f func(*store.Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(run)
}

func (s *Service) finish(run *store.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == run {
		s.active = nil
	}
	finished := *run
	s.history = append([]*store.Run{&finished}, s.history...)
	if len(s.history) > s.opts.HistoryLimit {
		s.history = s.history[:s.opts.HistoryLimit]
	}
}

// runTracker mirrors stage progress onto the run record
type runTracker struct {
	ctx     context.Context
	service *Service
	run     *store.Run
}

func (t *runTracker) OnRunStart(spec Spec) {}

func (t *runTracker) OnStage(name string, index int, total int) {
	msg := fmt.Sprintf("stage %d/%d: %s", index+1, total, name)
	t.service.update(t.run, func(r *store.Run) { r.Message = msg })
	if t.service.opts.Runs != nil {
		if err := t.service.opts.Runs.UpdateMessage(t.ctx, t.run.RunID, msg); err != nil {
			log().Warn("failed to update run message", "run_id", t.run.RunID, "err", err)
		}
	}
}

func (t *runTracker) OnProgress(message string, current int, total int) {}

func (t *runTracker) OnRunComplete(result *Result) {}

func (t *runTracker) OnRunError(err error) {}
