package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fortuna/dubs/internal/runner"
	"github.com/fortuna/dubs/internal/store"
)

func log() *slog.Logger {
	return slog.Default().With("component", "scheduler")
}

// Submitter starts a background run
type Submitter interface {
	Submit(ctx context.Context, spec runner.Spec) (*store.Run, error)
}

// Config holds scheduler configuration
type Config struct {
	// DailyHour is the local hour a run is triggered each day
	DailyHour  int
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		DailyHour:  3,
		MaxRetries: 3,
		RetryDelay: 5 * time.Minute,
	}
}

// Scheduler triggers a pipeline run once a day
type Scheduler struct {
	runs   Submitter
	spec   runner.Spec
	config Config
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

// New creates a scheduler that submits spec to runs every day
func New(runs Submitter, spec runner.Spec, config Config) *Scheduler {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	return &Scheduler{
		runs:   runs,
		spec:   spec,
		config: config,
		now:    time.Now,
		after:  time.After,
	}
}

// NextRun is the first DailyHour strictly after now
func (s *Scheduler) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.config.DailyHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start blocks, triggering runs until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	log().Info("daily runs scheduled", "hour", s.config.DailyHour)
	for {
		next := s.NextRun(s.now())
		wait := next.Sub(s.now())
		log().Info("next scheduled run", "at", next.Format("2006-01-02 15:04:05"), "in", wait.Round(time.Second))

		select {
		case <-ctx.Done():
			log().Info("scheduler stopped")
			return
		case <-s.after(wait):
			s.trigger(ctx)
		}
	}
}

// trigger submits one run, retrying while another run holds the service
func (s *Scheduler) trigger(ctx context.Context) {
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		run, err := s.runs.Submit(ctx, s.spec)
		if err == nil {
			log().Info("scheduled run submitted", "run_id", run.RunID)
			return
		}
		if !errors.Is(err, runner.ErrRunActive) {
			log().Error("scheduled run failed to start", "err", err)
			return
		}

		log().Warn("run already active", "attempt", attempt, "of", s.config.MaxRetries)
		if attempt == s.config.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-s.after(s.config.RetryDelay):
		}
	}
	log().Warn("skipping scheduled run", "retries", s.config.MaxRetries)
}
