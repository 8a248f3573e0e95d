package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortuna/dubs/internal/api/rest"
	"github.com/fortuna/dubs/internal/api/websocket"
	"github.com/fortuna/dubs/internal/publisher"
	"github.com/fortuna/dubs/internal/runner"
	"github.com/fortuna/dubs/internal/scheduler"
	"github.com/fortuna/dubs/internal/service"
	"github.com/fortuna/dubs/internal/store/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves stored datasets, analyses and pipeline runs over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		slog.Info("starting", "service", serviceName, "version", serviceVersion)

		if cfg.DSN == "" {
			return errors.New("serve needs a database: set dsn in the config file or DUBS_DSN")
		}
		db, err := openDatabase(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		rc, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		if rc != nil {
			defer rc.Close()
		}

		c, err := analysisCache(rc)
		if err != nil {
			return err
		}
		days := service.NewDaysService(db, cfg.FeaturedPlayer)
		analyses := service.NewAnalysisService(days, c, service.DefaultCacheTTL)

		bgCtx, stopBackground := context.WithCancel(context.Background())
		defer stopBackground()
		hub := websocket.NewHub()
		go hub.Run(bgCtx)

		opts := runner.ServiceOptions{
			Runs:     repository.NewRunRepository(db),
			Reporter: websocket.NewReporter(hub),
			OnComplete: func(ctx context.Context, _ *runner.Result) {
				analyses.Invalidate(ctx)
			},
		}
		var daily runner.DailyPublisher
		if rc != nil {
			pub := publisher.NewRedisStreamPublisher(rc.Client())
			daily = pub
			opts.Summaries = pub
		}
		runs := runner.NewService(runner.NewRunner(runner.NewStoreSink(db), daily), opts)
		if err := runs.Start(ctx); err != nil {
			return fmt.Errorf("starting run service: %w", err)
		}

		spec, err := baseSpec(cfg)
		if err != nil {
			return err
		}
		// API runs always land in the served database
		spec.Persist = true

		server := rest.NewServer(cfg.RESTPort, rest.Dependencies{
			DB:       db,
			Days:     days,
			Analysis: analyses,
			Runs:     runs,
			BaseSpec: spec,
			RunFeed:  websocket.NewFeed(hub),
		})

		if cfg.ScheduleDaily {
			sc := scheduler.DefaultConfig()
			sc.DailyHour = cfg.DailyRunHour
			go scheduler.New(runs, spec, sc).Start(bgCtx)
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("REST API listening", "port", cfg.RESTPort)
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			slog.Info("shutting down gracefully")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("REST server: %w", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("REST server shutdown error", "err", err)
		}
		if err := runs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("run service shutdown error", "err", err)
		}
		stopBackground()

		slog.Info("stopped", "service", serviceName)
		return nil
	},
}
