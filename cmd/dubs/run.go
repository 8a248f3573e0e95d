package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/fortuna/dubs/internal/publisher"
	"github.com/fortuna/dubs/internal/runner"
	"github.com/fortuna/dubs/internal/store/repository"
)

var runFlags struct {
	dryRun      bool
	noPersist   bool
	noPublish   bool
	featured    string
	windowStart string
	windowEnd   string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cleans the raw data files, writes the cleaned tables and optionally stores and streams them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runFlags.featured != "" {
			cfg.FeaturedPlayer = runFlags.featured
		}
		if runFlags.windowStart != "" {
			cfg.WindowStart = runFlags.windowStart
		}
		if runFlags.windowEnd != "" {
			cfg.WindowEnd = runFlags.windowEnd
		}
		spec, err := baseSpec(cfg)
		if err != nil {
			return err
		}
		spec.DryRun = runFlags.dryRun
		spec.Persist = spec.Persist && !runFlags.noPersist
		spec.Publish = spec.Publish && !runFlags.noPublish

		var (
			sink runner.Sink
			opts runner.ServiceOptions
			pub  *publisher.RedisStreamPublisher
		)
		if spec.Persist && !spec.DryRun {
			db, err := openDatabase(ctx, cfg.DSN)
			if err != nil {
				return err
			}
			defer db.Close()
			sink = runner.NewStoreSink(db)
			opts.Runs = repository.NewRunRepository(db)
		}
		if spec.Publish && !spec.DryRun {
			rc, err := openRedis(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rc.Close()
			pub = publisher.NewRedisStreamPublisher(rc.Client())
			opts.Summaries = pub
		}

		// a nil *RedisStreamPublisher must not become a non-nil interface
		var daily runner.DailyPublisher
		if pub != nil {
			daily = pub
		}

		svc := runner.NewService(runner.NewRunner(sink, daily), opts)
		if err := svc.Start(ctx); err != nil {
			return err
		}

		result, err := svc.Execute(ctx, spec, &consoleReporter{})
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "build every table without writing, storing or publishing")
	f.BoolVar(&runFlags.noPersist, "no-persist", false, "skip storing cleaned tables even when a database is configured")
	f.BoolVar(&runFlags.noPublish, "no-publish", false, "skip streaming combined days even when redis is configured")
	f.StringVar(&runFlags.featured, "featured", "", "player whose points are tracked (default from config)")
	f.StringVar(&runFlags.windowStart, "window-start", "", "first analysed day, YYYY-MM-DD")
	f.StringVar(&runFlags.windowEnd, "window-end", "", "last analysed day, YYYY-MM-DD")
}

// consoleReporter prints stage transitions as the run progresses
type consoleReporter struct {
	started time.Time
}

func (c *consoleReporter) OnRunStart(spec runner.Spec) {
	c.started = time.Now()
	mode := "full run"
	if spec.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(os.Stderr, "Starting %s over %s\n", mode, spec.DataDir)
}

func (c *consoleReporter) OnStage(name string, index int, total int) {
	fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", index+1, total, name)
}

func (c *consoleReporter) OnProgress(message string, current int, total int) {
	fmt.Fprintf(os.Stderr, "      %s\n", message)
}

func (c *consoleReporter) OnRunComplete(result *runner.Result) {
	fmt.Fprintf(os.Stderr, "Finished in %s\n", time.Since(c.started).Round(time.Millisecond))
}

func (c *consoleReporter) OnRunError(err error) {
	fmt.Fprintf(os.Stderr, "Run failed after %s: %v\n", humanize.RelTime(c.started, time.Now(), "", ""), err)
}
