package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fortuna/dubs/internal/config"
	"github.com/fortuna/dubs/internal/runner"
)

const (
	serviceName    = "dubs"
	serviceVersion = "1.0.0"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:     serviceName,
	Short:   "dubs cleans and analyses game, article and search-trend data for the Warriors.",
	Version: serviceVersion,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		config.InitLogging(cfg, os.Stderr)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "dubs.json5", "path to the json5 config file")
	rootCmd.AddCommand(runCmd, serveCmd, analyzeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// baseSpec turns the loaded config into the spec every run starts from
func baseSpec(c config.Config) (runner.Spec, error) {
	spec := runner.Spec{
		DataDir:          c.DataDir,
		CleanedDir:       c.CleanedDir,
		Seasons:          c.Seasons,
		ArticleThreshold: c.ArticleThreshold,
		Featured:         c.FeaturedPlayer,
		Persist:          c.DSN != "",
		Publish:          c.RedisURL != "",
	}

	for _, bound := range []struct {
		raw string
		dst *time.Time
	}{
		{c.WindowStart, &spec.WindowStart},
		{c.WindowEnd, &spec.WindowEnd},
	} {
		if bound.raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", bound.raw)
		if err != nil {
			return spec, fmt.Errorf("invalid window date %q: %w", bound.raw, err)
		}
		*bound.dst = t
	}
	return spec, nil
}
