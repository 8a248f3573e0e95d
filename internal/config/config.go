package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"

	"github.com/fortuna/dubs/internal/roster"
)

// Config holds everything a pipeline run or the API server needs
type Config struct {
	DSN        string `json:"dsn"`
	RedisURL   string `json:"redis_url"`
	RESTPort   string `json:"rest_port"`
	LogLevel   string `json:"log_level"`
	LogFormat  string `json:"log_format"`
	DataDir    string `json:"data_dir"`
	// CleanedDir defaults to <DataDir>/cleaned when empty
	CleanedDir string `json:"cleaned_dir"`

	Seasons          []int  `json:"seasons"`
	ArticleThreshold int    `json:"article_threshold"`
	FeaturedPlayer   string `json:"featured_player"`
	// WindowStart/WindowEnd override the season-derived window (YYYY-MM-DD)
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`

	// ScheduleDaily makes serve trigger a run every day at DailyRunHour
	ScheduleDaily bool `json:"schedule_daily"`
	DailyRunHour  int  `json:"daily_run_hour"`
}

// Default points at the ../data layout the collectors write to
func Default() Config {
	return Config{
		DSN:              "",
		RedisURL:         "",
		RESTPort:         "8080",
		LogLevel:         "info",
		LogFormat:        "text",
		DataDir:          "../data",
		Seasons:          append([]int(nil), roster.ScrapeSeasons...),
		ArticleThreshold: 1000,
		FeaturedPlayer:   "Curry",
		DailyRunHour:     3,
	}
}

// explicit holds settings whose zero value is meaningful. mergo skips zero
// values, so these are decoded separately and applied after merging.
type explicit struct {
	ArticleThreshold *int  `json:"article_threshold"`
	ScheduleDaily    *bool `json:"schedule_daily"`
	DailyRunHour     *int  `json:"daily_run_hour"`
}

func (e *explicit) overlay(o explicit) {
	if o.ArticleThreshold != nil {
		e.ArticleThreshold = o.ArticleThreshold
	}
	if o.ScheduleDaily != nil {
		e.ScheduleDaily = o.ScheduleDaily
	}
	if o.DailyRunHour != nil {
		e.DailyRunHour = o.DailyRunHour
	}
}

func (e explicit) apply(cfg *Config) {
	if e.ArticleThreshold != nil {
		cfg.ArticleThreshold = *e.ArticleThreshold
	}
	if e.ScheduleDaily != nil {
		cfg.ScheduleDaily = *e.ScheduleDaily
	}
	if e.DailyRunHour != nil {
		cfg.DailyRunHour = *e.DailyRunHour
	}
}

func decode(path string, content []byte) (Config, explicit, error) {
	var cfg Config
	var ex explicit
	if err := json5.Unmarshal(content, &cfg); err != nil {
		return cfg, ex, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := json5.Unmarshal(content, &ex); err != nil {
		return cfg, ex, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, ex, nil
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

// readFile merges <name>.<ext> with <name>.local.<ext>; the local file wins.
// Returns os.ErrNotExist when neither exists.
func readFile(name string) (Config, explicit, error) {
	var out Config
	var ex explicit
	found := false

	content, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, ex, err
	}
	if len(content) > 0 {
		if out, ex, err = decode(name, content); err != nil {
			return out, ex, err
		}
		found = true
	}

	prefix, ext := splitExt(name)
	localPath := fmt.Sprintf("%s.local.%s", prefix, ext)
	local, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, ex, err
	}
	if len(local) > 0 {
		override, localEx, err := decode(localPath, local)
		if err != nil {
			return out, ex, err
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, ex, err
		}
		ex.overlay(localEx)
		slog.Info("merging config with local overrides", "local", localPath)
		found = true
	}

	if !found {
		return out, ex, os.ErrNotExist
	}
	return out, ex, nil
}

// Load builds the configuration from defaults, the optional json5 file at path
// (plus its .local override), a .env file next to the working directory and
// finally environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		fileCfg, ex, err := readFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("config file not found, using defaults", "path", path)
		case err != nil:
			return cfg, err
		default:
			if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
				return cfg, fmt.Errorf("merging config: %w", err)
			}
			ex.apply(&cfg)
		}
	}

	// .env is optional
	_ = godotenv.Load(".env")

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"DUBS_DSN":        &cfg.DSN,
		"REDIS_URL":       &cfg.RedisURL,
		"REST_PORT":       &cfg.RESTPort,
		"LOG_LEVEL":       &cfg.LogLevel,
		"LOG_FORMAT":      &cfg.LogFormat,
		"DATA_DIR":        &cfg.DataDir,
		"CLEANED_DIR":     &cfg.CleanedDir,
		"FEATURED_PLAYER": &cfg.FeaturedPlayer,
	}
	for key, dst := range strs {
		if value := os.Getenv(key); value != "" {
			*dst = value
		}
	}

	if value := os.Getenv("ARTICLE_THRESHOLD"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid ARTICLE_THRESHOLD %q: %w", value, err)
		}
		cfg.ArticleThreshold = n
	}

	if value := os.Getenv("SCHEDULE_DAILY"); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SCHEDULE_DAILY %q: %w", value, err)
		}
		cfg.ScheduleDaily = b
	}

	if value := os.Getenv("DAILY_RUN_HOUR"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 23 {
			return fmt.Errorf("invalid DAILY_RUN_HOUR %q: want 0-23", value)
		}
		cfg.DailyRunHour = n
	}
	return nil
}
