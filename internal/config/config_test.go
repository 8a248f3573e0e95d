package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DUBS_DSN", "")
	t.Setenv("ARTICLE_THRESHOLD", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.ArticleThreshold)
	assert.Equal(t, "Curry", cfg.FeaturedPlayer)
	assert.Equal(t, []int{2021, 2022, 2023, 2024, 2025, 2026}, cfg.Seasons)
}

func TestCleanedDirFollowsDataDir(t *testing.T) {
	assert.Empty(t, Default().CleanedDir)

	t.Setenv("DATA_DIR", "/srv/data")
	t.Setenv("CLEANED_DIR", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/data", cfg.DataDir)
	assert.Empty(t, cfg.CleanedDir, "an unset cleaned dir is derived from the data dir at run time")
}

func TestLoadFileWithLocalOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "dubs.json5")

	require.NoError(t, os.WriteFile(base, []byte(`{
		// comments are fine in json5
		data_dir: "/srv/data",
		article_threshold: 250,
		seasons: [2022, 2023],
	}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dubs.local.json5"), []byte(`{
		data_dir: "/home/me/data",
	}`), 0o600))

	t.Setenv("ARTICLE_THRESHOLD", "")
	t.Setenv("DATA_DIR", "")

	cfg, err := Load(base)
	require.NoError(t, err)
	assert.Equal(t, "/home/me/data", cfg.DataDir)
	assert.Equal(t, 250, cfg.ArticleThreshold)
	assert.Equal(t, []int{2022, 2023}, cfg.Seasons)
	assert.Equal(t, "8080", cfg.RESTPort)
}

func TestLoadFileKeepsZeroValues(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "dubs.json5")

	require.NoError(t, os.WriteFile(base, []byte(`{
		article_threshold: 0,
		daily_run_hour: 0,
		schedule_daily: true,
	}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dubs.local.json5"), []byte(`{
		schedule_daily: false,
	}`), 0o600))

	t.Setenv("ARTICLE_THRESHOLD", "")
	t.Setenv("SCHEDULE_DAILY", "")
	t.Setenv("DAILY_RUN_HOUR", "")

	cfg, err := Load(base)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.ArticleThreshold)
	assert.Equal(t, 0, cfg.DailyRunHour)
	assert.False(t, cfg.ScheduleDaily)

	// keys absent from both files keep their defaults
	require.NoError(t, os.WriteFile(base, []byte(`{ schedule_daily: true }`), 0o600))
	require.NoError(t, os.Remove(filepath.Join(dir, "dubs.local.json5")))
	cfg, err = Load(base)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.ArticleThreshold)
	assert.Equal(t, 3, cfg.DailyRunHour)
	assert.True(t, cfg.ScheduleDaily)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REST_PORT", "9999")
	t.Setenv("ARTICLE_THRESHOLD", "42")
	t.Setenv("FEATURED_PLAYER", "Thompson")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json5"))
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.RESTPort)
	assert.Equal(t, 42, cfg.ArticleThreshold)
	assert.Equal(t, "Thompson", cfg.FeaturedPlayer)
}

func TestLoadDailySchedule(t *testing.T) {
	t.Setenv("SCHEDULE_DAILY", "true")
	t.Setenv("DAILY_RUN_HOUR", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.ScheduleDaily)
	assert.Equal(t, 0, cfg.DailyRunHour)

	t.Setenv("DAILY_RUN_HOUR", "25")
	_, err = Load("")
	require.Error(t, err)
}

func TestLoadBadThreshold(t *testing.T) {
	t.Setenv("ARTICLE_THRESHOLD", "lots")
	_, err := Load("")
	require.Error(t, err)
}

func TestInitLogging(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger := InitLogging(Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "component", "test")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"component":"test"`)
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
