package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WolverineBrief/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: postgres://file@localhost/brief
digest:
  title: Test Brief
  timezone: UTC
collector:
  concurrency: 2
sources:
  - id: council-feed
    kind: feed
    url: https://example.org/council.rss
    category: civic
    timeout: 15s
    geo:
      keywords: [Weston]
`)
	t.Setenv(configPathEnv, path)
	t.Setenv(envFileEnv, filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv(databaseDSNEnv, "postgres://env@localhost/brief")
	t.Setenv(daysBackEnv, "14")
	t.Setenv(councilNoteEnv, "Council met on Tuesday.")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://env@localhost/brief", cfg.Database.DSN)
	assert.Equal(t, "raw_items", cfg.Database.Table)
	assert.Equal(t, "Test Brief", cfg.Digest.Title)
	assert.Equal(t, time.UTC.String(), cfg.Digest.Location().String())
	assert.Equal(t, 14, cfg.Collector.LookbackDays)
	assert.Equal(t, 2, cfg.Collector.Concurrency)
	assert.Equal(t, "Council met on Tuesday.", cfg.Digest.CouncilNote)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "council-feed", cfg.Sources[0].ID)
	assert.Equal(t, 15*time.Second, cfg.Sources[0].Timeout)
	assert.Equal(t, []string{"Weston"}, cfg.Sources[0].Geo.Keywords)
}

func TestLoadRejectsBadDaysBack(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(envFileEnv, filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv(daysBackEnv, "soon")

	_, err := Load()

	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, daysBackEnv, cfgErr.Key)
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "nope.yaml"))
	t.Setenv(envFileEnv, filepath.Join(t.TempDir(), "missing.env"))

	_, err := Load()

	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}

func TestValidateStages(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(cfg.Validate(StageCollect), &cfgErr))
	assert.Equal(t, databaseDSNEnv, cfgErr.Key)

	cfg.Database.DSN = "postgres://localhost/brief"
	require.NoError(t, cfg.Validate(StageCollect))
	require.NoError(t, cfg.Validate(StageCompose))

	require.Error(t, cfg.Validate(StageDistribute))
	cfg.Supabase.URL = "https://project.supabase.co"
	cfg.Supabase.ServiceKey = "service"
	cfg.Email.APIKey = "brevo"
	require.NoError(t, cfg.Validate(StageDistribute))

	cfg.Sources = append(cfg.Sources, cfg.Sources[0])
	require.Error(t, cfg.Validate(StageCollect))

	cfg.Sources = []SourceConfig{{ID: "x", Kind: "feed", URL: "https://example.org", Category: "weather"}}
	require.True(t, errors.As(cfg.Validate(StageCollect), &cfgErr))
	assert.Equal(t, "sources[0].category", cfgErr.Key)
}

func TestMergeSupabaseOrder(t *testing.T) {
	t.Parallel()

	base := defaultConfig()
	assert.Equal(t, "email", base.Supabase.OrderBy)

	merged := mergeConfig(base, Config{Supabase: SupabaseConfig{OrderBy: "created_at"}})
	assert.Equal(t, "created_at", merged.Supabase.OrderBy)
	assert.Equal(t, "subscribers", merged.Supabase.Table)
}
