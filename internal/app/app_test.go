package app

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WolverineBrief/internal/config"
	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/logging"
)

func TestStagesRejectMissingConfiguration(t *testing.T) {
	t.Parallel()

	application := New(config.Config{}, logging.Discard())
	ctx := context.Background()

	var cfgErr *domain.ConfigurationError

	_, err := application.RunCollect(ctx)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "DATABASE_DSN", cfgErr.Key)

	_, err = application.RunCompose(ctx, time.Time{})
	require.True(t, errors.As(err, &cfgErr))

	_, err = application.RunDistribute(ctx, true)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "SUPABASE_URL", cfgErr.Key)

	err = application.Run(ctx, time.Time{}, true)
	require.True(t, errors.As(err, &cfgErr))
}

func TestDistributeRequiresComposedArtifact(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Digest:   config.DigestConfig{OutputDir: t.TempDir(), Title: "Brief"},
		Supabase: config.SupabaseConfig{URL: "http://127.0.0.1:1", ServiceKey: "k"},
		Email:    config.EmailConfig{APIKey: "k", SenderEmail: "brief@example.org"},
	}

	_, err := New(cfg, logging.Discard()).RunDistribute(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run compose first")
}

func TestRunValidatesEveryStageBeforeNetwork(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	var connections atomic.Int32
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			connections.Add(1)
			_ = conn.Close()
		}
	}()

	cfg := config.Config{
		Database: config.DatabaseConfig{DSN: "postgres://brief@" + listener.Addr().String() + "/brief?sslmode=disable"},
		Digest:   config.DigestConfig{OutputDir: t.TempDir(), Title: "Brief"},
		Sources:  []config.SourceConfig{{ID: "news", Kind: "feed", URL: "https://example.org/feed", Category: "civic"}},
	}
	require.NoError(t, cfg.Validate(config.StageCollect))

	err = New(cfg, logging.Discard()).Run(context.Background(), time.Time{}, false)

	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "SUPABASE_URL", cfgErr.Key)
	assert.Zero(t, connections.Load(), "no connection is opened before configuration is complete")
}

func TestDigestPath(t *testing.T) {
	t.Parallel()

	application := New(config.Config{Digest: config.DigestConfig{OutputDir: "out"}}, logging.Discard())
	assert.Equal(t, filepath.Join("out", "weekly_digest.md"), application.DigestPath())
}
