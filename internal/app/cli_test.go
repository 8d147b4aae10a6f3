package app

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-momentum-lab/internal/config"
	"equity-momentum-lab/internal/domain"
)

func TestFlags_OverrideConfig(t *testing.T) {
	t.Setenv(config.FileEnv, "")
	t.Setenv("MOMENTUM_STORAGE_BACKEND", "postgres")
	t.Setenv("MOMENTUM_STORAGE_POSTGRES_DSN", "postgres://env/db")

	cmd := &cobra.Command{Use: "test"}
	var f Flags
	f.Register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--backend", "sqlite", "--sqlite-path", ":memory:", "--log-format", "json"}))

	cfg, _, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, ":memory:", cfg.Storage.SQLitePath)
	assert.Equal(t, "postgres://env/db", cfg.Storage.PostgresDSN, "unset flags keep env values")
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestFlags_InvalidAfterOverride(t *testing.T) {
	t.Setenv(config.FileEnv, "")

	cmd := &cobra.Command{Use: "test"}
	var f Flags
	f.Register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--backend", "postgres"}))

	_, _, err := f.Load()
	assert.Error(t, err)
}

func TestStrategyFlags_Request(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	var s StrategyFlags
	s.Register(cmd.Flags())
	require.NoError(t, cmd.ParseFlags([]string{"--mom-win", "30", "--start", "2024-01-02"}))

	defaults := domain.DefaultStrategyParams()
	defaults.TCBps = 3

	req, err := s.Request(cmd.Flags(), defaults)
	require.NoError(t, err)
	assert.Equal(t, 30, req.MomWin)
	assert.Equal(t, 3.0, req.TCBps, "unset flags take configured defaults")
	assert.Equal(t, domain.DefaultGap, req.Gap)
	require.NotNil(t, req.Start)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), *req.Start)
	assert.Nil(t, req.End)
}

func TestStrategyFlags_BadDate(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	var s StrategyFlags
	s.Register(cmd.Flags())
	require.NoError(t, cmd.ParseFlags([]string{"--end", "2024/13/01"}))

	_, err := s.Request(cmd.Flags(), domain.DefaultStrategyParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--end")
}
