package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NBFT_RELIABILITY", "NBFT_ORIGIN", "NBFT_QUERY_TARGET", "NBFT_QUERY_TIMEOUT",
		"NBFT_PERIOD", "NBFT_HISTORY", "NBFT_MAX_PENDING",
		"NBFT_LOG_LEVEL", "NBFT_LOG_PATH", "NBFT_LOG_MAX_SIZE_MB", "NBFT_LOG_MAX_BACKUPS",
		"NBFT_LOG_MAX_AGE_DAYS", "NBFT_LOG_COMPRESS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultReliability, cfg.Reliability)
	require.Equal(t, DefaultOrigin, cfg.Origin)
	require.Equal(t, DefaultQueryTarget, cfg.QueryTarget)
	require.Equal(t, DefaultQueryTimeout, cfg.QueryTimeout)
	require.Equal(t, time.Duration(0), cfg.Period)
	require.False(t, cfg.History)
	require.Equal(t, DefaultMaxPending, cfg.MaxPending)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NBFT_RELIABILITY", "best_effort")
	t.Setenv("NBFT_ORIGIN", "remote")
	t.Setenv("NBFT_QUERY_TARGET", "all")
	t.Setenv("NBFT_QUERY_TIMEOUT", "2s")
	t.Setenv("NBFT_PERIOD", "30s")
	t.Setenv("NBFT_HISTORY", "true")
	t.Setenv("NBFT_MAX_PENDING", "16")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ReliabilityBestEffort, cfg.Reliability)
	require.Equal(t, OriginRemote, cfg.Origin)
	require.Equal(t, QueryTargetAll, cfg.QueryTarget)
	require.Equal(t, 2*time.Second, cfg.QueryTimeout)
	require.Equal(t, 30*time.Second, cfg.Period)
	require.True(t, cfg.History)
	require.Equal(t, 16, cfg.MaxPending)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("NBFT_RELIABILITY", "sometimes")
	t.Setenv("NBFT_QUERY_TIMEOUT", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "NBFT_RELIABILITY")
	require.Contains(t, err.Error(), "NBFT_QUERY_TIMEOUT")
}
