package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 100, cfg.Ledger.MaxScore)
	assert.Equal(t, 3, cfg.Ledger.ReadRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Ledger.ReadRetryDelay)
	assert.Equal(t, time.Hour, cfg.Ledger.ReconcileInterval)
	assert.Equal(t, 5*time.Minute, cfg.Leaderboard.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LEDGER_MAX_SCORE", "0")
	t.Setenv("LEDGER_RECONCILE_INTERVAL", "not-a-duration")
	t.Setenv("LEADERBOARD_CACHE_TTL", "30s")
	t.Setenv("ALLOWED_ORIGINS", " https://a.test, ,https://b.test ")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Ledger.MaxScore)
	assert.Equal(t, time.Hour, cfg.Ledger.ReconcileInterval)
	assert.Equal(t, 30*time.Second, cfg.Leaderboard.CacheTTL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 9090, cfg.Port)
}
