package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresBaseURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("API_BASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("API_BASE_URL", "https://api.example.pe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 14, cfg.TileZoomLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.ShareEnabled)
	assert.InDelta(t, 10.0, cfg.ShareMinDistance, 1e-9)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("API_BASE_URL", "https://api.example.pe")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("POLL_INTERVAL", "2s")
	t.Setenv("POLL_CONCURRENCY", "0")
	t.Setenv("SHARE_ENABLED", "true")
	t.Setenv("SHARE_MIN_DISTANCE", "25.5")
	t.Setenv("CORS_ORIGINS", "http://localhost:8081, capacitor://localhost ,")
	t.Setenv("READ_TIMEOUT", "garbage")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 1, cfg.PollConcurrency)
	assert.True(t, cfg.ShareEnabled)
	assert.InDelta(t, 25.5, cfg.ShareMinDistance, 1e-9)
	assert.Equal(t, []string{"http://localhost:8081", "capacitor://localhost"}, cfg.CORSOrigins)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
}

func TestLoadRejectsNonPositivePoll(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("API_BASE_URL", "https://api.example.pe")
	t.Setenv("POLL_INTERVAL", "-1s")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadNonPositiveIntervalsFallBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("API_BASE_URL", "https://api.example.pe")
	t.Setenv("ETA_POLL_INTERVAL", "0s")
	t.Setenv("NOTIFICATION_POLL_INTERVAL", "-5s")
	t.Setenv("CATALOG_REFRESH_INTERVAL", "0")
	t.Setenv("SHARE_REPLAY_EVERY", "-1ms")
	t.Setenv("RATE_LIMIT_WINDOW", "0s")
	t.Setenv("CORREDOR_STALE_AFTER", "-2m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.ETAPollInterval)
	assert.Equal(t, 30*time.Second, cfg.NotificationInterval)
	assert.Equal(t, 30*time.Minute, cfg.CatalogRefreshInterval)
	assert.Equal(t, time.Second, cfg.ShareReplayEvery)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 2*time.Minute, cfg.CorredorStaleAfter)
}
