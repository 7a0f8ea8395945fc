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

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.ScraperWorkers)
	assert.Equal(t, 3, cfg.ScraperRetries)
	assert.Equal(t, 2*time.Second, cfg.ScraperRetryDelay)
	assert.Equal(t, 15*time.Second, cfg.ScraperTimeout)
	assert.Equal(t, 30, cfg.HistoryMaxEntries)
	assert.Equal(t, time.Duration(0), cfg.RefreshInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SCRAPER_WORKERS", "4")
	t.Setenv("SCRAPER_TIMEOUT", "30s")
	t.Setenv("REFRESH_INTERVAL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 4, cfg.ScraperWorkers)
	assert.Equal(t, 30*time.Second, cfg.ScraperTimeout)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SCRAPER_WORKERS", "zero")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsWorkersBelowOne(t *testing.T) {
	t.Setenv("SCRAPER_WORKERS", "0")
	_, err := Load()
	require.Error(t, err)
}
