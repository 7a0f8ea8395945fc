package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Port        string
	Host        string

	DataDir  string
	CacheDir string

	ScraperWorkers    int
	ScraperRetries    int
	ScraperRetryDelay time.Duration
	ScraperTimeout    time.Duration
	ScraperUserAgent  string
	AcceptLanguage    string

	ImageTimeout time.Duration

	HistoryMaxEntries int

	RefreshInterval time.Duration // 0 disables periodic refresh

	CORSOrigins string
}

func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Environment:      getEnv("ENVIRONMENT", "development"),
		Port:             getEnv("PORT", "8080"),
		Host:             getEnv("HOST", "0.0.0.0"),
		DataDir:          getEnv("DATA_DIR", "./data"),
		CacheDir:         getEnv("CACHE_DIR", "./image_cache"),
		ScraperUserAgent: getEnv("SCRAPER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
		AcceptLanguage:   getEnv("SCRAPER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
		CORSOrigins:      getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"),
	}

	var err error
	if cfg.ScraperWorkers, err = getEnvInt("SCRAPER_WORKERS", 10); err != nil {
		return nil, err
	}
	if cfg.ScraperRetries, err = getEnvInt("SCRAPER_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.HistoryMaxEntries, err = getEnvInt("HISTORY_MAX_ENTRIES", 30); err != nil {
		return nil, err
	}

	if cfg.ScraperRetryDelay, err = getEnvDuration("SCRAPER_RETRY_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.ScraperTimeout, err = getEnvDuration("SCRAPER_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ImageTimeout, err = getEnvDuration("IMAGE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getEnvDuration("REFRESH_INTERVAL", 0); err != nil {
		return nil, err
	}

	if cfg.ScraperWorkers < 1 {
		return nil, fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}
	if cfg.HistoryMaxEntries < 1 {
		return nil, fmt.Errorf("HISTORY_MAX_ENTRIES must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
