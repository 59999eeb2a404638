// Package config loads runtime configuration for wmctl from the
// environment, with typed fallbacks.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	CatalogDir   string
	ArtifactDir  string
	DetectionDir string

	DefaultAlpha     float64
	DefaultThreshold float64
	PHashMaxHamming  int

	WorkerCount int
	LogLevel    string

	URLFetchTimeout time.Duration
	URLFetchRateHz  float64

	CatalogIndexPath string
}

func Load() *Config {
	return &Config{
		CatalogDir:       envOr("WM_CATALOG_DIR", "./data/catalog"),
		ArtifactDir:      envOr("WM_ARTIFACT_DIR", "./data/artifacts"),
		DetectionDir:     envOr("WM_DETECTION_DIR", "./data/detections"),
		DefaultAlpha:     envFloat64Or("WM_DEFAULT_ALPHA", 0.6),
		DefaultThreshold: envFloat64Or("WM_DEFAULT_THRESHOLD", 0.70),
		PHashMaxHamming:  envIntOr("WM_PHASH_MAX_HAMMING", 12),
		WorkerCount:      envIntOr("WM_WORKER_COUNT", 2),
		LogLevel:         envOr("WM_LOG_LEVEL", "info"),
		URLFetchTimeout:  envDurationSecondsOr("WM_URL_FETCH_TIMEOUT_SECS", 15*time.Second),
		URLFetchRateHz:   envFloat64Or("WM_URL_FETCH_RATE_HZ", 2.0),
		CatalogIndexPath: envOr("WM_CATALOG_INDEX_PATH", "./data/catalog/index.sqlite"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat64Or(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationSecondsOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
