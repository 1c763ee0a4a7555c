// Package config loads and validates the service configuration from the
// environment (optionally seeded from a .env file by the entry point).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	HTTPAddr    string `validate:"required"`
	PostgresDSN string `validate:"required"`
	RedisAddr   string `validate:"required"`

	YouTubeAPIKey  string `validate:"required"`
	GeminiAPIKey   string `validate:"required"`
	GeminiModel    string
	SearchAPIKey   string `validate:"required"`
	SearchEngineID string `validate:"required"`

	// Workers is the queue consumer concurrency. The scheduling policy
	// (sibling scans, timer-ordered completion) assumes 1.
	Workers int `validate:"min=1"`

	MonthsBack        int           `validate:"min=1,max=24"`
	MaxVideosPerRun   int           `validate:"min=1,max=100"`
	TranscriptSpacing time.Duration `validate:"min=0"`
	AnalysisSpacing   time.Duration `validate:"min=0"`
	CompletionMargin  time.Duration `validate:"min=0"`

	MaxAttempts      int           `validate:"min=1"`
	RetryBackoffBase time.Duration `validate:"min=0"`
	StatusTTL        time.Duration `validate:"min=0"`
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		YouTubeAPIKey:  os.Getenv("YOUTUBE_API_KEY"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    envOr("GEMINI_MODEL", "gemini-1.5-flash"),
		SearchAPIKey:   envOr("SEARCH_API_KEY", os.Getenv("YOUTUBE_API_KEY")),
		SearchEngineID: os.Getenv("SEARCH_ENGINE_ID"),

		Workers: envIntOr("WORKERS", 1),

		MonthsBack:        envIntOr("SYNC_MONTHS_BACK", 6),
		MaxVideosPerRun:   envIntOr("MAX_VIDEOS_PER_RUN", 25),
		TranscriptSpacing: envDurationOr("TRANSCRIPT_SPACING", 5*time.Second),
		AnalysisSpacing:   envDurationOr("ANALYSIS_SPACING", 15*time.Second),
		CompletionMargin:  envDurationOr("COMPLETION_MARGIN", time.Minute),

		MaxAttempts:      envIntOr("JOB_MAX_ATTEMPTS", 3),
		RetryBackoffBase: envDurationOr("JOB_RETRY_BACKOFF", 30*time.Second),
		StatusTTL:        envDurationOr("STATUS_TTL", 24*time.Hour),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
