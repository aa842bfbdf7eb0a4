package config

import (
	"os"
	"strconv"
	"time"

	"metriscope/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Analysis AnalysisConfig
	Enhancer EnhancerConfig
	Archive  ArchiveConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port          string
	MaxInputBytes int64
}

// AnalysisConfig bounds the analytics engine
type AnalysisConfig struct {
	BootstrapResamples int
	BootstrapWorkers   int
	WallClockBudget    time.Duration
	AutoTransform      bool
}

// EnhancerConfig holds the optional text-enhancement hook settings
type EnhancerConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ArchiveConfig holds the optional report archive settings
type ArchiveConfig struct {
	DSN string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnvOrDefault("PORT", "8080"),
			MaxInputBytes: getEnvInt64OrDefault("MAX_INPUT_BYTES", 25<<20),
		},
		Analysis: AnalysisConfig{
			BootstrapResamples: getEnvIntOrDefault("BOOTSTRAP_RESAMPLES", 1000),
			BootstrapWorkers:   getEnvIntOrDefault("BOOTSTRAP_WORKERS", 4),
			WallClockBudget:    getEnvDurationOrDefault("ANALYSIS_BUDGET", 60*time.Second),
			AutoTransform:      getEnvBoolOrDefault("AUTO_TRANSFORM", true),
		},
		Enhancer: EnhancerConfig{
			Enabled: getEnvBoolOrDefault("ENHANCER_ENABLED", false),
			BaseURL: getEnvOrDefault("ENHANCER_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  os.Getenv("ENHANCER_API_KEY"),
			Model:   getEnvOrDefault("ENHANCER_MODEL", "gpt-4o-mini"),
			Timeout: getEnvDurationOrDefault("ENHANCER_TIMEOUT", 20*time.Second),
		},
		Archive: ArchiveConfig{
			DSN: os.Getenv("ARCHIVE_DSN"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.MaxInputBytes <= 0 {
		return errors.ConfigInvalid("MAX_INPUT_BYTES must be positive")
	}
	if cfg.Analysis.BootstrapResamples < 100 {
		return errors.ConfigInvalid("BOOTSTRAP_RESAMPLES must be at least 100")
	}
	if cfg.Analysis.BootstrapWorkers < 1 {
		return errors.ConfigInvalid("BOOTSTRAP_WORKERS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
