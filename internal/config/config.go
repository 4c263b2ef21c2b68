// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrReplicateTokenRequired is returned when REPLICATE_API_TOKEN is not set.
	ErrReplicateTokenRequired = errors.New("config: REPLICATE_API_TOKEN is required")
	// ErrS3BucketRequired is returned when S3_BUCKET is not set.
	ErrS3BucketRequired = errors.New("config: S3_BUCKET is required")
	// ErrCDNBaseURLRequired is returned when CDN_BASE_URL is not set.
	ErrCDNBaseURLRequired = errors.New("config: CDN_BASE_URL is required")
	// ErrAuthSecretRequired is returned when AUTH_SECRET is not set.
	ErrAuthSecretRequired = errors.New("config: AUTH_SECRET is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Replicate settings
	ReplicateAPIToken     string `env:"REPLICATE_API_TOKEN, required" json:"-"` // Masked in JSON
	ReplicateModelVersion string `env:"REPLICATE_MODEL_VERSION, default=73d2128a371922d5d1abf0712a1d974be0e4e2358cc1218e4e34714767232bac" json:"replicate_model_version"`

	// Background-removal driver settings
	BGPollInterval    time.Duration `env:"BG_POLL_INTERVAL, default=3s" json:"bg_poll_interval"`
	BGPollMaxAttempts int           `env:"BG_POLL_MAX_ATTEMPTS, default=100" json:"bg_poll_max_attempts"`
	BGSweepInterval   time.Duration `env:"BG_SWEEP_INTERVAL, default=5m" json:"bg_sweep_interval"`
	BGSweepDeadline   time.Duration `env:"BG_SWEEP_DEADLINE, default=15m" json:"bg_sweep_deadline"`

	// Storage settings
	S3Bucket           string `env:"S3_BUCKET, required" json:"s3_bucket"`
	S3Region           string `env:"S3_REGION, default=ap-southeast-2" json:"s3_region"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	CDNBaseURL         string `env:"CDN_BASE_URL, required" json:"cdn_base_url"`
	TempDir            string `env:"TEMP_DIR, default=/tmp/textbehind" json:"temp_dir"`

	// Database settings. When DATABASE_URL is empty the in-memory
	// repository is used instead of Postgres.
	DatabaseURL string `env:"DATABASE_URL" json:"-"`

	// Auth settings
	AuthSecret string `env:"AUTH_SECRET, required" json:"-"` // Masked in JSON

	// Upload limits
	MaxVideoDurationSec int   `env:"MAX_VIDEO_DURATION_SEC, default=10" json:"max_video_duration_sec"`
	MaxVideoSizeBytes   int64 `env:"MAX_VIDEO_SIZE_BYTES, default=104857600" json:"max_video_size_bytes"`

	// Keying settings
	KeyingEnabled bool   `env:"KEYING_ENABLED, default=false" json:"keying_enabled"`
	FFmpegPath    string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// DatabaseEnabled returns true if a Postgres connection string is provided.
func (c *Config) DatabaseEnabled() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "REPLICATE_API_TOKEN") {
			return nil, ErrReplicateTokenRequired
		}
		if strings.Contains(err.Error(), "S3_BUCKET") {
			return nil, ErrS3BucketRequired
		}
		if strings.Contains(err.Error(), "CDN_BASE_URL") {
			return nil, ErrCDNBaseURLRequired
		}
		if strings.Contains(err.Error(), "AUTH_SECRET") {
			return nil, ErrAuthSecretRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.ReplicateAPIToken == "" {
		return ErrReplicateTokenRequired
	}
	if c.S3Bucket == "" {
		return ErrS3BucketRequired
	}
	if c.CDNBaseURL == "" {
		return ErrCDNBaseURLRequired
	}
	if c.AuthSecret == "" {
		return ErrAuthSecretRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, ReplicateModelVersion: %s, S3Bucket: %s, S3Region: %s, CDNBaseURL: %s, TempDir: %s, DatabaseEnabled: %t, KeyingEnabled: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.ReplicateModelVersion,
		c.S3Bucket,
		c.S3Region,
		c.CDNBaseURL,
		c.TempDir,
		c.DatabaseEnabled(),
		c.KeyingEnabled,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
