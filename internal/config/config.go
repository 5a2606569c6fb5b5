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

	"github.com/avalign/avalign-api/internal/align"
)

// Static errors for configuration validation.
var (
	// ErrInvalidStrategy is returned when DEFAULT_STRATEGY is not a known
	// padding strategy.
	ErrInvalidStrategy = errors.New("config: DEFAULT_STRATEGY must be \"simple\" or \"chunked\"")
	// ErrInvalidThreshold is returned when SILENCE_THRESH_DB is not negative.
	ErrInvalidThreshold = errors.New("config: SILENCE_THRESH_DB must be negative (dBFS)")
	// ErrInvalidEpsilon is returned when DURATION_EPSILON_SEC is not positive.
	ErrInvalidEpsilon = errors.New("config: DURATION_EPSILON_SEC must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Media engine settings
	FFmpegPath  string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	FFprobePath string `env:"FFPROBE_PATH" json:"ffprobe_path,omitempty"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/avalign" json:"temp_dir"`

	// Alignment settings
	DefaultStrategy       string  `env:"DEFAULT_STRATEGY, default=chunked" json:"default_strategy"`
	SilenceThreshDB       float64 `env:"SILENCE_THRESH_DB, default=-40" json:"silence_thresh_db"`
	MinSilenceSec         float64 `env:"MIN_SILENCE_SEC, default=0.5" json:"min_silence_sec"`
	MaxGapSilenceSec      float64 `env:"MAX_GAP_SILENCE_SEC, default=5" json:"max_gap_silence_sec"`
	DurationEpsilonSec    float64 `env:"DURATION_EPSILON_SEC, default=0.1" json:"duration_epsilon_sec"`
	MaxConcurrentSegments int     `env:"MAX_CONCURRENT_SEGMENTS, default=3" json:"max_concurrent_segments"`
	RunTimeoutSec         int     `env:"RUN_TIMEOUT_SEC, default=0" json:"run_timeout_sec"` // 0 = no timeout

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Strategy returns the configured default padding strategy.
func (c *Config) Strategy() align.Strategy {
	return align.Strategy(strings.ToLower(c.DefaultStrategy))
}

// AlignOptions returns the alignment decision options derived from config.
func (c *Config) AlignOptions() align.Options {
	return align.Options{
		Strategy:         c.Strategy(),
		EpsilonSec:       c.DurationEpsilonSec,
		MaxGapSilenceSec: c.MaxGapSilenceSec,
	}
}

// RunTimeout returns the per-run timeout, zero meaning none.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSec) * time.Second
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if !c.Strategy().IsValid() {
		return ErrInvalidStrategy
	}
	if c.SilenceThreshDB >= 0 {
		return ErrInvalidThreshold
	}
	if c.DurationEpsilonSec <= 0 {
		return ErrInvalidEpsilon
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

// String returns a string representation of the config with sensitive
// values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, DefaultStrategy: %s, SilenceThreshDB: %g, MinSilenceSec: %g, MaxGapSilenceSec: %g, MaxConcurrentSegments: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.DefaultStrategy,
		c.SilenceThreshDB,
		c.MinSilenceSec,
		c.MaxGapSilenceSec,
		c.MaxConcurrentSegments,
		c.S3Bucket,
		c.S3Region,
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
