// Package config provides application configuration management.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Configuration upper bounds to prevent resource exhaustion against the
// single shared browser process.
const (
	maxConcurrency = 32
	maxNavTimeout  = 5 * time.Minute
	maxSettleDelay = 30 * time.Second
)

// Config holds all application configuration.
// Configuration is loaded from environment variables at startup.
type Config struct {
	// Server settings
	Host string
	Port int

	// Browser settings
	Headless    bool
	BrowserPath string

	// Render settings
	Concurrency  int           // Max concurrently open pages per batch (wave size)
	MaxBatchSize int           // Soft limit; oversized batches warn but still run
	NavTimeout   time.Duration // Per-item navigation timeout
	SettleDelay  time.Duration // Fixed post-DOMContentLoaded hydration delay

	// Admission control
	GateEnabled bool // Reject a new batch while one is in flight

	// Logging
	LogLevel string

	// Metrics
	MetricsEnabled bool
	MetricsPort    int

	// Sanitizer rule overrides
	SanitizeRulesPath      string // Path to external rules.yaml override file
	SanitizeRulesHotReload bool   // Enable file watching for hot-reload of rules

	// Transcription sibling service
	TranscribeEnabled bool
	OpenAIAPIKey      string
	YTDLPPath         string
}

// Load loads configuration from environment variables.
// Returns a Config with values from environment or sensible defaults.
func Load() *Config {
	return &Config{
		// Server - default to localhost for security (prevents accidental exposure)
		// Set HOST=0.0.0.0 explicitly to bind to all interfaces
		Host: getEnvString("HOST", "127.0.0.1"),
		Port: getEnvInt("PORT", 5055),

		// Browser
		Headless:    getEnvBool("HEADLESS", true),
		BrowserPath: getEnvString("BROWSER_PATH", ""),

		// Render
		Concurrency:  getEnvInt("RENDER_CONCURRENCY", 10),
		MaxBatchSize: getEnvInt("MAX_BATCH_SIZE", 50),
		NavTimeout:   getEnvDuration("NAV_TIMEOUT", 30*time.Second),
		SettleDelay:  getEnvDuration("SETTLE_DELAY", 2*time.Second),

		// Admission control
		GateEnabled: getEnvBool("GATE_ENABLED", true),

		// Logging
		LogLevel: getEnvString("LOG_LEVEL", "info"),

		// Metrics
		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsPort:    getEnvInt("METRICS_PORT", 9090),

		// Sanitizer rule overrides
		SanitizeRulesPath:      getEnvString("SANITIZE_RULES_PATH", ""),
		SanitizeRulesHotReload: getEnvBool("SANITIZE_RULES_HOT_RELOAD", false),

		// Transcription
		TranscribeEnabled: getEnvBool("TRANSCRIBE_ENABLED", false),
		OpenAIAPIKey:      getEnvString("OPENAI_API_KEY", ""),
		YTDLPPath:         getEnvString("YTDLP_PATH", "yt-dlp"),
	}
}

// Validate checks configuration values and logs warnings for invalid values.
// Invalid values are corrected to sensible defaults.
func (c *Config) Validate() {
	// Port validation - allow 0 for system-assigned ports
	if c.Port < 0 || c.Port > 65535 {
		log.Warn().Int("port", c.Port).Msg("Invalid port, using default 5055")
		c.Port = 5055
	}

	// BrowserPath validation - prevent path traversal
	if c.BrowserPath != "" {
		if strings.Contains(c.BrowserPath, "..") {
			log.Error().
				Str("path", c.BrowserPath).
				Msg("BROWSER_PATH contains path traversal sequence (..), ignoring")
			c.BrowserPath = ""
		} else if !strings.HasPrefix(c.BrowserPath, "/") {
			log.Warn().
				Str("path", c.BrowserPath).
				Msg("BROWSER_PATH should be an absolute path")
		}
	}

	// Concurrency bounds. Each unit of concurrency is one open tab against
	// the shared browser process.
	if c.Concurrency < 1 {
		log.Warn().Int("concurrency", c.Concurrency).Msg("Invalid concurrency, using default 10")
		c.Concurrency = 10
	} else if c.Concurrency > maxConcurrency {
		log.Warn().
			Int("concurrency", c.Concurrency).
			Int("max", maxConcurrency).
			Msg("Concurrency too large, capping to maximum")
		c.Concurrency = maxConcurrency
	}

	// MaxBatchSize is a soft limit; it only needs to be positive.
	if c.MaxBatchSize < 1 {
		log.Warn().Int("size", c.MaxBatchSize).Msg("Invalid max batch size, using default 50")
		c.MaxBatchSize = 50
	}

	// Navigation timeout bounds
	if c.NavTimeout < time.Second {
		log.Warn().Dur("timeout", c.NavTimeout).Msg("Navigation timeout too short, using 30s")
		c.NavTimeout = 30 * time.Second
	} else if c.NavTimeout > maxNavTimeout {
		log.Warn().
			Dur("timeout", c.NavTimeout).
			Dur("max", maxNavTimeout).
			Msg("Navigation timeout too long, capping to maximum")
		c.NavTimeout = maxNavTimeout
	}

	// Settle delay bounds. Zero is valid (no hydration wait).
	if c.SettleDelay < 0 {
		log.Warn().Dur("delay", c.SettleDelay).Msg("Negative settle delay, using 2s")
		c.SettleDelay = 2 * time.Second
	} else if c.SettleDelay > maxSettleDelay {
		log.Warn().
			Dur("delay", c.SettleDelay).
			Dur("max", maxSettleDelay).
			Msg("Settle delay too long, capping to maximum")
		c.SettleDelay = maxSettleDelay
	}

	// Log level validation
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		log.Warn().Str("level", c.LogLevel).Msg("Invalid log level, using 'info'")
		c.LogLevel = "info"
	}

	// Metrics port must not collide with the main port
	if c.MetricsEnabled && c.MetricsPort == c.Port {
		log.Warn().
			Int("port", c.MetricsPort).
			Msg("METRICS_PORT conflicts with PORT, disabling metrics server")
		c.MetricsEnabled = false
	}

	// Sanitizer rules path validation
	if c.SanitizeRulesPath != "" && strings.Contains(c.SanitizeRulesPath, "..") {
		log.Error().
			Str("path", c.SanitizeRulesPath).
			Msg("SANITIZE_RULES_PATH contains path traversal sequence (..), ignoring")
		c.SanitizeRulesPath = ""
	}
	if c.SanitizeRulesHotReload && c.SanitizeRulesPath == "" {
		log.Warn().Msg("SANITIZE_RULES_HOT_RELOAD enabled but SANITIZE_RULES_PATH not set - hot-reload disabled")
		c.SanitizeRulesHotReload = false
	}

	// Transcription requires an API key for the Whisper fallback
	if c.TranscribeEnabled && c.OpenAIAPIKey == "" {
		log.Warn().Msg("TRANSCRIBE_ENABLED is true but OPENAI_API_KEY is empty - transcription disabled")
		c.TranscribeEnabled = false
	}
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.ParseInt(value, 10, 32)
		if err == nil {
			return int(intValue)
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Bool("default", defaultValue).
			Msg("Invalid boolean in environment variable, using default")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			if duration >= 0 {
				return duration
			}
			log.Warn().
				Str("key", key).
				Str("value", value).
				Dur("default", defaultValue).
				Msg("Duration must not be negative, using default")
			return defaultValue
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Dur("default", defaultValue).
			Msg("Invalid duration in environment variable, using default")
	}
	return defaultValue
}
