package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host 127.0.0.1, got %s", cfg.Host)
	}
	if cfg.Port != 5055 {
		t.Errorf("Expected default port 5055, got %d", cfg.Port)
	}
	if cfg.Concurrency != 10 {
		t.Errorf("Expected default concurrency 10, got %d", cfg.Concurrency)
	}
	if cfg.NavTimeout != 30*time.Second {
		t.Errorf("Expected default nav timeout 30s, got %v", cfg.NavTimeout)
	}
	if cfg.SettleDelay != 2*time.Second {
		t.Errorf("Expected default settle delay 2s, got %v", cfg.SettleDelay)
	}
	if !cfg.GateEnabled {
		t.Error("Expected gate enabled by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("RENDER_CONCURRENCY", "4")
	t.Setenv("SETTLE_DELAY", "500ms")
	t.Setenv("GATE_ENABLED", "false")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Expected concurrency 4, got %d", cfg.Concurrency)
	}
	if cfg.SettleDelay != 500*time.Millisecond {
		t.Errorf("Expected settle delay 500ms, got %v", cfg.SettleDelay)
	}
	if cfg.GateEnabled {
		t.Error("Expected gate disabled")
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("NAV_TIMEOUT", "soon")
	t.Setenv("HEADLESS", "maybe")

	cfg := Load()

	if cfg.Port != 5055 {
		t.Errorf("Expected fallback port 5055, got %d", cfg.Port)
	}
	if cfg.NavTimeout != 30*time.Second {
		t.Errorf("Expected fallback nav timeout, got %v", cfg.NavTimeout)
	}
	if !cfg.Headless {
		t.Error("Expected fallback headless true")
	}
}

func TestValidateClampsBounds(t *testing.T) {
	cfg := Load()
	cfg.Port = 99999
	cfg.Concurrency = 1000
	cfg.NavTimeout = 10 * time.Millisecond
	cfg.SettleDelay = 10 * time.Minute
	cfg.MaxBatchSize = -1

	cfg.Validate()

	if cfg.Port != 5055 {
		t.Errorf("Expected port reset to 5055, got %d", cfg.Port)
	}
	if cfg.Concurrency != maxConcurrency {
		t.Errorf("Expected concurrency capped at %d, got %d", maxConcurrency, cfg.Concurrency)
	}
	if cfg.NavTimeout != 30*time.Second {
		t.Errorf("Expected nav timeout reset to 30s, got %v", cfg.NavTimeout)
	}
	if cfg.SettleDelay != maxSettleDelay {
		t.Errorf("Expected settle delay capped at %v, got %v", maxSettleDelay, cfg.SettleDelay)
	}
	if cfg.MaxBatchSize != 50 {
		t.Errorf("Expected max batch size reset to 50, got %d", cfg.MaxBatchSize)
	}
}

func TestValidateBrowserPathTraversal(t *testing.T) {
	cfg := Load()
	cfg.BrowserPath = "/usr/bin/../../etc/passwd"

	cfg.Validate()

	if cfg.BrowserPath != "" {
		t.Errorf("Expected traversal path cleared, got %q", cfg.BrowserPath)
	}
}

func TestValidateTranscribeRequiresKey(t *testing.T) {
	cfg := Load()
	cfg.TranscribeEnabled = true
	cfg.OpenAIAPIKey = ""

	cfg.Validate()

	if cfg.TranscribeEnabled {
		t.Error("Expected transcription disabled without an API key")
	}
}

func TestValidateHotReloadRequiresPath(t *testing.T) {
	cfg := Load()
	cfg.SanitizeRulesHotReload = true
	cfg.SanitizeRulesPath = ""

	cfg.Validate()

	if cfg.SanitizeRulesHotReload {
		t.Error("Expected hot-reload disabled without a rules path")
	}
}
