package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CASESTAR_API_URL", "")
	t.Setenv("PIPELINE_READING_DELAY_MS", "")
	t.Setenv("PIPELINE_COMPLETE_RESET_MS", "")
	t.Setenv("SETTINGS_BACKEND", "")
	t.Setenv("BACKEND_RETRY_MAX_ATTEMPTS", "")
	t.Setenv("CASESTAR_API_TIMEOUT_SECONDS", "")

	cfg := Load()
	if cfg.BackendURL != "http://localhost:8000" {
		t.Fatalf("expected default backend url, got %q", cfg.BackendURL)
	}
	if cfg.ReadingDelay() != 500*time.Millisecond {
		t.Fatalf("expected 500ms reading delay, got %v", cfg.ReadingDelay())
	}
	if cfg.CompleteResetDelay() != 3*time.Second {
		t.Fatalf("expected 3s reset delay, got %v", cfg.CompleteResetDelay())
	}
	if cfg.SettingsBackend != "fs" {
		t.Fatalf("expected fs settings backend, got %q", cfg.SettingsBackend)
	}
	if cfg.BackendRetryMaxAttempts != 1 {
		t.Fatalf("expected backend calls not retried by default, got %d", cfg.BackendRetryMaxAttempts)
	}
	if cfg.BackendTimeout() != 0 {
		t.Fatalf("expected no backend timeout by default, got %v", cfg.BackendTimeout())
	}
}

func TestBackendTimeoutIsOptIn(t *testing.T) {
	t.Setenv("CASESTAR_API_TIMEOUT_SECONDS", "90")
	if got := Load().BackendTimeout(); got != 90*time.Second {
		t.Fatalf("expected 90s backend timeout, got %v", got)
	}
	if got := (Config{BackendTimeoutSeconds: -5}).BackendTimeout(); got != 0 {
		t.Fatalf("expected negative timeout treated as none, got %v", got)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CASESTAR_API_URL", "https://casestar.example.com/")
	t.Setenv("SETTINGS_BACKEND", "Postgres")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("PIPELINE_READING_DELAY_MS", "not-a-number")

	cfg := Load()
	if cfg.BackendURL != "https://casestar.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BackendURL)
	}
	if cfg.SettingsBackend != "postgres" {
		t.Fatalf("expected lowercased backend, got %q", cfg.SettingsBackend)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if !cfg.NATSEnabled {
		t.Fatalf("expected nats enabled")
	}
	if cfg.PipelineReadingDelayMS != 500 {
		t.Fatalf("expected invalid value to fall back, got %d", cfg.PipelineReadingDelayMS)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CASESTAR_TEST_FROM_FILE=file\nCASESTAR_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CASESTAR_TEST_PRESET", "process")
	t.Setenv("CASESTAR_TEST_FROM_FILE", "")
	_ = os.Unsetenv("CASESTAR_TEST_FROM_FILE")

	LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))

	if got := os.Getenv("CASESTAR_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("expected value loaded from file, got %q", got)
	}
	if got := os.Getenv("CASESTAR_TEST_PRESET"); got != "process" {
		t.Fatalf("expected process value kept, got %q", got)
	}
}
