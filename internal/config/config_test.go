package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.HTTPPort)
	}
	if cfg.AdminUsername != "admin" {
		t.Errorf("expected default admin username, got %q", cfg.AdminUsername)
	}
	if cfg.Enrichment.Workers != 2 || cfg.Enrichment.QueueSize != 256 {
		t.Errorf("unexpected enrichment defaults: %+v", cfg.Enrichment)
	}
	if cfg.LLM.Enabled() {
		t.Error("LLM should be disabled without an API key")
	}
	if cfg.Slack.Enabled() || cfg.Redis.Enabled() {
		t.Error("Slack and Redis should be disabled by default")
	}
	if cfg.JWTSecret == "" {
		t.Error("expected a generated JWT secret")
	}

	persisted, err := os.ReadFile(filepath.Join(dir, ".jwt_secret"))
	if err != nil {
		t.Fatalf("expected JWT secret to be persisted: %v", err)
	}
	if string(persisted) != cfg.JWTSecret {
		t.Error("persisted secret does not match loaded secret")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("HTTP_PORT", "8081")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_BASE_URL", "http://llm.local/v1/")
	t.Setenv("ENRICHMENT_WORKERS", "0")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-1")
	t.Setenv("SLACK_CHANNEL", "C123")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 8081 {
		t.Errorf("expected port 8081, got %d", cfg.HTTPPort)
	}
	if cfg.JWTSecret != "from-env" {
		t.Errorf("expected JWT secret from env, got %q", cfg.JWTSecret)
	}
	if !cfg.LLM.Enabled() {
		t.Error("LLM should be enabled with an API key")
	}
	if cfg.LLM.BaseURL != "http://llm.local/v1" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.LLM.BaseURL)
	}
	if cfg.Enrichment.Workers != 1 {
		t.Errorf("expected worker count clamped to 1, got %d", cfg.Enrichment.Workers)
	}
	if !cfg.Slack.Enabled() || !cfg.Redis.Enabled() {
		t.Error("Slack and Redis should be enabled")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anomalyd.yaml")
	content := "http_port: 9090\nlog_level: debug\njwt_secret: file-secret\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATA_DIR", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("expected port from file, got %d", cfg.HTTPPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level from file, got %q", cfg.LogLevel)
	}
	if cfg.JWTSecret != "file-secret" {
		t.Errorf("expected JWT secret from file, got %q", cfg.JWTSecret)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadOrGenerateJWTSecret_ReusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".jwt_secret")
	if err := os.WriteFile(path, []byte("existing\n"), 0600); err != nil {
		t.Fatal(err)
	}

	got, warning, err := loadOrGenerateJWTSecret(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "existing" {
		t.Errorf("expected existing secret, got %q", got)
	}
	if warning != "" {
		t.Errorf("expected no warning, got %q", warning)
	}
}

func TestLoad_UnwritableDataDirIsReported(t *testing.T) {
	// A regular file where the data directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATA_DIR", filepath.Join(blocker, "data"))
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.JWTSecret == "" {
		t.Error("expected a generated secret even when it cannot be persisted")
	}
	if len(cfg.Warnings) != 1 || !strings.Contains(cfg.Warnings[0], "will not survive a restart") {
		t.Errorf("expected one persistence warning, got %v", cfg.Warnings)
	}
}

func TestLoad_PersistedSecretHasNoWarnings(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", cfg.Warnings)
	}
}

func TestLoad_CORSAllowedOrigins(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://console.example, ,https://ops.example ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"https://console.example", "https://ops.example"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Errorf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}
