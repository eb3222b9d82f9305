package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	envVars := []string{
		"SERVER_PORT", "LOG_LEVEL", "REDIS_ADDR", "HISTORY_BACKEND",
		"HISTORY_PATH", "HISTORY_NAMESPACE", "HISTORY_SEED_DEFAULTS",
		"JOBS_DISPATCHER", "JOBS_RECORDS", "JOBS_CONCURRENCY", "JOBS_TIMEOUT",
		"GENERATOR_BACKEND", "GENERATOR_INTERVAL", "GENERATOR_STEP",
		"RATELIMIT_ENABLED", "SUNO_API_KEY",
	}
	for _, k := range envVars {
		os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8000" {
		t.Errorf("Server.Port = %q, want 8000", cfg.Server.Port)
	}
	if cfg.History.Backend != "file" {
		t.Errorf("History.Backend = %q, want file", cfg.History.Backend)
	}
	if cfg.History.Namespace != "generatedMusic" {
		t.Errorf("History.Namespace = %q, want generatedMusic", cfg.History.Namespace)
	}
	if cfg.History.SeedDefaults {
		t.Error("History.SeedDefaults should default to false")
	}
	if cfg.Jobs.Dispatcher != "local" {
		t.Errorf("Jobs.Dispatcher = %q, want local", cfg.Jobs.Dispatcher)
	}
	if cfg.Jobs.Concurrency != 1 {
		t.Errorf("Jobs.Concurrency = %d, want 1", cfg.Jobs.Concurrency)
	}
	if cfg.Jobs.Timeout != 10*time.Minute {
		t.Errorf("Jobs.Timeout = %v, want 10m", cfg.Jobs.Timeout)
	}
	if cfg.Jobs.RecordTTL != 24*time.Hour {
		t.Errorf("Jobs.RecordTTL = %v, want 24h", cfg.Jobs.RecordTTL)
	}
	if cfg.Generator.Backend != "simulated" {
		t.Errorf("Generator.Backend = %q, want simulated", cfg.Generator.Backend)
	}
	if cfg.Generator.Interval != 300*time.Millisecond {
		t.Errorf("Generator.Interval = %v, want 300ms", cfg.Generator.Interval)
	}
	if cfg.Generator.Step != 10 {
		t.Errorf("Generator.Step = %d, want 10", cfg.Generator.Step)
	}
	if cfg.NeedsRedis() {
		t.Error("default config should not need Redis")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("HISTORY_BACKEND", "sqlite")
	t.Setenv("HISTORY_DSN", "/tmp/history.db")
	t.Setenv("HISTORY_SEED_DEFAULTS", "true")
	t.Setenv("JOBS_DISPATCHER", "asynq")
	t.Setenv("JOBS_CONCURRENCY", "3")
	t.Setenv("JOBS_TIMEOUT", "90s")
	t.Setenv("GENERATOR_INTERVAL", "50ms")
	t.Setenv("GENERATOR_STEP", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want env override", cfg.Server.Port)
	}
	if cfg.History.Backend != "sqlite" || cfg.History.DSN != "/tmp/history.db" {
		t.Errorf("History = %+v, want sqlite with DSN", cfg.History)
	}
	if !cfg.History.SeedDefaults {
		t.Error("History.SeedDefaults = false, want true")
	}
	if cfg.Jobs.Concurrency != 3 {
		t.Errorf("Jobs.Concurrency = %d, want 3", cfg.Jobs.Concurrency)
	}
	if cfg.Jobs.Timeout != 90*time.Second {
		t.Errorf("Jobs.Timeout = %v, want 90s", cfg.Jobs.Timeout)
	}
	if cfg.Generator.Interval != 50*time.Millisecond {
		t.Errorf("Generator.Interval = %v, want 50ms", cfg.Generator.Interval)
	}
	if cfg.Generator.Step != 25 {
		t.Errorf("Generator.Step = %d, want 25", cfg.Generator.Step)
	}
	if !cfg.NeedsRedis() {
		t.Error("asynq dispatcher should need Redis")
	}
}

func TestConcurrencyFloor(t *testing.T) {
	t.Setenv("JOBS_CONCURRENCY", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Jobs.Concurrency != 1 {
		t.Errorf("Jobs.Concurrency = %d, want floor of 1", cfg.Jobs.Concurrency)
	}
}

func TestReadSecretFromFile(t *testing.T) {
	path := t.TempDir() + "/suno_key"
	if err := os.WriteFile(path, []byte("  secret-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SUNO_API_KEY", "")
	t.Setenv("SUNO_API_KEY_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Suno.APIKey != "secret-key" {
		t.Errorf("Suno.APIKey = %q, want value from file", cfg.Suno.APIKey)
	}
}
