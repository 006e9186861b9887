package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LMS_PROGRESS_CONFIG", "")
	t.Setenv("DB_DRIVER", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Migration.BatchSize != 1000 {
		t.Fatalf("expected batch size 1000, got %d", cfg.Migration.BatchSize)
	}
	if cfg.Runner.CronSpec != "@every 10s" {
		t.Fatalf("unexpected cron spec %q", cfg.Runner.CronSpec)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := "db:\n  driver: sqlite\nprogress:\n  use_tables: true\nmigration:\n  batch_size: 50\nrunner:\n  poll_interval: 2s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LMS_PROGRESS_CONFIG", path)
	t.Setenv("DB_DRIVER", "")
	t.Setenv("MIGRATION_BATCH_SIZE", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Fatalf("expected sqlite from yaml, got %q", cfg.DB.Driver)
	}
	if !cfg.Progress.UseTables {
		t.Fatalf("expected use_tables from yaml")
	}
	if cfg.Migration.BatchSize != 25 {
		t.Fatalf("expected env to override batch size, got %d", cfg.Migration.BatchSize)
	}
	if cfg.Runner.PollInterval != 2*time.Second {
		t.Fatalf("expected 2s poll interval, got %s", cfg.Runner.PollInterval)
	}
}

func TestValidateRejectsUnknownRunner(t *testing.T) {
	cfg := Default()
	cfg.Runner.Kind = "at"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown runner")
	}
}

func TestValidateRedisNeedsAddr(t *testing.T) {
	cfg := Default()
	cfg.Options.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when redis addr is empty")
	}
}

func TestCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("LMS_PROGRESS_CONFIG", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %#v", cfg.CORSOrigins)
	}
	if cfg.Runner.StaleAfter != 5*time.Minute {
		t.Fatalf("expected 5m stale timeout, got %s", cfg.Runner.StaleAfter)
	}
}
