package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/lms-progress/internal/platform/envutil"
)

type DBConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SQLitePath string `yaml:"sqlite_path"`
}

type ProgressConfig struct {
	// UseTables turns on dual-write into the progress tables.
	UseTables bool `yaml:"use_tables"`
	// SyncEnabled gates advancing the migration chain to the next job.
	SyncEnabled bool   `yaml:"sync_enabled"`
	Timezone    string `yaml:"timezone"`
}

type MigrationConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type RunnerConfig struct {
	Kind         string        `yaml:"kind"`
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	CronSpec     string        `yaml:"cron_spec"`
	// StaleAfter fails actions left running longer than this.
	StaleAfter   time.Duration `yaml:"stale_after"`
}

type OptionsConfig struct {
	Backend string `yaml:"backend"`
}

type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
	Prefix  string `yaml:"prefix"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	LogMode     string          `yaml:"log_mode"`
	HTTPAddr    string          `yaml:"http_addr"`
	CORSOrigins []string        `yaml:"cors_origins"`
	DB          DBConfig        `yaml:"db"`
	Progress    ProgressConfig  `yaml:"progress"`
	Migration   MigrationConfig `yaml:"migration"`
	Runner      RunnerConfig    `yaml:"runner"`
	Options     OptionsConfig   `yaml:"options"`
	Redis       RedisConfig     `yaml:"redis"`
}

func Default() Config {
	return Config{
		ServiceName: "lms-progress",
		Environment: "development",
		LogMode:     "development",
		HTTPAddr:    ":8080",
		DB: DBConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			Name:       "lms_progress",
			SQLitePath: "lms_progress.db",
		},
		Progress: ProgressConfig{
			UseTables:   false,
			SyncEnabled: true,
			Timezone:    "UTC",
		},
		Migration: MigrationConfig{BatchSize: 1000},
		Runner: RunnerConfig{
			Kind:         "worker",
			Concurrency:  1,
			PollInterval: time.Second,
			CronSpec:     "@every 10s",
			StaleAfter:   5 * time.Minute,
		},
		Options: OptionsConfig{Backend: "db"},
		Redis: RedisConfig{
			Channel: "lms-progress:events",
			Prefix:  "lms-progress:option:",
		},
	}
}

// Load applies the YAML file named by LMS_PROGRESS_CONFIG over the defaults,
// then environment variables over both.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("LMS_PROGRESS_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.ServiceName = envutil.String("SERVICE_NAME", cfg.ServiceName)
	cfg.Environment = envutil.String("ENVIRONMENT", cfg.Environment)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	if raw := envutil.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		cfg.CORSOrigins = splitList(raw)
	}
	cfg.HTTPAddr = envutil.String("HTTP_ADDR", cfg.HTTPAddr)

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.Host = envutil.String("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envutil.String("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = envutil.String("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Password = envutil.String("POSTGRES_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = envutil.String("POSTGRES_NAME", cfg.DB.Name)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath)

	cfg.Progress.UseTables = envutil.Bool("PROGRESS_USE_TABLES", cfg.Progress.UseTables)
	cfg.Progress.SyncEnabled = envutil.Bool("PROGRESS_SYNC_ENABLED", cfg.Progress.SyncEnabled)
	cfg.Progress.Timezone = envutil.String("SITE_TIMEZONE", cfg.Progress.Timezone)

	cfg.Migration.BatchSize = envutil.Int("MIGRATION_BATCH_SIZE", cfg.Migration.BatchSize)

	cfg.Runner.Kind = envutil.String("ACTION_RUNNER", cfg.Runner.Kind)
	cfg.Runner.Concurrency = envutil.Int("WORKER_CONCURRENCY", cfg.Runner.Concurrency)
	cfg.Runner.PollInterval = envutil.Millis("WORKER_POLL_INTERVAL_MS", cfg.Runner.PollInterval)
	cfg.Runner.CronSpec = envutil.String("CRON_SPEC", cfg.Runner.CronSpec)
	cfg.Runner.StaleAfter = envutil.Seconds("ACTION_STALE_AFTER_SECONDS", cfg.Runner.StaleAfter)

	cfg.Options.Backend = envutil.String("OPTIONS_BACKEND", cfg.Options.Backend)
	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)
	cfg.Redis.Prefix = envutil.String("REDIS_OPTION_PREFIX", cfg.Redis.Prefix)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DB.Driver)
	}
	switch c.Runner.Kind {
	case "worker", "cron", "temporal":
	default:
		return fmt.Errorf("unknown ACTION_RUNNER %q", c.Runner.Kind)
	}
	switch c.Options.Backend {
	case "db":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("OPTIONS_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown OPTIONS_BACKEND %q", c.Options.Backend)
	}
	if c.Migration.BatchSize <= 0 {
		return fmt.Errorf("MIGRATION_BATCH_SIZE must be positive, got %d", c.Migration.BatchSize)
	}
	if _, err := time.LoadLocation(c.Progress.Timezone); err != nil {
		return fmt.Errorf("invalid SITE_TIMEZONE %q: %w", c.Progress.Timezone, err)
	}
	return nil
}

// Location is the site timezone; Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Progress.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
