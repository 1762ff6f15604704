package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for sise-engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables override YAML values. Secrets (the
// database password) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Database DatabaseConfig `yaml:"database"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"sise"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"sise_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`

	// Pool recycling. Lifetime caps how long any connection lives; idle time
	// shrinks the pool between scheduled runs.
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"PGMAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"PGMAX_CONN_IDLE_TIME" env-default:"30m"`
}

// URL builds a pgx-compatible connection string.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// PipelineConfig holds rebuild and aggregation settings.
type PipelineConfig struct {
	// Workers bounds the category-sharded worker pool for the resolve phase.
	Workers int `yaml:"workers" env:"PIPELINE_WORKERS" env-default:"4"`

	// Bucket is the time-bucket granularity: "day" or "week".
	Bucket string `yaml:"bucket" env:"PIPELINE_BUCKET" env-default:"day"`

	// Timezone decides bucket boundaries (listings and buyers are local).
	Timezone string `yaml:"timezone" env:"PIPELINE_TIMEZONE" env-default:"Asia/Seoul"`

	// MaterializeRollups writes district- and province-level stats rows in
	// addition to leaf and national rows. When false, only leaf and national
	// rows are stored and intermediate levels are left to query-time sums.
	MaterializeRollups bool `yaml:"materialize_rollups" env:"PIPELINE_MATERIALIZE_ROLLUPS" env-default:"true"`

	// TrendWindow is how many buckets a trend report covers by default.
	TrendWindow int `yaml:"trend_window" env:"PIPELINE_TREND_WINDOW" env-default:"4"`
}

// Location resolves the configured timezone.
func (c *PipelineConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ScheduleConfig holds the periodic-run settings used by the -schedule flag.
type ScheduleConfig struct {
	// Cron is a standard 5-field cron expression evaluated in the pipeline
	// timezone. Default: daily at 03:00, after the overnight crawl.
	Cron string `yaml:"cron" env:"SCHEDULE_CRON" env-default:"0 3 * * *"`
	// Mode is the run mode scheduled runs use.
	Mode string `yaml:"mode" env:"SCHEDULE_MODE" env-default:"incremental"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. A missing config.yaml is not an error; the environment alone is
// enough to run. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); os.IsNotExist(err) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	} else {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pipeline.Bucket != "day" && c.Pipeline.Bucket != "week" {
		return fmt.Errorf("pipeline.bucket must be \"day\" or \"week\", got %q", c.Pipeline.Bucket)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if _, err := c.Pipeline.Location(); err != nil {
		return err
	}
	return nil
}
