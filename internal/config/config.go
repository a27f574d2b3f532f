package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment with an
// optional .env file in the working directory.
type Config struct {
	DB       DBConfig
	Source   SourceConfig
	Workflow WorkflowConfig
	Log      LogConfig
	Metrics  MetricsConfig

	// Actor is recorded as UpdatedBy / CreatedBy on local writes.
	Actor string
}

type DBConfig struct {
	Path string
}

// SourceConfig selects the external system of record. URL wins over File
// when both are set; with neither, a refresh fails and only the stored
// projections can be listed.
type SourceConfig struct {
	URL       string
	File      string
	Token     string
	ReportURL string
	Timeout   time.Duration
}

type WorkflowConfig struct {
	Debounce            time.Duration
	BatchConcurrency    int
	EnforceSingleActive bool
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint.
	Addr string
}

// Load reads the configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPath := getEnv("TOURNEE_DB", "")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("finding home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".tournee", "tournee.db")
	}

	cfg := &Config{
		DB: DBConfig{Path: dbPath},
		Source: SourceConfig{
			URL:       getEnv("TOURNEE_SOURCE_URL", ""),
			File:      getEnv("TOURNEE_SOURCE_FILE", ""),
			Token:     getEnv("TOURNEE_SOURCE_TOKEN", ""),
			ReportURL: getEnv("TOURNEE_REPORT_URL", ""),
			Timeout:   getEnvAsDuration("TOURNEE_SOURCE_TIMEOUT", 15*time.Second),
		},
		Workflow: WorkflowConfig{
			Debounce:            getEnvAsDuration("TOURNEE_DEBOUNCE", 500*time.Millisecond),
			BatchConcurrency:    getEnvAsInt("TOURNEE_BATCH_CONCURRENCY", 8),
			EnforceSingleActive: getEnvAsBool("TOURNEE_ENFORCE_SINGLE_ACTIVE", true),
		},
		Log: LogConfig{
			Level:  getEnv("TOURNEE_LOG_LEVEL", "warn"),
			Format: getEnv("TOURNEE_LOG_FORMAT", "console"),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("TOURNEE_METRICS_ADDR", ""),
		},
		Actor: getEnv("TOURNEE_ACTOR", defaultActor()),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Workflow.Debounce < 0 {
		return fmt.Errorf("TOURNEE_DEBOUNCE must not be negative, got %s", c.Workflow.Debounce)
	}
	if c.Workflow.BatchConcurrency < 1 {
		return fmt.Errorf("TOURNEE_BATCH_CONCURRENCY must be at least 1, got %d", c.Workflow.BatchConcurrency)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("TOURNEE_LOG_FORMAT must be console or json, got %q", c.Log.Format)
	}
	return nil
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "tournee"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
