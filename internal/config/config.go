// Package config gathers the service configuration from TASKFORGE_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mathprep/taskforge/internal/llm"
	"github.com/mathprep/taskforge/internal/store"
	"github.com/mathprep/taskforge/internal/taskgen"
)

// Config is the complete service configuration.
type Config struct {
	// LogMode selects the log encoder: "dev" or "prod".
	LogMode string

	DB   DBConfig
	HTTP HTTPConfig
	LLM  llm.Config
	Task taskgen.Config
}

// DBConfig selects the database.
type DBConfig struct {
	Driver string
	// DSN is a file path or URI for sqlite, a connection URL for postgres.
	// Empty selects the default local SQLite file.
	DSN string
	// AutoMigrate creates missing tables on startup.
	AutoMigrate bool
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		LogMode: "dev",
		DB: DBConfig{
			Driver:      store.DriverSQLite,
			AutoMigrate: true,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		LLM:  llm.DefaultConfig(),
		Task: taskgen.DefaultConfig(),
	}
}

// FromEnv builds a Config from the environment on top of Default.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("TASKFORGE_LOG_MODE"); v != "" {
		cfg.LogMode = v
	}

	if v := os.Getenv("TASKFORGE_DB_DRIVER"); v != "" {
		cfg.DB.Driver = strings.ToLower(v)
	}
	cfg.DB.DSN = firstEnv("TASKFORGE_DB_DSN", "TASKFORGE_DB")
	if cfg.DB.Driver == store.DriverPostgres {
		// Hosted databases are migrated out of band unless asked.
		cfg.DB.AutoMigrate = false
	}
	envBool("TASKFORGE_DB_AUTO_MIGRATE", &cfg.DB.AutoMigrate)

	if v := os.Getenv("TASKFORGE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	} else if port := os.Getenv("PORT"); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	envDuration("TASKFORGE_HTTP_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)

	cfg.LLM = llm.ConfigFromEnv()

	envFloat("TASKFORGE_TASK_TEMPERATURE", &cfg.Task.Temperature)
	envInt("TASKFORGE_TASK_MAX_TOKENS", &cfg.Task.MaxTokens)
	envBool("TASKFORGE_TASK_CAPTURE_SNAPSHOT", &cfg.Task.CaptureSnapshot)
	envBool("TASKFORGE_TASK_STRUCTURED", &cfg.Task.Structured)
	envInt("TASKFORGE_TASK_DIFF_LIMIT", &cfg.Task.DiffLimit)

	envInt("TASKFORGE_PROMPT_MAX_PROGRESS", &cfg.Task.Prompt.MaxProgressEntries)
	envInt("TASKFORGE_PROMPT_MAX_FAILED_TOPICS", &cfg.Task.Prompt.MaxFailedTopics)
	envInt("TASKFORGE_PROMPT_MAX_DIFF", &cfg.Task.Prompt.MaxDiffEntries)
	envInt("TASKFORGE_PROMPT_MAX_HOMEWORK", &cfg.Task.Prompt.MaxHomeworkItems)
	envInt("TASKFORGE_PROMPT_DEFAULT_WORDS", &cfg.Task.Prompt.DefaultWords)

	envDuration("TASKFORGE_PROGRESS_HALF_LIFE", &cfg.Task.Progress.HalfLife)
	envFloat("TASKFORGE_PROGRESS_MASTERY_THRESHOLD", &cfg.Task.Progress.MasteryThreshold)
	envInt("TASKFORGE_PROGRESS_MIN_ATTEMPTS", &cfg.Task.Progress.MinAttempts)

	return cfg
}

// Validate checks everything except the LLM credentials, which only the
// commands that call the LLM require.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver %q (want %q or %q)", c.DB.Driver, store.DriverSQLite, store.DriverPostgres)
	}
	if c.DB.Driver == store.DriverPostgres && c.DB.DSN == "" {
		return fmt.Errorf("TASKFORGE_DB_DSN is required for the postgres driver")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http address must not be empty")
	}
	if c.Task.Temperature < 0 || c.Task.Temperature > 2 {
		return fmt.Errorf("task temperature must be within [0, 2], got %g", c.Task.Temperature)
	}
	if c.Task.MaxTokens <= 0 {
		return fmt.Errorf("task max tokens must be positive, got %d", c.Task.MaxTokens)
	}
	if c.Task.DiffLimit < 0 {
		return fmt.Errorf("diff limit must not be negative")
	}
	p := c.Task.Progress
	if p.HalfLife < 0 {
		return fmt.Errorf("progress half-life must not be negative")
	}
	if p.MasteryThreshold <= 0 || p.MasteryThreshold > 1 {
		return fmt.Errorf("mastery threshold must be within (0, 1], got %g", p.MasteryThreshold)
	}
	return nil
}

// ResolveDSN returns the DSN, falling back to the default SQLite file.
func (c DBConfig) ResolveDSN() (string, error) {
	if c.DSN != "" {
		if c.Driver == store.DriverSQLite && !strings.HasPrefix(c.DSN, "file:") {
			return c.DSN, store.EnsureDir(c.DSN)
		}
		return c.DSN, nil
	}
	if c.Driver == store.DriverPostgres {
		return "", fmt.Errorf("no postgres DSN configured")
	}
	return store.DefaultSQLitePath()
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
