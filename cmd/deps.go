package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mathprep/taskforge/internal/config"
	"github.com/mathprep/taskforge/internal/llm"
	"github.com/mathprep/taskforge/internal/logger"
	"github.com/mathprep/taskforge/internal/store"
	"github.com/mathprep/taskforge/internal/taskgen"
)

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.FromEnv()
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.DB.Driver = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DB.DSN = v
	}
	if v, _ := cmd.Flags().GetString("log-mode"); v != "" {
		cfg.LogMode = v
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore connects to the configured database and migrates it when
// auto-migration is on.
func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	dsn, err := cfg.DB.ResolveDSN()
	if err != nil {
		return nil, fmt.Errorf("resolve database: %w", err)
	}
	st, err := store.Open(cfg.DB.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.DB.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return st, nil
}

// newProvider builds the configured LLM provider. When the configured
// provider has no key, the first vendor key found in the environment is used.
func newProvider(ctx context.Context, cfg config.Config, st *store.Store, log *logger.Logger) (llm.Provider, error) {
	llmCfg := cfg.LLM
	if err := llmCfg.Validate(); err != nil {
		discovered, ok := llm.DiscoverConfig()
		if !ok {
			return nil, err
		}
		discovered.Retry = llmCfg.Retry
		discovered.Timeout = llmCfg.Timeout
		log.Warn("configured LLM provider unusable, using discovered key",
			"configured", llmCfg.Provider, "provider", discovered.Provider, "error", err)
		llmCfg = discovered
	}
	return llm.NewProvider(ctx, llmCfg, st.Events(), log)
}

// env bundles what most commands need.
type env struct {
	cfg   config.Config
	log   *logger.Logger
	store *store.Store
}

func (e *env) Close() {
	e.store.Close()
	e.log.Sync()
}

// setup loads config, builds the logger and opens the store.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, store: st}, nil
}

// pipeline builds the task pipeline. Without withLLM the pipeline can only
// assemble prompts and read progress.
func (e *env) pipeline(ctx context.Context, withLLM bool) (*taskgen.Pipeline, error) {
	var provider llm.Provider
	if withLLM {
		p, err := newProvider(ctx, e.cfg, e.store, e.log)
		if err != nil {
			return nil, fmt.Errorf("LLM provider: %w", err)
		}
		provider = p
	}
	return taskgen.New(e.store, provider, e.cfg.Task, e.log), nil
}
