package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/morganross/FilePromptForge/internal/config"
	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/grounding"
	"github.com/morganross/FilePromptForge/internal/pricing"
	"github.com/morganross/FilePromptForge/internal/runner"
	"github.com/morganross/FilePromptForge/internal/storage"
	"github.com/morganross/FilePromptForge/internal/storage/memory"
	"github.com/morganross/FilePromptForge/internal/storage/sqlite"
	"github.com/morganross/FilePromptForge/internal/telemetry"
)

// env is everything a command needs after configuration is loaded.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  storage.RunStore
	close  func()
}

// configError marks a failure to produce a usable configuration (exit 2).
func configError(err error) error {
	return &exitError{code: domain.ExitInputOrConfig, err: err}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadConfig reads the config file and applies command-line overrides.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, configError(err)
	}
	if a.provider != "" {
		cfg.Provider = a.provider
	}
	if a.model != "" {
		cfg.Model = a.model
	}
	if a.jsonOut {
		cfg.JSON = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, configError(fmt.Errorf("invalid config: %w", err))
	}
	return cfg, nil
}

// setup loads configuration and opens the logger, tracer and run ledger.
func (a *app) setup(ctx context.Context) (*env, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(a.stderr, a.verbose)

	shutdown, err := telemetry.InitTracer(cfg.Telemetry.Enabled, a.stderr, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		_ = shutdown(ctx)
		return nil, configError(err)
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		store:  store,
		close: func() {
			if store != nil {
				if err := store.Close(); err != nil {
					logger.Error("failed to close run store", slog.String("error", err.Error()))
				}
			}
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		},
	}, nil
}

// openStore returns the configured run ledger, or nil when storage is "none".
func openStore(cfg *config.Config) (storage.RunStore, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		store, err := sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return memory.New(), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}

func (e *env) newRunner() (*runner.Runner, error) {
	prices, err := pricing.Load(e.cfg.PricingFile)
	if err != nil {
		return nil, configError(err)
	}
	opts := []runner.Option{
		runner.WithLogger(e.logger),
		runner.WithPricing(prices),
	}
	if e.store != nil {
		opts = append(opts, runner.WithStore(e.store))
	}
	return runner.New(e.cfg, opts...), nil
}

func (e *env) policy() *grounding.Policy {
	allow := make(map[domain.Provider][]string, len(domain.Providers))
	for _, p := range domain.Providers {
		if list := e.cfg.GroundingAllow(p); list != nil {
			allow[p] = list
		}
	}
	return grounding.NewPolicy(e.cfg.Grounding.Enabled, e.cfg.Grounding.AllowUngroundedFallback, allow)
}
