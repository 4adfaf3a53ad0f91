// Package internal provides application initialization and service wiring.
package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/eihwaz/internal/builder"
	"github.com/starford/eihwaz/internal/cache"
	"github.com/starford/eihwaz/internal/parser"
	"github.com/starford/eihwaz/internal/scanner"
	"github.com/starford/eihwaz/internal/validator"
)

// App bundles the wired services the CLI commands dispatch to.
type App struct {
	Config    *Config
	Logger    *slog.Logger
	Parser    *parser.Parser
	Validator *validator.Validator
	Builder   *builder.Builder
	Scanner   *scanner.Scanner
	Cache     *cache.Cache

	store *cache.Store
}

// NewApp wires the application from the given options. Callers own the
// returned App and must Close it to release the cache store.
func NewApp(opts ...Option) (*App, error) {
	a := &application{}
	for _, opt := range opts {
		opt(a)
	}

	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	// Logs go to stderr as JSON; stdout is reserved for command output.
	logger := a.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}

	logger.Debug("configuration loaded",
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Bool("cache_enabled", cfg.Cache.Enabled),
		slog.Int("scan_workers", cfg.Scan.Workers))

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Parser:    parser.New(logger),
		Validator: validator.New(logger, cfg.Validation.Options()),
		Builder:   builder.New(logger, cfg.Build.Workers),
	}

	var scanCache *cache.Cache
	if cfg.Cache.Enabled {
		var store *cache.Store
		if cfg.Cache.Path != "" {
			var err error
			store, err = cache.OpenStore(cfg.Cache.Path)
			if err != nil {
				return nil, fmt.Errorf("init cache store: %w", err)
			}
			app.store = store
			if n, pruneErr := store.Prune(time.Now()); pruneErr != nil {
				logger.Warn("cache prune failed", slog.String("error", pruneErr.Error()))
			} else if n > 0 {
				logger.Debug("pruned expired cache entries", slog.Int("count", n))
			}
		}
		scanCache = cache.New(logger, cfg.Cache.MaxEntries, cfg.Cache.TTL, store)
	}
	app.Cache = scanCache

	app.Scanner = scanner.New(logger, scanner.Config{
		Workers:        cfg.Scan.Workers,
		IgnoreFile:     cfg.Scan.IgnoreFile,
		IgnorePatterns: cfg.Scan.IgnorePatterns,
	}, scanCache)

	return app, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
