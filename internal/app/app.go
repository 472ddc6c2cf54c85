// Package app wires the manifest loader, registry, and resolution engine
// into a runnable application behind the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/datagrid/internal/ctxlog"
	"github.com/vk/datagrid/internal/manifest"
	"github.com/vk/datagrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logW   io.Writer
	logger *slog.Logger
	db     *registry.Database
	config *Config
}

// New is the constructor for the main application. It loads the manifests
// into a database and returns a fully initialized App with its own isolated
// logger. A failure to load manifests is a fatal startup error and panics;
// the CLI entrypoint recovers and reports it.
func New(outW, logW io.Writer, cfg *Config, loader *manifest.Loader) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	db := registry.New(cfg.ManifestPath)
	if err := loader.Load(ctx, db, cfg.ManifestPath); err != nil {
		panic(fmt.Errorf("failed to load manifests: %w", err))
	}
	logger.Debug("Manifests loaded into database.", "computers", len(db.Computers()), "data", len(db.DataNames()))

	return &App{
		outW:   outW,
		logW:   logW,
		logger: logger,
		db:     db,
		config: cfg,
	}
}

// Database returns the loaded database. This is primarily for testing.
func (a *App) Database() *registry.Database {
	return a.db
}
