package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lucifergaming/savagetech/internal/config"
	"github.com/lucifergaming/savagetech/internal/observability"
)

// reloadDebounce coalesces the burst of events editors produce on save.
const reloadDebounce = 100 * time.Millisecond

// LoadFunc loads a fresh configuration.
type LoadFunc func() (*config.Config, error)

// Reloader watches a config file and pushes new settings into a Server.
type Reloader struct {
	path    string
	load    LoadFunc
	server  *Server
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewReloader watches path and reloads via load on every change.
func NewReloader(path string, load LoadFunc, srv *Server, logger *slog.Logger, metrics *observability.Metrics) *Reloader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reloader{
		path:    filepath.Clean(path),
		load:    load,
		server:  srv,
		logger:  logger,
		metrics: metrics,
	}
}

// Run watches until ctx is cancelled. The parent directory is watched so
// atomic rename-over saves are seen.
func (r *Reloader) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(r.path), err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != r.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("config watcher error", "error", err)
		case <-pending:
			pending = nil
			r.Reload()
		}
	}
}

// Reload loads the config once and applies it. A failed load keeps the
// current settings.
func (r *Reloader) Reload() {
	cfg, err := r.load()
	if r.metrics != nil {
		r.metrics.ObserveReload(err)
	}
	if err != nil {
		r.logger.Warn("config reload failed", "path", r.path, "error", err)
		return
	}
	r.server.UpdateSettings(SettingsFromConfig(cfg))
}
