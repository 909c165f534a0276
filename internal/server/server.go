// Package server exposes the widget endpoints over HTTP: init code,
// token refresh, and deposit/bet/currency event forwarding.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucifergaming/savagetech/internal/config"
	"github.com/lucifergaming/savagetech/internal/observability"
	"github.com/lucifergaming/savagetech/internal/sdk"
)

const shutdownTimeout = 10 * time.Second

// Backend is the vendor API surface the server forwards to.
// *sdk.Client satisfies it.
type Backend interface {
	sdk.TokenClient
	VendorID() string
	DepositMade(ctx context.Context, userID string, amount float64, currency string) (*sdk.Response, error)
	BetPlaced(ctx context.Context, userID string, amount, odds float64, currency string) (*sdk.Response, error)
	SetCurrencies(ctx context.Context, currencies map[string]sdk.Currency) (*sdk.Response, error)
}

var _ Backend = (*sdk.Client)(nil)

// Settings are the values that may change while the server runs.
type Settings struct {
	WidgetEnabled   bool
	RefreshMargin   time.Duration
	DefaultCurrency string
}

// RefreshBeforeMinutes is the margin as reported to browsers.
func (s Settings) RefreshBeforeMinutes() float64 {
	return s.RefreshMargin.Minutes()
}

// SettingsFromConfig extracts the reloadable settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		WidgetEnabled:   cfg.WidgetEnabled,
		RefreshMargin:   cfg.RefreshMargin(),
		DefaultCurrency: cfg.DefaultCurrency,
	}
}

// Server routes widget requests to a Backend.
type Server struct {
	backend  Backend
	settings atomic.Pointer[Settings]
	prefix   string
	logger   *slog.Logger
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	router   *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithPrefix mounts the widget routes under prefix (default /api/savage-tech).
func WithPrefix(prefix string) Option {
	return func(s *Server) { s.prefix = strings.TrimRight(prefix, "/") }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records request metrics and serves g at /metrics.
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// New creates a Server.
func New(backend Backend, settings Settings, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		prefix:  config.DefaultRoutePrefix,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.settings.Store(&settings)
	s.router = s.routes()
	return s
}

// Settings returns the current settings.
func (s *Server) Settings() Settings {
	return *s.settings.Load()
}

// UpdateSettings swaps the settings used by subsequent requests.
func (s *Server) UpdateSettings(settings Settings) {
	s.settings.Store(&settings)
	s.logger.Info("settings updated",
		"widget_enabled", settings.WidgetEnabled,
		"refresh_margin", settings.RefreshMargin,
		"default_currency", settings.DefaultCurrency)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID, s.logRequests)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// Widget routes hang off the root router with the prefix spelled out.
	// A prefix subrouter would report a method mismatch as 404.
	widget := func(path string, h http.HandlerFunc, method string) {
		r.HandleFunc(s.prefix+path, h).Methods(method)
	}
	widget("/init", s.handleInit, http.MethodGet)
	widget("/refresh-token", s.handleRefreshToken, http.MethodGet)
	widget("/deposit", s.handleDeposit, http.MethodPost)
	widget("/bet", s.handleBet, http.MethodPost)
	widget("/currencies", s.handleCurrencies, http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr, "prefix", s.prefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
