// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/amberline/waypost/internal/analytics"
	"github.com/amberline/waypost/internal/api"
	"github.com/amberline/waypost/internal/archive"
	"github.com/amberline/waypost/internal/engine"
	"github.com/amberline/waypost/internal/geocode"
	"github.com/amberline/waypost/internal/location"
	"github.com/amberline/waypost/internal/mcpserver"
	"github.com/amberline/waypost/internal/route"
	"github.com/amberline/waypost/internal/sse"
	"github.com/amberline/waypost/internal/storage"
)

// buildEngine assembles the storage, archive, collaborators and engine
// from configuration. The returned closer releases the archive database.
func buildEngine(cfg *Config, logger *slog.Logger) (*engine.Engine, *storage.FS, func(), error) {
	if err := os.MkdirAll(cfg.Data.Root, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Data.Root)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := archive.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init archive: %w", err)
	}

	var geocoder location.Geocoder
	if cfg.Geocoder.Enabled {
		geocoder, err = geocode.New(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, nil)
		if err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("init geocoder: %w", err)
		}
	}

	var router analytics.Router
	if cfg.Router.Enabled {
		router, err = route.New(cfg.Router.BaseURL, nil)
		if err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("init router: %w", err)
		}
	}

	eng := engine.New(store, db, geocoder, router, logger)
	return eng, store, func() { db.Close() }, nil
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	logger := newLogger(cfg)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_root", cfg.Data.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("geocoder_enabled", cfg.Geocoder.Enabled),
		slog.Bool("router_enabled", cfg.Router.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	eng, store, closeEngine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	eng.SetPublisher(func(event string) {
		broker.Publish(sse.Event{Type: event, Data: map[string]string{}})
	})

	apiRouter := api.NewRouter(eng, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the data directory so external edits to persisted state reach
	// connected dashboards.
	g.Go(func() error {
		err := storage.Watch(gCtx, store, logger, func(kind, key string) {
			eng.HandleStorageChange(key)
			broker.Publish(sse.Event{
				Type: "storage.changed",
				Data: map[string]string{"kind": kind, "key": key},
			})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("storage watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		broker.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP server on stdio with the given options.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Logs go to stderr so stdout stays clean for the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	eng, _, closeEngine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(eng).ServeStdio()
}
