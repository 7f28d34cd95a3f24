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

	"github.com/starford/tome/internal/ai"
	"github.com/starford/tome/internal/api"
	"github.com/starford/tome/internal/importer"
	"github.com/starford/tome/internal/kbservice"
	"github.com/starford/tome/internal/mcpserver"
	"github.com/starford/tome/internal/seed"
	"github.com/starford/tome/internal/sse"
	"github.com/starford/tome/internal/storage"
	"github.com/starford/tome/internal/store"
	"github.com/starford/tome/internal/watch"
)

var errConfigRequired = errors.New("config is required")

// App is a bootstrapped knowledge base with its collaborators.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Store   *store.Store
	Service *kbservice.Service

	storage storage.Storage
}

// Open wires storage, seed, store, importer and AI client, then runs the
// bootstrap load. onChange, if non-nil, receives store mutations.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger, onChange store.ChangeFunc) (*App, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	st, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	opts := []store.Option{
		store.WithKey(cfg.Storage.Key),
		store.WithLogger(logger),
	}
	if onChange != nil {
		opts = append(opts, store.WithOnChange(onChange))
	}
	kb := store.New(st, seed.New(cfg.Seed.Source, cfg.Seed.Timeout), opts...)

	client, err := ai.New(ctx, ai.Config{APIKey: cfg.AI.APIKey, Model: cfg.AI.Model})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init ai: %w", err)
	}
	if !client.Enabled() {
		logger.Info("AI features disabled: no API key configured")
	}

	res := kb.Bootstrap(ctx)
	if res.Err != nil {
		logger.Warn("started with an empty knowledge base", slog.String("error", res.Err.Error()))
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   kb,
		Service: kbservice.NewService(kb, importer.New(logger), client, logger),
		storage: st,
	}, nil
}

// Close releases the storage backend.
func (a *App) Close() error {
	return a.storage.Close()
}

// watchPath returns the file to watch, or "" when the backend is not file based.
func (a *App) watchPath() string {
	fs, ok := a.storage.(*storage.File)
	if !ok {
		return ""
	}
	p, err := fs.Path(a.Config.Storage.Key)
	if err != nil {
		return ""
	}
	return p
}

// OpenApp is Open driven by functional options. It is used by the one-shot
// CLI commands.
func OpenApp(ctx context.Context, opts ...Option) (*App, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return Open(ctx, app.config, app.logger, nil)
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		// Initialize structured JSON logger.
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("seed_source", cfg.Seed.Source),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	kb, err := Open(ctx, cfg, logger, broker.PublishItemEvent)
	if err != nil {
		return err
	}
	defer kb.Close()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: newHTTPHandler(kb.Service, broker),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload when another process rewrites the storage file.
	if p := kb.watchPath(); cfg.Watch.Enabled && p != "" {
		g.Go(func() error {
			if err := watch.Watch(gCtx, p, kb.Store, logger, nil); err != nil {
				logger.Warn("watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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
		defer signal.Stop(quit)

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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

func newHTTPHandler(svc *kbservice.Service, broker *sse.Broker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		res := svc.Ready(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","source":%q,"loaded":%d}`, res.Source, res.Count)
	})

	r.Mount("/api", api.NewRouter(svc, broker))
	return r
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	kb, err := Open(ctx, app.config, logger, nil)
	if err != nil {
		return err
	}
	defer kb.Close()

	return mcpserver.New(kb.Service, app.version).ServeStdio()
}
