// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/codeintel/internal/api"
	"github.com/starford/codeintel/internal/index"
	"github.com/starford/codeintel/internal/intel"
	"github.com/starford/codeintel/internal/query"
	"github.com/starford/codeintel/internal/sse"
	"github.com/starford/codeintel/internal/storage"
)

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// env holds the components shared by the commands.
type env struct {
	cfg          *Config
	logger       *slog.Logger
	root         string
	registryPath string
	mirror       *index.DB
}

func (a *application) setup() (*env, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config
	logger := newLogger(cfg, a.logOut)

	root, err := filepath.Abs(cfg.Repo.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}
	registryPath, err := cfg.RegistryAbs()
	if err != nil {
		return nil, err
	}

	rt := &env{cfg: cfg, logger: logger, root: root, registryPath: registryPath}

	logger.Info("Configuration loaded",
		slog.String("repo_root", root),
		slog.String("registry_path", cfg.Registry.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("groups", len(cfg.Scan.Groups)),
		slog.String("log_level", cfg.App.LogLevel.String()))
	return rt, nil
}

// openMirror opens the SQLite mirror when one is configured.
func (rt *env) openMirror() error {
	if !rt.cfg.SQLite.Enabled() {
		return nil
	}
	if dir := filepath.Dir(rt.cfg.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := index.Open(rt.cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	rt.mirror = db
	return nil
}

func (rt *env) close() {
	if rt.mirror != nil {
		_ = rt.mirror.Close()
	}
}

// mirrorIndex returns the mirror as an interface, nil when disabled.
func (rt *env) mirrorIndex() index.EntityIndex {
	if rt.mirror == nil {
		return nil
	}
	return rt.mirror
}

func (rt *env) store() (*storage.FS, error) {
	var opts []storage.Option
	if rt.cfg.Repo.RespectGitignore {
		opts = append(opts, storage.WithGitignore())
	}
	store, err := storage.NewFS(rt.root, opts...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

// syncMirror loads an existing registry into a freshly opened mirror so that
// search works before the first rebuild.
func (rt *env) syncMirror(engine *query.Engine) {
	if rt.mirror == nil {
		return
	}
	doc, err := engine.Document()
	if err != nil {
		return
	}
	if err := rt.mirror.Replace(doc); err != nil {
		rt.logger.Warn("initial mirror sync failed", slog.String("error", err.Error()))
	}
}

func reloadEvent(engine *query.Engine, available bool) sse.Reload {
	rl := sse.Reload{Available: available}
	if doc, err := engine.Document(); err == nil && doc != nil {
		rl.EntityCount = doc.Metadata.EntityCount
		rl.LastUpdated = doc.Metadata.LastUpdated
	}
	return rl
}

// Run serves the HTTP query API until ctx is cancelled or a shutdown signal
// arrives. The registry is reloaded when it changes on disk, never rebuilt.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(os.Stdout, opts)
	rt, err := app.setup()
	if err != nil {
		return err
	}
	cfg := rt.cfg
	logger := rt.logger

	if err := rt.openMirror(); err != nil {
		return err
	}
	defer rt.close()

	// The registry watcher needs the directory to exist.
	if err := os.MkdirAll(filepath.Dir(rt.registryPath), 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	engine := query.New(rt.registryPath, logger)
	if !engine.Available() {
		logger.Warn("registry unavailable, queries will answer 503 until it is built",
			slog.String("path", rt.registryPath))
	}
	rt.syncMirror(engine)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := intel.NewService(engine, rt.mirrorIndex())
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if !engine.Available() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"registry unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload the engine on registry changes and notify SSE clients.
	g.Go(func() error {
		return engine.Watch(gCtx, func(available bool) {
			if available && rt.mirror != nil {
				rt.syncMirror(engine)
			}
			broker.PublishReload(reloadEvent(engine, available))
		})
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

// errShutdown cancels the errgroup context so the registry watcher stops
// together with the HTTP server.
var errShutdown = errors.New("shutdown")
