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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/folderdb/internal/api"
	"github.com/starford/folderdb/internal/docservice"
	"github.com/starford/folderdb/internal/docstore"
	"github.com/starford/folderdb/internal/journal"
	"github.com/starford/folderdb/internal/markdown"
	"github.com/starford/folderdb/internal/mcpserver"
	"github.com/starford/folderdb/internal/sse"
	"github.com/starford/folderdb/internal/watch"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog := newLogger(os.Stdout, &cfg.App)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_root", cfg.Store.Root),
		slog.Bool("journal_enabled", cfg.Journal.Enabled),
		slog.Bool("watch_enabled", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := openStore(ctx, &cfg.Store, logger)
	if err != nil {
		return err
	}
	svc := docservice.NewService(store, logger)

	store.Events().Subscribe(func(ctx context.Context, ev docstore.Event) {
		logger.DebugContext(ctx, "store event", slog.String("op", string(ev.Op)), slog.String("path", ev.Path))
	})

	broker := sse.NewBroker(cfg.App.HTTP.SSEThrottle)
	defer broker.Close()
	store.Events().Subscribe(broker.Listener(), docstore.OpWrite, docstore.OpDelete)

	routerOpts := []api.RouterOption{api.WithSSE(broker)}
	if cfg.Auth.AuthEnabled() {
		routerOpts = append(routerOpts, api.WithAuth(cfg.Auth.Token))
	}
	if rl := cfg.App.HTTP.RateLimit; rl.Enabled() {
		routerOpts = append(routerOpts, api.WithRateLimit(rl.RPS, rl.Burst))
	}

	if cfg.Journal.Enabled {
		db, err := openJournal(ctx, &cfg.Journal, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		defer journal.Subscribe(store.Events(), db, logger)()
		routerOpts = append(routerOpts, api.WithJournal(db))
	}

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ok, err := store.Exists(req.Context(), ""); err != nil || !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(svc, routerOpts...))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Report edits made outside the API.
	if cfg.Watch.Enabled {
		g.Go(func() error {
			err := watch.Watch(gCtx, store.Root(), logger, broker.WatchCallback,
				watch.WithFilter(store.IsDocument),
				watch.WithDebounce(cfg.Watch.Debounce),
			)
			if err != nil {
				logger.Warn("file watcher stopped", slog.String("error", err.Error()))
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

		// Unblocks the watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr because
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog := newLogger(os.Stderr, &cfg.App)
	defer closeLog()
	slog.SetDefault(logger)

	store, err := openStore(ctx, &cfg.Store, logger)
	if err != nil {
		return err
	}

	if cfg.Journal.Enabled {
		db, err := openJournal(ctx, &cfg.Journal, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		defer journal.Subscribe(store.Events(), db, logger)()
	}

	logger.Info("MCP server starting", slog.String("store_root", store.Root()))
	return mcpserver.New(docservice.NewService(store, logger), app.version).ServeStdio()
}

// newLogger builds the JSON logger. When a log file is configured, records
// are written to both out and a rotating file.
func newLogger(out io.Writer, cfg *ApplicationConfig) (*slog.Logger, func()) {
	closeFn := func() {}
	if cfg.LogFile.Path != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAgeDays,
			Compress:   cfg.LogFile.Compress,
		}
		out = io.MultiWriter(out, fileWriter)
		closeFn = func() { _ = fileWriter.Close() }
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	return logger, closeFn
}

// openStore creates the store and makes sure its root directory exists.
func openStore(ctx context.Context, cfg *StoreConfig, logger *slog.Logger) (*docstore.Store, error) {
	opts := []docstore.Option{
		docstore.WithLogger(logger),
		docstore.WithMaxDepth(cfg.MaxDepth),
		docstore.WithConcurrency(cfg.Concurrency),
	}
	if len(cfg.ScriptExtensions) > 0 {
		opts = append(opts, docstore.WithScriptExtensions(cfg.ScriptExtensions...))
	}
	if cfg.Markdown {
		opts = append(opts, docstore.WithCodec(".md", markdown.Codec{}))
	}

	store, err := docstore.New(cfg.Root, opts...)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if _, err := store.Provision(ctx, ""); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return store, nil
}

func openJournal(ctx context.Context, cfg *JournalConfig, logger *slog.Logger) (*journal.DB, error) {
	db, err := journal.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	if cfg.Retention > 0 {
		n, err := db.Prune(ctx, time.Now().Add(-cfg.Retention))
		if err != nil {
			logger.Warn("journal prune failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Info("journal pruned", slog.Int64("removed", n))
		}
	}
	return db, nil
}
