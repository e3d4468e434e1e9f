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

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/api"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/mcpserver"
	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/storage"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger, closeLog, err := newLogger(cfg.App, os.Stdout)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("env", cfg.App.Env),
		slog.String("chat_provider", cfg.Chat.Provider),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("rate_limit_backend", cfg.RateLimit.Backend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)

	apiRouter := api.NewRouter(api.Deps{
		Relay:              c.relay,
		Notes:              c.notes,
		ChatLimiter:        c.chatLimiter,
		NoteLimiter:        c.noteLimiter,
		Metrics:            c.metrics,
		Logger:             logger,
		Events:             c.broker,
		AuthEnabled:        cfg.Auth.AuthEnabled(),
		AuthToken:          cfg.Auth.Token,
		IgnoreProxyHeaders: !cfg.App.HTTP.TrustProxy,
		StreamByDefault:    cfg.Chat.Stream,
		ExposeDetails:      cfg.App.Development(),
		ServiceName:        cfg.App.ServiceName,
		ResumeURL:          cfg.App.ResumeURL,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.App.HTTP.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(c.metrics.Middleware)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	if c.metrics != nil {
		r.Handle(cfg.Metrics.Path, c.metrics.Handler())
	}

	// No WriteTimeout: chat streams are bounded by the relay timeout.
	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Drop the cached biography as soon as the file changes.
	if cfg.Biography.Watch {
		g.Go(func() error {
			if err := c.loader.Watch(gCtx); err != nil {
				logger.Warn("biography watcher stopped", slog.String("error", err.Error()))
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

		// Let in-flight notifications finish before stores are closed.
		c.notes.Wait()
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so that background watchers stop once the
// server has shut down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(ctx context.Context, version string, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger, closeLog, err := newLogger(cfg.App, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)
	defer c.notes.Wait()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.relay, c.notes, version).ServeStdio()
}

// InitSheet writes the header row of the configured Google Sheet.
func InitSheet(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config
	if !cfg.Sheets.Configured() {
		return fmt.Errorf("sheets.sheet_id is not set")
	}

	sh, err := openSheets(ctx, cfg.Sheets)
	if err != nil {
		return err
	}
	if err := sh.InitHeader(ctx); err != nil {
		return fmt.Errorf("init sheet header: %w", err)
	}
	slog.Info("Sheet header written",
		slog.String("sheet_id", cfg.Sheets.SheetID),
		slog.Int("columns", len(storage.SheetHeader)))
	return nil
}
