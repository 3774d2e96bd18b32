package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/procure/internal/config"
	"github.com/JonMunkholm/procure/internal/core"
	"github.com/JonMunkholm/procure/internal/logging"
	"github.com/JonMunkholm/procure/internal/store"
	"github.com/JonMunkholm/procure/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_backend", cfg.Store.Backend,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"redis_sessions", cfg.Session.RedisURL != "",
	)

	ctx := context.Background()
	backend, err := store.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	// A store that does not answer yet is not fatal; /healthz reports it.
	if err := backend.Ping(ctx); err != nil {
		slog.Warn("store ping failed", "backend", cfg.Store.Backend, "error", err)
	} else {
		slog.Info("connected to store", "backend", cfg.Store.Backend)
	}

	sessions, closeSessions, err := openSessions(ctx, cfg.Session)
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer closeSessions()

	service := core.NewService(backend, sessions,
		core.NewWriteLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		core.Options{
			Tables:      cfg.Tables,
			PreviewRows: cfg.Upload.PreviewRows,
			MaxFileSize: cfg.Upload.MaxFileSize,
		})

	slog.Info("reference tables registered", "count", len(service.ReferenceTables()))

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Write loops run detached from their requests; let them finish.
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for writes to complete", "active", status.Active)
			if err := service.WaitForWrites(shutdownCtx); err != nil {
				slog.Warn("writes did not complete in time", "error", err)
			} else {
				slog.Info("all writes completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := startErr(server.Start()); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// startErr drops the error Start returns after a graceful shutdown; anything
// else means the server could not run.
func startErr(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// openSessions picks Redis when a URL is configured, memory otherwise.
func openSessions(ctx context.Context, cfg config.SessionConfig) (core.SessionStore, func(), error) {
	if cfg.RedisURL == "" {
		slog.Info("sessions kept in memory", "ttl", cfg.TTL)
		return core.NewMemorySessionStore(cfg.TTL), func() {}, nil
	}
	r, err := core.NewRedisSessionStore(ctx, cfg.RedisURL, cfg.KeyPrefix, cfg.TTL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("sessions kept in redis", "prefix", cfg.KeyPrefix, "ttl", cfg.TTL)
	return r, func() { _ = r.Close() }, nil
}
