package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pollwatch/pollwatch/internal/adapter/httpserver"
	"github.com/pollwatch/pollwatch/internal/adapter/logsink"
	"github.com/pollwatch/pollwatch/internal/adapter/webhook"
	"github.com/pollwatch/pollwatch/internal/broadcast"
	"github.com/pollwatch/pollwatch/internal/config"
	"github.com/pollwatch/pollwatch/internal/logging"
	"github.com/pollwatch/pollwatch/internal/poll"
	"github.com/pollwatch/pollwatch/internal/publish"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(ctx context.Context, cfg *config.Config) (poll.Store, func()) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		return poll.NewRedisStore(client), func() { _ = client.Close() }

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		store, err := poll.NewPostgresStore(ctx, pool)
		if err != nil {
			slog.Error("Failed to prepare poll table", "error", err)
			os.Exit(1)
		}
		return store, pool.Close

	case config.BackendMemory:
		slog.Warn("Using in-memory store, polls will not survive a restart")
		return poll.NewMemoryStore(), func() {}

	default:
		return poll.NewFileStore(cfg.PollFile), func() {}
	}
}

func setupRendering(cfg *config.Config) (publish.Sink, poll.Display) {
	if cfg.ResultsWebhookURL != "" {
		return webhook.NewSink(cfg.ResultsWebhookURL), webhook.NewDisplay(cfg.ResultsWebhookURL)
	}
	slog.Info("No results webhook configured, rendering to log only")
	return logsink.NewSink(), logsink.NewDisplay()
}

func runGracefulShutdown(srv *httpserver.Server, engine *poll.Engine) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		engine.Stop()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "store", cfg.StoreBackend)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, closeStore := setupStore(ctx, cfg)
	cancel()
	defer closeStore()

	sink, display := setupRendering(cfg)
	hub := broadcast.NewHub()
	publisher := publish.New(sink, store, hub)
	engine := poll.NewEngine(store, publisher, display, clock)

	// Reconstruct every in-flight session and its timer from durable state.
	recoverCtx, cancelRecover := context.WithTimeout(context.Background(), 30*time.Second)
	if err := engine.Recover(recoverCtx); err != nil {
		slog.Error("Poll recovery failed", "error", err)
		cancelRecover()
		os.Exit(1)
	}
	cancelRecover()

	srv := httpserver.NewServer(cfg, engine, hub, clock)
	done := runGracefulShutdown(srv, engine)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
