package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/complyport/realtime-service/internal/api"
	"github.com/complyport/realtime-service/internal/broadcast"
	"github.com/complyport/realtime-service/internal/config"
	"github.com/complyport/realtime-service/internal/notify"
	"github.com/complyport/realtime-service/internal/proxy"
	"github.com/complyport/realtime-service/internal/ratelimit"
	"github.com/complyport/realtime-service/internal/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()

	if cfg.APIURL == "" {
		logger.Warn("API_URL not set, backend proxy will answer with configuration errors")
	}
	if cfg.WSURL == "" {
		logger.Warn("WS_URL not set, broadcasts run in degraded mode")
	}

	ctx := context.Background()

	// Optional broadcast audit log
	var pgStore *store.PostgresStore
	if cfg.DatabaseURL != "" {
		var err error
		pgStore, err = store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()

		if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("broadcast audit log enabled")
	}

	// Optional rate limiting
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		redisClient = redisStore.Client()
		logger.Info("rate limiting enabled", "limit_per_minute", cfg.RateLimitPerMinute)
	}

	var recorder broadcast.Recorder
	if pgStore != nil {
		recorder = pgStore
	}

	router := api.NewRouter(api.Deps{
		Dispatcher:         broadcast.NewDispatcher(cfg.WSURL, recorder, logger),
		Notifications:      notify.NewClient(cfg.APIURL, logger),
		Proxy:              proxy.NewGateway(cfg.APIURL, logger),
		Limiter:            ratelimit.NewLimiter(redisClient, cfg.RateLimitPerMinute, logger),
		PgStore:            pgStore,
		BackendConfigured:  cfg.APIURL != "",
		DeliveryConfigured: cfg.WSURL != "",
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
