// Package main is the entrypoint for the ThreatForge gateway.
package main

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

	"github.com/threatforge/gateway/internal/api"
	"github.com/threatforge/gateway/internal/api/handler"
	mw "github.com/threatforge/gateway/internal/api/middleware"
	"github.com/threatforge/gateway/internal/audit"
	"github.com/threatforge/gateway/internal/auth"
	"github.com/threatforge/gateway/internal/backend"
	"github.com/threatforge/gateway/internal/config"
	"github.com/threatforge/gateway/internal/ratelimit"
	"github.com/threatforge/gateway/internal/threatmodel"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "backend", cfg.Backend.Provider, "env", cfg.Server.Env)

	if !cfg.Content.ValidationEnabled {
		slog.Warn("CONTENT VALIDATION DISABLED: injection screening and file validation are off")
	}
	if !cfg.Auth.Enabled {
		slog.Warn("AUTHENTICATION DISABLED: all requests share one identity")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Audit store (optional): Postgres when configured, no-op otherwise
	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Audit.DatabaseURL != "" {
		if err := audit.Migrate(cfg.Audit.DatabaseURL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		pool, err := audit.Connect(ctx, cfg.Audit)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		recorder = audit.NewPostgresRecorder(pool)
		slog.Info("audit store connected")
	} else {
		slog.Info("no audit database configured, audit events discarded")
	}

	// 3. Rate limiter: Redis when configured, in-memory otherwise
	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RateLimit.RedisURL,
			cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err != nil {
			return fmt.Errorf("create redis limiter: %w", err)
		}
		defer redisLimiter.Close()
		if err := redisLimiter.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		limiter = redisLimiter
		slog.Info("redis rate limiter connected")
	default:
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests,
			cfg.RateLimit.Window, cfg.RateLimit.MaxIdentities)
	}

	// 4. Keystore and token service
	keystore, err := auth.NewKeystore(cfg.Auth.APIKeys, cfg.Auth.Enabled)
	if err != nil {
		return fmt.Errorf("build keystore: %w", err)
	}
	tokens := auth.NewTokenService(keystore, cfg.Auth.SigningSecret, cfg.Auth.TokenTTL)

	// 5. Generation backend
	generator, err := backend.NewGenerator(cfg.Backend)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	slog.Info("generation backend initialized", "provider", generator.Name())

	// 6. Build router with dependencies
	svc := threatmodel.NewService(generator, recorder, cfg.Backend.Timeout, cfg.Content.ValidationEnabled)

	deps := api.Dependencies{
		Auth:      mw.NewAuth(tokens, recorder, cfg.Auth.Enabled),
		RateLimit: mw.NewRateLimit(limiter, recorder, cfg.RateLimit.Requests, cfg.RateLimit.Window),

		HealthHandler:   handler.NewHealthHandler(generator.Name()),
		TokenHandler:    handler.NewTokenHandler(tokens),
		GenerateHandler: handler.NewGenerateHandler(svc),
		CompareHandler:  handler.NewCompareHandler(svc),
		UploadHandler:   handler.NewUploadHandler(svc),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Backend.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
