package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/booking-engine/cmd/mainconfig"
	"github.com/wolfman30/booking-engine/internal/api/router"
	"github.com/wolfman30/booking-engine/internal/app/bootstrap"
	appconfig "github.com/wolfman30/booking-engine/internal/config"
	"github.com/wolfman30/booking-engine/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/booking-engine/internal/http/middleware"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"memory_stores", cfg.UseMemoryStores,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends, cleanup, err := mainconfig.ConnectBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect backends", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	registry := prometheus.NewRegistry()
	stack, err := bootstrap.BuildStack(cfg, backends, registry, logger)
	if err != nil {
		logger.Error("failed to build booking stack", "error", err)
		os.Exit(1)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	handler := newRouter(cfg, stack, backends, registry, limiter, logger)

	go stack.Sweeper.Run(ctx, cfg.SweepInterval)
	if stack.Deliverer != nil {
		go stack.Deliverer.Start(ctx)
	}
	go limiter.RunEviction(ctx, 5*time.Minute, 10*time.Minute)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func newRouter(cfg *appconfig.Config, stack *bootstrap.Stack, b bootstrap.Backends, registry *prometheus.Registry, limiter *httpmiddleware.RateLimiter, logger *logging.Logger) http.Handler {
	return router.New(&router.Config{
		Logger:             logger,
		Availability:       handlers.NewAvailabilityHandler(stack.Availability, stack.Generator, stack.Finder, logger),
		Appointments:       handlers.NewAppointmentHandler(stack.Appointments, logger),
		AdminDirectory:     handlers.NewAdminDirectoryHandler(stack.Directory, stack.Configs, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		Ready:              readiness(b),
	})
}

func readiness(b bootstrap.Backends) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if b.Redis != nil {
			if err := b.Redis.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		if b.Postgres != nil {
			if err := b.Postgres.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		return nil
	}
}
