package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studystake/coordinator/internal/app"
	"github.com/studystake/coordinator/internal/config"
	"github.com/studystake/coordinator/internal/handlers"
	"github.com/studystake/coordinator/internal/logger"
	"github.com/studystake/coordinator/internal/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Warning: failed to load config from %s: %v", configPath, err)
		log.Println("Using default configuration")
		cfg = config.DefaultConfig()
	}
	if err := cfg.LoadEnv(".env"); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}
	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		cfg.Database.Migrations = path
	}

	zlog, err := logger.New(logger.Configuration{
		LogFile:   cfg.Log.File,
		ErrorFile: cfg.Log.ErrorFile,
		Level:     cfg.Log.Level,
		Console:   true,
		JSON:      cfg.Log.JSON,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("coordinator stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, zlog, true)
	if err != nil {
		return err
	}
	defer a.Close()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, zlog.Named("ratelimit"))
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterConfig{
		Accounts:     a.Accounts,
		Lifecycle:    a.Lifecycle,
		Orchestrator: a.Orchestrator,
		Receipts:     a.Chain,
		ConfirmBatch: cfg.Scheduler.ConfirmBatch,
		JWT:          middleware.JWTConfig{Secret: cfg.JWT.Secret, Expiration: cfg.JWT.Expiration()},
		AdminAPIKey:  cfg.Server.AdminAPIKey,
		RateLimiter:  limiter,
		Metrics:      a.Metrics,
		Logger:       zlog.Named("http"),
	})

	if !cfg.Scheduler.Disabled {
		sc, err := a.Scheduler()
		if err != nil {
			return err
		}
		sc.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := sc.Stop(stopCtx); err != nil {
				zlog.Warn("scheduler did not stop in time", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("coordinator HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	zlog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zlog.Info("server exited")
	return nil
}
