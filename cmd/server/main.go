package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kvstore-api/internal/auth"
	"kvstore-api/internal/cache"
	"kvstore-api/internal/config"
	"kvstore-api/internal/database"
	"kvstore-api/internal/kv"
	"kvstore-api/internal/logging"
	"kvstore-api/internal/metrics"
	"kvstore-api/internal/realtime"
	"kvstore-api/internal/routes"
	"kvstore-api/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		config.Exitf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		config.Exitf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	log.Println("Server stopped")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	dbOpts := database.Options{Path: cfg.DBPath, LogLevel: database.ParseLogLevel(cfg.SQLLog)}
	if err := database.Migrate(ctx, dbOpts); err != nil {
		return err
	}

	collector := metrics.NewCollector("kvstore")
	lru, err := cache.New(cfg.CacheCapacity, cache.WithEvictionHook(func(string, string) {
		collector.RecordEviction()
	}))
	if err != nil {
		return err
	}
	svc := kv.NewService(lru, kv.Options{Logger: logger, Metrics: collector})

	pool, err := worker.New(cfg.Workers, database.NewDialer(dbOpts), worker.Options{
		Logger:  logger,
		Metrics: collector,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	var issuer *auth.Issuer
	if cfg.AuthEnabled() {
		issuer, err = auth.NewIssuer(cfg.AuthSecret, cfg.AuthIssuer, cfg.AuthAudience)
		if err != nil {
			return err
		}
	}

	router := routes.SetupRoutes(routes.Deps{
		Pool:    pool,
		Service: svc,
		Hub:     realtime.NewHub(),
		Metrics: collector,
		Issuer:  issuer,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", cfg.Addr),
			zap.String("environment", cfg.Env),
			zap.Int("workers", cfg.Workers),
			zap.Int("cacheCapacity", cfg.CacheCapacity),
			zap.String("db", cfg.DBPath),
			zap.Bool("auth", issuer != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
