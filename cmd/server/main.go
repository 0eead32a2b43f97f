package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/config"
	"github.com/VCalixtoR/gestaomt-back/internal/infra"
	"github.com/VCalixtoR/gestaomt-back/internal/router"
	"github.com/VCalixtoR/gestaomt-back/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title GestaoMT API
// @version 1.0
// @description Estoque, condicionales y ventas de la tienda.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if err := infra.MigrateUp(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	db, err := infra.NewDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional: without it the router falls back to in-process
	// cache, inline jobs and timer-based report cleanup.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
	} else {
		log.Warn().Msg("REDIS_URL empty, running without redis")
	}

	if err := os.MkdirAll(cfg.ReportStoragePath, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", cfg.ReportStoragePath).Msg("failed to create report directory")
	}

	mailer := infra.NewMailer(cfg, infra.NewCircuitBreaker(infra.DefaultCBConfig()))
	if rdb != nil {
		worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, worker.NewHandlers(mailer))
		worker.StartCleanupCron(ctx, rdb)
	}

	r := router.New(cfg, db, rdb, mailer)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("gestaomt backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
