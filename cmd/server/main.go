// Command server runs the message-gateway HTTP service: webhook intake,
// gateway token refresh, the worker/cron surface, and the in-process
// scheduler for backlog drains and analytics rollups.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/positonic/go-message-gateway/docs"
	"github.com/positonic/go-message-gateway/internal/config"
	httpapi "github.com/positonic/go-message-gateway/internal/http"
	"github.com/positonic/go-message-gateway/internal/observability"
	"github.com/positonic/go-message-gateway/internal/repo"
	"github.com/positonic/go-message-gateway/internal/scheduler"
	"github.com/positonic/go-message-gateway/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// @title           Message Gateway API
// @version         1.0
// @description     Reliability layer between chat-platform bridges and the AI agent backend: token refresh, webhook intake, retrying dispatch queue, and analytics rollups.
// @BasePath        /api/v1
func main() {
	// Optional .env for local development; real deployments inject env vars.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Fatal().Err(err).Msg("instrument database")
		}
	}

	r := gin.New()
	svcs := httpapi.RegisterRoutes(r, db, cfg)

	sched := scheduler.New(svcs.Dispatch, svcs.Analytics, cfg.Queue.BatchSize)
	if err := sched.Start(cfg.CronSchedule); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.CronSchedule).Msg("start scheduler")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	// Let in-flight scheduled jobs finish before the process exits.
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("scheduler jobs still running at shutdown deadline")
	}

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}

	log.Info().Msg("server stopped")
}
