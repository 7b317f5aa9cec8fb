package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpsoft/examflow/internal/config"
	"github.com/rpsoft/examflow/internal/devgateway"
	"github.com/rpsoft/examflow/internal/logger"
	"github.com/rpsoft/examflow/internal/middleware"
	"github.com/rpsoft/examflow/internal/validator"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Msg("Starting exam dev gateway")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Seed Exams ────────────────────────────────────────────────────
	store := devgateway.NewStore(nil, log)

	seeds := []devgateway.ExamSeed{devgateway.SampleSeed()}
	if cfg.ExamsFile != "" {
		loaded, err := devgateway.LoadSeedFile(cfg.ExamsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.ExamsFile).Msg("Failed to load exam seeds")
		}
		seeds = loaded
	}
	for _, seed := range seeds {
		id := store.AddExam(seed)
		log.Info().Str("exam_id", id.String()).Str("title", seed.Title).Msg("Exam available")
	}

	// ─── Issue a Dev Token ─────────────────────────────────────────────
	// Printed so cmd/examtake (or curl) can talk to this gateway without
	// a separate login step.
	token, err := middleware.IssueToken(cfg.JWTSecret, "dev-user", cfg.JWTExpiry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue dev token")
	}
	log.Info().Str("token", token).Msg("Dev bearer token (export as GATEWAY_TOKEN)")

	// ─── Setup Router ──────────────────────────────────────────────────
	handler := devgateway.NewHandler(store, log)
	r := devgateway.SetupRouter(handler, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
