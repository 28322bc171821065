package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opencliniq/triage/internal/alert"
	"github.com/opencliniq/triage/internal/api/ws"
	"github.com/opencliniq/triage/internal/audit"
	"github.com/opencliniq/triage/internal/auth"
	"github.com/opencliniq/triage/internal/config"
	"github.com/opencliniq/triage/internal/mailer"
	"github.com/opencliniq/triage/internal/server"
	"github.com/opencliniq/triage/internal/store/postgres"
	redisstore "github.com/opencliniq/triage/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("TRIAGE_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("TRIAGE_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL and apply the schema.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	// Connect to Redis (refresh-token sessions and the live case feed).
	rds, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rds.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("redis close failed")
		}
	}()

	// Auth service.
	authSvc := auth.NewService(store.Users(), rds, cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	// Audit chain engine and recorder. Failed appends go to the ops channel
	// when Slack is configured.
	var notifier alert.Notifier = alert.Nop{}
	if cfg.Slack.BotToken != "" {
		notifier = alert.NewSlackNotifier(cfg.Slack.BotToken, cfg.Slack.AlertChannel)
		log.Info().Str("channel", cfg.Slack.AlertChannel).Msg("Slack alerting enabled")
	}
	engine := audit.NewEngine(store.Audit())
	auditor := audit.NewRecorder(engine, notifier)

	// Transactional email for invite and password-reset flows.
	var mail mailer.Mailer = mailer.Nop{}
	if cfg.Mailer.APIKey != "" {
		mail = mailer.New(cfg.Mailer.APIKey, cfg.Mailer.Sender, cfg.Mailer.AppURL)
		log.Info().Msg("outbound mail enabled")
	}

	// Live case feed over Redis pub/sub.
	hub := ws.NewHub(rds)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, server.Deps{
		Store:    store,
		Auth:     authSvc,
		Auditor:  auditor,
		Verifier: engine,
		Hub:      hub,
		Notifier: notifier,
		Mailer:   mail,
	})

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
