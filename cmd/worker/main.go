// Command worker drains the delivery queue, sending queued newsletter
// issues to confirmed subscribers in batches on a fixed interval.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/postroom/newsletter-backend/internal/config"
	"github.com/postroom/newsletter-backend/internal/email"
	"github.com/postroom/newsletter-backend/internal/observability"
	"github.com/postroom/newsletter-backend/internal/repo"
	"github.com/postroom/newsletter-backend/internal/services"
	"github.com/postroom/newsletter-backend/internal/sysutil"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin failed; continuing without it")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	var sender email.Sender = email.LogSender{}
	if cfg.Email.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("aws config load failed")
		}
		sender, err = email.NewSESSender(awsCfg, cfg.Email.From)
		if err != nil {
			log.Fatal().Err(err).Msg("email sender setup failed")
		}
	}

	svc := &services.DeliveryService{
		DB:          db,
		Sender:      sender,
		BatchSize:   cfg.Worker.BatchSize,
		MaxAttempts: cfg.Worker.MaxAttempts,
	}

	log.Info().
		Dur("interval", cfg.Worker.Interval).
		Int("batch_size", cfg.Worker.BatchSize).
		Int("max_attempts", cfg.Worker.MaxAttempts).
		Str("version", version).
		Msg("delivery worker started")

	ticker := time.NewTicker(cfg.Worker.Interval)
	defer ticker.Stop()

	for {
		sent, failed, err := svc.DrainOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("delivery pass failed")
		} else if sent > 0 || failed > 0 {
			log.Info().Int("sent", sent).Int("failed", failed).Msg("delivery pass complete")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("delivery worker stopped")
			return
		case <-ticker.C:
		}
	}
}
