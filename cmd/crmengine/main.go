package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crm-engine/internal/config"
	"crm-engine/internal/notify"
	"crm-engine/internal/repository"
	"crm-engine/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config")
	}

	log := newLogger(cfg.LogLevel)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	taskRepo := repository.NewTaskRepository(db)

	overdue := service.NewOverdueProcessor(taskRepo, log, cfg.TenantBatchSize)
	regenerator := service.NewRegenerator(taskRepo, log, cfg.TenantBatchSize)

	var notifier *notify.TelegramNotifier
	if cfg.TelegramToken != "" {
		notifier, err = notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatal().Err(err).Msg("notifier")
		}
		log.Info().Int64("chat", cfg.TelegramChatID).Msg("overdue digest notifier enabled")
	}

	scheduler := service.NewSchedulerService(time.Local, log)

	_, err = scheduler.ScheduleInterval("overdue-scan", cfg.OverdueScanInterval, cfg.JobTimeout, func(jobCtx context.Context) error {
		result, err := overdue.Run(jobCtx)
		if err != nil {
			return err
		}
		if notifier != nil {
			if err := notifier.OverdueDigest(jobCtx, result.Flagged); err != nil {
				log.Error().Err(err).Msg("overdue digest")
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("schedule overdue scan")
	}

	_, err = scheduler.ScheduleInterval("recurrence-regenerate", cfg.RegenerateInterval, cfg.JobTimeout, func(jobCtx context.Context) error {
		_, err := regenerator.Run(jobCtx)
		return err
	})
	if err != nil {
		log.Fatal().Err(err).Msg("schedule regeneration")
	}

	scheduler.Start()
	defer scheduler.Stop()

	log.Info().
		Dur("overdue_interval", cfg.OverdueScanInterval).
		Dur("regenerate_interval", cfg.RegenerateInterval).
		Msg("scheduling engine started")

	<-ctx.Done()
	log.Info().Msg("shutting down")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
