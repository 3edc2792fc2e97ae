// Package main is the entry point for the badminton expense bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"badminton-expense-bot/internal/bot"
	"badminton-expense-bot/internal/config"
	"badminton-expense-bot/internal/localstore"
	"badminton-expense-bot/internal/model"
	"badminton-expense-bot/internal/pkg/db"
	"badminton-expense-bot/internal/reconcile"
	"badminton-expense-bot/internal/repository"
	"badminton-expense-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The local fallback store must be available even when the remote
	// store is not, so it opens first and unconditionally.
	local, err := localstore.Open(cfg.Local.Path, cfg.Local.Namespace)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer local.Close()

	// The remote store is optional at runtime but required at startup
	// so misconfiguration is caught early.
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	dayRepo := repository.NewDayRepository(dbPool.Pool)

	defaults := func() *model.AppData {
		d := model.NewAppData()
		d.Players = append(d.Players, cfg.Club.DefaultPlayers...)
		d.CourtSetup.RatePerHour = cfg.Club.DefaultRatePerHour
		return d
	}
	rec := reconcile.New(dayRepo, local, defaults)

	// Change feed: one dedicated listening connection for the process,
	// feeding the reconciler's notification entry point.
	listener := repository.NewDayListener(dbPool.DSN())
	go listener.Run(ctx, func(n repository.Notification) {
		rec.HandleNotification(ctx, n)
	})

	days := service.NewDayService(rec, cfg.Club.AllocationPolicy(), cfg.Club.DefaultPlayers, cfg.Club.DefaultRatePerHour)
	defer days.Close()

	today := model.DayKey(time.Now())
	if err := days.SelectDate(ctx, today); err != nil {
		log.Fatal().Err(err).Str("key", today).Msg("Failed to load today's document")
	}

	log.Info().
		Str("key", today).
		Str("policy", string(cfg.Club.AllocationPolicy())).
		Msg("Day service ready")

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:     cfg,
		DayService: days,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	telegramBot.Stop()
	cancel()
	log.Info().Msg("Bot stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create the day document table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS badminton_days (
			id TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_badminton_days_updated ON badminton_days(updated_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: badminton_days table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
