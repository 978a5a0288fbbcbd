package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/config"
	"github.com/scooterparts/backend/internal/db"
	"github.com/scooterparts/backend/internal/erp"
	"github.com/scooterparts/backend/internal/expiry"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "reconciler").Logger()

	log.Info().Msg("Order expiration reconciler starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	rec := expiry.NewReconciler(expiry.NewStore(dbConn.Pool), cfg.Scheduler.PendingMaxAge, erp.NewClient(cfg.ERP))

	go run(ctx, rec, cfg.Scheduler.SweepInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")
	cancel()
}

// run sweeps once at startup and then on every tick. A tick that arrives
// while the previous sweep is still in flight is skipped; a failed sweep is
// only logged, the next tick retries.
func run(ctx context.Context, rec *expiry.Reconciler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	busy := make(chan struct{}, 1)

	sweep := func() {
		select {
		case busy <- struct{}{}:
		default:
			log.Warn().Msg("Previous sweep still running, skipping tick")
			return
		}
		defer func() { <-busy }()

		if err := rec.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("Sweep failed")
		}
	}

	go sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go sweep()
		}
	}
}
