package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/auth"
	"github.com/scooterparts/backend/internal/cart"
	"github.com/scooterparts/backend/internal/catalog"
	"github.com/scooterparts/backend/internal/config"
	"github.com/scooterparts/backend/internal/db"
	"github.com/scooterparts/backend/internal/erp"
	"github.com/scooterparts/backend/internal/order"
	"github.com/scooterparts/backend/internal/payment"
	"github.com/scooterparts/backend/internal/shipping"
	"github.com/scooterparts/backend/internal/transport"
	"github.com/scooterparts/backend/internal/user"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "api").Logger()

	log.Info().Msg("API starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := context.Background()

	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	erpClient := erp.NewClient(cfg.ERP)
	gateway := payment.NewGatewayClient(cfg.Gateway)
	sessions := auth.NewSessionStore(rdb)

	userSvc := user.NewService(user.NewRepository(dbConn.Pool))
	catalogSvc := catalog.NewService(catalog.NewRepository(dbConn.Pool), erpClient)
	shippingCalc := shipping.NewCalculator()
	orderSvc := order.NewService(order.NewRepository(dbConn.Pool), catalogSvc, shippingCalc, gateway, erpClient)
	paymentSvc := payment.NewService(payment.NewRepository(dbConn.Pool), orderSvc)

	router := transport.NewRouter(transport.Handlers{
		Sessions: sessions,
		Auth:     auth.NewHandler(userSvc, sessions),
		Catalog:  catalog.NewHandler(catalogSvc),
		Shipping: shipping.NewHandler(shippingCalc),
		Cart:     cart.NewHandler(cart.NewStore(rdb)),
		Orders:   order.NewHandler(orderSvc, paymentSvc),
		Payments: payment.NewHandler(paymentSvc),
		Users:    user.NewHandler(userSvc),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
