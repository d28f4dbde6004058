package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketstock/internal/app"
	"marketstock/internal/auth"
	"marketstock/internal/config"
	"marketstock/internal/handler"
	"marketstock/internal/logger"
	"marketstock/internal/server"
	"marketstock/internal/worker"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "marketstock-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional outside local dev
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateAPI(); err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.GoEnv)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, serviceName, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}()
	if err := a.Migrate(); err != nil {
		return err
	}

	tokens := auth.NewIssuer(cfg.JWTSecret, 15*time.Minute)
	e := server.New(server.Handlers{
		Products:     handler.NewProductHandler(a.Catalog),
		Checkout:     handler.NewCheckoutHandler(a.Checkout, a.Reservations),
		Payments:     handler.NewPaymentHandler(a.Checkout),
		Orders:       handler.NewOrderHandler(a.Orders),
		AdminProduct: handler.NewAdminProductHandler(a.Mutator, a.Ledger, a.Catalog),
		AdminOrder:   handler.NewAdminOrderHandler(a.AdminOrders, a.Reservations, a.Audit),
	}, server.Options{
		Tokens:        tokens,
		WebhookSecret: cfg.WebhookSecret,
		Log:           log.Named("http"),
	})

	sweeper := worker.NewSweeper(a.Reservations, cfg.SweepInterval, log.Named("sweeper"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, e, ":"+cfg.Port, log)
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	if a.Producer != nil {
		g.Go(func() error {
			return a.Producer.Run(gctx)
		})
	}

	log.Info("service started",
		zap.String("store", cfg.Store),
		zap.Duration("reservation_ttl", cfg.ReservationTTL),
		zap.Duration("sweep_interval", cfg.SweepInterval))
	return g.Wait()
}
