package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shopora/shopora-backend/api/routes"
	"github.com/shopora/shopora-backend/internal/cancellations"
	cartsvc "github.com/shopora/shopora-backend/internal/cart"
	checkoutsvc "github.com/shopora/shopora-backend/internal/checkout"
	ordersvc "github.com/shopora/shopora-backend/internal/orders"
	paymentsvc "github.com/shopora/shopora-backend/internal/payments"
	"github.com/shopora/shopora-backend/internal/promotions"
	"github.com/shopora/shopora-backend/internal/stock"
	"github.com/shopora/shopora-backend/pkg/config"
	"github.com/shopora/shopora-backend/pkg/db"
	"github.com/shopora/shopora-backend/pkg/logger"
	"github.com/shopora/shopora-backend/pkg/outbox"
	"github.com/shopora/shopora-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	publisher := outbox.NewService(logg)
	ledger := stock.NewLedger()

	cartRepo := cartsvc.NewRepository(gormDB)
	cartService, err := cartsvc.NewService(cartRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	resolver, err := cancellations.NewResolver(cancellations.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create cancellation resolver", err)
		os.Exit(1)
	}

	ordersRepo := ordersvc.NewRepository(gormDB)
	ordersService, err := ordersvc.NewService(ordersRepo, dbClient, publisher, ledger, resolver)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(cartRepo, ordersRepo, ledger, dbClient, publisher)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentsService, err := paymentsvc.NewService(
		paymentsvc.NewRepository(gormDB),
		ordersRepo,
		ordersService,
		dbClient,
		publisher,
		logg,
		cfg.Payment.ExpirationDays,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	promotionsService, err := promotions.NewService(gormDB, dbClient, publisher)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotions service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Cart:          cartService,
			Checkout:      checkoutService,
			Orders:        ordersService,
			Payments:      paymentsService,
			Cancellations: resolver,
			Promotions:    promotionsService,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shut down gracefully")
}
