package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shopora/shopora-backend/internal/cancellations"
	"github.com/shopora/shopora-backend/internal/cron"
	ordersvc "github.com/shopora/shopora-backend/internal/orders"
	paymentsvc "github.com/shopora/shopora-backend/internal/payments"
	"github.com/shopora/shopora-backend/internal/promotions"
	"github.com/shopora/shopora-backend/internal/stock"
	"github.com/shopora/shopora-backend/pkg/config"
	"github.com/shopora/shopora-backend/pkg/db"
	"github.com/shopora/shopora-backend/pkg/logger"
	"github.com/shopora/shopora-backend/pkg/metrics"
	"github.com/shopora/shopora-backend/pkg/outbox"
	"github.com/shopora/shopora-backend/pkg/redis"
)

const lockKeyFormat = "shopora:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	resolver, err := cancellations.NewResolver(cancellations.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create cancellation resolver", err)
		os.Exit(1)
	}

	ordersRepo := ordersvc.NewRepository(gormDB)
	ordersService, err := ordersvc.NewService(ordersRepo, dbClient, publisher, stock.NewLedger(), resolver)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
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

	paymentJob, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
		Logger:   logg,
		Payments: paymentsService,
		Timeout:  cfg.Cron.ItemTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment expiry job", err)
		os.Exit(1)
	}

	promotionJob, err := cron.NewPromotionExpiryJob(cron.PromotionExpiryJobParams{
		Logger:     logg,
		Promotions: promotionsService,
		Timeout:    cfg.Cron.ItemTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(paymentJob, promotionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
