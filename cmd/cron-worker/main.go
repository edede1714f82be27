package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/merakimart/backend/internal/cart"
	"github.com/merakimart/backend/internal/catalog"
	"github.com/merakimart/backend/internal/coupons"
	"github.com/merakimart/backend/internal/cron"
	"github.com/merakimart/backend/internal/giftcards"
	"github.com/merakimart/backend/internal/loyalty"
	"github.com/merakimart/backend/internal/orders"
	"github.com/merakimart/backend/internal/settings"
	"github.com/merakimart/backend/internal/users"
	"github.com/merakimart/backend/pkg/config"
	"github.com/merakimart/backend/pkg/db"
	"github.com/merakimart/backend/pkg/logger"
	"github.com/merakimart/backend/pkg/metrics"
	"github.com/merakimart/backend/pkg/migrate"
	"github.com/merakimart/backend/pkg/outbox"
	"github.com/merakimart/backend/pkg/razorpay"
	"github.com/merakimart/backend/pkg/redis"
)

const lockKeyFormat = "mm:cron-worker:lock:%s"

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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	orderService, giftCardRepo, err := buildServices(cfg, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	sweepJob, err := cron.NewPendingPaymentSweepJob(orderService, cfg.Cron.PendingPaymentTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment sweep job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(gormDB, outbox.NewRepository(gormDB), cfg.Cron.OutboxRetention, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewGiftCardExpiryJob(giftCardRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gift card expiry job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob, retentionJob, expiryJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
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

// buildServices wires the slice of the domain the sweep jobs need. The order
// service pulls in the full checkout dependency set even though the worker
// only calls ExpirePendingPayments.
func buildServices(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (orders.Service, *giftcards.Repository, error) {
	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	couponRepo := coupons.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	giftCardRepo := giftcards.NewRepository(gormDB)

	settingsService, err := settings.NewService(settings.NewRepository(gormDB), logg)
	if err != nil {
		return nil, nil, err
	}
	giftCardService, err := giftcards.NewService(giftCardRepo, dbClient, outboxService)
	if err != nil {
		return nil, nil, err
	}
	loyaltyService, err := loyalty.NewService(loyalty.NewRepository(gormDB), couponRepo, dbClient, settingsService, outboxService)
	if err != nil {
		return nil, nil, err
	}
	razorpayClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		return nil, nil, err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(gormDB),
		Carts:     cart.NewRepository(gormDB),
		Coupons:   couponRepo,
		Products:  catalogRepo,
		Settings:  settingsService,
		GiftCards: giftCardService,
		Loyalty:   loyaltyService,
		Users:     users.NewRepository(gormDB),
		Gateway:   razorpayClient,
		Tx:        dbClient,
		Events:    outboxService,
	})
	if err != nil {
		return nil, nil, err
	}
	return orderService, giftCardRepo, nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
