package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/merakimart/backend/api/routes"
	"github.com/merakimart/backend/internal/auth"
	"github.com/merakimart/backend/internal/cart"
	"github.com/merakimart/backend/internal/catalog"
	"github.com/merakimart/backend/internal/coupons"
	"github.com/merakimart/backend/internal/giftcards"
	"github.com/merakimart/backend/internal/loyalty"
	"github.com/merakimart/backend/internal/orders"
	"github.com/merakimart/backend/internal/reviews"
	"github.com/merakimart/backend/internal/settings"
	"github.com/merakimart/backend/internal/users"
	"github.com/merakimart/backend/pkg/auth/session"
	"github.com/merakimart/backend/pkg/config"
	"github.com/merakimart/backend/pkg/db"
	"github.com/merakimart/backend/pkg/logger"
	"github.com/merakimart/backend/pkg/metrics"
	"github.com/merakimart/backend/pkg/migrate"
	"github.com/merakimart/backend/pkg/outbox"
	"github.com/merakimart/backend/pkg/razorpay"
	"github.com/merakimart/backend/pkg/redis"
)

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	razorpayClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create razorpay client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	usersRepo := users.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	couponRepo := coupons.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)

	authService, err := auth.NewService(auth.ServiceParams{
		Users:   usersRepo,
		Session: sessionManager,
		JWT:     cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		Tx:       dbClient,
		Password: cfg.Password,
		Events:   outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalogRepo, catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	couponService, err := coupons.NewService(couponRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, dbClient, catalogService, couponService)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	settingsService, err := settings.NewService(settings.NewRepository(gormDB), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}

	giftCardService, err := giftcards.NewService(giftcards.NewRepository(gormDB), dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create gift card service", err)
		os.Exit(1)
	}

	loyaltyService, err := loyalty.NewService(loyalty.NewRepository(gormDB), couponRepo, dbClient, settingsService, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create loyalty service", err)
		os.Exit(1)
	}

	reviewService, err := reviews.NewService(reviews.NewRepository(gormDB), dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create review service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(gormDB),
		Carts:     cartRepo,
		Coupons:   couponRepo,
		Products:  catalogRepo,
		Settings:  settingsService,
		GiftCards: giftCardService,
		Loyalty:   loyaltyService,
		Users:     usersRepo,
		Gateway:   razorpayClient,
		Tx:        dbClient,
		Events:    outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(promRegistry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			PromRegistry:    promRegistry,
			HTTPMetrics:     httpMetrics,
			Sessions:        sessionManager,
			AuthService:     authService,
			RegisterService: registerService,
			Users:           usersRepo,
			Catalog:         catalogService,
			Cart:            cartService,
			Coupons:         couponService,
			Orders:          orderService,
			Loyalty:         loyaltyService,
			Reviews:         reviewService,
			GiftCards:       giftCardService,
			Settings:        settingsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
