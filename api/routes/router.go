package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/merakimart/backend/api/controllers"
	"github.com/merakimart/backend/api/middleware"
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
	"github.com/merakimart/backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Params bundles everything the HTTP surface needs.
type Params struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           *redis.Client
	PromRegistry    *prometheus.Registry
	HTTPMetrics     *metrics.HTTPMetrics
	Sessions        sessionManager
	AuthService     auth.Service
	RegisterService auth.RegisterService
	Users           *users.Repository
	Catalog         catalog.Service
	Cart            cart.Service
	Coupons         coupons.Service
	Orders          orders.Service
	Loyalty         loyalty.Service
	Reviews         reviews.Service
	GiftCards       giftcards.Service
	Settings        settings.Service
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.PromRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.PromRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.RegisterService, p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.Sessions, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Sessions, cfg.JWT, logg))
	})

	// Public storefront reads plus the gateway callbacks. The payment
	// endpoints authenticate by HMAC, not bearer token.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", controllers.CategoryList(p.Catalog, logg))
		r.Get("/products", controllers.ProductList(p.Catalog, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(p.Catalog, logg))
		r.Get("/products/{productId}/reviews", controllers.ProductReviews(p.Reviews, logg))
		r.Post("/giftcards/check", controllers.GiftCardCheck(p.GiftCards, logg))
		r.Post("/payments/razorpay/verify", controllers.RazorpayVerify(p.Orders, logg))
		r.Post("/payments/razorpay/webhook", controllers.RazorpayWebhook(p.Orders, cfg.Razorpay, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Group(func(r chi.Router) {
			r.Get("/v1/me", controllers.Me(p.Users, logg))

			r.Route("/v1/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(p.Cart, logg))
				r.Delete("/", controllers.CartClear(p.Cart, logg))
				r.Post("/items", controllers.CartAddItem(p.Cart, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateItem(p.Cart, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(p.Cart, logg))
				r.Post("/coupon", controllers.CartApplyCoupon(p.Cart, logg))
				r.Delete("/coupon", controllers.CartRemoveCoupon(p.Cart, logg))
			})

			r.Post("/v1/checkout", controllers.Checkout(p.Orders, logg))

			r.Route("/v1/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(p.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(p.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.OrderCancel(p.Orders, logg))
			})

			r.Route("/v1/loyalty", func(r chi.Router) {
				r.Get("/", controllers.LoyaltySummary(p.Loyalty, logg))
				r.Post("/redeem", controllers.LoyaltyRedeem(p.Loyalty, logg))
			})

			r.Route("/v1/reviews", func(r chi.Router) {
				r.Post("/", controllers.ReviewCreate(p.Reviews, logg))
				r.Patch("/{reviewId}", controllers.ReviewUpdate(p.Reviews, logg))
				r.Delete("/{reviewId}", controllers.ReviewDelete(p.Reviews, logg))
				r.Post("/{reviewId}/helpful", controllers.ReviewHelpful(p.Reviews, logg))
			})

			r.Post("/v1/giftcards/redeem", controllers.GiftCardRedeem(p.GiftCards, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", controllers.AdminCouponList(p.Coupons, logg))
				r.Post("/", controllers.AdminCouponCreate(p.Coupons, logg))
				r.Post("/bulk", controllers.AdminCouponBulk(p.Coupons, logg))
				r.Patch("/{couponId}/active", controllers.AdminCouponSetActive(p.Coupons, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrderList(p.Orders, logg))
				r.Get("/{orderId}", controllers.AdminOrderDetail(p.Orders, logg))
				r.Put("/{orderId}/status", controllers.AdminOrderUpdateStatus(p.Orders, logg))
			})

			r.Route("/giftcards", func(r chi.Router) {
				r.Post("/", controllers.AdminGiftCardIssue(p.GiftCards, logg))
				r.Post("/{giftCardId}/disable", controllers.AdminGiftCardDisable(p.GiftCards, logg))
				r.Get("/{giftCardId}/redemptions", controllers.AdminGiftCardRedemptions(p.GiftCards, logg))
			})

			r.Route("/reviews", func(r chi.Router) {
				r.Get("/", controllers.AdminReviewList(p.Reviews, logg))
				r.Patch("/{reviewId}/status", controllers.AdminReviewSetStatus(p.Reviews, logg))
			})

			r.Route("/catalog", func(r chi.Router) {
				r.Post("/categories", controllers.AdminCategoryCreate(p.Catalog, logg))
				r.Get("/products", controllers.AdminProductList(p.Catalog, logg))
				r.Post("/products", controllers.AdminProductCreate(p.Catalog, logg))
				r.Patch("/products/{productId}", controllers.AdminProductUpdate(p.Catalog, logg))
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", controllers.AdminSettingsFetch(p.Settings, logg))
				r.Put("/", controllers.AdminSettingsUpdate(p.Settings, logg))
			})
		})
	})

	return r
}
