package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cardapy-backend/api/controllers"
	"github.com/angelmondragon/cardapy-backend/api/middleware"
	"github.com/angelmondragon/cardapy-backend/internal/cart"
	"github.com/angelmondragon/cardapy-backend/internal/catalog"
	"github.com/angelmondragon/cardapy-backend/internal/checkout"
	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/payments"
	"github.com/angelmondragon/cardapy-backend/internal/reviews"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/cardapy-backend/pkg/redis"
)

// Store is the slice of the redis client the HTTP layer needs.
type Store interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Binder resolves a subdomain to a bound tenant context.
type Binder interface {
	Bind(ctx context.Context, subdomain string) (*tenant.Context, error)
}

// Directory finds active tenants in the platform database.
type Directory interface {
	FindActiveBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
}

// Services are the domain services behind the handlers.
type Services struct {
	Catalog  catalog.Service
	Cart     cart.Service
	Checkout checkout.Service
	Orders   orders.Service
	Payments payments.Service
	Reviews  reviews.Service
}

type Params struct {
	Config    *config.Config
	Logger    *logger.Logger
	Metrics   *metrics.Platform
	Gatherer  prometheus.Gatherer
	DB        db.Pinger
	Store     Store
	Binder    Binder
	Directory Directory
	Services  Services
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	svc := p.Services
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	var redisPinger pkgredis.Pinger
	var idempotency pkgredis.IdempotencyStore
	var limiter Store
	if p.Store != nil {
		redisPinger, idempotency, limiter = p.Store, p.Store, p.Store
	}
	idem := middleware.Idempotency(idempotency, logg)
	checkoutLimit := middleware.RateLimit(middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.Window,
		cfg.RateLimit.CheckoutIPLimit,
		cfg.RateLimit.CheckoutSessionLimit,
	), limiter, logg)
	reviewLimit := middleware.RateLimit(middleware.NewRateLimitPolicy(
		"review",
		cfg.RateLimit.Window,
		cfg.RateLimit.ReviewIPLimit,
		cfg.RateLimit.ReviewSessionLimit,
	), limiter, logg)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.Metrics),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, redisPinger))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.With(middleware.WebhookTenant(p.Binder, logg)).
		Post("/webhook/payment", controllers.PaymentWebhook(svc.Payments, logg))

	r.Get("/api/restaurants/{subdomain}", controllers.RestaurantProfile(p.Directory, cfg, logg))

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.TenantContext(p.Binder, logg),
			middleware.Session(cfg.Session, logg),
		)

		r.Get("/", controllers.MenuIndex(svc.Catalog, logg))
		r.Get("/categories", controllers.MenuCategories(svc.Catalog, logg))
		r.Get("/categoria/{categoryId}", controllers.MenuCategory(svc.Catalog, logg))
		r.Get("/item/{itemId}", controllers.MenuItem(svc.Catalog, logg))
		r.Get("/buscar", controllers.MenuSearch(svc.Catalog, logg))
		r.Get("/sobre", controllers.RestaurantAbout(cfg, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(svc.Cart, logg))
			r.Delete("/", controllers.CartClear(svc.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svc.Cart, logg))
			r.Put("/items/{itemId}", controllers.CartSetQuantity(svc.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(svc.Cart, logg))
		})

		r.Get("/checkout", controllers.CheckoutSummary(svc.Checkout, logg))
		r.With(checkoutLimit, idem).Post("/checkout", controllers.CheckoutSubmit(svc.Checkout, logg))

		r.Route("/pedido/{orderId}", func(r chi.Router) {
			r.Get("/", controllers.OrderDetail(svc.Orders, logg))
			r.Get("/acompanhar", controllers.OrderTrack(svc.Orders, logg))
			r.Get("/pix.png", controllers.OrderPixQRCode(svc.Payments, logg))
			r.With(idem).Post("/cancel", controllers.OrderCancel(svc.Orders, logg))
		})

		r.Route("/pagamento", func(r chi.Router) {
			r.Get("/sucesso/{orderId}", controllers.PaymentReturn(svc.Orders, controllers.ReturnSuccess, logg))
			r.Get("/pendente/{orderId}", controllers.PaymentReturn(svc.Orders, controllers.ReturnPending, logg))
			r.Get("/falha/{orderId}", controllers.PaymentReturn(svc.Orders, controllers.ReturnFailure, logg))
		})

		r.With(reviewLimit).Post("/avaliar/{orderId}", controllers.ReviewSubmit(svc.Reviews, logg))
		r.Get("/avaliacoes", controllers.ReviewList(svc.Reviews, logg))

		r.Route("/staff", func(r chi.Router) {
			r.Use(middleware.StaffAuth(logg))
			r.Post("/orders/{orderId}/advance", controllers.StaffAdvanceOrder(svc.Orders, logg))
			r.With(idem).Post("/orders/{orderId}/cancel", controllers.StaffCancelOrder(svc.Orders, logg))
			r.Patch("/items/{itemId}/availability", controllers.StaffSetItemAvailability(svc.Catalog, logg))
			r.Post("/reviews/{reviewId}/approve", controllers.ReviewApprove(svc.Reviews, logg))
		})
	})

	return r
}
