package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiendly/tiendly-backend/api/controllers"
	discountcontrollers "github.com/tiendly/tiendly-backend/api/controllers/discounts"
	loyaltycontrollers "github.com/tiendly/tiendly-backend/api/controllers/loyalty"
	movementcontrollers "github.com/tiendly/tiendly-backend/api/controllers/movements"
	ordercontrollers "github.com/tiendly/tiendly-backend/api/controllers/orders"
	webhookcontrollers "github.com/tiendly/tiendly-backend/api/controllers/webhooks"
	"github.com/tiendly/tiendly-backend/api/middleware"
	"github.com/tiendly/tiendly-backend/internal/discounts"
	"github.com/tiendly/tiendly-backend/internal/loyalty"
	"github.com/tiendly/tiendly-backend/internal/movements"
	"github.com/tiendly/tiendly-backend/internal/orders"
	"github.com/tiendly/tiendly-backend/pkg/config"
	"github.com/tiendly/tiendly-backend/pkg/db"
	"github.com/tiendly/tiendly-backend/pkg/logger"
	"github.com/tiendly/tiendly-backend/pkg/redis"
	"github.com/tiendly/tiendly-backend/pkg/square"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	discountService discounts.Service,
	loyaltyService loyalty.Service,
	movementService movements.Service,
	orderService orders.Service,
	squareClient *square.Client,
	webhookGuard *webhookcontrollers.EventGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquarePayment(orderService, squareClient, webhookGuard, logg))
	})

	// Discount validation serves carts before login, so auth is optional.
	r.With(middleware.OptionalAuth(cfg.JWT, logg)).
		Post("/api/v1/discounts/validate", discountcontrollers.Validate(discountService, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/loyalty", func(r chi.Router) {
			r.Get("/balance", loyaltycontrollers.Balance(loyaltyService, logg))
			r.Get("/history", loyaltycontrollers.History(loyaltyService, logg))
			r.Post("/redeem", loyaltycontrollers.Redeem(loyaltyService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(orderService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(orderService, logg))
			r.With(middleware.RequireLedgerManager(logg)).
				Post("/{orderId}/pay", ordercontrollers.MarkPaid(orderService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLedgerManager(logg))

			r.Route("/discount-codes", func(r chi.Router) {
				r.Post("/", discountcontrollers.CreateCode(discountService, logg))
				r.Get("/by-code/{code}", discountcontrollers.GetCode(discountService, logg))
				r.Patch("/{codeId}", discountcontrollers.UpdateCode(discountService, logg))
				r.Get("/{codeId}/redemptions", discountcontrollers.ListRedemptions(discountService, logg))
			})

			r.Route("/movements", func(r chi.Router) {
				r.Post("/", movementcontrollers.Create(movementService, logg))
				r.Get("/", movementcontrollers.List(movementService, logg))
				r.Get("/{movementId}", movementcontrollers.Detail(movementService, logg))
				r.Post("/{movementId}/payments", movementcontrollers.RecordPayment(movementService, logg))
				r.Get("/{movementId}/payments", movementcontrollers.ListPayments(movementService, logg))
			})
		})
	})

	return r
}
