package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mallhive/mallhive-backend/api/controllers"
	"github.com/mallhive/mallhive-backend/api/middleware"
	authsvc "github.com/mallhive/mallhive-backend/internal/auth"
	cartsvc "github.com/mallhive/mallhive-backend/internal/cart"
	checkoutsvc "github.com/mallhive/mallhive-backend/internal/checkout"
	orderssvc "github.com/mallhive/mallhive-backend/internal/orders"
	paymentssvc "github.com/mallhive/mallhive-backend/internal/payments"
	reportingsvc "github.com/mallhive/mallhive-backend/internal/reporting"
	"github.com/mallhive/mallhive-backend/pkg/config"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	"github.com/mallhive/mallhive-backend/pkg/logger"
	"github.com/mallhive/mallhive-backend/pkg/metrics"
	pkgredis "github.com/mallhive/mallhive-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Auth      authsvc.Service
	Cart      cartsvc.Service
	Checkout  checkoutsvc.Service
	Orders    orderssvc.Service
	Payments  paymentssvc.Service
	Reporting reportingsvc.Service
}

// Deps carries the infrastructure handles the router needs beyond services.
type Deps struct {
	Idempotency pkgredis.IdempotencyStore
	HTTPMetrics *metrics.HTTPMetrics
	Readiness   map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svcs Services, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}
	r.Use(middleware.CORS(cfg.CORS))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.HTTPMetrics != nil {
		r.Handle("/metrics", deps.HTTPMetrics.Handler())
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.Post("/login", controllers.AuthLogin(svcs.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, string(enums.UserRoleShopper)))
			r.Get("/", controllers.CartFetch(svcs.Cart, logg))
			r.Delete("/", controllers.CartClear(svcs.Cart, logg))
			r.Get("/totals", controllers.CartTotals(svcs.Cart, logg))
			r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(svcs.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(svcs.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, string(enums.UserRoleShopper))).
				Post("/", controllers.Checkout(svcs.Checkout, logg))
			r.Get("/", controllers.OrdersList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrdersDetail(svcs.Orders, logg))
			r.Put("/{orderId}/status", controllers.OrdersUpdateStatus(svcs.Orders, logg))
			r.Put("/{orderId}/cancel", controllers.OrdersCancel(svcs.Orders, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/{paymentId}", controllers.PaymentsDetail(svcs.Payments, logg))
			r.With(middleware.RequireRole(logg, string(enums.UserRoleAdmin))).
				Put("/{paymentId}/status", controllers.PaymentsUpdateStatus(svcs.Payments, logg))
			r.With(middleware.RequireRole(logg, string(enums.UserRoleAdmin))).
				Post("/{paymentId}/refund", controllers.PaymentsRefund(svcs.Payments, logg))
		})

		r.Route("/reports", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, string(enums.UserRoleManager), string(enums.UserRoleAdmin)))
			r.Get("/shops/{shopId}", controllers.ReportsShop(svcs.Reporting, logg))
			r.Get("/marketplace", controllers.ReportsMarketplace(svcs.Reporting, logg))
		})
	})

	return r
}
