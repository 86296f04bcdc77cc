package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopora/shopora-backend/api/controllers"
	"github.com/shopora/shopora-backend/api/middleware"
	"github.com/shopora/shopora-backend/internal/cancellations"
	cartsvc "github.com/shopora/shopora-backend/internal/cart"
	checkoutsvc "github.com/shopora/shopora-backend/internal/checkout"
	ordersvc "github.com/shopora/shopora-backend/internal/orders"
	paymentsvc "github.com/shopora/shopora-backend/internal/payments"
	"github.com/shopora/shopora-backend/internal/promotions"
	"github.com/shopora/shopora-backend/pkg/config"
	"github.com/shopora/shopora-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            pinger
	Redis         pinger
	Cart          cartsvc.Service
	Checkout      checkoutsvc.Service
	Orders        ordersvc.Service
	Payments      paymentsvc.Service
	Cancellations cancellations.Resolver
	Promotions    promotions.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartView(deps.Cart, logg))
			r.Post("/lines", controllers.CartAddLine(deps.Cart, logg))
			r.Patch("/lines/{lineId}", controllers.CartUpdateLine(deps.Cart, logg))
			r.Delete("/lines/{lineId}", controllers.CartRemoveLine(deps.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			r.Post("/{orderId}/status", controllers.OrderStatusUpdate(deps.Orders, logg))
			r.Post("/{orderId}/cancel-quote", controllers.OrderCancelQuote(deps.Orders, deps.Cancellations, logg))
			r.Post("/{orderId}/payment", controllers.PaymentCreate(deps.Payments, logg))
			r.Get("/{orderId}/payment", controllers.PaymentFetch(deps.Payments, logg))
		})

		r.Post("/payments/{paymentId}/details", controllers.PaymentDetailCreate(deps.Payments, logg))

		r.Get("/cancel-reasons", controllers.CancelReasonsList(deps.Cancellations, logg))

		r.Get("/promotions", controllers.PromotionsList(deps.Promotions, logg))
	})

	return r
}
