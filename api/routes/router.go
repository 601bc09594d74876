package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hotmess/hotmess-backend/api/controllers"
	webhookcontrollers "github.com/hotmess/hotmess-backend/api/controllers/webhooks"
	"github.com/hotmess/hotmess-backend/api/middleware"
	"github.com/hotmess/hotmess-backend/internal/checkout"
	"github.com/hotmess/hotmess-backend/internal/connect"
	"github.com/hotmess/hotmess-backend/internal/escrow"
	"github.com/hotmess/hotmess-backend/internal/ledger"
	"github.com/hotmess/hotmess-backend/internal/notifications"
	"github.com/hotmess/hotmess-backend/internal/pickups"
	"github.com/hotmess/hotmess-backend/pkg/config"
	"github.com/hotmess/hotmess-backend/pkg/logger"
	"github.com/hotmess/hotmess-backend/pkg/redis"
)

// Dependencies is everything the HTTP surface needs. Nil services make their
// routes fail closed with 500.
type Dependencies struct {
	DB    controllers.Pinger
	Redis *redis.Client

	Checkout      checkout.Service
	StripeWebhook webhookcontrollers.StripeWebhookService
	ReceiptGuard  webhookcontrollers.ReceiptGuard
	Escrow        escrow.Service
	Pickups       pickups.Service
	Connect       connect.Service
	Ledger        ledger.Service
	Notifications notifications.Service

	// Gatherer backs /metrics; defaults to the global registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	var store redis.IdempotencyStore
	if deps.Redis != nil {
		store = deps.Redis
	}
	idempotent := middleware.Idempotency(store, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, cfg.Stripe.Secret, deps.ReceiptGuard, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			// Idempotency runs inline so it sees the full route pattern.
			r.With(idempotent).Post("/checkout", controllers.Checkout(deps.Checkout, logg))

			r.Route("/escrow", func(r chi.Router) {
				r.With(idempotent).Post("/release", controllers.ReleaseEscrow(deps.Escrow, logg))
				r.With(idempotent).Post("/{orderId}/pickup-beacons", controllers.CreatePickupBeacon(deps.Pickups, logg))
			})
			r.With(idempotent).Post("/pickups/confirm", controllers.ConfirmPickup(deps.Pickups, logg))

			r.Route("/connect", func(r chi.Router) {
				r.With(idempotent).Post("/onboard", controllers.ConnectOnboard(deps.Connect, logg))
				r.Get("/status", controllers.ConnectStatus(deps.Connect, logg))
			})

			r.Get("/wallet", controllers.Wallet(deps.Ledger, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.With(idempotent).Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
				r.With(idempotent).Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			})
		})
	})

	return r
}
