package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adisaputra/tokoku-backend/api/controllers"
	webhookcontrollers "github.com/adisaputra/tokoku-backend/api/controllers/webhooks"
	"github.com/adisaputra/tokoku-backend/api/middleware"
	"github.com/adisaputra/tokoku-backend/internal/cron"
	"github.com/adisaputra/tokoku-backend/internal/orders"
	"github.com/adisaputra/tokoku-backend/internal/payments"
	"github.com/adisaputra/tokoku-backend/internal/stock"
	"github.com/adisaputra/tokoku-backend/pkg/config"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger controllers.Pinger,
	redisPinger controllers.Pinger,
	holdManager *stock.HoldManager,
	ordersSvc orders.Service,
	ordersRepo orders.Repository,
	reconciler *payments.Reconciler,
	cronSvc *cron.Service,
	promRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})

	if promRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/reservations", controllers.CheckoutReserve(holdManager, logg))
			r.Delete("/reservations", controllers.CheckoutRelease(holdManager, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(ordersSvc, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersRepo, logg))
		})
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.Webhook.APIKey, logg))
		r.Post("/payment", webhookcontrollers.PaymentWebhook(reconciler, logg))
	})

	r.Route("/api/internal/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.Webhook.APIKey, logg))
		r.Post("/scheduler/run", controllers.SchedulerTrigger(cronSvc, logg))
	})

	return r
}
