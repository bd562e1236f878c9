package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tabletalk-ai/tabletalk-backend/api/controllers"
	billingcontrollers "github.com/tabletalk-ai/tabletalk-backend/api/controllers/billing"
	calllogcontrollers "github.com/tabletalk-ai/tabletalk-backend/api/controllers/calllogs"
	practicecontrollers "github.com/tabletalk-ai/tabletalk-backend/api/controllers/practices"
	reservationcontrollers "github.com/tabletalk-ai/tabletalk-backend/api/controllers/reservations"
	telephonycontrollers "github.com/tabletalk-ai/tabletalk-backend/api/controllers/telephony"
	webhookcontrollers "github.com/tabletalk-ai/tabletalk-backend/api/controllers/webhooks"
	"github.com/tabletalk-ai/tabletalk-backend/api/middleware"
	billingsvc "github.com/tabletalk-ai/tabletalk-backend/internal/billing"
	calllogsvc "github.com/tabletalk-ai/tabletalk-backend/internal/calllogs"
	practicesvc "github.com/tabletalk-ai/tabletalk-backend/internal/practices"
	reservationsvc "github.com/tabletalk-ai/tabletalk-backend/internal/reservations"
	usagesvc "github.com/tabletalk-ai/tabletalk-backend/internal/usage"
	stripewebhook "github.com/tabletalk-ai/tabletalk-backend/internal/webhooks/stripe"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/config"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/db"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/redis"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	practiceService *practicesvc.Service,
	billingService billingcontrollers.CheckoutService,
	planCatalog *billingsvc.Catalog,
	usageService *usagesvc.Service,
	reservationService *reservationsvc.Service,
	callLogService *calllogsvc.Service,
	telephonyService telephonycontrollers.ProvisionService,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.PublicURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/plans", billingcontrollers.Plans(planCatalog, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		if stripeWebhookService != nil && stripeClient != nil && stripeWebhookGuard != nil {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
		} else {
			r.Post("/stripe", webhookcontrollers.StripeWebhookUnavailable(logg))
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/practices", func(r chi.Router) {
			r.Get("/me", practicecontrollers.Me(practiceService, logg))
			r.Put("/me", practicecontrollers.SettingsUpdate(practiceService, logg))
			r.Post("/onboarding", practicecontrollers.OnboardingSave(practiceService, logg))
			r.Post("/onboarding/complete", practicecontrollers.OnboardingComplete(practiceService, logg))
		})

		r.Route("/billing", func(r chi.Router) {
			r.Get("/plans", billingcontrollers.Plans(planCatalog, logg))
			r.Get("/overview", billingcontrollers.Overview(practiceService, usageService, logg))
			r.Post("/checkout", billingcontrollers.CheckoutCreate(billingService, logg))
			r.Post("/portal", billingcontrollers.PortalCreate(billingService, logg))
		})

		r.Route("/telephony", func(r chi.Router) {
			provisionLimiter := func(next http.Handler) http.Handler { return next }
			if redisClient != nil {
				provisionLimiter = middleware.RateLimit(
					"provision",
					cfg.RateLimit.ProvisionLimit,
					cfg.RateLimit.ProvisionWindow,
					redisClient,
					logg,
				)
			}
			r.With(provisionLimiter).Post("/provision", telephonycontrollers.Provision(telephonyService, practiceService, logg))
			r.Get("/number", telephonycontrollers.NumberStatus(telephonyService, practiceService, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", reservationcontrollers.List(reservationService, practiceService, logg))
			r.Post("/", reservationcontrollers.Create(reservationService, practiceService, logg))
			r.Get("/{reservationId}", reservationcontrollers.Detail(reservationService, practiceService, logg))
			r.Patch("/{reservationId}", reservationcontrollers.Update(reservationService, practiceService, logg))
			r.Delete("/{reservationId}", reservationcontrollers.Delete(reservationService, practiceService, logg))
		})

		r.Route("/calls", func(r chi.Router) {
			r.Get("/", calllogcontrollers.List(callLogService, practiceService, logg))
			r.Post("/", calllogcontrollers.Record(callLogService, logg))
		})
	})

	return r
}
