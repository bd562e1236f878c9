package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	billingcontrollers "github.com/tabletalk-ai/tabletalk-backend/api/controllers/billing"
	telephonycontrollers "github.com/tabletalk-ai/tabletalk-backend/api/controllers/telephony"
	"github.com/tabletalk-ai/tabletalk-backend/api/routes"
	billingsvc "github.com/tabletalk-ai/tabletalk-backend/internal/billing"
	calllogsvc "github.com/tabletalk-ai/tabletalk-backend/internal/calllogs"
	practicesvc "github.com/tabletalk-ai/tabletalk-backend/internal/practices"
	reservationsvc "github.com/tabletalk-ai/tabletalk-backend/internal/reservations"
	telephonysvc "github.com/tabletalk-ai/tabletalk-backend/internal/telephony"
	usagesvc "github.com/tabletalk-ai/tabletalk-backend/internal/usage"
	stripewebhook "github.com/tabletalk-ai/tabletalk-backend/internal/webhooks/stripe"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/config"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/db"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/metrics"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/migrate"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/redis"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/stripe"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/twilio"
)

const shutdownGrace = 15 * time.Second

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

	practiceService, err := practicesvc.NewService(practicesvc.ServiceParams{
		Repo:   practicesvc.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create practice service", err)
		os.Exit(1)
	}

	reservationRepo := reservationsvc.NewRepository(dbClient.DB())
	reservationService, err := reservationsvc.NewService(reservationsvc.ServiceParams{
		Repo:   reservationRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation service", err)
		os.Exit(1)
	}

	callLogRepo := calllogsvc.NewRepository(dbClient.DB())
	callLogService, err := calllogsvc.NewService(calllogsvc.ServiceParams{
		Repo:   callLogRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create call log service", err)
		os.Exit(1)
	}

	usageService, err := usagesvc.NewService(usagesvc.ServiceParams{
		Calls:        callLogRepo,
		Reservations: reservationRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	planCatalog := billingsvc.NewCatalog(cfg.Stripe)

	var (
		stripeClient         *stripe.Client
		billingService       billingcontrollers.CheckoutService
		stripeWebhookService *stripewebhook.Service
		stripeWebhookGuard   *stripewebhook.IdempotencyGuard
	)
	if cfg.Stripe.IsConfigured() {
		stripeClient, err = stripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe", err)
			os.Exit(1)
		}

		if cfg.App.PublicURL != "" {
			svc, err := billingsvc.NewService(billingsvc.ServiceParams{
				Practices: practiceService,
				Stripe:    billingsvc.NewStripeClient(stripeClient),
				Catalog:   planCatalog,
				PublicURL: cfg.App.PublicURL,
				Logger:    logg,
			})
			if err != nil {
				logg.Error(context.Background(), "failed to create billing service", err)
				os.Exit(1)
			}
			billingService = svc
		} else {
			logg.Warn(context.Background(), "public app url not set, checkout and portal disabled")
		}

		stripeWebhookService, err = stripewebhook.NewService(stripewebhook.ServiceParams{
			Practices: practiceService,
			Stripe:    stripewebhook.NewSubscriptionFetcher(),
			Catalog:   planCatalog,
			Logger:    logg,
			Metrics:   metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe webhook service", err)
			os.Exit(1)
		}

		stripeWebhookGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
		if err != nil {
			logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "stripe not configured, billing endpoints disabled")
	}

	var telephonyService telephonycontrollers.ProvisionService
	if cfg.Twilio.IsConfigured() && cfg.VoiceAgent.BaseURL != "" {
		twilioClient, err := twilio.NewClient(context.Background(), cfg.Twilio, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap twilio", err)
			os.Exit(1)
		}
		svc, err := telephonysvc.NewService(telephonysvc.ServiceParams{
			Practices:     practiceService,
			Twilio:        telephonysvc.NewTwilioNumberClient(twilioClient),
			Country:       twilioClient.Country(),
			VoiceAgentURL: cfg.VoiceAgent.BaseURL,
			Logger:        logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create telephony service", err)
			os.Exit(1)
		}
		telephonyService = svc
	} else {
		logg.Warn(context.Background(), "twilio or voice agent not configured, provisioning disabled")
	}

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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			practiceService,
			billingService,
			planCatalog,
			usageService,
			reservationService,
			callLogService,
			telephonyService,
			stripeClient,
			stripeWebhookService,
			stripeWebhookGuard,
		),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
