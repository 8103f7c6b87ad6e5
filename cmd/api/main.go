package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/contentforge/billing-api/config"
	"github.com/contentforge/billing-api/internal/email"
	"github.com/contentforge/billing-api/internal/generation"
	"github.com/contentforge/billing-api/internal/handler"
	accountHandler "github.com/contentforge/billing-api/internal/handler/account"
	billingHandler "github.com/contentforge/billing-api/internal/handler/billing"
	generationHandler "github.com/contentforge/billing-api/internal/handler/generation"
	"github.com/contentforge/billing-api/internal/middleware"
	"github.com/contentforge/billing-api/internal/payment"
	"github.com/contentforge/billing-api/internal/plan"
	"github.com/contentforge/billing-api/internal/repository/postgres"
	"github.com/contentforge/billing-api/internal/router"
	accountService "github.com/contentforge/billing-api/internal/service/account"
	billingService "github.com/contentforge/billing-api/internal/service/billing"
	meteringService "github.com/contentforge/billing-api/internal/service/metering"
	"github.com/contentforge/billing-api/pkg/logger"
	"github.com/contentforge/billing-api/pkg/messaging"
	redisBroker "github.com/contentforge/billing-api/pkg/messaging/redis"
	"github.com/contentforge/billing-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	accountRepo := postgres.NewAccountRepository(baseRepo)
	paymentRepo := postgres.NewPaymentRepository(baseRepo)
	contentRepo := postgres.NewContentRepository(baseRepo)

	// Shared collaborators
	catalog := plan.Default()
	appMetrics := metrics.New("billing_api")
	emailSvc := email.NewService(cfg.SMTP)
	processor := payment.NewStripeProcessor(cfg.Stripe)
	generator := generation.NewClient(cfg.Generation)

	var broker messaging.Broker = messaging.NopBroker{}
	if cfg.Redis.Enabled {
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     10,
			MinIdleConns: 2,
		}, &log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()
	}

	// Services
	accountSvc := accountService.NewService(accountRepo, appLogger, cfg.Billing)
	billingSvc := billingService.NewService(
		accountRepo, paymentRepo, processor, catalog,
		broker, emailSvc, appLogger, appMetrics, cfg.Billing,
	)
	meteringSvc := meteringService.NewService(
		accountRepo, contentRepo, generator, appLogger, appMetrics, cfg.Billing,
	)

	// Handlers and router
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT)
	r := router.NewRouter(
		authMiddleware,
		accountHandler.NewHandler(accountSvc),
		billingHandler.NewHandler(billingSvc),
		generationHandler.NewHandler(meteringSvc),
		handler.NewHandler(),
		catalog,
		router.Config{
			RateLimit: rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst: cfg.RateLimit.Burst,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
