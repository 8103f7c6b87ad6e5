package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/contentforge/billing-api/config"
	"github.com/contentforge/billing-api/internal/email"
	"github.com/contentforge/billing-api/internal/plan"
	"github.com/contentforge/billing-api/internal/repository/postgres"
	"github.com/contentforge/billing-api/internal/sweeper"
	"github.com/contentforge/billing-api/pkg/logger"
	"github.com/contentforge/billing-api/pkg/messaging"
	redisBroker "github.com/contentforge/billing-api/pkg/messaging/redis"
	"github.com/contentforge/billing-api/pkg/metrics"
)

// sweeperEnv are the sweeper-only knobs, read straight from the
// environment so the schedules can differ per deployment without a
// config file change.
type sweeperEnv struct {
	TrialSchedule    string `envconfig:"SWEEP_TRIAL_SCHEDULE" default:"@hourly"`
	RolloverSchedule string `envconfig:"SWEEP_ROLLOVER_SCHEDULE" default:"@daily"`
	HealthPort       string `envconfig:"SWEEP_HEALTH_PORT" default:"8081"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var env sweeperEnv
	if err := envconfig.Process("", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to read sweeper environment")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	baseRepo := postgres.NewBaseRepository(db)
	accountRepo := postgres.NewAccountRepository(baseRepo)

	var broker messaging.Broker = messaging.NopBroker{}
	if cfg.Redis.Enabled {
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     5,
			MinIdleConns: 1,
		}, &log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()
	}

	setupHealthCheck(env.HealthPort)

	sw := sweeper.New(
		accountRepo,
		plan.Default(),
		broker,
		email.NewService(cfg.SMTP),
		appLogger,
		metrics.New("billing_sweeper"),
		cfg.Billing,
		sweeper.Config{
			TrialSchedule:    env.TrialSchedule,
			RolloverSchedule: env.RolloverSchedule,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sw.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("sweeper failed")
	}
}

func setupHealthCheck(port string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}
