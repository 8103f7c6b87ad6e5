package sweeper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/contentforge/billing-api/config"
	"github.com/contentforge/billing-api/internal/email"
	"github.com/contentforge/billing-api/internal/model"
	"github.com/contentforge/billing-api/internal/plan"
	"github.com/contentforge/billing-api/internal/repository"
	"github.com/contentforge/billing-api/pkg/logger"
	"github.com/contentforge/billing-api/pkg/messaging"
	"github.com/contentforge/billing-api/pkg/metrics"
)

// Config holds the sweep schedules in cron syntax.
type Config struct {
	TrialSchedule    string
	RolloverSchedule string
}

func DefaultConfig() Config {
	return Config{
		// Trial boundaries are per-account and arbitrary, so sweep often.
		TrialSchedule: "@hourly",
		// Billing periods are monthly; a daily pass is enough.
		RolloverSchedule: "@daily",
	}
}

// Sweeper runs the unattended time-driven ledger transitions: trial
// expiry and billing-period rollover. Both sweeps are single bulk
// conditional updates and re-running either is a no-op.
type Sweeper struct {
	accountRepo repository.AccountRepository
	catalog     *plan.Catalog
	broker      messaging.Broker
	emailSvc    email.Service
	logger      *logger.Logger
	metrics     *metrics.Metrics
	billing     config.BillingConfig
	cfg         Config
	cron        *cron.Cron
}

func New(
	accountRepo repository.AccountRepository,
	catalog *plan.Catalog,
	broker messaging.Broker,
	emailSvc email.Service,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	billing config.BillingConfig,
	cfg Config,
) *Sweeper {
	return &Sweeper{
		accountRepo: accountRepo,
		catalog:     catalog,
		broker:      broker,
		emailSvc:    emailSvc,
		logger:      logger,
		metrics:     metrics,
		billing:     billing,
		cfg:         cfg,
		cron:        cron.New(),
	}
}

// Start registers the sweep schedules and runs the cron loop until ctx is
// cancelled. Both sweeps also run once immediately so a restarted sweeper
// catches up without waiting for the next tick.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.TrialSchedule, func() { s.runTrialSweep(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.RolloverSchedule, func() { s.runRolloverSweep(ctx) }); err != nil {
		return err
	}

	s.runTrialSweep(ctx)
	s.runRolloverSweep(ctx)

	s.cron.Start()
	s.logger.Info("sweeper started",
		"trial_schedule", s.cfg.TrialSchedule,
		"rollover_schedule", s.cfg.RolloverSchedule)

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("sweeper stopped")
	return nil
}

func (s *Sweeper) runTrialSweep(ctx context.Context) {
	timer := prometheus.NewTimer(s.metrics.SweepDuration.WithLabelValues("trial_expiry"))
	defer timer.ObserveDuration()

	// Expired trials land on the Free tier.
	terms, err := s.catalog.TermsFor(model.PlanFree)
	if err != nil {
		s.logger.Error(err, "free plan missing from catalog")
		return
	}

	ids, err := s.accountRepo.ExpireTrials(ctx, time.Now(), terms.QuotaLimit)
	if err != nil {
		s.logger.Error(err, "trial expiry sweep failed")
		return
	}
	if len(ids) == 0 {
		return
	}

	s.metrics.SweepAccounts.WithLabelValues("trial_expiry").Add(float64(len(ids)))
	s.logger.Info("trial expiry sweep finished", "expired", len(ids))

	for _, id := range ids {
		if err := s.broker.Publish(ctx, messaging.ChannelTrialExpired, messaging.BillingEvent{
			AccountID: id,
			At:        time.Now(),
		}); err != nil {
			s.logger.Error(err, "failed to publish trial expiry event", "account_id", id.String())
		}

		account, err := s.accountRepo.Get(ctx, id)
		if err != nil {
			s.logger.Error(err, "failed to load expired account", "account_id", id.String())
			continue
		}
		if err := s.emailSvc.SendTrialExpired(ctx, account.Email); err != nil {
			s.logger.Error(err, "failed to send trial expiry notice", "account_id", id.String())
		}
	}
}

func (s *Sweeper) runRolloverSweep(ctx context.Context) {
	timer := prometheus.NewTimer(s.metrics.SweepDuration.WithLabelValues("rollover"))
	defer timer.ObserveDuration()

	ids, err := s.accountRepo.RolloverDue(ctx, time.Now(), s.billing.Interval())
	if err != nil {
		s.logger.Error(err, "billing rollover sweep failed")
		return
	}
	if len(ids) == 0 {
		return
	}

	s.metrics.SweepAccounts.WithLabelValues("rollover").Add(float64(len(ids)))
	s.logger.Info("billing rollover sweep finished", "rolled", len(ids))

	for _, id := range ids {
		if err := s.broker.Publish(ctx, messaging.ChannelPeriodRolled, messaging.BillingEvent{
			AccountID: id,
			At:        time.Now(),
		}); err != nil {
			s.logger.Error(err, "failed to publish rollover event", "account_id", id.String())
		}
	}
}
