package metering

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/contentforge/billing-api/config"
	"github.com/contentforge/billing-api/internal/generation"
	"github.com/contentforge/billing-api/internal/model"
	"github.com/contentforge/billing-api/internal/repository"
	apperrors "github.com/contentforge/billing-api/pkg/errors"
	"github.com/contentforge/billing-api/pkg/logger"
	"github.com/contentforge/billing-api/pkg/metrics"
)

// Service gates metered generation requests behind the account's quota.
//
// Admission and the usage increment are one conditional update at the
// store layer, so concurrent requests cannot slip past the limit
// together. The unit is charged on admission: a generation call that
// fails downstream has still consumed it. That keeps counting exact under
// concurrency at the cost of the occasional unit lost to an upstream
// outage.
type Service struct {
	accountRepo repository.AccountRepository
	contentRepo repository.ContentRepository
	generator   generation.Generator
	logger      *logger.Logger
	metrics     *metrics.Metrics
	cfg         config.BillingConfig
}

func NewService(
	accountRepo repository.AccountRepository,
	contentRepo repository.ContentRepository,
	generator generation.Generator,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	cfg config.BillingConfig,
) *Service {
	return &Service{
		accountRepo: accountRepo,
		contentRepo: contentRepo,
		generator:   generator,
		logger:      logger,
		metrics:     metrics,
		cfg:         cfg,
	}
}

// AdmitAndRun admits the request against the account's quota, runs the
// generation call, and stores the result in the account's history.
// Rejection surfaces ErrQuotaExceeded and leaves the ledger untouched.
func (s *Service) AdmitAndRun(ctx context.Context, accountID uuid.UUID, prompt string) (*model.ContentEntry, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperrors.BadRequest("prompt is required", nil)
	}

	if err := s.accountRepo.AdmitUsage(ctx, accountID, s.cfg.TrialQuota); err != nil {
		if apperrors.Is(err, apperrors.ErrQuotaExceeded) {
			s.metrics.AdmissionsTotal.WithLabelValues("rejected").Inc()
			s.logger.Warn("request limit reached", "account_id", accountID.String())
		}
		return nil, err
	}
	s.metrics.AdmissionsTotal.WithLabelValues("admitted").Inc()

	timer := prometheus.NewTimer(s.metrics.GenerationLatency)
	content, err := s.generator.Generate(ctx, prompt)
	timer.ObserveDuration()
	if err != nil {
		s.metrics.GenerationErrors.Inc()
		return nil, err
	}

	entry := &model.ContentEntry{
		ID:        uuid.New(),
		AccountID: accountID,
		Prompt:    prompt,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.contentRepo.Create(ctx, entry); err != nil {
		// The user already has their content; losing the history row is
		// not worth failing the request over.
		s.logger.Error(err, "failed to store content history",
			"account_id", accountID.String())
	}

	return entry, nil
}

// History lists the account's most recent generated content.
func (s *Service) History(ctx context.Context, accountID uuid.UUID, limit int) ([]*model.ContentEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if _, err := s.accountRepo.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return s.contentRepo.ListForAccount(ctx, accountID, limit)
}
