package account

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contentforge/billing-api/config"
	"github.com/contentforge/billing-api/internal/model"
	"github.com/contentforge/billing-api/internal/repository"
	apperrors "github.com/contentforge/billing-api/pkg/errors"
	"github.com/contentforge/billing-api/pkg/logger"
)

type AccountServicer interface {
	CreateAccount(ctx context.Context, req *model.CreateAccountRequest) (*model.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
}

type Service struct {
	accountRepo repository.AccountRepository
	logger      *logger.Logger
	cfg         config.BillingConfig
	now         func() time.Time
}

func NewService(accountRepo repository.AccountRepository, logger *logger.Logger, cfg config.BillingConfig) *Service {
	return &Service{
		accountRepo: accountRepo,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// CreateAccount provisions a new account in its trial window. The quota
// fields are denormalized from config at creation so a later catalog
// change cannot shift the limit under an in-progress period.
func (s *Service) CreateAccount(ctx context.Context, req *model.CreateAccountRequest) (*model.Account, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, apperrors.BadRequest("email is required", nil)
	}

	now := s.now()
	account := &model.Account{
		ID:              uuid.New(),
		Email:           email,
		Plan:            model.PlanTrial,
		TrialActive:     true,
		TrialExpires:    now.Add(time.Duration(s.cfg.TrialDays) * 24 * time.Hour),
		QuotaLimit:      s.cfg.TrialQuota,
		QuotaUsed:       0,
		NextBillingDate: now.Add(s.cfg.Interval()),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		"account_id", account.ID.String(), "trial_expires", account.TrialExpires)

	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return s.accountRepo.Get(ctx, id)
}
