package account

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentforge/billing-api/config"
	"github.com/contentforge/billing-api/internal/model"
	apperrors "github.com/contentforge/billing-api/pkg/errors"
	"github.com/contentforge/billing-api/pkg/logger"
)

type fakeAccountRepo struct {
	accounts map[uuid.UUID]*model.Account
}

func (f *fakeAccountRepo) Create(ctx context.Context, account *model.Account) error {
	copied := *account
	f.accounts[account.ID] = &copied
	return nil
}

func (f *fakeAccountRepo) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, ok := f.accounts[id]
	if !ok {
		return nil, apperrors.NotFound("account", nil)
	}
	copied := *account
	return &copied, nil
}

func (f *fakeAccountRepo) AdmitUsage(ctx context.Context, id uuid.UUID, trialQuota int) error {
	return errors.New("not implemented")
}

func (f *fakeAccountRepo) ApplyPlanChange(ctx context.Context, change *model.PlanChange) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *fakeAccountRepo) ResetPeriod(ctx context.Context, id uuid.UUID, interval time.Duration) error {
	return errors.New("not implemented")
}

func (f *fakeAccountRepo) ExpireTrials(ctx context.Context, now time.Time, freeQuota int) ([]uuid.UUID, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAccountRepo) RolloverDue(ctx context.Context, now time.Time, interval time.Duration) ([]uuid.UUID, error) {
	return nil, errors.New("not implemented")
}

func newTestService(repo *fakeAccountRepo) *Service {
	svc := NewService(
		repo,
		logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}),
		config.BillingConfig{TrialDays: 3, TrialQuota: 100, BillingIntervalDays: 30, Currency: "usd"},
	)
	return svc
}

func TestCreateAccountStartsTrial(t *testing.T) {
	repo := &fakeAccountRepo{accounts: make(map[uuid.UUID]*model.Account)}
	svc := newTestService(repo)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	account, err := svc.CreateAccount(context.Background(), &model.CreateAccountRequest{Email: "  user@example.com "})
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", account.Email)
	assert.Equal(t, model.PlanTrial, account.Plan)
	assert.True(t, account.TrialActive)
	assert.Equal(t, fixed.Add(3*24*time.Hour), account.TrialExpires)
	assert.Equal(t, 100, account.QuotaLimit)
	assert.Equal(t, 0, account.QuotaUsed)
	assert.Equal(t, fixed.Add(30*24*time.Hour), account.NextBillingDate)

	stored, err := svc.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, stored.ID)
}

func TestCreateAccountRequiresEmail(t *testing.T) {
	repo := &fakeAccountRepo{accounts: make(map[uuid.UUID]*model.Account)}
	svc := newTestService(repo)

	_, err := svc.CreateAccount(context.Background(), &model.CreateAccountRequest{Email: "   "})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
	assert.Empty(t, repo.accounts)
}

func TestGetAccountUnknown(t *testing.T) {
	repo := &fakeAccountRepo{accounts: make(map[uuid.UUID]*model.Account)}
	svc := newTestService(repo)

	_, err := svc.GetAccount(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
