package billing

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentforge/billing-api/config"
	"github.com/contentforge/billing-api/internal/model"
	"github.com/contentforge/billing-api/internal/plan"
	apperrors "github.com/contentforge/billing-api/pkg/errors"
	"github.com/contentforge/billing-api/pkg/logger"
	"github.com/contentforge/billing-api/pkg/messaging"
	"github.com/contentforge/billing-api/pkg/metrics"
)

// fakeLedger implements AccountRepository and PaymentRepository against
// in-memory maps, mirroring the store's conditional-update semantics.
type fakeLedger struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*model.Account
	payments map[string]*model.PaymentRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts: make(map[uuid.UUID]*model.Account),
		payments: make(map[string]*model.PaymentRecord),
	}
}

func (f *fakeLedger) Create(ctx context.Context, account *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *account
	f.accounts[account.ID] = &copied
	return nil
}

func (f *fakeLedger) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return nil, apperrors.NotFound("account", nil)
	}
	copied := *account
	return &copied, nil
}

func (f *fakeLedger) AdmitUsage(ctx context.Context, id uuid.UUID, trialQuota int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return apperrors.NotFound("account", nil)
	}
	if account.QuotaUsed >= account.EffectiveLimit(trialQuota) {
		return apperrors.QuotaExceeded()
	}
	account.QuotaUsed++
	return nil
}

func (f *fakeLedger) ApplyPlanChange(ctx context.Context, change *model.PlanChange) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.payments[change.Payment.Reference]; exists {
		return false, nil
	}
	account, ok := f.accounts[change.AccountID]
	if !ok {
		return false, apperrors.NotFound("account", nil)
	}
	copied := *change.Payment
	f.payments[change.Payment.Reference] = &copied
	account.Plan = change.Plan
	account.QuotaLimit = change.QuotaLimit
	account.QuotaUsed = 0
	account.TrialActive = false
	account.NextBillingDate = change.NextBillingDate
	return true, nil
}

func (f *fakeLedger) ResetPeriod(ctx context.Context, id uuid.UUID, interval time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return apperrors.NotFound("account", nil)
	}
	account.QuotaUsed = 0
	account.NextBillingDate = account.NextBillingDate.Add(interval)
	return nil
}

func (f *fakeLedger) ExpireTrials(ctx context.Context, now time.Time, freeQuota int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, account := range f.accounts {
		if account.TrialActive && account.TrialExpires.Before(now) {
			account.TrialActive = false
			account.Plan = model.PlanFree
			account.QuotaLimit = freeQuota
			ids = append(ids, account.ID)
		}
	}
	return ids, nil
}

func (f *fakeLedger) RolloverDue(ctx context.Context, now time.Time, interval time.Duration) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, account := range f.accounts {
		if account.NextBillingDate.Before(now) {
			account.QuotaUsed = 0
			account.NextBillingDate = account.NextBillingDate.Add(interval)
			ids = append(ids, account.ID)
		}
	}
	return ids, nil
}

func (f *fakeLedger) GetByReference(ctx context.Context, reference string) (*model.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[reference]
	if !ok {
		return nil, apperrors.NotFound("payment", nil)
	}
	copied := *payment
	return &copied, nil
}

func (f *fakeLedger) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]*model.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var payments []*model.PaymentRecord
	for _, payment := range f.payments {
		if payment.AccountID == accountID {
			copied := *payment
			payments = append(payments, &copied)
		}
	}
	return payments, nil
}

// fakeProcessor serves canned intents by id.
type fakeProcessor struct {
	intents map[string]*Intent
	err     error
	created []*Intent
}

func (f *fakeProcessor) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	intent := &Intent{
		ID:           "pi_" + uuid.NewString()[:8],
		ClientSecret: "secret_test",
		Status:       IntentStatusRequiresPaymentMethod,
		AmountCents:  amountCents,
		Currency:     currency,
		Metadata:     metadata,
	}
	f.created = append(f.created, intent)
	return intent, nil
}

func (f *fakeProcessor) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	intent, ok := f.intents[id]
	if !ok {
		return nil, apperrors.NotFound("payment intent", nil)
	}
	return intent, nil
}

type fakeEmail struct {
	receipts int
}

func (f *fakeEmail) SendReceipt(ctx context.Context, to string, plan string, amountCents int64, currency string) error {
	f.receipts++
	return nil
}

func (f *fakeEmail) SendTrialExpired(ctx context.Context, to string) error { return nil }

var testMetrics = metrics.New("billing_service_test")

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		TrialDays:           3,
		TrialQuota:          100,
		BillingIntervalDays: 30,
		Currency:            "usd",
	}
}

func newTestService(ledger *fakeLedger, processor *fakeProcessor) (*Service, *fakeEmail) {
	mail := &fakeEmail{}
	svc := NewService(
		ledger, ledger, processor, plan.Default(),
		messaging.NopBroker{}, mail,
		logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}),
		testMetrics, testBillingConfig(),
	)
	return svc, mail
}

func trialAccount(ledger *fakeLedger) *model.Account {
	account := &model.Account{
		ID:              uuid.New(),
		Email:           "user@example.com",
		Plan:            model.PlanTrial,
		TrialActive:     true,
		TrialExpires:    time.Now().Add(72 * time.Hour),
		QuotaLimit:      100,
		QuotaUsed:       3,
		NextBillingDate: time.Now().Add(30 * 24 * time.Hour),
		CreatedAt:       time.Now(),
	}
	ledger.Create(context.Background(), account)
	return account
}

func TestVerifyPaymentAppliesPlan(t *testing.T) {
	ledger := newFakeLedger()
	account := trialAccount(ledger)

	processor := &fakeProcessor{intents: map[string]*Intent{
		"pi_123": {
			ID:          "pi_123",
			Status:      IntentStatusSucceeded,
			AmountCents: 5000,
			Currency:    "usd",
			Metadata: map[string]string{
				MetaAccountID: account.ID.String(),
				MetaEmail:     account.Email,
				MetaPlan:      "Premium",
			},
		},
	}}
	svc, mail := newTestService(ledger, processor)

	result, err := svc.VerifyPayment(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, model.PlanPremium, result.Account.Plan)
	assert.Equal(t, 100, result.Account.QuotaLimit)
	assert.Equal(t, 0, result.Account.QuotaUsed)
	assert.False(t, result.Account.TrialActive)
	assert.True(t, result.Account.NextBillingDate.After(time.Now().Add(29*24*time.Hour)))
	assert.Equal(t, 1, mail.receipts)

	payments, err := svc.ListPayments(context.Background(), account.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "pi_123", payments[0].Reference)
	assert.Equal(t, model.PaymentStatusSuccess, payments[0].Status)
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	account := trialAccount(ledger)

	processor := &fakeProcessor{intents: map[string]*Intent{
		"pi_123": {
			ID:          "pi_123",
			Status:      IntentStatusSucceeded,
			AmountCents: 2000,
			Currency:    "usd",
			Metadata: map[string]string{
				MetaAccountID: account.ID.String(),
				MetaPlan:      "Basic",
			},
		},
	}}
	svc, mail := newTestService(ledger, processor)

	first, err := svc.VerifyPayment(context.Background(), "pi_123")
	require.NoError(t, err)

	second, err := svc.VerifyPayment(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Account.Plan, second.Account.Plan)
	assert.Equal(t, first.Account.QuotaLimit, second.Account.QuotaLimit)
	assert.Equal(t, first.Account.NextBillingDate, second.Account.NextBillingDate)

	payments, err := svc.ListPayments(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1, "duplicate verification must not append a second record")
	assert.Equal(t, 1, mail.receipts)
}

func TestVerifyPaymentNotConfirmed(t *testing.T) {
	ledger := newFakeLedger()
	account := trialAccount(ledger)

	processor := &fakeProcessor{intents: map[string]*Intent{
		"pi_456": {
			ID:     "pi_456",
			Status: IntentStatusRequiresPaymentMethod,
			Metadata: map[string]string{
				MetaAccountID: account.ID.String(),
				MetaPlan:      "Premium",
			},
		},
	}}
	svc, _ := newTestService(ledger, processor)

	_, err := svc.VerifyPayment(context.Background(), "pi_456")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrPaymentNotConfirmed))

	// No mutation happened.
	after, err := ledger.Get(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanTrial, after.Plan)
	assert.True(t, after.TrialActive)
	assert.Equal(t, account.QuotaUsed, after.QuotaUsed)
}

func TestVerifyPaymentUnknownAccount(t *testing.T) {
	ledger := newFakeLedger()
	processor := &fakeProcessor{intents: map[string]*Intent{
		"pi_789": {
			ID:     "pi_789",
			Status: IntentStatusSucceeded,
			Metadata: map[string]string{
				MetaAccountID: uuid.NewString(),
				MetaPlan:      "Basic",
			},
		},
	}}
	svc, _ := newTestService(ledger, processor)

	_, err := svc.VerifyPayment(context.Background(), "pi_789")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestVerifyPaymentProcessorDown(t *testing.T) {
	ledger := newFakeLedger()
	trialAccount(ledger)
	processor := &fakeProcessor{err: apperrors.UpstreamUnavailable("payment processor", errors.New("connection refused"))}
	svc, _ := newTestService(ledger, processor)

	_, err := svc.VerifyPayment(context.Background(), "pi_000")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUpstreamUnavailable))
}

func TestCreateCheckout(t *testing.T) {
	ledger := newFakeLedger()
	account := trialAccount(ledger)
	processor := &fakeProcessor{}
	svc, _ := newTestService(ledger, processor)

	checkout, err := svc.CreateCheckout(context.Background(), account.ID, 2000, model.PlanBasic)
	require.NoError(t, err)
	assert.NotEmpty(t, checkout.Reference)
	assert.NotEmpty(t, checkout.ClientSecret)

	require.Len(t, processor.created, 1)
	intent := processor.created[0]
	assert.Equal(t, account.ID.String(), intent.Metadata[MetaAccountID])
	assert.Equal(t, "Basic", intent.Metadata[MetaPlan])
	assert.Equal(t, int64(2000), intent.AmountCents)
}

func TestCreateCheckoutRejectsBadInput(t *testing.T) {
	ledger := newFakeLedger()
	account := trialAccount(ledger)
	svc, _ := newTestService(ledger, &fakeProcessor{})

	_, err := svc.CreateCheckout(context.Background(), account.ID, 2000, model.PlanFree)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest), "free plan is not purchasable")

	_, err = svc.CreateCheckout(context.Background(), account.ID, 999, model.PlanBasic)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest), "amount must match the plan price")

	_, err = svc.CreateCheckout(context.Background(), uuid.New(), 2000, model.PlanBasic)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestEnrollFreePlan(t *testing.T) {
	ledger := newFakeLedger()
	account := trialAccount(ledger)

	// Trial has run out; the account is due.
	account.TrialExpires = time.Now().Add(-time.Hour)
	ledger.accounts[account.ID].TrialExpires = account.TrialExpires

	svc, _ := newTestService(ledger, &fakeProcessor{})

	result, err := svc.EnrollFreePlan(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, result.Account.Plan)
	assert.Equal(t, 5, result.Account.QuotaLimit)
	assert.Equal(t, 0, result.Account.QuotaUsed)
	assert.Equal(t, int64(0), result.Payment.AmountCents)

	// Renewal is no longer due; the retry cannot enroll twice.
	_, err = svc.EnrollFreePlan(context.Background(), account.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrRenewalNotDue))

	payments, err := svc.ListPayments(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestEnrollFreePlanNotDue(t *testing.T) {
	ledger := newFakeLedger()
	account := trialAccount(ledger)
	svc, _ := newTestService(ledger, &fakeProcessor{})

	_, err := svc.EnrollFreePlan(context.Background(), account.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrRenewalNotDue))

	after, err := ledger.Get(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanTrial, after.Plan)
}

func TestEnrollFreePlanDuplicateReference(t *testing.T) {
	ledger := newFakeLedger()
	account := trialAccount(ledger)
	account.TrialExpires = time.Now().Add(-time.Hour)
	ledger.accounts[account.ID].TrialExpires = account.TrialExpires

	svc, _ := newTestService(ledger, &fakeProcessor{})

	first, err := svc.EnrollFreePlan(context.Background(), account.ID)
	require.NoError(t, err)

	// Simulate a concurrent retry that raced the first application: the
	// ledger still carries the synthetic reference, so the change lands
	// on the duplicate path instead of enrolling again.
	ledger.accounts[account.ID].NextBillingDate = account.NextBillingDate
	ledger.accounts[account.ID].TrialActive = true

	second, err := svc.EnrollFreePlan(context.Background(), account.ID)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Payment.Reference, second.Payment.Reference)
}
