package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contentforge/billing-api/config"
	"github.com/contentforge/billing-api/internal/model"
	"github.com/contentforge/billing-api/internal/plan"
	"github.com/contentforge/billing-api/internal/repository"
	"github.com/contentforge/billing-api/internal/email"
	apperrors "github.com/contentforge/billing-api/pkg/errors"
	"github.com/contentforge/billing-api/pkg/logger"
	"github.com/contentforge/billing-api/pkg/messaging"
	"github.com/contentforge/billing-api/pkg/metrics"
)

// Service reconciles payment processor events into durable, exactly-once
// plan transitions on the account ledger.
type Service struct {
	accountRepo repository.AccountRepository
	paymentRepo repository.PaymentRepository
	processor   Processor
	catalog     *plan.Catalog
	broker      messaging.Broker
	emailSvc    email.Service
	logger      *logger.Logger
	metrics     *metrics.Metrics
	cfg         config.BillingConfig
	now         func() time.Time
}

func NewService(
	accountRepo repository.AccountRepository,
	paymentRepo repository.PaymentRepository,
	processor Processor,
	catalog *plan.Catalog,
	broker messaging.Broker,
	emailSvc email.Service,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	cfg config.BillingConfig,
) *Service {
	return &Service{
		accountRepo: accountRepo,
		paymentRepo: paymentRepo,
		processor:   processor,
		catalog:     catalog,
		broker:      broker,
		emailSvc:    emailSvc,
		logger:      logger,
		metrics:     metrics,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Checkout is the handle the client needs to complete payment on the
// processor's hosted page.
type Checkout struct {
	Reference    string `json:"reference"`
	ClientSecret string `json:"client_secret"`
}

// VerifyResult is the ledger state after reconciling one payment event.
// Duplicate marks a confirmation that had already been applied; the state
// returned is the prior result, unchanged.
type VerifyResult struct {
	Account   *model.Account       `json:"account"`
	Payment   *model.PaymentRecord `json:"payment"`
	Duplicate bool                 `json:"duplicate"`
}

// CreateCheckout creates a payment intent for the given plan. The account
// id, email and target plan ride along as intent metadata so verification
// can read them back from the processor instead of trusting the client.
func (s *Service) CreateCheckout(ctx context.Context, accountID uuid.UUID, amountCents int64, target model.Plan) (*Checkout, error) {
	if !target.Purchasable() {
		return nil, apperrors.BadRequest(fmt.Sprintf("plan %q cannot be purchased", target), nil)
	}

	terms, err := s.catalog.TermsFor(target)
	if err != nil {
		return nil, apperrors.BadRequest("unknown plan", err)
	}
	if amountCents != terms.PriceCents {
		return nil, apperrors.BadRequest(
			fmt.Sprintf("amount %d does not match the %s plan price", amountCents, target), nil)
	}

	account, err := s.accountRepo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	intent, err := s.processor.CreateIntent(ctx, terms.PriceCents, s.cfg.Currency, map[string]string{
		MetaAccountID: account.ID.String(),
		MetaEmail:     account.Email,
		MetaPlan:      target.String(),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CheckoutsCreated.Inc()
	s.logger.Info("checkout created",
		"account_id", account.ID.String(), "plan", target.String(), "reference", intent.ID)

	return &Checkout{Reference: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// VerifyPayment retrieves the authoritative intent state from the
// processor and, when it succeeded, applies the purchased plan to the
// ledger exactly once. Delivering the same confirmation again returns the
// prior result without another mutation.
func (s *Service) VerifyPayment(ctx context.Context, reference string) (*VerifyResult, error) {
	intent, err := s.processor.RetrieveIntent(ctx, reference)
	if err != nil {
		return nil, err
	}

	if intent.Status != IntentStatusSucceeded {
		s.metrics.PaymentsVerified.WithLabelValues("not_confirmed").Inc()
		return nil, apperrors.PaymentNotConfirmed(intent.Status)
	}

	accountID, err := uuid.Parse(intent.Metadata[MetaAccountID])
	if err != nil {
		return nil, apperrors.BadRequest("payment intent carries no account id", err)
	}
	target := model.Plan(intent.Metadata[MetaPlan])
	terms, err := s.catalog.TermsFor(target)
	if err != nil {
		return nil, apperrors.BadRequest("payment intent carries an unknown plan", err)
	}

	record := &model.PaymentRecord{
		ID:          uuid.New(),
		AccountID:   accountID,
		Reference:   intent.ID,
		Plan:        target,
		AmountCents: intent.AmountCents,
		Currency:    intent.Currency,
		Status:      model.PaymentStatusSuccess,
		CreatedAt:   s.now(),
	}

	return s.applyChange(ctx, &model.PlanChange{
		AccountID:       accountID,
		Plan:            target,
		QuotaLimit:      terms.QuotaLimit,
		NextBillingDate: s.now().Add(s.cfg.Interval()),
		Payment:         record,
	})
}

// EnrollFreePlan puts the account on the Free tier, but only when its
// renewal is actually due. The synthetic payment reference is derived
// from the account and the period it closes out, so a client retry lands
// on the already-applied record instead of enrolling twice.
func (s *Service) EnrollFreePlan(ctx context.Context, accountID uuid.UUID) (*VerifyResult, error) {
	account, err := s.accountRepo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if !account.RenewalDue(s.now()) {
		return nil, apperrors.RenewalNotDue()
	}

	terms, err := s.catalog.TermsFor(model.PlanFree)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	reference := fmt.Sprintf("free_%s_%s",
		account.ID, account.NextBillingDate.UTC().Format("2006-01-02"))

	record := &model.PaymentRecord{
		ID:          uuid.New(),
		AccountID:   account.ID,
		Reference:   reference,
		Plan:        model.PlanFree,
		AmountCents: 0,
		Currency:    s.cfg.Currency,
		Status:      model.PaymentStatusSuccess,
		CreatedAt:   s.now(),
	}

	return s.applyChange(ctx, &model.PlanChange{
		AccountID:       account.ID,
		Plan:            model.PlanFree,
		QuotaLimit:      terms.QuotaLimit,
		NextBillingDate: s.now().Add(s.cfg.Interval()),
		Payment:         record,
	})
}

// ListPayments returns the account's append-only payment history.
func (s *Service) ListPayments(ctx context.Context, accountID uuid.UUID) ([]*model.PaymentRecord, error) {
	if _, err := s.accountRepo.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return s.paymentRepo.ListForAccount(ctx, accountID)
}

func (s *Service) applyChange(ctx context.Context, change *model.PlanChange) (*VerifyResult, error) {
	applied, err := s.accountRepo.ApplyPlanChange(ctx, change)
	if err != nil {
		return nil, err
	}

	if !applied {
		// Same reference seen before: report the stored outcome.
		prior, err := s.paymentRepo.GetByReference(ctx, change.Payment.Reference)
		if err != nil {
			return nil, err
		}
		account, err := s.accountRepo.Get(ctx, prior.AccountID)
		if err != nil {
			return nil, err
		}
		s.metrics.PaymentsVerified.WithLabelValues("duplicate").Inc()
		s.logger.Info("payment already applied",
			"reference", change.Payment.Reference, "account_id", account.ID.String())
		return &VerifyResult{Account: account, Payment: prior, Duplicate: true}, nil
	}

	account, err := s.accountRepo.Get(ctx, change.AccountID)
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentsVerified.WithLabelValues("applied").Inc()
	s.logger.Info("plan change applied",
		"account_id", account.ID.String(), "plan", change.Plan.String(),
		"reference", change.Payment.Reference)

	if err := s.broker.Publish(ctx, messaging.ChannelPlanChanged, messaging.BillingEvent{
		AccountID: account.ID,
		Plan:      change.Plan.String(),
		Reference: change.Payment.Reference,
		At:        s.now(),
	}); err != nil {
		s.logger.Error(err, "failed to publish plan change event")
	}

	if change.Payment.AmountCents > 0 {
		if err := s.emailSvc.SendReceipt(ctx, account.Email, change.Plan.String(),
			change.Payment.AmountCents, change.Payment.Currency); err != nil {
			s.logger.Error(err, "failed to send payment receipt",
				"account_id", account.ID.String())
		}
	}

	return &VerifyResult{Account: account, Payment: change.Payment, Duplicate: false}, nil
}
