package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/contentforge/billing-api/internal/model"
)

// All repository interfaces in one file
type (
	// AccountRepository is the account ledger: the single durable source
	// of truth for plan, quota and billing-cycle state.
	AccountRepository interface {
		Create(ctx context.Context, account *model.Account) error
		Get(ctx context.Context, id uuid.UUID) (*model.Account, error)

		// AdmitUsage performs the quota check and the usage increment as
		// one conditional update. It returns ErrQuotaExceeded when the
		// account is at its effective limit and ErrNotFound when the
		// account does not exist; on success exactly one usage unit has
		// been consumed.
		AdmitUsage(ctx context.Context, id uuid.UUID, trialQuota int) error

		// ApplyPlanChange moves the account onto a new plan and records
		// the triggering payment in one transaction, keyed on the payment
		// reference. When the reference was already applied it makes no
		// mutation and reports applied=false.
		ApplyPlanChange(ctx context.Context, change *model.PlanChange) (applied bool, err error)

		// ResetPeriod zeroes quota_used and advances next_billing_date by
		// one interval.
		ResetPeriod(ctx context.Context, id uuid.UUID, interval time.Duration) error

		// ExpireTrials downgrades every account whose trial window has
		// closed to the Free tier. Idempotent: a second pass matches no
		// rows. Returns the expired account ids.
		ExpireTrials(ctx context.Context, now time.Time, freeQuota int) ([]uuid.UUID, error)

		// RolloverDue resets quota and advances the billing date for every
		// account whose period has ended, regardless of plan. Idempotent.
		RolloverDue(ctx context.Context, now time.Time, interval time.Duration) ([]uuid.UUID, error)
	}

	// PaymentRepository stores the append-only payment history.
	PaymentRepository interface {
		GetByReference(ctx context.Context, reference string) (*model.PaymentRecord, error)
		ListForAccount(ctx context.Context, accountID uuid.UUID) ([]*model.PaymentRecord, error)
	}

	// ContentRepository stores generated content per account.
	ContentRepository interface {
		Create(ctx context.Context, entry *model.ContentEntry) error
		ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*model.ContentEntry, error)
	}
)
