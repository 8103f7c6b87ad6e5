package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/contentforge/billing-api/internal/model"
	"github.com/contentforge/billing-api/internal/repository"
	apperrors "github.com/contentforge/billing-api/pkg/errors"
)

type accountRepository struct {
	BaseRepository
}

func NewAccountRepository(base BaseRepository) repository.AccountRepository {
	return &accountRepository{base}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (
			id, email, plan, trial_active, trial_expires,
			quota_limit, quota_used, next_billing_date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.Plan,
		account.TrialActive,
		account.TrialExpires,
		account.QuotaLimit,
		account.QuotaUsed,
		account.NextBillingDate,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `
		SELECT id, email, plan, trial_active, trial_expires,
		       quota_limit, quota_used, next_billing_date,
		       created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var account model.Account
	err := r.db.GetContext(ctx, &account, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("account", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// AdmitUsage collapses check-quota-then-increment into one conditional
// update so two concurrent requests can never both pass the check on the
// same remaining unit. Trial accounts meter against trialQuota, everyone
// else against their stored quota_limit.
func (r *accountRepository) AdmitUsage(ctx context.Context, id uuid.UUID, trialQuota int) error {
	query := `
		UPDATE accounts
		SET quota_used = quota_used + 1, updated_at = $3
		WHERE id = $1
		  AND quota_used < (CASE WHEN trial_active THEN $2 ELSE quota_limit END)
	`
	result, err := r.db.ExecContext(ctx, query, id, trialQuota, time.Now())
	if err != nil {
		return fmt.Errorf("failed to admit usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Zero rows means either the account is at its limit or it does not
	// exist. Distinguish the two for the caller.
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check account existence: %w", err)
	}
	if !exists {
		return apperrors.NotFound("account", nil)
	}
	return apperrors.QuotaExceeded()
}

// ApplyPlanChange inserts the payment record and mutates the account in
// one transaction. The payment reference carries a unique constraint; a
// conflicting insert means the same processor confirmation was already
// applied, in which case the account row is left untouched.
func (r *accountRepository) ApplyPlanChange(ctx context.Context, change *model.PlanChange) (bool, error) {
	applied := false
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		p := change.Payment
		insert := `
			INSERT INTO payments (
				id, account_id, reference, plan, amount_cents,
				currency, status, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (reference) DO NOTHING
		`
		result, err := tx.ExecContext(ctx, insert,
			p.ID, p.AccountID, p.Reference, p.Plan,
			p.AmountCents, p.Currency, p.Status, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			// Duplicate delivery of the same confirmation.
			return nil
		}

		update := `
			UPDATE accounts
			SET plan = $2, quota_limit = $3, quota_used = 0,
			    trial_active = FALSE, next_billing_date = $4, updated_at = $5
			WHERE id = $1
		`
		result, err = tx.ExecContext(ctx, update,
			change.AccountID, change.Plan, change.QuotaLimit,
			change.NextBillingDate, time.Now(),
		)
		if err != nil {
			return fmt.Errorf("failed to apply plan change: %w", err)
		}

		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return apperrors.NotFound("account", nil)
		}

		applied = true
		return nil
	})
	return applied, err
}

func (r *accountRepository) ResetPeriod(ctx context.Context, id uuid.UUID, interval time.Duration) error {
	query := `
		UPDATE accounts
		SET quota_used = 0,
		    next_billing_date = next_billing_date + $2::interval,
		    updated_at = $3
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, pgInterval(interval), time.Now())
	if err != nil {
		return fmt.Errorf("failed to reset period: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("account", nil)
	}
	return nil
}

// ExpireTrials is one bulk conditional update: the WHERE clause stops
// matching once an account has been downgraded, so re-running the sweep
// is a no-op.
func (r *accountRepository) ExpireTrials(ctx context.Context, now time.Time, freeQuota int) ([]uuid.UUID, error) {
	query := `
		UPDATE accounts
		SET trial_active = FALSE, plan = $3, quota_limit = $4, updated_at = $2
		WHERE trial_active = TRUE AND trial_expires < $1
		RETURNING id
	`
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, query, now, time.Now(), model.PlanFree, freeQuota)
	if err != nil {
		return nil, fmt.Errorf("failed to expire trials: %w", err)
	}
	return ids, nil
}

// RolloverDue resets usage and advances the billing date for every
// account whose period has ended, regardless of plan.
func (r *accountRepository) RolloverDue(ctx context.Context, now time.Time, interval time.Duration) ([]uuid.UUID, error) {
	query := `
		UPDATE accounts
		SET quota_used = 0,
		    next_billing_date = next_billing_date + $3::interval,
		    updated_at = $2
		WHERE next_billing_date < $1
		RETURNING id
	`
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, query, now, time.Now(), pgInterval(interval))
	if err != nil {
		return nil, fmt.Errorf("failed to roll over billing periods: %w", err)
	}
	return ids, nil
}

func pgInterval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}
