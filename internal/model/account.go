package model

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	Plan            Plan      `json:"plan" db:"plan"`
	TrialActive     bool      `json:"trial_active" db:"trial_active"`
	TrialExpires    time.Time `json:"trial_expires" db:"trial_expires"`
	QuotaLimit      int       `json:"quota_limit" db:"quota_limit"`
	QuotaUsed       int       `json:"quota_used" db:"quota_used"`
	NextBillingDate time.Time `json:"next_billing_date" db:"next_billing_date"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// EffectiveLimit is the admission ceiling for the current period. An
// account still in its trial window meters against the trial quota, not
// against whatever plan limit is stored on the row.
func (a *Account) EffectiveLimit(trialQuota int) int {
	if a.TrialActive {
		return trialQuota
	}
	return a.QuotaLimit
}

// RenewalDue reports whether the account is eligible for (re)enrollment:
// its trial window has closed or its billing period has ended.
func (a *Account) RenewalDue(now time.Time) bool {
	if a.TrialActive && a.TrialExpires.Before(now) {
		return true
	}
	return a.NextBillingDate.Before(now)
}

type CreateAccountRequest struct {
	Email string `json:"email"`
}

// PlanChange carries everything the ledger needs to move an account onto
// a new plan in one transaction. Payment is the record that triggered the
// change; its Reference is the idempotency key.
type PlanChange struct {
	AccountID       uuid.UUID
	Plan            Plan
	QuotaLimit      int
	NextBillingDate time.Time
	Payment         *PaymentRecord
}
