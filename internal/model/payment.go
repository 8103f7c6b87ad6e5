package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentRecord is one completed or attempted payment. Rows are written
// once and never updated; a failed attempt and a later successful attempt
// are two distinct records. Reference is the processor-assigned intent id
// and doubles as the idempotency key for plan changes.
type PaymentRecord struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	AccountID uuid.UUID     `json:"account_id" db:"account_id"`
	Reference string        `json:"reference" db:"reference"`
	Plan      Plan          `json:"plan" db:"plan"`
	AmountCents int64       `json:"amount_cents" db:"amount_cents"`
	Currency  string        `json:"currency" db:"currency"`
	Status    PaymentStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
