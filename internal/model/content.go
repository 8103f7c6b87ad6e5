package model

import (
	"time"

	"github.com/google/uuid"
)

// ContentEntry is one piece of generated text, kept so users can revisit
// their generation history.
type ContentEntry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Prompt    string    `json:"prompt" db:"prompt"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
