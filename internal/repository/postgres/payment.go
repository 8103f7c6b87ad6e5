package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/contentforge/billing-api/internal/model"
	"github.com/contentforge/billing-api/internal/repository"
	apperrors "github.com/contentforge/billing-api/pkg/errors"
)

type paymentRepository struct {
	BaseRepository
}

func NewPaymentRepository(base BaseRepository) repository.PaymentRepository {
	return &paymentRepository{base}
}

func (r *paymentRepository) GetByReference(ctx context.Context, reference string) (*model.PaymentRecord, error) {
	query := `
		SELECT id, account_id, reference, plan, amount_cents,
		       currency, status, created_at
		FROM payments
		WHERE reference = $1
	`
	var payment model.PaymentRecord
	err := r.db.GetContext(ctx, &payment, query, reference)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("payment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *paymentRepository) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]*model.PaymentRecord, error) {
	query := `
		SELECT id, account_id, reference, plan, amount_cents,
		       currency, status, created_at
		FROM payments
		WHERE account_id = $1
		ORDER BY created_at ASC
	`
	var payments []*model.PaymentRecord
	err := r.db.SelectContext(ctx, &payments, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
