package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/contentforge/billing-api/internal/model"
	"github.com/contentforge/billing-api/internal/repository"
)

type contentRepository struct {
	BaseRepository
}

func NewContentRepository(base BaseRepository) repository.ContentRepository {
	return &contentRepository{base}
}

func (r *contentRepository) Create(ctx context.Context, entry *model.ContentEntry) error {
	query := `
		INSERT INTO content_history (id, account_id, prompt, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.AccountID,
		entry.Prompt,
		entry.Content,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create content entry: %w", err)
	}
	return nil
}

func (r *contentRepository) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*model.ContentEntry, error) {
	query := `
		SELECT id, account_id, prompt, content, created_at
		FROM content_history
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	var entries []*model.ContentEntry
	err := r.db.SelectContext(ctx, &entries, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list content history: %w", err)
	}
	return entries, nil
}
