package repository

import (
	"context"
	"database/sql"

	"atelier-backend/internal/domain"
)

type JournalRepository struct {
	db *sql.DB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

func (r *JournalRepository) Insert(ctx context.Context, e *domain.JournalEntry) error {
	query := `
		INSERT INTO journal (actor, operation, description, shop, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query,
		e.Actor, e.Operation, e.Description, e.Shop, e.Details,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *JournalRepository) List(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor, operation, description, shop, details, created_at
		FROM journal
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Operation, &e.Description, &e.Shop, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
