package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"atelier-backend/internal/domain"
)

type PaymentsFilter struct {
	DebtID       *int64
	CreatedSince *time.Time
	CreatedUntil *time.Time
}

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) List(ctx context.Context, f PaymentsFilter) ([]domain.Payment, error) {
	base := `SELECT p.id, p.debt_id, p.amount, p.created_at FROM debt_payments p`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.DebtID != nil {
		where = append(where, fmt.Sprintf("p.debt_id = $%d", i))
		args = append(args, *f.DebtID)
		i++
	}
	if f.CreatedSince != nil {
		where = append(where, fmt.Sprintf("p.created_at >= $%d", i))
		args = append(args, *f.CreatedSince)
		i++
	}
	if f.CreatedUntil != nil {
		where = append(where, fmt.Sprintf("p.created_at <= $%d", i))
		args = append(args, *f.CreatedUntil)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY p.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaymentRepository) CountForDebt(ctx context.Context, debtID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM debt_payments WHERE debt_id = $1`, debtID).Scan(&n)
	return n, err
}
