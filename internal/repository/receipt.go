package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"atelier-backend/internal/domain"

	"github.com/shopspring/decimal"
)

type ReceiptsFilter struct {
	InvoiceID    *int64
	CreatedSince *time.Time
}

// ReceiptRepository reads the sales receipt collaborator. The core never
// writes this table; receipts are recorded by the invoicing side.
type ReceiptRepository struct {
	db *sql.DB
}

func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) List(ctx context.Context, f ReceiptsFilter) ([]domain.SalesReceipt, error) {
	base := `
		SELECT r.id, r.invoice_id, COALESCE(i.number, ''), r.amount, r.created_at
		FROM sales_receipts r
		LEFT JOIN invoices i ON i.id = r.invoice_id`

	where := []string{"1=1"}
	args := []any{}
	n := 1

	if f.InvoiceID != nil {
		where = append(where, fmt.Sprintf("r.invoice_id = $%d", n))
		args = append(args, *f.InvoiceID)
		n++
	}
	if f.CreatedSince != nil {
		where = append(where, fmt.Sprintf("r.created_at >= $%d", n))
		args = append(args, *f.CreatedSince)
		n++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY r.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SalesReceipt
	for rows.Next() {
		var rc domain.SalesReceipt
		if err := rows.Scan(&rc.ID, &rc.InvoiceID, &rc.InvoiceNumber, &rc.Amount, &rc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r *ReceiptRepository) SumSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM sales_receipts WHERE created_at >= $1`, since,
	).Scan(&total)
	return total, err
}

func (r *ReceiptRepository) DailyTotals(ctx context.Context, since time.Time) ([]domain.DailyAmount, error) {
	query := `
		SELECT DATE(created_at) AS day, SUM(amount)
		FROM sales_receipts
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyAmount
	for rows.Next() {
		var da domain.DailyAmount
		if err := rows.Scan(&da.Date, &da.Amount); err != nil {
			return nil, err
		}
		out = append(out, da)
	}
	return out, rows.Err()
}
