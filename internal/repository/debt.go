package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"atelier-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

type DebtsFilter struct {
	Status         *domain.DebtStatus
	TechnicianName *string
	CreatedSince   *time.Time
}

type DebtRepository struct {
	db *sql.DB
}

func NewDebtRepository(db *sql.DB) *DebtRepository {
	return &DebtRepository{db: db}
}

// totalPaidSubquery is the single definition of "total paid per debt"; every
// read path below reuses it so the derived amounts cannot drift between
// call sites.
const totalPaidSubquery = `COALESCE((SELECT SUM(p.amount) FROM debt_payments p WHERE p.debt_id = d.id), 0)`

const debtColumns = `
	d.id,
	d.reference,
	d.machine_description,
	d.technician_name,
	d.reason,
	d.amount,
	d.status,
	d.expected_return_date,
	d.created_at,
	d.updated_at,
	` + totalPaidSubquery + ` AS total_paid`

func scanDebt(row interface{ Scan(...any) error }) (*domain.Debt, error) {
	var d domain.Debt
	if err := row.Scan(
		&d.ID,
		&d.Reference,
		&d.MachineDescription,
		&d.TechnicianName,
		&d.Reason,
		&d.Amount,
		&d.Status,
		&d.ExpectedReturnDate,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.TotalPaid,
	); err != nil {
		return nil, err
	}
	d.AmountDue = domain.ComputeAmountDue(d.Amount, d.TotalPaid)
	return &d, nil
}

func (r *DebtRepository) Create(ctx context.Context, d *domain.Debt) error {
	query := `
		INSERT INTO debts (reference, machine_description, technician_name, reason, amount, status, expected_return_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		d.Reference,
		d.MachineDescription,
		d.TechnicianName,
		d.Reason,
		d.Amount,
		d.Status,
		d.ExpectedReturnDate,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrConflict
		}
		return err
	}

	d.TotalPaid = decimal.Zero
	d.AmountDue = d.Amount
	return nil
}

func (r *DebtRepository) GetByID(ctx context.Context, id int64) (*domain.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts d WHERE d.id = $1`

	d, err := scanDebt(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

func (r *DebtRepository) List(ctx context.Context, f DebtsFilter) ([]domain.Debt, error) {
	base := `SELECT ` + debtColumns + ` FROM debts d`

	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.Status != nil {
		where = append(where, fmt.Sprintf("d.status = $%d", i))
		args = append(args, *f.Status)
		i++
	}
	if f.TechnicianName != nil {
		where = append(where, fmt.Sprintf("d.technician_name = $%d", i))
		args = append(args, *f.TechnicianName)
		i++
	}
	if f.CreatedSince != nil {
		where = append(where, fmt.Sprintf("d.created_at >= $%d", i))
		args = append(args, *f.CreatedSince)
		i++
	}

	query := base + " WHERE " + strings.Join(where, " AND ") + " ORDER BY d.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// LastReference returns the highest reference sharing the given prefix, or ""
// when the year has no debts yet. Descending lexicographic order is correct
// because the sequence suffix is zero padded.
func (r *DebtRepository) LastReference(ctx context.Context, prefix string) (string, error) {
	query := `SELECT reference FROM debts WHERE reference LIKE $1 ORDER BY reference DESC LIMIT 1`

	var ref string
	err := r.db.QueryRowContext(ctx, query, prefix+"%").Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (r *DebtRepository) Update(ctx context.Context, d *domain.Debt) error {
	query := `
		UPDATE debts
		SET machine_description = $1,
		    technician_name = $2,
		    reason = $3,
		    amount = $4,
		    status = $5,
		    expected_return_date = $6,
		    updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		d.MachineDescription,
		d.TechnicianName,
		d.Reason,
		d.Amount,
		d.Status,
		d.ExpectedReturnDate,
		d.ID,
	).Scan(&d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (r *DebtRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM debts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// OutstandingTotal sums the remainder of every non-settled debt created on or
// after since. The remainder is recomputed from payments, not read from the
// cached status column.
func (r *DebtRepository) OutstandingTotal(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(GREATEST(d.amount - ` + totalPaidSubquery + `, 0)), 0)
		FROM debts d
		WHERE d.status IN ($1, $2) AND d.created_at >= $3`

	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, domain.StatusPending, domain.StatusPartiallyPaid, since).Scan(&total)
	return total, err
}

// OutstandingByTechnician ranks technicians by summed remainder, descending,
// dropping technicians whose debts are fully covered.
func (r *DebtRepository) OutstandingByTechnician(ctx context.Context, since time.Time, limit int) ([]domain.TechnicianDebt, error) {
	query := `
		SELECT d.technician_name,
		       SUM(GREATEST(d.amount - ` + totalPaidSubquery + `, 0)) AS amount_due
		FROM debts d
		WHERE d.status IN ($1, $2) AND d.created_at >= $3
		GROUP BY d.technician_name
		HAVING SUM(GREATEST(d.amount - ` + totalPaidSubquery + `, 0)) > 0
		ORDER BY amount_due DESC
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusPending, domain.StatusPartiallyPaid, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TechnicianDebt
	for rows.Next() {
		var td domain.TechnicianDebt
		if err := rows.Scan(&td.TechnicianName, &td.AmountDue); err != nil {
			return nil, err
		}
		out = append(out, td)
	}
	return out, rows.Err()
}

// DailyFaceTotals groups debts created on or after since by calendar day,
// summing the face amount (not the remainder).
func (r *DebtRepository) DailyFaceTotals(ctx context.Context, since time.Time) ([]domain.DailyAmount, error) {
	query := `
		SELECT DATE(d.created_at) AS day, SUM(d.amount)
		FROM debts d
		WHERE d.created_at >= $1
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

// DebtTx is the narrow write surface available inside WithDebtForUpdate.
type DebtTx interface {
	InsertPayment(ctx context.Context, p *domain.Payment) error
	UpdateStatus(ctx context.Context, debtID int64, status domain.DebtStatus) error
}

type debtTx struct {
	tx *sql.Tx
}

func (t *debtTx) InsertPayment(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO debt_payments (id, debt_id, amount)
		VALUES ($1, $2, $3)
		RETURNING created_at`
	return t.tx.QueryRowContext(ctx, query, p.ID, p.DebtID, p.Amount).Scan(&p.CreatedAt)
}

func (t *debtTx) UpdateStatus(ctx context.Context, debtID int64, status domain.DebtStatus) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE debts SET status = $1, updated_at = NOW() WHERE id = $2`, status, debtID)
	return err
}

// WithDebtForUpdate loads the debt row under SELECT ... FOR UPDATE together
// with its fresh payment total, runs fn, and commits. Any error from fn rolls
// the whole transaction back, so payment application is atomic: either the
// payment row and the status write both land or neither does.
func (r *DebtRepository) WithDebtForUpdate(ctx context.Context, id int64, fn func(ctx context.Context, tx DebtTx, d *domain.Debt) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		SELECT d.id, d.reference, d.machine_description, d.technician_name, d.reason,
		       d.amount, d.status, d.expected_return_date, d.created_at, d.updated_at
		FROM debts d
		WHERE d.id = $1
		FOR UPDATE`

	var d domain.Debt
	err = tx.QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.Reference,
		&d.MachineDescription,
		&d.TechnicianName,
		&d.Reason,
		&d.Amount,
		&d.Status,
		&d.ExpectedReturnDate,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM debt_payments WHERE debt_id = $1`, id,
	).Scan(&d.TotalPaid)
	if err != nil {
		return err
	}
	d.AmountDue = domain.ComputeAmountDue(d.Amount, d.TotalPaid)

	if err := fn(ctx, &debtTx{tx: tx}, &d); err != nil {
		return err
	}

	return tx.Commit()
}
