package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DebtStatus string

const (
	StatusPending       DebtStatus = "pending"
	StatusPartiallyPaid DebtStatus = "partially_paid"
	StatusPaid          DebtStatus = "paid"
)

// Debt is a receivable for a machine left with a technician, repaid over time
// through payments. Status is derived from the payment total and is never set
// directly by callers; every mutation path goes through DeriveStatus.
type Debt struct {
	ID                 int64           `json:"id"`
	Reference          string          `json:"reference"`
	MachineDescription string          `json:"machine_description"`
	TechnicianName     string          `json:"technician_name"`
	Reason             string          `json:"reason"`
	Amount             decimal.Decimal `json:"amount"`
	Status             DebtStatus      `json:"status"`
	ExpectedReturnDate time.Time       `json:"expected_return_date"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	// Computed from the payments table on read, never stored.
	TotalPaid decimal.Decimal `json:"total_paid"`
	AmountDue decimal.Decimal `json:"amount_due"`
}

// Payment is a partial or full settlement applied to a debt. Immutable once
// created; removed only by cascade when the parent debt is deleted.
type Payment struct {
	ID        string          `json:"id"`
	DebtID    int64           `json:"debt_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// TechnicianDebt is one row of the top-technicians ranking.
type TechnicianDebt struct {
	TechnicianName string          `json:"technician_name"`
	AmountDue      decimal.Decimal `json:"amount_due"`
}

// DailyAmount is a per-calendar-day monetary total used by the dashboard
// timeseries.
type DailyAmount struct {
	Date   time.Time
	Amount decimal.Decimal
}

// ComputeAmountDue returns max(0, amount - totalPaid). Payments are clamped on
// application, so a negative remainder only happens after a manual amount edit.
func ComputeAmountDue(amount, totalPaid decimal.Decimal) decimal.Decimal {
	due := amount.Sub(totalPaid)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// DeriveStatus recomputes the debt status from its amounts. Idempotent; must
// be applied after any mutation of the amount or the payment set.
func DeriveStatus(amount, totalPaid decimal.Decimal) DebtStatus {
	switch {
	case !ComputeAmountDue(amount, totalPaid).IsPositive():
		return StatusPaid
	case totalPaid.IsPositive():
		return StatusPartiallyPaid
	default:
		return StatusPending
	}
}

const referenceSeqDigits = 4

// ReferencePrefix returns the per-year reference prefix, e.g. "DET-2026-".
func ReferencePrefix(year int) string {
	return fmt.Sprintf("DET-%d-", year)
}

// NextReference builds the next debt reference for a year given the highest
// existing reference sharing that year's prefix ("" when none). The numeric
// suffix is zero padded, so lexicographic ordering of stored references
// matches numeric ordering within a year. An unparsable suffix restarts the
// sequence at 1; the unique index on the reference column is the backstop for
// concurrent generators racing on the same read.
func NextReference(year int, lastReference string) string {
	prefix := ReferencePrefix(year)

	next := 1
	if lastReference != "" {
		parts := strings.Split(lastReference, "-")
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			next = n + 1
		}
	}

	return fmt.Sprintf("%s%0*d", prefix, referenceSeqDigits, next)
}
