package service

import (
	"context"
	"fmt"
	"time"

	"atelier-backend/internal/domain"
	"atelier-backend/internal/repository"

	"github.com/google/uuid"
)

type ExportDebtSource interface {
	List(ctx context.Context, f repository.DebtsFilter) ([]domain.Debt, error)
}

type DebtColumn struct {
	Header string
	Value  func(d domain.Debt) any
}

const exportDateLayout = "2006-01-02 15:04:05"

var debtExportColumns = map[string]DebtColumn{
	"reference": {
		Header: "Reference",
		Value:  func(d domain.Debt) any { return d.Reference },
	},
	"machine_description": {
		Header: "Machine",
		Value:  func(d domain.Debt) any { return d.MachineDescription },
	},
	"technician_name": {
		Header: "Technicien",
		Value:  func(d domain.Debt) any { return d.TechnicianName },
	},
	"reason": {
		Header: "Motif",
		Value:  func(d domain.Debt) any { return d.Reason },
	},
	"amount": {
		Header: "Montant",
		Value:  func(d domain.Debt) any { return d.Amount.InexactFloat64() },
	},
	"total_paid": {
		Header: "Total payé",
		Value:  func(d domain.Debt) any { return d.TotalPaid.InexactFloat64() },
	},
	"amount_due": {
		Header: "Restant dû",
		Value:  func(d domain.Debt) any { return d.AmountDue.InexactFloat64() },
	},
	"status": {
		Header: "Statut",
		Value:  func(d domain.Debt) any { return string(d.Status) },
	},
	"expected_return_date": {
		Header: "Date de retour prévue",
		Value:  func(d domain.Debt) any { return d.ExpectedReturnDate.Format("2006-01-02") },
	},
	"created_at": {
		Header: "Créée le",
		Value:  func(d domain.Debt) any { return d.CreatedAt.Format(exportDateLayout) },
	},
}

var defaultDebtExportFields = []string{
	"reference", "technician_name", "amount", "total_paid", "amount_due", "status",
}

// StartDebtsExport registers an export job and runs it in the background,
// returning the job key the caller can poll or watch over the websocket.
func (s *ExportService) StartDebtsExport(
	ctx context.Context,
	selected []string,
	filter repository.DebtsFilter,
	userID int64,
) (string, error) {
	if len(selected) == 0 {
		selected = defaultDebtExportFields
	}

	var cols []DebtColumn
	var fields []string
	for _, key := range selected {
		col, ok := debtExportColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
		fields = append(fields, key)
	}
	if len(cols) == 0 {
		return "", domain.NewValidationError("fields", "no known debt fields selected")
	}

	st := &ExportStatus{
		Key:     fmt.Sprintf("exports:%s", uuid.NewString()),
		Type:    "debts",
		UserID:  userID,
		Filters: map[string]any{"fields": fields},
		Created: time.Now(),
	}
	s.saveStatus(ctx, st)

	headers := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = col.Header
	}

	go s.runExport(context.Background(), st, "Debts", headers, func(ctx context.Context) ([][]any, error) {
		debts, err := s.debts.List(ctx, filter)
		if err != nil {
			return nil, err
		}

		rows := make([][]any, len(debts))
		for i, d := range debts {
			row := make([]any, len(cols))
			for j, col := range cols {
				row[j] = col.Value(d)
			}
			rows[i] = row
		}
		return rows, nil
	})

	return st.Key, nil
}
