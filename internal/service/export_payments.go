package service

import (
	"context"
	"fmt"
	"time"

	"atelier-backend/internal/domain"
	"atelier-backend/internal/repository"

	"github.com/google/uuid"
)

type ExportPaymentSource interface {
	List(ctx context.Context, f repository.PaymentsFilter) ([]domain.Payment, error)
}

func (s *ExportService) StartPaymentsExport(
	ctx context.Context,
	filter repository.PaymentsFilter,
	userID int64,
) (string, error) {
	st := &ExportStatus{
		Key:     fmt.Sprintf("exports:%s", uuid.NewString()),
		Type:    "payments",
		UserID:  userID,
		Filters: map[string]any{},
		Created: time.Now(),
	}
	s.saveStatus(ctx, st)

	headers := []string{"ID", "Dette", "Montant", "Date"}

	go s.runExport(context.Background(), st, "Payments", headers, func(ctx context.Context) ([][]any, error) {
		payments, err := s.payments.List(ctx, filter)
		if err != nil {
			return nil, err
		}

		rows := make([][]any, len(payments))
		for i, p := range payments {
			rows[i] = []any{
				p.ID,
				p.DebtID,
				p.Amount.InexactFloat64(),
				p.CreatedAt.Format(exportDateLayout),
			}
		}
		return rows, nil
	})

	return st.Key, nil
}
