package service

import (
	"context"
	"fmt"
	"time"

	"atelier-backend/internal/domain"
	"atelier-backend/internal/repository"

	"github.com/google/uuid"
)

type ExportReceiptSource interface {
	List(ctx context.Context, f repository.ReceiptsFilter) ([]domain.SalesReceipt, error)
}

func (s *ExportService) StartReceiptsExport(
	ctx context.Context,
	filter repository.ReceiptsFilter,
	userID int64,
) (string, error) {
	st := &ExportStatus{
		Key:     fmt.Sprintf("exports:%s", uuid.NewString()),
		Type:    "receipts",
		UserID:  userID,
		Filters: map[string]any{},
		Created: time.Now(),
	}
	s.saveStatus(ctx, st)

	headers := []string{"ID", "Facture", "Montant", "Date"}

	go s.runExport(context.Background(), st, "Receipts", headers, func(ctx context.Context) ([][]any, error) {
		receipts, err := s.receipts.List(ctx, filter)
		if err != nil {
			return nil, err
		}

		rows := make([][]any, len(receipts))
		for i, rc := range receipts {
			rows[i] = []any{
				rc.ID,
				rc.InvoiceNumber,
				rc.Amount.InexactFloat64(),
				rc.CreatedAt.Format(exportDateLayout),
			}
		}
		return rows, nil
	})

	return st.Key, nil
}
