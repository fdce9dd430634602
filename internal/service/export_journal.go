package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const journalExportLimit = 10000

func (s *ExportService) StartJournalExport(ctx context.Context, userID int64) (string, error) {
	st := &ExportStatus{
		Key:     fmt.Sprintf("exports:%s", uuid.NewString()),
		Type:    "journal",
		UserID:  userID,
		Filters: map[string]any{},
		Created: time.Now(),
	}
	s.saveStatus(ctx, st)

	headers := []string{"Acteur", "Opération", "Description", "Boutique", "Détails", "Date"}

	go s.runExport(context.Background(), st, "Journal", headers, func(ctx context.Context) ([][]any, error) {
		entries, err := s.journal.List(ctx, journalExportLimit)
		if err != nil {
			return nil, err
		}

		rows := make([][]any, len(entries))
		for i, e := range entries {
			rows[i] = []any{
				e.Actor,
				string(e.Operation),
				e.Description,
				e.Shop,
				e.Details,
				e.CreatedAt.Format(exportDateLayout),
			}
		}
		return rows, nil
	})

	return st.Key, nil
}
