package service

import (
	"context"

	"atelier-backend/internal/domain"

	"go.uber.org/zap"
)

type JournalRepository interface {
	Insert(ctx context.Context, e *domain.JournalEntry) error
	List(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}

// JournalService is the audit sink. Record is fire and forget: a failed write
// is logged and swallowed so it can never abort or roll back the operation
// being journaled.
type JournalService struct {
	repo   JournalRepository
	logger *zap.Logger
}

func NewJournalService(repo JournalRepository, logger *zap.Logger) *JournalService {
	return &JournalService{repo: repo, logger: logger}
}

func (s *JournalService) Record(ctx context.Context, actor string, op domain.OperationKind, description, shop, details string) {
	entry := &domain.JournalEntry{
		Actor:       actor,
		Operation:   op,
		Description: description,
		Shop:        shop,
		Details:     details,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Warn("journal write failed",
			zap.String("operation", string(op)),
			zap.String("description", description),
			zap.Error(err))
	}
}

func (s *JournalService) List(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	return s.repo.List(ctx, limit)
}
