package service

import (
	"context"
	"fmt"
	"time"

	"atelier-backend/internal/domain"
	"atelier-backend/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DebtRepository interface {
	Create(ctx context.Context, d *domain.Debt) error
	GetByID(ctx context.Context, id int64) (*domain.Debt, error)
	List(ctx context.Context, f repository.DebtsFilter) ([]domain.Debt, error)
	LastReference(ctx context.Context, prefix string) (string, error)
	Update(ctx context.Context, d *domain.Debt) error
	Delete(ctx context.Context, id int64) error
}

type PaymentCounter interface {
	CountForDebt(ctx context.Context, debtID int64) (int64, error)
}

type CreateDebtInput struct {
	Reference          string
	MachineDescription string
	TechnicianName     string
	Reason             string
	Amount             decimal.Decimal
	ExpectedReturnDate time.Time
}

type UpdateDebtInput struct {
	MachineDescription *string
	TechnicianName     *string
	Reason             *string
	Amount             *decimal.Decimal
	ExpectedReturnDate *time.Time
}

// DebtService owns the debt ledger: creation with reference numbering,
// reads, field edits (which force a status recompute) and administrative
// deletion.
type DebtService struct {
	repo     DebtRepository
	payments PaymentCounter
	journal  *JournalService
	logger   *zap.Logger
	now      func() time.Time
}

func NewDebtService(repo DebtRepository, payments PaymentCounter, journal *JournalService, logger *zap.Logger) *DebtService {
	return &DebtService{
		repo:     repo,
		payments: payments,
		journal:  journal,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *DebtService) Create(ctx context.Context, actor string, in CreateDebtInput) (*domain.Debt, error) {
	if !in.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", "amount must be greater than zero")
	}

	// Compare calendar dates, not instants: the return date arrives as a bare
	// date and today is the local calendar day.
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	ret := in.ExpectedReturnDate
	retDay := time.Date(ret.Year(), ret.Month(), ret.Day(), 0, 0, 0, 0, now.Location())
	if retDay.Before(today) {
		return nil, domain.NewValidationError("expected_return_date", "expected return date cannot be in the past")
	}

	reference := in.Reference
	if reference == "" {
		year := now.Year()
		last, err := s.repo.LastReference(ctx, domain.ReferencePrefix(year))
		if err != nil {
			return nil, fmt.Errorf("last reference lookup: %w", err)
		}
		reference = domain.NextReference(year, last)
	}

	debt := &domain.Debt{
		Reference:          reference,
		MachineDescription: in.MachineDescription,
		TechnicianName:     in.TechnicianName,
		Reason:             in.Reason,
		Amount:             in.Amount,
		Status:             domain.StatusPending,
		ExpectedReturnDate: in.ExpectedReturnDate,
	}

	// A concurrent creator may have taken the same reference; the unique
	// index turns that into ErrConflict and the caller retries.
	if err := s.repo.Create(ctx, debt); err != nil {
		return nil, err
	}

	s.journal.Record(ctx, actor, domain.OperationCreation,
		fmt.Sprintf("debt %s created for %s", debt.Reference, debt.TechnicianName),
		"", debt.Amount.String())

	return debt, nil
}

func (s *DebtService) Get(ctx context.Context, id int64) (*domain.Debt, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *DebtService) List(ctx context.Context, f repository.DebtsFilter) ([]domain.Debt, error) {
	return s.repo.List(ctx, f)
}

// Update applies field edits and recomputes the status from the fresh payment
// total, so a changed amount can move a debt between paid and partially_paid
// without any payment activity.
func (s *DebtService) Update(ctx context.Context, actor string, id int64, in UpdateDebtInput) (*domain.Debt, error) {
	debt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.MachineDescription != nil {
		debt.MachineDescription = *in.MachineDescription
	}
	if in.TechnicianName != nil {
		debt.TechnicianName = *in.TechnicianName
	}
	if in.Reason != nil {
		debt.Reason = *in.Reason
	}
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return nil, domain.NewValidationError("amount", "amount must be greater than zero")
		}
		debt.Amount = *in.Amount
	}
	if in.ExpectedReturnDate != nil {
		debt.ExpectedReturnDate = *in.ExpectedReturnDate
	}

	debt.Status = domain.DeriveStatus(debt.Amount, debt.TotalPaid)
	debt.AmountDue = domain.ComputeAmountDue(debt.Amount, debt.TotalPaid)

	if err := s.repo.Update(ctx, debt); err != nil {
		return nil, err
	}

	s.journal.Record(ctx, actor, domain.OperationModification,
		fmt.Sprintf("debt %s updated", debt.Reference), "", "")

	return debt, nil
}

// Delete removes the debt and its payments (by cascade). The payment count is
// read first so the journal records how much history went with it.
func (s *DebtService) Delete(ctx context.Context, actor string, id int64) error {
	debt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	paymentCount, err := s.payments.CountForDebt(ctx, id)
	if err != nil {
		s.logger.Warn("payment count lookup failed", zap.Int64("debt_id", id), zap.Error(err))
		paymentCount = 0
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.journal.Record(ctx, actor, domain.OperationDeletion,
		fmt.Sprintf("debt %s deleted", debt.Reference), "",
		fmt.Sprintf("%d payments removed", paymentCount))

	return nil
}
