package service

import (
	"context"
	"fmt"

	"atelier-backend/internal/domain"
	"atelier-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DebtTxRunner interface {
	WithDebtForUpdate(ctx context.Context, id int64, fn func(ctx context.Context, tx repository.DebtTx, d *domain.Debt) error) error
}

// PaymentService applies payments against debts. Each call persists exactly
// one payment row and one status write, inside a single transaction; the debt
// is loaded fresh under a row lock so concurrent payments against the same
// debt serialize instead of overpaying.
type PaymentService struct {
	debts   DebtTxRunner
	journal *JournalService
	logger  *zap.Logger
}

func NewPaymentService(debts DebtTxRunner, journal *JournalService, logger *zap.Logger) *PaymentService {
	return &PaymentService{debts: debts, journal: journal, logger: logger}
}

// Apply validates the requested amount, rejects settled debts, clamps the
// amount to the remaining balance and records the payment. The clamp is
// silent: the caller gets the payment actually applied, not an error.
func (s *PaymentService) Apply(ctx context.Context, actor string, debtID int64, requested decimal.Decimal) (*domain.Payment, *domain.Debt, error) {
	if !requested.IsPositive() {
		return nil, nil, domain.NewValidationError("paid_amount", "paid amount must be greater than zero")
	}

	var (
		payment *domain.Payment
		result  *domain.Debt
	)

	err := s.debts.WithDebtForUpdate(ctx, debtID, func(ctx context.Context, tx repository.DebtTx, d *domain.Debt) error {
		if !d.AmountDue.IsPositive() {
			return domain.ErrAlreadySettled
		}

		applied := requested
		if applied.GreaterThan(d.AmountDue) {
			applied = d.AmountDue
		}

		p := &domain.Payment{
			ID:     uuid.NewString(),
			DebtID: d.ID,
			Amount: applied,
		}
		if err := tx.InsertPayment(ctx, p); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		d.TotalPaid = d.TotalPaid.Add(applied)
		d.AmountDue = domain.ComputeAmountDue(d.Amount, d.TotalPaid)
		d.Status = domain.DeriveStatus(d.Amount, d.TotalPaid)

		if err := tx.UpdateStatus(ctx, d.ID, d.Status); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		payment = p
		result = d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("payment applied",
		zap.Int64("debt_id", debtID),
		zap.String("amount", payment.Amount.String()),
		zap.String("status", string(result.Status)))

	s.journal.Record(ctx, actor, domain.OperationModification,
		fmt.Sprintf("payment of %s applied to debt %s", payment.Amount, result.Reference),
		"", string(result.Status))

	return payment, result, nil
}
