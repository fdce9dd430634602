package service

import (
	"context"
	"testing"
	"time"

	"atelier-backend/internal/domain"
	"atelier-backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDebtRepo struct {
	debts     map[int64]*domain.Debt
	nextID    int64
	lastRef   string
	createErr error
}

func newFakeDebtRepo() *fakeDebtRepo {
	return &fakeDebtRepo{debts: map[int64]*domain.Debt{}, nextID: 1}
}

func (r *fakeDebtRepo) Create(ctx context.Context, d *domain.Debt) error {
	if r.createErr != nil {
		return r.createErr
	}
	d.ID = r.nextID
	r.nextID++
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	d.TotalPaid = decimal.Zero
	d.AmountDue = d.Amount
	stored := *d
	r.debts[d.ID] = &stored
	return nil
}

func (r *fakeDebtRepo) GetByID(ctx context.Context, id int64) (*domain.Debt, error) {
	d, ok := r.debts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *d
	return &out, nil
}

func (r *fakeDebtRepo) List(ctx context.Context, f repository.DebtsFilter) ([]domain.Debt, error) {
	var out []domain.Debt
	for _, d := range r.debts {
		out = append(out, *d)
	}
	return out, nil
}

func (r *fakeDebtRepo) LastReference(ctx context.Context, prefix string) (string, error) {
	return r.lastRef, nil
}

func (r *fakeDebtRepo) Update(ctx context.Context, d *domain.Debt) error {
	if _, ok := r.debts[d.ID]; !ok {
		return domain.ErrNotFound
	}
	stored := *d
	r.debts[d.ID] = &stored
	return nil
}

func (r *fakeDebtRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.debts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.debts, id)
	return nil
}

type fakePaymentCounter struct {
	count int64
}

func (c *fakePaymentCounter) CountForDebt(ctx context.Context, debtID int64) (int64, error) {
	return c.count, nil
}

func newDebtFixture(repo *fakeDebtRepo) (*DebtService, *recordingJournal) {
	journal := &recordingJournal{}
	svc := NewDebtService(repo, &fakePaymentCounter{}, NewJournalService(journal, zap.NewNop()), zap.NewNop())
	svc.now = func() time.Time {
		return time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	}
	return svc, journal
}

func validCreateInput() CreateDebtInput {
	return CreateDebtInput{
		MachineDescription: "Laptop HP 840",
		TechnicianName:     "Mamadou",
		Reason:             "screen replacement",
		Amount:             decimal.RequireFromString("300000"),
		ExpectedReturnDate: time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestDebtCreateAssignsReference(t *testing.T) {
	repo := newFakeDebtRepo()
	svc, journal := newDebtFixture(repo)

	debt, err := svc.Create(context.Background(), "user:1", validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, "DET-2026-0001", debt.Reference)
	assert.Equal(t, domain.StatusPending, debt.Status)
	assert.True(t, debt.AmountDue.Equal(debt.Amount))

	require.Len(t, journal.entries, 1)
	assert.Equal(t, domain.OperationCreation, journal.entries[0].Operation)
}

func TestDebtCreateContinuesSequence(t *testing.T) {
	repo := newFakeDebtRepo()
	repo.lastRef = "DET-2026-0007"
	svc, _ := newDebtFixture(repo)

	debt, err := svc.Create(context.Background(), "user:1", validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, "DET-2026-0008", debt.Reference)
}

func TestDebtCreateKeepsExplicitReference(t *testing.T) {
	repo := newFakeDebtRepo()
	svc, _ := newDebtFixture(repo)

	in := validCreateInput()
	in.Reference = "DET-2025-0100"

	debt, err := svc.Create(context.Background(), "user:1", in)
	require.NoError(t, err)
	assert.Equal(t, "DET-2025-0100", debt.Reference)
}

func TestDebtCreateValidation(t *testing.T) {
	repo := newFakeDebtRepo()
	svc, journal := newDebtFixture(repo)
	var ve *domain.ValidationError

	in := validCreateInput()
	in.Amount = decimal.Zero
	_, err := svc.Create(context.Background(), "user:1", in)
	assert.ErrorAs(t, err, &ve)

	in = validCreateInput()
	in.ExpectedReturnDate = time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(context.Background(), "user:1", in)
	assert.ErrorAs(t, err, &ve)

	assert.Empty(t, repo.debts)
	assert.Empty(t, journal.entries)
}

func TestDebtCreateConflictPassthrough(t *testing.T) {
	repo := newFakeDebtRepo()
	repo.createErr = domain.ErrConflict
	svc, journal := newDebtFixture(repo)

	_, err := svc.Create(context.Background(), "user:1", validCreateInput())
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Empty(t, journal.entries)
}

func TestDebtUpdateRecomputesStatus(t *testing.T) {
	repo := newFakeDebtRepo()
	svc, _ := newDebtFixture(repo)

	debt, err := svc.Create(context.Background(), "user:1", validCreateInput())
	require.NoError(t, err)

	// simulate a paid total on the stored row, then lower the amount below it
	repo.debts[debt.ID].TotalPaid = decimal.RequireFromString("100000")

	newAmount := decimal.RequireFromString("80000")
	updated, err := svc.Update(context.Background(), "user:1", debt.ID, UpdateDebtInput{Amount: &newAmount})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, updated.Status)
	assert.True(t, updated.AmountDue.IsZero())
}

func TestDebtUpdateValidatesAmount(t *testing.T) {
	repo := newFakeDebtRepo()
	svc, _ := newDebtFixture(repo)

	debt, err := svc.Create(context.Background(), "user:1", validCreateInput())
	require.NoError(t, err)

	bad := decimal.RequireFromString("-1")
	var ve *domain.ValidationError
	_, err = svc.Update(context.Background(), "user:1", debt.ID, UpdateDebtInput{Amount: &bad})
	assert.ErrorAs(t, err, &ve)
}

func TestDebtDelete(t *testing.T) {
	repo := newFakeDebtRepo()
	journal := &recordingJournal{}
	svc := NewDebtService(repo, &fakePaymentCounter{count: 2}, NewJournalService(journal, zap.NewNop()), zap.NewNop())
	svc.now = func() time.Time {
		return time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	}

	debt, err := svc.Create(context.Background(), "user:1", validCreateInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "user:1", debt.ID))
	assert.Empty(t, repo.debts)

	require.Len(t, journal.entries, 2)
	assert.Equal(t, domain.OperationDeletion, journal.entries[1].Operation)
	assert.Equal(t, "2 payments removed", journal.entries[1].Details)

	assert.ErrorIs(t, svc.Delete(context.Background(), "user:1", debt.ID), domain.ErrNotFound)
}

func TestDebtCreateAcceptsSameDayReturnDate(t *testing.T) {
	repo := newFakeDebtRepo()
	svc, _ := newDebtFixture(repo)

	// late evening west of UTC; the return date parses as UTC midnight of the
	// same calendar day and must still be accepted
	svc.now = func() time.Time {
		return time.Date(2026, time.August, 28, 20, 0, 0, 0, time.FixedZone("UTC-5", -5*3600))
	}

	in := validCreateInput()
	in.ExpectedReturnDate = time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)

	debt, err := svc.Create(context.Background(), "user:1", in)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, debt.Status)

	// the previous calendar day is still rejected
	in.ExpectedReturnDate = time.Date(2026, time.August, 27, 0, 0, 0, 0, time.UTC)
	var ve *domain.ValidationError
	_, err = svc.Create(context.Background(), "user:1", in)
	assert.ErrorAs(t, err, &ve)
}
