package service

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"atelier-backend/internal/domain"
	"atelier-backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type memoryStatusStore struct {
	mu   sync.Mutex
	data map[string]string
	sets map[string][]string
}

func newMemoryStatusStore() *memoryStatusStore {
	return &memoryStatusStore{data: map[string]string{}, sets: map[string][]string{}}
}

func (s *memoryStatusStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value.(string)
	return nil
}

func (s *memoryStatusStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", context.Canceled
	}
	return v, nil
}

func (s *memoryStatusStore) SAdd(ctx context.Context, key string, members ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range members {
		member := m.(string)
		if slices.Contains(s.sets[key], member) {
			continue
		}
		s.sets[key] = append(s.sets[key], member)
	}
	return nil
}

func (s *memoryStatusStore) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[key], nil
}

type memoryExportStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *memoryExportStorage) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[fileName] = data
	return fileName, nil
}

func (s *memoryExportStorage) URL(ctx context.Context, fileName string) (string, error) {
	return "/files/" + fileName, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	complete chan string
	failed   chan string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		complete: make(chan string, 1),
		failed:   make(chan string, 1),
	}
}

func (n *recordingNotifier) NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error {
	return nil
}

func (n *recordingNotifier) NotifyExportComplete(ctx context.Context, userID int64, exportID, url, filename string) error {
	n.complete <- url
	return nil
}

func (n *recordingNotifier) NotifyExportFailed(ctx context.Context, userID int64, exportID, errMsg string) error {
	n.failed <- errMsg
	return nil
}

type staticDebtSource struct {
	debts []domain.Debt
}

func (s *staticDebtSource) List(ctx context.Context, f repository.DebtsFilter) ([]domain.Debt, error) {
	return s.debts, nil
}

func newExportFixture(debts []domain.Debt) (*ExportService, *memoryStatusStore, *memoryExportStorage, *recordingNotifier) {
	store := newMemoryStatusStore()
	storage := &memoryExportStorage{}
	notifier := newRecordingNotifier()
	journal := &recordingJournal{}

	svc := NewExportService(store, storage, notifier,
		&staticDebtSource{debts: debts}, nil, nil, journal, zap.NewNop())
	return svc, store, storage, notifier
}

func sampleDebt() domain.Debt {
	return domain.Debt{
		ID:                 1,
		Reference:          "DET-2026-0001",
		MachineDescription: "Laptop HP 840",
		TechnicianName:     "Mamadou",
		Amount:             decimal.RequireFromString("300000"),
		TotalPaid:          decimal.RequireFromString("100000"),
		AmountDue:          decimal.RequireFromString("200000"),
		Status:             domain.StatusPartiallyPaid,
		ExpectedReturnDate: time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC),
		CreatedAt:          time.Date(2026, time.August, 28, 10, 0, 0, 0, time.UTC),
	}
}

func TestStartDebtsExportRunsToCompletion(t *testing.T) {
	svc, _, storage, notifier := newExportFixture([]domain.Debt{sampleDebt()})

	key, err := svc.StartDebtsExport(context.Background(), nil, repository.DebtsFilter{}, 1)
	require.NoError(t, err)
	assert.Contains(t, key, "exports:")

	select {
	case url := <-notifier.complete:
		assert.Contains(t, url, "/files/debts_")
	case <-time.After(3 * time.Second):
		t.Fatal("export did not complete")
	}

	// the stored workbook is a valid xlsx with the header row plus one debt
	storage.mu.Lock()
	require.Len(t, storage.files, 1)
	var data []byte
	for _, d := range storage.files {
		data = d
	}
	storage.mu.Unlock()
	assert.NotEmpty(t, data)

	// final status carries the file url and 100% progress
	view, err := svc.GetExport(context.Background(), key, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(100), view["progress"])
	require.NotNil(t, view["file_url"])
}

func TestStartDebtsExportRejectsUnknownFields(t *testing.T) {
	svc, _, _, _ := newExportFixture(nil)

	var ve *domain.ValidationError
	_, err := svc.StartDebtsExport(context.Background(), []string{"bogus"}, repository.DebtsFilter{}, 1)
	assert.ErrorAs(t, err, &ve)
}

func TestGetExportsScopedToUser(t *testing.T) {
	svc, _, _, notifier := newExportFixture([]domain.Debt{sampleDebt()})

	_, err := svc.StartDebtsExport(context.Background(), nil, repository.DebtsFilter{}, 1)
	require.NoError(t, err)
	<-notifier.complete

	key2, err := svc.StartDebtsExport(context.Background(), nil, repository.DebtsFilter{}, 2)
	require.NoError(t, err)
	<-notifier.complete

	mine, err := svc.GetExports(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, key2, mine[0]["key"])

	// a user cannot read another user's export by key
	_, err = svc.GetExport(context.Background(), key2, 1)
	assert.Error(t, err)
}

func TestBuildWorkbook(t *testing.T) {
	data, err := buildWorkbook("Debts", []string{"Reference", "Montant"}, [][]any{
		{"DET-2026-0001", 300000.0},
		{"DET-2026-0002", 150000.0},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Debts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Reference", "Montant"}, rows[0])
	assert.Equal(t, "DET-2026-0001", rows[1][0])
}
