package rest

import (
	"context"
	"net/http"
	"time"

	"atelier-backend/internal/domain"
	"atelier-backend/internal/repository"
	"atelier-backend/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DebtLedger interface {
	Create(ctx context.Context, actor string, in service.CreateDebtInput) (*domain.Debt, error)
	Get(ctx context.Context, id int64) (*domain.Debt, error)
	List(ctx context.Context, f repository.DebtsFilter) ([]domain.Debt, error)
	Update(ctx context.Context, actor string, id int64, in service.UpdateDebtInput) (*domain.Debt, error)
	Delete(ctx context.Context, actor string, id int64) error
}

type PaymentApplier interface {
	Apply(ctx context.Context, actor string, debtID int64, requested decimal.Decimal) (*domain.Payment, *domain.Debt, error)
}

type MetricsProvider interface {
	ComputeDashboard(ctx context.Context, period string, includeDebts bool) (*service.DashboardReport, error)
}

type ReceiptReader interface {
	List(ctx context.Context, f repository.ReceiptsFilter) ([]domain.SalesReceipt, error)
}

type JournalReader interface {
	List(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}

type Exporter interface {
	StartDebtsExport(ctx context.Context, selected []string, filter repository.DebtsFilter, userID int64) (string, error)
	StartPaymentsExport(ctx context.Context, filter repository.PaymentsFilter, userID int64) (string, error)
	StartReceiptsExport(ctx context.Context, filter repository.ReceiptsFilter, userID int64) (string, error)
	StartJournalExport(ctx context.Context, userID int64) (string, error)
	GetExports(ctx context.Context, userID int64) ([]map[string]any, error)
	GetExport(ctx context.Context, exportID string, userID int64) (map[string]any, error)
}

type Handler struct {
	debts    DebtLedger
	payments PaymentApplier
	metrics  MetricsProvider
	receipts ReceiptReader
	journal  JournalReader
	exports  Exporter
	logger   *zap.Logger
}

func NewHandler(
	debts DebtLedger,
	payments PaymentApplier,
	metrics MetricsProvider,
	receipts ReceiptReader,
	journal JournalReader,
	exports Exporter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		debts:    debts,
		payments: payments,
		metrics:  metrics,
		receipts: receipts,
		journal:  journal,
		exports:  exports,
		logger:   logger,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(h.logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/debts", func(r chi.Router) {
		r.Post("/", h.createDebt)
		r.Get("/", h.listDebts)
		r.Get("/{id}", h.getDebt)
		r.Put("/{id}", h.updateDebt)
		r.Patch("/{id}/pay", h.payDebt)
		r.Delete("/{id}", h.deleteDebt)
	})

	r.Get("/metrics", h.dashboardMetrics)
	r.Get("/receipts", h.listReceipts)
	r.Get("/journal", h.listJournal)

	r.Route("/export", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
		r.Post("/debts", h.exportDebts)
		r.Post("/payments", h.exportPayments)
		r.Post("/receipts", h.exportReceipts)
		r.Post("/journal", h.exportJournal)
	})

	return r
}
