package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"atelier-backend/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"

	topTechniciansLimit = 5
	reportCacheTTL      = time.Minute
)

type MetricsDebtSource interface {
	OutstandingTotal(ctx context.Context, since time.Time) (decimal.Decimal, error)
	OutstandingByTechnician(ctx context.Context, since time.Time, limit int) ([]domain.TechnicianDebt, error)
	DailyFaceTotals(ctx context.Context, since time.Time) ([]domain.DailyAmount, error)
}

type SalesSource interface {
	SumSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
	DailyTotals(ctx context.Context, since time.Time) ([]domain.DailyAmount, error)
}

type ReportCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type TimeseriesPoint struct {
	Date           string          `json:"date"`
	SalesAmount    decimal.Decimal `json:"sales_amount"`
	DebtAmount     decimal.Decimal `json:"debt_amount"`
	CombinedAmount decimal.Decimal `json:"combined_amount"`
}

type DashboardReport struct {
	Period               string                  `json:"period"`
	SalesTotal           decimal.Decimal         `json:"sales_total"`
	OutstandingDebtTotal decimal.Decimal         `json:"outstanding_debt_total"`
	GlobalRevenue        decimal.Decimal         `json:"global_revenue"`
	TopTechnicians       []domain.TechnicianDebt `json:"top_technicians"`
	Timeseries           []TimeseriesPoint       `json:"timeseries"`
}

// MetricsService composes the dashboard report from the debt ledger and the
// sales receipt collaborator. Reads are uncoordinated; slightly stale numbers
// are acceptable, which is also why a short redis cache in front is fine.
type MetricsService struct {
	debts  MetricsDebtSource
	sales  SalesSource
	cache  ReportCache
	logger *zap.Logger
	now    func() time.Time
}

func NewMetricsService(debts MetricsDebtSource, sales SalesSource, cache ReportCache, logger *zap.Logger) *MetricsService {
	return &MetricsService{
		debts:  debts,
		sales:  sales,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// PeriodStart anchors a metrics window to now: first day of the current
// month, of the current Jan/Apr/Jul/Oct quarter block, or of the year, always
// at midnight.
func PeriodStart(now time.Time, period string) (time.Time, error) {
	switch period {
	case PeriodMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	case PeriodQuarter:
		quarterMonth := time.Month(((int(now.Month())-1)/3)*3 + 1)
		return time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, now.Location()), nil
	case PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), nil
	default:
		return time.Time{}, domain.NewValidationError("period", "period must be one of month, quarter, year")
	}
}

// ComputeDashboard builds the period-scoped report. outstanding_debt_total is
// always the true remainder sum; includeDebts only controls whether debts
// contribute to global_revenue and to each day's combined_amount.
func (s *MetricsService) ComputeDashboard(ctx context.Context, period string, includeDebts bool) (*DashboardReport, error) {
	start, err := PeriodStart(s.now(), period)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("metrics:%s:%t", period, includeDebts)
	if cached := s.cachedReport(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	salesTotal, err := s.sales.SumSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("sales total: %w", err)
	}

	outstanding, err := s.debts.OutstandingTotal(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("outstanding total: %w", err)
	}

	top, err := s.debts.OutstandingByTechnician(ctx, start, topTechniciansLimit)
	if err != nil {
		return nil, fmt.Errorf("top technicians: %w", err)
	}

	salesDaily, err := s.sales.DailyTotals(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("sales timeseries: %w", err)
	}

	debtDaily, err := s.debts.DailyFaceTotals(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("debt timeseries: %w", err)
	}

	global := salesTotal
	if includeDebts {
		global = global.Add(outstanding)
	}

	report := &DashboardReport{
		Period:               period,
		SalesTotal:           salesTotal,
		OutstandingDebtTotal: outstanding,
		GlobalRevenue:        global,
		TopTechnicians:       top,
		Timeseries:           mergeTimeseries(salesDaily, debtDaily, includeDebts),
	}

	s.storeReport(ctx, cacheKey, report)
	return report, nil
}

const timeseriesDateLayout = "2006-01-02"

// mergeTimeseries joins the two per-day series on calendar date. A day present
// in only one source still appears once, with the missing side at zero.
func mergeTimeseries(sales, debts []domain.DailyAmount, includeDebts bool) []TimeseriesPoint {
	byDate := make(map[string]*TimeseriesPoint)

	point := func(date string) *TimeseriesPoint {
		p, ok := byDate[date]
		if !ok {
			p = &TimeseriesPoint{
				Date:           date,
				SalesAmount:    decimal.Zero,
				DebtAmount:     decimal.Zero,
				CombinedAmount: decimal.Zero,
			}
			byDate[date] = p
		}
		return p
	}

	for _, da := range sales {
		p := point(da.Date.Format(timeseriesDateLayout))
		p.SalesAmount = p.SalesAmount.Add(da.Amount)
	}
	for _, da := range debts {
		p := point(da.Date.Format(timeseriesDateLayout))
		p.DebtAmount = p.DebtAmount.Add(da.Amount)
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make([]TimeseriesPoint, 0, len(dates))
	for _, date := range dates {
		p := byDate[date]
		p.CombinedAmount = p.SalesAmount
		if includeDebts {
			p.CombinedAmount = p.CombinedAmount.Add(p.DebtAmount)
		}
		out = append(out, *p)
	}
	return out
}

func (s *MetricsService) cachedReport(ctx context.Context, key string) *DashboardReport {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil
	}

	var report DashboardReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		s.logger.Warn("bad cached report", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &report
}

func (s *MetricsService) storeReport(ctx context.Context, key string, report *DashboardReport) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data), reportCacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}
