package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"atelier-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDebtMetrics struct {
	outstanding decimal.Decimal
	top         []domain.TechnicianDebt
	daily       []domain.DailyAmount

	sinceSeen time.Time
	limitSeen int
}

func (f *fakeDebtMetrics) OutstandingTotal(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	f.sinceSeen = since
	return f.outstanding, nil
}

// OutstandingByTechnician mirrors the repository contract: zero remainders
// dropped, sorted descending, capped at limit.
func (f *fakeDebtMetrics) OutstandingByTechnician(ctx context.Context, since time.Time, limit int) ([]domain.TechnicianDebt, error) {
	f.limitSeen = limit

	var out []domain.TechnicianDebt
	for _, td := range f.top {
		if td.AmountDue.IsPositive() {
			out = append(out, td)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AmountDue.GreaterThan(out[j].AmountDue)
	})
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDebtMetrics) DailyFaceTotals(ctx context.Context, since time.Time) ([]domain.DailyAmount, error) {
	return f.daily, nil
}

type fakeSales struct {
	total decimal.Decimal
	daily []domain.DailyAmount
}

func (f *fakeSales) SumSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	return f.total, nil
}

func (f *fakeSales) DailyTotals(ctx context.Context, since time.Time) ([]domain.DailyAmount, error) {
	return f.daily, nil
}

type memoryCache struct {
	data map[string]string
	sets int
	hits int
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	if v, ok := c.data[key]; ok {
		c.hits++
		return v, nil
	}
	return "", context.Canceled
}

func (c *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.data == nil {
		c.data = map[string]string{}
	}
	c.data[key] = value.(string)
	c.sets++
	return nil
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2026, time.August, 28, 15, 30, 0, 0, time.UTC)

	start, err := PeriodStart(now, PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), start)

	// August sits in the Jul-Sep block
	start, err = PeriodStart(now, PeriodQuarter)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC), start)

	start, err = PeriodStart(now, PeriodYear)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestPeriodStartQuarterBoundaries(t *testing.T) {
	cases := map[time.Month]time.Month{
		time.January:   time.January,
		time.March:     time.January,
		time.April:     time.April,
		time.June:      time.April,
		time.July:      time.July,
		time.October:   time.October,
		time.December:  time.October,
		time.September: time.July,
	}
	for month, want := range cases {
		now := time.Date(2026, month, 15, 0, 0, 0, 0, time.UTC)
		start, err := PeriodStart(now, PeriodQuarter)
		require.NoError(t, err)
		assert.Equal(t, want, start.Month(), "month %s", month)
	}
}

func TestPeriodStartInvalid(t *testing.T) {
	var ve *domain.ValidationError
	_, err := PeriodStart(time.Now(), "week")
	assert.ErrorAs(t, err, &ve)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newMetricsFixture(debts *fakeDebtMetrics, sales *fakeSales, cache ReportCache) *MetricsService {
	svc := NewMetricsService(debts, sales, cache, zap.NewNop())
	svc.now = func() time.Time {
		return time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestComputeDashboard(t *testing.T) {
	debts := &fakeDebtMetrics{
		outstanding: decimal.RequireFromString("200000"),
		top: []domain.TechnicianDebt{
			{TechnicianName: "Mamadou", AmountDue: decimal.RequireFromString("150000")},
			{TechnicianName: "Awa", AmountDue: decimal.RequireFromString("50000")},
		},
		daily: []domain.DailyAmount{
			{Date: day(2026, time.August, 10), Amount: decimal.RequireFromString("200000")},
		},
	}
	sales := &fakeSales{
		total: decimal.RequireFromString("100000"),
		daily: []domain.DailyAmount{
			{Date: day(2026, time.August, 9), Amount: decimal.RequireFromString("60000")},
			{Date: day(2026, time.August, 10), Amount: decimal.RequireFromString("40000")},
		},
	}

	svc := newMetricsFixture(debts, sales, nil)

	report, err := svc.ComputeDashboard(context.Background(), PeriodMonth, true)
	require.NoError(t, err)

	assert.Equal(t, PeriodMonth, report.Period)
	assert.True(t, decimal.RequireFromString("100000").Equal(report.SalesTotal))
	assert.True(t, decimal.RequireFromString("200000").Equal(report.OutstandingDebtTotal))
	assert.True(t, decimal.RequireFromString("300000").Equal(report.GlobalRevenue))
	assert.Len(t, report.TopTechnicians, 2)

	// the queried window was anchored to the first of the month
	assert.Equal(t, day(2026, time.August, 1), debts.sinceSeen)

	require.Len(t, report.Timeseries, 2)
	assert.Equal(t, "2026-08-09", report.Timeseries[0].Date)
	assert.Equal(t, "2026-08-10", report.Timeseries[1].Date)

	// aug 9 has sales only; the missing debt side is zero
	assert.True(t, report.Timeseries[0].DebtAmount.IsZero())
	assert.True(t, decimal.RequireFromString("60000").Equal(report.Timeseries[0].CombinedAmount))

	// aug 10 combines both sources
	assert.True(t, decimal.RequireFromString("240000").Equal(report.Timeseries[1].CombinedAmount))
}

func TestComputeDashboardExcludingDebts(t *testing.T) {
	debts := &fakeDebtMetrics{
		outstanding: decimal.RequireFromString("200000"),
		daily: []domain.DailyAmount{
			{Date: day(2026, time.August, 10), Amount: decimal.RequireFromString("200000")},
		},
	}
	sales := &fakeSales{
		total: decimal.RequireFromString("100000"),
		daily: []domain.DailyAmount{
			{Date: day(2026, time.August, 10), Amount: decimal.RequireFromString("40000")},
		},
	}

	svc := newMetricsFixture(debts, sales, nil)

	report, err := svc.ComputeDashboard(context.Background(), PeriodMonth, false)
	require.NoError(t, err)

	// the true outstanding total is still reported
	assert.True(t, decimal.RequireFromString("200000").Equal(report.OutstandingDebtTotal))

	// but debts no longer contribute to revenue or to combined amounts
	assert.True(t, decimal.RequireFromString("100000").Equal(report.GlobalRevenue))
	require.Len(t, report.Timeseries, 1)
	assert.True(t, decimal.RequireFromString("40000").Equal(report.Timeseries[0].CombinedAmount))
	assert.True(t, decimal.RequireFromString("200000").Equal(report.Timeseries[0].DebtAmount))
}

func TestComputeDashboardTopTechnicians(t *testing.T) {
	debts := &fakeDebtMetrics{
		top: []domain.TechnicianDebt{
			{TechnicianName: "Awa", AmountDue: decimal.RequireFromString("50000")},
			{TechnicianName: "Moussa", AmountDue: decimal.RequireFromString("300000")},
			{TechnicianName: "Fatou", AmountDue: decimal.Zero},
			{TechnicianName: "Mamadou", AmountDue: decimal.RequireFromString("150000")},
			{TechnicianName: "Omar", AmountDue: decimal.RequireFromString("80000")},
			{TechnicianName: "Ibrahima", AmountDue: decimal.RequireFromString("20000")},
			{TechnicianName: "Cheikh", AmountDue: decimal.RequireFromString("10000")},
		},
	}
	svc := newMetricsFixture(debts, &fakeSales{}, nil)

	report, err := svc.ComputeDashboard(context.Background(), PeriodMonth, true)
	require.NoError(t, err)

	// the service always asks for exactly five
	assert.Equal(t, 5, debts.limitSeen)
	require.Len(t, report.TopTechnicians, 5)

	// fully covered technicians never appear
	for _, td := range report.TopTechnicians {
		assert.True(t, td.AmountDue.IsPositive(), "technician %s has zero remainder", td.TechnicianName)
		assert.NotEqual(t, "Fatou", td.TechnicianName)
	}

	// strictly descending by remainder; the sixth-largest is cut
	for i := 1; i < len(report.TopTechnicians); i++ {
		assert.True(t, report.TopTechnicians[i-1].AmountDue.GreaterThan(report.TopTechnicians[i].AmountDue))
	}
	assert.Equal(t, "Moussa", report.TopTechnicians[0].TechnicianName)
	assert.NotContains(t, []string{
		report.TopTechnicians[0].TechnicianName,
		report.TopTechnicians[1].TechnicianName,
		report.TopTechnicians[2].TechnicianName,
		report.TopTechnicians[3].TechnicianName,
		report.TopTechnicians[4].TechnicianName,
	}, "Cheikh")
}

func TestComputeDashboardInvalidPeriod(t *testing.T) {
	svc := newMetricsFixture(&fakeDebtMetrics{}, &fakeSales{}, nil)

	var ve *domain.ValidationError
	_, err := svc.ComputeDashboard(context.Background(), "fortnight", true)
	assert.ErrorAs(t, err, &ve)
}

func TestComputeDashboardUsesCache(t *testing.T) {
	cache := &memoryCache{}
	svc := newMetricsFixture(&fakeDebtMetrics{}, &fakeSales{}, cache)

	_, err := svc.ComputeDashboard(context.Background(), PeriodMonth, true)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	_, err = svc.ComputeDashboard(context.Background(), PeriodMonth, true)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "second call should be served from cache")
	assert.Equal(t, 1, cache.hits)

	// includeDebts is part of the key; flipping it misses
	_, err = svc.ComputeDashboard(context.Background(), PeriodMonth, false)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)
}

func TestMergeTimeseriesOrdering(t *testing.T) {
	sales := []domain.DailyAmount{
		{Date: day(2026, time.August, 3), Amount: decimal.RequireFromString("10")},
		{Date: day(2026, time.August, 1), Amount: decimal.RequireFromString("20")},
	}
	debts := []domain.DailyAmount{
		{Date: day(2026, time.August, 2), Amount: decimal.RequireFromString("30")},
	}

	points := mergeTimeseries(sales, debts, true)
	require.Len(t, points, 3)
	assert.Equal(t, "2026-08-01", points[0].Date)
	assert.Equal(t, "2026-08-02", points[1].Date)
	assert.Equal(t, "2026-08-03", points[2].Date)
}
