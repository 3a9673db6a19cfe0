package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlog/internal/cache"
	"spendlog/internal/core"
	"spendlog/internal/ledger"
	"spendlog/internal/persist"
	"spendlog/internal/persist/memory"
	"spendlog/internal/persist/sqlite"
	"spendlog/internal/timerange"
)

var now = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func resolver() *timerange.Resolver {
	return timerange.NewResolver(
		timerange.WithClock(func() time.Time { return now }),
		timerange.WithLocation(time.UTC),
	)
}

func seeded(t *testing.T, dir core.Directory, recs ...core.ExpenseRecord) (*ledger.Store, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	p := memory.New()
	require.NoError(t, persist.SaveJSON(ctx, p, persist.KeyCategory, dir))
	if len(recs) > 0 {
		require.NoError(t, persist.SaveJSON(ctx, p, persist.KeyExpenseHistory, recs))
	}
	return ledger.New(p, ledger.WithLocation(time.UTC)), p
}

func rec(item string, amount int64, cat core.CategoryID, ts time.Time) core.ExpenseRecord {
	return core.ExpenseRecord{Item: item, Amount: decimal.NewFromInt(amount), Category: cat, Timestamp: ts}
}

func day(m time.Month, d int) *time.Time {
	t := time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCalculateSpentCustomJanuary(t *testing.T) {
	coffee := rec("Coffee", 50000, "food", time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))
	store, _ := seeded(t, core.Directory{{ID: "food", Name: "Food", Icon: "🍔"}}, coffee)
	svc := NewService(store, resolver())

	got, err := svc.CalculateSpent(context.Background(), RangeQuery{Range: "custom", StartDate: day(1, 1), EndDate: day(1, 31)})
	require.NoError(t, err)
	assert.Equal(t, "custom", got.Range)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", got.StartDate)
	assert.Equal(t, "2024-01-31T23:59:59.999Z", got.EndDate)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(50000)))
	require.Len(t, got.Details, 1)
	assert.Equal(t, coffee.Item, got.Details[0].Item)
	assert.True(t, coffee.Timestamp.Equal(got.Details[0].Timestamp))
}

func TestCalculateSpentEmptyStore(t *testing.T) {
	store := ledger.New(memory.New(), ledger.WithLocation(time.UTC))
	svc := NewService(store, resolver())

	queries := []RangeQuery{
		{Range: "today"},
		{Range: "last_day"},
		{Range: "this_month"},
		{Range: "last_month"},
		{Range: "custom", StartDate: day(1, 1), EndDate: day(1, 31)},
	}
	for _, q := range queries {
		got, err := svc.CalculateSpent(context.Background(), q)
		require.NoError(t, err, q.Range)
		assert.True(t, got.Total.IsZero(), q.Range)
		assert.NotNil(t, got.Details, q.Range)
		assert.Empty(t, got.Details, q.Range)
		assert.NotEmpty(t, got.StartDate, q.Range)
		assert.NotEmpty(t, got.EndDate, q.Range)
	}
}

type failingLedger struct{ calls int }

func (f *failingLedger) ListAll(context.Context) ([]core.ExpenseRecord, error) {
	f.calls++
	return nil, errors.New("storage down")
}
func (f *failingLedger) ByDate(context.Context, time.Time) ([]core.ExpenseRecord, error) {
	f.calls++
	return nil, errors.New("storage down")
}
func (f *failingLedger) Categories(context.Context) (core.Directory, error) {
	f.calls++
	return nil, errors.New("storage down")
}
func (f *failingLedger) Version(context.Context) (string, error) {
	return "", errors.New("storage down")
}

func TestCalculateSpentRangeErrors(t *testing.T) {
	fl := &failingLedger{}
	svc := NewService(fl, resolver())

	_, err := svc.CalculateSpent(context.Background(), RangeQuery{Range: "custom", EndDate: day(1, 31)})
	assert.ErrorIs(t, err, core.ErrMissingRangeBounds)

	_, err = svc.CalculateSpent(context.Background(), RangeQuery{Range: "fortnight"})
	assert.ErrorIs(t, err, core.ErrInvalidRange)

	assert.Zero(t, fl.calls, "bad ranges must fail before storage is read")

	_, err = svc.CalculateSpent(context.Background(), RangeQuery{Range: "today"})
	assert.Error(t, err)
}

func TestCategoryTotalsJanuary(t *testing.T) {
	dir := core.Directory{
		{ID: "food", Name: "Food", Icon: "🍔"},
		{ID: "transport", Name: "Transport", Icon: "🚗"},
	}
	store, _ := seeded(t, dir,
		rec("Coffee", 50000, "food", time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)),
		rec("Lunch", 20000, "food", time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)),
		rec("Dinner", 99000, "food", time.Date(2024, 2, 1, 19, 0, 0, 0, time.UTC)),
	)
	svc := NewService(store, resolver())

	got, err := svc.CategoryTotals(context.Background(), 1, 2024)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "🍔", got[0].Icon)
	assert.Equal(t, "Food", got[0].Category)
	assert.True(t, got[0].Total.Equal(decimal.NewFromInt(70000)))
}

func TestCategoryTotalsNumericIDsAndNonPositive(t *testing.T) {
	dir := core.Directory{
		{ID: "1", Name: "Food", Icon: "🍔"},
		{ID: "2", Name: "Transport", Icon: "🚗"},
		{ID: "3", Name: "Refunds", Icon: "💸"},
	}
	store, _ := seeded(t, dir,
		rec("Bus", 7000, "02", time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)),
		rec("Taxi", 3000, "2", time.Date(2024, 1, 4, 8, 0, 0, 0, time.UTC)),
		rec("Coffee", 50000, "1", time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)),
		rec("Refund", -5000, "3", time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC)),
		rec("Mystery", 100, "Unknown", time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC)),
	)
	svc := NewService(store, resolver())

	got, err := svc.CategoryTotals(context.Background(), 1, 2024)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Food", got[0].Category)
	assert.Equal(t, "Transport", got[1].Category)
	assert.True(t, got[1].Total.Equal(decimal.NewFromInt(10000)))
}

func TestCategoryTotalsInvalidMonth(t *testing.T) {
	svc := NewService(&failingLedger{}, resolver())
	for _, m := range []int{0, 13, -1} {
		_, err := svc.CategoryTotals(context.Background(), m, 2024)
		assert.ErrorIs(t, err, core.ErrInvalidMonth)
	}
}

func TestCategoryTotalsCacheFollowsVersion(t *testing.T) {
	ctx := context.Background()
	dir := core.Directory{{ID: "1", Name: "Food", Icon: "🍔"}}
	store, _ := seeded(t, dir, rec("Coffee", 50000, "1", time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)))
	c := cache.NewLRUCache[[]core.CategoryTotal](8, time.Hour)
	svc := NewService(store, resolver(), WithCache(c))

	first, err := svc.CategoryTotals(ctx, 1, 2024)
	require.NoError(t, err)
	_, err = svc.CategoryTotals(ctx, 1, 2024)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Stats().Hits)

	_, err = store.Insert(ctx, rec("Lunch", 20000, "Food", time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)), dir)
	require.NoError(t, err)

	second, err := svc.CategoryTotals(ctx, 1, 2024)
	require.NoError(t, err)
	assert.True(t, first[0].Total.Equal(decimal.NewFromInt(50000)))
	assert.True(t, second[0].Total.Equal(decimal.NewFromInt(70000)))
}

func TestCategoryTotalsCacheSeesWritesFromAnotherProcess(t *testing.T) {
	ctx := context.Background()
	dir := core.Directory{{ID: "1", Name: "Food", Icon: "🍔"}}
	path := filepath.Join(t.TempDir(), "ledger.db")

	serverDB, err := sqlite.New(path)
	require.NoError(t, err)
	defer serverDB.Close()
	workerDB, err := sqlite.New(path)
	require.NoError(t, err)
	defer workerDB.Close()

	server := ledger.New(serverDB, ledger.WithLocation(time.UTC))
	worker := ledger.New(workerDB, ledger.WithLocation(time.UTC))
	require.NoError(t, worker.SaveCategories(ctx, dir))

	svc := NewService(server, resolver(), WithCache(cache.NewLRUCache[[]core.CategoryTotal](8, time.Hour)))

	before, err := svc.CategoryTotals(ctx, 1, 2024)
	require.NoError(t, err)
	assert.Empty(t, before)

	_, err = worker.Insert(ctx, rec("Coffee", 50000, "Food", time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)), dir)
	require.NoError(t, err)

	spent, err := svc.CalculateSpent(ctx, RangeQuery{Range: "custom", StartDate: day(1, 1), EndDate: day(1, 31)})
	require.NoError(t, err)
	assert.True(t, spent.Total.Equal(decimal.NewFromInt(50000)))

	after, err := svc.CategoryTotals(ctx, 1, 2024)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "Food", after[0].Category)
	assert.True(t, after[0].Total.Equal(decimal.NewFromInt(50000)))
}

func TestCategoryTotalsWithoutVersionSkipsCache(t *testing.T) {
	c := cache.NewLRUCache[[]core.CategoryTotal](8, time.Hour)
	svc := NewService(&failingLedger{}, resolver(), WithCache(c))
	_, err := svc.CategoryTotals(context.Background(), 1, 2024)
	require.Error(t, err)
	assert.Zero(t, c.Stats().Misses+c.Stats().Hits)
}

func TestDailyTotals(t *testing.T) {
	store, _ := seeded(t, core.Directory{},
		rec("Coffee", 50000, "1", time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)),
		rec("Bus", 7000, "2", time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)),
		rec("Lunch", 20000, "1", time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)),
		rec("Old", 1, "1", time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC)),
	)
	svc := NewService(store, resolver())

	got, err := svc.DailyTotals(context.Background(), RangeQuery{Range: "this_month"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Mar 15", got[0].Label)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(70000)))
	assert.Equal(t, "Mar 02", got[1].Label)
}

func TestHistoryByDateAndMonthlyReport(t *testing.T) {
	dir := core.Directory{{ID: "1", Name: "Food", Icon: "🍔"}}
	store, _ := seeded(t, dir,
		rec("Coffee", 50000, "1", time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)),
		rec("Lunch", 20000, "1", time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)),
	)
	svc := NewService(store, resolver())

	recs, err := svc.HistoryByDate(context.Background(), time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Lunch", recs[0].Item)

	report, err := svc.MonthlyReport(context.Background(), 1, 2024)
	require.NoError(t, err)
	assert.Len(t, report.Records, 2)
	assert.True(t, report.Total.Equal(decimal.NewFromInt(70000)))
	require.Len(t, report.Totals, 1)
}
