// Package query composes the range resolver, the ledger store and the
// aggregator into the read operations exposed to callers.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spendlog/internal/aggregate"
	"spendlog/internal/cache"
	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/metrics"
	"spendlog/internal/timerange"
)

// Ledger is the read side of ledger.Store.
type Ledger interface {
	ListAll(ctx context.Context) ([]core.ExpenseRecord, error)
	ByDate(ctx context.Context, day time.Time) ([]core.ExpenseRecord, error)
	Categories(ctx context.Context) (core.Directory, error)
	Version(ctx context.Context) (string, error)
}

// RangeQuery names the window of a spent or daily query. StartDate and
// EndDate are read only for the custom range.
type RangeQuery struct {
	Range     string
	StartDate *time.Time
	EndDate   *time.Time
}

type Service struct {
	ledger   Ledger
	resolver *timerange.Resolver
	totals   *cache.LRUCache[[]core.CategoryTotal]
	logger   *log.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

// WithCache caches CategoryTotals results. Entries are keyed by the ledger
// version read from storage, so a write by any process sharing the backend
// moves lookups to a fresh key.
func WithCache(c *cache.LRUCache[[]core.CategoryTotal]) Option {
	return func(s *Service) { s.totals = c }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentQuery)
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(l Ledger, r *timerange.Resolver, opts ...Option) *Service {
	if r == nil {
		r = timerange.NewResolver()
	}
	s := &Service{ledger: l, resolver: r, logger: log.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CalculateSpent totals the records inside the resolved range. The range is
// resolved before the ledger is read, so a bad range never touches storage.
func (s *Service) CalculateSpent(ctx context.Context, q RangeQuery) (core.SpentReport, error) {
	rng, err := s.resolve(q)
	if err != nil {
		s.metrics.Query("calculate_spent", err)
		return core.SpentReport{}, err
	}

	recs, err := s.ledger.ListAll(ctx)
	if err != nil {
		s.metrics.Query("calculate_spent", err)
		return core.SpentReport{}, fmt.Errorf("calculate spent: %w", err)
	}

	details := aggregate.FilterByRange(recs, rng.Start, rng.End)
	report := core.SpentReport{
		Range:     q.Range,
		StartDate: timerange.FormatISO(rng.Start),
		EndDate:   timerange.FormatISO(rng.End),
		Total:     aggregate.Sum(details),
		Details:   details,
	}
	s.metrics.Query("calculate_spent", nil)
	s.logger.DebugContext(ctx, "Spent calculated",
		log.FieldRange, q.Range,
		log.FieldCount, len(details),
		log.FieldAmount, report.Total.String())
	return report, nil
}

// DailyTotals groups the records inside the resolved range by local calendar
// day, in order of first appearance.
func (s *Service) DailyTotals(ctx context.Context, q RangeQuery) ([]core.DayTotal, error) {
	rng, err := s.resolve(q)
	if err != nil {
		s.metrics.Query("daily_totals", err)
		return nil, err
	}
	recs, err := s.ledger.ListAll(ctx)
	if err != nil {
		s.metrics.Query("daily_totals", err)
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	s.metrics.Query("daily_totals", nil)
	return aggregate.GroupByCalendarDay(aggregate.FilterByRange(recs, rng.Start, rng.End), s.resolver.Location()), nil
}

// CategoryTotals sums one local calendar month per category and joins the
// sums with the directory. Ids are compared in numeric form; entries with a
// total of zero or less are left out. Output follows directory order.
func (s *Service) CategoryTotals(ctx context.Context, month, year int) ([]core.CategoryTotal, error) {
	if month < 1 || month > 12 {
		err := fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
		s.metrics.Query("category_totals", err)
		return nil, err
	}

	load := func() ([]core.CategoryTotal, error) { return s.categoryTotals(ctx, month, year) }
	if s.totals == nil {
		out, err := load()
		s.metrics.Query("category_totals", err)
		return out, err
	}

	version, err := s.ledger.Version(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Ledger version unavailable, skipping cache", log.FieldError, err.Error())
		out, err := load()
		s.metrics.Query("category_totals", err)
		return out, err
	}
	key := fmt.Sprintf("%04d-%02d@%s", year, month, version)
	out, hit, err := s.totals.GetOrLoad(key, load)
	s.metrics.CacheLookup(hit)
	s.metrics.Query("category_totals", err)
	return out, err
}

func (s *Service) categoryTotals(ctx context.Context, month, year int) ([]core.CategoryTotal, error) {
	recs, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	dir, err := s.ledger.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}

	monthly := aggregate.FilterByMonth(recs, year, time.Month(month), s.resolver.Location())
	sums := make(map[core.CategoryID]decimal.Decimal)
	for id, total := range aggregate.GroupByCategory(monthly) {
		n := id.Numeric()
		sums[n] = sums[n].Add(total)
	}

	out := make([]core.CategoryTotal, 0, len(dir))
	seen := make(map[core.CategoryID]struct{}, len(dir))
	for _, c := range dir {
		id := c.ID.Numeric()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		total, ok := sums[id]
		if !ok || !total.IsPositive() {
			continue
		}
		out = append(out, core.CategoryTotal{Icon: c.Icon, Category: c.Name, Total: total})
	}
	return out, nil
}

// HistoryByDate returns the records of day's local calendar day.
func (s *Service) HistoryByDate(ctx context.Context, day time.Time) ([]core.ExpenseRecord, error) {
	recs, err := s.ledger.ByDate(ctx, day)
	s.metrics.Query("history_by_date", err)
	return recs, err
}

// MonthlyReport gathers what the spreadsheet export needs for one month.
func (s *Service) MonthlyReport(ctx context.Context, month, year int) (core.MonthlyReport, error) {
	totals, err := s.CategoryTotals(ctx, month, year)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	recs, err := s.ledger.ListAll(ctx)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("monthly report: %w", err)
	}
	monthly := aggregate.FilterByMonth(recs, year, time.Month(month), s.resolver.Location())
	return core.MonthlyReport{
		Year:    year,
		Month:   month,
		Total:   aggregate.Sum(monthly),
		Records: monthly,
		Totals:  totals,
	}, nil
}

func (s *Service) resolve(q RangeQuery) (timerange.Range, error) {
	kind, err := timerange.ParseKind(q.Range)
	if err != nil {
		return timerange.Range{}, err
	}
	return s.resolver.Resolve(timerange.Window{Kind: kind, StartDate: q.StartDate, EndDate: q.EndDate})
}
