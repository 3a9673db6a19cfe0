// Package ledger owns the persisted expense collection and the category
// directory. Every mutation rewrites the whole collection through the
// persistence provider; there are no incremental writes.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"spendlog/internal/aggregate"
	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/metrics"
	"spendlog/internal/persist"
	"spendlog/internal/timerange"
)

type Store struct {
	provider persist.Provider
	loc      *time.Location
	logger   *log.Logger
	metrics  *metrics.Metrics

	// mu serializes read-modify-write cycles inside this process only.
	mu      sync.Mutex
	version atomic.Uint64
}

type Option func(*Store)

// WithLocation sets the zone used for calendar-day comparisons.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentLedger)
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func New(p persist.Provider, opts ...Option) *Store {
	s := &Store{
		provider: p,
		loc:      time.Local,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the zone calendar days are computed in.
func (s *Store) Location() *time.Location { return s.loc }

// Version changes after every successful write to the ledger documents. When
// the provider implements persist.Versioner the value comes from storage, so
// writes made by other processes sharing it are seen too; otherwise only
// writes through this Store count.
func (s *Store) Version(ctx context.Context) (string, error) {
	if v, ok := s.provider.(persist.Versioner); ok {
		rev, err := v.Revision(ctx, persist.KeyExpenseHistory, persist.KeyCategory)
		if err != nil {
			return "", fmt.Errorf("ledger version: %w", err)
		}
		return "p" + rev, nil
	}
	return "l" + strconv.FormatUint(s.version.Load(), 10), nil
}

// InsertResult reports the stored record. CategoryResolved is false when the
// category name did not match the directory and was stored verbatim.
type InsertResult struct {
	Record           core.ExpenseRecord
	CategoryResolved bool
}

// RecordPatch carries the fields to merge into records matching Timestamp.
// Nil fields are left untouched.
type RecordPatch struct {
	Timestamp time.Time
	Item      *string
	Amount    *decimal.Decimal
	Category  *core.CategoryID
}

type DeleteCriteria struct {
	Item   string
	Amount decimal.Decimal
}

type DeleteResult struct {
	Deleted bool `json:"deleted"`
	Removed int  `json:"removed"`
}

// ListAll returns every record in insertion order, or an empty slice when
// nothing has been stored yet.
func (s *Store) ListAll(ctx context.Context) ([]core.ExpenseRecord, error) {
	recs, _, err := s.load(ctx)
	return recs, err
}

// Insert rejects a record that repeats the item and amount of an existing
// record on the same local calendar day, resolves its category name against
// dir, then appends and persists.
func (s *Store) Insert(ctx context.Context, rec core.ExpenseRecord, dir core.Directory) (InsertResult, error) {
	if err := rec.Validate(); err != nil {
		s.metrics.LedgerOp(log.OpInsert, "invalid")
		return InsertResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, _, err := s.load(ctx)
	if err != nil {
		s.metrics.LedgerOp(log.OpInsert, "error")
		return InsertResult{}, err
	}

	for _, existing := range recs {
		if existing.Item == rec.Item && existing.Amount.Equal(rec.Amount) && timerange.SameDay(existing.Timestamp, rec.Timestamp, s.loc) {
			s.metrics.LedgerOp(log.OpInsert, "duplicate")
			s.logger.InfoContext(ctx, "Duplicate expense rejected",
				log.NewFields().WithExpense(rec.Item, rec.Amount, string(rec.Category)).ToSlice()...)
			return InsertResult{}, fmt.Errorf("%w: %s %s on %s", core.ErrDuplicateEntry,
				rec.Item, rec.Amount, rec.Timestamp.In(s.loc).Format(time.DateOnly))
		}
	}

	resolved := false
	idx := dir.Index()
	if c, ok := idx.Name(string(rec.Category)); ok {
		rec.Category = c.ID
		resolved = true
	} else if _, ok := idx.ID(rec.Category); ok {
		resolved = true
	} else {
		s.logger.WarnContext(ctx, "Category not found in directory, stored as given",
			log.FieldCategory, string(rec.Category))
	}

	recs = append(recs, rec)
	if err := s.save(ctx, recs); err != nil {
		s.metrics.LedgerOp(log.OpInsert, "error")
		return InsertResult{}, err
	}

	s.metrics.LedgerOp(log.OpInsert, "ok")
	s.logger.InfoContext(ctx, "Expense inserted",
		log.NewFields().WithExpense(rec.Item, rec.Amount, string(rec.Category)).ToSlice()...)
	return InsertResult{Record: rec, CategoryResolved: resolved}, nil
}

// Update merges patch into every record whose timestamp equals
// patch.Timestamp to the millisecond, coercing the category to its numeric
// form. It returns false only when no collection has been stored; zero
// matches still persist and report true.
func (s *Store) Update(ctx context.Context, patch RecordPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, ok, err := s.load(ctx)
	if err != nil {
		s.metrics.LedgerOp(log.OpUpdate, "error")
		return false, err
	}
	if !ok {
		s.metrics.LedgerOp(log.OpUpdate, "missing")
		return false, nil
	}

	matched := 0
	for i := range recs {
		if recs[i].Timestamp.UnixMilli() != patch.Timestamp.UnixMilli() {
			continue
		}
		next := recs[i]
		if patch.Item != nil {
			next.Item = *patch.Item
		}
		if patch.Amount != nil {
			next.Amount = *patch.Amount
		}
		if patch.Category != nil {
			next.Category = *patch.Category
		}
		next.Category = next.Category.Numeric()
		if err := next.Validate(); err != nil {
			s.metrics.LedgerOp(log.OpUpdate, "invalid")
			return false, err
		}
		recs[i] = next
		matched++
	}

	if err := s.save(ctx, recs); err != nil {
		s.metrics.LedgerOp(log.OpUpdate, "error")
		return false, err
	}
	s.metrics.LedgerOp(log.OpUpdate, "ok")
	s.logger.InfoContext(ctx, "Expenses updated",
		log.FieldTimestamp, patch.Timestamp.UnixMilli(),
		log.FieldCount, matched)
	return true, nil
}

// Delete removes every record with the given item and amount, whatever its
// day. The collection is persisted only when something was removed.
func (s *Store) Delete(ctx context.Context, c DeleteCriteria) (DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, _, err := s.load(ctx)
	if err != nil {
		s.metrics.LedgerOp(log.OpDelete, "error")
		return DeleteResult{}, err
	}

	kept := make([]core.ExpenseRecord, 0, len(recs))
	for _, r := range recs {
		if r.Item == c.Item && r.Amount.Equal(c.Amount) {
			continue
		}
		kept = append(kept, r)
	}
	removed := len(recs) - len(kept)
	if removed == 0 {
		s.metrics.LedgerOp(log.OpDelete, "noop")
		return DeleteResult{}, nil
	}

	if err := s.save(ctx, kept); err != nil {
		s.metrics.LedgerOp(log.OpDelete, "error")
		return DeleteResult{}, err
	}
	s.metrics.LedgerOp(log.OpDelete, "ok")
	s.logger.InfoContext(ctx, "Expenses deleted",
		log.FieldItem, c.Item,
		log.FieldAmount, c.Amount.String(),
		log.FieldCount, removed)
	return DeleteResult{Deleted: true, Removed: removed}, nil
}

// ByDate returns the records on day's local calendar day.
func (s *Store) ByDate(ctx context.Context, day time.Time) ([]core.ExpenseRecord, error) {
	recs, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.FilterByDay(recs, day, s.loc), nil
}

// ByMonth returns the records of a local calendar month.
func (s *Store) ByMonth(ctx context.Context, year int, month time.Month) ([]core.ExpenseRecord, error) {
	recs, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.FilterByMonth(recs, year, month, s.loc), nil
}

// Categories returns the stored directory, empty when none was saved.
func (s *Store) Categories(ctx context.Context) (core.Directory, error) {
	dir, ok, err := persist.LoadJSON[core.Directory](ctx, s.provider, persist.KeyCategory)
	if err != nil {
		return nil, err
	}
	if !ok || dir == nil {
		return core.Directory{}, nil
	}
	return dir, nil
}

// SaveCategories validates and replaces the directory.
func (s *Store) SaveCategories(ctx context.Context, dir core.Directory) error {
	if err := dir.Validate(); err != nil {
		return err
	}
	if dir == nil {
		dir = core.Directory{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := persist.SaveJSON(ctx, s.provider, persist.KeyCategory, dir); err != nil {
		return err
	}
	s.version.Add(1)
	s.logger.InfoContext(ctx, "Category directory saved", log.FieldCount, len(dir))
	return nil
}

func (s *Store) load(ctx context.Context) ([]core.ExpenseRecord, bool, error) {
	recs, ok, err := persist.LoadJSON[[]core.ExpenseRecord](ctx, s.provider, persist.KeyExpenseHistory)
	if err != nil {
		return nil, false, err
	}
	if recs == nil {
		recs = []core.ExpenseRecord{}
	}
	return recs, ok, nil
}

func (s *Store) save(ctx context.Context, recs []core.ExpenseRecord) error {
	if err := persist.SaveJSON(ctx, s.provider, persist.KeyExpenseHistory, recs); err != nil {
		return err
	}
	s.version.Add(1)
	s.metrics.LedgerSize(len(recs))
	return nil
}
