package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendlog/internal/core"
	"spendlog/internal/ledger"
	"spendlog/internal/log"
	"spendlog/internal/metrics"
	"spendlog/internal/query"
	"spendlog/internal/timerange"
)

// CommandKind names an assistant tool call.
type CommandKind string

const (
	KindAddExpense     CommandKind = "add_expense"
	KindUpdateExpense  CommandKind = "update_expense"
	KindDeleteExpense  CommandKind = "delete_expense"
	KindCalculateSpent CommandKind = "calculate_spent"
	KindCategoryTotals CommandKind = "category_totals"
)

// ReplyKind drives how a reply is badged in the chat.
type ReplyKind string

const (
	ReplySuccess ReplyKind = "success"
	ReplyWarning ReplyKind = "warning"
	ReplyError   ReplyKind = "error"
	ReplyInfo    ReplyKind = "info"
)

type Command struct {
	Kind   CommandKind     `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Reply struct {
	Kind    ReplyKind `json:"kind"`
	Content string    `json:"content"`
	Data    any       `json:"data,omitempty"`
}

// ErrInvalidParams wraps command parameters that cannot be decoded.
var ErrInvalidParams = errors.New("invalid command params")

// Ledger is the write side of ledger.Store.
type Ledger interface {
	Insert(ctx context.Context, rec core.ExpenseRecord, dir core.Directory) (ledger.InsertResult, error)
	Update(ctx context.Context, patch ledger.RecordPatch) (bool, error)
	Delete(ctx context.Context, c ledger.DeleteCriteria) (ledger.DeleteResult, error)
	Categories(ctx context.Context) (core.Directory, error)
}

// Queries is the read side used by commands.
type Queries interface {
	CalculateSpent(ctx context.Context, q query.RangeQuery) (core.SpentReport, error)
	CategoryTotals(ctx context.Context, month, year int) ([]core.CategoryTotal, error)
}

// CommandService turns assistant commands into ledger operations.
type CommandService struct {
	ledger  Ledger
	queries Queries
	loc     *time.Location
	now     func() time.Time
	logger  *log.Logger
	metrics *metrics.Metrics
}

type Option func(*CommandService)

func WithClock(now func() time.Time) Option {
	return func(s *CommandService) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *CommandService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *CommandService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentCommands)
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CommandService) { s.metrics = m }
}

func NewCommandService(l Ledger, q Queries, opts ...Option) *CommandService {
	s := &CommandService{
		ledger:  l,
		queries: q,
		loc:     time.Local,
		now:     time.Now,
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch runs cmd. A duplicate insert is reported as a warning reply, not
// an error; bad params, bad ranges and unknown kinds are returned as errors.
func (s *CommandService) Dispatch(ctx context.Context, cmd Command) (Reply, error) {
	var (
		reply Reply
		err   error
	)
	switch cmd.Kind {
	case KindAddExpense:
		reply, err = s.addExpense(ctx, cmd.Params)
	case KindUpdateExpense:
		reply, err = s.updateExpense(ctx, cmd.Params)
	case KindDeleteExpense:
		reply, err = s.deleteExpense(ctx, cmd.Params)
	case KindCalculateSpent:
		reply, err = s.calculateSpent(ctx, cmd.Params)
	case KindCategoryTotals:
		reply, err = s.categoryTotals(ctx, cmd.Params)
	default:
		err = fmt.Errorf("%w: %q", core.ErrUnknownCommand, cmd.Kind)
	}

	if err != nil {
		s.metrics.Command(string(cmd.Kind), string(ReplyError))
		s.logger.WarnContext(ctx, "Command failed",
			log.FieldCommand, string(cmd.Kind),
			log.FieldError, err.Error())
		return Reply{}, err
	}
	s.metrics.Command(string(cmd.Kind), string(reply.Kind))
	s.logger.InfoContext(ctx, "Command handled",
		log.FieldCommand, string(cmd.Kind),
		"reply_kind", string(reply.Kind))
	return reply, nil
}

type addParams struct {
	Item      string        `json:"item"`
	Amount    amountParam   `json:"amount"`
	Category  string        `json:"category"`
	Timestamp *timestampArg `json:"timestamp,omitempty"`
}

func (s *CommandService) addExpense(ctx context.Context, raw json.RawMessage) (Reply, error) {
	var p addParams
	if err := decodeParams(raw, &p); err != nil {
		return Reply{}, err
	}
	if p.Amount.IsZero() {
		return Reply{}, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount)
	}
	ts := s.now()
	if p.Timestamp != nil {
		ts = p.Timestamp.Time
	}
	rec := core.ExpenseRecord{
		Item:      strings.TrimSpace(p.Item),
		Amount:    p.Amount.Decimal,
		Category:  core.CategoryID(strings.TrimSpace(p.Category)),
		Timestamp: ts,
	}

	dir, err := s.ledger.Categories(ctx)
	if err != nil {
		return Reply{}, err
	}
	res, err := s.ledger.Insert(ctx, rec, dir)
	if errors.Is(err, core.ErrDuplicateEntry) {
		return Reply{
			Kind:    ReplyWarning,
			Content: fmt.Sprintf("Duplicate expense found: %s %s was already recorded today", rec.Item, rec.Amount),
		}, nil
	}
	if err != nil {
		return Reply{}, err
	}

	if !res.CategoryResolved {
		return Reply{
			Kind:    ReplyWarning,
			Content: fmt.Sprintf("Saved %s %s, but category %q is not in the directory", res.Record.Item, res.Record.Amount, rec.Category),
			Data:    res.Record,
		}, nil
	}
	name := string(res.Record.Category)
	if c, ok := dir.Index().ID(res.Record.Category); ok {
		name = c.Icon + " " + c.Name
	}
	return Reply{
		Kind:    ReplySuccess,
		Content: fmt.Sprintf("Saved %s %s (%s)", res.Record.Item, res.Record.Amount, strings.TrimSpace(name)),
		Data:    res.Record,
	}, nil
}

type updateParams struct {
	Timestamp timestampArg     `json:"timestamp"`
	Item      *string          `json:"item,omitempty"`
	Amount    *amountParam     `json:"amount,omitempty"`
	Category  *core.CategoryID `json:"category,omitempty"`
}

func (s *CommandService) updateExpense(ctx context.Context, raw json.RawMessage) (Reply, error) {
	var p updateParams
	if err := decodeParams(raw, &p); err != nil {
		return Reply{}, err
	}
	if p.Timestamp.IsZero() {
		return Reply{}, fmt.Errorf("%w: timestamp is required", ErrInvalidParams)
	}
	patch := ledger.RecordPatch{Timestamp: p.Timestamp.Time, Item: p.Item, Category: p.Category}
	if p.Amount != nil {
		patch.Amount = &p.Amount.Decimal
	}

	ok, err := s.ledger.Update(ctx, patch)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Reply{Kind: ReplyWarning, Content: "No expenses have been recorded yet"}, nil
	}
	return Reply{Kind: ReplySuccess, Content: "Expense updated"}, nil
}

type deleteParams struct {
	Item   string      `json:"item"`
	Amount amountParam `json:"amount"`
}

func (s *CommandService) deleteExpense(ctx context.Context, raw json.RawMessage) (Reply, error) {
	var p deleteParams
	if err := decodeParams(raw, &p); err != nil {
		return Reply{}, err
	}
	res, err := s.ledger.Delete(ctx, ledger.DeleteCriteria{Item: p.Item, Amount: p.Amount.Decimal})
	if err != nil {
		return Reply{}, err
	}
	if !res.Deleted {
		return Reply{Kind: ReplyInfo, Content: fmt.Sprintf("No expense matched %s %s", p.Item, p.Amount.Decimal), Data: res}, nil
	}
	return Reply{Kind: ReplySuccess, Content: fmt.Sprintf("Deleted %d expense(s)", res.Removed), Data: res}, nil
}

type spentParams struct {
	Range     string `json:"range"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

func (s *CommandService) calculateSpent(ctx context.Context, raw json.RawMessage) (Reply, error) {
	var p spentParams
	if err := decodeParams(raw, &p); err != nil {
		return Reply{}, err
	}
	start, err := s.optionalDate(p.StartDate)
	if err != nil {
		return Reply{}, err
	}
	end, err := s.optionalDate(p.EndDate)
	if err != nil {
		return Reply{}, err
	}
	q := query.RangeQuery{Range: p.Range, StartDate: start, EndDate: end}

	report, err := s.queries.CalculateSpent(ctx, q)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Kind:    ReplyInfo,
		Content: fmt.Sprintf("Spent %s across %d expense(s)", report.Total, len(report.Details)),
		Data:    report,
	}, nil
}

func (s *CommandService) optionalDate(v string) (*time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	t, err := timerange.ParseDate(v, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return &t, nil
}

type totalsParams struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (s *CommandService) categoryTotals(ctx context.Context, raw json.RawMessage) (Reply, error) {
	var p totalsParams
	if err := decodeParams(raw, &p); err != nil {
		return Reply{}, err
	}
	now := s.now().In(s.loc)
	if p.Month == 0 {
		p.Month = int(now.Month())
	}
	if p.Year == 0 {
		p.Year = now.Year()
	}
	totals, err := s.queries.CategoryTotals(ctx, p.Month, p.Year)
	if err != nil {
		return Reply{}, err
	}
	if len(totals) == 0 {
		return Reply{Kind: ReplyInfo, Content: fmt.Sprintf("No spending recorded for %02d/%d", p.Month, p.Year), Data: totals}, nil
	}
	lines := make([]string, 0, len(totals))
	for _, t := range totals {
		lines = append(lines, fmt.Sprintf("%s %s: %s", t.Icon, t.Category, t.Total))
	}
	return Reply{Kind: ReplyInfo, Content: strings.Join(lines, "\n"), Data: totals}, nil
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// amountParam accepts a JSON number, taken exactly as written, or a
// shorthand string such as "50k".
type amountParam struct {
	decimal.Decimal
}

func (a *amountParam) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		d, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		a.Decimal = d
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidAmount, data)
	}
	a.Decimal = d
	return nil
}

// timestampArg accepts epoch milliseconds or an RFC 3339 string.
type timestampArg struct {
	time.Time
}

func (t *timestampArg) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	t.Time = time.UnixMilli(ms)
	return nil
}
