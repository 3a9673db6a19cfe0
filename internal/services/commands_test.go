package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendlog/internal/core"
	"spendlog/internal/ledger"
	"spendlog/internal/persist"
	"spendlog/internal/persist/memory"
	"spendlog/internal/query"
	"spendlog/internal/timerange"
)

var fixedNow = time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*CommandService, *ledger.Store) {
	t.Helper()
	p := memory.New()
	require.NoError(t, persist.SaveJSON(context.Background(), p, persist.KeyCategory, core.Directory{
		{ID: "1", Name: "Food", Icon: "🍔"},
		{ID: "2", Name: "Transport", Icon: "🚗"},
	}))
	store := ledger.New(p, ledger.WithLocation(time.UTC))
	clock := func() time.Time { return fixedNow }
	q := query.NewService(store, timerange.NewResolver(timerange.WithClock(clock), timerange.WithLocation(time.UTC)))
	return NewCommandService(store, q, WithClock(clock), WithLocation(time.UTC)), store
}

func cmd(kind CommandKind, params string) Command {
	return Command{Kind: kind, Params: json.RawMessage(params)}
}

func TestAddExpenseCommand(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	reply, err := svc.Dispatch(ctx, cmd(KindAddExpense, `{"item":"Coffee","amount":"50k","category":"Food"}`))
	require.NoError(t, err)
	assert.Equal(t, ReplySuccess, reply.Kind)
	assert.Contains(t, reply.Content, "Coffee")
	assert.Contains(t, reply.Content, "Food")

	recs, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Amount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, core.CategoryID("1"), recs[0].Category)
	assert.True(t, recs[0].Timestamp.Equal(fixedNow))
}

func TestAddExpenseDuplicateIsWarning(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	_, err := svc.Dispatch(ctx, cmd(KindAddExpense, `{"item":"Coffee","amount":50000,"category":"Food"}`))
	require.NoError(t, err)
	reply, err := svc.Dispatch(ctx, cmd(KindAddExpense, `{"item":"Coffee","amount":50000,"category":"Food"}`))
	require.NoError(t, err)
	assert.Equal(t, ReplyWarning, reply.Kind)

	recs, _ := store.ListAll(ctx)
	assert.Len(t, recs, 1)
}

func TestAddExpenseUnknownCategoryIsWarning(t *testing.T) {
	svc, _ := newService(t)
	reply, err := svc.Dispatch(context.Background(), cmd(KindAddExpense, `{"item":"Gift","amount":10000,"category":"Presents"}`))
	require.NoError(t, err)
	assert.Equal(t, ReplyWarning, reply.Kind)
	assert.Contains(t, reply.Content, "Presents")
}

func TestAddExpenseBadParams(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Dispatch(context.Background(), cmd(KindAddExpense, `{"item":"Coffee","amount":"lots"}`))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.Dispatch(context.Background(), cmd(KindAddExpense, `{"item":`))
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = svc.Dispatch(context.Background(), cmd(KindAddExpense, `{"item":"  ","amount":1}`))
	assert.ErrorIs(t, err, core.ErrEmptyItem)
}

func TestUpdateAndDeleteCommands(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	reply, err := svc.Dispatch(ctx, cmd(KindUpdateExpense, `{"timestamp":1704448800000,"amount":1}`))
	require.NoError(t, err)
	assert.Equal(t, ReplyWarning, reply.Kind, "nothing stored yet")

	_, err = svc.Dispatch(ctx, cmd(KindAddExpense, `{"item":"Coffee","amount":50000,"category":"Food"}`))
	require.NoError(t, err)

	reply, err = svc.Dispatch(ctx, cmd(KindUpdateExpense, `{"timestamp":1704448800000,"amount":"55k","category":"02"}`))
	require.NoError(t, err)
	assert.Equal(t, ReplySuccess, reply.Kind)
	recs, _ := store.ListAll(ctx)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Amount.Equal(decimal.NewFromInt(55000)))
	assert.Equal(t, core.CategoryID("2"), recs[0].Category)

	_, err = svc.Dispatch(ctx, cmd(KindUpdateExpense, `{"amount":1}`))
	assert.ErrorIs(t, err, ErrInvalidParams)

	reply, err = svc.Dispatch(ctx, cmd(KindDeleteExpense, `{"item":"Coffee","amount":55000}`))
	require.NoError(t, err)
	assert.Equal(t, ReplySuccess, reply.Kind)
	assert.Equal(t, ledger.DeleteResult{Deleted: true, Removed: 1}, reply.Data)

	reply, err = svc.Dispatch(ctx, cmd(KindDeleteExpense, `{"item":"Coffee","amount":55000}`))
	require.NoError(t, err)
	assert.Equal(t, ReplyInfo, reply.Kind)
}

func TestNumericAmountsAreTakenExactly(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	_, err := svc.Dispatch(ctx, cmd(KindAddExpense, `{"item":"Rent","amount":5e4,"category":"Food"}`))
	require.NoError(t, err)
	_, err = store.Insert(ctx, core.ExpenseRecord{Item: "Sample", Amount: decimal.Zero, Category: "1", Timestamp: fixedNow}, nil)
	require.NoError(t, err)

	recs, _ := store.ListAll(ctx)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Amount.Equal(decimal.NewFromInt(50000)))

	reply, err := svc.Dispatch(ctx, cmd(KindDeleteExpense, `{"item":"Sample","amount":0}`))
	require.NoError(t, err)
	assert.Equal(t, ReplySuccess, reply.Kind)
	assert.Equal(t, ledger.DeleteResult{Deleted: true, Removed: 1}, reply.Data)

	_, err = svc.Dispatch(ctx, cmd(KindAddExpense, `{"item":"Free","amount":0}`))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = svc.Dispatch(ctx, cmd(KindAddExpense, `{"item":"Nothing"}`))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = svc.Dispatch(ctx, cmd(KindDeleteExpense, `{"item":"Rent","amount":true}`))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestQueryCommands(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.Dispatch(ctx, cmd(KindAddExpense, `{"item":"Coffee","amount":50000,"category":"Food"}`))
	require.NoError(t, err)

	reply, err := svc.Dispatch(ctx, cmd(KindCalculateSpent, `{"range":"custom","start_date":"2024-01-01","end_date":"2024-01-31"}`))
	require.NoError(t, err)
	assert.Equal(t, ReplyInfo, reply.Kind)
	report, ok := reply.Data.(core.SpentReport)
	require.True(t, ok)
	assert.True(t, report.Total.Equal(decimal.NewFromInt(50000)))

	_, err = svc.Dispatch(ctx, cmd(KindCalculateSpent, `{"range":"custom","end_date":"2024-01-31"}`))
	assert.ErrorIs(t, err, core.ErrMissingRangeBounds)

	_, err = svc.Dispatch(ctx, cmd(KindCalculateSpent, `{"range":"custom","start_date":"01/01/2024","end_date":"2024-01-31"}`))
	assert.ErrorIs(t, err, ErrInvalidParams)

	// Month and year default to the current ones.
	reply, err = svc.Dispatch(ctx, cmd(KindCategoryTotals, ``))
	require.NoError(t, err)
	totals, ok := reply.Data.([]core.CategoryTotal)
	require.True(t, ok)
	require.Len(t, totals, 1)
	assert.Contains(t, reply.Content, "Food")

	reply, err = svc.Dispatch(ctx, cmd(KindCategoryTotals, `{"month":2,"year":2024}`))
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "No spending")

	_, err = svc.Dispatch(ctx, cmd(KindCategoryTotals, `{"month":13,"year":2024}`))
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestUnknownCommand(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Dispatch(context.Background(), cmd("transfer_money", `{}`))
	assert.ErrorIs(t, err, core.ErrUnknownCommand)
}
