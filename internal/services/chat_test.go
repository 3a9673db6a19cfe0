package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShorthandInterpreter(t *testing.T) {
	cases := []struct {
		in       string
		item     string
		amount   string
		category string
	}{
		{"50k milk tea", "milk tea", "50000", ""},
		{"milk tea 50k", "milk tea", "50000", ""},
		{"1.5tr rent #Bills", "rent", "1500000", "Bills"},
		{"12,50 lunch #Food", "lunch", "12.5", "Food"},
	}
	for _, tc := range cases {
		cmd, err := ShorthandInterpreter{}.Interpret(context.Background(), tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, KindAddExpense, cmd.Kind)

		var p map[string]string
		require.NoError(t, json.Unmarshal(cmd.Params, &p))
		assert.Equal(t, tc.item, p["item"], tc.in)
		assert.Equal(t, tc.amount, p["amount"], tc.in)
		assert.Equal(t, tc.category, p["category"], tc.in)
	}

	for _, bad := range []string{"", "coffee", "coffee please", "50k #Food"} {
		_, err := ShorthandInterpreter{}.Interpret(context.Background(), bad)
		assert.ErrorIs(t, err, ErrNotUnderstood, bad)
	}
}

type stubInterpreter struct {
	cmd Command
	err error
}

func (s stubInterpreter) Interpret(context.Context, string) (Command, error) {
	return s.cmd, s.err
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	reply, err := svc.Chat(ctx, nil, "50k coffee #Food")
	require.NoError(t, err)
	assert.Equal(t, ReplySuccess, reply.Kind)
	recs, _ := store.ListAll(ctx)
	require.Len(t, recs, 1)

	reply, err = svc.Chat(ctx, nil, "hello there")
	require.NoError(t, err)
	assert.Equal(t, ReplyError, reply.Kind)

	_, err = svc.Chat(ctx, stubInterpreter{err: errors.New("model unavailable")}, "anything")
	assert.Error(t, err)

	reply, err = svc.Chat(ctx, stubInterpreter{cmd: cmd(KindCategoryTotals, `{}`)}, "how much this month?")
	require.NoError(t, err)
	assert.Equal(t, ReplyInfo, reply.Kind)
}
