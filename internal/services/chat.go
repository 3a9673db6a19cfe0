package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"spendlog/internal/core"
)

// Interpreter turns a free-text chat message into a command. The production
// implementation calls a language model; that client lives outside this module.
type Interpreter interface {
	Interpret(ctx context.Context, text string) (Command, error)
}

// ErrNotUnderstood is returned when a message cannot be turned into a command.
var ErrNotUnderstood = errors.New("message not understood")

// ShorthandInterpreter understands "<amount> <item> [#category]", the format
// shown as the chat placeholder, e.g. "50k milk tea #Food".
type ShorthandInterpreter struct{}

func (ShorthandInterpreter) Interpret(_ context.Context, text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return Command{}, fmt.Errorf("%w: %q", ErrNotUnderstood, text)
	}

	// Amount may lead or trail: "50k tea" and "tea 50k".
	amountAt := 0
	amount, err := core.ParseAmount(fields[0])
	if err != nil || !startsWithDigitOrSign(fields[0]) {
		amountAt = len(fields) - 1
		amount, err = core.ParseAmount(fields[amountAt])
		if err != nil {
			return Command{}, fmt.Errorf("%w: no amount in %q", ErrNotUnderstood, text)
		}
	}

	var item, category []string
	for i, f := range fields {
		if i == amountAt {
			continue
		}
		if strings.HasPrefix(f, "#") && len(f) > 1 {
			category = append(category, strings.TrimPrefix(f, "#"))
			continue
		}
		item = append(item, f)
	}
	if len(item) == 0 {
		return Command{}, fmt.Errorf("%w: no item in %q", ErrNotUnderstood, text)
	}

	params, err := json.Marshal(map[string]any{
		"item":     strings.Join(item, " "),
		"amount":   amount.String(),
		"category": strings.Join(category, " "),
	})
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: KindAddExpense, Params: params}, nil
}

func startsWithDigitOrSign(s string) bool {
	r := []rune(s)
	return len(r) > 0 && (unicode.IsDigit(r[0]) || r[0] == '-' || r[0] == '+')
}

// Chat interprets text and dispatches the resulting command. Messages the
// interpreter cannot handle come back as an error reply, not as a failure.
func (s *CommandService) Chat(ctx context.Context, interp Interpreter, text string) (Reply, error) {
	if interp == nil {
		interp = ShorthandInterpreter{}
	}
	cmd, err := interp.Interpret(ctx, text)
	if errors.Is(err, ErrNotUnderstood) {
		return Reply{Kind: ReplyError, Content: "Sorry, I could not understand that. Try something like \"50k milk tea\"."}, nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("interpret: %w", err)
	}
	return s.Dispatch(ctx, cmd)
}
