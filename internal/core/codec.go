package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Numeric returns the canonical integer form of the id ("07" -> "7") when it
// parses as an integer, and the id unchanged otherwise.
func (id CategoryID) Numeric() CategoryID {
	n, err := strconv.ParseInt(strings.TrimSpace(string(id)), 10, 64)
	if err != nil {
		return id
	}
	return CategoryID(strconv.FormatInt(n, 10))
}

func (id CategoryID) isCanonicalInt() bool {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

// MarshalJSON writes integer ids as JSON numbers and everything else as strings.
func (id CategoryID) MarshalJSON() ([]byte, error) {
	if id.isCanonicalInt() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *CategoryID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = CategoryID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("category: %w", err)
		}
		*id = CategoryID(n.String())
	}
	return nil
}

// expenseRecordJSON is the persisted layout: amount as a number and the
// timestamp as epoch milliseconds.
type expenseRecordJSON struct {
	Item      string      `json:"item"`
	Amount    json.Number `json:"amount"`
	Category  CategoryID  `json:"category"`
	Timestamp int64       `json:"timestamp"`
}

func (r ExpenseRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(expenseRecordJSON{
		Item:      r.Item,
		Amount:    json.Number(r.Amount.String()),
		Category:  r.Category,
		Timestamp: r.Timestamp.UnixMilli(),
	})
}

func (r *ExpenseRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Item      string          `json:"item"`
		Amount    json.RawMessage `json:"amount"`
		Category  CategoryID      `json:"category"`
		Timestamp int64           `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, err := decodeAmount(raw.Amount)
	if err != nil {
		return err
	}
	*r = ExpenseRecord{
		Item:     raw.Item,
		Amount:   amount,
		Category: raw.Category,
	}
	if raw.Timestamp != 0 {
		r.Timestamp = time.UnixMilli(raw.Timestamp)
	}
	return nil
}

// decodeAmount accepts a JSON number or a quoted number; absent means zero.
func decodeAmount(data json.RawMessage) (decimal.Decimal, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return decimal.Zero, nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return decimal.Zero, err
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	return d, nil
}
