package persist

import (
	"context"
	"encoding/json"
	"fmt"
)

// Keys owned by the ledger.
const (
	KeyExpenseHistory = "expense-history"
	KeyCategory       = "category"
)

// Provider is a key-value store for whole JSON documents. A missing key is
// reported with ok == false, never as an error.
type Provider interface {
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	Save(ctx context.Context, key string, data []byte) error
}

// Versioner is implemented by providers that can report a revision for a set
// of keys. The revision changes whenever any of the keys is saved, by this
// process or by another one sharing the same storage.
type Versioner interface {
	Revision(ctx context.Context, keys ...string) (string, error)
}

// LoadJSON decodes the document stored under key. A stored JSON null counts
// as absent.
func LoadJSON[T any](ctx context.Context, p Provider, key string) (T, bool, error) {
	var zero T
	data, ok, err := p.Load(ctx, key)
	if err != nil {
		return zero, false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(data) == 0 || string(data) == "null" {
		return zero, false, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// SaveJSON overwrites key with the JSON encoding of v.
func SaveJSON[T any](ctx context.Context, p Provider, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := p.Save(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
