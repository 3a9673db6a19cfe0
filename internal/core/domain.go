package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Totals and amounts go out as JSON numbers, matching the persisted layout.
	decimal.MarshalJSONWithoutQuotes = true
}

type (
	// CategoryID references a Category. Ids written by older clients may be
	// numeric; see Numeric.
	CategoryID string

	// ExpenseRecord is a single ledger entry.
	ExpenseRecord struct {
		Item      string
		Amount    decimal.Decimal
		Category  CategoryID // id after insert, raw name when unresolved
		Timestamp time.Time
	}

	Category struct {
		ID   CategoryID `json:"id"`
		Name string     `json:"name"`
		Icon string     `json:"icon"`
	}

	// Directory is the ordered list of known categories.
	Directory []Category
)

var (
	ErrDuplicateEntry     = errors.New("duplicate expense found")
	ErrInvalidRange       = errors.New("invalid range specified")
	ErrMissingRangeBounds = errors.New("for 'custom' range, both 'start_date' and 'end_date' must be provided")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyItem          = errors.New("empty item")
	ErrItemTooLong        = errors.New("item too long (max 200 characters)")
	ErrInvalidTimestamp   = errors.New("invalid timestamp")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrUnknownCommand     = errors.New("unknown command")
)

const maxItemLength = 200

func (r ExpenseRecord) Validate() error {
	if len(strings.TrimSpace(r.Item)) == 0 {
		return ErrEmptyItem
	}
	if len(r.Item) > maxItemLength {
		return ErrItemTooLong
	}
	if r.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(string(c.ID)) == "" {
		return errors.New("category id cannot be empty")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("category name cannot be empty")
	}
	return nil
}

// Validate checks every category and rejects ids that collide once normalized.
func (d Directory) Validate() error {
	seen := make(map[CategoryID]struct{}, len(d))
	for _, c := range d {
		if err := c.Validate(); err != nil {
			return errors.Join(ErrInvalidCategory, err)
		}
		id := c.ID.Numeric()
		if _, ok := seen[id]; ok {
			return errors.Join(ErrInvalidCategory, errors.New("duplicate category id "+string(c.ID)))
		}
		seen[id] = struct{}{}
	}
	return nil
}

// DirectoryIndex holds the lookups of a Directory, built once per call site.
type DirectoryIndex struct {
	byName map[string]Category
	byID   map[CategoryID]Category
}

// Index builds name and id lookups. On duplicate names the first entry wins.
func (d Directory) Index() DirectoryIndex {
	idx := DirectoryIndex{
		byName: make(map[string]Category, len(d)),
		byID:   make(map[CategoryID]Category, len(d)),
	}
	for _, c := range d {
		if _, ok := idx.byName[c.Name]; !ok {
			idx.byName[c.Name] = c
		}
		if _, ok := idx.byID[c.ID.Numeric()]; !ok {
			idx.byID[c.ID.Numeric()] = c
		}
	}
	return idx
}

// Name resolves a category by its exact display name.
func (i DirectoryIndex) Name(name string) (Category, bool) {
	c, ok := i.byName[name]
	return c, ok
}

// ID resolves a category by id; "07" and "7" refer to the same category.
func (i DirectoryIndex) ID(id CategoryID) (Category, bool) {
	c, ok := i.byID[id.Numeric()]
	return c, ok
}
