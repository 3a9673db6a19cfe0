// Package timerange resolves named and custom time windows into concrete
// instant boundaries in a local time zone.
package timerange

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"spendlog/internal/core"
)

type Kind string

const (
	Today     Kind = "today"
	LastDay   Kind = "last_day"
	ThisMonth Kind = "this_month"
	LastMonth Kind = "last_month"
	Custom    Kind = "custom"
)

// ISOLayout matches the millisecond UTC form used in query results.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// Kinds returns every accepted range kind.
func Kinds() []Kind {
	return []Kind{Today, LastDay, ThisMonth, LastMonth, Custom}
}

// ParseKind maps a wire value to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidRange, s)
}

// Window names a range. StartDate and EndDate are only read for Custom; only
// their calendar date in the resolver's location matters.
type Window struct {
	Kind      Kind
	StartDate *time.Time
	EndDate   *time.Time
}

// Range is an inclusive [Start, End] window.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the inclusive window.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Resolver computes Range boundaries relative to a clock and location.
type Resolver struct {
	now func() time.Time
	loc *time.Location
}

type Option func(*Resolver)

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location returns the zone calendar days are computed in.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve returns the boundaries for w. Unknown kinds fail with
// core.ErrInvalidRange; a custom range without both dates fails with
// core.ErrMissingRangeBounds.
func (r *Resolver) Resolve(w Window) (Range, error) {
	now := r.now().In(r.loc)
	startOfToday := StartOfDay(now, r.loc)

	switch w.Kind {
	case Today:
		return Range{Start: startOfToday, End: now}, nil
	case LastDay:
		return Range{
			Start: startOfToday.AddDate(0, 0, -1),
			End:   startOfToday.Add(-time.Millisecond),
		}, nil
	case ThisMonth:
		return Range{Start: StartOfMonth(now, r.loc), End: now}, nil
	case LastMonth:
		startOfMonth := StartOfMonth(now, r.loc)
		return Range{
			Start: startOfMonth.AddDate(0, -1, 0),
			End:   startOfMonth.Add(-time.Millisecond),
		}, nil
	case Custom:
		if w.StartDate == nil || w.EndDate == nil || w.StartDate.IsZero() || w.EndDate.IsZero() {
			return Range{}, core.ErrMissingRangeBounds
		}
		rng := Range{
			Start: StartOfDay(*w.StartDate, r.loc),
			End:   EndOfDay(*w.EndDate, r.loc),
		}
		if rng.Start.After(rng.End) {
			return Range{}, fmt.Errorf("%w: start_date after end_date", core.ErrInvalidRange)
		}
		return rng, nil
	default:
		return Range{}, fmt.Errorf("%w: %q", core.ErrInvalidRange, w.Kind)
	}
}

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns 23:59:59.999 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// StartOfMonth returns local midnight of the first day of t's month in loc.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	y, m, _ := t.In(loc).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// FormatISO renders t as UTC with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseDate reads a calendar date ("2006-01-02") in loc, an RFC 3339
// instant, or epoch milliseconds.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
