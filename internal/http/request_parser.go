// This file implements parsing of query strings and JSON bodies shared by the
// handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendlog/internal/query"
	"spendlog/internal/timerange"
)

// maxBodyBytes bounds request bodies; a ledger write is a few hundred bytes.
const maxBodyBytes = 1 << 20

// errBadRequest marks malformed input that is not a domain validation error.
var errBadRequest = errors.New("bad request")

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from the query, defaulting each to
// the current one in now's location. Non-numeric values are rejected; the
// month range is checked by the query service.
func ParseMonthParams(q url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("%w: year %q", errBadRequest, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, fmt.Errorf("%w: month %q", errBadRequest, v)
		}
		params.Month = m
	}
	return params, nil
}

// ParseRangeQuery reads range, start_date and end_date. Dates may be
// YYYY-MM-DD (in loc), RFC 3339 or epoch milliseconds.
func ParseRangeQuery(q url.Values, loc *time.Location) (query.RangeQuery, error) {
	rq := query.RangeQuery{Range: strings.TrimSpace(q.Get("range"))}
	for _, f := range []struct {
		key string
		dst **time.Time
	}{
		{"start_date", &rq.StartDate},
		{"end_date", &rq.EndDate},
	} {
		v := strings.TrimSpace(q.Get(f.key))
		if v == "" {
			continue
		}
		t, err := timerange.ParseDate(v, loc)
		if err != nil {
			return query.RangeQuery{}, fmt.Errorf("%w: %s %q", errBadRequest, f.key, v)
		}
		*f.dst = &t
	}
	return rq, nil
}

// DecodeJSONBody decodes the request body into v, rejecting unknown fields
// and trailing data.
func DecodeJSONBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		// Keeps domain decode errors such as core.ErrInvalidAmount matchable.
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
