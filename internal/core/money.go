// Package core provides the ledger domain types and amount parsing.
//
// This file parses amounts typed into the chat box, where people write
// shorthand such as "50k", "1.5tr" or "12,50".
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var amountSuffixes = []struct {
	suffix string
	scale  int32
}{
	{"tr", 6}, // triệu
	{"m", 6},
	{"k", 3},
}

var currencyMarks = []string{"vnd", "đ", "₫", "€", "$"}

// ParseAmount converts a user-entered amount to a decimal.
//
// A leading minus is kept so refunds can be recorded. Thousands separators are
// dropped: a single comma followed by exactly three digits is a separator,
// any other single comma is a decimal mark. Zero is rejected.
//
// Examples:
//
//	ParseAmount("50k")     -> 50000
//	ParseAmount("1.5tr")   -> 1500000
//	ParseAmount("12,50")   -> 12.5
//	ParseAmount("50,000đ") -> 50000
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, mark := range currencyMarks {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, mark), mark))
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	var scale int32
	for _, sfx := range amountSuffixes {
		if strings.HasSuffix(s, sfx.suffix) {
			s = strings.TrimSuffix(s, sfx.suffix)
			scale = sfx.scale
			break
		}
	}

	s = normalizeSeparators(s)
	if s == "" || strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Shift(scale)
	if d.IsZero() {
		return decimal.Zero, ErrInvalidAmount
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

func normalizeSeparators(s string) string {
	commas := strings.Count(s, ",")
	switch {
	case commas == 0:
		return s
	case strings.Contains(s, "."):
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		i := strings.IndexByte(s, ',')
		if len(s)-i-1 == 3 {
			return s[:i] + s[i+1:]
		}
		return s[:i] + "." + s[i+1:]
	default:
		// 1,234,567
		return strings.ReplaceAll(s, ",", "")
	}
}
