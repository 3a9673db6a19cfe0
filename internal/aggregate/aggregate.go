// Package aggregate holds the pure filters and reductions used by ledger
// queries. Nothing here performs I/O.
package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"spendlog/internal/core"
)

// DayLabelLayout is the bucket label for GroupByCalendarDay, e.g. "Jan 05".
const DayLabelLayout = "Jan 02"

// FilterByRange keeps records with start <= timestamp <= end, in input order.
func FilterByRange(records []core.ExpenseRecord, start, end time.Time) []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, 0, len(records))
	for _, r := range records {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterByDay keeps records on the same local calendar day as day.
func FilterByDay(records []core.ExpenseRecord, day time.Time, loc *time.Location) []core.ExpenseRecord {
	y, m, d := day.In(loc).Date()
	out := make([]core.ExpenseRecord, 0)
	for _, r := range records {
		ry, rm, rd := r.Timestamp.In(loc).Date()
		if ry == y && rm == m && rd == d {
			out = append(out, r)
		}
	}
	return out
}

// FilterByMonth keeps records whose local month and year match.
func FilterByMonth(records []core.ExpenseRecord, year int, month time.Month, loc *time.Location) []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, 0)
	for _, r := range records {
		ts := r.Timestamp.In(loc)
		if ts.Year() == year && ts.Month() == month {
			out = append(out, r)
		}
	}
	return out
}

func Sum(records []core.ExpenseRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// GroupByCategory accumulates amounts per category as stored. Only categories
// present in records appear; joining against a directory is the caller's job.
func GroupByCategory(records []core.ExpenseRecord) map[core.CategoryID]decimal.Decimal {
	out := make(map[core.CategoryID]decimal.Decimal)
	for _, r := range records {
		out[r.Category] = out[r.Category].Add(r.Amount)
	}
	return out
}

// GroupByCalendarDay buckets amounts by local day label. Buckets are ordered
// by first appearance in records, not chronologically, and the label carries
// no year.
func GroupByCalendarDay(records []core.ExpenseRecord, loc *time.Location) []core.DayTotal {
	out := make([]core.DayTotal, 0)
	pos := make(map[string]int)
	for _, r := range records {
		label := r.Timestamp.In(loc).Format(DayLabelLayout)
		i, ok := pos[label]
		if !ok {
			pos[label] = len(out)
			out = append(out, core.DayTotal{Label: label, Amount: r.Amount})
			continue
		}
		out[i].Amount = out[i].Amount.Add(r.Amount)
	}
	return out
}
