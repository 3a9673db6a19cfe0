// Package sheets exports ledger reports to spreadsheets.
package sheets

import (
	"context"
	"fmt"
	"time"

	"spendlog/internal/core"
)

// ReportWriter publishes a monthly report.
type ReportWriter interface {
	WriteMonthlyReport(ctx context.Context, r core.MonthlyReport) error
}

// ReportSheetName is the tab a monthly report is written to, e.g. "2024-01 Report".
func ReportSheetName(year, month int) string {
	return fmt.Sprintf("%04d-%02d Report", year, month)
}

// ReportRows lays out a report as a records block followed by a blank row and
// a category totals block. Timestamps are rendered in loc.
func ReportRows(r core.MonthlyReport, loc *time.Location) [][]any {
	if loc == nil {
		loc = time.Local
	}
	rows := make([][]any, 0, len(r.Records)+len(r.Totals)+5)
	rows = append(rows, []any{"Date", "Item", "Category", "Amount"})
	for _, rec := range r.Records {
		rows = append(rows, []any{
			rec.Timestamp.In(loc).Format("2006-01-02 15:04"),
			rec.Item,
			string(rec.Category),
			rec.Amount.InexactFloat64(),
		})
	}
	rows = append(rows, []any{"", "Total", "", r.Total.InexactFloat64()})
	rows = append(rows, []any{})
	rows = append(rows, []any{"Icon", "Category", "", "Total"})
	for _, t := range r.Totals {
		rows = append(rows, []any{t.Icon, t.Category, "", t.Total.InexactFloat64()})
	}
	return rows
}
