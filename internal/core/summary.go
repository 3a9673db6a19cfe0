package core

import "github.com/shopspring/decimal"

// CategoryTotal is a per-category total joined with its display data.
type CategoryTotal struct {
	Icon     string          `json:"icon"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// DayTotal is the amount spent on one calendar day, labelled like "Jan 05".
type DayTotal struct {
	Label  string          `json:"timestamp"`
	Amount decimal.Decimal `json:"amount"`
}

// SpentReport is the result of a range query. StartDate and EndDate are the
// resolved boundaries in ISO-8601 UTC.
type SpentReport struct {
	Range     string          `json:"range"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Total     decimal.Decimal `json:"total"`
	Details   []ExpenseRecord `json:"details"`
}

// MonthlyReport bundles what the spreadsheet export writes for one month.
type MonthlyReport struct {
	Year    int
	Month   int // 1-12
	Total   decimal.Decimal
	Records []ExpenseRecord
	Totals  []CategoryTotal
}
