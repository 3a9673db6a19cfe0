package google

import (
	"context"
	"strings"
	"testing"

	gsheet "google.golang.org/api/sheets/v4"

	"spendlog/internal/core"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWriteMonthlyReport_Uninitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	err := c.WriteMonthlyReport(context.Background(), core.MonthlyReport{Year: 2024, Month: 1})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestHasSheet(t *testing.T) {
	ss := &gsheet.Spreadsheet{Sheets: []*gsheet.Sheet{
		{Properties: &gsheet.SheetProperties{Title: "Sheet1"}},
		{},
		{Properties: &gsheet.SheetProperties{Title: "2024-01 Report"}},
	}}
	if !hasSheet(ss, "2024-01 Report") {
		t.Error("expected report sheet to be found")
	}
	if hasSheet(ss, "2024-02 Report") {
		t.Error("unexpected match")
	}
	if hasSheet(nil, "Sheet1") {
		t.Error("nil spreadsheet has no sheets")
	}
}

func TestA1(t *testing.T) {
	tests := []struct {
		sheet, cells, want string
	}{
		{"2024-01 Report", "A1", "'2024-01 Report'!A1"},
		{"Bob's", "A:Z", "'Bob''s'!A:Z"},
	}
	for _, tt := range tests {
		if got := a1(tt.sheet, tt.cells); got != tt.want {
			t.Errorf("a1(%q, %q) = %q, want %q", tt.sheet, tt.cells, got, tt.want)
		}
	}
}
