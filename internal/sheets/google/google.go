package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendlog/internal/core"
	"spendlog/internal/log"
	ports "spendlog/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	loc           *time.Location
	logger        *log.Logger
}

var _ ports.ReportWriter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to reach it.
// CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON string
	Location        *time.Location
	Logger          *log.Logger
}

// NewFromEnv creates a Sheets client from GOOGLE_SPREADSHEET_ID and one of
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return New(ctx, Config{
		SpreadsheetID:   os.Getenv("GOOGLE_SPREADSHEET_ID"),
		CredentialsFile: file,
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
	})
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentSheets)
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	var cred goption.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		cred = goption.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		logger.InfoContext(ctx, "Using service account file", "path", cfg.CredentialsFile)
		cred = goption.WithCredentialsFile(cfg.CredentialsFile)
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx, cred, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: id, loc: loc, logger: logger}, nil
}

// WriteMonthlyReport replaces the contents of the month's report tab,
// creating the tab first when the spreadsheet does not have it.
func (c *Client) WriteMonthlyReport(ctx context.Context, r core.MonthlyReport) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	name := ports.ReportSheetName(r.Year, r.Month)
	if err := c.ensureSheet(ctx, name); err != nil {
		return err
	}

	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, a1(name, "A:Z"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}

	vr := &gsheet.ValueRange{Values: ports.ReportRows(r, c.loc)}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(name, "A1"), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", name, err)
	}

	c.logger.InfoContext(ctx, "Report written",
		"sheet", name,
		log.FieldCount, len(r.Records))
	return nil
}

func (c *Client) ensureSheet(ctx context.Context, name string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	if hasSheet(ss, name) {
		return nil
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	c.logger.InfoContext(ctx, "Report sheet created", "sheet", name)
	return nil
}

func hasSheet(ss *gsheet.Spreadsheet, name string) bool {
	if ss == nil {
		return false
	}
	for _, s := range ss.Sheets {
		if s != nil && s.Properties != nil && s.Properties.Title == name {
			return true
		}
	}
	return false
}

// a1 quotes the sheet name, which contains a space.
func a1(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}
