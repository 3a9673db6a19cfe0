package worker

import (
	"context"
	"fmt"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/log"
)

// Reporter builds the monthly report.
type Reporter interface {
	MonthlyReport(ctx context.Context, month, year int) (core.MonthlyReport, error)
}

// ReportWriter publishes a monthly report somewhere outside the ledger.
type ReportWriter interface {
	WriteMonthlyReport(ctx context.Context, r core.MonthlyReport) error
}

// ExportJob periodically writes the current month's report.
type ExportJob struct {
	reporter Reporter
	writer   ReportWriter
	loc      *time.Location
	now      func() time.Time
	logger   *log.Logger
}

func NewExportJob(r Reporter, w ReportWriter, loc *time.Location, logger *log.Logger) *ExportJob {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &ExportJob{reporter: r, writer: w, loc: loc, now: time.Now, logger: logger.WithComponent(log.ComponentWorker)}
}

// ExportMonth writes the report for one month.
func (j *ExportJob) ExportMonth(ctx context.Context, year, month int) error {
	report, err := j.reporter.MonthlyReport(ctx, month, year)
	if err != nil {
		return fmt.Errorf("build report %04d-%02d: %w", year, month, err)
	}
	if err := j.writer.WriteMonthlyReport(ctx, report); err != nil {
		return fmt.Errorf("write report %04d-%02d: %w", year, month, err)
	}
	j.logger.InfoContext(ctx, "Monthly report exported",
		log.FieldOperation, log.OpExport,
		log.FieldYear, year,
		log.FieldMonth, month,
		log.FieldCount, len(report.Records))
	return nil
}

// Run exports the current month every interval, and once at start, until ctx
// is done. Export failures are logged and retried on the next tick.
func (j *ExportJob) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		now := j.now().In(j.loc)
		if err := j.ExportMonth(ctx, now.Year(), int(now.Month())); err != nil {
			j.logger.ErrorContext(ctx, "Monthly export failed",
				log.FieldOperation, log.OpExport,
				log.FieldError, err.Error())
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
