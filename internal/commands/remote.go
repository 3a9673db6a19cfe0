package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"spendlog/internal/amqp"
	"spendlog/internal/sheets"
	"spendlog/internal/worker"
)

func newEnqueueCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <kind> [params-json]",
		Short: "Publish a command for the ledger worker",
		Example: `  ledgerctl enqueue add_expense '{"item":"Coffee","amount":"50k","category":"Food"}'
  ledgerctl enqueue category_totals '{"month":1,"year":2024}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.AMQPEnabled() {
				return fmt.Errorf("queue %w: set AMQP_URL", errNotConfigured)
			}
			var params json.RawMessage
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("params are not valid JSON: %s", args[1])
				}
				params = json.RawMessage(args[1])
			}

			pub, err := a.openQueue(a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("connect to queue: %w", err)
			}
			defer pub.Close()

			msg := amqp.NewCommandMessage(args[0], params)
			if err := pub.PublishCommand(cmd.Context(), msg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s as %s\n", args[0], msg.ID)
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	var (
		mf     monthFlags
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a monthly report tab to the configured spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			month, year := mf.resolve(a.now().In(a.location()))
			st, err := a.open(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				report, err := st.Queries.MonthlyReport(ctx, month, year)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, sheets.ReportSheetName(year, month))
				t := newTable(out)
				for _, row := range sheets.ReportRows(report, a.location()) {
					for i, cell := range row {
						if i > 0 {
							fmt.Fprint(t, "\t")
						}
						fmt.Fprint(t, cell)
					}
					fmt.Fprintln(t)
				}
				return t.Flush()
			}

			if !a.cfg.SheetsEnabled() {
				return fmt.Errorf("spreadsheet %w: set GOOGLE_SPREADSHEET_ID or use --dry-run", errNotConfigured)
			}
			w, err := a.openExporter(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			job := worker.NewExportJob(st.Queries, w, a.location(), a.logger)
			if err := job.ExportMonth(ctx, year, month); err != nil {
				return err
			}
			fmt.Fprintf(out, "Exported %s\n", sheets.ReportSheetName(year, month))
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the rows instead of writing them")
	return cmd
}
