package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spendlog/internal/core"
	"spendlog/internal/query"
	"spendlog/internal/timerange"
)

type rangeFlags struct {
	kind  string
	start string
	end   string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "range", string(timerange.ThisMonth), "today, last_day, this_month, last_month or custom")
	cmd.Flags().StringVar(&f.start, "start", "", "first day of a custom range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day of a custom range (YYYY-MM-DD)")
}

func (f *rangeFlags) query(loc *time.Location) (query.RangeQuery, error) {
	rq := query.RangeQuery{Range: f.kind}
	if f.start != "" {
		t, err := timerange.ParseDate(f.start, loc)
		if err != nil {
			return query.RangeQuery{}, fmt.Errorf("invalid --start: %w", err)
		}
		rq.StartDate = &t
	}
	if f.end != "" {
		t, err := timerange.ParseDate(f.end, loc)
		if err != nil {
			return query.RangeQuery{}, fmt.Errorf("invalid --end: %w", err)
		}
		rq.EndDate = &t
	}
	return rq, nil
}

type monthFlags struct {
	month int
	year  int
}

func (f *monthFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.month, "month", 0, "month 1-12 (default current)")
	cmd.Flags().IntVar(&f.year, "year", 0, "year (default current)")
}

// resolve fills unset values from now.
func (f *monthFlags) resolve(now time.Time) (month, year int) {
	month, year = f.month, f.year
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	return month, year
}

func newSpentCommand(a *app) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "spent",
		Short: "Total spent over a time range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rq, err := rf.query(a.location())
			if err != nil {
				return err
			}
			st, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			report, err := st.Queries.CalculateSpent(cmd.Context(), rq)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, report)
			}
			dir, err := st.Ledger.Categories(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s to %s\n", report.Range, report.StartDate, report.EndDate)
			fmt.Fprintf(out, "Total: %s\n\n", report.Total)
			return printRecords(out, report.Details, dir, a.location())
		},
	}
	rf.register(cmd)
	return cmd
}

func newDailyCommand(a *app) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Amount spent per calendar day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rq, err := rf.query(a.location())
			if err != nil {
				return err
			}
			st, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			days, err := st.Queries.DailyTotals(cmd.Context(), rq)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				if days == nil {
					days = []core.DayTotal{}
				}
				return printJSON(out, days)
			}
			t := newTable(out)
			fmt.Fprintln(t, "DAY\tAMOUNT")
			for _, d := range days {
				fmt.Fprintf(t, "%s\t%s\n", d.Label, d.Amount)
			}
			return t.Flush()
		},
	}
	rf.register(cmd)
	return cmd
}

func newTotalsCommand(a *app) *cobra.Command {
	var mf monthFlags
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Per-category totals for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			month, year := mf.resolve(a.now().In(a.location()))
			st, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			totals, err := st.Queries.CategoryTotals(cmd.Context(), month, year)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				if totals == nil {
					totals = []core.CategoryTotal{}
				}
				return printJSON(out, totals)
			}
			t := newTable(out)
			fmt.Fprintln(t, "ICON\tCATEGORY\tTOTAL")
			for _, c := range totals {
				fmt.Fprintf(t, "%s\t%s\t%s\n", c.Icon, c.Category, c.Total)
			}
			return t.Flush()
		},
	}
	mf.register(cmd)
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var (
		date string
		mf   monthFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses, optionally for one day or one month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.open(ctx)
			if err != nil {
				return err
			}

			var recs []core.ExpenseRecord
			switch {
			case date != "":
				day, perr := timerange.ParseDate(date, a.location())
				if perr != nil {
					return fmt.Errorf("invalid --date: %w", perr)
				}
				recs, err = st.Queries.HistoryByDate(ctx, day)
			case cmd.Flags().Changed("month") || cmd.Flags().Changed("year"):
				month, year := mf.resolve(a.now().In(a.location()))
				if month < 1 || month > 12 {
					return fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
				}
				recs, err = st.Ledger.ByMonth(ctx, year, time.Month(month))
			default:
				recs, err = st.Ledger.ListAll(ctx)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				if recs == nil {
					recs = []core.ExpenseRecord{}
				}
				return printJSON(out, recs)
			}
			dir, err := st.Ledger.Categories(ctx)
			if err != nil {
				return err
			}
			return printRecords(out, recs, dir, a.location())
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "only this day (YYYY-MM-DD)")
	mf.register(cmd)
	return cmd
}
