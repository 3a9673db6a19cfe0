package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"spendlog/internal/core"
	"spendlog/internal/ledger"
	"spendlog/internal/timerange"
)

func newAddCommand(a *app) *cobra.Command {
	var (
		category string
		at       string
	)
	cmd := &cobra.Command{
		Use:   "add <amount> <item...>",
		Short: "Record an expense",
		Long: `Record an expense. Amounts accept shorthand such as 50k, 1.5tr or 12,50.
The same item and amount twice on one day is rejected as a duplicate.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q", err, args[0])
			}
			ts := a.now()
			if at != "" {
				if ts, err = timerange.ParseDate(at, a.location()); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			st, err := a.open(ctx)
			if err != nil {
				return err
			}
			dir, err := st.Ledger.Categories(ctx)
			if err != nil {
				return err
			}
			res, err := st.Ledger.Insert(ctx, core.ExpenseRecord{
				Item:      strings.Join(args[1:], " "),
				Amount:    amount,
				Category:  core.CategoryID(strings.TrimSpace(category)),
				Timestamp: ts,
			}, dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, map[string]any{"record": res.Record, "category_resolved": res.CategoryResolved})
			}
			fmt.Fprintf(out, "Saved %s %s (%s) at %d\n", res.Record.Item, res.Record.Amount,
				categoryLabel(dir.Index(), res.Record.Category), res.Record.Timestamp.UnixMilli())
			if !res.CategoryResolved && category != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: category %q is not in the directory\n", category)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "category name or id")
	cmd.Flags().StringVar(&at, "at", "", "date or time of the expense (YYYY-MM-DD, RFC 3339 or epoch ms)")
	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var (
		timestamp int64
		item      string
		amount    string
		category  string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the expenses recorded at a timestamp",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			patch := ledger.RecordPatch{Timestamp: time.UnixMilli(timestamp)}
			if cmd.Flags().Changed("item") {
				patch.Item = &item
			}
			if cmd.Flags().Changed("amount") {
				d, err := core.ParseAmount(amount)
				if err != nil {
					return fmt.Errorf("%w: %q", err, amount)
				}
				patch.Amount = &d
			}
			if cmd.Flags().Changed("category") {
				id := core.CategoryID(category)
				patch.Category = &id
			}

			st, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := st.Ledger.Update(cmd.Context(), patch)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("no expenses have been recorded yet")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Updated")
			return nil
		},
	}
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "epoch milliseconds of the record (see list)")
	_ = cmd.MarkFlagRequired("timestamp")
	cmd.Flags().StringVar(&item, "item", "", "new item")
	cmd.Flags().StringVar(&amount, "amount", "", "new amount")
	cmd.Flags().StringVar(&category, "category", "", "new category id")
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	var item, amount string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove every expense with the given item and amount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := core.ParseAmount(amount)
			if err != nil {
				return fmt.Errorf("%w: %q", err, amount)
			}
			st, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := st.Ledger.Delete(cmd.Context(), ledger.DeleteCriteria{Item: item, Amount: d})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, res)
			}
			if !res.Deleted {
				fmt.Fprintln(out, "Nothing matched")
				return nil
			}
			fmt.Fprintf(out, "Removed %d expense(s)\n", res.Removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&item, "item", "", "item to remove")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to remove")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newCategoriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the category directory",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the category directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			dir, err := st.Ledger.Categories(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, dir)
			}
			t := newTable(out)
			fmt.Fprintln(t, "ID\tICON\tNAME")
			for _, c := range dir {
				fmt.Fprintf(t, "%s\t%s\t%s\n", c.ID, c.Icon, c.Name)
			}
			return t.Flush()
		},
	}

	imp := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Replace the directory with a JSON array of {id, name, icon}",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			var dir core.Directory
			if err := json.Unmarshal(data, &dir); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			st, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.Ledger.SaveCategories(cmd.Context(), dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d categories\n", len(dir))
			return nil
		},
	}

	cmd.AddCommand(list, imp)
	return cmd
}
