package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"spendlog/internal/core"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRecords writes one row per record with the category shown by name
// when the directory knows it.
func printRecords(w io.Writer, recs []core.ExpenseRecord, dir core.Directory, loc *time.Location) error {
	idx := dir.Index()
	t := newTable(w)
	fmt.Fprintln(t, "TIMESTAMP\tDATE\tITEM\tCATEGORY\tAMOUNT")
	for _, r := range recs {
		fmt.Fprintf(t, "%d\t%s\t%s\t%s\t%s\n",
			r.Timestamp.UnixMilli(),
			r.Timestamp.In(loc).Format("2006-01-02 15:04"),
			r.Item,
			categoryLabel(idx, r.Category),
			r.Amount.String())
	}
	return t.Flush()
}

func categoryLabel(idx core.DirectoryIndex, id core.CategoryID) string {
	if c, ok := idx.ID(id); ok {
		if c.Icon == "" {
			return c.Name
		}
		return c.Icon + " " + c.Name
	}
	return string(id)
}
