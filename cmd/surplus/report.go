package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/surplus/internal/clock"
	"github.com/dukerupert/surplus/internal/maintenance"
	"github.com/dukerupert/surplus/internal/model"
	"github.com/dukerupert/surplus/internal/query"
)

var reportCmd = &cobra.Command{
	Use:   "report [ID|SLUG]",
	Short: "Run a report, list the catalog, or run every report with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		city, _ := cmd.Flags().GetString("city")
		asCSV, _ := cmd.Flags().GetBool("csv")
		out := cmd.OutOrStdout()

		if len(args) == 0 && !all {
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, r := range query.Catalog() {
				input := ""
				if r.NeedsCity {
					input = "--city"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.Slug, r.Title, input)
			}
			return tw.Flush()
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		reports := query.NewReports(query.NewExecutor(db, logger), clock.Real{})

		if all {
			var failed int
			for _, res := range reports.RunAll(cmd.Context()) {
				fmt.Fprintf(out, "== %d. %s ==\n", res.Report.ID, res.Report.Title)
				if res.Err != nil {
					failed++
					fmt.Fprintf(out, "error: %v\n\n", res.Err)
					continue
				}
				if err := printTable(out, res.Table, asCSV); err != nil {
					return err
				}
				fmt.Fprintln(out)
			}
			if failed > 0 {
				return fmt.Errorf("%d report(s) failed", failed)
			}
			return nil
		}

		rep, ok := query.BySlug(args[0])
		if !ok {
			return fmt.Errorf("unknown report %q", args[0])
		}
		t, err := reports.Run(cmd.Context(), rep.ID, query.Params{City: city})
		if err != nil {
			return err
		}
		return printTable(out, t, asCSV)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query SQL [ARGS...]",
	Short: "Run a read-only SQL statement with positional ? parameters",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asCSV, _ := cmd.Flags().GetBool("csv")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		params := make([]any, 0, len(args)-1)
		for _, a := range args[1:] {
			params = append(params, a)
		}
		t, err := query.NewExecutor(db, logger).Run(cmd.Context(), args[0], params...)
		if err != nil {
			return err
		}
		return printTable(cmd.OutOrStdout(), t, asCSV)
	},
}

// printTable writes t as aligned columns, or as CSV when asCSV is set.
func printTable(w io.Writer, t *model.Table, asCSV bool) error {
	if asCSV {
		return maintenance.WriteCSV(w, t)
	}
	if t.Empty() {
		fmt.Fprintln(w, "(no rows)")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d row(s))\n", t.Len())
	return nil
}

func init() {
	reportCmd.Flags().Bool("all", false, "Run every report that needs no input")
	reportCmd.Flags().String("city", "", "City for the provider contacts report")
	reportCmd.Flags().Bool("csv", false, "Print CSV instead of aligned columns")
	queryCmd.Flags().Bool("csv", false, "Print CSV instead of aligned columns")
}
