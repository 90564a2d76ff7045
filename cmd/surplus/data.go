package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/surplus/internal/clock"
	"github.com/dukerupert/surplus/internal/loader"
	"github.com/dukerupert/surplus/internal/maintenance"
	"github.com/dukerupert/surplus/internal/model"
	"github.com/dukerupert/surplus/internal/query"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and its tables if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s\n", cfg.Database.Path)
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Replace all tables with the CSV files in the data directory",
	Long: "Reads providers_data.csv, receivers_data.csv, food_listings_data.csv and\n" +
		"claims_data.csv from the data directory and replaces each table in that order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.Data.Dir
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		res, err := loader.New(db, logger).LoadDir(cmd.Context(), dir)
		out := cmd.OutOrStdout()
		for _, table := range model.Tables {
			if n, ok := res.Rows[table]; ok {
				fmt.Fprintf(out, "%-14s %d row(s)\n", table, n)
			}
		}
		if err != nil {
			var te *loader.TableError
			if errors.As(err, &te) {
				return fmt.Errorf("loading stopped at %s: %w", te.Table, te.Err)
			}
			return err
		}
		for _, v := range res.Violations {
			fmt.Fprintf(out, "warning: %s row %d references a missing %s row\n", v.Table, v.RowID, v.Parent)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts, quantity totals and claim status counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := newMaintenance()
		if err != nil {
			return err
		}
		defer closeDB()

		st, err := svc.Stats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, table := range model.Tables {
			fmt.Fprintf(out, "%-14s %d\n", table, st.Counts[table])
		}
		if st.Food.TotalQuantity != nil {
			fmt.Fprintf(out, "\nQuantity: total %d, avg %.2f, min %d, max %d\n",
				*st.Food.TotalQuantity, *st.Food.AvgQuantity, *st.Food.MinQuantity, *st.Food.MaxQuantity)
		}
		if len(st.Claims) > 0 {
			fmt.Fprintln(out, "\nClaims:")
			for _, c := range st.Claims {
				fmt.Fprintf(out, "  %-10s %d\n", c.Status, c.Count)
			}
		}
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete listings that expired before today, with their claims",
	Long: "Deletes every listing whose expiry date is before today. Claims on those\n" +
		"listings are deleted too, so they drop out of the claim reports.",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := newMaintenance()
		if err != nil {
			return err
		}
		defer closeDB()

		res, err := svc.Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired listing(s) and %d claim(s) on them\n", res.Listings, res.Claims)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every table to <table>_export.csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.Export.Dir
		}

		svc, closeDB, err := newMaintenance()
		if err != nil {
			return err
		}
		defer closeDB()

		paths, err := svc.ExportAll(cmd.Context(), dir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func newMaintenance() (*maintenance.Service, func(), error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	exec := query.NewExecutor(db, logger)
	svc := maintenance.NewService(db, exec, clock.Real{}, logger)
	return svc, func() { db.Close() }, nil
}

func init() {
	loadCmd.Flags().StringP("dir", "d", "", "Directory holding the *_data.csv files (overrides config)")
	exportCmd.Flags().StringP("dir", "d", "", "Output directory (overrides config)")
}
