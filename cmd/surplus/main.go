// Command surplus manages the food donation database: schema setup, bulk
// loading, reports, maintenance and the dashboard API server.
package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/surplus/internal/config"
	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "surplus",
	Short:        "Food donation tracking database and dashboard API",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			if v, ok := os.LookupEnv("SURPLUS_CONFIG"); ok {
				path = v
			}
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if cmd.Flags().Changed("db") {
			cfg.Database.Path, _ = cmd.Flags().GetString("db")
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat, _ = cmd.Flags().GetString("log-format")
		}

		logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

// openDB opens the configured database, creating the schema if needed. The
// caller must close it.
func openDB() (*sql.DB, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	return db, nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a TOML config file (default $SURPLUS_CONFIG)")
	rootCmd.PersistentFlags().String("db", "", "Database file path")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(configCmd)
}
