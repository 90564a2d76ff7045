package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dukerupert/surplus/internal/backup"
	"github.com/dukerupert/surplus/internal/clock"
	"github.com/dukerupert/surplus/internal/server"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a timestamped copy of the database",
	Long: "Writes food_waste_backup_YYYYMMDD_HHMMSS.db into the backup directory, or to\n" +
		"--out. With --encrypt the copy is sealed with the configured passphrase\n" +
		"(prompted for when unset); with --upload it is also sent to S3.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		upload, _ := cmd.Flags().GetBool("upload")

		opts := backup.Options{Target: out, Encrypt: encrypt, Upload: upload}
		if encrypt && cfg.Backup.Passphrase == "" {
			p, err := promptPassphrase(true)
			if err != nil {
				return err
			}
			opts.Passphrase = p
		}

		mgr, closeDB, err := newBackupManager()
		if err != nil {
			return err
		}
		defer closeDB()

		res, err := mgr.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%d bytes)\n", res.Path, res.SizeBytes)
		if res.Key != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded as %s\n", res.Key)
		}
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups in the backup directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := backup.List(cfg.Backup.Dir)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No backups found.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, f := range files {
			enc := ""
			if f.Encrypted {
				enc = "encrypted"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", f.ModTime.Format("2006-01-02 15:04:05"), f.Path, f.SizeBytes, enc)
		}
		return tw.Flush()
	},
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify PATH",
	Short: "Check that a backup opens and holds all four tables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase := cfg.Backup.Passphrase
		if strings.HasSuffix(args[0], backup.EncryptedExt) && passphrase == "" {
			p, err := promptPassphrase(false)
			if err != nil {
				return err
			}
			passphrase = p
		}
		if err := backup.Verify(cmd.Context(), args[0], passphrase); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
		return nil
	},
}

var backupFetchCmd = &cobra.Command{
	Use:   "fetch KEY DEST",
	Short: "Download an uploaded backup from S3",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, closeDB, err := newBackupManager()
		if err != nil {
			return err
		}
		defer closeDB()

		if err := mgr.Fetch(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s to %s\n", args[0], args[1])
		return nil
	},
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove backups older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, closeDB, err := newBackupManager()
		if err != nil {
			return err
		}
		defer closeDB()

		n, err := mgr.Cleanup(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d backup(s)\n", n)
		return nil
	},
}

func newBackupManager() (*backup.Manager, func(), error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	mgr := backup.NewManager(server.BackupConfig(cfg), db, clock.Real{}, logger, nil)
	return mgr, func() { db.Close() }, nil
}

// promptPassphrase reads a passphrase from the terminal without echo. With
// confirm set it asks twice and requires both entries to match.
func promptPassphrase(confirm bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no backup passphrase configured and stdin is not a terminal; set SURPLUS_BACKUP_PASSPHRASE")
	}

	fmt.Fprint(os.Stderr, "Backup passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", errors.New("passphrase must not be empty")
	}
	if !confirm {
		return string(first), nil
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passphrases do not match")
	}
	return string(first), nil
}

func init() {
	backupCmd.Flags().StringP("out", "o", "", "Target file (default: timestamped name in the backup directory)")
	backupCmd.Flags().Bool("encrypt", false, "Encrypt the copy with the backup passphrase")
	backupCmd.Flags().Bool("upload", false, "Upload the copy to the configured S3 bucket")

	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupVerifyCmd)
	backupCmd.AddCommand(backupFetchCmd)
	backupCmd.AddCommand(backupCleanupCmd)
}
