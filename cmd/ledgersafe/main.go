package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"ledgersafe/internal/app"
	"ledgersafe/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "CreateBackup").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// confirm asks the user to approve a destructive action. When stdin is not a
// terminal the --yes flag is the only way to proceed.
func confirm(prompt string, yes bool) error {
	if yes {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("refusing without --yes: stdin is not a terminal")
	}

	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	}
	return fmt.Errorf("aborted")
}

var rootCmd = &cobra.Command{
	Use:   "ledgersafe",
	Short: "Backup and integrity engine for the bookkeeping database and receipt store",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", defaults["config_path"])
		return nil
	},
}

// init-db command

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the bookkeeping database with the current schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("InitDatabase")
		if err != nil {
			return err
		}
		defer a.Close()
		return a.InitDatabase()
	},
}

// startup command

var startupCmd = &cobra.Command{
	Use:   "startup",
	Short: "Run the startup pass: self-heal, daily backups, daily integrity audit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Startup")
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Startup()
	},
}

// backup commands

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list, restore and delete backups",
}

var (
	backupCreateFull     bool
	backupCreateReason   string
	backupCreateNoVerify bool
)

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a verified backup of the database (or database + receipts with --full)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CreateBackup")
		if err != nil {
			return err
		}
		defer a.Close()

		name, err := a.CreateBackup(backupCreateReason, backupCreateFull, backupCreateNoVerify)
		if err != nil {
			return err
		}
		fmt.Printf("Backup created: %s\n", name)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup artifacts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListBackups")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.ListBackups()
		if err != nil {
			return err
		}
		for _, e := range entries {
			date := "unknown"
			if !e.Timestamp.IsZero() {
				date = e.Timestamp.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-50s  %-8s  %-12s  %s  %.2f MB\n", e.Filename, e.Kind, e.Reason, date, e.SizeMB())
		}
		return nil
	},
}

var backupStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show retention set statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BackupStats")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.BackupStats()
		if err != nil {
			return err
		}
		fmt.Printf("Total backups:     %d (max %d)\n", stats.TotalBackups, stats.MaxBackups)
		fmt.Printf("Database backups:  %d\n", stats.DatabaseBackups)
		fmt.Printf("Full backups:      %d\n", stats.FullBackups)
		fmt.Printf("Total size:        %.2f MB\n", stats.TotalSizeMB)
		if !stats.NewestBackup.IsZero() {
			fmt.Printf("Newest:            %s\n", stats.NewestBackup.Format("2006-01-02 15:04:05"))
			fmt.Printf("Oldest:            %s\n", stats.OldestBackup.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("External mirror:   %v\n", stats.ExternalEnabled)
		return nil
	},
}

var deleteYes bool

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <filename>",
	Short: "Delete a backup artifact (never the last one)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := confirm(fmt.Sprintf("Delete backup %s?", args[0]), deleteYes); err != nil {
			return err
		}

		a, err := newApp("DeleteBackup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteBackup(args[0]); err != nil {
			return err
		}
		fmt.Printf("Backup deleted: %s\n", args[0])
		return nil
	},
}

var restoreYes bool

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <filename>",
	Short: "Restore the live state from a backup artifact",
	Long: `Restore the live database from a database-only artifact, or both the
database and the receipt store from a full archive. A pre-restore safety
backup is taken first; a failed restore rolls back automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := confirm(fmt.Sprintf("Replace live state from %s?", args[0]), restoreYes); err != nil {
			return err
		}

		a, err := newApp("Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Restore(args[0]); err != nil {
			return err
		}
		fmt.Printf("Restored from: %s\n", args[0])
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply retention, removing the oldest artifacts over the limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("PruneBackups")
		if err != nil {
			return err
		}
		defer a.Close()

		removed := a.PruneBackups()
		fmt.Printf("Removed %d old backups\n", removed)
		return nil
	},
}

var logLimit int

var backupLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the operation log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("OperationLog")
		if err != nil {
			return err
		}
		defer a.Close()

		lines, err := a.OperationLog(logLimit)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}

// integrity commands

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Audit the receipt store against the database",
}

var (
	integrityNoBaseline bool
	integrityNoReport   bool
)

var integrityCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a receipt integrity audit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RunIntegrityCheck")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.RunIntegrityCheck(!integrityNoBaseline, !integrityNoReport)
		if err != nil {
			return err
		}
		fmt.Printf("Linked records:      %d\n", report.Summary.LinkedReceiptRecords)
		fmt.Printf("Files on disk:       %d\n", report.Summary.FilesOnDisk)
		fmt.Printf("Missing files:       %d\n", report.Summary.MissingLinkedFiles)
		fmt.Printf("Orphan files:        %d\n", report.Summary.OrphanFiles)
		fmt.Printf("Checksum mismatches: %d\n", report.Summary.ChecksumMismatches)
		return nil
	},
}

var reportsLimit int

var integrityReportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List persisted integrity reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("IntegrityReports")
		if err != nil {
			return err
		}
		defer a.Close()

		listings, err := a.IntegrityReports(reportsLimit)
		if err != nil {
			return err
		}
		for _, l := range listings {
			fmt.Printf("%-55s  missing=%d orphan=%d mismatch=%d\n",
				l.Filename, l.MissingLinkedFiles, l.OrphanFiles, l.ChecksumMismatches)
		}
		return nil
	},
}

// drill command

var drillCmd = &cobra.Command{
	Use:   "drill [filename]",
	Short: "Rehearse a restore from a full backup without touching live state",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RunRestoreDrill")
		if err != nil {
			return err
		}
		defer a.Close()

		filename := ""
		if len(args) == 1 {
			filename = args[0]
		}
		report, err := a.RunRestoreDrill(filename)
		if err != nil {
			return err
		}
		fmt.Printf("Backup:         %s\n", report.Backup)
		fmt.Printf("Linked records: %d\n", report.LinkedReceiptRecords)
		fmt.Printf("Result:         %s\n", report.Message)
		for _, m := range report.MissingReceiptFiles {
			fmt.Printf("  missing: invoice %d (%s) -> %s\n", m.InvoiceID, m.PJVNumber, m.ReceiptPath)
		}
		if !report.Success {
			return fmt.Errorf("restore drill failed")
		}
		return nil
	},
}

func init() {
	backupCreateCmd.Flags().BoolVar(&backupCreateFull, "full", false, "include the receipt store in the backup")
	backupCreateCmd.Flags().StringVar(&backupCreateReason, "reason", "manual", "why the backup is being taken")
	backupCreateCmd.Flags().BoolVar(&backupCreateNoVerify, "skip-verification", false, "skip schema verification of the snapshot (not recommended)")
	backupDeleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "do not ask for confirmation")
	backupRestoreCmd.Flags().BoolVar(&restoreYes, "yes", false, "do not ask for confirmation")
	backupLogCmd.Flags().IntVarP(&logLimit, "limit", "n", 100, "maximum entries to show")
	integrityCheckCmd.Flags().BoolVar(&integrityNoBaseline, "no-baseline", false, "do not update the checksum baseline")
	integrityCheckCmd.Flags().BoolVar(&integrityNoReport, "no-report", false, "do not persist a report file")
	integrityReportsCmd.Flags().IntVarP(&reportsLimit, "limit", "n", 30, "maximum reports to show")

	configCmd.AddCommand(configInitCmd)
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupStatsCmd, backupDeleteCmd, backupRestoreCmd, backupPruneCmd, backupLogCmd)
	integrityCmd.AddCommand(integrityCheckCmd, integrityReportsCmd)
	rootCmd.AddCommand(configCmd, initDBCmd, startupCmd, backupCmd, integrityCmd, drillCmd)
}
