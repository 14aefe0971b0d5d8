package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/predictable-labs/ryu/internal/backup"
	"github.com/predictable-labs/ryu/internal/catalog"
	"github.com/predictable-labs/ryu/internal/fs"
	"github.com/predictable-labs/ryu/internal/logger"
	"github.com/predictable-labs/ryu/internal/progress"
	"github.com/predictable-labs/ryu/internal/storage"
)

var (
	backupOutput    string
	backupNoCatalog bool
)

var backupCmd = &cobra.Command{
	Use:   "backup <database-path>",
	Short: "Create an online backup of a database",
	Long: `Create a point-in-time consistent backup of a live database.

The database keeps serving writes while the backup runs: pages overwritten
before the worker reaches them are preserved in a shadow file, so the
backup reflects the exact state at the snapshot timestamp.

Examples:
  # Back up into an auto-named directory under the backup dir
  ryu-backup backup /data/graph.ryu

  # Back up into a specific directory
  ryu-backup backup /data/graph.ryu --output /backups/nightly`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackup(cmd.Context(), args[0])
	},
}

func runBackup(ctx context.Context, dbPath string) error {
	exists, err := fs.Exists(dbPath)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("database not found: %s", dbPath)
	}

	backupPath := backupOutput
	if backupPath == "" {
		stamp := time.Now().Format("20060102_150405")
		backupPath = filepath.Join(cfg.BackupDir,
			fmt.Sprintf("%s_%s", filepath.Base(dbPath), stamp))
	}

	db, err := storage.OpenDatabase(dbPath, cfg.PageSize)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	mgr, err := backup.NewManager(db, log)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()
	mgr.SetShadowMemoryLimit(cfg.MaxShadowInMemoryBytes)

	logger.Info("Backing up %s → %s", dbPath, backupPath)
	start := time.Now()
	if err := mgr.StartBackup(backupPath); err != nil {
		return err
	}

	state := pollBackup(ctx, mgr)
	elapsed := time.Since(start)

	meta := mgr.Metadata()
	if !backupNoCatalog {
		recordCatalogEntry(mgr, meta, backupPath, state, elapsed)
	}

	if state != backup.StateCompleted {
		logger.Error("Backup failed: %s", mgr.ErrorMessage())
		return fmt.Errorf("backup failed: %s", mgr.ErrorMessage())
	}

	logger.Success("Backup completed in %s", elapsed.Round(time.Millisecond))
	logger.StatusLine("Location", backupPath)
	logger.StatusLine("Pages", fmt.Sprintf("%d", meta.NumPages))
	logger.StatusLine("Size", humanize.Bytes(meta.BackupSizeBytes))
	logger.StatusLine("Snapshot", fmt.Sprintf("%d", meta.SnapshotTS))
	logger.StatusLine("Checksum", mgr.Checksum())
	return nil
}

// pollBackup drives the progress bar until the job reaches a terminal
// state. Interrupts (ctx cancellation) request cooperative cancellation and
// then wait for the worker to acknowledge.
func pollBackup(ctx context.Context, mgr *backup.Manager) backup.State {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("backing up"),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	est := progress.NewDefaultEstimator()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Warning("Interrupt received, cancelling backup")
			mgr.CancelBackup()
			return mgr.WaitForCompletion()
		case <-ticker.C:
			p := mgr.Progress()
			now := time.Now()
			est.Update(p, now)
			_ = bar.Set(int(p * 100))
			if eta := progress.FormatETA(est.ETA(p)); eta != "" {
				bar.Describe(fmt.Sprintf("backing up (%s)", eta))
			}

			if mgr.BackupState().IsTerminal() {
				_ = bar.Finish()
				return mgr.WaitForCompletion()
			}
		}
	}
}

func recordCatalogEntry(mgr *backup.Manager, meta backup.Metadata,
	backupPath string, state backup.State, elapsed time.Duration) {

	cat, err := catalog.NewSQLiteCatalog(cfg.CatalogPath)
	if err != nil {
		log.Warn("catalog unavailable, backup not recorded", "error", err)
		return
	}
	defer func() { _ = cat.Close() }()

	status := catalog.StatusCompleted
	if state != backup.StateCompleted {
		status = catalog.StatusFailed
	}

	entry := &catalog.Entry{
		DatabasePath: meta.DatabasePath,
		DatabaseID:   meta.DatabaseID,
		BackupPath:   backupPath,
		NumPages:     meta.NumPages,
		SizeBytes:    int64(meta.BackupSizeBytes),
		SHA256:       mgr.Checksum(),
		RyuVersion:   meta.RyuVersion,
		SnapshotTS:   meta.SnapshotTS,
		Status:       status,
		ErrorMessage: mgr.ErrorMessage(),
		CreatedAt:    time.Now().UTC(),
		Duration:     elapsed.Seconds(),
	}
	if err := cat.Record(context.Background(), entry); err != nil {
		log.Warn("failed to record backup in catalog", "error", err)
	}
}

func init() {
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "backup directory (default: auto-named under --backup-dir)")
	backupCmd.Flags().BoolVar(&backupNoCatalog, "no-catalog", false, "do not record this backup in the catalog")
	rootCmd.AddCommand(backupCmd)
}
