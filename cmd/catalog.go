package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/predictable-labs/ryu/internal/catalog"
	"github.com/predictable-labs/ryu/internal/logger"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the backup catalog",
	Long: `Inspect the SQLite catalog of recorded backups.

Examples:
  # All recorded backups, newest first
  ryu-backup catalog list

  # Newest good backup of a database
  ryu-backup catalog latest /data/graph.ryu`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all recorded backups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.NewSQLiteCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer func() { _ = cat.Close() }()

		entries, err := cat.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			logger.Info("No backups recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATABASE\tBACKUP\tPAGES\tSIZE\tSTATUS\tCREATED\tDURATION")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%.1fs\n",
				e.ID, e.DatabasePath, e.BackupPath, e.NumPages,
				humanize.Bytes(uint64(e.SizeBytes)), e.Status,
				e.CreatedAt.Local().Format(time.DateTime), e.Duration)
		}
		return w.Flush()
	},
}

var catalogLatestCmd = &cobra.Command{
	Use:   "latest <database-path>",
	Short: "Show the newest completed backup of a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.NewSQLiteCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer func() { _ = cat.Close() }()

		entry, err := cat.Latest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("no completed backup recorded for %s", args[0])
		}

		logger.Header("Latest backup of %s", entry.DatabasePath)
		logger.StatusLine("Location", entry.BackupPath)
		logger.StatusLine("Created", entry.CreatedAt.Local().Format(time.DateTime))
		logger.StatusLine("Pages", fmt.Sprintf("%d", entry.NumPages))
		logger.StatusLine("Size", humanize.Bytes(uint64(entry.SizeBytes)))
		logger.StatusLine("Snapshot", fmt.Sprintf("%d", entry.SnapshotTS))
		logger.StatusLine("Checksum", entry.SHA256)
		logger.StatusLine("Engine", entry.RyuVersion)
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogLatestCmd)
	rootCmd.AddCommand(catalogCmd)
}
