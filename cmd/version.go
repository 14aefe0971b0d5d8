package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/predictable-labs/ryu/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ryu-backup %s (engine %s)\n", cfg.Version, version.Version)
		if cfg.GitCommit != "" && cfg.GitCommit != "unknown" {
			fmt.Printf("  commit: %s\n", cfg.GitCommit)
		}
		if cfg.BuildTime != "" && cfg.BuildTime != "unknown" {
			fmt.Printf("  built:  %s\n", cfg.BuildTime)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
