/*
Copyright © 2025 jesse galley <jesse@jessegalley.net>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jessegalley/fileserver/internal/config"
	"github.com/jessegalley/fileserver/internal/runners"
)

// randrwCmd represents the randrw command
var randrwCmd = &cobra.Command{
	Use:   "randrw [test_path]",
	Short: "Perform mixed random read/write tests.",
	Long: `Drive random block-aligned reads and writes across the whole shard tree.
Reads of shards that were never written count as not found, so combine with
--prefill to measure reads of existing data.
If test_path is not provided, fileserver will try to make and use ./fileserver_test`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd, args, config.NewConfig())
		runWorkload(cfg, runners.Random)
	},
}

func init() {
	rootCmd.AddCommand(randrwCmd)
}
