/*
Copyright © 2025 jesse galley <jesse@jessegalley.net>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jessegalley/fileserver/internal/config"
	"github.com/jessegalley/fileserver/internal/runners"
)

// seqreadCmd represents the seqread command
var seqreadCmd = &cobra.Command{
	Use:   "seqread [test_path]",
	Short: "Sequential read-only",
	Long: `Lays out the shard tree with a sequential write pass, then each job reads
its slice of the address space in order until the runtime expires.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd, args, seqreadDefaults())
		runWorkload(cfg, runners.Sequential)
	},
}

// seqreadDefaults turns prefill on and writes off unless the user says otherwise
func seqreadDefaults() *config.Config {
	d := config.NewConfig()
	d.Prefill = true
	d.RWMix = 100
	return d
}

func init() {
	rootCmd.AddCommand(seqreadCmd)
}
