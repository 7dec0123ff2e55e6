/*
Copyright © 2025 jesse galley <jesse@jessegalley.net>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jessegalley/fileserver/internal/config"
)

// configCmd groups configuration helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration.",
}

// configDumpCmd represents the config dump command
var configDumpCmd = &cobra.Command{
	Use:   "dump [path]",
	Short: "Write the effective configuration as yaml.",
	Long: `Write the configuration that a run would use, after merging defaults, the
config file, the environment and flags. With a path the file is replaced
atomically, otherwise the yaml goes to stdout.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd, nil, config.NewConfig())

		if len(args) == 1 {
			if err := cfg.Save(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
	},
}

func init() {
	configCmd.AddCommand(configDumpCmd)
	rootCmd.AddCommand(configCmd)
}
