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

var (
	cfgFile string // yaml configuration file
	version bool   // print version and exit
)

// program info const
const progVersion string = "0.3.0"
const progAuthor string = "jesse galley <jesse@jessegalley.net>"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fileserver",
	Short: "Benchmark a filesystem through a sharded file tree.",
	Long: `fileserver maps a large logical address space onto a tree of small
shard files and drives it with an asynchronous io engine, the way a
fileserver spreads data over many files and directories.

Every option can also be set in a yaml file (--config) or through
FILESERVER_* environment variables.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// check if version flag was set
		if version {
			fmt.Printf("fileserver v%s\n%s\ngithub.com/jessegalley/fileserver\n", progVersion, progAuthor)
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags(), config.NewConfig())

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "yaml configuration file")
	rootCmd.PersistentFlags().BoolVarP(&version, "version", "V", false, "print version and exit")
}
