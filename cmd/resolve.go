/*
Copyright © 2025 jesse galley <jesse@jessegalley.net>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jessegalley/fileserver/internal/config"
	"github.com/jessegalley/fileserver/internal/layout"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve <offset>...",
	Short: "Print the shard file holding each offset.",
	Long: `Print the shard path and in-file offset for each logical offset using the
configured layout. Nothing is created on disk. Offsets accept size suffixes
such as 4K or 1G.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd, nil, config.NewConfig())
		if err := printPaths(os.Stdout, cfg.Sharding(), args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	},
}

// printPaths writes one "offset path chunk-offset" line per argument
func printPaths(w io.Writer, s layout.Sharding, offsets []string) error {
	if err := s.Validate(); err != nil {
		return err
	}

	for _, arg := range offsets {
		off, err := config.ParseByteSize(arg)
		if err != nil {
			return fmt.Errorf("bad offset %q: %w", arg, err)
		}
		fmt.Fprintf(w, "%d\t%s\t%d\n", uint64(off), s.Path(uint64(off)), s.ChunkOffset(uint64(off)))
	}

	return nil
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
