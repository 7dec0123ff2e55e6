package config

import (
	"github.com/spf13/pflag"
)

// RegisterFlags defines one flag per option on fs, named after the option
// keys, with d supplying the defaults shown in help output
func RegisterFlags(fs *pflag.FlagSet, d *Config) {
	chunk, size, block := d.ChunkSize, d.Size, d.BlockSize

	// shard layout
	fs.String("directory", d.Directory, "root of the shard tree")
	fs.Var(&chunk, "chunk-size", "logical bytes covered by each shard file")
	fs.Int("dir-levels", d.DirLevels, "subdirectory levels between the root and a shard file")
	fs.Int("subdirs-per-dir", d.SubdirsPerDir, "subdirectories per directory level")

	// workload
	fs.VarP(&size, "size", "s", "logical address space shared by all jobs")
	fs.VarP(&block, "block", "b", "size of each io")
	fs.IntP("iodepth", "q", d.IODepth, "requests kept in flight per job")
	fs.IntP("numjobs", "P", d.NumJobs, "number of parallel jobs")
	fs.DurationP("runtime", "t", d.Runtime, "duration of the timed phase")
	fs.Int("rwmix", d.RWMix, "percentage of operations that should be reads (0-100)")
	fs.Int("fsync", d.FsyncFreq, "issue a sync request after this many writes (0 disables)")
	fs.Bool("prefill", d.Prefill, "write the whole address space before the timed phase")

	// engine
	fs.String("engine", d.Engine, "io engine (threads or sync)")
	fs.Bool("fsync-on-close", d.FsyncOnClose, "fsync every written shard before closing it")
	fs.BoolP("direct", "d", d.DirectIO, "use direct io (o_direct)")
	fs.Bool("sync", d.SyncIO, "open shards with O_SYNC")
	fs.Bool("readonly", d.ReadOnly, "reject every write")

	// output
	fs.String("format", d.Format, "output format (table, json, or flat)")
	fs.StringP("output", "o", d.Output, "also write the formatted result to this file")
	fs.String("metrics-addr", d.MetricsAddr, "serve prometheus metrics on this address while running")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("log-format", d.LogFormat, "log format (text or json)")
	fs.BoolP("quiet", "Q", d.Quiet, "suppress live progress output")
	fs.Bool("debug", d.Debug, "dump the effective configuration before running")
}
