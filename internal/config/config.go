// Package config holds the options of a fileserver run: the shard layout,
// the workload shape, the engine flags and the output settings.
//
// Configuration sources (in order of precedence):
//  1. command line flags
//  2. environment variables (FILESERVER_*, dashes become underscores)
//  3. a YAML configuration file
//  4. default values
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jessegalley/fileserver/internal/engine"
	"github.com/jessegalley/fileserver/internal/layout"
)

// engine kinds
const (
	EngineThreads = "threads"
	EngineSync    = "sync"
)

// DirectAlignment is the buffer and block alignment required for O_DIRECT
const DirectAlignment = 4096

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration parameters for a run
type Config struct {
	// shard layout
	Directory     string   `mapstructure:"directory" yaml:"directory" validate:"required"`
	ChunkSize     ByteSize `mapstructure:"chunk-size" yaml:"chunk-size" validate:"gt=0"`
	DirLevels     int      `mapstructure:"dir-levels" yaml:"dir-levels" validate:"gte=0,lte=16"`
	SubdirsPerDir int      `mapstructure:"subdirs-per-dir" yaml:"subdirs-per-dir" validate:"gte=0"`

	// workload
	Size      ByteSize      `mapstructure:"size" yaml:"size" validate:"gt=0"`                // logical address space shared by all jobs
	BlockSize ByteSize      `mapstructure:"block" yaml:"block" validate:"gt=0"`              // size of each io
	IODepth   int           `mapstructure:"iodepth" yaml:"iodepth" validate:"gte=1,lte=4096"` // requests kept in flight per job
	NumJobs   int           `mapstructure:"numjobs" yaml:"numjobs" validate:"gte=1"`          // parallel jobs, one engine each
	Runtime   time.Duration `mapstructure:"runtime" yaml:"runtime" validate:"gt=0"`          // timed phase duration
	RWMix     int           `mapstructure:"rwmix" yaml:"rwmix" validate:"gte=0,lte=100"`     // percentage of reads
	FsyncFreq int           `mapstructure:"fsync" yaml:"fsync" validate:"gte=0"`             // sync request every n writes, 0 disables
	Prefill   bool          `mapstructure:"prefill" yaml:"prefill"`                          // write the whole space before the timed phase

	// engine
	Engine       string `mapstructure:"engine" yaml:"engine" validate:"oneof=threads sync"`
	FsyncOnClose bool   `mapstructure:"fsync-on-close" yaml:"fsync-on-close"`
	DirectIO     bool   `mapstructure:"direct" yaml:"direct"`
	SyncIO       bool   `mapstructure:"sync" yaml:"sync"`
	ReadOnly     bool   `mapstructure:"readonly" yaml:"readonly"`

	// output
	Format      string `mapstructure:"format" yaml:"format" validate:"oneof=table json flat"`
	Output      string `mapstructure:"output" yaml:"output"`
	MetricsAddr string `mapstructure:"metrics-addr" yaml:"metrics-addr" validate:"omitempty,hostname_port"`
	LogLevel    string `mapstructure:"log-level" yaml:"log-level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFormat   string `mapstructure:"log-format" yaml:"log-format" validate:"oneof=text json"`
	Quiet       bool   `mapstructure:"quiet" yaml:"quiet"`
	Debug       bool   `mapstructure:"debug" yaml:"debug"`
}

// NewConfig creates a new Config instance with sensible default values
func NewConfig() *Config {
	return &Config{
		Directory:     "./fileserver_test/",          // shard tree in the current working directory
		ChunkSize:     layout.DefaultChunkSize,       // 256 KiB shards
		DirLevels:     layout.DefaultDirLevels,       // two levels of subdirectories
		SubdirsPerDir: layout.DefaultSubdirsPerDir,   // 64 subdirectories per level
		Size:          1 << 30,                       // 1 GiB of logical space
		BlockSize:     4096,                          // 4k io
		IODepth:       8,                             // eight requests in flight
		NumJobs:       1,                             // single job by default
		Runtime:       10 * time.Second,              // ten second timed phase
		RWMix:         75,                            // 75% reads, 25% writes
		FsyncFreq:     0,                             // no sync requests
		Prefill:       false,                         // no prefill pass
		Engine:        EngineThreads,                 // asynchronous engine
		FsyncOnClose:  false,                         // no fsync before close
		DirectIO:      false,                         // buffered io
		SyncIO:        false,                         // no o_sync
		ReadOnly:      false,                         // writes allowed
		Format:        "table",                       // human readable table
		Output:        "",                            // stdout only
		MetricsAddr:   "",                            // no metrics endpoint
		LogLevel:      "info",                        // info and above
		LogFormat:     "text",                        // logfmt style lines
		Quiet:         false,                         // live progress on
		Debug:         false,                         // no config dump
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(configStructLevel, Config{})
	return v
}

// configStructLevel checks rules spanning several fields
func configStructLevel(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)

	if c.DirLevels > 0 && c.SubdirsPerDir <= 0 {
		sl.ReportError(c.SubdirsPerDir, "SubdirsPerDir", "subdirs-per-dir", "required_with_levels", "")
	}
	if c.BlockSize > c.Size {
		sl.ReportError(c.BlockSize, "BlockSize", "block", "lte_size", "")
	}
	if c.DirectIO && c.BlockSize%DirectAlignment != 0 {
		sl.ReportError(c.BlockSize, "BlockSize", "block", "direct_aligned", "")
	}
	// a read-only run must never issue a write
	if c.ReadOnly && (c.RWMix < 100 || c.Prefill) {
		sl.ReportError(c.ReadOnly, "ReadOnly", "readonly", "reads_only", "")
	}
}

// Validate checks every option and the rules between them
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Sharding returns the shard layout described by c
func (c *Config) Sharding() layout.Sharding {
	return layout.Sharding{
		Root:          c.Directory,
		ChunkSize:     uint64(c.ChunkSize),
		DirLevels:     c.DirLevels,
		SubdirsPerDir: c.SubdirsPerDir,
	}
}

// EngineOptions returns the engine options described by c. the caller adds
// the filesystem and metrics.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Sharding:     c.Sharding(),
		FsyncOnClose: c.FsyncOnClose,
		DirectIO:     c.DirectIO,
		SyncIO:       c.SyncIO,
		ReadOnly:     c.ReadOnly,
	}
}
