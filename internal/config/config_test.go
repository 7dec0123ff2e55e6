package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jessegalley/fileserver/internal/layout"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fileserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, NewConfig())
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestNewConfigIsValid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ByteSize(262144), cfg.ChunkSize)
	assert.Equal(t, 2, cfg.DirLevels)
	assert.Equal(t, 64, cfg.SubdirsPerDir)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(NewConfig(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
directory: /srv/shards
chunk-size: 1M
dir-levels: 3
subdirs-per-dir: 16
size: 10G
block: 64K
iodepth: 32
runtime: 90s
rwmix: 50
fsync-on-close: true
format: json
`)

	cfg, err := Load(path, nil, nil)
	require.NoError(t, err)

	want := NewConfig()
	want.Directory = "/srv/shards"
	want.ChunkSize = 1 << 20
	want.DirLevels = 3
	want.SubdirsPerDir = 16
	want.Size = 10 << 30
	want.BlockSize = 64 << 10
	want.IODepth = 32
	want.Runtime = 90 * time.Second
	want.RWMix = 50
	want.FsyncOnClose = true
	want.Format = "json"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil, nil)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeConfig(t, "chunk-size: 0\n")
	_, err := Load(path, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	path = writeConfig(t, "block: lots\n")
	_, err = Load(path, nil, nil)
	assert.Error(t, err)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("FILESERVER_IODEPTH", "32")
	t.Setenv("FILESERVER_CHUNK_SIZE", "64K")
	t.Setenv("FILESERVER_FSYNC_ON_CLOSE", "true")
	t.Setenv("FILESERVER_RUNTIME", "2m")

	cfg, err := Load("", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.IODepth)
	assert.Equal(t, ByteSize(64<<10), cfg.ChunkSize)
	assert.True(t, cfg.FsyncOnClose)
	assert.Equal(t, 2*time.Minute, cfg.Runtime)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, "iodepth: 16\nnumjobs: 4\nrwmix: 10\n")
	t.Setenv("FILESERVER_IODEPTH", "32")
	t.Setenv("FILESERVER_NUMJOBS", "2")

	flags := newFlags(t, "--iodepth=64", "--chunk-size=1M", "-t", "3s")
	cfg, err := Load(path, flags, nil)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.IODepth)                 // flag over env and file
	assert.Equal(t, 2, cfg.NumJobs)                  // env over file
	assert.Equal(t, 10, cfg.RWMix)                   // file over default
	assert.Equal(t, ByteSize(1<<20), cfg.ChunkSize)  // flag
	assert.Equal(t, 3*time.Second, cfg.Runtime)      // flag
	assert.Equal(t, ByteSize(4096), cfg.BlockSize)   // default
}

func TestLoadCommandDefaults(t *testing.T) {
	defaults := NewConfig()
	defaults.Prefill = true
	defaults.RWMix = 100

	// unset flags keep the command's defaults
	cfg, err := Load("", newFlags(t), defaults)
	require.NoError(t, err)
	assert.True(t, cfg.Prefill)
	assert.Equal(t, 100, cfg.RWMix)

	cfg, err = Load("", newFlags(t, "--prefill=false"), defaults)
	require.NoError(t, err)
	assert.False(t, cfg.Prefill)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		tag    string
	}{
		{"no directory", func(c *Config) { c.Directory = "" }, "required"},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }, "gt"},
		{"levels without subdirs", func(c *Config) { c.SubdirsPerDir = 0 }, "required_with_levels"},
		{"zero iodepth", func(c *Config) { c.IODepth = 0 }, "gte"},
		{"zero jobs", func(c *Config) { c.NumJobs = 0 }, "gte"},
		{"rwmix over 100", func(c *Config) { c.RWMix = 101 }, "lte"},
		{"negative fsync", func(c *Config) { c.FsyncFreq = -1 }, "gte"},
		{"unknown engine", func(c *Config) { c.Engine = "libaio" }, "oneof"},
		{"unknown format", func(c *Config) { c.Format = "xml" }, "oneof"},
		{"unknown log level", func(c *Config) { c.LogLevel = "chatty" }, "oneof"},
		{"block over size", func(c *Config) { c.Size = 1024 }, "lte_size"},
		{"unaligned direct", func(c *Config) { c.DirectIO = true; c.BlockSize = 512 }, "direct_aligned"},
		{"readonly with writes", func(c *Config) { c.ReadOnly = true }, "reads_only"},
		{"readonly with prefill", func(c *Config) { c.ReadOnly = true; c.RWMix = 100; c.Prefill = true }, "reads_only"},
		{"bad metrics addr", func(c *Config) { c.MetricsAddr = "nine thousand" }, "hostname_port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), "'"+tt.tag+"'")
		})
	}

	t.Run("flat tree", func(t *testing.T) {
		cfg := NewConfig()
		cfg.DirLevels = 0
		cfg.SubdirsPerDir = 0
		assert.NoError(t, cfg.Validate())
	})

	t.Run("readonly reads", func(t *testing.T) {
		cfg := NewConfig()
		cfg.ReadOnly = true
		cfg.RWMix = 100
		assert.NoError(t, cfg.Validate())
	})
}

func TestSharding(t *testing.T) {
	cfg := NewConfig()
	cfg.Directory = "/tmp/fs"
	cfg.ChunkSize = 1024
	cfg.DirLevels = 1
	cfg.SubdirsPerDir = 4

	want := layout.Sharding{Root: "/tmp/fs", ChunkSize: 1024, DirLevels: 1, SubdirsPerDir: 4}
	assert.Equal(t, want, cfg.Sharding())
	assert.Equal(t, "/tmp/fs/01/1", cfg.Sharding().Path(5120))

	cfg.DirectIO = true
	cfg.ReadOnly = true
	opts := cfg.EngineOptions()
	assert.Equal(t, want, opts.Sharding)
	assert.True(t, opts.DirectIO)
	assert.True(t, opts.ReadOnly)
	assert.False(t, opts.SyncIO)
	assert.Nil(t, opts.Fs)
}

func TestByteSize(t *testing.T) {
	tests := map[string]ByteSize{
		"4096":   4096,
		"4K":     4096,
		"4k":     4096,
		"256KiB": 256 << 10,
		"1M":     1 << 20,
		"1.5M":   3 << 19,
		"10G":    10 << 30,
	}
	for in, want := range tests {
		got, err := ParseByteSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseByteSize("lots")
	assert.Error(t, err)

	assert.Equal(t, "256KiB", ByteSize(256<<10).String())
	assert.Equal(t, "1GiB", ByteSize(1<<30).String())
	assert.Equal(t, "12345", ByteSize(12345).String())

	var b ByteSize
	require.NoError(t, b.Set("8K"))
	assert.Equal(t, ByteSize(8192), b)
	assert.Error(t, b.Set("8 bananas"))
}

func TestSaveAndReload(t *testing.T) {
	cfg := NewConfig()
	cfg.Directory = "/srv/shards"
	cfg.ChunkSize = 12345
	cfg.Runtime = 1500 * time.Millisecond
	cfg.Engine = EngineSync

	path := filepath.Join(t.TempDir(), "out", "fileserver.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chunk-size: 12345")
	assert.Contains(t, string(data), "size: 1GiB")
	assert.Contains(t, string(data), "runtime: 1.5s")

	loaded, err := Load(path, nil, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("reloaded config mismatch (-want +got):\n%s", diff)
	}
}
