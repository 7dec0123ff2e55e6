package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jessegalley/fileserver/internal/config"
	"github.com/jessegalley/fileserver/internal/layout"
)

func TestPrintPaths(t *testing.T) {
	s := layout.Sharding{Root: "/tmp/fs", ChunkSize: 1024, DirLevels: 1, SubdirsPerDir: 4}

	var buf bytes.Buffer
	require.NoError(t, printPaths(&buf, s, []string{"5120", "5200", "1K"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "5120\t/tmp/fs/01/1\t0", lines[0])
	assert.Equal(t, "5200\t/tmp/fs/01/1\t80", lines[1])
	assert.Equal(t, "1024\t/tmp/fs/01/0\t0", lines[2])
}

func TestPrintPathsErrors(t *testing.T) {
	var buf bytes.Buffer

	bad := layout.Sharding{Root: "/tmp/fs", ChunkSize: 0, DirLevels: 1, SubdirsPerDir: 4}
	assert.ErrorIs(t, printPaths(&buf, bad, []string{"0"}), layout.ErrInvalidSharding)

	good := layout.Sharding{Root: "/tmp/fs", ChunkSize: 1024}
	assert.Error(t, printPaths(&buf, good, []string{"lots"}))
}

func TestSeqreadDefaults(t *testing.T) {
	d := seqreadDefaults()
	assert.True(t, d.Prefill)
	assert.Equal(t, 100, d.RWMix)
	assert.NoError(t, d.Validate())
}

func TestConfigDumpCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "fileserver.yaml")

	rootCmd.SetArgs([]string{"config", "dump", path, "--chunk-size", "64K", "--dir-levels", "1", "--log-level", "error"})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chunk-size: 64KiB")
	assert.Contains(t, string(data), "dir-levels: 1")

	cfg, err := config.Load(path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, config.ByteSize(64*1024), cfg.ChunkSize)
	assert.Equal(t, 1, cfg.DirLevels)
}
