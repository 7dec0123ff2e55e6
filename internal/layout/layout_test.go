package layout

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jessegalley/fileserver/internal/testutil"
)

func TestShardingPath(t *testing.T) {
	tests := []struct {
		name     string
		sharding Sharding
		offset   uint64
		want     string
	}{
		{
			name:     "single level",
			sharding: Sharding{Root: "/tmp/fs", ChunkSize: 1024, DirLevels: 1, SubdirsPerDir: 4},
			offset:   5120,
			want:     "/tmp/fs/01/1",
		},
		{
			name:     "offset inside chunk maps to chunk start",
			sharding: Sharding{Root: "/tmp/fs", ChunkSize: 1024, DirLevels: 1, SubdirsPerDir: 4},
			offset:   5120 + 1023,
			want:     "/tmp/fs/01/1",
		},
		{
			name:     "defaults",
			sharding: Sharding{Root: "/srv", ChunkSize: DefaultChunkSize, DirLevels: DefaultDirLevels, SubdirsPerDir: DefaultSubdirsPerDir},
			// index 2*64*64 + 3*64 + 5
			offset: 8389 * DefaultChunkSize,
			want:   "/srv/05/03/2",
		},
		{
			name:     "hex subdirectory names",
			sharding: Sharding{Root: "/srv", ChunkSize: 1, DirLevels: 1, SubdirsPerDir: 256},
			offset:   0x2a,
			want:     "/srv/2a/0",
		},
		{
			name:     "no directory levels",
			sharding: Sharding{Root: "/srv", ChunkSize: 4096, DirLevels: 0},
			offset:   0xabcdef * 4096,
			want:     "/srv/abcdef",
		},
		{
			name:     "leaf is not padded",
			sharding: Sharding{Root: "/srv", ChunkSize: 10, DirLevels: 2, SubdirsPerDir: 2},
			offset:   0,
			want:     "/srv/00/00/0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.sharding.Validate())
			assert.Equal(t, tt.want, tt.sharding.Path(tt.offset))
			// same input, same answer
			assert.Equal(t, tt.sharding.Path(tt.offset), tt.sharding.Path(tt.offset))
		})
	}
}

func TestShardingPartitioning(t *testing.T) {
	s := Sharding{Root: "/data", ChunkSize: 1000, DirLevels: 2, SubdirsPerDir: 3}

	byPath := make(map[string]uint64)
	for off := uint64(0); off < 200000; off += 137 {
		path := s.Path(off)
		idx := s.FileIndex(off)

		if prev, ok := byPath[path]; ok {
			assert.Equal(t, prev, idx, "path %s shared by different shard indexes", path)
			continue
		}
		byPath[path] = idx
	}

	// every index maps to its own path
	seen := make(map[uint64]bool)
	for _, idx := range byPath {
		assert.False(t, seen[idx], "index %d mapped to two paths", idx)
		seen[idx] = true
	}
}

func TestShardingChunkOffset(t *testing.T) {
	s := Sharding{Root: "/data", ChunkSize: 1024}
	assert.Equal(t, int64(0), s.ChunkOffset(5120))
	assert.Equal(t, int64(1000), s.ChunkOffset(5120+1000))
	assert.Equal(t, uint64(5), s.FileIndex(5120+1023))
}

func TestShardingValidate(t *testing.T) {
	tests := []struct {
		name     string
		sharding Sharding
		wantErr  bool
	}{
		{"valid", Sharding{Root: "/r", ChunkSize: 1, DirLevels: 2, SubdirsPerDir: 64}, false},
		{"no levels needs no fan-out", Sharding{Root: "/r", ChunkSize: 1}, false},
		{"zero chunk", Sharding{Root: "/r", ChunkSize: 0, DirLevels: 2, SubdirsPerDir: 64}, true},
		{"levels without fan-out", Sharding{Root: "/r", ChunkSize: 1024, DirLevels: 2, SubdirsPerDir: 0}, true},
		{"negative fan-out", Sharding{Root: "/r", ChunkSize: 1024, DirLevels: 1, SubdirsPerDir: -1}, true},
		{"negative levels", Sharding{Root: "/r", ChunkSize: 1024, DirLevels: -1}, true},
		{"missing root", Sharding{ChunkSize: 1024}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sharding.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidSharding)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewResolverRejectsBadSharding(t *testing.T) {
	_, err := NewResolver(afero.NewOsFs(), Sharding{Root: t.TempDir(), ChunkSize: 0})
	assert.ErrorIs(t, err, ErrInvalidSharding)
}

func TestResolverCreatesDirectoriesForWrites(t *testing.T) {
	root := t.TempDir()

	var created []string
	r, err := NewResolver(afero.NewOsFs(),
		Sharding{Root: root, ChunkSize: 1024, DirLevels: 2, SubdirsPerDir: 4},
		OnCreate(func(dir string) { created = append(created, dir) }),
	)
	require.NoError(t, err)

	// index 6: digits 2, 1, leaf 0
	path, err := r.Resolve(6*1024, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "02", "01", "0"), path)

	info, err := os.Stat(filepath.Join(root, "02", "01"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, []string{filepath.Join(root, "02"), filepath.Join(root, "02", "01")}, created)

	// resolving again finds everything in place
	_, err = r.Resolve(6*1024+10, true)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	// the shard file itself is not the resolver's business
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestResolverNeverCreatesForReads(t *testing.T) {
	root := t.TempDir()

	r, err := NewResolver(afero.NewOsFs(), Sharding{Root: root, ChunkSize: 1024, DirLevels: 2, SubdirsPerDir: 4})
	require.NoError(t, err)

	path, err := r.Resolve(6*1024, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "02", "01", "0"), path)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolverMakesRootAbsolute(t *testing.T) {
	r, err := NewResolver(afero.NewMemMapFs(), Sharding{Root: "relative/dir", ChunkSize: 1})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(r.Sharding().Root))

	path, err := r.Resolve(0, false)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
}

func TestResolverConcurrentCreate(t *testing.T) {
	root := t.TempDir()

	r, err := NewResolver(afero.NewOsFs(), Sharding{Root: root, ChunkSize: 1, DirLevels: 3, SubdirsPerDir: 2})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(5, true)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	// index 5: digits 1, 0, 1
	info, err := os.Stat(filepath.Join(root, "01", "00", "01"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolverStructuralErrors(t *testing.T) {
	sharding := Sharding{Root: "/shards", ChunkSize: 1, DirLevels: 1, SubdirsPerDir: 16}

	t.Run("stat failure", func(t *testing.T) {
		ffs := testutil.NewFaultFs(afero.NewMemMapFs())
		ffs.StatErr = func(string) error { return syscall.EACCES }

		r, err := NewResolver(ffs, sharding)
		require.NoError(t, err)

		_, err = r.Resolve(3, false)
		require.Error(t, err)

		var se *StructuralError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "stat", se.Op)
		assert.Equal(t, "/shards/03", se.Path)
		assert.ErrorIs(t, err, syscall.EACCES)
		assert.True(t, IsStructural(err))
	})

	t.Run("mkdir failure", func(t *testing.T) {
		ffs := testutil.NewFaultFs(afero.NewMemMapFs())
		ffs.MkdirErr = func(string) error { return syscall.EROFS }

		r, err := NewResolver(ffs, sharding)
		require.NoError(t, err)

		_, err = r.Resolve(3, true)
		var se *StructuralError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "mkdir", se.Op)
		assert.ErrorIs(t, err, syscall.EROFS)

		// reads never reach mkdir
		_, err = r.Resolve(3, false)
		assert.NoError(t, err)
	})

	t.Run("lost mkdir race", func(t *testing.T) {
		ffs := testutil.NewFaultFs(afero.NewMemMapFs())
		ffs.MkdirErr = func(string) error { return fs.ErrExist }

		r, err := NewResolver(ffs, sharding)
		require.NoError(t, err)

		_, err = r.Resolve(3, true)
		assert.NoError(t, err)
	})
}

func TestStructuralErrorMessage(t *testing.T) {
	err := &StructuralError{
		Op:   "mkdir",
		Path: "/shards/01",
		Err:  &os.PathError{Op: "mkdir", Path: "/shards/01", Err: syscall.EACCES},
	}
	assert.Equal(t, "mkdir(/shards/01): 13 (permission denied)", err.Error())

	plain := &StructuralError{Op: "stat", Path: "/x", Err: errors.New("boom")}
	assert.Equal(t, "stat(/x): boom", plain.Error())
	assert.False(t, IsStructural(errors.New("boom")))
}

func TestEnsureWritableRoot(t *testing.T) {
	fsys := afero.NewOsFs()

	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		require.NoError(t, EnsureWritableRoot(fsys, dir))

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("accepts existing directory and cleans up probe", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, EnsureWritableRoot(fsys, dir))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("rejects regular file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		assert.Error(t, EnsureWritableRoot(fsys, file))
	})
}

func TestCheckRoot(t *testing.T) {
	fsys := afero.NewOsFs()

	assert.NoError(t, CheckRoot(fsys, t.TempDir()))
	assert.Error(t, CheckRoot(fsys, filepath.Join(t.TempDir(), "missing")))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, CheckRoot(fsys, file))
}
