// Package layout maps logical byte offsets onto a tree of fixed-size shard
// files. the tree is rooted at a single directory and fans out through a
// fixed number of hex-named subdirectory levels, e.g. for the defaults
// (two levels, 64 subdirectories per level):
//
//	<root>/<2f>/<01>/<leaf>
//
// where each directory name is one digit of the shard index written in a
// mixed-radix encoding with radix SubdirsPerDir, least significant first,
// and the leaf file name is whatever is left of the index in hex.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
)

// default sharding parameters, matching the classic fio fileserver engine
const (
	DefaultChunkSize     = 256 * 1024
	DefaultDirLevels     = 2
	DefaultSubdirsPerDir = 64
)

// DirPerm is the mode new shard directories are created with (before umask)
const DirPerm fs.FileMode = 0777

// ErrInvalidSharding is returned when a Sharding fails validation
var ErrInvalidSharding = errors.New("invalid sharding configuration")

// Sharding describes how the logical address space is cut into shard files.
// it is immutable once handed to a Resolver.
type Sharding struct {
	// Root is the directory that holds the whole shard tree
	Root string `validate:"required"`

	// ChunkSize is the size in bytes of the logical range covered by one shard file
	ChunkSize uint64 `validate:"gt=0"`

	// DirLevels is the number of subdirectory hops between Root and a shard file
	DirLevels int `validate:"gte=0"`

	// SubdirsPerDir is the fan-out of every directory level
	SubdirsPerDir int `validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		s := sl.Current().Interface().(Sharding)
		if s.DirLevels > 0 && s.SubdirsPerDir <= 0 {
			sl.ReportError(s.SubdirsPerDir, "SubdirsPerDir", "SubdirsPerDir", "required_with_levels", "")
		}
	}, Sharding{})
	return v
}

// Validate checks the sharding invariants: a root directory is set, chunks
// are non-empty and every directory level has at least one subdirectory.
func (s Sharding) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSharding, err)
	}
	return nil
}

// FileIndex returns the index of the shard file holding offset
func (s Sharding) FileIndex(offset uint64) uint64 {
	return offset / s.ChunkSize
}

// ChunkOffset returns the position of offset inside its shard file
func (s Sharding) ChunkOffset(offset uint64) int64 {
	return int64(offset % s.ChunkSize)
}

// Path returns the shard file path for offset without touching the filesystem.
// two offsets yield the same path if and only if they share a FileIndex.
func (s Sharding) Path(offset uint64) string {
	path, _ := s.walk(offset, nil)
	return path
}

// walk builds the shard path for offset, calling visit on every intermediate
// directory from the outermost level inwards. a visit error stops the walk.
func (s Sharding) walk(offset uint64, visit func(dir string) error) (string, error) {
	idx := s.FileIndex(offset)

	var b strings.Builder
	b.WriteString(s.Root)

	for i := 0; i < s.DirLevels; i++ {
		// peel off the least significant digit for this level
		subdir := idx % uint64(s.SubdirsPerDir)
		idx /= uint64(s.SubdirsPerDir)

		b.WriteByte(filepath.Separator)
		if subdir < 0x10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatUint(subdir, 16))

		if visit != nil {
			if err := visit(b.String()); err != nil {
				return "", err
			}
		}
	}

	// whatever is left of the index names the leaf file
	b.WriteByte(filepath.Separator)
	b.WriteString(strconv.FormatUint(idx, 16))

	return b.String(), nil
}

// ResolverOption customizes a Resolver
type ResolverOption func(*Resolver)

// OnCreate registers a callback invoked after the resolver creates a directory
func OnCreate(fn func(dir string)) ResolverOption {
	return func(r *Resolver) {
		r.onCreate = fn
	}
}

// Resolver turns offsets into shard paths and lazily creates the directory
// levels leading to them. it is safe for concurrent use; racing creators of
// the same directory all succeed.
type Resolver struct {
	sharding Sharding
	fs       afero.Fs
	onCreate func(dir string)
}

// NewResolver validates s and returns a Resolver operating on fsys. the root
// is made absolute so every resolved path is absolute too.
func NewResolver(fsys afero.Fs, s Sharding, opts ...ResolverOption) (*Resolver, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path of %s: %w", s.Root, err)
	}
	s.Root = root

	r := &Resolver{
		sharding: s,
		fs:       fsys,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Sharding returns the (absolute rooted) sharding the resolver was built with
func (r *Resolver) Sharding() Sharding {
	return r.sharding
}

// Resolve returns the shard file path for offset. when create is set, missing
// intermediate directories are created on the way; otherwise they are left
// missing and the path is still returned, so a later open reports the shard
// as not found. any filesystem error other than "missing" or "already exists"
// is returned as a *StructuralError.
func (r *Resolver) Resolve(offset uint64, create bool) (string, error) {
	return r.sharding.walk(offset, func(dir string) error {
		return r.ensureDir(dir, create)
	})
}

// ensureDir checks dir and creates it if asked to
func (r *Resolver) ensureDir(dir string, create bool) error {
	_, err := r.fs.Stat(dir)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return &StructuralError{Op: "stat", Path: dir, Err: err}
	}

	// reads and syncs never create anything
	if !create {
		return nil
	}

	err = r.fs.Mkdir(dir, DirPerm)
	if err != nil {
		// another worker got there first
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return &StructuralError{Op: "mkdir", Path: dir, Err: err}
	}

	if r.onCreate != nil {
		r.onCreate(dir)
	}

	return nil
}
