package engine

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"syscall"

	"github.com/spf13/afero"

	"github.com/jessegalley/fileserver/internal/layout"
)

// FilePerm is the mode new shard files are created with (before umask)
const FilePerm fs.FileMode = 0644

// executor performs the per-request work shared by every engine
type executor struct {
	opts     Options
	fs       afero.Fs
	resolver *layout.Resolver
}

func newExecutor(opts Options) (*executor, error) {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	var resolverOpts []layout.ResolverOption
	if opts.Metrics != nil {
		resolverOpts = append(resolverOpts, layout.OnCreate(func(string) {
			opts.Metrics.DirsCreated.Inc()
		}))
	}

	resolver, err := layout.NewResolver(fsys, opts.Sharding, resolverOpts...)
	if err != nil {
		return nil, err
	}

	return &executor{
		opts:     opts,
		fs:       fsys,
		resolver: resolver,
	}, nil
}

// checkSubmit rejects requests the engine must never accept
func (x *executor) checkSubmit(req *Request) error {
	if x.opts.ReadOnly && req.Direction == Write {
		return fmt.Errorf("%w: offset %d", ErrReadOnly, req.Offset)
	}
	return nil
}

// execute resolves the shard for req, performs the I/O and records the
// outcome on req. the shard file is always closed before returning.
func (x *executor) execute(req *Request) {
	switch req.Direction {
	case Read, Write, Sync:
	default:
		req.Err = fmt.Errorf("%s: %w", req.Direction, syscall.EINVAL)
		return
	}

	path, err := x.resolver.Resolve(req.Offset, req.Direction == Write)
	if err != nil {
		req.Err = err
		return
	}

	f, err := x.fs.OpenFile(path, x.opts.openFlags(req.Direction), FilePerm)
	if err != nil {
		// a shard that was never written is a normal outcome for reads
		if errors.Is(err, fs.ErrNotExist) {
			req.Err = err
			return
		}
		req.Err = &layout.StructuralError{Op: "open", Path: path, Err: err}
		return
	}

	pos := x.resolver.Sharding().ChunkOffset(req.Offset)

	switch req.Direction {
	case Read:
		req.N, req.Err = f.ReadAt(req.Buf, pos)
		// pread semantics: a short read is not an error
		if errors.Is(req.Err, io.EOF) {
			req.Err = nil
		}

	case Write:
		req.N, req.Err = f.WriteAt(req.Buf, pos)
		if x.opts.FsyncOnClose {
			if err := f.Sync(); req.Err == nil {
				req.Err = err
			}
		}

	case Sync:
		req.Err = f.Sync()
	}

	if err := f.Close(); req.Err == nil {
		req.Err = err
	}
}
