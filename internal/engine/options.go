// Package engine executes shard I/O requests on behalf of a benchmark host.
//
// A request names a logical offset; the engine resolves it to a shard file
// through layout.Resolver, opens the file, performs exactly one positioned
// read, write or fsync, closes the file and publishes the request as
// completed. Two engines share that executor:
//
//   - Threaded hands requests to a pool of worker goroutines that grows with
//     the number of requests in flight, so Submit never blocks.
//   - Inline performs the I/O inside Submit.
//
// Both follow the same submit / poll / collect protocol.
package engine

import (
	"errors"
	"os"

	"github.com/spf13/afero"

	"github.com/jessegalley/fileserver/internal/layout"
)

// ErrReadOnly is returned by Submit when a write reaches a read-only engine
var ErrReadOnly = errors.New("write request submitted to read-only engine")

// ErrShutdown is returned by Submit once teardown has begun
var ErrShutdown = errors.New("engine is shut down")

// Options configures an engine
type Options struct {
	// Sharding describes the shard tree the requests are mapped onto
	Sharding layout.Sharding

	// Fs is the filesystem holding the tree, the OS filesystem when nil
	Fs afero.Fs

	// FsyncOnClose flushes every written shard before it is closed
	FsyncOnClose bool

	// DirectIO opens shards with O_DIRECT
	DirectIO bool

	// SyncIO opens shards with O_SYNC
	SyncIO bool

	// ReadOnly rejects write requests at submission
	ReadOnly bool

	// Metrics receives per-request observations when set
	Metrics *Metrics
}

// openFlags returns the flags used to open a shard for d
func (o Options) openFlags(d Direction) int {
	var flags int
	switch d {
	case Write:
		flags = os.O_RDWR | os.O_CREATE
	case Sync:
		flags = os.O_RDWR
	default:
		flags = os.O_RDONLY
	}

	if o.SyncIO {
		flags |= os.O_SYNC
	}
	if o.DirectIO {
		flags |= oDirect
	}

	return flags
}
