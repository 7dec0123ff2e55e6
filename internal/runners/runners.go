// package runners drives shard I/O engines the way a benchmark host does:
// it keeps a fixed number of requests in flight per job, collects
// completions, recycles their buffers and accounts every outcome.
package runners

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/jessegalley/fileserver/internal/config"
	"github.com/jessegalley/fileserver/internal/engine"
	"github.com/jessegalley/fileserver/internal/stats"
)

// Engine is the submit / poll / collect protocol every engine speaks
type Engine interface {
	// Submit hands req to the engine. an error means the request was not accepted.
	Submit(req *engine.Request) error

	// Poll waits for completions and returns how many are ready to collect
	Poll(min, max int, timeout time.Duration) int

	// CollectOne returns the next completed request, or nil when none is ready
	CollectOne() *engine.Request

	// Shutdown stops the engine. uncollected requests are dropped.
	Shutdown()
}

// Workload selects the offset and direction pattern of the timed phase
type Workload int

const (
	// Random issues block aligned requests at uniformly random offsets,
	// reading RWMix percent of the time and writing otherwise
	Random Workload = iota

	// Sequential reads ascending blocks, wrapping at the end of the space
	Sequential
)

func (w Workload) String() string {
	switch w {
	case Random:
		return "randrw"
	case Sequential:
		return "seqread"
	default:
		return fmt.Sprintf("workload(%d)", int(w))
	}
}

// Result contains the outcome of a completed run
type Result struct {
	RunID     string
	Workload  Workload
	Engine    string
	Jobs      int
	IODepth   int
	BlockSize uint64

	// Prefilled is the number of bytes written by the prefill pass
	Prefilled int64

	// Stats are the timed phase statistics
	Stats stats.AggregatedStats
}

// Duration returns the length of the timed phase
func (r *Result) Duration() time.Duration {
	return time.Duration(r.Stats.TestDuration * float64(time.Second))
}

// newEngine builds the engine kind named by cfg
func newEngine(kind string, opts engine.Options) (Engine, error) {
	switch kind {
	case config.EngineSync:
		e, err := engine.NewInline(opts)
		if err != nil {
			return nil, err
		}
		return e, nil

	case config.EngineThreads:
		e, err := engine.New(opts)
		if err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown engine %q", kind)
	}
}

// alignBuffer ensures a byte slice is aligned to the given boundary
func alignBuffer(buf []byte, alignment int) []byte {
	// calculate offset needed for alignment
	addr := uintptr(unsafe.Pointer(&buf[0]))
	alignmentUptr := uintptr(alignment)
	offset := int(alignmentUptr - (addr & (alignmentUptr - 1)))

	if offset == alignment {
		return buf
	}
	return buf[offset:]
}

// newBuffer allocates a block sized buffer, aligned for direct io when asked
func newBuffer(size int, direct bool) []byte {
	if !direct {
		return make([]byte, size)
	}
	return alignBuffer(make([]byte, size+config.DirectAlignment), config.DirectAlignment)[:size]
}
