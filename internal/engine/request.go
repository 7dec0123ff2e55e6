package engine

import (
	"fmt"
	"time"
)

// Direction is the kind of I/O a request performs
type Direction int

const (
	Read Direction = iota
	Write
	Sync
	// Trim is accepted by the engine but not supported; it completes with EINVAL
	Trim
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	case Sync:
		return "sync"
	case Trim:
		return "trim"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Request is a single I/O against the logical address space. the caller owns
// Buf; between Submit and the completion being collected the engine owns the
// whole request and the caller must not touch it.
type Request struct {
	// Offset is the logical byte offset of the I/O
	Offset uint64

	// Direction selects read, write or sync
	Direction Direction

	// Buf is the data to write or the destination of a read. the I/O length is len(Buf)
	Buf []byte

	// N is the number of bytes transferred, set by the engine
	N int

	// Err is the outcome of the request, set by the engine before completion
	Err error

	// Submitted and Completed are stamped by the engine
	Submitted time.Time
	Completed time.Time
}

// Latency returns the time between submission and completion
func (r *Request) Latency() time.Duration {
	if r.Completed.IsZero() {
		return 0
	}
	return r.Completed.Sub(r.Submitted)
}

// reset clears the engine-owned fields before a request is (re)submitted
func (r *Request) reset() {
	r.N = 0
	r.Err = nil
	r.Submitted = time.Now()
	r.Completed = time.Time{}
}
