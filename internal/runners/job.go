package runners

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jessegalley/fileserver/internal/engine"
	"github.com/jessegalley/fileserver/internal/layout"
	"github.com/jessegalley/fileserver/internal/logger"
	"github.com/jessegalley/fileserver/internal/stats"
)

// job keeps up to depth requests in flight on one engine
type job struct {
	id      int
	eng     Engine
	gen     generator
	tracker *stats.Tracker // nil when the phase is not measured
	log     *slog.Logger

	// free holds the request slots not currently owned by the engine
	free     []*engine.Request
	inFlight int

	fsyncFreq   int    // sync after this many writes, 0 disables
	writes      int    // writes submitted since the last sync
	lastWrite   uint64 // offset of the most recent write
	pendingSync bool

	limit     int64 // stop after this many requests, 0 for no limit
	submitted int64
	written   int64 // bytes written by successful requests

	err error // first fatal error
}

// newJob allocates depth request slots of block bytes each
func newJob(id int, eng Engine, gen generator, depth, block int, direct bool) *job {
	j := &job{
		id:   id,
		eng:  eng,
		gen:  gen,
		log:  logger.With(logger.KeyJob, id),
		free: make([]*engine.Request, 0, depth),
	}

	for i := 0; i < depth; i++ {
		j.free = append(j.free, &engine.Request{Buf: newBuffer(block, direct)})
	}

	return j
}

// run submits and collects requests until ctx is done, the request limit is
// reached or a fatal error occurs, then waits for every request still in
// flight. the returned error is the first fatal one.
func (j *job) run(ctx context.Context) error {
	for {
		if j.err == nil && ctx.Err() == nil {
			if err := j.fill(); err != nil {
				j.fail(err)
			}
		}

		if j.inFlight == 0 {
			return j.err
		}

		ready := j.eng.Poll(1, cap(j.free), 0)
		if ready == 0 {
			// nothing will ever complete on this engine again
			j.fail(fmt.Errorf("engine stopped with %d requests in flight", j.inFlight))
			return j.err
		}

		for i := 0; i < ready; i++ {
			req := j.eng.CollectOne()
			if req == nil {
				break
			}
			j.inFlight--
			j.complete(req)
			j.free = append(j.free, req)
		}
	}
}

// fill submits requests until every slot is in flight
func (j *job) fill() error {
	for len(j.free) > 0 && !j.done() {
		last := len(j.free) - 1
		req := j.free[last]

		if j.pendingSync {
			req.Offset, req.Direction = j.lastWrite, engine.Sync
			j.pendingSync = false
		} else {
			req.Offset, req.Direction = j.gen.next()
			j.submitted++
		}

		if err := j.eng.Submit(req); err != nil {
			return fmt.Errorf("submit %s at offset %d: %w", req.Direction, req.Offset, err)
		}

		j.free = j.free[:last]
		j.inFlight++

		if req.Direction == engine.Write && j.fsyncFreq > 0 {
			j.lastWrite = req.Offset
			j.writes++
			if j.writes >= j.fsyncFreq {
				j.writes = 0
				j.pendingSync = true
			}
		}
	}

	return nil
}

// done reports whether the request limit has been reached
func (j *job) done() bool {
	return j.limit > 0 && j.submitted >= j.limit && !j.pendingSync
}

// complete accounts one collected request
func (j *job) complete(req *engine.Request) {
	outcome := stats.OK

	switch {
	case req.Err == nil:
		if req.Direction == engine.Write {
			j.written += int64(req.N)
		}

	case errors.Is(req.Err, fs.ErrNotExist):
		outcome = stats.NotFound

	case layout.IsStructural(req.Err):
		outcome = stats.Failed
		j.fail(req.Err)

	default:
		outcome = stats.Failed
		j.log.Debug("request failed",
			logger.KeyDirection, req.Direction.String(),
			logger.KeyOffset, req.Offset,
			logger.KeyError, req.Err)
	}

	if j.tracker != nil {
		j.tracker.Record(req.Direction.String(), req.N, req.Latency(), outcome)
	}
}

// fail records err unless an earlier error is already recorded
func (j *job) fail(err error) {
	if j.err != nil {
		return
	}
	j.err = err
	j.log.Error("job failed, draining", logger.KeyInFlight, j.inFlight, logger.KeyError, err)
}
