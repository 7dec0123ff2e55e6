package engine

import (
	"runtime"
	"sync"
	"time"

	"github.com/jessegalley/fileserver/internal/logger"
)

// State is the lifecycle stage of a Threaded engine
type State int

const (
	Running State = iota
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting down"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Threaded runs requests on a pool of worker goroutines, each locked to its
// own OS thread for the blocking filesystem calls. the pool grows whenever
// more requests are in flight than there are workers and never shrinks
// before Shutdown.
//
// both queues hand out their newest entry first: the most recently
// submitted request is serviced next and the most recently completed
// request is collected next.
//
// Submit, Poll and CollectOne are meant to be called from one goroutine.
type Threaded struct {
	exec    *executor
	metrics *Metrics

	// mu guards everything below
	mu          sync.Mutex
	workReady   *sync.Cond // requests went from empty to non-empty, or shutdown
	doneReady   *sync.Cond // completions went from empty to non-empty, or shutdown
	requests    []*Request
	completions []*Request
	inFlight    int
	workers     int
	state       State

	wg sync.WaitGroup
}

// New validates opts and returns a running engine with no workers yet
func New(opts Options) (*Threaded, error) {
	exec, err := newExecutor(opts)
	if err != nil {
		return nil, err
	}

	e := &Threaded{
		exec:    exec,
		metrics: opts.Metrics,
		state:   Running,
	}
	e.workReady = sync.NewCond(&e.mu)
	e.doneReady = sync.NewCond(&e.mu)

	return e, nil
}

// Submit queues req and returns immediately. a new worker is started for
// every request in flight beyond the current pool size.
func (e *Threaded) Submit(req *Request) error {
	if err := e.exec.checkSubmit(req); err != nil {
		return err
	}
	req.reset()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Running {
		return ErrShutdown
	}

	e.requests = append(e.requests, req)
	if len(e.requests) == 1 {
		e.workReady.Signal()
	}

	e.inFlight++
	e.metrics.submitted()

	for e.inFlight > e.workers {
		e.spawnLocked()
	}

	return nil
}

// spawnLocked starts one more worker. e.mu must be held.
func (e *Threaded) spawnLocked() {
	e.workers++
	e.wg.Add(1)
	e.metrics.workers(1)

	logger.Debug("spawned engine worker", logger.KeyWorkers, e.workers, logger.KeyInFlight, e.inFlight)

	go e.worker()
}

// worker services requests until shutdown
func (e *Threaded) worker() {
	defer e.wg.Done()

	// the goroutine exits still locked, which retires its thread with it
	runtime.LockOSThread()

	e.mu.Lock()
	for {
		for len(e.requests) == 0 && e.state == Running {
			e.workReady.Wait()
		}
		if e.state != Running {
			e.mu.Unlock()
			return
		}

		// newest request first
		last := len(e.requests) - 1
		req := e.requests[last]
		e.requests[last] = nil
		e.requests = e.requests[:last]

		// submit only signals the empty to non-empty transition, so hand
		// the wakeup on while work remains
		if len(e.requests) > 0 {
			e.workReady.Signal()
		}
		e.mu.Unlock()

		e.exec.execute(req)
		req.Completed = time.Now()
		e.metrics.completed(req)

		e.mu.Lock()
		e.completions = append(e.completions, req)
		if len(e.completions) == 1 {
			e.doneReady.Signal()
		}
	}
}

// Poll blocks until at least one completion is ready and returns how many
// are ready. min, max and timeout are accepted for interface compatibility
// but not honored: callers wanting more than one completion loop over
// Poll and CollectOne. Poll returns 0 without blocking when nothing is in
// flight, and 0 once shutdown has begun.
func (e *Threaded) Poll(min, max int, timeout time.Duration) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.completions) == 0 {
		if e.state != Running || e.inFlight == 0 {
			return 0
		}
		e.doneReady.Wait()
	}

	return len(e.completions)
}

// CollectOne removes and returns the most recently completed request, or nil
// when no completion is ready
func (e *Threaded) CollectOne() *Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.completions) == 0 {
		return nil
	}

	last := len(e.completions) - 1
	req := e.completions[last]
	e.completions[last] = nil
	e.completions = e.completions[:last]

	e.inFlight--
	e.metrics.collected()

	return req
}

// Shutdown stops every worker and waits for them to exit. requests still
// queued are dropped. calling Shutdown again only waits for the first call.
func (e *Threaded) Shutdown() {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		e.wg.Wait()
		return
	}
	e.state = ShuttingDown
	e.workReady.Broadcast()
	e.doneReady.Broadcast()
	e.mu.Unlock()

	e.wg.Wait()

	e.mu.Lock()
	e.metrics.workers(-e.workers)
	for i := 0; i < e.inFlight; i++ {
		e.metrics.collected()
	}
	e.requests = nil
	e.completions = nil
	e.inFlight = 0
	e.state = Terminated
	workers := e.workers
	e.mu.Unlock()

	logger.Debug("engine terminated", logger.KeyWorkers, workers)
}

// Workers returns the number of workers started so far
func (e *Threaded) Workers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workers
}

// InFlight returns the number of submitted requests not yet collected
func (e *Threaded) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// State returns the lifecycle stage of the engine
func (e *Threaded) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
