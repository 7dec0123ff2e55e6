package engine

import "time"

// Inline performs every request synchronously inside Submit. completed
// requests are handed back newest first, like Threaded. Inline is not safe
// for concurrent use.
type Inline struct {
	exec    *executor
	metrics *Metrics

	completions []*Request
	closed      bool
}

// NewInline validates opts and returns a synchronous engine
func NewInline(opts Options) (*Inline, error) {
	exec, err := newExecutor(opts)
	if err != nil {
		return nil, err
	}

	return &Inline{
		exec:    exec,
		metrics: opts.Metrics,
	}, nil
}

// Submit executes req before returning and queues it as completed
func (e *Inline) Submit(req *Request) error {
	if err := e.exec.checkSubmit(req); err != nil {
		return err
	}
	if e.closed {
		return ErrShutdown
	}

	req.reset()
	e.metrics.submitted()

	e.exec.execute(req)
	req.Completed = time.Now()
	e.metrics.completed(req)

	e.completions = append(e.completions, req)
	return nil
}

// Poll returns the number of completions waiting to be collected
func (e *Inline) Poll(min, max int, timeout time.Duration) int {
	return len(e.completions)
}

// CollectOne returns the most recently completed request, or nil
func (e *Inline) CollectOne() *Request {
	if len(e.completions) == 0 {
		return nil
	}

	last := len(e.completions) - 1
	req := e.completions[last]
	e.completions[last] = nil
	e.completions = e.completions[:last]

	e.metrics.collected()
	return req
}

// Shutdown drops uncollected completions
func (e *Inline) Shutdown() {
	for range e.completions {
		e.metrics.collected()
	}
	e.completions = nil
	e.closed = true
}
