// Package stats accumulates per-job request statistics and aggregates them
// into run-wide figures, both live while a run is going and once at the end.
package stats

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// Outcome classifies a completed request
type Outcome int

const (
	OK Outcome = iota
	NotFound
	Failed
)

// OpStats contains accumulated statistics for a single operation type from one job
type OpStats struct {
	Count       int64 // completed requests, whatever their outcome
	Bytes       int64 // bytes transferred by successful requests
	NotFound    int64 // requests that hit a shard that was never written
	Errors      int64 // requests that failed for any other reason
	TotalTimeUs int64 // sum of all request latencies in microseconds (0 if latency not collected)
	SumSquares  int64 // sum of squares of all request latencies in microseconds
	MinUs       int64 // minimum latency observed in microseconds
	MaxUs       int64 // maximum latency observed in microseconds
}

// JobUpdate contains all statistics from a single job at a point in time
type JobUpdate struct {
	JobID     int                // job sending this update
	Timestamp time.Time          // when this update was generated
	OpStats   map[string]OpStats // statistics by operation name (read, write, sync)
}

// OpSummary is the run-wide view of one operation type
type OpSummary struct {
	Count        int64          // completed requests
	IOPS         float64        // completed requests per second
	Bytes        int64          // bytes transferred
	BandwidthBps float64        // bytes transferred per second
	NotFound     int64          // requests on never-written shards
	Errors       int64          // failed requests
	Latency      LatencyMetrics // zero unless latency is collected
}

// AggregatedStats contains the combined statistics from all jobs
type AggregatedStats struct {
	Ops            map[string]OpSummary // by operation type
	TestDuration   float64              // elapsed seconds of the timed phase
	HasLatencyData bool                 // whether latency statistics are available
}

// Operations returns the operation names sorted alphabetically
func (a AggregatedStats) Operations() []string {
	ops := make([]string, 0, len(a.Ops))
	for op := range a.Ops {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Total sums every operation type. latency is not combined.
func (a AggregatedStats) Total() OpSummary {
	var t OpSummary
	for _, s := range a.Ops {
		t.Count += s.Count
		t.IOPS += s.IOPS
		t.Bytes += s.Bytes
		t.BandwidthBps += s.BandwidthBps
		t.NotFound += s.NotFound
		t.Errors += s.Errors
	}
	return t
}

// LatencyMetrics contains statistical measures for request latencies
type LatencyMetrics struct {
	Count    int64   // number of requests used to calculate these metrics
	MeanUs   float64 // arithmetic mean latency in microseconds
	StdDevUs float64 // standard deviation of latencies in microseconds
	MinUs    float64 // minimum latency observed in microseconds
	MaxUs    float64 // maximum latency observed in microseconds
}

// Collector manages the collection and aggregation of statistics from multiple jobs
type Collector struct {
	updateChan      chan JobUpdate       // channel for receiving job updates
	liveUpdatesChan chan AggregatedStats // channel for sending live aggregate updates
	ctx             context.Context      // context for coordinating shutdown
	cancel          context.CancelFunc   // function to cancel the collection context
	wg              sync.WaitGroup       // wait group for coordinating goroutine shutdown
	stopOnce        sync.Once            // Stop may be called more than once
	jobStats        map[int]JobUpdate    // current statistics from each job
	startTime       time.Time            // when the timed phase began
	stopTime        time.Time            // when collection stopped
	collectLatency  bool                 // whether this collector should process latency data
}

// NewCollector creates a new statistics collector with the specified configuration
func NewCollector(updateBufferSize, liveUpdatesBufferSize int, collectLatency bool) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		updateChan:      make(chan JobUpdate, updateBufferSize),
		liveUpdatesChan: make(chan AggregatedStats, liveUpdatesBufferSize),
		ctx:             ctx,
		cancel:          cancel,
		jobStats:        make(map[int]JobUpdate),
		startTime:       time.Now(),
		collectLatency:  collectLatency,
	}
}

// Start marks the beginning of the timed phase and begins the collection goroutine
func (sc *Collector) Start() {
	sc.startTime = time.Now()
	sc.wg.Add(1)
	go sc.collectStats()
}

// Stop gracefully shuts down the collector and waits for completion. no
// tracker may send updates after Stop. later calls do nothing.
func (sc *Collector) Stop() {
	sc.stopOnce.Do(func() {
		sc.cancel()
		close(sc.updateChan)
		sc.wg.Wait()
		sc.stopTime = time.Now()
		close(sc.liveUpdatesChan)
	})
}

// SendUpdate allows jobs to send their current accumulated statistics.
// this is non-blocking and will drop updates if the channel buffer is full
func (sc *Collector) SendUpdate(update JobUpdate) {
	select {
	case sc.updateChan <- update:
	default:
		// channel buffer is full, drop this update
	}
}

// Publish delivers update, waiting for buffer space. the collector must have
// been started.
func (sc *Collector) Publish(update JobUpdate) {
	sc.updateChan <- update
}

// LiveUpdates returns the channel for receiving live aggregate statistics
func (sc *Collector) LiveUpdates() <-chan AggregatedStats {
	return sc.liveUpdatesChan
}

// FinalStats returns the final aggregated statistics. it must only be called
// after Stop has returned
func (sc *Collector) FinalStats() AggregatedStats {
	return sc.aggregate()
}

// collectStats is the collection goroutine that processes job updates
func (sc *Collector) collectStats() {
	defer sc.wg.Done()

	for {
		select {
		case update, ok := <-sc.updateChan:
			if !ok {
				sc.sendLiveUpdate()
				return
			}
			sc.processJobUpdate(update)

		case <-sc.ctx.Done():
			// drain remaining updates and exit
			for update := range sc.updateChan {
				sc.processJobUpdate(update)
			}
			sc.sendLiveUpdate()
			return
		}
	}
}

// processJobUpdate incorporates a job update and sends a live aggregate update
func (sc *Collector) processJobUpdate(update JobUpdate) {
	// updates carry running totals, so the newest one replaces the last
	if prev, ok := sc.jobStats[update.JobID]; ok && update.Timestamp.Before(prev.Timestamp) {
		return
	}
	sc.jobStats[update.JobID] = update

	sc.sendLiveUpdate()
}

// sendLiveUpdate calculates current aggregates and sends them on the live updates channel
func (sc *Collector) sendLiveUpdate() {
	select {
	case sc.liveUpdatesChan <- sc.aggregate():
	default:
		// no one is listening or channel is full, drop the update
	}
}

// aggregate computes run-wide statistics from the latest update of every job
func (sc *Collector) aggregate() AggregatedStats {
	combinedOps := make(map[string]OpStats)
	for _, jobUpdate := range sc.jobStats {
		for opName, opStats := range jobUpdate.OpStats {
			combinedOps[opName] = combineOpStats(combinedOps[opName], opStats)
		}
	}

	end := sc.stopTime
	if end.IsZero() {
		end = time.Now()
	}
	duration := end.Sub(sc.startTime).Seconds()

	agg := AggregatedStats{
		Ops:            make(map[string]OpSummary, len(combinedOps)),
		TestDuration:   duration,
		HasLatencyData: sc.collectLatency,
	}

	for opName, opStats := range combinedOps {
		s := OpSummary{
			Count:    opStats.Count,
			Bytes:    opStats.Bytes,
			NotFound: opStats.NotFound,
			Errors:   opStats.Errors,
		}
		if duration > 0 {
			s.IOPS = float64(opStats.Count) / duration
			s.BandwidthBps = float64(opStats.Bytes) / duration
		}
		if sc.collectLatency {
			s.Latency = calculateLatencyMetrics(opStats)
		}
		agg.Ops[opName] = s
	}

	return agg
}

// combineOpStats merges two OpStats into a single combined result
func combineOpStats(a, b OpStats) OpStats {
	combined := OpStats{
		Count:       a.Count + b.Count,
		Bytes:       a.Bytes + b.Bytes,
		NotFound:    a.NotFound + b.NotFound,
		Errors:      a.Errors + b.Errors,
		TotalTimeUs: a.TotalTimeUs + b.TotalTimeUs,
		SumSquares:  a.SumSquares + b.SumSquares,
		MaxUs:       max(a.MaxUs, b.MaxUs),
	}

	// an empty side has no meaningful minimum
	switch {
	case a.Count == 0:
		combined.MinUs = b.MinUs
	case b.Count == 0:
		combined.MinUs = a.MinUs
	default:
		combined.MinUs = min(a.MinUs, b.MinUs)
	}

	return combined
}

// calculateLatencyMetrics computes statistical measures from accumulated latency statistics
func calculateLatencyMetrics(stats OpStats) LatencyMetrics {
	if stats.Count == 0 {
		return LatencyMetrics{}
	}

	meanUs := float64(stats.TotalTimeUs) / float64(stats.Count)

	// σ = √[(Σ(x²) - (Σ(x))²/n) / n]
	var stdDevUs float64
	if stats.Count > 1 {
		variance := (float64(stats.SumSquares) - float64(stats.TotalTimeUs)*meanUs) / float64(stats.Count)
		if variance >= 0 { // floating point noise
			stdDevUs = math.Sqrt(variance)
		}
	}

	return LatencyMetrics{
		Count:    stats.Count,
		MeanUs:   meanUs,
		StdDevUs: stdDevUs,
		MinUs:    float64(stats.MinUs),
		MaxUs:    float64(stats.MaxUs),
	}
}

// Tracker accumulates statistics locally for one job and periodically
// publishes them to the collector. a Tracker is owned by a single goroutine.
type Tracker struct {
	jobID          int                // job this tracker belongs to
	collector      *Collector         // reference to the stats collector
	opStats        map[string]OpStats // accumulated statistics by operation type
	lastUpdateTime time.Time          // when the last update was sent to collector
	updateInterval time.Duration      // how often to send updates to collector
	collectLatency bool               // whether to collect latency data for this job
}

// NewTracker creates a new statistics tracker for a job
func NewTracker(jobID int, collector *Collector, updateInterval time.Duration, collectLatency bool) *Tracker {
	return &Tracker{
		jobID:          jobID,
		collector:      collector,
		opStats:        make(map[string]OpStats),
		lastUpdateTime: time.Now(),
		updateInterval: updateInterval,
		collectLatency: collectLatency,
	}
}

// Record accounts one completed request. bytes only count for successful
// requests; latency is ignored unless the tracker collects it.
func (t *Tracker) Record(operation string, bytes int, latency time.Duration, outcome Outcome) {
	stats := t.opStats[operation]
	stats.Count++

	switch outcome {
	case OK:
		stats.Bytes += int64(bytes)
	case NotFound:
		stats.NotFound++
	default:
		stats.Errors++
	}

	if t.collectLatency {
		latencyUs := latency.Microseconds()
		stats.TotalTimeUs += latencyUs
		stats.SumSquares += latencyUs * latencyUs
		if stats.Count == 1 || latencyUs < stats.MinUs {
			stats.MinUs = latencyUs
		}
		if latencyUs > stats.MaxUs {
			stats.MaxUs = latencyUs
		}
	}

	t.opStats[operation] = stats

	if time.Since(t.lastUpdateTime) >= t.updateInterval {
		t.sendUpdate()
	}
}

// Finalize delivers the final totals to the collector. call it when the job
// completes; unlike periodic updates it is never dropped
func (t *Tracker) Finalize() {
	t.collector.Publish(t.update())
	t.lastUpdateTime = time.Now()
}

// Snapshot returns a copy of the statistics accumulated so far
func (t *Tracker) Snapshot() map[string]OpStats {
	statsCopy := make(map[string]OpStats, len(t.opStats))
	for opName, opStats := range t.opStats {
		statsCopy[opName] = opStats
	}
	return statsCopy
}

// sendUpdate sends the current accumulated statistics to the collector
func (t *Tracker) sendUpdate() {
	t.collector.SendUpdate(t.update())
	t.lastUpdateTime = time.Now()
}

func (t *Tracker) update() JobUpdate {
	return JobUpdate{
		JobID:     t.jobID,
		Timestamp: time.Now(),
		OpStats:   t.Snapshot(),
	}
}
