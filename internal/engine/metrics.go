package engine

import (
	"errors"
	"io/fs"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks engine activity in Prometheus. one Metrics can be shared by
// every engine of a run; gauges then report the run-wide totals.
type Metrics struct {
	// RequestsTotal counts completed requests by direction and result
	RequestsTotal *prometheus.CounterVec

	// RequestDuration tracks submit-to-completion latency by direction
	RequestDuration *prometheus.HistogramVec

	// InFlight is the number of submitted but uncollected requests
	InFlight prometheus.Gauge

	// Workers is the number of live worker goroutines
	Workers prometheus.Gauge

	// DirsCreated counts shard directories created by writes
	DirsCreated prometheus.Counter
}

// NewMetrics creates the engine metrics and registers them with reg.
// a nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileserver_requests_total",
				Help: "Total completed shard requests by direction and result",
			},
			[]string{"direction", "result"}, // result: ok, not_found, error
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fileserver_request_duration_seconds",
				Help:    "Shard request latency from submission to completion",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"direction"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fileserver_inflight_requests",
				Help: "Requests submitted but not yet collected",
			},
		),
		Workers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fileserver_workers",
				Help: "Live engine worker goroutines",
			},
		),
		DirsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fileserver_dirs_created_total",
				Help: "Shard directories created on demand",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.InFlight,
			m.Workers,
			m.DirsCreated,
		)
	}

	return m
}

// resultLabel classifies a completed request
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	default:
		return "error"
	}
}

func (m *Metrics) submitted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

func (m *Metrics) completed(req *Request) {
	if m == nil {
		return
	}
	dir := req.Direction.String()
	m.RequestsTotal.WithLabelValues(dir, resultLabel(req.Err)).Inc()
	m.RequestDuration.WithLabelValues(dir).Observe(req.Latency().Seconds())
}

func (m *Metrics) collected() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

func (m *Metrics) workers(delta int) {
	if m == nil {
		return
	}
	m.Workers.Add(float64(delta))
}
