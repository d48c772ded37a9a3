// Package metrics exports polling loop events as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiwiot/faceometer/agent/internal/poller"
)

// Prom implements poller.Observer on top of Prometheus collectors.
type Prom struct {
	cycles    prometheus.Counter
	successes prometheus.Counter
	failures  *prometheus.CounterVec
	changes   prometheus.Counter
	interval  prometheus.Gauge
	duration  prometheus.Histogram
	lastOK    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Prom {
	p := &Prom{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faceometer_cycles_total",
			Help: "Polling cycles started.",
		}),
		successes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faceometer_cycles_succeeded_total",
			Help: "Polling cycles that submitted a record.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "faceometer_cycle_failures_total",
			Help: "Polling cycles aborted, by failing stage.",
		}, []string{"stage"}),
		changes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "faceometer_interval_changes_total",
			Help: "Refresh-time directives that changed the polling interval.",
		}),
		interval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "faceometer_interval_seconds",
			Help: "Current wait between polling cycles.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "faceometer_cycle_duration_seconds",
			Help:    "Time from cycle start to a successful submission.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		lastOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "faceometer_last_success_timestamp_seconds",
			Help: "Unix time of the last successful cycle.",
		}),
	}

	for _, stage := range []poller.Stage{poller.StageAcquire, poller.StageSubmit, poller.StagePanic} {
		p.failures.WithLabelValues(string(stage))
	}

	reg.MustRegister(p.cycles, p.successes, p.failures, p.changes, p.interval, p.duration, p.lastOK)
	return p
}

// CycleStarted counts a new cycle.
func (p *Prom) CycleStarted() { p.cycles.Inc() }

// CycleSucceeded records a completed cycle.
func (p *Prom) CycleSucceeded(took time.Duration) {
	p.successes.Inc()
	p.duration.Observe(took.Seconds())
	p.lastOK.SetToCurrentTime()
}

// CycleFailed counts an aborted cycle.
func (p *Prom) CycleFailed(stage poller.Stage) {
	p.failures.WithLabelValues(string(stage)).Inc()
}

// IntervalChanged counts a directive-driven change.
func (p *Prom) IntervalChanged(seconds int) {
	p.changes.Inc()
	p.interval.Set(float64(seconds))
}

// Waiting records the interval the loop is about to wait.
func (p *Prom) Waiting(seconds int) {
	p.interval.Set(float64(seconds))
}

var _ poller.Observer = (*Prom)(nil)
