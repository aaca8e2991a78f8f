package jobs

import (
	"time"

	"github.com/buemura/scanward/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the orchestrator's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	started  prometheus.Counter
	finished *prometheus.CounterVec
	running  prometheus.Gauge
	duration prometheus.Histogram
	verdicts *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanward_scans_started_total",
			Help: "Total number of scan runs started",
		}),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scanward_scans_finished_total",
				Help: "Total number of scan runs that reached a terminal state",
			},
			[]string{"status"},
		),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanward_scans_running",
			Help: "Number of scan runs currently executing",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanward_scan_duration_seconds",
			Help:    "Wall-clock duration of scan runs in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		}),
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scanward_reputation_verdicts_total",
				Help: "Reputation verdicts recorded on completed scans",
			},
			[]string{"verdict"},
		),
	}

	collectors := []prometheus.Collector{m.started, m.finished, m.running, m.duration, m.verdicts}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.started.Inc()
	m.running.Inc()
}

func (m *Metrics) runFinished(status types.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.running.Dec()
	m.finished.WithLabelValues(string(status)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) verdict(v types.Verdict) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(string(v)).Inc()
}
