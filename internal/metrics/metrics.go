// Package metrics exposes Prometheus metrics for pipeline runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JonMunkholm/followup/internal/core"
)

// Runs records run lifecycle events. It implements core.RunObserver.
type Runs struct {
	started  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	finished *prometheus.CounterVec
	active   prometheus.Gauge
	duration *prometheus.HistogramVec
	records  *prometheus.CounterVec
	flagged  *prometheus.CounterVec
	newKeys  prometheus.Counter
}

var _ core.RunObserver = (*Runs)(nil)

// NewRuns registers the run collectors with reg.
func NewRuns(reg prometheus.Registerer) *Runs {
	f := promauto.With(reg)
	return &Runs{
		started: f.NewCounterVec(prometheus.CounterOpts{
			Name: "followup_runs_started_total",
			Help: "Total number of runs started",
		}, []string{"step"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "followup_runs_rejected_total",
			Help: "Total number of runs rejected because no run slot was free",
		}, []string{"step"}),
		finished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "followup_runs_finished_total",
			Help: "Total number of finished runs by outcome",
		}, []string{"step", "phase"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "followup_runs_active",
			Help: "Number of runs in progress",
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "followup_run_duration_seconds",
			Help:    "Wall time of finished runs",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"step"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "followup_records_written_total",
			Help: "Total number of records written to output tables",
		}, []string{"step"}),
		flagged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "followup_records_flagged_total",
			Help: "Total number of records flagged for human review",
		}, []string{"step"}),
		newKeys: f.NewCounter(prometheus.CounterOpts{
			Name: "followup_reference_entries_added_total",
			Help: "Total number of provisional reference database entries added",
		}),
	}
}

func stepLabel(s core.Step) string {
	return strconv.Itoa(int(s))
}

// RunStarted counts a run that got a slot.
func (m *Runs) RunStarted(step core.Step) {
	m.started.WithLabelValues(stepLabel(step)).Inc()
	m.active.Inc()
}

// RunRejected counts a run turned away by the limiter.
func (m *Runs) RunRejected(step core.Step) {
	m.rejected.WithLabelValues(stepLabel(step)).Inc()
}

// RunFinished records the outcome of a run.
func (m *Runs) RunFinished(step core.Step, phase core.RunPhase, elapsed time.Duration, stats core.RunStats) {
	label := stepLabel(step)
	m.active.Dec()
	m.finished.WithLabelValues(label, string(phase)).Inc()
	m.duration.WithLabelValues(label).Observe(elapsed.Seconds())
	if phase != core.PhaseComplete {
		return
	}
	m.records.WithLabelValues(label).Add(float64(stats.Records))
	m.flagged.WithLabelValues(label).Add(float64(stats.FlaggedRecords))
	m.newKeys.Add(float64(stats.NewReferenceKey))
}
