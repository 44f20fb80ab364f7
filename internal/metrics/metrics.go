// Package metrics holds the export counters. Each run owns its registry so
// in-process ranks share one set of series and tests stay isolated.
package metrics

import (
	"time"

	xerr "github.com/aevon-lab/cubexport/internal/core/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cubexport"

// Export is the metric set of one export run. A nil *Export records nothing.
type Export struct {
	Registry *prometheus.Registry

	fragments *prometheus.CounterVec
	rows      prometheus.Counter
	bytes     prometheus.Counter
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func New() *Export {
	m := &Export{
		Registry: prometheus.NewRegistry(),
		fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_exported_total",
			Help:      "Fragments written and committed to an output container.",
		}, []string{"format"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Fragment rows copied into measure variables.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measure_bytes_written_total",
			Help:      "Measure payload bytes handed to sinks.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_failures_total",
			Help:      "Ranks that finished with an error, by error kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rank_duration_seconds",
			Help:      "Wall time of one rank's export.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(m.fragments, m.rows, m.bytes, m.failures, m.duration)
	return m
}

func (m *Export) FragmentExported(format string) {
	if m == nil {
		return
	}
	m.fragments.WithLabelValues(format).Inc()
}

func (m *Export) RowsWritten(rows, bytes int) {
	if m == nil {
		return
	}
	m.rows.Add(float64(rows))
	m.bytes.Add(float64(bytes))
}

// RankFinished records the outcome of one rank. Already published outputs
// count as success.
func (m *Export) RankFinished(start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil && xerr.KindOf(err) != xerr.KindAlreadyPublished {
		outcome = "failure"
		m.failures.WithLabelValues(xerr.KindOf(err).String()).Inc()
	}
	m.duration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps the registry in the node exporter textfile format.
func (m *Export) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
