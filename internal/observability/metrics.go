package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ica"

// Metrics holds the Prometheus counters, histograms, and gauges for the index pipeline.
type Metrics struct {
	UnitsProcessed   *prometheus.CounterVec // labels: component
	UnitsSkipped     *prometheus.CounterVec // labels: component
	RegionFailures   prometheus.Counter
	RecordsPublished prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Standardization metrics.
	ZeroStdCells      *prometheus.CounterVec // labels: component
	InsufficientCells *prometheus.CounterVec // labels: component
	AlignmentCache    *prometheus.CounterVec // labels: result={hit,miss}

	UnitDuration *prometheus.HistogramVec // labels: component
}

func newMetrics() *Metrics {
	return &Metrics{
		UnitsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_processed_total",
			Help:      "Region-year units computed, by component.",
		}, []string{"component"}),
		UnitsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_skipped_total",
			Help:      "Region-year units skipped for missing input, by component.",
		}, []string{"component"}),
		RegionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_failures_total",
			Help:      "Regions whose run failed.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "ICA records written to the configured sinks.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		ZeroStdCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zero_std_cells_total",
			Help:      "Anomaly samples whose baseline std was zero, by component.",
		}, []string{"component"}),
		InsufficientCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_baseline_cells_total",
			Help:      "Anomaly samples whose baseline month lacked samples, by component.",
		}, []string{"component"}),
		AlignmentCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alignment_cache_total",
			Help:      "Cell alignment cache lookups by result.",
		}, []string{"result"}),
		UnitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "unit_duration_seconds",
			Help:      "Duration of one region-year unit, by component.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"component"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.UnitsProcessed,
		m.UnitsSkipped,
		m.RegionFailures,
		m.RecordsPublished,
		m.PipelineRunning,
		m.ZeroStdCells,
		m.InsufficientCells,
		m.AlignmentCache,
		m.UnitDuration,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
