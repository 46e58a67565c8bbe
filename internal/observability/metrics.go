package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nga_flood"

// Metrics holds the Prometheus counters, histograms, and gauges for the monitoring pipeline.
type Metrics struct {
	MonitoringRuns     *prometheus.CounterVec // labels: outcome={success,error}
	TriggerEvaluations *prometheus.CounterVec // labels: level, status={activated,not_activated}
	ExtractErrors      prometheus.Counter
	ForecastRows       *prometheus.CounterVec // labels: source
	RunDuration        prometheus.Histogram
	PipelineRunning    prometheus.Gauge
	LastTriggered      prometheus.Gauge
	TriggersPublished  prometheus.Counter

	// Google Flood Forecasting metrics.
	GoogleRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GoogleCache       *prometheus.CounterVec // labels: result={hit,miss}
	GoogleAPIDuration prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		MonitoringRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitoring_runs_total",
			Help:      "Monitoring runs by outcome.",
		}, []string{"outcome"}),
		TriggerEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_evaluations_total",
			Help:      "Trigger evaluations by level and status.",
		}, []string{"level", "status"}),
		ExtractErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_errors_total",
			Help:      "Total failures collecting forecast data.",
		}),
		ForecastRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_rows_total",
			Help:      "Forecast rows stored, by source.",
		}, []string{"source"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete collect-evaluate-publish run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		LastTriggered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_trigger_activated",
			Help:      "1 when the most recent evaluation activated, 0 otherwise.",
		}),
		TriggersPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_published_total",
			Help:      "Total trigger records written to the trigger topic.",
		}),
		GoogleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "google_requests_total",
			Help:      "Google Flood Forecasting API requests by outcome.",
		}, []string{"outcome"}),
		GoogleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "google_cache_total",
			Help:      "Gauge forecast cache lookups by result.",
		}, []string{"result"}),
		GoogleAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "google_api_duration_seconds",
			Help:      "Google Flood Forecasting API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MonitoringRuns,
		m.TriggerEvaluations,
		m.ExtractErrors,
		m.ForecastRows,
		m.RunDuration,
		m.PipelineRunning,
		m.LastTriggered,
		m.TriggersPublished,
		m.GoogleRequests,
		m.GoogleCache,
		m.GoogleAPIDuration,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
