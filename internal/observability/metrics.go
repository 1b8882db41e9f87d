package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	RecordsFetched    prometheus.Counter
	RecordsNormalized prometheus.Counter
	RecordsDropped    prometheus.Counter
	PermitsPublished  prometheus.Counter
	SnapshotsWritten  prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Per-year processing metrics.
	YearRecords  prometheus.Histogram
	YearDuration prometheus.Histogram

	// CKAN API metrics.
	FetchRequests    *prometheus.CounterVec   // labels: action={sql,paginated}, outcome={success,error}
	FetchFallbacks   prometheus.Counter
	FetchAPIDuration *prometheus.HistogramVec // labels: action={sql,paginated}
	PublishEnabled   prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "permits_etl",
			Name:      "records_fetched_total",
			Help:      "Total raw records fetched from the CKAN datastore.",
		}),
		RecordsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "permits_etl",
			Name:      "records_normalized_total",
			Help:      "Total records normalized into permits.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "permits_etl",
			Name:      "records_dropped_total",
			Help:      "Total normalized records dropped for lacking an application date.",
		}),
		PermitsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "permits_etl",
			Name:      "permits_published_total",
			Help:      "Total normalized permits published to Kafka.",
		}),
		SnapshotsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "permits_etl",
			Name:      "snapshots_written_total",
			Help:      "Total snapshot files written.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "permits_etl",
			Name:      "pipeline_running",
			Help:      "1 when an ingestion run is active, 0 otherwise.",
		}),
		YearRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "permits_etl",
			Name:      "year_records",
			Help:      "Raw records per ingested year.",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 20000, 50000},
		}),
		YearDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "permits_etl",
			Name:      "year_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-aggregate cycle for one year.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "permits_etl",
			Name:      "ckan_requests_total",
			Help:      "CKAN API requests by action and outcome.",
		}, []string{"action", "outcome"}),
		FetchFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "permits_etl",
			Name:      "ckan_fallbacks_total",
			Help:      "Times the SQL fetch failed and pagination took over.",
		}),
		FetchAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "permits_etl",
			Name:      "ckan_request_duration_seconds",
			Help:      "CKAN API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"action"}),
		PublishEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "permits_etl",
			Name:      "publish_enabled",
			Help:      "1 when Kafka publishing is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.RecordsFetched,
		m.RecordsNormalized,
		m.RecordsDropped,
		m.PermitsPublished,
		m.SnapshotsWritten,
		m.PipelineRunning,
		m.YearRecords,
		m.YearDuration,
		m.FetchRequests,
		m.FetchFallbacks,
		m.FetchAPIDuration,
		m.PublishEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsFetched:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "permits_etl", Name: "records_fetched_total"}),
		RecordsNormalized: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "permits_etl", Name: "records_normalized_total"}),
		RecordsDropped:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "permits_etl", Name: "records_dropped_total"}),
		PermitsPublished:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "permits_etl", Name: "permits_published_total"}),
		SnapshotsWritten:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "permits_etl", Name: "snapshots_written_total"}),
		PipelineRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "permits_etl", Name: "pipeline_running"}),
		YearRecords:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "permits_etl", Name: "year_records"}),
		YearDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "permits_etl", Name: "year_duration_seconds"}),
		FetchRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "permits_etl", Name: "ckan_requests_total"}, []string{"action", "outcome"}),
		FetchFallbacks:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "permits_etl", Name: "ckan_fallbacks_total"}),
		FetchAPIDuration:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "permits_etl", Name: "ckan_request_duration_seconds"}, []string{"action"}),
		PublishEnabled:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "permits_etl", Name: "publish_enabled"}),
	}
}
