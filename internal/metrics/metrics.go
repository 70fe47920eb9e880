// Package metrics provides Prometheus instrumentation for the jobsearch
// pipeline and dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jobsearch"

var (
	// PagesFetched counts search pages fetched per occupation field.
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_fetched_total",
		Help:      "Total number of search pages fetched.",
	}, []string{"occupation_field"})

	// RecordsExtracted counts job ads yielded by the extractor.
	RecordsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_extracted_total",
		Help:      "Total number of job ads extracted.",
	}, []string{"occupation_field"})

	// FetchErrors counts failed page fetches by error kind.
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_errors_total",
		Help:      "Total number of failed page fetches.",
	}, []string{"kind"})

	// FetchDuration tracks search request latency.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of search page requests in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// RecordsLoaded counts rows written to the warehouse.
	RecordsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_loaded_total",
		Help:      "Total number of job ads written to the warehouse.",
	}, []string{"disposition"})

	// RecordsFiltered counts job ads dropped by the exclusion filter.
	RecordsFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_filtered_total",
		Help:      "Total number of job ads dropped by exclusion terms.",
	})

	// PipelineRuns counts finished load runs by final status.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Total number of load runs by final status.",
	}, []string{"status"})

	// MartRefreshDuration tracks how long a full mart rebuild takes.
	MartRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mart_refresh_duration_seconds",
		Help:      "Duration of mart rebuilds in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})

	// HTTPRequestsTotal counts dashboard HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of dashboard HTTP requests.",
	}, []string{"method", "route", "status"})
)
