package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fareaggregator_searches_total",
		Help: "Searches that reached a terminal state, by status",
	}, []string{"status"})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fareaggregator_search_duration_seconds",
		Help:    "Wall time from running to a terminal state",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fareaggregator_cache_lookups_total",
		Help: "Search result cache lookups, by result",
	}, []string{"result"})

	ConnectorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fareaggregator_connector_runs_total",
		Help: "Connector runs, by source and outcome",
	}, []string{"source", "status"})

	ConnectorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fareaggregator_connector_latency_seconds",
		Help:    "Connector run latency including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fareaggregator_http_requests_total",
		Help: "HTTP requests handled, by route and status code",
	}, []string{"route", "code"})
)
