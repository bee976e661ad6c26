// Package metrics holds the Prometheus collectors of the pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "compliance_checker"

var (
	documentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "documents_total",
		Help:      "Documents processed by the ingest pipeline, by extractor and status.",
	}, []string{"extractor", "status"})

	chunksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "chunks_total",
		Help:      "Chunks produced by the chunker.",
	})

	ingestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Time to ingest one document, from upload to upsert.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "queries_total",
		Help:      "Vector queries, by kind (text or embedding).",
	}, []string{"kind"})

	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "generated_total",
		Help:      "Suitability reports, by status.",
	}, []string{"status"})

	llmDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "report",
		Name:      "llm_duration_seconds",
		Help:      "Chat completion latency.",
		Buckets:   prometheus.DefBuckets,
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveIngest records one finished ingest.
func ObserveIngest(extractor string, chunks int, took time.Duration, err error) {
	documentsIngested.WithLabelValues(extractor, status(err)).Inc()
	if err == nil {
		chunksCreated.Add(float64(chunks))
		ingestDuration.Observe(took.Seconds())
	}
}

func IncSearch(kind string) {
	searchesTotal.WithLabelValues(kind).Inc()
}

// ObserveReport records one report attempt and its LLM latency.
func ObserveReport(took time.Duration, err error) {
	reportsTotal.WithLabelValues(status(err)).Inc()
	llmDuration.Observe(took.Seconds())
}

func ObserveHTTP(method, route string, code int, took time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(took.Seconds())
}
