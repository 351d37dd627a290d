// Package metrics holds the Prometheus collectors for the analysis pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// unitsTotal counts parsed units by outcome.
	// Labels: path (primary, fallback)
	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tsqlgraph",
		Subsystem: "parser",
		Name:      "units_total",
		Help:      "Parsed units by parser path",
	}, []string{"path"})

	// requestsTotal counts pipeline operations by name and status.
	// Labels: operation (analyze, callgraph, callers, terms), status (ok, error)
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tsqlgraph",
		Subsystem: "pipeline",
		Name:      "requests_total",
		Help:      "Pipeline operations by name and status",
	}, []string{"operation", "status"})

	// truncationsTotal counts capped lists and graphs by code.
	truncationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tsqlgraph",
		Subsystem: "pipeline",
		Name:      "truncations_total",
		Help:      "Lists and graphs cut at a configured limit, by code",
	}, []string{"code"})

	durationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tsqlgraph",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "Pipeline operation latency",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"operation"})
)

// Operation names.
const (
	OpAnalyze   = "analyze"
	OpCallGraph = "callgraph"
	OpCallers   = "callers"
	OpTerms     = "terms"
)

// RecordParse records which parser path produced a unit's IR.
func RecordParse(degraded bool) {
	if degraded {
		unitsTotal.WithLabelValues("fallback").Inc()
		return
	}
	unitsTotal.WithLabelValues("primary").Inc()
}

// RecordTruncation records one capped list or graph.
func RecordTruncation(code string) {
	truncationsTotal.WithLabelValues(code).Inc()
}

// Observe records the outcome and latency of one operation started at start.
func Observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	requestsTotal.WithLabelValues(operation, status).Inc()
	durationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
