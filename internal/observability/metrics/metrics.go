package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "labmaint_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	cyclesMaterialized prometheus.Counter
	completions        *prometheus.CounterVec
	evaluationRows     *prometheus.CounterVec
	dueQueries         *prometheus.CounterVec
	dueQueryLatency    *prometheus.HistogramVec
	exportTotal        *prometheus.CounterVec
	exportLatency      *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		cyclesMaterialized = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "cycles_materialized_total",
				Help: "Total maintenance cycles materialized",
			},
		)
		completions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "completions_total",
				Help: "Total completion attempts by result",
			},
			[]string{"result"},
		)
		evaluationRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "evaluation_rows_total",
				Help: "Total evaluated template rows by outcome",
			},
			[]string{"outcome"},
		)
		dueQueries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "due_queries_total",
				Help: "Total due/overdue read model queries by result",
			},
			[]string{"result"},
		)
		dueQueryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "due_query_latency_seconds",
				Help:    "Due/overdue read model latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total report export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			cyclesMaterialized,
			completions,
			evaluationRows,
			dueQueries,
			dueQueryLatency,
			exportTotal,
			exportLatency,
		)

		registerDBMetrics(db, logger)
	})
}

// CycleMaterialized counts a newly materialized maintenance cycle.
func CycleMaterialized() {
	if cyclesMaterialized != nil {
		cyclesMaterialized.Inc()
	}
}

// CompletionRecorded counts a completion attempt outcome
// ("success" or "conflict").
func CompletionRecorded(result string) {
	if completions != nil {
		completions.WithLabelValues(result).Inc()
	}
}

// RowEvaluated counts a template row evaluation outcome
// ("passed", "failed", "incomplete" or "recorded").
func RowEvaluated(outcome string) {
	if evaluationRows != nil {
		evaluationRows.WithLabelValues(outcome).Inc()
	}
}

// ObserveDueQuery records a due/overdue read model query.
func ObserveDueQuery(err error, elapsed time.Duration) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if dueQueries != nil {
		dueQueries.WithLabelValues(result).Inc()
	}
	if dueQueryLatency != nil {
		dueQueryLatency.WithLabelValues(result).Observe(elapsed.Seconds())
	}
}

// ObserveExport records a report export by format.
func ObserveExport(format string, err error, elapsed time.Duration) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(elapsed.Seconds())
	}
}
