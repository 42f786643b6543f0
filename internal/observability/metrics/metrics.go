package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const metricPrefix = "soa_"

// Result labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	// ResultPartial marks a bulk run with at least one failed enrollment.
	ResultPartial = "partial"
)

var bulkDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800}

var (
	registerOnce sync.Once

	statementComputeTotal    *prometheus.CounterVec
	statementGenerateTotal   *prometheus.CounterVec
	statementGenerateLatency *prometheus.HistogramVec
	statementExportTotal     *prometheus.CounterVec
	statementExportLatency   *prometheus.HistogramVec

	bulkRunsTotal   *prometheus.CounterVec
	bulkRunDuration *prometheus.HistogramVec
	bulkItemsTotal  *prometheus.CounterVec
)

func newCounter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: metricPrefix + name, Help: help}, labels)
}

func newHistogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: metricPrefix + name, Help: help, Buckets: buckets}, labels)
}

// Init registers statement metrics and, when db is set, the DB gauges. Safe to call twice.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		statementComputeTotal = newCounter("statement_compute_total", "Statement computations by result", "result")
		statementGenerateTotal = newCounter("statement_generate_total", "Statement file generations by result", "result")
		statementGenerateLatency = newHistogram("statement_generate_latency_seconds", "Statement file generation latency", prometheus.DefBuckets, "result")
		statementExportTotal = newCounter("statement_export_total", "Statement exports by format and result", "format", "result")
		statementExportLatency = newHistogram("statement_export_latency_seconds", "Statement export latency", prometheus.DefBuckets, "format", "result")
		bulkRunsTotal = newCounter("bulk_runs_total", "Bulk statement runs by result", "result")
		bulkRunDuration = newHistogram("bulk_run_duration_seconds", "Bulk statement run duration", bulkDurationBuckets, "result")
		bulkItemsTotal = newCounter("bulk_items_total", "Bulk run enrollments by status", "status")

		prometheus.MustRegister(
			statementComputeTotal, statementGenerateTotal, statementGenerateLatency,
			statementExportTotal, statementExportLatency,
			bulkRunsTotal, bulkRunDuration, bulkItemsTotal,
		)
		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// IncStatementCompute counts an on-screen statement computation.
func IncStatementCompute(result string) {
	if statementComputeTotal != nil {
		statementComputeTotal.WithLabelValues(orDefault(result, ResultSuccess)).Inc()
	}
}

func ObserveStatementGenerate(result string, duration time.Duration) {
	result = orDefault(result, ResultSuccess)
	if statementGenerateTotal != nil {
		statementGenerateTotal.WithLabelValues(result).Inc()
		statementGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

func ObserveStatementExport(format, result string, duration time.Duration) {
	format, result = orDefault(format, "unknown"), orDefault(result, ResultSuccess)
	if statementExportTotal != nil {
		statementExportTotal.WithLabelValues(format, result).Inc()
		statementExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// ObserveBulkRun records a finished bulk run.
func ObserveBulkRun(result string, duration time.Duration) {
	result = orDefault(result, ResultSuccess)
	if bulkRunsTotal != nil {
		bulkRunsTotal.WithLabelValues(result).Inc()
		bulkRunDuration.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncBulkItem counts one enrollment outcome inside a bulk run.
func IncBulkItem(status string) {
	if bulkItemsTotal != nil {
		bulkItemsTotal.WithLabelValues(orDefault(status, "unknown")).Inc()
	}
}
