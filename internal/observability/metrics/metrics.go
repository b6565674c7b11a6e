package metrics

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"residential-cloud/internal/apperr"
)

const (
	metricPrefix = "residential_"

	resultSuccess  = "success"
	resultError    = "error"
	resultConflict = "conflict"
	resultRejected = "rejected"
)

var (
	registerOnce sync.Once

	billGenerateTotal   *prometheus.CounterVec
	billGenerateLatency *prometheus.HistogramVec
	billsGenerated      prometheus.Counter

	paymentTotal   *prometheus.CounterVec
	paymentLatency *prometheus.HistogramVec
	billsSettled   prometheus.Counter

	reportTotal   *prometheus.CounterVec
	reportLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	tallyTotal *prometheus.CounterVec

	schedulerRuns *prometheus.CounterVec

	eventPublishTotal *prometheus.CounterVec
)

// Init registers metrics and DB-backed gauges once per process.
func Init(db *sql.DB, logger *slog.Logger) {
	registerOnce.Do(func() {
		billGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_generate_total",
				Help: "Total bill generation runs by result",
			},
			[]string{"result"},
		)
		billGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "bill_generate_latency_seconds",
				Help:    "Bill generation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		billsGenerated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "bills_generated_total",
				Help: "Total bills persisted",
			},
		)

		paymentTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_reconcile_total",
				Help: "Total payment reconciliations by result",
			},
			[]string{"result"},
		)
		paymentLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "payment_reconcile_latency_seconds",
				Help:    "Payment reconciliation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		billsSettled = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "bills_settled_total",
				Help: "Total bills transitioned to paid",
			},
		)

		reportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "financial_report_total",
				Help: "Total financial reports by mode and result",
			},
			[]string{"mode", "result"},
		)
		reportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "financial_report_latency_seconds",
				Help:    "Financial report latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total document exports by document, format and result",
			},
			[]string{"document", "format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Document export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"document", "format"},
		)

		tallyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "voting_tally_total",
				Help: "Total voting tallies by voting type and outcome",
			},
			[]string{"type", "outcome"},
		)

		schedulerRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scheduler_runs_total",
				Help: "Total scheduled job runs by job and result",
			},
			[]string{"job", "result"},
		)

		eventPublishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_publish_total",
				Help: "Total domain events published by routing key and result",
			},
			[]string{"routing_key", "result"},
		)

		prometheus.MustRegister(
			billGenerateTotal,
			billGenerateLatency,
			billsGenerated,
			paymentTotal,
			paymentLatency,
			billsSettled,
			reportTotal,
			reportLatency,
			exportTotal,
			exportLatency,
			tallyTotal,
			schedulerRuns,
			eventPublishTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveBillGenerate records a generation run and the number of bills saved.
func ObserveBillGenerate(result string, bills int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if billGenerateTotal != nil {
		billGenerateTotal.WithLabelValues(result).Inc()
	}
	if billGenerateLatency != nil {
		billGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if billsGenerated != nil && result == resultSuccess && bills > 0 {
		billsGenerated.Add(float64(bills))
	}
}

// ObservePayment records a payment reconciliation.
func ObservePayment(result string, settled bool, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if paymentTotal != nil {
		paymentTotal.WithLabelValues(result).Inc()
	}
	if paymentLatency != nil {
		paymentLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if billsSettled != nil && settled {
		billsSettled.Inc()
	}
}

// ObserveReport records a financial report.
func ObserveReport(mode, result string, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportTotal != nil {
		reportTotal.WithLabelValues(mode, result).Inc()
	}
	if reportLatency != nil {
		reportLatency.WithLabelValues(mode, result).Observe(duration.Seconds())
	}
}

// ObserveExport records a document export.
func ObserveExport(document, format, result string, duration time.Duration) {
	if document == "" {
		document = "unknown"
	}
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(document, format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(document, format).Observe(duration.Seconds())
	}
}

// IncTally counts a voting tally outcome.
func IncTally(votingType string, approved bool) {
	if votingType == "" {
		votingType = "unknown"
	}
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	if tallyTotal != nil {
		tallyTotal.WithLabelValues(votingType, outcome).Inc()
	}
}

// IncSchedulerRun counts a scheduled job run.
func IncSchedulerRun(job, result string) {
	if job == "" {
		job = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if schedulerRuns != nil {
		schedulerRuns.WithLabelValues(job, result).Inc()
	}
}

// IncEventPublish counts a published domain event.
func IncEventPublish(routingKey, result string) {
	if routingKey == "" {
		routingKey = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if eventPublishTotal != nil {
		eventPublishTotal.WithLabelValues(routingKey, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultConflict = resultConflict
	ResultRejected = resultRejected
)

// ResultOf maps an operation error to a result label.
func ResultOf(err error) string {
	switch apperr.KindOf(err) {
	case "":
		return resultSuccess
	case apperr.KindConflict:
		return resultConflict
	case apperr.KindValidation, apperr.KindAuthorization, apperr.KindNotFound:
		return resultRejected
	default:
		return resultError
	}
}
