package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "schoolfees_"

	resultSuccess = "success"
	resultError   = "error"
)

// Exported result labels.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

var (
	registerOnce sync.Once

	feeResolveTotal   *prometheus.CounterVec
	feeResolveLatency *prometheus.HistogramVec

	paymentApplyTotal   *prometheus.CounterVec
	paymentApplyLatency *prometheus.HistogramVec

	paymentRefundTotal   *prometheus.CounterVec
	paymentRefundLatency *prometheus.HistogramVec

	ledgerConflictsTotal prometheus.Counter

	receiptExportTotal   *prometheus.CounterVec
	receiptExportLatency *prometheus.HistogramVec

	bursaryAwardsTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		feeResolveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fee_resolve_total",
				Help: "Total fee resolutions by result",
			},
			[]string{"result"},
		)
		feeResolveLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fee_resolve_latency_seconds",
				Help:    "Fee resolution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		paymentApplyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_apply_total",
				Help: "Total payment applications by result",
			},
			[]string{"result"},
		)
		paymentApplyLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "payment_apply_latency_seconds",
				Help:    "Payment application latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		paymentRefundTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_refund_total",
				Help: "Total payment refunds by result",
			},
			[]string{"result"},
		)
		paymentRefundLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "payment_refund_latency_seconds",
				Help:    "Payment refund latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		ledgerConflictsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_conflicts_total",
				Help: "Total ledger concurrent-modification conflicts",
			},
		)

		receiptExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "receipt_export_total",
				Help: "Total receipt/ledger exports by format and result",
			},
			[]string{"format", "result"},
		)
		receiptExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "receipt_export_latency_seconds",
				Help:    "Receipt/ledger export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		bursaryAwardsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bursary_awards_total",
				Help: "Total bursary awards by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			feeResolveTotal,
			feeResolveLatency,
			paymentApplyTotal,
			paymentApplyLatency,
			paymentRefundTotal,
			paymentRefundLatency,
			ledgerConflictsTotal,
			receiptExportTotal,
			receiptExportLatency,
			bursaryAwardsTotal,
		)

		registerDBMetrics(db, logger)
	})
}

// ObserveFeeResolve records a fee resolution outcome.
func ObserveFeeResolve(result string, elapsed time.Duration) {
	if feeResolveTotal == nil {
		return
	}
	feeResolveTotal.WithLabelValues(result).Inc()
	feeResolveLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ObservePaymentApply records a payment application outcome.
func ObservePaymentApply(result string, elapsed time.Duration) {
	if paymentApplyTotal == nil {
		return
	}
	paymentApplyTotal.WithLabelValues(result).Inc()
	paymentApplyLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ObservePaymentRefund records a payment refund outcome.
func ObservePaymentRefund(result string, elapsed time.Duration) {
	if paymentRefundTotal == nil {
		return
	}
	paymentRefundTotal.WithLabelValues(result).Inc()
	paymentRefundLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ObserveLedgerConflict counts a concurrent-modification conflict.
func ObserveLedgerConflict() {
	if ledgerConflictsTotal == nil {
		return
	}
	ledgerConflictsTotal.Inc()
}

// ObserveReceiptExport records an export outcome.
func ObserveReceiptExport(format, result string, elapsed time.Duration) {
	if receiptExportTotal == nil {
		return
	}
	receiptExportTotal.WithLabelValues(format, result).Inc()
	receiptExportLatency.WithLabelValues(format, result).Observe(elapsed.Seconds())
}

// ObserveBursaryAward counts a bursary award attempt.
func ObserveBursaryAward(result string) {
	if bursaryAwardsTotal == nil {
		return
	}
	bursaryAwardsTotal.WithLabelValues(result).Inc()
}
