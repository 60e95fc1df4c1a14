package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "fees_outstanding_balance",
			Help: "Sum of balance due across open student fees",
		},
		func() float64 {
			return queryFloat(db, logger, "SELECT COALESCE(SUM(balance_due), 0) FROM student_fees WHERE status IN ('pending','partial','overdue')")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "fees_overdue_count",
			Help: "Student fees currently overdue",
		},
		func() float64 {
			return queryFloat(db, logger, "SELECT COUNT(*) FROM student_fees WHERE status = 'overdue'")
		},
	))
}

func queryFloat(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var value float64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if value < 0 {
		return 0
	}
	return float64(value)
}
