package apihttp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"schoolfees-cloud/internal/auth"
)

const timeLayout = time.RFC3339

// StatsHandler serves fee collection statistics for a school.
type StatsHandler struct {
	db *sql.DB
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(db *sql.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

// ServeHTTP handles GET /api/v1/stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	schoolID := auth.SchoolIDFromContext(r.Context())
	if schoolID == "" {
		schoolID = r.URL.Query().Get("school_id")
	}
	if schoolID == "" {
		http.Error(w, "school_id is required", http.StatusBadRequest)
		return
	}
	academicYear := r.URL.Query().Get("academic_year")
	if academicYear == "" {
		http.Error(w, "academic_year is required", http.StatusBadRequest)
		return
	}

	stats, err := queryFeeStats(r.Context(), h.db, schoolID, academicYear)
	if err != nil {
		http.Error(w, "query stats error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// ExportFeesCSVHandler serves school fee ledgers as CSV.
type ExportFeesCSVHandler struct {
	db *sql.DB
}

// NewExportFeesCSVHandler constructs a ExportFeesCSVHandler.
func NewExportFeesCSVHandler(db *sql.DB) *ExportFeesCSVHandler {
	return &ExportFeesCSVHandler{db: db}
}

// ServeHTTP handles GET /api/v1/exports/fees.csv.
func (h *ExportFeesCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	schoolID := auth.SchoolIDFromContext(r.Context())
	if schoolID == "" {
		schoolID = r.URL.Query().Get("school_id")
	}
	if schoolID == "" {
		http.Error(w, "school_id is required", http.StatusBadRequest)
		return
	}
	academicYear := r.URL.Query().Get("academic_year")
	if academicYear == "" {
		http.Error(w, "academic_year is required", http.StatusBadRequest)
		return
	}

	rows, err := queryFeeRows(r.Context(), h.db, schoolID, academicYear)
	if err != nil {
		http.Error(w, "query fees error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"fee_id",
		"student_id",
		"grade_level",
		"academic_year",
		"payment_frequency",
		"total_amount_due",
		"total_paid",
		"balance_due",
		"status",
		"due_date",
		"updated_at",
	})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.FeeID,
			row.StudentID,
			strconv.Itoa(row.GradeLevel),
			row.AcademicYear,
			row.Frequency,
			row.TotalAmountDue.StringFixed(2),
			row.TotalPaid.StringFixed(2),
			row.BalanceDue.StringFixed(2),
			row.Status,
			formatTime(row.DueDate),
			formatTime(row.UpdatedAt),
		})
	}
	writer.Flush()
}

type feeStats struct {
	SchoolID         string          `json:"school_id"`
	AcademicYear     string          `json:"academic_year"`
	FeeCount         int             `json:"fee_count"`
	PendingCount     int             `json:"pending_count"`
	PartialCount     int             `json:"partial_count"`
	PaidCount        int             `json:"paid_count"`
	OverdueCount     int             `json:"overdue_count"`
	WaivedCount      int             `json:"waived_count"`
	TotalBilled      decimal.Decimal `json:"total_billed"`
	TotalCollected   decimal.Decimal `json:"total_collected"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

type feeRow struct {
	FeeID          string
	StudentID      string
	GradeLevel     int
	AcademicYear   string
	Frequency      string
	TotalAmountDue decimal.Decimal
	TotalPaid      decimal.Decimal
	BalanceDue     decimal.Decimal
	Status         string
	DueDate        time.Time
	UpdatedAt      time.Time
}

func queryFeeStats(ctx context.Context, db *sql.DB, schoolID, academicYear string) (feeStats, error) {
	stats := feeStats{SchoolID: schoolID, AcademicYear: academicYear}
	row := db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'partial'),
	COUNT(*) FILTER (WHERE status = 'paid'),
	COUNT(*) FILTER (WHERE status = 'overdue'),
	COUNT(*) FILTER (WHERE status = 'waived'),
	COALESCE(SUM(total_amount_due), 0),
	COALESCE(SUM(total_paid), 0),
	COALESCE(SUM(balance_due) FILTER (WHERE status IN ('pending','partial','overdue')), 0)
FROM student_fees
WHERE school_id = $1 AND academic_year = $2`, schoolID, academicYear)
	err := row.Scan(
		&stats.FeeCount,
		&stats.PendingCount,
		&stats.PartialCount,
		&stats.PaidCount,
		&stats.OverdueCount,
		&stats.WaivedCount,
		&stats.TotalBilled,
		&stats.TotalCollected,
		&stats.TotalOutstanding,
	)
	return stats, err
}

func queryFeeRows(ctx context.Context, db *sql.DB, schoolID, academicYear string) ([]feeRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	id,
	student_id,
	grade_level,
	academic_year,
	payment_frequency,
	total_amount_due,
	total_paid,
	balance_due,
	status,
	due_date,
	updated_at
FROM student_fees
WHERE school_id = $1 AND academic_year = $2
ORDER BY student_id ASC`, schoolID, academicYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []feeRow
	for rows.Next() {
		var row feeRow
		if err := rows.Scan(
			&row.FeeID,
			&row.StudentID,
			&row.GradeLevel,
			&row.AcademicYear,
			&row.Frequency,
			&row.TotalAmountDue,
			&row.TotalPaid,
			&row.BalanceDue,
			&row.Status,
			&row.DueDate,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		row.DueDate = row.DueDate.UTC()
		row.UpdatedAt = row.UpdatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}
