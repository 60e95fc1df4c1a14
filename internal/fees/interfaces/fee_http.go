package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"schoolfees-cloud/internal/audit"
	"schoolfees-cloud/internal/auth"
	catalog "schoolfees-cloud/internal/catalog/domain"
	feesapp "schoolfees-cloud/internal/fees/application"
	fees "schoolfees-cloud/internal/fees/domain"
	"schoolfees-cloud/internal/observability/metrics"
)

// FeeHandler handles fee and payment APIs.
type FeeHandler struct {
	resolver    *feesapp.ResolverService
	ledger      *feesapp.LedgerService
	validate    *validator.Validate
	auditLogger audit.Logger
}

// NewFeeHandler constructs a handler.
func NewFeeHandler(resolver *feesapp.ResolverService, ledger *feesapp.LedgerService, auditLogger audit.Logger) (*FeeHandler, error) {
	if resolver == nil {
		return nil, errors.New("fee handler: nil resolver service")
	}
	if ledger == nil {
		return nil, errors.New("fee handler: nil ledger service")
	}
	return &FeeHandler{
		resolver:    resolver,
		ledger:      ledger,
		validate:    validator.New(),
		auditLogger: auditLogger,
	}, nil
}

// ServeHTTP handles fee routes under /api/v1/fees and /api/v1/payments.
func (h *FeeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/fees/resolve" && r.Method == http.MethodPost {
		h.handleResolve(w, r)
		return
	}
	if path == "/api/v1/fees/overdue-sweep" && r.Method == http.MethodPost {
		h.handleOverdueSweep(w, r)
		return
	}
	if path == "/api/v1/fees" && r.Method == http.MethodGet {
		h.handleList(w, r)
		return
	}
	if strings.HasPrefix(path, "/api/v1/payments/") {
		rest := strings.TrimPrefix(path, "/api/v1/payments/")
		h.handlePaymentByID(w, r, rest)
		return
	}
	if strings.HasPrefix(path, "/api/v1/fees/") {
		rest := strings.TrimPrefix(path, "/api/v1/fees/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

type resolveRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	GradeLevel   int    `json:"grade_level" validate:"gte=0"`
	AcademicYear string `json:"academic_year" validate:"required"`
	Frequency    string `json:"payment_frequency" validate:"required,oneof=yearly monthly weekly"`
	SiblingOrder int    `json:"sibling_order" validate:"gte=1"`
	BursaryID    string `json:"bursary_id"`
	DueDate      string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *FeeHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	schoolID := auth.SchoolIDFromContext(r.Context())
	input := feesapp.ResolveInput{
		Student: fees.Student{
			ID:           req.StudentID,
			SchoolID:     schoolID,
			GradeLevel:   req.GradeLevel,
			AcademicYear: req.AcademicYear,
		},
		Frequency:    req.Frequency,
		SiblingOrder: req.SiblingOrder,
		BursaryID:    req.BursaryID,
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			http.Error(w, "invalid due date", http.StatusBadRequest)
			return
		}
		input.DueDate = due
	}

	fee, err := h.resolver.Resolve(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, fee)
	h.logAudit(r, audit.ActionFeeResolve, fee, map[string]any{
		"payment_frequency": req.Frequency,
		"sibling_order":     req.SiblingOrder,
		"bursary_id":        req.BursaryID,
		"total_amount_due":  fee.TotalAmountDue.String(),
	})
}

func (h *FeeHandler) handleList(w http.ResponseWriter, r *http.Request) {
	schoolID := auth.SchoolIDFromContext(r.Context())
	academicYear := r.URL.Query().Get("academic_year")
	if academicYear == "" {
		http.Error(w, "academic_year required", http.StatusBadRequest)
		return
	}
	list, err := h.ledger.ListFees(r.Context(), schoolID, academicYear)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, list)
}

func (h *FeeHandler) handleOverdueSweep(w http.ResponseWriter, r *http.Request) {
	schoolID := auth.SchoolIDFromContext(r.Context())
	academicYear := r.URL.Query().Get("academic_year")
	if academicYear == "" {
		http.Error(w, "academic_year required", http.StatusBadRequest)
		return
	}
	transitioned, err := h.ledger.MarkOverdue(r.Context(), schoolID, academicYear)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"transitioned": transitioned})
}

func (h *FeeHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	feeID := fees.FeeID(parts[0])
	switch len(parts) {
	case 1:
		if r.Method == http.MethodGet {
			h.handleGet(w, r, feeID)
			return
		}
	case 2:
		switch parts[1] {
		case "payments":
			if r.Method == http.MethodPost {
				h.handleApplyPayment(w, r, feeID)
				return
			}
		case "waive":
			if r.Method == http.MethodPost {
				h.handleWaive(w, r, feeID)
				return
			}
		case "export.pdf":
			if r.Method == http.MethodGet {
				h.handleExportPDF(w, r, feeID)
				return
			}
		case "export.xlsx":
			if r.Method == http.MethodGet {
				h.handleExportXLSX(w, r, feeID)
				return
			}
		}
	case 4:
		if parts[1] == "payments" {
			paymentID, err := uuid.Parse(parts[2])
			if err != nil {
				http.Error(w, "invalid payment id", http.StatusBadRequest)
				return
			}
			if r.Method != http.MethodPost {
				break
			}
			switch parts[3] {
			case "refund":
				h.handleRefund(w, r, feeID, paymentID)
				return
			case "cancel":
				h.handleCancel(w, r, feeID, paymentID)
				return
			case "settle":
				h.handleSettle(w, r, feeID, paymentID)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *FeeHandler) handleGet(w http.ResponseWriter, r *http.Request, feeID fees.FeeID) {
	fee, ledger, err := h.ledger.Get(r.Context(), feeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := struct {
		Fee      *fees.StudentFee `json:"fee"`
		Payments []fees.Payment   `json:"payments"`
	}{Fee: fee, Payments: ledger}
	writeJSON(w, resp)
}

type applyPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   string          `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash card bank_transfer mobile_money cheque"`
	ReceiptNumber string          `json:"receipt_number" validate:"required"`
	Pending       bool            `json:"pending"`
}

func (h *FeeHandler) handleApplyPayment(w http.ResponseWriter, r *http.Request, feeID fees.FeeID) {
	var req applyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	input := feesapp.ApplyPaymentInput{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		ReceiptNumber: req.ReceiptNumber,
		Pending:       req.Pending,
	}
	if req.PaymentDate != "" {
		date, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			http.Error(w, "invalid payment date", http.StatusBadRequest)
			return
		}
		input.PaymentDate = date
	}

	fee, payment, err := h.ledger.ApplyPayment(r.Context(), feeID, input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writePaymentResponse(w, fee, payment)
	h.logAudit(r, audit.ActionPaymentApply, fee, map[string]any{
		"payment_id":     payment.ID.String(),
		"amount":         payment.Amount.String(),
		"receipt_number": payment.ReceiptNumber,
		"pending":        req.Pending,
	})
}

func (h *FeeHandler) handleRefund(w http.ResponseWriter, r *http.Request, feeID fees.FeeID, paymentID uuid.UUID) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	fee, payment, err := h.ledger.RefundPayment(r.Context(), feeID, paymentID, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writePaymentResponse(w, fee, payment)
	h.logAudit(r, audit.ActionPaymentRefund, fee, map[string]any{
		"payment_id": payment.ID.String(),
		"amount":     payment.Amount.String(),
		"reason":     req.Reason,
	})
}

func (h *FeeHandler) handleCancel(w http.ResponseWriter, r *http.Request, feeID fees.FeeID, paymentID uuid.UUID) {
	fee, payment, err := h.ledger.CancelPayment(r.Context(), feeID, paymentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writePaymentResponse(w, fee, payment)
	h.logAudit(r, audit.ActionPaymentCancel, fee, map[string]any{
		"payment_id": payment.ID.String(),
	})
}

func (h *FeeHandler) handleSettle(w http.ResponseWriter, r *http.Request, feeID fees.FeeID, paymentID uuid.UUID) {
	fee, payment, err := h.ledger.SettlePayment(r.Context(), feeID, paymentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writePaymentResponse(w, fee, payment)
	h.logAudit(r, audit.ActionPaymentSettle, fee, map[string]any{
		"payment_id": payment.ID.String(),
		"amount":     payment.Amount.String(),
	})
}

func (h *FeeHandler) handleWaive(w http.ResponseWriter, r *http.Request, feeID fees.FeeID) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	fee, err := h.ledger.Waive(r.Context(), feeID, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, fee)
	h.logAudit(r, audit.ActionFeeWaive, fee, map[string]any{
		"reason": req.Reason,
	})
}

func (h *FeeHandler) handlePaymentByID(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "receipt.pdf" || r.Method != http.MethodGet {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	paymentID, err := uuid.Parse(parts[0])
	if err != nil {
		http.Error(w, "invalid payment id", http.StatusBadRequest)
		return
	}

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReceiptExport("receipt_pdf", result, time.Since(start))
	}()

	fee, payment, err := h.ledger.GetPayment(r.Context(), paymentID)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := BuildReceiptPDF(fee, payment)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *FeeHandler) handleExportPDF(w http.ResponseWriter, r *http.Request, feeID fees.FeeID) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReceiptExport("pdf", result, time.Since(start))
	}()

	fee, ledger, err := h.ledger.Get(r.Context(), feeID)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := BuildFeeStatementPDF(fee, ledger)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *FeeHandler) handleExportXLSX(w http.ResponseWriter, r *http.Request, feeID fees.FeeID) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReceiptExport("xlsx", result, time.Since(start))
	}()

	fee, ledger, err := h.ledger.Get(r.Context(), feeID)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := BuildLedgerXLSX(fee, ledger)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *FeeHandler) logAudit(r *http.Request, action string, fee *fees.StudentFee, meta map[string]any) {
	if h.auditLogger == nil || fee == nil {
		return
	}
	schoolID := auth.SchoolIDFromContext(r.Context())
	if schoolID == "" {
		schoolID = fee.SchoolID
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		SchoolID:     schoolID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "student_fee",
		ResourceID:   string(fee.ID),
		StudentID:    fee.StudentID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func writePaymentResponse(w http.ResponseWriter, fee *fees.StudentFee, payment *fees.Payment) {
	resp := struct {
		Fee     *fees.StudentFee `json:"fee"`
		Payment *fees.Payment    `json:"payment"`
	}{Fee: fee, Payment: payment}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, auth.ErrTenantMismatch):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, fees.ErrFeeNotFound),
		errors.Is(err, fees.ErrPaymentNotFound),
		errors.Is(err, catalog.ErrStructureNotFound),
		errors.Is(err, catalog.ErrBursaryNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, fees.ErrDuplicateReceipt),
		errors.Is(err, fees.ErrConcurrentModification),
		errors.Is(err, fees.ErrInvalidPaymentState),
		errors.Is(err, fees.ErrFeeWaived),
		errors.Is(err, fees.ErrBursaryCapacityExceeded):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, fees.ErrRefundExceedsPaid):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
