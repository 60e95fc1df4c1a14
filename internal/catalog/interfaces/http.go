package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"schoolfees-cloud/internal/auth"
	catalogapp "schoolfees-cloud/internal/catalog/application"
	catalog "schoolfees-cloud/internal/catalog/domain"
)

// CatalogHandler handles catalog admin APIs.
type CatalogHandler struct {
	service  *catalogapp.CatalogService
	validate *validator.Validate
}

// NewCatalogHandler constructs a handler.
func NewCatalogHandler(service *catalogapp.CatalogService) (*CatalogHandler, error) {
	if service == nil {
		return nil, errors.New("catalog handler: nil service")
	}
	return &CatalogHandler{service: service, validate: validator.New()}, nil
}

// ServeHTTP handles catalog routes under /api/v1/catalog.
func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/catalog/structures" && r.Method == http.MethodPost:
		h.handleSaveStructure(w, r)
	case strings.HasPrefix(path, "/api/v1/catalog/structures/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/api/v1/catalog/structures/")
		h.handleGetStructure(w, r, id)
	case path == "/api/v1/catalog/bursaries" && r.Method == http.MethodPost:
		h.handleSaveBursary(w, r)
	case strings.HasPrefix(path, "/api/v1/catalog/bursaries/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/api/v1/catalog/bursaries/")
		h.handleGetBursary(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type structureRequest struct {
	ID           string `json:"id" validate:"required"`
	GradeLevel   int    `json:"grade_level" validate:"gte=0"`
	AcademicYear string `json:"academic_year" validate:"required"`

	YearlyAmount  decimal.Decimal `json:"yearly_amount"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	WeeklyAmount  decimal.Decimal `json:"weekly_amount"`

	YearlyDiscountPercent  decimal.Decimal `json:"yearly_discount_percent"`
	MonthlyDiscountPercent decimal.Decimal `json:"monthly_discount_percent"`
	WeeklyDiscountPercent  decimal.Decimal `json:"weekly_discount_percent"`

	Sibling2DiscountPercent     decimal.Decimal `json:"sibling2_discount_percent"`
	Sibling3DiscountPercent     decimal.Decimal `json:"sibling3_discount_percent"`
	Sibling4PlusDiscountPercent decimal.Decimal `json:"sibling4plus_discount_percent"`
	ApplySiblingToAll           bool            `json:"apply_sibling_to_all"`

	ActivityFeesAmount decimal.Decimal `json:"activity_fees_amount"`
	MaterialFeesAmount decimal.Decimal `json:"material_fees_amount"`
	OtherFeesAmount    decimal.Decimal `json:"other_fees_amount"`

	Active bool `json:"active"`
}

func (h *CatalogHandler) handleSaveStructure(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	structure := &catalog.FeeStructure{
		ID:           req.ID,
		GradeLevel:   req.GradeLevel,
		AcademicYear: req.AcademicYear,

		YearlyAmount:  req.YearlyAmount,
		MonthlyAmount: req.MonthlyAmount,
		WeeklyAmount:  req.WeeklyAmount,

		YearlyDiscountPercent:  req.YearlyDiscountPercent,
		MonthlyDiscountPercent: req.MonthlyDiscountPercent,
		WeeklyDiscountPercent:  req.WeeklyDiscountPercent,

		Sibling2DiscountPercent:     req.Sibling2DiscountPercent,
		Sibling3DiscountPercent:     req.Sibling3DiscountPercent,
		Sibling4PlusDiscountPercent: req.Sibling4PlusDiscountPercent,
		ApplySiblingToAll:           req.ApplySiblingToAll,

		ActivityFeesAmount: req.ActivityFeesAmount,
		MaterialFeesAmount: req.MaterialFeesAmount,
		OtherFeesAmount:    req.OtherFeesAmount,

		Active: req.Active,
	}
	if err := h.service.SaveStructure(r.Context(), structure); err != nil {
		respondCatalogError(w, err)
		return
	}
	writeJSON(w, structure)
}

func (h *CatalogHandler) handleGetStructure(w http.ResponseWriter, r *http.Request, id string) {
	structure, err := h.service.GetStructure(r.Context(), id)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	writeJSON(w, structure)
}

type bursaryRequest struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	BursaryType  string `json:"bursary_type" validate:"required,oneof=merit need sports academic other"`
	CoverageType string `json:"coverage_type" validate:"required,oneof=percentage fixed_amount"`

	CoverageValue     decimal.Decimal `json:"coverage_value"`
	MaxCoverageAmount decimal.Decimal `json:"max_coverage_amount"`

	EligibleGrades []int `json:"eligible_grades"`
	MaxRecipients  int   `json:"max_recipients" validate:"gte=0"`
}

func (h *CatalogHandler) handleSaveBursary(w http.ResponseWriter, r *http.Request) {
	var req bursaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bursary := &catalog.Bursary{
		ID:                req.ID,
		Name:              req.Name,
		BursaryType:       req.BursaryType,
		CoverageType:      req.CoverageType,
		CoverageValue:     req.CoverageValue,
		MaxCoverageAmount: req.MaxCoverageAmount,
		EligibleGrades:    req.EligibleGrades,
		MaxRecipients:     req.MaxRecipients,
	}
	if err := h.service.SaveBursary(r.Context(), bursary); err != nil {
		respondCatalogError(w, err)
		return
	}
	writeJSON(w, bursary)
}

func (h *CatalogHandler) handleGetBursary(w http.ResponseWriter, r *http.Request, id string) {
	bursary, err := h.service.GetBursary(r.Context(), id)
	if err != nil {
		respondCatalogError(w, err)
		return
	}
	writeJSON(w, bursary)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondCatalogError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, auth.ErrTenantMismatch):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, catalog.ErrStructureNotFound), errors.Is(err, catalog.ErrBursaryNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
