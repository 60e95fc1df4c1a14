package application

import (
	"context"
	"errors"
	"time"

	"schoolfees-cloud/internal/auth"
	catalog "schoolfees-cloud/internal/catalog/domain"
)

// CatalogService manages fee structures and bursaries for a school.
type CatalogService struct {
	structures catalog.FeeStructureRepository
	bursaries  catalog.BursaryRepository
}

// NewCatalogService constructs a service.
func NewCatalogService(structures catalog.FeeStructureRepository, bursaries catalog.BursaryRepository) (*CatalogService, error) {
	if structures == nil {
		return nil, errors.New("catalog service: nil structure repository")
	}
	if bursaries == nil {
		return nil, errors.New("catalog service: nil bursary repository")
	}
	return &CatalogService{structures: structures, bursaries: bursaries}, nil
}

// SaveStructure validates and persists a fee structure scoped to the
// caller's school.
func (s *CatalogService) SaveStructure(ctx context.Context, structure *catalog.FeeStructure) error {
	if structure == nil {
		return catalog.ErrNilStructure
	}
	if schoolID := auth.SchoolIDFromContext(ctx); schoolID != "" {
		if structure.SchoolID == "" {
			structure.SchoolID = schoolID
		} else if structure.SchoolID != schoolID {
			return auth.ErrTenantMismatch
		}
	}
	now := time.Now().UTC()
	if structure.CreatedAt.IsZero() {
		structure.CreatedAt = now
	}
	structure.UpdatedAt = now
	return s.structures.Save(ctx, structure)
}

// GetStructure loads a structure, enforcing school scoping.
func (s *CatalogService) GetStructure(ctx context.Context, id string) (*catalog.FeeStructure, error) {
	structure, err := s.structures.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if structure == nil {
		return nil, catalog.ErrStructureNotFound
	}
	if schoolID := auth.SchoolIDFromContext(ctx); schoolID != "" && structure.SchoolID != schoolID {
		return nil, auth.ErrTenantMismatch
	}
	return structure, nil
}

// SaveBursary validates and persists a bursary scoped to the caller's
// school.
func (s *CatalogService) SaveBursary(ctx context.Context, bursary *catalog.Bursary) error {
	if bursary == nil {
		return catalog.ErrNilBursary
	}
	if schoolID := auth.SchoolIDFromContext(ctx); schoolID != "" {
		if bursary.SchoolID == "" {
			bursary.SchoolID = schoolID
		} else if bursary.SchoolID != schoolID {
			return auth.ErrTenantMismatch
		}
	}
	now := time.Now().UTC()
	if bursary.CreatedAt.IsZero() {
		bursary.CreatedAt = now
	}
	bursary.UpdatedAt = now
	return s.bursaries.Save(ctx, bursary)
}

// GetBursary loads a bursary, enforcing school scoping.
func (s *CatalogService) GetBursary(ctx context.Context, id string) (*catalog.Bursary, error) {
	bursary, err := s.bursaries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bursary == nil {
		return nil, catalog.ErrBursaryNotFound
	}
	if schoolID := auth.SchoolIDFromContext(ctx); schoolID != "" && bursary.SchoolID != schoolID {
		return nil, auth.ErrTenantMismatch
	}
	return bursary, nil
}
