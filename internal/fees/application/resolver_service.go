package application

import (
	"context"
	"errors"
	"time"

	"schoolfees-cloud/internal/auth"
	catalog "schoolfees-cloud/internal/catalog/domain"
	"schoolfees-cloud/internal/eventing"
	fees "schoolfees-cloud/internal/fees/domain"
	"schoolfees-cloud/internal/observability/metrics"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ResolveInput carries the already-resolved external data for a fee
// resolution. Sibling order and grade come from enrollment; the engine
// never fetches them itself.
type ResolveInput struct {
	Student      fees.Student
	Frequency    string
	SiblingOrder int
	BursaryID    string
	DueDate      time.Time
}

// ResolverService creates and recalculates student fee snapshots.
type ResolverService struct {
	structures catalog.FeeStructureRepository
	bursaries  catalog.BursaryRepository
	feeRepo    fees.StudentFeeRepository
	payments   fees.PaymentRepository
	bus        eventing.Publisher
	clock      Clock
	cfg        Config
}

// NewResolverService constructs the service.
func NewResolverService(
	structures catalog.FeeStructureRepository,
	bursaries catalog.BursaryRepository,
	feeRepo fees.StudentFeeRepository,
	payments fees.PaymentRepository,
	bus eventing.Publisher,
	cfg Config,
	clock Clock,
) (*ResolverService, error) {
	if structures == nil {
		return nil, errors.New("resolver service: nil structure repository")
	}
	if bursaries == nil {
		return nil, errors.New("resolver service: nil bursary repository")
	}
	if feeRepo == nil {
		return nil, errors.New("resolver service: nil fee repository")
	}
	if payments == nil {
		return nil, errors.New("resolver service: nil payment repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ResolverService{
		structures: structures,
		bursaries:  bursaries,
		feeRepo:    feeRepo,
		payments:   payments,
		bus:        bus,
		clock:      clock,
		cfg:        cfg,
	}, nil
}

// Resolve computes and persists the definitive fee snapshot for a student
// and academic year. Re-resolving with identical inputs is idempotent:
// totals come out byte-identical and an existing bursary award is not
// double-counted. The existing payment ledger survives recalculation.
func (s *ResolverService) Resolve(ctx context.Context, input ResolveInput) (*fees.StudentFee, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveFeeResolve(result, time.Since(start))
	}()

	if schoolID := auth.SchoolIDFromContext(ctx); schoolID != "" && schoolID != input.Student.SchoolID {
		result = metrics.ResultError
		return nil, auth.ErrTenantMismatch
	}

	frequency, ok := fees.NormalizeFrequency(input.Frequency)
	if !ok {
		result = metrics.ResultError
		return nil, fees.ErrInvalidFrequency
	}

	structure, err := s.structures.FindActive(ctx, input.Student.SchoolID, input.Student.GradeLevel, input.Student.AcademicYear)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if structure == nil {
		result = metrics.ResultError
		return nil, catalog.ErrStructureNotFound
	}

	var bursary *catalog.Bursary
	if input.BursaryID != "" {
		bursary, err = s.bursaries.Get(ctx, input.BursaryID)
		if err != nil {
			result = metrics.ResultError
			return nil, err
		}
		if bursary == nil {
			result = metrics.ResultError
			return nil, catalog.ErrBursaryNotFound
		}
	}

	now := s.clock.Now()
	snapshot, err := fees.Resolve(*structure, input.Student, frequency, input.SiblingOrder, bursary, now)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	existing, err := s.feeRepo.Get(ctx, snapshot.ID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	snapshot.DueDate = s.dueDate(input, existing, now)
	if existing != nil {
		snapshot.CreatedAt = existing.CreatedAt
		snapshot.Version = existing.Version
		if existing.Status == fees.FeeStatusWaived {
			snapshot.Status = fees.FeeStatusWaived
			snapshot.WaiveReason = existing.WaiveReason
			snapshot.WaivedAt = existing.WaivedAt
		}
	}

	ledger, err := s.payments.ListByFee(ctx, snapshot.ID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if err := fees.Recompute(snapshot, ledger, now); err != nil {
		result = metrics.ResultError
		return nil, err
	}

	// Award before saving so a capacity failure leaves prior state
	// untouched. TryAward is idempotent per (student, bursary, year).
	if bursary != nil {
		newly, err := s.bursaries.TryAward(ctx, bursary.ID, input.Student.ID, input.Student.AcademicYear)
		if err != nil {
			result = metrics.ResultError
			if errors.Is(err, catalog.ErrBursaryExhausted) {
				metrics.ObserveBursaryAward(metrics.ResultError)
				return nil, fees.ErrBursaryCapacityExceeded
			}
			return nil, err
		}
		if newly {
			metrics.ObserveBursaryAward(metrics.ResultSuccess)
		}
	}

	if err := s.saveWithRetry(ctx, snapshot); err != nil {
		result = metrics.ResultError
		return nil, err
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, FeeResolved{
			FeeID:          snapshot.ID,
			StudentID:      snapshot.StudentID,
			AcademicYear:   snapshot.AcademicYear,
			TotalAmountDue: snapshot.TotalAmountDue,
			Recalculated:   existing != nil,
			OccurredAt:     now,
		})
	}
	return snapshot, nil
}

func (s *ResolverService) dueDate(input ResolveInput, existing *fees.StudentFee, now time.Time) time.Time {
	if !input.DueDate.IsZero() {
		return input.DueDate
	}
	if existing != nil && !existing.DueDate.IsZero() {
		return existing.DueDate
	}
	return now.AddDate(0, 0, s.cfg.DueDays)
}

// saveWithRetry re-reads the stored version and retries a conflicting save
// exactly once before surfacing the conflict.
func (s *ResolverService) saveWithRetry(ctx context.Context, fee *fees.StudentFee) error {
	err := s.feeRepo.Save(ctx, fee)
	if err == nil || !errors.Is(err, fees.ErrConcurrentModification) {
		return err
	}
	metrics.ObserveLedgerConflict()

	current, getErr := s.feeRepo.Get(ctx, fee.ID)
	if getErr != nil {
		return getErr
	}
	if current != nil {
		fee.Version = current.Version
	}
	if err := s.feeRepo.Save(ctx, fee); err != nil {
		if errors.Is(err, fees.ErrConcurrentModification) {
			return fees.ErrConcurrentModification
		}
		return err
	}
	return nil
}
