package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolfees-cloud/internal/auth"
	catalog "schoolfees-cloud/internal/catalog/domain"
	catalogmem "schoolfees-cloud/internal/catalog/infrastructure/memory"
	"schoolfees-cloud/internal/eventing"
	fees "schoolfees-cloud/internal/fees/domain"
	feesmem "schoolfees-cloud/internal/fees/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

type resolverFixture struct {
	service    *ResolverService
	structures *catalogmem.FeeStructureRepository
	bursaries  *catalogmem.BursaryRepository
	feeRepo    *feesmem.StudentFeeRepository
	payments   *feesmem.PaymentRepository
	bus        *eventing.Bus
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	structures := catalogmem.NewFeeStructureRepository()
	bursaries := catalogmem.NewBursaryRepository()
	feeRepo := feesmem.NewStudentFeeRepository()
	payments := feesmem.NewPaymentRepository()
	bus := eventing.NewBus()

	service, err := NewResolverService(structures, bursaries, feeRepo, payments, bus,
		Config{Currency: "USD", DueDays: 30}, fixedClock{now: testNow})
	require.NoError(t, err)
	return &resolverFixture{
		service:    service,
		structures: structures,
		bursaries:  bursaries,
		feeRepo:    feeRepo,
		payments:   payments,
		bus:        bus,
	}
}

func (f *resolverFixture) seedStructure(t *testing.T) {
	t.Helper()
	err := f.structures.Save(context.Background(), &catalog.FeeStructure{
		ID:           "fs-1",
		SchoolID:     "school-a",
		GradeLevel:   1,
		AcademicYear: "2025-2026",

		YearlyAmount:  dec("8000"),
		MonthlyAmount: dec("700"),
		WeeklyAmount:  dec("180"),

		YearlyDiscountPercent: dec("10"),

		Sibling2DiscountPercent:     dec("10"),
		Sibling3DiscountPercent:     dec("15"),
		Sibling4PlusDiscountPercent: dec("20"),

		ActivityFeesAmount: dec("300"),
		Active:             true,
	})
	require.NoError(t, err)
}

func (f *resolverFixture) seedBursary(t *testing.T, maxRecipients int) {
	t.Helper()
	err := f.bursaries.Save(context.Background(), &catalog.Bursary{
		ID:             "b-merit",
		SchoolID:       "school-a",
		Name:           "Merit Award",
		BursaryType:    catalog.BursaryTypeMerit,
		CoverageType:   catalog.CoveragePercentage,
		CoverageValue:  dec("50"),
		EligibleGrades: []int{1, 2, 3},
		MaxRecipients:  maxRecipients,
	})
	require.NoError(t, err)
}

func resolveInput() ResolveInput {
	return ResolveInput{
		Student: fees.Student{
			ID:           "stu-1",
			SchoolID:     "school-a",
			GradeLevel:   1,
			AcademicYear: "2025-2026",
		},
		Frequency:    "yearly",
		SiblingOrder: 1,
	}
}

func TestResolverService_ResolvePersistsSnapshot(t *testing.T) {
	f := newResolverFixture(t)
	f.seedStructure(t)

	fee, err := f.service.Resolve(context.Background(), resolveInput())
	require.NoError(t, err)

	assert.True(t, fee.TotalBeforeDiscounts.Equal(dec("8300")))
	assert.True(t, fee.PaymentDiscountAmount.Equal(dec("800")))
	assert.True(t, fee.TotalAmountDue.Equal(dec("7500")))
	assert.True(t, fee.BalanceDue.Equal(dec("7500")))
	assert.Equal(t, fees.FeeStatusPending, fee.Status)
	assert.Equal(t, testNow.AddDate(0, 0, 30), fee.DueDate)

	stored, err := f.feeRepo.Get(context.Background(), fee.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.TotalAmountDue.Equal(dec("7500")))
}

func TestResolverService_ResolveIsIdempotent(t *testing.T) {
	f := newResolverFixture(t)
	f.seedStructure(t)
	f.seedBursary(t, 10)

	input := resolveInput()
	input.BursaryID = "b-merit"

	first, err := f.service.Resolve(context.Background(), input)
	require.NoError(t, err)
	second, err := f.service.Resolve(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, first.TotalAmountDue.Equal(second.TotalAmountDue))
	assert.True(t, first.BursaryAmount.Equal(second.BursaryAmount))
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	bursary, err := f.bursaries.Get(context.Background(), "b-merit")
	require.NoError(t, err)
	assert.Equal(t, 1, bursary.CurrentRecipients, "re-resolving must not double-award")
}

func TestResolverService_BursaryCapacity(t *testing.T) {
	f := newResolverFixture(t)
	f.seedStructure(t)
	f.seedBursary(t, 1)

	input := resolveInput()
	input.BursaryID = "b-merit"
	_, err := f.service.Resolve(context.Background(), input)
	require.NoError(t, err)

	input.Student.ID = "stu-2"
	_, err = f.service.Resolve(context.Background(), input)
	assert.ErrorIs(t, err, fees.ErrBursaryCapacityExceeded)
}

func TestResolverService_FullCoverageStartsPending(t *testing.T) {
	f := newResolverFixture(t)
	f.seedStructure(t)
	err := f.bursaries.Save(context.Background(), &catalog.Bursary{
		ID:             "b-full-ride",
		SchoolID:       "school-a",
		Name:           "Full Ride",
		BursaryType:    catalog.BursaryTypeMerit,
		CoverageType:   catalog.CoveragePercentage,
		CoverageValue:  dec("100"),
		EligibleGrades: []int{1, 2, 3},
		MaxRecipients:  5,
	})
	require.NoError(t, err)

	input := resolveInput()
	input.BursaryID = "b-full-ride"

	fee, err := f.service.Resolve(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, fee.TotalAmountDue.IsZero())
	assert.Equal(t, fees.FeeStatusPending, fee.Status, "a fee nobody has paid is never born paid")
}

func TestResolverService_ReResolveHoldsLastSlot(t *testing.T) {
	f := newResolverFixture(t)
	f.seedStructure(t)
	f.seedBursary(t, 1)

	input := resolveInput()
	input.BursaryID = "b-merit"

	first, err := f.service.Resolve(context.Background(), input)
	require.NoError(t, err)

	second, err := f.service.Resolve(context.Background(), input)
	require.NoError(t, err, "the slot holder must re-resolve against a full bursary")
	assert.True(t, first.BursaryAmount.Equal(second.BursaryAmount))

	bursary, err := f.bursaries.Get(context.Background(), "b-merit")
	require.NoError(t, err)
	assert.Equal(t, 1, bursary.CurrentRecipients)
}

func TestResolverService_MissingStructure(t *testing.T) {
	f := newResolverFixture(t)

	_, err := f.service.Resolve(context.Background(), resolveInput())
	assert.ErrorIs(t, err, catalog.ErrStructureNotFound)
}

func TestResolverService_InvalidFrequency(t *testing.T) {
	f := newResolverFixture(t)
	f.seedStructure(t)

	input := resolveInput()
	input.Frequency = "daily"
	_, err := f.service.Resolve(context.Background(), input)
	assert.ErrorIs(t, err, fees.ErrInvalidFrequency)
}

func TestResolverService_TenantMismatch(t *testing.T) {
	f := newResolverFixture(t)
	f.seedStructure(t)

	ctx := auth.WithIdentity(context.Background(), "school-b", auth.RoleClerk, "user-1")
	_, err := f.service.Resolve(ctx, resolveInput())
	assert.ErrorIs(t, err, auth.ErrTenantMismatch)
}

func TestResolverService_RecalculationPreservesLedger(t *testing.T) {
	f := newResolverFixture(t)
	f.seedStructure(t)

	ledgerSvc, err := NewLedgerService(f.feeRepo, f.payments, f.bus, fixedClock{now: testNow})
	require.NoError(t, err)

	fee, err := f.service.Resolve(context.Background(), resolveInput())
	require.NoError(t, err)

	_, _, err = ledgerSvc.ApplyPayment(context.Background(), fee.ID, ApplyPaymentInput{
		Amount:        dec("2000"),
		PaymentMethod: "cash",
		ReceiptNumber: "RCPT-2025-0001",
	})
	require.NoError(t, err)

	again, err := f.service.Resolve(context.Background(), resolveInput())
	require.NoError(t, err)
	assert.True(t, again.TotalPaid.Equal(dec("2000")))
	assert.True(t, again.BalanceDue.Equal(dec("5500")))
	assert.Equal(t, fees.FeeStatusPartial, again.Status)
}

func TestResolverService_PublishesFeeResolved(t *testing.T) {
	f := newResolverFixture(t)
	f.seedStructure(t)

	var events []FeeResolved
	eventing.Subscribe(f.bus, func(ctx context.Context, event FeeResolved) error {
		events = append(events, event)
		return nil
	})

	_, err := f.service.Resolve(context.Background(), resolveInput())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Recalculated)
	assert.True(t, events[0].TotalAmountDue.Equal(dec("7500")))
}
