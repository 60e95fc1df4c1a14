package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"schoolfees-cloud/internal/catalog/domain"
)

const (
	defaultStructureTable = "fee_structures"
	defaultBursaryTable   = "bursaries"
	defaultAwardTable     = "bursary_awards"
)

// FeeStructureRepository is a Postgres implementation for fee structures.
type FeeStructureRepository struct {
	db    *sql.DB
	table string
}

// NewFeeStructureRepository constructs a repository with defaults.
func NewFeeStructureRepository(db *sql.DB, opts ...StructureRepositoryOption) *FeeStructureRepository {
	repo := &FeeStructureRepository{db: db, table: defaultStructureTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// StructureRepositoryOption configures the repository.
type StructureRepositoryOption func(*FeeStructureRepository)

// WithStructureTable overrides the default table.
func WithStructureTable(table string) StructureRepositoryOption {
	return func(repo *FeeStructureRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const structureColumns = `
	id, school_id, grade_level, academic_year,
	yearly_amount, monthly_amount, weekly_amount,
	yearly_discount_percent, monthly_discount_percent, weekly_discount_percent,
	sibling2_discount_percent, sibling3_discount_percent, sibling4plus_discount_percent,
	apply_sibling_to_all,
	activity_fees_amount, material_fees_amount, other_fees_amount,
	active, created_at, updated_at`

// Get loads a structure by id.
func (r *FeeStructureRepository) Get(ctx context.Context, id string) (*catalog.FeeStructure, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("structure repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, structureColumns, r.table)
	structure, err := scanStructure(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return structure, nil
}

// FindActive returns the active structure for (school, grade, year).
func (r *FeeStructureRepository) FindActive(ctx context.Context, schoolID string, grade int, academicYear string) (*catalog.FeeStructure, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("structure repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE school_id = $1 AND grade_level = $2 AND academic_year = $3 AND active
LIMIT 1`, structureColumns, r.table)
	structure, err := scanStructure(r.db.QueryRowContext(ctx, query, schoolID, grade, academicYear))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return structure, nil
}

// Save upserts a structure. Activating a structure deactivates any
// sibling row for the same (school, grade, year) in the same
// transaction.
func (r *FeeStructureRepository) Save(ctx context.Context, structure *catalog.FeeStructure) error {
	if r == nil || r.db == nil {
		return errors.New("structure repo: nil db")
	}
	if structure == nil {
		return catalog.ErrNilStructure
	}
	if err := structure.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if structure.Active {
		deactivate := fmt.Sprintf(`
UPDATE %s SET active = FALSE, updated_at = NOW()
WHERE school_id = $1 AND grade_level = $2 AND academic_year = $3 AND active AND id <> $4`, r.table)
		if _, err := tx.ExecContext(ctx, deactivate,
			structure.SchoolID, structure.GradeLevel, structure.AcademicYear, structure.ID); err != nil {
			return err
		}
	}

	upsert := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
)
ON CONFLICT (id) DO UPDATE SET
	yearly_amount = EXCLUDED.yearly_amount,
	monthly_amount = EXCLUDED.monthly_amount,
	weekly_amount = EXCLUDED.weekly_amount,
	yearly_discount_percent = EXCLUDED.yearly_discount_percent,
	monthly_discount_percent = EXCLUDED.monthly_discount_percent,
	weekly_discount_percent = EXCLUDED.weekly_discount_percent,
	sibling2_discount_percent = EXCLUDED.sibling2_discount_percent,
	sibling3_discount_percent = EXCLUDED.sibling3_discount_percent,
	sibling4plus_discount_percent = EXCLUDED.sibling4plus_discount_percent,
	apply_sibling_to_all = EXCLUDED.apply_sibling_to_all,
	activity_fees_amount = EXCLUDED.activity_fees_amount,
	material_fees_amount = EXCLUDED.material_fees_amount,
	other_fees_amount = EXCLUDED.other_fees_amount,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at`, r.table, structureColumns)

	if _, err := tx.ExecContext(ctx, upsert,
		structure.ID, structure.SchoolID, structure.GradeLevel, structure.AcademicYear,
		structure.YearlyAmount, structure.MonthlyAmount, structure.WeeklyAmount,
		structure.YearlyDiscountPercent, structure.MonthlyDiscountPercent, structure.WeeklyDiscountPercent,
		structure.Sibling2DiscountPercent, structure.Sibling3DiscountPercent, structure.Sibling4PlusDiscountPercent,
		structure.ApplySiblingToAll,
		structure.ActivityFeesAmount, structure.MaterialFeesAmount, structure.OtherFeesAmount,
		structure.Active, structure.CreatedAt.UTC(), structure.UpdatedAt.UTC(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStructure(row rowScanner) (*catalog.FeeStructure, error) {
	var structure catalog.FeeStructure
	err := row.Scan(
		&structure.ID, &structure.SchoolID, &structure.GradeLevel, &structure.AcademicYear,
		&structure.YearlyAmount, &structure.MonthlyAmount, &structure.WeeklyAmount,
		&structure.YearlyDiscountPercent, &structure.MonthlyDiscountPercent, &structure.WeeklyDiscountPercent,
		&structure.Sibling2DiscountPercent, &structure.Sibling3DiscountPercent, &structure.Sibling4PlusDiscountPercent,
		&structure.ApplySiblingToAll,
		&structure.ActivityFeesAmount, &structure.MaterialFeesAmount, &structure.OtherFeesAmount,
		&structure.Active, &structure.CreatedAt, &structure.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &structure, nil
}

// BursaryRepository is a Postgres implementation for bursaries.
type BursaryRepository struct {
	db         *sql.DB
	table      string
	awardTable string
}

// NewBursaryRepository constructs a repository with defaults.
func NewBursaryRepository(db *sql.DB, opts ...BursaryRepositoryOption) *BursaryRepository {
	repo := &BursaryRepository{db: db, table: defaultBursaryTable, awardTable: defaultAwardTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// BursaryRepositoryOption configures the repository.
type BursaryRepositoryOption func(*BursaryRepository)

// WithBursaryTable overrides the default bursary table.
func WithBursaryTable(table string) BursaryRepositoryOption {
	return func(repo *BursaryRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithAwardTable overrides the default award table.
func WithAwardTable(table string) BursaryRepositoryOption {
	return func(repo *BursaryRepository) {
		if table != "" {
			repo.awardTable = table
		}
	}
}

const bursaryColumns = `
	id, school_id, name, bursary_type, coverage_type,
	coverage_value, max_coverage_amount, eligible_grades,
	max_recipients, current_recipients, created_at, updated_at`

// Get loads a bursary by id.
func (r *BursaryRepository) Get(ctx context.Context, id string) (*catalog.Bursary, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bursary repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, bursaryColumns, r.table)

	var bursary catalog.Bursary
	var grades []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&bursary.ID, &bursary.SchoolID, &bursary.Name, &bursary.BursaryType, &bursary.CoverageType,
		&bursary.CoverageValue, &bursary.MaxCoverageAmount, &grades,
		&bursary.MaxRecipients, &bursary.CurrentRecipients, &bursary.CreatedAt, &bursary.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	bursary.EligibleGrades, err = decodeGrades(grades)
	if err != nil {
		return nil, err
	}
	return &bursary, nil
}

// Save upserts a bursary.
func (r *BursaryRepository) Save(ctx context.Context, bursary *catalog.Bursary) error {
	if r == nil || r.db == nil {
		return errors.New("bursary repo: nil db")
	}
	if bursary == nil {
		return catalog.ErrNilBursary
	}
	if err := bursary.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	bursary_type = EXCLUDED.bursary_type,
	coverage_type = EXCLUDED.coverage_type,
	coverage_value = EXCLUDED.coverage_value,
	max_coverage_amount = EXCLUDED.max_coverage_amount,
	eligible_grades = EXCLUDED.eligible_grades,
	max_recipients = EXCLUDED.max_recipients,
	updated_at = EXCLUDED.updated_at`, r.table, bursaryColumns)

	_, err := r.db.ExecContext(ctx, query,
		bursary.ID, bursary.SchoolID, bursary.Name, bursary.BursaryType, bursary.CoverageType,
		bursary.CoverageValue, bursary.MaxCoverageAmount, encodeGrades(bursary.EligibleGrades),
		bursary.MaxRecipients, bursary.CurrentRecipients, bursary.CreatedAt.UTC(), bursary.UpdatedAt.UTC(),
	)
	return err
}

// TryAward inserts an award row and bumps the recipient counter in one
// transaction. Re-awarding the same (bursary, student, year) is a
// no-op, and the counter bump is rejected at capacity.
func (r *BursaryRepository) TryAward(ctx context.Context, bursaryID, studentID, academicYear string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("bursary repo: nil db")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	insert := fmt.Sprintf(`
INSERT INTO %s (bursary_id, student_id, academic_year, awarded_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (bursary_id, student_id, academic_year) DO NOTHING`, r.awardTable)
	result, err := tx.ExecContext(ctx, insert, bursaryID, studentID, academicYear)
	if err != nil {
		return false, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		return false, tx.Commit()
	}

	bump := fmt.Sprintf(`
UPDATE %s SET current_recipients = current_recipients + 1, updated_at = NOW()
WHERE id = $1 AND (max_recipients = 0 OR current_recipients < max_recipients)`, r.table)
	result, err = tx.ExecContext(ctx, bump, bursaryID)
	if err != nil {
		return false, err
	}
	bumped, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if bumped == 0 {
		return false, catalog.ErrBursaryExhausted
	}
	return true, tx.Commit()
}

// encodeGrades stores eligible grades as a comma separated list.
func encodeGrades(grades []int) string {
	parts := make([]string, len(grades))
	for i, grade := range grades {
		parts[i] = strconv.Itoa(grade)
	}
	return strings.Join(parts, ",")
}

func decodeGrades(raw []byte) ([]int, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	parts := strings.Split(string(raw), ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		grade, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bursary repo: bad grade list: %w", err)
		}
		out = append(out, grade)
	}
	return out, nil
}
