package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"schoolfees-cloud/internal/fees/domain"
)

const (
	defaultFeeTable     = "student_fees"
	defaultPaymentTable = "fee_payments"
)

// StudentFeeRepository is a Postgres implementation for student fees.
type StudentFeeRepository struct {
	db    *sql.DB
	table string
}

// NewStudentFeeRepository constructs a repository with defaults.
func NewStudentFeeRepository(db *sql.DB, opts ...FeeRepositoryOption) *StudentFeeRepository {
	repo := &StudentFeeRepository{db: db, table: defaultFeeTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// FeeRepositoryOption configures the repository.
type FeeRepositoryOption func(*StudentFeeRepository)

// WithFeeTable overrides the default table.
func WithFeeTable(table string) FeeRepositoryOption {
	return func(repo *StudentFeeRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const feeColumns = `
	id, school_id, student_id, grade_level, academic_year, structure_id,
	payment_frequency, base_tuition_amount, activity_fees_amount,
	material_fees_amount, other_fees_amount,
	payment_discount_percent, payment_discount_amount,
	sibling_order, sibling_discount_percent, sibling_discount_amount,
	bursary_id, bursary_amount,
	total_before_discounts, total_discounts, total_amount_due,
	total_paid, balance_due, status,
	due_date, waive_reason, waived_at,
	created_at, updated_at, version`

// Get loads a fee snapshot.
func (r *StudentFeeRepository) Get(ctx context.Context, id fees.FeeID) (*fees.StudentFee, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("fee repo: nil db")
	}
	if id == "" {
		return nil, fees.ErrFeeNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, feeColumns, r.table)
	fee, err := scanFee(r.db.QueryRowContext(ctx, query, string(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return fee, nil
}

// ListBySchool returns fee snapshots for a school and academic year.
func (r *StudentFeeRepository) ListBySchool(ctx context.Context, schoolID, academicYear string) ([]*fees.StudentFee, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("fee repo: nil db")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE school_id = $1 AND academic_year = $2 ORDER BY id`, feeColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, schoolID, academicYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*fees.StudentFee, 0)
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fee)
	}
	return out, rows.Err()
}

// Save upserts the fee snapshot guarded by the stored version. A stale
// incoming version is rejected with ErrConcurrentModification.
func (r *StudentFeeRepository) Save(ctx context.Context, fee *fees.StudentFee) error {
	if r == nil || r.db == nil {
		return errors.New("fee repo: nil db")
	}
	if fee == nil {
		return fees.ErrNilFee
	}
	if fee.ID == "" {
		return fees.ErrFeeNotFound
	}

	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
	$21,$22,$23,$24,$25,$26,$27,$28,$29,$30 + 1
)
ON CONFLICT (id) DO UPDATE SET
	structure_id = EXCLUDED.structure_id,
	payment_frequency = EXCLUDED.payment_frequency,
	base_tuition_amount = EXCLUDED.base_tuition_amount,
	activity_fees_amount = EXCLUDED.activity_fees_amount,
	material_fees_amount = EXCLUDED.material_fees_amount,
	other_fees_amount = EXCLUDED.other_fees_amount,
	payment_discount_percent = EXCLUDED.payment_discount_percent,
	payment_discount_amount = EXCLUDED.payment_discount_amount,
	sibling_order = EXCLUDED.sibling_order,
	sibling_discount_percent = EXCLUDED.sibling_discount_percent,
	sibling_discount_amount = EXCLUDED.sibling_discount_amount,
	bursary_id = EXCLUDED.bursary_id,
	bursary_amount = EXCLUDED.bursary_amount,
	total_before_discounts = EXCLUDED.total_before_discounts,
	total_discounts = EXCLUDED.total_discounts,
	total_amount_due = EXCLUDED.total_amount_due,
	total_paid = EXCLUDED.total_paid,
	balance_due = EXCLUDED.balance_due,
	status = EXCLUDED.status,
	due_date = EXCLUDED.due_date,
	waive_reason = EXCLUDED.waive_reason,
	waived_at = EXCLUDED.waived_at,
	updated_at = EXCLUDED.updated_at,
	version = %s.version + 1
WHERE %s.version = $30`, r.table, feeColumns, r.table, r.table)

	var waivedAt sql.NullTime
	if !fee.WaivedAt.IsZero() {
		waivedAt = sql.NullTime{Time: fee.WaivedAt.UTC(), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		string(fee.ID), fee.SchoolID, fee.StudentID, fee.GradeLevel, fee.AcademicYear, fee.StructureID,
		string(fee.Frequency), fee.BaseTuitionAmount, fee.ActivityFeesAmount,
		fee.MaterialFeesAmount, fee.OtherFeesAmount,
		fee.PaymentDiscountPercent, fee.PaymentDiscountAmount,
		fee.SiblingOrder, fee.SiblingDiscountPercent, fee.SiblingDiscountAmount,
		fee.BursaryID, fee.BursaryAmount,
		fee.TotalBeforeDiscounts, fee.TotalDiscounts, fee.TotalAmountDue,
		fee.TotalPaid, fee.BalanceDue, fee.Status,
		fee.DueDate.UTC(), fee.WaiveReason, waivedAt,
		fee.CreatedAt.UTC(), fee.UpdatedAt.UTC(), fee.Version,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fees.ErrConcurrentModification
	}
	fee.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFee(row rowScanner) (*fees.StudentFee, error) {
	var fee fees.StudentFee
	var id, frequency string
	var bursaryID sql.NullString
	var waiveReason sql.NullString
	var waivedAt sql.NullTime
	err := row.Scan(
		&id, &fee.SchoolID, &fee.StudentID, &fee.GradeLevel, &fee.AcademicYear, &fee.StructureID,
		&frequency, &fee.BaseTuitionAmount, &fee.ActivityFeesAmount,
		&fee.MaterialFeesAmount, &fee.OtherFeesAmount,
		&fee.PaymentDiscountPercent, &fee.PaymentDiscountAmount,
		&fee.SiblingOrder, &fee.SiblingDiscountPercent, &fee.SiblingDiscountAmount,
		&bursaryID, &fee.BursaryAmount,
		&fee.TotalBeforeDiscounts, &fee.TotalDiscounts, &fee.TotalAmountDue,
		&fee.TotalPaid, &fee.BalanceDue, &fee.Status,
		&fee.DueDate, &waiveReason, &waivedAt,
		&fee.CreatedAt, &fee.UpdatedAt, &fee.Version,
	)
	if err != nil {
		return nil, err
	}
	fee.ID = fees.FeeID(id)
	fee.Frequency = fees.PaymentFrequency(frequency)
	fee.BursaryID = bursaryID.String
	fee.WaiveReason = waiveReason.String
	if waivedAt.Valid {
		fee.WaivedAt = waivedAt.Time
	}
	return &fee, nil
}

// PaymentRepository is a Postgres implementation of the payment ledger.
type PaymentRepository struct {
	db    *sql.DB
	table string
}

// NewPaymentRepository constructs a repository with defaults.
func NewPaymentRepository(db *sql.DB, opts ...PaymentRepositoryOption) *PaymentRepository {
	repo := &PaymentRepository{db: db, table: defaultPaymentTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// PaymentRepositoryOption configures the repository.
type PaymentRepositoryOption func(*PaymentRepository)

// WithPaymentTable overrides the default table.
func WithPaymentTable(table string) PaymentRepositoryOption {
	return func(repo *PaymentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const paymentColumns = `
	id, fee_id, amount, payment_date, payment_method, receipt_number,
	status, refund_reason, refunded_at, created_at`

// Get loads a payment.
func (r *PaymentRepository) Get(ctx context.Context, id uuid.UUID) (*fees.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, paymentColumns, r.table)
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payment, nil
}

// ListByFee returns payments for a fee ordered by creation time.
func (r *PaymentRepository) ListByFee(ctx context.Context, feeID fees.FeeID) ([]fees.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE fee_id = $1 ORDER BY created_at, id`, paymentColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, string(feeID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]fees.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *payment)
	}
	return out, rows.Err()
}

// FindByReceipt looks up a payment by receipt number.
func (r *PaymentRepository) FindByReceipt(ctx context.Context, receipt string) (*fees.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE receipt_number = $1 LIMIT 1`, paymentColumns, r.table)
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, receipt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payment, nil
}

func scanPayment(row rowScanner) (*fees.Payment, error) {
	var payment fees.Payment
	var id, feeID string
	var refundReason sql.NullString
	var refundedAt sql.NullTime
	err := row.Scan(
		&id, &feeID, &payment.Amount, &payment.PaymentDate, &payment.PaymentMethod,
		&payment.ReceiptNumber, &payment.Status, &refundReason, &refundedAt,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	payment.ID = parsed
	payment.FeeID = fees.FeeID(feeID)
	payment.RefundReason = refundReason.String
	if refundedAt.Valid {
		payment.RefundedAt = refundedAt.Time
	}
	return &payment, nil
}

// Save upserts a payment. The receipt_number column carries a unique
// constraint spanning all fees.
func (r *PaymentRepository) Save(ctx context.Context, payment *fees.Payment) error {
	if r == nil || r.db == nil {
		return errors.New("payment repo: nil db")
	}
	if payment == nil {
		return fees.ErrPaymentNotFound
	}

	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	refund_reason = EXCLUDED.refund_reason,
	refunded_at = EXCLUDED.refunded_at`, r.table, paymentColumns)

	var refundedAt sql.NullTime
	if !payment.RefundedAt.IsZero() {
		refundedAt = sql.NullTime{Time: payment.RefundedAt.UTC(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		payment.ID.String(), string(payment.FeeID), payment.Amount,
		payment.PaymentDate.UTC(), payment.PaymentMethod, payment.ReceiptNumber,
		payment.Status, payment.RefundReason, refundedAt, payment.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fees.ErrDuplicateReceipt
		}
		return err
	}
	return nil
}

// isUniqueViolation reports whether err is a 23505 unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
