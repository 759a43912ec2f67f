package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

// FeePaymentRepository handles the append-only fee payment ledger. Record
// locks the voucher row so two concurrent payments cannot both pass the
// overpayment check.
type FeePaymentRepository struct {
	db *sqlx.DB
}

// NewFeePaymentRepository constructs the repository.
func NewFeePaymentRepository(db *sqlx.DB) *FeePaymentRepository {
	return &FeePaymentRepository{db: db}
}

// Record appends a payment to the voucher's ledger. The voucher row is locked
// with FOR UPDATE before the due amount is recomputed, so the sum of payments
// can never exceed the voucher total. Returns sql.ErrNoRows when the voucher
// does not exist and ErrExceedsDue when the amount would overpay.
func (r *FeePaymentRepository) Record(ctx context.Context, payment *models.FeePayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = time.Now().UTC()
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = payment.CreatedAt
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record payment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var locked string
	if err := tx.GetContext(ctx, &locked,
		`SELECT id FROM fee_vouchers WHERE id = $1 FOR UPDATE`, payment.VoucherID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock voucher: %w", err)
	}

	var due float64
	const dueQuery = `SELECT COALESCE((SELECT SUM(amount) FROM fee_voucher_items WHERE voucher_id = $1), 0)
              - COALESCE((SELECT SUM(amount) FROM fee_payments WHERE voucher_id = $1), 0)`
	if err := tx.GetContext(ctx, &due, dueQuery, payment.VoucherID); err != nil {
		return fmt.Errorf("compute due amount: %w", err)
	}
	if payment.Amount > due {
		return appErrors.Clone(appErrors.ErrExceedsDue,
			fmt.Sprintf("payment amount %.2f exceeds due amount %.2f", payment.Amount, due))
	}

	const insert = `INSERT INTO fee_payments (id, voucher_id, amount, payment_date, created_at)
        VALUES (:id, :voucher_id, :amount, :payment_date, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, payment); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}

	return tx.Commit()
}

// FindByID returns a single payment or sql.ErrNoRows.
func (r *FeePaymentRepository) FindByID(ctx context.Context, id string) (*models.FeePayment, error) {
	const query = `SELECT id, voucher_id, amount, payment_date, created_at FROM fee_payments WHERE id = $1`
	var payment models.FeePayment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Delete removes a payment row. The ledger is append-only in normal flow;
// this exists for admin corrections only. Returns sql.ErrNoRows when the
// payment does not exist.
func (r *FeePaymentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM fee_payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByVoucher returns a voucher's payments in ledger order.
func (r *FeePaymentRepository) ListByVoucher(ctx context.Context, voucherID string) ([]models.FeePayment, error) {
	const query = `SELECT id, voucher_id, amount, payment_date, created_at
        FROM fee_payments WHERE voucher_id = $1 ORDER BY payment_date, created_at`
	var payments []models.FeePayment
	if err := r.db.SelectContext(ctx, &payments, query, voucherID); err != nil {
		return nil, fmt.Errorf("list voucher payments: %w", err)
	}
	return payments, nil
}

// List returns payments across vouchers filtered by the provided criteria.
func (r *FeePaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.FeePayment, int, error) {
	var conditions []string
	var args []interface{}

	joins := `FROM fee_payments p
        JOIN fee_vouchers v ON v.id = p.voucher_id
        JOIN student_class_history e ON e.id = v.enrollment_id`

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.FromDate != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date >= $%d", len(args)+1))
		args = append(args, *filter.FromDate)
	}
	if filter.ToDate != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date <= $%d", len(args)+1))
		args = append(args, *filter.ToDate)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.voucher_id, p.amount, p.payment_date, p.created_at
        %s%s ORDER BY p.payment_date DESC, p.created_at DESC LIMIT %d OFFSET %d`, joins, clause, size, offset)

	var payments []models.FeePayment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", joins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}
