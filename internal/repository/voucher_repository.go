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

// VoucherRepository handles fee voucher headers and items. Idempotency of
// generation rests on the (enrollment_id, month) unique constraint; this
// repository maps that violation to a typed conflict so concurrent duplicate
// generations lose cleanly.
type VoucherRepository struct {
	db *sqlx.DB
}

// NewVoucherRepository constructs the repository.
func NewVoucherRepository(db *sqlx.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

const voucherSummaryColumns = `v.id AS voucher_id, v.month, v.due_date, v.created_at,
        s.id AS student_id, s.name AS student_name, s.roll_no,
        c.id AS class_id, c.name AS class_name,
        sec.id AS section_id, sec.name AS section_name,
        COALESCE(i.total, 0) AS total_fee,
        COALESCE(p.paid, 0) AS paid_amount,
        COALESCE(i.total, 0) - COALESCE(p.paid, 0) AS due_amount`

const voucherSummaryJoins = `FROM fee_vouchers v
        JOIN student_class_history e ON e.id = v.enrollment_id
        JOIN students s ON s.id = e.student_id
        JOIN classes c ON c.id = e.class_id
        JOIN sections sec ON sec.id = e.section_id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS total FROM fee_voucher_items GROUP BY voucher_id) i ON i.voucher_id = v.id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS paid FROM fee_payments GROUP BY voucher_id) p ON p.voucher_id = v.id`

// CreateWithItems inserts the voucher header and all of its items in one
// transaction. A duplicate (enrollment_id, month) yields ErrVoucherExists.
func (r *VoucherRepository) CreateWithItems(ctx context.Context, voucher *models.FeeVoucher, items []models.FeeVoucherItem) error {
	if voucher.ID == "" {
		voucher.ID = uuid.NewString()
	}
	voucher.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create voucher: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertVoucher = `INSERT INTO fee_vouchers (id, enrollment_id, month, due_date, created_at)
        VALUES (:id, :enrollment_id, :month, :due_date, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertVoucher, voucher); err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrVoucherExists
		}
		return fmt.Errorf("create voucher: %w", err)
	}

	const insertItem = `INSERT INTO fee_voucher_items (id, voucher_id, item_type, amount)
        VALUES (:id, :voucher_id, :item_type, :amount)`
	for idx := range items {
		items[idx].VoucherID = voucher.ID
		if items[idx].ID == "" {
			items[idx].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx, insertItem, items[idx]); err != nil {
			return fmt.Errorf("create voucher item: %w", err)
		}
	}

	return tx.Commit()
}

// ExistsForMonth reports whether the enrollment already has a voucher for the
// month. A cheap pre-check; the unique constraint is the real guard.
func (r *VoucherRepository) ExistsForMonth(ctx context.Context, enrollmentID string, month time.Time) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM fee_vouchers WHERE enrollment_id = $1 AND month = $2`, enrollmentID, month); err != nil {
		return false, fmt.Errorf("check voucher exists: %w", err)
	}
	return count > 0, nil
}

// CountForEnrollment returns how many vouchers the enrollment has. Zero means
// the next voucher is the enrollment's first and carries the admission fee.
func (r *VoucherRepository) CountForEnrollment(ctx context.Context, enrollmentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM fee_vouchers WHERE enrollment_id = $1`, enrollmentID); err != nil {
		return 0, fmt.Errorf("count enrollment vouchers: %w", err)
	}
	return count, nil
}

// FindDetail returns the full voucher view with items and payments, or
// sql.ErrNoRows.
func (r *VoucherRepository) FindDetail(ctx context.Context, id string) (*models.VoucherDetail, error) {
	query := fmt.Sprintf("SELECT %s, v.enrollment_id %s WHERE v.id = $1", voucherSummaryColumns, voucherSummaryJoins)
	var detail models.VoucherDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}

	const itemsQuery = `SELECT id, voucher_id, item_type, amount FROM fee_voucher_items WHERE voucher_id = $1 ORDER BY item_type`
	if err := r.db.SelectContext(ctx, &detail.Items, itemsQuery, id); err != nil {
		return nil, fmt.Errorf("list voucher items: %w", err)
	}

	const paymentsQuery = `SELECT id, voucher_id, amount, payment_date, created_at
        FROM fee_payments WHERE voucher_id = $1 ORDER BY payment_date, created_at`
	if err := r.db.SelectContext(ctx, &detail.Payments, paymentsQuery, id); err != nil {
		return nil, fmt.Errorf("list voucher payments: %w", err)
	}

	return &detail, nil
}

// List returns voucher summaries filtered by the provided criteria. The
// status filter is evaluated in SQL against the derived totals so pagination
// stays correct.
func (r *VoucherRepository) List(ctx context.Context, filter models.VoucherFilter) ([]models.VoucherSummary, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("s.id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("c.id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("sec.id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Month != nil {
		conditions = append(conditions, fmt.Sprintf("v.month = $%d", len(args)+1))
		args = append(args, *filter.Month)
	}
	if filter.FromDate != nil {
		conditions = append(conditions, fmt.Sprintf("v.month >= $%d", len(args)+1))
		args = append(args, *filter.FromDate)
	}
	if filter.ToDate != nil {
		conditions = append(conditions, fmt.Sprintf("v.month <= $%d", len(args)+1))
		args = append(args, *filter.ToDate)
	}

	switch filter.Status {
	case models.VoucherPaid:
		conditions = append(conditions, "COALESCE(p.paid, 0) >= COALESCE(i.total, 0)")
	case models.VoucherPartial:
		conditions = append(conditions, "COALESCE(p.paid, 0) > 0 AND COALESCE(p.paid, 0) < COALESCE(i.total, 0)")
	case models.VoucherUnpaid:
		conditions = append(conditions, "COALESCE(p.paid, 0) = 0 AND COALESCE(i.total, 0) > 0")
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

	query := fmt.Sprintf("SELECT %s %s%s ORDER BY v.month DESC, s.name LIMIT %d OFFSET %d",
		voucherSummaryColumns, voucherSummaryJoins, clause, size, offset)

	var vouchers []models.VoucherSummary
	if err := r.db.SelectContext(ctx, &vouchers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list vouchers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", voucherSummaryJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count vouchers: %w", err)
	}
	return vouchers, total, nil
}

// ListByStudent returns all vouchers across a student's enrollment history,
// newest month first.
func (r *VoucherRepository) ListByStudent(ctx context.Context, studentID string) ([]models.VoucherSummary, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE s.id = $1 ORDER BY v.month DESC", voucherSummaryColumns, voucherSummaryJoins)
	var vouchers []models.VoucherSummary
	if err := r.db.SelectContext(ctx, &vouchers, query, studentID); err != nil {
		return nil, fmt.Errorf("list student vouchers: %w", err)
	}
	return vouchers, nil
}

// AppendItems adds items to an existing voucher. The voucher row is locked
// and the operation fails with ErrVoucherHasPayments once any payment exists,
// so a settled voucher can never be reopened by a late charge.
func (r *VoucherRepository) AppendItems(ctx context.Context, voucherID string, items []models.FeeVoucherItem) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append items: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM fee_vouchers WHERE id = $1 FOR UPDATE`, voucherID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock voucher: %w", err)
	}

	var payments int
	if err := tx.GetContext(ctx, &payments,
		`SELECT COUNT(*) FROM fee_payments WHERE voucher_id = $1`, voucherID); err != nil {
		return fmt.Errorf("count voucher payments: %w", err)
	}
	if payments > 0 {
		return appErrors.ErrVoucherHasPayments
	}

	const insertItem = `INSERT INTO fee_voucher_items (id, voucher_id, item_type, amount)
        VALUES (:id, :voucher_id, :item_type, :amount)`
	for idx := range items {
		items[idx].VoucherID = voucherID
		if items[idx].ID == "" {
			items[idx].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx, insertItem, items[idx]); err != nil {
			return fmt.Errorf("append voucher item: %w", err)
		}
	}

	return tx.Commit()
}

// Delete removes a voucher and its items. Vouchers with recorded payments
// cannot be deleted; the ledger is append-only.
func (r *VoucherRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete voucher: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM fee_vouchers WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock voucher: %w", err)
	}

	var payments int
	if err := tx.GetContext(ctx, &payments,
		`SELECT COUNT(*) FROM fee_payments WHERE voucher_id = $1`, id); err != nil {
		return fmt.Errorf("count voucher payments: %w", err)
	}
	if payments > 0 {
		return appErrors.ErrVoucherHasPayments
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fee_voucher_items WHERE voucher_id = $1`, id); err != nil {
		return fmt.Errorf("delete voucher items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fee_vouchers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete voucher: %w", err)
	}

	return tx.Commit()
}
