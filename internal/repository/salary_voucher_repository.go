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

// SalaryVoucherRepository handles salary vouchers, adjustments and the salary
// payment ledger. The (faculty_id, month) unique constraint makes generation
// idempotent under concurrency; net salary is derived from the base_salary
// snapshot plus adjustments, never stored.
type SalaryVoucherRepository struct {
	db *sqlx.DB
}

// NewSalaryVoucherRepository constructs the repository.
func NewSalaryVoucherRepository(db *sqlx.DB) *SalaryVoucherRepository {
	return &SalaryVoucherRepository{db: db}
}

// netSalaryExpr derives net salary in SQL. PERCENTAGE adjustments apply
// against the voucher's base_salary snapshot, never cumulatively.
const netSalaryExpr = `v.base_salary + COALESCE(SUM(
        CASE WHEN a.type = 'BONUS' THEN 1 ELSE -1 END *
        CASE WHEN a.calc_type = 'PERCENTAGE' THEN v.base_salary * a.amount / 100 ELSE a.amount END), 0)`

// Create inserts the voucher header and any initial adjustments in one
// transaction. A duplicate (faculty_id, month) yields ErrVoucherExists.
func (r *SalaryVoucherRepository) Create(ctx context.Context, voucher *models.SalaryVoucher, adjustments []models.SalaryAdjustment) error {
	if voucher.ID == "" {
		voucher.ID = uuid.NewString()
	}
	voucher.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create salary voucher: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertVoucher = `INSERT INTO salary_vouchers (id, faculty_id, month, base_salary, created_at)
        VALUES (:id, :faculty_id, :month, :base_salary, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertVoucher, voucher); err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrVoucherExists
		}
		return fmt.Errorf("create salary voucher: %w", err)
	}

	const insertAdjustment = `INSERT INTO salary_adjustments (id, voucher_id, type, amount, calc_type, created_at)
        VALUES (:id, :voucher_id, :type, :amount, :calc_type, :created_at)`
	for idx := range adjustments {
		adjustments[idx].VoucherID = voucher.ID
		if adjustments[idx].ID == "" {
			adjustments[idx].ID = uuid.NewString()
		}
		adjustments[idx].CreatedAt = voucher.CreatedAt
		if _, err := tx.NamedExecContext(ctx, insertAdjustment, adjustments[idx]); err != nil {
			return fmt.Errorf("create salary adjustment: %w", err)
		}
	}

	return tx.Commit()
}

// ExistsForMonth reports whether the faculty member already has a voucher for
// the month.
func (r *SalaryVoucherRepository) ExistsForMonth(ctx context.Context, facultyID string, month time.Time) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM salary_vouchers WHERE faculty_id = $1 AND month = $2`, facultyID, month); err != nil {
		return false, fmt.Errorf("check salary voucher exists: %w", err)
	}
	return count > 0, nil
}

// FindDetail returns the full voucher view with adjustments, payments and
// derived amounts, or sql.ErrNoRows.
func (r *SalaryVoucherRepository) FindDetail(ctx context.Context, id string) (*models.SalaryVoucherDetail, error) {
	query := fmt.Sprintf(`SELECT v.id, v.faculty_id, v.month, v.base_salary, v.created_at,
            f.name AS faculty_name, f.role AS faculty_role,
            %[1]s AS net_salary,
            COALESCE(p.paid, 0) AS paid_amount,
            %[1]s - COALESCE(p.paid, 0) AS due_amount
        FROM salary_vouchers v
        JOIN faculty f ON f.id = v.faculty_id
        LEFT JOIN salary_adjustments a ON a.voucher_id = v.id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS paid FROM salary_payments GROUP BY voucher_id) p ON p.voucher_id = v.id
        WHERE v.id = $1
        GROUP BY v.id, f.name, f.role, p.paid`, netSalaryExpr)

	var detail models.SalaryVoucherDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}

	const adjustmentsQuery = `SELECT id, voucher_id, type, amount, calc_type, created_at
        FROM salary_adjustments WHERE voucher_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &detail.Adjustments, adjustmentsQuery, id); err != nil {
		return nil, fmt.Errorf("list salary adjustments: %w", err)
	}

	const paymentsQuery = `SELECT id, voucher_id, amount, payment_date, created_at
        FROM salary_payments WHERE voucher_id = $1 ORDER BY payment_date, created_at`
	if err := r.db.SelectContext(ctx, &detail.Payments, paymentsQuery, id); err != nil {
		return nil, fmt.Errorf("list salary payments: %w", err)
	}

	return &detail, nil
}

// List returns salary voucher summaries filtered by the provided criteria.
func (r *SalaryVoucherRepository) List(ctx context.Context, filter models.SalaryVoucherFilter) ([]models.SalaryVoucherDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("v.faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
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

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	// Status is derived from aggregates, so it filters in HAVING.
	having := ""
	switch filter.Status {
	case models.VoucherPaid:
		having = fmt.Sprintf(" HAVING COALESCE(p.paid, 0) >= %s", netSalaryExpr)
	case models.VoucherPartial:
		having = fmt.Sprintf(" HAVING COALESCE(p.paid, 0) > 0 AND COALESCE(p.paid, 0) < %s", netSalaryExpr)
	case models.VoucherUnpaid:
		having = " HAVING COALESCE(p.paid, 0) = 0"
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

	query := fmt.Sprintf(`SELECT v.id, v.faculty_id, v.month, v.base_salary, v.created_at,
            f.name AS faculty_name, f.role AS faculty_role,
            %[1]s AS net_salary,
            COALESCE(p.paid, 0) AS paid_amount,
            %[1]s - COALESCE(p.paid, 0) AS due_amount
        FROM salary_vouchers v
        JOIN faculty f ON f.id = v.faculty_id
        LEFT JOIN salary_adjustments a ON a.voucher_id = v.id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS paid FROM salary_payments GROUP BY voucher_id) p ON p.voucher_id = v.id
        %[2]s
        GROUP BY v.id, f.name, f.role, p.paid%[3]s
        ORDER BY v.month DESC, f.name
        LIMIT %[4]d OFFSET %[5]d`, netSalaryExpr, clause, having, size, offset)

	var vouchers []models.SalaryVoucherDetail
	if err := r.db.SelectContext(ctx, &vouchers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list salary vouchers: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM salary_vouchers v" + clause
	if having != "" {
		countQuery = fmt.Sprintf(`SELECT COUNT(*) FROM (SELECT v.id
            FROM salary_vouchers v
            LEFT JOIN salary_adjustments a ON a.voucher_id = v.id
            LEFT JOIN (SELECT voucher_id, SUM(amount) AS paid FROM salary_payments GROUP BY voucher_id) p ON p.voucher_id = v.id
            %s GROUP BY v.id, p.paid%s) matched`, clause, having)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count salary vouchers: %w", err)
	}
	return vouchers, total, nil
}

// AddAdjustment appends a bonus or advance to an existing voucher. Blocked
// once payments exist so the net a payment was validated against cannot
// change underneath the ledger.
func (r *SalaryVoucherRepository) AddAdjustment(ctx context.Context, adjustment *models.SalaryAdjustment) error {
	if adjustment.ID == "" {
		adjustment.ID = uuid.NewString()
	}
	adjustment.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add adjustment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var locked string
	if err := tx.GetContext(ctx, &locked,
		`SELECT id FROM salary_vouchers WHERE id = $1 FOR UPDATE`, adjustment.VoucherID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock salary voucher: %w", err)
	}

	var payments int
	if err := tx.GetContext(ctx, &payments,
		`SELECT COUNT(*) FROM salary_payments WHERE voucher_id = $1`, adjustment.VoucherID); err != nil {
		return fmt.Errorf("count salary payments: %w", err)
	}
	if payments > 0 {
		return appErrors.ErrVoucherHasPayments
	}

	const insert = `INSERT INTO salary_adjustments (id, voucher_id, type, amount, calc_type, created_at)
        VALUES (:id, :voucher_id, :type, :amount, :calc_type, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, adjustment); err != nil {
		return fmt.Errorf("add salary adjustment: %w", err)
	}

	return tx.Commit()
}

// RecordPayment appends a payment to the voucher's ledger. The voucher row is
// locked before net and paid are recomputed, so payments can never exceed net
// salary. Returns sql.ErrNoRows for a missing voucher and ErrExceedsDue on
// overpayment.
func (r *SalaryVoucherRepository) RecordPayment(ctx context.Context, payment *models.SalaryPayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = time.Now().UTC()
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = payment.CreatedAt
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record salary payment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var locked string
	if err := tx.GetContext(ctx, &locked,
		`SELECT id FROM salary_vouchers WHERE id = $1 FOR UPDATE`, payment.VoucherID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock salary voucher: %w", err)
	}

	var due float64
	dueQuery := fmt.Sprintf(`SELECT %s - COALESCE((SELECT SUM(amount) FROM salary_payments WHERE voucher_id = v.id), 0)
        FROM salary_vouchers v
        LEFT JOIN salary_adjustments a ON a.voucher_id = v.id
        WHERE v.id = $1
        GROUP BY v.id`, netSalaryExpr)
	if err := tx.GetContext(ctx, &due, dueQuery, payment.VoucherID); err != nil {
		return fmt.Errorf("compute salary due: %w", err)
	}
	if payment.Amount > due {
		return appErrors.Clone(appErrors.ErrExceedsDue,
			fmt.Sprintf("payment amount %.2f exceeds due amount %.2f", payment.Amount, due))
	}

	const insert = `INSERT INTO salary_payments (id, voucher_id, amount, payment_date, created_at)
        VALUES (:id, :voucher_id, :amount, :payment_date, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, payment); err != nil {
		return fmt.Errorf("record salary payment: %w", err)
	}

	return tx.Commit()
}

// Delete removes a voucher and its adjustments. Vouchers with recorded
// payments cannot be deleted.
func (r *SalaryVoucherRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete salary voucher: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM salary_vouchers WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock salary voucher: %w", err)
	}

	var payments int
	if err := tx.GetContext(ctx, &payments,
		`SELECT COUNT(*) FROM salary_payments WHERE voucher_id = $1`, id); err != nil {
		return fmt.Errorf("count salary payments: %w", err)
	}
	if payments > 0 {
		return appErrors.ErrVoucherHasPayments
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM salary_adjustments WHERE voucher_id = $1`, id); err != nil {
		return fmt.Errorf("delete salary adjustments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM salary_vouchers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete salary voucher: %w", err)
	}

	return tx.Commit()
}
