package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
)

// ReportRepository runs the aggregate queries behind financial reports. All
// rollups are derived from the voucher and payment tables on each read; no
// report state is stored.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Defaulters returns students with outstanding dues, grouped per student,
// optionally narrowed to one class. Rows are ordered by due amount, worst
// first.
func (r *ReportRepository) Defaulters(ctx context.Context, classID string) ([]models.Defaulter, error) {
	query := `SELECT s.id AS student_id, s.name AS student_name, s.roll_no, s.phone,
            c.id AS class_id, c.name AS class_name,
            sec.id AS section_id, sec.name AS section_name,
            COUNT(DISTINCT v.id) AS total_vouchers,
            COALESCE(SUM(i.total), 0) AS total_fee,
            COALESCE(SUM(p.paid), 0) AS paid_amount,
            COALESCE(SUM(i.total), 0) - COALESCE(SUM(p.paid), 0) AS due_amount
        FROM fee_vouchers v
        JOIN student_class_history e ON e.id = v.enrollment_id
        JOIN students s ON s.id = e.student_id
        JOIN classes c ON c.id = e.class_id
        JOIN sections sec ON sec.id = e.section_id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS total FROM fee_voucher_items GROUP BY voucher_id) i ON i.voucher_id = v.id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS paid FROM fee_payments GROUP BY voucher_id) p ON p.voucher_id = v.id
        WHERE e.end_date IS NULL`
	args := []interface{}{}
	if classID != "" {
		query += " AND c.id = $1"
		args = append(args, classID)
	}
	query += `
        GROUP BY s.id, s.name, s.roll_no, s.phone, c.id, c.name, sec.id, sec.name
        HAVING COALESCE(SUM(i.total), 0) - COALESCE(SUM(p.paid), 0) > 0
        ORDER BY due_amount DESC`

	var defaulters []models.Defaulter
	if err := r.db.SelectContext(ctx, &defaulters, query, args...); err != nil {
		return nil, fmt.Errorf("list defaulters: %w", err)
	}
	return defaulters, nil
}

// FeeStats returns the collection rollup for one month.
func (r *ReportRepository) FeeStats(ctx context.Context, month time.Time) (*models.FeeStats, error) {
	const query = `SELECT COUNT(DISTINCT v.id) AS voucher_count,
            COALESCE(SUM(i.total), 0) AS expected,
            COALESCE(SUM(p.paid), 0) AS collected,
            COALESCE(SUM(i.total), 0) - COALESCE(SUM(p.paid), 0) AS outstanding
        FROM fee_vouchers v
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS total FROM fee_voucher_items GROUP BY voucher_id) i ON i.voucher_id = v.id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS paid FROM fee_payments GROUP BY voucher_id) p ON p.voucher_id = v.id
        WHERE v.month = $1`
	var stats models.FeeStats
	if err := r.db.GetContext(ctx, &stats, query, month); err != nil {
		return nil, fmt.Errorf("fee stats: %w", err)
	}
	stats.Month = month
	return &stats, nil
}

// StudentDue returns the aggregate outstanding balance for one student across
// all enrollments.
func (r *ReportRepository) StudentDue(ctx context.Context, studentID string) (*models.StudentDue, error) {
	const query = `SELECT COALESCE(SUM(i.total), 0) AS total_fee,
            COALESCE(SUM(p.paid), 0) AS paid_amount,
            COALESCE(SUM(i.total), 0) - COALESCE(SUM(p.paid), 0) AS due_amount
        FROM fee_vouchers v
        JOIN student_class_history e ON e.id = v.enrollment_id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS total FROM fee_voucher_items GROUP BY voucher_id) i ON i.voucher_id = v.id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS paid FROM fee_payments GROUP BY voucher_id) p ON p.voucher_id = v.id
        WHERE e.student_id = $1`
	var due models.StudentDue
	if err := r.db.GetContext(ctx, &due, query, studentID); err != nil {
		return nil, fmt.Errorf("student due: %w", err)
	}
	due.StudentID = studentID
	return &due, nil
}

// SalaryStats returns the payroll rollup for one month.
func (r *ReportRepository) SalaryStats(ctx context.Context, month time.Time) (*models.SalaryStats, error) {
	const query = `SELECT COUNT(DISTINCT v.id) AS voucher_count,
            COALESCE(SUM(v.base_salary), 0) AS total_base,
            COALESCE(SUM(p.paid), 0) AS paid
        FROM salary_vouchers v
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS paid FROM salary_payments GROUP BY voucher_id) p ON p.voucher_id = v.id
        WHERE v.month = $1`
	var stats models.SalaryStats
	if err := r.db.GetContext(ctx, &stats, query, month); err != nil {
		return nil, fmt.Errorf("salary stats: %w", err)
	}
	stats.Month = month
	return &stats, nil
}

// ClassCollection returns per-class fee collection rollups for one month.
func (r *ReportRepository) ClassCollection(ctx context.Context, month time.Time) ([]models.ClassCollection, error) {
	const query = `SELECT c.id AS class_id, c.name AS class_name,
            COUNT(DISTINCT v.id) AS vouchers,
            COALESCE(SUM(i.total), 0) AS expected,
            COALESCE(SUM(p.paid), 0) AS collected,
            COALESCE(SUM(i.total), 0) - COALESCE(SUM(p.paid), 0) AS outstanding
        FROM fee_vouchers v
        JOIN student_class_history e ON e.id = v.enrollment_id
        JOIN classes c ON c.id = e.class_id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS total FROM fee_voucher_items GROUP BY voucher_id) i ON i.voucher_id = v.id
        LEFT JOIN (SELECT voucher_id, SUM(amount) AS paid FROM fee_payments GROUP BY voucher_id) p ON p.voucher_id = v.id
        WHERE v.month = $1
        GROUP BY c.id, c.name
        ORDER BY c.name`
	var rows []models.ClassCollection
	if err := r.db.SelectContext(ctx, &rows, query, month); err != nil {
		return nil, fmt.Errorf("class collection: %w", err)
	}
	return rows, nil
}

type monthlyAmount struct {
	Month  time.Time `db:"month"`
	Amount float64   `db:"amount"`
}

// MonthlyFinance returns income-vs-expense rollups per month in the range.
// Fees and salaries are bucketed by payment date, expenses by expense date;
// the three series are merged in memory.
func (r *ReportRepository) MonthlyFinance(ctx context.Context, from, to time.Time) ([]models.MonthlyFinance, error) {
	const feesQuery = `SELECT date_trunc('month', payment_date) AS month, COALESCE(SUM(amount), 0) AS amount
        FROM fee_payments WHERE payment_date >= $1 AND payment_date < $2 GROUP BY 1`
	const salariesQuery = `SELECT date_trunc('month', payment_date) AS month, COALESCE(SUM(amount), 0) AS amount
        FROM salary_payments WHERE payment_date >= $1 AND payment_date < $2 GROUP BY 1`
	const expensesQuery = `SELECT date_trunc('month', expense_date) AS month, COALESCE(SUM(amount), 0) AS amount
        FROM expenses WHERE expense_date >= $1 AND expense_date < $2 GROUP BY 1`

	buckets := map[time.Time]*models.MonthlyFinance{}
	load := func(query string, apply func(row *models.MonthlyFinance, amount float64)) error {
		var rows []monthlyAmount
		if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
			return err
		}
		for _, row := range rows {
			key := row.Month.UTC()
			bucket, ok := buckets[key]
			if !ok {
				bucket = &models.MonthlyFinance{Month: key}
				buckets[key] = bucket
			}
			apply(bucket, row.Amount)
		}
		return nil
	}

	if err := load(feesQuery, func(row *models.MonthlyFinance, amount float64) { row.FeesCollected = amount }); err != nil {
		return nil, fmt.Errorf("monthly fees: %w", err)
	}
	if err := load(salariesQuery, func(row *models.MonthlyFinance, amount float64) { row.SalariesPaid = amount }); err != nil {
		return nil, fmt.Errorf("monthly salaries: %w", err)
	}
	if err := load(expensesQuery, func(row *models.MonthlyFinance, amount float64) { row.Expenses = amount }); err != nil {
		return nil, fmt.Errorf("monthly expenses: %w", err)
	}

	result := make([]models.MonthlyFinance, 0, len(buckets))
	for _, bucket := range buckets {
		bucket.Net = bucket.FeesCollected - bucket.SalariesPaid - bucket.Expenses
		result = append(result, *bucket)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month.Before(result[j].Month) })
	return result, nil
}
