package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
)

// DiscountRepository handles per (student, class) fee concessions.
type DiscountRepository struct {
	db *sqlx.DB
}

// NewDiscountRepository constructs the repository.
func NewDiscountRepository(db *sqlx.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// List returns discounts with student and class context.
func (r *DiscountRepository) List(ctx context.Context, filter models.DiscountFilter) ([]models.DiscountDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("d.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("d.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
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

	query := fmt.Sprintf(`SELECT d.id, d.student_id, d.class_id, d.discount_type, d.discount_value,
            d.reason, d.applied_by, d.created_at,
            s.name AS student_name, s.roll_no AS student_roll, c.name AS class_name
        FROM student_discounts d
        JOIN students s ON s.id = d.student_id
        JOIN classes c ON c.id = d.class_id%s
        ORDER BY s.name LIMIT %d OFFSET %d`, clause, size, offset)

	var discounts []models.DiscountDetail
	if err := r.db.SelectContext(ctx, &discounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list discounts: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM student_discounts d" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count discounts: %w", err)
	}
	return discounts, total, nil
}

// FindForStudentClass returns the discount for a (student, class) pair, or
// sql.ErrNoRows.
func (r *DiscountRepository) FindForStudentClass(ctx context.Context, studentID, classID string) (*models.Discount, error) {
	const query = `SELECT id, student_id, class_id, discount_type, discount_value, reason, applied_by, created_at
        FROM student_discounts WHERE student_id = $1 AND class_id = $2`
	var discount models.Discount
	if err := r.db.GetContext(ctx, &discount, query, studentID, classID); err != nil {
		return nil, err
	}
	return &discount, nil
}

// Upsert inserts or replaces the discount for the (student, class) pair.
// Setting a discount twice overwrites, it never stacks.
func (r *DiscountRepository) Upsert(ctx context.Context, discount *models.Discount) error {
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	discount.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO student_discounts (id, student_id, class_id, discount_type, discount_value, reason, applied_by, created_at)
        VALUES (:id, :student_id, :class_id, :discount_type, :discount_value, :reason, :applied_by, :created_at)
        ON CONFLICT (student_id, class_id) DO UPDATE SET
            discount_type = EXCLUDED.discount_type,
            discount_value = EXCLUDED.discount_value,
            reason = EXCLUDED.reason,
            applied_by = EXCLUDED.applied_by,
            created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, discount); err != nil {
		return fmt.Errorf("upsert discount: %w", err)
	}
	return nil
}

// Delete removes a discount by id, reporting whether a row was removed.
// Already generated vouchers keep their DISCOUNT items.
func (r *DiscountRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM student_discounts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete discount: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete discount result: %w", err)
	}
	return rows > 0, nil
}
