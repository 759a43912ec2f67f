package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
)

// EnrollmentRepository handles the student class history table. The open row
// invariant (at most one row per student with end_date IS NULL) is enforced by
// a partial unique index, so concurrent enrolls cannot race past the checks
// here.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindOpenByStudent returns the student's open enrollment, or sql.ErrNoRows.
func (r *EnrollmentRepository) FindOpenByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, section_id, start_date, end_date, created_at
        FROM student_class_history
        WHERE student_id = $1 AND end_date IS NULL`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByID returns an enrollment row by its id, or sql.ErrNoRows.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, section_id, start_date, end_date, created_at
        FROM student_class_history WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// History returns a student's full class history, newest first.
func (r *EnrollmentRepository) History(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.class_id, e.section_id, e.start_date, e.end_date, e.created_at,
            s.name AS student_name, c.name AS class_name, sec.name AS section_name
        FROM student_class_history e
        JOIN students s ON s.id = e.student_id
        JOIN classes c ON c.id = e.class_id
        JOIN sections sec ON sec.id = e.section_id
        WHERE e.student_id = $1
        ORDER BY e.start_date DESC`
	var history []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &history, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollment history: %w", err)
	}
	return history, nil
}

// Open creates a new open enrollment for a student with no current one.
func (r *EnrollmentRepository) Open(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.StartDate.IsZero() {
		enrollment.StartDate = time.Now().UTC()
	}
	enrollment.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO student_class_history (id, student_id, class_id, section_id, start_date, created_at)
        VALUES (:id, :student_id, :class_id, :section_id, :start_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("open enrollment: %w", translateUniqueViolation(err, "student already has an open enrollment"))
	}
	return nil
}

// Close ends the student's open enrollment, reporting whether one existed.
func (r *EnrollmentRepository) Close(ctx context.Context, studentID string, endDate time.Time) (bool, error) {
	const query = `UPDATE student_class_history SET end_date = $2 WHERE student_id = $1 AND end_date IS NULL`
	res, err := r.db.ExecContext(ctx, query, studentID, endDate)
	if err != nil {
		return false, fmt.Errorf("close enrollment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close enrollment result: %w", err)
	}
	return rows > 0, nil
}

// Replace atomically closes the student's open enrollment and opens a new one
// in the target class and section. Used by both transfer and promote; when
// resetDiscount is set, the discount tied to the closed enrollment's class is
// removed in the same transaction.
func (r *EnrollmentRepository) Replace(ctx context.Context, studentID, classID, sectionID string, date time.Time, resetDiscount bool) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace enrollment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current models.Enrollment
	const lockQuery = `SELECT id, student_id, class_id, section_id, start_date, end_date, created_at
        FROM student_class_history
        WHERE student_id = $1 AND end_date IS NULL
        FOR UPDATE`
	if err := tx.GetContext(ctx, &current, lockQuery, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock open enrollment: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE student_class_history SET end_date = $2 WHERE id = $1`, current.ID, date); err != nil {
		return nil, fmt.Errorf("close enrollment: %w", err)
	}

	next := &models.Enrollment{
		ID:        uuid.NewString(),
		StudentID: studentID,
		ClassID:   classID,
		SectionID: sectionID,
		StartDate: date,
		CreatedAt: time.Now().UTC(),
	}
	const insertQuery = `INSERT INTO student_class_history (id, student_id, class_id, section_id, start_date, created_at)
        VALUES (:id, :student_id, :class_id, :section_id, :start_date, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, next); err != nil {
		return nil, fmt.Errorf("open replacement enrollment: %w", err)
	}

	if resetDiscount {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM student_discounts WHERE student_id = $1 AND class_id = $2`, studentID, current.ClassID); err != nil {
			return nil, fmt.Errorf("reset discount: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace enrollment: %w", err)
	}
	return next, nil
}

// Roster returns the open enrollments of active, non-expelled students in a
// class, optionally narrowed to one section. Used by bulk voucher generation.
func (r *EnrollmentRepository) Roster(ctx context.Context, classID, sectionID string) ([]models.EnrollmentRoster, error) {
	query := `SELECT e.id AS enrollment_id, s.id AS student_id, s.name AS student_name
        FROM student_class_history e
        JOIN students s ON s.id = e.student_id
        WHERE e.end_date IS NULL AND e.class_id = $1 AND s.active = true AND s.expelled = false`
	args := []interface{}{classID}
	if sectionID != "" {
		query += " AND e.section_id = $2"
		args = append(args, sectionID)
	}
	query += " ORDER BY s.name"

	var roster []models.EnrollmentRoster
	if err := r.db.SelectContext(ctx, &roster, query, args...); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return roster, nil
}

// HasVouchers reports whether any fee voucher references the enrollment.
func (r *EnrollmentRepository) HasVouchers(ctx context.Context, enrollmentID string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM fee_vouchers WHERE enrollment_id = $1`, enrollmentID); err != nil {
		return false, fmt.Errorf("count enrollment vouchers: %w", err)
	}
	return count > 0, nil
}
