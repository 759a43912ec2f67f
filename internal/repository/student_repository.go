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

// StudentRepository handles persistence of students and their guardian links.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentDetailColumns = `s.id, s.name, s.roll_no, s.phone, s.address, s.date_of_birth,
        s.bay_form, s.caste, s.previous_school, s.expelled, s.active, s.created_at, s.updated_at,
        e.id AS enrollment_id, e.class_id AS current_class_id, c.name AS current_class_name,
        e.section_id AS current_section_id, sec.name AS current_section_name, e.start_date AS enrolled_since`

const studentDetailJoins = `FROM students s
        LEFT JOIN student_class_history e ON e.student_id = s.id AND e.end_date IS NULL
        LEFT JOIN classes c ON c.id = e.class_id
        LEFT JOIN sections sec ON sec.id = e.section_id`

// List returns students filtered by the provided criteria.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.name ILIKE $%d OR s.roll_no ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Expelled != nil {
		conditions = append(conditions, fmt.Sprintf("s.expelled = $%d", len(args)+1))
		args = append(args, *filter.Expelled)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "s.name",
		"roll_no":    "s.roll_no",
		"created_at": "s.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "s.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s%s ORDER BY %s %s LIMIT %d OFFSET %d",
		studentDetailColumns, studentDetailJoins, clause, orderBy, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", studentDetailJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student with current enrollment context.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE s.id = $1", studentDetailColumns, studentDetailJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsRollNo reports whether another student already uses the roll number.
func (r *StudentRepository) ExistsRollNo(ctx context.Context, rollNo, excludeID string) (bool, error) {
	query := "SELECT COUNT(*) FROM students WHERE roll_no = $1"
	args := []interface{}{rollNo}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check roll number: %w", err)
	}
	return count > 0, nil
}

// Create persists a new student, optionally opening an initial enrollment in
// the same transaction.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student, enrollment *models.Enrollment) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	student.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertStudent = `INSERT INTO students
        (id, name, roll_no, phone, address, date_of_birth, bay_form, caste, previous_school, expelled, active, created_at, updated_at)
        VALUES (:id, :name, :roll_no, :phone, :address, :date_of_birth, :bay_form, :caste, :previous_school, :expelled, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertStudent, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}

	if enrollment != nil {
		enrollment.StudentID = student.ID
		if enrollment.ID == "" {
			enrollment.ID = uuid.NewString()
		}
		if enrollment.StartDate.IsZero() {
			enrollment.StartDate = now
		}
		const insertEnrollment = `INSERT INTO student_class_history (id, student_id, class_id, section_id, start_date, created_at)
            VALUES (:id, :student_id, :class_id, :section_id, :start_date, :created_at)`
		enrollment.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, insertEnrollment, enrollment); err != nil {
			return fmt.Errorf("create initial enrollment: %w", err)
		}
	}

	return tx.Commit()
}

// Update applies the provided column updates to a student row.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, roll_no = :roll_no, phone = :phone, address = :address,
        date_of_birth = :date_of_birth, bay_form = :bay_form, caste = :caste, previous_school = :previous_school,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// SetActive flips the active flag.
func (r *StudentRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE students SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return nil
}

// Expel marks the student expelled and inactive, closing any open enrollment
// in the same transaction.
func (r *StudentRepository) Expel(ctx context.Context, id string, date time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin expel: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`UPDATE student_class_history SET end_date = $2 WHERE student_id = $1 AND end_date IS NULL`, id, date); err != nil {
		return fmt.Errorf("close enrollment on expel: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE students SET expelled = true, active = false, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("expel student: %w", err)
	}
	return tx.Commit()
}

// ClearExpulsion lifts the expelled flag; the student stays inactive until
// explicitly activated.
func (r *StudentRepository) ClearExpulsion(ctx context.Context, id string) error {
	const query = `UPDATE students SET expelled = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear expulsion: %w", err)
	}
	return nil
}

// ListGuardians returns the guardians linked to a student.
func (r *StudentRepository) ListGuardians(ctx context.Context, studentID string) ([]models.StudentGuardian, error) {
	const query = `SELECT g.id, g.name, g.cnic, g.phone, g.occupation, g.created_at, g.updated_at, sg.relation
        FROM student_guardians sg
        JOIN guardians g ON g.id = sg.guardian_id
        WHERE sg.student_id = $1
        ORDER BY g.name`
	var guardians []models.StudentGuardian
	if err := r.db.SelectContext(ctx, &guardians, query, studentID); err != nil {
		return nil, fmt.Errorf("list student guardians: %w", err)
	}
	return guardians, nil
}

// LinkGuardian attaches a guardian to a student with the given relation.
func (r *StudentRepository) LinkGuardian(ctx context.Context, studentID, guardianID, relation string) error {
	const query = `INSERT INTO student_guardians (student_id, guardian_id, relation)
        VALUES ($1, $2, $3)
        ON CONFLICT (student_id, guardian_id) DO UPDATE SET relation = EXCLUDED.relation`
	if _, err := r.db.ExecContext(ctx, query, studentID, guardianID, relation); err != nil {
		return fmt.Errorf("link guardian: %w", err)
	}
	return nil
}

// UnlinkGuardian removes a guardian link, reporting whether a row was removed.
func (r *StudentRepository) UnlinkGuardian(ctx context.Context, studentID, guardianID string) (bool, error) {
	const query = `DELETE FROM student_guardians WHERE student_id = $1 AND guardian_id = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, guardianID)
	if err != nil {
		return false, fmt.Errorf("unlink guardian: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlink guardian result: %w", err)
	}
	return rows > 0, nil
}
