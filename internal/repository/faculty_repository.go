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

// FacultyRepository handles faculty members and their effective-dated salary
// structure versions.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository constructs the repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// List returns faculty filtered by the provided criteria.
func (r *FacultyRepository) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR cnic ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
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

	query := fmt.Sprintf(`SELECT id, name, cnic, phone, role, joining_date, active, created_at, updated_at
        FROM faculty%s ORDER BY name LIMIT %d OFFSET %d`, clause, size, offset)

	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list faculty: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM faculty"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count faculty: %w", err)
	}
	return faculty, total, nil
}

// ListActive returns all active faculty. Used by bulk salary generation.
func (r *FacultyRepository) ListActive(ctx context.Context) ([]models.Faculty, error) {
	const query = `SELECT id, name, cnic, phone, role, joining_date, active, created_at, updated_at
        FROM faculty WHERE active = true ORDER BY name`
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query); err != nil {
		return nil, fmt.Errorf("list active faculty: %w", err)
	}
	return faculty, nil
}

// FindByID returns a faculty member, or sql.ErrNoRows.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	const query = `SELECT id, name, cnic, phone, role, joining_date, active, created_at, updated_at
        FROM faculty WHERE id = $1`
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, id); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// Create persists a new faculty member, optionally seeding the first salary
// structure version in the same transaction.
func (r *FacultyRepository) Create(ctx context.Context, faculty *models.Faculty, salary *models.SalaryStructureVersion) error {
	if faculty.ID == "" {
		faculty.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	faculty.CreatedAt = now
	faculty.UpdatedAt = now
	faculty.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create faculty: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertFaculty = `INSERT INTO faculty (id, name, cnic, phone, role, joining_date, active, created_at, updated_at)
        VALUES (:id, :name, :cnic, :phone, :role, :joining_date, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertFaculty, faculty); err != nil {
		return fmt.Errorf("create faculty: %w", translateUniqueViolation(err, "faculty with this CNIC already exists"))
	}

	if salary != nil {
		salary.FacultyID = faculty.ID
		if salary.ID == "" {
			salary.ID = uuid.NewString()
		}
		if salary.EffectiveFrom.IsZero() {
			salary.EffectiveFrom = now
		}
		salary.CreatedAt = now
		const insertSalary = `INSERT INTO salary_structure (id, faculty_id, effective_from, base_salary, created_at)
            VALUES (:id, :faculty_id, :effective_from, :base_salary, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insertSalary, salary); err != nil {
			return fmt.Errorf("create initial salary structure: %w", err)
		}
	}

	return tx.Commit()
}

// Update applies changes to a faculty row.
func (r *FacultyRepository) Update(ctx context.Context, faculty *models.Faculty) error {
	faculty.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faculty SET name = :name, cnic = :cnic, phone = :phone, role = :role,
        joining_date = :joining_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, faculty); err != nil {
		return fmt.Errorf("update faculty: %w", translateUniqueViolation(err, "faculty with this CNIC already exists"))
	}
	return nil
}

// SetActive flips the active flag. Inactive faculty are skipped by bulk
// salary generation.
func (r *FacultyRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE faculty SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("update faculty status: %w", err)
	}
	return nil
}

// ListSalaryStructures returns a faculty member's salary versions, newest
// first.
func (r *FacultyRepository) ListSalaryStructures(ctx context.Context, facultyID string) ([]models.SalaryStructureVersion, error) {
	const query = `SELECT id, faculty_id, effective_from, base_salary, created_at
        FROM salary_structure WHERE faculty_id = $1 ORDER BY effective_from DESC`
	var versions []models.SalaryStructureVersion
	if err := r.db.SelectContext(ctx, &versions, query, facultyID); err != nil {
		return nil, fmt.Errorf("list salary structures: %w", err)
	}
	return versions, nil
}

// SalaryStructureFor returns the salary version in force for the given month,
// or sql.ErrNoRows when no version applies yet.
func (r *FacultyRepository) SalaryStructureFor(ctx context.Context, facultyID string, month time.Time) (*models.SalaryStructureVersion, error) {
	const query = `SELECT id, faculty_id, effective_from, base_salary, created_at
        FROM salary_structure
        WHERE faculty_id = $1 AND effective_from <= $2
        ORDER BY effective_from DESC
        LIMIT 1`
	var version models.SalaryStructureVersion
	if err := r.db.GetContext(ctx, &version, query, facultyID, month); err != nil {
		return nil, err
	}
	return &version, nil
}

// AddSalaryStructure appends a new salary version. Existing versions and the
// base_salary snapshots on generated vouchers are never touched.
func (r *FacultyRepository) AddSalaryStructure(ctx context.Context, version *models.SalaryStructureVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	version.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO salary_structure (id, faculty_id, effective_from, base_salary, created_at)
        VALUES (:id, :faculty_id, :effective_from, :base_salary, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("add salary structure: %w", translateUniqueViolation(err, "salary structure for this effective date already exists"))
	}
	return nil
}
