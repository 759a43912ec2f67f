package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

// ClassRepository handles classes, their sections and the effective-dated fee
// structure versions.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes filtered by the provided criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.ClassType != "" {
		conditions = append(conditions, fmt.Sprintf("class_type = $%d", len(args)+1))
		args = append(args, filter.ClassType)
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
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, name, class_type, active, created_at, updated_at
        FROM classes%s ORDER BY name LIMIT %d OFFSET %d`, clause, size, offset)

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class, or sql.ErrNoRows.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, class_type, active, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create persists a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	class.Active = true

	const query = `INSERT INTO classes (id, name, class_type, active, created_at, updated_at)
        VALUES (:id, :name, :class_type, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", translateUniqueViolation(err, "class with this name already exists"))
	}
	return nil
}

// Update applies changes to a class row.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, class_type = :class_type, active = :active,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", translateUniqueViolation(err, "class with this name already exists"))
	}
	return nil
}

// HasOpenEnrollments reports whether any student is currently enrolled in the
// class. Classes with open enrollments are deactivated, never deleted.
func (r *ClassRepository) HasOpenEnrollments(ctx context.Context, classID string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM student_class_history WHERE class_id = $1 AND end_date IS NULL`, classID); err != nil {
		return false, fmt.Errorf("count open enrollments: %w", err)
	}
	return count > 0, nil
}

// ListSections returns the sections of a class.
func (r *ClassRepository) ListSections(ctx context.Context, classID string) ([]models.Section, error) {
	const query = `SELECT id, class_id, name, created_at FROM sections WHERE class_id = $1 ORDER BY name`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, classID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// FindSection returns a section, or sql.ErrNoRows.
func (r *ClassRepository) FindSection(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, class_id, name, created_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// CreateSection persists a new section. (class_id, name) is unique.
func (r *ClassRepository) CreateSection(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	section.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO sections (id, class_id, name, created_at) VALUES (:id, :class_id, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", translateUniqueViolation(err, "section with this name already exists in the class"))
	}
	return nil
}

// DeleteSection removes a section, reporting whether a row was removed.
// Fails with a conflict when enrollments still reference it.
func (r *ClassRepository) DeleteSection(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, appErrors.Clone(appErrors.ErrConflict, "section is referenced by enrollments")
		}
		return false, fmt.Errorf("delete section: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete section result: %w", err)
	}
	return rows > 0, nil
}

// ListFeeStructures returns a class's fee structure versions, newest first.
func (r *ClassRepository) ListFeeStructures(ctx context.Context, classID string) ([]models.FeeStructureVersion, error) {
	const query = `SELECT id, class_id, effective_from, admission_fee, monthly_fee, paper_fund, created_at
        FROM class_fee_structure WHERE class_id = $1 ORDER BY effective_from DESC`
	var versions []models.FeeStructureVersion
	if err := r.db.SelectContext(ctx, &versions, query, classID); err != nil {
		return nil, fmt.Errorf("list fee structures: %w", err)
	}
	return versions, nil
}

// FeeStructureFor returns the fee structure version in force for the given
// month: the latest effective_from on or before it. sql.ErrNoRows when no
// version applies yet.
func (r *ClassRepository) FeeStructureFor(ctx context.Context, classID string, month time.Time) (*models.FeeStructureVersion, error) {
	const query = `SELECT id, class_id, effective_from, admission_fee, monthly_fee, paper_fund, created_at
        FROM class_fee_structure
        WHERE class_id = $1 AND effective_from <= $2
        ORDER BY effective_from DESC
        LIMIT 1`
	var version models.FeeStructureVersion
	if err := r.db.GetContext(ctx, &version, query, classID, month); err != nil {
		return nil, err
	}
	return &version, nil
}

// AddFeeStructure appends a new fee structure version. Existing versions are
// never updated in place.
func (r *ClassRepository) AddFeeStructure(ctx context.Context, version *models.FeeStructureVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	version.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO class_fee_structure (id, class_id, effective_from, admission_fee, monthly_fee, paper_fund, created_at)
        VALUES (:id, :class_id, :effective_from, :admission_fee, :monthly_fee, :paper_fund, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("add fee structure: %w", translateUniqueViolation(err, "fee structure for this effective date already exists"))
	}
	return nil
}
