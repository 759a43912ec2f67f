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

// GuardianRepository handles persistence of guardians.
type GuardianRepository struct {
	db *sqlx.DB
}

// NewGuardianRepository constructs the repository.
func NewGuardianRepository(db *sqlx.DB) *GuardianRepository {
	return &GuardianRepository{db: db}
}

// List returns guardians filtered by the provided criteria.
func (r *GuardianRepository) List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR cnic ILIKE $%d OR phone ILIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
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

	query := fmt.Sprintf(`SELECT id, name, cnic, phone, occupation, created_at, updated_at
        FROM guardians%s ORDER BY name LIMIT %d OFFSET %d`, clause, size, offset)

	var guardians []models.Guardian
	if err := r.db.SelectContext(ctx, &guardians, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list guardians: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM guardians"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count guardians: %w", err)
	}
	return guardians, total, nil
}

// FindByID returns a guardian, or sql.ErrNoRows.
func (r *GuardianRepository) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	const query = `SELECT id, name, cnic, phone, occupation, created_at, updated_at FROM guardians WHERE id = $1`
	var guardian models.Guardian
	if err := r.db.GetContext(ctx, &guardian, query, id); err != nil {
		return nil, err
	}
	return &guardian, nil
}

// FindByCNIC returns a guardian by national id number, or sql.ErrNoRows.
func (r *GuardianRepository) FindByCNIC(ctx context.Context, cnic string) (*models.Guardian, error) {
	const query = `SELECT id, name, cnic, phone, occupation, created_at, updated_at FROM guardians WHERE cnic = $1`
	var guardian models.Guardian
	if err := r.db.GetContext(ctx, &guardian, query, cnic); err != nil {
		return nil, err
	}
	return &guardian, nil
}

// Create persists a new guardian. CNIC is unique at the database level.
func (r *GuardianRepository) Create(ctx context.Context, guardian *models.Guardian) error {
	if guardian.ID == "" {
		guardian.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	guardian.CreatedAt = now
	guardian.UpdatedAt = now

	const query = `INSERT INTO guardians (id, name, cnic, phone, occupation, created_at, updated_at)
        VALUES (:id, :name, :cnic, :phone, :occupation, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, guardian); err != nil {
		return fmt.Errorf("create guardian: %w", translateUniqueViolation(err, "guardian with this CNIC already exists"))
	}
	return nil
}

// Update applies changes to a guardian row.
func (r *GuardianRepository) Update(ctx context.Context, guardian *models.Guardian) error {
	guardian.UpdatedAt = time.Now().UTC()
	const query = `UPDATE guardians SET name = :name, cnic = :cnic, phone = :phone, occupation = :occupation,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, guardian); err != nil {
		return fmt.Errorf("update guardian: %w", translateUniqueViolation(err, "guardian with this CNIC already exists"))
	}
	return nil
}

// Delete removes a guardian and its student links, reporting whether a row
// was removed.
func (r *GuardianRepository) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete guardian: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM student_guardians WHERE guardian_id = $1`, id); err != nil {
		return false, fmt.Errorf("delete guardian links: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM guardians WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete guardian: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete guardian result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete guardian: %w", err)
	}
	return rows > 0, nil
}

// ListStudents returns the students linked to a guardian.
func (r *GuardianRepository) ListStudents(ctx context.Context, guardianID string) ([]models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s
        JOIN student_guardians sg ON sg.student_id = s.id
        WHERE sg.guardian_id = $1
        ORDER BY s.name`, studentDetailColumns, studentDetailJoins)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, guardianID); err != nil {
		return nil, fmt.Errorf("list guardian students: %w", err)
	}
	return students, nil
}
