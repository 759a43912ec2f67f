package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

type facultyRepo interface {
	List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error)
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
	Create(ctx context.Context, faculty *models.Faculty, salary *models.SalaryStructureVersion) error
	Update(ctx context.Context, faculty *models.Faculty) error
	SetActive(ctx context.Context, id string, active bool) error
	ListSalaryStructures(ctx context.Context, facultyID string) ([]models.SalaryStructureVersion, error)
	AddSalaryStructure(ctx context.Context, version *models.SalaryStructureVersion) error
}

// CreateFacultyRequest registers a faculty member, optionally with an initial
// base salary.
type CreateFacultyRequest struct {
	Name        string     `json:"name" validate:"required"`
	CNIC        *string    `json:"cnic"`
	Phone       *string    `json:"phone"`
	Role        string     `json:"role" validate:"required"`
	JoiningDate *time.Time `json:"joining_date"`
	BaseSalary  *float64   `json:"base_salary" validate:"omitempty,gt=0"`
}

// UpdateFacultyRequest edits a faculty member's record.
type UpdateFacultyRequest struct {
	Name        string     `json:"name" validate:"required"`
	CNIC        *string    `json:"cnic"`
	Phone       *string    `json:"phone"`
	Role        string     `json:"role" validate:"required"`
	JoiningDate *time.Time `json:"joining_date"`
}

// SalaryStructureRequest appends a salary version for a faculty member.
type SalaryStructureRequest struct {
	EffectiveFrom time.Time `json:"-" validate:"required"`
	BaseSalary    float64   `json:"base_salary" validate:"required,gt=0"`
}

// FacultyService implements faculty records and salary structure versions.
type FacultyService struct {
	faculty  facultyRepo
	validate *validator.Validate
	logger   *zap.Logger
}

// NewFacultyService constructs the faculty service.
func NewFacultyService(faculty facultyRepo, validate *validator.Validate, logger *zap.Logger) *FacultyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacultyService{faculty: faculty, validate: validate, logger: logger}
}

// List returns faculty matching the filter.
func (s *FacultyService) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error) {
	return s.faculty.List(ctx, filter)
}

// Get returns a faculty member.
func (s *FacultyService) Get(ctx context.Context, id string) (*models.Faculty, error) {
	faculty, err := s.faculty.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, err
	}
	return faculty, nil
}

// Create registers a faculty member. When base_salary is given the first
// salary structure version is seeded in the same transaction.
func (s *FacultyService) Create(ctx context.Context, req CreateFacultyRequest) (*models.Faculty, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	faculty := &models.Faculty{
		Name:        req.Name,
		CNIC:        req.CNIC,
		Phone:       req.Phone,
		Role:        req.Role,
		JoiningDate: req.JoiningDate,
	}
	var salary *models.SalaryStructureVersion
	if req.BaseSalary != nil {
		effective := time.Now().UTC()
		if req.JoiningDate != nil {
			effective = req.JoiningDate.UTC()
		}
		salary = &models.SalaryStructureVersion{
			EffectiveFrom: NormalizeMonth(effective),
			BaseSalary:    *req.BaseSalary,
		}
	}

	if err := s.faculty.Create(ctx, faculty, salary); err != nil {
		return nil, err
	}

	s.logger.Info("faculty created", zap.String("faculty_id", faculty.ID))
	return faculty, nil
}

// Update edits a faculty member.
func (s *FacultyService) Update(ctx context.Context, id string, req UpdateFacultyRequest) (*models.Faculty, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	faculty, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	faculty.Name = req.Name
	faculty.CNIC = req.CNIC
	faculty.Phone = req.Phone
	faculty.Role = req.Role
	faculty.JoiningDate = req.JoiningDate
	if err := s.faculty.Update(ctx, faculty); err != nil {
		return nil, err
	}
	return faculty, nil
}

// SetActive flips a faculty member's active flag. Inactive members keep their
// history and are skipped by bulk salary generation.
func (s *FacultyService) SetActive(ctx context.Context, id string, active bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.faculty.SetActive(ctx, id, active)
}

// SalaryStructures returns a faculty member's salary versions, newest first.
func (s *FacultyService) SalaryStructures(ctx context.Context, facultyID string) ([]models.SalaryStructureVersion, error) {
	if _, err := s.Get(ctx, facultyID); err != nil {
		return nil, err
	}
	return s.faculty.ListSalaryStructures(ctx, facultyID)
}

// AddSalaryStructure appends a salary version. Vouchers already generated
// keep their base_salary snapshots.
func (s *FacultyService) AddSalaryStructure(ctx context.Context, facultyID string, req SalaryStructureRequest) (*models.SalaryStructureVersion, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := s.Get(ctx, facultyID); err != nil {
		return nil, err
	}

	version := &models.SalaryStructureVersion{
		FacultyID:     facultyID,
		EffectiveFrom: NormalizeMonth(req.EffectiveFrom),
		BaseSalary:    req.BaseSalary,
	}
	if err := s.faculty.AddSalaryStructure(ctx, version); err != nil {
		return nil, err
	}

	s.logger.Info("salary structure added",
		zap.String("faculty_id", facultyID),
		zap.Time("effective_from", version.EffectiveFrom))
	return version, nil
}
