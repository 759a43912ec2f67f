package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

type guardianRepo interface {
	List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error)
	FindByID(ctx context.Context, id string) (*models.Guardian, error)
	Create(ctx context.Context, guardian *models.Guardian) error
	Update(ctx context.Context, guardian *models.Guardian) error
	Delete(ctx context.Context, id string) (bool, error)
	ListStudents(ctx context.Context, guardianID string) ([]models.StudentDetail, error)
}

// GuardianRequest carries guardian create and update payloads.
type GuardianRequest struct {
	Name       string  `json:"name" validate:"required"`
	CNIC       *string `json:"cnic"`
	Phone      *string `json:"phone"`
	Occupation *string `json:"occupation"`
}

// GuardianService implements guardian records. A guardian is shared across
// siblings via the student link table.
type GuardianService struct {
	guardians guardianRepo
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewGuardianService constructs the guardian service.
func NewGuardianService(guardians guardianRepo, validate *validator.Validate, logger *zap.Logger) *GuardianService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GuardianService{guardians: guardians, validate: validate, logger: logger}
}

// List returns guardians matching the filter.
func (s *GuardianService) List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error) {
	return s.guardians.List(ctx, filter)
}

// Get returns a guardian.
func (s *GuardianService) Get(ctx context.Context, id string) (*models.Guardian, error) {
	guardian, err := s.guardians.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guardian not found")
		}
		return nil, err
	}
	return guardian, nil
}

// Create registers a guardian.
func (s *GuardianService) Create(ctx context.Context, req GuardianRequest) (*models.Guardian, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	guardian := &models.Guardian{
		Name:       req.Name,
		CNIC:       req.CNIC,
		Phone:      req.Phone,
		Occupation: req.Occupation,
	}
	if err := s.guardians.Create(ctx, guardian); err != nil {
		return nil, err
	}
	return guardian, nil
}

// Update edits a guardian.
func (s *GuardianService) Update(ctx context.Context, id string, req GuardianRequest) (*models.Guardian, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	guardian, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	guardian.Name = req.Name
	guardian.CNIC = req.CNIC
	guardian.Phone = req.Phone
	guardian.Occupation = req.Occupation
	if err := s.guardians.Update(ctx, guardian); err != nil {
		return nil, err
	}
	return guardian, nil
}

// Delete removes a guardian and all student links.
func (s *GuardianService) Delete(ctx context.Context, id string) error {
	removed, err := s.guardians.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "guardian not found")
	}
	return nil
}

// Students returns the students linked to a guardian.
func (s *GuardianService) Students(ctx context.Context, id string) ([]models.StudentDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.guardians.ListStudents(ctx, id)
}
