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

type classRepo interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	HasOpenEnrollments(ctx context.Context, classID string) (bool, error)
	ListSections(ctx context.Context, classID string) ([]models.Section, error)
	FindSection(ctx context.Context, id string) (*models.Section, error)
	CreateSection(ctx context.Context, section *models.Section) error
	DeleteSection(ctx context.Context, id string) (bool, error)
	ListFeeStructures(ctx context.Context, classID string) ([]models.FeeStructureVersion, error)
	FeeStructureFor(ctx context.Context, classID string, month time.Time) (*models.FeeStructureVersion, error)
	AddFeeStructure(ctx context.Context, version *models.FeeStructureVersion) error
}

// ClassRequest carries class create and update payloads.
type ClassRequest struct {
	Name      string `json:"name" validate:"required"`
	ClassType string `json:"class_type" validate:"required"`
}

// SectionRequest adds a section to a class.
type SectionRequest struct {
	Name string `json:"name" validate:"required"`
}

// FeeStructureRequest appends a new fee structure version to a class.
type FeeStructureRequest struct {
	EffectiveFrom time.Time `json:"-" validate:"required"`
	AdmissionFee  float64   `json:"admission_fee" validate:"gte=0"`
	MonthlyFee    float64   `json:"monthly_fee" validate:"required,gt=0"`
	PaperFund     float64   `json:"paper_fund" validate:"gte=0"`
}

// ClassService implements classes, sections and fee structure versions.
type ClassService struct {
	classes  classRepo
	validate *validator.Validate
	logger   *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(classes classRepo, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{classes: classes, validate: validate, logger: logger}
}

// List returns classes matching the filter.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	return s.classes.List(ctx, filter)
}

// Get returns a class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, err
	}
	return class, nil
}

// Create registers a class.
func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*models.Class, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	class := &models.Class{Name: req.Name, ClassType: req.ClassType}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, err
	}
	return class, nil
}

// Update edits a class.
func (s *ClassService) Update(ctx context.Context, id string, req ClassRequest) (*models.Class, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	class.Name = req.Name
	class.ClassType = req.ClassType
	if err := s.classes.Update(ctx, class); err != nil {
		return nil, err
	}
	return class, nil
}

// Deactivate marks a class inactive so no new enrollments or vouchers target
// it. Classes are never deleted; history references them.
func (s *ClassService) Deactivate(ctx context.Context, id string) error {
	class, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	open, err := s.classes.HasOpenEnrollments(ctx, id)
	if err != nil {
		return err
	}
	if open {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class still has enrolled students")
	}

	class.Active = false
	return s.classes.Update(ctx, class)
}

// Sections returns a class's sections.
func (s *ClassService) Sections(ctx context.Context, classID string) ([]models.Section, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	return s.classes.ListSections(ctx, classID)
}

// AddSection creates a section under a class.
func (s *ClassService) AddSection(ctx context.Context, classID string, req SectionRequest) (*models.Section, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}

	section := &models.Section{ClassID: classID, Name: req.Name}
	if err := s.classes.CreateSection(ctx, section); err != nil {
		return nil, err
	}
	return section, nil
}

// DeleteSection removes an empty section.
func (s *ClassService) DeleteSection(ctx context.Context, sectionID string) error {
	removed, err := s.classes.DeleteSection(ctx, sectionID)
	if err != nil {
		return err
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "section not found")
	}
	return nil
}

// FeeStructures returns a class's fee structure versions, newest first.
func (s *ClassService) FeeStructures(ctx context.Context, classID string) ([]models.FeeStructureVersion, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	return s.classes.ListFeeStructures(ctx, classID)
}

// AddFeeStructure appends a fee structure version. Existing versions are
// immutable; already generated vouchers are unaffected.
func (s *ClassService) AddFeeStructure(ctx context.Context, classID string, req FeeStructureRequest) (*models.FeeStructureVersion, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}

	version := &models.FeeStructureVersion{
		ClassID:       classID,
		EffectiveFrom: NormalizeMonth(req.EffectiveFrom),
		AdmissionFee:  req.AdmissionFee,
		MonthlyFee:    req.MonthlyFee,
		PaperFund:     req.PaperFund,
	}
	if err := s.classes.AddFeeStructure(ctx, version); err != nil {
		return nil, err
	}

	s.logger.Info("fee structure added",
		zap.String("class_id", classID),
		zap.Time("effective_from", version.EffectiveFrom))
	return version, nil
}
