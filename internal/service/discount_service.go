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

type discountRepo interface {
	List(ctx context.Context, filter models.DiscountFilter) ([]models.DiscountDetail, int, error)
	FindForStudentClass(ctx context.Context, studentID, classID string) (*models.Discount, error)
	Upsert(ctx context.Context, discount *models.Discount) error
	Delete(ctx context.Context, id string) (bool, error)
}

type discountStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type discountClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// SetDiscountRequest creates or replaces the discount for a (student, class)
// pair.
type SetDiscountRequest struct {
	StudentID     string              `json:"student_id" validate:"required"`
	ClassID       string              `json:"class_id" validate:"required"`
	DiscountType  models.DiscountType `json:"discount_type" validate:"required,oneof=PERCENTAGE FLAT"`
	DiscountValue float64             `json:"discount_value" validate:"required,gt=0"`
	Reason        *string             `json:"reason"`
}

// DiscountService implements per-student fee concessions. A discount applies
// only to vouchers generated after it is set; existing vouchers keep their
// items.
type DiscountService struct {
	discounts discountRepo
	students  discountStudentReader
	classes   discountClassReader
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewDiscountService constructs the discount service.
func NewDiscountService(discounts discountRepo, students discountStudentReader, classes discountClassReader, validate *validator.Validate, logger *zap.Logger) *DiscountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountService{discounts: discounts, students: students, classes: classes, validate: validate, logger: logger}
}

// List returns discounts matching the filter.
func (s *DiscountService) List(ctx context.Context, filter models.DiscountFilter) ([]models.DiscountDetail, int, error) {
	return s.discounts.List(ctx, filter)
}

// Set creates or replaces a discount. PERCENTAGE values are capped at 100.
func (s *DiscountService) Set(ctx context.Context, appliedBy string, req SetDiscountRequest) (*models.Discount, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if req.DiscountType == models.DiscountPercentage && req.DiscountValue > 100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "percentage discount cannot exceed 100")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, err
	}

	discount := &models.Discount{
		StudentID:     req.StudentID,
		ClassID:       req.ClassID,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		Reason:        req.Reason,
	}
	if appliedBy != "" {
		discount.AppliedBy = &appliedBy
	}
	if err := s.discounts.Upsert(ctx, discount); err != nil {
		return nil, err
	}

	s.logger.Info("discount set",
		zap.String("student_id", req.StudentID),
		zap.String("class_id", req.ClassID),
		zap.String("type", string(req.DiscountType)),
		zap.Float64("value", req.DiscountValue))
	return discount, nil
}

// Remove deletes a discount. Future vouchers go back to full fee.
func (s *DiscountService) Remove(ctx context.Context, id string) error {
	removed, err := s.discounts.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "discount not found")
	}
	return nil
}
