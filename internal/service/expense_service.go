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

type expenseRepo interface {
	List(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, int, error)
	FindByID(ctx context.Context, id string) (*models.Expense, error)
	Create(ctx context.Context, expense *models.Expense) error
	Update(ctx context.Context, expense *models.Expense) error
	Delete(ctx context.Context, id string) (bool, error)
	Summary(ctx context.Context, filter models.ExpenseFilter) (*models.ExpenseSummary, error)
}

// ExpenseRequest carries expense create and update payloads.
type ExpenseRequest struct {
	Title       string     `json:"title" validate:"required"`
	Amount      float64    `json:"amount" validate:"required,gt=0"`
	ExpenseDate *time.Time `json:"expense_date"`
}

// ExpenseService implements operating expense tracking.
type ExpenseService struct {
	expenses expenseRepo
	cache    reportCacheInvalidator
	validate *validator.Validate
	logger   *zap.Logger
}

// NewExpenseService constructs the expense service.
func NewExpenseService(expenses expenseRepo, cache reportCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *ExpenseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpenseService{expenses: expenses, cache: cache, validate: validate, logger: logger}
}

// List returns expenses matching the filter.
func (s *ExpenseService) List(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, int, error) {
	return s.expenses.List(ctx, filter)
}

// Get returns an expense.
func (s *ExpenseService) Get(ctx context.Context, id string) (*models.Expense, error) {
	expense, err := s.expenses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "expense not found")
		}
		return nil, err
	}
	return expense, nil
}

// Create records an expense.
func (s *ExpenseService) Create(ctx context.Context, req ExpenseRequest) (*models.Expense, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	expense := &models.Expense{Title: req.Title, Amount: req.Amount}
	if req.ExpenseDate != nil {
		expense.ExpenseDate = req.ExpenseDate.UTC()
	}
	if err := s.expenses.Create(ctx, expense); err != nil {
		return nil, err
	}

	s.invalidateReportCache(ctx)
	return expense, nil
}

// Update edits an expense.
func (s *ExpenseService) Update(ctx context.Context, id string, req ExpenseRequest) (*models.Expense, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	expense, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	expense.Title = req.Title
	expense.Amount = req.Amount
	if req.ExpenseDate != nil {
		expense.ExpenseDate = req.ExpenseDate.UTC()
	}
	if err := s.expenses.Update(ctx, expense); err != nil {
		return nil, err
	}

	s.invalidateReportCache(ctx)
	return expense, nil
}

// Delete removes an expense.
func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	removed, err := s.expenses.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "expense not found")
	}
	s.invalidateReportCache(ctx)
	return nil
}

// Summary returns the count and total for a date range.
func (s *ExpenseService) Summary(ctx context.Context, filter models.ExpenseFilter) (*models.ExpenseSummary, error) {
	return s.expenses.Summary(ctx, filter)
}

func (s *ExpenseService) invalidateReportCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "reports:*"); err != nil {
		s.logger.Warn("invalidate report cache", zap.Error(err))
	}
}
