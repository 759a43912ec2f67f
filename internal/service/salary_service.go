package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
	"github.com/Mahad-Ghauri/School-Backend/pkg/export"
)

type salaryVoucherRepo interface {
	Create(ctx context.Context, voucher *models.SalaryVoucher, adjustments []models.SalaryAdjustment) error
	ExistsForMonth(ctx context.Context, facultyID string, month time.Time) (bool, error)
	FindDetail(ctx context.Context, id string) (*models.SalaryVoucherDetail, error)
	List(ctx context.Context, filter models.SalaryVoucherFilter) ([]models.SalaryVoucherDetail, int, error)
	AddAdjustment(ctx context.Context, adjustment *models.SalaryAdjustment) error
	RecordPayment(ctx context.Context, payment *models.SalaryPayment) error
	Delete(ctx context.Context, id string) error
}

type salaryFacultyReader interface {
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
	ListActive(ctx context.Context) ([]models.Faculty, error)
	SalaryStructureFor(ctx context.Context, facultyID string, month time.Time) (*models.SalaryStructureVersion, error)
}

// GenerateSalaryRequest asks for one faculty member's voucher for a month.
type GenerateSalaryRequest struct {
	FacultyID   string                   `json:"faculty_id" validate:"required"`
	Month       time.Time                `json:"-" validate:"required"`
	Adjustments []models.AdjustmentInput `json:"adjustments" validate:"omitempty,dive"`
}

// GenerateSalaryBulkRequest asks for vouchers for all active faculty.
type GenerateSalaryBulkRequest struct {
	Month time.Time `json:"-" validate:"required"`
}

// RecordSalaryPaymentRequest appends a payment against a salary voucher.
type RecordSalaryPaymentRequest struct {
	Amount      float64    `json:"amount" validate:"required,gt=0"`
	PaymentDate *time.Time `json:"payment_date"`
}

// SalaryService implements salary voucher generation and the salary payment
// ledger. The structure in force at generation time is snapshotted onto the
// voucher; later structure changes never move an existing voucher's base.
type SalaryService struct {
	vouchers salaryVoucherRepo
	faculty  salaryFacultyReader
	cache    reportCacheInvalidator
	pdf      *export.PDFExporter
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSalaryService constructs the salary service.
func NewSalaryService(vouchers salaryVoucherRepo, faculty salaryFacultyReader, cache reportCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *SalaryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SalaryService{vouchers: vouchers, faculty: faculty, cache: cache, pdf: export.NewPDFExporter(), validate: validate, logger: logger}
}

func validateAdjustments(adjustments []models.AdjustmentInput) error {
	for _, input := range adjustments {
		if input.CalcType == models.CalcPercentage && input.Amount > 100 {
			return appErrors.Clone(appErrors.ErrValidation, "percentage adjustment cannot exceed 100")
		}
	}
	return nil
}

// Generate creates a salary voucher for one faculty member.
func (s *SalaryService) Generate(ctx context.Context, req GenerateSalaryRequest) (*models.SalaryVoucherDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := validateAdjustments(req.Adjustments); err != nil {
		return nil, err
	}

	faculty, err := s.faculty.FindByID(ctx, req.FacultyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, fmt.Errorf("load faculty: %w", err)
	}
	if !faculty.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "faculty is not active")
	}

	voucherID, err := s.generateForFaculty(ctx, faculty.ID, req.Month, req.Adjustments)
	if err != nil {
		return nil, err
	}

	s.invalidateReportCache(ctx)
	return s.Get(ctx, voucherID)
}

func (s *SalaryService) generateForFaculty(ctx context.Context, facultyID string, month time.Time, inputs []models.AdjustmentInput) (string, error) {
	month = NormalizeMonth(month)

	exists, err := s.vouchers.ExistsForMonth(ctx, facultyID, month)
	if err != nil {
		return "", err
	}
	if exists {
		return "", appErrors.ErrVoucherExists
	}

	structure, err := s.faculty.SalaryStructureFor(ctx, facultyID, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "faculty has no salary structure for this month")
		}
		return "", fmt.Errorf("load salary structure: %w", err)
	}

	adjustments := make([]models.SalaryAdjustment, 0, len(inputs))
	for _, input := range inputs {
		adjustments = append(adjustments, models.SalaryAdjustment{
			Type:     input.Type,
			Amount:   input.Amount,
			CalcType: input.CalcType,
		})
	}

	voucher := &models.SalaryVoucher{
		FacultyID:  facultyID,
		Month:      month,
		BaseSalary: structure.BaseSalary,
	}
	if err := s.vouchers.Create(ctx, voucher, adjustments); err != nil {
		return "", err
	}

	s.logger.Info("salary voucher generated",
		zap.String("voucher_id", voucher.ID),
		zap.String("faculty_id", facultyID),
		zap.Time("month", month))
	return voucher.ID, nil
}

// GenerateBulk creates vouchers for every active faculty member. Per-member
// failures never abort the run.
func (s *SalaryService) GenerateBulk(ctx context.Context, req GenerateSalaryBulkRequest) (*models.BulkResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	faculty, err := s.faculty.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.BulkResult{
		Generated: []models.BulkOutcome{},
		Skipped:   []models.BulkOutcome{},
		Failed:    []models.BulkOutcome{},
	}
	result.Summary.Total = len(faculty)

	for _, member := range faculty {
		outcome := models.BulkOutcome{SubjectID: member.ID, SubjectName: member.Name}
		voucherID, err := s.generateForFaculty(ctx, member.ID, req.Month, nil)
		switch {
		case err == nil:
			outcome.VoucherID = voucherID
			result.Generated = append(result.Generated, outcome)
			result.Summary.Generated++
		case errors.Is(err, appErrors.ErrVoucherExists):
			outcome.Reason = "voucher already exists for this month"
			result.Skipped = append(result.Skipped, outcome)
			result.Summary.Skipped++
		default:
			outcome.Reason = appErrors.FromError(err).Message
			result.Failed = append(result.Failed, outcome)
			result.Summary.Failed++
			s.logger.Warn("bulk salary generation failed for faculty",
				zap.String("faculty_id", member.ID), zap.Error(err))
		}
	}

	if result.Summary.Generated > 0 {
		s.invalidateReportCache(ctx)
	}
	return result, nil
}

// Get returns the full salary voucher view with derived status.
func (s *SalaryService) Get(ctx context.Context, id string) (*models.SalaryVoucherDetail, error) {
	detail, err := s.vouchers.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "salary voucher not found")
		}
		return nil, err
	}
	detail.Status = DeriveStatus(detail.NetSalary, detail.PaidAmount)
	return detail, nil
}

// List returns salary voucher summaries with derived statuses.
func (s *SalaryService) List(ctx context.Context, filter models.SalaryVoucherFilter) ([]models.SalaryVoucherDetail, int, error) {
	vouchers, total, err := s.vouchers.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range vouchers {
		vouchers[i].Status = DeriveStatus(vouchers[i].NetSalary, vouchers[i].PaidAmount)
	}
	return vouchers, total, nil
}

// AddAdjustment appends a bonus or advance to a voucher without payments.
func (s *SalaryService) AddAdjustment(ctx context.Context, voucherID string, input models.AdjustmentInput) (*models.SalaryVoucherDetail, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := validateAdjustments([]models.AdjustmentInput{input}); err != nil {
		return nil, err
	}

	adjustment := &models.SalaryAdjustment{
		VoucherID: voucherID,
		Type:      input.Type,
		Amount:    input.Amount,
		CalcType:  input.CalcType,
	}
	if err := s.vouchers.AddAdjustment(ctx, adjustment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "salary voucher not found")
		}
		return nil, err
	}

	s.invalidateReportCache(ctx)
	return s.Get(ctx, voucherID)
}

// RecordPayment appends a payment and returns the updated voucher view.
func (s *SalaryService) RecordPayment(ctx context.Context, voucherID string, req RecordSalaryPaymentRequest) (*models.SalaryVoucherDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	payment := &models.SalaryPayment{VoucherID: voucherID, Amount: req.Amount}
	if req.PaymentDate != nil {
		payment.PaymentDate = req.PaymentDate.UTC()
	}

	if err := s.vouchers.RecordPayment(ctx, payment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "salary voucher not found")
		}
		return nil, err
	}

	s.logger.Info("salary payment recorded",
		zap.String("voucher_id", voucherID),
		zap.Float64("amount", req.Amount))

	s.invalidateReportCache(ctx)
	return s.Get(ctx, voucherID)
}

// Delete removes a voucher that has no payments.
func (s *SalaryService) Delete(ctx context.Context, id string) error {
	if err := s.vouchers.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "salary voucher not found")
		}
		return err
	}
	s.invalidateReportCache(ctx)
	return nil
}

// RenderPDF produces a printable salary slip.
func (s *SalaryService) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	rows := make([]map[string]string, 0, len(detail.Adjustments)+4)
	rows = append(rows, map[string]string{"Item": "BASE SALARY", "Amount": fmt.Sprintf("%.2f", detail.BaseSalary)})
	for _, adjustment := range detail.Adjustments {
		amount := AdjustmentAmount(adjustment, detail.BaseSalary)
		if adjustment.Type == models.AdjustmentAdvance {
			amount = -amount
		}
		rows = append(rows, map[string]string{
			"Item":   string(adjustment.Type),
			"Amount": fmt.Sprintf("%.2f", amount),
		})
	}
	rows = append(rows, map[string]string{"Item": "NET SALARY", "Amount": fmt.Sprintf("%.2f", detail.NetSalary)})
	rows = append(rows, map[string]string{"Item": "PAID", "Amount": fmt.Sprintf("%.2f", detail.PaidAmount)})
	rows = append(rows, map[string]string{"Item": "DUE", "Amount": fmt.Sprintf("%.2f", detail.DueAmount)})

	title := fmt.Sprintf("Salary Voucher %s - %s", detail.Month.Format("2006-01"), detail.FacultyName)
	payload, err := s.pdf.Render(export.Dataset{Headers: []string{"Item", "Amount"}, Rows: rows}, title)
	if err != nil {
		return nil, "", fmt.Errorf("render salary pdf: %w", err)
	}

	filename := fmt.Sprintf("salary-%s-%s.pdf", detail.Month.Format("2006-01"), detail.ID)
	return payload, filename, nil
}

func (s *SalaryService) invalidateReportCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "reports:*"); err != nil {
		s.logger.Warn("invalidate report cache", zap.Error(err))
	}
}
