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

type voucherRepo interface {
	CreateWithItems(ctx context.Context, voucher *models.FeeVoucher, items []models.FeeVoucherItem) error
	ExistsForMonth(ctx context.Context, enrollmentID string, month time.Time) (bool, error)
	CountForEnrollment(ctx context.Context, enrollmentID string) (int, error)
	FindDetail(ctx context.Context, id string) (*models.VoucherDetail, error)
	List(ctx context.Context, filter models.VoucherFilter) ([]models.VoucherSummary, int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.VoucherSummary, error)
	AppendItems(ctx context.Context, voucherID string, items []models.FeeVoucherItem) error
	Delete(ctx context.Context, id string) error
}

type voucherStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type voucherEnrollmentReader interface {
	FindOpenByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	Roster(ctx context.Context, classID, sectionID string) ([]models.EnrollmentRoster, error)
}

type feeStructureReader interface {
	FeeStructureFor(ctx context.Context, classID string, month time.Time) (*models.FeeStructureVersion, error)
}

type discountReader interface {
	FindForStudentClass(ctx context.Context, studentID, classID string) (*models.Discount, error)
}

type reportCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// GenerateVoucherRequest asks for one student's voucher for a month.
type GenerateVoucherRequest struct {
	StudentID  string                    `json:"student_id" validate:"required"`
	Month      time.Time                 `json:"-" validate:"required"`
	ExtraItems []models.VoucherItemInput `json:"extra_items" validate:"omitempty,dive"`
}

// GenerateBulkRequest asks for vouchers for a whole class or section.
type GenerateBulkRequest struct {
	ClassID   string    `json:"class_id" validate:"required"`
	SectionID string    `json:"section_id"`
	Month     time.Time `json:"-" validate:"required"`
}

// UpdateVoucherItemsRequest appends custom items to an unpaid voucher.
type UpdateVoucherItemsRequest struct {
	Items []models.VoucherItemInput `json:"items" validate:"required,min=1,dive"`
}

// VoucherService implements fee voucher generation and lifecycle. Generation
// is idempotent per (enrollment, month); the database unique constraint backs
// the pre-checks under concurrency.
type VoucherService struct {
	vouchers      voucherRepo
	students      voucherStudentReader
	enrollments   voucherEnrollmentReader
	feeStructures feeStructureReader
	discounts     discountReader
	cache         reportCacheInvalidator
	pdf           *export.PDFExporter
	dueDay        int
	validate      *validator.Validate
	logger        *zap.Logger
}

// NewVoucherService constructs the voucher service.
func NewVoucherService(
	vouchers voucherRepo,
	students voucherStudentReader,
	enrollments voucherEnrollmentReader,
	feeStructures feeStructureReader,
	discounts discountReader,
	cache reportCacheInvalidator,
	dueDay int,
	validate *validator.Validate,
	logger *zap.Logger,
) *VoucherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dueDay < 1 || dueDay > 28 {
		dueDay = 10
	}
	return &VoucherService{
		vouchers:      vouchers,
		students:      students,
		enrollments:   enrollments,
		feeStructures: feeStructures,
		discounts:     discounts,
		cache:         cache,
		pdf:           export.NewPDFExporter(),
		dueDay:        dueDay,
		validate:      validate,
		logger:        logger,
	}
}

// Generate creates a fee voucher for one student for the given month.
func (s *VoucherService) Generate(ctx context.Context, req GenerateVoucherRequest) (*models.VoucherDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	if !student.Active || student.Expelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not active")
	}

	enrollment, err := s.enrollments.FindOpenByStudent(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no open enrollment")
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}

	voucherID, err := s.generateForEnrollment(ctx, enrollment.ID, enrollment.ClassID, req.StudentID, req.Month, req.ExtraItems)
	if err != nil {
		return nil, err
	}

	s.invalidateReportCache(ctx)
	return s.Get(ctx, voucherID)
}

// generateForEnrollment runs the generation algorithm for one enrollment. The
// month is normalized first; the enrollment's first voucher carries the
// admission fee.
func (s *VoucherService) generateForEnrollment(ctx context.Context, enrollmentID, classID, studentID string, month time.Time, extra []models.VoucherItemInput) (string, error) {
	month = NormalizeMonth(month)

	exists, err := s.vouchers.ExistsForMonth(ctx, enrollmentID, month)
	if err != nil {
		return "", err
	}
	if exists {
		return "", appErrors.ErrVoucherExists
	}

	structure, err := s.feeStructures.FeeStructureFor(ctx, classID, month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "class has no fee structure for this month")
		}
		return "", fmt.Errorf("load fee structure: %w", err)
	}

	var items []models.FeeVoucherItem
	if structure.MonthlyFee > 0 {
		items = append(items, models.FeeVoucherItem{ItemType: models.ItemMonthly, Amount: structure.MonthlyFee})
	}
	if structure.PaperFund > 0 {
		items = append(items, models.FeeVoucherItem{ItemType: models.ItemPaperFund, Amount: structure.PaperFund})
	}

	count, err := s.vouchers.CountForEnrollment(ctx, enrollmentID)
	if err != nil {
		return "", err
	}
	if count == 0 && structure.AdmissionFee > 0 {
		items = append(items, models.FeeVoucherItem{ItemType: models.ItemAdmission, Amount: structure.AdmissionFee})
	}

	for _, input := range extra {
		if input.Amount <= 0 {
			return "", appErrors.Clone(appErrors.ErrValidation, "custom item amount must be positive")
		}
		items = append(items, models.FeeVoucherItem{ItemType: input.ItemType, Amount: input.Amount})
	}

	positiveTotal := SumItems(items)
	discount, err := s.discounts.FindForStudentClass(ctx, studentID, classID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("load discount: %w", err)
	}
	if amount := DiscountAmount(discount, positiveTotal); amount > 0 {
		items = append(items, models.FeeVoucherItem{ItemType: models.ItemDiscount, Amount: -amount})
	}

	voucher := &models.FeeVoucher{
		EnrollmentID: enrollmentID,
		Month:        month,
		DueDate:      DueDateFor(month, s.dueDay),
	}
	if err := s.vouchers.CreateWithItems(ctx, voucher, items); err != nil {
		return "", err
	}

	s.logger.Info("fee voucher generated",
		zap.String("voucher_id", voucher.ID),
		zap.String("enrollment_id", enrollmentID),
		zap.Time("month", month))
	return voucher.ID, nil
}

// GenerateBulk creates vouchers for every active student enrolled in the
// class (optionally one section). Per-student failures never abort the run;
// every outcome is reported.
func (s *VoucherService) GenerateBulk(ctx context.Context, req GenerateBulkRequest) (*models.BulkResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	roster, err := s.enrollments.Roster(ctx, req.ClassID, req.SectionID)
	if err != nil {
		return nil, err
	}

	result := &models.BulkResult{
		Generated: []models.BulkOutcome{},
		Skipped:   []models.BulkOutcome{},
		Failed:    []models.BulkOutcome{},
	}
	result.Summary.Total = len(roster)

	for _, entry := range roster {
		outcome := models.BulkOutcome{SubjectID: entry.StudentID, SubjectName: entry.StudentName}
		voucherID, err := s.generateForEnrollment(ctx, entry.EnrollmentID, req.ClassID, entry.StudentID, req.Month, nil)
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
			s.logger.Warn("bulk voucher generation failed for student",
				zap.String("student_id", entry.StudentID), zap.Error(err))
		}
	}

	if result.Summary.Generated > 0 {
		s.invalidateReportCache(ctx)
	}
	return result, nil
}

// Get returns the full voucher view with derived status.
func (s *VoucherService) Get(ctx context.Context, id string) (*models.VoucherDetail, error) {
	detail, err := s.vouchers.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "voucher not found")
		}
		return nil, err
	}
	detail.Status = DeriveStatus(detail.TotalFee, detail.PaidAmount)
	return detail, nil
}

// List returns voucher summaries with derived statuses.
func (s *VoucherService) List(ctx context.Context, filter models.VoucherFilter) ([]models.VoucherSummary, int, error) {
	vouchers, total, err := s.vouchers.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range vouchers {
		vouchers[i].Status = DeriveStatus(vouchers[i].TotalFee, vouchers[i].PaidAmount)
	}
	return vouchers, total, nil
}

// StudentHistory returns every voucher across a student's enrollments.
func (s *VoucherService) StudentHistory(ctx context.Context, studentID string) ([]models.VoucherSummary, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	vouchers, err := s.vouchers.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	for i := range vouchers {
		vouchers[i].Status = DeriveStatus(vouchers[i].TotalFee, vouchers[i].PaidAmount)
	}
	return vouchers, nil
}

// AppendItems adds custom items to a voucher that has no payments yet.
func (s *VoucherService) AppendItems(ctx context.Context, voucherID string, req UpdateVoucherItemsRequest) (*models.VoucherDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	items := make([]models.FeeVoucherItem, 0, len(req.Items))
	for _, input := range req.Items {
		if input.Amount <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "item amount must be positive")
		}
		items = append(items, models.FeeVoucherItem{ItemType: input.ItemType, Amount: input.Amount})
	}

	if err := s.vouchers.AppendItems(ctx, voucherID, items); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "voucher not found")
		}
		return nil, err
	}

	s.invalidateReportCache(ctx)
	return s.Get(ctx, voucherID)
}

// Delete removes a voucher that has no payments.
func (s *VoucherService) Delete(ctx context.Context, id string) error {
	if err := s.vouchers.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "voucher not found")
		}
		return err
	}
	s.invalidateReportCache(ctx)
	return nil
}

// RenderPDF produces a printable voucher slip.
func (s *VoucherService) RenderPDF(ctx context.Context, id string) ([]byte, string, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	rows := make([]map[string]string, 0, len(detail.Items)+1)
	for _, item := range detail.Items {
		rows = append(rows, map[string]string{
			"Item":   item.ItemType,
			"Amount": fmt.Sprintf("%.2f", item.Amount),
		})
	}
	rows = append(rows, map[string]string{"Item": "TOTAL", "Amount": fmt.Sprintf("%.2f", detail.TotalFee)})
	rows = append(rows, map[string]string{"Item": "PAID", "Amount": fmt.Sprintf("%.2f", detail.PaidAmount)})
	rows = append(rows, map[string]string{"Item": "DUE", "Amount": fmt.Sprintf("%.2f", detail.DueAmount)})

	title := fmt.Sprintf("Fee Voucher %s - %s (%s)", detail.Month.Format("2006-01"), detail.StudentName, detail.ClassName)
	payload, err := s.pdf.Render(export.Dataset{Headers: []string{"Item", "Amount"}, Rows: rows}, title)
	if err != nil {
		return nil, "", fmt.Errorf("render voucher pdf: %w", err)
	}

	filename := fmt.Sprintf("voucher-%s-%s.pdf", detail.Month.Format("2006-01"), detail.VoucherID)
	return payload, filename, nil
}

func (s *VoucherService) invalidateReportCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "reports:*"); err != nil {
		s.logger.Warn("invalidate report cache", zap.Error(err))
	}
}
