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

type feePaymentRepo interface {
	Record(ctx context.Context, payment *models.FeePayment) error
	FindByID(ctx context.Context, id string) (*models.FeePayment, error)
	Delete(ctx context.Context, id string) error
	ListByVoucher(ctx context.Context, voucherID string) ([]models.FeePayment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.FeePayment, int, error)
}

type voucherDetailReader interface {
	FindDetail(ctx context.Context, id string) (*models.VoucherDetail, error)
}

// RecordFeePaymentRequest appends a payment against a voucher.
type RecordFeePaymentRequest struct {
	Amount      float64    `json:"amount" validate:"required,gt=0"`
	PaymentDate *time.Time `json:"payment_date"`
}

// FeePaymentService implements the fee payment ledger. Payments are
// append-only; the overpayment guard lives inside the repository transaction
// so two concurrent payments cannot both pass it.
type FeePaymentService struct {
	payments feePaymentRepo
	vouchers voucherDetailReader
	cache    reportCacheInvalidator
	pdf      *export.PDFExporter
	validate *validator.Validate
	logger   *zap.Logger
}

// NewFeePaymentService constructs the fee payment service.
func NewFeePaymentService(payments feePaymentRepo, vouchers voucherDetailReader, cache reportCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *FeePaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeePaymentService{payments: payments, vouchers: vouchers, cache: cache, pdf: export.NewPDFExporter(), validate: validate, logger: logger}
}

// Record appends a payment and returns the updated voucher view.
func (s *FeePaymentService) Record(ctx context.Context, voucherID string, req RecordFeePaymentRequest) (*models.VoucherDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	payment := &models.FeePayment{VoucherID: voucherID, Amount: req.Amount}
	if req.PaymentDate != nil {
		payment.PaymentDate = req.PaymentDate.UTC()
	}

	if err := s.payments.Record(ctx, payment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "voucher not found")
		}
		return nil, err
	}

	s.logger.Info("fee payment recorded",
		zap.String("voucher_id", voucherID),
		zap.Float64("amount", req.Amount))

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "reports:*"); err != nil {
			s.logger.Warn("invalidate report cache", zap.Error(err))
		}
	}

	detail, err := s.vouchers.FindDetail(ctx, voucherID)
	if err != nil {
		return nil, err
	}
	detail.Status = DeriveStatus(detail.TotalFee, detail.PaidAmount)
	return detail, nil
}

// Delete removes a payment as an explicit admin correction. The voucher's
// status falls back out of the deleted amount on the next read.
func (s *FeePaymentService) Delete(ctx context.Context, id string) error {
	if err := s.payments.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return err
	}
	s.logger.Info("fee payment deleted", zap.String("payment_id", id))
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "reports:*"); err != nil {
			s.logger.Warn("invalidate report cache", zap.Error(err))
		}
	}
	return nil
}

// ListByVoucher returns a voucher's ledger in order.
func (s *FeePaymentService) ListByVoucher(ctx context.Context, voucherID string) ([]models.FeePayment, error) {
	if _, err := s.vouchers.FindDetail(ctx, voucherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "voucher not found")
		}
		return nil, err
	}
	return s.payments.ListByVoucher(ctx, voucherID)
}

// List returns payments across vouchers.
func (s *FeePaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.FeePayment, int, error) {
	return s.payments.List(ctx, filter)
}

// RenderReceipt produces a printable receipt for a single payment.
func (s *FeePaymentService) RenderReceipt(ctx context.Context, paymentID string) ([]byte, string, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, "", fmt.Errorf("load payment: %w", err)
	}

	detail, err := s.vouchers.FindDetail(ctx, payment.VoucherID)
	if err != nil {
		return nil, "", fmt.Errorf("load voucher: %w", err)
	}

	rows := []map[string]string{
		{"Field": "Receipt No", "Value": payment.ID},
		{"Field": "Student", "Value": detail.StudentName},
		{"Field": "Class", "Value": detail.ClassName},
		{"Field": "Voucher Month", "Value": detail.Month.Format("2006-01")},
		{"Field": "Amount Paid", "Value": fmt.Sprintf("%.2f", payment.Amount)},
		{"Field": "Payment Date", "Value": payment.PaymentDate.Format("2006-01-02")},
		{"Field": "Remaining Due", "Value": fmt.Sprintf("%.2f", detail.TotalFee-detail.PaidAmount)},
	}

	title := fmt.Sprintf("Payment Receipt - %s", detail.StudentName)
	payload, err := s.pdf.Render(export.Dataset{Headers: []string{"Field", "Value"}, Rows: rows}, title)
	if err != nil {
		return nil, "", fmt.Errorf("render receipt pdf: %w", err)
	}

	filename := fmt.Sprintf("receipt-%s.pdf", payment.ID)
	return payload, filename, nil
}
