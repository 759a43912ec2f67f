package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

type mockFeePaymentRepo struct {
	details  map[string]*models.VoucherDetail
	payments []models.FeePayment
}

func (m *mockFeePaymentRepo) Record(ctx context.Context, payment *models.FeePayment) error {
	detail, ok := m.details[payment.VoucherID]
	if !ok {
		return sql.ErrNoRows
	}
	if payment.Amount > detail.TotalFee-detail.PaidAmount {
		return appErrors.ErrExceedsDue
	}
	m.payments = append(m.payments, *payment)
	detail.PaidAmount += payment.Amount
	detail.DueAmount = detail.TotalFee - detail.PaidAmount
	return nil
}

func (m *mockFeePaymentRepo) FindByID(ctx context.Context, id string) (*models.FeePayment, error) {
	for _, payment := range m.payments {
		if payment.ID == id {
			return &payment, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeePaymentRepo) Delete(ctx context.Context, id string) error {
	for i, payment := range m.payments {
		if payment.ID == id {
			m.payments = append(m.payments[:i], m.payments[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockFeePaymentRepo) ListByVoucher(ctx context.Context, voucherID string) ([]models.FeePayment, error) {
	return m.payments, nil
}

func (m *mockFeePaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.FeePayment, int, error) {
	return m.payments, len(m.payments), nil
}

type mockVoucherDetailReader struct {
	details map[string]*models.VoucherDetail
}

func (m *mockVoucherDetailReader) FindDetail(ctx context.Context, id string) (*models.VoucherDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func newFeePaymentFixture(totalFee float64) (*FeePaymentService, *mockFeePaymentRepo, *mockCacheInvalidator) {
	details := map[string]*models.VoucherDetail{
		"v1": {VoucherSummary: models.VoucherSummary{VoucherID: "v1", TotalFee: totalFee, DueAmount: totalFee}},
	}
	repo := &mockFeePaymentRepo{details: details}
	cache := &mockCacheInvalidator{}
	svc := NewFeePaymentService(repo, &mockVoucherDetailReader{details: details}, cache, validator.New(), zap.NewNop())
	return svc, repo, cache
}

func TestFeePaymentServiceRecordPartial(t *testing.T) {
	svc, repo, cache := newFeePaymentFixture(1000)

	detail, err := svc.Record(context.Background(), "v1", RecordFeePaymentRequest{Amount: 400})
	require.NoError(t, err)
	assert.Equal(t, models.VoucherPartial, detail.Status)
	assert.Equal(t, 600.0, detail.DueAmount)
	require.Len(t, repo.payments, 1)
	assert.Equal(t, []string{"reports:*"}, cache.patterns)
}

func TestFeePaymentServiceRecordSettles(t *testing.T) {
	svc, _, _ := newFeePaymentFixture(1000)

	_, err := svc.Record(context.Background(), "v1", RecordFeePaymentRequest{Amount: 400})
	require.NoError(t, err)
	detail, err := svc.Record(context.Background(), "v1", RecordFeePaymentRequest{Amount: 600})
	require.NoError(t, err)
	assert.Equal(t, models.VoucherPaid, detail.Status)
	assert.Equal(t, 0.0, detail.DueAmount)
}

func TestFeePaymentServiceRecordExceedsDue(t *testing.T) {
	svc, repo, _ := newFeePaymentFixture(1000)

	_, err := svc.Record(context.Background(), "v1", RecordFeePaymentRequest{Amount: 1500})
	require.ErrorIs(t, err, appErrors.ErrExceedsDue)
	assert.Empty(t, repo.payments)
}

func TestFeePaymentServiceRecordRejectsNonPositive(t *testing.T) {
	svc, repo, _ := newFeePaymentFixture(1000)

	_, err := svc.Record(context.Background(), "v1", RecordFeePaymentRequest{Amount: 0})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.payments)
}

func TestFeePaymentServiceRecordUnknownVoucher(t *testing.T) {
	svc, _, _ := newFeePaymentFixture(1000)

	_, err := svc.Record(context.Background(), "missing", RecordFeePaymentRequest{Amount: 100})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFeePaymentServiceDelete(t *testing.T) {
	svc, repo, cache := newFeePaymentFixture(1000)
	repo.payments = []models.FeePayment{{ID: "p1", VoucherID: "v1", Amount: 400}}

	require.NoError(t, svc.Delete(context.Background(), "p1"))
	assert.Empty(t, repo.payments)
	assert.Equal(t, []string{"reports:*"}, cache.patterns)
}

func TestFeePaymentServiceDeleteUnknown(t *testing.T) {
	svc, _, _ := newFeePaymentFixture(1000)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFeePaymentServiceListByVoucherUnknown(t *testing.T) {
	svc, _, _ := newFeePaymentFixture(1000)

	_, err := svc.ListByVoucher(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
