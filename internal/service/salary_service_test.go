package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

type mockSalaryVoucherRepo struct {
	existing    map[string]bool
	details     map[string]*models.SalaryVoucherDetail
	created     *models.SalaryVoucher
	adjustments []models.SalaryAdjustment
	payments    []models.SalaryPayment
}

func (m *mockSalaryVoucherRepo) Create(ctx context.Context, voucher *models.SalaryVoucher, adjustments []models.SalaryAdjustment) error {
	if voucher.ID == "" {
		voucher.ID = "sv-1"
	}
	m.created = voucher
	m.adjustments = adjustments
	if m.details == nil {
		m.details = make(map[string]*models.SalaryVoucherDetail)
	}
	net := NetSalary(voucher.BaseSalary, adjustments)
	m.details[voucher.ID] = &models.SalaryVoucherDetail{
		SalaryVoucher: *voucher,
		Adjustments:   adjustments,
		NetSalary:     net,
		DueAmount:     net,
	}
	return nil
}

func (m *mockSalaryVoucherRepo) ExistsForMonth(ctx context.Context, facultyID string, month time.Time) (bool, error) {
	return m.existing[facultyID], nil
}

func (m *mockSalaryVoucherRepo) FindDetail(ctx context.Context, id string) (*models.SalaryVoucherDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSalaryVoucherRepo) List(ctx context.Context, filter models.SalaryVoucherFilter) ([]models.SalaryVoucherDetail, int, error) {
	var out []models.SalaryVoucherDetail
	for _, d := range m.details {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *mockSalaryVoucherRepo) AddAdjustment(ctx context.Context, adjustment *models.SalaryAdjustment) error {
	if _, ok := m.details[adjustment.VoucherID]; !ok {
		return sql.ErrNoRows
	}
	m.adjustments = append(m.adjustments, *adjustment)
	return nil
}

func (m *mockSalaryVoucherRepo) RecordPayment(ctx context.Context, payment *models.SalaryPayment) error {
	detail, ok := m.details[payment.VoucherID]
	if !ok {
		return sql.ErrNoRows
	}
	if payment.Amount > detail.NetSalary-detail.PaidAmount {
		return appErrors.ErrExceedsDue
	}
	m.payments = append(m.payments, *payment)
	detail.PaidAmount += payment.Amount
	detail.DueAmount = detail.NetSalary - detail.PaidAmount
	return nil
}

func (m *mockSalaryVoucherRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.details[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.details, id)
	return nil
}

type mockFacultyReader struct {
	faculty    map[string]models.Faculty
	structures map[string]models.SalaryStructureVersion
}

func (m *mockFacultyReader) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	if f, ok := m.faculty[id]; ok {
		return &f, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFacultyReader) ListActive(ctx context.Context) ([]models.Faculty, error) {
	var out []models.Faculty
	for _, f := range m.faculty {
		if f.Active {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockFacultyReader) SalaryStructureFor(ctx context.Context, facultyID string, month time.Time) (*models.SalaryStructureVersion, error) {
	if v, ok := m.structures[facultyID]; ok {
		return &v, nil
	}
	return nil, sql.ErrNoRows
}

func newSalaryFixture() (*SalaryService, *mockSalaryVoucherRepo) {
	repo := &mockSalaryVoucherRepo{existing: map[string]bool{}}
	faculty := &mockFacultyReader{
		faculty:    map[string]models.Faculty{"f1": {ID: "f1", Name: "Teacher One", Role: "TEACHER", Active: true}},
		structures: map[string]models.SalaryStructureVersion{"f1": {FacultyID: "f1", BaseSalary: 40000}},
	}
	svc := NewSalaryService(repo, faculty, &mockCacheInvalidator{}, validator.New(), zap.NewNop())
	return svc, repo
}

func TestSalaryServiceGenerateSnapshotsBase(t *testing.T) {
	svc, repo := newSalaryFixture()

	detail, err := svc.Generate(context.Background(), GenerateSalaryRequest{
		FacultyID: "f1",
		Month:     time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 40000.0, repo.created.BaseSalary)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), repo.created.Month)
	assert.Equal(t, models.VoucherUnpaid, detail.Status)
}

func TestSalaryServiceGenerateWithAdjustments(t *testing.T) {
	svc, _ := newSalaryFixture()

	detail, err := svc.Generate(context.Background(), GenerateSalaryRequest{
		FacultyID: "f1",
		Month:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Adjustments: []models.AdjustmentInput{
			{Type: models.AdjustmentBonus, Amount: 10, CalcType: models.CalcPercentage},
			{Type: models.AdjustmentAdvance, Amount: 5000, CalcType: models.CalcFlat},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 39000.0, detail.NetSalary)
}

func TestSalaryServiceGeneratePercentageOver100(t *testing.T) {
	svc, _ := newSalaryFixture()

	_, err := svc.Generate(context.Background(), GenerateSalaryRequest{
		FacultyID: "f1",
		Month:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Adjustments: []models.AdjustmentInput{
			{Type: models.AdjustmentBonus, Amount: 150, CalcType: models.CalcPercentage},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSalaryServiceGenerateDuplicateMonth(t *testing.T) {
	svc, repo := newSalaryFixture()
	repo.existing["f1"] = true

	_, err := svc.Generate(context.Background(), GenerateSalaryRequest{
		FacultyID: "f1",
		Month:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, appErrors.ErrVoucherExists)
}

func TestSalaryServiceGenerateInactiveFaculty(t *testing.T) {
	svc, _ := newSalaryFixture()
	svc.faculty = &mockFacultyReader{faculty: map[string]models.Faculty{
		"f1": {ID: "f1", Active: false},
	}}

	_, err := svc.Generate(context.Background(), GenerateSalaryRequest{
		FacultyID: "f1",
		Month:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestSalaryServiceGenerateNoSalaryStructure(t *testing.T) {
	svc, _ := newSalaryFixture()
	svc.faculty = &mockFacultyReader{
		faculty: map[string]models.Faculty{"f1": {ID: "f1", Name: "Teacher One", Active: true}},
	}

	_, err := svc.Generate(context.Background(), GenerateSalaryRequest{
		FacultyID: "f1",
		Month:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestSalaryServiceGenerateBulkSkipsExisting(t *testing.T) {
	svc, repo := newSalaryFixture()
	svc.faculty = &mockFacultyReader{
		faculty: map[string]models.Faculty{
			"f1": {ID: "f1", Name: "One", Active: true},
			"f2": {ID: "f2", Name: "Two", Active: true},
		},
		structures: map[string]models.SalaryStructureVersion{
			"f1": {FacultyID: "f1", BaseSalary: 40000},
			"f2": {FacultyID: "f2", BaseSalary: 35000},
		},
	}
	repo.existing["f2"] = true

	result, err := svc.GenerateBulk(context.Background(), GenerateSalaryBulkRequest{
		Month: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Generated)
	assert.Equal(t, 1, result.Summary.Skipped)
}

func TestSalaryServiceRecordPaymentExceedsDue(t *testing.T) {
	svc, repo := newSalaryFixture()
	repo.details = map[string]*models.SalaryVoucherDetail{
		"sv-1": {SalaryVoucher: models.SalaryVoucher{ID: "sv-1", BaseSalary: 40000}, NetSalary: 40000, DueAmount: 40000},
	}

	_, err := svc.RecordPayment(context.Background(), "sv-1", RecordSalaryPaymentRequest{Amount: 50000})
	require.ErrorIs(t, err, appErrors.ErrExceedsDue)
}

func TestSalaryServiceRecordPaymentDerivesStatus(t *testing.T) {
	svc, repo := newSalaryFixture()
	repo.details = map[string]*models.SalaryVoucherDetail{
		"sv-1": {SalaryVoucher: models.SalaryVoucher{ID: "sv-1", BaseSalary: 40000}, NetSalary: 40000, DueAmount: 40000},
	}

	detail, err := svc.RecordPayment(context.Background(), "sv-1", RecordSalaryPaymentRequest{Amount: 15000})
	require.NoError(t, err)
	assert.Equal(t, models.VoucherPartial, detail.Status)

	detail, err = svc.RecordPayment(context.Background(), "sv-1", RecordSalaryPaymentRequest{Amount: 25000})
	require.NoError(t, err)
	assert.Equal(t, models.VoucherPaid, detail.Status)
}
