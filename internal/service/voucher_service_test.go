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

type mockVoucherRepo struct {
	existing map[string]bool
	counts   map[string]int
	details  map[string]*models.VoucherDetail
	created  []models.FeeVoucherItem
	appended []models.FeeVoucherItem
	deleted  []string
}

func (m *mockVoucherRepo) CreateWithItems(ctx context.Context, voucher *models.FeeVoucher, items []models.FeeVoucherItem) error {
	if voucher.ID == "" {
		voucher.ID = "voucher-1"
	}
	m.created = items
	if m.details == nil {
		m.details = make(map[string]*models.VoucherDetail)
	}
	total := SumItems(items)
	m.details[voucher.ID] = &models.VoucherDetail{
		VoucherSummary: models.VoucherSummary{
			VoucherID: voucher.ID,
			Month:     voucher.Month,
			DueDate:   voucher.DueDate,
			TotalFee:  total,
			DueAmount: total,
		},
		EnrollmentID: voucher.EnrollmentID,
		Items:        items,
	}
	return nil
}

func (m *mockVoucherRepo) ExistsForMonth(ctx context.Context, enrollmentID string, month time.Time) (bool, error) {
	return m.existing[enrollmentID], nil
}

func (m *mockVoucherRepo) CountForEnrollment(ctx context.Context, enrollmentID string) (int, error) {
	return m.counts[enrollmentID], nil
}

func (m *mockVoucherRepo) FindDetail(ctx context.Context, id string) (*models.VoucherDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockVoucherRepo) List(ctx context.Context, filter models.VoucherFilter) ([]models.VoucherSummary, int, error) {
	return nil, 0, nil
}

func (m *mockVoucherRepo) ListByStudent(ctx context.Context, studentID string) ([]models.VoucherSummary, error) {
	return nil, nil
}

func (m *mockVoucherRepo) AppendItems(ctx context.Context, voucherID string, items []models.FeeVoucherItem) error {
	if _, ok := m.details[voucherID]; !ok {
		return sql.ErrNoRows
	}
	m.appended = append(m.appended, items...)
	return nil
}

func (m *mockVoucherRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.details[id]; !ok {
		return sql.ErrNoRows
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockStudentReader struct {
	students map[string]models.StudentDetail
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentReader struct {
	open   map[string]models.Enrollment
	roster []models.EnrollmentRoster
}

func (m *mockEnrollmentReader) FindOpenByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	if e, ok := m.open[studentID]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentReader) Roster(ctx context.Context, classID, sectionID string) ([]models.EnrollmentRoster, error) {
	return m.roster, nil
}

type mockFeeStructureReader struct {
	structures map[string]models.FeeStructureVersion
}

func (m *mockFeeStructureReader) FeeStructureFor(ctx context.Context, classID string, month time.Time) (*models.FeeStructureVersion, error) {
	if v, ok := m.structures[classID]; ok {
		return &v, nil
	}
	return nil, sql.ErrNoRows
}

type mockDiscountReader struct {
	discounts map[string]models.Discount
}

func (m *mockDiscountReader) FindForStudentClass(ctx context.Context, studentID, classID string) (*models.Discount, error) {
	if d, ok := m.discounts[studentID+"/"+classID]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

type mockCacheInvalidator struct {
	patterns []string
}

func (m *mockCacheInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func activeStudent(id string) models.StudentDetail {
	return models.StudentDetail{Student: models.Student{ID: id, Name: "Student " + id, Active: true}}
}

func newVoucherFixture() (*VoucherService, *mockVoucherRepo, *mockCacheInvalidator) {
	repo := &mockVoucherRepo{existing: map[string]bool{}, counts: map[string]int{}}
	cache := &mockCacheInvalidator{}
	svc := NewVoucherService(
		repo,
		&mockStudentReader{students: map[string]models.StudentDetail{"s1": activeStudent("s1")}},
		&mockEnrollmentReader{open: map[string]models.Enrollment{"s1": {ID: "e1", StudentID: "s1", ClassID: "c1", SectionID: "sec1"}}},
		&mockFeeStructureReader{structures: map[string]models.FeeStructureVersion{"c1": {ClassID: "c1", AdmissionFee: 500, MonthlyFee: 1000, PaperFund: 100}}},
		&mockDiscountReader{discounts: map[string]models.Discount{}},
		cache,
		10,
		validator.New(),
		zap.NewNop(),
	)
	return svc, repo, cache
}

func itemAmounts(items []models.FeeVoucherItem) map[string]float64 {
	amounts := make(map[string]float64, len(items))
	for _, item := range items {
		amounts[item.ItemType] = item.Amount
	}
	return amounts
}

func TestVoucherServiceGenerateFirstVoucher(t *testing.T) {
	svc, repo, cache := newVoucherFixture()

	detail, err := svc.Generate(context.Background(), GenerateVoucherRequest{
		StudentID: "s1",
		Month:     time.Date(2025, 4, 17, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	amounts := itemAmounts(repo.created)
	assert.Equal(t, 1000.0, amounts[models.ItemMonthly])
	assert.Equal(t, 100.0, amounts[models.ItemPaperFund])
	assert.Equal(t, 500.0, amounts[models.ItemAdmission])
	assert.Equal(t, models.VoucherUnpaid, detail.Status)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), detail.Month)
	assert.Equal(t, []string{"reports:*"}, cache.patterns)
}

func TestVoucherServiceGenerateSkipsAdmissionAfterFirst(t *testing.T) {
	svc, repo, _ := newVoucherFixture()
	repo.counts["e1"] = 3

	_, err := svc.Generate(context.Background(), GenerateVoucherRequest{
		StudentID: "s1",
		Month:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	amounts := itemAmounts(repo.created)
	_, hasAdmission := amounts[models.ItemAdmission]
	assert.False(t, hasAdmission)
	assert.Equal(t, 1000.0, amounts[models.ItemMonthly])
}

func TestVoucherServiceGenerateAppliesDiscount(t *testing.T) {
	svc, repo, _ := newVoucherFixture()
	repo.counts["e1"] = 1
	svc.discounts = &mockDiscountReader{discounts: map[string]models.Discount{
		"s1/c1": {StudentID: "s1", ClassID: "c1", DiscountType: models.DiscountPercentage, DiscountValue: 50},
	}}

	detail, err := svc.Generate(context.Background(), GenerateVoucherRequest{
		StudentID: "s1",
		Month:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	amounts := itemAmounts(repo.created)
	assert.Equal(t, -550.0, amounts[models.ItemDiscount])
	assert.Equal(t, 550.0, detail.TotalFee)
}

func TestVoucherServiceGenerateDuplicateMonth(t *testing.T) {
	svc, repo, cache := newVoucherFixture()
	repo.existing["e1"] = true

	_, err := svc.Generate(context.Background(), GenerateVoucherRequest{
		StudentID: "s1",
		Month:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, appErrors.ErrVoucherExists)
	assert.Empty(t, cache.patterns)
}

func TestVoucherServiceGenerateInactiveStudent(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	svc.students = &mockStudentReader{students: map[string]models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", Active: false}},
	}}

	_, err := svc.Generate(context.Background(), GenerateVoucherRequest{
		StudentID: "s1",
		Month:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestVoucherServiceGenerateNoOpenEnrollment(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	svc.enrollments = &mockEnrollmentReader{open: map[string]models.Enrollment{}}

	_, err := svc.Generate(context.Background(), GenerateVoucherRequest{
		StudentID: "s1",
		Month:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestVoucherServiceGenerateZeroMonthlyFee(t *testing.T) {
	svc, repo, _ := newVoucherFixture()
	repo.counts["e1"] = 1
	svc.feeStructures = &mockFeeStructureReader{structures: map[string]models.FeeStructureVersion{
		"c1": {ClassID: "c1", MonthlyFee: 0, PaperFund: 100},
	}}

	detail, err := svc.Generate(context.Background(), GenerateVoucherRequest{
		StudentID: "s1",
		Month:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	amounts := itemAmounts(repo.created)
	_, hasMonthly := amounts[models.ItemMonthly]
	assert.False(t, hasMonthly)
	assert.Equal(t, 100.0, amounts[models.ItemPaperFund])
	assert.Equal(t, 100.0, detail.TotalFee)
}

func TestVoucherServiceGenerateNoFeeStructure(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	svc.feeStructures = &mockFeeStructureReader{structures: map[string]models.FeeStructureVersion{}}

	_, err := svc.Generate(context.Background(), GenerateVoucherRequest{
		StudentID: "s1",
		Month:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestVoucherServiceGenerateBulkClassifiesOutcomes(t *testing.T) {
	svc, repo, _ := newVoucherFixture()
	repo.existing["e2"] = true
	svc.enrollments = &mockEnrollmentReader{roster: []models.EnrollmentRoster{
		{EnrollmentID: "e1", StudentID: "s1", StudentName: "Alice"},
		{EnrollmentID: "e2", StudentID: "s2", StudentName: "Bilal"},
	}}

	result, err := svc.GenerateBulk(context.Background(), GenerateBulkRequest{
		ClassID: "c1",
		Month:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Generated)
	assert.Equal(t, 1, result.Summary.Skipped)
	assert.Equal(t, 0, result.Summary.Failed)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "s2", result.Skipped[0].SubjectID)
}

func TestVoucherServiceGenerateBulkReportsFailures(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	svc.feeStructures = &mockFeeStructureReader{structures: map[string]models.FeeStructureVersion{}}
	svc.enrollments = &mockEnrollmentReader{roster: []models.EnrollmentRoster{
		{EnrollmentID: "e1", StudentID: "s1", StudentName: "Alice"},
	}}

	result, err := svc.GenerateBulk(context.Background(), GenerateBulkRequest{
		ClassID: "c1",
		Month:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Failed)
	require.Len(t, result.Failed, 1)
	assert.NotEmpty(t, result.Failed[0].Reason)
}

func TestVoucherServiceAppendItemsRejectsNonPositive(t *testing.T) {
	svc, repo, _ := newVoucherFixture()
	repo.details = map[string]*models.VoucherDetail{"v1": {}}

	_, err := svc.AppendItems(context.Background(), "v1", UpdateVoucherItemsRequest{
		Items: []models.VoucherItemInput{{ItemType: "ARREARS", Amount: -50}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.appended)
}

func TestVoucherLifecycleFirstAndSecondMonth(t *testing.T) {
	svc, repo, _ := newVoucherFixture()
	svc.feeStructures = &mockFeeStructureReader{structures: map[string]models.FeeStructureVersion{
		"c1": {ClassID: "c1", AdmissionFee: 5000, MonthlyFee: 2000, PaperFund: 500},
	}}

	february, err := svc.Generate(context.Background(), GenerateVoucherRequest{
		StudentID: "s1",
		Month:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 7500.0, february.TotalFee)
	assert.False(t, february.DueDate.IsZero())

	repo.counts["e1"] = 1
	march, err := svc.Generate(context.Background(), GenerateVoucherRequest{
		StudentID: "s1",
		Month:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 2500.0, march.TotalFee)

	payments := NewFeePaymentService(
		&mockFeePaymentRepo{details: repo.details},
		&mockVoucherDetailReader{details: repo.details},
		nil, validator.New(), zap.NewNop())

	settled, err := payments.Record(context.Background(), march.VoucherID, RecordFeePaymentRequest{Amount: 2500})
	require.NoError(t, err)
	assert.Equal(t, models.VoucherPaid, settled.Status)
	assert.Equal(t, 0.0, settled.DueAmount)

	_, err = payments.Record(context.Background(), march.VoucherID, RecordFeePaymentRequest{Amount: 100})
	require.ErrorIs(t, err, appErrors.ErrExceedsDue)
}

func TestVoucherServiceDeleteNotFound(t *testing.T) {
	svc, _, _ := newVoucherFixture()

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
