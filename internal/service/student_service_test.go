package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
	appErrors "github.com/Mahad-Ghauri/School-Backend/pkg/errors"
)

type mockStudentRepo struct {
	students  map[string]models.Student
	rollNos   map[string]string
	expelled  []string
	activated map[string]bool
	links     map[string]string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var out []models.StudentDetail
	for _, s := range m.students {
		out = append(out, models.StudentDetail{Student: s})
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &models.StudentDetail{Student: s}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsRollNo(ctx context.Context, rollNo, excludeID string) (bool, error) {
	if id, ok := m.rollNos[rollNo]; ok && id != excludeID {
		return true, nil
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student, enrollment *models.Enrollment) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	student.Active = true
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) SetActive(ctx context.Context, id string, active bool) error {
	if m.activated == nil {
		m.activated = make(map[string]bool)
	}
	m.activated[id] = active
	s := m.students[id]
	s.Active = active
	m.students[id] = s
	return nil
}

func (m *mockStudentRepo) Expel(ctx context.Context, id string, date time.Time) error {
	m.expelled = append(m.expelled, id)
	s := m.students[id]
	s.Expelled = true
	s.Active = false
	m.students[id] = s
	return nil
}

func (m *mockStudentRepo) ClearExpulsion(ctx context.Context, id string) error {
	s := m.students[id]
	s.Expelled = false
	m.students[id] = s
	return nil
}

func (m *mockStudentRepo) ListGuardians(ctx context.Context, studentID string) ([]models.StudentGuardian, error) {
	return nil, nil
}

func (m *mockStudentRepo) LinkGuardian(ctx context.Context, studentID, guardianID, relation string) error {
	if m.links == nil {
		m.links = make(map[string]string)
	}
	m.links[studentID+"/"+guardianID] = relation
	return nil
}

func (m *mockStudentRepo) UnlinkGuardian(ctx context.Context, studentID, guardianID string) (bool, error) {
	key := studentID + "/" + guardianID
	if _, ok := m.links[key]; !ok {
		return false, nil
	}
	delete(m.links, key)
	return true, nil
}

type mockEnrollmentRepo struct {
	open     map[string]models.Enrollment
	replaced []string
	resets   []bool
}

func (m *mockEnrollmentRepo) FindOpenByStudent(ctx context.Context, studentID string) (*models.Enrollment, error) {
	if e, ok := m.open[studentID]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) History(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (m *mockEnrollmentRepo) Open(ctx context.Context, enrollment *models.Enrollment) error {
	if m.open == nil {
		m.open = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "enr-new"
	}
	m.open[enrollment.StudentID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) Close(ctx context.Context, studentID string, endDate time.Time) (bool, error) {
	if _, ok := m.open[studentID]; !ok {
		return false, nil
	}
	delete(m.open, studentID)
	return true, nil
}

func (m *mockEnrollmentRepo) Replace(ctx context.Context, studentID, classID, sectionID string, date time.Time, resetDiscount bool) (*models.Enrollment, error) {
	if _, ok := m.open[studentID]; !ok {
		return nil, sql.ErrNoRows
	}
	m.replaced = append(m.replaced, studentID)
	m.resets = append(m.resets, resetDiscount)
	next := models.Enrollment{ID: "enr-next", StudentID: studentID, ClassID: classID, SectionID: sectionID, StartDate: date}
	m.open[studentID] = next
	return &next, nil
}

type mockClassReader struct {
	classes  map[string]models.Class
	sections map[string]models.Section
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassReader) FindSection(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := m.sections[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockGuardianReader struct {
	guardians map[string]models.Guardian
}

func (m *mockGuardianReader) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	if g, ok := m.guardians[id]; ok {
		return &g, nil
	}
	return nil, sql.ErrNoRows
}

func newStudentFixture() (*StudentService, *mockStudentRepo, *mockEnrollmentRepo) {
	students := &mockStudentRepo{
		students: map[string]models.Student{"s1": {ID: "s1", Name: "Ahmed", Active: true}},
		rollNos:  map[string]string{},
	}
	enrollments := &mockEnrollmentRepo{open: map[string]models.Enrollment{}}
	classes := &mockClassReader{
		classes:  map[string]models.Class{"c1": {ID: "c1", Name: "Grade 1", Active: true}, "c2": {ID: "c2", Name: "Grade 2", Active: true}},
		sections: map[string]models.Section{"sec1": {ID: "sec1", ClassID: "c1", Name: "A"}, "sec2": {ID: "sec2", ClassID: "c2", Name: "A"}},
	}
	guardians := &mockGuardianReader{guardians: map[string]models.Guardian{"g1": {ID: "g1", Name: "Father"}}}
	svc := NewStudentService(students, enrollments, classes, guardians, validator.New(), zap.NewNop())
	return svc, students, enrollments
}

func TestStudentServiceCreateWithEnrollment(t *testing.T) {
	svc, _, _ := newStudentFixture()

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		Name:      "New Student",
		ClassID:   "c1",
		SectionID: "sec1",
	})
	require.NoError(t, err)
	assert.True(t, student.Active)
}

func TestStudentServiceCreateClassWithoutSection(t *testing.T) {
	svc, _, _ := newStudentFixture()

	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "New Student", ClassID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateDuplicateRollNo(t *testing.T) {
	svc, students, _ := newStudentFixture()
	students.rollNos["42"] = "other"

	roll := "42"
	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "New Student", RollNo: &roll})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceEnroll(t *testing.T) {
	svc, _, enrollments := newStudentFixture()

	enrollment, err := svc.Enroll(context.Background(), "s1", EnrollRequest{ClassID: "c1", SectionID: "sec1"})
	require.NoError(t, err)
	assert.Equal(t, "c1", enrollment.ClassID)
	assert.Contains(t, enrollments.open, "s1")
}

func TestStudentServiceEnrollAlreadyEnrolled(t *testing.T) {
	svc, _, enrollments := newStudentFixture()
	enrollments.open["s1"] = models.Enrollment{ID: "e1", StudentID: "s1", ClassID: "c1"}

	_, err := svc.Enroll(context.Background(), "s1", EnrollRequest{ClassID: "c1", SectionID: "sec1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceEnrollSectionMismatch(t *testing.T) {
	svc, _, _ := newStudentFixture()

	_, err := svc.Enroll(context.Background(), "s1", EnrollRequest{ClassID: "c1", SectionID: "sec2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceWithdrawWithoutEnrollment(t *testing.T) {
	svc, _, _ := newStudentFixture()

	err := svc.Withdraw(context.Background(), "s1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestStudentServicePromoteResetsDiscount(t *testing.T) {
	svc, _, enrollments := newStudentFixture()
	enrollments.open["s1"] = models.Enrollment{ID: "e1", StudentID: "s1", ClassID: "c1", SectionID: "sec1"}

	enrollment, err := svc.Promote(context.Background(), "s1", PromoteRequest{
		ClassID:       "c2",
		SectionID:     "sec2",
		ResetDiscount: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "c2", enrollment.ClassID)
	require.Len(t, enrollments.resets, 1)
	assert.True(t, enrollments.resets[0])
}

func TestStudentServiceTransferKeepsDiscount(t *testing.T) {
	svc, _, enrollments := newStudentFixture()
	enrollments.open["s1"] = models.Enrollment{ID: "e1", StudentID: "s1", ClassID: "c1", SectionID: "sec1"}

	_, err := svc.Transfer(context.Background(), "s1", TransferRequest{ClassID: "c2", SectionID: "sec2"})
	require.NoError(t, err)
	require.Len(t, enrollments.resets, 1)
	assert.False(t, enrollments.resets[0])
}

func TestStudentServiceExpelThenActivateBlocked(t *testing.T) {
	svc, students, _ := newStudentFixture()

	require.NoError(t, svc.Expel(context.Background(), "s1", nil))
	assert.True(t, students.students["s1"].Expelled)

	err := svc.Activate(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ClearExpulsion(context.Background(), "s1"))
	require.NoError(t, svc.Activate(context.Background(), "s1"))
	assert.True(t, students.students["s1"].Active)
}

func TestStudentServiceUnlinkGuardianNotLinked(t *testing.T) {
	svc, _, _ := newStudentFixture()

	err := svc.UnlinkGuardian(context.Background(), "s1", "g1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
