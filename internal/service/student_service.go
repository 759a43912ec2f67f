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
)

type studentRepo interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsRollNo(ctx context.Context, rollNo, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student, enrollment *models.Enrollment) error
	Update(ctx context.Context, student *models.Student) error
	SetActive(ctx context.Context, id string, active bool) error
	Expel(ctx context.Context, id string, date time.Time) error
	ClearExpulsion(ctx context.Context, id string) error
	ListGuardians(ctx context.Context, studentID string) ([]models.StudentGuardian, error)
	LinkGuardian(ctx context.Context, studentID, guardianID, relation string) error
	UnlinkGuardian(ctx context.Context, studentID, guardianID string) (bool, error)
}

type studentEnrollmentRepo interface {
	FindOpenByStudent(ctx context.Context, studentID string) (*models.Enrollment, error)
	History(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	Open(ctx context.Context, enrollment *models.Enrollment) error
	Close(ctx context.Context, studentID string, endDate time.Time) (bool, error)
	Replace(ctx context.Context, studentID, classID, sectionID string, date time.Time, resetDiscount bool) (*models.Enrollment, error)
}

type studentClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindSection(ctx context.Context, id string) (*models.Section, error)
}

type studentGuardianReader interface {
	FindByID(ctx context.Context, id string) (*models.Guardian, error)
}

// CreateStudentRequest registers a student, optionally enrolling them
// immediately when class and section are supplied.
type CreateStudentRequest struct {
	Name           string     `json:"name" validate:"required"`
	RollNo         *string    `json:"roll_no"`
	Phone          *string    `json:"phone"`
	Address        *string    `json:"address"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	BayForm        *string    `json:"bay_form"`
	Caste          *string    `json:"caste"`
	PreviousSchool *string    `json:"previous_school"`
	ClassID        string     `json:"class_id"`
	SectionID      string     `json:"section_id"`
}

// UpdateStudentRequest edits a student's biographical fields.
type UpdateStudentRequest struct {
	Name           string     `json:"name" validate:"required"`
	RollNo         *string    `json:"roll_no"`
	Phone          *string    `json:"phone"`
	Address        *string    `json:"address"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	BayForm        *string    `json:"bay_form"`
	Caste          *string    `json:"caste"`
	PreviousSchool *string    `json:"previous_school"`
}

// EnrollRequest opens an enrollment for a student without one.
type EnrollRequest struct {
	ClassID   string     `json:"class_id" validate:"required"`
	SectionID string     `json:"section_id" validate:"required"`
	StartDate *time.Time `json:"start_date"`
}

// TransferRequest moves a student to another class or section mid-year. The
// discount, being keyed by class, survives only a same-class move.
type TransferRequest struct {
	ClassID   string     `json:"class_id" validate:"required"`
	SectionID string     `json:"section_id" validate:"required"`
	Date      *time.Time `json:"date"`
}

// PromoteRequest moves a student to the next class, optionally dropping the
// old class discount.
type PromoteRequest struct {
	ClassID       string     `json:"class_id" validate:"required"`
	SectionID     string     `json:"section_id" validate:"required"`
	ResetDiscount bool       `json:"reset_discount"`
	Date          *time.Time `json:"date"`
}

// LinkGuardianRequest attaches a guardian to a student.
type LinkGuardianRequest struct {
	GuardianID string `json:"guardian_id" validate:"required"`
	Relation   string `json:"relation" validate:"required"`
}

// StudentService implements student records and the enrollment state machine.
type StudentService struct {
	students    studentRepo
	enrollments studentEnrollmentRepo
	classes     studentClassReader
	guardians   studentGuardianReader
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(students studentRepo, enrollments studentEnrollmentRepo, classes studentClassReader, guardians studentGuardianReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		students:    students,
		enrollments: enrollments,
		classes:     classes,
		guardians:   guardians,
		validate:    validate,
		logger:      logger,
	}
}

// checkSection verifies the section exists and belongs to the class.
func (s *StudentService) checkSection(ctx context.Context, classID, sectionID string) error {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return fmt.Errorf("load class: %w", err)
	}
	if !class.Active {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class is not active")
	}

	section, err := s.classes.FindSection(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return fmt.Errorf("load section: %w", err)
	}
	if section.ClassID != classID {
		return appErrors.Clone(appErrors.ErrValidation, "section does not belong to the class")
	}
	return nil
}

func (s *StudentService) load(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	return student, nil
}

// List returns students matching the filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return s.students.List(ctx, filter)
}

// Get returns a student with enrollment context.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	return s.load(ctx, id)
}

// Create registers a student. When class and section are given the initial
// enrollment opens in the same transaction.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if (req.ClassID == "") != (req.SectionID == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id and section_id must be provided together")
	}

	if req.RollNo != nil && *req.RollNo != "" {
		taken, err := s.students.ExistsRollNo(ctx, *req.RollNo, "")
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already in use")
		}
	}

	var enrollment *models.Enrollment
	if req.ClassID != "" {
		if err := s.checkSection(ctx, req.ClassID, req.SectionID); err != nil {
			return nil, err
		}
		enrollment = &models.Enrollment{ClassID: req.ClassID, SectionID: req.SectionID}
	}

	student := &models.Student{
		Name:           req.Name,
		RollNo:         req.RollNo,
		Phone:          req.Phone,
		Address:        req.Address,
		DateOfBirth:    req.DateOfBirth,
		BayForm:        req.BayForm,
		Caste:          req.Caste,
		PreviousSchool: req.PreviousSchool,
	}
	if err := s.students.Create(ctx, student, enrollment); err != nil {
		return nil, err
	}

	s.logger.Info("student created", zap.String("student_id", student.ID))
	return s.load(ctx, student.ID)
}

// Update edits a student's biographical fields.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.RollNo != nil && *req.RollNo != "" {
		taken, err := s.students.ExistsRollNo(ctx, *req.RollNo, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "roll number already in use")
		}
	}

	student := current.Student
	student.Name = req.Name
	student.RollNo = req.RollNo
	student.Phone = req.Phone
	student.Address = req.Address
	student.DateOfBirth = req.DateOfBirth
	student.BayForm = req.BayForm
	student.Caste = req.Caste
	student.PreviousSchool = req.PreviousSchool

	if err := s.students.Update(ctx, &student); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Enroll opens an enrollment for a student who has none.
func (s *StudentService) Enroll(ctx context.Context, studentID string, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	student, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !student.Active || student.Expelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not active")
	}

	if _, err := s.enrollments.FindOpenByStudent(ctx, studentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an open enrollment")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if err := s.checkSection(ctx, req.ClassID, req.SectionID); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID: studentID,
		ClassID:   req.ClassID,
		SectionID: req.SectionID,
	}
	if req.StartDate != nil {
		enrollment.StartDate = req.StartDate.UTC()
	}
	if err := s.enrollments.Open(ctx, enrollment); err != nil {
		return nil, err
	}

	s.logger.Info("student enrolled",
		zap.String("student_id", studentID),
		zap.String("class_id", req.ClassID))
	return enrollment, nil
}

// Withdraw closes the student's open enrollment. The student record stays
// active; existing vouchers are untouched.
func (s *StudentService) Withdraw(ctx context.Context, studentID string, date *time.Time) error {
	if _, err := s.load(ctx, studentID); err != nil {
		return err
	}

	endDate := time.Now().UTC()
	if date != nil {
		endDate = date.UTC()
	}
	closed, err := s.enrollments.Close(ctx, studentID, endDate)
	if err != nil {
		return err
	}
	if !closed {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no open enrollment")
	}

	s.logger.Info("student withdrawn", zap.String("student_id", studentID))
	return nil
}

// Transfer moves a student between classes or sections without touching
// discounts.
func (s *StudentService) Transfer(ctx context.Context, studentID string, req TransferRequest) (*models.Enrollment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return s.replaceEnrollment(ctx, studentID, req.ClassID, req.SectionID, req.Date, false, "student transferred")
}

// Promote moves a student to the next class, optionally dropping the old
// class discount in the same transaction.
func (s *StudentService) Promote(ctx context.Context, studentID string, req PromoteRequest) (*models.Enrollment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return s.replaceEnrollment(ctx, studentID, req.ClassID, req.SectionID, req.Date, req.ResetDiscount, "student promoted")
}

func (s *StudentService) replaceEnrollment(ctx context.Context, studentID, classID, sectionID string, date *time.Time, resetDiscount bool, event string) (*models.Enrollment, error) {
	student, err := s.load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !student.Active || student.Expelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not active")
	}

	if err := s.checkSection(ctx, classID, sectionID); err != nil {
		return nil, err
	}

	effective := time.Now().UTC()
	if date != nil {
		effective = date.UTC()
	}

	enrollment, err := s.enrollments.Replace(ctx, studentID, classID, sectionID, effective, resetDiscount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no open enrollment")
		}
		return nil, err
	}

	s.logger.Info(event,
		zap.String("student_id", studentID),
		zap.String("class_id", classID),
		zap.Bool("reset_discount", resetDiscount))
	return enrollment, nil
}

// History returns the student's full class history.
func (s *StudentService) History(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	if _, err := s.load(ctx, studentID); err != nil {
		return nil, err
	}
	return s.enrollments.History(ctx, studentID)
}

// Activate re-activates a student. Expelled students must have the expulsion
// cleared first.
func (s *StudentService) Activate(ctx context.Context, studentID string) error {
	student, err := s.load(ctx, studentID)
	if err != nil {
		return err
	}
	if student.Expelled {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "clear the expulsion before activating")
	}
	return s.students.SetActive(ctx, studentID, true)
}

// Deactivate marks a student inactive. Their vouchers and history remain.
func (s *StudentService) Deactivate(ctx context.Context, studentID string) error {
	if _, err := s.load(ctx, studentID); err != nil {
		return err
	}
	return s.students.SetActive(ctx, studentID, false)
}

// Expel marks the student expelled and closes any open enrollment.
func (s *StudentService) Expel(ctx context.Context, studentID string, date *time.Time) error {
	if _, err := s.load(ctx, studentID); err != nil {
		return err
	}
	effective := time.Now().UTC()
	if date != nil {
		effective = date.UTC()
	}
	if err := s.students.Expel(ctx, studentID, effective); err != nil {
		return err
	}
	s.logger.Info("student expelled", zap.String("student_id", studentID))
	return nil
}

// ClearExpulsion lifts the expelled flag without re-activating.
func (s *StudentService) ClearExpulsion(ctx context.Context, studentID string) error {
	if _, err := s.load(ctx, studentID); err != nil {
		return err
	}
	return s.students.ClearExpulsion(ctx, studentID)
}

// Guardians returns a student's linked guardians.
func (s *StudentService) Guardians(ctx context.Context, studentID string) ([]models.StudentGuardian, error) {
	if _, err := s.load(ctx, studentID); err != nil {
		return nil, err
	}
	return s.students.ListGuardians(ctx, studentID)
}

// LinkGuardian attaches a guardian; linking an already linked guardian
// updates the relation.
func (s *StudentService) LinkGuardian(ctx context.Context, studentID string, req LinkGuardianRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := s.load(ctx, studentID); err != nil {
		return err
	}
	if _, err := s.guardians.FindByID(ctx, req.GuardianID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "guardian not found")
		}
		return err
	}
	return s.students.LinkGuardian(ctx, studentID, req.GuardianID, req.Relation)
}

// UnlinkGuardian removes a guardian link.
func (s *StudentService) UnlinkGuardian(ctx context.Context, studentID, guardianID string) error {
	if _, err := s.load(ctx, studentID); err != nil {
		return err
	}
	removed, err := s.students.UnlinkGuardian(ctx, studentID, guardianID)
	if err != nil {
		return err
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "guardian is not linked to this student")
	}
	return nil
}
