package models

import "time"

// Enrollment is one row of a student's class history. A student has at most
// one open row (end_date IS NULL) at any time.
type Enrollment struct {
	ID        string     `db:"id" json:"id"`
	StudentID string     `db:"student_id" json:"student_id"`
	ClassID   string     `db:"class_id" json:"class_id"`
	SectionID string     `db:"section_id" json:"section_id"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// EnrollmentDetail is an enrollment with contextual names for responses.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	ClassName   string `db:"class_name" json:"class_name"`
	SectionName string `db:"section_name" json:"section_name"`
}

// EnrollmentRoster is the slim row used by bulk voucher generation.
type EnrollmentRoster struct {
	EnrollmentID string `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string `db:"student_id" json:"student_id"`
	StudentName  string `db:"student_name" json:"student_name"`
}
