package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	RollNo         *string    `db:"roll_no" json:"roll_no,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Address        *string    `db:"address" json:"address,omitempty"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	BayForm        *string    `db:"bay_form" json:"bay_form,omitempty"`
	Caste          *string    `db:"caste" json:"caste,omitempty"`
	PreviousSchool *string    `db:"previous_school" json:"previous_school,omitempty"`
	Expelled       bool       `db:"expelled" json:"expelled"`
	Active         bool       `db:"active" json:"active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	SectionID string
	Active    *bool
	Expelled  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains student information with current enrollment context.
type StudentDetail struct {
	Student
	EnrollmentID       *string    `db:"enrollment_id" json:"enrollment_id,omitempty"`
	CurrentClassID     *string    `db:"current_class_id" json:"current_class_id,omitempty"`
	CurrentClassName   *string    `db:"current_class_name" json:"current_class_name,omitempty"`
	CurrentSectionID   *string    `db:"current_section_id" json:"current_section_id,omitempty"`
	CurrentSectionName *string    `db:"current_section_name" json:"current_section_name,omitempty"`
	EnrolledSince      *time.Time `db:"enrolled_since" json:"enrolled_since,omitempty"`
}

// Guardian represents a parent or caretaker linked to one or more students.
type Guardian struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	CNIC       *string   `db:"cnic" json:"cnic,omitempty"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
	Occupation *string   `db:"occupation" json:"occupation,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentGuardian is a guardian joined with the relation to a student.
type StudentGuardian struct {
	Guardian
	Relation string `db:"relation" json:"relation"`
}

// GuardianFilter captures search parameters for listing guardians.
type GuardianFilter struct {
	Search   string
	Page     int
	PageSize int
}
