package models

import "time"

// Faculty represents a salaried staff member.
type Faculty struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	CNIC        *string    `db:"cnic" json:"cnic,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Role        string     `db:"role" json:"role"`
	JoiningDate *time.Time `db:"joining_date" json:"joining_date,omitempty"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// FacultyFilter captures filtering criteria for listing faculty.
type FacultyFilter struct {
	Search   string
	Role     string
	Active   *bool
	Page     int
	PageSize int
}

// SalaryStructureVersion is one append-only version of a faculty salary.
// Same effective-dated semantics as FeeStructureVersion.
type SalaryStructureVersion struct {
	ID            string    `db:"id" json:"id"`
	FacultyID     string    `db:"faculty_id" json:"faculty_id"`
	EffectiveFrom time.Time `db:"effective_from" json:"effective_from"`
	BaseSalary    float64   `db:"base_salary" json:"base_salary"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
