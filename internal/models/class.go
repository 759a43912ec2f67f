package models

import "time"

// Class represents an academic class (grade level).
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ClassType string    `db:"class_type" json:"class_type"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Section is a subdivision of a class.
type Section struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Search    string
	ClassType string
	Active    *bool
	Page      int
	PageSize  int
}

// FeeStructureVersion is one append-only version of a class fee structure.
// The version in force for a month is the latest effective_from <= month.
// Rows are never mutated after insertion; generated vouchers snapshot their
// amounts as items, so historical vouchers stay reproducible.
type FeeStructureVersion struct {
	ID            string    `db:"id" json:"id"`
	ClassID       string    `db:"class_id" json:"class_id"`
	EffectiveFrom time.Time `db:"effective_from" json:"effective_from"`
	AdmissionFee  float64   `db:"admission_fee" json:"admission_fee"`
	MonthlyFee    float64   `db:"monthly_fee" json:"monthly_fee"`
	PaperFund     float64   `db:"paper_fund" json:"paper_fund"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
