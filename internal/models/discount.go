package models

import "time"

// DiscountType determines how a discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFlat       DiscountType = "FLAT"
)

// Discount is a per (student, class) concession. Unique on that pair with
// upsert semantics; removed for the old class when a student is promoted
// with reset_discount.
type Discount struct {
	ID            string       `db:"id" json:"id"`
	StudentID     string       `db:"student_id" json:"student_id"`
	ClassID       string       `db:"class_id" json:"class_id"`
	DiscountType  DiscountType `db:"discount_type" json:"discount_type"`
	DiscountValue float64      `db:"discount_value" json:"discount_value"`
	Reason        *string      `db:"reason" json:"reason,omitempty"`
	AppliedBy     *string      `db:"applied_by" json:"applied_by,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// DiscountDetail adds student and class names for list responses.
type DiscountDetail struct {
	Discount
	StudentName string  `db:"student_name" json:"student_name"`
	StudentRoll *string `db:"student_roll" json:"student_roll,omitempty"`
	ClassName   string  `db:"class_name" json:"class_name"`
}

// DiscountFilter captures filtering criteria for listing discounts.
type DiscountFilter struct {
	StudentID string
	ClassID   string
	Page      int
	PageSize  int
}
