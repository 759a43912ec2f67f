package models

import "time"

// VoucherStatus is the derived settlement state of a voucher. It is computed
// from items and payments on every read and never stored in a column.
type VoucherStatus string

const (
	VoucherPaid    VoucherStatus = "PAID"
	VoucherPartial VoucherStatus = "PARTIAL"
	VoucherUnpaid  VoucherStatus = "UNPAID"
)

// Well-known fee voucher item types. Custom types (arrears, transport, ...)
// are free-form strings supplied by the caller.
const (
	ItemAdmission = "ADMISSION"
	ItemMonthly   = "MONTHLY"
	ItemPaperFund = "PAPER_FUND"
	ItemDiscount  = "DISCOUNT"
)

// FeeVoucher is the header row of a monthly fee demand. The month column is
// normalized to the first day of the month; (enrollment_id, month) is unique
// at the database level.
type FeeVoucher struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Month        time.Time `db:"month" json:"month"`
	DueDate      time.Time `db:"due_date" json:"due_date"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// FeeVoucherItem is a single charge (or negative DISCOUNT line) on a voucher.
// Items are append-only; the voucher total is the sum of its item amounts.
type FeeVoucherItem struct {
	ID        string  `db:"id" json:"id"`
	VoucherID string  `db:"voucher_id" json:"voucher_id"`
	ItemType  string  `db:"item_type" json:"item_type"`
	Amount    float64 `db:"amount" json:"amount"`
}

// VoucherItemInput is a caller-supplied custom line item.
type VoucherItemInput struct {
	ItemType string  `json:"item_type" validate:"required"`
	Amount   float64 `json:"amount" validate:"required"`
}

// FeePayment is one append-only row of the payment ledger.
type FeePayment struct {
	ID          string    `db:"id" json:"id"`
	VoucherID   string    `db:"voucher_id" json:"voucher_id"`
	Amount      float64   `db:"amount" json:"amount"`
	PaymentDate time.Time `db:"payment_date" json:"payment_date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// VoucherSummary is a voucher list row with derived totals.
type VoucherSummary struct {
	VoucherID   string        `db:"voucher_id" json:"voucher_id"`
	Month       time.Time     `db:"month" json:"month"`
	DueDate     time.Time     `db:"due_date" json:"due_date"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	StudentID   string        `db:"student_id" json:"student_id"`
	StudentName string        `db:"student_name" json:"student_name"`
	RollNo      *string       `db:"roll_no" json:"roll_no,omitempty"`
	ClassID     string        `db:"class_id" json:"class_id"`
	ClassName   string        `db:"class_name" json:"class_name"`
	SectionID   string        `db:"section_id" json:"section_id"`
	SectionName string        `db:"section_name" json:"section_name"`
	TotalFee    float64       `db:"total_fee" json:"total_fee"`
	PaidAmount  float64       `db:"paid_amount" json:"paid_amount"`
	DueAmount   float64       `db:"due_amount" json:"due_amount"`
	Status      VoucherStatus `db:"-" json:"status"`
}

// VoucherDetail is the full voucher view with items and payments.
type VoucherDetail struct {
	VoucherSummary
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	Items        []FeeVoucherItem `json:"items"`
	Payments     []FeePayment     `json:"payments"`
}

// VoucherFilter captures filtering criteria for listing vouchers.
type VoucherFilter struct {
	StudentID string
	ClassID   string
	SectionID string
	Month     *time.Time
	Status    VoucherStatus
	FromDate  *time.Time
	ToDate    *time.Time
	Page      int
	PageSize  int
}

// PaymentFilter captures filtering criteria for listing payments.
type PaymentFilter struct {
	StudentID string
	ClassID   string
	SectionID string
	FromDate  *time.Time
	ToDate    *time.Time
	Page      int
	PageSize  int
}

// BulkOutcome is one per-subject result of a bulk generation run.
type BulkOutcome struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	VoucherID   string `json:"voucher_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// BulkSummary aggregates bulk generation counts.
type BulkSummary struct {
	Total     int `json:"total"`
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// BulkResult is the complete outcome of a bulk generation run. Partial
// failure is expected and reported per subject, never propagated as a hard
// failure of the whole call.
type BulkResult struct {
	Summary   BulkSummary   `json:"summary"`
	Generated []BulkOutcome `json:"generated"`
	Skipped   []BulkOutcome `json:"skipped"`
	Failed    []BulkOutcome `json:"failed"`
}

// Defaulter is a student with outstanding dues across open vouchers.
type Defaulter struct {
	StudentID     string  `db:"student_id" json:"student_id"`
	StudentName   string  `db:"student_name" json:"student_name"`
	RollNo        *string `db:"roll_no" json:"roll_no,omitempty"`
	Phone         *string `db:"phone" json:"phone,omitempty"`
	ClassID       string  `db:"class_id" json:"class_id"`
	ClassName     string  `db:"class_name" json:"class_name"`
	SectionID     string  `db:"section_id" json:"section_id"`
	SectionName   string  `db:"section_name" json:"section_name"`
	TotalVouchers int     `db:"total_vouchers" json:"total_vouchers"`
	TotalFee      float64 `db:"total_fee" json:"total_fee"`
	PaidAmount    float64 `db:"paid_amount" json:"paid_amount"`
	DueAmount     float64 `db:"due_amount" json:"due_amount"`
}

// FeeStats is the collection rollup for a month.
type FeeStats struct {
	Month        time.Time `db:"month" json:"month"`
	VoucherCount int       `db:"voucher_count" json:"voucher_count"`
	Expected     float64   `db:"expected" json:"expected"`
	Collected    float64   `db:"collected" json:"collected"`
	Outstanding  float64   `db:"outstanding" json:"outstanding"`
}

// StudentDue is the aggregate outstanding balance for one student.
type StudentDue struct {
	StudentID  string  `db:"student_id" json:"student_id"`
	TotalFee   float64 `db:"total_fee" json:"total_fee"`
	PaidAmount float64 `db:"paid_amount" json:"paid_amount"`
	DueAmount  float64 `db:"due_amount" json:"due_amount"`
}
