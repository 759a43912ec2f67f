package models

import "time"

// AdjustmentType classifies a salary adjustment.
type AdjustmentType string

const (
	AdjustmentBonus   AdjustmentType = "BONUS"
	AdjustmentAdvance AdjustmentType = "ADVANCE"
)

// CalcType determines how an adjustment amount is interpreted. PERCENTAGE is
// always relative to the voucher's base salary snapshot, never cumulative.
type CalcType string

const (
	CalcFlat       CalcType = "FLAT"
	CalcPercentage CalcType = "PERCENTAGE"
)

// SalaryVoucher is the header row of a monthly salary demand. base_salary is
// snapshotted from the structure version in force at generation time so a
// retroactive structure insert never changes an existing voucher.
type SalaryVoucher struct {
	ID         string    `db:"id" json:"id"`
	FacultyID  string    `db:"faculty_id" json:"faculty_id"`
	Month      time.Time `db:"month" json:"month"`
	BaseSalary float64   `db:"base_salary" json:"base_salary"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SalaryAdjustment is a bonus or advance recorded against a voucher.
type SalaryAdjustment struct {
	ID        string         `db:"id" json:"id"`
	VoucherID string         `db:"voucher_id" json:"voucher_id"`
	Type      AdjustmentType `db:"type" json:"type"`
	Amount    float64        `db:"amount" json:"amount"`
	CalcType  CalcType       `db:"calc_type" json:"calc_type"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// AdjustmentInput is a caller-supplied adjustment at generation time.
type AdjustmentInput struct {
	Type     AdjustmentType `json:"type" validate:"required,oneof=BONUS ADVANCE"`
	Amount   float64        `json:"amount" validate:"required,gt=0"`
	CalcType CalcType       `json:"calc_type" validate:"required,oneof=FLAT PERCENTAGE"`
}

// SalaryPayment is one append-only row of the salary payment ledger.
type SalaryPayment struct {
	ID          string    `db:"id" json:"id"`
	VoucherID   string    `db:"voucher_id" json:"voucher_id"`
	Amount      float64   `db:"amount" json:"amount"`
	PaymentDate time.Time `db:"payment_date" json:"payment_date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SalaryVoucherDetail is the full salary voucher view with derived amounts.
type SalaryVoucherDetail struct {
	SalaryVoucher
	FacultyName string             `db:"faculty_name" json:"faculty_name"`
	FacultyRole string             `db:"faculty_role" json:"faculty_role"`
	Adjustments []SalaryAdjustment `db:"-" json:"adjustments"`
	Payments    []SalaryPayment    `db:"-" json:"payments"`
	NetSalary   float64            `db:"net_salary" json:"net_salary"`
	PaidAmount  float64            `db:"paid_amount" json:"paid_amount"`
	DueAmount   float64            `db:"due_amount" json:"due_amount"`
	Status      VoucherStatus      `db:"-" json:"status"`
}

// SalaryVoucherFilter captures filtering criteria for listing vouchers.
type SalaryVoucherFilter struct {
	FacultyID string
	Month     *time.Time
	FromDate  *time.Time
	ToDate    *time.Time
	Status    VoucherStatus
	Page      int
	PageSize  int
}

// SalaryStats is the payroll rollup for a month.
type SalaryStats struct {
	Month        time.Time `db:"month" json:"month"`
	VoucherCount int       `db:"voucher_count" json:"voucher_count"`
	TotalBase    float64   `db:"total_base" json:"total_base"`
	Paid         float64   `db:"paid" json:"paid"`
}
