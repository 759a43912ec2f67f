package service

import (
	"time"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
)

// DeriveStatus computes a voucher's settlement state from its totals. The
// status is recomputed on every read and never stored.
func DeriveStatus(total, paid float64) models.VoucherStatus {
	switch {
	case paid >= total:
		return models.VoucherPaid
	case paid > 0:
		return models.VoucherPartial
	default:
		return models.VoucherUnpaid
	}
}

// NormalizeMonth truncates a timestamp to the first day of its month in UTC.
// Voucher months are stored normalized so the (subject, month) unique
// constraints compare equal for any two timestamps within the same month.
func NormalizeMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DueDateFor returns the voucher due date: the configured day within the
// voucher's month, clamped to the month's last day.
func DueDateFor(month time.Time, dueDay int) time.Time {
	if dueDay < 1 {
		dueDay = 1
	}
	lastDay := NormalizeMonth(month).AddDate(0, 1, -1).Day()
	if dueDay > lastDay {
		dueDay = lastDay
	}
	return time.Date(month.Year(), month.Month(), dueDay, 0, 0, 0, 0, time.UTC)
}

// DiscountAmount computes the (non-negative) value a discount takes off a
// voucher given the sum of its positive items. PERCENTAGE applies against
// that sum; FLAT is clamped to it so the voucher total can never go negative.
func DiscountAmount(discount *models.Discount, positiveTotal float64) float64 {
	if discount == nil || discount.DiscountValue <= 0 || positiveTotal <= 0 {
		return 0
	}

	var amount float64
	switch discount.DiscountType {
	case models.DiscountPercentage:
		amount = positiveTotal * discount.DiscountValue / 100
	case models.DiscountFlat:
		amount = discount.DiscountValue
	}

	if amount > positiveTotal {
		amount = positiveTotal
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// AdjustmentAmount resolves an adjustment's effective value. PERCENTAGE is
// always relative to the voucher's base salary snapshot, never to a running
// subtotal, so adjustment order cannot change the result.
func AdjustmentAmount(adjustment models.SalaryAdjustment, baseSalary float64) float64 {
	if adjustment.CalcType == models.CalcPercentage {
		return baseSalary * adjustment.Amount / 100
	}
	return adjustment.Amount
}

// NetSalary computes base plus bonuses minus advances.
func NetSalary(baseSalary float64, adjustments []models.SalaryAdjustment) float64 {
	net := baseSalary
	for _, adjustment := range adjustments {
		amount := AdjustmentAmount(adjustment, baseSalary)
		if adjustment.Type == models.AdjustmentAdvance {
			net -= amount
		} else {
			net += amount
		}
	}
	return net
}

// SumItems totals voucher items; SumFeePayments and SumSalaryPayments total
// their ledgers.
func SumItems(items []models.FeeVoucherItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Amount
	}
	return total
}

func SumFeePayments(payments []models.FeePayment) float64 {
	var total float64
	for _, payment := range payments {
		total += payment.Amount
	}
	return total
}

func SumSalaryPayments(payments []models.SalaryPayment) float64 {
	var total float64
	for _, payment := range payments {
		total += payment.Amount
	}
	return total
}
