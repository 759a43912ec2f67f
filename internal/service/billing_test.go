package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
)

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, models.VoucherUnpaid, DeriveStatus(5000, 0))
	assert.Equal(t, models.VoucherPartial, DeriveStatus(5000, 2500))
	assert.Equal(t, models.VoucherPaid, DeriveStatus(5000, 5000))
	assert.Equal(t, models.VoucherPaid, DeriveStatus(0, 0))
}

func TestNormalizeMonth(t *testing.T) {
	in := time.Date(2025, 2, 17, 13, 45, 0, 0, time.FixedZone("PKT", 5*3600))
	got := NormalizeMonth(in)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), got)

	// Any two timestamps within the same month normalize identically.
	other := time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, got, NormalizeMonth(other))
}

func TestDueDateFor(t *testing.T) {
	month := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), DueDateFor(month, 10))
	// Clamped to the last day of a short month.
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), DueDateFor(month, 31))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), DueDateFor(month, 0))
}

func TestDiscountAmount(t *testing.T) {
	percentage := &models.Discount{DiscountType: models.DiscountPercentage, DiscountValue: 25}
	assert.InDelta(t, 1250, DiscountAmount(percentage, 5000), 0.001)

	flat := &models.Discount{DiscountType: models.DiscountFlat, DiscountValue: 800}
	assert.InDelta(t, 800, DiscountAmount(flat, 5000), 0.001)

	// A flat discount larger than the charges is clamped so the voucher
	// total never goes negative.
	oversized := &models.Discount{DiscountType: models.DiscountFlat, DiscountValue: 9000}
	assert.InDelta(t, 5000, DiscountAmount(oversized, 5000), 0.001)

	full := &models.Discount{DiscountType: models.DiscountPercentage, DiscountValue: 100}
	assert.InDelta(t, 5000, DiscountAmount(full, 5000), 0.001)

	assert.Zero(t, DiscountAmount(nil, 5000))
	assert.Zero(t, DiscountAmount(percentage, 0))
}

func TestNetSalary(t *testing.T) {
	adjustments := []models.SalaryAdjustment{
		{Type: models.AdjustmentBonus, CalcType: models.CalcFlat, Amount: 2000},
		{Type: models.AdjustmentAdvance, CalcType: models.CalcFlat, Amount: 5000},
	}
	assert.InDelta(t, 47000, NetSalary(50000, adjustments), 0.001)
}

func TestNetSalaryPercentageAgainstBase(t *testing.T) {
	// Both percentage adjustments resolve against the base snapshot, so
	// their order is irrelevant.
	adjustments := []models.SalaryAdjustment{
		{Type: models.AdjustmentBonus, CalcType: models.CalcPercentage, Amount: 10},
		{Type: models.AdjustmentAdvance, CalcType: models.CalcPercentage, Amount: 20},
	}
	assert.InDelta(t, 45000, NetSalary(50000, adjustments), 0.001)

	reversed := []models.SalaryAdjustment{adjustments[1], adjustments[0]}
	assert.InDelta(t, NetSalary(50000, adjustments), NetSalary(50000, reversed), 0.001)
}

func TestSumHelpers(t *testing.T) {
	items := []models.FeeVoucherItem{
		{ItemType: models.ItemMonthly, Amount: 5000},
		{ItemType: models.ItemPaperFund, Amount: 500},
		{ItemType: models.ItemDiscount, Amount: -1000},
	}
	assert.InDelta(t, 4500, SumItems(items), 0.001)

	payments := []models.FeePayment{{Amount: 2500}, {Amount: 2000}}
	assert.InDelta(t, 4500, SumFeePayments(payments), 0.001)

	salaryPayments := []models.SalaryPayment{{Amount: 30000}, {Amount: 17000}}
	assert.InDelta(t, 47000, SumSalaryPayments(salaryPayments), 0.001)
}
