package models

import "time"

// MonthlyFinance is the income-vs-expense rollup for one month.
type MonthlyFinance struct {
	Month         time.Time `db:"month" json:"month"`
	FeesCollected float64   `db:"fees_collected" json:"fees_collected"`
	SalariesPaid  float64   `db:"salaries_paid" json:"salaries_paid"`
	Expenses      float64   `db:"expenses" json:"expenses"`
	Net           float64   `db:"net" json:"net"`
}

// ClassCollection is the per-class fee collection rollup.
type ClassCollection struct {
	ClassID     string  `db:"class_id" json:"class_id"`
	ClassName   string  `db:"class_name" json:"class_name"`
	Vouchers    int     `db:"vouchers" json:"vouchers"`
	Expected    float64 `db:"expected" json:"expected"`
	Collected   float64 `db:"collected" json:"collected"`
	Outstanding float64 `db:"outstanding" json:"outstanding"`
}

// ReportExport describes a generated export file with its signed download.
type ReportExport struct {
	FileName    string    `json:"file_name"`
	Format      string    `json:"format"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
