package models

import "time"

// Expense is a school operating expense entry.
type Expense struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Amount      float64   `db:"amount" json:"amount"`
	ExpenseDate time.Time `db:"expense_date" json:"expense_date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ExpenseFilter captures filtering criteria for listing expenses.
type ExpenseFilter struct {
	Search   string
	FromDate *time.Time
	ToDate   *time.Time
	Page     int
	PageSize int
}

// ExpenseSummary is a date-ranged expense rollup.
type ExpenseSummary struct {
	Count int     `db:"count" json:"count"`
	Total float64 `db:"total" json:"total"`
}
