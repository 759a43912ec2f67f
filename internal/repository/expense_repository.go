package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Mahad-Ghauri/School-Backend/internal/models"
)

// ExpenseRepository handles operating expense entries.
type ExpenseRepository struct {
	db *sqlx.DB
}

// NewExpenseRepository constructs the repository.
func NewExpenseRepository(db *sqlx.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func expenseConditions(filter models.ExpenseFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.FromDate != nil {
		conditions = append(conditions, fmt.Sprintf("expense_date >= $%d", len(args)+1))
		args = append(args, *filter.FromDate)
	}
	if filter.ToDate != nil {
		conditions = append(conditions, fmt.Sprintf("expense_date <= $%d", len(args)+1))
		args = append(args, *filter.ToDate)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns expenses filtered by the provided criteria.
func (r *ExpenseRepository) List(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, int, error) {
	clause, args := expenseConditions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, title, amount, expense_date, created_at
        FROM expenses%s ORDER BY expense_date DESC, created_at DESC LIMIT %d OFFSET %d`, clause, size, offset)

	var expenses []models.Expense
	if err := r.db.SelectContext(ctx, &expenses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM expenses"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}
	return expenses, total, nil
}

// FindByID returns an expense, or sql.ErrNoRows.
func (r *ExpenseRepository) FindByID(ctx context.Context, id string) (*models.Expense, error) {
	const query = `SELECT id, title, amount, expense_date, created_at FROM expenses WHERE id = $1`
	var expense models.Expense
	if err := r.db.GetContext(ctx, &expense, query, id); err != nil {
		return nil, err
	}
	return &expense, nil
}

// Create persists a new expense entry.
func (r *ExpenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.NewString()
	}
	expense.CreatedAt = time.Now().UTC()
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = expense.CreatedAt
	}

	const query = `INSERT INTO expenses (id, title, amount, expense_date, created_at)
        VALUES (:id, :title, :amount, :expense_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, expense); err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

// Update applies changes to an expense row.
func (r *ExpenseRepository) Update(ctx context.Context, expense *models.Expense) error {
	const query = `UPDATE expenses SET title = :title, amount = :amount, expense_date = :expense_date WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, expense); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return nil
}

// Delete removes an expense, reporting whether a row was removed.
func (r *ExpenseRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete expense: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete expense result: %w", err)
	}
	return rows > 0, nil
}

// Summary returns the count and total of expenses matching the filter.
func (r *ExpenseRepository) Summary(ctx context.Context, filter models.ExpenseFilter) (*models.ExpenseSummary, error) {
	clause, args := expenseConditions(filter)
	query := "SELECT COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total FROM expenses" + clause

	var summary models.ExpenseSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("expense summary: %w", err)
	}
	return &summary, nil
}
