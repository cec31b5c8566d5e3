package expense

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairsplit/fairsplit/internal/balance"
)

// Repository handles expense data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts an expense and its stored shares in one transaction
func (r *Repository) Create(ctx context.Context, groupID, paidByUserID int64, amount decimal.Decimal, description, splitType string, spentAt time.Time, shares []Share) (*Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO expenses (group_id, paid_by_user_id, amount, description, split_type, spent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, group_id, paid_by_user_id, amount, description, split_type, is_settled, spent_at, created_at
	`

	expense := &Expense{}
	err = tx.QueryRowContext(ctx, query, groupID, paidByUserID, amount, description, splitType, spentAt).Scan(
		&expense.ID,
		&expense.GroupID,
		&expense.PaidByUserID,
		&expense.Amount,
		&expense.Description,
		&expense.SplitType,
		&expense.IsSettled,
		&expense.SpentAt,
		&expense.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}

	for _, share := range shares {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_shares (expense_id, user_id, amount) VALUES ($1, $2, $3)`,
			expense.ID, share.UserID, share.Amount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create expense share: %w", err)
		}
	}
	expense.Shares = shares

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit expense: %w", err)
	}

	return expense, nil
}

// GetByID retrieves an expense by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Expense, error) {
	query := `
		SELECT e.id, e.group_id, e.paid_by_user_id, e.amount, e.description,
		       e.split_type, e.is_settled, e.spent_at, e.created_at, u.name
		FROM expenses e
		JOIN users u ON e.paid_by_user_id = u.id
		WHERE e.id = $1
	`

	expense := &Expense{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&expense.ID,
		&expense.GroupID,
		&expense.PaidByUserID,
		&expense.Amount,
		&expense.Description,
		&expense.SplitType,
		&expense.IsSettled,
		&expense.SpentAt,
		&expense.CreatedAt,
		&expense.PayerName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return expense, nil
}

// ListByGroup retrieves a group's expenses inside the window, newest first
func (r *Repository) ListByGroup(ctx context.Context, groupID int64, window balance.Window) ([]*Expense, error) {
	query := `
		SELECT e.id, e.group_id, e.paid_by_user_id, e.amount, e.description,
		       e.split_type, e.is_settled, e.spent_at, e.created_at, u.name
		FROM expenses e
		JOIN users u ON e.paid_by_user_id = u.id
		WHERE e.group_id = $1
		  AND ($2::timestamptz IS NULL OR e.spent_at >= $2)
		  AND ($3::timestamptz IS NULL OR e.spent_at < $3)
		ORDER BY e.spent_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		expense := &Expense{}
		if err := rows.Scan(
			&expense.ID,
			&expense.GroupID,
			&expense.PaidByUserID,
			&expense.Amount,
			&expense.Description,
			&expense.SplitType,
			&expense.IsSettled,
			&expense.SpentAt,
			&expense.CreatedAt,
			&expense.PayerName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}

	return expenses, rows.Err()
}

// ListUnsettledByGroup retrieves the unsettled expenses the balance
// calculator consumes, with stored shares attached for non-EQUAL splits.
func (r *Repository) ListUnsettledByGroup(ctx context.Context, groupID int64, window balance.Window) ([]*Expense, error) {
	query := `
		SELECT e.id, e.group_id, e.paid_by_user_id, e.amount, e.description,
		       e.split_type, e.is_settled, e.spent_at, e.created_at
		FROM expenses e
		WHERE e.group_id = $1
		  AND NOT e.is_settled
		  AND ($2::timestamptz IS NULL OR e.spent_at >= $2)
		  AND ($3::timestamptz IS NULL OR e.spent_at < $3)
		ORDER BY e.spent_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsettled expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	byID := make(map[int64]*Expense)
	needShares := false
	for rows.Next() {
		expense := &Expense{}
		if err := rows.Scan(
			&expense.ID,
			&expense.GroupID,
			&expense.PaidByUserID,
			&expense.Amount,
			&expense.Description,
			&expense.SplitType,
			&expense.IsSettled,
			&expense.SpentAt,
			&expense.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
		byID[expense.ID] = expense
		if expense.SplitType != "EQUAL" {
			needShares = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !needShares {
		return expenses, nil
	}

	shareQuery := `
		SELECT s.expense_id, s.user_id, s.amount
		FROM expense_shares s
		JOIN expenses e ON s.expense_id = e.id
		WHERE e.group_id = $1 AND NOT e.is_settled
	`
	shareRows, err := r.db.QueryContext(ctx, shareQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expense shares: %w", err)
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var expenseID int64
		share := Share{}
		if err := shareRows.Scan(&expenseID, &share.UserID, &share.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan expense share: %w", err)
		}
		if expense, ok := byID[expenseID]; ok {
			expense.Shares = append(expense.Shares, share)
		}
	}

	return expenses, shareRows.Err()
}
