package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is one record in the append-only group ledger. Expenses are never
// edited or deleted; is_settled flips once a finalization round covering the
// expense has been fully confirmed.
type Expense struct {
	ID           int64           `json:"id"`
	GroupID      int64           `json:"group_id"`
	PaidByUserID int64           `json:"paid_by_user_id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	SplitType    string          `json:"split_type"`
	IsSettled    bool            `json:"is_settled"`
	SpentAt      time.Time       `json:"date"`
	CreatedAt    time.Time       `json:"created_at"`

	// Populated via JOIN
	PayerName string `json:"payer_name,omitempty"`

	// Stored shares, only present for non-EQUAL splits
	Shares []Share `json:"shares,omitempty"`
}

// Share is a stored per-member portion of a non-EQUAL expense
type Share struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}
