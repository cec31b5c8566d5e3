package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairsplit/fairsplit/internal/expense/split"
)

// CreateSplitRequest represents the request body for logging a split expense
type CreateSplitRequest struct {
	GroupID      int64               `json:"group_id" validate:"required"`
	Amount       decimal.Decimal     `json:"amount" validate:"required"`
	Description  string              `json:"description" validate:"required,max=255"`
	PaidByUserID int64               `json:"paid_by_user_id,omitempty"` // defaults to the authenticated user
	SplitType    string              `json:"split_type,omitempty"`      // defaults to EQUAL
	Participants []split.Participant `json:"participants,omitempty"`    // required for EXACT and PERCENTAGE
	SpentAt      *time.Time          `json:"date,omitempty"`
}

// ExpenseResponse represents the response for a single expense
type ExpenseResponse struct {
	ID          int64           `json:"id"`
	GroupID     int64           `json:"group_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	PaidByUser  PayerResponse   `json:"paid_by_user"`
	SplitType   string          `json:"split_type"`
	IsSettled   bool            `json:"is_settled"`
	Date        string          `json:"date"`
}

// PayerResponse identifies the member who paid an expense
type PayerResponse struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

// ToResponse converts an Expense model to an ExpenseResponse DTO
func (e *Expense) ToResponse() *ExpenseResponse {
	return &ExpenseResponse{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Amount:      e.Amount,
		Description: e.Description,
		PaidByUser:  PayerResponse{UserID: e.PaidByUserID, Name: e.PayerName},
		SplitType:   e.SplitType,
		IsSettled:   e.IsSettled,
		Date:        e.SpentAt.Format("2006-01-02T15:04:05Z"),
	}
}
