package settlement

import (
	"github.com/shopspring/decimal"
)

// ConfirmRequest is the receiver's confirmation of a settlement.
// Amount must match the settlement's amount to the cent.
type ConfirmRequest struct {
	PaymentMethod string          `json:"payment_method" example:"bank transfer"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"number" example:"25.50"`
}

// PayRequest is the payer reporting that they sent the money. Paying makes
// the same Pending -> Confirmed transition as confirming, authorized for the
// payer instead of the receiver.
type PayRequest struct {
	PaymentMethod string          `json:"payment_method" example:"cash"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"number" example:"25.50"`
}

// MemberBalance is one member's position in a group balances response.
type MemberBalance struct {
	UserID       int64           `json:"user_id"`
	Name         string          `json:"name"`
	OwesAmount   decimal.Decimal `json:"owes_amount"`
	IsOwedAmount decimal.Decimal `json:"is_owed_amount"`
	NetBalance   decimal.Decimal `json:"net_balance"`
}

// GroupBalancesResponse reports every member's derived position.
type GroupBalancesResponse struct {
	GroupID int64           `json:"group_id"`
	Window  string          `json:"window"`
	Members []MemberBalance `json:"members"`
}

// FinalizeResponse is the outcome of a finalization round: the full
// settlement state of the group after planning.
type FinalizeResponse struct {
	GroupID     int64         `json:"group_id"`
	Settlements []*Settlement `json:"settlements"`
}

// SummaryResponse aggregates a group's settlement state.
type SummaryResponse struct {
	GroupID        int64           `json:"group_id"`
	PendingCount   int             `json:"pending_count"`
	ConfirmedCount int             `json:"confirmed_count"`
	PendingTotal   decimal.Decimal `json:"pending_total"`
	ConfirmedTotal decimal.Decimal `json:"confirmed_total"`
	FullySettled   bool            `json:"fully_settled"`
}
