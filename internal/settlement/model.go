package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a settlement.
// Pending -> Confirmed is the only transition; Confirmed is terminal.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
)

// Settlement is a persisted payer -> receiver transfer produced by
// finalizing a group's balances. Settlements are never deleted; they form
// the historical ledger of who settled what.
type Settlement struct {
	ID             int64           `json:"id"`
	GroupID        int64           `json:"group_id"`
	PayerUserID    int64           `json:"payer_user_id"`
	ReceiverUserID int64           `json:"receiver_user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Status         Status          `json:"status"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	PaymentDate    *time.Time      `json:"payment_date,omitempty"`
	PaymentMethod  *string         `json:"payment_method,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`

	// Populated via JOIN
	PayerName    string `json:"payer_name,omitempty"`
	ReceiverName string `json:"receiver_name,omitempty"`
}

// Transfer is a planned, not yet persisted, payer -> receiver payment.
type Transfer struct {
	PayerUserID    int64           `json:"payer_user_id"`
	ReceiverUserID int64           `json:"receiver_user_id"`
	Amount         decimal.Decimal `json:"amount"`
}

// Pair identifies a directed payer -> receiver edge within a group.
type Pair struct {
	PayerUserID    int64
	ReceiverUserID int64
}

// filterConfirmed drops planned transfers whose pair already has a Confirmed
// settlement in the open round. Confirmed settlements are not subtracted from
// the ledger, so replanning would regenerate an equivalent transfer and
// re-bill the pair without this filter. Pairs from closed rounds must not be
// in the map: their expenses are settled and out of the ledger, so a planned
// transfer between them is a genuinely new debt.
func filterConfirmed(transfers []Transfer, confirmed map[Pair]bool) []Transfer {
	if len(confirmed) == 0 {
		return transfers
	}
	kept := transfers[:0]
	for _, t := range transfers {
		if !confirmed[Pair{t.PayerUserID, t.ReceiverUserID}] {
			kept = append(kept, t)
		}
	}
	return kept
}
