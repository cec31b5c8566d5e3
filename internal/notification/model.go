package notification

import "time"

// Type classifies a notification
type Type string

const (
	TypeSettlementDue Type = "SETTLEMENT_DUE"
	TypeInfo          Type = "INFO"
	TypeWarning       Type = "WARNING"
)

// Notification is a stored message for a user. Delivery is pull-based: the
// client polls its list and marks entries read.
type Notification struct {
	ID           int64     `json:"id"`
	RecipientID  int64     `json:"recipient_id"`
	Type         Type      `json:"type"`
	Message      string    `json:"message"`
	IsRead       bool      `json:"is_read"`
	SettlementID *int64    `json:"settlement_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
