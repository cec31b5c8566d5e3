package split

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Type identifies a split strategy
type Type string

const (
	TypeEqual      Type = "EQUAL"
	TypeExact      Type = "EXACT"
	TypePercentage Type = "PERCENTAGE"
)

// Participant is one member of a split with the optional per-strategy value
type Participant struct {
	UserID     int64            `json:"user_id"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"` // For PERCENTAGE split
	Amount     *decimal.Decimal `json:"amount,omitempty"`     // For EXACT split
}

// Share is the computed portion of the total owed by a single participant.
// Shares always include the payer's own portion and sum exactly to the total.
type Share struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Strategy is the interface that all split strategies must implement
type Strategy interface {
	// Calculate computes every participant's share of the total. The payer
	// absorbs any rounding remainder so the shares sum exactly to the total.
	Calculate(total decimal.Decimal, payerID int64, participants []Participant) ([]Share, error)

	// Type returns the type identifier for this strategy
	Type() Type

	// Validate checks if the inputs are valid for this strategy
	Validate(total decimal.Decimal, participants []Participant) error
}

// Factory creates split strategies based on the requested type
type Factory struct{}

// NewFactory creates a new factory instance
func NewFactory() *Factory {
	return &Factory{}
}

// Create returns the appropriate strategy implementation based on the type
func (f *Factory) Create(splitType Type) (Strategy, error) {
	switch splitType {
	case TypeEqual:
		return &EqualStrategy{}, nil
	case TypeExact:
		return &ExactStrategy{}, nil
	case TypePercentage:
		return &PercentageStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown split type: %s", splitType)
	}
}

// CreateFromString creates a strategy from a string type (useful for API requests)
func (f *Factory) CreateFromString(splitType string) (Strategy, error) {
	return f.Create(Type(splitType))
}

var (
	ErrNoParticipants       = errors.New("at least one participant is required")
	ErrInvalidPercentages   = errors.New("percentages must sum to 100")
	ErrInvalidExactAmounts  = errors.New("exact amounts must sum to total amount")
	ErrNegativeAmount       = errors.New("amounts cannot be negative")
	ErrMissingPercentage    = errors.New("percentage value required for all participants")
	ErrMissingExactAmount   = errors.New("exact amount required for all participants")
	ErrPercentageOutOfRange = errors.New("percentage must be between 0 and 100")
	ErrPayerNotParticipant  = errors.New("payer must be a participant")
)

var hundred = decimal.NewFromInt(100)

// payerIndex finds the payer's position among the participants
func payerIndex(payerID int64, participants []Participant) int {
	for i, p := range participants {
		if p.UserID == payerID {
			return i
		}
	}
	return -1
}
