package split

import "github.com/shopspring/decimal"

// ExactStrategy assigns each participant a caller-specified amount.
// The amounts must sum exactly to the total.
type ExactStrategy struct{}

// Type returns the split type identifier
func (s *ExactStrategy) Type() Type {
	return TypeExact
}

// Validate checks if the inputs are valid for an exact split
func (s *ExactStrategy) Validate(total decimal.Decimal, participants []Participant) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if total.IsNegative() {
		return ErrNegativeAmount
	}

	var sum decimal.Decimal
	for _, p := range participants {
		if p.Amount == nil {
			return ErrMissingExactAmount
		}
		if p.Amount.IsNegative() {
			return ErrNegativeAmount
		}
		sum = sum.Add(*p.Amount)
	}

	if !sum.Equal(total) {
		return ErrInvalidExactAmounts
	}

	return nil
}

// Calculate returns the exact amounts specified for each participant
func (s *ExactStrategy) Calculate(total decimal.Decimal, payerID int64, participants []Participant) ([]Share, error) {
	if err := s.Validate(total, participants); err != nil {
		return nil, err
	}

	if payerIndex(payerID, participants) < 0 {
		return nil, ErrPayerNotParticipant
	}

	shares := make([]Share, len(participants))
	for i, p := range participants {
		shares[i] = Share{UserID: p.UserID, Amount: p.Amount.Round(2)}
	}

	return shares, nil
}
