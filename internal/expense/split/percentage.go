package split

import "github.com/shopspring/decimal"

// PercentageStrategy divides the total by caller-specified percentages.
// The percentages must sum to 100; the payer absorbs the rounding remainder.
type PercentageStrategy struct{}

// Type returns the split type identifier
func (s *PercentageStrategy) Type() Type {
	return TypePercentage
}

// Validate checks if the inputs are valid for a percentage split
func (s *PercentageStrategy) Validate(total decimal.Decimal, participants []Participant) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if total.IsNegative() {
		return ErrNegativeAmount
	}

	var sum decimal.Decimal
	for _, p := range participants {
		if p.Percentage == nil {
			return ErrMissingPercentage
		}
		if p.Percentage.IsNegative() || p.Percentage.GreaterThan(hundred) {
			return ErrPercentageOutOfRange
		}
		sum = sum.Add(*p.Percentage)
	}

	if !sum.Equal(hundred) {
		return ErrInvalidPercentages
	}

	return nil
}

// Calculate divides the total by percentage, assigning the rounding remainder to the payer
func (s *PercentageStrategy) Calculate(total decimal.Decimal, payerID int64, participants []Participant) ([]Share, error) {
	if err := s.Validate(total, participants); err != nil {
		return nil, err
	}

	payerIdx := payerIndex(payerID, participants)
	if payerIdx < 0 {
		return nil, ErrPayerNotParticipant
	}

	shares := make([]Share, len(participants))
	var distributed decimal.Decimal
	for i, p := range participants {
		amount := total.Mul(*p.Percentage).Div(hundred).RoundBank(2)
		shares[i] = Share{UserID: p.UserID, Amount: amount}
		if i != payerIdx {
			distributed = distributed.Add(amount)
		}
	}

	shares[payerIdx].Amount = total.Sub(distributed)

	return shares, nil
}
