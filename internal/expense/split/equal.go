package split

import "github.com/shopspring/decimal"

// EqualStrategy divides the total equally among all participants. Per-head
// shares are rounded half-to-even at two fraction digits and the payer
// absorbs the remainder, so the shares always sum exactly to the total.
type EqualStrategy struct{}

// Type returns the split type identifier
func (s *EqualStrategy) Type() Type {
	return TypeEqual
}

// Validate checks if the inputs are valid for an equal split
func (s *EqualStrategy) Validate(total decimal.Decimal, participants []Participant) error {
	if len(participants) == 0 {
		return ErrNoParticipants
	}
	if total.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// Calculate divides the total evenly, assigning the rounding remainder to the payer
func (s *EqualStrategy) Calculate(total decimal.Decimal, payerID int64, participants []Participant) ([]Share, error) {
	if err := s.Validate(total, participants); err != nil {
		return nil, err
	}

	payerIdx := payerIndex(payerID, participants)
	if payerIdx < 0 {
		return nil, ErrPayerNotParticipant
	}

	n := decimal.NewFromInt(int64(len(participants)))
	share := total.Div(n).RoundBank(2)

	shares := make([]Share, len(participants))
	var distributed decimal.Decimal
	for i, p := range participants {
		shares[i] = Share{UserID: p.UserID, Amount: share}
		if i != payerIdx {
			distributed = distributed.Add(share)
		}
	}

	// Payer's share is whatever keeps the column summing to the total
	shares[payerIdx].Amount = total.Sub(distributed)

	return shares, nil
}
