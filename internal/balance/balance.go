// Package balance derives net positions from the immutable expense ledger.
// Balances are never stored; they are recomputed on demand so they cannot
// drift from the ledger.
package balance

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fairsplit/fairsplit/internal/expense/split"
)

// ErrConsistency signals that computed balances violate conservation of
// money. It indicates a bug, not a caller error.
var ErrConsistency = errors.New("balances do not sum to zero")

// Balance is a member's derived position within a group and window.
type Balance struct {
	UserID int64           `json:"user_id"`
	Owes   decimal.Decimal `json:"owes_amount"`
	IsOwed decimal.Decimal `json:"is_owed_amount"`
	Net    decimal.Decimal `json:"net_balance"`
}

// Entry is the slice of an expense the calculator needs: who paid, how much,
// and (for non-equal splits) each participant's stored share. A nil Shares
// map means the expense splits equally among the current members.
type Entry struct {
	Amount decimal.Decimal
	PaidBy int64
	Shares map[int64]decimal.Decimal
}

var equalSplit = &split.EqualStrategy{}

// Compute aggregates every entry into per-member balances.
//
// For an equal split of n members: share = amount / n rounded half-to-even
// to two fraction digits, with the remainder assigned to the payer so each
// expense contributes exactly zero net. The payer is owed the sum of the
// other members' shares; every other member owes their share.
//
// An empty member set yields an empty map. The conservation invariant
// (sum of nets is exactly zero) is verified before returning.
func Compute(memberIDs []int64, entries []Entry) (map[int64]*Balance, error) {
	balances := make(map[int64]*Balance, len(memberIDs))
	if len(memberIDs) == 0 {
		return balances, nil
	}

	for _, id := range memberIDs {
		balances[id] = &Balance{UserID: id}
	}

	for _, entry := range entries {
		shares, err := entryShares(memberIDs, entry)
		if err != nil {
			return nil, err
		}

		payer := ensureMember(balances, entry.PaidBy)
		for userID, share := range shares {
			if userID == entry.PaidBy {
				continue
			}
			member := ensureMember(balances, userID)
			member.Owes = member.Owes.Add(share)
			payer.IsOwed = payer.IsOwed.Add(share)
		}
	}

	var sum decimal.Decimal
	for _, b := range balances {
		b.Net = b.IsOwed.Sub(b.Owes)
		sum = sum.Add(b.Net)
	}
	if !sum.IsZero() {
		return nil, ErrConsistency
	}

	return balances, nil
}

// entryShares resolves one entry to a full userID -> share map.
func entryShares(memberIDs []int64, entry Entry) (map[int64]decimal.Decimal, error) {
	if entry.Shares != nil {
		return entry.Shares, nil
	}

	participants := make([]split.Participant, 0, len(memberIDs)+1)
	seenPayer := false
	for _, id := range memberIDs {
		participants = append(participants, split.Participant{UserID: id})
		if id == entry.PaidBy {
			seenPayer = true
		}
	}
	// A payer who has since left the group still participates in their own
	// expense; dropping them would break conservation.
	if !seenPayer {
		participants = append(participants, split.Participant{UserID: entry.PaidBy})
	}

	shares, err := equalSplit.Calculate(entry.Amount, entry.PaidBy, participants)
	if err != nil {
		return nil, err
	}

	result := make(map[int64]decimal.Decimal, len(shares))
	for _, s := range shares {
		result[s.UserID] = s.Amount
	}
	return result, nil
}

func ensureMember(balances map[int64]*Balance, userID int64) *Balance {
	if b, ok := balances[userID]; ok {
		return b
	}
	b := &Balance{UserID: userID}
	balances[userID] = b
	return b
}
