package settlement

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fairsplit/fairsplit/internal/balance"
)

// ErrUnsettleable signals net positions that cannot be zeroed by pairwise
// transfers. Conservation guarantees this never happens for balances produced
// by the calculator, so hitting it means an upstream bug.
var ErrUnsettleable = errors.New("net balances cannot be settled")

// minUnit is the currency's minimum unit; residues below it count as zero.
var minUnit = decimal.New(1, -2)

type position struct {
	userID int64
	net    decimal.Decimal
}

// Plan converts net positions into a minimum-cardinality transfer set using
// greedy max-debtor/max-creditor matching: repeatedly pay the largest
// creditor from the largest debtor until everyone is square. Each transfer
// zeroes at least one side, so at most N-1 transfers are produced for N
// members with nonzero balance. Ties prefer the smaller user ID, making the
// output deterministic.
func Plan(balances map[int64]*balance.Balance) ([]Transfer, error) {
	var debtors, creditors []*position
	for id, b := range balances {
		switch {
		case b.Net.Neg().GreaterThanOrEqual(minUnit):
			debtors = append(debtors, &position{userID: id, net: b.Net})
		case b.Net.GreaterThanOrEqual(minUnit):
			creditors = append(creditors, &position{userID: id, net: b.Net})
		}
	}

	// A lone nonzero balance has nobody to settle with; conservation says
	// this cannot happen unless the calculator is broken.
	if (len(debtors) == 0) != (len(creditors) == 0) {
		return nil, ErrUnsettleable
	}
	if len(debtors) == 0 {
		return nil, nil
	}

	var transfers []Transfer
	for len(debtors) > 0 && len(creditors) > 0 {
		debtor, creditor := maxDebtor(debtors), maxCreditor(creditors)

		amount := debtor.net.Neg()
		if creditor.net.LessThan(amount) {
			amount = creditor.net
		}

		transfers = append(transfers, Transfer{
			PayerUserID:    debtor.userID,
			ReceiverUserID: creditor.userID,
			Amount:         amount,
		})

		debtor.net = debtor.net.Add(amount)
		creditor.net = creditor.net.Sub(amount)
		debtors = compact(debtors)
		creditors = compact(creditors)
	}

	if len(debtors) > 0 || len(creditors) > 0 {
		return nil, ErrUnsettleable
	}

	return transfers, nil
}

// maxDebtor returns the position with the most negative net.
func maxDebtor(debtors []*position) *position {
	best := debtors[0]
	for _, d := range debtors[1:] {
		if d.net.LessThan(best.net) || (d.net.Equal(best.net) && d.userID < best.userID) {
			best = d
		}
	}
	return best
}

// maxCreditor returns the position with the most positive net.
func maxCreditor(creditors []*position) *position {
	best := creditors[0]
	for _, c := range creditors[1:] {
		if c.net.GreaterThan(best.net) || (c.net.Equal(best.net) && c.userID < best.userID) {
			best = c
		}
	}
	return best
}

// compact drops positions that have reached zero (below the minimum unit).
func compact(positions []*position) []*position {
	kept := positions[:0]
	for _, p := range positions {
		if p.net.Abs().GreaterThanOrEqual(minUnit) {
			kept = append(kept, p)
		}
	}
	return kept
}
