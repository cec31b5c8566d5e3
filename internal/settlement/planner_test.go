package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairsplit/fairsplit/internal/balance"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balancesFromNets(nets map[int64]string) map[int64]*balance.Balance {
	balances := make(map[int64]*balance.Balance, len(nets))
	for id, net := range nets {
		balances[id] = &balance.Balance{UserID: id, Net: dec(net)}
	}
	return balances
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name         string
		nets         map[int64]string
		maxTransfers int
		want         []Transfer // nil means only check invariants
	}{
		{
			name:         "no balances",
			nets:         map[int64]string{},
			maxTransfers: 0,
		},
		{
			name:         "all square",
			nets:         map[int64]string{1: "0", 2: "0", 3: "0"},
			maxTransfers: 0,
		},
		{
			name:         "sub-cent residue treated as settled",
			nets:         map[int64]string{1: "0.004", 2: "-0.004"},
			maxTransfers: 0,
		},
		{
			name:         "two debtors one creditor",
			nets:         map[int64]string{1: "60", 2: "-30", 3: "-30"},
			maxTransfers: 2,
			want: []Transfer{
				{PayerUserID: 2, ReceiverUserID: 1, Amount: dec("30")},
				{PayerUserID: 3, ReceiverUserID: 1, Amount: dec("30")},
			},
		},
		{
			name:         "chain collapses to two transfers",
			nets:         map[int64]string{1: "50", 2: "-20", 3: "-30"},
			maxTransfers: 2,
			want: []Transfer{
				{PayerUserID: 3, ReceiverUserID: 1, Amount: dec("30")},
				{PayerUserID: 2, ReceiverUserID: 1, Amount: dec("20")},
			},
		},
		{
			name:         "split across creditors",
			nets:         map[int64]string{1: "40", 2: "10", 3: "-50"},
			maxTransfers: 2,
			want: []Transfer{
				{PayerUserID: 3, ReceiverUserID: 1, Amount: dec("40")},
				{PayerUserID: 3, ReceiverUserID: 2, Amount: dec("10")},
			},
		},
		{
			name:         "five members",
			nets:         map[int64]string{1: "100", 2: "25", 3: "-50", 4: "-40", 5: "-35"},
			maxTransfers: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfers, err := Plan(balancesFromNets(tt.nets))
			require.NoError(t, err)
			assert.LessOrEqual(t, len(transfers), tt.maxTransfers)

			if tt.want != nil {
				require.Len(t, transfers, len(tt.want))
				for i, want := range tt.want {
					got := transfers[i]
					assert.Equal(t, want.PayerUserID, got.PayerUserID)
					assert.Equal(t, want.ReceiverUserID, got.ReceiverUserID)
					assert.True(t, want.Amount.Equal(got.Amount),
						"transfer %d amount = %s, want %s", i, got.Amount, want.Amount)
				}
			}

			assertZeroesBalances(t, tt.nets, transfers)
		})
	}
}

// assertZeroesBalances applies the transfers back onto the nets and checks
// everyone ends within a cent of zero.
func assertZeroesBalances(t *testing.T, nets map[int64]string, transfers []Transfer) {
	t.Helper()

	remaining := make(map[int64]decimal.Decimal, len(nets))
	for id, net := range nets {
		remaining[id] = dec(net)
	}
	for _, tr := range transfers {
		assert.True(t, tr.Amount.IsPositive(), "transfer amounts must be positive")
		remaining[tr.PayerUserID] = remaining[tr.PayerUserID].Add(tr.Amount)
		remaining[tr.ReceiverUserID] = remaining[tr.ReceiverUserID].Sub(tr.Amount)
	}
	for id, net := range remaining {
		assert.True(t, net.Abs().LessThan(dec("0.01")),
			"user %d left with %s after settling", id, net)
	}
}

func TestPlanDeterministic(t *testing.T) {
	nets := map[int64]string{1: "30", 2: "30", 3: "-20", 4: "-20", 5: "-20"}

	first, err := Plan(balancesFromNets(nets))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Plan(balancesFromNets(nets))
		require.NoError(t, err)
		assert.Equal(t, first, again, "same balances must plan identically")
	}
}

func TestPlanUnsettleable(t *testing.T) {
	// A lone nonzero balance cannot be paired off.
	_, err := Plan(balancesFromNets(map[int64]string{1: "10"}))
	assert.ErrorIs(t, err, ErrUnsettleable)

	_, err = Plan(balancesFromNets(map[int64]string{1: "-10", 2: "0"}))
	assert.ErrorIs(t, err, ErrUnsettleable)
}

func TestFilterConfirmed(t *testing.T) {
	transfers := []Transfer{
		{PayerUserID: 2, ReceiverUserID: 1, Amount: dec("30")},
		{PayerUserID: 3, ReceiverUserID: 1, Amount: dec("30")},
	}

	kept := filterConfirmed(transfers, map[Pair]bool{{PayerUserID: 2, ReceiverUserID: 1}: true})
	require.Len(t, kept, 1)
	assert.Equal(t, int64(3), kept[0].PayerUserID)

	// Direction matters: a confirmed reverse pair filters nothing.
	transfers = []Transfer{{PayerUserID: 2, ReceiverUserID: 1, Amount: dec("30")}}
	kept = filterConfirmed(transfers, map[Pair]bool{{PayerUserID: 1, ReceiverUserID: 2}: true})
	assert.Len(t, kept, 1)
}
