package split

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertSharesSum(t *testing.T, total decimal.Decimal, shares []Share) {
	t.Helper()
	var sum decimal.Decimal
	for _, s := range shares {
		sum = sum.Add(s.Amount)
	}
	assert.True(t, sum.Equal(total), "shares sum to %s, want %s", sum, total)
}

func TestEqualStrategy(t *testing.T) {
	s := &EqualStrategy{}

	t.Run("even division", func(t *testing.T) {
		shares, err := s.Calculate(dec("90.00"), 1, []Participant{{UserID: 1}, {UserID: 2}, {UserID: 3}})
		require.NoError(t, err)
		require.Len(t, shares, 3)
		for _, share := range shares {
			assert.True(t, share.Amount.Equal(dec("30")), "share = %s", share.Amount)
		}
		assertSharesSum(t, dec("90.00"), shares)
	})

	t.Run("payer absorbs remainder", func(t *testing.T) {
		shares, err := s.Calculate(dec("100.00"), 1, []Participant{{UserID: 1}, {UserID: 2}, {UserID: 3}})
		require.NoError(t, err)

		byUser := make(map[int64]decimal.Decimal)
		for _, share := range shares {
			byUser[share.UserID] = share.Amount
		}
		assert.True(t, byUser[1].Equal(dec("33.34")), "payer share = %s", byUser[1])
		assert.True(t, byUser[2].Equal(dec("33.33")))
		assert.True(t, byUser[3].Equal(dec("33.33")))
		assertSharesSum(t, dec("100.00"), shares)
	})

	t.Run("single participant", func(t *testing.T) {
		shares, err := s.Calculate(dec("10.00"), 1, []Participant{{UserID: 1}})
		require.NoError(t, err)
		require.Len(t, shares, 1)
		assert.True(t, shares[0].Amount.Equal(dec("10.00")))
	})

	t.Run("no participants", func(t *testing.T) {
		_, err := s.Calculate(dec("10.00"), 1, nil)
		assert.ErrorIs(t, err, ErrNoParticipants)
	})

	t.Run("payer must participate", func(t *testing.T) {
		_, err := s.Calculate(dec("10.00"), 9, []Participant{{UserID: 1}, {UserID: 2}})
		assert.ErrorIs(t, err, ErrPayerNotParticipant)
	})
}

func TestExactStrategy(t *testing.T) {
	s := &ExactStrategy{}

	t.Run("amounts pass through", func(t *testing.T) {
		shares, err := s.Calculate(dec("100.00"), 1, []Participant{
			{UserID: 1, Amount: decPtr("20.00")},
			{UserID: 2, Amount: decPtr("30.00")},
			{UserID: 3, Amount: decPtr("50.00")},
		})
		require.NoError(t, err)
		assertSharesSum(t, dec("100.00"), shares)
		assert.True(t, shares[2].Amount.Equal(dec("50.00")))
	})

	t.Run("amounts must sum to total", func(t *testing.T) {
		_, err := s.Calculate(dec("100.00"), 1, []Participant{
			{UserID: 1, Amount: decPtr("20.00")},
			{UserID: 2, Amount: decPtr("30.00")},
		})
		assert.ErrorIs(t, err, ErrInvalidExactAmounts)
	})

	t.Run("missing amount", func(t *testing.T) {
		_, err := s.Calculate(dec("100.00"), 1, []Participant{
			{UserID: 1, Amount: decPtr("100.00")},
			{UserID: 2},
		})
		assert.ErrorIs(t, err, ErrMissingExactAmount)
	})

	t.Run("negative amount", func(t *testing.T) {
		_, err := s.Calculate(dec("100.00"), 1, []Participant{
			{UserID: 1, Amount: decPtr("110.00")},
			{UserID: 2, Amount: decPtr("-10.00")},
		})
		assert.ErrorIs(t, err, ErrNegativeAmount)
	})
}

func TestPercentageStrategy(t *testing.T) {
	s := &PercentageStrategy{}

	t.Run("percentages divide the total", func(t *testing.T) {
		shares, err := s.Calculate(dec("200.00"), 1, []Participant{
			{UserID: 1, Percentage: decPtr("50")},
			{UserID: 2, Percentage: decPtr("30")},
			{UserID: 3, Percentage: decPtr("20")},
		})
		require.NoError(t, err)

		byUser := make(map[int64]decimal.Decimal)
		for _, share := range shares {
			byUser[share.UserID] = share.Amount
		}
		assert.True(t, byUser[1].Equal(dec("100")))
		assert.True(t, byUser[2].Equal(dec("60")))
		assert.True(t, byUser[3].Equal(dec("40")))
		assertSharesSum(t, dec("200.00"), shares)
	})

	t.Run("payer absorbs rounding remainder", func(t *testing.T) {
		shares, err := s.Calculate(dec("100.00"), 1, []Participant{
			{UserID: 1, Percentage: decPtr("33.33")},
			{UserID: 2, Percentage: decPtr("33.33")},
			{UserID: 3, Percentage: decPtr("33.34")},
		})
		require.NoError(t, err)
		assertSharesSum(t, dec("100.00"), shares)
	})

	t.Run("percentages must sum to 100", func(t *testing.T) {
		_, err := s.Calculate(dec("100.00"), 1, []Participant{
			{UserID: 1, Percentage: decPtr("50")},
			{UserID: 2, Percentage: decPtr("40")},
		})
		assert.ErrorIs(t, err, ErrInvalidPercentages)
	})

	t.Run("percentage out of range", func(t *testing.T) {
		_, err := s.Calculate(dec("100.00"), 1, []Participant{
			{UserID: 1, Percentage: decPtr("150")},
			{UserID: 2, Percentage: decPtr("-50")},
		})
		assert.ErrorIs(t, err, ErrPercentageOutOfRange)
	})

	t.Run("missing percentage", func(t *testing.T) {
		_, err := s.Calculate(dec("100.00"), 1, []Participant{
			{UserID: 1, Percentage: decPtr("100")},
			{UserID: 2},
		})
		assert.ErrorIs(t, err, ErrMissingPercentage)
	})
}

func TestFactory(t *testing.T) {
	f := NewFactory()

	for _, typ := range []Type{TypeEqual, TypeExact, TypePercentage} {
		strategy, err := f.Create(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, strategy.Type())
	}

	_, err := f.CreateFromString("UNEVEN")
	assert.Error(t, err)
}
