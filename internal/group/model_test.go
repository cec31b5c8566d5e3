package group

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		input   string
		want    Period
		wantErr bool
	}{
		{input: "1h", want: Period{Value: 1, Unit: UnitHour}},
		{input: "6h", want: Period{Value: 6, Unit: UnitHour}},
		{input: "12h", want: Period{Value: 12, Unit: UnitHour}},
		{input: "1d", want: Period{Value: 1, Unit: UnitDay}},
		{input: "1w", want: Period{Value: 1, Unit: UnitWeek}},
		{input: "1m", want: Period{Value: 1, Unit: UnitMonth}},
		{input: "", wantErr: true},
		{input: "d", wantErr: true},
		{input: "0d", wantErr: true},
		{input: "-1d", wantErr: true},
		{input: "1y", wantErr: true},
		{input: "daily", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePeriod(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPeriod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
			assert.Equal(t, tt.input, p.String(), "String must round-trip")
		})
	}
}

func TestPeriodNextAfter(t *testing.T) {
	base := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		period string
		want   time.Time
	}{
		{period: "6h", want: base.Add(6 * time.Hour)},
		{period: "1d", want: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)},
		{period: "1w", want: time.Date(2025, 2, 7, 12, 0, 0, 0, time.UTC)},
		{period: "1m", want: time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)}, // Jan 31 + 1 month normalizes
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			p, err := ParsePeriod(tt.period)
			require.NoError(t, err)
			assert.True(t, p.NextAfter(base).Equal(tt.want),
				"next = %s, want %s", p.NextAfter(base), tt.want)
		})
	}
}
