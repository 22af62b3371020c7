package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func candlesWith(highs, volumes []int64) []MarketCandle {
	candles := make([]MarketCandle, len(highs))
	for i := range highs {
		candles[i] = MarketCandle{High: decimal.NewFromInt(highs[i]), Volume: decimal.NewFromInt(volumes[i])}
	}
	return candles
}

func TestResistance(t *testing.T) {
	candles := candlesWith([]int64{120, 101, 105, 103}, []int64{1, 1, 1, 1})

	high, ok := Resistance(candles, 3)
	require.True(t, ok)
	require.Equal(t, "105", high.String())

	high, ok = Resistance(candles, 10)
	require.True(t, ok)
	require.Equal(t, "120", high.String())

	_, ok = Resistance(nil, 3)
	require.False(t, ok)
}

func TestNewVolumeStats(t *testing.T) {
	candles := candlesWith([]int64{1, 1, 1, 1}, []int64{10, 20, 30, 40})

	stats, ok := NewVolumeStats(candles, 2)
	require.True(t, ok)
	require.Equal(t, "40", stats.Current.String())
	require.Equal(t, "35", stats.Average.String())

	stats, ok = NewVolumeStats(candles, DefaultVolumePeriod)
	require.True(t, ok)
	require.Equal(t, "25", stats.Average.String())

	_, ok = NewVolumeStats(nil, 20)
	require.False(t, ok)
}
