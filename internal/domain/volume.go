package domain

import "github.com/shopspring/decimal"

// DefaultVolumePeriod candles averaged for AvgVolume.
const DefaultVolumePeriod = 20

// VolumeStats current and average traded volume of a candle series.
type VolumeStats struct {
	// Current volume of the most recent candle.
	Current decimal.Decimal
	// Average simple moving average of volume over the period (or fewer candles if not enough data).
	Average decimal.Decimal
}

// NewVolumeStats computes volume statistics from candles.
func NewVolumeStats(candles []MarketCandle, period int) (VolumeStats, bool) {
	if len(candles) == 0 || period <= 0 {
		return VolumeStats{}, false
	}
	if len(candles) < period {
		period = len(candles)
	}

	sum := decimal.Zero
	for i := len(candles) - period; i < len(candles); i++ {
		sum = sum.Add(candles[i].Volume)
	}

	return VolumeStats{
		Current: candles[len(candles)-1].Volume,
		Average: sum.Div(decimal.NewFromInt(int64(period))),
	}, true
}
