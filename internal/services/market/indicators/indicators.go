// Package indicators derives indicator snapshots from candles using the cinar/indicator library.
package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

const (
	RSIPeriod        = 14
	FastMAPeriod     = 50
	SlowMAPeriod     = 200
	EMAPeriod        = 10
	ResistanceWindow = 20
)

// ErrNotEnoughData returned when a series is shorter than the indicator period.
var ErrNotEnoughData = errors.New("not enough data points")

// CalculateEMA calculates the Exponential Moving Average for the given period.
func CalculateEMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period {
		return nil, errors.Wrapf(ErrNotEnoughData, "EMA%d: need %d, got %d", period, period, len(closes))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := ema.Compute(helper.SliceToChan(decimalsToFloat64(closes)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// CalculateSMA calculates the Simple Moving Average for the given period.
func CalculateSMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period {
		return nil, errors.Wrapf(ErrNotEnoughData, "SMA%d: need %d, got %d", period, period, len(closes))
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	out := sma.Compute(helper.SliceToChan(decimalsToFloat64(closes)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// CalculateRSI calculates the Relative Strength Index for the given period.
func CalculateRSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(closes) < period+1 {
		return nil, errors.Wrapf(ErrNotEnoughData, "RSI%d: need %d, got %d", period, period+1, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := rsi.Compute(helper.SliceToChan(decimalsToFloat64(closes)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// Snapshot builds the indicator snapshot of the latest candle. Indicators whose period exceeds
// the series length are left missing rather than failing the whole snapshot.
func Snapshot(symbol string, candles []domain.MarketCandle) (domain.IndicatorSnapshot, error) {
	snap := domain.IndicatorSnapshot{Symbol: symbol}
	if len(candles) == 0 {
		return snap, errors.Wrapf(ErrNotEnoughData, "no candles for %s", symbol)
	}

	last := candles[len(candles)-1]
	snap.Price = domain.Known(last.Close)
	snap.UpdatedAt = last.CloseTime

	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	snap.RSI = latest(CalculateRSI(closes, RSIPeriod))
	snap.MA50 = latest(CalculateSMA(closes, FastMAPeriod))
	snap.MA200 = latest(CalculateSMA(closes, SlowMAPeriod))
	snap.EMA10 = latest(CalculateEMA(closes, EMAPeriod))

	if vol, ok := domain.NewVolumeStats(candles, domain.DefaultVolumePeriod); ok {
		snap.Volume = domain.Known(vol.Current)
		snap.AvgVolume = domain.Known(vol.Average)
	}
	// resistance is the highest high of the candles before the latest one
	if len(candles) > 1 {
		if r, ok := domain.Resistance(candles[:len(candles)-1], ResistanceWindow); ok {
			snap.ResistanceUp = domain.Known(r)
		}
	}

	return snap, nil
}

func latest(values []decimal.Decimal, err error) decimal.NullDecimal {
	if err != nil || len(values) == 0 {
		return decimal.NullDecimal{}
	}
	return domain.Known(values[len(values)-1])
}

func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i], _ = d.Float64()
	}
	return result
}

func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, 0, len(floats))
	for _, f := range floats {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		result = append(result, decimal.NewFromFloat(f))
	}
	return result
}
