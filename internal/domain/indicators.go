package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndicatorSnapshot instantaneous technical state for one instrument.
// Any field may be missing; a missing field is never read as zero.
type IndicatorSnapshot struct {
	Symbol       string              `json:"symbol"`
	Price        decimal.NullDecimal `json:"price"`
	RSI          decimal.NullDecimal `json:"rsi"`
	MA50         decimal.NullDecimal `json:"ma50"`
	MA200        decimal.NullDecimal `json:"ma200"`
	EMA10        decimal.NullDecimal `json:"ema10"`
	Volume       decimal.NullDecimal `json:"volume"`
	AvgVolume    decimal.NullDecimal `json:"avg_volume"`
	ResistanceUp decimal.NullDecimal `json:"resistance_up"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// VolumeRatio current volume relative to its average.
func (s IndicatorSnapshot) VolumeRatio() decimal.NullDecimal {
	if !s.Volume.Valid || !s.AvgVolume.Valid || !s.AvgVolume.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	return Known(s.Volume.Decimal.Div(s.AvgVolume.Decimal))
}

// Known wraps a decimal as a valid NullDecimal.
func Known(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// KnownFloat wraps a float as a valid NullDecimal.
func KnownFloat(f float64) decimal.NullDecimal {
	return Known(decimal.NewFromFloat(f))
}
