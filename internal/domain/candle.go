package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketCandle single OHLCV candlestick.
type MarketCandle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// Resistance highest high over the last lookback candles.
func Resistance(candles []MarketCandle, lookback int) (decimal.Decimal, bool) {
	if len(candles) == 0 || lookback <= 0 {
		return decimal.Zero, false
	}
	if lookback > len(candles) {
		lookback = len(candles)
	}

	high := candles[len(candles)-lookback].High
	for _, c := range candles[len(candles)-lookback:] {
		if c.High.GreaterThan(high) {
			high = c.High
		}
	}
	return high, true
}
