package collector

import (
	"testing"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/stretchr/testify/require"
)

func TestConvertIntervalToBybit(t *testing.T) {
	valid := map[string]string{
		"1m":  "1",
		"15m": "15",
		"1h":  "60",
		"4h":  "240",
		"1d":  "D",
		"1w":  "W",
	}
	for in, want := range valid {
		got, err := convertIntervalToBybit(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "1", "m", "1x", "0h", "-5m"} {
		_, err := convertIntervalToBybit(in)
		require.Error(t, err, in)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := parseTimestamp("1672531200000")
	require.NoError(t, err)
	require.True(t, ts.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))

	_, err = parseTimestamp("")
	require.Error(t, err)
	_, err = parseTimestamp("abc")
	require.Error(t, err)
}

func kline(start, close string) bybit.V5GetKlineItem {
	return bybit.V5GetKlineItem{
		StartTime: start,
		Open:      "100",
		High:      "110",
		Low:       "90",
		Close:     close,
		Volume:    "12.5",
	}
}

func TestBybitCandles_ReversedToOldestFirst(t *testing.T) {
	newestFirst := []bybit.V5GetKlineItem{
		kline("1672538400000", "103"),
		kline("1672534800000", "102"),
		kline("1672531200000", "101"),
	}

	candles, err := bybitCandles(newestFirst)
	require.NoError(t, err)
	require.Len(t, candles, 3)

	for i, want := range []string{"101", "102", "103"} {
		require.Equal(t, want, candles[i].Close.String())
	}
	require.True(t, candles[0].OpenTime.Before(candles[2].OpenTime))
	require.Equal(t, candles[0].OpenTime, candles[0].CloseTime)
	require.Equal(t, "12.5", candles[1].Volume.String())
}

func TestBybitCandles_BadField(t *testing.T) {
	bad := kline("1672531200000", "n/a")
	_, err := bybitCandles([]bybit.V5GetKlineItem{kline("1672534800000", "1"), bad})
	require.ErrorContains(t, err, "kline at index 1")

	_, err = bybitCandles([]bybit.V5GetKlineItem{kline("", "1")})
	require.Error(t, err)
}
