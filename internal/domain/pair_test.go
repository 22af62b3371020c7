package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	tests := []struct {
		in   string
		want Pair
		err  bool
	}{
		{in: "BTC_USDT", want: Pair{From: "BTC", To: "USDT"}},
		{in: "eth/usdc", want: Pair{From: "ETH", To: "USDC"}},
		{in: "SOL-USD", want: Pair{From: "SOL", To: "USD"}},
		{in: "BTCUSDT", want: Pair{From: "BTC", To: "USDT"}},
		{in: "BNBFDUSD", want: Pair{From: "BNB", To: "FDUSD"}},
		{in: "", err: true},
		{in: "BTC_", err: true},
		{in: "USDT", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePair(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPairFormats(t *testing.T) {
	p := Pair{From: "BTC", To: "USDT"}
	require.Equal(t, "BTC_USDT", p.String())
	require.Equal(t, "BTCUSDT", p.Symbol())
}

func TestBaseAsset(t *testing.T) {
	require.Equal(t, "BTC", BaseAsset("BTCUSDT"))
	require.Equal(t, "ETH", BaseAsset("ETH_USDC"))
	require.Equal(t, "DOGE", BaseAsset("doge"))
}
