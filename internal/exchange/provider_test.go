package exchange

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/tradelens/internal/services/market/collector"
	"github.com/vadiminshakov/tradelens/internal/services/pricer"
)

func TestOpen(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		p, err := Open(PlatformNone, Credentials{})
		require.NoError(t, err)
		require.Nil(t, p)

		p, err = Open("", Credentials{})
		require.NoError(t, err)
		require.Nil(t, p)
	})

	t.Run("binance without keys", func(t *testing.T) {
		p, err := Open("Binance", Credentials{})
		require.NoError(t, err)
		require.Equal(t, PlatformBinance, p.Name())
		require.IsType(t, &pricer.BinancePricer{}, p.Pricer())
		require.IsType(t, &collector.BinanceKlineProvider{}, p.KlineProvider())
	})

	t.Run("bybit", func(t *testing.T) {
		p, err := Open(PlatformBybit, Credentials{BybitAPIKey: "k", BybitAPISecret: "s"})
		require.NoError(t, err)
		require.Equal(t, PlatformBybit, p.Name())
		require.IsType(t, &pricer.BybitPricer{}, p.Pricer())
		require.IsType(t, &collector.BybitKlineProvider{}, p.KlineProvider())
	})

	t.Run("hyperliquid requires a key", func(t *testing.T) {
		_, err := Open(PlatformHyperliquid, Credentials{})
		require.Error(t, err)

		_, err = Open(PlatformHyperliquid, Credentials{HyperliquidPrivateKey: "0xnothex"})
		require.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open("kraken", Credentials{})
		require.ErrorIs(t, err, ErrUnsupportedPlatform)
	})
}

func TestNewProvider_UnsupportedClient(t *testing.T) {
	_, err := NewProvider("not a client")
	require.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestValidPlatform(t *testing.T) {
	for _, name := range []string{"none", "binance", "BYBIT", "hyperliquid"} {
		require.True(t, ValidPlatform(name), name)
	}
	require.False(t, ValidPlatform("simulate"))
}
