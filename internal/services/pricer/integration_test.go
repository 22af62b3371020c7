//go:build integration

package pricer

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/tradelens/internal/clients"
	"github.com/vadiminshakov/tradelens/internal/domain"
)

// To run: go test -tags=integration ./internal/services/pricer/...
func TestBybitPricer_GetPrice_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := clients.NewBybitClient(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET"))
	pricer := NewBybitPricer(client)

	t.Run("quotes BTC/USDT", func(t *testing.T) {
		price, err := pricer.GetPrice(context.Background(), domain.Pair{From: "BTC", To: "USDT"})
		require.NoError(t, err)
		require.True(t, price.IsPositive(), "got %s", price)
	})

	t.Run("unknown pair fails", func(t *testing.T) {
		price, err := pricer.GetPrice(context.Background(), domain.Pair{From: "INVALID", To: "PAIR"})
		require.Error(t, err)
		require.True(t, price.IsZero())
	})
}

func TestBinancePricer_GetPrice_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pricer := NewBinancePricer(clients.NewBinanceClient("", ""))

	price, err := pricer.GetPrice(context.Background(), domain.Pair{From: "ETH", To: "USDT"})
	require.NoError(t, err)
	require.True(t, price.IsPositive(), "got %s", price)
}
