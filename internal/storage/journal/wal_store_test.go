package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

func TestSignalStore_SaveAndRead(t *testing.T) {
	store, err := OpenSignals(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ts := time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)
	events := []domain.SignalEvent{
		{ID: "a", Symbol: "BTCUSDT", Preset: domain.PresetSwing, Risk: domain.RiskConservative, Signal: domain.SignalBuy, Time: ts},
		{ID: "b", Symbol: "BTCUSDT", Preset: domain.PresetSwing, Risk: domain.RiskConservative, Previous: domain.SignalBuy, Signal: domain.SignalWait, Time: ts.Add(time.Minute)},
		{ID: "c", Symbol: "ETHUSDT", Preset: domain.PresetScalp, Risk: domain.RiskAggressive, Signal: domain.SignalSell, Time: ts.Add(2 * time.Minute)},
	}
	for i, e := range events {
		idx, err := store.Save(SignalKey(e), e)
		require.NoError(t, err)
		require.EqualValues(t, i+1, idx)
	}
	require.EqualValues(t, 3, store.CurrentIndex())

	all, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "a", all[0].Event.ID)
	require.True(t, ts.Equal(all[0].Event.Time))

	tail, err := store.EventsAfter(2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.EqualValues(t, 3, tail[0].Index)
	require.Equal(t, domain.SignalSell, tail[0].Event.Signal)

	none, err := store.EventsAfter(3)
	require.NoError(t, err)
	require.Empty(t, none)

	latest, err := store.Latest(2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "b", latest[0].Event.ID)
}

func TestPortfolioStore_RoundTrip(t *testing.T) {
	store, err := OpenPortfolio(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	point := domain.PortfolioPoint{
		Time:             time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC),
		TotalValueUSD:    decimal.RequireFromString("1234.5"),
		TotalBorrowedUSD: domain.Known(decimal.RequireFromString("10")),
		AssetSource:      domain.AssetSourceLiveAssets,
		Availability:     domain.AvailabilityOK,
	}
	_, err = store.Save("cycle", point)
	require.NoError(t, err)

	records, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "1234.5", records[0].Event.TotalValueUSD.String())
	require.Equal(t, "10", records[0].Event.TotalBorrowedUSD.Decimal.String())
}

func TestWALStore_NilSafe(t *testing.T) {
	var store *SignalStore
	require.Zero(t, store.CurrentIndex())
	_, err := store.Save("k", domain.SignalEvent{})
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = store.EventsAfter(0)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, store.Close(), ErrNotInitialized)
}

func TestNewWALStore_Validation(t *testing.T) {
	_, err := NewWALStore[domain.SignalEvent](Config{Prefix: "x_"})
	require.Error(t, err)
	_, err = NewWALStore[domain.SignalEvent](Config{Dir: t.TempDir()})
	require.Error(t, err)
}
