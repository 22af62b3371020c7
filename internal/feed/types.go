// Package feed holds the boundary with the trading backend: raw response shapes, their
// normalization into canonical domain records, and the sources that fetch them.
package feed

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

// Snapshot cached, low-latency copy of the backend state. It may be stale.
type Snapshot struct {
	Data          *LiveState
	Empty         bool
	Stale         bool
	StaleSeconds  decimal.NullDecimal
	LastUpdatedAt time.Time
}

// HasData reports whether the snapshot carries a state object.
func (s *Snapshot) HasData() bool {
	return s != nil && !s.Empty && s.Data != nil
}

// PortfolioPayload portfolio block of a state object.
type PortfolioPayload struct {
	Assets             []domain.Asset
	TotalValueUSD      decimal.NullDecimal
	TotalAssetsUSD     decimal.NullDecimal
	TotalCollateralUSD decimal.NullDecimal
	TotalBorrowedUSD   decimal.NullDecimal
}

// Balance raw exchange balance without valuation.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
	// Reported total as sent by the backend, if any.
	Reported decimal.NullDecimal
}

// Total reported total, or free plus locked when the backend omits it.
func (b Balance) Total() decimal.Decimal {
	if b.Reported.Valid {
		return b.Reported.Decimal
	}
	return b.Free.Add(b.Locked)
}

// LiveState authoritative full state object. Every field is already normalized.
type LiveState struct {
	Portfolio      *PortfolioPayload
	Balances       []Balance
	BotStatus      string
	OpenOrders     []domain.Order
	ExecutedOrders []domain.Order
	// HasOrders is set when the state carried any order list, even an empty one.
	HasOrders  bool
	Indicators map[string]domain.IndicatorSnapshot
	Errors     []string
	// Malformed counts records dropped during normalization.
	Malformed int
}

// FetchFailed reports whether the backend flagged its own upstream fetch as failed.
func (s *LiveState) FetchFailed() bool {
	if s == nil {
		return false
	}
	for _, code := range s.Errors {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(code)), FetchFailedPrefix) {
			return true
		}
	}
	return false
}

// SnapshotSource provides the fast cached state.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// LiveSource provides the slow authoritative state.
type LiveSource interface {
	FetchLive(ctx context.Context) (*LiveState, error)
}

// OrdersSource provides the legacy single-shot order list.
type OrdersSource interface {
	FetchOrders(ctx context.Context) ([]domain.Order, error)
}

// BalanceAssets symbols of the raw balances, used to look up valuation prices.
func (s *LiveState) BalanceAssets() []string {
	if s == nil {
		return nil
	}
	assets := make([]string, 0, len(s.Balances))
	for _, b := range s.Balances {
		assets = append(assets, b.Asset)
	}
	return assets
}
