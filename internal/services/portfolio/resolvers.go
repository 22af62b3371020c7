package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/feed"
)

// sources everything a resolver may read during one reconcile call.
type sources struct {
	live      *feed.LiveState
	snapshot  *feed.Snapshot
	prices    domain.PriceBook
	lastKnown []domain.Asset
	now       time.Time
}

type resolution struct {
	assets  []domain.Asset
	payload *feed.PortfolioPayload
	source  domain.AssetSource
}

type resolver func(src sources) (resolution, bool)

// resolvers in priority order; the first one producing assets wins.
var resolvers = []resolver{
	resolveLiveAssets,
	resolveLiveBalances,
	resolveSnapshot,
	resolveLastKnown,
}

func resolve(src sources) (resolution, bool) {
	for _, r := range resolvers {
		if res, ok := r(src); ok {
			return res, true
		}
	}
	return resolution{source: domain.AssetSourceNone}, false
}

func resolveLiveAssets(src sources) (resolution, bool) {
	if src.live == nil || src.live.Portfolio == nil || len(src.live.Portfolio.Assets) == 0 {
		return resolution{}, false
	}
	return resolution{
		assets:  mergeAssets(src.live.Portfolio.Assets),
		payload: src.live.Portfolio,
		source:  domain.AssetSourceLiveAssets,
	}, true
}

func resolveLiveBalances(src sources) (resolution, bool) {
	if src.live == nil {
		return resolution{}, false
	}
	assets := valueBalances(src.live.Balances, src.prices, src.now)
	if len(assets) == 0 {
		return resolution{}, false
	}
	return resolution{
		assets:  assets,
		payload: src.live.Portfolio,
		source:  domain.AssetSourceLiveBalances,
	}, true
}

// resolveSnapshot uses the portfolio embedded in the snapshot even when it is stale.
func resolveSnapshot(src sources) (resolution, bool) {
	if !src.snapshot.HasData() {
		return resolution{}, false
	}
	data := src.snapshot.Data

	if data.Portfolio != nil && len(data.Portfolio.Assets) > 0 {
		return resolution{
			assets:  mergeAssets(data.Portfolio.Assets),
			payload: data.Portfolio,
			source:  domain.AssetSourceSnapshot,
		}, true
	}

	updated := src.snapshot.LastUpdatedAt
	if updated.IsZero() {
		updated = src.now
	}
	if assets := valueBalances(data.Balances, src.prices, updated); len(assets) > 0 {
		return resolution{assets: assets, payload: data.Portfolio, source: domain.AssetSourceSnapshot}, true
	}

	return resolution{}, false
}

func resolveLastKnown(src sources) (resolution, bool) {
	if len(src.lastKnown) == 0 {
		return resolution{}, false
	}
	return resolution{
		assets: append([]domain.Asset(nil), src.lastKnown...),
		source: domain.AssetSourceLastKnown,
	}, true
}

// valueBalances converts raw balances into assets. A balance without a known price is kept
// with a zero value so the holding stays visible.
func valueBalances(balances []feed.Balance, prices domain.PriceBook, at time.Time) []domain.Asset {
	assets := make([]domain.Asset, 0, len(balances))
	for _, b := range balances {
		total := b.Total()
		if total.IsZero() {
			continue
		}

		value := decimal.Zero
		if price, ok := prices.Price(b.Asset); ok {
			value = total.Mul(price)
		}
		assets = append(assets, domain.Asset{
			Symbol:    b.Asset,
			Balance:   total,
			ValueUSD:  value,
			UpdatedAt: at,
		})
	}
	return mergeAssets(assets)
}

// mergeAssets keeps one asset per symbol, summing duplicates in first-seen order.
func mergeAssets(in []domain.Asset) []domain.Asset {
	index := make(map[string]int, len(in))
	out := make([]domain.Asset, 0, len(in))

	for _, a := range in {
		i, ok := index[a.Symbol]
		if !ok {
			index[a.Symbol] = len(out)
			out = append(out, a)
			continue
		}
		out[i].Balance = out[i].Balance.Add(a.Balance)
		out[i].ValueUSD = out[i].ValueUSD.Add(a.ValueUSD)
		if a.UpdatedAt.After(out[i].UpdatedAt) {
			out[i].UpdatedAt = a.UpdatedAt
		}
	}
	return out
}

func sumValues(assets []domain.Asset) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assets {
		total = total.Add(a.ValueUSD)
	}
	return total
}

// borrowedFrom sums the absolute value of negative cash-equivalent holdings.
func borrowedFrom(assets []domain.Asset) decimal.Decimal {
	borrowed := decimal.Zero
	for _, a := range assets {
		if domain.IsCashEquivalent(a.Symbol) && a.ValueUSD.IsNegative() {
			borrowed = borrowed.Add(a.ValueUSD.Abs())
		}
	}
	return borrowed
}
