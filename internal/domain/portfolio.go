package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ValueSource tells whether TotalValueUSD came from the backend or was summed locally.
type ValueSource string

const (
	ValueSourceBackend ValueSource = "backend"
	ValueSourceDerived ValueSource = "derived"
)

// AssetSource which resolver produced the asset list.
type AssetSource string

const (
	AssetSourceLiveAssets   AssetSource = "live_assets"
	AssetSourceLiveBalances AssetSource = "live_balances"
	AssetSourceSnapshot     AssetSource = "snapshot"
	AssetSourceLastKnown    AssetSource = "last_known"
	AssetSourceNone         AssetSource = "none"
)

// Asset holding of a single currency. Balance and ValueUSD are always defined.
type Asset struct {
	Symbol    string          `json:"symbol"`
	Balance   decimal.Decimal `json:"balance"`
	ValueUSD  decimal.Decimal `json:"value_usd"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UnitPrice value of a single unit, unknown for a zero balance.
func (a Asset) UnitPrice() decimal.NullDecimal {
	if a.Balance.IsZero() {
		return decimal.NullDecimal{}
	}
	return Known(a.ValueUSD.Div(a.Balance))
}

// PortfolioView reconciled portfolio exposed to readers.
type PortfolioView struct {
	Assets             []Asset             `json:"assets"`
	TotalValueUSD      decimal.Decimal     `json:"total_value_usd"`
	TotalAssetsUSD     decimal.NullDecimal `json:"total_assets_usd"`
	TotalCollateralUSD decimal.NullDecimal `json:"total_collateral_usd"`
	TotalBorrowedUSD   decimal.NullDecimal `json:"total_borrowed_usd"`
	ValueSource        ValueSource         `json:"value_source"`
	AssetSource        AssetSource         `json:"asset_source"`
	Staleness          StalenessInfo       `json:"staleness"`
	Availability       Availability        `json:"availability"`
	Message            string              `json:"message,omitempty"`
	Loading            bool                `json:"loading"`
}

// PortfolioPoint totals of one reconciled view, journaled once per cycle.
type PortfolioPoint struct {
	Time             time.Time           `json:"ts"`
	TotalValueUSD    decimal.Decimal     `json:"total_value_usd"`
	TotalBorrowedUSD decimal.NullDecimal `json:"total_borrowed_usd"`
	AssetSource      AssetSource         `json:"asset_source"`
	Availability     Availability        `json:"availability"`
}

// Point summarizes the view at t.
func (v PortfolioView) Point(t time.Time) PortfolioPoint {
	return PortfolioPoint{
		Time:             t,
		TotalValueUSD:    v.TotalValueUSD,
		TotalBorrowedUSD: v.TotalBorrowedUSD,
		AssetSource:      v.AssetSource,
		Availability:     v.Availability,
	}
}

// Asset finds a holding by symbol.
func (v *PortfolioView) Asset(symbol string) (Asset, bool) {
	if v == nil {
		return Asset{}, false
	}
	symbol = strings.ToUpper(symbol)
	for _, a := range v.Assets {
		if strings.EqualFold(a.Symbol, symbol) {
			return a, true
		}
	}
	return Asset{}, false
}

// NewLoadingPortfolio view used before the first cycle resolves.
func NewLoadingPortfolio() PortfolioView {
	return PortfolioView{
		Assets:       []Asset{},
		ValueSource:  ValueSourceDerived,
		AssetSource:  AssetSourceNone,
		Availability: AvailabilityOK,
		Loading:      true,
	}
}

var cashEquivalents = map[string]struct{}{
	"USD":   {},
	"USDT":  {},
	"USDC":  {},
	"BUSD":  {},
	"FDUSD": {},
}

// IsCashEquivalent reports whether the symbol is valued one-to-one with USD.
func IsCashEquivalent(symbol string) bool {
	_, ok := cashEquivalents[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}

// PriceBook USD prices keyed by asset symbol.
type PriceBook map[string]decimal.Decimal

// Price returns the USD price of a symbol. Cash equivalents are always 1.
func (b PriceBook) Price(symbol string) (decimal.Decimal, bool) {
	if IsCashEquivalent(symbol) {
		return decimal.NewFromInt(1), true
	}
	price, ok := b[strings.ToUpper(symbol)]
	return price, ok
}
