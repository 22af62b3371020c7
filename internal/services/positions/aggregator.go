// Package positions regroups flat exit orders into the bracket positions that produced them.
package positions

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

type exitKind int

const (
	exitOther exitKind = iota
	exitTakeProfit
	exitStopLoss
)

var (
	takeProfitMarkers = []string{"TAKE_PROFIT", "TAKEPROFIT", "TP"}
	stopLossMarkers   = []string{"STOP_LOSS", "STOPLOSS", "SL", "STOP"}
)

// Aggregate builds one position per group of working SELL orders; filled or cancelled exits
// never open a position. BUY orders sharing a group key, filled or not, are used only as the
// entry reference. The portfolio, when given, supplies the entry price.
func Aggregate(orders []domain.Order, portfolio *domain.PortfolioView) []domain.Position {
	entries := make(map[string]domain.Order)
	groups := make(map[string][]domain.Order)
	var keys []string

	for _, o := range orders {
		key := o.GroupKey()
		switch o.Side {
		case domain.OrderSideBuy:
			if prev, ok := entries[key]; !ok || earlier(o, prev) {
				entries[key] = o
			}
		case domain.OrderSideSell:
			if o.IsTerminal() {
				continue
			}
			if _, ok := groups[key]; !ok {
				keys = append(keys, key)
			}
			groups[key] = append(groups[key], o)
		}
	}

	positions := make([]domain.Position, 0, len(keys))
	for _, key := range keys {
		entry, hasEntry := entries[key]
		positions = append(positions, buildPosition(key, groups[key], entry, hasEntry, portfolio))
	}

	sort.SliceStable(positions, func(i, j int) bool {
		if !positions[i].BaseCreatedAt.Equal(positions[j].BaseCreatedAt) {
			return positions[i].BaseCreatedAt.Before(positions[j].BaseCreatedAt)
		}
		return positions[i].GroupKey < positions[j].GroupKey
	})

	return positions
}

func buildPosition(key string, exits []domain.Order, entry domain.Order, hasEntry bool, portfolio *domain.PortfolioView) domain.Position {
	children := append([]domain.Order(nil), exits...)
	sort.SliceStable(children, func(i, j int) bool { return earlier(children[i], children[j]) })

	pos := domain.Position{
		GroupKey:    key,
		Symbol:      children[0].Symbol,
		BaseOrderID: children[0].OrderID,
		ChildOrders: children,
		EntrySource: domain.EntrySourceNone,
	}
	if hasEntry {
		pos.BaseOrderID = entry.OrderID
		if pos.Symbol == "" {
			pos.Symbol = entry.Symbol
		}
	}

	for _, o := range children {
		switch classify(o) {
		case exitTakeProfit:
			pos.TakeProfitCount++
			if o.Price.IsPositive() && (!pos.TakeProfitPrice.Valid || o.Price.GreaterThan(pos.TakeProfitPrice.Decimal)) {
				pos.TakeProfitPrice = domain.Known(o.Price)
			}
		case exitStopLoss:
			pos.StopLossCount++
			if o.Price.IsPositive() && (!pos.StopLossPrice.Valid || o.Price.LessThan(pos.StopLossPrice.Decimal)) {
				pos.StopLossPrice = domain.Known(o.Price)
			}
		default:
			pos.OtherExitCount++
		}
	}

	pos.BaseQuantity = baseQuantity(children, entry, hasEntry)
	pos.BaseCreatedAt = earliestCreatedAt(children, entry, hasEntry)

	if price, source, ok := entryPrice(pos.Symbol, children, portfolio); ok {
		pos.BasePrice = price
		pos.EntrySource = source
		pos.TakeProfitProfit = profit(pos, pos.TakeProfitPrice)
		pos.StopLossProfit = profit(pos, pos.StopLossPrice)
	}

	return pos
}

func classify(o domain.Order) exitKind {
	switch {
	case hasMarker(o.Type, takeProfitMarkers), hasMarker(o.TriggerType, takeProfitMarkers):
		return exitTakeProfit
	case hasMarker(o.Type, stopLossMarkers), hasMarker(o.TriggerType, stopLossMarkers):
		return exitStopLoss
	}
	return exitOther
}

// hasMarker matches a marker as a whole "_"-separated prefix of the tag.
func hasMarker(tag string, markers []string) bool {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	for _, m := range markers {
		if tag == m || strings.HasPrefix(tag, m+"_") {
			return true
		}
	}
	return false
}

func baseQuantity(exits []domain.Order, entry domain.Order, hasEntry bool) decimal.Decimal {
	if hasEntry && entry.Quantity.IsPositive() {
		return entry.Quantity
	}

	largest := decimal.Zero
	for _, o := range exits {
		if o.Quantity.GreaterThan(largest) {
			largest = o.Quantity
		}
	}
	return largest
}

func earliestCreatedAt(exits []domain.Order, entry domain.Order, hasEntry bool) time.Time {
	var earliest time.Time
	consider := func(ts time.Time) {
		if !ts.IsZero() && (earliest.IsZero() || ts.Before(earliest)) {
			earliest = ts
		}
	}

	for _, o := range exits {
		consider(o.CreatedAt)
	}
	if hasEntry {
		consider(entry.CreatedAt)
	}
	return earliest
}

// entryPrice prefers the portfolio cost basis of the base asset, then the VWAP of the exits.
func entryPrice(symbol string, exits []domain.Order, portfolio *domain.PortfolioView) (decimal.Decimal, domain.EntrySource, bool) {
	if asset, ok := portfolio.Asset(domain.BaseAsset(symbol)); ok {
		if unit := asset.UnitPrice(); unit.Valid {
			return unit.Decimal, domain.EntrySourcePortfolio, true
		}
	}

	notional, volume := decimal.Zero, decimal.Zero
	for _, o := range exits {
		if !o.Price.IsPositive() || !o.Quantity.IsPositive() {
			continue
		}
		notional = notional.Add(o.Price.Mul(o.Quantity))
		volume = volume.Add(o.Quantity)
	}
	if volume.IsZero() {
		return decimal.Zero, domain.EntrySourceNone, false
	}
	return notional.Div(volume), domain.EntrySourceVWAP, true
}

func profit(pos domain.Position, exit decimal.NullDecimal) decimal.NullDecimal {
	if !exit.Valid {
		return decimal.NullDecimal{}
	}
	return domain.Known(pos.ProfitAt(exit.Decimal))
}

func earlier(a, b domain.Order) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}
