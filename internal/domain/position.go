package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntrySource where the entry price of a position came from.
type EntrySource string

const (
	EntrySourcePortfolio EntrySource = "portfolio"
	EntrySourceVWAP      EntrySource = "vwap"
	EntrySourceNone      EntrySource = "none"
)

// Position bracket of exit orders regrouped into the logical position that produced them.
// It is rebuilt on every aggregation pass and never stored.
type Position struct {
	GroupKey         string              `json:"group_key"`
	Symbol           string              `json:"symbol"`
	BaseOrderID      string              `json:"base_order_id"`
	BaseQuantity     decimal.Decimal     `json:"base_quantity"`
	BasePrice        decimal.Decimal     `json:"base_price"`
	BaseCreatedAt    time.Time           `json:"base_created_at"`
	EntrySource      EntrySource         `json:"entry_source"`
	TakeProfitPrice  decimal.NullDecimal `json:"take_profit_price"`
	StopLossPrice    decimal.NullDecimal `json:"stop_loss_price"`
	TakeProfitProfit decimal.NullDecimal `json:"take_profit_profit"`
	StopLossProfit   decimal.NullDecimal `json:"stop_loss_profit"`
	TakeProfitCount  int                 `json:"take_profit_count"`
	StopLossCount    int                 `json:"stop_loss_count"`
	OtherExitCount   int                 `json:"other_exit_count"`
	ChildOrders      []Order             `json:"child_orders"`
}

// ProfitAt projected profit if the whole position exits at price.
func (p Position) ProfitAt(price decimal.Decimal) decimal.Decimal {
	return price.Sub(p.BasePrice).Mul(p.BaseQuantity)
}
