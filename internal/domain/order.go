package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// ParseOrderSide normalizes buy/sell spellings. Unknown values return false.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG", "BID":
		return OrderSideBuy, true
	case "SELL", "SHORT", "ASK":
		return OrderSideSell, true
	}
	return "", false
}

// standaloneGroupPrefix prefixes synthesized group keys of ungrouped orders.
const standaloneGroupPrefix = "standalone-"

// Order canonical order record produced by feed normalization.
type Order struct {
	OrderID          string          `json:"order_id"`
	Symbol           string          `json:"symbol"`
	Side             OrderSide       `json:"side"`
	Type             string          `json:"type"`
	TriggerType      string          `json:"trigger_type,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	ExecutedQuantity decimal.Decimal `json:"executed_quantity"`
	Price            decimal.Decimal `json:"price"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	ClientGroupID    string          `json:"client_group_id,omitempty"`
}

// GroupKey bracket group of the order; standalone orders form their own group.
func (o Order) GroupKey() string {
	if o.ClientGroupID != "" {
		return o.ClientGroupID
	}
	return standaloneGroupPrefix + o.OrderID
}

// IsTerminal reports whether the order can no longer execute.
func (o Order) IsTerminal() bool {
	switch strings.ToUpper(strings.TrimSpace(o.Status)) {
	case "FILLED", "CANCELED", "CANCELLED", "EXPIRED", "REJECTED":
		return true
	}
	return false
}

// OrderSource which resolver produced an order list.
type OrderSource string

const (
	OrderSourceLive      OrderSource = "live"
	OrderSourceSnapshot  OrderSource = "snapshot"
	OrderSourceLegacy    OrderSource = "legacy"
	OrderSourceLastKnown OrderSource = "last_known"
	OrderSourceNone      OrderSource = "none"
)

// OrderView reconciled open and executed orders.
type OrderView struct {
	Open         []Order       `json:"open"`
	Executed     []Order       `json:"executed"`
	Source       OrderSource   `json:"source"`
	Staleness    StalenessInfo `json:"staleness"`
	Availability Availability  `json:"availability"`
	Message      string        `json:"message,omitempty"`
	Loading      bool          `json:"loading"`
}

// All open orders followed by executed ones.
func (v OrderView) All() []Order {
	all := make([]Order, 0, len(v.Open)+len(v.Executed))
	all = append(all, v.Open...)
	return append(all, v.Executed...)
}

// NewLoadingOrders view used before the first cycle resolves.
func NewLoadingOrders() OrderView {
	return OrderView{
		Open:         []Order{},
		Executed:     []Order{},
		Source:       OrderSourceNone,
		Availability: AvailabilityOK,
		Loading:      true,
	}
}
