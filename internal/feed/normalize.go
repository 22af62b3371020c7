package feed

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

// Accepted upstream spellings, first match wins.
var (
	assetSymbolKeys  = []string{"coin", "currency", "symbol", "asset"}
	assetBalanceKeys = []string{"balance", "total", "amount", "qty"}
	assetValueKeys   = []string{"value_usd", "usd_value"}
	updatedAtKeys    = []string{"updated_at", "updatedAt", "update_time"}

	orderIDKeys       = []string{"order_id", "orderId", "id"}
	orderSymbolKeys   = []string{"symbol", "pair", "instrument"}
	orderTypeKeys     = []string{"type", "order_type"}
	orderTriggerKeys  = []string{"trigger_type", "triggerType"}
	orderQtyKeys      = []string{"quantity", "qty", "orig_qty"}
	orderExecutedKeys = []string{"executed_qty", "cum_filled_qty", "cumulative_filled_quantity"}
	orderPriceKeys    = []string{"price", "limit_price"}
	orderStopKeys     = []string{"stop_price", "trigger_price"}
	orderStatusKeys   = []string{"status", "state"}
	orderCreatedKeys  = []string{"created_at", "create_time", "createdAt", "time"}
	orderGroupKeys    = []string{"client_group_id", "clientGroupId", "group_id"}

	indicatorKeys = map[string][]string{
		"price":         {"price", "last_price", "close"},
		"rsi":           {"rsi", "rsi14", "rsi_14"},
		"ma50":          {"ma50", "ma_50", "sma50"},
		"ma200":         {"ma200", "ma_200", "sma200"},
		"ema10":         {"ema10", "ema_10"},
		"volume":        {"volume"},
		"avg_volume":    {"avg_volume", "avgVolume", "average_volume"},
		"resistance_up": {"resistance_up", "resistanceUp", "resistance"},
	}

	timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}
)

// object is a JSON object read by field alias. JSON null counts as absent.
type object struct {
	gjson.Result
}

func decodeObject(body []byte) (object, error) {
	if !gjson.ValidBytes(body) {
		return object{}, errors.Wrap(ErrMalformedSource, "response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return object{}, errors.Wrap(ErrMalformedSource, "response is not a JSON object")
	}
	return object{root}, nil
}

// DecodeSnapshot normalizes a snapshot response body.
func DecodeSnapshot(body []byte) (*Snapshot, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Empty:        obj.flag("empty"),
		Stale:        obj.flag("stale"),
		StaleSeconds: obj.number("stale_seconds"),
	}
	if ts, ok := obj.timestamp("last_updated_at"); ok {
		snap.LastUpdatedAt = ts
	}
	if data, ok := obj.nested("data"); ok {
		snap.Data = normalizeState(data)
	}

	return snap, nil
}

// DecodeLiveState normalizes a live-state response body.
func DecodeLiveState(body []byte) (*LiveState, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	return normalizeState(obj), nil
}

// DecodeOrders normalizes a legacy orders response body.
func DecodeOrders(body []byte) ([]domain.Order, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	items, ok := obj.list("orders")
	if !ok {
		return nil, errors.Wrap(ErrMalformedSource, "orders list missing")
	}

	orders, _ := normalizeOrders(items)
	return orders, nil
}

func normalizeState(obj object) *LiveState {
	state := &LiveState{
		BotStatus:  obj.str("bot_status"),
		Indicators: map[string]domain.IndicatorSnapshot{},
	}

	if portfolio, ok := obj.nested("portfolio"); ok {
		state.Portfolio = normalizePortfolio(portfolio)
	}

	if items, ok := obj.list("balances"); ok {
		for _, item := range items {
			if !item.IsObject() {
				state.Malformed++
				continue
			}
			balance, ok := normalizeBalance(object{item})
			if !ok {
				state.Malformed++
				continue
			}
			state.Balances = append(state.Balances, balance)
		}
	}

	if items, ok := obj.list("open_orders"); ok {
		var dropped int
		state.HasOrders = true
		state.OpenOrders, dropped = normalizeOrders(items)
		state.Malformed += dropped
	}
	if items, ok := obj.list("executed_orders"); ok {
		var dropped int
		state.HasOrders = true
		state.ExecutedOrders, dropped = normalizeOrders(items)
		state.Malformed += dropped
	}

	if indicators, ok := obj.nested("indicators"); ok {
		indicators.ForEach(func(key, value gjson.Result) bool {
			if !value.IsObject() {
				state.Malformed++
				return true
			}
			snap := normalizeIndicators(object{value})
			snap.Symbol = strings.ToUpper(key.String())
			state.Indicators[snap.Symbol] = snap
			return true
		})
	}

	if items, ok := obj.list("errors"); ok {
		for _, item := range items {
			if item.Type == gjson.String {
				state.Errors = append(state.Errors, item.Str)
			}
		}
	}

	return state
}

func normalizePortfolio(obj object) *PortfolioPayload {
	payload := &PortfolioPayload{
		TotalValueUSD:      obj.number("total_value_usd"),
		TotalAssetsUSD:     obj.number("total_assets_usd"),
		TotalCollateralUSD: obj.number("total_collateral_usd"),
		TotalBorrowedUSD:   obj.number("total_borrowed_usd"),
	}

	items, _ := obj.list("assets")
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		if asset, ok := normalizeAsset(object{item}); ok {
			payload.Assets = append(payload.Assets, asset)
		}
	}

	return payload
}

func normalizeAsset(obj object) (domain.Asset, bool) {
	symbol := strings.ToUpper(obj.str(assetSymbolKeys...))
	if symbol == "" {
		return domain.Asset{}, false
	}

	asset := domain.Asset{
		Symbol:   symbol,
		Balance:  obj.numberOrZero(assetBalanceKeys...),
		ValueUSD: obj.numberOrZero(assetValueKeys...),
	}
	if ts, ok := obj.timestamp(updatedAtKeys...); ok {
		asset.UpdatedAt = ts
	}
	return asset, true
}

func normalizeBalance(obj object) (Balance, bool) {
	symbol := strings.ToUpper(obj.str("asset", "coin", "currency"))
	if symbol == "" {
		return Balance{}, false
	}
	return Balance{
		Asset:    symbol,
		Free:     obj.numberOrZero("free", "available"),
		Locked:   obj.numberOrZero("locked", "frozen"),
		Reported: obj.number("total", "balance"),
	}, true
}

func normalizeOrders(items []gjson.Result) ([]domain.Order, int) {
	orders := make([]domain.Order, 0, len(items))
	dropped := 0
	for _, item := range items {
		if !item.IsObject() {
			dropped++
			continue
		}
		order, ok := normalizeOrder(object{item})
		if !ok {
			dropped++
			continue
		}
		orders = append(orders, order)
	}
	return orders, dropped
}

func normalizeOrder(obj object) (domain.Order, bool) {
	id := obj.str(orderIDKeys...)
	side, ok := domain.ParseOrderSide(obj.str("side"))
	if id == "" || !ok {
		return domain.Order{}, false
	}

	order := domain.Order{
		OrderID:          id,
		Symbol:           strings.ToUpper(obj.str(orderSymbolKeys...)),
		Side:             side,
		Type:             strings.ToUpper(obj.str(orderTypeKeys...)),
		TriggerType:      strings.ToUpper(obj.str(orderTriggerKeys...)),
		Quantity:         obj.numberOrZero(orderQtyKeys...),
		ExecutedQuantity: obj.numberOrZero(orderExecutedKeys...),
		Price:            obj.numberOrZero(orderPriceKeys...),
		Status:           strings.ToUpper(obj.str(orderStatusKeys...)),
		ClientGroupID:    obj.str(orderGroupKeys...),
	}
	if !order.Price.IsPositive() {
		order.Price = obj.numberOrZero(orderStopKeys...)
	}
	if ts, ok := obj.timestamp(orderCreatedKeys...); ok {
		order.CreatedAt = ts
	}

	return order, true
}

func normalizeIndicators(obj object) domain.IndicatorSnapshot {
	snap := domain.IndicatorSnapshot{
		Price:        obj.number(indicatorKeys["price"]...),
		RSI:          obj.number(indicatorKeys["rsi"]...),
		MA50:         obj.number(indicatorKeys["ma50"]...),
		MA200:        obj.number(indicatorKeys["ma200"]...),
		EMA10:        obj.number(indicatorKeys["ema10"]...),
		Volume:       obj.number(indicatorKeys["volume"]...),
		AvgVolume:    obj.number(indicatorKeys["avg_volume"]...),
		ResistanceUp: obj.number(indicatorKeys["resistance_up"]...),
	}
	if ts, ok := obj.timestamp(updatedAtKeys...); ok {
		snap.UpdatedAt = ts
	}
	return snap
}

// field returns the value stored under key, escaped so gjson reads it as a plain name.
func (o object) field(key string) (gjson.Result, bool) {
	v := o.Get(gjson.Escape(key))
	return v, v.Exists() && v.Type != gjson.Null
}

func (o object) str(keys ...string) string {
	for _, key := range keys {
		v, ok := o.field(key)
		if !ok {
			continue
		}
		switch v.Type {
		case gjson.String:
			return strings.TrimSpace(v.Str)
		case gjson.Number:
			return v.Raw
		case gjson.True, gjson.False:
			return strconv.FormatBool(v.Bool())
		}
		return ""
	}
	return ""
}

func (o object) flag(key string) bool {
	v, ok := o.field(key)
	if !ok {
		return false
	}
	switch v.Type {
	case gjson.True, gjson.False:
		return v.Bool()
	case gjson.String:
		b, _ := strconv.ParseBool(strings.TrimSpace(v.Str))
		return b
	}
	return false
}

// number returns the first parsable finite number among keys.
func (o object) number(keys ...string) decimal.NullDecimal {
	for _, key := range keys {
		v, ok := o.field(key)
		if !ok {
			continue
		}
		if d, ok := toDecimal(v); ok {
			return domain.Known(d)
		}
	}
	return decimal.NullDecimal{}
}

func (o object) numberOrZero(keys ...string) decimal.Decimal {
	d := o.number(keys...)
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func (o object) timestamp(keys ...string) (time.Time, bool) {
	for _, key := range keys {
		v, ok := o.field(key)
		if !ok {
			continue
		}
		if ts, ok := toTime(v); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

func (o object) nested(key string) (object, bool) {
	v, ok := o.field(key)
	if !ok || !v.IsObject() {
		return object{}, false
	}
	return object{v}, true
}

func (o object) list(key string) ([]gjson.Result, bool) {
	v, ok := o.field(key)
	if !ok || !v.IsArray() {
		return nil, false
	}
	return v.Array(), true
}

// toDecimal parses numbers from their raw JSON text.
func toDecimal(v gjson.Result) (decimal.Decimal, bool) {
	var s string
	switch v.Type {
	case gjson.Number:
		s = v.Raw
	case gjson.String:
		s = strings.TrimSpace(v.Str)
	default:
		return decimal.Zero, false
	}
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// toTime accepts RFC3339-like strings and unix timestamps in seconds or milliseconds.
func toTime(v gjson.Result) (time.Time, bool) {
	if v.Type == gjson.String {
		s := strings.TrimSpace(v.Str)
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
	}

	d, ok := toDecimal(v)
	if !ok || !d.IsPositive() {
		return time.Time{}, false
	}
	n := d.IntPart()
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}

// SortedSymbols indicator symbols in lexical order.
func (s *LiveState) SortedSymbols() []string {
	symbols := make([]string, 0, len(s.Indicators))
	for symbol := range s.Indicators {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
