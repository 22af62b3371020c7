// Package view holds the current derived views and answers read-only queries against them.
//
// Each cell is replaced wholesale by the cycle driver; readers never observe a partially
// updated view.
package view

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

// ErrUnknownSymbol returned when no signal was evaluated for a symbol.
var ErrUnknownSymbol = errors.New("unknown symbol")

// SignalSet signal results of one rule keyed by symbol.
type SignalSet map[string]domain.SignalResult

// RuleID names a strategy rule.
type RuleID struct {
	Preset domain.Preset
	Risk   domain.RiskMode
}

// ID returns the identifier of rule.
func ID(rule domain.StrategyRule) RuleID {
	return RuleID{Preset: rule.Preset, Risk: rule.Risk}
}

// Context is the shared view store. The zero value is not usable; call NewContext.
type Context struct {
	portfolio  atomic.Pointer[domain.PortfolioView]
	orders     atomic.Pointer[domain.OrderView]
	positions  atomic.Pointer[[]domain.Position]
	indicators atomic.Pointer[map[string]domain.IndicatorSnapshot]
	signals    atomic.Pointer[map[RuleID]SignalSet]
	updatedAt  atomic.Pointer[time.Time]

	defaultRule domain.StrategyRule
}

// NewContext creates a context whose views are loading. defaultRule answers queries that
// name no rule.
func NewContext(defaultRule domain.StrategyRule) *Context {
	c := &Context{defaultRule: defaultRule}

	portfolio := domain.NewLoadingPortfolio()
	orders := domain.NewLoadingOrders()
	positions := []domain.Position{}
	indicators := map[string]domain.IndicatorSnapshot{}
	signals := map[RuleID]SignalSet{}

	c.portfolio.Store(&portfolio)
	c.orders.Store(&orders)
	c.positions.Store(&positions)
	c.indicators.Store(&indicators)
	c.signals.Store(&signals)
	return c
}

// DefaultRule returns the rule used when a query names none.
func (c *Context) DefaultRule() domain.StrategyRule {
	return c.defaultRule
}

func (c *Context) Portfolio() domain.PortfolioView {
	return *c.portfolio.Load()
}

func (c *Context) Orders() domain.OrderView {
	return *c.orders.Load()
}

func (c *Context) Positions() []domain.Position {
	return *c.positions.Load()
}

// Indicators returns the latest indicator snapshots keyed by symbol.
func (c *Context) Indicators() map[string]domain.IndicatorSnapshot {
	return *c.indicators.Load()
}

// UpdatedAt returns when the views were last published, zero before the first cycle.
func (c *Context) UpdatedAt() time.Time {
	if t := c.updatedAt.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Signals returns every evaluated symbol under the rule.
func (c *Context) Signals(preset domain.Preset, risk domain.RiskMode) (SignalSet, error) {
	if _, err := domain.RuleFor(preset, risk); err != nil {
		return nil, err
	}
	set := (*c.signals.Load())[RuleID{preset, risk}]
	if set == nil {
		return SignalSet{}, nil
	}
	return set, nil
}

// Signal returns the result for one symbol under the rule.
func (c *Context) Signal(symbol string, preset domain.Preset, risk domain.RiskMode) (domain.SignalResult, error) {
	set, err := c.Signals(preset, risk)
	if err != nil {
		return domain.SignalResult{}, err
	}
	res, ok := set[strings.ToUpper(symbol)]
	if !ok {
		return domain.SignalResult{}, errors.Wrap(ErrUnknownSymbol, symbol)
	}
	return res, nil
}

// Symbols returns the evaluated symbols in order.
func (c *Context) Symbols() []string {
	ind := c.Indicators()
	symbols := make([]string, 0, len(ind))
	for s := range ind {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Update is one cycle's worth of views. Nil fields leave the corresponding cell untouched.
type Update struct {
	Portfolio  *domain.PortfolioView
	Orders     *domain.OrderView
	Positions  []domain.Position
	Indicators map[string]domain.IndicatorSnapshot
	Signals    map[RuleID]SignalSet
	At         time.Time
}

// Publish replaces the cells named by u.
func (c *Context) Publish(u Update) {
	if u.Portfolio != nil {
		p := *u.Portfolio
		c.portfolio.Store(&p)
	}
	if u.Orders != nil {
		o := *u.Orders
		c.orders.Store(&o)
	}
	if u.Positions != nil {
		positions := append([]domain.Position(nil), u.Positions...)
		c.positions.Store(&positions)
	}
	if u.Indicators != nil {
		indicators := make(map[string]domain.IndicatorSnapshot, len(u.Indicators))
		for k, v := range u.Indicators {
			indicators[strings.ToUpper(k)] = v
		}
		c.indicators.Store(&indicators)
	}
	if u.Signals != nil {
		signals := make(map[RuleID]SignalSet, len(u.Signals))
		for id, set := range u.Signals {
			upper := make(SignalSet, len(set))
			for k, v := range set {
				upper[strings.ToUpper(k)] = v
			}
			signals[id] = upper
		}
		c.signals.Store(&signals)
	}
	if !u.At.IsZero() {
		at := u.At
		c.updatedAt.Store(&at)
	}
}
