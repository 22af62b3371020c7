package view

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

func defaultRule(t *testing.T) domain.StrategyRule {
	rule, err := domain.RuleFor(domain.PresetSwing, domain.RiskConservative)
	require.NoError(t, err)
	return rule
}

func TestContext_StartsLoading(t *testing.T) {
	c := NewContext(defaultRule(t))

	require.True(t, c.Portfolio().Loading)
	require.True(t, c.Orders().Loading)
	require.NotNil(t, c.Positions())
	require.Empty(t, c.Positions())
	require.True(t, c.UpdatedAt().IsZero())

	set, err := c.Signals(domain.PresetScalp, domain.RiskAggressive)
	require.NoError(t, err)
	require.Empty(t, set)
}

func TestContext_PublishAndQuery(t *testing.T) {
	c := NewContext(defaultRule(t))
	at := time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

	portfolio := domain.PortfolioView{TotalValueUSD: decimal.NewFromInt(100), Availability: domain.AvailabilityOK}
	c.Publish(Update{
		Portfolio: &portfolio,
		Positions: []domain.Position{{GroupKey: "g1"}},
		Indicators: map[string]domain.IndicatorSnapshot{
			"ethusdt": {Symbol: "ETHUSDT"},
			"BTCUSDT": {Symbol: "BTCUSDT"},
		},
		Signals: map[RuleID]SignalSet{
			{Preset: domain.PresetSwing, Risk: domain.RiskConservative}: {
				"btcusdt": {Symbol: "BTCUSDT", Signal: domain.SignalBuy},
			},
		},
		At: at,
	})

	require.False(t, c.Portfolio().Loading)
	require.Equal(t, "100", c.Portfolio().TotalValueUSD.String())
	require.True(t, c.Orders().Loading)
	require.Len(t, c.Positions(), 1)
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, c.Symbols())
	require.Equal(t, at, c.UpdatedAt())

	res, err := c.Signal("BTCUSDT", domain.PresetSwing, domain.RiskConservative)
	require.NoError(t, err)
	require.Equal(t, domain.SignalBuy, res.Signal)

	_, err = c.Signal("DOGEUSDT", domain.PresetSwing, domain.RiskConservative)
	require.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = c.Signals("weekly", domain.RiskConservative)
	require.Error(t, err)
}

func TestContext_PublishCopiesInput(t *testing.T) {
	c := NewContext(defaultRule(t))
	positions := []domain.Position{{GroupKey: "a"}}
	c.Publish(Update{Positions: positions})

	positions[0].GroupKey = "mutated"
	require.Equal(t, "a", c.Positions()[0].GroupKey)
}

func TestID(t *testing.T) {
	rule := defaultRule(t)
	require.Equal(t, RuleID{Preset: domain.PresetSwing, Risk: domain.RiskConservative}, ID(rule))
}
