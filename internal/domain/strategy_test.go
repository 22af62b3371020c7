package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRuleFor(t *testing.T) {
	tests := []struct {
		preset Preset
		risk   RiskMode
		rsi    string
		tp     string
		sl     string
	}{
		{PresetSwing, RiskConservative, "45", "8", "4"},
		{PresetSwing, RiskAggressive, "50", "12", "6"},
		{PresetIntraday, RiskConservative, "40", "3", "1.5"},
		{PresetIntraday, RiskAggressive, "45", "5", "2.5"},
		{PresetScalp, RiskConservative, "35", "1", "0.5"},
		{PresetScalp, RiskAggressive, "40", "1.5", "0.75"},
	}

	for _, tt := range tests {
		t.Run(string(tt.preset)+"_"+string(tt.risk), func(t *testing.T) {
			rule, err := RuleFor(tt.preset, tt.risk)
			require.NoError(t, err)
			require.True(t, rule.RSIThreshold.Equal(decimal.RequireFromString(tt.rsi)))
			require.True(t, rule.TakeProfitPct.Equal(decimal.RequireFromString(tt.tp)))
			require.True(t, rule.StopLossPct.Equal(decimal.RequireFromString(tt.sl)))
		})
	}
}

func TestRuleFor_Unknown(t *testing.T) {
	_, err := RuleFor(Preset("position"), RiskConservative)
	require.Error(t, err)
}

func TestRules_StableOrder(t *testing.T) {
	rules := Rules()
	require.Len(t, rules, 6)
	require.Equal(t, PresetSwing, rules[0].Preset)
	require.Equal(t, RiskConservative, rules[0].Risk)
	require.Equal(t, PresetScalp, rules[5].Preset)
	require.Equal(t, RiskAggressive, rules[5].Risk)
}

func TestStrategyRule_ExitLevels(t *testing.T) {
	rule, err := RuleFor(PresetSwing, RiskConservative)
	require.NoError(t, err)

	entry := decimal.NewFromInt(100)
	require.Equal(t, "108", rule.TakeProfitPrice(entry).String())
	require.Equal(t, "96", rule.StopLossPrice(entry).String())
}

func TestParseEnums(t *testing.T) {
	preset, err := ParsePreset(" Intraday ")
	require.NoError(t, err)
	require.Equal(t, PresetIntraday, preset)

	risk, err := ParseRiskMode("AGGRESSIVE")
	require.NoError(t, err)
	require.Equal(t, RiskAggressive, risk)

	exit, err := ParseExitMethod("resistance")
	require.NoError(t, err)
	require.Equal(t, ExitResistance, exit)

	_, err = ParsePreset("hodl")
	require.Error(t, err)
	_, err = ParseRiskMode("yolo")
	require.Error(t, err)
	_, err = ParseExitMethod("trailing")
	require.Error(t, err)
}
