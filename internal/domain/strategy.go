package domain

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Preset trading horizon the thresholds are tuned for.
type Preset string

const (
	PresetSwing    Preset = "swing"
	PresetIntraday Preset = "intraday"
	PresetScalp    Preset = "scalp"
)

// RiskMode selects the conservative or aggressive row of a preset.
type RiskMode string

const (
	RiskConservative RiskMode = "conservative"
	RiskAggressive   RiskMode = "aggressive"
)

// ExitMethod decides how an overbought reading turns into a sell.
type ExitMethod string

const (
	// ExitFixed sells on the oscillator alone.
	ExitFixed ExitMethod = "fixed"
	// ExitResistance additionally requires price to reach the resistance level.
	ExitResistance ExitMethod = "resistance"
)

// ParsePreset parses a preset name case-insensitively.
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PresetSwing, PresetIntraday, PresetScalp:
		return p, nil
	}
	return "", errors.Errorf("unknown preset %q", s)
}

// ParseRiskMode parses a risk mode name case-insensitively.
func ParseRiskMode(s string) (RiskMode, error) {
	r := RiskMode(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RiskConservative, RiskAggressive:
		return r, nil
	}
	return "", errors.Errorf("unknown risk mode %q", s)
}

// ParseExitMethod parses an exit method name case-insensitively.
func ParseExitMethod(s string) (ExitMethod, error) {
	e := ExitMethod(strings.ToLower(strings.TrimSpace(s)))
	switch e {
	case ExitFixed, ExitResistance:
		return e, nil
	}
	return "", errors.Errorf("unknown exit method %q", s)
}

// StrategyRule numeric thresholds for one (preset, risk) combination.
type StrategyRule struct {
	Preset        Preset          `json:"preset"`
	Risk          RiskMode        `json:"risk"`
	RSIThreshold  decimal.Decimal `json:"rsi_threshold"`
	TakeProfitPct decimal.Decimal `json:"take_profit_pct"`
	StopLossPct   decimal.Decimal `json:"stop_loss_pct"`
}

type ruleKey struct {
	preset Preset
	risk   RiskMode
}

var ruleTable = map[ruleKey]StrategyRule{
	{PresetSwing, RiskConservative}:    newRule(PresetSwing, RiskConservative, "45", "8", "4"),
	{PresetSwing, RiskAggressive}:      newRule(PresetSwing, RiskAggressive, "50", "12", "6"),
	{PresetIntraday, RiskConservative}: newRule(PresetIntraday, RiskConservative, "40", "3", "1.5"),
	{PresetIntraday, RiskAggressive}:   newRule(PresetIntraday, RiskAggressive, "45", "5", "2.5"),
	{PresetScalp, RiskConservative}:    newRule(PresetScalp, RiskConservative, "35", "1", "0.5"),
	{PresetScalp, RiskAggressive}:      newRule(PresetScalp, RiskAggressive, "40", "1.5", "0.75"),
}

func newRule(preset Preset, risk RiskMode, rsi, tp, sl string) StrategyRule {
	return StrategyRule{
		Preset:        preset,
		Risk:          risk,
		RSIThreshold:  decimal.RequireFromString(rsi),
		TakeProfitPct: decimal.RequireFromString(tp),
		StopLossPct:   decimal.RequireFromString(sl),
	}
}

// RuleFor looks up the thresholds for a preset and risk mode.
func RuleFor(preset Preset, risk RiskMode) (StrategyRule, error) {
	rule, ok := ruleTable[ruleKey{preset: preset, risk: risk}]
	if !ok {
		return StrategyRule{}, errors.Errorf("no strategy rule for preset %q and risk %q", preset, risk)
	}
	return rule, nil
}

// Rules returns the whole table in a stable order.
func Rules() []StrategyRule {
	rules := make([]StrategyRule, 0, len(ruleTable))
	for _, preset := range []Preset{PresetSwing, PresetIntraday, PresetScalp} {
		for _, risk := range []RiskMode{RiskConservative, RiskAggressive} {
			rules = append(rules, ruleTable[ruleKey{preset: preset, risk: risk}])
		}
	}
	return rules
}

// TakeProfitPrice projects the take-profit level for an entry price.
func (r StrategyRule) TakeProfitPrice(entry decimal.Decimal) decimal.Decimal {
	return entry.Mul(decimal.NewFromInt(percentBase).Add(r.TakeProfitPct)).Div(decimal.NewFromInt(percentBase))
}

// StopLossPrice projects the stop-loss level for an entry price.
func (r StrategyRule) StopLossPrice(entry decimal.Decimal) decimal.Decimal {
	return entry.Mul(decimal.NewFromInt(percentBase).Sub(r.StopLossPct)).Div(decimal.NewFromInt(percentBase))
}

const percentBase = 100
