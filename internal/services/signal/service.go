package signal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

// Evaluator binds a strategy rule and exit method.
type Evaluator struct {
	rule domain.StrategyRule
	exit domain.ExitMethod
}

// NewEvaluator creates an evaluator for rule.
func NewEvaluator(rule domain.StrategyRule, exit domain.ExitMethod) *Evaluator {
	return &Evaluator{rule: rule, exit: exit}
}

// Rule returns the bound rule.
func (e *Evaluator) Rule() domain.StrategyRule {
	return e.rule
}

// Evaluate runs the preset rule, holds back sells the exit method does not allow yet
// and attaches the oscillator signal.
func (e *Evaluator) Evaluate(ind domain.IndicatorSnapshot) domain.SignalResult {
	res := EvaluatePreset(ind, e.rule)

	if res.Signal == domain.SignalSell && e.exit == domain.ExitResistance && !reachedResistance(ind) {
		res.Signal = domain.SignalWait
		res.Reason = fmt.Sprintf("%s; sell held until price reaches resistance %s", res.Reason, nullString(ind.ResistanceUp))
	}
	res.Oscillator = EvaluateWithExit(ind, e.rule, e.exit)

	return res
}

// EvaluateAll evaluates every snapshot keyed by symbol.
func (e *Evaluator) EvaluateAll(snapshots map[string]domain.IndicatorSnapshot) map[string]domain.SignalResult {
	results := make(map[string]domain.SignalResult, len(snapshots))
	for symbol, ind := range snapshots {
		if ind.Symbol == "" {
			ind.Symbol = symbol
		}
		results[symbol] = e.Evaluate(ind)
	}
	return results
}

func nullString(v decimal.NullDecimal) string {
	if !v.Valid {
		return "unknown"
	}
	return f(v.Decimal)
}
