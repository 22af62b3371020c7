// Package signal computes BUY/SELL/WAIT recommendations from indicator snapshots.
// Every function here is pure: identical input always yields identical output.
package signal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

// OverboughtRSI upper oscillator bound shared by every preset and risk mode.
var OverboughtRSI = decimal.NewFromInt(70)

// trend-confirmation bounds per preset
var (
	swingBuyMaxRSI      = decimal.NewFromInt(60)
	swingSellMinRSI     = decimal.NewFromInt(50)
	swingMinVolumeRatio = decimal.NewFromFloat(1.2)
	intradayBuyMaxRSI   = decimal.NewFromInt(55)
	intradaySellMinRSI  = decimal.NewFromInt(60)
	scalpBuyMaxRSI      = decimal.NewFromInt(40)
	scalpSellMinRSI     = decimal.NewFromInt(70)
)

// EvaluateSignal base oscillator rule: below the rule threshold is a BUY, above the
// overbought line is a SELL, a missing RSI is always WAIT.
func EvaluateSignal(ind domain.IndicatorSnapshot, rule domain.StrategyRule) domain.Signal {
	if !ind.RSI.Valid {
		return domain.SignalWait
	}

	rsi := ind.RSI.Decimal
	switch {
	case rsi.LessThan(rule.RSIThreshold):
		return domain.SignalBuy
	case rsi.GreaterThan(OverboughtRSI):
		return domain.SignalSell
	default:
		return domain.SignalWait
	}
}

// EvaluateWithExit applies the exit method on top of EvaluateSignal. With resistance exits an
// overbought reading sells only once price has reached the resistance level.
func EvaluateWithExit(ind domain.IndicatorSnapshot, rule domain.StrategyRule, exit domain.ExitMethod) domain.Signal {
	sig := EvaluateSignal(ind, rule)
	if sig == domain.SignalSell && exit == domain.ExitResistance && !reachedResistance(ind) {
		return domain.SignalWait
	}
	return sig
}

func reachedResistance(ind domain.IndicatorSnapshot) bool {
	return ind.Price.Valid && ind.ResistanceUp.Valid && ind.Price.Decimal.GreaterThanOrEqual(ind.ResistanceUp.Decimal)
}

// EvaluatePreset trend-confirmation rule of the rule's preset. Its RSI bounds are fixed per
// preset and are not narrowed by the risk mode's entry threshold; the risk mode only selects the
// exit targets. The reason embeds every value that was compared together with those targets.
func EvaluatePreset(ind domain.IndicatorSnapshot, rule domain.StrategyRule) domain.SignalResult {
	var res domain.SignalResult
	switch rule.Preset {
	case domain.PresetSwing:
		res = evaluateSwing(ind)
	case domain.PresetIntraday:
		res = evaluateIntraday(ind)
	case domain.PresetScalp:
		res = evaluateScalp(ind)
	default:
		res = domain.SignalResult{Signal: domain.SignalWait, Reason: fmt.Sprintf("unknown preset %q", rule.Preset)}
	}

	res.Symbol = ind.Symbol
	res.Reason = fmt.Sprintf("%s %s: %s; TP +%s%% SL -%s%%",
		rule.Preset, rule.Risk, res.Reason, rule.TakeProfitPct.String(), rule.StopLossPct.String())

	return res
}

func evaluateSwing(ind domain.IndicatorSnapshot) domain.SignalResult {
	ratio := ind.VolumeRatio()
	if missing := missingFields(map[string]decimal.NullDecimal{
		"price": ind.Price, "rsi": ind.RSI, "ma50": ind.MA50, "ma200": ind.MA200, "volume ratio": ratio,
	}); missing != "" {
		return insufficient(missing)
	}

	price, rsi, ma50, ma200, vr := ind.Price.Decimal, ind.RSI.Decimal, ind.MA50.Decimal, ind.MA200.Decimal, ratio.Decimal
	values := fmt.Sprintf("price %s, MA50 %s, MA200 %s, RSI %s, volume ratio %s", f(price), f(ma50), f(ma200), f(rsi), f(vr))

	if price.GreaterThan(ma50) && ma50.GreaterThan(ma200) && rsi.LessThan(swingBuyMaxRSI) && vr.GreaterThan(swingMinVolumeRatio) {
		return result(domain.SignalBuy, "uptrend price > MA50 > MA200, RSI < %s, volume > %sx (%s)", f(swingBuyMaxRSI), f(swingMinVolumeRatio), values)
	}
	if price.LessThan(ma50) && ma50.LessThan(ma200) && rsi.GreaterThan(swingSellMinRSI) {
		return result(domain.SignalSell, "downtrend price < MA50 < MA200, RSI > %s (%s)", f(swingSellMinRSI), values)
	}
	return result(domain.SignalWait, "no trend confirmation (%s)", values)
}

func evaluateIntraday(ind domain.IndicatorSnapshot) domain.SignalResult {
	if missing := missingFields(map[string]decimal.NullDecimal{
		"price": ind.Price, "rsi": ind.RSI, "ema10": ind.EMA10, "ma50": ind.MA50,
	}); missing != "" {
		return insufficient(missing)
	}

	price, rsi, ema10, ma50 := ind.Price.Decimal, ind.RSI.Decimal, ind.EMA10.Decimal, ind.MA50.Decimal
	values := fmt.Sprintf("price %s, EMA10 %s, MA50 %s, RSI %s", f(price), f(ema10), f(ma50), f(rsi))

	if price.GreaterThan(ema10) && ema10.GreaterThan(ma50) && rsi.LessThan(intradayBuyMaxRSI) {
		return result(domain.SignalBuy, "uptrend price > EMA10 > MA50, RSI < %s (%s)", f(intradayBuyMaxRSI), values)
	}
	if price.LessThan(ema10) && ema10.LessThan(ma50) && rsi.GreaterThan(intradaySellMinRSI) {
		return result(domain.SignalSell, "downtrend price < EMA10 < MA50, RSI > %s (%s)", f(intradaySellMinRSI), values)
	}
	return result(domain.SignalWait, "no trend confirmation (%s)", values)
}

// evaluateScalp needs price and EMA10 even for the RSI leg of the sell rule.
func evaluateScalp(ind domain.IndicatorSnapshot) domain.SignalResult {
	if missing := missingFields(map[string]decimal.NullDecimal{
		"price": ind.Price, "rsi": ind.RSI, "ema10": ind.EMA10,
	}); missing != "" {
		return insufficient(missing)
	}

	price, rsi, ema10 := ind.Price.Decimal, ind.RSI.Decimal, ind.EMA10.Decimal
	values := fmt.Sprintf("price %s, EMA10 %s, RSI %s", f(price), f(ema10), f(rsi))

	if rsi.LessThan(scalpBuyMaxRSI) && price.GreaterThan(ema10) {
		return result(domain.SignalBuy, "RSI < %s with price > EMA10 (%s)", f(scalpBuyMaxRSI), values)
	}
	if rsi.GreaterThan(scalpSellMinRSI) {
		return result(domain.SignalSell, "RSI > %s (%s)", f(scalpSellMinRSI), values)
	}
	if price.LessThan(ema10) {
		return result(domain.SignalSell, "price < EMA10 (%s)", values)
	}
	return result(domain.SignalWait, "no momentum setup (%s)", values)
}

func result(sig domain.Signal, format string, args ...any) domain.SignalResult {
	return domain.SignalResult{Signal: sig, Reason: fmt.Sprintf(format, args...)}
}

func insufficient(missing string) domain.SignalResult {
	return domain.SignalResult{Signal: domain.SignalWait, Reason: "insufficient data: missing " + missing}
}

func missingFields(fields map[string]decimal.NullDecimal) string {
	var missing []string
	for name, v := range fields {
		if !v.Valid {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return strings.Join(missing, ", ")
}

func f(d decimal.Decimal) string {
	return d.Round(2).String()
}
