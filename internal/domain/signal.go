package domain

import "time"

// Signal directional recommendation for an instrument.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalWait Signal = "WAIT"
)

// SignalResult a signal together with the values that justified it.
type SignalResult struct {
	Symbol string `json:"symbol"`
	Signal Signal `json:"signal"`
	Reason string `json:"reason"`
	// Oscillator plain RSI signal under the same rule and exit method.
	Oscillator Signal `json:"oscillator,omitempty"`
}

// SignalEvent records a change of signal for a symbol under a rule.
type SignalEvent struct {
	ID       string    `json:"id"`
	Symbol   string    `json:"symbol"`
	Preset   Preset    `json:"preset"`
	Risk     RiskMode  `json:"risk"`
	Previous Signal    `json:"previous,omitempty"`
	Signal   Signal    `json:"signal"`
	Reason   string    `json:"reason"`
	Time     time.Time `json:"ts"`
}
