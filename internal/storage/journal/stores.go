package journal

import (
	"path/filepath"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

const (
	DefaultDir = "./wal"

	signalPrefix    = "signal_"
	portfolioPrefix = "portfolio_"

	signalSegmentLimit = 100
	signalMaxSegments  = 10
)

// SignalStore journals signal transitions.
type SignalStore = WALStore[domain.SignalEvent]

// PortfolioStore journals per-cycle portfolio totals.
type PortfolioStore = WALStore[domain.PortfolioPoint]

// OpenSignals opens the signal journal under dir.
func OpenSignals(dir string) (*SignalStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	return NewWALStore[domain.SignalEvent](Config{
		Dir:              filepath.Join(dir, "signals"),
		Prefix:           signalPrefix,
		SegmentThreshold: signalSegmentLimit,
		MaxSegments:      signalMaxSegments,
	})
}

// OpenPortfolio opens the portfolio history journal under dir.
func OpenPortfolio(dir string) (*PortfolioStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	return NewWALStore[domain.PortfolioPoint](Config{
		Dir:    filepath.Join(dir, "portfolio"),
		Prefix: portfolioPrefix,
	})
}

// SignalKey journal key of an event.
func SignalKey(e domain.SignalEvent) string {
	return string(e.Preset) + "_" + string(e.Risk) + "_" + e.Symbol
}
