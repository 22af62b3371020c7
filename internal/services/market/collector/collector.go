// Package collector fetches exchange candles and turns them into indicator snapshots.
package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/services/market/indicators"
)

const (
	DefaultInterval = "1h"
	DefaultLimit    = 250

	fetchTimeout        = 30 * time.Second
	maxConcurrentFetches = 4
)

// KlineProvider fetches historical candles for a trading pair, oldest first.
type KlineProvider interface {
	GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error)
}

// Collector computes indicator snapshots for a set of symbols.
type Collector struct {
	provider KlineProvider
	interval string
	limit    int
	logger   *zap.Logger
}

// NewCollector creates a collector. Empty interval and non-positive limit fall back to defaults.
func NewCollector(provider KlineProvider, interval string, limit int, logger *zap.Logger) *Collector {
	if interval == "" {
		interval = DefaultInterval
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Collector{provider: provider, interval: interval, limit: limit, logger: logger}
}

// Collect returns a snapshot per symbol. Symbols that cannot be parsed or fetched are logged
// and omitted.
func (c *Collector) Collect(ctx context.Context, symbols []string) map[string]domain.IndicatorSnapshot {
	var (
		mu  sync.Mutex
		out = make(map[string]domain.IndicatorSnapshot, len(symbols))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, symbol := range symbols {
		g.Go(func() error {
			snap, err := c.snapshot(gctx, symbol)
			if err != nil {
				c.logger.Warn("indicator collection failed", zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			mu.Lock()
			out[symbol] = snap
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (c *Collector) snapshot(ctx context.Context, symbol string) (domain.IndicatorSnapshot, error) {
	pair, err := domain.ParsePair(symbol)
	if err != nil {
		return domain.IndicatorSnapshot{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	candles, err := c.provider.GetKlines(ctx, pair, c.interval, c.limit)
	if err != nil {
		return domain.IndicatorSnapshot{}, err
	}

	return indicators.Snapshot(symbol, candles)
}
