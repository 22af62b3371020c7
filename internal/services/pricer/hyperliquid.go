package pricer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

// midsTTL how long one AllMids response serves lookups; a price book asks once per asset.
const midsTTL = 2 * time.Second

type midsFetcher interface {
	AllMids(ctx context.Context) (map[string]string, error)
}

// HyperliquidPricer quotes mid prices from the Hyperliquid Info API. Every market is
// USD-quoted, so only the base coin of a pair is used.
type HyperliquidPricer struct {
	info midsFetcher
	now  func() time.Time

	mu        sync.Mutex
	mids      map[string]string
	fetchedAt time.Time
}

func NewHyperliquidPricer(info *hyperliquid.Info) *HyperliquidPricer {
	if info == nil {
		return &HyperliquidPricer{now: time.Now}
	}
	return newHyperliquidPricer(info, time.Now)
}

func newHyperliquidPricer(info midsFetcher, now func() time.Time) *HyperliquidPricer {
	return &HyperliquidPricer{info: info, now: now}
}

func (p *HyperliquidPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	mids, err := p.allMids(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	coin := strings.ToUpper(pair.From)
	return parsePrice("hyperliquid", coin, mids[coin])
}

func (p *HyperliquidPricer) allMids(ctx context.Context) (map[string]string, error) {
	if p.info == nil {
		return nil, errors.New("hyperliquid info client is nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mids != nil && p.now().Sub(p.fetchedAt) < midsTTL {
		return p.mids, nil
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "hyperliquid mids")
	}
	p.mids = mids
	p.fetchedAt = p.now()
	return mids, nil
}
