// Package pricer quotes spot prices used to value raw balances.
package pricer

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

// DefaultQuote asset balances are priced against.
const DefaultQuote = "USDT"

// maxConcurrentQuotes bounds parallel price lookups per book.
const maxConcurrentQuotes = 4

// ErrNoPrice returned when a venue has no price for a pair.
var ErrNoPrice = errors.New("no price for pair")

type Pricer interface {
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// BuildPriceBook prices every non-cash asset against quote. Failed lookups are logged and left
// out of the book, so the affected balances are valued at zero.
func BuildPriceBook(ctx context.Context, p Pricer, assets []string, quote string, logger *zap.Logger) domain.PriceBook {
	book := domain.PriceBook{}
	if p == nil {
		return book
	}

	wanted := make([]string, 0, len(assets))
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a == "" || domain.IsCashEquivalent(a) {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		wanted = append(wanted, a)
	}

	prices := make([]decimal.NullDecimal, len(wanted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	for i, asset := range wanted {
		g.Go(func() error {
			price, err := p.GetPrice(gctx, domain.Pair{From: asset, To: quote})
			if err != nil {
				logger.Warn("price lookup failed", zap.String("asset", asset), zap.Error(err))
				return nil
			}
			if !price.IsPositive() {
				logger.Warn("ignoring non-positive price", zap.String("asset", asset), zap.String("price", price.String()))
				return nil
			}
			prices[i] = domain.Known(price)
			return nil
		})
	}
	_ = g.Wait()

	for i, asset := range wanted {
		if prices[i].Valid {
			book[asset] = prices[i].Decimal
		}
	}
	return book
}

// parsePrice converts a venue price string. Missing, unparsable and non-positive prices are
// reported as ErrNoPrice.
func parsePrice(venue, what, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "%s returned no price for %s", venue, what)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "%s price %q for %s: %v", venue, raw, what, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "%s price %s for %s is not positive", venue, price, what)
	}
	return price, nil
}

// Static serves fixed prices keyed by base asset.
type Static map[string]decimal.Decimal

func (s Static) GetPrice(_ context.Context, pair domain.Pair) (decimal.Decimal, error) {
	price, ok := s[strings.ToUpper(pair.From)]
	if !ok {
		return decimal.Zero, errors.Wrap(ErrNoPrice, pair.String())
	}
	return price, nil
}
