package pricer

import (
	"context"
	"strings"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

// BybitPricer quotes last traded spot prices from Bybit.
type BybitPricer struct {
	client *bybit.Client
}

func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{client: client}
}

// GetPrice returns the last price of pair. The SDK call is not cancellable, so ctx is only
// checked before the request.
func (p *BybitPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	symbol := bybit.SymbolV5(pair.Symbol())
	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "bybit ticker for %s", pair)
	}
	if result == nil || result.Result.Spot == nil {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "bybit returned no spot tickers for %s", pair)
	}

	for _, ticker := range result.Result.Spot.List {
		if strings.EqualFold(string(ticker.Symbol), string(symbol)) {
			return parsePrice("bybit", pair.String(), ticker.LastPrice)
		}
	}
	return decimal.Zero, errors.Wrapf(ErrNoPrice, "bybit returned no ticker for %s", pair)
}
