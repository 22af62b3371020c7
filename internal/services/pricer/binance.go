package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

// BinancePricer fetches spot prices from the Binance public API.
type BinancePricer struct {
	client *binance.Client
}

func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

func (p *BinancePricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "binance price for %s", pair)
	}
	if len(prices) == 0 || prices[0] == nil {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "binance returned empty prices for %s", pair)
	}

	return parsePrice("binance", pair.String(), prices[0].Price)
}
