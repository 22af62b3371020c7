package collector

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

// binanceMaxLimit largest page the klines endpoint serves.
const binanceMaxLimit = 1000

// BinanceKlineProvider implements KlineProvider for Binance spot.
type BinanceKlineProvider struct {
	client *binance.Client
}

// NewBinanceKlineProvider creates a new Binance kline provider.
func NewBinanceKlineProvider(client *binance.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{client: client}
}

// GetKlines fetches up to limit candles, oldest first. Limits above one page are capped.
func (p *BinanceKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	klines, err := p.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval(interval).
		Limit(min(limit, binanceMaxLimit)).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", pair)
	}
	if len(klines) == 0 {
		return nil, errors.Errorf("no kline data returned from Binance for %s", pair)
	}

	return binanceCandles(klines)
}

func binanceCandles(klines []*binance.Kline) ([]domain.MarketCandle, error) {
	candles := make([]domain.MarketCandle, 0, len(klines))
	for i, k := range klines {
		if k == nil {
			return nil, errors.Errorf("nil kline at index %d", i)
		}
		values, err := parseDecimals(k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "kline at index %d", i)
		}
		candles = append(candles, domain.MarketCandle{
			OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
			CloseTime: time.UnixMilli(k.CloseTime).UTC(),
		})
	}
	return candles, nil
}

// parseDecimals parses exchange price strings in order.
func parseDecimals(fields ...string) ([]decimal.Decimal, error) {
	values := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		v, err := decimal.NewFromString(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %q", f)
		}
		values[i] = v
	}
	return values, nil
}
