package collector

import (
	"context"
	"strconv"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/tradelens/internal/domain"
)

const (
	bybitMaxPerRequest = 200
	bybitRequestPause  = 100 * time.Millisecond
)

// BybitKlineProvider implements KlineProvider for Bybit spot.
type BybitKlineProvider struct {
	client *bybit.Client
}

// NewBybitKlineProvider creates a new Bybit kline provider.
func NewBybitKlineProvider(client *bybit.Client) *BybitKlineProvider {
	return &BybitKlineProvider{client: client}
}

// GetKlines fetches up to limit candles, oldest first.
func (p *BybitKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	bybitInterval, err := convertIntervalToBybit(interval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval: %s", interval)
	}

	var (
		items     []bybit.V5GetKlineItem
		remaining = limit
		end       *int
	)
	for remaining > 0 {
		batch := min(remaining, bybitMaxPerRequest)

		result, err := p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   bybit.SymbolV5(pair.Symbol()),
			Interval: bybit.Interval(bybitInterval),
			Limit:    &batch,
			End:      end,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", pair)
		}
		if result == nil {
			return nil, errors.Errorf("empty result from Bybit API for %s", pair)
		}

		list := result.Result.List
		if len(list) == 0 {
			break
		}
		items = append(items, list...)
		if len(list) < batch {
			break
		}
		remaining -= len(list)

		// pages come newest first; continue before the oldest candle seen
		oldest, err := parseTimestamp(list[len(list)-1].StartTime)
		if err != nil {
			return nil, err
		}
		before := int(oldest.UnixMilli() - 1)
		end = &before

		if remaining > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(bybitRequestPause):
			}
		}
	}

	if len(items) == 0 {
		return nil, errors.Errorf("no kline data returned from Bybit for %s", pair)
	}

	return bybitCandles(items)
}

// bybitCandles converts newest-first kline items into oldest-first candles.
func bybitCandles(items []bybit.V5GetKlineItem) ([]domain.MarketCandle, error) {
	candles := make([]domain.MarketCandle, len(items))
	for i, k := range items {
		candle, err := bybitCandle(k)
		if err != nil {
			return nil, errors.Wrapf(err, "kline at index %d", i)
		}
		candles[len(items)-1-i] = candle
	}
	return candles, nil
}

func bybitCandle(k bybit.V5GetKlineItem) (domain.MarketCandle, error) {
	openTime, err := parseTimestamp(k.StartTime)
	if err != nil {
		return domain.MarketCandle{}, err
	}

	values, err := parseDecimals(k.Open, k.High, k.Low, k.Close, k.Volume)
	if err != nil {
		return domain.MarketCandle{}, err
	}

	return domain.MarketCandle{
		OpenTime: openTime,
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
		// Bybit reports no close time
		CloseTime: openTime,
	}, nil
}

// convertIntervalToBybit converts "1m", "4h", "1d" style intervals to Bybit's "1", "240", "D".
func convertIntervalToBybit(interval string) (string, error) {
	if len(interval) < 2 {
		return "", errors.Errorf("invalid interval format: %s", interval)
	}

	unit := interval[len(interval)-1]
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return "", errors.Errorf("invalid interval number: %s", interval)
	}

	switch unit {
	case 'm':
		return strconv.Itoa(n), nil
	case 'h':
		return strconv.Itoa(n * 60), nil
	case 'd':
		return "D", nil
	case 'w':
		return "W", nil
	default:
		return "", errors.Errorf("unsupported interval unit: %c", unit)
	}
}

// parseTimestamp converts a Bybit millisecond timestamp.
func parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	msec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse timestamp: %s", ts)
	}

	return time.UnixMilli(msec).UTC(), nil
}
