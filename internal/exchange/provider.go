// Package exchange dispatches to the platform-specific price and candle sources.
package exchange

import (
	"strings"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/tradelens/internal/clients"
	"github.com/vadiminshakov/tradelens/internal/services/market/collector"
	"github.com/vadiminshakov/tradelens/internal/services/pricer"
)

const (
	PlatformNone        = "none"
	PlatformBinance     = "binance"
	PlatformBybit       = "bybit"
	PlatformHyperliquid = "hyperliquid"
)

// ErrUnsupportedPlatform returned for an unknown platform name.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Credentials exchange API secrets, usually read from the environment.
type Credentials struct {
	BinanceAPIKey         string
	BinanceAPISecret      string
	BybitAPIKey           string
	BybitAPISecret        string
	HyperliquidPrivateKey string
	HyperliquidURL        string
}

// Provider creates platform-specific services.
type Provider interface {
	Name() string
	Pricer() pricer.Pricer
	KlineProvider() collector.KlineProvider
}

// ValidPlatform reports whether name is a known platform, "none" included.
func ValidPlatform(name string) bool {
	switch strings.ToLower(name) {
	case PlatformNone, PlatformBinance, PlatformBybit, PlatformHyperliquid:
		return true
	}
	return false
}

// NewClient builds the SDK client for platform. "none" yields a nil client.
func NewClient(platform string, creds Credentials) (any, error) {
	switch strings.ToLower(platform) {
	case "", PlatformNone:
		return nil, nil
	case PlatformBinance:
		return clients.NewBinanceClient(creds.BinanceAPIKey, creds.BinanceAPISecret), nil
	case PlatformBybit:
		return clients.NewBybitClient(creds.BybitAPIKey, creds.BybitAPISecret), nil
	case PlatformHyperliquid:
		c, err := clients.NewHyperliquidClient(creds.HyperliquidPrivateKey, creds.HyperliquidURL)
		if err != nil {
			return nil, errors.Wrap(err, "hyperliquid client")
		}
		return c, nil
	default:
		return nil, errors.Wrap(ErrUnsupportedPlatform, platform)
	}
}

// NewProvider creates a provider based on the client type.
// This is the single point of truth for dispatching to platform-specific implementations.
func NewProvider(client any) (Provider, error) {
	switch c := client.(type) {
	case *binance.Client:
		return &binanceProvider{client: c}, nil
	case *bybit.Client:
		return &bybitProvider{client: c}, nil
	case *clients.HyperliquidClient:
		return &hyperliquidProvider{client: c}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedPlatform, "client type %T", client)
	}
}

// Open builds the client and provider for platform. "none" yields a nil provider.
func Open(platform string, creds Credentials) (Provider, error) {
	client, err := NewClient(platform, creds)
	if err != nil || client == nil {
		return nil, err
	}
	return NewProvider(client)
}

type binanceProvider struct {
	client *binance.Client
}

func (p *binanceProvider) Name() string { return PlatformBinance }
func (p *binanceProvider) Pricer() pricer.Pricer {
	return pricer.NewBinancePricer(p.client)
}
func (p *binanceProvider) KlineProvider() collector.KlineProvider {
	return collector.NewBinanceKlineProvider(p.client)
}

type bybitProvider struct {
	client *bybit.Client
}

func (p *bybitProvider) Name() string { return PlatformBybit }
func (p *bybitProvider) Pricer() pricer.Pricer {
	return pricer.NewBybitPricer(p.client)
}
func (p *bybitProvider) KlineProvider() collector.KlineProvider {
	return collector.NewBybitKlineProvider(p.client)
}

type hyperliquidProvider struct {
	client *clients.HyperliquidClient
}

func (p *hyperliquidProvider) Name() string { return PlatformHyperliquid }
func (p *hyperliquidProvider) Pricer() pricer.Pricer {
	return pricer.NewHyperliquidPricer(p.client.Exchange().Info())
}
func (p *hyperliquidProvider) KlineProvider() collector.KlineProvider {
	return collector.NewHyperliquidKlineProvider(p.client.Exchange().Info())
}
