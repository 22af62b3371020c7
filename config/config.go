// Package config loads the tradelens YAML configuration and the secrets taken from the environment.
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/exchange"
	"github.com/vadiminshakov/tradelens/internal/services/market/collector"
	"github.com/vadiminshakov/tradelens/internal/services/pricer"
	"github.com/vadiminshakov/tradelens/internal/storage/journal"
	"github.com/vadiminshakov/tradelens/internal/web"
)

const (
	DefaultPath = "tradelens.yaml"

	SnapshotSourceHTTP  = "http"
	SnapshotSourceRedis = "redis"

	IndicatorSourceFeed = "feed"

	defaultSnapshotPath   = "/api/snapshot"
	defaultLivePath       = "/api/live-state"
	defaultOrdersPath     = "/api/orders"
	defaultRedisKey       = "tradelens:snapshot"
	defaultPollInterval   = 30 * time.Second
	defaultRequestTimeout = 20 * time.Second
	minPollInterval       = time.Second
)

// Config typed runtime configuration.
type Config struct {
	BackendURL     string
	SnapshotPath   string
	LivePath       string
	OrdersPath     string
	SnapshotSource string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKey       string

	PollInterval   time.Duration
	StaleAfter     time.Duration
	RequestTimeout time.Duration

	Rule    domain.StrategyRule
	Exit    domain.ExitMethod
	Symbols []string

	PricingPlatform string
	QuoteAsset      string
	IndicatorSource string
	KlineInterval   string
	KlineLimit      int

	WebAddr         string
	TLSDomains      []string
	TLSCacheDir     string
	WebsocketOrigin string
	JournalDir      string

	FeedToken   string
	Credentials exchange.Credentials
	Debug       bool
}

// ConfigTmp is the raw YAML form of Config.
type ConfigTmp struct {
	BackendURL      string        `yaml:"backend_url"`
	SnapshotPath    string        `yaml:"snapshot_path,omitempty"`
	LivePath        string        `yaml:"live_path,omitempty"`
	OrdersPath      string        `yaml:"orders_path,omitempty"`
	SnapshotSource  string        `yaml:"snapshot_source,omitempty"`
	RedisAddr       string        `yaml:"redis_addr,omitempty"`
	RedisDB         int           `yaml:"redis_db,omitempty"`
	RedisKey        string        `yaml:"redis_key,omitempty"`
	PollInterval    time.Duration `yaml:"poll_interval,omitempty"`
	StaleAfter      time.Duration `yaml:"stale_after,omitempty"`
	RequestTimeout  time.Duration `yaml:"request_timeout,omitempty"`
	Preset          string        `yaml:"preset,omitempty"`
	Risk            string        `yaml:"risk,omitempty"`
	ExitMethod      string        `yaml:"exit_method,omitempty"`
	Symbols         []string      `yaml:"symbols,omitempty"`
	PricingPlatform string        `yaml:"pricing_platform,omitempty"`
	QuoteAsset      string        `yaml:"quote_asset,omitempty"`
	IndicatorSource string        `yaml:"indicator_source,omitempty"`
	KlineInterval   string        `yaml:"kline_interval,omitempty"`
	KlineLimit      int           `yaml:"kline_limit,omitempty"`
	WebAddr         string        `yaml:"web_addr,omitempty"`
	TLSDomains      []string      `yaml:"tls_domains,omitempty"`
	TLSCacheDir     string        `yaml:"tls_cache_dir,omitempty"`
	WebsocketOrigin string        `yaml:"websocket_origin,omitempty"`
	JournalDir      string        `yaml:"journal_dir,omitempty"`
}

// Flags command line switches.
type Flags struct {
	ConfigPath string
	Setup      bool
	Debug      bool
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("tradelens", flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", DefaultPath, "path to yaml config")
	fs.BoolVar(&f.Setup, "setup", false, "run the interactive configuration wizard")
	fs.BoolVar(&f.Debug, "debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Get parses os.Args and loads the configuration file they name.
func Get() (Config, error) {
	flags, err := ParseFlags(os.Args[1:])
	if err != nil {
		return Config{}, err
	}
	cfg, err := Load(flags.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	cfg.Debug = flags.Debug
	return cfg, nil
}

// Load reads the YAML file at path, applies defaults and secrets from the environment and
// validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}

	return tmp.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Config{
		BackendURL:      strings.TrimRight(strings.TrimSpace(c.BackendURL), "/"),
		SnapshotPath:    orDefault(c.SnapshotPath, defaultSnapshotPath),
		LivePath:        orDefault(c.LivePath, defaultLivePath),
		OrdersPath:      orDefault(c.OrdersPath, defaultOrdersPath),
		SnapshotSource:  strings.ToLower(orDefault(c.SnapshotSource, SnapshotSourceHTTP)),
		RedisAddr:       c.RedisAddr,
		RedisDB:         c.RedisDB,
		RedisKey:        orDefault(c.RedisKey, defaultRedisKey),
		PollInterval:    c.PollInterval,
		StaleAfter:      c.StaleAfter,
		RequestTimeout:  c.RequestTimeout,
		Symbols:         normalizeSymbols(c.Symbols),
		PricingPlatform: strings.ToLower(orDefault(c.PricingPlatform, exchange.PlatformNone)),
		QuoteAsset:      strings.ToUpper(orDefault(c.QuoteAsset, pricer.DefaultQuote)),
		IndicatorSource: strings.ToLower(orDefault(c.IndicatorSource, IndicatorSourceFeed)),
		KlineInterval:   orDefault(c.KlineInterval, collector.DefaultInterval),
		KlineLimit:      c.KlineLimit,
		WebAddr:         orDefault(c.WebAddr, web.DefaultAddr),
		TLSDomains:      c.TLSDomains,
		TLSCacheDir:     orDefault(c.TLSCacheDir, "cert-cache"),
		WebsocketOrigin: orDefault(c.WebsocketOrigin, "*"),
		JournalDir:      orDefault(c.JournalDir, journal.DefaultDir),
	}

	if cfg.BackendURL == "" {
		return Config{}, errors.New("incorrect 'backend_url' param in yaml config: must be set")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollInterval < minPollInterval {
		return Config{}, errors.Errorf("incorrect 'poll_interval' param in yaml config: %s is below %s", cfg.PollInterval, minPollInterval)
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = domain.DefaultStaleAfter
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.KlineLimit <= 0 {
		cfg.KlineLimit = collector.DefaultLimit
	}

	switch cfg.SnapshotSource {
	case SnapshotSourceHTTP:
	case SnapshotSourceRedis:
		if cfg.RedisAddr == "" {
			return Config{}, errors.New("incorrect 'redis_addr' param in yaml config: required for redis snapshot source")
		}
	default:
		return Config{}, errors.Errorf("incorrect 'snapshot_source' param in yaml config: %q", c.SnapshotSource)
	}

	preset, err := domain.ParsePreset(orDefault(c.Preset, string(domain.PresetSwing)))
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'preset' param in yaml config")
	}
	risk, err := domain.ParseRiskMode(orDefault(c.Risk, string(domain.RiskConservative)))
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'risk' param in yaml config")
	}
	cfg.Rule, err = domain.RuleFor(preset, risk)
	if err != nil {
		return Config{}, err
	}
	cfg.Exit, err = domain.ParseExitMethod(orDefault(c.ExitMethod, string(domain.ExitFixed)))
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'exit_method' param in yaml config")
	}

	if !exchange.ValidPlatform(cfg.PricingPlatform) {
		return Config{}, errors.Errorf("incorrect 'pricing_platform' param in yaml config: %q", c.PricingPlatform)
	}
	if cfg.IndicatorSource != IndicatorSourceFeed &&
		(cfg.IndicatorSource == exchange.PlatformNone || !exchange.ValidPlatform(cfg.IndicatorSource)) {
		return Config{}, errors.Errorf("incorrect 'indicator_source' param in yaml config: %q", c.IndicatorSource)
	}

	cfg.loadEnv()

	if cfg.usesPlatform(exchange.PlatformHyperliquid) && cfg.Credentials.HyperliquidPrivateKey == "" {
		return Config{}, errors.New("HYPERLIQUID_PRIVATE_KEY environment variable must be set for hyperliquid")
	}

	return cfg, nil
}

func (c *Config) loadEnv() {
	c.FeedToken = os.Getenv("FEED_API_TOKEN")
	c.RedisPassword = os.Getenv("REDIS_PASSWORD")
	c.Credentials = exchange.Credentials{
		BinanceAPIKey:         os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:      os.Getenv("BINANCE_API_SECRET"),
		BybitAPIKey:           os.Getenv("BYBIT_API_KEY"),
		BybitAPISecret:        os.Getenv("BYBIT_API_SECRET"),
		HyperliquidPrivateKey: os.Getenv("HYPERLIQUID_PRIVATE_KEY"),
		HyperliquidURL:        os.Getenv("HYPERLIQUID_URL"),
	}
}

func (c Config) usesPlatform(name string) bool {
	return c.PricingPlatform == name || c.IndicatorSource == name
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	var out []string
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
