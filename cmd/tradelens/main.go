// Command tradelens polls a trading backend, reconciles its portfolio and orders, derives
// signals and bracket positions, and serves the views over HTTP.
//
// Usage:
//
//	tradelens --config tradelens.yaml
//	tradelens --setup    (interactive wizard, writes the config file)
//	tradelens --debug    (development logging)
//
// Secrets are read from the environment, optionally from a .env file:
//
//	FEED_API_TOKEN, REDIS_PASSWORD
//	BINANCE_API_KEY, BINANCE_API_SECRET
//	BYBIT_API_KEY, BYBIT_API_SECRET
//	HYPERLIQUID_PRIVATE_KEY, HYPERLIQUID_URL
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/tradelens/config"
	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/events"
	"github.com/vadiminshakov/tradelens/internal/exchange"
	"github.com/vadiminshakov/tradelens/internal/feed"
	"github.com/vadiminshakov/tradelens/internal/poller"
	"github.com/vadiminshakov/tradelens/internal/services/market/collector"
	"github.com/vadiminshakov/tradelens/internal/services/orders"
	"github.com/vadiminshakov/tradelens/internal/services/portfolio"
	"github.com/vadiminshakov/tradelens/internal/setup"
	"github.com/vadiminshakov/tradelens/internal/storage/journal"
	"github.com/vadiminshakov/tradelens/internal/view"
	"github.com/vadiminshakov/tradelens/internal/web"
)

const (
	restoreLimit    = 1000
	broadcastBuffer = 64
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Printf("failed to load .env: %v", err)
		}
	}

	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if flags.Setup {
		if err := setup.RunTUI(flags.ConfigPath); err != nil {
			log.Fatal(err)
		}
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.Debug = flags.Debug

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("tradelens stopped", zap.Error(err))
	}
	logger.Info("tradelens stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	client := feed.NewClient(feed.ClientConfig{
		BaseURL:      cfg.BackendURL,
		SnapshotPath: cfg.SnapshotPath,
		LivePath:     cfg.LivePath,
		OrdersPath:   cfg.OrdersPath,
		Token:        cfg.FeedToken,
		Timeout:      cfg.RequestTimeout,
	}, logger.Named("feed"))

	var snapshots feed.SnapshotSource = client
	if cfg.SnapshotSource == config.SnapshotSourceRedis {
		rdb := feed.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		snapshots = feed.NewRedisSnapshotSource(rdb, cfg.RedisKey)
		logger.Info("reading snapshots from redis", zap.String("addr", cfg.RedisAddr), zap.String("key", cfg.RedisKey))
	}

	pricingProvider, err := exchange.Open(cfg.PricingPlatform, cfg.Credentials)
	if err != nil {
		return errors.Wrap(err, "pricing platform")
	}

	var collect poller.IndicatorCollector
	if cfg.IndicatorSource != config.IndicatorSourceFeed {
		indicatorProvider := pricingProvider
		if indicatorProvider == nil || indicatorProvider.Name() != cfg.IndicatorSource {
			indicatorProvider, err = exchange.Open(cfg.IndicatorSource, cfg.Credentials)
			if err != nil {
				return errors.Wrap(err, "indicator source")
			}
		}
		collect = collector.NewCollector(indicatorProvider.KlineProvider(), cfg.KlineInterval, cfg.KlineLimit, logger.Named("collector"))
		logger.Info("computing indicators from candles",
			zap.String("source", cfg.IndicatorSource),
			zap.String("interval", cfg.KlineInterval),
		)
	}

	signalStore, err := journal.OpenSignals(cfg.JournalDir)
	if err != nil {
		return errors.Wrap(err, "open signal journal")
	}
	defer signalStore.Close()

	historyStore, err := journal.OpenPortfolio(cfg.JournalDir)
	if err != nil {
		return errors.Wrap(err, "open portfolio journal")
	}
	defer historyStore.Close()

	viewCtx := view.NewContext(cfg.Rule)
	updates := events.NewBroadcaster[events.ViewUpdate](broadcastBuffer)
	signalEvents := events.NewBroadcaster[domain.SignalEvent](broadcastBuffer)

	pollerCfg := poller.Config{
		Snapshots:      snapshots,
		Live:           client,
		Collector:      collect,
		Quote:          cfg.QuoteAsset,
		Symbols:        cfg.Symbols,
		Exit:           cfg.Exit,
		Portfolio:      portfolio.NewReconciler(logger.Named("portfolio"), portfolio.WithStaleAfter(cfg.StaleAfter)),
		Orders:         orders.NewReconciler(logger.Named("orders"), client.FetchOrders, orders.WithStaleAfter(cfg.StaleAfter)),
		View:           viewCtx,
		Updates:        updates,
		SignalEvents:   signalEvents,
		SignalJournal:  signalStore,
		History:        historyStore,
		RequestTimeout: cfg.RequestTimeout,
	}
	if pricingProvider != nil {
		pollerCfg.Pricer = pricingProvider.Pricer()
	}
	p := poller.New(pollerCfg, logger.Named("poller"))

	history, err := signalStore.Latest(restoreLimit)
	if err != nil {
		logger.Warn("failed to restore signal history", zap.Error(err))
	}
	restored := make([]domain.SignalEvent, 0, len(history))
	for _, rec := range history {
		restored = append(restored, rec.Event)
	}
	p.Restore(restored)

	server := web.NewServer(web.Config{
		Addr:    cfg.WebAddr,
		View:    viewCtx,
		Updates: updates,
		Journal: signalStore,
		History: historyStore,
		Origin:  cfg.WebsocketOrigin,
	}, logger.Named("web"))

	scheduler := poller.NewScheduler(poller.NewTicker(cfg.PollInterval), p.RunCycle, logger.Named("scheduler"))

	logger.Info("starting tradelens",
		zap.String("backend", cfg.BackendURL),
		zap.String("preset", string(cfg.Rule.Preset)),
		zap.String("risk", string(cfg.Rule.Risk)),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("pricing", cfg.PricingPlatform),
		zap.Int("restored_signals", len(restored)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		if len(cfg.TLSDomains) > 0 {
			return server.StartWithAutoTLS(gctx, cfg.TLSDomains, cfg.TLSCacheDir)
		}
		return server.Start(gctx)
	})
	g.Go(func() error {
		return logTransitions(gctx, signalEvents, logger.Named("signals"))
	})

	return g.Wait()
}

// logTransitions writes every signal change to the log.
func logTransitions(ctx context.Context, b *events.Broadcaster[domain.SignalEvent], logger *zap.Logger) error {
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-sub:
			logger.Info("signal changed",
				zap.String("symbol", e.Symbol),
				zap.String("preset", string(e.Preset)),
				zap.String("risk", string(e.Risk)),
				zap.String("from", string(e.Previous)),
				zap.String("to", string(e.Signal)),
				zap.String("reason", e.Reason),
			)
		}
	}
}
