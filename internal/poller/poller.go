package poller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/events"
	"github.com/vadiminshakov/tradelens/internal/feed"
	"github.com/vadiminshakov/tradelens/internal/services/orders"
	"github.com/vadiminshakov/tradelens/internal/services/portfolio"
	"github.com/vadiminshakov/tradelens/internal/services/positions"
	"github.com/vadiminshakov/tradelens/internal/services/pricer"
	"github.com/vadiminshakov/tradelens/internal/services/signal"
	"github.com/vadiminshakov/tradelens/internal/storage/journal"
	"github.com/vadiminshakov/tradelens/internal/view"
)

const DefaultRequestTimeout = 20 * time.Second

// IndicatorCollector computes indicator snapshots for symbols from exchange data.
type IndicatorCollector interface {
	Collect(ctx context.Context, symbols []string) map[string]domain.IndicatorSnapshot
}

type signalJournal interface {
	Save(key string, event domain.SignalEvent) (uint64, error)
}

type portfolioJournal interface {
	Save(key string, point domain.PortfolioPoint) (uint64, error)
}

// Config wires a Poller. Snapshots, Live and View are required.
type Config struct {
	Snapshots feed.SnapshotSource
	Live      feed.LiveSource
	// Pricer values raw balances; nil leaves them unpriced.
	Pricer pricer.Pricer
	// Quote asset prices are looked up against; defaults to USDT.
	Quote string
	// Collector replaces feed indicators with computed ones when set.
	Collector IndicatorCollector
	// Symbols limits the evaluated instruments; empty means every symbol the feed reports.
	Symbols []string
	Exit    domain.ExitMethod

	Portfolio *portfolio.Reconciler
	Orders    *orders.Reconciler
	View      *view.Context

	Updates        *events.Broadcaster[events.ViewUpdate]
	SignalEvents   *events.Broadcaster[domain.SignalEvent]
	SignalJournal  signalJournal
	History        portfolioJournal
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Poller executes refresh cycles. RunCycle must not be called concurrently.
type Poller struct {
	cfg        Config
	logger     *zap.Logger
	evaluators []*signal.Evaluator
	// last signal per rule and symbol, used to detect transitions
	last map[view.RuleID]map[string]domain.Signal
}

func New(cfg Config, logger *zap.Logger) *Poller {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Quote == "" {
		cfg.Quote = pricer.DefaultQuote
	}

	rules := domain.Rules()
	evaluators := make([]*signal.Evaluator, 0, len(rules))
	for _, rule := range rules {
		evaluators = append(evaluators, signal.NewEvaluator(rule, cfg.Exit))
	}

	return &Poller{
		cfg:        cfg,
		logger:     logger,
		evaluators: evaluators,
		last:       make(map[view.RuleID]map[string]domain.Signal),
	}
}

// Restore seeds transition detection from journaled events so a restart does not re-record
// unchanged signals.
func (p *Poller) Restore(history []domain.SignalEvent) {
	for _, e := range history {
		id := view.RuleID{Preset: e.Preset, Risk: e.Risk}
		if p.last[id] == nil {
			p.last[id] = make(map[string]domain.Signal)
		}
		p.last[id][e.Symbol] = e.Signal
	}
}

type resultKind int

const (
	snapshotResult resultKind = iota
	liveResult
)

type fetchResult struct {
	kind     resultKind
	snapshot *feed.Snapshot
	live     *feed.LiveState
	prices   domain.PriceBook
	err      error
}

// RunCycle performs one refresh. Both fetches run concurrently and are applied in arrival order.
func (p *Poller) RunCycle(ctx context.Context) {
	cycleID := uuid.NewString()
	logger := p.logger.With(zap.String("cycle_id", cycleID))
	started := p.cfg.Now()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	p.cfg.Portfolio.BeginCycle()
	p.cfg.Orders.BeginCycle()

	results := make(chan fetchResult, 2)
	go func() {
		snap, err := p.cfg.Snapshots.FetchSnapshot(ctx)
		res := fetchResult{kind: snapshotResult, snapshot: snap, err: err}
		if err == nil && snap.HasData() {
			res.prices = p.priceBook(ctx, snap.Data.BalanceAssets(), logger)
		}
		results <- res
	}()
	go func() {
		live, err := p.cfg.Live.FetchLive(ctx)
		res := fetchResult{kind: liveResult, live: live, err: err}
		if err == nil {
			res.prices = p.priceBook(ctx, live.BalanceAssets(), logger)
		}
		results <- res
	}()

	var (
		snapshot   *feed.Snapshot
		live       *feed.LiveState
		liveFailed bool
	)
	for range 2 {
		res := <-results
		var (
			pv domain.PortfolioView
			ov domain.OrderView
		)
		switch res.kind {
		case snapshotResult:
			if res.err == nil {
				snapshot = res.snapshot
			}
			pv = p.cfg.Portfolio.ApplySnapshot(res.snapshot, res.prices, res.err)
			ov = p.cfg.Orders.ApplySnapshot(ctx, res.snapshot, res.err)
			logger.Debug("snapshot applied", zap.Stringer("phase", p.cfg.Portfolio.Phase()), zap.Error(res.err))
		case liveResult:
			live = res.live
			liveFailed = res.err != nil || res.live == nil || res.live.FetchFailed()
			pv = p.cfg.Portfolio.ApplyLive(res.live, res.prices, res.err)
			ov = p.cfg.Orders.ApplyLive(ctx, res.live, res.err)
			logger.Debug("live state applied", zap.Stringer("phase", p.cfg.Portfolio.Phase()), zap.Error(res.err))
		}
		p.publishViews(cycleID, pv, ov)
	}

	indicators := p.indicators(ctx, snapshot, live, liveFailed)
	if indicators != nil {
		p.publishSignals(cycleID, indicators, logger)
	}

	p.cfg.Portfolio.EndCycle()
	p.cfg.Orders.EndCycle()

	final := p.cfg.View.Portfolio()
	if p.cfg.History != nil && !final.Loading {
		if _, err := p.cfg.History.Save("cycle", final.Point(started)); err != nil {
			logger.Warn("failed to journal portfolio totals", zap.Error(err))
		}
	}
	p.broadcast(events.KindCycle, cycleID, map[string]any{
		"portfolio_availability": final.Availability,
		"orders_availability":    p.cfg.View.Orders().Availability,
		"duration_ms":            p.cfg.Now().Sub(started).Milliseconds(),
	})

	logger.Info("cycle complete",
		zap.String("portfolio_availability", string(final.Availability)),
		zap.String("asset_source", string(final.AssetSource)),
		zap.String("order_source", string(p.cfg.View.Orders().Source)),
		zap.Duration("took", p.cfg.Now().Sub(started)))
}

func (p *Poller) priceBook(ctx context.Context, assets []string, logger *zap.Logger) domain.PriceBook {
	if p.cfg.Pricer == nil || len(assets) == 0 {
		return nil
	}
	return pricer.BuildPriceBook(ctx, p.cfg.Pricer, assets, p.cfg.Quote, logger)
}

func (p *Poller) publishViews(cycleID string, pv domain.PortfolioView, ov domain.OrderView) {
	pos := positions.Aggregate(ov.All(), &pv)
	p.cfg.View.Publish(view.Update{
		Portfolio: &pv,
		Orders:    &ov,
		Positions: pos,
		At:        p.cfg.Now(),
	})

	p.broadcast(events.KindPortfolio, cycleID, pv)
	p.broadcast(events.KindOrders, cycleID, ov)
	p.broadcast(events.KindPositions, cycleID, pos)
}

// indicators picks this cycle's snapshots: computed ones when a collector is configured,
// otherwise the live state's, otherwise the cached snapshot's. Nil keeps the previous signals.
func (p *Poller) indicators(ctx context.Context, snapshot *feed.Snapshot, live *feed.LiveState, liveFailed bool) map[string]domain.IndicatorSnapshot {
	var fromFeed map[string]domain.IndicatorSnapshot
	switch {
	case !liveFailed && live != nil && len(live.Indicators) > 0:
		fromFeed = live.Indicators
	case snapshot.HasData() && len(snapshot.Data.Indicators) > 0:
		fromFeed = snapshot.Data.Indicators
	}

	if p.cfg.Collector != nil {
		symbols := p.cfg.Symbols
		if len(symbols) == 0 {
			symbols = keys(fromFeed)
		}
		if len(symbols) == 0 {
			return nil
		}
		return p.cfg.Collector.Collect(ctx, symbols)
	}

	if fromFeed == nil {
		return nil
	}
	return filter(fromFeed, p.cfg.Symbols)
}

func (p *Poller) publishSignals(cycleID string, indicators map[string]domain.IndicatorSnapshot, logger *zap.Logger) {
	now := p.cfg.Now()
	all := make(map[view.RuleID]view.SignalSet, len(p.evaluators))
	for _, ev := range p.evaluators {
		id := view.ID(ev.Rule())
		results := ev.EvaluateAll(indicators)
		all[id] = results

		if p.last[id] == nil {
			p.last[id] = make(map[string]domain.Signal)
		}
		for symbol, res := range results {
			prev, seen := p.last[id][symbol]
			if seen && prev == res.Signal {
				continue
			}
			p.last[id][symbol] = res.Signal
			p.recordTransition(domain.SignalEvent{
				ID:       uuid.NewString(),
				Symbol:   symbol,
				Preset:   id.Preset,
				Risk:     id.Risk,
				Previous: prev,
				Signal:   res.Signal,
				Reason:   res.Reason,
				Time:     now,
			}, logger)
		}
	}

	p.cfg.View.Publish(view.Update{Indicators: indicators, Signals: all, At: now})

	def, _ := p.cfg.View.Signals(p.cfg.View.DefaultRule().Preset, p.cfg.View.DefaultRule().Risk)
	p.broadcast(events.KindSignals, cycleID, def)
}

func (p *Poller) recordTransition(e domain.SignalEvent, logger *zap.Logger) {
	logger.Debug("signal transition",
		zap.String("symbol", e.Symbol),
		zap.String("preset", string(e.Preset)),
		zap.String("risk", string(e.Risk)),
		zap.String("from", string(e.Previous)),
		zap.String("to", string(e.Signal)))

	if p.cfg.SignalJournal != nil {
		if _, err := p.cfg.SignalJournal.Save(journal.SignalKey(e), e); err != nil {
			logger.Warn("failed to journal signal transition", zap.String("symbol", e.Symbol), zap.Error(err))
		}
	}
	if p.cfg.SignalEvents != nil {
		p.cfg.SignalEvents.Publish(e)
	}
}

func (p *Poller) broadcast(kind events.Kind, cycleID string, data any) {
	if p.cfg.Updates == nil {
		return
	}
	p.cfg.Updates.Publish(events.ViewUpdate{
		Kind:      kind,
		CycleID:   cycleID,
		Timestamp: p.cfg.Now(),
		Data:      data,
	})
}

func keys(m map[string]domain.IndicatorSnapshot) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func filter(m map[string]domain.IndicatorSnapshot, symbols []string) map[string]domain.IndicatorSnapshot {
	if len(symbols) == 0 {
		return m
	}
	out := make(map[string]domain.IndicatorSnapshot, len(symbols))
	for _, s := range symbols {
		if ind, ok := m[s]; ok {
			out[s] = ind
		}
	}
	return out
}
