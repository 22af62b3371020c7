package poller

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/events"
	"github.com/vadiminshakov/tradelens/internal/feed"
	"github.com/vadiminshakov/tradelens/internal/services/orders"
	"github.com/vadiminshakov/tradelens/internal/services/portfolio"
	"github.com/vadiminshakov/tradelens/internal/view"
)

var now = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

type snapshotFunc func(ctx context.Context) (*feed.Snapshot, error)

func (f snapshotFunc) FetchSnapshot(ctx context.Context) (*feed.Snapshot, error) { return f(ctx) }

type liveFunc func(ctx context.Context) (*feed.LiveState, error)

func (f liveFunc) FetchLive(ctx context.Context) (*feed.LiveState, error) { return f(ctx) }

type journalMock struct {
	mock.Mock
}

func (m *journalMock) Save(key string, event domain.SignalEvent) (uint64, error) {
	args := m.Called(key, event)
	return args.Get(0).(uint64), args.Error(1)
}

type collectorMock struct {
	mock.Mock
}

func (m *collectorMock) Collect(ctx context.Context, symbols []string) map[string]domain.IndicatorSnapshot {
	args := m.Called(ctx, symbols)
	return args.Get(0).(map[string]domain.IndicatorSnapshot)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func liveState(value string) *feed.LiveState {
	return &feed.LiveState{
		Portfolio: &feed.PortfolioPayload{Assets: []domain.Asset{{Symbol: "BTC", Balance: d("1"), ValueUSD: d(value)}}},
		HasOrders: true,
		OpenOrders: []domain.Order{{
			OrderID: "tp1", Symbol: "BTCUSDT", Side: domain.OrderSideSell, Type: "TAKE_PROFIT",
			Quantity: d("1"), Price: d("70000"), Status: "NEW", ClientGroupID: "g1", CreatedAt: now,
		}},
		Indicators: map[string]domain.IndicatorSnapshot{"BTCUSDT": {Symbol: "BTCUSDT"}},
	}
}

func snapshotState(value string) *feed.Snapshot {
	return &feed.Snapshot{
		Data:          &feed.LiveState{Portfolio: &feed.PortfolioPayload{Assets: []domain.Asset{{Symbol: "BTC", Balance: d("1"), ValueUSD: d(value)}}}},
		LastUpdatedAt: now.Add(-10 * time.Second),
	}
}

type harness struct {
	cfg     Config
	view    *view.Context
	updates *events.Broadcaster[events.ViewUpdate]
}

func newHarness(t *testing.T, snaps feed.SnapshotSource, live feed.LiveSource) *harness {
	rule, err := domain.RuleFor(domain.PresetSwing, domain.RiskConservative)
	require.NoError(t, err)

	clock := func() time.Time { return now }
	ctx := view.NewContext(rule)
	updates := events.NewBroadcaster[events.ViewUpdate](64)
	return &harness{
		view:    ctx,
		updates: updates,
		cfg: Config{
			Snapshots: snaps,
			Live:      live,
			Exit:      domain.ExitFixed,
			Portfolio: portfolio.NewReconciler(zap.NewNop(), portfolio.WithClock(clock)),
			Orders:    orders.NewReconciler(zap.NewNop(), nil, orders.WithClock(clock)),
			View:      ctx,
			Updates:   updates,
			Now:       clock,
		},
	}
}

func TestPoller_LiveAuthoritative(t *testing.T) {
	h := newHarness(t,
		snapshotFunc(func(context.Context) (*feed.Snapshot, error) { return snapshotState("50000"), nil }),
		liveFunc(func(context.Context) (*feed.LiveState, error) { return liveState("60000"), nil }),
	)

	New(h.cfg, zap.NewNop()).RunCycle(context.Background())

	pv := h.view.Portfolio()
	require.Equal(t, domain.AssetSourceLiveAssets, pv.AssetSource)
	require.Equal(t, "60000", pv.TotalValueUSD.String())
	require.Equal(t, domain.OrderSourceLive, h.view.Orders().Source)

	pos := h.view.Positions()
	require.Len(t, pos, 1)
	require.Equal(t, "g1", pos[0].GroupKey)
	require.Equal(t, "60000", pos[0].BasePrice.String())
	require.Equal(t, "10000", pos[0].TakeProfitProfit.Decimal.String())

	res, err := h.view.Signal("BTCUSDT", domain.PresetScalp, domain.RiskAggressive)
	require.NoError(t, err)
	require.Equal(t, domain.SignalWait, res.Signal)
	require.Equal(t, domain.PhaseIdle, h.cfg.Portfolio.Phase())
}

func TestPoller_LateSnapshotDiscarded(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t,
		snapshotFunc(func(context.Context) (*feed.Snapshot, error) {
			<-release
			return snapshotState("1"), nil
		}),
		liveFunc(func(context.Context) (*feed.LiveState, error) { return liveState("60000"), nil }),
	)
	sub := h.updates.Subscribe()

	done := make(chan struct{})
	go func() {
		New(h.cfg, zap.NewNop()).RunCycle(context.Background())
		close(done)
	}()

	for u := range sub {
		if u.Kind == events.KindPortfolio {
			break
		}
	}
	close(release)
	<-done

	require.Equal(t, "60000", h.view.Portfolio().TotalValueUSD.String())
	require.Equal(t, domain.AssetSourceLiveAssets, h.view.Portfolio().AssetSource)
}

func TestPoller_LiveFailureKeepsSnapshot(t *testing.T) {
	h := newHarness(t,
		snapshotFunc(func(context.Context) (*feed.Snapshot, error) { return snapshotState("50000"), nil }),
		liveFunc(func(context.Context) (*feed.LiveState, error) { return nil, errors.New("timeout") }),
	)

	New(h.cfg, zap.NewNop()).RunCycle(context.Background())

	pv := h.view.Portfolio()
	require.Equal(t, domain.AssetSourceSnapshot, pv.AssetSource)
	require.Equal(t, domain.AvailabilitySourceUnavailable, pv.Availability)
	require.Equal(t, "50000", pv.TotalValueUSD.String())
}

func TestPoller_SnapshotAfterLiveFailureIsShown(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t,
		snapshotFunc(func(context.Context) (*feed.Snapshot, error) {
			<-release
			snap := snapshotState("50000")
			snap.Data.HasOrders = true
			snap.Data.OpenOrders = liveState("0").OpenOrders
			return snap, nil
		}),
		liveFunc(func(context.Context) (*feed.LiveState, error) { return nil, errors.New("timeout") }),
	)
	sub := h.updates.Subscribe()

	done := make(chan struct{})
	go func() {
		New(h.cfg, zap.NewNop()).RunCycle(context.Background())
		close(done)
	}()

	for u := range sub {
		if u.Kind == events.KindPortfolio {
			break
		}
	}
	close(release)
	<-done

	pv := h.view.Portfolio()
	require.Equal(t, domain.AssetSourceSnapshot, pv.AssetSource)
	require.Equal(t, "50000", pv.TotalValueUSD.String())
	require.Equal(t, domain.AvailabilitySourceUnavailable, pv.Availability)

	ov := h.view.Orders()
	require.Equal(t, domain.OrderSourceSnapshot, ov.Source)
	require.Len(t, ov.Open, 1)
	require.Len(t, h.view.Positions(), 1)
}

func TestPoller_ExecutedExitsDoNotOpenPositions(t *testing.T) {
	live := liveState("60000")
	live.ExecutedOrders = []domain.Order{{
		OrderID: "tp0", Symbol: "ETHUSDT", Side: domain.OrderSideSell, Type: "TAKE_PROFIT_LIMIT",
		Quantity: d("2"), Price: d("4000"), Status: "FILLED", ClientGroupID: "g0", CreatedAt: now,
	}}
	h := newHarness(t,
		snapshotFunc(func(context.Context) (*feed.Snapshot, error) { return nil, errors.New("miss") }),
		liveFunc(func(context.Context) (*feed.LiveState, error) { return live, nil }),
	)

	New(h.cfg, zap.NewNop()).RunCycle(context.Background())

	pos := h.view.Positions()
	require.Len(t, pos, 1)
	require.Equal(t, "g1", pos[0].GroupKey)
	require.Len(t, h.view.Orders().Executed, 1)
}

func TestPoller_JournalsTransitionsOnly(t *testing.T) {
	h := newHarness(t,
		snapshotFunc(func(context.Context) (*feed.Snapshot, error) { return &feed.Snapshot{Empty: true}, nil }),
		liveFunc(func(context.Context) (*feed.LiveState, error) { return liveState("60000"), nil }),
	)
	j := &journalMock{}
	j.On("Save", mock.Anything, mock.Anything).Return(uint64(1), nil)
	h.cfg.SignalJournal = j
	h.cfg.SignalEvents = events.NewBroadcaster[domain.SignalEvent](16)
	sub := h.cfg.SignalEvents.Subscribe()

	p := New(h.cfg, zap.NewNop())
	p.RunCycle(context.Background())
	j.AssertNumberOfCalls(t, "Save", len(domain.Rules()))
	require.Len(t, sub, len(domain.Rules()))

	p.RunCycle(context.Background())
	j.AssertNumberOfCalls(t, "Save", len(domain.Rules()))

	first := <-sub
	require.Equal(t, "BTCUSDT", first.Symbol)
	require.Equal(t, domain.SignalWait, first.Signal)
	require.Empty(t, first.Previous)
	require.NotEmpty(t, first.ID)
}

func TestPoller_RestoreSuppressesUnchanged(t *testing.T) {
	h := newHarness(t,
		snapshotFunc(func(context.Context) (*feed.Snapshot, error) { return nil, errors.New("miss") }),
		liveFunc(func(context.Context) (*feed.LiveState, error) { return liveState("60000"), nil }),
	)
	j := &journalMock{}
	h.cfg.SignalJournal = j

	history := make([]domain.SignalEvent, 0, len(domain.Rules()))
	for _, rule := range domain.Rules() {
		history = append(history, domain.SignalEvent{Symbol: "BTCUSDT", Preset: rule.Preset, Risk: rule.Risk, Signal: domain.SignalWait})
	}

	p := New(h.cfg, zap.NewNop())
	p.Restore(history)
	p.RunCycle(context.Background())

	j.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPoller_CollectorOverridesFeedIndicators(t *testing.T) {
	h := newHarness(t,
		snapshotFunc(func(context.Context) (*feed.Snapshot, error) { return &feed.Snapshot{Empty: true}, nil }),
		liveFunc(func(context.Context) (*feed.LiveState, error) { return liveState("60000"), nil }),
	)
	c := &collectorMock{}
	c.On("Collect", mock.Anything, []string{"ETHUSDT"}).Return(map[string]domain.IndicatorSnapshot{
		"ETHUSDT": {Symbol: "ETHUSDT", RSI: domain.Known(d("20"))},
	}).Once()
	h.cfg.Collector = c
	h.cfg.Symbols = []string{"ETHUSDT"}

	New(h.cfg, zap.NewNop()).RunCycle(context.Background())

	require.Equal(t, []string{"ETHUSDT"}, h.view.Symbols())
	c.AssertExpectations(t)
}

func TestScheduler_RunsSerially(t *testing.T) {
	ticks := make(ManualTicks, 2)
	calls := 0
	s := NewScheduler(ticks, func(context.Context) { calls++ }, zap.NewNop())

	ticks <- now
	ticks <- now
	close(ticks)

	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, 3, calls)
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(make(ManualTicks), func(context.Context) { cancel() }, zap.NewNop())

	require.ErrorIs(t, s.Run(ctx), context.Canceled)
}
