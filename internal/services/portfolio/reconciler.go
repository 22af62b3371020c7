// Package portfolio merges the cached snapshot and the live state into one portfolio view.
//
// The snapshot is provisional and the live state is authoritative: once a live result has been
// applied in a cycle, a snapshot arriving later in the same cycle is discarded. A failed live
// fetch never blanks a view that already has data, and a snapshot arriving after a failed live
// fetch is still applied with the failure annotation.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/feed"
)

const (
	msgLiveFailed = "portfolio data unavailable: live fetch failed"
	msgNoAssets   = "live state carried no asset data"
	msgNoData     = "portfolio unavailable"
)

// Input sources of one reconcile call.
type Input struct {
	Snapshot   *feed.Snapshot
	Live       *feed.LiveState
	LiveFailed bool
	Prices     domain.PriceBook
}

// Reconciler owns the portfolio view. It is driven from a single cycle goroutine.
type Reconciler struct {
	logger     *zap.Logger
	now        func() time.Time
	staleAfter time.Duration

	phase         domain.CyclePhase
	liveApplied   bool
	liveFailed    bool
	cycleSnapshot *feed.Snapshot
	cyclePrices   domain.PriceBook

	view        domain.PortfolioView
	lastKnown   []domain.Asset
	lastKnownAt time.Time
	borrowed    decimal.NullDecimal
}

// Option configures the Reconciler.
type Option func(*Reconciler)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithStaleAfter sets the snapshot freshness threshold.
func WithStaleAfter(d time.Duration) Option {
	return func(r *Reconciler) {
		r.staleAfter = d
	}
}

// NewReconciler creates a reconciler whose view starts in the loading state.
func NewReconciler(logger *zap.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		logger:     logger,
		now:        time.Now,
		staleAfter: domain.DefaultStaleAfter,
		view:       domain.NewLoadingPortfolio(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// View returns the current portfolio view.
func (r *Reconciler) View() domain.PortfolioView {
	return r.view
}

// Phase returns the current cycle phase.
func (r *Reconciler) Phase() domain.CyclePhase {
	return r.phase
}

// BeginCycle starts a polling cycle. Both fetches are considered in flight.
func (r *Reconciler) BeginCycle() {
	r.phase = domain.PhaseSnapshotRequested
	r.liveApplied = false
	r.liveFailed = false
	r.cycleSnapshot = nil
	r.cyclePrices = nil
}

// ApplySnapshot applies the cached snapshot unless a live result was already applied this cycle.
// A failed or empty snapshot leaves the view untouched. prices values the snapshot balances.
func (r *Reconciler) ApplySnapshot(snap *feed.Snapshot, prices domain.PriceBook, err error) domain.PortfolioView {
	if r.liveApplied {
		r.logger.Debug("discarding snapshot that arrived after live state")
		return r.view
	}
	if !r.liveFailed {
		defer func() { r.phase = domain.PhaseLiveRequested }()
	}

	if err != nil {
		r.logger.Warn("snapshot fetch failed", zap.Error(err))
		return r.view
	}

	if !r.liveFailed {
		r.phase = domain.PhaseSnapshotApplied
	}
	r.cycleSnapshot = snap
	r.cyclePrices = mergePrices(r.cyclePrices, prices)

	view, ok := r.reconcile(Input{Snapshot: snap, Prices: r.cyclePrices, LiveFailed: r.liveFailed})
	if ok {
		r.view = view
	}
	return r.view
}

// ApplyLive applies the live result. A transport error or a fetch-failure marker in the state
// counts as a failed live fetch. prices values the live balances.
func (r *Reconciler) ApplyLive(state *feed.LiveState, prices domain.PriceBook, err error) domain.PortfolioView {
	r.cyclePrices = mergePrices(r.cyclePrices, prices)

	failed := err != nil || state == nil || state.FetchFailed()
	r.liveApplied = !failed
	r.liveFailed = failed
	if failed {
		r.phase = domain.PhaseLiveFailed
		fields := []zap.Field{zap.Bool("flagged", err == nil)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		r.logger.Warn("live portfolio fetch failed", fields...)
	} else {
		r.phase = domain.PhaseLiveApplied
	}

	r.view = r.Reconcile(Input{
		Snapshot:   r.cycleSnapshot,
		Live:       state,
		LiveFailed: failed,
		Prices:     r.cyclePrices,
	})
	return r.view
}

// EndCycle returns to idle.
func (r *Reconciler) EndCycle() {
	r.phase = domain.PhaseIdle
}

// Reconcile resolves a view from in and the carried last-known state. A live state flagged with a
// fetch-failure marker counts as failed. It never fails: when no source has assets the view
// reports no_data_available.
func (r *Reconciler) Reconcile(in Input) domain.PortfolioView {
	view, _ := r.reconcile(in)
	return view
}

func (r *Reconciler) reconcile(in Input) (domain.PortfolioView, bool) {
	now := r.now()
	failed := in.LiveFailed || in.Live.FetchFailed()
	live := in.Live
	if failed {
		live = nil
	}

	res, ok := resolve(sources{
		live:      live,
		snapshot:  in.Snapshot,
		prices:    in.Prices,
		lastKnown: r.lastKnown,
		now:       now,
	})

	view := domain.PortfolioView{
		Assets:       res.assets,
		AssetSource:  res.source,
		Availability: domain.AvailabilityOK,
		ValueSource:  domain.ValueSourceDerived,
	}

	if !ok {
		view.Assets = []domain.Asset{}
		view.TotalValueUSD = decimal.Zero
		view.TotalBorrowedUSD = r.borrowed
		view.Staleness = r.snapshotStaleness(in.Snapshot, now)
		view.Availability = domain.AvailabilityNoData
		view.Message = msgNoData
		return view, false
	}

	if res.payload != nil && res.payload.TotalValueUSD.Valid {
		view.TotalValueUSD = res.payload.TotalValueUSD.Decimal
		view.ValueSource = domain.ValueSourceBackend
	} else {
		view.TotalValueUSD = sumValues(res.assets)
	}
	if res.payload != nil {
		view.TotalAssetsUSD = res.payload.TotalAssetsUSD
		view.TotalCollateralUSD = res.payload.TotalCollateralUSD
	}

	liveSourced := res.source == domain.AssetSourceLiveAssets || res.source == domain.AssetSourceLiveBalances
	switch {
	case liveSourced:
		r.borrowed = liveBorrowed(res)
	case !r.borrowed.Valid:
		r.borrowed = domain.Known(borrowedFrom(res.assets))
	}
	view.TotalBorrowedUSD = r.borrowed

	switch res.source {
	case domain.AssetSourceLiveAssets, domain.AssetSourceLiveBalances:
		view.Staleness = domain.FreshStaleness(now)
	case domain.AssetSourceSnapshot:
		view.Staleness = r.snapshotStaleness(in.Snapshot, now)
	default:
		view.Staleness = domain.NewStalenessInfo(r.lastKnownAt, now, r.staleAfter, false)
	}

	switch {
	case failed:
		view.Availability = domain.AvailabilitySourceUnavailable
		view.Message = msgLiveFailed
	case live != nil && !liveSourced:
		view.Availability = domain.AvailabilityMalformedSource
		view.Message = msgNoAssets
	}

	if res.source != domain.AssetSourceLastKnown {
		r.lastKnown = append([]domain.Asset(nil), res.assets...)
		r.lastKnownAt = lastUpdated(view.Staleness, now)
	}

	return view, true
}

// mergePrices overlays b on a without mutating either.
func mergePrices(a, b domain.PriceBook) domain.PriceBook {
	if len(b) == 0 {
		return a
	}
	merged := make(domain.PriceBook, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}

func lastUpdated(info domain.StalenessInfo, fallback time.Time) time.Time {
	if info.LastUpdatedAt == nil {
		return fallback
	}
	return *info.LastUpdatedAt
}

func liveBorrowed(res resolution) decimal.NullDecimal {
	if res.payload != nil && res.payload.TotalBorrowedUSD.Valid {
		return domain.Known(res.payload.TotalBorrowedUSD.Decimal.Abs())
	}
	return domain.Known(borrowedFrom(res.assets))
}

// snapshotStaleness derives the snapshot age from last_updated_at, or from stale_seconds
// when the timestamp is missing.
func (r *Reconciler) snapshotStaleness(snap *feed.Snapshot, now time.Time) domain.StalenessInfo {
	if snap == nil {
		return domain.StalenessInfo{}
	}

	updated := snap.LastUpdatedAt
	if updated.IsZero() && snap.StaleSeconds.Valid {
		updated = now.Add(-time.Duration(snap.StaleSeconds.Decimal.IntPart()) * time.Second)
	}
	return domain.NewStalenessInfo(updated, now, r.staleAfter, snap.Stale)
}
