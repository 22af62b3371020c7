// Package orders merges open and executed order lists from the snapshot, the live state and
// the legacy orders endpoint.
package orders

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/feed"
)

const (
	msgLiveFailed = "orders data unavailable: live fetch failed"
	msgNoOrders   = "live state carried no order lists"
	msgNoData     = "orders unavailable"
)

// LegacyFetcher last-resort single-shot order fetch.
type LegacyFetcher func(ctx context.Context) ([]domain.Order, error)

// Input sources of one reconcile call.
type Input struct {
	Snapshot   *feed.Snapshot
	Live       *feed.LiveState
	LiveFailed bool
}

// Reconciler owns the order view. It is driven from a single cycle goroutine.
type Reconciler struct {
	logger     *zap.Logger
	legacy     LegacyFetcher
	now        func() time.Time
	staleAfter time.Duration

	phase         domain.CyclePhase
	liveApplied   bool
	liveFailed    bool
	cycleSnapshot *feed.Snapshot

	view        domain.OrderView
	lastKnown   *domain.OrderView
	lastKnownAt time.Time
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

// NewReconciler creates a reconciler. legacy may be nil when no legacy endpoint exists.
func NewReconciler(logger *zap.Logger, legacy LegacyFetcher, opts ...Option) *Reconciler {
	r := &Reconciler{
		logger:     logger,
		legacy:     legacy,
		now:        time.Now,
		staleAfter: domain.DefaultStaleAfter,
		view:       domain.NewLoadingOrders(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// View returns the current order view.
func (r *Reconciler) View() domain.OrderView {
	return r.view
}

// Phase returns the current cycle phase.
func (r *Reconciler) Phase() domain.CyclePhase {
	return r.phase
}

// BeginCycle starts a polling cycle.
func (r *Reconciler) BeginCycle() {
	r.phase = domain.PhaseSnapshotRequested
	r.liveApplied = false
	r.liveFailed = false
	r.cycleSnapshot = nil
}

// ApplySnapshot applies the snapshot order lists unless live was already applied this cycle.
// After a failed live fetch the snapshot lists are used with the failure annotation.
func (r *Reconciler) ApplySnapshot(ctx context.Context, snap *feed.Snapshot, err error) domain.OrderView {
	if r.liveApplied {
		r.logger.Debug("discarding order snapshot that arrived after live state")
		return r.view
	}
	if !r.liveFailed {
		defer func() { r.phase = domain.PhaseLiveRequested }()
	}

	if err != nil {
		return r.view
	}

	if !r.liveFailed {
		r.phase = domain.PhaseSnapshotApplied
	}
	r.cycleSnapshot = snap

	if view, ok := r.reconcile(ctx, Input{Snapshot: snap, LiveFailed: r.liveFailed}, false); ok {
		r.view = view
	}
	return r.view
}

// ApplyLive applies the live result, falling back to the snapshot and then the legacy fetch.
func (r *Reconciler) ApplyLive(ctx context.Context, state *feed.LiveState, err error) domain.OrderView {
	failed := err != nil || state == nil || state.FetchFailed()
	r.liveApplied = !failed
	r.liveFailed = failed
	if failed {
		r.phase = domain.PhaseLiveFailed
	} else {
		r.phase = domain.PhaseLiveApplied
	}

	r.view = r.Reconcile(ctx, Input{Snapshot: r.cycleSnapshot, Live: state, LiveFailed: failed})
	return r.view
}

// EndCycle returns to idle.
func (r *Reconciler) EndCycle() {
	r.phase = domain.PhaseIdle
}

// Reconcile resolves the order view. A live state flagged with a fetch-failure marker counts as
// failed. When live and snapshot carry no orders the legacy fetcher is called; exhausting all
// three yields no_data_available, still carrying the last lists that were resolved.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) domain.OrderView {
	view, _ := r.reconcile(ctx, in, true)
	return view
}

func (r *Reconciler) reconcile(ctx context.Context, in Input, allowLegacy bool) (domain.OrderView, bool) {
	now := r.now()
	failed := in.LiveFailed || in.Live.FetchFailed()
	live := in.Live
	if failed {
		live = nil
	}

	res, ok := resolve(ctx, sources{
		live:        live,
		snapshot:    in.Snapshot,
		legacy:      r.legacy,
		allowLegacy: allowLegacy,
	})
	if res.err != nil {
		r.logger.Warn("legacy orders fetch failed", zap.Error(res.err))
	}

	if !ok {
		view := domain.OrderView{
			Open:         []domain.Order{},
			Executed:     []domain.Order{},
			Source:       domain.OrderSourceNone,
			Staleness:    snapshotStaleness(in.Snapshot, now, r.staleAfter),
			Availability: domain.AvailabilityNoData,
			Message:      msgNoData,
		}
		if r.lastKnown != nil {
			view.Open = nonNil(r.lastKnown.Open)
			view.Executed = nonNil(r.lastKnown.Executed)
			view.Source = domain.OrderSourceLastKnown
			view.Staleness = domain.NewStalenessInfo(r.lastKnownAt, now, r.staleAfter, false)
		}
		return view, false
	}

	view := domain.OrderView{
		Open:         res.open,
		Executed:     res.executed,
		Source:       res.source,
		Availability: domain.AvailabilityOK,
	}

	if res.source == domain.OrderSourceSnapshot {
		view.Staleness = snapshotStaleness(in.Snapshot, now, r.staleAfter)
	} else {
		view.Staleness = domain.FreshStaleness(now)
	}

	switch {
	case failed:
		view.Availability = domain.AvailabilitySourceUnavailable
		view.Message = msgLiveFailed
	case live != nil && res.source != domain.OrderSourceLive:
		view.Availability = domain.AvailabilityMalformedSource
		view.Message = msgNoOrders
	}

	r.lastKnown = &view
	r.lastKnownAt = now
	if view.Staleness.LastUpdatedAt != nil {
		r.lastKnownAt = *view.Staleness.LastUpdatedAt
	}

	return view, true
}

func snapshotStaleness(snap *feed.Snapshot, now time.Time, threshold time.Duration) domain.StalenessInfo {
	if snap == nil {
		return domain.StalenessInfo{}
	}
	updated := snap.LastUpdatedAt
	if updated.IsZero() && snap.StaleSeconds.Valid {
		updated = now.Add(-time.Duration(snap.StaleSeconds.Decimal.IntPart()) * time.Second)
	}
	return domain.NewStalenessInfo(updated, now, threshold, snap.Stale)
}
