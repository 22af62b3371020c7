package orders

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
	"github.com/vadiminshakov/tradelens/internal/feed"
)

var now = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

type legacyMock struct {
	mock.Mock
}

func (m *legacyMock) Fetch(ctx context.Context) ([]domain.Order, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]domain.Order)
	return orders, args.Error(1)
}

func order(id, side, status string) domain.Order {
	s, _ := domain.ParseOrderSide(side)
	return domain.Order{
		OrderID:  id,
		Symbol:   "BTCUSDT",
		Side:     s,
		Type:     "LIMIT",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
		Status:   status,
	}
}

func newReconciler(legacy LegacyFetcher) *Reconciler {
	return NewReconciler(zap.NewNop(), legacy, WithClock(func() time.Time { return now }))
}

func snapshotWithOrders(open ...domain.Order) *feed.Snapshot {
	return &feed.Snapshot{
		Data:          &feed.LiveState{OpenOrders: open, HasOrders: true},
		LastUpdatedAt: now.Add(-30 * time.Second),
	}
}

func TestReconciler_StartsLoading(t *testing.T) {
	view := newReconciler(nil).View()
	require.True(t, view.Loading)
	require.Equal(t, domain.OrderSourceNone, view.Source)
}

func TestReconciler_LiveWins(t *testing.T) {
	ctx := context.Background()
	r := newReconciler(nil)
	r.BeginCycle()

	view := r.ApplySnapshot(ctx, snapshotWithOrders(order("1", "SELL", "NEW")), nil)
	require.Equal(t, domain.OrderSourceSnapshot, view.Source)
	require.False(t, view.Staleness.IsStale)

	live := &feed.LiveState{
		HasOrders:      true,
		OpenOrders:     []domain.Order{order("2", "SELL", "NEW")},
		ExecutedOrders: []domain.Order{order("3", "BUY", "FILLED")},
	}
	view = r.ApplyLive(ctx, live, nil)
	require.Equal(t, domain.OrderSourceLive, view.Source)
	require.Equal(t, "2", view.Open[0].OrderID)
	require.Equal(t, "3", view.Executed[0].OrderID)
	require.Len(t, view.All(), 2)
	require.Equal(t, domain.PhaseLiveApplied, r.Phase())
}

func TestReconciler_EmptyLiveListIsData(t *testing.T) {
	legacy := &legacyMock{}
	r := newReconciler(legacy.Fetch)

	view := r.Reconcile(context.Background(), Input{Live: &feed.LiveState{HasOrders: true}})
	require.Equal(t, domain.OrderSourceLive, view.Source)
	require.Equal(t, domain.AvailabilityOK, view.Availability)
	require.NotNil(t, view.Open)
	require.Empty(t, view.Open)
	legacy.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestReconciler_LiveFailedFallsBackToSnapshot(t *testing.T) {
	ctx := context.Background()
	legacy := &legacyMock{}
	r := newReconciler(legacy.Fetch)

	r.BeginCycle()
	r.ApplySnapshot(ctx, snapshotWithOrders(order("1", "SELL", "NEW")), nil)
	view := r.ApplyLive(ctx, nil, errors.New("timeout"))

	require.Equal(t, domain.OrderSourceSnapshot, view.Source)
	require.Equal(t, domain.AvailabilitySourceUnavailable, view.Availability)
	require.Equal(t, "orders data unavailable: live fetch failed", view.Message)
	require.Equal(t, domain.PhaseLiveFailed, r.Phase())
	legacy.AssertNotCalled(t, "Fetch", mock.Anything)
}

func TestReconciler_SnapshotAfterFailedLiveIsApplied(t *testing.T) {
	ctx := context.Background()
	r := newReconciler(nil)
	r.BeginCycle()

	view := r.ApplyLive(ctx, nil, errors.New("connection refused"))
	require.Equal(t, domain.AvailabilityNoData, view.Availability)

	view = r.ApplySnapshot(ctx, snapshotWithOrders(order("1", "SELL", "NEW")), nil)
	require.Equal(t, domain.OrderSourceSnapshot, view.Source)
	require.Len(t, view.Open, 1)
	require.Equal(t, domain.AvailabilitySourceUnavailable, view.Availability)
	require.Equal(t, "orders data unavailable: live fetch failed", view.Message)
	require.Equal(t, domain.PhaseLiveFailed, r.Phase())
}

func TestReconciler_ReconcileTreatsFetchFailedMarkerAsFailure(t *testing.T) {
	live := &feed.LiveState{
		HasOrders:  true,
		OpenOrders: []domain.Order{order("9", "SELL", "NEW")},
		Errors:     []string{"FETCH_FAILED: timeout"},
	}

	view := newReconciler(nil).Reconcile(context.Background(), Input{
		Snapshot: snapshotWithOrders(order("1", "SELL", "NEW")),
		Live:     live,
	})

	require.Equal(t, domain.OrderSourceSnapshot, view.Source)
	require.Equal(t, "1", view.Open[0].OrderID)
	require.Equal(t, domain.AvailabilitySourceUnavailable, view.Availability)
}

func TestReconciler_LegacyFallback(t *testing.T) {
	ctx := context.Background()
	legacy := &legacyMock{}
	legacy.On("Fetch", ctx).Return([]domain.Order{
		order("5", "SELL", "NEW"),
		order("6", "BUY", "filled"),
	}, nil).Once()

	r := newReconciler(legacy.Fetch)
	r.BeginCycle()
	r.ApplySnapshot(ctx, &feed.Snapshot{Empty: true}, nil)

	failed := &feed.LiveState{Errors: []string{"FETCH_FAILED"}}
	view := r.ApplyLive(ctx, failed, nil)

	require.Equal(t, domain.OrderSourceLegacy, view.Source)
	require.Len(t, view.Open, 1)
	require.Len(t, view.Executed, 1)
	require.Equal(t, "6", view.Executed[0].OrderID)
	require.Equal(t, domain.AvailabilitySourceUnavailable, view.Availability)
	legacy.AssertExpectations(t)
}

func TestReconciler_AllSourcesExhausted(t *testing.T) {
	ctx := context.Background()
	legacy := &legacyMock{}
	legacy.On("Fetch", ctx).Return(nil, errors.New("404"))

	r := newReconciler(legacy.Fetch)
	r.BeginCycle()
	r.ApplySnapshot(ctx, nil, errors.New("down"))
	view := r.ApplyLive(ctx, nil, errors.New("down"))

	require.Equal(t, domain.AvailabilityNoData, view.Availability)
	require.Equal(t, "orders unavailable", view.Message)
	require.Equal(t, domain.OrderSourceNone, view.Source)
	require.NotNil(t, view.Open)
	require.False(t, view.Loading)
}

func TestReconciler_ExhaustedKeepsLastKnownLists(t *testing.T) {
	ctx := context.Background()
	r := newReconciler(nil)

	r.BeginCycle()
	r.ApplyLive(ctx, &feed.LiveState{HasOrders: true, OpenOrders: []domain.Order{order("1", "SELL", "NEW")}}, nil)
	r.EndCycle()

	r.BeginCycle()
	view := r.ApplyLive(ctx, nil, errors.New("down"))
	require.Equal(t, domain.AvailabilityNoData, view.Availability)
	require.Equal(t, domain.OrderSourceLastKnown, view.Source)
	require.Len(t, view.Open, 1)
}

func TestReconciler_LiveWithoutListsIsMalformed(t *testing.T) {
	r := newReconciler(nil)
	view := r.Reconcile(context.Background(), Input{
		Snapshot: snapshotWithOrders(order("1", "SELL", "NEW")),
		Live:     &feed.LiveState{BotStatus: "running"},
	})
	require.Equal(t, domain.OrderSourceSnapshot, view.Source)
	require.Equal(t, domain.AvailabilityMalformedSource, view.Availability)
}

func TestReconciler_LateSnapshotDiscarded(t *testing.T) {
	ctx := context.Background()
	r := newReconciler(nil)
	r.BeginCycle()

	r.ApplyLive(ctx, &feed.LiveState{HasOrders: true}, nil)
	view := r.ApplySnapshot(ctx, snapshotWithOrders(order("1", "SELL", "NEW")), nil)

	require.Equal(t, domain.OrderSourceLive, view.Source)
	require.Empty(t, view.Open)
}

func TestReconciler_NormalizedAlternativeSpellings(t *testing.T) {
	live, err := feed.DecodeLiveState([]byte(`{"open_orders": [
		{"order_id": "a", "side": "SELL", "type": "TAKE_PROFIT", "quantity": "1", "executed_qty": "0.5", "created_at": "2026-05-10T09:00:00Z"},
		{"orderId": "b", "side": "SELL", "order_type": "STOP_LOSS", "qty": "1", "cum_filled_qty": "0.25", "create_time": 1778403600000}
	]}`))
	require.NoError(t, err)

	view := newReconciler(nil).Reconcile(context.Background(), Input{Live: live})
	require.Len(t, view.Open, 2)
	require.Equal(t, "0.5", view.Open[0].ExecutedQuantity.String())
	require.Equal(t, "0.25", view.Open[1].ExecutedQuantity.String())
	require.False(t, view.Open[0].CreatedAt.IsZero())
	require.False(t, view.Open[1].CreatedAt.IsZero())
}
