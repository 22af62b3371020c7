package orders

import (
	"context"
	"strings"

	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/feed"
)

var executedStatuses = map[string]struct{}{
	"FILLED":   {},
	"EXECUTED": {},
	"CLOSED":   {},
	"DONE":     {},
}

type sources struct {
	live        *feed.LiveState
	snapshot    *feed.Snapshot
	legacy      LegacyFetcher
	allowLegacy bool
}

type resolution struct {
	open     []domain.Order
	executed []domain.Order
	source   domain.OrderSource
	err      error
}

type resolver func(ctx context.Context, src sources) (resolution, bool)

// resolvers in priority order. The live list is usable even when empty; the fallbacks are not.
var resolvers = []resolver{
	resolveLive,
	resolveSnapshot,
	resolveLegacy,
}

func resolve(ctx context.Context, src sources) (resolution, bool) {
	var lastErr error
	for _, r := range resolvers {
		res, ok := r(ctx, src)
		if ok {
			return res, true
		}
		if res.err != nil {
			lastErr = res.err
		}
	}
	return resolution{source: domain.OrderSourceNone, err: lastErr}, false
}

func resolveLive(_ context.Context, src sources) (resolution, bool) {
	if src.live == nil || !src.live.HasOrders {
		return resolution{}, false
	}
	return resolution{
		open:     nonNil(src.live.OpenOrders),
		executed: nonNil(src.live.ExecutedOrders),
		source:   domain.OrderSourceLive,
	}, true
}

func resolveSnapshot(_ context.Context, src sources) (resolution, bool) {
	if !src.snapshot.HasData() {
		return resolution{}, false
	}
	data := src.snapshot.Data
	if len(data.OpenOrders)+len(data.ExecutedOrders) == 0 {
		return resolution{}, false
	}
	return resolution{
		open:     nonNil(data.OpenOrders),
		executed: nonNil(data.ExecutedOrders),
		source:   domain.OrderSourceSnapshot,
	}, true
}

func resolveLegacy(ctx context.Context, src sources) (resolution, bool) {
	if !src.allowLegacy || src.legacy == nil {
		return resolution{}, false
	}

	list, err := src.legacy(ctx)
	if err != nil {
		return resolution{err: err}, false
	}
	if len(list) == 0 {
		return resolution{}, false
	}

	open, executed := splitByStatus(list)
	return resolution{open: open, executed: executed, source: domain.OrderSourceLegacy}, true
}

func splitByStatus(list []domain.Order) ([]domain.Order, []domain.Order) {
	open := make([]domain.Order, 0, len(list))
	executed := make([]domain.Order, 0)
	for _, o := range list {
		if _, done := executedStatuses[strings.ToUpper(o.Status)]; done {
			executed = append(executed, o)
			continue
		}
		open = append(open, o)
	}
	return open, executed
}

func nonNil(list []domain.Order) []domain.Order {
	if list == nil {
		return []domain.Order{}
	}
	return append([]domain.Order(nil), list...)
}
