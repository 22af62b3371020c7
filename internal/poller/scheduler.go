// Package poller drives refresh cycles: it fetches the snapshot and live state, feeds them through
// the reconcilers, derives positions and signals, and publishes the results.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TickSource delivers cycle triggers.
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

type ticker struct {
	t *time.Ticker
}

// NewTicker returns a wall-clock tick source. Ticks missed during a running cycle are dropped.
func NewTicker(interval time.Duration) TickSource {
	return &ticker{t: time.NewTicker(interval)}
}

func (t *ticker) C() <-chan time.Time { return t.t.C }
func (t *ticker) Stop()               { t.t.Stop() }

// ManualTicks is a tick source fed by the caller.
type ManualTicks chan time.Time

func (m ManualTicks) C() <-chan time.Time { return m }
func (m ManualTicks) Stop()               {}

// Scheduler runs a handler once immediately and then once per tick, never concurrently.
type Scheduler struct {
	ticks   TickSource
	handler func(ctx context.Context)
	logger  *zap.Logger
}

func NewScheduler(ticks TickSource, handler func(ctx context.Context), logger *zap.Logger) *Scheduler {
	return &Scheduler{ticks: ticks, handler: handler, logger: logger}
}

// Run blocks until ctx is cancelled or the tick source is closed.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.ticks.Stop()

	s.handler(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case _, ok := <-s.ticks.C():
			if !ok {
				s.logger.Info("tick source closed")
				return nil
			}
			s.handler(ctx)
		}
	}
}
