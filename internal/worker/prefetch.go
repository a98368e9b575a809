// Package worker runs background jobs alongside the HTTP server.
package worker

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"cashflow/internal/core"
	"cashflow/internal/events"
	"cashflow/internal/log"
)

// RangeFetcher is the part of the engine the prefetcher drives.
type RangeFetcher interface {
	FetchRange(ctx context.Context, start, end civil.Date, profile *core.PayProfile) ([]core.FinancialEvent, events.Stats, error)
	Today() civil.Date
}

// Prefetcher keeps the window cache warm for the current month and the
// upcoming horizon so the first request after expiry does not pay for the
// remote round trips.
type Prefetcher struct {
	engine   RangeFetcher
	horizon  int
	interval time.Duration
	logger   *log.Logger
}

func NewPrefetcher(engine RangeFetcher, horizonDays int, interval time.Duration, logger *log.Logger) *Prefetcher {
	if logger == nil {
		logger = log.Discard()
	}
	if horizonDays < 1 {
		horizonDays = 1
	}
	return &Prefetcher{
		engine:   engine,
		horizon:  horizonDays,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Range returns the dates warmed for today: the whole current month,
// extended to the end of the upcoming horizon when that reaches further.
func (p *Prefetcher) Range(today civil.Date) (civil.Date, civil.Date) {
	start := core.WindowOf(today).First()
	end := core.EndOfMonth(today)
	if h := today.AddDays(p.horizon - 1); h.After(end) {
		end = h
	}
	return start, end
}

// RunOnce fetches the warm range a single time.
func (p *Prefetcher) RunOnce(ctx context.Context) (events.Stats, error) {
	start, end := p.Range(p.engine.Today())
	merged, stats, err := p.engine.FetchRange(ctx, start, end, nil)
	if err != nil {
		return stats, err
	}
	p.logger.DebugContext(ctx, "Prefetch complete",
		log.FieldOperation, log.OpPrefetch,
		log.FieldEvents, len(merged),
		"failed", stats.Failed)
	return stats, nil
}

// Run prefetches immediately and then on every tick until ctx is done.
func (p *Prefetcher) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	p.logger.InfoContext(ctx, "Prefetcher started", "interval", p.interval.String(), "horizon_days", p.horizon)
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Prefetcher stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Prefetcher) tick(ctx context.Context) {
	stats, err := p.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "Prefetch failed", log.FieldError, err.Error())
		}
		return
	}
	if stats.Failed > 0 {
		p.logger.WarnContext(ctx, "Prefetch left windows cold", "failed", stats.Failed)
	}
}
