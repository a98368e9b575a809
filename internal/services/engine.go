// Package services wires the feeds, merge, calendar, projection and budget
// packages into the operations the HTTP layer exposes.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"cashflow/internal/cache"
	"cashflow/internal/config"
	"cashflow/internal/core"
	"cashflow/internal/events"
	"cashflow/internal/feeds"
	"cashflow/internal/log"
	"cashflow/internal/remote"
)

// EngineConfig holds the engine's tunables.
type EngineConfig struct {
	MinOccurrences     int
	IncludeStale       bool
	UpcomingDays       int
	SpendableAccountID int

	// FetchConcurrency bounds the concurrent window retrievals of one range.
	FetchConcurrency int

	CacheSize int
	CacheTTL  time.Duration

	BrowseLimit int
	BrowseMode  string
}

// DefaultEngineConfig returns the defaults used when no environment is set.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinOccurrences:     3,
		IncludeStale:       false,
		UpcomingDays:       30,
		SpendableAccountID: 3,
		FetchConcurrency:   4,
		CacheSize:          64,
		CacheTTL:           5 * time.Minute,
		BrowseLimit:        remote.DefaultQueueLimit,
		BrowseMode:         remote.ModeFrequent,
	}
}

// EngineConfigFrom maps the application config.
func EngineConfigFrom(cfg *config.Config) EngineConfig {
	return EngineConfig{
		MinOccurrences:     cfg.MinOccurrences,
		IncludeStale:       cfg.IncludeStale,
		UpcomingDays:       cfg.UpcomingDays,
		SpendableAccountID: cfg.SpendableAccountID,
		FetchConcurrency:   cfg.FetchConcurrency,
		CacheSize:          cfg.CacheSize,
		CacheTTL:           cfg.CacheTTL,
		BrowseLimit:        cfg.BrowseLimit,
		BrowseMode:         cfg.BrowseMode,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the reference date source.
func WithClock(today func() civil.Date) Option {
	return func(e *Engine) { e.today = today }
}

// WithSources replaces the default recurring and paycheck sources.
func WithSources(sources ...feeds.Source) Option {
	return func(e *Engine) { e.sources = sources }
}

// Engine fetches, merges and caches events and computes the derived views.
type Engine struct {
	backend remote.Backend
	sources []feeds.Source
	windows *cache.LRUCache[feeds.Result]
	cfg     EngineConfig
	logger  *log.Logger
	today   func() civil.Date
}

func NewEngine(backend remote.Backend, cfg EngineConfig, logger *log.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 1
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultEngineConfig().CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultEngineConfig().CacheTTL
	}
	if cfg.UpcomingDays <= 0 {
		cfg.UpcomingDays = DefaultEngineConfig().UpcomingDays
	}

	e := &Engine{
		backend: backend,
		sources: []feeds.Source{
			feeds.NewRecurringSource(backend),
			feeds.NewPaycheckSource(backend),
		},
		windows: cache.NewLRUCache[feeds.Result](cfg.CacheSize, cfg.CacheTTL),
		cfg:     cfg,
		logger:  logger.WithComponent(log.ComponentEngine),
		today:   core.Today,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache exposes the window cache for periodic cleanup.
func (e *Engine) Cache() cache.Cleaner {
	return e.windows
}

func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Today returns the engine's reference date.
func (e *Engine) Today() civil.Date {
	return e.today()
}

func (e *Engine) fetchContext(profile *core.PayProfile) feeds.FetchContext {
	return feeds.FetchContext{
		Profile:        profile,
		MinOccurrences: e.cfg.MinOccurrences,
		IncludeStale:   e.cfg.IncludeStale,
	}
}

func cacheKey(source core.Source, w core.MonthWindow, fingerprint string) string {
	return string(source) + "|" + w.String() + "|" + fingerprint
}

// FetchRange retrieves every window touched by [start, end] from every
// source concurrently, waits for all of them and merges the results. A
// failing source contributes nothing; only cancellation of ctx is an error.
func (e *Engine) FetchRange(ctx context.Context, start, end civil.Date, profile *core.PayProfile) ([]core.FinancialEvent, events.Stats, error) {
	windows, err := core.WindowsBetween(start, end)
	if err != nil {
		return nil, events.Stats{}, err
	}
	fc := e.fetchContext(profile)

	results := make([]feeds.Result, len(windows)*len(e.sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FetchConcurrency)
	for i, w := range windows {
		for j, src := range e.sources {
			slot := i*len(e.sources) + j
			g.Go(func() error {
				results[slot] = e.fetchWindow(gctx, src, w, fc)
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, events.Stats{}, fmt.Errorf("fetch %s..%s: %w", start, end, err)
	}

	merged, stats := events.Merge(ctx, e.logger, results)
	e.logger.DebugContext(ctx, "Range fetched",
		log.NewFields().
			WithOperation(log.OpFetch).
			WithRange(start.String(), end.String()).
			ToSlice(),
	)
	e.logger.DebugContext(ctx, "Range merged",
		log.FieldEvents, len(merged),
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"duplicates", stats.Duplicates)
	return merged, stats, nil
}

func (e *Engine) fetchWindow(ctx context.Context, src feeds.Source, w core.MonthWindow, fc feeds.FetchContext) feeds.Result {
	key := cacheKey(src.Name(), w, fc.Fingerprint(src.Name()))
	if res, ok := e.windows.Get(key); ok {
		return res
	}

	res := src.FetchWindow(ctx, w, fc)
	// Failures and skips are retried on the next request.
	if res.OK() {
		e.windows.Set(key, res)
	}
	return res
}

// Invalidate drops cached windows of the given sources, or of all sources
// when none is given, and returns how many entries were removed.
func (e *Engine) Invalidate(sources ...core.Source) int {
	if len(sources) == 0 {
		n := e.windows.Size()
		e.windows.Clear()
		return n
	}
	n := 0
	for _, s := range sources {
		n += e.windows.DeletePrefix(string(s) + "|")
	}
	return n
}

// HandleInvalidation applies an invalidation broadcast. An empty source list
// clears everything.
func (e *Engine) HandleInvalidation(ctx context.Context, reason string, sources []string) error {
	var list []core.Source
	for _, s := range sources {
		switch src := core.Source(strings.ToLower(strings.TrimSpace(s))); src {
		case core.SourceRecurring, core.SourcePaycheck:
			list = append(list, src)
		case "":
		default:
			return fmt.Errorf("unknown source %q", s)
		}
	}
	n := e.Invalidate(list...)
	e.logger.InfoContext(ctx, "Cache invalidated",
		log.FieldOperation, log.OpInvalidate,
		"reason", reason,
		"removed", n)
	return nil
}

// ErrInvalidDays is returned for an upcoming strip length out of range.
var ErrInvalidDays = errors.New("days must be between 1 and 366")
