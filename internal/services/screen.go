package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/civil"

	"cashflow/internal/browse"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/projection"
	"cashflow/internal/remote"
)

var (
	// ErrSuperseded is returned when a newer navigation started before this
	// one finished; its result must be discarded.
	ErrSuperseded = errors.New("navigation superseded by a newer request")
	ErrClosed     = errors.New("screen closed")
)

// Invalidator broadcasts that cached event windows are stale.
type Invalidator interface {
	PublishInvalidation(ctx context.Context, reason string, sources []string) error
}

// PanelKind distinguishes the two modal levels.
type PanelKind string

const (
	PanelList   PanelKind = "list"
	PanelDetail PanelKind = "detail"
)

// Panel is one open modal.
type Panel struct {
	Kind   PanelKind             `json:"kind"`
	Record *remote.FlaggedRecord `json:"record,omitempty"`
}

// BrowseView is the browse queue plus the visible panel.
type BrowseView struct {
	browse.View[remote.FlaggedRecord]
	Panel *Panel `json:"panel,omitempty"`
}

// Screen owns the state of one mounted dashboard: the browse queue, its
// modal stack, the projection toggle and the navigation generation. It is
// created per mount and torn down with Close.
type Screen struct {
	ID string

	engine      *Engine
	backend     remote.Backend
	toggle      *projection.Toggle
	invalidator Invalidator
	logger      *log.Logger

	queue  *browse.Controller[remote.FlaggedRecord]
	binder *Binder

	mu      sync.Mutex
	queries map[string]remote.QueueQuery
	modals  browse.ModalStack[Panel]
	current *CalendarView
	closed  bool

	generation atomic.Uint64
	// fetched runs between a navigation's fetch and its commit; tests only.
	fetched func()
}

// ScreenOption configures a Screen.
type ScreenOption func(*Screen)

// WithInvalidator broadcasts cache invalidations after rule mutations.
func WithInvalidator(inv Invalidator) ScreenOption {
	return func(s *Screen) { s.invalidator = inv }
}

func NewScreen(id string, engine *Engine, toggle *projection.Toggle, logger *log.Logger, opts ...ScreenOption) *Screen {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Screen{
		ID:      id,
		engine:  engine,
		backend: engine.backend,
		toggle:  toggle,
		logger:  logger.WithComponent(log.ComponentBrowse).With(log.FieldSessionID, id),
		binder:  NewBinder(),
		queries: make(map[string]remote.QueueQuery),
	}
	s.queue = browse.NewController(s.fetchFlagged, func(r remote.FlaggedRecord) string { return r.Merchant })
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Screen) fetchFlagged(ctx context.Context, signature string) ([]remote.FlaggedRecord, error) {
	s.mu.Lock()
	q, ok := s.queries[signature]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown queue signature %q", signature)
	}
	return s.backend.Flagged(ctx, q)
}

func (s *Screen) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Navigate loads a month for this screen. If another navigation starts
// before this one completes, this one returns ErrSuperseded and its result
// is never recorded.
func (s *Screen) Navigate(ctx context.Context, w core.MonthWindow, profile *core.PayProfile) (CalendarView, error) {
	if err := s.checkOpen(); err != nil {
		return CalendarView{}, err
	}
	gen := s.generation.Add(1)

	view, err := s.engine.Calendar(ctx, w, profile)
	if s.fetched != nil {
		s.fetched()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Checked under mu so a newer navigation cannot commit between the
	// check and the store.
	if s.generation.Load() != gen {
		s.logger.DebugContext(ctx, "Discarding superseded navigation", log.FieldWindow, w.String())
		return CalendarView{}, ErrSuperseded
	}
	if err != nil {
		return CalendarView{}, err
	}
	if s.closed {
		return CalendarView{}, ErrClosed
	}
	s.current = &view
	return view, nil
}

// Current returns the last navigation result that was not superseded.
func (s *Screen) Current() (CalendarView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return CalendarView{}, false
	}
	return *s.current, true
}

// Projection reconciles the toggle with the displayed range and projects.
func (s *Screen) Projection(ctx context.Context, req ProjectionRequest) (ProjectionView, projection.ToggleState, error) {
	if err := s.checkOpen(); err != nil {
		return ProjectionView{}, projection.ToggleState{}, err
	}
	st, err := s.toggle.Reconcile(ctx, req.RangeEnd, s.engine.Today())
	if err != nil {
		return ProjectionView{}, projection.ToggleState{}, err
	}
	view, err := s.engine.Project(ctx, req, st.Enabled)
	return view, st, err
}

// OpenBrowse fetches the flagged queue and shows the list panel.
func (s *Screen) OpenBrowse(ctx context.Context, q remote.QueueQuery) (BrowseView, error) {
	if err := s.checkOpen(); err != nil {
		return BrowseView{}, err
	}
	q = s.withDefaults(q)
	sig := q.Signature()

	s.mu.Lock()
	s.queries[sig] = q
	s.mu.Unlock()

	v, err := s.queue.Open(ctx, sig)
	if err != nil {
		return s.browseView(v), err
	}

	s.mu.Lock()
	s.modals.Reset()
	_ = s.modals.Push(Panel{Kind: PanelList})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Browse queue opened",
		log.FieldOperation, log.OpOpen,
		log.FieldSignature, sig,
		"total", v.Total)
	return s.browseView(v), nil
}

func (s *Screen) Browse() BrowseView {
	return s.browseView(s.queue.View())
}

func (s *Screen) Next() BrowseView {
	return s.browseView(s.queue.Next())
}

func (s *Screen) Prev() BrowseView {
	return s.browseView(s.queue.Prev())
}

// Stale reports whether q differs from the filter the queue was opened with.
// Zero fields take the configured defaults, as in OpenBrowse.
func (s *Screen) Stale(q remote.QueueQuery) bool {
	return s.queue.Stale(s.withDefaults(q).Signature())
}

func (s *Screen) withDefaults(q remote.QueueQuery) remote.QueueQuery {
	if q.Limit == 0 {
		q.Limit = s.engine.cfg.BrowseLimit
	}
	if q.Mode == "" {
		q.Mode = s.engine.cfg.BrowseMode
	}
	return q.Normalize()
}

// RuleResult is the outcome of a rule mutation.
type RuleResult struct {
	Applied int        `json:"applied"`
	Browse  BrowseView `json:"browse"`
}

// ApplyRule creates a categorization rule, invalidates cached recurring
// windows and refreshes the queue in place.
func (s *Screen) ApplyRule(ctx context.Context, rule remote.Rule) (RuleResult, error) {
	if err := s.checkOpen(); err != nil {
		return RuleResult{}, err
	}
	rule.Keywords = rule.CleanKeywords()
	if err := rule.Validate(); err != nil {
		return RuleResult{}, err
	}

	applied, err := s.backend.CreateRule(ctx, rule)
	if err != nil {
		return RuleResult{}, fmt.Errorf("create rule: %w", err)
	}
	s.logger.InfoContext(ctx, "Rule created",
		log.FieldOperation, log.OpMutate,
		"category", rule.Category,
		log.FieldApplied, applied)

	sources := []string{string(core.SourceRecurring)}
	s.engine.Invalidate(core.SourceRecurring)
	if s.invalidator != nil {
		if err := s.invalidator.PublishInvalidation(ctx, "rule_created", sources); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish invalidation", log.FieldError, err.Error())
		}
	}

	v, err := s.queue.AfterMutation(ctx)
	if err != nil && !errors.Is(err, browse.ErrNotOpen) {
		return RuleResult{Applied: applied, Browse: s.browseView(v)}, err
	}

	s.mu.Lock()
	if s.modals.Depth() > 1 {
		_, _, _ = s.modals.Pop()
	}
	s.mu.Unlock()
	return RuleResult{Applied: applied, Browse: s.browseView(v)}, nil
}

// OpenDetail pushes a detail panel for the current record over the list.
func (s *Screen) OpenDetail() (BrowseView, error) {
	rec, err := s.queue.Current()
	if err != nil {
		return s.Browse(), err
	}
	s.mu.Lock()
	err = s.modals.Push(Panel{Kind: PanelDetail, Record: &rec})
	s.mu.Unlock()
	return s.Browse(), err
}

// CloseDetail pops the detail panel, revealing the list that opened it.
func (s *Screen) CloseDetail() (BrowseView, error) {
	s.mu.Lock()
	top, ok := s.modals.Top()
	if !ok || top.Kind != PanelDetail {
		s.mu.Unlock()
		return s.Browse(), browse.ErrNoDetail
	}
	_, _, err := s.modals.Pop()
	s.mu.Unlock()
	return s.Browse(), err
}

func (s *Screen) browseView(v browse.View[remote.FlaggedRecord]) BrowseView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := BrowseView{View: v}
	if p, ok := s.modals.Top(); ok {
		out.Panel = &p
	}
	return out
}

// Bind records a one-time binding for container and reports whether this
// call performed it.
func (s *Screen) Bind(container string) bool {
	return s.binder.Bind(container)
}

// EnableProjection turns the projection on for the displayed range.
func (s *Screen) EnableProjection(ctx context.Context, currentEnd civil.Date) (projection.ToggleState, error) {
	return s.toggle.Enable(ctx, currentEnd, s.engine.Today())
}

func (s *Screen) DisableProjection(ctx context.Context, currentEnd civil.Date) (projection.ToggleState, error) {
	return s.toggle.Disable(ctx, currentEnd)
}

// Close tears the screen down. Any navigation still in flight is discarded.
func (s *Screen) Close() {
	s.generation.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.current = nil
	s.modals.Reset()
	s.binder.Reset()
}

// Binder is a set of containers whose interactive elements are already bound.
type Binder struct {
	mu    sync.Mutex
	bound map[string]struct{}
}

func NewBinder() *Binder {
	return &Binder{bound: make(map[string]struct{})}
}

// Bind marks container as bound. It returns false if it already was.
func (b *Binder) Bind(container string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.bound[container]; ok {
		return false
	}
	b.bound[container] = struct{}{}
	return true
}

func (b *Binder) Bound(container string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.bound[container]
	return ok
}

func (b *Binder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bound = make(map[string]struct{})
}
