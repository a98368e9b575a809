// Package feeds adapts each remote event feed to the canonical FinancialEvent.
//
// Each feed is a Source strategy: it owns its remote contract and a single
// normalization function for its record shape. A Source never returns a Go
// error; failures travel inside Result so the merge step can decide policy
// in one place.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cashflow/internal/core"
	"cashflow/internal/remote"
)

// ErrorKind classifies why a source contributed nothing.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindMalformed   ErrorKind = "malformed"
	KindSkipped     ErrorKind = "skipped"
)

// ErrProfileIncomplete is carried by paycheck results when no usable profile was supplied.
var ErrProfileIncomplete = errors.New("pay profile missing or incomplete")

// SourceError describes a failed or skipped window retrieval.
type SourceError struct {
	Source core.Source
	Window core.MonthWindow
	Kind   ErrorKind
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Source, e.Window, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one window retrieval for one source.
type Result struct {
	Source  core.Source
	Window  core.MonthWindow
	Events  []core.FinancialEvent
	Dropped int
	Err     *SourceError
}

// OK reports whether the retrieval succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// FetchContext carries caller-supplied inputs shared by all sources.
type FetchContext struct {
	Profile        *core.PayProfile
	MinOccurrences int
	IncludeStale   bool
}

// Fingerprint identifies the inputs that change a source's output, for caching.
func (fc FetchContext) Fingerprint(source core.Source) string {
	switch source {
	case core.SourceRecurring:
		return "occ=" + strconv.Itoa(fc.MinOccurrences) + ",stale=" + strconv.FormatBool(fc.IncludeStale)
	case core.SourcePaycheck:
		if fc.Profile == nil {
			return "profile=none"
		}
		p := fc.Profile.Normalized()
		return fmt.Sprintf("profile=%s/%s/%t/%v/%v/%g/%g/%g/%g/%s",
			p.Paygrade, p.ServiceStart, p.HasDependents,
			floatOrNil(p.BAS), floatOrNil(p.BAHOverride),
			p.SubmarinePay, p.CareerSeaPay, p.SpecDutyPay, p.TSPRate, p.FilingStatus)
	}
	return ""
}

func floatOrNil(v *float64) any {
	if v == nil {
		return "nil"
	}
	return *v
}

// Source fetches one month window and returns canonical events.
type Source interface {
	Name() core.Source
	FetchWindow(ctx context.Context, w core.MonthWindow, fc FetchContext) Result
}

func failed(source core.Source, w core.MonthWindow, err error) Result {
	kind := KindUnavailable
	if errors.Is(err, remote.ErrMalformed) || errors.Is(err, remote.ErrRejected) {
		kind = KindMalformed
	}
	return Result{
		Source: source,
		Window: w,
		Err:    &SourceError{Source: source, Window: w, Kind: kind, Err: err},
	}
}

// RecurringSource wraps the recurring-events feed.
type RecurringSource struct {
	feed remote.RecurringFeed
}

func NewRecurringSource(feed remote.RecurringFeed) *RecurringSource {
	return &RecurringSource{feed: feed}
}

func (s *RecurringSource) Name() core.Source { return core.SourceRecurring }

// FetchWindow implements Source.
func (s *RecurringSource) FetchWindow(ctx context.Context, w core.MonthWindow, fc FetchContext) Result {
	recs, err := s.feed.RecurringEvents(ctx, remote.RecurringQuery{
		Window:         w,
		MinOccurrences: fc.MinOccurrences,
		IncludeStale:   fc.IncludeStale,
	})
	if err != nil {
		return failed(core.SourceRecurring, w, err)
	}
	events, dropped := normalizeRecurring(recs)
	return Result{Source: core.SourceRecurring, Window: w, Events: events, Dropped: dropped}
}

// PaycheckSource wraps the computed-paycheck feed.
type PaycheckSource struct {
	feed remote.PaycheckFeed
}

func NewPaycheckSource(feed remote.PaycheckFeed) *PaycheckSource {
	return &PaycheckSource{feed: feed}
}

func (s *PaycheckSource) Name() core.Source { return core.SourcePaycheck }

// FetchWindow implements Source. Without a complete profile it contributes
// nothing and the result is marked skipped.
func (s *PaycheckSource) FetchWindow(ctx context.Context, w core.MonthWindow, fc FetchContext) Result {
	if fc.Profile == nil || !fc.Profile.Complete() {
		return Result{
			Source: core.SourcePaycheck,
			Window: w,
			Err:    &SourceError{Source: core.SourcePaycheck, Window: w, Kind: KindSkipped, Err: ErrProfileIncomplete},
		}
	}
	recs, err := s.feed.Paychecks(ctx, w, fc.Profile.Normalized())
	if err != nil {
		return failed(core.SourcePaycheck, w, err)
	}
	events, dropped := normalizePaycheck(recs)
	return Result{Source: core.SourcePaycheck, Window: w, Events: events, Dropped: dropped}
}
