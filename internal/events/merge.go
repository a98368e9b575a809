// Package events merges per-source retrieval results into one deduplicated
// event list.
package events

import (
	"context"

	"cashflow/internal/core"
	"cashflow/internal/feeds"
	"cashflow/internal/log"
)

// Dedupe removes events whose DedupKey was already seen. The first
// occurrence wins and fields are never merged. Dedupe is idempotent.
func Dedupe(in []core.FinancialEvent) []core.FinancialEvent {
	out := make([]core.FinancialEvent, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, e := range in {
		key := e.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Stats summarizes a merge.
type Stats struct {
	Results    int
	Failed     int
	Skipped    int
	Dropped    int
	Duplicates int
}

// Merge is the single place where retrieval failures become policy: a failed
// or skipped result is logged and contributes nothing. Successful results are
// concatenated in the given order and deduplicated.
func Merge(ctx context.Context, logger *log.Logger, results []feeds.Result) ([]core.FinancialEvent, Stats) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentMerge)

	stats := Stats{Results: len(results)}
	var all []core.FinancialEvent
	for _, r := range results {
		if r.Err != nil {
			fields := log.NewFields().
				WithSource(string(r.Source), r.Window.String()).
				WithError(r.Err.Err).
				WithOperation(log.OpMerge)
			fields[log.FieldErrorKind] = string(r.Err.Kind)

			if r.Err.Kind == feeds.KindSkipped {
				stats.Skipped++
				logger.DebugContext(ctx, "Source skipped, contributing no events", fields.ToSlice()...)
			} else {
				stats.Failed++
				logger.WarnContext(ctx, "Source failed, treating as empty", fields.ToSlice()...)
			}
			continue
		}
		if r.Dropped > 0 {
			stats.Dropped += r.Dropped
			logger.DebugContext(ctx, "Dropped records without a valid date",
				log.FieldSource, string(r.Source),
				log.FieldWindow, r.Window.String(),
				"dropped", r.Dropped)
		}
		all = append(all, r.Events...)
	}

	merged := Dedupe(all)
	stats.Duplicates = len(all) - len(merged)
	return merged, stats
}

// FilterAccount keeps events scoped to accountID. A nil accountID keeps everything.
func FilterAccount(in []core.FinancialEvent, accountID *int) []core.FinancialEvent {
	if accountID == nil {
		return in
	}
	out := make([]core.FinancialEvent, 0, len(in))
	for _, e := range in {
		if e.InAccount(*accountID) {
			out = append(out, e)
		}
	}
	return out
}

// FilterSource keeps events produced by source.
func FilterSource(in []core.FinancialEvent, source core.Source) []core.FinancialEvent {
	out := make([]core.FinancialEvent, 0, len(in))
	for _, e := range in {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out
}
