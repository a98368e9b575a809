// Package projection walks an account balance forward from a reference date
// using the merged future events.
package projection

import (
	"fmt"
	"math"

	"cloud.google.com/go/civil"
	"gonum.org/v1/gonum/floats"

	"cashflow/internal/core"
)

// NoGrowth is rendered when growth cannot be computed.
const NoGrowth = "—"

// Skip reasons.
const (
	SkipOtherMonth   = "range_end_outside_reference_month"
	SkipNoReference  = "reference_date_not_in_series"
	SkipEmptyActuals = "empty_series"
)

// Result is a successful projection.
type Result struct {
	// Series is aligned with the actual series; nil before ReferenceIndex.
	Series         []*float64
	ReferenceIndex int
	EndOfPeriod    float64
}

// Project computes the running balance from the reference index onward.
//
// Skipped (false) when rangeEnd is not in the reference month or no actual
// entry matches the reference date exactly. Only events strictly after the
// reference date move the balance; their signed amounts are used as is.
func Project(actual []core.SeriesPoint, reference, rangeEnd civil.Date, future []core.FinancialEvent) (Result, bool) {
	idx, reason := check(actual, reference, rangeEnd)
	if reason != "" {
		return Result{}, false
	}

	deltas := make(map[civil.Date]float64)
	for _, e := range future {
		if e.Date.After(reference) {
			deltas[e.Date] += e.Amount
		}
	}

	steps := make([]float64, len(actual)-idx)
	steps[0] = actual[idx].Value
	for i := idx + 1; i < len(actual); i++ {
		steps[i-idx] = deltas[actual[i].Date]
	}
	running := floats.CumSum(make([]float64, len(steps)), steps)

	series := make([]*float64, len(actual))
	for i := idx; i < len(actual); i++ {
		v := running[i-idx]
		series[i] = &v
	}

	return Result{
		Series:         series,
		ReferenceIndex: idx,
		EndOfPeriod:    running[len(running)-1],
	}, true
}

func check(actual []core.SeriesPoint, reference, rangeEnd civil.Date) (int, string) {
	if len(actual) == 0 {
		return -1, SkipEmptyActuals
	}
	if !core.SameMonth(rangeEnd, reference) {
		return -1, SkipOtherMonth
	}
	idx := referenceIndex(actual, reference)
	if idx < 0 {
		return -1, SkipNoReference
	}
	return idx, ""
}

func referenceIndex(actual []core.SeriesPoint, reference civil.Date) int {
	for i, p := range actual {
		if p.Date == reference {
			return i
		}
	}
	return -1
}

// Growth returns the percentage change from the first actual value to the
// end value: the projected end when given, else the last actual value.
// It reports false for series shorter than two points or a start too close
// to zero to divide by.
func Growth(actual []core.SeriesPoint, projectedEnd *float64) (float64, bool) {
	if len(actual) < 2 {
		return 0, false
	}
	start := actual[0].Value
	if math.Abs(start) < core.Epsilon {
		return 0, false
	}
	end := actual[len(actual)-1].Value
	if projectedEnd != nil {
		end = *projectedEnd
	}
	return (end - start) / math.Abs(start) * 100, true
}

// FormatGrowth renders a growth percentage with two decimals and an explicit
// sign for positive values.
func FormatGrowth(pct float64, ok bool) string {
	if !ok || math.IsNaN(pct) || math.IsInf(pct, 0) {
		return NoGrowth
	}
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, pct)
}

// Outcome bundles everything a balance chart needs.
type Outcome struct {
	Active      bool       `json:"active"`
	SkipReason  string     `json:"skip_reason,omitempty"`
	Series      []*float64 `json:"series"`
	EndOfPeriod *float64   `json:"end_of_period"`
	GrowthPct   *float64   `json:"growth_pct"`
	Growth      string     `json:"growth"`
}

// Run projects when possible and always computes growth, falling back to the
// actual series when projection is skipped or not wanted.
func Run(actual []core.SeriesPoint, reference, rangeEnd civil.Date, future []core.FinancialEvent, enabled bool) Outcome {
	var out Outcome
	var projectedEnd *float64

	if enabled {
		if _, reason := check(actual, reference, rangeEnd); reason != "" {
			out.SkipReason = reason
		} else if res, ok := Project(actual, reference, rangeEnd, future); ok {
			end := res.EndOfPeriod
			out.Active = true
			out.Series = res.Series
			out.EndOfPeriod = &end
			projectedEnd = &end
		}
	}

	if !out.Active && len(actual) > 0 {
		end := actual[len(actual)-1].Value
		out.EndOfPeriod = &end
	}

	pct, ok := Growth(actual, projectedEnd)
	if ok {
		out.GrowthPct = &pct
	}
	out.Growth = FormatGrowth(pct, ok)
	return out
}
