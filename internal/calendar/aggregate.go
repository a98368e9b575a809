// Package calendar buckets events by date and category for calendar views.
package calendar

import (
	"cmp"
	"fmt"
	"slices"

	"cloud.google.com/go/civil"
	"gonum.org/v1/gonum/floats"

	"cashflow/internal/core"
)

// SummaryLimit is how many category groups a day cell shows.
const SummaryLimit = 3

// DaySummary is the compact view of one day.
type DaySummary struct {
	Date      civil.Date           `json:"date"`
	Top       []core.CategoryGroup `json:"top"`
	More      int                  `json:"more"`
	MoreLabel string               `json:"more_label,omitempty"`
	Count     int                  `json:"count"`
	Net       float64              `json:"net"`
}

// DetailGroup is a category group with its events.
type DetailGroup struct {
	core.CategoryGroup
	Events []core.FinancialEvent `json:"events"`
}

// DayDetail lists every event of a day grouped by category.
type DayDetail struct {
	Date   civil.Date    `json:"date"`
	Groups []DetailGroup `json:"groups"`
}

// Bucket groups events by date, dropping those outside [start, end].
func Bucket(events []core.FinancialEvent, start, end civil.Date) map[civil.Date]core.DayBucket {
	byDate := make(map[civil.Date][]core.FinancialEvent)
	for _, e := range events {
		if e.Date.Before(start) || e.Date.After(end) {
			continue
		}
		byDate[e.Date] = append(byDate[e.Date], e)
	}

	out := make(map[civil.Date]core.DayBucket, len(byDate))
	for d, evs := range byDate {
		out[d] = core.DayBucket{Date: d, Events: evs, Groups: Group(evs)}
	}
	return out
}

// Group folds events by category label. Totals are sums of absolute amounts;
// groups are ordered by descending total, then category name.
func Group(events []core.FinancialEvent) []core.CategoryGroup {
	order := make([]string, 0)
	magnitudes := make(map[string][]float64)
	income := make(map[string]bool)
	for _, e := range events {
		label := e.CategoryLabel()
		if _, ok := magnitudes[label]; !ok {
			order = append(order, label)
		}
		magnitudes[label] = append(magnitudes[label], e.Magnitude())
		if e.IsIncome() {
			income[label] = true
		}
	}

	groups := make([]core.CategoryGroup, 0, len(order))
	for _, label := range order {
		groups = append(groups, core.CategoryGroup{
			Category:  label,
			Total:     floats.Sum(magnitudes[label]),
			Count:     len(magnitudes[label]),
			AnyIncome: income[label],
		})
	}
	slices.SortFunc(groups, compareGroups)
	return groups
}

func compareGroups(a, b core.CategoryGroup) int {
	if c := cmp.Compare(b.Total, a.Total); c != 0 {
		return c
	}
	return cmp.Compare(a.Category, b.Category)
}

// Summarize returns the top limit groups of a bucket plus an overflow count.
func Summarize(b core.DayBucket, limit int) DaySummary {
	if limit <= 0 {
		limit = SummaryLimit
	}
	groups := b.Groups
	if groups == nil && len(b.Events) > 0 {
		groups = Group(b.Events)
	}

	s := DaySummary{Date: b.Date, Count: len(b.Events), Top: []core.CategoryGroup{}}
	for _, e := range b.Events {
		s.Net += e.Amount
	}
	if len(groups) > limit {
		s.Top = append(s.Top, groups[:limit]...)
		s.More = len(groups) - limit
		s.MoreLabel = fmt.Sprintf("+%d more", s.More)
	} else {
		s.Top = append(s.Top, groups...)
	}
	return s
}

// Detail expands a bucket: every event, grouped like the summary, with rows
// in each group ordered by descending absolute amount.
func Detail(b core.DayBucket) DayDetail {
	groups := b.Groups
	if groups == nil {
		groups = Group(b.Events)
	}

	byLabel := make(map[string][]core.FinancialEvent, len(groups))
	for _, e := range b.Events {
		label := e.CategoryLabel()
		byLabel[label] = append(byLabel[label], e)
	}

	d := DayDetail{Date: b.Date, Groups: make([]DetailGroup, 0, len(groups))}
	for _, g := range groups {
		rows := byLabel[g.Category]
		slices.SortStableFunc(rows, func(x, y core.FinancialEvent) int {
			return cmp.Compare(y.Magnitude(), x.Magnitude())
		})
		d.Groups = append(d.Groups, DetailGroup{CategoryGroup: g, Events: rows})
	}
	return d
}

// Days returns one bucket per date in [start, end], including empty days.
func Days(start, end civil.Date, buckets map[civil.Date]core.DayBucket) []core.DayBucket {
	if end.Before(start) {
		return nil
	}
	out := make([]core.DayBucket, 0, end.DaysSince(start)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		if b, ok := buckets[d]; ok {
			out = append(out, b)
			continue
		}
		out = append(out, core.DayBucket{Date: d, Events: []core.FinancialEvent{}, Groups: []core.CategoryGroup{}})
	}
	return out
}

// Totals are a month's inflows and outflows as positive magnitudes.
type Totals struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
	Net float64 `json:"net"`
}

// MonthTotals sums a window's inflows and outflows. A paycheck counts toward
// the month of its nominal payday, so a deposit that posts early in the
// previous month is attributed here and not there.
func MonthTotals(events []core.FinancialEvent, w core.MonthWindow) Totals {
	var t Totals
	for _, e := range events {
		attributed := e.Date
		if e.Cadence == core.CadencePaycheck && e.PayTarget != nil {
			attributed = *e.PayTarget
		}
		if !w.Contains(attributed) {
			continue
		}
		if e.IsIncome() {
			t.In += e.Magnitude()
		} else {
			t.Out += e.Magnitude()
		}
	}
	t.Net = t.In - t.Out
	return t
}
