package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"cashflow/internal/budget"
	"cashflow/internal/calendar"
	"cashflow/internal/core"
	"cashflow/internal/events"
	"cashflow/internal/log"
	"cashflow/internal/projection"
	"cashflow/internal/remote"
)

// CalendarView is one month of day cells plus month totals.
type CalendarView struct {
	Window core.MonthWindow      `json:"window"`
	Start  civil.Date            `json:"start"`
	End    civil.Date            `json:"end"`
	Days   []calendar.DaySummary `json:"days"`
	Totals calendar.Totals       `json:"totals"`
	Events int                   `json:"events"`
	Failed int                   `json:"failed_sources"`
}

// Calendar builds the month grid for w.
func (e *Engine) Calendar(ctx context.Context, w core.MonthWindow, profile *core.PayProfile) (CalendarView, error) {
	start, end := w.First(), w.Last()
	evs, stats, err := e.FetchRange(ctx, start, end, profile)
	if err != nil {
		return CalendarView{}, err
	}

	buckets := calendar.Bucket(evs, start, end)
	return CalendarView{
		Window: w,
		Start:  start,
		End:    end,
		Days:   summarize(calendar.Days(start, end, buckets)),
		Totals: calendar.MonthTotals(evs, w),
		Events: len(evs),
		Failed: stats.Failed,
	}, nil
}

// UpcomingView is the rolling strip starting today.
type UpcomingView struct {
	Start     civil.Date            `json:"start"`
	End       civil.Date            `json:"end"`
	AccountID *int                  `json:"account_id,omitempty"`
	Days      []calendar.DaySummary `json:"days"`
	Events    int                   `json:"events"`
}

// Upcoming covers days dates from today, possibly spanning two windows. A
// non-positive days uses the configured default.
func (e *Engine) Upcoming(ctx context.Context, days int, accountID *int, profile *core.PayProfile) (UpcomingView, error) {
	if days <= 0 {
		days = e.cfg.UpcomingDays
	}
	if days > 366 {
		return UpcomingView{}, fmt.Errorf("%w: %d", ErrInvalidDays, days)
	}

	start := e.today()
	end := start.AddDays(days - 1)
	evs, _, err := e.FetchRange(ctx, start, end, profile)
	if err != nil {
		return UpcomingView{}, err
	}
	evs = events.FilterAccount(evs, accountID)

	buckets := calendar.Bucket(evs, start, end)
	n := 0
	for _, b := range buckets {
		n += len(b.Events)
	}
	return UpcomingView{
		Start:     start,
		End:       end,
		AccountID: accountID,
		Days:      summarize(calendar.Days(start, end, buckets)),
		Events:    n,
	}, nil
}

func summarize(days []core.DayBucket) []calendar.DaySummary {
	out := make([]calendar.DaySummary, 0, len(days))
	for _, b := range days {
		out = append(out, calendar.Summarize(b, calendar.SummaryLimit))
	}
	return out
}

// DayDetail expands every event of a single date.
func (e *Engine) DayDetail(ctx context.Context, date civil.Date, profile *core.PayProfile) (calendar.DayDetail, error) {
	evs, _, err := e.FetchRange(ctx, date, date, profile)
	if err != nil {
		return calendar.DayDetail{}, err
	}
	b, ok := calendar.Bucket(evs, date, date)[date]
	if !ok {
		return calendar.DayDetail{Date: date, Groups: []calendar.DetailGroup{}}, nil
	}
	return calendar.Detail(b), nil
}

// ProjectionRequest is an actual balance series to extend.
type ProjectionRequest struct {
	Actual   []core.SeriesPoint
	RangeEnd civil.Date
	Profile  *core.PayProfile
}

// ProjectionView is the projection outcome with the reference date used.
type ProjectionView struct {
	projection.Outcome
	Reference civil.Date `json:"reference"`
}

// Project runs the balance projection from today when enabled. The forward
// events are fetched only when the range ends in today's month.
func (e *Engine) Project(ctx context.Context, req ProjectionRequest, enabled bool) (ProjectionView, error) {
	today := e.today()

	var future []core.FinancialEvent
	if enabled && core.SameMonth(req.RangeEnd, today) {
		w := core.WindowOf(today)
		evs, _, err := e.FetchRange(ctx, w.First(), w.Last(), req.Profile)
		if err != nil {
			return ProjectionView{}, err
		}
		future = evs
	}

	out := projection.Run(req.Actual, today, req.RangeEnd, future, enabled)
	if out.SkipReason != "" {
		e.logger.DebugContext(ctx, "Projection skipped",
			log.FieldOperation, log.OpProject,
			"reason", out.SkipReason)
	}
	return ProjectionView{Outcome: out, Reference: today}, nil
}

// Budget assembles the month snapshot. The remote snapshot is required; the
// savings goal and paychecks degrade to absent when their calls fail.
func (e *Engine) Budget(ctx context.Context, profile *core.PayProfile) (core.BudgetSnapshot, error) {
	var (
		rec  remote.BudgetRecord
		goal *core.SavingsGoalConfig
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = e.backend.MonthBudget(gctx, remote.BudgetQuery{
			MinOccurrences: e.cfg.MinOccurrences,
			IncludeStale:   e.cfg.IncludeStale,
		})
		if err != nil {
			return fmt.Errorf("month budget: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		raw, err := e.backend.SavingsGoal(gctx)
		if err != nil {
			e.logger.WarnContext(gctx, "Savings goal unavailable, treating as none",
				log.FieldOperation, log.OpBudget,
				log.FieldError, err.Error())
			return nil
		}
		goal = budget.GoalFromRecord(raw)
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.BudgetSnapshot{}, err
	}

	today := e.today()
	w := core.WindowOf(today)
	if start, err := core.ParseDate(rec.MonthStart); err == nil {
		w = core.WindowOf(start)
	}
	evs, _, err := e.FetchRange(ctx, w.First(), w.Last(), profile)
	if err != nil {
		return core.BudgetSnapshot{}, err
	}
	paychecks := events.FilterSource(evs, core.SourcePaycheck)

	return budget.ComputeSnapshot(rec, paychecks, e.cfg.SpendableAccountID, goal, today), nil
}

// IncomeLine is one entry of the income breakdown.
type IncomeLine struct {
	Date     civil.Date `json:"date"`
	Merchant string     `json:"merchant"`
	Amount   float64    `json:"amount"`
}

// IncomeBreakdown lists the inflows expected in the spendable account for a
// month.
type IncomeBreakdown struct {
	Window         core.MonthWindow `json:"window"`
	AccountID      int              `json:"account_id"`
	Paychecks      []IncomeLine     `json:"paychecks"`
	Interest       []IncomeLine     `json:"interest"`
	PaycheckTotal  float64          `json:"paycheck_total"`
	InterestTotal  float64          `json:"interest_total"`
	Total          float64          `json:"total"`
	ProfileMissing bool             `json:"profile_missing,omitempty"`
}

// Income computes the breakdown behind the expected-income figure for w.
func (e *Engine) Income(ctx context.Context, w core.MonthWindow, profile *core.PayProfile) (IncomeBreakdown, error) {
	out := IncomeBreakdown{
		Window:         w,
		AccountID:      e.cfg.SpendableAccountID,
		Paychecks:      []IncomeLine{},
		Interest:       []IncomeLine{},
		ProfileMissing: profile == nil || !profile.Complete(),
	}

	evs, _, err := e.FetchRange(ctx, w.First(), w.Last(), profile)
	if err != nil {
		return IncomeBreakdown{}, err
	}

	for _, ev := range evs {
		if !w.Contains(ev.Date) || !ev.InAccount(e.cfg.SpendableAccountID) || ev.Amount <= 0 {
			continue
		}
		line := IncomeLine{Date: ev.Date, Merchant: ev.Merchant, Amount: ev.Amount}
		switch {
		case ev.Source == core.SourcePaycheck:
			if line.Merchant == "" {
				line.Merchant = "Paycheck"
			}
			out.Paychecks = append(out.Paychecks, line)
			out.PaycheckTotal += ev.Amount
		case isInterest(ev):
			if line.Merchant == "" {
				line.Merchant = "Interest"
			}
			out.Interest = append(out.Interest, line)
			out.InterestTotal += ev.Amount
		}
	}

	byDate := func(lines []IncomeLine) {
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].Date.Before(lines[j].Date) })
	}
	byDate(out.Paychecks)
	byDate(out.Interest)
	out.Total = out.PaycheckTotal + out.InterestTotal
	return out, nil
}

func isInterest(ev core.FinancialEvent) bool {
	if ev.Cadence == core.CadenceInterest {
		return true
	}
	return ev.IsIncome() && ev.Cadence != core.CadencePaycheck &&
		strings.Contains(strings.ToLower(ev.Merchant), "interest")
}
