// Package budget turns the remote month snapshot, the computed paychecks and
// the savings goal into a safe-to-spend view.
package budget

import (
	"math"

	"cloud.google.com/go/civil"

	"cashflow/internal/core"
	"cashflow/internal/remote"
)

// GoalFromRecord converts the remote setting, returning nil for a missing or
// unusable goal.
func GoalFromRecord(rec *remote.SavingsGoalRecord) *core.SavingsGoalConfig {
	if rec == nil {
		return nil
	}
	cfg, ok := core.SavingsGoalConfig{Mode: rec.Mode, Value: rec.Value.Float()}.Normalize()
	if !ok {
		return nil
	}
	return &cfg
}

// SavingsAmount is the goal for a month with the given income, floored at 0.
func SavingsAmount(goal *core.SavingsGoalConfig, income float64) float64 {
	if goal == nil {
		return 0
	}
	cfg, ok := goal.Normalize()
	if !ok {
		return 0
	}
	v := cfg.Value
	if cfg.Mode == core.GoalPercent {
		v = income * cfg.Value / 100
	}
	return math.Max(0, v)
}

// PaycheckIncome sums positive paycheck deposits landing in window w and
// paid into the target account.
func PaycheckIncome(paychecks []core.FinancialEvent, w core.MonthWindow, targetAccountID int) float64 {
	total := 0.0
	for _, e := range paychecks {
		if !w.Contains(e.Date) || !e.InAccount(targetAccountID) {
			continue
		}
		if e.Amount > 0 {
			total += e.Amount
		}
	}
	return total
}

// ComputeSnapshot builds a fresh snapshot. The displayed month is taken from
// the remote month_start and falls back to today's month.
func ComputeSnapshot(rec remote.BudgetRecord, paychecks []core.FinancialEvent, targetAccountID int, goal *core.SavingsGoalConfig, today civil.Date) core.BudgetSnapshot {
	start, err := core.ParseDate(rec.MonthStart)
	if err != nil {
		start = core.WindowOf(today).First()
	}
	w := core.WindowOf(start)

	end, err := core.ParseDate(rec.MonthEnd)
	if err != nil || end.Before(start) {
		end = w.Last()
	}

	base := rec.IncomeExpected.Float()
	pay := PaycheckIncome(paychecks, w, targetAccountID)
	income := base + pay
	spent := rec.SpentSoFar.Float()
	bills := rec.BillsRemaining.Float()
	savings := SavingsAmount(goal, income)

	spendBudget := income - bills - savings

	return core.BudgetSnapshot{
		IncomeExpected: income,
		BaseIncome:     base,
		PaycheckIncome: pay,
		SpentSoFar:     spent,
		BillsRemaining: bills,
		SavingsGoal:    savings,
		SpendBudget:    spendBudget,
		SafeToSpend:    spendBudget - spent,
		PctUsed:        PctUsed(spent, spendBudget),
		OverBudget:     spendBudget > 0 && spent > spendBudget,
		MonthStart:     start,
		MonthEnd:       end,
		AsOf:           rec.AsOf,
	}
}

// PctUsed is the share of the spend budget already used, clamped to [0,100].
// A non-positive budget reads 100 once anything has been spent.
func PctUsed(spent, spendBudget float64) float64 {
	if spendBudget <= 0 {
		if spent > 0 {
			return 100
		}
		return 0
	}
	return math.Min(100, math.Max(0, spent/spendBudget*100))
}
