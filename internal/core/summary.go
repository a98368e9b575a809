package core

import (
	"math"
	"strings"

	"cloud.google.com/go/civil"
)

// CategoryGroup folds the events of one day sharing a category.
// Total is the sum of absolute amounts.
type CategoryGroup struct {
	Category  string  `json:"category"`
	Total     float64 `json:"total"`
	Count     int     `json:"count"`
	AnyIncome bool    `json:"any_income"`
}

// DayBucket holds the events and category groups of one date.
type DayBucket struct {
	Date   civil.Date       `json:"date"`
	Events []FinancialEvent `json:"events"`
	Groups []CategoryGroup  `json:"groups"`
}

// BudgetSnapshot is the month-level "safe to spend" view.
type BudgetSnapshot struct {
	IncomeExpected float64    `json:"income_expected"`
	BaseIncome     float64    `json:"base_income"`
	PaycheckIncome float64    `json:"paycheck_income"`
	SpentSoFar     float64    `json:"spent_so_far"`
	BillsRemaining float64    `json:"bills_remaining"`
	SavingsGoal    float64    `json:"savings_goal"`
	SpendBudget    float64    `json:"spend_budget"`
	SafeToSpend    float64    `json:"safe_to_spend"`
	PctUsed        float64    `json:"pct_used"`
	OverBudget     bool       `json:"over_budget"`
	MonthStart     civil.Date `json:"month_start"`
	MonthEnd       civil.Date `json:"month_end"`
	AsOf           string     `json:"as_of,omitempty"`
}

// PctDisplay is the whole-number percentage shown to the user.
func (b BudgetSnapshot) PctDisplay() int {
	return int(math.Round(b.PctUsed))
}

// Savings goal modes.
const (
	GoalPercent = "percent"
	GoalAmount  = "amount"
)

// SavingsGoalConfig is the user's savings target for a month.
type SavingsGoalConfig struct {
	Mode  string  `json:"mode"`
	Value float64 `json:"value"`
}

// Normalize returns the config if it is usable, or false when the goal must
// be treated as absent.
func (c SavingsGoalConfig) Normalize() (SavingsGoalConfig, bool) {
	mode := strings.ToLower(strings.TrimSpace(c.Mode))
	if mode != GoalPercent && mode != GoalAmount {
		return SavingsGoalConfig{}, false
	}
	if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) || c.Value < 0 {
		return SavingsGoalConfig{}, false
	}
	if mode == GoalPercent && c.Value > 100 {
		return SavingsGoalConfig{}, false
	}
	return SavingsGoalConfig{Mode: mode, Value: c.Value}, true
}

// PayProfile carries the inputs required by the computed-paycheck feed.
type PayProfile struct {
	Paygrade      string   `json:"paygrade"`
	ServiceStart  string   `json:"service_start"`
	HasDependents bool     `json:"has_dependents"`
	BAS           *float64 `json:"bas,omitempty"`
	BAHOverride   *float64 `json:"bah_override"`
	SubmarinePay  float64  `json:"submarine_pay"`
	CareerSeaPay  float64  `json:"career_sea_pay"`
	SpecDutyPay   float64  `json:"spec_duty_pay"`
	TSPRate       float64  `json:"tsp_rate"`
	FilingStatus  string   `json:"filing_status,omitempty"`
}

// Normalized returns a copy with the paygrade in the feed's canonical form
// (E-5 becomes E5) and trimmed text fields.
func (p PayProfile) Normalized() PayProfile {
	out := p
	grade := strings.ToUpper(strings.Join(strings.Fields(p.Paygrade), ""))
	out.Paygrade = strings.ReplaceAll(grade, "-", "")
	out.ServiceStart = strings.TrimSpace(p.ServiceStart)
	out.FilingStatus = strings.ToUpper(strings.TrimSpace(p.FilingStatus))
	return out
}

// Complete reports whether the profile has enough data for a paycheck call.
func (p PayProfile) Complete() bool {
	n := p.Normalized()
	if n.Paygrade == "" {
		return false
	}
	_, err := ParseDate(n.ServiceStart)
	return err == nil
}
