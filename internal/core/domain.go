package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const (
	SourceRecurring Source = "recurring"
	SourcePaycheck  Source = "paycheck"
)

// Cadence tags reported by the remote feeds.
const (
	CadencePaycheck  = "paycheck"
	CadenceInterest  = "interest"
	CadenceWeekly    = "weekly"
	CadenceMonthly   = "monthly"
	CadenceIrregular = "irregular"
)

// UnassignedCategory is the label used when neither category nor type is set.
const UnassignedCategory = "Unassigned"

type (
	// Kind is the direction of a cash movement.
	Kind string

	// Source identifies the feed that produced an event.
	Source string

	// FinancialEvent is one expected or historical cash movement.
	// Amount is signed: positive is an inflow, negative an outflow.
	FinancialEvent struct {
		Date      civil.Date  `json:"date"`
		PayTarget *civil.Date `json:"pay_target,omitempty"`
		Merchant  string      `json:"merchant"`
		Category  string      `json:"category,omitempty"`
		Type      string      `json:"type,omitempty"`
		Cadence   string      `json:"cadence,omitempty"`
		Kind      Kind        `json:"kind"`
		Amount    float64     `json:"amount"`
		AccountID *int        `json:"account_id,omitempty"`
		Source    Source      `json:"source"`
	}

	// MonthWindow is the unit of remote retrieval.
	MonthWindow struct {
		Year  int        `json:"year"`
		Month time.Month `json:"month"`
	}

	// SeriesPoint is one entry of an externally supplied balance series.
	SeriesPoint struct {
		Date  civil.Date `json:"date"`
		Value float64    `json:"value"`
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidWindow = errors.New("invalid month window")
	ErrEmptyRange    = errors.New("range end is before range start")
)

// InferKind reports income when the raw type says so or the cadence is one
// that only ever carries inflows.
func InferKind(rawType, cadence string) Kind {
	if strings.EqualFold(strings.TrimSpace(rawType), string(KindIncome)) {
		return KindIncome
	}
	switch strings.ToLower(strings.TrimSpace(cadence)) {
	case CadencePaycheck, CadenceInterest:
		return KindIncome
	}
	return KindExpense
}

// CanonicalAmount maps a raw magnitude to the signed convention for kind.
// Non-finite input becomes 0.
func CanonicalAmount(kind Kind, raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	if kind == KindIncome {
		return math.Abs(raw)
	}
	if raw == 0 {
		return 0
	}
	return -math.Abs(raw)
}

// IsIncome reports whether the event is an inflow.
func (e FinancialEvent) IsIncome() bool {
	return e.Kind == KindIncome
}

// Magnitude returns the absolute amount.
func (e FinancialEvent) Magnitude() float64 {
	return math.Abs(e.Amount)
}

// CategoryLabel resolves the display category: category, then type, then Unassigned.
func (e FinancialEvent) CategoryLabel() string {
	if c := strings.TrimSpace(e.Category); c != "" {
		return c
	}
	if t := strings.TrimSpace(e.Type); t != "" {
		return t
	}
	return UnassignedCategory
}

// DedupKey is the identity used to collapse copies of the same real-world
// event fetched through overlapping windows.
func (e FinancialEvent) DedupKey() string {
	payTarget := ""
	if e.PayTarget != nil {
		payTarget = e.PayTarget.String()
	}
	account := ""
	if e.AccountID != nil {
		account = strconv.Itoa(*e.AccountID)
	}
	return strings.Join([]string{
		e.Date.String(),
		payTarget,
		e.Merchant,
		e.Cadence,
		strconv.FormatFloat(e.Amount, 'f', -1, 64),
		account,
	}, "|")
}

// InAccount reports whether the event is scoped to the given account.
func (e FinancialEvent) InAccount(id int) bool {
	return e.AccountID != nil && *e.AccountID == id
}

// ParseDate parses a YYYY-MM-DD string. Only the first ten characters are
// considered so timestamps with a time component are accepted.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// NewWindow validates and builds a month window.
func NewWindow(year, month int) (MonthWindow, error) {
	if month < 1 || month > 12 {
		return MonthWindow{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	if year < 1 || year > 9999 {
		return MonthWindow{}, fmt.Errorf("%w: year %d", ErrInvalidWindow, year)
	}
	return MonthWindow{Year: year, Month: time.Month(month)}, nil
}

// WindowOf returns the window containing d.
func WindowOf(d civil.Date) MonthWindow {
	return MonthWindow{Year: d.Year, Month: d.Month}
}

// First returns the first day of the window.
func (w MonthWindow) First() civil.Date {
	return civil.Date{Year: w.Year, Month: w.Month, Day: 1}
}

// Last returns the last day of the window.
func (w MonthWindow) Last() civil.Date {
	return w.Next().First().AddDays(-1)
}

// Next returns the following month.
func (w MonthWindow) Next() MonthWindow {
	if w.Month == time.December {
		return MonthWindow{Year: w.Year + 1, Month: time.January}
	}
	return MonthWindow{Year: w.Year, Month: w.Month + 1}
}

// Contains reports whether d falls in the window.
func (w MonthWindow) Contains(d civil.Date) bool {
	return d.Year == w.Year && d.Month == w.Month
}

// Before reports whether w is an earlier month than o.
func (w MonthWindow) Before(o MonthWindow) bool {
	if w.Year != o.Year {
		return w.Year < o.Year
	}
	return w.Month < o.Month
}

func (w MonthWindow) String() string {
	return fmt.Sprintf("%04d-%02d", w.Year, int(w.Month))
}

// WindowsBetween lists every month window touched by [start, end] in order.
func WindowsBetween(start, end civil.Date) ([]MonthWindow, error) {
	if end.Before(start) {
		return nil, ErrEmptyRange
	}
	last := WindowOf(end)
	var out []MonthWindow
	for w := WindowOf(start); !last.Before(w); w = w.Next() {
		out = append(out, w)
	}
	return out, nil
}

// EndOfMonth returns the last day of d's month.
func EndOfMonth(d civil.Date) civil.Date {
	return WindowOf(d).Last()
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b civil.Date) bool {
	return a.Year == b.Year && a.Month == b.Month
}

// Today returns the current local wall-clock date.
func Today() civil.Date {
	return civil.DateOf(time.Now())
}
