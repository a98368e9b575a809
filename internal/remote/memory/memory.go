// Package memory is an in-process remote.Backend backed by fixtures.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"cashflow/internal/core"
	"cashflow/internal/remote"
)

// Store holds fixture data keyed by month window. Failures can be injected
// per window to exercise degraded merges.
type Store struct {
	mu         sync.Mutex
	recurring  map[core.MonthWindow][]remote.RecurringRecord
	paychecks  map[core.MonthWindow][]remote.PaycheckRecord
	budget     remote.BudgetRecord
	goal       *remote.SavingsGoalRecord
	flagged    []remote.FlaggedRecord
	rules      []remote.Rule
	failures   map[string]error
	calls      map[string]int
	budgetErr  error
	flaggedErr error
}

func New() *Store {
	return &Store{
		recurring: make(map[core.MonthWindow][]remote.RecurringRecord),
		paychecks: make(map[core.MonthWindow][]remote.PaycheckRecord),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Fixture is the on-disk seed format.
type Fixture struct {
	Recurring   map[string][]remote.RecurringRecord `json:"recurring"`
	Paychecks   map[string][]remote.PaycheckRecord  `json:"paychecks"`
	Budget      remote.BudgetRecord                 `json:"budget"`
	SavingsGoal *remote.SavingsGoalRecord           `json:"savings_goal"`
	Flagged     []remote.FlaggedRecord              `json:"flagged"`
}

// NewFromFile seeds a store from a JSON fixture keyed by "YYYY-MM" windows.
// A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for key, recs := range fx.Recurring {
		w, err := parseWindowKey(key)
		if err != nil {
			return nil, err
		}
		s.SetRecurring(w, recs...)
	}
	for key, recs := range fx.Paychecks {
		w, err := parseWindowKey(key)
		if err != nil {
			return nil, err
		}
		s.SetPaychecks(w, recs...)
	}
	s.SetBudget(fx.Budget)
	s.SetSavingsGoal(fx.SavingsGoal)
	s.SetFlagged(fx.Flagged...)
	return s, nil
}

func parseWindowKey(key string) (core.MonthWindow, error) {
	d, err := core.ParseDate(key + "-01")
	if err != nil {
		return core.MonthWindow{}, fmt.Errorf("fixture window %q: %w", key, err)
	}
	return core.WindowOf(d), nil
}

func (s *Store) SetRecurring(w core.MonthWindow, recs ...remote.RecurringRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recurring[w] = append([]remote.RecurringRecord(nil), recs...)
}

func (s *Store) SetPaychecks(w core.MonthWindow, recs ...remote.PaycheckRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paychecks[w] = append([]remote.PaycheckRecord(nil), recs...)
}

func (s *Store) SetBudget(b remote.BudgetRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = b
}

func (s *Store) SetSavingsGoal(g *remote.SavingsGoalRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goal = g
}

func (s *Store) SetFlagged(recs ...remote.FlaggedRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagged = append([]remote.FlaggedRecord(nil), recs...)
}

// FailRecurring makes recurring fetches for w return err.
func (s *Store) FailRecurring(w core.MonthWindow, err error) {
	s.fail(failureKey("recurring", w), err)
}

// FailPaychecks makes paycheck fetches for w return err.
func (s *Store) FailPaychecks(w core.MonthWindow, err error) {
	s.fail(failureKey("paycheck", w), err)
}

// FailBudget makes MonthBudget return err.
func (s *Store) FailBudget(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgetErr = err
}

// FailFlagged makes Flagged return err.
func (s *Store) FailFlagged(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flaggedErr = err
}

func (s *Store) fail(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, key)
		return
	}
	s.failures[key] = err
}

func failureKey(source string, w core.MonthWindow) string {
	return source + "|" + w.String()
}

// Calls returns how many times a source was fetched for a window.
func (s *Store) Calls(source string, w core.MonthWindow) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[failureKey(source, w)]
}

// Rules returns the rules created so far.
func (s *Store) Rules() []remote.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]remote.Rule(nil), s.rules...)
}

// RecurringEvents implements remote.RecurringFeed.
func (s *Store) RecurringEvents(ctx context.Context, q remote.RecurringQuery) ([]remote.RecurringRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := failureKey("recurring", q.Window)
	s.calls[key]++
	if err := s.failures[key]; err != nil {
		return nil, err
	}
	return append([]remote.RecurringRecord(nil), s.recurring[q.Window]...), nil
}

// Paychecks implements remote.PaycheckFeed.
func (s *Store) Paychecks(ctx context.Context, w core.MonthWindow, _ core.PayProfile) ([]remote.PaycheckRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := failureKey("paycheck", w)
	s.calls[key]++
	if err := s.failures[key]; err != nil {
		return nil, err
	}
	return append([]remote.PaycheckRecord(nil), s.paychecks[w]...), nil
}

// MonthBudget implements remote.BudgetReader.
func (s *Store) MonthBudget(ctx context.Context, _ remote.BudgetQuery) (remote.BudgetRecord, error) {
	if err := ctx.Err(); err != nil {
		return remote.BudgetRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.budgetErr != nil {
		return remote.BudgetRecord{}, s.budgetErr
	}
	return s.budget, nil
}

// SavingsGoal implements remote.SavingsGoalReader.
func (s *Store) SavingsGoal(ctx context.Context) (*remote.SavingsGoalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.goal == nil {
		return nil, nil
	}
	g := *s.goal
	return &g, nil
}

// Flagged implements remote.QueueReader. Records come back in stored order,
// capped at the normalized limit.
func (s *Store) Flagged(ctx context.Context, q remote.QueueQuery) ([]remote.FlaggedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flaggedErr != nil {
		return nil, s.flaggedErr
	}
	out := s.flagged
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return append([]remote.FlaggedRecord(nil), out...), nil
}

// CreateRule implements remote.RuleWriter. With ApplyNow set, flagged
// records whose merchant contains any keyword are categorized and leave
// the queue.
func (s *Store) CreateRule(ctx context.Context, r remote.Rule) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := r.Validate(); err != nil {
		return 0, err
	}
	r.Keywords = r.CleanKeywords()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
	if !r.ApplyNow {
		return 0, nil
	}

	kept := s.flagged[:0:0]
	applied := 0
	for _, rec := range s.flagged {
		if matchesAny(rec.Merchant, r.Keywords) {
			applied++
			continue
		}
		kept = append(kept, rec)
	}
	s.flagged = kept
	return applied, nil
}

func matchesAny(merchant string, keywords []string) bool {
	m := strings.ToLower(merchant)
	for _, k := range keywords {
		if strings.Contains(m, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

var _ remote.Backend = (*Store)(nil)
