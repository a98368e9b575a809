// Package remote defines the outbound ports to the finance API collaborators
// and the raw record shapes they return. Records are decoded leniently; the
// feeds package maps them to canonical events.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cashflow/internal/core"
)

// Queue sort modes.
const (
	ModeFrequent = "freq"
	ModeRecent   = "recent"
)

const (
	DefaultQueueLimit = 25
	MaxQueueLimit     = 500
)

var (
	// ErrMalformed marks a payload that could not be decoded.
	ErrMalformed = errors.New("malformed payload")
	// ErrRejected marks a payload the collaborator flagged as not ok.
	ErrRejected = errors.New("request rejected by collaborator")

	// ErrInvalidRule marks a rule that fails validation.
	ErrInvalidRule = errors.New("invalid rule")
)

// StatusError is returned when a collaborator answers with a non-2xx status.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Path, e.StatusCode, e.Body)
}

type (
	// RecurringQuery selects recurring events for one month.
	RecurringQuery struct {
		Window         core.MonthWindow
		MinOccurrences int
		IncludeStale   bool
	}

	// RecurringRecord is one projected occurrence from the recurring feed.
	RecurringRecord struct {
		Date            string           `json:"date"`
		Merchant        string           `json:"merchant"`
		MerchantDisplay string           `json:"merchant_display,omitempty"`
		Category        string           `json:"category,omitempty"`
		Type            string           `json:"type,omitempty"`
		Cadence         string           `json:"cadence,omitempty"`
		Amount          core.FlexAmount  `json:"amount"`
		AccountID       core.FlexAccount `json:"account_id"`
	}

	// PaycheckRecord is one computed deposit from the paycheck feed.
	PaycheckRecord struct {
		Date      string           `json:"date"`
		PayTarget string           `json:"pay_target"`
		Merchant  string           `json:"merchant"`
		Cadence   string           `json:"cadence"`
		Type      string           `json:"type,omitempty"`
		Category  string           `json:"category,omitempty"`
		Amount    core.FlexAmount  `json:"amount"`
		AccountID core.FlexAccount `json:"account_id"`
		Spillover bool             `json:"spillover"`
	}

	// BudgetQuery carries the feed filters the month-budget endpoint shares
	// with the recurring feed.
	BudgetQuery struct {
		MinOccurrences int
		IncludeStale   bool
	}

	// BudgetRecord is the remote month-budget snapshot.
	BudgetRecord struct {
		IncomeExpected core.FlexAmount `json:"income_expected"`
		SpentSoFar     core.FlexAmount `json:"spent_so_far"`
		BillsRemaining core.FlexAmount `json:"bills_remaining"`
		AsOf           string          `json:"as_of"`
		MonthStart     string          `json:"month_start"`
		MonthEnd       string          `json:"month_end"`
	}

	// SavingsGoalRecord is the raw savings-goal setting.
	SavingsGoalRecord struct {
		Mode  string          `json:"mode"`
		Value core.FlexAmount `json:"value"`
	}

	// QueueQuery selects flagged records.
	QueueQuery struct {
		Limit int
		Mode  string
	}

	// FlaggedRecord is one uncategorized transaction awaiting review.
	FlaggedRecord struct {
		ID         RecordID        `json:"id"`
		PostedDate string          `json:"postedDate"`
		Merchant   string          `json:"merchant"`
		Amount     core.FlexAmount `json:"amount"`
		Bank       string          `json:"bank,omitempty"`
		Card       string          `json:"card,omitempty"`
		UsageCount int             `json:"usage_count,omitempty"`
	}

	// Rule is a keyword categorization rule.
	Rule struct {
		Category string   `json:"category"`
		Keywords []string `json:"keywords"`
		ApplyNow bool     `json:"apply_now"`
	}
)

// Ports for outbound adapters.
type (
	RecurringFeed interface {
		RecurringEvents(ctx context.Context, q RecurringQuery) ([]RecurringRecord, error)
	}

	PaycheckFeed interface {
		Paychecks(ctx context.Context, window core.MonthWindow, profile core.PayProfile) ([]PaycheckRecord, error)
	}

	BudgetReader interface {
		MonthBudget(ctx context.Context, q BudgetQuery) (BudgetRecord, error)
	}

	// SavingsGoalReader returns nil when no goal is configured.
	SavingsGoalReader interface {
		SavingsGoal(ctx context.Context) (*SavingsGoalRecord, error)
	}

	QueueReader interface {
		Flagged(ctx context.Context, q QueueQuery) ([]FlaggedRecord, error)
	}

	// RuleWriter creates a rule and reports how many records it categorized.
	RuleWriter interface {
		CreateRule(ctx context.Context, r Rule) (applied int, err error)
	}

	// Backend bundles every collaborator port.
	Backend interface {
		RecurringFeed
		PaycheckFeed
		BudgetReader
		SavingsGoalReader
		QueueReader
		RuleWriter
	}
)

// RecordID is a record identifier the API emits either as a number or a string.
type RecordID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	*id = RecordID(strings.Trim(s, `"`))
	return nil
}

// Normalize clamps the limit to 1..500 and defaults the mode to freq.
func (q QueueQuery) Normalize() QueueQuery {
	out := q
	if out.Limit <= 0 {
		out.Limit = DefaultQueueLimit
	}
	if out.Limit > MaxQueueLimit {
		out.Limit = MaxQueueLimit
	}
	out.Mode = strings.ToLower(strings.TrimSpace(out.Mode))
	if out.Mode != ModeRecent {
		out.Mode = ModeFrequent
	}
	return out
}

// Signature identifies the filter context a queue was fetched under.
func (q QueueQuery) Signature() string {
	n := q.Normalize()
	return fmt.Sprintf("%s:%d", n.Mode, n.Limit)
}

// Validate checks a rule before it is sent.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidRule)
	}
	for _, k := range r.Keywords {
		if strings.TrimSpace(k) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: at least one keyword is required", ErrInvalidRule)
}

// CleanKeywords returns the trimmed, non-empty keywords.
func (r Rule) CleanKeywords() []string {
	out := make([]string, 0, len(r.Keywords))
	for _, k := range r.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
