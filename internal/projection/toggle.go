package projection

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/civil"

	"cashflow/internal/core"
)

// Preference keys persisted across sessions.
const (
	KeyShowProjectedGrowth = "show_projected_growth"
	KeyEndBeforeProjection = "end_before_projection"
)

// Store is the durable key-value store the toggle persists to.
type Store interface {
	GetBool(ctx context.Context, key string) (value bool, ok bool, err error)
	SetBool(ctx context.Context, key string, value bool) error
	GetString(ctx context.Context, key string) (value string, ok bool, err error)
	SetString(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// ToggleState is the toggle after an operation, with the range end the
// caller should now display.
type ToggleState struct {
	Enabled   bool       `json:"enabled"`
	RangeEnd  civil.Date `json:"range_end"`
	ForcedOff bool       `json:"forced_off,omitempty"`
}

// Toggle controls the "show projected growth" preference. Enabling snaps the
// displayed range to month end and remembers the previous end; disabling
// restores it.
type Toggle struct {
	mu    sync.Mutex
	store Store
}

func NewToggle(store Store) *Toggle {
	return &Toggle{store: store}
}

// Enabled reports the persisted flag.
func (t *Toggle) Enabled(ctx context.Context) (bool, error) {
	v, _, err := t.store.GetBool(ctx, KeyShowProjectedGrowth)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", KeyShowProjectedGrowth, err)
	}
	return v, nil
}

// Enable turns projection on for a range ending at currentEnd. If that end
// is not in today's month the flag is forced off instead. Enabling twice
// keeps the first remembered end.
func (t *Toggle) Enable(ctx context.Context, currentEnd, today civil.Date) (ToggleState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !core.SameMonth(currentEnd, today) {
		if err := t.store.SetBool(ctx, KeyShowProjectedGrowth, false); err != nil {
			return ToggleState{}, fmt.Errorf("force projection off: %w", err)
		}
		return ToggleState{Enabled: false, RangeEnd: currentEnd, ForcedOff: true}, nil
	}

	eom := core.EndOfMonth(today)
	on, _, err := t.store.GetBool(ctx, KeyShowProjectedGrowth)
	if err != nil {
		return ToggleState{}, fmt.Errorf("read %s: %w", KeyShowProjectedGrowth, err)
	}
	if on {
		return ToggleState{Enabled: true, RangeEnd: eom}, nil
	}

	if err := t.store.SetString(ctx, KeyEndBeforeProjection, currentEnd.String()); err != nil {
		return ToggleState{}, fmt.Errorf("remember range end: %w", err)
	}
	if err := t.store.SetBool(ctx, KeyShowProjectedGrowth, true); err != nil {
		return ToggleState{}, fmt.Errorf("enable projection: %w", err)
	}
	return ToggleState{Enabled: true, RangeEnd: eom}, nil
}

// Disable turns projection off and returns the remembered range end, or
// currentEnd when none was stored.
func (t *Toggle) Disable(ctx context.Context, currentEnd civil.Date) (ToggleState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	restored := currentEnd
	saved, ok, err := t.store.GetString(ctx, KeyEndBeforeProjection)
	if err != nil {
		return ToggleState{}, fmt.Errorf("read %s: %w", KeyEndBeforeProjection, err)
	}
	if ok {
		if d, perr := core.ParseDate(saved); perr == nil {
			restored = d
		}
	}

	if err := t.store.SetBool(ctx, KeyShowProjectedGrowth, false); err != nil {
		return ToggleState{}, fmt.Errorf("disable projection: %w", err)
	}
	if err := t.store.Delete(ctx, KeyEndBeforeProjection); err != nil {
		return ToggleState{}, fmt.Errorf("clear remembered range end: %w", err)
	}
	return ToggleState{Enabled: false, RangeEnd: restored}, nil
}

// Reconcile is called when a range is displayed: a persisted "on" flag is
// forced off if the range has moved out of today's month.
func (t *Toggle) Reconcile(ctx context.Context, currentEnd, today civil.Date) (ToggleState, error) {
	on, err := t.Enabled(ctx)
	if err != nil {
		return ToggleState{}, err
	}
	if !on {
		return ToggleState{Enabled: false, RangeEnd: currentEnd}, nil
	}
	if core.SameMonth(currentEnd, today) {
		return ToggleState{Enabled: true, RangeEnd: currentEnd}, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.SetBool(ctx, KeyShowProjectedGrowth, false); err != nil {
		return ToggleState{}, fmt.Errorf("force projection off: %w", err)
	}
	return ToggleState{Enabled: false, RangeEnd: currentEnd, ForcedOff: true}, nil
}
