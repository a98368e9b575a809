// Package browse pages through a fetched list of flagged records with
// clamped navigation and nested detail panels.
package browse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// State of a queue.
type State int

const (
	Idle State = iota
	Loaded
	Empty
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Empty:
		return "empty"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "loaded":
		*s = Loaded
	case "empty":
		*s = Empty
	default:
		return fmt.Errorf("unknown browse state %q", b)
	}
	return nil
}

var (
	ErrNotOpen    = errors.New("browse queue not opened")
	ErrEmptyQueue = errors.New("browse queue is empty")
)

// FetchFunc loads the list for a filter signature.
type FetchFunc[T any] func(ctx context.Context, signature string) ([]T, error)

// KeyFunc returns the natural key used to find a record again after a
// refresh. Keys are compared case-insensitively.
type KeyFunc[T any] func(T) string

// View is a read-only copy of the queue position.
type View[T any] struct {
	State     State  `json:"state"`
	Signature string `json:"signature"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Counter   string `json:"counter,omitempty"`
	HasPrev   bool   `json:"has_prev"`
	HasNext   bool   `json:"has_next"`
	Current   *T     `json:"current,omitempty"`
}

// Controller is the Idle/Loaded/Empty state machine. A failed fetch leaves the
// previous state untouched.
type Controller[T any] struct {
	mu        sync.Mutex
	fetch     FetchFunc[T]
	key       KeyFunc[T]
	state     State
	items     []T
	index     int
	signature string
}

func NewController[T any](fetch FetchFunc[T], key KeyFunc[T]) *Controller[T] {
	return &Controller[T]{fetch: fetch, key: key}
}

// Open fetches the list for signature and starts at the first item.
func (c *Controller[T]) Open(ctx context.Context, signature string) (View[T], error) {
	items, err := c.fetch(ctx, signature)
	if err != nil {
		return c.View(), fmt.Errorf("open queue %q: %w", signature, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.signature = signature
	c.load(items, 0)
	return c.view(), nil
}

// Next moves forward, stopping at the last item.
func (c *Controller[T]) Next() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Loaded && c.index < len(c.items)-1 {
		c.index++
	}
	return c.view()
}

// Prev moves back, stopping at the first item.
func (c *Controller[T]) Prev() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Loaded && c.index > 0 {
		c.index--
	}
	return c.view()
}

// AfterMutation re-fetches under the current signature and tries to stay on
// the record that was being viewed. If it is gone the queue restarts at 0.
func (c *Controller[T]) AfterMutation(ctx context.Context) (View[T], error) {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return View[T]{}, ErrNotOpen
	}
	signature := c.signature
	prevKey, hadCurrent := c.currentKey()
	c.mu.Unlock()

	items, err := c.fetch(ctx, signature)
	if err != nil {
		return c.View(), fmt.Errorf("refresh queue %q: %w", signature, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	idx := 0
	if hadCurrent {
		for i, it := range items {
			if normalizeKey(c.key(it)) == prevKey {
				idx = i
				break
			}
		}
	}
	c.load(items, idx)
	return c.view(), nil
}

// Current returns the record at the cursor.
func (c *Controller[T]) Current() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	switch c.state {
	case Idle:
		return zero, ErrNotOpen
	case Empty:
		return zero, ErrEmptyQueue
	}
	return c.items[c.index], nil
}

// Stale reports whether the queue was fetched under a different signature.
func (c *Controller[T]) Stale(signature string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Idle || c.signature != signature
}

func (c *Controller[T]) View() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

func (c *Controller[T]) load(items []T, idx int) {
	if len(items) == 0 {
		c.state = Empty
		c.items = nil
		c.index = 0
		return
	}
	c.state = Loaded
	c.items = items
	c.index = min(max(idx, 0), len(items)-1)
}

func (c *Controller[T]) currentKey() (string, bool) {
	if c.state != Loaded || c.key == nil {
		return "", false
	}
	return normalizeKey(c.key(c.items[c.index])), true
}

func (c *Controller[T]) view() View[T] {
	v := View[T]{State: c.state, Signature: c.signature}
	if c.state != Loaded {
		return v
	}
	cur := c.items[c.index]
	v.Index = c.index
	v.Total = len(c.items)
	v.Counter = fmt.Sprintf("%d / %d", c.index+1, len(c.items))
	v.HasPrev = c.index > 0
	v.HasNext = c.index < len(c.items)-1
	v.Current = &cur
	return v
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
