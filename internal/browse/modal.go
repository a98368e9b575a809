package browse

import "errors"

var (
	ErrNoDetail  = errors.New("no panel open")
	ErrStackFull = errors.New("a detail panel is already open")
)

// ModalStack holds at most a list panel and one detail panel opened from it.
// Popping the detail reveals the list exactly as it was left.
type ModalStack[P any] struct {
	slots [2]P
	depth int
}

// Push opens p on top of the current panel.
func (s *ModalStack[P]) Push(p P) error {
	if s.depth == len(s.slots) {
		return ErrStackFull
	}
	s.slots[s.depth] = p
	s.depth++
	return nil
}

// Pop closes the top panel and returns the one now visible, if any.
func (s *ModalStack[P]) Pop() (revealed P, ok bool, err error) {
	var zero P
	if s.depth == 0 {
		return zero, false, ErrNoDetail
	}
	s.depth--
	s.slots[s.depth] = zero
	if s.depth == 0 {
		return zero, false, nil
	}
	return s.slots[s.depth-1], true, nil
}

// Top returns the visible panel.
func (s *ModalStack[P]) Top() (P, bool) {
	if s.depth == 0 {
		var zero P
		return zero, false
	}
	return s.slots[s.depth-1], true
}

func (s *ModalStack[P]) Depth() int { return s.depth }

// Reset closes every panel.
func (s *ModalStack[P]) Reset() {
	*s = ModalStack[P]{}
}
