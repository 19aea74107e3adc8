package filter

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Selection is the single current filter. Writes come from the UI side, reads
// come once per frame from the capture worker. The value is swapped as a whole
// so a reader never sees a partial update.
type Selection struct {
	current atomic.Pointer[Spec]

	mu        sync.Mutex
	listeners []func(ID)
}

// NewSelection returns a selection set to identity.
func NewSelection() *Selection {
	s := &Selection{}
	spec := Lookup(Normal)
	s.current.Store(&spec)
	return s
}

// Set replaces the current filter. Unknown ids are stored as identity.
// Listeners run on the caller's goroutine after the swap.
func (s *Selection) Set(id ID) {
	spec := Lookup(id)
	s.current.Store(&spec)

	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(spec.ID)
	}
}

// Current returns the most recently set filter, or Normal.
func (s *Selection) Current() ID {
	return s.Spec().ID
}

// Spec returns the spec of the current filter.
func (s *Selection) Spec() Spec {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return Lookup(Normal)
}

// OnChange registers fn to be called after every Set.
func (s *Selection) OnChange(fn func(ID)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
