package ecs

// slot is one optional component value.
type slot[T any] struct {
	value   T
	present bool
}

// Storage is a sparse component array indexed by entity id. Absent slots read as "entity does not have
// this component". Reads past the end are absent rather than out of bounds.
type Storage[T any] struct {
	slots []slot[T]
}

// Len returns the number of slots, present or not.
func (s *Storage[T]) Len() int {
	return len(s.slots)
}

// Resize grows the array to n slots. It never shrinks.
func (s *Storage[T]) Resize(n int) {
	if n <= len(s.slots) {
		return
	}
	if n <= cap(s.slots) {
		s.slots = s.slots[:n]
		return
	}
	grown := make([]slot[T], n)
	copy(grown, s.slots)
	s.slots = grown
}

// Get returns the component at index i.
func (s *Storage[T]) Get(i int) (T, bool) {
	if i < 0 || i >= len(s.slots) || !s.slots[i].present {
		var zero T
		return zero, false
	}
	return s.slots[i].value, true
}

// Has reports whether index i holds a component.
func (s *Storage[T]) Has(i int) bool {
	return i >= 0 && i < len(s.slots) && s.slots[i].present
}

// Set writes the component at index i, growing the array first if needed.
func (s *Storage[T]) Set(i int, v T) {
	s.Resize(i + 1)
	s.slots[i] = slot[T]{value: v, present: true}
}

// Clear marks index i absent.
func (s *Storage[T]) Clear(i int) {
	if i >= 0 && i < len(s.slots) {
		s.slots[i] = slot[T]{}
	}
}

// Count returns how many slots hold a component.
func (s *Storage[T]) Count() int {
	n := 0
	for i := range s.slots {
		if s.slots[i].present {
			n++
		}
	}
	return n
}
