// Package series provides fixed-capacity rolling windows and the float
// statistics shared by the analytics engines. Every history in the system is
// one of these rings: append-only with oldest-first eviction, so state stays
// bounded regardless of feed volume.
package series

// Ring is a fixed-capacity rolling window with oldest-first eviction.
type Ring[T any] struct {
	capacity int
	vals     []T
}

// NewRing builds an empty ring holding at most capacity elements.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{capacity: capacity, vals: make([]T, 0, capacity)}
}

// Push appends a value, evicting the oldest entries once capacity is reached.
func (r *Ring[T]) Push(v T) {
	r.vals = append(r.vals, v)
	if len(r.vals) > r.capacity {
		overflow := len(r.vals) - r.capacity
		r.vals = append(r.vals[:0], r.vals[overflow:]...)
	}
}

// Len reports the number of stored values.
func (r *Ring[T]) Len() int { return len(r.vals) }

// Cap reports the configured capacity.
func (r *Ring[T]) Cap() int { return r.capacity }

// Values exposes the stored values oldest-first. Callers must not mutate the
// returned slice.
func (r *Ring[T]) Values() []T { return r.vals }

// Last returns up to n most recent values, oldest-first.
func (r *Ring[T]) Last(n int) []T {
	if n <= 0 || len(r.vals) == 0 {
		return nil
	}
	if n > len(r.vals) {
		n = len(r.vals)
	}
	return r.vals[len(r.vals)-n:]
}

// Latest returns the most recent value, if any.
func (r *Ring[T]) Latest() (T, bool) {
	var zero T
	if len(r.vals) == 0 {
		return zero, false
	}
	return r.vals[len(r.vals)-1], true
}
