package motion

import "iter"

// Window is a fixed-capacity FIFO. Pushing into a full window evicts the
// oldest item. Len never exceeds Cap.
type Window[T any] struct {
	items []T
	head  int
	size  int
}

// NewWindow creates an empty window holding at most capacity items.
func NewWindow[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{items: make([]T, capacity)}
}

// Push appends v. When the window was full, the evicted item is returned
// with ok set.
func (w *Window[T]) Push(v T) (evicted T, ok bool) {
	tail := (w.head + w.size) % len(w.items)
	if w.size == len(w.items) {
		evicted, ok = w.items[w.head], true
		w.head = (w.head + 1) % len(w.items)
	} else {
		w.size++
	}
	w.items[tail] = v
	return evicted, ok
}

// At returns the item at logical position i (0 = oldest). It panics when i
// is out of range.
func (w *Window[T]) At(i int) T {
	if i < 0 || i >= w.size {
		panic("motion: window index out of range")
	}
	return w.items[(w.head+i)%len(w.items)]
}

// Latest returns the newest item.
func (w *Window[T]) Latest() (T, bool) {
	var zero T
	if w.size == 0 {
		return zero, false
	}
	return w.At(w.size - 1), true
}

// Len returns the number of buffered items.
func (w *Window[T]) Len() int { return w.size }

// Cap returns the window capacity.
func (w *Window[T]) Cap() int { return len(w.items) }

// Full reports whether Len == Cap.
func (w *Window[T]) Full() bool { return w.size == len(w.items) }

// Clear empties the window.
func (w *Window[T]) Clear() {
	var zero T
	for i := range w.items {
		w.items[i] = zero
	}
	w.head, w.size = 0, 0
}

// All iterates oldest to newest.
func (w *Window[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := range w.size {
			if !yield(w.items[(w.head+i)%len(w.items)]) {
				return
			}
		}
	}
}

// Slice copies the contents, oldest first.
func (w *Window[T]) Slice() []T {
	out := make([]T, 0, w.size)
	for v := range w.All() {
		out = append(out, v)
	}
	return out
}

// Tail copies the newest k items, oldest first.
func (w *Window[T]) Tail(k int) []T {
	if k > w.size {
		k = w.size
	}
	out := make([]T, 0, k)
	for i := w.size - k; i < w.size; i++ {
		out = append(out, w.At(i))
	}
	return out
}
