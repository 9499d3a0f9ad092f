// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package container

import (
	"iter"
	"sync"
)

// Handlers is a thread-safe set of callbacks that can be individually
// removed.
type Handlers[T any] struct {
	mu   sync.Mutex
	next uint64
	fns  map[uint64]T
}

// Add registers a callback and returns a function that removes it.
func (h *Handlers[T]) Add(fn T) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fns == nil {
		h.fns = map[uint64]T{}
	}
	id := h.next
	h.next++
	h.fns[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.fns, id)
	}
}

// All yields a snapshot of the registered callbacks, so callbacks may add or
// remove handlers without deadlocking.
func (h *Handlers[T]) All() iter.Seq[T] {
	h.mu.Lock()
	fns := make([]T, 0, len(h.fns))
	for _, fn := range h.fns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	return func(yield func(T) bool) {
		for _, fn := range fns {
			if !yield(fn) {
				return
			}
		}
	}
}
