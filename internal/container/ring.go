// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package container

import "sync"

// Ring is a thread-safe, fixed-capacity buffer that evicts its oldest entry
// once full. A ring with zero capacity retains nothing.
type Ring[T any] struct {
	buf   []T
	next  int
	count int
	l     sync.Mutex
}

func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{buf: make([]T, max(capacity, 0))}
}

// Push adds a value, evicting the oldest one if the ring is full.
func (r *Ring[T]) Push(val T) {
	r.l.Lock()
	defer r.l.Unlock()
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.next] = val
	r.next = (r.next + 1) % len(r.buf)
	r.count = min(r.count+1, len(r.buf))
}

// Snapshot returns the retained values, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.l.Lock()
	defer r.l.Unlock()
	out := make([]T, 0, r.count)
	start := (r.next - r.count + len(r.buf)) % max(len(r.buf), 1)
	for i := range r.count {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

func (r *Ring[T]) Len() int {
	r.l.Lock()
	defer r.l.Unlock()
	return r.count
}

func (r *Ring[T]) Cap() int {
	return len(r.buf)
}
