// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package edge

import (
	"fmt"
	"sync"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/container"
)

type (
	// State is the lifecycle state of a responder.
	State int

	// Event drives a responder between states.
	Event int

	// Transition is the change reported to state observers.
	Transition struct {
		From  State
		To    State
		Event Event
	}

	// Machine is a thread-safe state machine over the responder lifecycle.
	Machine struct {
		state     State
		mu        sync.Mutex
		observers container.Handlers[func(Transition)]
	}
)

// Responder states.
const (
	Disconnected State = iota
	Connecting
	Subscribed
	Running
)

// Responder events.
const (
	EventStart Event = iota
	EventSubscribed
	EventServe
	EventStop
	EventLost
)

var (
	stateNames = [...]string{"disconnected", "connecting", "subscribed", "running"}
	eventNames = [...]string{"start", "subscribed", "serve", "stop", "lost"}
)

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("event(%d)", int(e))
	}
	return eventNames[e]
}

// Next returns the state reached from s on e, or false if the transition is
// not allowed.
func (s State) Next(e Event) (State, bool) {
	switch {
	case s == Disconnected && e == EventStart:
		return Connecting, true
	case s == Connecting && e == EventSubscribed:
		return Subscribed, true
	case s == Subscribed && e == EventServe:
		return Running, true
	case s != Disconnected && (e == EventStop || e == EventLost):
		return Disconnected, true
	default:
		return s, false
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire applies the event. Observers run after the state has changed, outside
// the lock.
func (m *Machine) Fire(e Event) (State, error) {
	m.mu.Lock()
	from := m.state
	to, ok := from.Next(e)
	if !ok {
		m.mu.Unlock()
		return from, &errors.Error{
			Message:       fmt.Sprintf("cannot %s while %s", e, from),
			Kind:          errors.StateInvalid,
			PropertyName:  "state",
			PropertyValue: from.String(),
		}
	}
	m.state = to
	m.mu.Unlock()

	t := Transition{From: from, To: to, Event: e}
	for fn := range m.observers.All() {
		fn(t)
	}
	return to, nil
}

// Observe registers a transition observer. Returns a function to remove it.
func (m *Machine) Observe(fn func(Transition)) func() {
	return m.observers.Add(fn)
}
