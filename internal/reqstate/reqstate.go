// Package reqstate tracks the lifecycle of asynchronous backend operations.
// Every remote operation is keyed by name and moves through the same
// transitions, so callers can render loading/error/success uniformly.
package reqstate

import (
	"sort"
	"sync"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// State is a snapshot of one operation's lifecycle. Exactly one of Payload
// and Error is meaningful: succeeded implies Payload != nil, failed implies
// Error != "".
type State[T any] struct {
	Status  Status `json:"status"`
	Payload *T     `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Tracker is a keyed table of request states. Raw Succeed/Fail overwrite
// whatever is there (last completion wins between two in-flight operations
// on the same key); completions routed through an Op handle are additionally
// discarded when a later Begin or Reset has superseded them.
type Tracker[T any] struct {
	mu    sync.Mutex
	table map[string]State[T]
	gen   map[string]uint64
	subs  map[string][]chan State[T]
}

func NewTracker[T any]() *Tracker[T] {
	return &Tracker[T]{
		table: make(map[string]State[T]),
		gen:   make(map[string]uint64),
		subs:  make(map[string][]chan State[T]),
	}
}

// Op is a handle bound to one Begin call. Its completions apply only while
// no newer Begin or Reset has been issued for the key.
type Op[T any] struct {
	tracker *Tracker[T]
	key     string
	gen     uint64
}

// Begin moves the key to pending, clearing any previous payload or error
// immediately, and returns the handle for this attempt.
func (t *Tracker[T]) Begin(key string) Op[T] {
	t.mu.Lock()
	t.gen[key]++
	gen := t.gen[key]
	state := State[T]{Status: StatusPending}
	t.table[key] = state
	subs := t.subscribersLocked(key)
	t.mu.Unlock()

	notify(subs, state)
	return Op[T]{tracker: t, key: key, gen: gen}
}

// Succeed records a successful completion. Calling it without a matching
// Begin is a programmer error but intentionally does not panic; the state is
// simply overwritten.
func (t *Tracker[T]) Succeed(key string, payload T) {
	t.apply(key, State[T]{Status: StatusSucceeded, Payload: &payload})
}

// Fail records a failed completion. The error is a flattened human-readable
// message, never a structured object.
func (t *Tracker[T]) Fail(key string, message string) {
	t.apply(key, State[T]{Status: StatusFailed, Error: message})
}

// Reset returns the key to idle with an empty payload. Used when a view
// unmounts or a form is resubmitted.
func (t *Tracker[T]) Reset(key string) {
	t.mu.Lock()
	t.gen[key]++
	state := State[T]{Status: StatusIdle}
	t.table[key] = state
	subs := t.subscribersLocked(key)
	t.mu.Unlock()

	notify(subs, state)
}

func (t *Tracker[T]) apply(key string, state State[T]) {
	t.mu.Lock()
	t.table[key] = state
	subs := t.subscribersLocked(key)
	t.mu.Unlock()

	notify(subs, state)
}

// Succeed applies the payload unless a newer Begin or Reset superseded this
// attempt. It reports whether the state was applied.
func (o Op[T]) Succeed(payload T) bool {
	return o.complete(State[T]{Status: StatusSucceeded, Payload: &payload})
}

// Fail applies the error unless this attempt was superseded.
func (o Op[T]) Fail(message string) bool {
	return o.complete(State[T]{Status: StatusFailed, Error: message})
}

func (o Op[T]) complete(state State[T]) bool {
	if o.tracker == nil {
		return false
	}
	t := o.tracker
	t.mu.Lock()
	if t.gen[o.key] != o.gen {
		t.mu.Unlock()
		return false
	}
	t.table[o.key] = state
	subs := t.subscribersLocked(o.key)
	t.mu.Unlock()

	notify(subs, state)
	return true
}

// Get returns the current state for key; an unknown key reads as idle.
func (t *Tracker[T]) Get(key string) State[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.table[key]
	if !ok {
		return State[T]{Status: StatusIdle}
	}
	return state
}

// Keys returns the tracked operation keys, sorted.
func (t *Tracker[T]) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.table))
	for key := range t.table {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the whole table.
func (t *Tracker[T]) Snapshot() map[string]State[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]State[T], len(t.table))
	for key, state := range t.table {
		out[key] = state
	}
	return out
}

// Watch subscribes to transitions on key. The returned channel receives a
// snapshot after every transition; slow consumers miss intermediate states
// rather than blocking the tracker. The second return value unsubscribes.
func (t *Tracker[T]) Watch(key string) (<-chan State[T], func()) {
	ch := make(chan State[T], 8)

	t.mu.Lock()
	t.subs[key] = append(t.subs[key], ch)
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		channels := t.subs[key]
		for i, existing := range channels {
			if existing == ch {
				t.subs[key] = append(channels[:i], channels[i+1:]...)
				break
			}
		}
		if len(t.subs[key]) == 0 {
			delete(t.subs, key)
		}
	}
	return ch, cancel
}

func (t *Tracker[T]) subscribersLocked(key string) []chan State[T] {
	channels := t.subs[key]
	if len(channels) == 0 {
		return nil
	}
	return append([]chan State[T](nil), channels...)
}

func notify[T any](channels []chan State[T], state State[T]) {
	for _, ch := range channels {
		select {
		case ch <- state:
		default:
		}
	}
}
