// Package health tracks per-backend availability: a map guarded by a
// short-held mutex, read by taking a value copy rather than a pointer
// into the map.
package health

import (
	"sync"
	"time"
)

// Availability is the three-state backend lifecycle.
type Availability string

const (
	Unknown Availability = "unknown"
	Up      Availability = "up"
	Down    Availability = "down"
)

// consecutiveFailuresDownThreshold is the failure count at which an
// adapter is demoted to Down.
const consecutiveFailuresDownThreshold = 3

// State is a snapshot of one adapter's health.
type State struct {
	Available           Availability
	LastProbeTime       time.Time
	ConsecutiveFailures int
}

// Tracker holds health state for every configured backend kind.
type Tracker struct {
	mu    sync.Mutex
	state map[string]State
}

// NewTracker returns a Tracker with every kind starting Unknown.
func NewTracker(kinds []string) *Tracker {
	t := &Tracker{state: make(map[string]State, len(kinds))}
	for _, k := range kinds {
		t.state[k] = State{Available: Unknown}
	}
	return t
}

// Get returns a copy of the current state for kind.
func (t *Tracker) Get(kind string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state[kind]
}

// RecordSuccess transitions kind to Up and resets its failure count.
func (t *Tracker) RecordSuccess(kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state[kind] = State{Available: Up, LastProbeTime: time.Now()}
}

// RecordFailure increments kind's consecutive failure count, demoting
// it to Down once the threshold is reached.
func (t *Tracker) RecordFailure(kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state[kind]
	s.ConsecutiveFailures++
	s.LastProbeTime = time.Now()
	if s.ConsecutiveFailures >= consecutiveFailuresDownThreshold {
		s.Available = Down
	}
	t.state[kind] = s
}

// RecordProbe restores a Down backend to Up after a successful
// out-of-band health probe, without requiring a synthesis attempt.
func (t *Tracker) RecordProbe(kind string, up bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state[kind]
	s.LastProbeTime = time.Now()
	if up {
		s.Available = Up
		s.ConsecutiveFailures = 0
	} else {
		s.Available = Down
	}
	t.state[kind] = s
}

// Snapshot returns every tracked kind's state, for GET /v1/backends.
func (t *Tracker) Snapshot() map[string]State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]State, len(t.state))
	for k, v := range t.state {
		out[k] = v
	}
	return out
}
