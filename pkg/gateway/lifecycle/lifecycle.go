// Package lifecycle tracks the gateway's serving state during shutdown.
// Readiness probes and the live upgrade consult it so load balancers stop
// routing new interviews here once draining has begun.
package lifecycle

import (
	"sync"
	"time"
)

// State is shared by the readiness and live handlers. The zero value is
// serving; a nil *State behaves as serving forever.
type State struct {
	mu    sync.Mutex
	since time.Time
}

// BeginDrain marks the gateway as draining. The first call wins; repeated
// calls keep the original drain start time.
func (s *State) BeginDrain() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.since.IsZero() {
		s.since = time.Now()
	}
}

// Draining reports whether draining has begun.
func (s *State) Draining() bool {
	_, ok := s.DrainingSince()
	return ok
}

// DrainingSince returns when draining began; ok is false while serving.
func (s *State) DrainingSince() (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.since, !s.since.IsZero()
}
