package provision

import (
	"sync"
)

type event uint8

const (
	credentialsSubmitted event = 1 << iota
	connectFailed
	connectSucceeded
)

// eventSet coalesces raised events until the coordinator takes them,
// like the bits of an event group. Raising never blocks.
type eventSet struct {
	mtx         sync.Mutex
	pending     event
	credentials Credentials
	notify      chan struct{}
}

func newEventSet() *eventSet {
	return &eventSet{
		notify: make(chan struct{}, 1),
	}
}

func (s *eventSet) raise(ev event) {
	s.mtx.Lock()
	s.pending |= ev
	s.mtx.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// submit hands over a copy of credentials and raises credentialsSubmitted.
// A newer submission overwrites one not taken yet.
func (s *eventSet) submit(credentials Credentials) {
	s.mtx.Lock()
	s.credentials = credentials
	s.mtx.Unlock()

	s.raise(credentialsSubmitted)
}

// take clears and returns all pending events.
func (s *eventSet) take() (event, Credentials) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	pending := s.pending
	s.pending = 0

	return pending, s.credentials
}

func (s *eventSet) ready() <-chan struct{} {
	return s.notify
}
