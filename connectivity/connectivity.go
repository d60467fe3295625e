package connectivity

import (
	"context"
	"sync"
)

type State int

const (
	Disconnected State = iota
	Connected
	ConnectFailed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connected:
		return "CONNECTED"
	case ConnectFailed:
		return "CONNECT_FAILED"
	default:
		return "INVALID STATE"
	}
}

// Observer is told about every link transition. HandleStateChange must
// not block.
type Observer interface {
	HandleStateChange(State)
}

type ObserverFunc func(State)

func (f ObserverFunc) HandleStateChange(state State) {
	f(state)
}

// Observers fans a transition out to all of its members in order.
type Observers []Observer

func (o Observers) HandleStateChange(state State) {
	for _, observer := range o {
		observer.HandleStateChange(state)
	}
}

type Reporter interface {
	CurrentState() State
	WaitForStateChange(context.Context, State) bool
}

// check Tracker compliance to its interfaces during compile time
var _ Observer = (*Tracker)(nil)
var _ Reporter = (*Tracker)(nil)

// Tracker remembers the latest state and wakes up waiters on changes.
type Tracker struct {
	mtx     sync.Mutex
	state   State
	changed chan struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		state:   Disconnected,
		changed: make(chan struct{}),
	}
}

func (t *Tracker) HandleStateChange(state State) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if t.state == state {
		return
	}

	t.state = state

	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *Tracker) CurrentState() State {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	return t.state
}

// WaitForStateChange blocks until the state differs from state. It
// returns false when ctx ends first.
func (t *Tracker) WaitForStateChange(ctx context.Context, state State) bool {
	for {
		t.mtx.Lock()
		current := t.state
		changed := t.changed
		t.mtx.Unlock()

		if current != state {
			return true
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}
