package machine

import (
	"sync"
)

// check MockMachine compliance to its interface during compile time
var _ Machine = (*MockMachine)(nil)

// MockMachine stands in for the hardware on development machines.
type MockMachine struct {
	log     Logger
	presses chan struct{}

	mtx sync.Mutex
	led bool
}

func NewMockMachine(logger Logger) *MockMachine {
	m := &MockMachine{
		presses: make(chan struct{}, 1),
	}

	if logger != nil {
		m.log = logger
	} else {
		m.log = noopLogger{}
	}

	return m
}

func (m *MockMachine) Start() error {
	m.log.Infof("Started mock machine")
	return nil
}

func (m *MockMachine) Stop() error {
	m.log.Infof("Stopped mock machine")
	return nil
}

func (m *MockMachine) ButtonPresses() <-chan struct{} {
	return m.presses
}

func (m *MockMachine) ToggleLed(on bool) {
	m.mtx.Lock()
	m.led = on
	m.mtx.Unlock()

	m.log.Debugf("Led %v", on)
}

// Press simulates a button press.
func (m *MockMachine) Press() {
	select {
	case m.presses <- struct{}{}:
	default:
	}
}

func (m *MockMachine) Led() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.led
}
