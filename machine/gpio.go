package machine

import (
	"sync"
	"time"

	"github.com/go-errors/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// check GpioMachine compliance to its interface during compile time
var _ Machine = (*GpioMachine)(nil)

const (
	defaultDebounce = 200 * time.Millisecond
	edgeTimeout     = 250 * time.Millisecond
)

type GpioMachineConfig struct {
	// ButtonPin is pulled up, a press pulls it low.
	ButtonPin string
	LedPin    string
	Debounce  time.Duration
	Logger    Logger
}

type GpioMachine struct {
	log       Logger
	buttonPin string
	ledPin    string
	debounce  time.Duration
	button    gpio.PinIO
	led       gpio.PinIO
	presses   chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewGpioMachine(config *GpioMachineConfig) *GpioMachine {
	m := &GpioMachine{
		buttonPin: config.ButtonPin,
		ledPin:    config.LedPin,
		debounce:  config.Debounce,
		presses:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	if config.Logger != nil {
		m.log = config.Logger
	} else {
		m.log = noopLogger{}
	}

	if m.debounce <= 0 {
		m.debounce = defaultDebounce
	}

	return m
}

func (m *GpioMachine) Start() error {
	_, err := host.Init()
	if err != nil {
		return errors.Errorf("could not initialize periph: %v", err)
	}

	m.button = gpioreg.ByName(m.buttonPin)
	if m.button == nil {
		return errors.Errorf("could not find button pin %v", m.buttonPin)
	}

	err = m.button.In(gpio.PullUp, gpio.FallingEdge)
	if err != nil {
		return errors.Errorf("could not set up button pin %v: %v", m.buttonPin, err)
	}

	if m.ledPin != "" {
		m.led = gpioreg.ByName(m.ledPin)
		if m.led == nil {
			return errors.Errorf("could not find led pin %v", m.ledPin)
		}

		err = m.led.Out(gpio.Low)
		if err != nil {
			return errors.Errorf("could not set up led pin %v: %v", m.ledPin, err)
		}
	}

	m.wg.Add(1)
	go m.watchButton()

	m.log.Infof("Watching button on %v", m.button)

	return nil
}

func (m *GpioMachine) Stop() error {
	close(m.done)
	m.wg.Wait()

	if m.led != nil {
		err := m.led.Out(gpio.Low)
		if err != nil {
			return errors.Errorf("could not turn off led: %v", err)
		}
	}

	if m.button != nil {
		err := m.button.Halt()
		if err != nil {
			return errors.Errorf("could not halt button pin: %v", err)
		}
	}

	return nil
}

func (m *GpioMachine) ButtonPresses() <-chan struct{} {
	return m.presses
}

func (m *GpioMachine) ToggleLed(on bool) {
	if m.led == nil {
		return
	}

	level := gpio.Low
	if on {
		level = gpio.High
	}

	err := m.led.Out(level)
	if err != nil {
		m.log.Warnf("Could not toggle led: %v", err)
	}
}

func (m *GpioMachine) watchButton() {
	defer m.wg.Done()

	var last time.Time

	for {
		select {
		case <-m.done:
			return
		default:
		}

		if !m.button.WaitForEdge(edgeTimeout) {
			continue
		}

		if time.Since(last) < m.debounce {
			continue
		}

		last = time.Now()

		m.log.Debugf("Button pressed")

		select {
		case m.presses <- struct{}{}:
		default:
		}
	}
}
