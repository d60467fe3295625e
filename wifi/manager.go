package wifi

import (
	"context"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-errors/errors"
)

const (
	defaultScanTimeout = 15 * time.Second
	eventBacklog       = 16
)

type Config struct {
	Driver      Driver
	AccessPoint AccessPointConfig
	MaxRetry    int
	ScanTimeout time.Duration
	Logger      Logger
}

// Manager owns the radio mode and the client connection lifecycle.
type Manager struct {
	log         Logger
	driver      Driver
	ap          AccessPointConfig
	scanTimeout time.Duration
	scanning    chan struct{}
	events      chan DriverEvent
	done        chan struct{}
	wg          sync.WaitGroup

	// serializes mode switches
	modeMtx sync.Mutex

	mtx         sync.Mutex
	sink        EventSink
	initialized bool
	state       State
	mode        Mode
	retries     int
	retryLimit  int
	connected   bool
}

func NewManager(config *Config) *Manager {
	m := &Manager{
		driver:      config.Driver,
		ap:          config.AccessPoint,
		scanTimeout: config.ScanTimeout,
		scanning:    make(chan struct{}, 1),
		events:      make(chan DriverEvent, eventBacklog),
		done:        make(chan struct{}),
		state:       Idle,
		mode:        ModeStation,
		retryLimit:  config.MaxRetry,
	}

	if config.Logger != nil {
		m.log = config.Logger
	} else {
		m.log = noopLogger{}
	}

	if m.scanTimeout <= 0 {
		m.scanTimeout = defaultScanTimeout
	}

	return m
}

// Initialize registers with the radio driver and starts delivering link
// events to sink. A failure here leaves the radio unusable.
func (m *Manager) Initialize(sink EventSink) error {
	m.mtx.Lock()
	if m.initialized {
		m.mtx.Unlock()
		return errors.New("link manager already initialized")
	}
	m.sink = sink
	m.initialized = true
	m.mtx.Unlock()

	err := m.driver.Init(m.events)
	if err != nil {
		return errors.Errorf("could not initialize radio driver: %v", err)
	}

	m.wg.Add(1)
	go m.run()

	m.log.Infof("Initialized link manager in %v mode with retry limit %d", ModeStation, m.retryLimit)

	return nil
}

// Close stops event delivery and releases the driver.
func (m *Manager) Close() error {
	close(m.done)
	m.wg.Wait()

	err := m.driver.Close()
	if err != nil {
		return errors.Errorf("could not close radio driver: %v", err)
	}

	return nil
}

// StartAccessPoint switches to access point + client mode. It does
// nothing when that mode is already active.
func (m *Manager) StartAccessPoint() error {
	m.modeMtx.Lock()
	defer m.modeMtx.Unlock()

	m.mtx.Lock()
	mode := m.mode
	m.mtx.Unlock()

	if mode == ModeAccessPointStation {
		return nil
	}

	err := m.driver.EnableAccessPoint(m.ap)
	if err != nil {
		return errors.Errorf("could not enable access point %v: %v", m.ap.SSID, err)
	}

	m.mtx.Lock()
	m.mode = ModeAccessPointStation
	if m.state == Idle {
		m.state = AccessPointActive
	}
	m.mtx.Unlock()

	m.log.Infof("Access point %v up on %v", m.ap.SSID, m.ap.Address)

	return nil
}

// StopAccessPoint switches to client only mode.
func (m *Manager) StopAccessPoint() error {
	m.modeMtx.Lock()
	defer m.modeMtx.Unlock()

	m.mtx.Lock()
	mode := m.mode
	m.mtx.Unlock()

	if mode == ModeStation {
		return nil
	}

	err := m.driver.DisableAccessPoint()
	if err != nil {
		return errors.Errorf("could not disable access point: %v", err)
	}

	m.mtx.Lock()
	m.mode = ModeStation
	if m.state == AccessPointActive {
		m.state = Idle
	}
	m.mtx.Unlock()

	m.log.Infof("Access point %v down", m.ap.SSID)

	return nil
}

// Connect starts a new connection cycle and returns right away. The
// outcome arrives later as EventConnected or EventConnectFailed.
func (m *Manager) Connect(ssid string, secret string) error {
	m.mtx.Lock()
	m.retries = 0
	m.state = ClientConnecting
	m.mtx.Unlock()

	m.log.Infof("Connecting to wifi %v with key %v", ssid, strings.Repeat("*", len(secret)))

	err := m.driver.Connect(ssid, secret)
	if err != nil {
		m.fail()
		return errors.Errorf("could not connect to %v: %v", ssid, err)
	}

	return nil
}

// Scan runs one scan in the background and reports to sink exactly
// once. It returns ErrBusy while another scan is outstanding.
func (m *Manager) Scan(sink ScanSink) error {
	select {
	case m.scanning <- struct{}{}:
	default:
		return ErrBusy
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() { <-m.scanning }()

		ctx, cancel := context.WithTimeout(context.Background(), m.scanTimeout)
		defer cancel()

		start := time.Now()

		records, err := m.driver.Scan(ctx)
		if err != nil {
			m.log.Warnf("Scan failed, reporting no networks: %v", err)
			records = nil
		}

		m.log.Debugf("Scan found %d networks in %v", len(records), time.Since(start))

		sink.HandleScanResult(records)
	}()

	return nil
}

// CurrentAddress returns the client address while connected.
func (m *Manager) CurrentAddress() (netip.Addr, bool) {
	m.mtx.Lock()
	connected := m.connected
	m.mtx.Unlock()

	if !connected {
		return netip.Addr{}, false
	}

	return m.driver.Address()
}

func (m *Manager) Snapshot() LinkState {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return LinkState{
		State:      m.state,
		Mode:       m.mode,
		Retries:    m.retries,
		RetryLimit: m.retryLimit,
		Connected:  m.connected,
	}
}

func (m *Manager) run() {
	defer m.wg.Done()

	for {
		select {
		case ev := <-m.events:
			m.handleDriverEvent(ev)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) handleDriverEvent(ev DriverEvent) {
	var emit []LinkEvent
	var reconnect, abort bool

	m.mtx.Lock()
	switch ev.Kind {
	case DriverGotAddress:
		m.retries = 0
		m.connected = true
		m.state = ClientConnected
		emit = append(emit, EventConnected)

		m.log.Infof("Got address %v", ev.Addr)
	case DriverDisconnected:
		if m.connected {
			m.connected = false
			emit = append(emit, EventDisconnected)
		}

		if m.state != ClientConnecting && m.state != ClientConnected {
			m.log.Debugf("Ignoring disconnect in state %v: %v", m.state, ev.Reason)
			break
		}

		m.retries++
		if m.retries < m.retryLimit {
			m.state = ClientConnecting
			reconnect = true

			m.log.Infof("Disconnected (%v), retrying %d/%d", ev.Reason, m.retries, m.retryLimit)
		} else {
			m.state = ClientFailed
			abort = true
			emit = append(emit, EventConnectFailed)

			m.log.Warnf("Disconnected (%v), giving up after %d attempts", ev.Reason, m.retries)
		}
	default:
		m.log.Warnf("Unknown driver event %v", ev.Kind)
	}
	sink := m.sink
	m.mtx.Unlock()

	if reconnect {
		err := m.driver.Reconnect()
		if err != nil {
			m.log.Errorf("Could not re-issue connection attempt: %v", err)
		}
	}

	if abort {
		err := m.driver.Disconnect()
		if err != nil {
			m.log.Warnf("Could not stop connection attempts: %v", err)
		}
	}

	for _, e := range emit {
		sink.HandleLinkEvent(e)
	}
}

// fail ends the current cycle when the driver rejected the attempt outright.
func (m *Manager) fail() {
	m.mtx.Lock()
	m.state = ClientFailed
	sink := m.sink
	m.mtx.Unlock()

	if sink != nil {
		sink.HandleLinkEvent(EventConnectFailed)
	}
}
