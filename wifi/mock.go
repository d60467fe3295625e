package wifi

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/go-errors/errors"
)

// check MockDriver compliance to its interface during compile time
var _ Driver = (*MockDriver)(nil)

type MockDriverConfig struct {
	// Networks are returned by every scan, in order.
	Networks []AccessPointRecord
	// Secrets maps known networks to their passphrase. A nil map
	// accepts any secret for a network listed in Networks.
	Secrets map[string]string
	// Address is handed out on a successful connection.
	Address netip.Addr
	// Delay before a connection outcome is raised.
	Delay time.Duration
	// Manual disables automatic outcomes; use Emit instead.
	Manual bool
}

// MockCalls counts the driver calls made so far.
type MockCalls struct {
	Init               int
	EnableAccessPoint  int
	DisableAccessPoint int
	Connect            int
	Reconnect          int
	Disconnect         int
	Scan               int
}

// MockDriver is an in-memory radio for development machines and tests.
type MockDriver struct {
	config    MockDriverConfig
	done      chan struct{}
	closeOnce sync.Once

	mtx         sync.Mutex
	events      chan<- DriverEvent
	calls       MockCalls
	apEnabled   bool
	apConfig    AccessPointConfig
	ssid        string
	secret      string
	connected   bool
	scanBlocker chan struct{}

	InitErr    error
	ScanErr    error
	ConnectErr error
}

func NewMockDriver(config *MockDriverConfig) *MockDriver {
	return &MockDriver{
		config: *config,
		done:   make(chan struct{}),
	}
}

func (d *MockDriver) Init(events chan<- DriverEvent) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.calls.Init++

	if d.InitErr != nil {
		return d.InitErr
	}

	d.events = events

	return nil
}

func (d *MockDriver) EnableAccessPoint(config AccessPointConfig) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.calls.EnableAccessPoint++
	d.apEnabled = true
	d.apConfig = config

	return nil
}

func (d *MockDriver) DisableAccessPoint() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.calls.DisableAccessPoint++
	d.apEnabled = false

	return nil
}

func (d *MockDriver) Connect(ssid string, secret string) error {
	d.mtx.Lock()
	d.calls.Connect++
	d.ssid = ssid
	d.secret = secret
	d.connected = false
	err := d.ConnectErr
	d.mtx.Unlock()

	if err != nil {
		return err
	}

	d.attempt()

	return nil
}

func (d *MockDriver) Reconnect() error {
	d.mtx.Lock()
	d.calls.Reconnect++
	d.mtx.Unlock()

	d.attempt()

	return nil
}

func (d *MockDriver) Disconnect() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.calls.Disconnect++
	d.connected = false

	return nil
}

// BlockScans makes scans wait until the returned function is called.
func (d *MockDriver) BlockScans() (release func()) {
	blocker := make(chan struct{})

	d.mtx.Lock()
	d.scanBlocker = blocker
	d.mtx.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() { close(blocker) })
	}
}

func (d *MockDriver) Scan(ctx context.Context) ([]AccessPointRecord, error) {
	d.mtx.Lock()
	d.calls.Scan++
	blocker := d.scanBlocker
	err := d.ScanErr
	d.mtx.Unlock()

	if blocker != nil {
		select {
		case <-blocker:
		case <-ctx.Done():
			return nil, errors.Errorf("scan timed out: %v", ctx.Err())
		}
	}

	if err != nil {
		return nil, err
	}

	records := make([]AccessPointRecord, len(d.config.Networks))
	copy(records, d.config.Networks)

	return records, nil
}

func (d *MockDriver) Address() (netip.Addr, bool) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if !d.connected {
		return netip.Addr{}, false
	}

	return d.config.Address, true
}

func (d *MockDriver) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
	})

	return nil
}

// Emit raises a driver event as if the radio produced it. Events after
// Close are dropped.
func (d *MockDriver) Emit(ev DriverEvent) {
	d.mtx.Lock()
	events := d.events
	if ev.Kind == DriverGotAddress {
		d.connected = true
	} else if ev.Kind == DriverDisconnected {
		d.connected = false
	}
	d.mtx.Unlock()

	if events == nil {
		return
	}

	select {
	case events <- ev:
	case <-d.done:
	}
}

func (d *MockDriver) Calls() MockCalls {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.calls
}

// AccessPoint reports whether the hotspot is up and its last plan.
func (d *MockDriver) AccessPoint() (bool, AccessPointConfig) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.apEnabled, d.apConfig
}

func (d *MockDriver) attempt() {
	if d.config.Manual {
		return
	}

	d.mtx.Lock()
	ssid, secret := d.ssid, d.secret
	d.mtx.Unlock()

	ok := d.accepts(ssid, secret)

	go func() {
		select {
		case <-time.After(d.config.Delay):
		case <-d.done:
			return
		}

		if ok {
			d.Emit(DriverEvent{Kind: DriverGotAddress, Addr: d.config.Address})
		} else {
			d.Emit(DriverEvent{Kind: DriverDisconnected, Reason: "authentication failed"})
		}
	}()
}

func (d *MockDriver) accepts(ssid string, secret string) bool {
	if d.config.Secrets != nil {
		psk, ok := d.config.Secrets[ssid]
		return ok && psk == secret
	}

	for _, network := range d.config.Networks {
		if network.SSID == ssid {
			return true
		}
	}

	return false
}
