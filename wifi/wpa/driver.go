package wpa

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
	"github.com/the-lightning-land/provd/wifi"
)

// check Driver compliance to its interface during compile time
var _ wifi.Driver = (*Driver)(nil)

const (
	defaultAddressTimeout = 30 * time.Second
	addressPollInterval   = 250 * time.Millisecond
)

type DriverConfig struct {
	// Interface is the client interface, e.g. wlan0.
	Interface string
	// ApInterface is the hotspot interface, e.g. uap0. It has to
	// exist already, wpa_supplicant only takes control of it.
	ApInterface string
	// AddressTimeout bounds the wait for DHCP after association.
	AddressTimeout time.Duration
	Logger         Logger
}

// Driver runs the client and the hotspot through wpa_supplicant.
type Driver struct {
	log            Logger
	wpa            *Wpa
	ifname         string
	apIfname       string
	addressTimeout time.Duration
	done           chan struct{}
	wg             sync.WaitGroup

	mtx     sync.Mutex
	events  chan<- wifi.DriverEvent
	iface   *Interface
	apIface *Interface
	props   *PropertiesClient
	state   string
	gen     uint64

	// attempting is set while a requested association has no outcome yet
	attempting bool
	// teardown swallows the drop caused by replacing an association
	teardown bool
}

func NewDriver(config *DriverConfig) *Driver {
	d := &Driver{
		ifname:         config.Interface,
		apIfname:       config.ApInterface,
		addressTimeout: config.AddressTimeout,
		done:           make(chan struct{}),
	}

	if config.Logger != nil {
		d.log = config.Logger
	} else {
		d.log = noopLogger{}
	}

	if d.addressTimeout <= 0 {
		d.addressTimeout = defaultAddressTimeout
	}

	d.wpa = New(d.log)

	return d
}

func (d *Driver) Init(events chan<- wifi.DriverEvent) error {
	err := d.wpa.Start()
	if err != nil {
		return errors.Errorf("could not start wpa: %v", err)
	}

	iface, err := d.wpa.GetOrCreateInterface(d.ifname)
	if err != nil {
		_ = d.wpa.Stop()
		return errors.Errorf("could not find interface %v: %v", d.ifname, err)
	}

	props, err := iface.PropertiesChanged()
	if err != nil {
		_ = d.wpa.Stop()
		return errors.Errorf("could not listen to %v state changes: %v", d.ifname, err)
	}

	state, err := iface.State()
	if err != nil {
		d.log.Warnf("Could not read initial state of %v: %v", d.ifname, err)
	}

	d.mtx.Lock()
	d.events = events
	d.iface = iface
	d.props = props
	d.state = state
	d.mtx.Unlock()

	d.log.Infof("Controlling %v through wpa_supplicant, state %v", d.ifname, state)

	d.wg.Add(1)
	go d.watch(props)

	if state == "completed" {
		d.startAddressWait()
	}

	return nil
}

func (d *Driver) EnableAccessPoint(config wifi.AccessPointConfig) error {
	apIface, err := d.wpa.GetOrCreateInterface(d.apIfname)
	if err != nil {
		return errors.Errorf("could not take access point interface %v: %v", d.apIfname, err)
	}

	err = apIface.RemoveAllNetworks()
	if err != nil {
		return err
	}

	network, err := apIface.AddNetwork(AccessPointNetwork(config.SSID, config.Passphrase, config.Channel))
	if err != nil {
		return err
	}

	err = apIface.SelectNetwork(network)
	if err != nil {
		return err
	}

	err = setInterfaceAddress(d.apIfname, config.Address, config.Netmask)
	if err != nil {
		return err
	}

	d.mtx.Lock()
	d.apIface = apIface
	d.mtx.Unlock()

	return nil
}

func (d *Driver) DisableAccessPoint() error {
	d.mtx.Lock()
	apIface := d.apIface
	d.apIface = nil
	d.mtx.Unlock()

	if apIface == nil {
		return nil
	}

	err := apIface.RemoveAllNetworks()
	if err != nil {
		d.log.Warnf("Could not remove access point network: %v", err)
	}

	return d.wpa.RemoveInterface(apIface)
}

func (d *Driver) Connect(ssid string, secret string) error {
	iface := d.station()

	// removing the networks drops a current association
	d.arm(true)

	err := iface.RemoveAllNetworks()
	if err != nil {
		return err
	}

	network, err := iface.AddNetwork(StationNetwork(ssid, secret))
	if err != nil {
		return err
	}

	d.log.Debugf("Added network %v for %v", network, ssid)

	return iface.SelectNetwork(network)
}

func (d *Driver) Reconnect() error {
	d.arm(false)

	return d.station().Reconnect()
}

func (d *Driver) Disconnect() error {
	d.disarm()

	return d.station().Disconnect()
}

// arm marks a new association attempt. With replace set, the drop of an
// active association that follows is not reported.
func (d *Driver) arm(replace bool) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.attempting = true
	d.teardown = replace && isActive(d.state)
}

func (d *Driver) disarm() {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.attempting = false
	d.teardown = false
}

func (d *Driver) Scan(ctx context.Context) ([]wifi.AccessPointRecord, error) {
	iface := d.station()

	doneClient, err := iface.ScanDone()
	if err != nil {
		return nil, errors.Errorf("unable to listen to scan completion: %v", err)
	}
	defer doneClient.Cancel()

	err = iface.Scan()
	if err != nil {
		return nil, errors.Errorf("unable to scan: %v", err)
	}

	select {
	case success, ok := <-doneClient.ScanDone:
		if !ok {
			return nil, errors.New("scan listener closed")
		}
		if !success {
			return nil, errors.New("wpa_supplicant reported a failed scan")
		}
	case <-ctx.Done():
		return nil, errors.Errorf("scan did not finish: %v", ctx.Err())
	}

	bsss, err := iface.BSSs()
	if err != nil {
		return nil, errors.Errorf("unable to get BSSs: %v", err)
	}

	records := []wifi.AccessPointRecord{}

	for _, bss := range bsss {
		b, err := bss.GetAll()
		if err != nil {
			d.log.Debugf("Skipping BSS %v: %v", bss, err)
			continue
		}

		// hidden networks can not be picked from a list
		if b.Ssid == "" {
			continue
		}

		records = append(records, wifi.AccessPointRecord{
			SSID:      b.Ssid,
			RSSI:      int(b.Signal),
			Encrypted: b.Privacy,
		})
	}

	return records, nil
}

func (d *Driver) Address() (netip.Addr, bool) {
	return interfaceAddress(d.ifname)
}

func (d *Driver) Close() error {
	close(d.done)

	d.mtx.Lock()
	props := d.props
	d.mtx.Unlock()

	if props != nil {
		props.Cancel()
	}

	d.wg.Wait()

	err := d.wpa.Stop()
	if err != nil {
		return errors.Errorf("could not stop wpa: %v", err)
	}

	return nil
}

func (d *Driver) station() *Interface {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.iface
}

func (d *Driver) watch(props *PropertiesClient) {
	defer d.wg.Done()

	for changes := range props.Changes {
		v, ok := changes["State"]
		if !ok {
			continue
		}

		state, ok := v.Value().(string)
		if !ok {
			continue
		}

		d.handleState(state, disconnectReason(changes))
	}
}

func (d *Driver) handleState(state string, reason string) {
	d.mtx.Lock()
	prev := d.state
	if state == prev {
		d.mtx.Unlock()
		return
	}

	d.state = state
	d.gen++

	dropped := false

	switch {
	case state == "completed":
		d.attempting = false
		d.teardown = false
	case isIdle(state):
		if d.teardown {
			d.teardown = false
		} else if isActive(prev) || d.attempting {
			// an attempt that never got past scanning fails here too
			d.attempting = false
			dropped = true
		}
	case !isActive(state):
		d.teardown = false
	}
	d.mtx.Unlock()

	d.log.Debugf("State of %v changed from %v to %v", d.ifname, prev, state)

	if state == "completed" {
		d.startAddressWait()
	}

	if dropped {
		d.emit(wifi.DriverEvent{Kind: wifi.DriverDisconnected, Reason: reason})
	}
}

// startAddressWait raises DriverGotAddress once DHCP assigned an
// address, unless the state moves on first.
func (d *Driver) startAddressWait() {
	d.mtx.Lock()
	gen := d.gen
	d.mtx.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(addressPollInterval)
		defer ticker.Stop()

		timeout := time.NewTimer(d.addressTimeout)
		defer timeout.Stop()

		for {
			d.mtx.Lock()
			current := d.gen
			d.mtx.Unlock()

			if current != gen {
				return
			}

			if addr, ok := interfaceAddress(d.ifname); ok {
				d.emit(wifi.DriverEvent{Kind: wifi.DriverGotAddress, Addr: addr})
				return
			}

			select {
			case <-ticker.C:
			case <-timeout.C:
				d.emit(wifi.DriverEvent{Kind: wifi.DriverDisconnected, Reason: "no address assigned"})
				return
			case <-d.done:
				return
			}
		}
	}()
}

func (d *Driver) emit(ev wifi.DriverEvent) {
	d.mtx.Lock()
	events := d.events
	d.mtx.Unlock()

	select {
	case events <- ev:
	case <-d.done:
	}
}

func isIdle(state string) bool {
	return state == "disconnected" || state == "inactive"
}

func isActive(state string) bool {
	switch state {
	case "authenticating", "associating", "associated", "4way_handshake", "group_handshake", "completed":
		return true
	default:
		return false
	}
}

func disconnectReason(changes map[string]dbus.Variant) string {
	v, ok := changes["DisconnectReason"]
	if !ok {
		return "unknown"
	}

	code, ok := v.Value().(int32)
	if !ok {
		return "unknown"
	}

	return ieeeReason(code)
}
