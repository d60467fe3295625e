package wifi

import (
	"net/netip"

	"github.com/go-errors/errors"
)

// ErrBusy is returned by Scan while a previous scan is still outstanding.
var ErrBusy = errors.New("scan already in progress")

// State is the link state of the radio.
type State int

const (
	Idle State = iota
	AccessPointActive
	ClientConnecting
	ClientConnected
	ClientFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case AccessPointActive:
		return "ACCESS_POINT_ACTIVE"
	case ClientConnecting:
		return "CLIENT_CONNECTING"
	case ClientConnected:
		return "CLIENT_CONNECTED"
	case ClientFailed:
		return "CLIENT_FAILED"
	default:
		return "INVALID STATE"
	}
}

// Mode is the radio operating mode.
type Mode int

const (
	// ModeStation runs the radio as a client only.
	ModeStation Mode = iota
	// ModeAccessPointStation runs a hotspot next to the client.
	ModeAccessPointStation
)

func (m Mode) String() string {
	switch m {
	case ModeStation:
		return "STA"
	case ModeAccessPointStation:
		return "APSTA"
	default:
		return "INVALID MODE"
	}
}

// LinkState is a snapshot of the link manager's state.
type LinkState struct {
	State      State
	Mode       Mode
	Retries    int
	RetryLimit int
	Connected  bool
}

// AccessPointRecord is one network found by a scan.
type AccessPointRecord struct {
	SSID      string
	RSSI      int
	Encrypted bool
}

// AccessPointConfig is the fixed plan of the provisioning hotspot.
type AccessPointConfig struct {
	SSID       string
	Passphrase string
	Address    netip.Addr
	Netmask    netip.Addr
	Channel    int
	MaxClients int
}

// Validate checks the hotspot plan before it is handed to a driver.
func (c *AccessPointConfig) Validate() error {
	if c.SSID == "" || len(c.SSID) > 32 {
		return errors.Errorf("access point ssid must be 1 to 32 bytes, got %d", len(c.SSID))
	}

	if c.Passphrase != "" && (len(c.Passphrase) < 8 || len(c.Passphrase) > 63) {
		return errors.Errorf("access point passphrase must be 8 to 63 characters")
	}

	if !c.Address.Is4() {
		return errors.Errorf("access point address %v is not an IPv4 address", c.Address)
	}

	if !c.Netmask.Is4() {
		return errors.Errorf("access point netmask %v is not an IPv4 mask", c.Netmask)
	}

	if c.Channel < 1 || c.Channel > 14 {
		return errors.Errorf("access point channel %d out of range", c.Channel)
	}

	if c.MaxClients < 1 {
		return errors.Errorf("access point needs at least one client slot")
	}

	return nil
}

// LinkEvent is a link transition reported to the event sink.
type LinkEvent int

const (
	// EventConnected fires when the client obtained an address.
	EventConnected LinkEvent = iota
	// EventDisconnected fires when an established link was lost.
	EventDisconnected
	// EventConnectFailed fires once when the retry limit is exhausted.
	EventConnectFailed
)

func (e LinkEvent) String() string {
	switch e {
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventConnectFailed:
		return "CONNECT_FAILED"
	default:
		return "INVALID EVENT"
	}
}

// EventSink receives link events. HandleLinkEvent is called from the
// driver event goroutine and must not block.
type EventSink interface {
	HandleLinkEvent(LinkEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(LinkEvent)

func (f EventSinkFunc) HandleLinkEvent(ev LinkEvent) {
	f(ev)
}

// ScanSink receives the result of one scan, exactly once.
type ScanSink interface {
	HandleScanResult([]AccessPointRecord)
}

// ScanSinkFunc adapts a function to ScanSink.
type ScanSinkFunc func([]AccessPointRecord)

func (f ScanSinkFunc) HandleScanResult(records []AccessPointRecord) {
	f(records)
}
