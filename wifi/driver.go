package wifi

import (
	"context"
	"net/netip"
)

// DriverEventKind tells what happened on the radio.
type DriverEventKind int

const (
	// DriverGotAddress means the client interface holds an address.
	DriverGotAddress DriverEventKind = iota
	// DriverDisconnected means a connection attempt or link went down.
	DriverDisconnected
)

func (k DriverEventKind) String() string {
	switch k {
	case DriverGotAddress:
		return "GOT_ADDRESS"
	case DriverDisconnected:
		return "DISCONNECTED"
	default:
		return "INVALID DRIVER EVENT"
	}
}

// DriverEvent is raised by a driver on its own goroutine.
type DriverEvent struct {
	Kind   DriverEventKind
	Addr   netip.Addr
	Reason string
}

// Driver controls the radio. Calls other than Scan are bounded in time.
// Events are delivered on the channel passed to Init; a driver must not
// close it.
type Driver interface {
	Init(events chan<- DriverEvent) error
	EnableAccessPoint(config AccessPointConfig) error
	DisableAccessPoint() error
	Connect(ssid string, secret string) error
	Reconnect() error
	Disconnect() error
	Scan(ctx context.Context) ([]AccessPointRecord, error)
	Address() (netip.Addr, bool)
	Close() error
}
