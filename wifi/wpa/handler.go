package wpa

import "github.com/godbus/dbus/v5"

// wpaSignalHandler routes every signal of the bus connection into the
// subscriptions of its Wpa.
type wpaSignalHandler struct {
	*Wpa
}

var _ dbus.SignalHandler = (*wpaSignalHandler)(nil)

func (n *wpaSignalHandler) DeliverSignal(iface, name string, signal *dbus.Signal) {
	n.deliverSignal(signal)
}
