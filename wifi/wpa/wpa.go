// Package wpa talks to wpa_supplicant over the system D-Bus.
package wpa

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

const (
	service       = "fi.w1.wpa_supplicant1"
	rootPath      = dbus.ObjectPath("/fi/w1/wpa_supplicant1")
	interfaceName = "fi.w1.wpa_supplicant1.Interface"

	// signals queued per subscriber before new ones are dropped
	signalBacklog = 32
)

type Wpa struct {
	log  Logger
	conn *dbus.Conn
	obj  dbus.BusObject

	mtx           sync.Mutex
	subscriptions map[uint32]*subscription
	nextId        uint32
}

type subscription struct {
	path    dbus.ObjectPath
	name    string
	signals chan *dbus.Signal
}

func New(logger Logger) *Wpa {
	w := &Wpa{
		subscriptions: make(map[uint32]*subscription),
	}

	if logger != nil {
		w.log = logger
	} else {
		w.log = noopLogger{}
	}

	return w
}

func (w *Wpa) Start() error {
	conn, err := dbus.ConnectSystemBus(dbus.WithSignalHandler(&wpaSignalHandler{w}))
	if err != nil {
		return errors.Errorf("could not connect to system bus: %v", err)
	}

	w.conn = conn
	w.obj = conn.Object(service, rootPath)

	return nil
}

func (w *Wpa) Stop() error {
	if w.conn == nil {
		return nil
	}

	err := w.conn.Close()
	if err != nil {
		return errors.Errorf("could not close system bus connection: %v", err)
	}

	return nil
}

// GetInterface returns an interface wpa_supplicant already controls.
func (w *Wpa) GetInterface(ifname string) (*Interface, error) {
	call := w.obj.Call(service+".GetInterface", 0, ifname)
	if call.Err != nil {
		return nil, errors.Errorf("could not get interface %v: %v", ifname, call.Err)
	}

	var objPath dbus.ObjectPath
	err := call.Store(&objPath)
	if err != nil {
		return nil, errors.Errorf("could not store value: %v", err)
	}

	return w.newInterface(objPath), nil
}

// CreateInterface makes wpa_supplicant take control of ifname.
func (w *Wpa) CreateInterface(ifname string) (*Interface, error) {
	call := w.obj.Call(service+".CreateInterface", 0, map[string]interface{}{
		"Ifname": ifname,
	})
	if call.Err != nil {
		return nil, errors.Errorf("could not create interface %v: %v", ifname, call.Err)
	}

	var objPath dbus.ObjectPath
	err := call.Store(&objPath)
	if err != nil {
		return nil, errors.Errorf("could not store value: %v", err)
	}

	return w.newInterface(objPath), nil
}

// GetOrCreateInterface returns the controlled interface, creating it first
// when wpa_supplicant does not know it yet.
func (w *Wpa) GetOrCreateInterface(ifname string) (*Interface, error) {
	iface, err := w.GetInterface(ifname)
	if err == nil {
		return iface, nil
	}

	w.log.Debugf("Interface %v unknown to wpa_supplicant, creating it: %v", ifname, err)

	return w.CreateInterface(ifname)
}

func (w *Wpa) RemoveInterface(iface *Interface) error {
	call := w.obj.Call(service+".RemoveInterface", 0, iface.obj.Path())
	if call.Err != nil {
		return errors.Errorf("could not remove interface %v: %v", iface, call.Err)
	}

	return nil
}

func (w *Wpa) newInterface(path dbus.ObjectPath) *Interface {
	return &Interface{
		wpa: w,
		obj: w.conn.Object(service, path),
	}
}

// SignalClient delivers the signals of one member on one object path.
type SignalClient struct {
	Signals <-chan *dbus.Signal
	Cancel  func()
}

func (w *Wpa) subscribe(path dbus.ObjectPath, iface string, member string) (*SignalClient, error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(member),
		dbus.WithMatchObjectPath(path),
	}

	err := w.conn.AddMatchSignal(opts...)
	if err != nil {
		return nil, errors.Errorf("could not add signal %v: %v", member, err)
	}

	sub := &subscription{
		path:    path,
		name:    iface + "." + member,
		signals: make(chan *dbus.Signal, signalBacklog),
	}

	w.mtx.Lock()
	id := w.nextId
	w.nextId++
	w.subscriptions[id] = sub
	w.mtx.Unlock()

	var once sync.Once

	return &SignalClient{
		Signals: sub.signals,
		Cancel: func() {
			once.Do(func() {
				_ = w.conn.RemoveMatchSignal(opts...)

				w.mtx.Lock()
				delete(w.subscriptions, id)
				w.mtx.Unlock()

				close(sub.signals)
			})
		},
	}, nil
}

// deliverSignal runs on the bus reader and must not block.
func (w *Wpa) deliverSignal(signal *dbus.Signal) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	for _, sub := range w.subscriptions {
		if sub.name != signal.Name || sub.path != signal.Path {
			continue
		}

		select {
		case sub.signals <- signal:
		default:
			w.log.Warnf("Dropping signal %v on %v", signal.Name, signal.Path)
		}
	}
}
