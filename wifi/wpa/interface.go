package wpa

import (
	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

type Interface struct {
	wpa *Wpa
	obj dbus.BusObject
}

func (i *Interface) String() string {
	return string(i.obj.Path())
}

func (i *Interface) Scan() error {
	call := i.obj.Call(interfaceName+".Scan", 0, map[string]interface{}{
		"Type": "active",
	})
	if call.Err != nil {
		return errors.Errorf("could not start scan: %v", call.Err)
	}

	return nil
}

type ScanDoneClient struct {
	ScanDone <-chan bool
	Cancel   func()
}

// ScanDone reports the success flag of every finished scan.
func (i *Interface) ScanDone() (*ScanDoneClient, error) {
	signals, err := i.wpa.subscribe(i.obj.Path(), interfaceName, "ScanDone")
	if err != nil {
		return nil, err
	}

	doneChan := make(chan bool, 1)

	go func() {
		defer close(doneChan)

		for signal := range signals.Signals {
			if len(signal.Body) == 0 {
				continue
			}

			success, ok := signal.Body[0].(bool)
			if !ok {
				continue
			}

			select {
			case doneChan <- success:
			default:
			}
		}
	}()

	return &ScanDoneClient{
		ScanDone: doneChan,
		Cancel:   signals.Cancel,
	}, nil
}

type PropertiesClient struct {
	Changes <-chan map[string]dbus.Variant
	Cancel  func()
}

// PropertiesChanged delivers every changed property set of the interface.
func (i *Interface) PropertiesChanged() (*PropertiesClient, error) {
	signals, err := i.wpa.subscribe(i.obj.Path(), interfaceName, "PropertiesChanged")
	if err != nil {
		return nil, err
	}

	changeChan := make(chan map[string]dbus.Variant, signalBacklog)

	go func() {
		defer close(changeChan)

		for signal := range signals.Signals {
			if len(signal.Body) == 0 {
				continue
			}

			props, ok := signal.Body[0].(map[string]dbus.Variant)
			if !ok {
				continue
			}

			changeChan <- props
		}
	}()

	return &PropertiesClient{
		Changes: changeChan,
		Cancel:  signals.Cancel,
	}, nil
}

// State is the wpa_supplicant state machine state, e.g. "completed".
func (i *Interface) State() (string, error) {
	v, err := i.obj.GetProperty(interfaceName + ".State")
	if err != nil {
		return "", errors.Errorf("could not get state: %v", err)
	}

	state, ok := v.Value().(string)
	if !ok {
		return "", errors.Errorf("could not convert state: %v", v)
	}

	return state, nil
}

func (i *Interface) BSSs() ([]*BSS, error) {
	v, err := i.obj.GetProperty(interfaceName + ".BSSs")
	if err != nil {
		return nil, errors.Errorf("could not get bsss: %v", err)
	}

	objectPaths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, errors.Errorf("could not convert result: %v", v)
	}

	var bsss []*BSS

	for _, objectPath := range objectPaths {
		bsss = append(bsss, &BSS{
			obj: i.wpa.conn.Object(service, objectPath),
		})
	}

	return bsss, nil
}

func (i *Interface) AddNetwork(args NetworkArgs) (*Network, error) {
	call := i.obj.Call(interfaceName+".AddNetwork", 0, map[string]interface{}(args))
	if call.Err != nil {
		return nil, errors.Errorf("could not add network: %v", call.Err)
	}

	var objPath dbus.ObjectPath
	err := call.Store(&objPath)
	if err != nil {
		return nil, errors.Errorf("could not store value: %v", err)
	}

	return &Network{
		wpa: i.wpa,
		obj: i.wpa.conn.Object(service, objPath),
	}, nil
}

func (i *Interface) SelectNetwork(net *Network) error {
	call := i.obj.Call(interfaceName+".SelectNetwork", 0, net.obj.Path())
	if call.Err != nil {
		return errors.Errorf("could not select network %v: %v", net, call.Err)
	}

	return nil
}

func (i *Interface) RemoveNetwork(net *Network) error {
	call := i.obj.Call(interfaceName+".RemoveNetwork", 0, net.obj.Path())
	if call.Err != nil {
		return errors.Errorf("could not remove network: %v", call.Err)
	}

	return nil
}

func (i *Interface) RemoveAllNetworks() error {
	call := i.obj.Call(interfaceName+".RemoveAllNetworks", 0)
	if call.Err != nil {
		return errors.Errorf("could not remove all networks: %v", call.Err)
	}

	return nil
}

func (i *Interface) Disconnect() error {
	call := i.obj.Call(interfaceName+".Disconnect", 0)
	if call.Err != nil {
		return errors.Errorf("could not disconnect: %v", call.Err)
	}

	return nil
}

func (i *Interface) Reconnect() error {
	call := i.obj.Call(interfaceName+".Reconnect", 0)
	if call.Err != nil {
		return errors.Errorf("could not reconnect: %v", call.Err)
	}

	return nil
}
