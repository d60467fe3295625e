package wpa

import (
	"github.com/godbus/dbus/v5"
)

// wpa_supplicant network modes
const (
	modeInfrastructure = int32(0)
	modeAccessPoint    = int32(2)
)

type Network struct {
	wpa *Wpa
	obj dbus.BusObject
}

func (n *Network) String() string {
	return string(n.obj.Path())
}

// NetworkArgs is the property set handed to AddNetwork.
type NetworkArgs map[string]interface{}

// StationNetwork describes an upstream network to join. An empty psk
// joins an open network.
func StationNetwork(ssid string, psk string) NetworkArgs {
	args := NetworkArgs{
		"ssid": ssid,
		"mode": modeInfrastructure,
	}

	if psk != "" {
		args["psk"] = psk
	} else {
		args["key_mgmt"] = "NONE"
	}

	return args
}

// AccessPointNetwork describes a WPA2 hotspot on a 2.4 GHz channel. An
// empty passphrase makes it open.
func AccessPointNetwork(ssid string, passphrase string, channel int) NetworkArgs {
	args := NetworkArgs{
		"ssid":      ssid,
		"mode":      modeAccessPoint,
		"frequency": channelFrequency(channel),
	}

	if passphrase != "" {
		args["key_mgmt"] = "WPA-PSK"
		args["proto"] = "RSN"
		args["pairwise"] = "CCMP"
		args["group"] = "CCMP"
		args["psk"] = passphrase
	} else {
		args["key_mgmt"] = "NONE"
	}

	return args
}

// channelFrequency maps a 2.4 GHz channel to its center frequency in MHz.
func channelFrequency(channel int) int32 {
	if channel == 14 {
		return 2484
	}

	return int32(2407 + 5*channel)
}
