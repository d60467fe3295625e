package wpa

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestParseBss(t *testing.T) {
	bss, err := parseBss(map[string]dbus.Variant{
		"SSID":    dbus.MakeVariant([]byte("Home")),
		"BSSID":   dbus.MakeVariant([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}),
		"Signal":  dbus.MakeVariant(int16(-45)),
		"Privacy": dbus.MakeVariant(true),
	})
	if err != nil {
		t.Fatalf("could not parse bss: %v", err)
	}

	if bss.Ssid != "Home" {
		t.Errorf("expected ssid Home, got %v", bss.Ssid)
	}

	if bss.Bssid != "deadbeef0001" {
		t.Errorf("expected bssid deadbeef0001, got %v", bss.Bssid)
	}

	if bss.Signal != -45 {
		t.Errorf("expected signal -45, got %v", bss.Signal)
	}

	if !bss.Privacy {
		t.Errorf("expected privacy")
	}
}

func TestParseBssMissingSsid(t *testing.T) {
	_, err := parseBss(map[string]dbus.Variant{
		"BSSID": dbus.MakeVariant([]byte{0x01}),
	})
	if err == nil {
		t.Fatalf("expected an error for a bss without ssid")
	}
}

func TestStationNetwork(t *testing.T) {
	args := StationNetwork("Home", "secret123")
	if args["psk"] != "secret123" {
		t.Errorf("expected psk to be set, got %v", args["psk"])
	}

	if _, ok := args["key_mgmt"]; ok {
		t.Errorf("expected no key_mgmt for a protected network")
	}

	open := StationNetwork("Cafe", "")
	if open["key_mgmt"] != "NONE" {
		t.Errorf("expected key_mgmt NONE for an open network, got %v", open["key_mgmt"])
	}

	if _, ok := open["psk"]; ok {
		t.Errorf("expected no psk for an open network")
	}
}

func TestAccessPointNetwork(t *testing.T) {
	args := AccessPointNetwork("provd", "12345678", 6)

	if args["mode"] != modeAccessPoint {
		t.Errorf("expected access point mode, got %v", args["mode"])
	}

	if args["frequency"] != int32(2437) {
		t.Errorf("expected 2437 MHz, got %v", args["frequency"])
	}

	if args["key_mgmt"] != "WPA-PSK" || args["proto"] != "RSN" {
		t.Errorf("expected WPA2 PSK, got %v %v", args["key_mgmt"], args["proto"])
	}
}

func TestChannelFrequency(t *testing.T) {
	tests := []struct {
		channel   int
		frequency int32
	}{
		{1, 2412},
		{6, 2437},
		{11, 2462},
		{13, 2472},
		{14, 2484},
	}

	for _, test := range tests {
		if f := channelFrequency(test.channel); f != test.frequency {
			t.Errorf("channel %v: expected %v, got %v", test.channel, test.frequency, f)
		}
	}
}

func TestIeeeReason(t *testing.T) {
	if r := ieeeReason(15); r != "4-way handshake timeout" {
		t.Errorf("unexpected reason %q", r)
	}

	if r := ieeeReason(-3); r != "station leaving (local)" {
		t.Errorf("unexpected reason %q", r)
	}

	if r := ieeeReason(99); r != "reason 99" {
		t.Errorf("unexpected reason %q", r)
	}
}

func TestIsActive(t *testing.T) {
	if !isActive("completed") || !isActive("4way_handshake") {
		t.Errorf("expected association states to be active")
	}

	if isActive("disconnected") || isActive("inactive") || isActive("scanning") {
		t.Errorf("expected idle states to be inactive")
	}
}
