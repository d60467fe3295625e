package protocol

import (
	"net/netip"
	"testing"

	"github.com/the-lightning-land/provd/wifi"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{"scan", `{"scan":"start"}`, ScanRequest{}},
		{"connect", `{"ssid":"Home","password":"secret123"}`, ConnectRequest{SSID: "Home", Password: "secret123"}},
		{"open network", `{"ssid":"Cafe","password":""}`, ConnectRequest{SSID: "Cafe", Password: ""}},
		{"scan wins", `{"scan":"start","ssid":"Home","password":"x"}`, ScanRequest{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Decode([]byte(test.input))
			if got != test.want {
				t.Fatalf("expected %#v, got %#v", test.want, got)
			}
		})
	}
}

func TestDecodeUnrecognized(t *testing.T) {
	inputs := []string{
		``,
		`not json`,
		`{"scan":"stop"}`,
		`{"scan":1}`,
		`{"ssid":"Home"}`,
		`{"password":"secret123"}`,
		`{"ssid":42,"password":"secret123"}`,
		`{"ssid":"Home","password":null}`,
		`["scan"]`,
	}

	for _, input := range inputs {
		if _, ok := Decode([]byte(input)).(Unrecognized); !ok {
			t.Errorf("expected %q to be unrecognized", input)
		}
	}
}

func TestEncodeScanList(t *testing.T) {
	if got := string(EncodeScanList(nil)); got != `{"wifi_list":[]}` {
		t.Errorf("unexpected empty list %v", got)
	}

	got := string(EncodeScanList([]wifi.AccessPointRecord{
		{SSID: "Home", RSSI: -45, Encrypted: true},
	}))
	if got != `{"wifi_list":[{"ssid":"Home","rssi":-45,"encrypted":true}]}` {
		t.Errorf("unexpected list %v", got)
	}

	got = string(EncodeScanList([]wifi.AccessPointRecord{
		{SSID: "B", RSSI: -70},
		{SSID: "A", RSSI: -30, Encrypted: true},
	}))
	if got != `{"wifi_list":[{"ssid":"B","rssi":-70,"encrypted":false},{"ssid":"A","rssi":-30,"encrypted":true}]}` {
		t.Errorf("expected scan order to be kept, got %v", got)
	}
}

func TestEncodeStatus(t *testing.T) {
	got := string(EncodeStatus(Status{
		Connected: true,
		SSID:      "Home",
		Address:   netip.MustParseAddr("192.168.100.1"),
	}))
	if got != `{"status":"connected","ssid":"Home","ip":"192.168.100.1"}` {
		t.Errorf("unexpected success status %v", got)
	}

	got = string(EncodeStatus(Status{
		SSID:    "Home",
		Address: netip.MustParseAddr("10.0.0.2"),
	}))
	if got != `{"status":"failed","ssid":"Home"}` {
		t.Errorf("unexpected failure status %v", got)
	}
}
