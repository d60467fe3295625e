// Package protocol reads the commands of the provisioning UI and writes
// its replies.
package protocol

import (
	"encoding/json"
	"net/netip"

	"github.com/the-lightning-land/provd/wifi"
)

// Command is one decoded inbound document.
type Command interface {
	command()
}

// ScanRequest asks for a list of nearby networks.
type ScanRequest struct{}

// ConnectRequest submits credentials of the network to join.
type ConnectRequest struct {
	SSID     string
	Password string
}

// Unrecognized is anything that is neither valid JSON nor a known shape.
type Unrecognized struct {
	Reason string
}

func (ScanRequest) command()    {}
func (ConnectRequest) command() {}
func (Unrecognized) command()   {}

// Decode never fails, unknown input decodes to Unrecognized.
func Decode(data []byte) Command {
	var fields map[string]json.RawMessage

	err := json.Unmarshal(data, &fields)
	if err != nil {
		return Unrecognized{Reason: "malformed json: " + err.Error()}
	}

	if scan, ok := stringField(fields, "scan"); ok && scan == "start" {
		return ScanRequest{}
	}

	_, hasSsid := fields["ssid"]
	_, hasPassword := fields["password"]

	if !hasSsid || !hasPassword {
		return Unrecognized{Reason: "unknown command"}
	}

	ssid, ok := stringField(fields, "ssid")
	if !ok {
		return Unrecognized{Reason: "ssid is not a string"}
	}

	password, ok := stringField(fields, "password")
	if !ok {
		return Unrecognized{Reason: "password is not a string"}
	}

	return ConnectRequest{
		SSID:     ssid,
		Password: password,
	}
}

// stringField is false for missing, null and non-string values.
func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return "", false
	}

	var value string
	if json.Unmarshal(raw, &value) != nil {
		return "", false
	}

	return value, true
}

type scanEntry struct {
	SSID      string `json:"ssid"`
	RSSI      int    `json:"rssi"`
	Encrypted bool   `json:"encrypted"`
}

type scanList struct {
	List []scanEntry `json:"wifi_list"`
}

// EncodeScanList writes the records in scan order. No records encode as
// an empty list, never as null.
func EncodeScanList(records []wifi.AccessPointRecord) []byte {
	list := scanList{
		List: make([]scanEntry, 0, len(records)),
	}

	for _, record := range records {
		list.List = append(list.List, scanEntry{
			SSID:      record.SSID,
			RSSI:      record.RSSI,
			Encrypted: record.Encrypted,
		})
	}

	// plain strings, ints and bools always marshal
	data, _ := json.Marshal(list)

	return data
}

// Status is the outcome of one connection cycle.
type Status struct {
	Connected bool
	SSID      string
	// Address is only reported when connected.
	Address netip.Addr
}

type statusReply struct {
	Status string `json:"status"`
	SSID   string `json:"ssid"`
	IP     string `json:"ip,omitempty"`
}

func EncodeStatus(status Status) []byte {
	reply := statusReply{
		Status: "failed",
		SSID:   status.SSID,
	}

	if status.Connected {
		reply.Status = "connected"

		if status.Address.IsValid() {
			reply.IP = status.Address.String()
		}
	}

	data, _ := json.Marshal(reply)

	return data
}
