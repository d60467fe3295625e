package wpa

import (
	"fmt"
)

// IEEE 802.11 reason codes wpa_supplicant reports as DisconnectReason
var reasons = map[int32]string{
	1:  "unspecified",
	2:  "previous authentication no longer valid",
	3:  "station leaving",
	4:  "inactivity",
	5:  "access point busy",
	6:  "class 2 frame from nonauthenticated station",
	7:  "class 3 frame from nonassociated station",
	8:  "station left",
	14: "message integrity failure",
	15: "4-way handshake timeout",
	16: "group key handshake timeout",
	23: "802.1x authentication failed",
}

// ieeeReason names a disconnect reason. Negative codes mark a
// disconnect triggered by the local side.
func ieeeReason(code int32) string {
	local := code < 0
	if local {
		code = -code
	}

	name, ok := reasons[code]
	if !ok {
		name = fmt.Sprintf("reason %d", code)
	}

	if local {
		return name + " (local)"
	}

	return name
}
