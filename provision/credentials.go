package provision

import (
	"strings"
	"unicode/utf8"
)

const (
	maxSSIDLength   = 32
	maxSecretLength = 64
)

// Credentials of an upstream network, bounded to what the radio accepts.
type Credentials struct {
	SSID   string
	Secret string
}

// NewCredentials truncates ssid and secret to their capacity, never
// splitting a UTF-8 sequence.
func NewCredentials(ssid string, secret string) Credentials {
	return Credentials{
		SSID:   truncate(ssid, maxSSIDLength),
		Secret: truncate(secret, maxSecretLength),
	}
}

func (c Credentials) String() string {
	return c.SSID + ":" + strings.Repeat("*", len(c.Secret))
}

func truncate(s string, capacity int) string {
	if len(s) <= capacity {
		return s
	}

	cut := capacity
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
