package provision

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewCredentialsTruncates(t *testing.T) {
	tests := []struct {
		name       string
		ssid       string
		secret     string
		wantSsid   string
		wantSecret string
	}{
		{
			name:       "fits",
			ssid:       "Home",
			secret:     "secret123",
			wantSsid:   "Home",
			wantSecret: "secret123",
		},
		{
			name:       "exact capacity",
			ssid:       strings.Repeat("s", 32),
			secret:     strings.Repeat("p", 64),
			wantSsid:   strings.Repeat("s", 32),
			wantSecret: strings.Repeat("p", 64),
		},
		{
			name:       "too long",
			ssid:       strings.Repeat("s", 40),
			secret:     strings.Repeat("p", 100),
			wantSsid:   strings.Repeat("s", 32),
			wantSecret: strings.Repeat("p", 64),
		},
		{
			name:       "multibyte boundary",
			ssid:       strings.Repeat("a", 31) + "é",
			secret:     strings.Repeat("ü", 40),
			wantSsid:   strings.Repeat("a", 31),
			wantSecret: strings.Repeat("ü", 32),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := NewCredentials(test.ssid, test.secret)

			if c.SSID != test.wantSsid {
				t.Errorf("expected ssid %q, got %q", test.wantSsid, c.SSID)
			}

			if c.Secret != test.wantSecret {
				t.Errorf("expected secret %q, got %q", test.wantSecret, c.Secret)
			}

			if len(c.SSID) > maxSSIDLength || len(c.Secret) > maxSecretLength {
				t.Errorf("credentials exceed capacity: %d/%d bytes", len(c.SSID), len(c.Secret))
			}

			if !utf8.ValidString(c.SSID) || !utf8.ValidString(c.Secret) {
				t.Errorf("truncation split a character")
			}
		})
	}
}

func TestCredentialsStringHidesSecret(t *testing.T) {
	c := NewCredentials("Home", "secret123")

	if s := c.String(); s != "Home:*********" {
		t.Fatalf("unexpected string %q", s)
	}
}

func TestEventSetCoalesces(t *testing.T) {
	s := newEventSet()

	s.raise(connectFailed)
	s.raise(connectFailed)
	s.submit(NewCredentials("A", "one"))
	s.submit(NewCredentials("B", "two"))

	select {
	case <-s.ready():
	default:
		t.Fatalf("expected a pending notification")
	}

	select {
	case <-s.ready():
		t.Fatalf("expected notifications to coalesce")
	default:
	}

	pending, credentials := s.take()

	if pending != connectFailed|credentialsSubmitted {
		t.Fatalf("unexpected pending events %b", pending)
	}

	if credentials.SSID != "B" {
		t.Fatalf("expected the newest submission, got %v", credentials)
	}

	if pending, _ := s.take(); pending != 0 {
		t.Fatalf("expected take to clear events, got %b", pending)
	}
}
