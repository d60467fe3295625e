package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig([]string{"--configfile", filepath.Join(t.TempDir(), "missing.conf")})
	if err != nil {
		t.Fatalf("could not parse config: %v", err)
	}

	ap, err := cfg.accessPoint()
	if err != nil {
		t.Fatalf("invalid default access point: %v", err)
	}

	if ap.Address.String() != "192.168.100.1" || ap.Netmask.String() != "255.255.255.0" {
		t.Errorf("unexpected address plan %v/%v", ap.Address, ap.Netmask)
	}

	if ap.Channel != 1 || ap.MaxClients != 4 || cfg.Ap.MaxRetry != 6 {
		t.Errorf("unexpected defaults %+v", cfg.Ap)
	}

	if cfg.Grace != 2*time.Second {
		t.Errorf("unexpected grace %v", cfg.Grace)
	}
}

func TestParseConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provd.conf")

	content := "[Application Options]\nnet=mock\n\n[Access point]\nap.ssid=from-file\nap.channel=6\n"

	err := os.WriteFile(path, []byte(content), 0600)
	if err != nil {
		t.Fatalf("could not write config file: %v", err)
	}

	cfg, err := parseConfig([]string{"--configfile", path, "--ap.channel", "11"})
	if err != nil {
		t.Fatalf("could not parse config: %v", err)
	}

	if cfg.Net != "mock" {
		t.Errorf("expected net from file, got %v", cfg.Net)
	}

	if cfg.Ap.SSID != "from-file" {
		t.Errorf("expected ssid from file, got %v", cfg.Ap.SSID)
	}

	if cfg.Ap.Channel != 11 {
		t.Errorf("expected the command line to win, got channel %v", cfg.Ap.Channel)
	}
}

func TestParseConfigButtonNeedsMachine(t *testing.T) {
	_, err := parseConfig([]string{
		"--configfile", filepath.Join(t.TempDir(), "missing.conf"),
		"--trigger", "button",
	})
	if err == nil {
		t.Fatalf("expected an error for a button trigger without machine")
	}
}

func TestAccessPointValidation(t *testing.T) {
	cfg := defaultConfig()
	cfg.Ap.IP = "not-an-ip"

	if _, err := cfg.accessPoint(); err == nil {
		t.Fatalf("expected an invalid ip to be rejected")
	}

	cfg = defaultConfig()
	cfg.Ap.Passphrase = "short"

	if _, err := cfg.accessPoint(); err == nil {
		t.Fatalf("expected a short passphrase to be rejected")
	}
}
