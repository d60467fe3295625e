//go:build !linux

package wpa

import (
	"net/netip"

	"github.com/go-errors/errors"
)

func interfaceAddress(ifname string) (netip.Addr, bool) {
	return netip.Addr{}, false
}

func setInterfaceAddress(ifname string, addr netip.Addr, mask netip.Addr) error {
	return errors.Errorf("setting the address of %v is only supported on linux", ifname)
}
