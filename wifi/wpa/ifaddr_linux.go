//go:build linux

package wpa

import (
	"net/netip"

	"github.com/go-errors/errors"
	"golang.org/x/sys/unix"
)

func inetSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Errorf("could not open control socket: %v", err)
	}

	return fd, nil
}

// interfaceAddress reads the IPv4 address of ifname.
func interfaceAddress(ifname string) (netip.Addr, bool) {
	fd, err := inetSocket()
	if err != nil {
		return netip.Addr{}, false
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq(ifname)
	if err != nil {
		return netip.Addr{}, false
	}

	if err := unix.IoctlIfreq(fd, unix.SIOCGIFADDR, ifr); err != nil {
		return netip.Addr{}, false
	}

	ip, err := ifr.Inet4Addr()
	if err != nil {
		return netip.Addr{}, false
	}

	addr, ok := netip.AddrFromSlice(ip)
	if !ok || addr.IsUnspecified() {
		return netip.Addr{}, false
	}

	return addr, true
}

// setInterfaceAddress assigns addr/mask to ifname and brings it up.
func setInterfaceAddress(ifname string, addr netip.Addr, mask netip.Addr) error {
	fd, err := inetSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq(ifname)
	if err != nil {
		return errors.Errorf("invalid interface name %v: %v", ifname, err)
	}

	if err := ifr.SetInet4Addr(addr.AsSlice()); err != nil {
		return errors.Errorf("invalid address %v: %v", addr, err)
	}

	if err := unix.IoctlIfreq(fd, unix.SIOCSIFADDR, ifr); err != nil {
		return errors.Errorf("could not set address of %v: %v", ifname, err)
	}

	ifr, _ = unix.NewIfreq(ifname)

	if err := ifr.SetInet4Addr(mask.AsSlice()); err != nil {
		return errors.Errorf("invalid netmask %v: %v", mask, err)
	}

	if err := unix.IoctlIfreq(fd, unix.SIOCSIFNETMASK, ifr); err != nil {
		return errors.Errorf("could not set netmask of %v: %v", ifname, err)
	}

	ifr, _ = unix.NewIfreq(ifname)

	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return errors.Errorf("could not get flags of %v: %v", ifname, err)
	}

	ifr.SetUint16(ifr.Uint16() | unix.IFF_UP)

	if err := unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr); err != nil {
		return errors.Errorf("could not bring up %v: %v", ifname, err)
	}

	return nil
}
