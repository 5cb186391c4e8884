// Package netif describes the local network interfaces SSDP can bind to.
//
// The discovery core never enumerates interfaces itself. It consumes an
// already-resolved list of Interface values; List adapts the host's
// net.Interfaces into that form for command-line use.
package netif

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Family selects IPv4 or IPv6.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// String returns a human-readable representation of the family
func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Network returns the Go network name for UDP sockets of this family.
func (f Family) Network() string {
	if f == IPv6 {
		return "udp6"
	}
	return "udp4"
}

// Matches reports whether addr belongs to the family.
func (f Family) Matches(addr netip.Addr) bool {
	if f == IPv6 {
		return addr.Is6() && !addr.Is4In6()
	}
	return addr.Is4() || addr.Is4In6()
}

// ParseFamily accepts "4", "6", "ipv4", "ipv6" (any case).
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "4", "ipv4", "v4", "":
		return IPv4, nil
	case "6", "ipv6", "v6":
		return IPv6, nil
	default:
		return IPv4, fmt.Errorf("unknown IP version %q (expected 4 or 6)", s)
	}
}

// Interface is a read-only descriptor of one local network interface.
type Interface struct {
	Name      string       // OS interface name (eth0, en0, ...)
	Index     int          // OS interface index, 0 when unknown
	Addrs     []netip.Addr // Bound unicast addresses
	Up        bool         // Interface is administratively up
	Multicast bool         // Interface supports multicast
	Loopback  bool         // Interface is a loopback device
}

// AddrFor returns the first address of the given family. IPv6 prefers a
// link-local address since SSDP's default IPv6 scope is link-local.
func (i Interface) AddrFor(f Family) (netip.Addr, bool) {
	var fallback netip.Addr
	for _, a := range i.Addrs {
		if !f.Matches(a) {
			continue
		}
		if f == IPv6 && !a.IsLinkLocalUnicast() {
			if !fallback.IsValid() {
				fallback = a
			}
			continue
		}
		return a.Unmap(), true
	}
	if fallback.IsValid() {
		return fallback, true
	}
	return netip.Addr{}, false
}

// HasFamily reports whether the interface has an address of the family.
func (i Interface) HasFamily(f Family) bool {
	_, ok := i.AddrFor(f)
	return ok
}

// Eligible reports whether the interface can carry SSDP multicast for the
// family: up, multicast-capable, not loopback, with an address of the family.
func (i Interface) Eligible(f Family) bool {
	return i.Up && i.Multicast && !i.Loopback && i.HasFamily(f)
}

// Net returns a net.Interface carrying the name, index and flags, for socket
// option calls that take one.
func (i Interface) Net() *net.Interface {
	var flags net.Flags
	if i.Up {
		flags |= net.FlagUp
	}
	if i.Multicast {
		flags |= net.FlagMulticast
	}
	if i.Loopback {
		flags |= net.FlagLoopback
	}
	return &net.Interface{Index: i.Index, Name: i.Name, Flags: flags}
}

// String returns a debug representation of the interface
func (i Interface) String() string {
	addrs := make([]string, 0, len(i.Addrs))
	for _, a := range i.Addrs {
		addrs = append(addrs, a.String())
	}
	return fmt.Sprintf("%s[%d]{%s}", i.Name, i.Index, strings.Join(addrs, ", "))
}

// Eligible filters list down to the interfaces that can carry SSDP multicast
// for the family, preserving order.
func Eligible(list []Interface, f Family) []Interface {
	var out []Interface
	for _, i := range list {
		if i.Eligible(f) {
			out = append(out, i)
		}
	}
	return out
}

// ByName returns the interface with the given name from list.
func ByName(list []Interface, name string) (Interface, bool) {
	for _, i := range list {
		if i.Name == name {
			return i, true
		}
	}
	return Interface{}, false
}

// FromNet converts a net.Interface and its addresses.
func FromNet(ifi net.Interface, addrs []net.Addr) Interface {
	out := Interface{
		Name:      ifi.Name,
		Index:     ifi.Index,
		Up:        ifi.Flags&net.FlagUp != 0,
		Multicast: ifi.Flags&net.FlagMulticast != 0,
		Loopback:  ifi.Flags&net.FlagLoopback != 0,
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		if addr, ok := netip.AddrFromSlice(ip); ok {
			out.Addrs = append(out.Addrs, addr.Unmap())
		}
	}
	return out
}

// List returns the host's interfaces.
func List() ([]Interface, error) {
	ifis, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	out := make([]Interface, 0, len(ifis))
	for _, ifi := range ifis {
		addrs, err := ifi.Addrs()
		if err != nil {
			// Interfaces that vanish between calls are skipped.
			continue
		}
		out = append(out, FromNet(ifi, addrs))
	}
	return out, nil
}

// Lookup finds a host interface by name.
func Lookup(name string) (Interface, error) {
	list, err := List()
	if err != nil {
		return Interface{}, err
	}
	i, ok := ByName(list, name)
	if !ok {
		return Interface{}, fmt.Errorf("network interface %q not found", name)
	}
	return i, nil
}
