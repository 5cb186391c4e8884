package ssdp

import (
	"fmt"
	"strings"
)

// Version is a UPnP Device Architecture version. Versions are ordered, so
// comparisons such as v >= V11 select version-gated behaviour.
type Version int

const (
	V10 Version = iota // UPnP Device Architecture 1.0
	V11                // UPnP Device Architecture 1.1
	V20                // UPnP Device Architecture 2.0
)

// String returns the dotted version number
func (v Version) String() string {
	switch v {
	case V10:
		return "1.0"
	case V11:
		return "1.1"
	case V20:
		return "2.0"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// ParseVersion accepts "1.0", "1.1", "2.0", with or without a "UPnP/" prefix.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(UPnPProductName)+1 && strings.EqualFold(s[:len(UPnPProductName)+1], UPnPProductName+"/") {
		s = s[len(UPnPProductName)+1:]
	}
	switch s {
	case "1.0", "1":
		return V10, nil
	case "1.1":
		return V11, nil
	case "2.0", "2":
		return V20, nil
	default:
		return V10, fmt.Errorf("unsupported UPnP version %q", s)
	}
}

// AtLeast reports whether v is other or newer.
func (v Version) AtLeast(other Version) bool {
	return v >= other
}

// PacketTTL is the default multicast TTL for the version. UDA 1.0 recommends
// 4; later versions lowered it to 2.
func (v Version) PacketTTL() int {
	if v == V10 {
		return 4
	}
	return 2
}

// Product returns the "UPnP/x.y" token used in SERVER and USER-AGENT.
func (v Version) Product() ProductVersion {
	return ProductVersion{Name: UPnPProductName, Version: v.String()}
}
