package ssdp

import (
	"net/netip"
	"strings"

	"github.com/muurk/ssdp/internal/netif"
)

// Header names
const (
	HeaderHost         = "HOST"
	HeaderMan          = "MAN"
	HeaderMX           = "MX"
	HeaderST           = "ST"
	HeaderNT           = "NT"
	HeaderNTS          = "NTS"
	HeaderUSN          = "USN"
	HeaderLocation     = "LOCATION"
	HeaderCacheControl = "CACHE-CONTROL"
	HeaderServer       = "SERVER"
	HeaderUserAgent    = "USER-AGENT"
	HeaderDate         = "DATE"
	HeaderExt          = "EXT"
	HeaderBootID       = "BOOTID.UPNP.ORG"     // 1.1+
	HeaderConfigID     = "CONFIGID.UPNP.ORG"   // 1.1+
	HeaderNextBootID   = "NEXTBOOTID.UPNP.ORG" // 1.1+, ssdp:update only
	HeaderSearchPort   = "SEARCHPORT.UPNP.ORG" // 1.1+
	HeaderCPFN         = "CPFN.UPNP.ORG"       // control point friendly name
	HeaderCPUUID       = "CPUUID.UPNP.ORG"     // 2.0
	HeaderTCPPort      = "TCPPORT.UPNP.ORG"    // 2.0
)

// Fixed header values
const (
	ManDiscover = `"ssdp:discover"` // MAN value, quotes included
	NTSAlive    = "ssdp:alive"
	NTSByeBye   = "ssdp:byebye"
	NTSUpdate   = "ssdp:update"

	// UPnPProductName is the product token naming the architecture version.
	UPnPProductName = "UPnP"

	// DefaultDomain is the domain used in device and service type URNs when
	// none is given.
	DefaultDomain = "schemas-upnp-org"
)

// Multicast groups. These are fixed by the protocol and never configurable.
const (
	Port                  = 1900
	MulticastAddrV4       = "239.255.255.250"
	MulticastAddrV6Link   = "FF02::C"
	MulticastAddrV6Site   = "FF05::C"
	MulticastHostV4       = "239.255.255.250:1900"
	MulticastHostV6Link   = "[FF02::C]:1900"
	MulticastHostV6Site   = "[FF05::C]:1900"
	DefaultMaxWait        = 2
	MinMaxWait            = 1
	MaxMaxWait            = 5
	DefaultMaxAge         = 1800
	minSearchPort         = 49152
	defaultProductName    = "muurk-ssdp"
	defaultProductVersion = "1.0"
)

// IPv6Scope selects which reserved IPv6 group a message targets.
type IPv6Scope int

const (
	ScopeLinkLocal IPv6Scope = iota
	ScopeSiteLocal
)

// String returns the scope name
func (s IPv6Scope) String() string {
	if s == ScopeSiteLocal {
		return "site-local"
	}
	return "link-local"
}

// IsMulticastHost reports whether a HOST value names one of the SSDP
// groups. The port may be omitted.
func IsMulticastHost(host string) bool {
	var addr netip.Addr
	if ap, err := netip.ParseAddrPort(host); err == nil {
		if ap.Port() != Port {
			return false
		}
		addr = ap.Addr()
	} else if a, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		addr = a
	} else {
		return false
	}
	for _, group := range []string{MulticastAddrV4, MulticastAddrV6Link, MulticastAddrV6Site} {
		if addr == netip.MustParseAddr(group) {
			return true
		}
	}
	return false
}

// HostFor returns the HOST header value for the IP family and IPv6 scope.
func HostFor(family netif.Family, scope IPv6Scope) string {
	if family == netif.IPv6 {
		if scope == ScopeSiteLocal {
			return MulticastHostV6Site
		}
		return MulticastHostV6Link
	}
	return MulticastHostV4
}
