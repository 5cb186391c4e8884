package ssdp

import (
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/muurk/ssdp/internal/httpu"
	"github.com/muurk/ssdp/internal/netif"
)

// NotificationKind is the NTS sub-type of a NOTIFY message.
type NotificationKind int

const (
	Alive NotificationKind = iota
	ByeBye
	Update
)

// String returns the NTS header value
func (k NotificationKind) String() string {
	switch k {
	case Alive:
		return NTSAlive
	case ByeBye:
		return NTSByeBye
	case Update:
		return NTSUpdate
	default:
		return fmt.Sprintf("NotificationKind(%d)", int(k))
	}
}

// MarshalText renders the kind as its NTS value
func (k NotificationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseNotificationKind maps an NTS value to a kind.
func ParseNotificationKind(nts string) (NotificationKind, error) {
	switch nts {
	case NTSAlive:
		return Alive, nil
	case NTSByeBye:
		return ByeBye, nil
	case NTSUpdate:
		return Update, nil
	default:
		return Alive, httpu.ErrUnsupportedNotificationType(nts)
	}
}

// Advertisement is one decoded NOTIFY message. Each value is independent;
// no state is carried between advertisements.
type Advertisement struct {
	Kind       NotificationKind `json:"kind"`
	NT         string           `json:"nt"`
	USN        string           `json:"usn"`
	Location   string           `json:"location,omitempty"` // empty for ByeBye
	MaxAge     time.Duration    `json:"max_age,omitempty"`
	Server     string           `json:"server,omitempty"`
	Versions   ProductVersions  `json:"versions"`
	BootID     *uint32          `json:"boot_id,omitempty"`
	ConfigID   *uint32          `json:"config_id,omitempty"`
	NextBootID *uint32          `json:"next_boot_id,omitempty"` // Update only
	SearchPort *uint16          `json:"search_port,omitempty"`
	Raw        httpu.Header     `json:"headers"`

	// Set by the receiver, not the codec.
	From       netip.AddrPort `json:"from"`
	ReceivedAt time.Time      `json:"received_at"`
}

// DeviceUUID returns the uuid part of the USN.
func (a *Advertisement) DeviceUUID() string {
	id, _ := SplitUSN(a.USN)
	return id
}

// String returns a debug representation of the advertisement
func (a *Advertisement) String() string {
	return fmt.Sprintf("Advertisement{%s, NT: %s, USN: %s, Location: %s}", a.Kind, a.NT, a.USN, a.Location)
}

// ParseAdvertisement decodes one NOTIFY datagram, dispatching on NTS:
// ssdp:alive requires LOCATION, ssdp:byebye ignores it, ssdp:update requires
// it and reads NEXTBOOTID. Any other NTS fails with
// UnsupportedNotificationType.
func ParseAdvertisement(data []byte) (*Advertisement, error) {
	msg, err := httpu.Decode(data)
	if err != nil {
		return nil, err
	}
	return AdvertisementFromMessage(msg)
}

// AdvertisementFromMessage extracts an Advertisement from a decoded message.
func AdvertisementFromMessage(msg *httpu.Message) (*Advertisement, error) {
	if msg.Method != httpu.MethodNotify {
		return nil, &httpu.ParseError{Kind: httpu.MalformedStartLine, Line: msg.StartLine()}
	}
	if err := httpu.Require(msg, HeaderNT, HeaderNTS, HeaderUSN); err != nil {
		return nil, err
	}

	h := msg.Header
	kind, err := ParseNotificationKind(h.Get(HeaderNTS))
	if err != nil {
		return nil, err
	}

	adv := &Advertisement{
		Kind:   kind,
		NT:     h.Get(HeaderNT),
		USN:    h.Get(HeaderUSN),
		Server: h.Get(HeaderServer),
		Raw:    h.Clone(),
	}
	if adv.Server != "" {
		adv.Versions, _ = ParseProductVersions(adv.Server)
	}

	switch kind {
	case Alive, Update:
		if err := httpu.Require(msg, HeaderLocation); err != nil {
			return nil, err
		}
		adv.Location = h.Get(HeaderLocation)
		if adv.Location == "" {
			return nil, httpu.ErrMalformedHeader(HeaderLocation, "")
		}
	case ByeBye:
		// LOCATION is meaningless for byebye and ignored if present.
	}

	if kind == Alive {
		if err := httpu.Require(msg, HeaderCacheControl); err != nil {
			return nil, err
		}
		if adv.MaxAge, err = ParseMaxAge(h.Get(HeaderCacheControl)); err != nil {
			return nil, err
		}
	}

	if adv.BootID, err = optionalUint32(h, HeaderBootID); err != nil {
		return nil, err
	}
	if adv.ConfigID, err = optionalUint32(h, HeaderConfigID); err != nil {
		return nil, err
	}
	if adv.SearchPort, err = optionalPort(h, HeaderSearchPort); err != nil {
		return nil, err
	}
	if kind == Update {
		if adv.NextBootID, err = optionalUint32(h, HeaderNextBootID); err != nil {
			return nil, err
		}
	}

	return adv, nil
}

// Notification describes one NOTIFY message a device sends.
type Notification struct {
	Kind       NotificationKind
	Version    Version
	IPVersion  netif.Family
	IPv6Scope  IPv6Scope
	NT         string
	USN        string
	Location   string          // Alive and Update
	MaxAge     int             // Alive; 0 uses DefaultMaxAge
	Server     *ProductVersion // Alive; nil uses DefaultProduct
	BootID     uint32          // 1.1+
	ConfigID   uint32          // 1.1+
	NextBootID uint32          // Update
	SearchPort int             // 1.1+, optional, 49152-65535
}

// BuildNotify renders a NOTIFY message. ssdp:update is only defined from
// 1.1 on.
func BuildNotify(n Notification) (*httpu.Message, error) {
	if n.NT == "" || n.USN == "" {
		return nil, fmt.Errorf("%w: notification needs NT and USN", ErrInvalidOption)
	}
	if n.Kind != ByeBye && n.Location == "" {
		return nil, fmt.Errorf("%w: %s notification needs a location", ErrInvalidOption, n.Kind)
	}
	if n.Kind == Update && n.Version < V11 {
		return nil, fmt.Errorf("ssdp:update: %w (have %s, need 1.1)", ErrUnsupportedVersion, n.Version)
	}
	if n.SearchPort != 0 && (n.SearchPort < minSearchPort || n.SearchPort > 65535) {
		return nil, fmt.Errorf("%w: search port %d outside %d-65535", ErrInvalidOption, n.SearchPort, minSearchPort)
	}

	msg := httpu.NewRequest(httpu.MethodNotify)
	h := &msg.Header
	h.Add(HeaderHost, HostFor(n.IPVersion, n.IPv6Scope))

	switch n.Kind {
	case Alive:
		maxAge := n.MaxAge
		if maxAge <= 0 {
			maxAge = DefaultMaxAge
		}
		h.Add(HeaderCacheControl, "max-age="+strconv.Itoa(maxAge))
		h.Add(HeaderLocation, n.Location)
		h.Add(HeaderNT, n.NT)
		h.Add(HeaderNTS, NTSAlive)
		h.Add(HeaderServer, UserAgent(n.Version, n.Server))
		h.Add(HeaderUSN, n.USN)
	case ByeBye:
		h.Add(HeaderNT, n.NT)
		h.Add(HeaderNTS, NTSByeBye)
		h.Add(HeaderUSN, n.USN)
	case Update:
		h.Add(HeaderLocation, n.Location)
		h.Add(HeaderNT, n.NT)
		h.Add(HeaderNTS, NTSUpdate)
		h.Add(HeaderUSN, n.USN)
	default:
		return nil, fmt.Errorf("%w: unknown notification kind %d", ErrInvalidOption, int(n.Kind))
	}

	if n.Version >= V11 {
		h.Add(HeaderBootID, strconv.FormatUint(uint64(n.BootID), 10))
		h.Add(HeaderConfigID, strconv.FormatUint(uint64(n.ConfigID), 10))
		if n.Kind == Update {
			h.Add(HeaderNextBootID, strconv.FormatUint(uint64(n.NextBootID), 10))
		}
		if n.Kind != ByeBye && n.SearchPort != 0 {
			h.Add(HeaderSearchPort, strconv.Itoa(n.SearchPort))
		}
	}

	return msg, nil
}
