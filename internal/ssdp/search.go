package ssdp

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/ssdp/internal/httpu"
)

// SearchResponse is one decoded unicast reply to an M-SEARCH.
type SearchResponse struct {
	StatusLine string          `json:"status_line"`
	MaxAge     time.Duration   `json:"max_age"`
	Location   string          `json:"location"`
	Server     string          `json:"server,omitempty"`
	Versions   ProductVersions `json:"versions"`
	ST         string          `json:"st"`
	USN        string          `json:"usn"`
	Date       string          `json:"date,omitempty"`
	Ext        bool            `json:"ext"`
	BootID     *uint32         `json:"boot_id,omitempty"`     // 1.1+, when present
	ConfigID   *uint32         `json:"config_id,omitempty"`   // 1.1+, when present
	SearchPort *uint16         `json:"search_port,omitempty"` // 1.1+, when present
	Raw        httpu.Header    `json:"headers"`

	// Set by the receiver, not the codec.
	From       netip.AddrPort `json:"from"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Target parses the ST echo.
func (r *SearchResponse) Target() (SearchTarget, error) {
	return ParseSearchTarget(r.ST)
}

// DeviceUUID returns the uuid part of the USN.
func (r *SearchResponse) DeviceUUID() string {
	id, _ := SplitUSN(r.USN)
	return id
}

// ExpiresAt is ReceivedAt plus MaxAge.
func (r *SearchResponse) ExpiresAt() time.Time {
	return r.ReceivedAt.Add(r.MaxAge)
}

// String returns a debug representation of the response
func (r *SearchResponse) String() string {
	return fmt.Sprintf("SearchResponse{USN: %s, ST: %s, Location: %s, MaxAge: %s}",
		r.USN, r.ST, r.Location, r.MaxAge)
}

// Headers required in every search response.
var requiredResponseHeaders = []string{HeaderCacheControl, HeaderLocation, HeaderST, HeaderUSN}

// BuildSearchRequest builds the multicast M-SEARCH for opts.
//
// HOST, MAN, MX and ST are always present. From 1.1 on USER-AGENT and
// CPFN.UPNP.ORG are added; 2.0 adds CPUUID.UPNP.ORG and TCPPORT.UPNP.ORG when
// the control point carries them.
func BuildSearchRequest(opts SearchOptions) (*httpu.Message, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.warnIfClamped()

	msg := httpu.NewRequest(httpu.MethodSearch)
	msg.Header.Add(HeaderHost, HostFor(opts.IPVersion, opts.IPv6Scope))
	msg.Header.Add(HeaderMan, ManDiscover)
	msg.Header.Add(HeaderMX, strconv.Itoa(opts.EffectiveMaxWait()))
	msg.Header.Add(HeaderST, opts.RenderedTarget())
	addControlPointHeaders(msg, opts)

	return msg, nil
}

// BuildUnicastSearchRequest builds an M-SEARCH sent directly to one device.
// Unicast search was introduced in 1.1: HOST names the device and MX is
// omitted since the device answers immediately.
func BuildUnicastSearchRequest(opts SearchOptions, device netip.AddrPort) (*httpu.Message, error) {
	if opts.Version < V11 {
		return nil, fmt.Errorf("unicast search: %w (have %s, need 1.1)", ErrUnsupportedVersion, opts.Version)
	}
	if !device.IsValid() {
		return nil, fmt.Errorf("%w: device address %q is invalid", ErrInvalidOption, device)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	msg := httpu.NewRequest(httpu.MethodSearch)
	msg.Header.Add(HeaderHost, device.String())
	msg.Header.Add(HeaderMan, ManDiscover)
	msg.Header.Add(HeaderST, opts.RenderedTarget())
	addControlPointHeaders(msg, opts)

	return msg, nil
}

func addControlPointHeaders(msg *httpu.Message, opts SearchOptions) {
	if opts.Version < V11 {
		return
	}
	msg.Header.Add(HeaderUserAgent, UserAgent(opts.Version, opts.Product))
	msg.Header.Add(HeaderCPFN, opts.friendlyName())

	if opts.Version < V20 || opts.ControlPoint == nil {
		return
	}
	if opts.ControlPoint.UUID != "" {
		msg.Header.Add(HeaderCPUUID, opts.ControlPoint.UUID)
	}
	if opts.ControlPoint.Port > 0 {
		msg.Header.Add(HeaderTCPPort, strconv.Itoa(opts.ControlPoint.Port))
	}
}

// ParseSearchResponse decodes one search reply datagram.
func ParseSearchResponse(data []byte) (*SearchResponse, error) {
	msg, err := httpu.Decode(data)
	if err != nil {
		return nil, err
	}
	return SearchResponseFromMessage(msg)
}

// SearchResponseFromMessage extracts a SearchResponse from a decoded
// message. The message must be a 200 response carrying CACHE-CONTROL,
// LOCATION, ST and USN.
func SearchResponseFromMessage(msg *httpu.Message) (*SearchResponse, error) {
	if !msg.IsResponse() || msg.StatusCode != httpu.StatusOK {
		return nil, &httpu.ParseError{Kind: httpu.MalformedStartLine, Line: msg.StartLine()}
	}
	if err := httpu.Require(msg, requiredResponseHeaders...); err != nil {
		return nil, err
	}

	h := msg.Header
	maxAge, err := ParseMaxAge(h.Get(HeaderCacheControl))
	if err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		StatusLine: msg.StartLine(),
		MaxAge:     maxAge,
		Location:   h.Get(HeaderLocation),
		Server:     h.Get(HeaderServer),
		ST:         h.Get(HeaderST),
		USN:        h.Get(HeaderUSN),
		Date:       h.Get(HeaderDate),
		Ext:        h.Has(HeaderExt),
		Raw:        h.Clone(),
	}
	if resp.Server != "" {
		resp.Versions, _ = ParseProductVersions(resp.Server)
	}
	if resp.Location == "" {
		return nil, httpu.ErrMalformedHeader(HeaderLocation, "")
	}
	if resp.USN == "" {
		return nil, httpu.ErrMalformedHeader(HeaderUSN, "")
	}

	if resp.BootID, err = optionalUint32(h, HeaderBootID); err != nil {
		return nil, err
	}
	if resp.ConfigID, err = optionalUint32(h, HeaderConfigID); err != nil {
		return nil, err
	}
	if resp.SearchPort, err = optionalPort(h, HeaderSearchPort); err != nil {
		return nil, err
	}

	return resp, nil
}

// ParseMaxAge extracts the max-age directive from a CACHE-CONTROL value.
// Other directives are ignored and whitespace around '=' is allowed.
func ParseMaxAge(value string) (time.Duration, error) {
	for _, directive := range strings.Split(value, ",") {
		name, arg, found := strings.Cut(directive, "=")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "max-age") {
			continue
		}
		seconds, err := strconv.ParseUint(strings.Trim(strings.TrimSpace(arg), `"`), 10, 32)
		if err != nil {
			return 0, httpu.ErrMalformedHeader(HeaderCacheControl, value)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return 0, httpu.ErrMalformedHeader(HeaderCacheControl, value)
}

// SplitUSN splits "uuid:device-UUID::urn:..." into the device UUID and the
// remainder. A USN without "::" is returned whole as the UUID part.
func SplitUSN(usn string) (string, string) {
	id, rest, _ := strings.Cut(usn, "::")
	return strings.TrimPrefix(id, "uuid:"), rest
}

func optionalUint32(h httpu.Header, name string) (*uint32, error) {
	raw, ok := h.Lookup(name)
	if !ok {
		return nil, nil
	}
	// BOOTID and CONFIGID are limited to 31 bits by UDA 1.1.
	v, err := strconv.ParseUint(raw, 10, 31)
	if err != nil {
		return nil, httpu.ErrMalformedHeader(name, raw)
	}
	out := uint32(v)
	return &out, nil
}

func optionalPort(h httpu.Header, name string) (*uint16, error) {
	raw, ok := h.Lookup(name)
	if !ok {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil || v == 0 {
		return nil, httpu.ErrMalformedHeader(name, raw)
	}
	out := uint16(v)
	return &out, nil
}
