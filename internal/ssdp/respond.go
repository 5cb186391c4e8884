package ssdp

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/muurk/ssdp/internal/httpu"
)

// SearchRequest is a decoded M-SEARCH, as seen by a device.
type SearchRequest struct {
	ST           string
	Target       SearchTarget
	MaxWait      int  // MX, 0 for unicast requests
	Multicast    bool // HOST names one of the SSDP groups
	UserAgent    string
	FriendlyName string // CPFN.UPNP.ORG
	Raw          httpu.Header
}

// ParseSearchRequest decodes an M-SEARCH datagram. MAN must be
// "ssdp:discover" and ST must be a known target. A request whose HOST is an
// SSDP group is multicast and must carry an MX of at least 1; a unicast
// request may omit it.
func ParseSearchRequest(data []byte) (*SearchRequest, error) {
	msg, err := httpu.Decode(data)
	if err != nil {
		return nil, err
	}
	if msg.Method != httpu.MethodSearch {
		return nil, &httpu.ParseError{Kind: httpu.MalformedStartLine, Line: msg.StartLine()}
	}
	if err := httpu.Require(msg, HeaderMan, HeaderST); err != nil {
		return nil, err
	}

	h := msg.Header
	if man := h.Get(HeaderMan); man != ManDiscover {
		return nil, httpu.ErrMalformedHeader(HeaderMan, man)
	}
	target, err := ParseSearchTarget(h.Get(HeaderST))
	if err != nil {
		return nil, httpu.ErrMalformedHeader(HeaderST, h.Get(HeaderST))
	}

	req := &SearchRequest{
		ST:           h.Get(HeaderST),
		Target:       target,
		UserAgent:    h.Get(HeaderUserAgent),
		FriendlyName: h.Get(HeaderCPFN),
		Raw:          h.Clone(),
		Multicast:    IsMulticastHost(h.Get(HeaderHost)),
	}
	if req.Multicast {
		if err := httpu.Require(msg, HeaderMX); err != nil {
			return nil, err
		}
	}
	if mx, ok := h.Lookup(HeaderMX); ok {
		v, err := strconv.Atoi(mx)
		if err != nil || v < 0 || (req.Multicast && v < MinMaxWait) {
			return nil, httpu.ErrMalformedHeader(HeaderMX, mx)
		}
		req.MaxWait = v
	}
	return req, nil
}

// SearchReply describes a device's answer to one M-SEARCH.
type SearchReply struct {
	Version    Version
	ST         string
	USN        string
	Location   string
	MaxAge     int             // 0 uses DefaultMaxAge
	Server     *ProductVersion // nil uses DefaultProduct
	BootID     uint32          // 1.1+
	ConfigID   uint32          // 1.1+
	SearchPort int             // 1.1+, optional
	Date       time.Time       // zero omits DATE
}

// BuildSearchResponse renders the unicast 200 reply a device sends for a
// matching search.
func BuildSearchResponse(r SearchReply) (*httpu.Message, error) {
	if r.ST == "" || r.USN == "" || r.Location == "" {
		return nil, fmt.Errorf("%w: search reply needs ST, USN and LOCATION", ErrInvalidOption)
	}
	maxAge := r.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	msg := httpu.NewResponse(httpu.StatusOK, httpu.ReasonOK)
	h := &msg.Header
	h.Add(HeaderCacheControl, "max-age="+strconv.Itoa(maxAge))
	if !r.Date.IsZero() {
		h.Add(HeaderDate, r.Date.UTC().Format(http.TimeFormat))
	}
	h.Add(HeaderExt, "")
	h.Add(HeaderLocation, r.Location)
	h.Add(HeaderServer, UserAgent(r.Version, r.Server))
	h.Add(HeaderST, r.ST)
	h.Add(HeaderUSN, r.USN)
	if r.Version >= V11 {
		h.Add(HeaderBootID, strconv.FormatUint(uint64(r.BootID), 10))
		h.Add(HeaderConfigID, strconv.FormatUint(uint64(r.ConfigID), 10))
		if r.SearchPort != 0 {
			h.Add(HeaderSearchPort, strconv.Itoa(r.SearchPort))
		}
	}
	return msg, nil
}
