package ssdp

import (
	"errors"
	"testing"
	"time"

	"github.com/muurk/ssdp/internal/httpu"
)

func TestParseSearchRequest(t *testing.T) {
	opts := DefaultSearchOptions(V11)
	opts.Target = ServiceByType("", "SwitchPower", "1")
	msg, err := BuildSearchRequest(opts)
	if err != nil {
		t.Fatalf("BuildSearchRequest() error = %v", err)
	}

	req, err := ParseSearchRequest(msg.Bytes())
	if err != nil {
		t.Fatalf("ParseSearchRequest() error = %v", err)
	}
	if req.Target != ServiceByType("schemas-upnp-org", "SwitchPower", "1") {
		t.Errorf("Target = %+v", req.Target)
	}
	if req.MaxWait != 2 || !req.Multicast {
		t.Errorf("MaxWait/Multicast = %d/%v, want 2/true", req.MaxWait, req.Multicast)
	}
	if req.FriendlyName == "" || req.UserAgent == "" {
		t.Errorf("1.1 request should carry CPFN and USER-AGENT: %+v", req)
	}

	tests := []struct {
		name string
		data string
		want *httpu.ParseError
	}{
		{"notify", "NOTIFY * HTTP/1.1\r\n\r\n", &httpu.ParseError{Kind: httpu.MalformedStartLine}},
		{"missing MAN", "M-SEARCH * HTTP/1.1\r\nST: ssdp:all\r\n\r\n", &httpu.ParseError{Kind: httpu.MissingRequiredHeader, Header: HeaderMan}},
		{"unquoted MAN", "M-SEARCH * HTTP/1.1\r\nMAN: ssdp:discover\r\nST: ssdp:all\r\n\r\n", &httpu.ParseError{Kind: httpu.MalformedHeader, Header: HeaderMan}},
		{"bad ST", "M-SEARCH * HTTP/1.1\r\nMAN: \"ssdp:discover\"\r\nST: whatever\r\n\r\n", &httpu.ParseError{Kind: httpu.MalformedHeader, Header: HeaderST}},
		{"bad MX", "M-SEARCH * HTTP/1.1\r\nMAN: \"ssdp:discover\"\r\nMX: soon\r\nST: ssdp:all\r\n\r\n", &httpu.ParseError{Kind: httpu.MalformedHeader, Header: HeaderMX}},
		{"multicast without MX", "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nMAN: \"ssdp:discover\"\r\nST: ssdp:all\r\n\r\n", &httpu.ParseError{Kind: httpu.MissingRequiredHeader, Header: HeaderMX}},
		{"multicast with MX 0", "M-SEARCH * HTTP/1.1\r\nHOST: [FF02::C]:1900\r\nMAN: \"ssdp:discover\"\r\nMX: 0\r\nST: ssdp:all\r\n\r\n", &httpu.ParseError{Kind: httpu.MalformedHeader, Header: HeaderMX}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSearchRequest([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseSearchRequest() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildSearchResponse(t *testing.T) {
	reply := SearchReply{
		Version:  V11,
		ST:       "upnp:rootdevice",
		USN:      "uuid:abc::upnp:rootdevice",
		Location: "http://10.0.0.2/desc.xml",
		MaxAge:   120,
		BootID:   3,
		ConfigID: 1,
		Date:     time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
	}
	msg, err := BuildSearchResponse(reply)
	if err != nil {
		t.Fatalf("BuildSearchResponse() error = %v", err)
	}

	resp, err := ParseSearchResponse(msg.Bytes())
	if err != nil {
		t.Fatalf("ParseSearchResponse() error = %v", err)
	}
	if resp.MaxAge != 2*time.Minute || resp.USN != reply.USN || resp.ST != reply.ST {
		t.Errorf("ParseSearchResponse() = %v", resp)
	}
	if resp.Date != "Sun, 18 Oct 2026 09:30:00 GMT" {
		t.Errorf("Date = %q", resp.Date)
	}
	if !resp.Ext {
		t.Error("EXT should be present")
	}
	if resp.BootID == nil || *resp.BootID != 3 {
		t.Errorf("BootID = %v", resp.BootID)
	}

	if _, err := BuildSearchResponse(SearchReply{ST: "ssdp:all"}); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("incomplete reply error = %v", err)
	}
}

func TestParseUnicastSearchRequestWithoutMX(t *testing.T) {
	data := "M-SEARCH * HTTP/1.1\r\nHOST: 192.168.1.20:1900\r\nMAN: \"ssdp:discover\"\r\nST: upnp:rootdevice\r\n\r\n"
	req, err := ParseSearchRequest([]byte(data))
	if err != nil {
		t.Fatalf("ParseSearchRequest() error = %v", err)
	}
	if req.Multicast || req.MaxWait != 0 {
		t.Errorf("Multicast/MaxWait = %v/%d, want false/0", req.Multicast, req.MaxWait)
	}
}

func TestIsMulticastHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"239.255.255.250:1900", true},
		{"239.255.255.250", true},
		{"[FF02::C]:1900", true},
		{"[ff05::c]:1900", true},
		{"FF02::C", true},
		{"239.255.255.250:1901", false},
		{"192.168.1.20:1900", false},
		{"", false},
		{"example.com:1900", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := IsMulticastHost(tt.host); got != tt.want {
				t.Errorf("IsMulticastHost(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}
