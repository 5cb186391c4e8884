package ssdp

import (
	"errors"
	"net/netip"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/ssdp/internal/httpu"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/netif"
)

func TestBuildSearchRequest(t *testing.T) {
	tests := []struct {
		name        string
		opts        func() SearchOptions
		wantHeaders map[string]string
		absent      []string
	}{
		{
			name: "1.0 root devices",
			opts: func() SearchOptions { return DefaultSearchOptions(V10) },
			wantHeaders: map[string]string{
				HeaderHost: "239.255.255.250:1900",
				HeaderMan:  `"ssdp:discover"`,
				HeaderMX:   "2",
				HeaderST:   "upnp:rootdevice",
			},
			absent: []string{HeaderUserAgent, HeaderCPFN},
		},
		{
			name: "1.1 adds user agent and CPFN",
			opts: func() SearchOptions {
				o := DefaultSearchOptions(V11)
				o.Target = All()
				o.Product = &ProductVersion{Name: "Finder", Version: "3.0"}
				return o
			},
			wantHeaders: map[string]string{
				HeaderST:   "ssdp:all",
				HeaderCPFN: "Finder",
			},
			absent: []string{HeaderCPUUID, HeaderTCPPort},
		},
		{
			name: "2.0 control point headers",
			opts: func() SearchOptions {
				return ForControlPoint(ControlPoint{FriendlyName: "Living Room", UUID: "5a5d1c6e-3b1d-4c1f-9a48-1f2a3b4c5d6e", Port: 49200})
			},
			wantHeaders: map[string]string{
				HeaderCPFN:    "Living Room",
				HeaderCPUUID:  "5a5d1c6e-3b1d-4c1f-9a48-1f2a3b4c5d6e",
				HeaderTCPPort: "49200",
			},
		},
		{
			name: "IPv6 site-local host",
			opts: func() SearchOptions {
				o := DefaultSearchOptions(V10)
				o.IPVersion = netif.IPv6
				o.IPv6Scope = ScopeSiteLocal
				return o
			},
			wantHeaders: map[string]string{HeaderHost: "[FF05::C]:1900"},
		},
		{
			name: "domain override",
			opts: func() SearchOptions {
				o := DefaultSearchOptions(V10)
				o.Target = DeviceByType("", "Basic", "1")
				o.DomainOverride = "schemas-example-com"
				return o
			},
			wantHeaders: map[string]string{HeaderST: "urn:schemas-example-com:device:Basic:1"},
		},
		{
			name: "MX clamped to five",
			opts: func() SearchOptions {
				o := DefaultSearchOptions(V10)
				o.MaxWait = 30
				return o
			},
			wantHeaders: map[string]string{HeaderMX: "5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts()
			msg, err := BuildSearchRequest(opts)
			if err != nil {
				t.Fatalf("BuildSearchRequest() error = %v", err)
			}

			// Every request must survive a trip through the codec unchanged.
			decoded, err := httpu.Decode(msg.Bytes())
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if decoded.Method != httpu.MethodSearch || decoded.Target != "*" {
				t.Errorf("start line = %q", decoded.StartLine())
			}
			for name, want := range tt.wantHeaders {
				if got := decoded.Header.Get(name); got != want {
					t.Errorf("%s = %q, want %q", name, got, want)
				}
			}
			for _, name := range tt.absent {
				if decoded.Header.Has(name) {
					t.Errorf("%s should be absent", name)
				}
			}
			if got := decoded.Header.Get(HeaderST); got != opts.RenderedTarget() {
				t.Errorf("ST round trip = %q, want %q", got, opts.RenderedTarget())
			}
		})
	}
}

func TestBuildSearchRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		opts SearchOptions
	}{
		{"zero max wait", func() SearchOptions { o := DefaultSearchOptions(V10); o.MaxWait = 0; return o }()},
		{"2.0 without control point", DefaultSearchOptions(V20)},
		{"2.0 empty friendly name", ForControlPoint(ControlPoint{})},
		{"bad product version", func() SearchOptions {
			o := DefaultSearchOptions(V11)
			o.Product = &ProductVersion{Name: "x", Version: "beta"}
			return o
		}()},
		{"bad product name", func() SearchOptions {
			o := DefaultSearchOptions(V11)
			o.Product = &ProductVersion{Name: "a/b", Version: "1"}
			return o
		}()},
		{"type target without version", func() SearchOptions {
			o := DefaultSearchOptions(V10)
			o.Target = ServiceByType("", "Dimming", "")
			return o
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildSearchRequest(tt.opts)
			if !errors.Is(err, ErrInvalidOption) {
				t.Errorf("BuildSearchRequest() error = %v, want ErrInvalidOption", err)
			}
		})
	}
}

func TestBuildUnicastSearchRequest(t *testing.T) {
	device := netip.MustParseAddrPort("192.168.1.50:1900")

	if _, err := BuildUnicastSearchRequest(DefaultSearchOptions(V10), device); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("1.0 unicast error = %v, want ErrUnsupportedVersion", err)
	}

	msg, err := BuildUnicastSearchRequest(DefaultSearchOptions(V11), device)
	if err != nil {
		t.Fatalf("BuildUnicastSearchRequest() error = %v", err)
	}
	if got := msg.Header.Get(HeaderHost); got != "192.168.1.50:1900" {
		t.Errorf("HOST = %q", got)
	}
	if msg.Header.Has(HeaderMX) {
		t.Error("unicast search should not carry MX")
	}
	if !msg.Header.Has(HeaderUserAgent) {
		t.Error("unicast search should carry USER-AGENT")
	}
}

const igdResponse = "HTTP/1.1 200 OK\r\n" +
	"CACHE-CONTROL: max-age=120\r\n" +
	"DATE: Sat, 17 Oct 2026 10:00:00 GMT\r\n" +
	"EXT:\r\n" +
	"LOCATION: http://192.168.1.1:5000/rootDesc.xml\r\n" +
	"SERVER: Linux/5.10 UPnP/1.1 MiniUPnPd/2.2\r\n" +
	"ST: urn:schemas-upnp-org:device:InternetGatewayDevice:1\r\n" +
	"USN: uuid:d1c2a3b4-0000-1000-8000-00259e0a0b0c::urn:schemas-upnp-org:device:InternetGatewayDevice:1\r\n" +
	"BOOTID.UPNP.ORG: 7\r\n" +
	"CONFIGID.UPNP.ORG: 1337\r\n" +
	"X-Vendor-Hint: keep\r\n" +
	"\r\n"

func TestParseSearchResponse(t *testing.T) {
	resp, err := ParseSearchResponse([]byte(igdResponse))
	if err != nil {
		t.Fatalf("ParseSearchResponse() error = %v", err)
	}

	if resp.MaxAge != 120*time.Second {
		t.Errorf("MaxAge = %v, want 2m0s", resp.MaxAge)
	}
	if resp.Location != "http://192.168.1.1:5000/rootDesc.xml" {
		t.Errorf("Location = %q", resp.Location)
	}
	if resp.StatusLine != "HTTP/1.1 200 OK" {
		t.Errorf("StatusLine = %q", resp.StatusLine)
	}
	if !resp.Ext {
		t.Error("Ext should be true")
	}
	if resp.BootID == nil || *resp.BootID != 7 {
		t.Errorf("BootID = %v, want 7", resp.BootID)
	}
	if resp.ConfigID == nil || *resp.ConfigID != 1337 {
		t.Errorf("ConfigID = %v, want 1337", resp.ConfigID)
	}
	if resp.SearchPort != nil {
		t.Errorf("SearchPort = %v, want nil", *resp.SearchPort)
	}
	if v, ok := resp.Versions.UPnPVersion(); !ok || v != V11 {
		t.Errorf("UPnPVersion() = %v, %v", v, ok)
	}
	if resp.DeviceUUID() != "d1c2a3b4-0000-1000-8000-00259e0a0b0c" {
		t.Errorf("DeviceUUID() = %q", resp.DeviceUUID())
	}
	target, err := resp.Target()
	if err != nil || target.Type != "InternetGatewayDevice" {
		t.Errorf("Target() = %+v, %v", target, err)
	}

	// Unknown headers survive verbatim and re-encode unchanged.
	if got := resp.Raw.Get("x-vendor-hint"); got != "keep" {
		t.Errorf("Raw[X-Vendor-Hint] = %q", got)
	}
	reencoded := httpu.NewResponse(httpu.StatusOK, httpu.ReasonOK)
	reencoded.Header = resp.Raw
	if string(reencoded.Bytes()) != igdResponse {
		t.Errorf("re-encoded response differs:\n%q\n%q", reencoded.Bytes(), igdResponse)
	}
}

func TestParseSearchResponseErrors(t *testing.T) {
	base := "HTTP/1.1 200 OK\r\nCACHE-CONTROL: max-age=1800\r\nLOCATION: http://h/d.xml\r\nST: upnp:rootdevice\r\nUSN: uuid:x::upnp:rootdevice\r\n"

	tests := []struct {
		name   string
		data   string
		kind   httpu.ParseErrorKind
		header string
	}{
		{"not a response", "NOTIFY * HTTP/1.1\r\n\r\n", httpu.MalformedStartLine, ""},
		{"non 200", "HTTP/1.1 404 Not Found\r\n\r\n", httpu.MalformedStartLine, ""},
		{"missing location", strings.Replace(base, "LOCATION: http://h/d.xml\r\n", "", 1), httpu.MissingRequiredHeader, HeaderLocation},
		{"missing usn", strings.Replace(base, "USN: uuid:x::upnp:rootdevice\r\n", "", 1), httpu.MissingRequiredHeader, HeaderUSN},
		{"bad max-age", strings.Replace(base, "max-age=1800", "max-age=forever", 1), httpu.MalformedHeader, HeaderCacheControl},
		{"no max-age directive", strings.Replace(base, "max-age=1800", "no-cache", 1), httpu.MalformedHeader, HeaderCacheControl},
		{"bad bootid", base + "BOOTID.UPNP.ORG: -1\r\n", httpu.MalformedHeader, HeaderBootID},
		{"bad search port", base + "SEARCHPORT.UPNP.ORG: 70000\r\n", httpu.MalformedHeader, HeaderSearchPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSearchResponse([]byte(tt.data + "\r\n"))
			var perr *httpu.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error = %v, want *httpu.ParseError", err)
			}
			if perr.Kind != tt.kind || perr.Header != tt.header {
				t.Errorf("error = %v/%q, want %v/%q", perr.Kind, perr.Header, tt.kind, tt.header)
			}
		})
	}
}

func TestParseMaxAge(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"max-age=1800", 1800 * time.Second},
		{"max-age = 60", time.Minute},
		{"no-cache, MAX-AGE=5", 5 * time.Second},
		{`max-age="10"`, 10 * time.Second},
	}
	for _, tt := range tests {
		got, err := ParseMaxAge(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseMaxAge(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestBuildSearchRequestWarnsWhenClampingMX(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := logging.GetLogger()
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(prev) })

	opts := DefaultSearchOptions(V11)
	opts.MaxWait = 9
	if _, err := BuildSearchRequest(opts); err != nil {
		t.Fatalf("BuildSearchRequest() error = %v", err)
	}

	entries := logs.FilterMessageSnippet("MX above protocol ceiling").All()
	if len(entries) != 1 {
		t.Fatalf("got %d clamp warnings, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["requested"] != int64(9) || fields["used"] != int64(5) {
		t.Errorf("warning fields = %v, want requested=9 used=5", fields)
	}

	logs.TakeAll()
	opts.MaxWait = 3
	if _, err := BuildSearchRequest(opts); err != nil {
		t.Fatalf("BuildSearchRequest() error = %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("MX within range should not warn, got %v", logs.All())
	}
}
