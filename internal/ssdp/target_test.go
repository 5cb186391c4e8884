package ssdp

import "testing"

func TestSearchTargetRender(t *testing.T) {
	tests := []struct {
		name     string
		target   SearchTarget
		override string
		want     string
	}{
		{"all", All(), "", "ssdp:all"},
		{"root devices", RootDevices(), "", "upnp:rootdevice"},
		{"device by uuid", DeviceByUUID("2fac1234-31f8-11b4-a222-08002b34c003"), "", "uuid:2fac1234-31f8-11b4-a222-08002b34c003"},
		{"uuid prefix not doubled", DeviceByUUID("uuid:abc"), "", "uuid:abc"},
		{"device type default domain", DeviceByType("", "MediaServer", "1"), "", "urn:schemas-upnp-org:device:MediaServer:1"},
		{"device type own domain", DeviceByType("schemas-example-com", "MediaServer", "1"), "", "urn:schemas-example-com:device:MediaServer:1"},
		{"service type", ServiceByType("", "ContentDirectory", "2"), "", "urn:schemas-upnp-org:service:ContentDirectory:2"},
		{"override wins", ServiceByType("schemas-example-com", "Light", "1"), "schemas-acme-com", "urn:schemas-acme-com:service:Light:1"},
		{"override ignored for all", All(), "schemas-acme-com", "ssdp:all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.Render(tt.override); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.override, got, tt.want)
			}
		})
	}
}

func TestParseSearchTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    SearchTarget
		wantErr bool
	}{
		{"ssdp:all", All(), false},
		{"upnp:rootdevice", RootDevices(), false},
		{"uuid:abc-123", DeviceByUUID("abc-123"), false},
		{"urn:schemas-upnp-org:device:InternetGatewayDevice:1", DeviceByType("schemas-upnp-org", "InternetGatewayDevice", "1"), false},
		{"urn:dial-multiscreen-org:service:dial:1", ServiceByType("dial-multiscreen-org", "dial", "1"), false},
		{"urn:schemas-upnp-org:thing:X:1", SearchTarget{}, true},
		{"urn:too:short", SearchTarget{}, true},
		{"uuid:", SearchTarget{}, true},
		{"ssdp::all", SearchTarget{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSearchTarget(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSearchTarget() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSearchTarget() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSearchTargetMatches(t *testing.T) {
	mediaServer1 := DeviceByType("", "MediaServer", "1")
	mediaServer2 := DeviceByType("schemas-upnp-org", "MediaServer", "2")

	tests := []struct {
		name   string
		target SearchTarget
		other  SearchTarget
		want   bool
	}{
		{"all matches anything", All(), mediaServer1, true},
		{"newer version answers older search", mediaServer1, mediaServer2, true},
		{"older version does not answer newer search", mediaServer2, mediaServer1, false},
		{"service does not answer device search", mediaServer1, ServiceByType("", "MediaServer", "1"), false},
		{"same uuid", DeviceByUUID("a"), DeviceByUUID("a"), true},
		{"different uuid", DeviceByUUID("a"), DeviceByUUID("b"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.Matches(tt.other); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	if V10.PacketTTL() != 4 || V11.PacketTTL() != 2 || V20.PacketTTL() != 2 {
		t.Error("PacketTTL() should be 4 for 1.0 and 2 otherwise")
	}
	if !V20.AtLeast(V11) || V10.AtLeast(V11) {
		t.Error("AtLeast() ordering is wrong")
	}

	for _, in := range []string{"1.1", "UPnP/1.1", "upnp/1.1"} {
		v, err := ParseVersion(in)
		if err != nil || v != V11 {
			t.Errorf("ParseVersion(%q) = %v, %v", in, v, err)
		}
	}
	if _, err := ParseVersion("3.0"); err == nil {
		t.Error("ParseVersion(3.0) should fail")
	}
}

func TestParseProductVersions(t *testing.T) {
	tests := []struct {
		in      string
		os      string
		upnp    string
		product string
		ok      bool
	}{
		{"Linux/5.10 UPnP/1.0 MiniUPnPd/2.2", "Linux/5.10", "UPnP/1.0", "MiniUPnPd/2.2", true},
		{"Linux/3.14, UPnP/1.1, Portable SDK for UPnP devices/1.6.22", "Linux/3.14", "UPnP/1.1", "Portable SDK for UPnP devices/1.6.22", true},
		{"Microsoft-Windows/10.0 UPnP/1.0", "Microsoft-Windows/10.0", "UPnP/1.0", "/", true},
		{"lighttpd/1.4", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseProductVersions(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseProductVersions() ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.OS.String() != tt.os || got.UPnP.String() != tt.upnp || got.Product.String() != tt.product {
				t.Errorf("ParseProductVersions() = %q / %q / %q", got.OS, got.UPnP, got.Product)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	saved := OperatingSystem
	defer func() { OperatingSystem = saved }()
	OperatingSystem = ProductVersion{Name: "Linux", Version: "6.1"}

	if got := UserAgent(V11, nil); got != "Linux/6.1 UPnP/1.1 muurk-ssdp/1.0" {
		t.Errorf("UserAgent(V11, nil) = %q", got)
	}
	product := &ProductVersion{Name: "Scanner", Version: "2.3"}
	if got := UserAgent(V20, product); got != "Linux/6.1 UPnP/2.0 Scanner/2.3" {
		t.Errorf("UserAgent(V20, product) = %q", got)
	}
}
