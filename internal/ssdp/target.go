package ssdp

import (
	"fmt"
	"strings"
)

// TargetKind identifies the variant of a SearchTarget.
type TargetKind int

const (
	TargetAll TargetKind = iota
	TargetRootDevices
	TargetDeviceByUUID
	TargetDeviceByType
	TargetServiceByType
)

// String returns a human-readable representation of the kind
func (k TargetKind) String() string {
	switch k {
	case TargetAll:
		return "All"
	case TargetRootDevices:
		return "RootDevices"
	case TargetDeviceByUUID:
		return "DeviceByUUID"
	case TargetDeviceByType:
		return "DeviceByType"
	case TargetServiceByType:
		return "ServiceByType"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

// SearchTarget is the value of an ST (search) or NT (notify) header.
//
// Only the fields relevant to Kind are used: UUID for DeviceByUUID, and
// Domain/Type/Version for the two type variants. An empty Domain means the
// standard schemas-upnp-org domain.
type SearchTarget struct {
	Kind    TargetKind
	UUID    string
	Domain  string
	Type    string
	Version string
}

// All matches every device and service ("ssdp:all").
func All() SearchTarget {
	return SearchTarget{Kind: TargetAll}
}

// RootDevices matches root devices only ("upnp:rootdevice").
func RootDevices() SearchTarget {
	return SearchTarget{Kind: TargetRootDevices}
}

// DeviceByUUID matches one device instance ("uuid:{id}").
func DeviceByUUID(id string) SearchTarget {
	return SearchTarget{Kind: TargetDeviceByUUID, UUID: strings.TrimPrefix(id, "uuid:")}
}

// DeviceByType matches a device type ("urn:{domain}:device:{type}:{ver}").
func DeviceByType(domain, typ, version string) SearchTarget {
	return SearchTarget{Kind: TargetDeviceByType, Domain: domain, Type: typ, Version: version}
}

// ServiceByType matches a service type ("urn:{domain}:service:{type}:{ver}").
func ServiceByType(domain, typ, version string) SearchTarget {
	return SearchTarget{Kind: TargetServiceByType, Domain: domain, Type: typ, Version: version}
}

// Render returns the header value. A non-empty domainOverride replaces the
// target's own domain; with neither set, DefaultDomain is used.
func (t SearchTarget) Render(domainOverride string) string {
	switch t.Kind {
	case TargetAll:
		return "ssdp:all"
	case TargetRootDevices:
		return "upnp:rootdevice"
	case TargetDeviceByUUID:
		return "uuid:" + t.UUID
	case TargetDeviceByType:
		return fmt.Sprintf("urn:%s:device:%s:%s", t.domain(domainOverride), t.Type, t.Version)
	case TargetServiceByType:
		return fmt.Sprintf("urn:%s:service:%s:%s", t.domain(domainOverride), t.Type, t.Version)
	default:
		return ""
	}
}

func (t SearchTarget) domain(override string) string {
	if override != "" {
		return override
	}
	if t.Domain != "" {
		return t.Domain
	}
	return DefaultDomain
}

// String renders the target with no domain override.
func (t SearchTarget) String() string {
	return t.Render("")
}

// Validate checks that the fields required by Kind are present.
func (t SearchTarget) Validate() error {
	switch t.Kind {
	case TargetAll, TargetRootDevices:
		return nil
	case TargetDeviceByUUID:
		if t.UUID == "" {
			return fmt.Errorf("%w: device UUID is empty", ErrInvalidOption)
		}
		return nil
	case TargetDeviceByType, TargetServiceByType:
		if t.Type == "" || t.Version == "" {
			return fmt.Errorf("%w: %s needs a type and version", ErrInvalidOption, t.Kind)
		}
		if strings.Contains(t.Type, ":") || strings.Contains(t.Version, ":") {
			return fmt.Errorf("%w: type and version must not contain ':'", ErrInvalidOption)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown target kind %d", ErrInvalidOption, int(t.Kind))
	}
}

// ParseSearchTarget parses an ST or NT header value.
func ParseSearchTarget(s string) (SearchTarget, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "ssdp:all":
		return All(), nil
	case s == "upnp:rootdevice":
		return RootDevices(), nil
	case strings.HasPrefix(s, "uuid:") && len(s) > len("uuid:"):
		return DeviceByUUID(s[len("uuid:"):]), nil
	case strings.HasPrefix(s, "urn:"):
		// urn:{domain}:{device|service}:{type}:{version}
		parts := strings.Split(s, ":")
		if len(parts) != 5 || parts[1] == "" || parts[3] == "" || parts[4] == "" {
			return SearchTarget{}, fmt.Errorf("malformed URN %q", s)
		}
		switch parts[2] {
		case "device":
			return DeviceByType(parts[1], parts[3], parts[4]), nil
		case "service":
			return ServiceByType(parts[1], parts[3], parts[4]), nil
		}
		return SearchTarget{}, fmt.Errorf("URN %q is neither a device nor a service type", s)
	default:
		return SearchTarget{}, fmt.Errorf("unrecognized search target %q", s)
	}
}

// Matches reports whether an ST/NT value received from a device answers
// this target. All matches everything; type targets match the same domain
// and type with a version at least as new, since UDA requires devices to
// respond to searches for older versions of the types they implement.
func (t SearchTarget) Matches(other SearchTarget) bool {
	switch t.Kind {
	case TargetAll:
		return true
	case TargetRootDevices, TargetDeviceByUUID:
		return t == other
	case TargetDeviceByType, TargetServiceByType:
		if other.Kind != t.Kind || other.Type != t.Type || t.domain("") != other.domain("") {
			return false
		}
		return compareTypeVersion(other.Version, t.Version) >= 0
	default:
		return false
	}
}

func compareTypeVersion(a, b string) int {
	var ai, bi int
	_, errA := fmt.Sscanf(a, "%d", &ai)
	_, errB := fmt.Sscanf(b, "%d", &bi)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	}
	return 0
}
