package monitor

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/muurk/ssdp/internal/ssdp"
)

// EventType is the kind of presence change.
type EventType int

const (
	Appeared EventType = iota
	Updated
	Gone
)

// String returns the lower-case name used in JSON and metric labels
func (t EventType) String() string {
	switch t {
	case Appeared:
		return "appeared"
	case Updated:
		return "updated"
	case Gone:
		return "gone"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// MarshalText renders the type by name
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a type name
func (t *EventType) UnmarshalText(text []byte) error {
	for _, v := range []EventType{Appeared, Updated, Gone} {
		if v.String() == string(text) {
			*t = v
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", text)
}

// Source records which path last refreshed a device.
type Source string

const (
	SourceSearch        Source = "search"
	SourceAdvertisement Source = "advertisement"
)

// Device is the tracked state of one USN.
type Device struct {
	USN       string         `json:"usn"`
	UUID      string         `json:"uuid"`
	Target    string         `json:"target"` // NT or ST
	Location  string         `json:"location"`
	Server    string         `json:"server,omitempty"`
	BootID    *uint32        `json:"boot_id,omitempty"`
	ConfigID  *uint32        `json:"config_id,omitempty"`
	From      netip.AddrPort `json:"from"`
	Source    Source         `json:"source"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`
	ExpiresAt time.Time      `json:"expires_at"` // zero until known, see upsert
}

// changed reports whether other carries information a subscriber cares
// about, as opposed to a plain refresh of the same announcement.
func (d Device) changed(other Device) bool {
	return d.Location != other.Location ||
		d.Server != other.Server ||
		!sameID(d.BootID, other.BootID) ||
		!sameID(d.ConfigID, other.ConfigID)
}

func sameID(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Event is one presence change delivered to subscribers.
type Event struct {
	Type   EventType `json:"type"`
	Device Device    `json:"device"`
	At     time.Time `json:"at"`
}

// String returns a debug representation of the event
func (e Event) String() string {
	return fmt.Sprintf("Event{%s, USN: %s, Location: %s}", e.Type, e.Device.USN, e.Device.Location)
}

func fromResponse(r *ssdp.SearchResponse, now time.Time) Device {
	seen := r.ReceivedAt
	if seen.IsZero() {
		seen = now
	}
	return Device{
		USN:       r.USN,
		UUID:      r.DeviceUUID(),
		Target:    r.ST,
		Location:  r.Location,
		Server:    r.Server,
		BootID:    r.BootID,
		ConfigID:  r.ConfigID,
		From:      r.From,
		Source:    SourceSearch,
		FirstSeen: seen,
		LastSeen:  seen,
		ExpiresAt: seen.Add(r.MaxAge),
	}
}

func fromAdvertisement(a *ssdp.Advertisement, now time.Time) Device {
	seen := a.ReceivedAt
	if seen.IsZero() {
		seen = now
	}
	bootID := a.BootID
	if a.Kind == ssdp.Update && a.NextBootID != nil {
		bootID = a.NextBootID
	}
	dev := Device{
		USN:       a.USN,
		UUID:      a.DeviceUUID(),
		Target:    a.NT,
		Location:  a.Location,
		Server:    a.Server,
		BootID:    bootID,
		ConfigID:  a.ConfigID,
		From:      a.From,
		Source:    SourceAdvertisement,
		FirstSeen: seen,
		LastSeen:  seen,
	}
	// ssdp:update carries no CACHE-CONTROL.
	if a.MaxAge > 0 {
		dev.ExpiresAt = seen.Add(a.MaxAge)
	}
	return dev
}
