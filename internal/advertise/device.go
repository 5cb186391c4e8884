package advertise

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/muurk/ssdp/internal/ssdp"
)

// Device describes the root device being advertised.
type Device struct {
	UUID       string              // without the "uuid:" prefix
	DeviceType ssdp.SearchTarget   // Kind must be TargetDeviceByType
	Services   []ssdp.SearchTarget // Kind must be TargetServiceByType
	Location   string              // URL of the device description
	MaxAge     int                 // seconds, 0 uses ssdp.DefaultMaxAge
	BootID     uint32
	ConfigID   uint32
	SearchPort int // 1.1+, 0 when the device only listens on 1900
	Server     *ssdp.ProductVersion
}

// NewDevice returns a device of the given type with a fresh random UUID.
func NewDevice(deviceType ssdp.SearchTarget, location string) Device {
	return Device{
		UUID:       uuid.NewString(),
		DeviceType: deviceType,
		Location:   location,
		MaxAge:     ssdp.DefaultMaxAge,
		BootID:     1,
	}
}

// Validate checks the fields every notification needs.
func (d Device) Validate() error {
	if d.UUID == "" {
		return fmt.Errorf("%w: device UUID is required", ssdp.ErrInvalidOption)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(d.UUID, "uuid:")); err != nil {
		return fmt.Errorf("%w: device UUID %q: %v", ssdp.ErrInvalidOption, d.UUID, err)
	}
	if d.Location == "" {
		return fmt.Errorf("%w: device location is required", ssdp.ErrInvalidOption)
	}
	if d.DeviceType.Kind != ssdp.TargetDeviceByType {
		return fmt.Errorf("%w: device type must be a device URN, got %s", ssdp.ErrInvalidOption, d.DeviceType.Kind)
	}
	if err := d.DeviceType.Validate(); err != nil {
		return err
	}
	for _, s := range d.Services {
		if s.Kind != ssdp.TargetServiceByType {
			return fmt.Errorf("%w: service %s is not a service URN", ssdp.ErrInvalidOption, s)
		}
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Pair is one NT value and the USN that goes with it.
type Pair struct {
	NT  string
	USN string
}

// Notifications lists the NT/USN pairs a root device announces: the root
// device, the bare UUID, the device type, then each service type.
func (d Device) Notifications() []Pair {
	id := "uuid:" + strings.TrimPrefix(d.UUID, "uuid:")
	rootdevice := ssdp.RootDevices().Render("")
	deviceType := d.DeviceType.Render("")

	pairs := []Pair{
		{NT: rootdevice, USN: id + "::" + rootdevice},
		{NT: id, USN: id},
		{NT: deviceType, USN: id + "::" + deviceType},
	}
	for _, s := range d.Services {
		st := s.Render("")
		pairs = append(pairs, Pair{NT: st, USN: id + "::" + st})
	}
	return pairs
}

// Matching returns the pairs that answer a search for target, each with the
// ST to reply with. For ssdp:all every pair answers with its own NT; for a
// type search the reply echoes the requested ST.
func (d Device) Matching(target ssdp.SearchTarget, st string) []Pair {
	var out []Pair
	for _, p := range d.Notifications() {
		nt, err := ssdp.ParseSearchTarget(p.NT)
		if err != nil || !target.Matches(nt) {
			continue
		}
		if target.Kind == ssdp.TargetAll {
			out = append(out, p)
			continue
		}
		out = append(out, Pair{NT: st, USN: p.USN})
	}
	return out
}

func (d Device) maxAge() int {
	if d.MaxAge <= 0 {
		return ssdp.DefaultMaxAge
	}
	return d.MaxAge
}
