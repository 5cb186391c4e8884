package ssdp

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/netif"
)

var (
	// ErrInvalidOption is wrapped by every options validation failure.
	ErrInvalidOption = errors.New("invalid search option")
	// ErrUnsupportedVersion is returned for operations the selected UPnP
	// version does not define, such as unicast search on 1.0.
	ErrUnsupportedVersion = errors.New("operation not supported by this UPnP version")
)

// ControlPoint identifies the searching control point. FriendlyName is sent
// as CPFN.UPNP.ORG and is mandatory for 2.0; UUID and Port are optional 2.0
// extras (CPUUID.UPNP.ORG and TCPPORT.UPNP.ORG).
type ControlPoint struct {
	FriendlyName string `json:"friendly_name" yaml:"friendly_name"`
	UUID         string `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	Port         int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// SearchOptions configures one search. It is built by the caller and not
// modified by the search.
type SearchOptions struct {
	Version        Version          // Protocol version; selects gated headers
	Target         SearchTarget     // What to search for
	Interface      *netif.Interface // nil searches every eligible interface
	IPVersion      netif.Family     // IPv4 or IPv6
	IPv6Scope      IPv6Scope        // Link-local (default) or site-local group for IPv6
	MaxWait        int              // MX seconds, clamped to [1,5]
	DomainOverride string           // Replaces the URN domain when set
	PacketTTL      int              // Multicast TTL; 0 uses the version default
	Product        *ProductVersion  // USER-AGENT product token; nil uses DefaultProduct
	ControlPoint   *ControlPoint    // Required for 2.0
}

// DefaultSearchOptions returns options for a root device search on IPv4
// with the version's default TTL and a two second wait.
func DefaultSearchOptions(v Version) SearchOptions {
	return SearchOptions{
		Version:   v,
		Target:    RootDevices(),
		IPVersion: netif.IPv4,
		MaxWait:   DefaultMaxWait,
		PacketTTL: v.PacketTTL(),
	}
}

// ForControlPoint returns 2.0 defaults carrying the given control point.
func ForControlPoint(cp ControlPoint) SearchOptions {
	opts := DefaultSearchOptions(V20)
	opts.ControlPoint = &cp
	return opts
}

// Validate checks the options against the version's requirements. An MX
// above the protocol ceiling is not an error; see EffectiveMaxWait.
func (o SearchOptions) Validate() error {
	if o.Version < V10 || o.Version > V20 {
		return fmt.Errorf("%w: unknown version %d", ErrInvalidOption, int(o.Version))
	}
	if o.MaxWait < MinMaxWait {
		return fmt.Errorf("%w: max wait must be at least %d second(s), got %d", ErrInvalidOption, MinMaxWait, o.MaxWait)
	}
	if o.PacketTTL < 0 || o.PacketTTL > 255 {
		return fmt.Errorf("%w: packet TTL %d out of range", ErrInvalidOption, o.PacketTTL)
	}
	if err := o.Target.Validate(); err != nil {
		return err
	}
	if o.Version >= V11 && o.Product != nil {
		if err := o.Product.Validate(); err != nil {
			return err
		}
	}
	if o.Version >= V20 {
		if o.ControlPoint == nil {
			return fmt.Errorf("%w: UPnP 2.0 requires a control point", ErrInvalidOption)
		}
		if o.ControlPoint.FriendlyName == "" {
			return fmt.Errorf("%w: control point friendly name is required", ErrInvalidOption)
		}
		if o.ControlPoint.Port < 0 || o.ControlPoint.Port > 65535 {
			return fmt.Errorf("%w: control point port %d out of range", ErrInvalidOption, o.ControlPoint.Port)
		}
	}
	return nil
}

// EffectiveMaxWait returns MaxWait clamped to the protocol range [1,5].
func (o SearchOptions) EffectiveMaxWait() int {
	switch {
	case o.MaxWait > MaxMaxWait:
		return MaxMaxWait
	case o.MaxWait < MinMaxWait:
		return MinMaxWait
	default:
		return o.MaxWait
	}
}

// warnIfClamped logs when the requested MX was shortened, so a caller asking
// for a longer window learns about it.
func (o SearchOptions) warnIfClamped() {
	if o.MaxWait > MaxMaxWait {
		logging.Warn("MX above protocol ceiling, clamping",
			zap.Int("requested", o.MaxWait),
			zap.Int("used", MaxMaxWait),
		)
	}
}

// EffectiveTTL returns PacketTTL, or the version default when unset.
func (o SearchOptions) EffectiveTTL() int {
	if o.PacketTTL > 0 {
		return o.PacketTTL
	}
	return o.Version.PacketTTL()
}

// RenderedTarget returns the ST value for these options.
func (o SearchOptions) RenderedTarget() string {
	return o.Target.Render(o.DomainOverride)
}

// friendlyName is the CPFN value: the control point's name, or the product
// name when no control point was configured (1.1 only).
func (o SearchOptions) friendlyName() string {
	if o.ControlPoint != nil && o.ControlPoint.FriendlyName != "" {
		return o.ControlPoint.FriendlyName
	}
	if o.Product != nil && o.Product.Name != "" {
		return o.Product.Name
	}
	return DefaultProduct().Name
}
