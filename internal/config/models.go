package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
)

// CurrentVersion is the config file format version.
const CurrentVersion = 1

// Registry represents the entire user configuration file.
// It stores preferences only; discovered devices are never written to disk.
type Registry struct {
	Version     int          `yaml:"version"`
	Preferences *Preferences `yaml:"preferences,omitempty"`
}

// Preferences are the defaults the CLI applies before its flags.
type Preferences struct {
	SpecVersion  string               `yaml:"spec_version"`            // "1.0", "1.1" or "2.0"
	MaxWait      int                  `yaml:"max_wait"`                // MX seconds, 1-5
	IPVersion    string               `yaml:"ip_version"`              // "4" or "6"
	IPv6Scope    string               `yaml:"ipv6_scope,omitempty"`    // "link" (default) or "site"
	Interface    string               `yaml:"interface,omitempty"`     // empty searches every interface
	Domain       string               `yaml:"domain,omitempty"`        // URN domain override
	Product      *ssdp.ProductVersion `yaml:"product,omitempty"`       // USER-AGENT product token
	ControlPoint *ssdp.ControlPoint   `yaml:"control_point,omitempty"` // required for 2.0 searches
	QueueSize    int                  `yaml:"queue_size"`              // listener queue
	Server       *ServerPrefs         `yaml:"server,omitempty"`        // monitor feed address
}

// ServerPrefs is where `ssdp monitor --serve` listens.
type ServerPrefs struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultPreferences returns the built-in defaults.
func DefaultPreferences() *Preferences {
	return &Preferences{
		SpecVersion: ssdp.V11.String(),
		MaxWait:     ssdp.DefaultMaxWait,
		IPVersion:   "4",
		QueueSize:   64,
		Server: &ServerPrefs{
			Host: "127.0.0.1",
			Port: 8900,
		},
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     CurrentVersion,
		Preferences: DefaultPreferences(),
	}
}

// EnsureControlPoint returns the control point identity, creating one with
// the given friendly name and a random CPUUID if none is stored.
func (r *Registry) EnsureControlPoint(friendlyName string) *ssdp.ControlPoint {
	if r.Preferences == nil {
		r.Preferences = DefaultPreferences()
	}
	cp := r.Preferences.ControlPoint
	if cp == nil {
		cp = &ssdp.ControlPoint{}
		r.Preferences.ControlPoint = cp
	}
	if cp.FriendlyName == "" {
		cp.FriendlyName = friendlyName
	}
	if cp.UUID == "" {
		cp.UUID = uuid.NewString()
	}
	return cp
}

// Version parses SpecVersion.
func (p *Preferences) Version() (ssdp.Version, error) {
	if p.SpecVersion == "" {
		return ssdp.V11, nil
	}
	return ssdp.ParseVersion(p.SpecVersion)
}

// Family parses IPVersion.
func (p *Preferences) Family() (netif.Family, error) {
	return netif.ParseFamily(p.IPVersion)
}

// Scope parses IPv6Scope.
func (p *Preferences) Scope() (ssdp.IPv6Scope, error) {
	switch strings.ToLower(p.IPv6Scope) {
	case "", "link", "link-local":
		return ssdp.ScopeLinkLocal, nil
	case "site", "site-local":
		return ssdp.ScopeSiteLocal, nil
	default:
		return ssdp.ScopeLinkLocal, fmt.Errorf("unknown IPv6 scope %q (expected link or site)", p.IPv6Scope)
	}
}

// SearchOptions builds search options from the preferences. The interface
// is left unset; resolving its name needs the host's interface list.
func (p *Preferences) SearchOptions() (ssdp.SearchOptions, error) {
	v, err := p.Version()
	if err != nil {
		return ssdp.SearchOptions{}, err
	}
	family, err := p.Family()
	if err != nil {
		return ssdp.SearchOptions{}, err
	}
	scope, err := p.Scope()
	if err != nil {
		return ssdp.SearchOptions{}, err
	}

	opts := ssdp.DefaultSearchOptions(v)
	opts.IPVersion = family
	opts.IPv6Scope = scope
	opts.DomainOverride = p.Domain
	if p.MaxWait != 0 {
		opts.MaxWait = p.MaxWait
	}
	if p.Product != nil && !p.Product.IsZero() {
		product := *p.Product
		opts.Product = &product
	}
	if p.ControlPoint != nil {
		cp := *p.ControlPoint
		opts.ControlPoint = &cp
	}
	return opts, nil
}

// Validate checks every field that has a fixed set of values.
func (p *Preferences) Validate() error {
	if _, err := p.SearchOptions(); err != nil {
		return err
	}
	if p.MaxWait < 0 {
		return fmt.Errorf("max_wait must not be negative, got %d", p.MaxWait)
	}
	if p.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative, got %d", p.QueueSize)
	}
	if p.Product != nil && !p.Product.IsZero() {
		if err := p.Product.Validate(); err != nil {
			return err
		}
	}
	if p.Server != nil && (p.Server.Port < 0 || p.Server.Port > 65535) {
		return fmt.Errorf("server port %d out of range", p.Server.Port)
	}
	return nil
}
