package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/config"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/version"
)

// Output formats
const (
	formatDetailed = "detailed"
	formatCompact  = "compact"
	formatJSON     = "json"
)

// Common flags. Empty values fall back to the config file.
var (
	logLevel     string
	specVersion  string
	ipVersion    string
	ipv6Scope    string
	ifaceName    string
	domain       string
	outputFormat string

	// prefs holds the config file preferences with the common flags applied.
	prefs *config.Preferences
)

func registerCommonFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from SSDP_LOG_LEVEL, else silent")
	pf.StringVar(&specVersion, "spec-version", "", "UPnP device architecture version (1.0, 1.1, 2.0)")
	pf.StringVar(&ipVersion, "ip-version", "", "IP version (4 or 6)")
	pf.StringVar(&ipv6Scope, "ipv6-scope", "", "IPv6 multicast scope (link or site)")
	pf.StringVarP(&ifaceName, "interface", "i", "", "Network interface name (default: every eligible interface)")
	pf.StringVar(&domain, "domain", "", "Domain to use in place of schemas-upnp-org in URN targets")
	pf.StringVarP(&outputFormat, "format", "f", formatDetailed, "Output format (detailed, compact, json)")
}

// loadPreferences reads the config file and applies the common flags over it.
func loadPreferences() error {
	reg, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	p := *reg.Preferences
	if specVersion != "" {
		p.SpecVersion = specVersion
	}
	if ipVersion != "" {
		p.IPVersion = ipVersion
	}
	if ipv6Scope != "" {
		p.IPv6Scope = ipv6Scope
	}
	if ifaceName != "" {
		p.Interface = ifaceName
	}
	if domain != "" {
		p.Domain = domain
	}
	if err := p.Validate(); err != nil {
		return err
	}

	switch outputFormat {
	case formatDetailed, formatCompact, formatJSON:
	default:
		return fmt.Errorf("unknown output format %q (expected detailed, compact or json)", outputFormat)
	}

	prefs = &p
	return nil
}

// parseTarget accepts an ST value or the shortcuts "all" and "root".
func parseTarget(s string) (ssdp.SearchTarget, error) {
	switch strings.ToLower(s) {
	case "", "root", "rootdevice":
		return ssdp.RootDevices(), nil
	case "all":
		return ssdp.All(), nil
	}
	return ssdp.ParseSearchTarget(s)
}

// resolveInterface looks up the configured interface; nil means all.
func resolveInterface() (*netif.Interface, error) {
	if prefs.Interface == "" {
		return nil, nil
	}
	ifi, err := netif.Lookup(prefs.Interface)
	if err != nil {
		return nil, err
	}
	return &ifi, nil
}

// hostInterfaces lists the host's interfaces for joining the group when no
// interface is configured. A listing failure leaves the OS default.
func hostInterfaces(iface *netif.Interface) []netif.Interface {
	if iface != nil {
		return nil
	}
	list, err := netif.List()
	if err != nil {
		logging.Warn("Cannot list network interfaces", zap.Error(err))
		return nil
	}
	return list
}

// searchOptions builds search options from the preferences, a target and
// an MX override (0 keeps the configured value).
func searchOptions(target string, mx int) (ssdp.SearchOptions, error) {
	opts, err := prefs.SearchOptions()
	if err != nil {
		return opts, err
	}
	if opts.Target, err = parseTarget(target); err != nil {
		return opts, err
	}
	if mx != 0 {
		opts.MaxWait = mx
	}
	if opts.Product == nil {
		product := version.Product()
		opts.Product = &product
	}
	if opts.Version == ssdp.V20 && opts.ControlPoint == nil {
		opts.ControlPoint = &ssdp.ControlPoint{FriendlyName: config.DefaultFriendlyName()}
	}
	if opts.Interface, err = resolveInterface(); err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

// interfaceLabel names the interface selection for headers.
func interfaceLabel() string {
	if prefs.Interface == "" {
		return "all eligible"
	}
	return prefs.Interface
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// jsonLine renders v as one line of JSON.
func jsonLine(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}
