package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdp/internal/search"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/ui"
)

// Search command flags
var (
	searchTarget   string
	searchMaxWait  int
	searchTTL      int
	searchDevice   string
	searchRounds   int
	searchInterval time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Send an M-SEARCH and print the replies",
	Long: `Send an SSDP M-SEARCH request and print every reply received within
the MX window.

The search always waits the full window; devices are expected to reply at a
random moment within it. Press q (or Ctrl+C) to stop early and keep the
replies received so far.

Targets are ssdp:all, upnp:rootdevice, uuid:<id>,
urn:<domain>:device:<type>:<ver> or urn:<domain>:service:<type>:<ver>.
"all" and "root" are accepted as shortcuts.

With --device the request is sent unicast to one device (UPnP 1.1 or later).
With --rounds the search is repeated and the replies merged by USN.`,
	Example: `  # Root devices on every interface
  ssdp search

  # Every device and service, one line each
  ssdp search --target all --format compact

  # Media renderers over IPv6, UPnP 2.0
  ssdp search -t urn:schemas-upnp-org:device:MediaRenderer:1 --ip-version 6 --spec-version 2.0

  # Ask one device directly
  ssdp search --device 192.168.1.70:1900 --target all

  # Three searches five seconds apart, merged
  ssdp search --rounds 3 --interval 5s`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchTarget, "target", "t", "root", "Search target (ST)")
	searchCmd.Flags().IntVarP(&searchMaxWait, "max-wait", "m", 0, "MX seconds, 1-5 (default from config)")
	searchCmd.Flags().IntVar(&searchTTL, "ttl", 0, "Multicast TTL (default: 4 for 1.0, 2 otherwise)")
	searchCmd.Flags().StringVar(&searchDevice, "device", "", "Unicast the search to this address (ip:port, port defaults to 1900)")
	searchCmd.Flags().IntVar(&searchRounds, "rounds", 1, "Number of searches to run and merge")
	searchCmd.Flags().DurationVar(&searchInterval, "interval", 2*time.Second, "Pause between rounds")
}

func runSearch(cmd *cobra.Command, args []string) error {
	opts, err := searchOptions(searchTarget, searchMaxWait)
	if err != nil {
		return err
	}
	if searchTTL > 0 {
		opts.PacketTTL = searchTTL
	}
	if searchRounds < 1 {
		return fmt.Errorf("--rounds must be at least 1, got %d", searchRounds)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	searcher := search.New()
	window := time.Duration(opts.EffectiveMaxWait()) * time.Second
	params := map[string]string{
		"Target":    opts.RenderedTarget(),
		"Version":   opts.Version.String(),
		"IP":        opts.IPVersion.String(),
		"MX":        strconv.Itoa(opts.EffectiveMaxWait()) + "s",
		"Interface": interfaceLabel(),
	}

	var fn ui.SearchFunc
	switch {
	case searchDevice != "":
		device, err := parseDeviceAddr(searchDevice)
		if err != nil {
			return err
		}
		params["Device"] = device.String()
		fn = func(ctx context.Context) ([]*ssdp.SearchResponse, error) {
			return searcher.SearchDevice(ctx, opts, device)
		}

	case searchRounds > 1:
		cache, err := search.NewCache(searcher, opts, 0, 0)
		if err != nil {
			return err
		}
		params["Rounds"] = strconv.Itoa(searchRounds)
		window = time.Duration(searchRounds)*window + time.Duration(searchRounds-1)*searchInterval
		fn = func(ctx context.Context) ([]*ssdp.SearchResponse, error) {
			return searchRepeatedly(ctx, cache, searchRounds, searchInterval)
		}

	default:
		fn = func(ctx context.Context) ([]*ssdp.SearchResponse, error) {
			return searcher.Search(ctx, opts)
		}
	}

	if outputFormat == formatJSON {
		responses, err := fn(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return printJSON(responses)
	}

	p := ui.NewPrinter(nil)
	p.PrintHeader("SSDP Search", "ssdp search", params)

	responses, err := ui.RunSearch(ctx, fmt.Sprintf("Searching for %s", opts.RenderedTarget()), window, fn)
	stopped := errors.Is(err, context.Canceled)
	if err != nil && !stopped {
		p.PrintError("Search failed", err, nil)
		return errReported
	}

	if len(responses) == 0 {
		p.PrintWarning("No devices replied", map[string]string{
			"Waited": window.String(),
			"Target": opts.RenderedTarget(),
		})
		return nil
	}

	p.PrintResponses(responses, outputFormat == formatDetailed)
	details := map[string]string{"Replies": strconv.Itoa(len(responses))}
	if stopped {
		details["Note"] = "stopped before the window ended"
	}
	p.PrintSuccess("Search complete", details)
	return nil
}

// searchRepeatedly refreshes cache rounds times and returns the merged set.
func searchRepeatedly(ctx context.Context, cache *search.Cache, rounds int, interval time.Duration) ([]*ssdp.SearchResponse, error) {
	for i := 0; i < rounds; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return cache.Responses(), ctx.Err()
			case <-time.After(interval):
			}
		}
		if _, err := cache.Refresh(ctx); err != nil {
			return cache.Responses(), err
		}
	}
	return cache.Responses(), nil
}

// parseDeviceAddr parses ip:port, or a bare ip on the SSDP port.
func parseDeviceAddr(s string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid device address %q (expected ip or ip:port)", s)
	}
	return netip.AddrPortFrom(addr, ssdp.Port), nil
}
