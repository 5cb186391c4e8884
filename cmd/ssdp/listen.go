package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdp/internal/listener"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/ui"
)

// Listen command flags
var (
	listenQueue  int
	listenFilter string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print NOTIFY advertisements as they arrive",
	Long: `Join the SSDP multicast group and print every ssdp:alive, ssdp:byebye
and ssdp:update advertisement received until interrupted.

Advertisements are queued while the screen catches up; when the queue is
full the newest ones are dropped. UPnP 1.0 listeners ignore ssdp:update.`,
	Example: `  # Everything on every interface
  ssdp listen

  # Only one device type, as JSON lines
  ssdp listen --nt urn:schemas-upnp-org:device:MediaServer:1 --format json

  # IPv6 site-local group on eth0
  ssdp listen --ip-version 6 --ipv6-scope site -i eth0`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().IntVar(&listenQueue, "queue", 0, "Advertisement queue size (default from config)")
	listenCmd.Flags().StringVar(&listenFilter, "nt", "", "Only show advertisements whose NT matches this target")
}

func runListen(cmd *cobra.Command, args []string) error {
	v, err := prefs.Version()
	if err != nil {
		return err
	}
	family, err := prefs.Family()
	if err != nil {
		return err
	}
	iface, err := resolveInterface()
	if err != nil {
		return err
	}

	var filter *ssdp.SearchTarget
	if listenFilter != "" {
		t, err := parseTarget(listenFilter)
		if err != nil {
			return err
		}
		filter = &t
	}

	queue := listenQueue
	if queue == 0 {
		queue = prefs.QueueSize
	}

	l, err := listener.Start(listener.Options{
		Version:    v,
		Interface:  iface,
		Interfaces: hostInterfaces(iface),
		IPVersion:  family,
		QueueSize:  queue,
	})
	if err != nil {
		ui.NewPrinter(nil).PrintError("Listener failed to start", err, nil)
		return errReported
	}
	defer l.Stop()

	ctx, stop := signalContext(cmd)
	defer stop()

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			a, err := l.Next(ctx)
			if err != nil {
				errc <- err
				return
			}
			if filter != nil && !advertisementMatches(*filter, a) {
				continue
			}
			line := ui.AdvertisementLine(a)
			if outputFormat == formatJSON {
				data, err := jsonLine(a)
				if err != nil {
					continue
				}
				line = data
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	if outputFormat == formatJSON {
		for line := range lines {
			fmt.Println(line)
		}
	} else {
		status := "Listening on " + interfaceLabel() + " (" + family.String() + ", UPnP " + v.String() + ")"
		if err := ui.RunLive(ctx, "ssdp listen", status, lines); err != nil {
			return err
		}
	}

	// The view may end first; stop the reader and wait for it.
	stop()
	for range lines {
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, listener.ErrClosed) {
		return err
	}
	return nil
}

// advertisementMatches reports whether a NOTIFY's NT answers the filter.
// ssdp:byebye carries no location but still has its NT.
func advertisementMatches(filter ssdp.SearchTarget, a *ssdp.Advertisement) bool {
	nt, err := ssdp.ParseSearchTarget(a.NT)
	if err != nil {
		return false
	}
	return filter.Matches(nt)
}
