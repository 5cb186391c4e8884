package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdp/internal/monitor"
	"github.com/muurk/ssdp/internal/server"
	"github.com/muurk/ssdp/internal/ui"
)

// Monitor command flags
var (
	monTarget         string
	monMaxWait        int
	monSearchInterval time.Duration
	monSweepInterval  time.Duration
	monNoListen       bool
	monSize           int
	monServe          bool
	monHost           string
	monPort           int
	monCert           string
	monKey            string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Track the devices present on the network",
	Long: `Keep a live table of the devices on the network and print each change.

The table is filled by a periodic M-SEARCH and by NOTIFY advertisements.
A device appears on its first reply or ssdp:alive, is updated when its
location, server, boot id or config id changes, and is gone after
ssdp:byebye or when its max-age runs out.

With --serve the table is also available over HTTP:

  GET /devices   current table as JSON
  GET /ws        WebSocket: a snapshot, then one message per change
  GET /metrics   Prometheus metrics
  GET /ping      liveness check

The table lives in memory only and is lost when the command exits.`,
	Example: `  # Watch root devices, searching every 5 minutes
  ssdp monitor

  # Everything, searching every 30 seconds, served on the configured address
  ssdp monitor --target all --search-interval 30s --serve

  # Only listen, never search, serve over TLS on all addresses
  ssdp monitor --search-interval -1s --serve --host 0.0.0.0 --port 8443 --cert cert.pem --key key.pem`,
	RunE: runMonitor,
}

func init() {
	f := monitorCmd.Flags()
	f.StringVarP(&monTarget, "target", "t", "root", "Search target (ST) of the periodic search")
	f.IntVarP(&monMaxWait, "max-wait", "m", 0, "MX seconds, 1-5 (default from config)")
	f.DurationVar(&monSearchInterval, "search-interval", monitor.DefaultSearchInterval, "Time between searches (negative disables searching)")
	f.DurationVar(&monSweepInterval, "sweep-interval", monitor.DefaultSweepInterval, "Time between expiry sweeps")
	f.BoolVar(&monNoListen, "no-listen", false, "Do not listen for advertisements")
	f.IntVar(&monSize, "size", monitor.DefaultSize, "Maximum number of tracked USNs")
	f.BoolVar(&monServe, "serve", false, "Serve the device table over HTTP and WebSocket")
	f.StringVar(&monHost, "host", "", "Address to serve on (default from config)")
	f.IntVar(&monPort, "port", 0, "Port to serve on (default from config)")
	f.StringVar(&monCert, "cert", "", "TLS certificate file for --serve")
	f.StringVar(&monKey, "key", "", "TLS private key file for --serve")
	monitorCmd.MarkFlagsRequiredTogether("cert", "key")
}

// serverConfig merges the --host/--port flags over the config file.
func serverConfig() *server.Config {
	cfg := &server.Config{
		Host:     "127.0.0.1",
		Port:     server.DefaultPort,
		CertPath: monCert,
		KeyPath:  monKey,
	}
	if prefs.Server != nil {
		cfg.Host = prefs.Server.Host
		if prefs.Server.Port != 0 {
			cfg.Port = prefs.Server.Port
		}
	}
	if monHost != "" {
		cfg.Host = monHost
	}
	if monPort != 0 {
		cfg.Port = monPort
	}
	return cfg
}

func runMonitor(cmd *cobra.Command, args []string) error {
	opts, err := searchOptions(monTarget, monMaxWait)
	if err != nil {
		return err
	}
	family, err := prefs.Family()
	if err != nil {
		return err
	}

	m, err := monitor.New(monitor.Options{
		Search:         opts,
		Interface:      opts.Interface,
		Interfaces:     hostInterfaces(opts.Interface),
		IPVersion:      family,
		SearchInterval: monSearchInterval,
		SweepInterval:  monSweepInterval,
		NoListen:       monNoListen,
		Size:           monSize,
		QueueSize:      prefs.QueueSize,
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	p := ui.NewPrinter(nil)
	params := map[string]string{
		"Target":    opts.RenderedTarget(),
		"Version":   opts.Version.String(),
		"IP":        family.String(),
		"Interface": interfaceLabel(),
	}

	var srvDone chan error
	if monServe {
		srv, err := server.New(serverConfig(), m)
		if err != nil {
			return err
		}
		addr, err := srv.Listen()
		if err != nil {
			p.PrintError("Cannot serve the device table", err, []string{"Choose another address with --host and --port"})
			return errReported
		}
		scheme := "http"
		if monCert != "" {
			scheme = "https"
		}
		params["Serving"] = fmt.Sprintf("%s://%s", scheme, addr)

		srvDone = make(chan error, 1)
		go func() { srvDone <- srv.Start(ctx) }()
	}

	if outputFormat != formatJSON {
		p.PrintHeader("SSDP Monitor", "ssdp monitor", params)
	}

	events, unsubscribe := m.Subscribe(0)
	defer unsubscribe()
	supervisorDone := m.ServeBackground(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				line := ui.EventLine(ev)
				if outputFormat == formatJSON {
					data, err := jsonLine(ev)
					if err != nil {
						continue
					}
					line = data
				}
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	if outputFormat == formatJSON {
		for line := range lines {
			fmt.Println(line)
		}
	} else if err := ui.RunLive(ctx, "ssdp monitor", "Tracking devices", lines); err != nil {
		return err
	}

	stop()
	for range lines {
	}
	if err := <-supervisorDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if srvDone != nil {
		if err := <-srvDone; err != nil {
			return err
		}
	}
	return nil
}
