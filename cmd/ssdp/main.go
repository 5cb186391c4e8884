// Ssdp discovers and announces UPnP devices with the Simple Service
// Discovery Protocol.
//
// It sends M-SEARCH requests and prints the replies, listens for NOTIFY
// advertisements, announces a device of its own, and keeps a live table of
// the devices present on the network that can be served over HTTP and
// WebSocket.
//
// Usage:
//
//	ssdp [command] [flags]
//
// See 'ssdp --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/version"
)

// errReported is returned by commands that already printed a failure box.
var errReported = errors.New("failure reported")

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ssdp",
	Short: "SSDP discovery toolkit",
	Long: `Discover, watch and announce UPnP devices using SSDP.

Supports UPnP Device Architecture 1.0, 1.1 and 2.0 over IPv4 and IPv6.
Defaults come from the config file (see 'ssdp config path'); flags
override them.

Set SSDP_LOG_LEVEL or --log-level to debug, info, warn or error to see
protocol logs on stderr.`,
	Version: version.Version,
	Example: `  # Find root devices on every interface
  ssdp search

  # Find everything, waiting up to 5 seconds, as JSON
  ssdp search --target ssdp:all --max-wait 5 --format json

  # Watch advertisements on eth0
  ssdp listen --interface eth0

  # Track devices and serve the table on http://127.0.0.1:8900
  ssdp monitor --serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(logLevel); err != nil {
			return err
		}
		return loadPreferences()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	registerCommonFlags(rootCmd)

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(advertiseCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(interfacesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Runs without reading the config file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if outputFormat == formatJSON {
			return printJSON(info)
		}
		fmt.Printf("ssdp %s, product token %s\n", version.Full(), info.Product)
		return nil
	},
}
