package main

import (
	"github.com/spf13/cobra"

	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ui"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List network interfaces and whether SSDP can use them",
	Long: `List the host's network interfaces with their flags and addresses.

An interface is eligible when it is up, multicast-capable, not a loopback
device and has an address of the selected IP version. Searches without
--interface use every eligible interface.`,
	Example: `  ssdp interfaces
  ssdp interfaces --ip-version 6 --format json`,
	RunE: runInterfaces,
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	family, err := prefs.Family()
	if err != nil {
		return err
	}
	list, err := netif.List()
	if err != nil {
		return err
	}

	if outputFormat == formatJSON {
		type entry struct {
			netif.Interface
			Eligible bool `json:"eligible"`
		}
		out := make([]entry, 0, len(list))
		for _, ifi := range list {
			out = append(out, entry{Interface: ifi, Eligible: ifi.Eligible(family)})
		}
		return printJSON(out)
	}

	p := ui.NewPrinter(nil)
	if outputFormat == formatDetailed {
		p.PrintHeader("Network Interfaces", "ssdp interfaces", map[string]string{"IP": family.String()})
	}
	for _, ifi := range list {
		p.Println(ui.InterfaceLine(ifi, family))
	}
	if outputFormat == formatDetailed && len(netif.Eligible(list, family)) == 0 {
		p.PrintWarning("No eligible interface", map[string]string{"IP": family.String()})
	}
	return nil
}
