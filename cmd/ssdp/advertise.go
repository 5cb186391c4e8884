package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdp/internal/advertise"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/ui"
	"github.com/muurk/ssdp/internal/version"
)

// Advertise command flags
var (
	advLocation   string
	advType       string
	advUUID       string
	advServices   []string
	advMaxAge     int
	advBootID     uint32
	advConfigID   uint32
	advSearchPort int
	advInterval   time.Duration
	advRepeat     int
	advNoRespond  bool
	advOnce       bool
	advByeBye     bool
	advUpdate     string
)

var advertiseCmd = &cobra.Command{
	Use:   "advertise",
	Short: "Announce a root device with NOTIFY messages",
	Long: `Announce a UPnP root device on the network.

The device is announced with ssdp:alive for the root device, its UUID, its
device type and each service, re-announced every --interval (default: half
the max-age) and withdrawn with ssdp:byebye on Ctrl+C. Unless --no-respond
is given, matching M-SEARCH requests are answered too.

--once, --byebye and --update send a single round of messages and exit.
ssdp:update needs UPnP 1.1 or later and increments the boot id.

The description document at --location is not served by this command.`,
	Example: `  # Announce a binary light until interrupted
  ssdp advertise --location http://192.168.1.5:8080/desc.xml \
    --type urn:schemas-upnp-org:device:BinaryLight:1 \
    --service urn:schemas-upnp-org:service:SwitchPower:1

  # Send one round of ssdp:alive with a fixed UUID
  ssdp advertise --once --uuid 3f8d7e2a-1111-2222-3333-444455556666 --location http://192.168.1.5/desc.xml

  # Tell control points the device moved
  ssdp advertise --uuid 3f8d7e2a-1111-2222-3333-444455556666 --boot-id 4 \
    --location http://192.168.1.5/desc.xml --update http://192.168.1.6/desc.xml`,
	RunE: runAdvertise,
}

func init() {
	f := advertiseCmd.Flags()
	f.StringVar(&advLocation, "location", "", "URL of the device description (required)")
	f.StringVar(&advType, "type", "urn:schemas-upnp-org:device:Basic:1", "Device type URN")
	f.StringVar(&advUUID, "uuid", "", "Device UUID (default: random)")
	f.StringSliceVar(&advServices, "service", nil, "Service type URN (repeatable)")
	f.IntVar(&advMaxAge, "max-age", ssdp.DefaultMaxAge, "CACHE-CONTROL max-age in seconds")
	f.Uint32Var(&advBootID, "boot-id", 1, "BOOTID.UPNP.ORG (1.1+)")
	f.Uint32Var(&advConfigID, "config-id", 0, "CONFIGID.UPNP.ORG (1.1+)")
	f.IntVar(&advSearchPort, "search-port", 0, "SEARCHPORT.UPNP.ORG when not listening on 1900 (1.1+)")
	f.DurationVar(&advInterval, "interval", 0, "Re-announce period (default: half the max-age)")
	f.IntVar(&advRepeat, "repeat", 0, "Copies of each message, for lossy networks")
	f.BoolVar(&advNoRespond, "no-respond", false, "Do not answer M-SEARCH requests")
	f.BoolVar(&advOnce, "once", false, "Send ssdp:alive once and exit")
	f.BoolVar(&advByeBye, "byebye", false, "Send ssdp:byebye once and exit")
	f.StringVar(&advUpdate, "update", "", "Send ssdp:update with this new location and exit")
	_ = advertiseCmd.MarkFlagRequired("location")
	advertiseCmd.MarkFlagsMutuallyExclusive("once", "byebye", "update")
}

// buildDevice assembles the advertised device from the flags.
func buildDevice() (advertise.Device, error) {
	deviceType, err := ssdp.ParseSearchTarget(advType)
	if err != nil {
		return advertise.Device{}, err
	}
	dev := advertise.NewDevice(deviceType, advLocation)
	if advUUID != "" {
		dev.UUID = strings.TrimPrefix(advUUID, "uuid:")
	}
	for _, s := range advServices {
		st, err := ssdp.ParseSearchTarget(s)
		if err != nil {
			return advertise.Device{}, err
		}
		dev.Services = append(dev.Services, st)
	}
	dev.MaxAge = advMaxAge
	dev.BootID = advBootID
	dev.ConfigID = advConfigID
	dev.SearchPort = advSearchPort

	product := version.Product()
	if prefs.Product != nil && !prefs.Product.IsZero() {
		product = *prefs.Product
	}
	dev.Server = &product
	return dev, dev.Validate()
}

func runAdvertise(cmd *cobra.Command, args []string) error {
	dev, err := buildDevice()
	if err != nil {
		return err
	}
	v, err := prefs.Version()
	if err != nil {
		return err
	}
	family, err := prefs.Family()
	if err != nil {
		return err
	}
	scope, err := prefs.Scope()
	if err != nil {
		return err
	}
	iface, err := resolveInterface()
	if err != nil {
		return err
	}

	p := ui.NewPrinter(nil)
	adv, err := advertise.New(dev, advertise.Options{
		Version:    v,
		Interface:  iface,
		Interfaces: hostInterfaces(iface),
		IPVersion:  family,
		IPv6Scope:  scope,
		Interval:   advInterval,
		Repeat:     advRepeat,
		Respond:    !advNoRespond,
	})
	if err != nil {
		p.PrintError("Cannot advertise", err, nil)
		return errReported
	}
	defer adv.Close()

	params := map[string]string{
		"UUID":      dev.UUID,
		"Type":      dev.DeviceType.Render(""),
		"Location":  dev.Location,
		"Version":   v.String(),
		"Interface": interfaceLabel(),
		"Messages":  strconv.Itoa(len(dev.Notifications())),
	}
	p.PrintHeader("SSDP Advertise", "ssdp advertise", params)

	switch {
	case advOnce:
		return reportOnce(p, "ssdp:alive sent", adv.Available())
	case advByeBye:
		return reportOnce(p, "ssdp:byebye sent", adv.Unavailable())
	case advUpdate != "":
		if err := adv.Update(advUpdate); err != nil {
			return reportOnce(p, "", err)
		}
		p.PrintSuccess("ssdp:update sent", map[string]string{
			"Location": advUpdate,
			"BootID":   strconv.FormatUint(uint64(adv.Device().BootID), 10),
		})
		return nil
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	p.Println(ui.StatusStyle.Render(fmt.Sprintf("  Announcing every %s. Press Ctrl+C to send ssdp:byebye and exit.", announceInterval(dev))))
	if err := adv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.PrintError("Advertising stopped", err, nil)
		return errReported
	}
	p.PrintSuccess("Device withdrawn", map[string]string{"UUID": dev.UUID})
	return nil
}

func reportOnce(p *ui.Printer, title string, err error) error {
	if err != nil {
		p.PrintError("Announcement failed", err, nil)
		return errReported
	}
	p.PrintSuccess(title, nil)
	return nil
}

func announceInterval(dev advertise.Device) time.Duration {
	if advInterval > 0 {
		return advInterval
	}
	maxAge := dev.MaxAge
	if maxAge <= 0 {
		maxAge = ssdp.DefaultMaxAge
	}
	return time.Duration(maxAge) * time.Second / 2
}
