package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/muurk/ssdp/internal/monitor"
	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/transport"
)

// Printer writes styled output for the ssdp commands.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Println(NewResult(ResultSuccess, title).WithDetails(details).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details map[string]string) {
	p.Println(NewResult(ResultWarning, title).WithDetails(details).SetWidth(p.width).Render())
}

// PrintError prints an error result box. Tips for known transport and
// option errors are added to the given ones.
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	tips := append(append([]string(nil), troubleshooting...), Troubleshoot(err)...)
	p.Println(NewResult(ResultFailure, title).WithError(err, tips).SetWidth(p.width).Render())
}

// PrintResponses prints search responses, one card each when detailed is
// set and one line each otherwise.
func (p *Printer) PrintResponses(responses []*ssdp.SearchResponse, detailed bool) {
	for _, r := range responses {
		if detailed {
			p.Println(RenderResponse(r, p.width))
		} else {
			p.Println(ResponseLine(r))
		}
	}
}

// RenderResponse renders one search response as a device card.
func RenderResponse(r *ssdp.SearchResponse, width int) string {
	details := map[string]string{
		"ST":       r.ST,
		"Location": r.Location,
		"From":     r.From.String(),
		"Max-Age":  r.MaxAge.String(),
	}
	if r.Server != "" {
		details["Server"] = r.Server
	}
	if r.BootID != nil {
		details["BootID"] = fmt.Sprint(*r.BootID)
	}
	if r.ConfigID != nil {
		details["ConfigID"] = fmt.Sprint(*r.ConfigID)
	}
	if r.SearchPort != nil {
		details["SearchPort"] = fmt.Sprint(*r.SearchPort)
	}

	content := DeviceTitleStyle.Render(r.USN) + "\n" + renderPairs(details, ResultKeyStyle, ResultValueStyle, "")
	return DeviceCardStyle(clampWidth(width)).Render(content)
}

// ResponseLine renders one search response on a single line.
func ResponseLine(r *ssdp.SearchResponse) string {
	return fmt.Sprintf("%-21s %s %s", r.From, r.USN, TimestampStyle.Render(r.Location))
}

// AdvertisementLine renders one NOTIFY on a single line.
func AdvertisementLine(a *ssdp.Advertisement) string {
	kind := a.Kind.String()
	line := fmt.Sprintf("%s %s %s",
		TimestampStyle.Render(stamp(a.ReceivedAt)),
		KindStyle(kind).Render(fmt.Sprintf("%-12s", kind)),
		a.USN)
	if a.Location != "" {
		line += " " + TimestampStyle.Render(a.Location)
	}
	if a.Kind == ssdp.Update && a.NextBootID != nil {
		line += fmt.Sprintf(" (next boot %d)", *a.NextBootID)
	}
	return line
}

// EventLine renders one monitor event on a single line.
func EventLine(ev monitor.Event) string {
	kind := ev.Type.String()
	line := fmt.Sprintf("%s %s %s",
		TimestampStyle.Render(stamp(ev.At)),
		KindStyle(kind).Render(fmt.Sprintf("%-9s", kind)),
		ev.Device.USN)
	if ev.Device.Location != "" && ev.Type != monitor.Gone {
		line += " " + TimestampStyle.Render(ev.Device.Location)
	}
	return line
}

// InterfaceLine renders one network interface with its eligibility for the
// given family.
func InterfaceLine(ifi netif.Interface, f netif.Family) string {
	marker := eligibleMarker(ifi.Eligible(f))
	addrs := make([]string, 0, len(ifi.Addrs))
	for _, a := range ifi.Addrs {
		addrs = append(addrs, a.String())
	}
	var flags []string
	if ifi.Up {
		flags = append(flags, "up")
	}
	if ifi.Multicast {
		flags = append(flags, "multicast")
	}
	if ifi.Loopback {
		flags = append(flags, "loopback")
	}
	return fmt.Sprintf("%s %-12s %-24s %s", marker, ifi.Name, strings.Join(flags, ","), strings.Join(addrs, " "))
}

func eligibleMarker(ok bool) string {
	if ok {
		return SuccessTitleStyle.Render(SuccessMarker)
	}
	return TimestampStyle.Render(FailureMarker)
}

// Troubleshoot returns hints for errors the commands commonly hit.
func Troubleshoot(err error) []string {
	var setup *transport.SetupError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &setup):
		switch setup.Kind {
		case transport.InterfaceUnavailable:
			return []string{
				"Run 'ssdp interfaces' to see which interfaces are eligible",
				"Check the interface is up and has an address of the chosen IP version",
			}
		case transport.BindFailed:
			return []string{
				"Another process may hold port 1900 without address reuse",
				"Binding below port 1024 may need extra privileges on some systems",
			}
		case transport.JoinFailed:
			return []string{
				"The interface may not support multicast",
				"Check firewall rules for 239.255.255.250 and FF02::C",
			}
		}
	case errors.Is(err, ssdp.ErrUnsupportedVersion):
		return []string{"Unicast search and ssdp:update need --spec-version 1.1 or later"}
	case errors.Is(err, ssdp.ErrInvalidOption):
		return []string{
			"UPnP 2.0 searches need a control point: run 'ssdp config init'",
			"--max-wait must be at least 1",
		}
	}
	return nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("15:04:05")
}
