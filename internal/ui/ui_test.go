package ui

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/ssdp/internal/monitor"
	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/transport"
)

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestHeaderRenderSortsParams(t *testing.T) {
	out := NewHeader("ssdp search", "ssdp search -t ssdp:all", map[string]string{
		"Version": "1.1",
		"Target":  "ssdp:all",
	}).SetWidth(80).Render()

	if !strings.Contains(out, "SSDP SEARCH") {
		t.Errorf("title should be upper-cased:\n%s", out)
	}
	if strings.Index(out, "Target:") > strings.Index(out, "Version:") {
		t.Errorf("params should be sorted by key:\n%s", out)
	}
}

func TestResultRender(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{"success", NewResult(ResultSuccess, "Search complete").AddDetail("Devices", "3"), []string{"SUCCESS", "Search complete", "Devices:", "3"}},
		{"warning", NewResult(ResultWarning, "No devices"), []string{"WARNING", "No devices"}},
		{"failure", NewResult(ResultFailure, "Search failed").WithError(errors.New("boom"), []string{"try again"}), []string{"FAILED", "Error: boom", "Troubleshooting:", "try again"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("Render() missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestResponseRendering(t *testing.T) {
	boot := uint32(7)
	r := &ssdp.SearchResponse{
		USN:      "uuid:tv-1::upnp:rootdevice",
		ST:       "upnp:rootdevice",
		Location: "http://192.168.1.70:8080/desc.xml",
		MaxAge:   30 * time.Minute,
		BootID:   &boot,
		From:     netip.MustParseAddrPort("192.168.1.70:1900"),
	}

	card := RenderResponse(r, 80)
	for _, w := range []string{r.USN, r.Location, "BootID:", "7", "30m0s"} {
		if !strings.Contains(card, w) {
			t.Errorf("RenderResponse() missing %q:\n%s", w, card)
		}
	}

	line := ResponseLine(r)
	if !strings.Contains(line, "192.168.1.70:1900") || !strings.Contains(line, r.USN) {
		t.Errorf("ResponseLine() = %q", line)
	}
}

func TestAdvertisementLine(t *testing.T) {
	next := uint32(9)
	a := &ssdp.Advertisement{
		Kind:       ssdp.Update,
		USN:        "uuid:tv-1",
		Location:   "http://192.168.1.70/desc.xml",
		NextBootID: &next,
		ReceivedAt: time.Date(2026, 1, 2, 13, 14, 15, 0, time.UTC),
	}
	line := AdvertisementLine(a)
	for _, w := range []string{"13:14:15", "ssdp:update", "uuid:tv-1", "next boot 9"} {
		if !strings.Contains(line, w) {
			t.Errorf("AdvertisementLine() missing %q: %q", w, line)
		}
	}
}

func TestEventLineHidesLocationForGone(t *testing.T) {
	dev := monitor.Device{USN: "uuid:tv-1", Location: "http://192.168.1.70/desc.xml"}

	if line := EventLine(monitor.Event{Type: monitor.Appeared, Device: dev}); !strings.Contains(line, dev.Location) {
		t.Errorf("appeared line should show the location: %q", line)
	}
	if line := EventLine(monitor.Event{Type: monitor.Gone, Device: dev}); strings.Contains(line, dev.Location) {
		t.Errorf("gone line should not show the location: %q", line)
	}
}

func TestInterfaceLine(t *testing.T) {
	ifi := netif.Interface{
		Name:      "eth0",
		Addrs:     []netip.Addr{netip.MustParseAddr("192.168.1.5")},
		Up:        true,
		Multicast: true,
	}
	line := InterfaceLine(ifi, netif.IPv4)
	for _, w := range []string{"eth0", "up,multicast", "192.168.1.5", SuccessMarker} {
		if !strings.Contains(line, w) {
			t.Errorf("InterfaceLine() missing %q: %q", w, line)
		}
	}
	if line := InterfaceLine(ifi, netif.IPv6); !strings.Contains(line, FailureMarker) {
		t.Errorf("an interface without IPv6 should not be eligible: %q", line)
	}
}

func TestTroubleshoot(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unavailable", &transport.SetupError{Kind: transport.InterfaceUnavailable}, "ssdp interfaces"},
		{"join", fmt.Errorf("open: %w", &transport.SetupError{Kind: transport.JoinFailed}), "multicast"},
		{"version", fmt.Errorf("unicast: %w", ssdp.ErrUnsupportedVersion), "1.1"},
		{"option", fmt.Errorf("%w: max wait", ssdp.ErrInvalidOption), "--max-wait"},
		{"other", errors.New("something"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tips := strings.Join(Troubleshoot(tt.err), "\n")
			if tt.want == "" {
				if tips != "" {
					t.Errorf("Troubleshoot() = %q, want none", tips)
				}
				return
			}
			if !strings.Contains(tips, tt.want) {
				t.Errorf("Troubleshoot() = %q, want it to mention %q", tips, tt.want)
			}
		})
	}
}

func TestSearchModelFinishes(t *testing.T) {
	want := []*ssdp.SearchResponse{{USN: "uuid:a"}}
	m := NewSearchModel(context.Background(), "Searching", 2*time.Second, func(context.Context) ([]*ssdp.SearchResponse, error) {
		return want, nil
	})

	// Running the search command directly yields the done message.
	msg := m.runSearch()
	updated, cmd := m.Update(msg)
	got := updated.(SearchModel)

	if !isQuit(cmd) {
		t.Error("a finished search should quit the program")
	}
	if len(got.Responses) != 1 || got.Responses[0].USN != "uuid:a" || got.Err != nil {
		t.Errorf("Responses = %v, Err = %v", got.Responses, got.Err)
	}
	if got.View() != "" {
		t.Error("a finished search leaves the screen empty")
	}
}

func TestSearchModelProgressAndStop(t *testing.T) {
	var sawCancel bool
	m := NewSearchModel(context.Background(), "Searching", 2*time.Second, func(ctx context.Context) ([]*ssdp.SearchResponse, error) {
		<-ctx.Done()
		sawCancel = true
		return nil, nil
	})

	updated, cmd := m.Update(searchTickMsg(m.started.Add(time.Second)))
	m = updated.(SearchModel)
	if m.percent < 0.49 || m.percent > 0.51 {
		t.Errorf("percent = %v, want 0.5", m.percent)
	}
	if cmd == nil {
		t.Error("ticks should continue while the search runs")
	}

	updated, _ = m.Update(searchTickMsg(m.started.Add(time.Minute)))
	if p := updated.(SearchModel).percent; p != 1 {
		t.Errorf("percent = %v, should cap at 1", p)
	}

	updated, cmd = m.Update(keyPress("q"))
	if isQuit(cmd) {
		t.Error("stopping should wait for the search to return")
	}
	m = updated.(SearchModel)
	m.runSearch()
	if !sawCancel {
		t.Error("q should cancel the search context")
	}
}

func TestLiveModelLines(t *testing.T) {
	feed := make(chan string, 4)
	m := NewLiveModel("listen", "Listening on eth0", feed)

	for _, l := range []string{"one", "two"} {
		updated, cmd := m.Update(liveLineMsg(l))
		m = updated.(LiveModel)
		if cmd == nil {
			t.Fatal("the view should keep reading the feed")
		}
	}
	if m.Count != 2 || len(m.Lines()) != 2 {
		t.Fatalf("Count = %d, lines = %v", m.Count, m.Lines())
	}
	if view := m.View(); !strings.Contains(view, "LISTEN") || !strings.Contains(view, "two") || !strings.Contains(view, "(2 received)") {
		t.Errorf("View() =\n%s", view)
	}

	updated, _ := m.Update(keyPress("c"))
	m = updated.(LiveModel)
	if len(m.Lines()) != 0 || m.Count != 2 {
		t.Errorf("clear should empty the screen but keep the count, lines = %v count = %d", m.Lines(), m.Count)
	}
}

func TestLiveModelPause(t *testing.T) {
	m := NewLiveModel("monitor", "Watching", make(chan string))

	updated, _ := m.Update(keyPress("p"))
	m = updated.(LiveModel)
	updated, _ = m.Update(liveLineMsg("held"))
	m = updated.(LiveModel)
	if len(m.Lines()) != 0 {
		t.Errorf("paused view should hold lines back, got %v", m.Lines())
	}
	if !strings.Contains(m.View(), "1 held back") {
		t.Errorf("View() should report held lines:\n%s", m.View())
	}

	updated, _ = m.Update(keyPress("p"))
	m = updated.(LiveModel)
	if len(m.Lines()) != 1 || m.Lines()[0] != "held" {
		t.Errorf("resuming should flush held lines, got %v", m.Lines())
	}
}

func TestLiveModelTrimsToHeight(t *testing.T) {
	m := NewLiveModel("listen", "Listening", make(chan string))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	m = updated.(LiveModel)

	for i := 0; i < 20; i++ {
		updated, _ = m.Update(liveLineMsg(fmt.Sprint(i)))
		m = updated.(LiveModel)
	}
	lines := m.Lines()
	if len(lines) != 6 || lines[len(lines)-1] != "19" {
		t.Errorf("Lines() = %v, want the last 6", lines)
	}
}

func TestLiveModelQuits(t *testing.T) {
	m := NewLiveModel("listen", "Listening", make(chan string))
	if _, cmd := m.Update(keyPress("q")); !isQuit(cmd) {
		t.Error("q should quit")
	}
	if _, cmd := m.Update(liveClosedMsg{}); !isQuit(cmd) {
		t.Error("a closed feed should quit")
	}
}

func TestWaitForLine(t *testing.T) {
	feed := make(chan string, 1)
	feed <- "hello"
	if msg := waitForLine(feed)(); msg != liveLineMsg("hello") {
		t.Errorf("waitForLine() = %v", msg)
	}
	close(feed)
	if _, ok := waitForLine(feed)().(liveClosedMsg); !ok {
		t.Error("a closed feed should yield liveClosedMsg")
	}
}
