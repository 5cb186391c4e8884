package monitor

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/transport/transporttest"
)

var (
	lamp = netip.MustParseAddrPort("192.168.1.60:1900")
	eth0 = netif.Interface{
		Name: "eth0", Index: 2, Up: true, Multicast: true,
		Addrs: []netip.Addr{netip.MustParseAddr("192.168.1.20")},
	}
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newOffline(t *testing.T, size int) (*Monitor, *clock) {
	t.Helper()
	m, err := New(Options{
		Search:         ssdp.DefaultSearchOptions(ssdp.V11),
		SearchInterval: -1,
		NoListen:       true,
		Size:           size,
	})
	require.NoError(t, err)
	c := &clock{t: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	m.now = c.now
	return m, c
}

func alive(usn, location string, maxAge time.Duration, at time.Time) *ssdp.Advertisement {
	return &ssdp.Advertisement{
		Kind: ssdp.Alive, NT: "upnp:rootdevice", USN: usn, Location: location,
		MaxAge: maxAge, From: lamp, ReceivedAt: at,
	}
}

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func assertQuiet(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestMonitorPresenceEvents(t *testing.T) {
	m, c := newOffline(t, 0)
	events, cancel := m.Subscribe(0)
	defer cancel()

	const usn = "uuid:lamp-1::upnp:rootdevice"
	m.HandleAdvertisement(alive(usn, "http://192.168.1.60/a.xml", time.Minute, c.now()))
	ev := recv(t, events)
	assert.Equal(t, Appeared, ev.Type)
	assert.Equal(t, "lamp-1", ev.Device.UUID)
	assert.Equal(t, SourceAdvertisement, ev.Device.Source)

	// Same announcement again only refreshes.
	c.advance(10 * time.Second)
	m.HandleAdvertisement(alive(usn, "http://192.168.1.60/a.xml", time.Minute, c.now()))
	assertQuiet(t, events)
	dev, ok := m.Get(usn)
	require.True(t, ok)
	assert.Equal(t, c.now().Add(time.Minute), dev.ExpiresAt)

	m.HandleResponse(&ssdp.SearchResponse{
		ST: "upnp:rootdevice", USN: usn, Location: "http://192.168.1.60/b.xml",
		MaxAge: time.Minute, ReceivedAt: c.now(),
	})
	ev = recv(t, events)
	assert.Equal(t, Updated, ev.Type)
	assert.Equal(t, "http://192.168.1.60/b.xml", ev.Device.Location)
	assert.Equal(t, SourceSearch, ev.Device.Source)
	assert.Equal(t, c.now().Add(-10*time.Second), ev.Device.FirstSeen)

	m.HandleAdvertisement(&ssdp.Advertisement{Kind: ssdp.ByeBye, NT: "upnp:rootdevice", USN: usn})
	ev = recv(t, events)
	assert.Equal(t, Gone, ev.Type)
	assert.Zero(t, m.Len())

	// byebye for an unknown USN is silent.
	m.HandleAdvertisement(&ssdp.Advertisement{Kind: ssdp.ByeBye, USN: "uuid:other"})
	assertQuiet(t, events)
}

func TestMonitorUpdateMovesBootID(t *testing.T) {
	m, c := newOffline(t, 0)
	events, cancel := m.Subscribe(0)
	defer cancel()

	one, two := uint32(1), uint32(2)
	const usn = "uuid:lamp-1"
	first := alive(usn, "http://192.168.1.60/a.xml", time.Minute, c.now())
	first.BootID = &one
	m.HandleAdvertisement(first)
	recv(t, events)

	c.advance(5 * time.Second)
	m.HandleAdvertisement(&ssdp.Advertisement{
		Kind: ssdp.Update, NT: usn, USN: usn, Location: "http://192.168.1.60/a.xml",
		BootID: &one, NextBootID: &two, ReceivedAt: c.now(),
	})
	ev := recv(t, events)
	assert.Equal(t, Updated, ev.Type)
	require.NotNil(t, ev.Device.BootID)
	assert.EqualValues(t, 2, *ev.Device.BootID)
	// update carries no max-age, so the alive expiry stands.
	assert.Equal(t, c.now().Add(55*time.Second), ev.Device.ExpiresAt)
}

func TestMonitorSweep(t *testing.T) {
	m, c := newOffline(t, 0)
	events, cancel := m.Subscribe(0)
	defer cancel()

	m.HandleAdvertisement(alive("uuid:short", "http://h/s.xml", 30*time.Second, c.now()))
	m.HandleAdvertisement(alive("uuid:long", "http://h/l.xml", 30*time.Minute, c.now()))
	recv(t, events)
	recv(t, events)

	c.advance(29 * time.Second)
	assert.Zero(t, m.Sweep())

	c.advance(2 * time.Second)
	assert.Equal(t, 1, m.Sweep())
	ev := recv(t, events)
	assert.Equal(t, Gone, ev.Type)
	assert.Equal(t, "uuid:short", ev.Device.USN)

	devices := m.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, "uuid:long", devices[0].USN)
}

func TestMonitorEvictsOldestWhenFull(t *testing.T) {
	m, c := newOffline(t, 2)
	events, cancel := m.Subscribe(8)
	defer cancel()

	for _, usn := range []string{"uuid:a", "uuid:b", "uuid:c"} {
		m.HandleAdvertisement(alive(usn, "http://h/d.xml", time.Minute, c.now()))
	}

	var types []EventType
	for i := 0; i < 4; i++ {
		types = append(types, recv(t, events).Type)
	}
	assert.Equal(t, []EventType{Appeared, Appeared, Gone, Appeared}, types)
	assert.Equal(t, 2, m.Len())
	_, ok := m.Get("uuid:a")
	assert.False(t, ok)
}

func TestMonitorSubscriberCancel(t *testing.T) {
	m, c := newOffline(t, 0)
	events, cancel := m.Subscribe(1)
	cancel()
	cancel()

	_, open := <-events
	assert.False(t, open)
	m.HandleAdvertisement(alive("uuid:a", "http://h/d.xml", time.Minute, c.now()))
}

func TestMonitorRejectsInvalidSearch(t *testing.T) {
	opts := ssdp.DefaultSearchOptions(ssdp.V11)
	opts.MaxWait = 0
	_, err := New(Options{Search: opts})
	assert.ErrorIs(t, err, ssdp.ErrInvalidOption)
}

func TestMonitorServe(t *testing.T) {
	reply, err := ssdp.BuildSearchResponse(ssdp.SearchReply{
		Version: ssdp.V11, ST: "upnp:rootdevice", USN: "uuid:tv-1::upnp:rootdevice",
		Location: "http://192.168.1.70/tv.xml", MaxAge: 1800, BootID: 1, ConfigID: 1,
	})
	require.NoError(t, err)

	listenConn := transporttest.NewConn()
	searchConn := transporttest.NewConn(transporttest.Scheduled{
		After: 50 * time.Millisecond,
		Data:  reply.Bytes(),
		From:  netip.MustParseAddrPort("192.168.1.70:1900"),
	})
	opener := &transporttest.Opener{Conns: map[string]*transporttest.Conn{"": listenConn, "eth0": searchConn}}

	searchOpts := ssdp.DefaultSearchOptions(ssdp.V11)
	searchOpts.MaxWait = 1
	m, err := New(Options{
		Search:     searchOpts,
		Opener:     opener.Open,
		Interfaces: []netif.Interface{eth0},
	})
	require.NoError(t, err)
	events, cancel := m.Subscribe(8)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := m.ServeBackground(ctx)

	require.Eventually(t, listenConn.Joined, time.Second, 5*time.Millisecond)
	listenConn.Deliver([]byte("NOTIFY * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nCACHE-CONTROL: max-age=1800\r\n"+
		"LOCATION: http://192.168.1.60/desc.xml\r\nNT: upnp:rootdevice\r\nNTS: ssdp:alive\r\n"+
		"USN: uuid:lamp-1::upnp:rootdevice\r\n\r\n"), lamp)

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case ev := <-events:
			assert.Equal(t, Appeared, ev.Type)
			seen[ev.Device.USN] = true
		case <-time.After(4 * time.Second):
			t.Fatalf("timed out, saw %v", seen)
		}
	}
	assert.True(t, seen["uuid:lamp-1::upnp:rootdevice"])
	assert.True(t, seen["uuid:tv-1::upnp:rootdevice"])

	stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	assert.True(t, listenConn.IsClosed())
	assert.True(t, searchConn.IsClosed())
}

func TestEventTypeText(t *testing.T) {
	for _, typ := range []EventType{Appeared, Updated, Gone} {
		text, err := typ.MarshalText()
		require.NoError(t, err)
		var back EventType
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, typ, back)
	}
	var bad EventType
	assert.Error(t, bad.UnmarshalText([]byte("vanished")))
}
