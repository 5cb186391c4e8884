package advertise

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"

	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/transport"
	"github.com/muurk/ssdp/internal/transport/transporttest"
)

var _ suture.Service = (*Advertiser)(nil)

const lightUUID = "3f8d7e2a-1111-2222-3333-444455556666"

func light() Device {
	return Device{
		UUID:       lightUUID,
		DeviceType: ssdp.DeviceByType("", "BinaryLight", "1"),
		Services:   []ssdp.SearchTarget{ssdp.ServiceByType("", "SwitchPower", "1")},
		Location:   "http://192.168.1.60:8080/desc.xml",
		MaxAge:     1800,
		BootID:     5,
		ConfigID:   1,
	}
}

func TestNotifications(t *testing.T) {
	pairs := light().Notifications()
	want := []Pair{
		{NT: "upnp:rootdevice", USN: "uuid:" + lightUUID + "::upnp:rootdevice"},
		{NT: "uuid:" + lightUUID, USN: "uuid:" + lightUUID},
		{NT: "urn:schemas-upnp-org:device:BinaryLight:1", USN: "uuid:" + lightUUID + "::urn:schemas-upnp-org:device:BinaryLight:1"},
		{NT: "urn:schemas-upnp-org:service:SwitchPower:1", USN: "uuid:" + lightUUID + "::urn:schemas-upnp-org:service:SwitchPower:1"},
	}
	assert.Equal(t, want, pairs)
}

func TestMatching(t *testing.T) {
	dev := light()

	assert.Len(t, dev.Matching(ssdp.All(), "ssdp:all"), 4)
	assert.Len(t, dev.Matching(ssdp.RootDevices(), "upnp:rootdevice"), 1)
	assert.Len(t, dev.Matching(ssdp.DeviceByUUID(lightUUID), "uuid:"+lightUUID), 1)
	assert.Empty(t, dev.Matching(ssdp.DeviceByType("", "MediaServer", "1"), "urn:schemas-upnp-org:device:MediaServer:1"))

	// A search for an older service version is answered, echoing its ST.
	dev.Services[0] = ssdp.ServiceByType("", "SwitchPower", "2")
	st := "urn:schemas-upnp-org:service:SwitchPower:1"
	got := dev.Matching(ssdp.ServiceByType("", "SwitchPower", "1"), st)
	require.Len(t, got, 1)
	assert.Equal(t, st, got[0].NT)
	assert.Equal(t, "uuid:"+lightUUID+"::urn:schemas-upnp-org:service:SwitchPower:2", got[0].USN)
}

func TestDeviceValidate(t *testing.T) {
	assert.NoError(t, light().Validate())

	fresh := NewDevice(ssdp.DeviceByType("", "Basic", "1"), "http://h/d.xml")
	assert.NoError(t, fresh.Validate())
	assert.NotEqual(t, fresh.UUID, NewDevice(fresh.DeviceType, fresh.Location).UUID)

	bad := light()
	bad.UUID = "not-a-uuid"
	assert.ErrorIs(t, bad.Validate(), ssdp.ErrInvalidOption)

	bad = light()
	bad.DeviceType = ssdp.RootDevices()
	assert.ErrorIs(t, bad.Validate(), ssdp.ErrInvalidOption)

	bad = light()
	bad.Services = []ssdp.SearchTarget{ssdp.DeviceByType("", "Basic", "1")}
	assert.ErrorIs(t, bad.Validate(), ssdp.ErrInvalidOption)
}

func newAdvertiser(t *testing.T, version ssdp.Version) (*Advertiser, *transporttest.Opener) {
	t.Helper()
	opener := &transporttest.Opener{}
	a, err := New(light(), Options{Version: version, Repeat: 1, Opener: opener.Open})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, opener
}

func sentAdvertisements(t *testing.T, conn *transporttest.Conn) []*ssdp.Advertisement {
	t.Helper()
	var out []*ssdp.Advertisement
	for _, s := range conn.Sent() {
		assert.True(t, s.Multicast)
		adv, err := ssdp.ParseAdvertisement(s.Data)
		require.NoError(t, err)
		out = append(out, adv)
	}
	return out
}

func TestAvailableAndUnavailable(t *testing.T) {
	a, opener := newAdvertiser(t, ssdp.V11)
	conn := opener.Conns[""]

	require.NoError(t, a.Available())
	advs := sentAdvertisements(t, conn)
	require.Len(t, advs, 4)
	for _, adv := range advs {
		assert.Equal(t, ssdp.Alive, adv.Kind)
		assert.Equal(t, 30*time.Minute, adv.MaxAge)
		assert.EqualValues(t, 5, *adv.BootID)
	}

	require.NoError(t, a.Unavailable())
	advs = sentAdvertisements(t, conn)[4:]
	require.Len(t, advs, 4)
	for _, adv := range advs {
		assert.Equal(t, ssdp.ByeBye, adv.Kind)
		assert.Empty(t, adv.Location)
	}
}

func TestUpdateAdvancesBootID(t *testing.T) {
	a, opener := newAdvertiser(t, ssdp.V11)

	require.NoError(t, a.Update("http://192.168.1.61:8080/desc.xml"))
	advs := sentAdvertisements(t, opener.Conns[""])
	require.Len(t, advs, 4)
	for _, adv := range advs {
		assert.Equal(t, ssdp.Update, adv.Kind)
		assert.EqualValues(t, 5, *adv.BootID)
		assert.EqualValues(t, 6, *adv.NextBootID)
		assert.Equal(t, "http://192.168.1.61:8080/desc.xml", adv.Location)
	}

	dev := a.Device()
	assert.EqualValues(t, 6, dev.BootID)
	assert.Equal(t, "http://192.168.1.61:8080/desc.xml", dev.Location)
}

func TestUpdateRequiresV11(t *testing.T) {
	a, _ := newAdvertiser(t, ssdp.V10)
	assert.ErrorIs(t, a.Update(""), ssdp.ErrUnsupportedVersion)
	assert.EqualValues(t, 5, a.Device().BootID)
}

func TestServeAnnouncesAndSaysByeBye(t *testing.T) {
	opener := &transporttest.Opener{}
	a, err := New(light(), Options{Version: ssdp.V11, Repeat: 1, Interval: 50 * time.Millisecond, Opener: opener.Open})
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Millisecond)
	defer cancel()
	err = a.Serve(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	advs := sentAdvertisements(t, opener.Conns[""])
	require.GreaterOrEqual(t, len(advs), 12, "initial alive, at least two re-announcements and byebye")
	for _, adv := range advs[len(advs)-4:] {
		assert.Equal(t, ssdp.ByeBye, adv.Kind)
	}
}

// sequenceOpener hands out its conns in order, whatever the interface.
type sequenceOpener struct {
	mu    sync.Mutex
	conns []*transporttest.Conn
}

func (o *sequenceOpener) Open(*netif.Interface, netif.Family, transport.Config) (transport.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	conn := o.conns[0]
	o.conns = o.conns[1:]
	return conn, nil
}

func TestServeRespondsToSearch(t *testing.T) {
	sendConn := transporttest.NewConn()
	listenConn := transporttest.NewConn()
	// The send socket is opened first, then the responder's.
	opener := &sequenceOpener{conns: []*transporttest.Conn{sendConn, listenConn}}

	a, err := New(light(), Options{Version: ssdp.V11, Repeat: 1, Respond: true, Opener: opener.Open})
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	require.Eventually(t, listenConn.Joined, time.Second, 5*time.Millisecond)

	cp := netip.MustParseAddrPort("192.168.1.10:50123")
	opts := ssdp.DefaultSearchOptions(ssdp.V11)
	opts.Target = ssdp.ServiceByType("", "SwitchPower", "1")
	opts.MaxWait = 1
	req, err := ssdp.BuildSearchRequest(opts)
	require.NoError(t, err)
	listenConn.Deliver(req.Bytes(), cp)

	require.Eventually(t, func() bool { return len(listenConn.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	reply := listenConn.Sent()[0]
	assert.Equal(t, cp, reply.Dst)

	resp, err := ssdp.ParseSearchResponse(reply.Data)
	require.NoError(t, err)
	assert.Equal(t, "urn:schemas-upnp-org:service:SwitchPower:1", resp.ST)
	assert.Equal(t, lightUUID, resp.DeviceUUID())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, listenConn.IsClosed())
}
