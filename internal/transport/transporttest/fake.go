// Package transporttest provides in-memory transport.Conn implementations
// for tests that drive the search orchestrator, listener and advertiser
// without touching the network.
package transporttest

import (
	"net/netip"
	"sync"
	"time"

	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/transport"
)

// Scheduled is a datagram delivered After the first send on a Conn.
type Scheduled struct {
	After time.Duration
	Data  []byte
	From  netip.AddrPort
}

// Sent records one outgoing datagram. Dst is the zero value for
// SendMulticast.
type Sent struct {
	Data      []byte
	Dst       netip.AddrPort
	Multicast bool
}

// Conn is a fake transport.Conn. Datagrams reach it through Deliver or a
// Script that starts playing on the first send.
type Conn struct {
	Script     []Scheduled
	SendErr    error
	JoinErr    error
	ReceiveErr error
	Local      netip.AddrPort

	inbox     chan transport.Datagram
	closed    chan struct{}
	closeOnce sync.Once
	startOnce sync.Once

	mu     sync.Mutex
	sent   []Sent
	joined bool
}

// NewConn creates an open fake connection.
func NewConn(script ...Scheduled) *Conn {
	return &Conn{
		Script: script,
		Local:  netip.MustParseAddrPort("192.0.2.10:50000"),
		inbox:  make(chan transport.Datagram, 256),
		closed: make(chan struct{}),
	}
}

// Deliver queues a datagram for the next receive. It is dropped if the
// connection is closed.
func (c *Conn) Deliver(data []byte, from netip.AddrPort) {
	select {
	case <-c.closed:
	case c.inbox <- transport.Datagram{Data: data, From: from, ReceivedAt: time.Now()}:
	}
}

func (c *Conn) play() {
	c.startOnce.Do(func() {
		for _, s := range c.Script {
			s := s
			time.AfterFunc(s.After, func() { c.Deliver(s.Data, s.From) })
		}
	})
}

// JoinGroup implements transport.Conn
func (c *Conn) JoinGroup() error {
	if c.JoinErr != nil {
		return c.JoinErr
	}
	c.mu.Lock()
	c.joined = true
	c.mu.Unlock()
	return nil
}

// Send implements transport.Conn
func (c *Conn) Send(data []byte, dst netip.AddrPort) error {
	return c.record(Sent{Data: data, Dst: dst})
}

// SendMulticast implements transport.Conn
func (c *Conn) SendMulticast(data []byte) error {
	return c.record(Sent{Data: data, Multicast: true})
}

func (c *Conn) record(s Sent) error {
	if c.IsClosed() {
		return transport.ErrClosed
	}
	if c.SendErr != nil {
		return c.SendErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, s)
	c.mu.Unlock()
	c.play()
	return nil
}

// ReceiveWithDeadline implements transport.Conn
func (c *Conn) ReceiveWithDeadline(deadline time.Time) (transport.Datagram, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	return c.receive(timer.C)
}

// ReceiveBlocking implements transport.Conn
func (c *Conn) ReceiveBlocking() (transport.Datagram, error) {
	return c.receive(nil)
}

func (c *Conn) receive(timeout <-chan time.Time) (transport.Datagram, error) {
	if c.ReceiveErr != nil {
		return transport.Datagram{}, c.ReceiveErr
	}
	// A closed conn reports ErrClosed even when datagrams are still queued.
	select {
	case <-c.closed:
		return transport.Datagram{}, transport.ErrClosed
	default:
	}
	select {
	case dg := <-c.inbox:
		return dg, nil
	case <-c.closed:
		return transport.Datagram{}, transport.ErrClosed
	case <-timeout:
		return transport.Datagram{}, transport.ErrTimedOut
	}
}

// LocalAddr implements transport.Conn
func (c *Conn) LocalAddr() netip.AddrPort {
	return c.Local
}

// Close implements transport.Conn
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// IsClosed reports whether Close was called.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Joined reports whether JoinGroup succeeded.
func (c *Conn) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// Sent returns a copy of the datagrams sent so far.
func (c *Conn) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

// Opener hands out fake connections by interface name ("" for a nil
// interface). Unknown names get a fresh NewConn.
type Opener struct {
	Conns map[string]*Conn
	Errs  map[string]error

	mu      sync.Mutex
	opened  []string
	configs []transport.Config
}

// Open has the transport.Opener signature. Like transport.Open it refuses
// an interface without an address of the family.
func (o *Opener) Open(iface *netif.Interface, family netif.Family, cfg transport.Config) (transport.Conn, error) {
	name := ""
	if iface != nil {
		name = iface.Name
		if !iface.HasFamily(family) {
			return nil, &transport.SetupError{Kind: transport.InterfaceUnavailable, Interface: name}
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.Errs[name]; err != nil {
		return nil, err
	}
	if o.Conns == nil {
		o.Conns = make(map[string]*Conn)
	}
	conn, ok := o.Conns[name]
	if !ok {
		conn = NewConn()
		o.Conns[name] = conn
	}
	o.opened = append(o.opened, name)
	o.configs = append(o.configs, cfg)
	return conn, nil
}

// Opened returns the interface names opened so far, in order.
func (o *Opener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.opened))
	copy(out, o.opened)
	return out
}

// Configs returns the configs passed to Open, in order.
func (o *Opener) Configs() []transport.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]transport.Config, len(o.configs))
	copy(out, o.configs)
	return out
}
