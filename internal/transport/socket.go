package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
)

// DefaultBufferSize is the receive buffer size, large enough for any UDP
// payload. A datagram that fills the buffer may have been truncated and is
// dropped.
const DefaultBufferSize = 65536

// Config carries the socket parameters for one purpose.
type Config struct {
	Port       int            // Local port, 0 for ephemeral
	TTL        int            // Multicast TTL or hop limit, 0 leaves the OS default
	Loopback   bool           // Deliver our own multicast back to local sockets
	ReuseAddr  bool           // Allow several listeners on the same port
	BufferSize int            // Receive buffer, 0 uses DefaultBufferSize
	IPv6Scope  ssdp.IPv6Scope // Group SendMulticast targets for IPv6

	// JoinOn lists the interfaces JoinGroup joins on when the socket has
	// none of its own. Empty joins on the default multicast interface.
	JoinOn []netif.Interface
}

// SearchConfig is for sending an M-SEARCH and collecting the unicast
// replies: ephemeral port, the given TTL.
func SearchConfig(ttl int) Config {
	return Config{TTL: ttl, BufferSize: DefaultBufferSize}
}

// ListenConfig is for receiving advertisements on the well-known port.
// Address reuse lets other SSDP stacks on the host share the port.
func ListenConfig() Config {
	return Config{Port: ssdp.Port, ReuseAddr: true, BufferSize: DefaultBufferSize}
}

// AdvertiseConfig is for sending NOTIFY messages from an ephemeral port.
func AdvertiseConfig(ttl int) Config {
	return Config{TTL: ttl, Loopback: true, BufferSize: DefaultBufferSize}
}

// Datagram is one received packet.
type Datagram struct {
	Data       []byte
	From       netip.AddrPort
	ReceivedAt time.Time
}

// Conn is the socket surface the search orchestrator, listener and
// advertiser depend on. *Socket implements it; tests substitute fakes.
type Conn interface {
	JoinGroup() error
	Send(data []byte, dst netip.AddrPort) error
	SendMulticast(data []byte) error
	ReceiveWithDeadline(deadline time.Time) (Datagram, error)
	ReceiveBlocking() (Datagram, error)
	LocalAddr() netip.AddrPort
	Close() error
}

// Opener opens a Conn. Open is the production implementation.
type Opener func(iface *netif.Interface, family netif.Family, cfg Config) (Conn, error)

// DefaultOpener opens real UDP sockets.
func DefaultOpener(iface *netif.Interface, family netif.Family, cfg Config) (Conn, error) {
	s, err := Open(iface, family, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Socket is a UDP socket bound for SSDP on one interface (or every
// interface when opened without one).
type Socket struct {
	conn   *net.UDPConn
	p4     *ipv4.PacketConn
	p6     *ipv6.PacketConn
	iface  *netif.Interface
	family netif.Family
	cfg    Config
	group  netip.AddrPort
	log    *zap.Logger

	readMu sync.Mutex
	buf    []byte
	closed atomic.Bool
}

// Open creates a socket for family on iface.
//
// A search socket (Port 0) binds to the interface's own address so replies
// arrive on that interface. A listen socket binds the wildcard address on
// the well-known port, since multicast is not delivered to sockets bound to
// a unicast address on every platform. A nil iface means the OS picks the
// outgoing interface and JoinGroup joins on cfg.JoinOn.
func Open(iface *netif.Interface, family netif.Family, cfg Config) (*Socket, error) {
	name := ""
	var local netip.AddrPort
	if iface != nil {
		name = iface.Name
		addr, ok := iface.AddrFor(family)
		if !ok {
			return nil, &SetupError{Kind: InterfaceUnavailable, Interface: name,
				Err: fmt.Errorf("no %s address", family)}
		}
		if !iface.Multicast {
			return nil, &SetupError{Kind: InterfaceUnavailable, Interface: name,
				Err: errors.New("interface is not multicast-capable")}
		}
		if cfg.Port == 0 {
			if addr.Is6() && addr.IsLinkLocalUnicast() {
				addr = addr.WithZone(iface.Name)
			}
			local = netip.AddrPortFrom(addr, 0)
		}
	}
	if !local.IsValid() {
		local = netip.AddrPortFrom(unspecified(family), uint16(cfg.Port))
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	lc := net.ListenConfig{}
	if cfg.ReuseAddr {
		lc.Control = reuseAddrControl
	}
	pc, err := lc.ListenPacket(context.Background(), family.Network(), local.String())
	if err != nil {
		return nil, &SetupError{Kind: BindFailed, Interface: name, Err: err}
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, &SetupError{Kind: BindFailed, Interface: name,
			Err: fmt.Errorf("unexpected packet conn type %T", pc)}
	}

	s := &Socket{
		conn:   conn,
		iface:  iface,
		family: family,
		cfg:    cfg,
		group:  groupFor(family, cfg.IPv6Scope),
		buf:    make([]byte, cfg.BufferSize),
		log:    logging.Named("transport"),
	}
	if err := s.configure(); err != nil {
		conn.Close()
		return nil, &SetupError{Kind: BindFailed, Interface: name, Err: err}
	}

	s.log.Debug("Socket opened",
		zap.String("interface", name),
		zap.Stringer("family", family),
		zap.Stringer("local", s.LocalAddr()),
	)
	return s, nil
}

func (s *Socket) configure() error {
	if s.family == netif.IPv6 {
		s.p6 = ipv6.NewPacketConn(s.conn)
		if s.cfg.TTL > 0 {
			if err := s.p6.SetMulticastHopLimit(s.cfg.TTL); err != nil {
				return fmt.Errorf("failed to set hop limit: %w", err)
			}
		}
		if s.iface != nil {
			if err := s.p6.SetMulticastInterface(s.iface.Net()); err != nil {
				return fmt.Errorf("failed to set multicast interface: %w", err)
			}
		}
		if err := s.p6.SetMulticastLoopback(s.cfg.Loopback); err != nil {
			return fmt.Errorf("failed to set multicast loopback: %w", err)
		}
		return nil
	}

	s.p4 = ipv4.NewPacketConn(s.conn)
	if s.cfg.TTL > 0 {
		if err := s.p4.SetMulticastTTL(s.cfg.TTL); err != nil {
			return fmt.Errorf("failed to set multicast TTL: %w", err)
		}
	}
	if s.iface != nil {
		if err := s.p4.SetMulticastInterface(s.iface.Net()); err != nil {
			return fmt.Errorf("failed to set multicast interface: %w", err)
		}
	}
	if err := s.p4.SetMulticastLoopback(s.cfg.Loopback); err != nil {
		return fmt.Errorf("failed to set multicast loopback: %w", err)
	}
	return nil
}

// JoinGroup subscribes the socket to the SSDP group of its family. For IPv6
// both the link-local and site-local groups are joined; one success is
// enough. Without an interface the group is joined on each of cfg.JoinOn.
func (s *Socket) JoinGroup() error {
	name := ""
	targets := []*net.Interface{nil}
	if s.iface != nil {
		name = s.iface.Name
		targets = []*net.Interface{s.iface.Net()}
	} else if len(s.cfg.JoinOn) > 0 {
		targets = targets[:0]
		for _, i := range s.cfg.JoinOn {
			targets = append(targets, i.Net())
		}
	}

	joined := 0
	var lastErr error
	for _, ifi := range targets {
		for _, group := range groupsToJoin(s.family) {
			var err error
			if s.p6 != nil {
				err = s.p6.JoinGroup(ifi, &net.UDPAddr{IP: group.AsSlice()})
			} else {
				err = s.p4.JoinGroup(ifi, &net.UDPAddr{IP: group.AsSlice()})
			}
			if err != nil {
				s.log.Debug("Group join failed",
					zap.String("interface", ifaceName(ifi)),
					zap.Stringer("group", group),
					zap.Error(err),
				)
				lastErr = err
				continue
			}
			s.log.Debug("Joined group",
				zap.String("interface", ifaceName(ifi)),
				zap.Stringer("group", group),
			)
			joined++
		}
	}

	if joined == 0 {
		return &SetupError{Kind: JoinFailed, Interface: name, Err: lastErr}
	}
	return nil
}

// Send transmits one datagram to dst.
func (s *Socket) Send(data []byte, dst netip.AddrPort) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.conn.WriteToUDPAddrPort(data, dst); err != nil {
		return classifyWriteError(err)
	}
	logging.LogDatagram(s.log, "send", net.UDPAddrFromAddrPort(dst), data)
	return nil
}

// SendMulticast transmits one datagram to the SSDP group.
func (s *Socket) SendMulticast(data []byte) error {
	return s.Send(data, s.group)
}

// ReceiveWithDeadline waits for one datagram until deadline. It returns
// ErrTimedOut when the deadline passes and ErrClosed once the socket is
// closed.
func (s *Socket) ReceiveWithDeadline(deadline time.Time) (Datagram, error) {
	return s.receive(deadline)
}

// ReceiveBlocking waits for one datagram with no deadline. Closing the
// socket from another goroutine unblocks it with ErrClosed.
func (s *Socket) ReceiveBlocking() (Datagram, error) {
	return s.receive(time.Time{})
}

func (s *Socket) receive(deadline time.Time) (Datagram, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	if s.closed.Load() {
		return Datagram{}, ErrClosed
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return Datagram{}, classifyReadError(err)
	}

	var (
		n    int
		from netip.AddrPort
		err  error
	)
	for {
		n, from, err = s.conn.ReadFromUDPAddrPort(s.buf)
		if err != nil {
			return Datagram{}, classifyReadError(err)
		}
		if n < len(s.buf) {
			break
		}
		s.log.Warn("Dropping datagram that fills the receive buffer",
			zap.Stringer("from", from),
			zap.Int("buffer", len(s.buf)),
		)
	}

	data := make([]byte, n)
	copy(data, s.buf[:n])
	from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
	logging.LogDatagram(s.log, "recv", net.UDPAddrFromAddrPort(from), data)

	return Datagram{Data: data, From: from, ReceivedAt: time.Now()}, nil
}

// LocalAddr returns the bound address.
func (s *Socket) LocalAddr() netip.AddrPort {
	if addr, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.AddrPort()
	}
	return netip.AddrPort{}
}

// Interface returns the interface the socket was opened on, or nil.
func (s *Socket) Interface() *netif.Interface {
	return s.iface
}

// Close releases the socket. It is safe to call more than once and from a
// goroutine other than the one receiving.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.log.Debug("Socket closed", zap.Stringer("local", s.LocalAddr()))
	return s.conn.Close()
}

func unspecified(family netif.Family) netip.Addr {
	if family == netif.IPv6 {
		return netip.IPv6Unspecified()
	}
	return netip.IPv4Unspecified()
}

// groupFor returns the destination group for SendMulticast. The groups are
// fixed by the protocol.
func groupFor(family netif.Family, scope ssdp.IPv6Scope) netip.AddrPort {
	switch {
	case family == netif.IPv4:
		return netip.AddrPortFrom(netip.MustParseAddr(ssdp.MulticastAddrV4), ssdp.Port)
	case scope == ssdp.ScopeSiteLocal:
		return netip.AddrPortFrom(netip.MustParseAddr(ssdp.MulticastAddrV6Site), ssdp.Port)
	default:
		return netip.AddrPortFrom(netip.MustParseAddr(ssdp.MulticastAddrV6Link), ssdp.Port)
	}
}

func groupsToJoin(family netif.Family) []netip.Addr {
	if family == netif.IPv6 {
		return []netip.Addr{
			netip.MustParseAddr(ssdp.MulticastAddrV6Link),
			netip.MustParseAddr(ssdp.MulticastAddrV6Site),
		}
	}
	return []netip.Addr{netip.MustParseAddr(ssdp.MulticastAddrV4)}
}

func ifaceName(ifi *net.Interface) string {
	if ifi == nil {
		return "default"
	}
	return ifi.Name
}
