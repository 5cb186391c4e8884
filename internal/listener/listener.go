package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/httpu"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/metrics"
	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/transport"
)

// DefaultQueueSize is the number of decoded advertisements buffered for
// Next before new ones are dropped.
const DefaultQueueSize = 64

// ErrClosed is returned by Next once the listener has stopped.
var ErrClosed = transport.ErrClosed

// State is the lifecycle state of a Listener.
type State int32

const (
	Listening State = iota
	Closed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Listening:
		return "Listening"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures a listener.
type Options struct {
	Version   ssdp.Version     // 1.0 listeners drop ssdp:update
	Interface *netif.Interface // nil binds the wildcard address
	// Interfaces are joined to the group when Interface is nil. Only the
	// eligible ones for IPVersion are used; none joins on the default.
	Interfaces []netif.Interface
	IPVersion  netif.Family
	QueueSize int              // 0 uses DefaultQueueSize
	Opener    transport.Opener // nil uses transport.DefaultOpener
	Logger    *zap.Logger      // nil uses the global logger
}

// Listener receives NOTIFY advertisements in the background. Next and Stop
// may be called from different goroutines.
type Listener struct {
	conn    transport.Conn
	version ssdp.Version
	log     *zap.Logger

	queue   chan *ssdp.Advertisement
	done    chan struct{}
	state   atomic.Int32
	dropped atomic.Uint64
	wg      sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Start opens the listen socket, joins the multicast group and starts the
// receive loop. A setup failure is returned as a *transport.SetupError and
// no goroutine is started.
func Start(opts Options) (*Listener, error) {
	open := opts.Opener
	if open == nil {
		open = transport.DefaultOpener
	}
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	log := opts.Logger
	if log == nil {
		log = logging.Named("listener")
	}

	cfg := transport.ListenConfig()
	cfg.JoinOn = netif.Eligible(opts.Interfaces, opts.IPVersion)
	conn, err := open(opts.Interface, opts.IPVersion, cfg)
	if err != nil {
		return nil, err
	}
	if err := conn.JoinGroup(); err != nil {
		conn.Close()
		return nil, err
	}

	l := &Listener{
		conn:    conn,
		version: opts.Version,
		log:     log,
		queue:   make(chan *ssdp.Advertisement, size),
		done:    make(chan struct{}),
	}
	l.state.Store(int32(Listening))

	l.wg.Add(1)
	go l.run()

	log.Info("Listening for advertisements",
		zap.Stringer("version", opts.Version),
		zap.Stringer("family", opts.IPVersion),
		zap.Stringer("local", conn.LocalAddr()),
	)
	return l, nil
}

func (l *Listener) run() {
	defer l.wg.Done()
	defer close(l.queue)

	for {
		dg, err := l.conn.ReceiveBlocking()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || l.State() == Closed {
				return
			}
			l.log.Error("Receive failed, listener stopping", zap.Error(err))
			l.setErr(err)
			return
		}

		adv, err := ssdp.ParseAdvertisement(dg.Data)
		if err != nil {
			metrics.ListenerDroppedTotal.WithLabelValues(metrics.DropMalformed).Inc()
			l.logDropped(dg, err)
			continue
		}
		if adv.Kind == ssdp.Update && l.version < ssdp.V11 {
			metrics.ListenerDroppedTotal.WithLabelValues(metrics.DropUnsupported).Inc()
			l.log.Debug("Dropping ssdp:update on a 1.0 listener", zap.String("usn", adv.USN))
			continue
		}
		adv.From = dg.From
		adv.ReceivedAt = dg.ReceivedAt
		metrics.AdvertisementsTotal.WithLabelValues(adv.Kind.String()).Inc()

		select {
		case l.queue <- adv:
		default:
			l.dropped.Add(1)
			metrics.ListenerDroppedTotal.WithLabelValues(metrics.DropQueueFull).Inc()
			l.log.Warn("Advertisement queue full, dropping",
				zap.String("usn", adv.USN),
				zap.Stringer("nts", adv.Kind),
			)
		}
	}
}

func (l *Listener) logDropped(dg transport.Datagram, err error) {
	var perr *httpu.ParseError
	if errors.As(err, &perr) && perr.Kind == httpu.MalformedStartLine {
		// M-SEARCH requests from other control points share the group.
		l.log.Debug("Ignoring non-NOTIFY datagram", zap.Stringer("from", dg.From), zap.String("line", perr.Line))
		return
	}
	l.log.Debug("Dropping undecodable advertisement", zap.Stringer("from", dg.From), zap.Error(err))
}

// Next blocks until the next advertisement arrives, the listener stops
// (ErrClosed), or ctx ends. After Stop it never returns an advertisement,
// even if some were still queued. If the receive loop failed, its error is
// returned instead of ErrClosed.
func (l *Listener) Next(ctx context.Context) (*ssdp.Advertisement, error) {
	if l.State() == Closed {
		return nil, ErrClosed
	}

	select {
	case adv, ok := <-l.queue:
		if !ok {
			if err := l.Err(); err != nil {
				return nil, err
			}
			return nil, ErrClosed
		}
		if l.State() == Closed {
			return nil, ErrClosed
		}
		return adv, nil
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop closes the listener: the state flips to Closed, the socket is closed
// to unblock the receive loop, and Stop waits for the loop to exit. Any Next
// blocked concurrently returns ErrClosed. Stop is idempotent.
func (l *Listener) Stop() error {
	if !l.state.CompareAndSwap(int32(Listening), int32(Closed)) {
		return nil
	}
	close(l.done)
	err := l.conn.Close()
	l.wg.Wait()

	l.log.Info("Listener stopped", zap.Uint64("dropped", l.Dropped()))
	return err
}

// State returns the current state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// Dropped returns how many decoded advertisements were dropped because the
// queue was full.
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}

// Err returns the receive error that ended the loop, if any.
func (l *Listener) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

func (l *Listener) setErr(err error) {
	l.errMu.Lock()
	l.err = err
	l.errMu.Unlock()
}

// LocalAddr returns the address the listener is bound to.
func (l *Listener) LocalAddr() string {
	return l.conn.LocalAddr().String()
}
