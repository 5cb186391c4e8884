package search

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/httpu"
	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/metrics"
	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/transport"
)

// Searcher runs bounded-time M-SEARCH collections. A zero Searcher is not
// usable; create one with New.
type Searcher struct {
	open       transport.Opener
	interfaces func() ([]netif.Interface, error)
	log        *zap.Logger
	now        func() time.Time
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithOpener replaces the socket opener, for tests.
func WithOpener(open transport.Opener) Option {
	return func(s *Searcher) { s.open = open }
}

// WithInterfaces fixes the interface list used when a search names no
// interface. By default the host's interfaces are listed on every search.
func WithInterfaces(list []netif.Interface) Option {
	return func(s *Searcher) {
		s.interfaces = func() ([]netif.Interface, error) { return list, nil }
	}
}

// WithLogger sets the logger. The default is the global logger named
// "search".
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) { s.log = l }
}

// New creates a Searcher.
func New(opts ...Option) *Searcher {
	s := &Searcher{
		open:       transport.DefaultOpener,
		interfaces: netif.List,
		log:        logging.Named("search"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search multicasts one M-SEARCH per socket and collects replies until
// MaxWait seconds have passed.
//
// With opts.Interface set one socket is used; otherwise one per eligible
// interface, and replies from all of them are merged in arrival order. It
// always waits the full window. Replies that fail to decode are logged and
// dropped. No replies is an empty, successful result.
//
// Errors: validation errors wrap ssdp.ErrInvalidOption; no eligible
// interface or no socket opened gives a *transport.SetupError; an
// *transport.IoError is returned only when every socket failed. If ctx ends
// first, the replies collected so far are returned with ctx.Err().
func (s *Searcher) Search(ctx context.Context, opts ssdp.SearchOptions) ([]*ssdp.SearchResponse, error) {
	req, err := ssdp.BuildSearchRequest(opts)
	if err != nil {
		return nil, err
	}
	metrics.SearchesTotal.WithLabelValues(opts.Version.String(), metrics.ModeMulticast).Inc()

	conns, err := s.openAll(opts)
	if err != nil {
		metrics.SearchErrorsTotal.WithLabelValues(metrics.ErrorKindSetup).Inc()
		return nil, err
	}

	start := s.now()
	deadline := start.Add(time.Duration(opts.EffectiveMaxWait()) * time.Second)
	s.log.Debug("Search started",
		zap.String("st", opts.RenderedTarget()),
		zap.Stringer("version", opts.Version),
		zap.Int("sockets", len(conns)),
		zap.Time("deadline", deadline),
	)

	responses, err := s.collect(ctx, conns, deadline, func(c transport.Conn) error {
		return c.SendMulticast(req.Bytes())
	})
	metrics.SearchDuration.Observe(s.now().Sub(start).Seconds())

	s.log.Debug("Search finished",
		zap.Int("responses", len(responses)),
		zap.Duration("elapsed", s.now().Sub(start)),
		zap.Error(err),
	)
	return responses, err
}

// SearchDevice sends a unicast M-SEARCH to one device and collects its
// replies for the same MaxWait window. Unicast search requires 1.1 or later.
func (s *Searcher) SearchDevice(ctx context.Context, opts ssdp.SearchOptions, device netip.AddrPort) ([]*ssdp.SearchResponse, error) {
	req, err := ssdp.BuildUnicastSearchRequest(opts, device)
	if err != nil {
		return nil, err
	}
	metrics.SearchesTotal.WithLabelValues(opts.Version.String(), metrics.ModeUnicast).Inc()

	conn, err := s.open(opts.Interface, opts.IPVersion, searchConfig(opts))
	if err != nil {
		metrics.SearchErrorsTotal.WithLabelValues(metrics.ErrorKindSetup).Inc()
		return nil, err
	}

	deadline := s.now().Add(time.Duration(opts.EffectiveMaxWait()) * time.Second)
	return s.collect(ctx, []transport.Conn{conn}, deadline, func(c transport.Conn) error {
		return c.Send(req.Bytes(), device)
	})
}

// openAll opens one socket per target interface. Interfaces that fail to
// open are skipped; the first SetupError is returned only if none opened.
func (s *Searcher) openAll(opts ssdp.SearchOptions) ([]transport.Conn, error) {
	cfg := searchConfig(opts)

	if opts.Interface != nil {
		conn, err := s.open(opts.Interface, opts.IPVersion, cfg)
		if err != nil {
			return nil, err
		}
		return []transport.Conn{conn}, nil
	}

	list, err := s.interfaces()
	if err != nil {
		return nil, &transport.SetupError{Kind: transport.InterfaceUnavailable, Err: err}
	}
	eligible := netif.Eligible(list, opts.IPVersion)
	if len(eligible) == 0 {
		return nil, &transport.SetupError{
			Kind: transport.InterfaceUnavailable,
			Err:  fmt.Errorf("no multicast-capable %s interface", opts.IPVersion),
		}
	}

	var conns []transport.Conn
	var firstErr error
	for i := range eligible {
		iface := eligible[i]
		conn, err := s.open(&iface, opts.IPVersion, cfg)
		if err != nil {
			s.log.Warn("Skipping interface", zap.String("interface", iface.Name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		conns = append(conns, conn)
	}
	if len(conns) == 0 {
		return nil, firstErr
	}
	return conns, nil
}

func searchConfig(opts ssdp.SearchOptions) transport.Config {
	cfg := transport.SearchConfig(opts.EffectiveTTL())
	cfg.IPv6Scope = opts.IPv6Scope
	return cfg
}

// collect sends on every conn and gathers decoded replies until deadline.
// The conns are closed before it returns.
func (s *Searcher) collect(parent context.Context, conns []transport.Conn, deadline time.Time, send func(transport.Conn) error) ([]*ssdp.SearchResponse, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer closeAll(conns)

	results := make(chan *ssdp.SearchResponse)
	errs := make([]error, len(conns))

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(i int, conn transport.Conn) {
			defer wg.Done()
			errs[i] = s.receiveLoop(ctx, conn, deadline, send, results)
		}(i, conn)
	}

	// Closing the sockets is what unblocks the receivers on cancellation.
	go func() {
		<-ctx.Done()
		closeAll(conns)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	responses := make([]*ssdp.SearchResponse, 0)
	for resp := range results {
		responses = append(responses, resp)
	}

	if err := parent.Err(); err != nil {
		return responses, err
	}

	failed := 0
	var firstErr error
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed == len(conns) {
		metrics.SearchErrorsTotal.WithLabelValues(metrics.ErrorKindIO).Inc()
		return responses, firstErr
	}
	return responses, nil
}

func closeAll(conns []transport.Conn) {
	for _, conn := range conns {
		conn.Close()
	}
}

func (s *Searcher) receiveLoop(ctx context.Context, conn transport.Conn, deadline time.Time, send func(transport.Conn) error, results chan<- *ssdp.SearchResponse) error {
	if err := send(conn); err != nil {
		s.log.Warn("Search send failed", zap.Stringer("local", conn.LocalAddr()), zap.Error(err))
		return err
	}

	for {
		dg, err := conn.ReceiveWithDeadline(deadline)
		switch {
		case errors.Is(err, transport.ErrTimedOut), errors.Is(err, transport.ErrClosed):
			return nil
		case err != nil:
			s.log.Warn("Search receive failed", zap.Stringer("local", conn.LocalAddr()), zap.Error(err))
			return err
		}

		resp, err := ssdp.ParseSearchResponse(dg.Data)
		if err != nil {
			metrics.SearchResponsesTotal.WithLabelValues(metrics.OutcomeDropped).Inc()
			s.logDropped(dg, err)
			continue
		}
		resp.From = dg.From
		resp.ReceivedAt = dg.ReceivedAt
		metrics.SearchResponsesTotal.WithLabelValues(metrics.OutcomeAccepted).Inc()

		select {
		case results <- resp:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Searcher) logDropped(dg transport.Datagram, err error) {
	var perr *httpu.ParseError
	if errors.As(err, &perr) {
		s.log.Debug("Dropping undecodable reply",
			zap.Stringer("from", dg.From),
			zap.Stringer("kind", perr.Kind),
			zap.String("header", perr.Header),
		)
	} else {
		s.log.Debug("Dropping undecodable reply", zap.Stringer("from", dg.From), zap.Error(err))
	}
	logging.LogRawBytes("Undecodable reply", dg.Data)
}

// Search runs one search with a default Searcher.
func Search(ctx context.Context, opts ssdp.SearchOptions) ([]*ssdp.SearchResponse, error) {
	return New().Search(ctx, opts)
}
