package advertise

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/httpu"
	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/transport"
)

// responder answers M-SEARCH requests for the advertiser's device from a
// socket on the well-known port.
type responder struct {
	adv  *Advertiser
	conn transport.Conn
	wg   sync.WaitGroup

	mu      sync.Mutex
	pending map[*time.Timer]struct{}
	stopped bool
}

func startResponder(a *Advertiser) (*responder, error) {
	cfg := transport.ListenConfig()
	cfg.JoinOn = netif.Eligible(a.opts.Interfaces, a.opts.IPVersion)
	conn, err := a.opts.Opener(a.opts.Interface, a.opts.IPVersion, cfg)
	if err != nil {
		return nil, err
	}
	if err := conn.JoinGroup(); err != nil {
		conn.Close()
		return nil, err
	}

	r := &responder{adv: a, conn: conn, pending: make(map[*time.Timer]struct{})}
	r.wg.Add(1)
	go r.run()
	return r, nil
}

func (r *responder) run() {
	defer r.wg.Done()
	log := r.adv.log

	for {
		dg, err := r.conn.ReceiveBlocking()
		if err != nil {
			if !errors.Is(err, transport.ErrClosed) {
				log.Warn("Responder receive failed", zap.Error(err))
			}
			return
		}

		req, err := ssdp.ParseSearchRequest(dg.Data)
		if err != nil {
			var perr *httpu.ParseError
			if !errors.As(err, &perr) || perr.Kind != httpu.MalformedStartLine {
				log.Debug("Ignoring bad search request", zap.Stringer("from", dg.From), zap.Error(err))
			}
			continue
		}

		dev := r.adv.Device()
		pairs := dev.Matching(req.Target, req.ST)
		if len(pairs) == 0 {
			continue
		}
		log.Debug("Answering search",
			zap.Stringer("from", dg.From),
			zap.String("st", req.ST),
			zap.Int("replies", len(pairs)),
		)
		r.schedule(dg, req, dev, pairs)
	}
}

// schedule sends the replies after a random delay inside the requester's MX
// window. Unicast requests, which carry no MX, are answered at once.
func (r *responder) schedule(dg transport.Datagram, req *ssdp.SearchRequest, dev Device, pairs []Pair) {
	var delay time.Duration
	if mx := min(req.MaxWait, ssdp.MaxMaxWait); mx > 0 {
		delay = rand.N(time.Duration(mx) * time.Second)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.pending, timer)
		r.mu.Unlock()
		r.reply(dg, dev, pairs)
	})
	r.pending[timer] = struct{}{}
}

func (r *responder) reply(dg transport.Datagram, dev Device, pairs []Pair) {
	for _, p := range pairs {
		msg, err := ssdp.BuildSearchResponse(ssdp.SearchReply{
			Version:    r.adv.opts.Version,
			ST:         p.NT,
			USN:        p.USN,
			Location:   dev.Location,
			MaxAge:     dev.maxAge(),
			Server:     dev.Server,
			BootID:     dev.BootID,
			ConfigID:   dev.ConfigID,
			SearchPort: dev.SearchPort,
			Date:       time.Now(),
		})
		if err != nil {
			r.adv.log.Warn("Cannot build search reply", zap.Error(err))
			return
		}
		if err := r.conn.Send(msg.Bytes(), dg.From); err != nil {
			if !errors.Is(err, transport.ErrClosed) {
				r.adv.log.Warn("Search reply failed", zap.Stringer("to", dg.From), zap.Error(err))
			}
			return
		}
	}
}

func (r *responder) stop() {
	r.mu.Lock()
	r.stopped = true
	for t := range r.pending {
		t.Stop()
	}
	r.pending = nil
	r.mu.Unlock()

	r.conn.Close()
	r.wg.Wait()
}
