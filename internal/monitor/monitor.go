package monitor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/metrics"
	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/search"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/transport"
)

const (
	DefaultSize           = 1024
	DefaultSearchInterval = 5 * time.Minute
	DefaultSweepInterval  = 10 * time.Second
	// DefaultSubscriberBuffer is the channel size Subscribe uses for 0.
	DefaultSubscriberBuffer = 32
)

// Options configures a Monitor.
type Options struct {
	Search         ssdp.SearchOptions // version, target and MX of the periodic search
	Interface      *netif.Interface   // nil uses every eligible interface
	IPVersion      netif.Family
	SearchInterval time.Duration // 0 uses DefaultSearchInterval, < 0 disables searching
	SweepInterval  time.Duration // 0 uses DefaultSweepInterval
	NoListen       bool          // skip the advertisement listener
	Size           int           // max tracked USNs, 0 uses DefaultSize
	QueueSize      int           // listener queue
	Opener         transport.Opener
	Interfaces     []netif.Interface // joined by the listener; nil searches list the host's interfaces
	Logger         *zap.Logger
}

// Monitor tracks which devices are present on the network. Search replies
// and alive/update advertisements add or refresh a USN, byebye and expiry
// remove it. Changes are published to subscribers as Events.
//
// Monitor is a suture.Supervisor: Serve (or ServeBackground) runs the
// listener, periodic search and sweeper until the context ends.
type Monitor struct {
	*suture.Supervisor

	opts Options
	log  *zap.Logger
	now  func() time.Time

	mu      sync.Mutex
	devices *lru.Cache[string, Device]
	subs    map[int]chan Event
	nextSub int
}

// New validates opts and builds the supervisor tree. Nothing touches the
// network until Serve.
func New(opts Options) (*Monitor, error) {
	if err := opts.Search.Validate(); err != nil {
		return nil, err
	}
	if opts.Search.Interface == nil {
		opts.Search.Interface = opts.Interface
	}
	opts.Search.IPVersion = opts.IPVersion
	if opts.SearchInterval == 0 {
		opts.SearchInterval = DefaultSearchInterval
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Opener == nil {
		opts.Opener = transport.DefaultOpener
	}
	if opts.Logger == nil {
		opts.Logger = logging.Named("monitor")
	}

	devices, err := lru.New[string, Device](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create device table: %w", err)
	}

	log := opts.Logger
	m := &Monitor{
		Supervisor: suture.New("monitor", suture.Spec{
			EventHook: func(e suture.Event) { log.Debug("Supervisor event", zap.Stringer("event", e)) },
		}),
		opts:    opts,
		log:     log,
		now:     time.Now,
		devices: devices,
		subs:    make(map[int]chan Event),
	}

	if !opts.NoListen {
		m.Add(&listenService{m: m})
	}
	if opts.SearchInterval > 0 {
		searchOpts := []search.Option{search.WithOpener(opts.Opener), search.WithLogger(log.Named("search"))}
		if opts.Interfaces != nil {
			searchOpts = append(searchOpts, search.WithInterfaces(opts.Interfaces))
		}
		m.Add(&searchService{m: m, searcher: search.New(searchOpts...)})
	}
	m.Add(&sweepService{m: m})
	return m, nil
}

// Subscribe returns a channel of events and a function that cancels the
// subscription and closes the channel. A subscriber that falls behind by
// more than buffer events misses the excess.
func (m *Monitor) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// HandleResponse records a search reply.
func (m *Monitor) HandleResponse(r *ssdp.SearchResponse) {
	if r == nil || r.USN == "" {
		return
	}
	m.upsert(fromResponse(r, m.now()))
}

// HandleAdvertisement records a NOTIFY: alive and update refresh the USN,
// byebye removes it.
func (m *Monitor) HandleAdvertisement(a *ssdp.Advertisement) {
	if a == nil || a.USN == "" {
		return
	}
	if a.Kind == ssdp.ByeBye {
		m.remove(a.USN)
		return
	}
	m.upsert(fromAdvertisement(a, m.now()))
}

func (m *Monitor) upsert(dev Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, known := m.devices.Peek(dev.USN)
	if dev.ExpiresAt.IsZero() {
		if known {
			dev.ExpiresAt = old.ExpiresAt
		} else {
			dev.ExpiresAt = dev.LastSeen.Add(time.Duration(ssdp.DefaultMaxAge) * time.Second)
		}
	}

	if !known {
		if m.devices.Len() >= m.opts.Size {
			if usn, evicted, ok := m.devices.RemoveOldest(); ok {
				m.log.Debug("Device table full, evicting", zap.String("usn", usn))
				m.publishLocked(Gone, evicted)
			}
		}
		m.devices.Add(dev.USN, dev)
		m.publishLocked(Appeared, dev)
		return
	}

	dev.FirstSeen = old.FirstSeen
	m.devices.Add(dev.USN, dev)
	if old.changed(dev) {
		m.publishLocked(Updated, dev)
	}
}

func (m *Monitor) remove(usn string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dev, ok := m.devices.Peek(usn)
	if !ok {
		return
	}
	m.devices.Remove(usn)
	m.publishLocked(Gone, dev)
}

// Sweep removes every device whose max-age has run out and returns how
// many were removed.
func (m *Monitor) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, usn := range m.devices.Keys() {
		dev, ok := m.devices.Peek(usn)
		if !ok || !now.After(dev.ExpiresAt) {
			continue
		}
		m.devices.Remove(usn)
		m.publishLocked(Gone, dev)
		removed++
	}
	return removed
}

// publishLocked must be called with m.mu held.
func (m *Monitor) publishLocked(t EventType, dev Device) {
	metrics.DeviceEventsTotal.WithLabelValues(t.String()).Inc()
	metrics.DevicesPresent.Set(float64(m.devices.Len()))

	ev := Event{Type: t, Device: dev, At: m.now()}
	m.log.Debug("Presence changed", zap.Stringer("event", ev))
	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.log.Debug("Subscriber behind, event dropped", zap.Int("subscriber", id))
		}
	}
}

// Devices returns the tracked devices sorted by USN.
func (m *Monitor) Devices() []Device {
	m.mu.Lock()
	out := m.devices.Values()
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].USN < out[j].USN })
	return out
}

// Get returns the device tracked under usn.
func (m *Monitor) Get(usn string) (Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devices.Peek(usn)
}

// Len returns the number of tracked devices.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devices.Len()
}
