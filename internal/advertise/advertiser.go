package advertise

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/metrics"
	"github.com/muurk/ssdp/internal/netif"
	"github.com/muurk/ssdp/internal/ssdp"
	"github.com/muurk/ssdp/internal/transport"
)

// DefaultRepeat is how many copies of each NOTIFY are sent, since UDP
// multicast delivery is unreliable.
const DefaultRepeat = 2

// Options configures an Advertiser.
type Options struct {
	Version   ssdp.Version
	Interface *netif.Interface // nil lets the OS pick the outgoing interface
	// Interfaces the responder joins the group on when Interface is nil.
	Interfaces []netif.Interface
	IPVersion netif.Family
	IPv6Scope ssdp.IPv6Scope
	Interval  time.Duration // re-announce period, 0 uses half the max-age
	Repeat    int           // copies per message, 0 uses DefaultRepeat
	Respond   bool          // also answer M-SEARCH requests while serving
	Opener    transport.Opener
	Logger    *zap.Logger
}

// Advertiser announces one root device with NOTIFY messages. It
// implements suture.Service through Serve.
type Advertiser struct {
	opts Options
	conn transport.Conn
	log  *zap.Logger

	mu     sync.Mutex
	device Device
}

// New validates the device and opens the sending socket.
func New(device Device, opts Options) (*Advertiser, error) {
	if err := device.Validate(); err != nil {
		return nil, err
	}
	if opts.Opener == nil {
		opts.Opener = transport.DefaultOpener
	}
	if opts.Repeat <= 0 {
		opts.Repeat = DefaultRepeat
	}
	if opts.Logger == nil {
		opts.Logger = logging.Named("advertise")
	}

	cfg := transport.AdvertiseConfig(opts.Version.PacketTTL())
	cfg.IPv6Scope = opts.IPv6Scope
	conn, err := opts.Opener(opts.Interface, opts.IPVersion, cfg)
	if err != nil {
		return nil, err
	}

	return &Advertiser{
		opts:   opts,
		conn:   conn,
		log:    opts.Logger.With(zap.String("uuid", device.UUID)),
		device: device,
	}, nil
}

// Device returns a copy of the advertised device.
func (a *Advertiser) Device() Device {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device
}

// Available sends ssdp:alive for every NT of the device.
func (a *Advertiser) Available() error {
	return a.announce(ssdp.Alive, a.Device(), 0)
}

// Unavailable sends ssdp:byebye for every NT of the device.
func (a *Advertiser) Unavailable() error {
	return a.announce(ssdp.ByeBye, a.Device(), 0)
}

// Update announces a new location with ssdp:update carrying the next boot
// id, then moves the device to that boot id. It requires 1.1 or later.
func (a *Advertiser) Update(location string) error {
	if a.opts.Version < ssdp.V11 {
		return fmt.Errorf("ssdp:update: %w (have %s, need 1.1)", ssdp.ErrUnsupportedVersion, a.opts.Version)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	dev := a.device
	if location != "" {
		dev.Location = location
	}
	next := dev.BootID + 1
	if err := a.announce(ssdp.Update, dev, next); err != nil {
		return err
	}
	dev.BootID = next
	a.device = dev
	return nil
}

func (a *Advertiser) announce(kind ssdp.NotificationKind, dev Device, nextBootID uint32) error {
	var firstErr error
	sent := 0
	for _, p := range dev.Notifications() {
		msg, err := ssdp.BuildNotify(ssdp.Notification{
			Kind:       kind,
			Version:    a.opts.Version,
			IPVersion:  a.opts.IPVersion,
			IPv6Scope:  a.opts.IPv6Scope,
			NT:         p.NT,
			USN:        p.USN,
			Location:   dev.Location,
			MaxAge:     dev.maxAge(),
			Server:     dev.Server,
			BootID:     dev.BootID,
			ConfigID:   dev.ConfigID,
			NextBootID: nextBootID,
			SearchPort: dev.SearchPort,
		})
		if err != nil {
			return err
		}
		data := msg.Bytes()
		for i := 0; i < a.opts.Repeat; i++ {
			if err := a.conn.SendMulticast(data); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			sent++
		}
		metrics.NotificationsSentTotal.WithLabelValues(kind.String()).Inc()
	}

	a.log.Debug("Announced", zap.Stringer("nts", kind), zap.Int("datagrams", sent))
	if sent == 0 && firstErr != nil {
		return firstErr
	}
	return nil
}

// Serve announces the device, re-announces it every interval and sends
// ssdp:byebye when ctx ends. With Options.Respond it also answers searches.
func (a *Advertiser) Serve(ctx context.Context) error {
	if a.opts.Respond {
		r, err := startResponder(a)
		if err != nil {
			return err
		}
		defer r.stop()
	}

	if err := a.Available(); err != nil {
		a.log.Warn("Initial announcement failed", zap.Error(err))
	}

	ticker := time.NewTicker(a.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.Available(); err != nil {
				a.log.Warn("Re-announcement failed", zap.Error(err))
			}
		case <-ctx.Done():
			if err := a.Unavailable(); err != nil && !errors.Is(err, transport.ErrClosed) {
				a.log.Warn("Byebye failed", zap.Error(err))
			}
			return ctx.Err()
		}
	}
}

func (a *Advertiser) interval() time.Duration {
	if a.opts.Interval > 0 {
		return a.opts.Interval
	}
	return time.Duration(a.Device().maxAge()) * time.Second / 2
}

// Close releases the sending socket.
func (a *Advertiser) Close() error {
	return a.conn.Close()
}

// String identifies the advertiser in supervisor events
func (a *Advertiser) String() string {
	return fmt.Sprintf("advertiser(uuid:%s)", a.Device().UUID)
}
