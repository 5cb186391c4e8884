package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/listener"
	"github.com/muurk/ssdp/internal/search"
	"github.com/muurk/ssdp/internal/transport"
)

// listenService feeds advertisements into the monitor. A listener that
// fails or closes makes Serve return, and the supervisor restarts it.
type listenService struct {
	m *Monitor
}

func (s *listenService) Serve(ctx context.Context) error {
	opts := s.m.opts
	l, err := listener.Start(listener.Options{
		Version:    opts.Search.Version,
		Interface:  opts.Interface,
		Interfaces: opts.Interfaces,
		IPVersion:  opts.IPVersion,
		QueueSize:  opts.QueueSize,
		Opener:     opts.Opener,
		Logger:     s.m.log.Named("listener"),
	})
	if err != nil {
		return err
	}
	defer l.Stop()

	for {
		adv, err := l.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.m.HandleAdvertisement(adv)
	}
}

func (s *listenService) String() string { return "monitor.listener" }

// searchService runs a search right away and then every SearchInterval.
type searchService struct {
	m        *Monitor
	searcher *search.Searcher
}

func (s *searchService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.m.opts.SearchInterval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *searchService) runOnce(ctx context.Context) {
	responses, err := s.searcher.Search(ctx, s.m.opts.Search)
	for _, r := range responses {
		s.m.HandleResponse(r)
	}
	switch {
	case err == nil:
		s.m.log.Debug("Periodic search done", zap.Int("responses", len(responses)))
	case ctx.Err() != nil:
	case errors.Is(err, transport.ErrClosed):
	default:
		s.m.log.Warn("Periodic search failed", zap.Error(err))
	}
}

func (s *searchService) String() string { return "monitor.search" }

type sweepService struct {
	m *Monitor
}

func (s *sweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.m.Sweep(); n > 0 {
				s.m.log.Debug("Expired devices removed", zap.Int("count", n))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *sweepService) String() string { return "monitor.sweeper" }
