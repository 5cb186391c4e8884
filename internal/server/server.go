package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/logging"
	"github.com/muurk/ssdp/internal/monitor"
)

// DefaultPort is the port the CLI serves the feed on.
const DefaultPort = 8900

// Config holds the server configuration
type Config struct {
	Host     string
	Port     int    // 0 picks a free port
	CertPath string // serve HTTPS when both CertPath and KeyPath are set
	KeyPath  string
}

// Addr returns the host:port the server listens on
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Source is what the server publishes. *monitor.Monitor implements it.
type Source interface {
	Devices() []monitor.Device
	Subscribe(buffer int) (<-chan monitor.Event, func())
}

// Server exposes a device Source over HTTP: a JSON snapshot, a WebSocket
// event stream and the Prometheus metrics.
type Server struct {
	config    *Config
	source    Source
	log       *zap.Logger
	tlsConfig *tls.Config
	http      *http.Server

	listener    net.Listener
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
	closing     chan struct{}
	closeOnce   sync.Once
}

// New creates a new Server instance
func New(config *Config, source Source) (*Server, error) {
	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	s := &Server{
		config:      config,
		source:      source,
		log:         logging.Named("server"),
		tlsConfig:   tlsConfig,
		activeConns: make(map[string]*websocket.Conn),
		closing:     make(chan struct{}),
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Listen binds the listening socket. Start calls it if needed; calling it
// first lets the caller learn the bound address.
func (s *Server) Listen() (net.Addr, error) {
	if s.listener != nil {
		return s.listener.Addr(), nil
	}
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Start serves until ctx ends, SIGINT/SIGTERM arrives or the listener
// fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}

	fields := []zap.Field{zap.Stringer("addr", addr), zap.Bool("tls", s.tlsConfig != nil)}
	if s.tlsConfig != nil {
		fields = append(fields, zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
	}
	s.log.Info("Serving device feed", fields...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.http.Serve(s.listener)
	}()

	select {
	case <-sigChan:
		s.log.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, closes the WebSocket streams and waits
// for their handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server...")
	s.closeOnce.Do(func() { close(s.closing) })

	err := s.http.Shutdown(ctx)

	// Hijacked connections are not tracked by http.Server.
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		s.log.Debug("Closing event stream", zap.String("remote_addr", addr))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("All connections closed gracefully")
	case <-ctx.Done():
		s.log.Warn("Shutdown timeout, forcing close")
	}
	return err
}

// GetActiveConnections returns the number of open event streams
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
