package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/monitor"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Events buffered per stream before the stream starts missing them
	streamBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Message kinds on the event stream.
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
)

// StreamMessage is one JSON text frame on /ws. The first frame is a
// snapshot of the current devices; every following frame carries one event.
type StreamMessage struct {
	Kind    string           `json:"kind"`
	Devices []monitor.Device `json:"devices,omitempty"`
	Event   *monitor.Event   `json:"event,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.log.Debug("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	remoteAddr := r.RemoteAddr

	s.mu.Lock()
	select {
	case <-s.closing:
		s.mu.Unlock()
		_ = conn.Close()
		return
	default:
	}
	s.activeConns[remoteAddr] = conn
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		s.wg.Done()
		s.log.Info("Event stream closed", zap.String("remote_addr", remoteAddr))
	}()
	s.log.Info("Event stream opened", zap.String("remote_addr", remoteAddr))

	// Subscribe before the snapshot so no change falls between the two.
	events, cancel := s.source.Subscribe(streamBuffer)
	defer cancel()

	readerDone := make(chan struct{})
	go s.readPump(conn, remoteAddr, readerDone)

	if err := s.write(conn, StreamMessage{Kind: MessageSnapshot, Devices: s.source.Devices()}); err != nil {
		s.log.Debug("Snapshot write failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.write(conn, StreamMessage{Kind: MessageEvent, Event: &ev}); err != nil {
				s.log.Debug("Event write failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-readerDone:
			return
		case <-s.closing:
			return
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// readPump consumes client frames so pongs and close frames are processed.
// The stream is one-way; anything else the client sends is ignored.
func (s *Server) readPump(conn *websocket.Conn, remoteAddr string, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Event stream read failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
			}
			return
		}
	}
}
