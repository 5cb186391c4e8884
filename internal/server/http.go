package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/ssdp/internal/monitor"
)

// Handler returns the server's routes:
//
//	GET /devices   JSON snapshot of the tracked devices
//	GET /ws        WebSocket stream of presence events
//	GET /metrics   Prometheus metrics
//	GET /ping      liveness
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/devices", s.handleDevices)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	return s.logRequests(mux)
}

// DevicesResponse is the body of GET /devices.
type DevicesResponse struct {
	Count   int              `json:"count"`
	Devices []monitor.Device `json:"devices"`
	At      time.Time        `json:"at"`
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices := s.source.Devices()
	if devices == nil {
		devices = []monitor.Device{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(DevicesResponse{
		Count:   len(devices),
		Devices: devices,
		At:      time.Now(),
	}); err != nil {
		s.log.Warn("Failed to write device snapshot", zap.Error(err))
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("HTTP request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("user_agent", r.UserAgent()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
