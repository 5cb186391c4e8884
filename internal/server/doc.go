// Package server publishes the devices tracked by a monitor over HTTP.
//
// # Endpoints
//
//   - GET /devices: JSON snapshot of the current device table
//   - GET /ws: WebSocket stream, one JSON text frame per message
//   - GET /metrics: Prometheus metrics for search, listener, advertise and monitor
//   - GET /ping: liveness check
//
// # Event Stream
//
// The first frame on /ws is a snapshot:
//
//	{"kind":"snapshot","devices":[{"usn":"uuid:...::upnp:rootdevice", ...}]}
//
// followed by one frame per presence change:
//
//	{"kind":"event","event":{"type":"appeared","device":{...},"at":"..."}}
//
// The server pings every 54 seconds and drops a client that has not
// answered within 60. A client that reads too slowly misses events rather
// than holding up the monitor.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{Port: 8900}, mon)
//	if err != nil {
//	    return err
//	}
//	// Start blocks until ctx ends or SIGINT/SIGTERM.
//	return srv.Start(ctx)
//
// # TLS
//
// With CertPath and KeyPath set the feed is served over HTTPS (TLS 1.2 or
// later).
//
// # Graceful Shutdown
//
// Shutdown stops accepting requests, sends a going-away close frame to every
// stream and waits for their handlers to return.
package server
