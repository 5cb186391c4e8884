// Package logging provides structured logging for the SSDP tools.
//
// This package wraps a global zap logger with convenience functions. It is
// silent by default so that command output stays clean; set SSDP_LOG_LEVEL or
// pass --log-level to see what the discovery engine is doing.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Datagram dumps, decode failures, per-socket activity
//   - Info: Searches started/finished, listener lifecycle, server events
//   - Warn: Clamped options, dropped advertisements, interfaces that failed to open
//   - Error: Fatal setup problems
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Search complete",
//	    zap.String("st", "upnp:rootdevice"),
//	    zap.Int("responses", 7),
//	    zap.Duration("elapsed", elapsed),
//	)
//
// # Component Loggers
//
// Long-lived components take a *zap.Logger and default to a named child of
// the global logger:
//
//	log := logging.Named("listener")
//	logging.LogDatagram(log, "recv", from, data)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize(logLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Log output goes to stderr so that JSON output on stdout can be piped.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// are expected to be called once at startup.
package logging
