// Package ui provides terminal output for the ssdp command.
//
// Static output (command headers, result boxes, device cards and one-line
// renderings of responses, advertisements and monitor events) is rendered
// with Lipgloss and written through a Printer. Two Bubble Tea views cover
// the commands that wait:
//
//   - SearchModel: spinner and a bar filling over the MX window while a
//     search runs; pressing q stops waiting and keeps what has arrived.
//   - LiveModel: a scrolling list fed from a channel of rendered lines,
//     used by listen and monitor, with pause and clear keys.
//
// RunSearch and RunLive fall back to plain output when stdout is not a
// terminal, so the commands can be piped.
//
// # Logging Integration
//
// Logging is controlled by the SSDP_LOG_LEVEL environment variable. When
// it is unset zap is silent and only the curated output is shown.
package ui
