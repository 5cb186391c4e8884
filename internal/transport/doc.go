// Package transport owns the UDP sockets SSDP runs over.
//
// A Socket is opened for one interface and IP family, optionally joined to
// the fixed SSDP multicast group, and then used to send datagrams and to
// receive them either with a deadline (search) or blocking (listener). The
// group address is chosen by family and never configurable.
//
// Errors fall into three groups:
//
//   - *SetupError: the socket could not be created, bound or joined. Kind
//     tells which step failed.
//   - *IoError: a send or receive failed on an open socket.
//   - ErrTimedOut and ErrClosed: sentinels for the two expected ways a
//     receive ends without data.
//
// Consumers depend on the Conn interface and an Opener so that tests can
// substitute in-memory sockets.
package transport
