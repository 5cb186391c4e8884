//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddrControl sets SO_REUSEADDR, and SO_REUSEPORT where the platform
// has it, so several SSDP listeners can share port 1900.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if opErr != nil {
			return
		}
		// Not every kernel supports SO_REUSEPORT; SO_REUSEADDR alone is
		// enough for multicast there.
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil &&
			err != unix.ENOPROTOOPT && err != unix.EINVAL {
			opErr = err
		}
	})
	if err != nil {
		return err
	}
	return opErr
}
