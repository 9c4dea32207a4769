//go:build unix

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddr enables SO_REUSEADDR so a restarted server can bind its port
// while the previous socket is still in TIME_WAIT.
func reuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
