package dist

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneConn disables Nagle's algorithm and enables TCP keepalive on conn,
// the way a real distribution channel is tuned: small control frames
// (ticks, short control tuples) must not sit buffered waiting for more
// data to coalesce with. The `net` package exposes SetNoDelay and
// SetKeepAlive directly; in addition, SO_KEEPALIVE is set once more on
// the raw fd through golang.org/x/sys/unix, the same way the teacher
// reaches past `net` for socket-level detail. No keepalive interval is
// configured.
func tuneConn(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tc.SetNoDelay(true)
	tc.SetKeepAlive(true)

	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	})
}
