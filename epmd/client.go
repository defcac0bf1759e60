// Package epmd is a client for the Erlang Port Mapper Daemon: the small
// local TCP service that maps alive-names to the TCP ports on which
// Erlang nodes listen.
//
// See http://erlang.org/doc/apps/erts/erl_dist_protocol.html#epmd_protocol
package epmd

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/m-lab/go/logx"

	"github.com/openproto/ecnode/etf"
	"github.com/openproto/ecnode/metrics"
)

var keepAliveLog = logx.NewLogEvery(nil, time.Minute)

// Protocol constants from erl_interface's ei_epmd.h.
const (
	DefaultPort = 4369

	distHigh = 6
	distLow  = 5

	hiddenNode = 0x68
	myProto    = 0x00

	reqAlive2 = 0x78
	respAlive2 = 0x79
	reqPort2   = 0x7a
	respPort2  = 0x77

	success = 0
)

// MaxAliveLen is EI_MAXALIVELEN: the longest alive-name EPMD accepts.
const MaxAliveLen = etf.MaxAliveLen

// Client dials the local EPMD instance listening on Port (default 4369,
// overridable the way ERL_EPMD_PORT overrides it for real Erlang nodes).
type Client struct {
	Port int
}

// NewClient returns a Client targeting the given port, or DefaultPort if
// port is 0.
func NewClient(port int) *Client {
	if port == 0 {
		port = DefaultPort
	}
	return &Client{Port: port}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(c.Port))
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, etf.IOErr("epmd: dial "+addr, err)
	}
	return conn, nil
}

// Registration is a held EPMD registration. Closing it closes the
// underlying TCP connection, which EPMD treats as the node
// unregistering.
type Registration struct {
	conn     net.Conn
	Creation uint16
}

// Close unregisters the node by closing the held connection.
func (r *Registration) Close() error {
	return r.conn.Close()
}

// KeepAlive blocks, polling the held registration connection until ctx is
// canceled or epmd closes it (which unregisters the node). EPMD needs no
// application-level ping traffic — the registration lives exactly as
// long as the TCP connection does — but a long-running node still wants
// to notice and log that loss promptly rather than silently operating
// unregistered; repeated liveness lines are throttled the way dist's
// message loop throttles tick logging.
func (r *Registration) KeepAlive(ctx context.Context) error {
	one := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.conn.SetReadDeadline(time.Now().Add(time.Second))
		_, err := r.conn.Read(one)
		if err == nil {
			return etf.InvalidDataErr("epmd: keepalive", "unexpected data from epmd")
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			keepAliveLog.Println("epmd: registration still held")
			continue
		}
		return etf.IOErr("epmd: keepalive: registration lost", err)
	}
}

// Publish registers alive as listening on port, per the ALIVE2 request.
// The registration's lifetime IS the node's registration: closing it (or
// losing the connection) unregisters the node. Implements the newer
// Alive2 response shape (status byte + u16 creation), per this
// implementation's resolution of the source's documented ambiguity
// between codebases on this point.
func (c *Client) Publish(ctx context.Context, alive string, port uint16) (*Registration, error) {
	start := time.Now()
	defer func() { metrics.EPMDLatency.WithLabelValues("publish").Observe(time.Since(start).Seconds()) }()
	if len(alive) > MaxAliveLen {
		return nil, etf.RangeErr("publish", "alive name %q exceeds EI_MAXALIVELEN", alive)
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	w := etf.NewWriter(conn)
	reqLen := 13 + len(alive)
	if err := w.WriteU16(uint16(reqLen)); err != nil {
		conn.Close()
		return nil, err
	}
	if err := writeAll(w,
		func() error { return w.WriteU8(reqAlive2) },
		func() error { return w.WriteU16(port) },
		func() error { return w.WriteU8(hiddenNode) },
		func() error { return w.WriteU8(myProto) },
		func() error { return w.WriteU16(distHigh) },
		func() error { return w.WriteU16(distLow) },
		func() error { return w.WriteU16(uint16(len(alive))) },
		func() error { return w.WriteExact([]byte(alive)) },
		func() error { return w.WriteU16(0) },
	); err != nil {
		conn.Close()
		return nil, err
	}

	r := etf.NewReader(conn)
	tag, err := r.ReadU8()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if tag != respAlive2 {
		conn.Close()
		return nil, etf.ErrInvalidData("epmd: publish", tag)
	}
	status, err := r.ReadU8()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if status != success {
		conn.Close()
		return nil, etf.InvalidDataErr("epmd: publish", "alive name %q already registered (status %d)", alive, status)
	}
	creation, err := r.ReadU16()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Registration{conn: conn, Creation: creation}, nil
}

// Port looks up the TCP port and negotiated distribution version for
// alive, closing the connection before returning (lookups are one-shot).
func (c *Client) Port(ctx context.Context, alive string) (tcpPort int, distVersion int, err error) {
	start := time.Now()
	defer func() { metrics.EPMDLatency.WithLabelValues("port").Observe(time.Since(start).Seconds()) }()
	if len(alive) > MaxAliveLen {
		return 0, 0, etf.RangeErr("port", "alive name %q exceeds EI_MAXALIVELEN", alive)
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()

	w := etf.NewWriter(conn)
	if err := w.WriteU16(uint16(1 + len(alive))); err != nil {
		return 0, 0, err
	}
	if err := w.WriteU8(reqPort2); err != nil {
		return 0, 0, err
	}
	if err := w.WriteExact([]byte(alive)); err != nil {
		return 0, 0, err
	}

	r := etf.NewReader(conn)
	tag, err := r.ReadU8()
	if err != nil {
		return 0, 0, err
	}
	if tag != respPort2 {
		return 0, 0, etf.ErrInvalidData("epmd: port", tag)
	}
	status, err := r.ReadU8()
	if err != nil {
		return 0, 0, err
	}
	if status != success {
		return 0, 0, etf.InvalidDataErr("epmd: port", "lookup of %q failed with status %d", alive, status)
	}
	port, err := r.ReadU16()
	if err != nil {
		return 0, 0, err
	}
	nodeType, err := r.ReadU8()
	if err != nil {
		return 0, 0, err
	}
	if nodeType != hiddenNode {
		return 0, 0, etf.ErrInvalidData("epmd: port", nodeType)
	}
	proto, err := r.ReadU8()
	if err != nil {
		return 0, 0, err
	}
	if proto != myProto {
		return 0, 0, etf.ErrInvalidData("epmd: port", proto)
	}
	high, err := r.ReadU16()
	if err != nil {
		return 0, 0, err
	}
	low, err := r.ReadU16()
	if err != nil {
		return 0, 0, err
	}
	if low > distHigh || high < distLow {
		return 0, 0, etf.InvalidDataErr("epmd: port", "no overlapping distribution version (peer %d..%d)", low, high)
	}
	version := distHigh
	if int(high) < version {
		version = int(high)
	}
	return int(port), version, nil
}

func writeAll(w *etf.Writer, fns ...func() error) error {
	for _, fn := range fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
