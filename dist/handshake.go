package dist

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/openproto/ecnode/etf"
	"github.com/openproto/ecnode/metrics"
)

const (
	handshakeTagName         = 'n'
	handshakeTagStatus       = 's'
	handshakeTagChallengeRep = 'r'
	handshakeTagChallengeAck = 'a'
)

// readHandshakeFrame reads a u16-length-prefixed handshake frame and
// returns its payload bytes (not including the length prefix).
func readHandshakeFrame(r *etf.Reader) ([]byte, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	return r.ReadExact(int(n))
}

// writeHandshakeFrame writes payload prefixed with its u16 length.
func writeHandshakeFrame(w *etf.Writer, payload []byte) error {
	if err := w.WriteU16(uint16(len(payload))); err != nil {
		return err
	}
	return w.WriteExact(payload)
}

// Accept runs the server-role distribution handshake over conn (spec
// steps 1-5: receive the peer's 'n' frame, send 's'+"ok", send our own
// 'n' challenge frame, receive and verify the peer's 'r' challenge
// reply, send our 'a' challenge ack) and returns a *Session ready for
// Serve. handler answers RegSend requests once the session is running.
func Accept(ctx context.Context, conn net.Conn, nodeName, cookie string, handler Handler) (*Session, error) {
	if len(nodeName) > etf.MaxNodeLen {
		return nil, rangeErrf("accept", "node name %q exceeds MaxNodeLen", nodeName)
	}
	if len(cookie) > etf.MaxCookieSize {
		return nil, rangeErrf("accept", "cookie exceeds MaxCookieSize")
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	tuneConn(conn)

	r := etf.NewReader(conn)
	w := etf.NewWriter(conn)

	s := &Session{conn: conn, nodeName: nodeName, cookie: cookie, handler: handler, state: StateAccepted}

	s.state = StateAwaitName
	peerFrame, err := readHandshakeFrame(r)
	if err != nil {
		metrics.HandshakeOutcomes.WithLabelValues("io_error").Inc()
		return nil, err
	}
	if len(peerFrame) < 7 || peerFrame[0] != handshakeTagName {
		metrics.HandshakeOutcomes.WithLabelValues("io_error").Inc()
		return nil, fmt.Errorf("dist: accept: expected 'n' frame, got % x", peerFrame)
	}
	peerVersion := uint16(peerFrame[1])<<8 | uint16(peerFrame[2])
	peerFlags := uint32(peerFrame[3])<<24 | uint32(peerFrame[4])<<16 | uint32(peerFrame[5])<<8 | uint32(peerFrame[6])
	if peerFlags&etf.RequiredFlags != etf.RequiredFlags {
		metrics.HandshakeOutcomes.WithLabelValues("bad_flags").Inc()
		return nil, fmt.Errorf("dist: accept: peer flags 0x%x missing required capability bits", peerFlags)
	}

	if err := writeHandshakeFrame(w, append([]byte{handshakeTagStatus}, "ok"...)); err != nil {
		metrics.HandshakeOutcomes.WithLabelValues("io_error").Inc()
		return nil, err
	}

	ourChallenge, err := newChallenge()
	if err != nil {
		metrics.HandshakeOutcomes.WithLabelValues("io_error").Inc()
		return nil, err
	}
	s.state = StateAwaitChallengeReply
	nFrame := make([]byte, 0, 11+len(nodeName))
	nFrame = append(nFrame, handshakeTagName)
	nFrame = append(nFrame, byte(peerVersion>>8), byte(peerVersion))
	nFrame = append(nFrame,
		byte(etf.OfferedFlags>>24), byte(etf.OfferedFlags>>16), byte(etf.OfferedFlags>>8), byte(etf.OfferedFlags))
	nFrame = append(nFrame,
		byte(ourChallenge>>24), byte(ourChallenge>>16), byte(ourChallenge>>8), byte(ourChallenge))
	nFrame = append(nFrame, nodeName...)
	if err := writeHandshakeFrame(w, nFrame); err != nil {
		metrics.HandshakeOutcomes.WithLabelValues("io_error").Inc()
		return nil, err
	}

	replyFrame, err := readHandshakeFrame(r)
	if err != nil {
		metrics.HandshakeOutcomes.WithLabelValues("io_error").Inc()
		return nil, err
	}
	if len(replyFrame) != 21 || replyFrame[0] != handshakeTagChallengeRep {
		metrics.HandshakeOutcomes.WithLabelValues("io_error").Inc()
		return nil, fmt.Errorf("dist: accept: expected 21-byte 'r' frame, got %d bytes", len(replyFrame))
	}
	theirChallenge := uint32(replyFrame[1])<<24 | uint32(replyFrame[2])<<16 | uint32(replyFrame[3])<<8 | uint32(replyFrame[4])
	theirDigest := replyFrame[5:21]
	expected := digest(cookie, ourChallenge)
	if !bytesEqual(expected[:], theirDigest) {
		metrics.HandshakeOutcomes.WithLabelValues("digest_mismatch").Inc()
		return nil, fmt.Errorf("dist: accept: challenge digest mismatch")
	}

	ourDigest := digest(cookie, theirChallenge)
	ackFrame := append([]byte{handshakeTagChallengeAck}, ourDigest[:]...)
	if err := writeHandshakeFrame(w, ackFrame); err != nil {
		metrics.HandshakeOutcomes.WithLabelValues("io_error").Inc()
		return nil, err
	}

	s.state = StateConnected
	metrics.HandshakeOutcomes.WithLabelValues("ok").Inc()
	return s, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func rangeErrf(op, format string, a ...interface{}) error {
	return etf.RangeErr("dist: "+op, format, a...)
}
