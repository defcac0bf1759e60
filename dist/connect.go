package dist

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/openproto/ecnode/etf"
)

// Connect runs the client-role distribution handshake: send our 'n'
// frame, receive the peer's 's'+"ok" status, receive the peer's 'n'
// challenge, send our 'r' challenge reply (our challenge + digest of
// their challenge), then receive and verify their 'a' challenge ack.
//
// Spec names only the server role ("Handshake (server role)") since the
// core assumes a TCP listener hands it an already-accepted socket; this
// supplies the symmetric caller-initiated counterpart so that a port
// resolved via epmd.Client.Port has something to dial into, grounded on
// the original source's own accept/connect pair.
func Connect(ctx context.Context, conn net.Conn, nodeName, cookie string) (*Session, error) {
	if len(nodeName) > etf.MaxNodeLen {
		return nil, rangeErrf("connect", "node name %q exceeds MaxNodeLen", nodeName)
	}
	if len(cookie) > etf.MaxCookieSize {
		return nil, rangeErrf("connect", "cookie exceeds MaxCookieSize")
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	tuneConn(conn)

	r := etf.NewReader(conn)
	w := etf.NewWriter(conn)

	s := &Session{conn: conn, nodeName: nodeName, cookie: cookie, state: StateAccepted}

	const ourVersion = 5
	nFrame := make([]byte, 0, 11+len(nodeName))
	nFrame = append(nFrame, handshakeTagName)
	nFrame = append(nFrame, byte(ourVersion>>8), byte(ourVersion))
	nFrame = append(nFrame,
		byte(etf.OfferedFlags>>24), byte(etf.OfferedFlags>>16), byte(etf.OfferedFlags>>8), byte(etf.OfferedFlags))
	nFrame = append(nFrame, nodeName...)
	if err := writeHandshakeFrame(w, nFrame); err != nil {
		return nil, err
	}

	s.state = StateAwaitName
	statusFrame, err := readHandshakeFrame(r)
	if err != nil {
		return nil, err
	}
	if len(statusFrame) < 1 || statusFrame[0] != handshakeTagStatus {
		return nil, fmt.Errorf("dist: connect: expected 's' frame, got % x", statusFrame)
	}
	if string(statusFrame[1:]) != "ok" {
		return nil, fmt.Errorf("dist: connect: handshake status %q", statusFrame[1:])
	}

	s.state = StateAwaitChallengeReply
	peerFrame, err := readHandshakeFrame(r)
	if err != nil {
		return nil, err
	}
	if len(peerFrame) < 11 || peerFrame[0] != handshakeTagName {
		return nil, fmt.Errorf("dist: connect: expected 'n' frame, got % x", peerFrame)
	}
	peerFlags := uint32(peerFrame[3])<<24 | uint32(peerFrame[4])<<16 | uint32(peerFrame[5])<<8 | uint32(peerFrame[6])
	if peerFlags&etf.RequiredFlags != etf.RequiredFlags {
		return nil, fmt.Errorf("dist: connect: peer flags 0x%x missing required capability bits", peerFlags)
	}
	theirChallenge := uint32(peerFrame[7])<<24 | uint32(peerFrame[8])<<16 | uint32(peerFrame[9])<<8 | uint32(peerFrame[10])

	ourChallenge, err := newChallenge()
	if err != nil {
		return nil, err
	}
	ourDigest := digest(cookie, theirChallenge)
	replyFrame := make([]byte, 0, 21)
	replyFrame = append(replyFrame, handshakeTagChallengeRep)
	replyFrame = append(replyFrame,
		byte(ourChallenge>>24), byte(ourChallenge>>16), byte(ourChallenge>>8), byte(ourChallenge))
	replyFrame = append(replyFrame, ourDigest[:]...)
	if err := writeHandshakeFrame(w, replyFrame); err != nil {
		return nil, err
	}

	ackFrame, err := readHandshakeFrame(r)
	if err != nil {
		return nil, err
	}
	if len(ackFrame) != 17 || ackFrame[0] != handshakeTagChallengeAck {
		return nil, fmt.Errorf("dist: connect: expected 17-byte 'a' frame, got %d bytes", len(ackFrame))
	}
	expected := digest(cookie, ourChallenge)
	if !bytesEqual(expected[:], ackFrame[1:]) {
		return nil, fmt.Errorf("dist: connect: challenge ack digest mismatch")
	}

	s.state = StateConnected
	return s, nil
}
