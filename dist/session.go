// Package dist implements the Erlang distribution handshake and the
// framed post-handshake message loop that rides over an accepted TCP
// socket, turning it into a channel an Erlang/OTP node recognizes as a
// hidden node.
package dist

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/m-lab/go/logx"
	"github.com/m-lab/uuid"

	"github.com/openproto/ecnode/etf"
	"github.com/openproto/ecnode/metrics"
)

// Handler answers a RegSend control message: from is the sender's Pid,
// toName is the registered name the message was addressed to, and
// payload is a reader positioned just after the version-magic byte that
// precedes the message body. A returned error means "no reply"; the
// session loop continues without failing.
type Handler interface {
	Handle(ctx context.Context, from etf.Pid, toName string, payload *etf.Reader) ([]byte, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, from etf.Pid, toName string, payload *etf.Reader) ([]byte, error)

func (f HandlerFunc) Handle(ctx context.Context, from etf.Pid, toName string, payload *etf.Reader) ([]byte, error) {
	return f(ctx, from, toName, payload)
}

var tickLog = logx.NewLogEvery(nil, 30*time.Second)

// Session is one distribution channel: a peer socket past the
// handshake, reading and writing the framed control-tuple protocol
// described in spec §4.5. A Session is used by exactly one goroutine at
// a time; the hosting program parallelizes by running one Session per
// accepted connection, not by sharing a Session across goroutines.
type Session struct {
	conn     net.Conn
	nodeName string
	cookie   string
	handler  Handler
	state    SessionState
	uuid     string
}

// State reports the session's current point in its lifecycle, for
// logging and metrics labels only.
func (s *Session) State() SessionState { return s.state }

// SetHandler assigns (or replaces) the RegSend handler, for sessions
// built via Connect that don't supply one up front.
func (s *Session) SetHandler(h Handler) { s.handler = h }

func (s *Session) logID() string {
	if s.uuid != "" {
		return s.uuid
	}
	if tc, ok := s.conn.(*net.TCPConn); ok {
		if id, err := uuid.FromTCPConn(tc); err == nil {
			s.uuid = id
			return id
		}
	}
	s.uuid = "unknown"
	return s.uuid
}

// Serve runs the message loop (spec §4.5 "Message loop") until the
// socket closes, the context is canceled, or a protocol violation is
// observed. Any such outcome is fatal to this session only; it does not
// affect other sessions.
func (s *Session) Serve(ctx context.Context) error {
	defer func() { s.state = StateClosed }()

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	r := etf.NewReader(s.conn)
	w := etf.NewWriter(s.conn)

	for {
		size, err := r.ReadU32()
		if err != nil {
			return fmt.Errorf("dist: session %s: read frame size: %w", s.logID(), err)
		}
		if size == 0 {
			metrics.FramesTotal.WithLabelValues("tick").Inc()
			tickLog.Println("dist: tick from session", s.logID())
			continue
		}
		metrics.FramesTotal.WithLabelValues("data").Inc()

		frame, err := r.ReadExact(int(size))
		if err != nil {
			return fmt.Errorf("dist: session %s: read frame body: %w", s.logID(), err)
		}
		if len(frame) < 2 || frame[0] != etf.PassThrough || frame[1] != etf.VersionMagic {
			return fmt.Errorf("dist: session %s: frame does not start with pass-through + version magic", s.logID())
		}

		body := bytes.NewReader(frame[2:])
		br := etf.NewReader(body)
		msg, err := br.ReadMsg()
		if err != nil {
			metrics.CodecErrors.WithLabelValues("decode msg", "io").Inc()
			return fmt.Errorf("dist: session %s: decode control tuple: %w", s.logID(), err)
		}

		regSend, ok := msg.(etf.RegSend)
		if !ok {
			return fmt.Errorf("dist: session %s: control message %T is out of scope for this core", s.logID(), msg)
		}

		magic, err := br.ReadU8()
		if err != nil {
			return fmt.Errorf("dist: session %s: read payload version magic: %w", s.logID(), err)
		}
		if magic != etf.VersionMagic {
			return fmt.Errorf("dist: session %s: payload does not start with version magic", s.logID())
		}

		if s.handler == nil {
			log.Printf("dist: session %s: RegSend to %q dropped, no handler installed", s.logID(), regSend.ToName.String())
			continue
		}

		replyData, err := s.handler.Handle(ctx, regSend.From, regSend.ToName.String(), br)
		if err != nil {
			metrics.HandlerErrors.Inc()
			log.Printf("dist: session %s: handler error (no reply): %v", s.logID(), err)
			continue
		}

		if err := s.sendReply(w, regSend.From, replyData); err != nil {
			return fmt.Errorf("dist: session %s: send reply: %w", s.logID(), err)
		}
	}
}

// sendReply builds and atomically writes the reply frame of spec §4.5
// step 5: u32 len, pass-through, version magic, ETF-encoded
// Send{cookie:"", to:from}, a second version magic, then the handler's
// raw bytes.
func (s *Session) sendReply(w *etf.Writer, to etf.Pid, data []byte) error {
	var head bytes.Buffer
	hw := etf.NewWriter(&head)
	if err := hw.WriteMsg(etf.Send{Cookie: etf.UTF8SmallAtom(""), To: to}); err != nil {
		return err
	}

	var frame bytes.Buffer
	frame.WriteByte(etf.PassThrough)
	frame.WriteByte(etf.VersionMagic)
	frame.Write(head.Bytes())
	frame.WriteByte(etf.VersionMagic)
	frame.Write(data)

	if err := w.WriteU32(uint32(frame.Len())); err != nil {
		return err
	}
	return w.WriteExact(frame.Bytes())
}
