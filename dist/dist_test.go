package dist_test

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/openproto/ecnode/dist"
	"github.com/openproto/ecnode/etf"
)

func TestHandshakeRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	type result struct {
		sess *dist.Session
		err  error
	}
	serverDone := make(chan result, 1)
	clientDone := make(chan result, 1)

	go func() {
		s, err := dist.Accept(context.Background(), serverConn, "server@host", "cookie", nil)
		serverDone <- result{s, err}
	}()
	go func() {
		s, err := dist.Connect(context.Background(), clientConn, "client@host", "cookie")
		clientDone <- result{s, err}
	}()

	var sr, cr result
	select {
	case sr = <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("server handshake timed out")
	}
	select {
	case cr = <-clientDone:
	case <-time.After(2 * time.Second):
		t.Fatal("client handshake timed out")
	}

	if sr.err != nil {
		t.Fatalf("Accept: %v", sr.err)
	}
	if cr.err != nil {
		t.Fatalf("Connect: %v", cr.err)
	}
	if sr.sess.State() != dist.StateConnected {
		t.Errorf("server state = %v, want Connected", sr.sess.State())
	}
	if cr.sess.State() != dist.StateConnected {
		t.Errorf("client state = %v, want Connected", cr.sess.State())
	}
}

func TestHandshakeCookieMismatchFails(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	serverErr := make(chan error, 1)
	go func() {
		_, err := dist.Accept(context.Background(), serverConn, "server@host", "correct-cookie", nil)
		serverErr <- err
	}()
	go func() {
		dist.Connect(context.Background(), clientConn, "client@host", "wrong-cookie")
	}()

	select {
	case err := <-serverErr:
		if err == nil {
			t.Fatal("expected Accept to fail on cookie mismatch")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshake timed out")
	}
}

type echoHandler struct {
	called chan etf.Pid
}

func (h *echoHandler) Handle(ctx context.Context, from etf.Pid, toName string, payload *etf.Reader) ([]byte, error) {
	h.called <- from
	var buf bytes.Buffer
	w := etf.NewWriter(&buf)
	w.WriteU8(etf.VersionMagic)
	w.WriteTerm(etf.UTF8Atom("pong"))
	return buf.Bytes(), nil
}

func TestMessageLoopTickAndRegSend(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	h := &echoHandler{called: make(chan etf.Pid, 1)}

	serverDone := make(chan error, 1)
	go func() {
		s, err := dist.Accept(context.Background(), serverConn, "server@host", "cookie", h)
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- s.Serve(context.Background())
	}()

	clientSessDone := make(chan *dist.Session, 1)
	go func() {
		s, err := dist.Connect(context.Background(), clientConn, "client@host", "cookie")
		if err != nil {
			t.Errorf("Connect: %v", err)
			clientSessDone <- nil
			return
		}
		clientSessDone <- s
	}()

	clientSess := <-clientSessDone
	if clientSess == nil {
		t.Fatal("client handshake failed")
	}

	// Tick: zero-length frame must be silently accepted.
	w := etf.NewWriter(clientConn)
	if err := w.WriteU32(0); err != nil {
		t.Fatalf("write tick: %v", err)
	}

	// RegSend.
	from := etf.Pid{Node: etf.UTF8Atom("client@host"), Num: 1, Serial: 0, Creation: 1}
	var control bytes.Buffer
	cw := etf.NewWriter(&control)
	if err := cw.WriteMsg(etf.RegSend{From: from, Cookie: etf.UTF8SmallAtom(""), ToName: etf.UTF8Atom("echo")}); err != nil {
		t.Fatalf("encode control: %v", err)
	}

	var payload bytes.Buffer
	if err := etf.NewWriter(&payload).WriteTerm(etf.StringTerm("hello")); err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	var frame bytes.Buffer
	frame.WriteByte(etf.PassThrough)
	frame.WriteByte(etf.VersionMagic)
	frame.Write(control.Bytes())
	frame.WriteByte(etf.VersionMagic)
	frame.Write(payload.Bytes())

	if err := w.WriteU32(uint32(frame.Len())); err != nil {
		t.Fatalf("write frame size: %v", err)
	}
	if err := w.WriteExact(frame.Bytes()); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	select {
	case got := <-h.called:
		if got.Num != from.Num {
			t.Errorf("handler saw from.Num = %d, want %d", got.Num, from.Num)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}
