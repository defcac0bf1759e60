package epmd_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/openproto/ecnode/epmd"
)

// fakeEPMD starts a listener that answers exactly one connection with a
// canned response, returning the port it's listening on.
func fakeEPMD(t *testing.T, respond func(conn net.Conn)) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		respond(conn)
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestPublishSuccess(t *testing.T) {
	port := fakeEPMD(t, func(conn net.Conn) {
		req := make([]byte, 2+13+2) // len prefix + body for alive "r1"
		if _, err := conn.Read(req); err != nil {
			t.Errorf("read request: %v", err)
			return
		}
		conn.Write([]byte{0x79, 0x00, 0x00, 0x01})
	})

	c := epmd.NewClient(port)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reg, err := c.Publish(ctx, "r1", 3456)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	defer reg.Close()
	if reg.Creation != 1 {
		t.Errorf("Creation = %d, want 1", reg.Creation)
	}
}

func TestPublishRejectsLongAlive(t *testing.T) {
	c := epmd.NewClient(0)
	long := make([]byte, epmd.MaxAliveLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := c.Publish(context.Background(), string(long), 1)
	if err == nil {
		t.Fatal("expected error for alive name exceeding EI_MAXALIVELEN")
	}
}

func TestKeepAliveDetectsLoss(t *testing.T) {
	port := fakeEPMD(t, func(conn net.Conn) {
		req := make([]byte, 2+13+2)
		if _, err := conn.Read(req); err != nil {
			t.Errorf("read request: %v", err)
			return
		}
		conn.Write([]byte{0x79, 0x00, 0x00, 0x01})
		time.Sleep(50 * time.Millisecond)
	})

	c := epmd.NewClient(port)
	reg, err := c.Publish(context.Background(), "r1", 3456)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	defer reg.Close()

	err = reg.KeepAlive(context.Background())
	if err == nil {
		t.Fatal("expected KeepAlive to report registration loss once epmd closes the connection")
	}
}

func TestPortLookupSuccess(t *testing.T) {
	port := fakeEPMD(t, func(conn net.Conn) {
		req := make([]byte, 2+1+2)
		if _, err := conn.Read(req); err != nil {
			t.Errorf("read request: %v", err)
			return
		}
		resp := []byte{0x77, 0x00, 0x0d, 0x80, 0x68, 0x00, 0x00, 0x06, 0x00, 0x05}
		conn.Write(resp)
	})

	c := epmd.NewClient(port)
	tcpPort, version, err := c.Port(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Port: %v", err)
	}
	if tcpPort != 0x0d80 {
		t.Errorf("tcpPort = %d, want %d", tcpPort, 0x0d80)
	}
	if version != 6 {
		t.Errorf("version = %d, want 6", version)
	}
}
