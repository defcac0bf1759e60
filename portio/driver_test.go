package portio_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/openproto/ecnode/portio"
)

func TestDriverEchoesRequests(t *testing.T) {
	var in bytes.Buffer
	if err := portio.Send(&in, []byte{0x61, 0x01}); err != nil {
		t.Fatalf("Send request 1: %v", err)
	}
	if err := portio.Send(&in, []byte{0x61, 0x02}); err != nil {
		t.Fatalf("Send request 2: %v", err)
	}
	in.Write([]byte{0x00, 0x00}) // zero-length frame signals clean end-of-stream

	var out bytes.Buffer
	d := portio.NewDriver(&in, &out, 4, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := d.Run(ctx, func(ctx context.Context, payload []byte) ([]byte, error) {
		reply := make([]byte, len(payload))
		copy(reply, payload)
		return reply, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	r := bytes.NewReader(out.Bytes())
	seen := map[byte]bool{}
	for i := 0; i < 2; i++ {
		got, err := portio.Recv(r)
		if err != nil {
			t.Fatalf("Recv reply %d: %v", i, err)
		}
		if len(got) != 2 {
			t.Fatalf("reply %d: got %d bytes, want 2", i, len(got))
		}
		seen[got[1]] = true
	}
	if !seen[0x01] || !seen[0x02] {
		t.Errorf("missing expected replies, got %v", seen)
	}
}

func TestDriverDropsHandlerErrors(t *testing.T) {
	var in bytes.Buffer
	if err := portio.Send(&in, []byte{0x61, 0x09}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	in.Write([]byte{0x00, 0x00}) // zero-length frame signals clean end-of-stream

	var out bytes.Buffer
	d := portio.NewDriver(&in, &out, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := d.Run(ctx, func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, io.ErrUnexpectedEOF
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no reply written after handler error, got %d bytes", out.Len())
	}
}
