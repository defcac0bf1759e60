package portio_test

import (
	"bytes"
	"testing"

	"github.com/openproto/ecnode/etf"
	"github.com/openproto/ecnode/portio"
)

func TestSendRecvRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0x61, 0x2a}
	if err := portio.Send(&buf, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := portio.Recv(&buf)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Recv = % x, want % x", got, payload)
	}
}

func TestRecvZeroLengthIsInterrupted(t *testing.T) {
	buf := bytes.NewReader([]byte{0x00, 0x00})
	_, err := portio.Recv(buf)
	if !etf.IsInterrupted(err) {
		t.Fatalf("Recv of zero-length frame: got %v, want Interrupted", err)
	}
}

func TestRecvRejectsWrongVersionMagic(t *testing.T) {
	buf := bytes.NewReader([]byte{0x00, 0x02, 0x00, 0xff})
	_, err := portio.Recv(buf)
	if err == nil {
		t.Fatal("expected error for non-version-magic first byte")
	}
}
