// Package portio implements the framing Erlang's open_port uses with the
// {packet,2} option: a u16 length prefix followed by the version magic
// byte and an ETF term. It is the stdio-attached counterpart to the
// dist package's TCP-attached distribution session.
package portio

import (
	"io"

	"github.com/openproto/ecnode/etf"
)

// Recv reads one framed term from r and returns its payload bytes (the
// ETF term bytes, with the leading version magic byte already validated
// and stripped). A zero-length frame signals end-of-stream and is
// reported as an Interrupted error.
func Recv(r io.Reader) ([]byte, error) {
	er := etf.NewReader(r)
	n, err := er.ReadU16()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, etf.ErrInterrupted("recv")
	}
	magic, err := er.ReadU8()
	if err != nil {
		return nil, err
	}
	if magic != etf.VersionMagic {
		return nil, etf.ErrInvalidData("recv", magic)
	}
	return er.ReadExact(int(n) - 1)
}

// Send writes payload framed as u16(len(payload)+1) + version-magic +
// payload, then flushes w if it supports flushing.
func Send(w io.Writer, payload []byte) error {
	ew := etf.NewWriter(w)
	if err := ew.WriteU16(uint16(len(payload)) + 1); err != nil {
		return err
	}
	if err := ew.WriteU8(etf.VersionMagic); err != nil {
		return err
	}
	if err := ew.WriteExact(payload); err != nil {
		return err
	}
	return ew.Flush()
}
