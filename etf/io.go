package etf

import (
	"encoding/binary"
	"io"
	"math"
)

// Reader wraps an io.Reader with the big-endian primitives the codec is
// built from, plus length-prefixed string/byte helpers. It does no
// buffering of its own beyond what the wrapped stream provides.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) readExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, ioErr("read", err)
	}
	return buf, nil
}

// ReadExact reads exactly n bytes and returns them.
func (r *Reader) ReadExact(n int) ([]byte, error) {
	return r.readExact(n)
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadI8() (int8, error) {
	u, err := r.ReadU8()
	return int8(u), err
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.readExact(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadI16() (int16, error) {
	u, err := r.ReadU16()
	return int16(u), err
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	u, err := r.ReadU32()
	return int32(u), err
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) ReadI64() (int64, error) {
	u, err := r.ReadU64()
	return int64(u), err
}

func (r *Reader) ReadF64() (float64, error) {
	u, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// ReadStringU8 reads a u8-length-prefixed UTF-8 string.
func (r *Reader) ReadStringU8() (string, error) {
	n, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	b, err := r.readExact(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadStringU16 reads a u16-length-prefixed UTF-8 string.
func (r *Reader) ReadStringU16() (string, error) {
	n, err := r.ReadU16()
	if err != nil {
		return "", err
	}
	b, err := r.readExact(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Writer wraps an io.Writer with the mirror-image primitives of Reader.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) writeAll(b []byte) error {
	if _, err := w.w.Write(b); err != nil {
		return ioErr("write", err)
	}
	return nil
}

// WriteExact writes b verbatim.
func (w *Writer) WriteExact(b []byte) error {
	return w.writeAll(b)
}

func (w *Writer) WriteU8(v uint8) error {
	return w.writeAll([]byte{v})
}

func (w *Writer) WriteI8(v int8) error {
	return w.WriteU8(uint8(v))
}

func (w *Writer) WriteU16(v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return w.writeAll(b[:])
}

func (w *Writer) WriteI16(v int16) error {
	return w.WriteU16(uint16(v))
}

func (w *Writer) WriteU32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return w.writeAll(b[:])
}

func (w *Writer) WriteI32(v int32) error {
	return w.WriteU32(uint32(v))
}

func (w *Writer) WriteU64(v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return w.writeAll(b[:])
}

func (w *Writer) WriteI64(v int64) error {
	return w.WriteU64(uint64(v))
}

func (w *Writer) WriteF64(v float64) error {
	return w.WriteU64(math.Float64bits(v))
}

// WriteStringU8 writes s prefixed with its length as a u8.
func (w *Writer) WriteStringU8(s string) error {
	if len(s) > math.MaxUint8 {
		return rangeErr("write string", "string of %d bytes exceeds u8 length prefix", len(s))
	}
	if err := w.WriteU8(uint8(len(s))); err != nil {
		return err
	}
	return w.writeAll([]byte(s))
}

// WriteStringU16 writes s prefixed with its length as a u16.
func (w *Writer) WriteStringU16(s string) error {
	if len(s) > math.MaxUint16 {
		return rangeErr("write string", "string of %d bytes exceeds u16 length prefix", len(s))
	}
	if err := w.WriteU16(uint16(len(s))); err != nil {
		return err
	}
	return w.writeAll([]byte(s))
}

// Flush flushes the underlying writer if it supports flushing (e.g. a
// *bufio.Writer); otherwise it is a no-op.
func (w *Writer) Flush() error {
	if f, ok := w.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
