package etf

import "fmt"

// Kind classifies an Error the way the original implementation's error
// enum did: Io covers stream failure and framing/tag mismatches, Utf8
// covers bytes promised to be UTF-8 that aren't, Range covers values that
// exceed a protocol-defined size bound, and Custom is reserved for
// adapter layers built on top of this package.
type Kind int

const (
	KindIO Kind = iota
	KindUtf8
	KindRange
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindUtf8:
		return "utf8"
	case KindRange:
		return "range"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Category further classifies a KindIO Error.
type Category int

const (
	CategoryNone Category = iota
	// InvalidData means the bytes read don't form a well-formed term
	// (unexpected tag, bad arity, missing terminator).
	CategoryInvalidData
	// InvalidInput means a value couldn't be represented on the wire
	// (e.g. i64::MIN has no small-big encoding).
	CategoryInvalidInput
	// Interrupted means a framed stream signalled end-of-stream (a
	// zero-length port frame).
	CategoryInterrupted
	// Unsupported means the caller asked for a term kind this codec
	// deliberately does not implement (large-big, bit binaries, funs...).
	CategoryUnsupported
)

// Error is this package's single error type. Op names the operation that
// failed (e.g. "decode atom"), Byte carries the offending tag byte when
// HaveByte is set (InvalidData errors built from a single bad byte), and
// Err wraps the underlying cause, if any.
type Error struct {
	Kind     Kind
	Category Category
	Op       string
	Byte     byte
	HaveByte bool
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.HaveByte:
		return fmt.Sprintf("etf: %s: %s (tag 0x%02x)", e.Op, e.Kind, e.Byte)
	case e.Err != nil:
		return fmt.Sprintf("etf: %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("etf: %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func ioErr(op string, err error) *Error {
	return &Error{Kind: KindIO, Category: CategoryNone, Op: op, Err: err}
}

func invalidData(op string, b byte) *Error {
	return &Error{Kind: KindIO, Category: CategoryInvalidData, Op: op, Byte: b, HaveByte: true}
}

func invalidDataf(op string, format string, a ...interface{}) *Error {
	return &Error{Kind: KindIO, Category: CategoryInvalidData, Op: op, Err: fmt.Errorf(format, a...)}
}

func invalidInput(op string, format string, a ...interface{}) *Error {
	return &Error{Kind: KindIO, Category: CategoryInvalidInput, Op: op, Err: fmt.Errorf(format, a...)}
}

func unsupported(op string, format string, a ...interface{}) *Error {
	return &Error{Kind: KindIO, Category: CategoryUnsupported, Op: op, Err: fmt.Errorf(format, a...)}
}

func interrupted(op string) *Error {
	return &Error{Kind: KindIO, Category: CategoryInterrupted, Op: op}
}

func rangeErr(op string, format string, a ...interface{}) *Error {
	return &Error{Kind: KindRange, Op: op, Err: fmt.Errorf(format, a...)}
}

func utf8Err(op string, err error) *Error {
	return &Error{Kind: KindUtf8, Op: op, Err: err}
}

// ErrInterrupted builds an exported Interrupted error for callers outside
// this package that frame their own zero-length end-of-stream markers
// (the portio package's Recv).
func ErrInterrupted(op string) error { return interrupted(op) }

// ErrInvalidData builds an exported InvalidData error carrying the
// offending byte, for callers outside this package (the portio package's
// Recv, on an unexpected version-magic byte).
func ErrInvalidData(op string, b byte) error { return invalidData(op, b) }

// RangeErr builds an exported KindRange error for callers outside this
// package whose own values exceed a protocol-defined size bound (the
// dist package's node-name/cookie length checks, the epmd package's
// alive-name length check), so that etf.IsRange(err) reports true for
// those failures the same way it does for this package's own.
func RangeErr(op string, format string, a ...interface{}) error {
	return rangeErr(op, format, a...)
}

// InvalidDataErr builds an exported InvalidData error for callers
// outside this package reporting a malformed protocol value that isn't
// a single offending tag byte (a bad status code, an unsupported
// version, a mismatched arity), such as the epmd package's unexpected
// replies. The dist package reports its handshake violations as plain
// fmt errors, not through this constructor.
func InvalidDataErr(op string, format string, a ...interface{}) error {
	return invalidDataf(op, format, a...)
}

// IOErr builds an exported KindIO error wrapping an underlying cause,
// for callers outside this package surfacing a plain stream failure
// (a failed dial, a lost connection) through the same four-kind model
// this package's own codec errors use.
func IOErr(op string, err error) error {
	return ioErr(op, err)
}

// IsInterrupted reports whether err is an Error signalling end-of-stream.
func IsInterrupted(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Category == CategoryInterrupted
}

// IsRange reports whether err is an Error of KindRange.
func IsRange(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindRange
}
