package etf

import (
	"math"
	"math/big"
)

// NumberKind identifies which of the codec's three integer representations
// a Number holds.
type NumberKind int

const (
	// NumberU8 holds a value in 0..=255, wire tag SMALL_INTEGER_EXT.
	NumberU8 NumberKind = iota
	// NumberI32 holds a signed 32-bit two's complement value, wire tag
	// INTEGER_EXT.
	NumberI32
	// NumberSmallBig holds an arbitrary-sign magnitude of up to 8 bytes,
	// wire tag SMALL_BIG_EXT.
	NumberSmallBig
)

// Number is the codec's internal integer representation: the smallest of
// U8, I32, or SmallBig(magnitude, sign) that can hold a given value. Every
// Go integer type up to int64/uint64 widens or narrows through this type.
type Number struct {
	Kind NumberKind

	u8  uint8
	i32 int32

	// Magnitude is a little-endian, minimal-length (no trailing zero
	// byte) unsigned magnitude of at most 8 bytes. Sign is 0 for
	// non-negative, 1 for negative.
	Magnitude []byte
	Sign      uint8
}

// NewU8 constructs a Number directly in the U8 representation.
func NewU8(v uint8) Number { return Number{Kind: NumberU8, u8: v} }

// NewI32 constructs a Number directly in the I32 representation.
func NewI32(v int32) Number { return Number{Kind: NumberI32, i32: v} }

func minimalMagnitude(mag []byte) []byte {
	n := len(mag)
	for n > 0 && mag[n-1] == 0 {
		n--
	}
	return mag[:n]
}

// leBytes returns the minimal little-endian magnitude of u.
func leBytes(u uint64) []byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
	return minimalMagnitude(b[:])
}

// FromInt64 builds the smallest Number representing v. i64::MIN and
// i32::MIN have no representable magnitude (negating either overflows
// the unsigned width the (magnitude, sign) model stores) and are
// rejected with InvalidInput, matching the source encoder's
// `i if i == i32::MIN => Err(...)` case.
func FromInt64(v int64) (Number, error) {
	if v == math.MinInt64 {
		return Number{}, invalidInput("encode integer", "int64 minimum value has no representable magnitude")
	}
	if v == math.MinInt32 {
		return Number{}, invalidInput("encode integer", "int32 minimum value has no representable magnitude")
	}
	if v >= 0 {
		return FromUint64(uint64(v))
	}
	if v >= i27Min {
		return NewI32(int32(v)), nil
	}
	mag := leBytes(uint64(-v))
	if len(mag) > 8 {
		return Number{}, invalidInput("encode integer", "magnitude of %d exceeds 8 bytes", v)
	}
	return Number{Kind: NumberSmallBig, Magnitude: mag, Sign: 1}, nil
}

// FromUint64 builds the smallest non-negative Number representing v.
func FromUint64(v uint64) (Number, error) {
	if v <= 255 {
		return NewU8(uint8(v)), nil
	}
	if v <= uint64(i27Max) {
		return NewI32(int32(v)), nil
	}
	mag := leBytes(v)
	if len(mag) > 8 {
		return Number{}, invalidInput("encode integer", "magnitude of %d exceeds 8 bytes", v)
	}
	return Number{Kind: NumberSmallBig, Magnitude: mag, Sign: 0}, nil
}

// FromInt builds the smallest Number for a signed value: U8 for 0..=255,
// I32 for the rest of the i27 range, and SmallBig (via FromInt64) for
// everything outside it, negative values included.
func FromInt(v int64) (Number, error) {
	if v >= i27Min && v <= i27Max {
		if v >= 0 && v <= 255 {
			return NewU8(uint8(v)), nil
		}
		return NewI32(int32(v)), nil
	}
	return FromInt64(v)
}

func (n Number) bigInt() *big.Int {
	switch n.Kind {
	case NumberU8:
		return big.NewInt(int64(n.u8))
	case NumberI32:
		return big.NewInt(int64(n.i32))
	default:
		mag := new(big.Int).SetBytes(reverseBytes(n.Magnitude))
		if n.Sign == 1 {
			mag.Neg(mag)
		}
		return mag
	}
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// Int64 widens or narrows the Number to an int64, failing with
// InvalidData if the value is out of range.
func (n Number) Int64() (int64, error) {
	bi := n.bigInt()
	if !bi.IsInt64() {
		return 0, invalidDataf("widen integer", "value %s out of int64 range", bi.String())
	}
	return bi.Int64(), nil
}

// Uint64 widens or narrows the Number to a uint64, failing with
// InvalidData if the value is negative or out of range.
func (n Number) Uint64() (uint64, error) {
	bi := n.bigInt()
	if !bi.IsUint64() {
		return 0, invalidDataf("widen integer", "value %s out of uint64 range", bi.String())
	}
	return bi.Uint64(), nil
}

// Int32 narrows the Number to an int32.
func (n Number) Int32() (int32, error) {
	v, err := n.Int64()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, invalidDataf("widen integer", "value %d out of int32 range", v)
	}
	return int32(v), nil
}

// Uint32 narrows the Number to a uint32.
func (n Number) Uint32() (uint32, error) {
	v, err := n.Uint64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, invalidDataf("widen integer", "value %d out of uint32 range", v)
	}
	return uint32(v), nil
}

// Uint8 narrows the Number to a uint8.
func (n Number) Uint8() (uint8, error) {
	v, err := n.Uint64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint8 {
		return 0, invalidDataf("widen integer", "value %d out of uint8 range", v)
	}
	return uint8(v), nil
}

// Equal reports whether two Numbers carry the same integer value,
// regardless of which representation each uses.
func (n Number) Equal(o Number) bool {
	return n.bigInt().Cmp(o.bigInt()) == 0
}
