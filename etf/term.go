package etf

// Term is the closed set of values the codec can encode and decode.
// Every concrete term type in this package implements it; the interface
// is not meant to be implemented outside the package.
type Term interface {
	isTerm()
}

// Nil is the unit/empty term, wire tag NIL_EXT. It also represents the
// empty string and the empty list on encode. ReadTerm decodes NIL_EXT as
// Nil in every position; it does not turn it back into an empty
// StringTerm or List.
type Nil struct{}

func (Nil) isTerm() {}

// Bool is a Go bool wrapped as a Term; the encoder always emits it as the
// UTF8Small atom "true"/"false".
type Bool bool

func (Bool) isTerm() {}

// StringTerm is ERL_STRING_EXT: a list of bytes in the 0..255 range,
// encoded with a u16 length prefix. The empty StringTerm encodes as Nil.
type StringTerm string

func (StringTerm) isTerm() {}

// Binary is opaque byte data, ERL_BINARY_EXT.
type Binary []byte

func (Binary) isTerm() {}

// Tuple is an ordered, fixed-arity sequence of terms.
type Tuple []Term

func (Tuple) isTerm() {}

// List is ERL_LIST_EXT: a proper list terminated implicitly by Nil. The
// empty List encodes as Nil.
type List []Term

func (List) isTerm() {}

// KV is one key/value pair of a Map term.
type KV struct {
	Key   Term
	Value Term
}

// Map is ERL_MAP_EXT: an association list preserving insertion order on
// the wire (Erlang maps have no required key order for term_to_binary
// purposes here).
type Map []KV

func (Map) isTerm() {}

func (Atom) isTerm()   {}
func (Number) isTerm() {}
func (Pid) isTerm()    {}
func (Port) isTerm()   {}
func (Ref) isTerm()    {}
func (Trace) isTerm()  {}
