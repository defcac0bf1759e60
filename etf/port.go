package etf

// PortKind selects which of the two modern Port wire shapes a Port
// encodes as. Unlike Pid and Ref, the choice is made by the caller, not
// derived from Creation: spec calls for NewPort/V4Port as two distinct
// variants of equal standing, with the legacy tag (0x66) accepted only
// on decode and never emitted by new code.
type PortKind int

const (
	// PortNew is NEW_PORT_EXT (0x59): a 32-bit id.
	PortNew PortKind = iota
	// PortV4 is V4_PORT_EXT (0x78): a 64-bit id, for node identifiers
	// that have exhausted the 32-bit id space.
	PortV4
)

// Port identifies an Erlang port. Id is always carried as a uint64; for
// PortNew, callers must keep it within uint32 range (the encoder
// validates this).
type Port struct {
	Kind     PortKind
	Node     Atom
	Id       uint64
	Creation uint32
}
