// Package etf implements the External Term Format: the binary encoding
// Erlang/OTP uses for term_to_binary and the distribution protocol.
//
// See http://erlang.org/doc/apps/erts/erl_ext_dist.html
package etf

// Tag bytes, as assigned by erl_interface's ei.h.
const (
	tagNewFloat         = 0x46
	tagNewPid           = 0x58
	tagNewPort          = 0x59
	tagNewerReference   = 0x5a
	tagSmallInteger     = 0x61
	tagInteger          = 0x62
	tagFloat            = 0x63 // rejected on decode, never emitted
	tagAtom             = 0x64
	tagReference        = 0x65 // not supported; >5 words only
	tagPort             = 0x66 // legacy, decode only
	tagPid              = 0x67
	tagSmallTuple       = 0x68
	tagLargeTuple       = 0x69
	tagNil              = 0x6a
	tagString           = 0x6b
	tagList             = 0x6c
	tagBinary           = 0x6d
	tagSmallBig         = 0x6e
	tagLargeBig         = 0x6f // not supported
	tagPassThrough      = 0x70
	tagNewReference     = 0x72
	tagMap              = 0x74
	tagAtomUTF8         = 0x76
	tagSmallAtomUTF8    = 0x77
	tagV4Port           = 0x78
	versionMagicByte    = 0x83
)

// VersionMagic is the byte that begins every ETF stream the core emits.
const VersionMagic = versionMagicByte

// PassThrough is the framing byte kept at the start of every post-handshake
// distribution data frame, for historical reasons.
const PassThrough = tagPassThrough

// Control-message opcodes: the first (SMALL_INTEGER_EXT) element of the
// control tuple that precedes a distributed message.
const (
	OpSend      = 2
	OpExit      = 3
	OpRegSend   = 6
	OpSendTT    = 12
	OpExitTT    = 13
	OpRegSendTT = 16
)

// Distribution capability flags (bitmask, u32).
const (
	FlagExtendedReferences = 1 << 2
	FlagDistMonitor        = 1 << 3
	FlagFunTags            = 1 << 4
	FlagNewFunTags         = 1 << 7
	FlagExtendedPidsPorts  = 1 << 8
	FlagNewFloats          = 1 << 11
	FlagSmallAtomTags      = 1 << 14
	FlagUTF8Atoms          = 1 << 16
	FlagMapTag             = 1 << 17
	FlagBigCreation        = 1 << 18
)

// RequiredFlags are the capability flags a peer's 'n' handshake frame must
// advertise; the handshake fails if either is missing.
const RequiredFlags = FlagExtendedReferences | FlagExtendedPidsPorts

// OfferedFlags are advertised back by this implementation during the
// handshake's second 'n' frame.
const OfferedFlags = FlagExtendedReferences | FlagDistMonitor | FlagExtendedPidsPorts |
	FlagFunTags | FlagNewFunTags | FlagNewFloats | FlagSmallAtomTags |
	FlagUTF8Atoms | FlagMapTag | FlagBigCreation

// Numeric size limits from erl_interface's ei.h.
const (
	MaxAtomLen     = 256 // Latin1 / SmallAtomUTF8
	MaxAtomLenUTF8 = 1021 // 255*4 + 1
	MaxCookieSize  = 512
	MaxAliveLen    = 63
	MaxHostnameLen = 64
	MaxNodeLen     = MaxAliveLen + 1 + MaxHostnameLen // 128

	// i27Min/i27Max bound the values ERL_INTEGER_EXT can carry without
	// overflowing a four-byte two's complement word used as a 28-bit
	// signed range check (the name mirrors the source's own i27 module).
	i27Min = -134217728
	i27Max = 134217727
)
