package etf

// Trace is the seq-trace token carried by the *TT control message
// variants: a 5-tuple of (flags, label, serial, from, prev).
type Trace struct {
	Flags  int64
	Label  int64
	Serial int64
	From   Pid
	Prev   int64
}
