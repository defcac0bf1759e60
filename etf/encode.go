package etf

import "math"

// WriteTerm dispatches on t's concrete type and writes its bit-exact ETF
// encoding.
func (w *Writer) WriteTerm(t Term) error {
	switch v := t.(type) {
	case Nil:
		return w.writeNil()
	case Bool:
		return w.WriteAtom(BoolAtom(bool(v)))
	case StringTerm:
		return w.WriteString(string(v))
	case Binary:
		return w.WriteBinary([]byte(v))
	case Tuple:
		return w.WriteTuple(v)
	case List:
		return w.WriteList(v)
	case Map:
		return w.WriteMap(v)
	case Atom:
		return w.WriteAtom(v)
	case Number:
		return w.WriteNumber(v)
	case Pid:
		return w.WritePid(v)
	case Port:
		return w.WritePort(v)
	case Ref:
		return w.WriteRef(v)
	case Trace:
		return w.WriteTrace(v)
	default:
		return unsupported("encode term", "unrecognized term type %T", t)
	}
}

func (w *Writer) writeNil() error {
	return w.WriteU8(tagNil)
}

// WriteInt64 encodes a signed integer using the smallest of the three
// integer tags. math.MinInt64 is rejected: its magnitude cannot be
// represented in the (magnitude, sign) model.
func (w *Writer) WriteInt64(v int64) error {
	n, err := FromInt(v)
	if err != nil {
		return err
	}
	return w.WriteNumber(n)
}

// WriteUint64 encodes an unsigned integer using the smallest of the
// three integer tags.
func (w *Writer) WriteUint64(v uint64) error {
	n, err := FromUint64(v)
	if err != nil {
		return err
	}
	return w.WriteNumber(n)
}

// WriteNumber emits a Number using the tag its Kind already selected.
func (w *Writer) WriteNumber(n Number) error {
	switch n.Kind {
	case NumberU8:
		if err := w.WriteU8(tagSmallInteger); err != nil {
			return err
		}
		return w.WriteU8(n.u8)
	case NumberI32:
		if err := w.WriteU8(tagInteger); err != nil {
			return err
		}
		return w.WriteI32(n.i32)
	case NumberSmallBig:
		if len(n.Magnitude) > 8 {
			return invalidInput("encode integer", "magnitude of %d bytes exceeds 8", len(n.Magnitude))
		}
		if n.Sign != 0 && n.Sign != 1 {
			return invalidInput("encode integer", "sign byte must be 0 or 1, got %d", n.Sign)
		}
		if err := w.WriteU8(tagSmallBig); err != nil {
			return err
		}
		if err := w.WriteU8(uint8(len(n.Magnitude))); err != nil {
			return err
		}
		if err := w.WriteU8(n.Sign); err != nil {
			return err
		}
		return w.writeAll(n.Magnitude)
	default:
		return unsupported("encode integer", "unrecognized number kind %d", n.Kind)
	}
}

// WriteFloat emits a float64 as NEW_FLOAT_EXT. 32-bit floats, characters,
// and 128-bit integers are Non-goals and have no Write* method.
func (w *Writer) WriteFloat(v float64) error {
	if err := w.WriteU8(tagNewFloat); err != nil {
		return err
	}
	return w.WriteF64(v)
}

// WriteBool emits the UTF8Small atom "true" or "false".
func (w *Writer) WriteBool(b bool) error {
	return w.WriteAtom(BoolAtom(b))
}

// WriteString emits a StringTerm: Nil if empty, else STRING_EXT with a
// u16 length prefix.
func (w *Writer) WriteString(s string) error {
	if len(s) == 0 {
		return w.writeNil()
	}
	if len(s) > math.MaxUint16 {
		return rangeErr("encode string", "string of %d bytes exceeds u16 length", len(s))
	}
	if err := w.WriteU8(tagString); err != nil {
		return err
	}
	if err := w.WriteU16(uint16(len(s))); err != nil {
		return err
	}
	return w.writeAll([]byte(s))
}

// WriteBinary emits opaque bytes as BINARY_EXT.
func (w *Writer) WriteBinary(b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return rangeErr("encode binary", "binary of %d bytes exceeds u32 length", len(b))
	}
	if err := w.WriteU8(tagBinary); err != nil {
		return err
	}
	if err := w.WriteU32(uint32(len(b))); err != nil {
		return err
	}
	return w.writeAll(b)
}

// WriteTuple emits elements as SMALL_TUPLE_EXT (arity <= 255) or
// LARGE_TUPLE_EXT otherwise.
func (w *Writer) WriteTuple(elements []Term) error {
	n := len(elements)
	if n <= math.MaxUint8 {
		if err := w.WriteU8(tagSmallTuple); err != nil {
			return err
		}
		if err := w.WriteU8(uint8(n)); err != nil {
			return err
		}
	} else {
		if uint64(n) > math.MaxUint32 {
			return rangeErr("encode tuple", "arity %d exceeds u32", n)
		}
		if err := w.WriteU8(tagLargeTuple); err != nil {
			return err
		}
		if err := w.WriteU32(uint32(n)); err != nil {
			return err
		}
	}
	for _, e := range elements {
		if err := w.WriteTerm(e); err != nil {
			return err
		}
	}
	return nil
}

// WriteList emits elements as Nil when empty, else LIST_EXT with a
// trailing Nil tail.
func (w *Writer) WriteList(elements []Term) error {
	if len(elements) == 0 {
		return w.writeNil()
	}
	if uint64(len(elements)) > math.MaxUint32 {
		return rangeErr("encode list", "length %d exceeds u32", len(elements))
	}
	if err := w.WriteU8(tagList); err != nil {
		return err
	}
	if err := w.WriteU32(uint32(len(elements))); err != nil {
		return err
	}
	for _, e := range elements {
		if err := w.WriteTerm(e); err != nil {
			return err
		}
	}
	return w.writeNil()
}

// WriteMap emits an association list as MAP_EXT.
func (w *Writer) WriteMap(kvs []KV) error {
	if uint64(len(kvs)) > math.MaxUint32 {
		return rangeErr("encode map", "arity %d exceeds u32", len(kvs))
	}
	if err := w.WriteU8(tagMap); err != nil {
		return err
	}
	if err := w.WriteU32(uint32(len(kvs))); err != nil {
		return err
	}
	for _, kv := range kvs {
		if err := w.WriteTerm(kv.Key); err != nil {
			return err
		}
		if err := w.WriteTerm(kv.Value); err != nil {
			return err
		}
	}
	return nil
}

// WriteAtom emits a per the atom's own encoding variant, failing with
// Range if the name exceeds that variant's size bound.
func (w *Writer) WriteAtom(a Atom) error {
	switch a.Encoding {
	case AtomLatin1:
		if len(a.Name) >= MaxAtomLen {
			return rangeErr("encode atom", "latin1 atom of %d bytes exceeds MaxAtomLen", len(a.Name))
		}
		if err := w.WriteU8(tagAtom); err != nil {
			return err
		}
		if err := w.WriteU16(uint16(len(a.Name))); err != nil {
			return err
		}
		return w.writeAll([]byte(a.Name))
	case AtomUTF8:
		if len(a.Name) >= MaxAtomLenUTF8 {
			return rangeErr("encode atom", "utf8 atom of %d bytes exceeds MaxAtomLenUTF8", len(a.Name))
		}
		if err := w.WriteU8(tagAtomUTF8); err != nil {
			return err
		}
		if err := w.WriteU16(uint16(len(a.Name))); err != nil {
			return err
		}
		return w.writeAll([]byte(a.Name))
	case AtomUTF8Small:
		if len(a.Name) >= 256 {
			return rangeErr("encode atom", "small utf8 atom of %d bytes exceeds 256", len(a.Name))
		}
		if err := w.WriteU8(tagSmallAtomUTF8); err != nil {
			return err
		}
		if err := w.WriteU8(uint8(len(a.Name))); err != nil {
			return err
		}
		return w.writeAll([]byte(a.Name))
	default:
		return unsupported("encode atom", "unrecognized atom encoding %d", a.Encoding)
	}
}

// WritePid emits the legacy PID_EXT tag (masked fields) when
// p.Creation <= 3, otherwise NEW_PID_EXT with full-width fields.
func (w *Writer) WritePid(p Pid) error {
	if useLegacyTag(p.Creation) {
		if err := w.WriteU8(tagPid); err != nil {
			return err
		}
		if err := w.WriteAtom(p.Node); err != nil {
			return err
		}
		if err := w.WriteU32(p.Num & legacyNumMask); err != nil {
			return err
		}
		if err := w.WriteU32(p.Serial & legacySerialMask); err != nil {
			return err
		}
		return w.WriteU8(uint8(p.Creation & legacyCreatMask))
	}
	if err := w.WriteU8(tagNewPid); err != nil {
		return err
	}
	if err := w.WriteAtom(p.Node); err != nil {
		return err
	}
	if err := w.WriteU32(p.Num); err != nil {
		return err
	}
	if err := w.WriteU32(p.Serial); err != nil {
		return err
	}
	return w.WriteU32(p.Creation)
}

// WritePort emits NEW_PORT_EXT or V4_PORT_EXT according to p.Kind. The
// legacy port tag (0x66) is never emitted by this encoder.
func (w *Writer) WritePort(p Port) error {
	switch p.Kind {
	case PortNew:
		if p.Id > math.MaxUint32 {
			return rangeErr("encode port", "NewPort id %d exceeds u32", p.Id)
		}
		if err := w.WriteU8(tagNewPort); err != nil {
			return err
		}
		if err := w.WriteAtom(p.Node); err != nil {
			return err
		}
		if err := w.WriteU32(uint32(p.Id)); err != nil {
			return err
		}
		return w.WriteU32(p.Creation)
	case PortV4:
		if err := w.WriteU8(tagV4Port); err != nil {
			return err
		}
		if err := w.WriteAtom(p.Node); err != nil {
			return err
		}
		if err := w.WriteU64(p.Id); err != nil {
			return err
		}
		return w.WriteU32(p.Creation)
	default:
		return unsupported("encode port", "unrecognized port kind %d", p.Kind)
	}
}

// WriteRef emits NEW_REFERENCE_EXT (1-byte creation) when r.Creation <= 3,
// otherwise NEWER_REFERENCE_EXT (4-byte creation).
func (w *Writer) WriteRef(r Ref) error {
	if len(r.Words) > refMaxWordsNew {
		return rangeErr("encode ref", "ref of %d words exceeds 5", len(r.Words))
	}
	if useLegacyTag(r.Creation) {
		if len(r.Words) > refMaxWordsLegacy {
			return rangeErr("encode ref", "legacy-creation ref of %d words exceeds 3", len(r.Words))
		}
		if err := w.WriteU8(tagNewReference); err != nil {
			return err
		}
		if err := w.WriteI16(int16(len(r.Words))); err != nil {
			return err
		}
		if err := w.WriteAtom(r.Node); err != nil {
			return err
		}
		if err := w.WriteU8(uint8(r.Creation)); err != nil {
			return err
		}
		for _, word := range r.Words {
			if err := w.WriteU32(word); err != nil {
				return err
			}
		}
		return nil
	}
	if err := w.WriteU8(tagNewerReference); err != nil {
		return err
	}
	if err := w.WriteI16(int16(len(r.Words))); err != nil {
		return err
	}
	if err := w.WriteAtom(r.Node); err != nil {
		return err
	}
	if err := w.WriteU32(r.Creation); err != nil {
		return err
	}
	for _, word := range r.Words {
		if err := w.WriteU32(word); err != nil {
			return err
		}
	}
	return nil
}

// WriteTrace emits the 5-tuple (flags, label, serial, from, prev).
func (w *Writer) WriteTrace(t Trace) error {
	return w.WriteTuple([]Term{
		mustInt(t.Flags),
		mustInt(t.Label),
		mustInt(t.Serial),
		t.From,
		mustInt(t.Prev),
	})
}

// mustInt wraps FromInt for the fixed-shape Trace fields, never
// returning an error.
func mustInt(v int64) Term {
	n, err := FromInt(v)
	if err != nil {
		// FromInt fails only for i64::MIN and i32::MIN; such a field is
		// written as the integer 0 instead of panicking.
		n = NewI32(0)
	}
	return n
}

// WriteMsg emits a control message as a small-tuple: opcode first, then
// the payload fields in the order declared for that variant.
func (w *Writer) WriteMsg(m Msg) error {
	var elements []Term
	switch v := m.(type) {
	case Send:
		elements = []Term{v.Cookie, v.To}
	case SendTT:
		elements = []Term{v.Cookie, v.To, v.Token}
	case RegSend:
		elements = []Term{v.From, v.Cookie, v.ToName}
	case RegSendTT:
		elements = []Term{v.From, v.Cookie, v.ToName, v.Token}
	case Exit:
		elements = []Term{v.From, v.To, v.Reason}
	case ExitTT:
		elements = []Term{v.From, v.To, v.Token, v.Reason}
	default:
		return unsupported("encode msg", "unrecognized control message %T", m)
	}
	tuple := make([]Term, 0, len(elements)+1)
	tuple = append(tuple, NewU8(m.Op()))
	tuple = append(tuple, elements...)
	return w.WriteTuple(tuple)
}
