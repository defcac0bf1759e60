package etf

// ReadTerm reads one tag byte and dispatches to the matching term
// reader. Every unrecognized tag fails with InvalidData carrying the
// offending byte.
func (r *Reader) ReadTerm() (Term, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	return r.readTermTag(tag)
}

func (r *Reader) readTermTag(tag byte) (Term, error) {
	switch tag {
	case tagNil:
		return Nil{}, nil
	case tagString:
		s, err := r.ReadStringU16()
		if err != nil {
			return nil, err
		}
		return StringTerm(s), nil
	case tagBinary:
		return r.readBinaryBody()
	case tagSmallTuple, tagLargeTuple:
		return r.readTupleBody(tag)
	case tagList:
		return r.readListBody()
	case tagMap:
		return r.readMapBody()
	case tagAtom, tagAtomUTF8, tagSmallAtomUTF8:
		return r.readAtomBody(tag)
	case tagSmallInteger, tagInteger, tagSmallBig:
		return r.readNumberBody(tag)
	case tagPid, tagNewPid:
		return r.readPidBody(tag)
	case tagPort, tagNewPort, tagV4Port:
		return r.readPortBody(tag)
	case tagNewReference, tagNewerReference:
		return r.readRefBody(tag)
	case tagFloat:
		return nil, unsupported("decode term", "legacy FLOAT_EXT (0x63) is not supported")
	case tagLargeBig:
		return nil, unsupported("decode term", "LARGE_BIG_EXT is not supported")
	default:
		return nil, invalidData("decode term", tag)
	}
}

// ReadNumber reads a tag-prefixed integer term.
func (r *Reader) ReadNumber() (Number, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return Number{}, err
	}
	return r.readNumberBody(tag)
}

func (r *Reader) readNumberBody(tag byte) (Number, error) {
	switch tag {
	case tagSmallInteger:
		v, err := r.ReadU8()
		if err != nil {
			return Number{}, err
		}
		return NewU8(v), nil
	case tagInteger:
		v, err := r.ReadI32()
		if err != nil {
			return Number{}, err
		}
		return NewI32(v), nil
	case tagSmallBig:
		n, err := r.ReadU8()
		if err != nil {
			return Number{}, err
		}
		if n > 8 {
			return Number{}, invalidDataf("decode integer", "small-big magnitude of %d bytes exceeds 8", n)
		}
		sign, err := r.ReadU8()
		if err != nil {
			return Number{}, err
		}
		if sign != 0 && sign != 1 {
			return Number{}, invalidDataf("decode integer", "small-big sign byte %d is neither 0 nor 1", sign)
		}
		mag, err := r.ReadExact(int(n))
		if err != nil {
			return Number{}, err
		}
		return Number{Kind: NumberSmallBig, Magnitude: minimalMagnitude(mag), Sign: sign}, nil
	default:
		return Number{}, invalidData("decode integer", tag)
	}
}

// ReadFloat reads a NEW_FLOAT_EXT term. The legacy textual FLOAT_EXT
// (0x63) is rejected.
func (r *Reader) ReadFloat() (float64, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	if tag != tagNewFloat {
		return 0, invalidData("decode float", tag)
	}
	return r.ReadF64()
}

func (r *Reader) readBinaryBody() (Binary, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	b, err := r.ReadExact(int(n))
	if err != nil {
		return nil, err
	}
	return Binary(b), nil
}

func (r *Reader) readTupleBody(tag byte) (Tuple, error) {
	var arity uint32
	if tag == tagSmallTuple {
		n, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		arity = uint32(n)
	} else {
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		arity = n
	}
	elements := make(Tuple, arity)
	for i := range elements {
		t, err := r.ReadTerm()
		if err != nil {
			return nil, err
		}
		elements[i] = t
	}
	return elements, nil
}

func (r *Reader) readListBody() (List, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	elements := make(List, n)
	for i := range elements {
		t, err := r.ReadTerm()
		if err != nil {
			return nil, err
		}
		elements[i] = t
	}
	tailTag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if tailTag != tagNil {
		return nil, invalidData("decode list", tailTag)
	}
	return elements, nil
}

func (r *Reader) readMapBody() (Map, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	kvs := make(Map, n)
	for i := range kvs {
		k, err := r.ReadTerm()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadTerm()
		if err != nil {
			return nil, err
		}
		kvs[i] = KV{Key: k, Value: v}
	}
	return kvs, nil
}

// ReadAtom reads a tag-prefixed atom, recording which of the three wire
// variants it saw.
func (r *Reader) ReadAtom() (Atom, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return Atom{}, err
	}
	return r.readAtomBody(tag)
}

func (r *Reader) readAtomBody(tag byte) (Atom, error) {
	switch tag {
	case tagAtom:
		s, err := r.ReadStringU16()
		if err != nil {
			return Atom{}, err
		}
		return Latin1Atom(s), nil
	case tagAtomUTF8:
		s, err := r.ReadStringU16()
		if err != nil {
			return Atom{}, err
		}
		return UTF8Atom(s), nil
	case tagSmallAtomUTF8:
		s, err := r.ReadStringU8()
		if err != nil {
			return Atom{}, err
		}
		return UTF8SmallAtom(s), nil
	default:
		return Atom{}, invalidData("decode atom", tag)
	}
}

// ReadPid reads a tag-prefixed Pid, accepting both the legacy and new
// wire forms.
func (r *Reader) ReadPid() (Pid, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return Pid{}, err
	}
	return r.readPidBody(tag)
}

func (r *Reader) readPidBody(tag byte) (Pid, error) {
	node, err := r.ReadAtom()
	if err != nil {
		return Pid{}, err
	}
	switch tag {
	case tagPid:
		num, err := r.ReadU32()
		if err != nil {
			return Pid{}, err
		}
		serial, err := r.ReadU32()
		if err != nil {
			return Pid{}, err
		}
		creation, err := r.ReadU8()
		if err != nil {
			return Pid{}, err
		}
		return Pid{
			Node:     node,
			Num:      num & legacyNumMask,
			Serial:   serial & legacySerialMask,
			Creation: uint32(creation) & legacyCreatMask,
		}, nil
	case tagNewPid:
		num, err := r.ReadU32()
		if err != nil {
			return Pid{}, err
		}
		serial, err := r.ReadU32()
		if err != nil {
			return Pid{}, err
		}
		creation, err := r.ReadU32()
		if err != nil {
			return Pid{}, err
		}
		return Pid{Node: node, Num: num, Serial: serial, Creation: creation}, nil
	default:
		return Pid{}, invalidData("decode pid", tag)
	}
}

// ReadPort reads a tag-prefixed Port, accepting the legacy tag (masked
// fields), NewPort, and V4Port.
func (r *Reader) ReadPort() (Port, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return Port{}, err
	}
	return r.readPortBody(tag)
}

func (r *Reader) readPortBody(tag byte) (Port, error) {
	node, err := r.ReadAtom()
	if err != nil {
		return Port{}, err
	}
	switch tag {
	case tagPort:
		id, err := r.ReadU32()
		if err != nil {
			return Port{}, err
		}
		creation, err := r.ReadU8()
		if err != nil {
			return Port{}, err
		}
		return Port{
			Kind:     PortNew,
			Node:     node,
			Id:       uint64(id & 0x0fffffff),
			Creation: uint32(creation) & legacyCreatMask,
		}, nil
	case tagNewPort:
		id, err := r.ReadU32()
		if err != nil {
			return Port{}, err
		}
		creation, err := r.ReadU32()
		if err != nil {
			return Port{}, err
		}
		return Port{Kind: PortNew, Node: node, Id: uint64(id), Creation: creation}, nil
	case tagV4Port:
		id, err := r.ReadU64()
		if err != nil {
			return Port{}, err
		}
		creation, err := r.ReadU32()
		if err != nil {
			return Port{}, err
		}
		return Port{Kind: PortV4, Node: node, Id: id, Creation: creation}, nil
	default:
		return Port{}, invalidData("decode port", tag)
	}
}

// ReadRef reads a tag-prefixed Ref, accepting both wire forms. A
// legacy-tagged (1-byte creation) Ref claiming more than 3 words is
// rejected with InvalidData, per this implementation's resolution of
// the source's own open question on the point.
func (r *Reader) ReadRef() (Ref, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return Ref{}, err
	}
	return r.readRefBody(tag)
}

func (r *Reader) readRefBody(tag byte) (Ref, error) {
	length, err := r.ReadI16()
	if err != nil {
		return Ref{}, err
	}
	if length < 0 || int(length) > refMaxWordsNew {
		return Ref{}, invalidDataf("decode ref", "ref length %d out of 0..=5 range", length)
	}
	node, err := r.ReadAtom()
	if err != nil {
		return Ref{}, err
	}
	switch tag {
	case tagNewReference:
		if int(length) > refMaxWordsLegacy {
			return Ref{}, invalidDataf("decode ref", "legacy ref length %d exceeds 3", length)
		}
		creation, err := r.ReadU8()
		if err != nil {
			return Ref{}, err
		}
		words, err := r.readRefWords(int(length))
		if err != nil {
			return Ref{}, err
		}
		return Ref{Node: node, Creation: uint32(creation), Words: words}, nil
	case tagNewerReference:
		creation, err := r.ReadU32()
		if err != nil {
			return Ref{}, err
		}
		words, err := r.readRefWords(int(length))
		if err != nil {
			return Ref{}, err
		}
		return Ref{Node: node, Creation: creation, Words: words}, nil
	default:
		return Ref{}, invalidData("decode ref", tag)
	}
}

func (r *Reader) readRefWords(n int) ([]uint32, error) {
	words := make([]uint32, n)
	for i := range words {
		w, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return words, nil
}

// ReadTrace reads the 5-tuple (flags, label, serial, from, prev).
func (r *Reader) ReadTrace() (Trace, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return Trace{}, err
	}
	tuple, err := r.readTupleBody(tag)
	if err != nil {
		return Trace{}, err
	}
	if len(tuple) != 5 {
		return Trace{}, invalidDataf("decode trace", "expected 5-tuple, got arity %d", len(tuple))
	}
	flags, err := traceInt(tuple[0])
	if err != nil {
		return Trace{}, err
	}
	label, err := traceInt(tuple[1])
	if err != nil {
		return Trace{}, err
	}
	serial, err := traceInt(tuple[2])
	if err != nil {
		return Trace{}, err
	}
	from, ok := tuple[3].(Pid)
	if !ok {
		return Trace{}, invalidDataf("decode trace", "expected Pid in position 3, got %T", tuple[3])
	}
	prev, err := traceInt(tuple[4])
	if err != nil {
		return Trace{}, err
	}
	return Trace{Flags: flags, Label: label, Serial: serial, From: from, Prev: prev}, nil
}

func traceInt(t Term) (int64, error) {
	n, ok := t.(Number)
	if !ok {
		return 0, invalidDataf("decode trace", "expected integer, got %T", t)
	}
	return n.Int64()
}

// ReadMsg reads a control-message tuple: a small-tuple header, a
// SMALL_INTEGER_EXT opcode, then the fixed field order for that opcode.
// Arity must match the opcode's declared arity.
func (r *Reader) ReadMsg() (Msg, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if tag != tagSmallTuple {
		return nil, invalidData("decode msg", tag)
	}
	tuple, err := r.readTupleBody(tag)
	if err != nil {
		return nil, err
	}
	if len(tuple) == 0 {
		return nil, invalidDataf("decode msg", "empty control tuple")
	}
	opNum, ok := tuple[0].(Number)
	if !ok {
		return nil, invalidDataf("decode msg", "expected integer opcode, got %T", tuple[0])
	}
	op, err := opNum.Uint8()
	if err != nil {
		return nil, err
	}
	fields := tuple[1:]
	switch op {
	case OpSend:
		if len(fields) != 2 {
			return nil, invalidDataf("decode msg", "Send wants arity 3, got %d", len(tuple))
		}
		cookie, to, err := msgCookieTo(fields[0], fields[1])
		if err != nil {
			return nil, err
		}
		return Send{Cookie: cookie, To: to}, nil
	case OpSendTT:
		if len(fields) != 3 {
			return nil, invalidDataf("decode msg", "SendTT wants arity 4, got %d", len(tuple))
		}
		cookie, to, err := msgCookieTo(fields[0], fields[1])
		if err != nil {
			return nil, err
		}
		token, ok := fields[2].(Trace)
		if !ok {
			return nil, invalidDataf("decode msg", "SendTT token: expected Trace, got %T", fields[2])
		}
		return SendTT{Cookie: cookie, To: to, Token: token}, nil
	case OpRegSend:
		if len(fields) != 3 {
			return nil, invalidDataf("decode msg", "RegSend wants arity 4, got %d", len(tuple))
		}
		from, cookie, toname, err := msgFromCookieName(fields[0], fields[1], fields[2])
		if err != nil {
			return nil, err
		}
		return RegSend{From: from, Cookie: cookie, ToName: toname}, nil
	case OpRegSendTT:
		if len(fields) != 4 {
			return nil, invalidDataf("decode msg", "RegSendTT wants arity 5, got %d", len(tuple))
		}
		from, cookie, toname, err := msgFromCookieName(fields[0], fields[1], fields[2])
		if err != nil {
			return nil, err
		}
		token, ok := fields[3].(Trace)
		if !ok {
			return nil, invalidDataf("decode msg", "RegSendTT token: expected Trace, got %T", fields[3])
		}
		return RegSendTT{From: from, Cookie: cookie, ToName: toname, Token: token}, nil
	case OpExit:
		if len(fields) != 3 {
			return nil, invalidDataf("decode msg", "Exit wants arity 4, got %d", len(tuple))
		}
		from, to, err := msgFromTo(fields[0], fields[1])
		if err != nil {
			return nil, err
		}
		return Exit{From: from, To: to, Reason: fields[2]}, nil
	case OpExitTT:
		if len(fields) != 4 {
			return nil, invalidDataf("decode msg", "ExitTT wants arity 5, got %d", len(tuple))
		}
		from, to, err := msgFromTo(fields[0], fields[1])
		if err != nil {
			return nil, err
		}
		token, ok := fields[2].(Trace)
		if !ok {
			return nil, invalidDataf("decode msg", "ExitTT token: expected Trace, got %T", fields[2])
		}
		return ExitTT{From: from, To: to, Token: token, Reason: fields[3]}, nil
	default:
		return nil, unsupported("decode msg", "control opcode %d is out of scope", op)
	}
}

func msgCookieTo(cookieTerm, toTerm Term) (Atom, Pid, error) {
	cookie, ok := cookieTerm.(Atom)
	if !ok {
		return Atom{}, Pid{}, invalidDataf("decode msg", "cookie: expected Atom, got %T", cookieTerm)
	}
	to, ok := toTerm.(Pid)
	if !ok {
		return Atom{}, Pid{}, invalidDataf("decode msg", "to: expected Pid, got %T", toTerm)
	}
	return cookie, to, nil
}

func msgFromTo(fromTerm, toTerm Term) (Pid, Pid, error) {
	from, ok := fromTerm.(Pid)
	if !ok {
		return Pid{}, Pid{}, invalidDataf("decode msg", "from: expected Pid, got %T", fromTerm)
	}
	to, ok := toTerm.(Pid)
	if !ok {
		return Pid{}, Pid{}, invalidDataf("decode msg", "to: expected Pid, got %T", toTerm)
	}
	return from, to, nil
}

func msgFromCookieName(fromTerm, cookieTerm, nameTerm Term) (Pid, Atom, Atom, error) {
	from, ok := fromTerm.(Pid)
	if !ok {
		return Pid{}, Atom{}, Atom{}, invalidDataf("decode msg", "from: expected Pid, got %T", fromTerm)
	}
	cookie, ok := cookieTerm.(Atom)
	if !ok {
		return Pid{}, Atom{}, Atom{}, invalidDataf("decode msg", "cookie: expected Atom, got %T", cookieTerm)
	}
	name, ok := nameTerm.(Atom)
	if !ok {
		return Pid{}, Atom{}, Atom{}, invalidDataf("decode msg", "toname: expected Atom, got %T", nameTerm)
	}
	return from, cookie, name, nil
}
