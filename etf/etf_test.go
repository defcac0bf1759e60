package etf_test

import (
	"bytes"
	"testing"

	"github.com/go-test/deep"

	"github.com/openproto/ecnode/etf"
)

func encodeTerm(t *testing.T, term etf.Term) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := etf.NewWriter(&buf).WriteTerm(term); err != nil {
		t.Fatalf("WriteTerm(%#v): %v", term, err)
	}
	return buf.Bytes()
}

func decodeTerm(t *testing.T, b []byte) etf.Term {
	t.Helper()
	term, err := etf.NewReader(bytes.NewReader(b)).ReadTerm()
	if err != nil {
		t.Fatalf("ReadTerm(% x): %v", b, err)
	}
	return term
}

func TestIntegerRoundTrip(t *testing.T) {
	values := []int64{0, 1, 255, 256, -1, -128, 134217727, -134217728, 134217728, -134217729,
		1<<31 - 1, 1 << 32, 1<<63 - 1, -(1 << 62)}
	for _, v := range values {
		var buf bytes.Buffer
		if err := etf.NewWriter(&buf).WriteInt64(v); err != nil {
			t.Fatalf("WriteInt64(%d): %v", v, err)
		}
		n, err := etf.NewReader(bytes.NewReader(buf.Bytes())).ReadNumber()
		if err != nil {
			t.Fatalf("ReadNumber after WriteInt64(%d): %v", v, err)
		}
		got, err := n.Int64()
		if err != nil {
			t.Fatalf("Int64() for %d: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d got %d", v, got)
		}
	}
}

func TestIntegerMinRejected(t *testing.T) {
	for _, v := range []int64{-1 << 63, -(1 << 31)} {
		var buf bytes.Buffer
		w := etf.NewWriter(&buf)
		if err := w.WriteInt64(v); err == nil {
			t.Errorf("WriteInt64(%d): expected error, got none (i32::MIN/i64::MIN have no representable magnitude)", v)
		}
	}
}

func TestEncodingMinimality(t *testing.T) {
	cases := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x61, 0x00}},
		{255, []byte{0x61, 0xff}},
		{256, []byte{0x62, 0x00, 0x00, 0x01, 0x00}},
		{134217727, []byte{0x62, 0x07, 0xff, 0xff, 0xff}},
	}
	for _, c := range cases {
		got := func() []byte {
			var buf bytes.Buffer
			if err := etf.NewWriter(&buf).WriteInt64(c.v); err != nil {
				t.Fatalf("WriteInt64(%d): %v", c.v, err)
			}
			return buf.Bytes()
		}()
		if diff := deep.Equal(got, c.want); diff != nil {
			t.Errorf("encode(%d): %v", c.v, diff)
		}
	}
}

func TestEncodeU64Max(t *testing.T) {
	var buf bytes.Buffer
	if err := etf.NewWriter(&buf).WriteUint64(18446744073709551615); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x6e, 0x08, 0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if diff := deep.Equal(buf.Bytes(), want); diff != nil {
		t.Errorf("encode_u64(max): %v", diff)
	}
}

func TestAtomVariantPreservation(t *testing.T) {
	atoms := []etf.Atom{
		etf.Latin1Atom("hello"),
		etf.UTF8Atom("héllo"),
		etf.UTF8SmallAtom("hi"),
	}
	for _, a := range atoms {
		b := encodeTerm(t, a)
		got := decodeTerm(t, b)
		gotAtom, ok := got.(etf.Atom)
		if !ok {
			t.Fatalf("decoded %T, want etf.Atom", got)
		}
		if gotAtom.Encoding != a.Encoding || gotAtom.Name != a.Name {
			t.Errorf("atom %+v round-tripped to %+v", a, gotAtom)
		}
	}
}

func TestFloatRoundTrip(t *testing.T) {
	for _, v := range []float64{-1.0, -0.0, 0.0, 1.0, 3.14159} {
		var buf bytes.Buffer
		if err := etf.NewWriter(&buf).WriteFloat(v); err != nil {
			t.Fatal(err)
		}
		if buf.Bytes()[0] != 0x46 {
			t.Errorf("encode(%v) tag = 0x%02x, want 0x46", v, buf.Bytes()[0])
		}
		got, err := etf.NewReader(bytes.NewReader(buf.Bytes())).ReadFloat()
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Errorf("float round trip %v got %v", v, got)
		}
	}
}

func TestFloatLegacyTagRejected(t *testing.T) {
	_, err := etf.NewReader(bytes.NewReader([]byte{0x63})).ReadFloat()
	if err == nil {
		t.Fatal("expected legacy FLOAT_EXT to be rejected")
	}
}

func TestListEmptyStringDuality(t *testing.T) {
	if diff := deep.Equal(encodeTerm(t, etf.List(nil)), []byte{0x6a}); diff != nil {
		t.Errorf("encode([]): %v", diff)
	}
	if diff := deep.Equal(encodeTerm(t, etf.StringTerm("")), []byte{0x6a}); diff != nil {
		t.Errorf(`encode(""): %v`, diff)
	}
	want := []byte{0x6b, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	if diff := deep.Equal(encodeTerm(t, etf.StringTerm("hello")), want); diff != nil {
		t.Errorf(`encode("hello"): %v`, diff)
	}
	got := decodeTerm(t, []byte{0x6a})
	if got != (etf.Nil{}) {
		t.Errorf("decode([0x6a]) = %#v, want Nil", got)
	}
}

func TestMapEncoding(t *testing.T) {
	if diff := deep.Equal(encodeTerm(t, etf.Map(nil)), []byte{0x74, 0, 0, 0, 0}); diff != nil {
		t.Errorf("encode({}): %v", diff)
	}
	one := etf.Map{{Key: etf.NewU8(1), Value: etf.NewU8(2)}}
	want := []byte{0x74, 0, 0, 0, 1, 0x61, 1, 0x61, 2}
	if diff := deep.Equal(encodeTerm(t, one), want); diff != nil {
		t.Errorf("encode({1:2}): %v", diff)
	}
}

func TestTupleEncode(t *testing.T) {
	tuple := etf.Tuple{etf.NewU8(1), etf.Bool(true)}
	want := []byte{0x68, 0x02, 0x61, 0x01, 0x77, 0x04, 't', 'r', 'u', 'e'}
	if diff := deep.Equal(encodeTerm(t, tuple), want); diff != nil {
		t.Errorf("encode((1, true)): %v", diff)
	}
}

func TestPidCreationThreshold(t *testing.T) {
	legacy := etf.Pid{Node: etf.UTF8SmallAtom("n"), Num: 1, Serial: 2, Creation: 1}
	b := encodeTerm(t, legacy)
	if b[0] != 0x67 {
		t.Errorf("legacy pid tag = 0x%02x, want 0x67", b[0])
	}
	newPid := etf.Pid{Node: etf.UTF8SmallAtom("n"), Num: 1, Serial: 2, Creation: 4}
	b = encodeTerm(t, newPid)
	if b[0] != 0x58 {
		t.Errorf("new pid tag = 0x%02x, want 0x58", b[0])
	}
}

func TestPidRoundTrip(t *testing.T) {
	for _, creation := range []uint32{0, 3, 4, 100} {
		p := etf.Pid{Node: etf.UTF8Atom("node@host"), Num: 7, Serial: 9, Creation: creation}
		got := decodeTerm(t, encodeTerm(t, p))
		gotPid, ok := got.(etf.Pid)
		if !ok {
			t.Fatalf("decoded %T, want Pid", got)
		}
		if creation <= 3 {
			// Legacy masks apply; the small test fixtures fit within
			// the masks so the values should still match exactly.
			if diff := deep.Equal(gotPid, p); diff != nil {
				t.Errorf("pid round trip creation=%d: %v", creation, diff)
			}
		} else if diff := deep.Equal(gotPid, p); diff != nil {
			t.Errorf("pid round trip creation=%d: %v", creation, diff)
		}
	}
}

func TestRefDecodeNew(t *testing.T) {
	input := []byte{0x5a, 0x00, 0x01, 0x76, 0x00, 0x01, 'n', 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02}
	got := decodeTerm(t, input)
	want := etf.Ref{Node: etf.UTF8Atom("n"), Creation: 1, Words: []uint32{2}}
	gotRef, ok := got.(etf.Ref)
	if !ok {
		t.Fatalf("decoded %T, want Ref", got)
	}
	if diff := deep.Equal(gotRef, want); diff != nil {
		t.Errorf("decode ref: %v", diff)
	}
}

func TestRefLegacyTooManyWordsRejected(t *testing.T) {
	// tagNewReference (legacy, 1-byte creation) claiming 4 words, which
	// exceeds the legacy shape's 3-word limit.
	input := []byte{0x72, 0x00, 0x04, 0x77, 0x01, 'n', 0x00,
		0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4}
	_, err := etf.NewReader(bytes.NewReader(input)).ReadRef()
	if err == nil {
		t.Fatal("expected legacy ref with >3 words to be rejected")
	}
}

func TestMsgRegSendRoundTrip(t *testing.T) {
	msg := etf.RegSend{
		From:   etf.Pid{Node: etf.UTF8Atom("n"), Num: 1, Serial: 2, Creation: 3},
		Cookie: etf.UTF8Atom("c"),
		ToName: etf.UTF8Atom("s"),
	}
	var buf bytes.Buffer
	if err := etf.NewWriter(&buf).WriteMsg(msg); err != nil {
		t.Fatal(err)
	}
	got, err := etf.NewReader(bytes.NewReader(buf.Bytes())).ReadMsg()
	if err != nil {
		t.Fatalf("ReadMsg: %v", err)
	}
	gotMsg, ok := got.(etf.RegSend)
	if !ok {
		t.Fatalf("decoded %T, want RegSend", got)
	}
	if diff := deep.Equal(gotMsg, msg); diff != nil {
		t.Errorf("RegSend round trip: %v", diff)
	}
}

func TestOutOfRangeFailClosed(t *testing.T) {
	var buf bytes.Buffer
	if err := etf.NewWriter(&buf).WriteInt64(-1 << 63); err == nil {
		t.Error("expected i64::MIN encode to fail")
	}
	// SmallBig claiming a magnitude larger than 8 bytes.
	input := []byte{0x6e, 0x09, 0x00, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	_, err := etf.NewReader(bytes.NewReader(input)).ReadNumber()
	if err == nil {
		t.Error("expected SmallBig magnitude >8 bytes to fail decode")
	}
}
