package netbin

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/uuid"
)

func Test_Tuple(t *testing.T) {
	type Triple struct {
		A uint8
		B bool
		C rune `wire:",char"`
	}
	assertRoundtrip(t, Triple{63, true, 'g'}, []byte{63, 1, 0, 0, 0, 103})
}

func Test_FixedArrayIsTuple(t *testing.T) {
	assertRoundtrip(t, [3]uint16{77, 54, 13}, []byte{0, 77, 0, 54, 0, 13})
	assertRoundtrip(t, [0]uint8{}, []byte{})
}

func Test_Sequence(t *testing.T) {
	assertRoundtrip(t, []uint16{77, 54, 13}, []byte{0, 3, 0, 77, 0, 54, 0, 13})
	assertRoundtrip(t, []string{"a", "b"}, []byte{0, 2, 0, 1, 97, 0, 1, 98})
	assertRoundtrip(t, []bool{}, []byte{0, 0})
}

func Test_Map(t *testing.T) {
	assertRoundtrip(t, map[string]uint8{"Monkey": 7, "Dog": 3}, []byte{
		0, 2, 0, 3, 68, 111, 103, 3, 0, 6, 77, 111, 110, 107, 101, 121, 7,
	})
	assertRoundtrip(t, map[uint16]bool{}, []byte{0, 0})
}

func Test_MapEncodingIsDeterministic(t *testing.T) {
	m := map[int32]string{}
	for i := int32(0); i < 64; i++ {
		m[i*7919%101] = "v"
	}
	first, err := Marshal(m)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Marshal(m)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding differs between runs")
		}
	}
}

func Test_MapNaNKeys(t *testing.T) {
	m := map[float64]string{1: "y", math.NaN(): "x", math.NaN(): "w"}
	out, err := Marshal(m)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(out) != 2+3*(8+3) || !bytes.Equal(out[:2], []byte{0, 3}) {
		t.Fatalf("got %v", out)
	}
	// NaN sorts first; equal keys are ordered by value.
	if !bytes.Equal(out[10:13], []byte{0, 1, 'w'}) || !bytes.Equal(out[21:24], []byte{0, 1, 'x'}) {
		t.Fatalf("unexpected entry order %v", out)
	}
	again, err := Marshal(m)
	if err != nil || !bytes.Equal(out, again) {
		t.Fatalf("encoding differs between runs: %v", err)
	}
}

func Test_NewtypeStruct(t *testing.T) {
	type Letter struct{ C Char }
	assertRoundtrip(t, Letter{'a'}, []byte{0, 0, 0, 97})
}

func Test_TupleStruct(t *testing.T) {
	type Price struct {
		Sign Char
		N    uint8
		Neg  bool
	}
	assertRoundtrip(t, Price{'$', 125, false}, []byte{0, 0, 0, 36, 125, 0})
}

func Test_Record(t *testing.T) {
	type Test struct {
		Int uint32
		Seq []string
	}
	assertRoundtrip(t, Test{Int: 1, Seq: []string{"a", "b"}}, []byte{0, 0, 0, 1, 0, 2, 0, 1, 97, 0, 1, 98})
}

func Test_EmptyStruct(t *testing.T) {
	type Empty struct{}
	assertRoundtrip(t, Empty{}, []byte{})
}

func Test_NestedStructs(t *testing.T) {
	type Inner struct {
		Value uint32
	}
	type Outer struct {
		Inner Inner
		Other *uint32
	}
	assertRoundtrip(t, Outer{Inner: Inner{Value: 10}, Other: ptr(uint32(20))}, []byte{
		0, 0, 0, 10, 1, 0, 0, 0, 20,
	})
	assertRoundtrip(t, Outer{Inner: Inner{Value: 10}}, []byte{0, 0, 0, 10, 0})
}

func Test_SkipField(t *testing.T) {
	type WithSkip struct {
		Included uint32
		Skipped  string `wire:"-"`
		hidden   int
	}
	assertRoundtrip(t, WithSkip{Included: 42}, []byte{0, 0, 0, 42})
}

func Test_SkipField_PreserveExisting(t *testing.T) {
	type WithSkip struct {
		Included uint32
		Skipped  string `wire:"-"`
	}
	v := WithSkip{Skipped: "preserve me"}
	if err := Unmarshal([]byte{0, 0, 0, 42}, &v); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.Included != 42 {
		t.Fatalf("Included mismatch: got %v want 42", v.Included)
	}
	if v.Skipped != "preserve me" {
		t.Fatalf("Skipped was modified: got %q want %q", v.Skipped, "preserve me")
	}
}

type testEnum struct {
	Union
	Unit    *Unit
	Newtype *uint32
	Tuple   *[2]uint8
	Struct  *struct{ A uint32 }
}

func Test_Union(t *testing.T) {
	assertRoundtrip(t, testEnum{Unit: &Unit{}}, []byte{0})
	assertRoundtrip(t, testEnum{Newtype: ptr(uint32(1))}, []byte{1, 0, 0, 0, 1})
	assertRoundtrip(t, testEnum{Tuple: &[2]uint8{1, 2}}, []byte{2, 1, 2})
	assertRoundtrip(t, testEnum{Struct: &struct{ A uint32 }{A: 1}}, []byte{3, 0, 0, 0, 1})
}

func Test_UnionDecodeClearsOtherVariants(t *testing.T) {
	v := testEnum{Newtype: ptr(uint32(9))}
	if err := Unmarshal([]byte{2, 1, 2}, &v); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if v.Newtype != nil || v.Tuple == nil || *v.Tuple != [2]uint8{1, 2} {
		t.Fatalf("unexpected union after decode: %#v", v)
	}
}

func Test_NestedUnions(t *testing.T) {
	type Inner struct {
		Union
		X *uint32
		Y *string
	}
	type Outer struct {
		Union
		Nested *Inner
		Value  *uint32
	}
	assertRoundtrip(t, Outer{Nested: &Inner{X: ptr(uint32(42))}}, []byte{0, 0, 0, 0, 0, 42})
	assertRoundtrip(t, Outer{Nested: &Inner{Y: ptr("hi")}}, []byte{0, 1, 0, 2, 'h', 'i'})
	assertRoundtrip(t, Outer{Value: ptr(uint32(10))}, []byte{1, 0, 0, 0, 10})
}

func Test_UnionInsideRecord(t *testing.T) {
	type Msg struct {
		ID   uint16
		Body testEnum
		Tags []string
	}
	assertRoundtrip(t, Msg{ID: 7, Body: testEnum{Unit: &Unit{}}, Tags: []string{"x"}}, []byte{
		0, 7, 0, 0, 1, 0, 1, 'x',
	})
}

func Test_UUIDIsSixteenByteTuple(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	want := []byte{0x6b, 0xa7, 0xb8, 0x10, 0x9d, 0xad, 0x11, 0xd1, 0x80, 0xb4, 0x00, 0xc0, 0x4f, 0xd4, 0x30, 0xc8}
	assertRoundtrip(t, id, want)

	type Session struct {
		ID    uuid.UUID
		Peers map[uuid.UUID]uint8
	}
	s := Session{ID: id, Peers: map[uuid.UUID]uint8{id: 1, uuid.Nil: 2}}
	enc, err := Marshal(s)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	// 16 for ID, 2 for the count, 2*(16+1) for the entries.
	if len(enc) != 16+2+34 {
		t.Fatalf("unexpected length %d", len(enc))
	}
	// uuid.Nil sorts first.
	if !bytes.Equal(enc[18:34], uuid.Nil[:]) {
		t.Fatalf("map keys not in order: % x", enc[18:34])
	}
	var got Session
	if err := Unmarshal(enc, &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.ID != id || got.Peers[id] != 1 || got.Peers[uuid.Nil] != 2 {
		t.Fatalf("unexpected session %#v", got)
	}
}

func Test_Append(t *testing.T) {
	dst := []byte{0xAA}
	out, err := Append(dst, uint16(5456))
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if !bytes.Equal(out, []byte{0xAA, 21, 80}) {
		t.Fatalf("unexpected bytes %v", out)
	}
	out, err = Append(dst, make(chan int))
	if err == nil || len(out) != 1 {
		t.Fatalf("expected failure with dst unchanged, got %v %v", out, err)
	}
}
