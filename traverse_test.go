package netbin

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// point describes itself as a pair of i32.
type point struct{ X, Y int32 }

func (p point) MarshalWire(e *Encoder) error {
	if err := e.BeginTuple(2); err != nil {
		return err
	}
	if err := e.WriteI32(p.X); err != nil {
		return err
	}
	return e.WriteI32(p.Y)
}

func (p *point) UnmarshalWire(d *Decoder) error {
	a := d.BeginTuple(2)
	var err error
	for i := 0; a.Next(); i++ {
		var v int32
		if v, err = d.ReadI32(); err != nil {
			return err
		}
		if i == 0 {
			p.X = v
		} else {
			p.Y = v
		}
	}
	return nil
}

// command is a hand-written union: Stop, Move(point), Say{text, loud}.
type command struct {
	kind string
	at   point
	text string
	loud bool
}

func (c *command) MarshalWire(e *Encoder) error {
	switch c.kind {
	case "stop":
		return e.WriteVariant(0)
	case "move":
		if err := e.WriteVariant(1); err != nil {
			return err
		}
		return e.Encode(c.at)
	case "say":
		if err := e.WriteVariant(2); err != nil {
			return err
		}
		if err := e.BeginRecord(2); err != nil {
			return err
		}
		if err := e.WriteString(c.text); err != nil {
			return err
		}
		return e.WriteBool(c.loud)
	}
	return Errorf("unknown command %q", c.kind)
}

func (c *command) UnmarshalWire(d *Decoder) error {
	tag, err := d.ReadVariant()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		*c = command{kind: "stop"}
	case 1:
		*c = command{kind: "move"}
		return d.Decode(&c.at)
	case 2:
		*c = command{kind: "say"}
		if c.text, err = d.ReadString(); err != nil {
			return err
		}
		c.loud, err = d.ReadBool()
		return err
	default:
		return Errorf("unknown command index %d", tag)
	}
	return nil
}

func Test_Marshaler(t *testing.T) {
	assertRoundtrip(t, point{X: -1, Y: 2}, []byte{255, 255, 255, 255, 0, 0, 0, 2})

	type Path struct {
		Name  string
		Steps []point
	}
	assertRoundtrip(t, Path{Name: "p", Steps: []point{{1, 2}}}, []byte{
		0, 1, 'p', 0, 1, 0, 0, 0, 1, 0, 0, 0, 2,
	})
}

func Test_MarshalerUnion(t *testing.T) {
	assertRoundtrip(t, command{kind: "stop"}, []byte{0})
	assertRoundtrip(t, command{kind: "move", at: point{3, 4}}, []byte{1, 0, 0, 0, 3, 0, 0, 0, 4})
	assertRoundtrip(t, command{kind: "say", text: "hi", loud: true}, []byte{2, 0, 2, 'h', 'i', 1})

	var c command
	if err := Unmarshal([]byte{3}, &c); err == nil || KindOf(err) != ErrMessage {
		t.Fatalf("expected message error, got %v", err)
	}
	if _, err := Marshal(command{kind: "jump"}); err == nil {
		t.Fatalf("expected failure for unknown command")
	}
}

func Test_StreamSuccessiveValues(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	in := []command{
		{kind: "say", text: "one"},
		{kind: "move", at: point{1, 1}},
		{kind: "stop"},
	}
	for i := range in {
		if err := enc.Encode(in[i]); err != nil {
			t.Fatalf("encode %d: %v", i, err)
		}
	}
	if enc.Offset() != int64(buf.Len()) {
		t.Fatalf("offset %d, buffer %d", enc.Offset(), buf.Len())
	}

	dec := NewDecoder(&buf)
	for i := range in {
		var got command
		if err := dec.Decode(&got); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if got != in[i] {
			t.Fatalf("value %d: got %#v want %#v", i, got, in[i])
		}
	}
	var extra command
	expectKind(t, dec.Decode(&extra), ErrUnexpectedEOF)
}

func Test_AccessCursor(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte{0, 2, 7, 8, 99}))
	a, err := dec.BeginSeq()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	var got []uint8
	for a.Next() {
		v, err := dec.ReadU8()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, v)
	}
	// The cursor stops at the declared count even though a byte remains.
	if !bytes.Equal(got, []byte{7, 8}) || a.Remaining() != 0 || a.Len() != 2 {
		t.Fatalf("unexpected cursor state %v %d", got, a.Remaining())
	}
	if dec.Offset() != 4 {
		t.Fatalf("offset %d", dec.Offset())
	}
}

func Test_ManualMap(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	if err := e.BeginMap(1); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteChar('k'); err != nil {
		t.Fatal(err)
	}
	if err := e.WriteF32(1.333); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0, 1, 0, 0, 0, 'k', 63, 170, 159, 190}) {
		t.Fatalf("unexpected bytes %v", buf.Bytes())
	}
	if err := e.WriteVariant(256); KindOf(err) != ErrMessage {
		t.Fatalf("variant 256: %v", err)
	}
}

func Test_Logging(t *testing.T) {
	var out bytes.Buffer
	SetLogger(zerolog.New(&out).Level(zerolog.DebugLevel))
	defer SetLogger(zerolog.Nop())

	var s string
	if err := Unmarshal([]byte{0, 9}, &s); err == nil {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(out.String(), "decode failed") || !strings.Contains(out.String(), `"kind":"unexpected end of input"`) {
		t.Fatalf("missing log line: %s", out.String())
	}

	// Per-instance loggers override the package default.
	out.Reset()
	var own bytes.Buffer
	enc := NewEncoder(&bytes.Buffer{})
	enc.SetLogger(zerolog.New(&own))
	if err := enc.Encode(make(chan int)); !errors.Is(err, ErrLengthNotKnown) {
		t.Fatalf("unexpected %v", err)
	}
	if out.Len() != 0 || !strings.Contains(own.String(), "encode failed") {
		t.Fatalf("logger override ignored: default=%q own=%q", out.String(), own.String())
	}
}
