package netbin

import (
	"io"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/rs/zerolog"

	intr "github.com/dadrian/netbin/internal"
)

// Encoder writes values to an io.Writer. Its methods form the
// encoding half of the traversal protocol: a shape layer calls them in
// wire order, one call per visited node.
type Encoder struct {
	w   *intr.CountingWriter
	log zerolog.Logger
}

// NewEncoder creates a new streaming encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: &intr.CountingWriter{W: w}, log: currentLogger()}
}

// SetLogger replaces the logger inherited from SetLogger at construction.
func (e *Encoder) SetLogger(l zerolog.Logger) { e.log = l }

// Offset returns the number of bytes written so far.
func (e *Encoder) Offset() int64 { return e.w.N }

// Encode writes v using its Go type as the shape. Values implementing
// Marshaler describe themselves.
func (e *Encoder) Encode(v any) error {
	start := e.w.N
	if err := e.encodeValue(reflect.ValueOf(v), false); err != nil {
		e.log.Debug().Err(err).
			Stringer("kind", KindOf(err)).
			Int64("offset", e.w.N).
			Str("type", typeName(v)).
			Msg("netbin: encode failed")
		return err
	}
	e.log.Trace().Int64("bytes", e.w.N-start).Str("type", typeName(v)).Msg("netbin: encoded")
	return nil
}

func (e *Encoder) wrap(err error, what string) error {
	return ioError(err, e.w.N, what)
}

// Fixed-width writers.
func (e *Encoder) WriteUnit() error { return nil }
func (e *Encoder) WriteBool(v bool) error {
	var b uint8
	if v {
		b = 1
	}
	return e.wrap(intr.WriteU8(e.w, b), "writing bool")
}
func (e *Encoder) WriteU8(v uint8) error   { return e.wrap(intr.WriteU8(e.w, v), "writing u8") }
func (e *Encoder) WriteU16(v uint16) error { return e.wrap(intr.WriteU16(e.w, v), "writing u16") }
func (e *Encoder) WriteU32(v uint32) error { return e.wrap(intr.WriteU32(e.w, v), "writing u32") }
func (e *Encoder) WriteU64(v uint64) error { return e.wrap(intr.WriteU64(e.w, v), "writing u64") }
func (e *Encoder) WriteI8(v int8) error    { return e.wrap(intr.WriteU8(e.w, uint8(v)), "writing i8") }
func (e *Encoder) WriteI16(v int16) error {
	return e.wrap(intr.WriteU16(e.w, uint16(v)), "writing i16")
}
func (e *Encoder) WriteI32(v int32) error {
	return e.wrap(intr.WriteU32(e.w, uint32(v)), "writing i32")
}
func (e *Encoder) WriteI64(v int64) error {
	return e.wrap(intr.WriteU64(e.w, uint64(v)), "writing i64")
}
func (e *Encoder) WriteF32(v float32) error {
	return e.wrap(intr.WriteU32(e.w, math.Float32bits(v)), "writing f32")
}
func (e *Encoder) WriteF64(v float64) error {
	return e.wrap(intr.WriteU64(e.w, math.Float64bits(v)), "writing f64")
}

// WriteChar writes r as a 4-byte code point. Surrogates and values
// beyond U+10FFFF are rejected since no decoder would accept them.
func (e *Encoder) WriteChar(r rune) error {
	if !utf8.ValidRune(r) {
		return newError(ErrInvalidChar, e.w.N, "%#x is not a Unicode scalar value", int64(r))
	}
	return e.wrap(intr.WriteU32(e.w, uint32(r)), "writing char")
}

// WriteString writes the length-prefixed UTF-8 bytes of s.
func (e *Encoder) WriteString(s string) error {
	if !utf8.ValidString(s) {
		return newError(ErrInvalidString, e.w.N, "string is not valid UTF-8")
	}
	if !intr.CheckLen(len(s)) {
		return e.lengthError("string", len(s))
	}
	if err := intr.WriteLen(e.w, len(s)); err != nil {
		return e.wrap(err, "writing string length")
	}
	_, err := io.WriteString(e.w, s)
	return e.wrap(err, "writing string")
}

// WriteBytes writes the length-prefixed bytes of b.
func (e *Encoder) WriteBytes(b []byte) error {
	if !intr.CheckLen(len(b)) {
		return e.lengthError("bytes", len(b))
	}
	if err := intr.WriteLen(e.w, len(b)); err != nil {
		return e.wrap(err, "writing bytes length")
	}
	_, err := e.w.Write(b)
	return e.wrap(err, "writing bytes")
}

// WriteOption writes the presence flag. When present is true the
// caller writes the inner value next.
func (e *Encoder) WriteOption(present bool) error {
	var b uint8
	if present {
		b = 1
	}
	return e.wrap(intr.WriteU8(e.w, b), "writing option flag")
}

// BeginSeq writes the element count of a sequence. The caller then
// writes exactly n elements. A negative n (UnknownLength) fails with
// ErrLengthNotKnown.
func (e *Encoder) BeginSeq(n int) error { return e.beginCounted("sequence", n) }

// BeginMap writes the entry count of a map. The caller then writes n
// key/value pairs, each key immediately followed by its value.
func (e *Encoder) BeginMap(n int) error { return e.beginCounted("map", n) }

func (e *Encoder) beginCounted(what string, n int) error {
	if n < 0 {
		return newError(ErrLengthNotKnown, e.w.N, "%s count must be known before encoding", what)
	}
	if !intr.CheckLen(n) {
		return e.lengthError(what, n)
	}
	return e.wrap(intr.WriteLen(e.w, n), "writing "+what+" count")
}

// BeginTuple and BeginRecord write nothing: arity belongs to the shape.
func (e *Encoder) BeginTuple(arity int) error {
	if arity < 0 {
		return newError(ErrMessage, e.w.N, "negative tuple arity %d", arity)
	}
	return nil
}
func (e *Encoder) BeginRecord(fields int) error {
	if fields < 0 {
		return newError(ErrMessage, e.w.N, "negative record field count %d", fields)
	}
	return nil
}

// WriteVariant writes the discriminant of a tagged union. The caller
// then writes the payload of that variant: nothing for a unit variant,
// the inner value, or the variant's fields in order.
func (e *Encoder) WriteVariant(index int) error {
	if index < 0 || index > math.MaxUint8 {
		return newError(ErrMessage, e.w.N, "variant index %d out of range 0..255", index)
	}
	return e.wrap(intr.WriteU8(e.w, uint8(index)), "writing variant tag")
}

func (e *Encoder) lengthError(what string, n int) error {
	return newError(ErrMessage, e.w.N, "%s length %d exceeds %d", what, n, MaxLen)
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
