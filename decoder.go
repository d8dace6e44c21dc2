package netbin

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"unicode/utf8"

	"github.com/rs/zerolog"

	intr "github.com/dadrian/netbin/internal"
)

// Decoder reads values from an io.Reader. Its methods form the
// decoding half of the traversal protocol and must be called in the
// order the encoder made the matching writes.
//
// A Decoder consumes exactly the bytes of the values it is asked for
// and never reads ahead, so a stream may carry further data after them.
type Decoder struct {
	r   *intr.CountingReader
	log zerolog.Logger
}

// NewDecoder creates a new streaming decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: &intr.CountingReader{R: r}, log: currentLogger()}
}

// SetLogger replaces the logger inherited from SetLogger at construction.
func (d *Decoder) SetLogger(l zerolog.Logger) { d.log = l }

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int64 { return d.r.N }

// Decode reads one value into v, which must be a non-nil pointer. The
// pointed-to type is the shape. It does not check for data after the
// value; Unmarshal does.
func (d *Decoder) Decode(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &Error{Kind: ErrMessage, Detail: "Decode target must be non-nil pointer"}
	}
	start := d.r.N
	if err := d.decodeValue(rv.Elem(), false); err != nil {
		d.log.Debug().Err(err).
			Stringer("kind", KindOf(err)).
			Int64("offset", d.r.N).
			Str("type", rv.Type().Elem().String()).
			Msg("netbin: decode failed")
		return err
	}
	d.log.Trace().Int64("bytes", d.r.N-start).Str("type", rv.Type().Elem().String()).Msg("netbin: decoded")
	return nil
}

func (d *Decoder) wrap(err error, what string) error {
	return ioError(err, d.r.N, what)
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := intr.ReadU8(d.r)
	return b != 0, d.wrap(err, "reading bool")
}
func (d *Decoder) ReadU8() (uint8, error) {
	v, err := intr.ReadU8(d.r)
	return v, d.wrap(err, "reading u8")
}
func (d *Decoder) ReadU16() (uint16, error) {
	v, err := intr.ReadU16(d.r)
	return v, d.wrap(err, "reading u16")
}
func (d *Decoder) ReadU32() (uint32, error) {
	v, err := intr.ReadU32(d.r)
	return v, d.wrap(err, "reading u32")
}
func (d *Decoder) ReadU64() (uint64, error) {
	v, err := intr.ReadU64(d.r)
	return v, d.wrap(err, "reading u64")
}
func (d *Decoder) ReadI8() (int8, error) {
	v, err := intr.ReadU8(d.r)
	return int8(v), d.wrap(err, "reading i8")
}
func (d *Decoder) ReadI16() (int16, error) {
	v, err := intr.ReadU16(d.r)
	return int16(v), d.wrap(err, "reading i16")
}
func (d *Decoder) ReadI32() (int32, error) {
	v, err := intr.ReadU32(d.r)
	return int32(v), d.wrap(err, "reading i32")
}
func (d *Decoder) ReadI64() (int64, error) {
	v, err := intr.ReadU64(d.r)
	return int64(v), d.wrap(err, "reading i64")
}
func (d *Decoder) ReadF32() (float32, error) {
	v, err := intr.ReadU32(d.r)
	return math.Float32frombits(v), d.wrap(err, "reading f32")
}
func (d *Decoder) ReadF64() (float64, error) {
	v, err := intr.ReadU64(d.r)
	return math.Float64frombits(v), d.wrap(err, "reading f64")
}

// ReadChar reads a 4-byte code point. Surrogates and values beyond
// U+10FFFF fail with ErrInvalidChar.
func (d *Decoder) ReadChar() (rune, error) {
	v, err := intr.ReadU32(d.r)
	if err != nil {
		return 0, d.wrap(err, "reading char")
	}
	if v > utf8.MaxRune || !utf8.ValidRune(rune(v)) {
		return 0, newError(ErrInvalidChar, d.r.N, "%#x is not a Unicode scalar value", v)
	}
	return rune(v), nil
}

// ReadBytes reads a length-prefixed byte sequence.
func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := intr.ReadLen(d.r)
	if err != nil {
		return nil, d.wrap(err, "reading bytes length")
	}
	// In-memory sources can be checked before allocating.
	if rem, ok := d.r.Remaining(); ok && n > rem {
		return nil, newError(ErrUnexpectedEOF, d.r.N, "length %d but %d bytes remain", n, rem)
	}
	buf := make([]byte, n)
	if err := intr.ReadFull(d.r, buf); err != nil {
		return nil, d.wrap(err, fmt.Sprintf("reading %d bytes", n))
	}
	return buf, nil
}

// ReadString reads a length-prefixed string and validates it as UTF-8.
func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", newError(ErrInvalidString, d.r.N, "%d bytes are not valid UTF-8", len(b))
	}
	return string(b), nil
}

// ReadOption reads the presence flag. When it reports true the caller
// decodes the inner value next.
func (d *Decoder) ReadOption() (bool, error) {
	b, err := intr.ReadU8(d.r)
	return b != 0, d.wrap(err, "reading option flag")
}

// ReadVariant reads the discriminant of a tagged union. Mapping it to
// a variant, and rejecting indexes the shape does not have, is the
// caller's job.
func (d *Decoder) ReadVariant() (uint8, error) {
	v, err := intr.ReadU8(d.r)
	return v, d.wrap(err, "reading variant tag")
}

// BeginSeq reads the element count of a sequence.
func (d *Decoder) BeginSeq() (*Access, error) {
	n, err := intr.ReadLen(d.r)
	if err != nil {
		return nil, d.wrap(err, "reading sequence count")
	}
	return &Access{n: n}, nil
}

// BeginMap reads the entry count of a map. Each step of the returned
// cursor covers one key and its value.
func (d *Decoder) BeginMap() (*Access, error) {
	n, err := intr.ReadLen(d.r)
	if err != nil {
		return nil, d.wrap(err, "reading map count")
	}
	return &Access{n: n}, nil
}

// BeginTuple and BeginRecord consume nothing; the arity comes from the
// shape.
func (d *Decoder) BeginTuple(arity int) *Access   { return &Access{n: arity} }
func (d *Decoder) BeginRecord(fields int) *Access { return &Access{n: fields} }

// DecodeAny always fails: without a shape there is nothing to say what
// the next byte means.
func (d *Decoder) DecodeAny() error { return ErrShapeFree }

// SkipValue always fails for the same reason as DecodeAny.
func (d *Decoder) SkipValue() error { return ErrShapeFree }

// ReadIdentifier always fails: field and variant names never reach the wire.
func (d *Decoder) ReadIdentifier() (string, error) { return "", ErrIdentifier }

// Access is the element cursor of an aggregate being decoded. It
// counts elements consumed against the declared count and reports the
// end once the count is reached, whatever bytes remain in the source.
type Access struct {
	n, i int
}

// Len returns the declared element count.
func (a *Access) Len() int { return a.n }

// Remaining returns how many elements are still to be decoded.
func (a *Access) Remaining() int { return a.n - a.i }

// Next reports whether another element follows, and if so counts it as
// consumed. The caller decodes it before calling Next again.
func (a *Access) Next() bool {
	if a.i >= a.n {
		return false
	}
	a.i++
	return true
}
