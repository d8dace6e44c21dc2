package netbin

import (
	"strconv"

	intr "github.com/dadrian/netbin/internal"
)

// Kind identifies the wire shape of a value. Kinds never appear on the
// wire; they describe what the caller's shape says comes next.
type Kind uint8

const (
	KindUnit Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindI8
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindChar
	KindString
	KindBytes
	KindOption
	KindSeq
	KindTuple
	KindMap
	KindRecord
	KindUnion
)

var kindNames = [...]string{
	KindUnit:   "unit",
	KindBool:   "bool",
	KindU8:     "u8",
	KindU16:    "u16",
	KindU32:    "u32",
	KindU64:    "u64",
	KindI8:     "i8",
	KindI16:    "i16",
	KindI32:    "i32",
	KindI64:    "i64",
	KindF32:    "f32",
	KindF64:    "f64",
	KindChar:   "char",
	KindString: "string",
	KindBytes:  "bytes",
	KindOption: "option",
	KindSeq:    "seq",
	KindTuple:  "tuple",
	KindMap:    "map",
	KindRecord: "record",
	KindUnion:  "union",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsPrimitive reports whether k is a leaf of the shape tree.
func (k Kind) IsPrimitive() bool { return k <= KindBytes }

// MaxLen is the largest length or count a prefix can carry.
const MaxLen = intr.MaxLen

// UnknownLength is passed to BeginSeq or BeginMap by traversals that
// cannot count their elements ahead of time. The format cannot encode
// such aggregates, so the call fails with ErrLengthNotKnown.
const UnknownLength = -1

// Unit is the zero-byte value.
type Unit struct{}

// Char is a Unicode scalar value. It travels as a 4-byte code point,
// where a bare rune (an int32) travels as a signed 32-bit integer.
type Char rune
