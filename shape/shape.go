// Package shape describes wire shapes at run time, without Go types.
//
// A shape is written in a small declaration language:
//
//	# comments start with '#' or '//'
//	type Point = tuple(i32, i32);
//	type Event = union { Unit, Newtype(u32), Tuple(u8, u8), Struct { a: u32 } };
//	record { id: u64, at: option<Point>, tags: seq<string>, ev: Event }
//
// A Schema holds the named declarations and an optional root expression.
// Encode and Decode move dynamic Go values (maps, slices, scalars) through
// a netbin Encoder or Decoder using a Shape in place of a Go type.
package shape

import (
	"fmt"
	"strings"

	"github.com/dadrian/netbin"
)

// Hint refines how a shape's values are represented in Go. It never
// changes the wire bytes.
type Hint uint8

const (
	HintNone Hint = iota
	HintUUID      // 16-byte tuple shown as a canonical UUID string
)

// Shape is one node of a shape tree. Named shapes may be referenced from
// several places, including from inside themselves.
type Shape struct {
	Kind netbin.Kind
	Name string // declared name, empty for anonymous shapes
	Hint Hint

	Elem     *Shape    // option, seq and map value; element of a uniform tuple
	Key      *Shape    // map key
	Fields   []Field   // record fields; tuple elements (unnamed)
	Variants []Variant // union alternatives, in index order
	Len      int       // element count of a uniform tuple (array<T, N>)

	ref string // unresolved reference, cleared by resolve
}

// Field is a record field or tuple element.
type Field struct {
	Name  string
	Shape *Shape
}

// Variant is one alternative of a union. Shape is nil for unit variants.
type Variant struct {
	Name  string
	Shape *Shape
}

// Arity returns the number of elements of a tuple or fields of a record.
func (s *Shape) Arity() int {
	if s.Kind == netbin.KindTuple && s.Elem != nil {
		return s.Len
	}
	return len(s.Fields)
}

// At returns the shape of the i'th tuple element or record field.
func (s *Shape) At(i int) *Shape {
	if s.Elem != nil && s.Kind == netbin.KindTuple {
		return s.Elem
	}
	return s.Fields[i].Shape
}

// Variant returns the index of the variant called name.
func (s *Shape) Variant(name string) (int, bool) {
	for i, v := range s.Variants {
		if v.Name == name {
			return i, true
		}
	}
	return -1, false
}

// String returns the shape's name when it has one and its expression
// otherwise.
func (s *Shape) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Expr()
}

// Expr renders the shape's own expression. Nested named shapes are
// rendered by name.
func (s *Shape) Expr() string {
	var b strings.Builder
	s.write(&b)
	return b.String()
}

func (s *Shape) write(b *strings.Builder) {
	switch s.Kind {
	case netbin.KindOption, netbin.KindSeq:
		fmt.Fprintf(b, "%s<%s>", s.Kind, s.Elem)
	case netbin.KindMap:
		fmt.Fprintf(b, "map<%s, %s>", s.Key, s.Elem)
	case netbin.KindTuple:
		if s.Hint == HintUUID {
			b.WriteString("uuid")
			return
		}
		if s.Elem != nil {
			fmt.Fprintf(b, "array<%s, %d>", s.Elem, s.Len)
			return
		}
		b.WriteString("tuple(")
		for i, f := range s.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Shape.String())
		}
		b.WriteString(")")
	case netbin.KindRecord:
		b.WriteString("record ")
		writeFields(b, s.Fields)
	case netbin.KindUnion:
		b.WriteString("union { ")
		for i, v := range s.Variants {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(v.Name)
			if v.Shape == nil {
				continue
			}
			switch {
			case v.Shape.Name == "" && v.Shape.Kind == netbin.KindRecord:
				b.WriteString(" ")
				writeFields(b, v.Shape.Fields)
			case v.Shape.Name == "" && v.Shape.Kind == netbin.KindTuple && v.Shape.Elem == nil && v.Shape.Hint == HintNone:
				b.WriteString(strings.TrimPrefix(v.Shape.Expr(), "tuple"))
			default:
				fmt.Fprintf(b, "(%s)", v.Shape)
			}
		}
		b.WriteString(" }")
	default:
		b.WriteString(s.Kind.String())
	}
}

func writeFields(b *strings.Builder, fields []Field) {
	if len(fields) == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteString("{ ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name + ": " + f.Shape.String())
	}
	b.WriteString(" }")
}

var primitives = map[string]netbin.Kind{
	"unit":   netbin.KindUnit,
	"bool":   netbin.KindBool,
	"u8":     netbin.KindU8,
	"u16":    netbin.KindU16,
	"u32":    netbin.KindU32,
	"u64":    netbin.KindU64,
	"i8":     netbin.KindI8,
	"i16":    netbin.KindI16,
	"i32":    netbin.KindI32,
	"i64":    netbin.KindI64,
	"f32":    netbin.KindF32,
	"f64":    netbin.KindF64,
	"char":   netbin.KindChar,
	"string": netbin.KindString,
	"bytes":  netbin.KindBytes,
}

// Prim returns the shape of a primitive kind.
func Prim(k netbin.Kind) *Shape {
	if !k.IsPrimitive() {
		panic("shape: " + k.String() + " is not a primitive kind")
	}
	return &Shape{Kind: k}
}

// UUID returns the 16-byte tuple shape whose values are UUID strings.
func UUID() *Shape {
	return &Shape{Kind: netbin.KindTuple, Hint: HintUUID, Elem: Prim(netbin.KindU8), Len: 16}
}

func reserved(name string) bool {
	if _, ok := primitives[name]; ok {
		return true
	}
	switch name {
	case "uuid", "option", "seq", "map", "tuple", "array", "record", "union", "type":
		return true
	}
	return false
}
