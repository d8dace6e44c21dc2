package netbin

import (
	"reflect"

	intr "github.com/dadrian/netbin/internal"
)

// Marshaler is implemented by values that describe their own shape. A
// MarshalWire implementation visits its parts on e in the order the
// wire grammar requires: BeginRecord(n) then n field writes, BeginSeq(n)
// then n element writes, WriteVariant(i) then the payload, and so on.
//
// A pointer is always an option, so the method set consulted is that of
// the pointed-to type: pass values, not pointers, to Encode and Marshal.
type Marshaler interface {
	MarshalWire(e *Encoder) error
}

// Unmarshaler is the decoding counterpart of Marshaler. UnmarshalWire
// must make the same visits, in the same order, that MarshalWire made.
type Unmarshaler interface {
	UnmarshalWire(d *Decoder) error
}

// Union marks a struct as a tagged union. Every other exported field of
// the struct is a variant and must be a pointer; exactly one is non-nil
// when encoding. The variant index is the field's position among the
// variants, so reordering fields changes the wire format.
//
//	type Event struct {
//		netbin.Union
//		Unit    *netbin.Unit
//		Newtype *uint32
//		Tuple   *[2]uint8
//		Struct  *struct{ A uint32 }
//	}
type Union struct{}

var (
	unionType       = reflect.TypeFor[Union]()
	charType        = reflect.TypeFor[Char]()
	marshalerType   = reflect.TypeFor[Marshaler]()
	unmarshalerType = reflect.TypeFor[Unmarshaler]()
)

// variants returns the variant fields of a union struct, or nil when t
// does not embed Union.
func variants(t reflect.Type) []intr.Field {
	if t.Kind() != reflect.Struct {
		return nil
	}
	marked := false
	out := []intr.Field{}
	for _, f := range intr.Fields(t) {
		if f.Anonymous && f.Type == unionType {
			marked = true
			continue
		}
		out = append(out, f)
	}
	if !marked {
		return nil
	}
	return out
}
