package netbin

import (
	"bytes"
	"cmp"
	"reflect"
	"slices"

	intr "github.com/dadrian/netbin/internal"
)

// The native shape layer: a Go type is the shape of its values.
//
//	bool, intN, uintN, floatN  fixed-width primitives (int and uint travel as 64-bit)
//	Char, `wire:",char"` int32 4-byte code point
//	string, []byte             length-prefixed
//	*T                         optional
//	[]T                        counted sequence
//	[N]T                       tuple
//	map[K]V                    counted map, entries in key order
//	struct                     record of exported fields; unit when it has none
//	struct embedding Union     tagged union
//	chan T, iter.Seq           rejected: no count before traversal

// preallocCap bounds up-front allocation for decoded sequences and maps;
// a declared count is only trusted as far as the bytes that back it.
const preallocCap = 1024

func (e *Encoder) encodeValue(rv reflect.Value, asChar bool) error {
	if !rv.IsValid() {
		return newError(ErrMessage, e.w.N, "cannot encode untyped nil")
	}
	t := rv.Type()
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		if t.Implements(marshalerType) {
			return rv.Interface().(Marshaler).MarshalWire(e)
		}
		if reflect.PointerTo(t).Implements(marshalerType) {
			if !rv.CanAddr() {
				p := reflect.New(t)
				p.Elem().Set(rv)
				rv = p.Elem()
			}
			return rv.Addr().Interface().(Marshaler).MarshalWire(e)
		}
	}
	switch t.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return newError(ErrMessage, e.w.N, "cannot encode nil %s", t)
		}
		return e.encodeValue(rv.Elem(), asChar)
	case reflect.Pointer:
		if rv.IsNil() {
			return e.WriteOption(false)
		}
		if err := e.WriteOption(true); err != nil {
			return err
		}
		return e.encodeValue(rv.Elem(), asChar)
	case reflect.Bool:
		return e.WriteBool(rv.Bool())
	case reflect.Uint8:
		return e.WriteU8(uint8(rv.Uint()))
	case reflect.Uint16:
		return e.WriteU16(uint16(rv.Uint()))
	case reflect.Uint32:
		return e.WriteU32(uint32(rv.Uint()))
	case reflect.Uint64, reflect.Uint:
		return e.WriteU64(rv.Uint())
	case reflect.Int8:
		return e.WriteI8(int8(rv.Int()))
	case reflect.Int16:
		return e.WriteI16(int16(rv.Int()))
	case reflect.Int32:
		if asChar || t == charType {
			return e.WriteChar(rune(rv.Int()))
		}
		return e.WriteI32(int32(rv.Int()))
	case reflect.Int64, reflect.Int:
		return e.WriteI64(rv.Int())
	case reflect.Float32:
		return e.WriteF32(float32(rv.Float()))
	case reflect.Float64:
		return e.WriteF64(rv.Float())
	case reflect.String:
		return e.WriteString(rv.String())
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return e.WriteBytes(rv.Bytes())
		}
		if err := e.BeginSeq(rv.Len()); err != nil {
			return err
		}
		for i := 0; i < rv.Len(); i++ {
			if err := e.encodeValue(rv.Index(i), asChar); err != nil {
				return err
			}
		}
		return nil
	case reflect.Array:
		if err := e.BeginTuple(rv.Len()); err != nil {
			return err
		}
		for i := 0; i < rv.Len(); i++ {
			if err := e.encodeValue(rv.Index(i), asChar); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if err := e.BeginMap(rv.Len()); err != nil {
			return err
		}
		for _, ent := range sortedEntries(rv) {
			if err := e.encodeValue(ent.k, false); err != nil {
				return err
			}
			if err := e.encodeValue(ent.v, asChar); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		return e.encodeStruct(rv)
	case reflect.Chan:
		return e.BeginSeq(UnknownLength)
	case reflect.Func:
		switch yieldArity(t) {
		case 1:
			return e.BeginSeq(UnknownLength)
		case 2:
			return e.BeginMap(UnknownLength)
		}
	}
	return newError(ErrMessage, e.w.N, "unsupported type %s", t)
}

func (e *Encoder) encodeStruct(rv reflect.Value) error {
	t := rv.Type()
	if vs := variants(t); vs != nil {
		return e.encodeUnion(rv, vs)
	}
	fields := intr.Fields(t)
	if err := e.BeginRecord(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := e.encodeValue(rv.Field(f.Index), f.Char); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeUnion(rv reflect.Value, vs []intr.Field) error {
	t := rv.Type()
	chosen := -1
	for i, f := range vs {
		fv := rv.Field(f.Index)
		if fv.Kind() != reflect.Pointer {
			return newError(ErrMessage, e.w.N, "union %s: variant %s must be a pointer", t, f.Name)
		}
		if fv.IsNil() {
			continue
		}
		if chosen >= 0 {
			return newError(ErrMessage, e.w.N, "union %s: variants %s and %s are both set", t, vs[chosen].Name, f.Name)
		}
		chosen = i
	}
	if chosen < 0 {
		return newError(ErrMessage, e.w.N, "union %s: no variant set", t)
	}
	if err := e.WriteVariant(chosen); err != nil {
		return err
	}
	f := vs[chosen]
	return e.encodeValue(rv.Field(f.Index).Elem(), f.Char)
}

func (d *Decoder) decodeValue(rv reflect.Value, asChar bool) error {
	t := rv.Type()
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		if reflect.PointerTo(t).Implements(unmarshalerType) {
			return rv.Addr().Interface().(Unmarshaler).UnmarshalWire(d)
		}
	}
	switch t.Kind() {
	case reflect.Interface:
		return d.DecodeAny()
	case reflect.Pointer:
		present, err := d.ReadOption()
		if err != nil {
			return err
		}
		if !present {
			rv.Set(reflect.Zero(t))
			return nil
		}
		if rv.IsNil() {
			rv.Set(reflect.New(t.Elem()))
		}
		return d.decodeValue(rv.Elem(), asChar)
	case reflect.Bool:
		v, err := d.ReadBool()
		if err != nil {
			return err
		}
		rv.SetBool(v)
	case reflect.Uint8:
		v, err := d.ReadU8()
		if err != nil {
			return err
		}
		rv.SetUint(uint64(v))
	case reflect.Uint16:
		v, err := d.ReadU16()
		if err != nil {
			return err
		}
		rv.SetUint(uint64(v))
	case reflect.Uint32:
		v, err := d.ReadU32()
		if err != nil {
			return err
		}
		rv.SetUint(uint64(v))
	case reflect.Uint64, reflect.Uint:
		v, err := d.ReadU64()
		if err != nil {
			return err
		}
		if rv.OverflowUint(v) {
			return newError(ErrMessage, d.r.N, "%d overflows %s", v, t)
		}
		rv.SetUint(v)
	case reflect.Int8:
		v, err := d.ReadI8()
		if err != nil {
			return err
		}
		rv.SetInt(int64(v))
	case reflect.Int16:
		v, err := d.ReadI16()
		if err != nil {
			return err
		}
		rv.SetInt(int64(v))
	case reflect.Int32:
		if asChar || t == charType {
			v, err := d.ReadChar()
			if err != nil {
				return err
			}
			rv.SetInt(int64(v))
			return nil
		}
		v, err := d.ReadI32()
		if err != nil {
			return err
		}
		rv.SetInt(int64(v))
	case reflect.Int64, reflect.Int:
		v, err := d.ReadI64()
		if err != nil {
			return err
		}
		if rv.OverflowInt(v) {
			return newError(ErrMessage, d.r.N, "%d overflows %s", v, t)
		}
		rv.SetInt(v)
	case reflect.Float32:
		v, err := d.ReadF32()
		if err != nil {
			return err
		}
		rv.SetFloat(float64(v))
	case reflect.Float64:
		v, err := d.ReadF64()
		if err != nil {
			return err
		}
		rv.SetFloat(v)
	case reflect.String:
		v, err := d.ReadString()
		if err != nil {
			return err
		}
		rv.SetString(v)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			v, err := d.ReadBytes()
			if err != nil {
				return err
			}
			rv.SetBytes(v)
			return nil
		}
		a, err := d.BeginSeq()
		if err != nil {
			return err
		}
		s := reflect.MakeSlice(t, 0, min(a.Len(), preallocCap))
		for a.Next() {
			s = reflect.Append(s, reflect.Zero(t.Elem()))
			if err := d.decodeValue(s.Index(s.Len()-1), asChar); err != nil {
				return err
			}
		}
		rv.Set(s)
	case reflect.Array:
		a := d.BeginTuple(rv.Len())
		for i := 0; a.Next(); i++ {
			if err := d.decodeValue(rv.Index(i), asChar); err != nil {
				return err
			}
		}
	case reflect.Map:
		a, err := d.BeginMap()
		if err != nil {
			return err
		}
		m := reflect.MakeMapWithSize(t, min(a.Len(), preallocCap))
		for a.Next() {
			k := reflect.New(t.Key()).Elem()
			if err := d.decodeValue(k, false); err != nil {
				return err
			}
			v := reflect.New(t.Elem()).Elem()
			if err := d.decodeValue(v, asChar); err != nil {
				return err
			}
			m.SetMapIndex(k, v)
		}
		rv.Set(m)
	case reflect.Struct:
		return d.decodeStruct(rv)
	default:
		return newError(ErrMessage, d.r.N, "cannot decode into %s", t)
	}
	return nil
}

func (d *Decoder) decodeStruct(rv reflect.Value) error {
	t := rv.Type()
	if vs := variants(t); vs != nil {
		return d.decodeUnion(rv, vs)
	}
	fields := intr.Fields(t)
	a := d.BeginRecord(len(fields))
	for i := 0; a.Next(); i++ {
		f := fields[i]
		if err := d.decodeValue(rv.Field(f.Index), f.Char); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) decodeUnion(rv reflect.Value, vs []intr.Field) error {
	t := rv.Type()
	tag, err := d.ReadVariant()
	if err != nil {
		return err
	}
	if int(tag) >= len(vs) {
		return newError(ErrMessage, d.r.N, "union %s: unknown variant index %d (%d variants)", t, tag, len(vs))
	}
	for i, f := range vs {
		fv := rv.Field(f.Index)
		if fv.Kind() != reflect.Pointer {
			return newError(ErrMessage, d.r.N, "union %s: variant %s must be a pointer", t, f.Name)
		}
		if i != int(tag) {
			fv.Set(reflect.Zero(f.Type))
		}
	}
	f := vs[tag]
	p := reflect.New(f.Type.Elem())
	if err := d.decodeValue(p.Elem(), f.Char); err != nil {
		return err
	}
	rv.Field(f.Index).Set(p)
	return nil
}

// yieldArity recognizes the iter.Seq and iter.Seq2 function shapes,
// returning 1 or 2, or 0 for any other function type.
func yieldArity(t reflect.Type) int {
	if t.NumIn() != 1 || t.NumOut() != 0 {
		return 0
	}
	yield := t.In(0)
	if yield.Kind() != reflect.Func || yield.NumOut() != 1 || yield.Out(0).Kind() != reflect.Bool {
		return 0
	}
	if n := yield.NumIn(); n == 1 || n == 2 {
		return n
	}
	return 0
}

type mapEntry struct{ k, v reflect.Value }

// sortedEntries orders map entries by key so the same map always
// produces the same bytes. Keys that compare equal (NaN) fall back to
// the encoding of their values.
func sortedEntries(m reflect.Value) []mapEntry {
	entries := make([]mapEntry, 0, m.Len())
	for it := m.MapRange(); it.Next(); {
		entries = append(entries, mapEntry{it.Key(), it.Value()})
	}
	slices.SortFunc(entries, func(a, b mapEntry) int {
		if c := compareKeys(a.k, b.k); c != 0 {
			return c
		}
		return bytes.Compare(keyBytes(a.v), keyBytes(b.v))
	})
	return entries
}

func compareKeys(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.Bool:
		switch {
		case a.Bool() == b.Bool():
			return 0
		case !a.Bool():
			return -1
		default:
			return 1
		}
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if c := compareKeys(a.Index(i), b.Index(i)); c != 0 {
				return c
			}
		}
		return 0
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if c := compareKeys(a.Field(i), b.Field(i)); c != 0 {
				return c
			}
		}
		return 0
	}
	// Pointers, interfaces and anything else order by their encoding.
	return bytes.Compare(keyBytes(a), keyBytes(b))
}

func keyBytes(v reflect.Value) []byte {
	var buf bytes.Buffer
	_ = NewEncoder(&buf).encodeValue(v, false)
	return buf.Bytes()
}
