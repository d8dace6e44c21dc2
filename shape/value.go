package shape

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dadrian/netbin"
)

// maxDepth bounds nesting so a shape that refers to itself without
// consuming input cannot exhaust the stack.
const maxDepth = 1000

// PathError records where in a value a failure happened.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + " (at " + e.Path + ")"
}

func (e *PathError) Unwrap() error { return e.Err }

// at prefixes err's path with seg.
func at(err error, seg string) error {
	var pe *PathError
	if errors.As(err, &pe) {
		pe.Path = seg + pe.Path
		return pe
	}
	return &PathError{Path: seg, Err: err}
}

func mismatch(s *Shape, v any) error {
	return netbin.Errorf("cannot encode %T as %s", v, s)
}

// Value pairs a dynamic Go value with its shape so it can be passed
// wherever netbin accepts a Marshaler or Unmarshaler.
type Value struct {
	Shape *Shape
	V     any
}

func (v Value) MarshalWire(e *netbin.Encoder) error { return Encode(e, v.Shape, v.V) }

func (v *Value) UnmarshalWire(d *netbin.Decoder) error {
	out, err := Decode(d, v.Shape)
	if err != nil {
		return err
	}
	v.V = out
	return nil
}

// Encode writes v through e as a value of shape s.
func Encode(e *netbin.Encoder, s *Shape, v any) error {
	if s == nil {
		return netbin.Errorf("shape: nil shape")
	}
	return encode(e, s, v, 0)
}

// Marshal encodes v as a value of shape s into a fresh byte slice.
func Marshal(s *Shape, v any) ([]byte, error) {
	return netbin.Marshal(Value{Shape: s, V: v})
}

// Unmarshal decodes data, which must hold exactly one value of shape s.
func Unmarshal(data []byte, s *Shape) (any, error) {
	v := Value{Shape: s}
	if err := netbin.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v.V, nil
}

func encode(e *netbin.Encoder, s *Shape, v any, depth int) error {
	if depth > maxDepth {
		return netbin.Errorf("shape: nesting exceeds %d levels", maxDepth)
	}
	depth++
	switch s.Kind {
	case netbin.KindUnit:
		if v != nil {
			return mismatch(s, v)
		}
		return e.WriteUnit()
	case netbin.KindBool:
		b, ok := v.(bool)
		if !ok {
			return mismatch(s, v)
		}
		return e.WriteBool(b)
	case netbin.KindU8, netbin.KindU16, netbin.KindU32, netbin.KindU64:
		u, err := toUint(s, v)
		if err != nil {
			return err
		}
		switch s.Kind {
		case netbin.KindU8:
			return e.WriteU8(uint8(u))
		case netbin.KindU16:
			return e.WriteU16(uint16(u))
		case netbin.KindU32:
			return e.WriteU32(uint32(u))
		}
		return e.WriteU64(u)
	case netbin.KindI8, netbin.KindI16, netbin.KindI32, netbin.KindI64:
		i, err := toInt(s, v)
		if err != nil {
			return err
		}
		switch s.Kind {
		case netbin.KindI8:
			return e.WriteI8(int8(i))
		case netbin.KindI16:
			return e.WriteI16(int16(i))
		case netbin.KindI32:
			return e.WriteI32(int32(i))
		}
		return e.WriteI64(i)
	case netbin.KindF32, netbin.KindF64:
		f, err := toFloat(s, v)
		if err != nil {
			return err
		}
		if s.Kind == netbin.KindF32 {
			f32 := float32(f)
			if math.IsInf(float64(f32), 0) && !math.IsInf(f, 0) {
				return rangeError(s, v)
			}
			return e.WriteF32(f32)
		}
		return e.WriteF64(f)
	case netbin.KindChar:
		switch c := v.(type) {
		case netbin.Char:
			return e.WriteChar(rune(c))
		case string:
			r, size := utf8.DecodeRuneInString(c)
			if size == 0 || size != len(c) || r == utf8.RuneError && size == 1 {
				return netbin.Errorf("char must be exactly one character, got %q", c)
			}
			return e.WriteChar(r)
		}
		return mismatch(s, v)
	case netbin.KindString:
		str, ok := v.(string)
		if !ok {
			return mismatch(s, v)
		}
		return e.WriteString(str)
	case netbin.KindBytes:
		switch b := v.(type) {
		case []byte:
			return e.WriteBytes(b)
		case string:
			raw, err := base64.StdEncoding.DecodeString(b)
			if err != nil {
				return netbin.Errorf("bytes given as string must be base64: %v", err)
			}
			return e.WriteBytes(raw)
		}
		return mismatch(s, v)
	case netbin.KindOption:
		if isNil(v) {
			return e.WriteOption(false)
		}
		if err := e.WriteOption(true); err != nil {
			return err
		}
		return encode(e, s.Elem, v, depth)
	case netbin.KindSeq:
		items, ok := asSlice(v)
		if !ok {
			return mismatch(s, v)
		}
		if err := e.BeginSeq(len(items)); err != nil {
			return err
		}
		for i, item := range items {
			if err := encode(e, s.Elem, item, depth); err != nil {
				return at(err, index(i))
			}
		}
		return nil
	case netbin.KindTuple:
		return encodeTuple(e, s, v, depth)
	case netbin.KindMap:
		return encodeMap(e, s, v, depth)
	case netbin.KindRecord:
		fields, ok := v.(map[string]any)
		if !ok {
			return mismatch(s, v)
		}
		for name := range fields {
			if !slices.ContainsFunc(s.Fields, func(f Field) bool { return f.Name == name }) {
				return netbin.Errorf("%s has no field %q", s, name)
			}
		}
		if err := e.BeginRecord(len(s.Fields)); err != nil {
			return err
		}
		for _, f := range s.Fields {
			fv, ok := fields[f.Name]
			if !ok {
				return netbin.Errorf("%s: missing field %q", s, f.Name)
			}
			if err := encode(e, f.Shape, fv, depth); err != nil {
				return at(err, "."+f.Name)
			}
		}
		return nil
	case netbin.KindUnion:
		return encodeUnion(e, s, v, depth)
	}
	return netbin.Errorf("shape: unknown kind %v", s.Kind)
}

func encodeTuple(e *netbin.Encoder, s *Shape, v any, depth int) error {
	if s.Hint == HintUUID {
		switch id := v.(type) {
		case string:
			u, err := uuid.Parse(id)
			if err != nil {
				return netbin.Errorf("invalid uuid %q: %v", id, err)
			}
			v = u[:]
		case uuid.UUID:
			v = id[:]
		}
	}
	items, ok := asSlice(v)
	if !ok {
		return mismatch(s, v)
	}
	n := s.Arity()
	if len(items) != n {
		return netbin.Errorf("%s needs %d elements, got %d", s, n, len(items))
	}
	if err := e.BeginTuple(n); err != nil {
		return err
	}
	for i, item := range items {
		if err := encode(e, s.At(i), item, depth); err != nil {
			return at(err, index(i))
		}
	}
	return nil
}

// encodeMap takes a map[string]any for string keys, or a list of
// [key, value] pairs for any key shape. Map entries are written in key
// order; pairs in the order given.
func encodeMap(e *netbin.Encoder, s *Shape, v any, depth int) error {
	var pairs [][2]any
	switch m := v.(type) {
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(m)) {
			pairs = append(pairs, [2]any{k, m[k]})
		}
	default:
		items, ok := asSlice(v)
		if !ok {
			return mismatch(s, v)
		}
		for i, item := range items {
			kv, ok := asSlice(item)
			if !ok || len(kv) != 2 {
				return at(netbin.Errorf("map entry must be a [key, value] pair"), index(i))
			}
			pairs = append(pairs, [2]any{kv[0], kv[1]})
		}
	}
	if err := e.BeginMap(len(pairs)); err != nil {
		return err
	}
	for _, kv := range pairs {
		if err := encode(e, s.Key, kv[0], depth); err != nil {
			return at(err, "{key}")
		}
		if err := encode(e, s.Elem, kv[1], depth); err != nil {
			return at(err, fmt.Sprintf("[%v]", kv[0]))
		}
	}
	return nil
}

func encodeUnion(e *netbin.Encoder, s *Shape, v any, depth int) error {
	var (
		name    string
		payload any
	)
	switch u := v.(type) {
	case string:
		name = u
	case map[string]any:
		if len(u) != 1 {
			return netbin.Errorf("%s value must name exactly one variant, got %d", s, len(u))
		}
		for k, p := range u {
			name, payload = k, p
		}
	default:
		return mismatch(s, v)
	}
	i, ok := s.Variant(name)
	if !ok {
		return netbin.Errorf("%s has no variant %q", s, name)
	}
	if err := e.WriteVariant(i); err != nil {
		return err
	}
	vs := s.Variants[i].Shape
	if vs == nil {
		if payload != nil {
			return netbin.Errorf("unit variant %s takes no payload", name)
		}
		return nil
	}
	if err := encode(e, vs, payload, depth); err != nil {
		return at(err, "."+name)
	}
	return nil
}

// Decode reads one value of shape s from d.
func Decode(d *netbin.Decoder, s *Shape) (any, error) {
	if s == nil {
		return nil, netbin.Errorf("shape: nil shape")
	}
	return decode(d, s, 0)
}

func decode(d *netbin.Decoder, s *Shape, depth int) (any, error) {
	if depth > maxDepth {
		return nil, netbin.Errorf("shape: nesting exceeds %d levels", maxDepth)
	}
	depth++
	switch s.Kind {
	case netbin.KindUnit:
		return nil, nil
	case netbin.KindBool:
		return d.ReadBool()
	case netbin.KindU8:
		v, err := d.ReadU8()
		return uint64(v), err
	case netbin.KindU16:
		v, err := d.ReadU16()
		return uint64(v), err
	case netbin.KindU32:
		v, err := d.ReadU32()
		return uint64(v), err
	case netbin.KindU64:
		return d.ReadU64()
	case netbin.KindI8:
		v, err := d.ReadI8()
		return int64(v), err
	case netbin.KindI16:
		v, err := d.ReadI16()
		return int64(v), err
	case netbin.KindI32:
		v, err := d.ReadI32()
		return int64(v), err
	case netbin.KindI64:
		return d.ReadI64()
	case netbin.KindF32:
		v, err := d.ReadF32()
		return float64(v), err
	case netbin.KindF64:
		return d.ReadF64()
	case netbin.KindChar:
		r, err := d.ReadChar()
		if err != nil {
			return nil, err
		}
		return string(r), nil
	case netbin.KindString:
		return d.ReadString()
	case netbin.KindBytes:
		return d.ReadBytes()
	case netbin.KindOption:
		present, err := d.ReadOption()
		if err != nil || !present {
			return nil, err
		}
		return decode(d, s.Elem, depth)
	case netbin.KindSeq:
		a, err := d.BeginSeq()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, min(a.Len(), 1024))
		for i := 0; a.Next(); i++ {
			v, err := decode(d, s.Elem, depth)
			if err != nil {
				return nil, at(err, index(i))
			}
			out = append(out, v)
		}
		return out, nil
	case netbin.KindTuple:
		a := d.BeginTuple(s.Arity())
		out := make([]any, 0, a.Len())
		for i := 0; a.Next(); i++ {
			v, err := decode(d, s.At(i), depth)
			if err != nil {
				return nil, at(err, index(i))
			}
			out = append(out, v)
		}
		if s.Hint == HintUUID {
			var id uuid.UUID
			for i, b := range out {
				id[i] = byte(b.(uint64))
			}
			return id.String(), nil
		}
		return out, nil
	case netbin.KindMap:
		return decodeMap(d, s, depth)
	case netbin.KindRecord:
		a := d.BeginRecord(len(s.Fields))
		out := make(map[string]any, len(s.Fields))
		for i := 0; a.Next(); i++ {
			f := s.Fields[i]
			v, err := decode(d, f.Shape, depth)
			if err != nil {
				return nil, at(err, "."+f.Name)
			}
			out[f.Name] = v
		}
		return out, nil
	case netbin.KindUnion:
		tag, err := d.ReadVariant()
		if err != nil {
			return nil, err
		}
		if int(tag) >= len(s.Variants) {
			return nil, netbin.Errorf("%s: unknown variant index %d (%d variants)", s, tag, len(s.Variants))
		}
		vr := s.Variants[tag]
		if vr.Shape == nil {
			return vr.Name, nil
		}
		payload, err := decode(d, vr.Shape, depth)
		if err != nil {
			return nil, at(err, "."+vr.Name)
		}
		return map[string]any{vr.Name: payload}, nil
	}
	return nil, netbin.Errorf("shape: unknown kind %v", s.Kind)
}

func decodeMap(d *netbin.Decoder, s *Shape, depth int) (any, error) {
	a, err := d.BeginMap()
	if err != nil {
		return nil, err
	}
	if s.Key.Kind == netbin.KindString {
		out := make(map[string]any, min(a.Len(), 1024))
		for a.Next() {
			k, err := d.ReadString()
			if err != nil {
				return nil, at(err, "{key}")
			}
			v, err := decode(d, s.Elem, depth)
			if err != nil {
				return nil, at(err, "["+strconv.Quote(k)+"]")
			}
			out[k] = v
		}
		return out, nil
	}
	out := make([]any, 0, min(a.Len(), 1024))
	for i := 0; a.Next(); i++ {
		k, err := decode(d, s.Key, depth)
		if err != nil {
			return nil, at(err, "{key}")
		}
		v, err := decode(d, s.Elem, depth)
		if err != nil {
			return nil, at(err, index(i))
		}
		out = append(out, []any{k, v})
	}
	return out, nil
}

func index(i int) string { return "[" + strconv.Itoa(i) + "]" }

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// asSlice accepts []any directly and any other slice or array through
// reflection.
func asSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toInt(s *Shape, v any) (int64, error) {
	var (
		i  int64
		ok = true
	)
	switch n := v.(type) {
	case int:
		i = int64(n)
	case int8:
		i = int64(n)
	case int16:
		i = int64(n)
	case int32:
		i = int64(n)
	case int64:
		i = n
	case uint8, uint16, uint32, uint64, uint:
		u := reflect.ValueOf(n).Uint()
		if u > math.MaxInt64 {
			return 0, rangeError(s, v)
		}
		i = int64(u)
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, rangeError(s, v)
		}
		i = int64(n)
	case json.Number:
		var err error
		if i, err = n.Int64(); err != nil {
			return 0, rangeError(s, v)
		}
	default:
		ok = false
	}
	if !ok {
		return 0, mismatch(s, v)
	}
	lo, hi := intRange(s.Kind)
	if i < lo || i > hi {
		return 0, rangeError(s, v)
	}
	return i, nil
}

func toUint(s *Shape, v any) (uint64, error) {
	var u uint64
	switch n := v.(type) {
	case uint:
		u = uint64(n)
	case uint8:
		u = uint64(n)
	case uint16:
		u = uint64(n)
	case uint32:
		u = uint64(n)
	case uint64:
		u = n
	case int, int8, int16, int32, int64:
		i := reflect.ValueOf(n).Int()
		if i < 0 {
			return 0, rangeError(s, v)
		}
		u = uint64(i)
	case float64:
		if n != math.Trunc(n) || n < 0 || n >= math.MaxUint64 {
			return 0, rangeError(s, v)
		}
		u = uint64(n)
	case json.Number:
		var err error
		if u, err = strconv.ParseUint(string(n), 10, 64); err != nil {
			return 0, rangeError(s, v)
		}
	default:
		return 0, mismatch(s, v)
	}
	if u > uintMax(s.Kind) {
		return 0, rangeError(s, v)
	}
	return u, nil
}

func toFloat(s *Shape, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, rangeError(s, v)
		}
		return f, nil
	case int, int8, int16, int32, int64:
		return float64(reflect.ValueOf(n).Int()), nil
	case uint, uint8, uint16, uint32, uint64:
		return float64(reflect.ValueOf(n).Uint()), nil
	}
	return 0, mismatch(s, v)
}

func rangeError(s *Shape, v any) error {
	return netbin.Errorf("%v out of range for %s", v, s)
}

func intRange(k netbin.Kind) (int64, int64) {
	switch k {
	case netbin.KindI8:
		return math.MinInt8, math.MaxInt8
	case netbin.KindI16:
		return math.MinInt16, math.MaxInt16
	case netbin.KindI32:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}

func uintMax(k netbin.Kind) uint64 {
	switch k {
	case netbin.KindU8:
		return math.MaxUint8
	case netbin.KindU16:
		return math.MaxUint16
	case netbin.KindU32:
		return math.MaxUint32
	}
	return math.MaxUint64
}
