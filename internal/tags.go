package internal

import (
	"reflect"
	"strings"
	"sync"
)

// Tag is the parsed form of a `wire:"..."` struct tag.
type Tag struct {
	Skip bool // `wire:"-"`
	Char bool // `wire:",char"`: an int32 field travels as a character
}

// ParseWireTag parses `wire:"-"` or `wire:"[name][,char]"`. The name part
// is accepted for readability only; it never reaches the wire.
func ParseWireTag(f reflect.StructField) Tag {
	tag, ok := f.Tag.Lookup("wire")
	if !ok {
		return Tag{}
	}
	if tag == "-" {
		return Tag{Skip: true}
	}
	var t Tag
	parts := strings.Split(tag, ",")
	for _, p := range parts[1:] {
		switch strings.TrimSpace(p) {
		case "char":
			t.Char = true
		}
	}
	return t
}

// Field is one positional member of a record.
type Field struct {
	Index     int
	Name      string
	Type      reflect.Type
	Char      bool
	Anonymous bool
}

var fieldCache sync.Map // reflect.Type -> []Field

// Fields returns the exported, non-skipped fields of struct type t in
// declaration order.
func Fields(t reflect.Type) []Field {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]Field)
	}
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := ParseWireTag(sf)
		if tag.Skip {
			continue
		}
		fields = append(fields, Field{
			Index:     i,
			Name:      sf.Name,
			Type:      sf.Type,
			Char:      tag.Char,
			Anonymous: sf.Anonymous,
		})
	}
	f, _ := fieldCache.LoadOrStore(t, fields)
	return f.([]Field)
}
