// Package netbin implements a compact, schema-driven binary wire format.
//
// The bytes carry no field names, type tags or variant names: only
// big-endian primitives, 2-byte length and count prefixes for strings,
// byte sequences, sequences and maps, a presence byte for optional
// values and a 1-byte index for tagged unions. Records and tuples are
// their fields in order. Both sides must therefore agree on the shape
// of a value; nothing can be decoded without one.
//
// Shapes reach the codec through the traversal protocol. Go values use
// their type as the shape (see Marshal, Unmarshal and the Union marker);
// types implementing Marshaler and Unmarshaler drive the Encoder and
// Decoder directly. Package shape provides a declarative alternative
// for values whose shape is only known at run time.
//
// Unmarshal works on a complete buffer and rejects trailing bytes. A
// Decoder works on a stream and stops after the requested value, so
// successive calls to Decode read successive values.
package netbin
