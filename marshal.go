package netbin

import (
	"bytes"

	intr "github.com/dadrian/netbin/internal"
)

// Marshal encodes v into a fresh byte slice.
func Marshal(v any) ([]byte, error) {
	buf := intr.GetBuffer()
	defer intr.PutBuffer(buf)
	if err := NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Append appends the encoding of v to dst. On failure dst is returned
// unchanged in length.
func Append(dst []byte, v any) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	if err := NewEncoder(buf).Encode(v); err != nil {
		return dst, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v. The value must account for every byte
// of data: anything left over fails with ErrTrailingBytes, even though
// the value itself decoded cleanly.
func Unmarshal(data []byte, v any) error {
	r := bytes.NewReader(data)
	dec := NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if r.Len() != 0 {
		err := newError(ErrTrailingBytes, dec.Offset(), "%d of %d bytes unconsumed", r.Len(), len(data))
		dec.log.Debug().Err(err).Int64("offset", dec.Offset()).Msg("netbin: decode left trailing bytes")
		return err
	}
	return nil
}
