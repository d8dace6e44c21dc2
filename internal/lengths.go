package internal

import "io"

// Length and count prefixes are a fixed 2-byte big-endian unsigned
// integer. There is no long form: aggregates above MaxLen cannot be
// represented.

const MaxLen = 1<<16 - 1

// CheckLen reports whether n fits in a length prefix.
func CheckLen(n int) bool { return n >= 0 && n <= MaxLen }

func WriteLen(w io.Writer, n int) error {
	return WriteU16(w, uint16(n))
}

func ReadLen(r io.Reader) (int, error) {
	n, err := ReadU16(r)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
