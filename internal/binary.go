package internal

import (
	"encoding/binary"
	"io"
)

// Every fixed-width value travels in network byte order.
var be = binary.BigEndian

func WriteU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}
func WriteU16(w io.Writer, v uint16) error {
	var b [2]byte
	be.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}
func WriteU32(w io.Writer, v uint32) error {
	var b [4]byte
	be.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}
func WriteU64(w io.Writer, v uint64) error {
	var b [8]byte
	be.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func ReadU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if err := ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
func ReadU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if err := ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return be.Uint16(b[:]), nil
}
func ReadU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if err := ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return be.Uint32(b[:]), nil
}
func ReadU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if err := ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return be.Uint64(b[:]), nil
}

// maxEmptyReads bounds how many (0, nil) reads in a row ReadFull
// tolerates before reporting io.ErrNoProgress.
const maxEmptyReads = 100

// ReadFull fills buf from r. A stream that ends part way through buf
// reports io.ErrUnexpectedEOF; one that ends before the first byte
// reports io.EOF.
func ReadFull(r io.Reader, buf []byte) error {
	var off, empty int
	for off < len(buf) {
		n, err := r.Read(buf[off:])
		off += n
		if err != nil {
			if off == len(buf) {
				return nil
			}
			if err == io.EOF && off > 0 {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if n > 0 {
			empty = 0
			continue
		}
		if empty++; empty >= maxEmptyReads {
			return io.ErrNoProgress
		}
	}
	return nil
}
