package netbin

import (
	"errors"
	"fmt"
	"io"
)

// ErrorKind classifies encoding/decoding errors. The set is closed.
//
// An ErrorKind is itself an error, so callers can match a class of
// failure with errors.Is(err, netbin.ErrTrailingBytes).
type ErrorKind int

const (
	ErrMessage ErrorKind = iota + 1
	ErrIO
	ErrUnexpectedEOF
	ErrLengthNotKnown
	ErrInvalidString
	ErrInvalidChar
	ErrTrailingBytes
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMessage:
		return "message"
	case ErrIO:
		return "i/o error"
	case ErrUnexpectedEOF:
		return "unexpected end of input"
	case ErrLengthNotKnown:
		return "length not known"
	case ErrInvalidString:
		return "invalid string"
	case ErrInvalidChar:
		return "invalid char"
	case ErrTrailingBytes:
		return "trailing bytes"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) Error() string { return "netbin: " + k.String() }

// Error carries offset and classification for better diagnostics.
type Error struct {
	Offset int64
	Kind   ErrorKind
	Detail string
	Err    error // underlying sink/source failure, for ErrIO
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Detail
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Kind == ErrMessage {
		if e.Offset > 0 {
			return fmt.Sprintf("netbin: at %d: %s", e.Offset, msg)
		}
		return "netbin: " + msg
	}
	if msg == "" {
		if e.Offset > 0 {
			return fmt.Sprintf("netbin: %s at %d", e.Kind.String(), e.Offset)
		}
		return "netbin: " + e.Kind.String()
	}
	if e.Offset > 0 {
		return fmt.Sprintf("netbin: %s at %d: %s", e.Kind.String(), e.Offset, msg)
	}
	return fmt.Sprintf("netbin: %s: %s", e.Kind.String(), msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches an ErrorKind target by class and an *Error target by
// class and detail.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case ErrorKind:
		return e.Kind == t
	case *Error:
		return t != nil && e.Kind == t.Kind && e.Detail == t.Detail
	}
	return false
}

// Errorf returns a custom-message error. Shape layers use it to report
// failures that sit outside the wire grammar, such as an unknown
// variant index.
func Errorf(format string, args ...any) error {
	return &Error{Kind: ErrMessage, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the class of err, or 0 when err did not come from the
// codec.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k ErrorKind
	if errors.As(err, &k) {
		return k
	}
	return 0
}

// Named failures for operations the format deliberately omits: the
// bytes carry neither type tags nor names, so nothing can be decoded
// without a shape supplied by the caller.
var (
	ErrShapeFree  = &Error{Kind: ErrMessage, Detail: "unsupported operation: shape-free decoding"}
	ErrIdentifier = &Error{Kind: ErrMessage, Detail: "unsupported operation: field and variant names are not on the wire"}
)

// ioError classifies a sink/source failure at offset. End of stream
// while reading is always ErrUnexpectedEOF.
func ioError(err error, offset int64, what string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Offset: offset, Kind: ErrUnexpectedEOF, Detail: what}
	}
	return &Error{Offset: offset, Kind: ErrIO, Detail: what, Err: err}
}

func newError(kind ErrorKind, offset int64, format string, args ...any) *Error {
	return &Error{Offset: offset, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
