package internal

import "io"

// CountingWriter tracks how many bytes have reached W.
type CountingWriter struct {
	W io.Writer
	N int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.N += int64(n)
	return n, err
}

// CountingReader tracks how many bytes have been consumed from R.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}

// Remaining reports how many unread bytes R holds, when R can tell
// (bytes.Reader, bytes.Buffer, strings.Reader). Live streams report false.
func (c *CountingReader) Remaining() (int, bool) {
	if l, ok := c.R.(interface{ Len() int }); ok {
		return l.Len(), true
	}
	return 0, false
}
