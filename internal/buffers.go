package internal

import (
	"bytes"
	"sync"
)

// Buffers that grew past this are dropped instead of pooled so one
// oversized value does not pin memory for the life of the process.
const maxPooledCap = 64 << 10

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

func GetBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

func PutBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxPooledCap {
		return
	}
	bufPool.Put(b)
}
