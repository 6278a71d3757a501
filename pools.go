package gql

import (
	"bytes"
	"sync"
)

var (
	// Small buffers for typical variable sets (1KB)
	smallBufferPool = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 1024))
		},
	}

	// Medium buffers for larger variable sets (4KB)
	mediumBufferPool = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 4096))
		},
	}

	// Large buffers for bulk inputs (16KB)
	largeBufferPool = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 16384))
		},
	}
)

// getBuffer returns an empty buffer sized for estimatedSize bytes.
func getBuffer(estimatedSize int) *bytes.Buffer {
	var buf *bytes.Buffer
	switch {
	case estimatedSize <= 1024:
		buf = smallBufferPool.Get().(*bytes.Buffer)
	case estimatedSize <= 4096:
		buf = mediumBufferPool.Get().(*bytes.Buffer)
	default:
		buf = largeBufferPool.Get().(*bytes.Buffer)
	}
	buf.Reset()
	return buf
}

// putBuffer returns a buffer to the pool matching its capacity.
func putBuffer(buf *bytes.Buffer) {
	buf.Reset()
	capacity := buf.Cap()

	switch {
	case capacity <= 1024:
		smallBufferPool.Put(buf)
	case capacity <= 4096:
		mediumBufferPool.Put(buf)
	default:
		largeBufferPool.Put(buf)
	}
}
