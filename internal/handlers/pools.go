package handlers

import (
	"bytes"
	"sync"
)

// jsonBufferPool provides reusable byte buffers for JSON decoding.
var jsonBufferPool = sync.Pool{
	New: func() any {
		// Typical batch request size
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

func getBuffer() *bytes.Buffer {
	return jsonBufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	buf.Reset()
	jsonBufferPool.Put(buf)
}

// responseBufferPool provides reusable byte buffers for JSON encoding.
// Responses carry sanitized HTML, so they start larger.
var responseBufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 32768))
	},
}

func getResponseBuffer() *bytes.Buffer {
	return responseBufferPool.Get().(*bytes.Buffer)
}

func putResponseBuffer(buf *bytes.Buffer) {
	buf.Reset()
	responseBufferPool.Put(buf)
}
