package pool

import (
	"bytes"
	"sync"
)

// DefaultMaxRetained caps the capacity of buffers returned to the pool so one
// huge request body does not pin its memory forever.
const DefaultMaxRetained = 4 << 20

// BufferPool provides reusable buffers for encoding request bodies.
type BufferPool struct {
	pool        sync.Pool
	maxRetained int
}

// NewBufferPool creates a pool whose new buffers start with initialSize bytes
// of capacity.
func NewBufferPool(initialSize int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
		maxRetained: DefaultMaxRetained,
	}
}

// Get retrieves an empty buffer from the pool or creates a new one.
func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

// Put returns a buffer to the pool after clearing its contents. Oversized
// buffers are dropped.
func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > p.maxRetained {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}
