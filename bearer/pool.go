package bearer

import (
	"context"
	"sync/atomic"
)

// Pool is a fixed set of scratch buffers for outbound notifications.
// Get blocks while every buffer is in use.
type Pool struct {
	size int
	free chan []byte

	gets int64
	puts int64
}

// NewPool allocates count buffers of size bytes.
func NewPool(size, count int) *Pool {
	p := &Pool{
		size: size,
		free: make(chan []byte, count),
	}
	for i := 0; i < count; i++ {
		p.free <- make([]byte, 0, size)
	}
	return p
}

// Get takes a buffer of zero length and capacity Size.
func (p *Pool) Get(ctx context.Context) ([]byte, error) {
	select {
	case b := <-p.free:
		atomic.AddInt64(&p.gets, 1)
		return b[:0], nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a buffer taken with Get.
func (p *Pool) Put(b []byte) {
	if cap(b) != p.size {
		panic("bearer: foreign buffer returned to pool")
	}

	select {
	case p.free <- b[:0]:
		atomic.AddInt64(&p.puts, 1)
	default:
		panic("bearer: buffer returned to pool twice")
	}
}

// Size returns the capacity of each buffer.
func (p *Pool) Size() int {
	return p.size
}

// InUse returns how many buffers are currently taken.
func (p *Pool) InUse() int {
	return int(atomic.LoadInt64(&p.gets) - atomic.LoadInt64(&p.puts))
}

// Stats returns the number of Get and Put calls so far.
func (p *Pool) Stats() (gets, puts int64) {
	return atomic.LoadInt64(&p.gets), atomic.LoadInt64(&p.puts)
}
