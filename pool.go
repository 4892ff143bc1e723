package xvsink

import (
	"fmt"
	"sync"
)

// Disposition reports what happened to a buffer when its last
// reference was released.
type Disposition int

const (
	// Held means other references remain and the buffer is still live.
	Held Disposition = iota
	// Pooled means the buffer went back to its pool for reuse.
	Pooled
	// Destroyed means the pool declined the buffer and its storage
	// was freed.
	Destroyed
)

func (d Disposition) String() string {
	switch d {
	case Held:
		return "held"
	case Pooled:
		return "pooled"
	case Destroyed:
		return "destroyed"
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

type poolState int

const (
	poolRunning poolState = iota
	poolInvalid
	poolClosed
)

// allocFunc provides backing storage for new buffers. The default
// allocates plain heap memory; the sink swaps in a shared-memory
// allocator when the display supports it.
type allocFunc func(size int) (backing, error)

func heapAlloc(size int) (backing, error) {
	return make(memBacking, size), nil
}

// Pool hands out frame buffers and recycles them across Render calls.
// Released buffers are kept only while they match the most recently
// acquired format; a resolution change drains the stale ones as they
// come back instead of recycling them at the wrong size.
type Pool struct {
	mu     sync.Mutex
	format Format
	alloc  allocFunc
	free   []*Buffer
	state  poolState
}

// NewPool creates a running pool. alloc may be nil, in which case
// buffers live on the heap.
func NewPool(alloc allocFunc) *Pool {
	if alloc == nil {
		alloc = heapAlloc
	}
	return &Pool{alloc: alloc}
}

// Acquire returns a buffer of the given format with one reference.
// Free buffers that no longer match the format are destroyed during
// the scan, since they can never be reused under the new negotiation.
// It fails with ErrPoolInvalid once the pool has been invalidated,
// which callers must treat differently from an allocation failure:
// the pool is stale, not broken, and renegotiation gets a fresh one.
func (p *Pool) Acquire(f Format) (*Buffer, error) {
	if !f.valid() {
		return nil, fmt.Errorf("xvsink: pool format %v: %w", f, ErrFormatUnsupported)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case poolInvalid:
		return nil, ErrPoolInvalid
	case poolClosed:
		return nil, ErrSinkClosed
	}
	p.format = f

	var match *Buffer
	kept := p.free[:0]
	for _, b := range p.free {
		switch {
		case match == nil && b.format == f:
			match = b
		case b.format != f:
			b.destroy()
		default:
			kept = append(kept, b)
		}
	}
	p.free = kept

	if match != nil {
		match.refs.Store(1)
		return match, nil
	}

	size := f.Pixel.FrameBytes(f.Width, f.Height)
	back, err := p.alloc(size)
	if err != nil {
		return nil, fmt.Errorf("xvsink: allocate %d byte frame: %w", size, err)
	}
	b := &Buffer{format: f, back: back, pool: p}
	b.refs.Store(1)
	return b, nil
}

// release takes a buffer whose last reference was dropped. It is
// recycled only while the pool is running and the buffer still
// matches the current format; otherwise it is destroyed.
func (p *Pool) release(b *Buffer) Disposition {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != poolRunning || b.format != p.format {
		b.destroy()
		return Destroyed
	}
	p.free = append(p.free, b)
	return Pooled
}

// Invalidate marks the pool stale. Free buffers are destroyed now;
// outstanding ones are destroyed as they come back. Acquire fails
// with ErrPoolInvalid from here on.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == poolRunning {
		p.state = poolInvalid
	}
	p.drainLocked()
}

// Clear destroys the pool for good, freeing all idle buffers.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = poolClosed
	p.drainLocked()
}

func (p *Pool) drainLocked() {
	for _, b := range p.free {
		b.destroy()
	}
	p.free = nil
}
