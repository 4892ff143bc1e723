package xvsink

import (
	"sync/atomic"
)

// backing is the storage behind a Buffer. The shared-memory path and
// the plain heap path both satisfy it.
type backing interface {
	Data() []byte
	Close() error
}

// memBacking is ordinary heap storage, used when the display has no
// MIT-SHM support and in tests.
type memBacking []byte

func (m memBacking) Data() []byte { return m }
func (m memBacking) Close() error { return nil }

// shmSeg is the extra surface a shared-memory backing exposes so the
// presenter can hand the segment to the server without copying.
type shmSeg interface {
	ID() int
	XSeg() uint32
}

// Buffer is one video frame owned by a Pool. Callers fill Data and
// hand the buffer to Sink.Render; Release returns it to its pool or
// destroys it when the pool no longer wants it.
type Buffer struct {
	format   Format
	back     backing
	pool     *Pool
	refs     atomic.Int32
	planeFDs []int
}

// SetPlaneFDs attaches the dma-buf descriptors backing this frame's
// planes. A sink configured with an exchanger shares such frames with
// the display server by handle instead of copying them.
func (b *Buffer) SetPlaneFDs(fds ...int) { b.planeFDs = fds }

// PlaneFDs returns the dma-buf descriptors set on this frame, nil for
// ordinary memory frames.
func (b *Buffer) PlaneFDs() []int { return b.planeFDs }

// Format returns the negotiated frame format this buffer was sized for.
func (b *Buffer) Format() Format { return b.format }

// Data is the frame payload, Format().Pixel laid out at
// Format().Width x Format().Height.
func (b *Buffer) Data() []byte { return b.back.Data() }

// Ref takes an additional reference. Every Ref is paired with a
// Release.
func (b *Buffer) Ref() *Buffer {
	b.refs.Add(1)
	return b
}

// Release drops a reference. When the last reference goes, the buffer
// is offered back to its pool, which reports whether it was recycled
// or destroyed.
func (b *Buffer) Release() Disposition {
	n := b.refs.Add(-1)
	if n > 0 {
		return Held
	}
	if n < 0 {
		panic("xvsink: Buffer released more times than referenced")
	}
	return b.pool.release(b)
}

// destroy frees the backing storage. Pool-internal.
func (b *Buffer) destroy() {
	if b.back != nil {
		b.back.Close()
		b.back = nil
	}
}
