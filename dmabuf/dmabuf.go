// Package dmabuf tracks video frames shared with the display server
// by handle instead of by copy. The exchanger converts a dma-buf file
// descriptor into a server-visible token; the table keeps every
// shared frame alive until the server reports it is done with it.
package dmabuf

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// MaxPlanes is the most planes a shared frame may carry. Planar YUV
// formats use up to three.
const MaxPlanes = 3

// TableCapacity bounds how many frames may be in flight with the
// display server at once. Flow control upstream keeps the real count
// far below this, so hitting the bound is an internal defect.
const TableCapacity = 10

var (
	// ErrTableFull is returned when the in-flight table is at
	// capacity. It indicates broken flow control, not a runtime
	// condition to retry.
	ErrTableFull = errors.New("dmabuf: in-flight buffer table full")

	// ErrNotTracked is returned when releasing a token tuple the
	// table does not hold.
	ErrNotTracked = errors.New("dmabuf: buffer not tracked")
)

// Tokens identifies one shared frame by its per-plane server tokens.
// Unused plane slots stay zero.
type Tokens [MaxPlanes]uint32

// Handles carries the per-plane local handles paired with a Tokens
// tuple by the exchanger.
type Handles [MaxPlanes]uint32

// Exchanger converts buffer file descriptors to display-server
// tokens and back. The GEM implementation lives in gem_linux.go;
// tests use a fake.
type Exchanger interface {
	// Export turns a dma-buf fd into a (local handle, server token)
	// pair the display server can import by token.
	Export(fd int) (handle, token uint32, err error)
	// Release drops the local handle obtained from Export.
	Release(handle uint32) error
	// Close releases the underlying device.
	Close() error
}

type record struct {
	tokens  Tokens
	handles Handles
	refs    int
	done    func()
}

// Table is the in-flight frame registry. A frame is added before its
// draw call is issued and removed when the server posts its return
// message; teardown waits for the table to drain before reclaiming
// what is left.
type Table struct {
	mu   sync.Mutex
	cond *sync.Cond
	recs []*record
}

// NewTable returns an empty in-flight table.
func NewTable() *Table {
	t := &Table{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Add registers a frame about to be handed to the server. done runs
// once when the frame's last reference leaves the table. Registering
// tokens already present bumps the existing record's reference count
// instead of consuming a slot; the original done callback stands.
func (t *Table) Add(tokens Tokens, handles Handles, done func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range t.recs {
		if r.tokens == tokens {
			r.refs++
			return nil
		}
	}
	if len(t.recs) >= TableCapacity {
		return ErrTableFull
	}
	t.recs = append(t.recs, &record{
		tokens: tokens, handles: handles, refs: 1, done: done,
	})
	return nil
}

// Remove drops one reference to the frame identified by tokens. The
// record leaves the table only at reference count zero, at which
// point its done callback runs.
func (t *Table) Remove(tokens Tokens) error {
	t.mu.Lock()
	var done func()
	err := ErrNotTracked
	for i, r := range t.recs {
		if r.tokens != tokens {
			continue
		}
		r.refs--
		if r.refs == 0 {
			done = r.done
			t.recs = append(t.recs[:i], t.recs[i+1:]...)
			t.cond.Broadcast()
		}
		err = nil
		break
	}
	t.mu.Unlock()

	if done != nil {
		done()
	}
	return err
}

// Len reports how many frames are currently in flight.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.recs)
}

// WaitIdle blocks until the table is empty or the timeout passes.
// It reports whether the table drained in time.
func (t *Table) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer timer.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.recs) > 0 {
		if !time.Now().Before(deadline) {
			return false
		}
		t.cond.Wait()
	}
	return true
}

// Drain force-reclaims every remaining record, running the done
// callbacks. Used on teardown after WaitIdle times out.
func (t *Table) Drain() int {
	t.mu.Lock()
	recs := t.recs
	t.recs = nil
	t.cond.Broadcast()
	t.mu.Unlock()

	for _, r := range recs {
		if r.done != nil {
			r.done()
		}
	}
	return len(recs)
}

// String shows table occupancy, for log lines.
func (t *Table) String() string {
	return fmt.Sprintf("dmabuf.Table(%d/%d)", t.Len(), TableCapacity)
}
