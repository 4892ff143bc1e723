//go:build linux

// Package shmseg allocates System V shared memory segments for the
// MIT-SHM fast path. Segments are created private, attached into the
// process, and marked for removal as soon as the display server has
// attached its side, so the kernel reclaims them even after a crash.
package shmseg

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Segment is an attached SysV shared memory segment.
type Segment struct {
	id      int
	data    []byte
	removed bool
}

// New creates and attaches a private segment of the given size.
func New(size int) (*Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shmseg: invalid segment size %d", size)
	}
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|0o600)
	if err != nil {
		return nil, fmt.Errorf("shmseg: shmget(%d bytes): %w", size, err)
	}
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		// The orphaned id would outlive the process otherwise.
		unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return nil, fmt.Errorf("shmseg: shmat(id %d): %w", id, err)
	}
	return &Segment{id: id, data: data}, nil
}

// ID returns the kernel segment id handed to the display server.
func (s *Segment) ID() int { return s.id }

// Data returns the mapped segment memory.
func (s *Segment) Data() []byte { return s.data }

// MarkRemove flags the segment for kernel reclamation once every
// attacher detaches. Call after the display server side is attached.
func (s *Segment) MarkRemove() {
	if s.removed {
		return
	}
	s.removed = true
	unix.SysvShmCtl(s.id, unix.IPC_RMID, nil)
}

// Close detaches the segment. The memory is invalid afterwards.
func (s *Segment) Close() error {
	if s.data == nil {
		return nil
	}
	s.MarkRemove()
	err := unix.SysvShmDetach(s.data)
	s.data = nil
	if err != nil {
		return fmt.Errorf("shmseg: shmdt(id %d): %w", s.id, err)
	}
	return nil
}
