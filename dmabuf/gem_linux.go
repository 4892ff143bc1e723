//go:build linux

package dmabuf

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/NeowayLabs/drm"
	"golang.org/x/sys/unix"
)

// DRM ioctl codes for the GEM handle exchange. Derived from
// DRM_IOWR(0x2e, struct drm_prime_handle), DRM_IOWR(0x0a,
// struct drm_gem_flink) and DRM_IOW(0x09, struct drm_gem_close).
const (
	ioctlPrimeFDToHandle = 0xc00c642e
	ioctlGemFlink        = 0xc008640a
	ioctlGemClose        = 0x40086409
)

type primeHandle struct {
	handle uint32
	flags  uint32
	fd     int32
}

type gemFlink struct {
	handle uint32
	name   uint32
}

type gemClose struct {
	handle uint32
	pad    uint32
}

// GEM exchanges dma-buf descriptors with the display server through a
// DRM card: Export imports the fd as a GEM handle and flinks it to a
// global name the server side can open.
type GEM struct {
	card *os.File
}

var _ Exchanger = (*GEM)(nil)

// OpenGEM opens DRM card n for handle exchange.
func OpenGEM(n int) (*GEM, error) {
	card, err := drm.OpenCard(n)
	if err != nil {
		return nil, fmt.Errorf("dmabuf: open drm card %d: %w", n, err)
	}
	return &GEM{card: card}, nil
}

// Export converts a dma-buf fd into a GEM handle plus the flink name
// the display server imports it by.
func (g *GEM) Export(fd int) (handle, token uint32, err error) {
	ph := primeHandle{fd: int32(fd)}
	if err := g.ioctl(ioctlPrimeFDToHandle, unsafe.Pointer(&ph)); err != nil {
		return 0, 0, fmt.Errorf("dmabuf: prime fd to handle: %w", err)
	}
	fl := gemFlink{handle: ph.handle}
	if err := g.ioctl(ioctlGemFlink, unsafe.Pointer(&fl)); err != nil {
		g.Release(ph.handle)
		return 0, 0, fmt.Errorf("dmabuf: gem flink: %w", err)
	}
	return ph.handle, fl.name, nil
}

// Release closes a GEM handle obtained from Export.
func (g *GEM) Release(handle uint32) error {
	gc := gemClose{handle: handle}
	if err := g.ioctl(ioctlGemClose, unsafe.Pointer(&gc)); err != nil {
		return fmt.Errorf("dmabuf: gem close: %w", err)
	}
	return nil
}

// Close releases the DRM card.
func (g *GEM) Close() error {
	return g.card.Close()
}

func (g *GEM) ioctl(req uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL,
			g.card.Fd(), uintptr(req), uintptr(arg))
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR || errno == unix.EAGAIN {
			continue
		}
		return errno
	}
}
