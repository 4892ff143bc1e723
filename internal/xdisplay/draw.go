package xdisplay

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xv"

	"github.com/gogpu/xvsink/geometry"
)

// errSurfaceGone marks draw failures caused by the drawable itself
// disappearing, as opposed to a transient protocol problem.
var errSurfaceGone = errors.New("xdisplay: drawable is gone")

// IsSurfaceGone reports whether err means the target window or pixmap
// no longer exists on the server.
func IsSurfaceGone(err error) bool {
	if errors.Is(err, errSurfaceGone) {
		return true
	}
	switch err.(type) {
	case xproto.WindowError, xproto.DrawableError:
		return true
	}
	return false
}

// FillRectangles paints the given rectangles with the screen's black
// pixel, used for the letterbox borders around the frame.
func (d *Display) FillRectangles(win *Window, rects []geometry.Rect) error {
	if len(rects) == 0 {
		return nil
	}
	xr := make([]xproto.Rectangle, 0, len(rects))
	for _, r := range rects {
		if r.Empty() {
			continue
		}
		xr = append(xr, xproto.Rectangle{
			X: int16(r.X), Y: int16(r.Y),
			Width: uint16(r.W), Height: uint16(r.H),
		})
	}
	if len(xr) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	err := xproto.PolyFillRectangleChecked(d.Conn,
		xproto.Drawable(win.ID), win.GC, xr).Check()
	if err != nil {
		return fmt.Errorf("xdisplay: fill borders: %w", err)
	}
	return nil
}

// XvShmPut scales the shared-memory frame through the XVideo port:
// the src crop of the frameW x frameH image lands on dst of the window.
func (d *Display) XvShmPut(win *Window, seg uint32, formatID uint32, frameW, frameH int, src, dst geometry.Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := xv.ShmPutImageChecked(d.Conn, d.Port,
		xproto.Drawable(win.ID), win.GC, shm.Seg(seg), formatID, 0,
		int16(src.X), int16(src.Y), uint16(src.W), uint16(src.H),
		int16(dst.X), int16(dst.Y), uint16(dst.W), uint16(dst.H),
		uint16(frameW), uint16(frameH), 0).Check()
	d.Conn.Sync()
	if err != nil {
		if IsSurfaceGone(err) {
			return errSurfaceGone
		}
		return fmt.Errorf("xdisplay: XvShmPutImage: %w", err)
	}
	return nil
}

// XvPut is the copy-path equivalent of XvShmPut.
func (d *Display) XvPut(win *Window, data []byte, formatID uint32, frameW, frameH int, src, dst geometry.Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := xv.PutImageChecked(d.Conn, d.Port,
		xproto.Drawable(win.ID), win.GC, formatID,
		int16(src.X), int16(src.Y), uint16(src.W), uint16(src.H),
		int16(dst.X), int16(dst.Y), uint16(dst.W), uint16(dst.H),
		uint16(frameW), uint16(frameH), data).Check()
	d.Conn.Sync()
	if err != nil {
		if IsSurfaceGone(err) {
			return errSurfaceGone
		}
		return fmt.Errorf("xdisplay: XvPutImage: %w", err)
	}
	return nil
}

// PutZPixmap uploads pre-scaled BGRX rows at dst with core PutImage,
// chunked to stay under the server's request size limit.
func (d *Display) PutZPixmap(win *Window, data []byte, w, h, dstX, dstY int) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	const maxBytes = 256 * 1024
	stride := w * 4
	rowsPer := maxBytes / stride
	if rowsPer < 1 {
		rowsPer = 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for y := 0; y < h; y += rowsPer {
		rows := min(rowsPer, h-y)
		chunk := data[y*stride : (y+rows)*stride]
		err := xproto.PutImageChecked(d.Conn, xproto.ImageFormatZPixmap,
			xproto.Drawable(win.ID), win.GC,
			uint16(w), uint16(rows),
			int16(dstX), int16(dstY+y),
			0, d.Screen.RootDepth, chunk).Check()
		if err != nil {
			if IsSurfaceGone(err) {
				return errSurfaceGone
			}
			return fmt.Errorf("xdisplay: PutImage rows %d..%d: %w", y, y+rows, err)
		}
	}
	d.Conn.Sync()
	return nil
}

// SetPortAttr sets a named attribute on the grabbed XVideo port.
// Unknown attributes are reported by the server and surfaced as
// errors; callers treat them as non-fatal.
func (d *Display) SetPortAttr(name string, value int32) error {
	if d.Port == 0 {
		return nil
	}
	atom, err := d.Atom(name)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	err = xv.SetPortAttributeChecked(d.Conn, d.Port, atom, value).Check()
	if err != nil {
		return fmt.Errorf("xdisplay: set port attribute %s=%d: %w", name, value, err)
	}
	return nil
}

// StopVideo halts active hardware output on the window, releasing the
// overlay while the window is fully obscured.
func (d *Display) StopVideo(win *Window) {
	if d.Port == 0 || win == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	xv.StopVideo(d.Conn, d.Port, xproto.Drawable(win.ID))
	d.Conn.Sync()
}
