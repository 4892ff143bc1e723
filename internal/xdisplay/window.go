package xdisplay

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// Window is a native drawable the sink renders into: a window it
// created (Owned), one injected by the embedding application, or an
// off-screen pixmap (Pixmap). Destroying a non-owned window only
// unsubscribes from its events; pixmaps stay with their creator.
type Window struct {
	ID xproto.Window
	GC xproto.Gcontext

	X, Y, W, H int
	Owned      bool
	Pixmap     bool
}

// Event masks for owned windows. Structural and visibility changes are
// always interesting once events are on; input only feeds navigation.
const (
	structureMask = xproto.EventMaskExposure |
		xproto.EventMaskStructureNotify |
		xproto.EventMaskVisibilityChange

	inputMask = structureMask |
		xproto.EventMaskPointerMotion |
		xproto.EventMaskKeyPress |
		xproto.EventMaskKeyRelease |
		xproto.EventMaskButtonPress |
		xproto.EventMaskButtonRelease
)

// CreateWindow creates an owned, undecorated window of the given size,
// clamped to the screen. The window background is disabled so the
// server never repaints it on resize, which would flicker between
// frames.
func (d *Display) CreateWindow(w, h int, title string, handleEvents bool) (*Window, error) {
	if w > d.ScreenW {
		d.log.Info("window wider than screen, clamping", "width", w, "max", d.ScreenW)
		w = d.ScreenW
	}
	if h > d.ScreenH {
		d.log.Info("window taller than screen, clamping", "height", h, "max", d.ScreenH)
		h = d.ScreenH
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	wid, err := xproto.NewWindowId(d.Conn)
	if err != nil {
		return nil, fmt.Errorf("xdisplay: window id: %w", err)
	}

	var mask uint32 = xproto.CwBackPixmap | xproto.CwOverrideRedirect | xproto.CwEventMask
	events := uint32(structureMask)
	if handleEvents {
		events = inputMask
	}
	// Value order follows the bit order of the mask: background pixmap
	// None, override-redirect on (no decorations, no WM resizing),
	// then the event mask.
	values := []uint32{xproto.BackPixmapNone, 1, events}

	err = xproto.CreateWindowChecked(d.Conn,
		d.Screen.RootDepth, wid, d.Screen.Root,
		0, 0, uint16(w), uint16(h), 0,
		xproto.WindowClassInputOutput, d.Screen.RootVisual,
		mask, values).Check()
	if err != nil {
		return nil, fmt.Errorf("xdisplay: create window %dx%d: %w", w, h, err)
	}

	if title != "" {
		xproto.ChangeProperty(d.Conn, xproto.PropModeReplace, wid,
			xproto.AtomWmName, xproto.AtomString, 8,
			uint32(len(title)), []byte(title))
	}

	if handleEvents {
		if err := d.setDeleteProtocol(wid); err != nil {
			d.log.Warn("WM_DELETE_WINDOW protocol not registered", "err", err)
		}
	}

	gc, err := d.newGC(xproto.Drawable(wid))
	if err != nil {
		xproto.DestroyWindow(d.Conn, wid)
		return nil, err
	}

	xproto.MapWindow(d.Conn, wid)
	d.Conn.Sync()

	d.log.Info("window created", "id", uint32(wid), "size", fmt.Sprintf("%dx%d", w, h))
	return &Window{ID: wid, GC: gc, W: w, H: h, Owned: true}, nil
}

// AdoptWindow wraps an externally supplied window id. The caller keeps
// ownership of the native resource; the sink only subscribes to the
// events it needs and reads the current geometry.
func (d *Display) AdoptWindow(id uint32, handleEvents bool) (*Window, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	wid := xproto.Window(id)
	win := &Window{ID: wid, Owned: false}

	events := uint32(structureMask)
	if handleEvents {
		events = inputMask
	}
	err := xproto.ChangeWindowAttributesChecked(d.Conn, wid,
		xproto.CwEventMask, []uint32{events}).Check()
	if err != nil {
		return nil, fmt.Errorf("xdisplay: adopt window %#x: %w", id, err)
	}

	gc, err := d.newGC(xproto.Drawable(wid))
	if err != nil {
		return nil, err
	}
	win.GC = gc

	if err := d.refreshGeometryLocked(win); err != nil {
		xproto.FreeGC(d.Conn, gc)
		return nil, err
	}
	d.log.Info("external window adopted",
		"id", id, "geometry", fmt.Sprintf("%d,%d %dx%d", win.X, win.Y, win.W, win.H))
	return win, nil
}

// AdoptPixmap wraps an off-screen pixmap supplied by the embedder.
// Pixmaps deliver no events and have no screen position; only the size
// is read. The embedder keeps ownership of the native resource.
func (d *Display) AdoptPixmap(id uint32) (*Window, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	geom, err := xproto.GetGeometry(d.Conn, xproto.Drawable(id)).Reply()
	if err != nil {
		return nil, fmt.Errorf("xdisplay: pixmap %#x geometry: %w", id, err)
	}
	gc, err := d.newGC(xproto.Drawable(id))
	if err != nil {
		return nil, err
	}
	win := &Window{
		ID: xproto.Window(id), GC: gc,
		W: int(geom.Width), H: int(geom.Height),
		Pixmap: true,
	}
	d.log.Info("pixmap adopted",
		"id", id, "size", fmt.Sprintf("%dx%d", win.W, win.H))
	return win, nil
}

// DestroyWindow releases the surface. Owned windows are destroyed on
// the server, adopted windows only have their event subscription
// cleared and pixmaps are left untouched apart from the GC.
func (d *Display) DestroyWindow(win *Window) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case win.Owned:
		xproto.DestroyWindow(d.Conn, win.ID)
	case win.Pixmap:
		// Nothing to unsubscribe; the embedder owns the pixmap.
	default:
		xproto.ChangeWindowAttributes(d.Conn, win.ID,
			xproto.CwEventMask, []uint32{0})
	}
	xproto.FreeGC(d.Conn, win.GC)
	d.Conn.Sync()
}

// SetEventMask re-selects the window's event subscription, switching
// input events on or off at runtime.
func (d *Display) SetEventMask(win *Window, input bool) error {
	mask := uint32(structureMask)
	if input {
		mask = uint32(inputMask)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	err := xproto.ChangeWindowAttributesChecked(d.Conn, win.ID,
		xproto.CwEventMask, []uint32{mask}).Check()
	if err != nil {
		return fmt.Errorf("xdisplay: change event mask: %w", err)
	}
	return nil
}

// RefreshGeometry re-reads the window's size and absolute position.
func (d *Display) RefreshGeometry(win *Window) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshGeometryLocked(win)
}

func (d *Display) refreshGeometryLocked(win *Window) error {
	geom, err := xproto.GetGeometry(d.Conn, xproto.Drawable(win.ID)).Reply()
	if err != nil {
		return fmt.Errorf("xdisplay: window %#x geometry: %w", uint32(win.ID), err)
	}
	win.W = int(geom.Width)
	win.H = int(geom.Height)
	if win.Pixmap {
		return nil
	}

	trans, err := xproto.TranslateCoordinates(d.Conn, win.ID, d.Screen.Root, 0, 0).Reply()
	if err != nil {
		return fmt.Errorf("xdisplay: window %#x position: %w", uint32(win.ID), err)
	}
	win.X = int(trans.DstX)
	win.Y = int(trans.DstY)
	return nil
}

func (d *Display) newGC(drawable xproto.Drawable) (xproto.Gcontext, error) {
	gc, err := xproto.NewGcontextId(d.Conn)
	if err != nil {
		return 0, fmt.Errorf("xdisplay: gc id: %w", err)
	}
	err = xproto.CreateGCChecked(d.Conn, gc, drawable,
		xproto.GcForeground, []uint32{d.Screen.BlackPixel}).Check()
	if err != nil {
		return 0, fmt.Errorf("xdisplay: create gc: %w", err)
	}
	return gc, nil
}

func (d *Display) setDeleteProtocol(wid xproto.Window) error {
	protocols, err := d.Atom("WM_PROTOCOLS")
	if err != nil {
		return err
	}
	del, err := d.Atom("WM_DELETE_WINDOW")
	if err != nil {
		return err
	}
	data := make([]byte, 4)
	xgb.Put32(data, uint32(del))
	return xproto.ChangePropertyChecked(d.Conn, xproto.PropModeReplace, wid,
		protocols, xproto.AtomAtom, 32, 1, data).Check()
}
