package xvsink

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/xvsink/dmabuf"
	"github.com/gogpu/xvsink/geometry"
	"github.com/gogpu/xvsink/internal/xdisplay"
)

// Deliver presents a decoded frame. The frame becomes the retained
// "current" frame, redrawn on expose until the next delivery. The
// sink takes its own reference; the caller's reference stays valid
// until the caller releases it.
//
// A missing surface is recoverable: the frame is dropped and nil
// returned, except for the very first frame, where ErrNoSurface tells
// the pipeline the sink is not ready yet.
func (s *Sink) Deliver(buf *Buffer) error {
	if buf == nil {
		return errors.New("xvsink: Deliver called with nil buffer")
	}

	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}
	if err := s.ensureWindowLocked(); err != nil {
		if s.firstFrame {
			return fmt.Errorf("%w: %v", ErrNoSurface, err)
		}
		Logger().Debug("frame dropped, no surface", "err", err)
		return nil
	}
	return s.presentLocked(buf)
}

// Expose redraws the most recently delivered frame, if any. Used by
// embedders after uncovering the window and by the sink's own event
// loop.
func (s *Sink) Expose() {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	if s.state != stateReady {
		return
	}
	if err := s.presentLocked(nil); err != nil {
		Logger().Debug("expose redraw", "err", err)
	}
}

// presentLocked is the single draw path. buf == nil redraws the
// current frame. flowMu is held; draw calls take the display lock
// inside xdisplay.
func (s *Sink) presentLocked(buf *Buffer) error {
	if s.win == nil || s.pres == nil {
		return ErrNoSurface
	}

	switch {
	case buf != nil:
		old := s.cur
		s.cur = buf.Ref()
		if old != nil {
			old.Release()
		}
	case s.cur != nil:
		s.redrawBorders = true
	default:
		// Nothing delivered yet, nothing to redraw.
		return nil
	}

	if !s.cfg.visible || s.obscured {
		return nil
	}

	f := s.cur.Format()
	pl, err := geometry.Compute(geometry.Input{
		SrcWidth:      f.Width,
		SrcHeight:     f.Height,
		Render:        s.renderRect,
		SurfaceWidth:  s.win.W,
		SurfaceHeight: s.win.H,
		Method:        s.cfg.method,
		ROI:           s.cfg.roi,
		ROIMethod:     s.cfg.roiMethod,
		Rotation:      s.cfg.rotation,
		Orientation:   s.cfg.orientation,
		Flip:          s.cfg.flip,
		Zoom:          s.cfg.zoom,
		ZoomAnchorX:   s.cfg.zoomAnchorX,
		ZoomAnchorY:   s.cfg.zoomAnchorY,
	})
	if err != nil {
		return fmt.Errorf("xvsink: place %dx%d frame: %w", f.Width, f.Height, err)
	}

	if pl.Dst != s.lastDst {
		s.redrawBorders = true
		s.lastDst = pl.Dst
	}
	if s.cfg.drawBorders && s.redrawBorders {
		if err := s.disp.FillRectangles(s.win, geometry.Borders(pl.Dst, s.renderRect)); err != nil {
			Logger().Warn("border fill failed", "err", err)
		}
		s.redrawBorders = false
	}

	s.pushPortAttrsLocked(pl)

	tokens, registered := s.registerSharedLocked(s.cur)
	err = s.pres.put(s, s.cur, pl)
	if err != nil {
		if registered {
			s.table.Remove(tokens)
		}
		if xdisplay.IsSurfaceGone(err) {
			s.fatalLocked(fmt.Errorf("%w: %v", ErrSurfaceLost, err))
			return ErrSurfaceLost
		}
		rerr := &RenderError{Err: err}
		Logger().Warn("frame draw failed", "err", err)
		if fn := s.onRenderError; fn != nil {
			s.flowMu.Unlock()
			fn(rerr)
			s.flowMu.Lock()
		}
		return rerr
	}
	if s.cfg.synchronous {
		s.disp.Sync()
	}
	s.firstFrame = false
	return nil
}

// registerSharedLocked exports the frame's dma-buf planes and records
// them as in flight with the display server. The frame keeps a
// reference until the server posts its return message.
func (s *Sink) registerSharedLocked(b *Buffer) (dmabuf.Tokens, bool) {
	if s.cfg.exchanger == nil || len(b.PlaneFDs()) == 0 {
		return dmabuf.Tokens{}, false
	}

	var tokens dmabuf.Tokens
	var handles dmabuf.Handles
	for i, fd := range b.PlaneFDs() {
		if i >= dmabuf.MaxPlanes {
			break
		}
		h, tok, err := s.cfg.exchanger.Export(fd)
		if err != nil {
			Logger().Warn("plane export failed, presenting by copy", "plane", i, "err", err)
			for j := 0; j < i; j++ {
				s.cfg.exchanger.Release(handles[j])
			}
			return dmabuf.Tokens{}, false
		}
		tokens[i] = tok
		handles[i] = h
	}

	held := b.Ref()
	err := s.table.Add(tokens, handles, func() {
		for _, h := range handles {
			if h != 0 {
				s.cfg.exchanger.Release(h)
			}
		}
		held.Release()
	})
	if err != nil {
		// Capacity overflow means flow control is broken upstream.
		Logger().Error("in-flight buffer table rejected frame", "err", err)
		for _, h := range handles {
			if h != 0 {
				s.cfg.exchanger.Release(h)
			}
		}
		held.Release()
		return dmabuf.Tokens{}, false
	}
	return tokens, true
}

// pushPortAttrsLocked forwards rotation and flip to the hardware port
// when they changed. Ports without these attributes just log.
func (s *Sink) pushPortAttrsLocked(pl geometry.Placement) {
	if s.disp.Port == 0 {
		return
	}
	hf, vf := 0, 0
	if pl.HFlip {
		hf = 1
	}
	if pl.VFlip {
		vf = 1
	}
	if s.portAttrsOK && pl.PortRotation == s.portRotation && hf == s.portFlipH && vf == s.portFlipV {
		return
	}
	for _, a := range []struct {
		name  string
		value int
	}{
		{"_USER_WM_PORT_ATTRIBUTE_ROTATION", pl.PortRotation},
		{"_USER_WM_PORT_ATTRIBUTE_HFLIP", hf},
		{"_USER_WM_PORT_ATTRIBUTE_VFLIP", vf},
	} {
		if err := s.disp.SetPortAttr(a.name, int32(a.value)); err != nil {
			Logger().Debug("port attribute not applied", "attr", a.name, "err", err)
		}
	}
	s.portRotation, s.portFlipH, s.portFlipV = pl.PortRotation, hf, vf
	s.portAttrsOK = true
}

// presenter is the draw strategy bound to the surface: hardware port
// with shared memory, hardware port by copy, or software blit.
type presenter interface {
	name() string
	put(s *Sink, b *Buffer, pl geometry.Placement) error
}

func (s *Sink) pickPresenter() presenter {
	if s.disp.Port != 0 && (!s.negotiated || s.disp.SupportsFormat(uint32(s.format.Pixel))) {
		if s.disp.UseShm {
			return xvShmPresenter{}
		}
		return xvPresenter{}
	}
	return softPresenter{}
}

type xvShmPresenter struct{}

func (xvShmPresenter) name() string { return "xv-shm" }

func (xvShmPresenter) put(s *Sink, b *Buffer, pl geometry.Placement) error {
	f := b.Format()
	seg, ok := b.back.(shmSeg)
	if !ok {
		// Pipeline-allocated frame without a segment: copy it.
		return xvPresenter{}.put(s, b, pl)
	}
	return s.disp.XvShmPut(s.win, seg.XSeg(), uint32(f.Pixel),
		f.Width, f.Height, pl.SrcCrop, pl.Dst)
}

type xvPresenter struct{}

func (xvPresenter) name() string { return "xv-copy" }

func (xvPresenter) put(s *Sink, b *Buffer, pl geometry.Placement) error {
	f := b.Format()
	return s.disp.XvPut(s.win, b.Data(), uint32(f.Pixel),
		f.Width, f.Height, pl.SrcCrop, pl.Dst)
}

// softPresenter scales BGRX frames on the CPU and uploads them with a
// core protocol draw. It ignores rotation and flip: those belong to
// the hardware port, and a display without one gets the plain
// orientation.
type softPresenter struct{}

func (softPresenter) name() string { return "soft" }

func (softPresenter) put(s *Sink, b *Buffer, pl geometry.Placement) error {
	f := b.Format()
	if f.Pixel != FormatBGRX {
		return fmt.Errorf("xvsink: software path cannot present %v: %w", f.Pixel, ErrFormatUnsupported)
	}
	if pl.PortRotation != 0 || pl.HFlip || pl.VFlip {
		Logger().Debug("software path ignores rotation and flip")
	}

	src := &image.RGBA{
		Pix:    b.Data(),
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
	crop := image.Rect(pl.SrcCrop.X, pl.SrcCrop.Y,
		pl.SrcCrop.X+pl.SrcCrop.W, pl.SrcCrop.Y+pl.SrcCrop.H)
	out := image.NewRGBA(image.Rect(0, 0, pl.Dst.W, pl.Dst.H))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), src, crop, draw.Src, nil)

	return s.disp.PutZPixmap(s.win, out.Pix, pl.Dst.W, pl.Dst.H, pl.Dst.X, pl.Dst.Y)
}
