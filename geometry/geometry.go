// Package geometry computes frame placement for the video sink.
//
// Given a decoded frame size, the render rectangle of the target
// surface and the sink's display configuration (geometry method,
// rotation, flip, zoom, region of interest), Compute derives the
// destination rectangle on the surface and the crop of the source
// frame that should be sampled. The math is pure: no display state is
// consulted, so every placement can be recomputed from configuration
// alone.
package geometry

import (
	"errors"
	"fmt"
)

// Rotation is a clockwise presentation rotation in quarter turns.
type Rotation int

const (
	Rotate0 Rotation = iota
	Rotate90
	Rotate180
	Rotate270

	numRotations = 4
)

// Degrees returns the rotation as degrees in [0, 270].
func (r Rotation) Degrees() int { return int(r) * 90 }

// Swapped reports whether the rotation exchanges the horizontal and
// vertical axes.
func (r Rotation) Swapped() bool { return r == Rotate90 || r == Rotate270 }

// Minus returns the rotation reduced by o, wrapped into a full turn.
func (r Rotation) Minus(o Rotation) Rotation {
	return Rotation((int(r) - int(o) + numRotations) % numRotations)
}

func (r Rotation) String() string {
	switch r {
	case Rotate0:
		return "0"
	case Rotate90:
		return "90"
	case Rotate180:
		return "180"
	case Rotate270:
		return "270"
	}
	return fmt.Sprintf("Rotation(%d)", int(r))
}

// Flip mirrors the frame along one or both axes.
type Flip int

const (
	FlipNone Flip = iota
	FlipHorizontal
	FlipVertical
	FlipBoth
)

// Horizontal reports whether the flip mirrors the horizontal axis.
func (f Flip) Horizontal() bool { return f == FlipHorizontal || f == FlipBoth }

// Vertical reports whether the flip mirrors the vertical axis.
func (f Flip) Vertical() bool { return f == FlipVertical || f == FlipBoth }

// Method selects how the frame is placed into the render rectangle.
type Method int

const (
	// LetterBox scales the frame to the largest aspect-preserving fit
	// and centers it, padding the remainder with border fill.
	LetterBox Method = iota

	// OriginSize maps frame pixels 1:1, centered, cropping whatever
	// does not fit the render rectangle.
	OriginSize

	// FullScreen stretches the frame to the whole render rectangle,
	// ignoring the aspect ratio.
	FullScreen

	// CroppedFullScreen fills the render rectangle completely and
	// crops the source overflow to preserve the aspect ratio.
	CroppedFullScreen

	// CustomROI places the frame into an explicit destination
	// rectangle supplied by the caller.
	CustomROI
)

// ROIMethod refines placement inside a CustomROI destination.
type ROIMethod int

const (
	// ROIFullScreen stretches the frame across the whole ROI.
	ROIFullScreen ROIMethod = iota

	// ROILetterBox letterboxes the frame within the ROI.
	ROILetterBox
)

// Zoom factors outside (1, MaxZoom] are treated as no zoom.
const MaxZoom = 9.0

// ErrEmptyGeometry is returned when the composed placement has no
// renderable area. Callers treat it as a negotiation failure.
var ErrEmptyGeometry = errors.New("geometry: computed placement is empty")

// Input carries everything Compute needs. SrcWidth and SrcHeight are
// the un-rotated frame dimensions. Surface dimensions are those of the
// native window or pixmap and act as the pivot frame for rotation.
// ZoomAnchorX and ZoomAnchorY position the zoom crop; a negative value
// centers that axis.
type Input struct {
	SrcWidth, SrcHeight int

	Render                      Rect
	SurfaceWidth, SurfaceHeight int

	Method    Method
	ROI       Rect
	ROIMethod ROIMethod

	Rotation    Rotation
	Orientation Rotation
	Flip        Flip

	Zoom                     float64
	ZoomAnchorX, ZoomAnchorY int
}

// Placement is the result of Compute. Dst is in surface coordinates,
// SrcCrop in un-rotated source coordinates. PortRotation carries the
// angle handed to the display port; the port rotates the opposite way
// the sink counts, so 90 and 270 are exchanged.
type Placement struct {
	Dst     Rect
	SrcCrop Rect

	PortRotation int
	HFlip, VFlip bool
}

// Compute derives the frame placement for in.
//
// The destination rectangle is contained in in.Render for every method
// except FullScreen, where it equals it. A zero-area result at any
// stage yields ErrEmptyGeometry.
func Compute(in Input) (Placement, error) {
	if in.SrcWidth <= 0 || in.SrcHeight <= 0 {
		return Placement{}, fmt.Errorf("geometry: invalid source size %dx%d", in.SrcWidth, in.SrcHeight)
	}
	if in.Render.Empty() {
		return Placement{}, fmt.Errorf("geometry: invalid render rectangle %+v", in.Render)
	}

	// Source extent as the display sees it: rotated presentations swap
	// the axes before any mode math runs.
	src := Rect{W: in.SrcWidth, H: in.SrcHeight}
	if in.Rotation.Swapped() {
		src.W, src.H = src.H, src.W
	}
	crop := Rect{W: in.SrcWidth, H: in.SrcHeight}
	frame := Rect{W: in.Render.W, H: in.Render.H}

	var dst Rect
	resRotation := in.Rotation

	switch in.Method {
	case LetterBox:
		dst = Center(src, frame, true)
		dst.X += in.Render.X
		dst.Y += in.Render.Y

	case OriginSize:
		dst = Center(src, frame, false)
		dst.X += in.Render.X
		dst.Y += in.Render.Y
		crop = Center(frame, src, false)
		if in.Rotation.Swapped() {
			crop = swapAxes(crop)
		}

	case FullScreen:
		dst = in.Render

	case CroppedFullScreen:
		dst = in.Render
		crop = Center(frame, src, true)
		if in.Rotation.Swapped() {
			crop = swapAxes(crop)
		}

	case CustomROI:
		if in.ROI.Empty() {
			return Placement{}, fmt.Errorf("geometry: invalid ROI %+v", in.ROI)
		}
		roi := in.ROI
		if in.ROIMethod == ROILetterBox {
			// The ROI letterbox is oriented by the content, not by the
			// presentation rotation.
			oriented := Rect{W: in.SrcWidth, H: in.SrcHeight}
			if in.Orientation.Swapped() {
				oriented.W, oriented.H = oriented.H, oriented.W
			}
			fit := Center(oriented, Rect{W: in.ROI.W, H: in.ROI.H}, true)
			roi = Rect{
				X: in.ROI.X + fit.X,
				Y: in.ROI.Y + fit.Y,
				W: fit.W,
				H: fit.H,
			}
		}
		dst = RotateRect(roi, in.SurfaceWidth, in.SurfaceHeight, in.Rotation)
		if in.Orientation != Rotate0 {
			resRotation = in.Rotation.Minus(in.Orientation)
		}

	default:
		return Placement{}, fmt.Errorf("geometry: unknown method %d", in.Method)
	}

	if in.Zoom > 1.0 && in.Zoom <= MaxZoom {
		crop = zoomCrop(crop, in)
	}

	// Xv ports sample chroma on even boundaries; round odd crops up.
	if crop.W%2 == 1 {
		crop.W++
	}
	if crop.H%2 == 1 {
		crop.H++
	}

	if dst.Empty() || crop.Empty() {
		return Placement{}, ErrEmptyGeometry
	}

	p := Placement{
		Dst:     dst,
		SrcCrop: crop,
		HFlip:   in.Flip.Horizontal(),
		VFlip:   in.Flip.Vertical(),
	}
	switch resRotation {
	case Rotate90:
		p.PortRotation = 270
	case Rotate270:
		p.PortRotation = 90
	default:
		p.PortRotation = resRotation.Degrees()
	}
	return p, nil
}

// zoomCrop narrows crop to the 1/zoom sub-rectangle. Anchors are given
// in presentation coordinates; a presentation rotated by 90 or 270
// degrees exchanges which source axis each anchor drives, the same way
// the destination axes swap.
func zoomCrop(crop Rect, in Input) Rect {
	w := float64(crop.W)
	h := float64(crop.H)
	zw := w / in.Zoom
	zh := h / in.Zoom

	// Offsets along the source axes, centered unless an anchor pins
	// them. Anchors arrive in presentation coordinates: with the
	// presentation rotated a quarter turn, the horizontal anchor drives
	// the source vertical axis (mirrored) and vice versa.
	offX := int(w-zw) >> 1
	offY := int(h-zh) >> 1
	upright := !in.Rotation.Minus(in.Orientation).Swapped()

	if in.ZoomAnchorX >= 0 {
		ax := float64(in.ZoomAnchorX)
		if upright {
			if ax > w-zw {
				ax = w - zw
			}
			offX = int(ax)
		} else {
			if ax > h-zh {
				ax = h - zh
			}
			offY = int((h - zh) - ax)
		}
	}
	if in.ZoomAnchorY >= 0 {
		ay := float64(in.ZoomAnchorY)
		if upright {
			if ay > h-zh {
				ay = h - zh
			}
			offY = int(ay)
		} else {
			if ay > w-zw {
				ay = w - zw
			}
			offX = int(ay)
		}
	}

	crop.X += offX
	crop.Y += offY
	crop.W = int(zw)
	crop.H = int(zh)
	return crop
}

func swapAxes(r Rect) Rect {
	return Rect{X: r.Y, Y: r.X, W: r.H, H: r.W}
}
