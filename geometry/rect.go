package geometry

// Rect is an axis-aligned rectangle in pixel coordinates.
// X and Y locate the top-left corner; W and H may describe an empty
// rectangle (zero or negative extent) while intermediate results are
// being composed.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the rectangle has no renderable area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Contains reports whether inner lies fully within r.
func (r Rect) Contains(inner Rect) bool {
	return inner.X >= r.X && inner.Y >= r.Y &&
		inner.X+inner.W <= r.X+r.W && inner.Y+inner.H <= r.Y+r.H
}

// Center places src within dst and returns the resulting rectangle in
// dst coordinates.
//
// With scale set, src is scaled to the largest size that fits dst while
// preserving its aspect ratio and is centered along the shorter axis
// (letterboxing). Fractional results truncate toward zero, so the
// placement is deterministic across platforms.
//
// Without scale, src keeps its 1:1 pixel size, clipped to dst and
// centered; the caller derives the matching source crop by swapping the
// argument order.
func Center(src, dst Rect, scale bool) Rect {
	if src.Empty() || dst.Empty() {
		return Rect{}
	}
	if !scale {
		w := min(src.W, dst.W)
		h := min(src.H, dst.H)
		return Rect{
			X: (dst.W - w) / 2,
			Y: (dst.H - h) / 2,
			W: w,
			H: h,
		}
	}

	srcRatio := float64(src.W) / float64(src.H)
	dstRatio := float64(dst.W) / float64(dst.H)
	switch {
	case srcRatio > dstRatio:
		w := dst.W
		h := int(float64(dst.W) / srcRatio)
		return Rect{X: 0, Y: (dst.H - h) / 2, W: w, H: h}
	case srcRatio < dstRatio:
		w := int(float64(dst.H) * srcRatio)
		h := dst.H
		return Rect{X: (dst.W - w) / 2, Y: 0, W: w, H: h}
	default:
		return Rect{X: 0, Y: 0, W: dst.W, H: dst.H}
	}
}

// RotateRect maps r to the position it occupies after the whole
// viewport of size surfaceW x surfaceH is rotated by rot. A point at
// fractional position (u,v) of the un-rotated viewport lands where the
// rotation places it, so width and height swap for 90 and 270 degrees.
func RotateRect(r Rect, surfaceW, surfaceH int, rot Rotation) Rect {
	switch rot {
	case Rotate90:
		return Rect{X: r.Y, Y: surfaceH - r.X - r.W, W: r.H, H: r.W}
	case Rotate180:
		return Rect{X: surfaceW - r.X - r.W, Y: surfaceH - r.Y - r.H, W: r.W, H: r.H}
	case Rotate270:
		return Rect{X: surfaceW - r.Y - r.H, Y: r.X, W: r.H, H: r.W}
	default:
		return r
	}
}

// Borders returns the gap rectangles between dst and the surrounding
// render rectangle, in left, right, top, bottom order. Gaps with no
// area are omitted; a dst covering all of render yields nil.
func Borders(dst, render Rect) []Rect {
	var gaps []Rect
	if dst.X > render.X {
		gaps = append(gaps, Rect{
			X: render.X, Y: render.Y,
			W: dst.X - render.X, H: render.H,
		})
	}
	if r1, r2 := dst.X+dst.W, render.X+render.W; r1 < r2 {
		gaps = append(gaps, Rect{
			X: r1, Y: render.Y,
			W: r2 - r1, H: render.H,
		})
	}
	if dst.Y > render.Y {
		gaps = append(gaps, Rect{
			X: render.X, Y: render.Y,
			W: render.W, H: dst.Y - render.Y,
		})
	}
	if b1, b2 := dst.Y+dst.H, render.Y+render.H; b1 < b2 {
		gaps = append(gaps, Rect{
			X: render.X, Y: b1,
			W: render.W, H: b2 - b1,
		})
	}
	return gaps
}
