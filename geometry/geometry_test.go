package geometry

import (
	"errors"
	"testing"
)

func TestCenter_Letterbox(t *testing.T) {
	tests := []struct {
		name     string
		src, dst Rect
		want     Rect
	}{
		{
			name: "same aspect fills destination",
			src:  Rect{W: 320, H: 240},
			dst:  Rect{W: 640, H: 480},
			want: Rect{X: 0, Y: 0, W: 640, H: 480},
		},
		{
			name: "wider destination pads sides",
			src:  Rect{W: 320, H: 240},
			dst:  Rect{W: 640, H: 400},
			want: Rect{X: 53, Y: 0, W: 533, H: 400},
		},
		{
			name: "taller destination pads top and bottom",
			src:  Rect{W: 640, H: 360},
			dst:  Rect{W: 640, H: 480},
			want: Rect{X: 0, Y: 60, W: 640, H: 360},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Center(tt.src, tt.dst, true)
			if got != tt.want {
				t.Errorf("Center(%+v, %+v, true) = %+v, want %+v", tt.src, tt.dst, got, tt.want)
			}
		})
	}
}

func TestCenter_NoScale(t *testing.T) {
	got := Center(Rect{W: 320, H: 240}, Rect{W: 640, H: 480}, false)
	want := Rect{X: 160, Y: 120, W: 320, H: 240}
	if got != want {
		t.Errorf("Center no-scale = %+v, want %+v", got, want)
	}

	// Source larger than destination clips to the destination.
	got = Center(Rect{W: 640, H: 480}, Rect{W: 320, H: 240}, false)
	want = Rect{X: 0, Y: 0, W: 320, H: 240}
	if got != want {
		t.Errorf("Center no-scale clipped = %+v, want %+v", got, want)
	}
}

func TestCompute_LetterBoxScenarios(t *testing.T) {
	// The two concrete placements the sink is contractually bound to.
	in := Input{
		SrcWidth: 320, SrcHeight: 240,
		Render:       Rect{W: 640, H: 480},
		SurfaceWidth: 640, SurfaceHeight: 480,
		Method: LetterBox,
	}
	p, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if want := (Rect{X: 0, Y: 0, W: 640, H: 480}); p.Dst != want {
		t.Errorf("Dst = %+v, want %+v", p.Dst, want)
	}
	if gaps := Borders(p.Dst, in.Render); gaps != nil {
		t.Errorf("Borders = %+v, want none", gaps)
	}

	in.Render = Rect{W: 640, H: 400}
	in.SurfaceHeight = 400
	p, err = Compute(in)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if want := (Rect{X: 53, Y: 0, W: 533, H: 400}); p.Dst != want {
		t.Errorf("Dst = %+v, want %+v", p.Dst, want)
	}
	gaps := Borders(p.Dst, in.Render)
	if len(gaps) != 2 {
		t.Fatalf("Borders = %+v, want left and right gaps", gaps)
	}
	if gaps[0].W != 53 {
		t.Errorf("left border width = %d, want 53", gaps[0].W)
	}
	if gaps[1] != (Rect{X: 586, Y: 0, W: 54, H: 400}) {
		t.Errorf("right border = %+v, want {586 0 54 400}", gaps[1])
	}
}

func TestCompute_Rotate90OriginSize(t *testing.T) {
	// A 320x240 frame on a 240x320 surface at 90 degrees maps 1:1 with
	// the crop axes swapped back to source coordinates.
	p, err := Compute(Input{
		SrcWidth: 320, SrcHeight: 240,
		Render:       Rect{W: 240, H: 320},
		SurfaceWidth: 240, SurfaceHeight: 320,
		Method:   OriginSize,
		Rotation: Rotate90,
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if want := (Rect{X: 0, Y: 0, W: 240, H: 320}); p.Dst != want {
		t.Errorf("Dst = %+v, want %+v", p.Dst, want)
	}
	if want := (Rect{X: 0, Y: 0, W: 320, H: 240}); p.SrcCrop != want {
		t.Errorf("SrcCrop = %+v, want %+v", p.SrcCrop, want)
	}
	if p.PortRotation != 270 {
		t.Errorf("PortRotation = %d, want 270", p.PortRotation)
	}
}

func TestCompute_OriginSizeCrops(t *testing.T) {
	p, err := Compute(Input{
		SrcWidth: 640, SrcHeight: 480,
		Render:       Rect{W: 320, H: 240},
		SurfaceWidth: 320, SurfaceHeight: 240,
		Method: OriginSize,
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if want := (Rect{X: 0, Y: 0, W: 320, H: 240}); p.Dst != want {
		t.Errorf("Dst = %+v, want %+v", p.Dst, want)
	}
	if want := (Rect{X: 160, Y: 120, W: 320, H: 240}); p.SrcCrop != want {
		t.Errorf("SrcCrop = %+v, want %+v", p.SrcCrop, want)
	}
}

func TestCompute_CroppedFullScreen(t *testing.T) {
	p, err := Compute(Input{
		SrcWidth: 320, SrcHeight: 240,
		Render:       Rect{W: 640, H: 400},
		SurfaceWidth: 640, SurfaceHeight: 400,
		Method: CroppedFullScreen,
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if p.Dst != (Rect{W: 640, H: 400}) {
		t.Errorf("Dst = %+v, want the whole render rectangle", p.Dst)
	}
	if want := (Rect{X: 0, Y: 20, W: 320, H: 200}); p.SrcCrop != want {
		t.Errorf("SrcCrop = %+v, want %+v", p.SrcCrop, want)
	}
	src := Rect{W: 320, H: 240}
	if !src.Contains(p.SrcCrop) {
		t.Errorf("SrcCrop %+v exceeds source %+v", p.SrcCrop, src)
	}
}

func TestCompute_CustomROI(t *testing.T) {
	t.Run("unrotated equals ROI", func(t *testing.T) {
		p, err := Compute(Input{
			SrcWidth: 320, SrcHeight: 240,
			Render:       Rect{W: 640, H: 480},
			SurfaceWidth: 640, SurfaceHeight: 480,
			Method: CustomROI,
			ROI:    Rect{X: 10, Y: 20, W: 100, H: 50},
		})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if want := (Rect{X: 10, Y: 20, W: 100, H: 50}); p.Dst != want {
			t.Errorf("Dst = %+v, want %+v", p.Dst, want)
		}
	})

	t.Run("rotated 90 pivots on the surface", func(t *testing.T) {
		p, err := Compute(Input{
			SrcWidth: 320, SrcHeight: 240,
			Render:       Rect{W: 640, H: 480},
			SurfaceWidth: 640, SurfaceHeight: 480,
			Method:   CustomROI,
			ROI:      Rect{X: 10, Y: 20, W: 100, H: 50},
			Rotation: Rotate90,
		})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if want := (Rect{X: 20, Y: 370, W: 50, H: 100}); p.Dst != want {
			t.Errorf("Dst = %+v, want %+v", p.Dst, want)
		}
	})

	t.Run("letterboxed within the ROI", func(t *testing.T) {
		p, err := Compute(Input{
			SrcWidth: 320, SrcHeight: 240,
			Render:       Rect{W: 640, H: 480},
			SurfaceWidth: 640, SurfaceHeight: 480,
			Method:    CustomROI,
			ROI:       Rect{X: 0, Y: 0, W: 200, H: 200},
			ROIMethod: ROILetterBox,
		})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if want := (Rect{X: 0, Y: 25, W: 200, H: 150}); p.Dst != want {
			t.Errorf("Dst = %+v, want %+v", p.Dst, want)
		}
	})

	t.Run("orientation adjusts the port rotation", func(t *testing.T) {
		p, err := Compute(Input{
			SrcWidth: 320, SrcHeight: 240,
			Render:       Rect{W: 640, H: 480},
			SurfaceWidth: 640, SurfaceHeight: 480,
			Method:      CustomROI,
			ROI:         Rect{X: 0, Y: 0, W: 100, H: 100},
			Rotation:    Rotate90,
			Orientation: Rotate90,
		})
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if p.PortRotation != 0 {
			t.Errorf("PortRotation = %d, want 0", p.PortRotation)
		}
	})
}

func TestCompute_Containment(t *testing.T) {
	// For every non-ROI method the destination stays inside the render
	// rectangle; FullScreen covers it exactly.
	methods := []Method{LetterBox, OriginSize, FullScreen, CroppedFullScreen}
	sources := []Rect{{W: 320, H: 240}, {W: 1920, H: 1080}, {W: 100, H: 100}, {W: 720, H: 576}}
	renders := []Rect{{W: 640, H: 480}, {X: 10, Y: 20, W: 300, H: 200}, {W: 1024, H: 768}}
	rotations := []Rotation{Rotate0, Rotate90, Rotate180, Rotate270}

	for _, m := range methods {
		for _, src := range sources {
			for _, render := range renders {
				for _, rot := range rotations {
					p, err := Compute(Input{
						SrcWidth: src.W, SrcHeight: src.H,
						Render:       render,
						SurfaceWidth: render.X + render.W, SurfaceHeight: render.Y + render.H,
						Method:   m,
						Rotation: rot,
					})
					if err != nil {
						t.Fatalf("Compute(method=%d src=%+v render=%+v rot=%v): %v", m, src, render, rot, err)
					}
					if m == FullScreen {
						if p.Dst != render {
							t.Errorf("FullScreen Dst = %+v, want %+v", p.Dst, render)
						}
						continue
					}
					if !render.Contains(p.Dst) {
						t.Errorf("method %d src %+v render %+v rot %v: Dst %+v escapes render rectangle",
							m, src, render, rot, p.Dst)
					}
				}
			}
		}
	}
}

func TestRotateRect_RoundTrip(t *testing.T) {
	// Rotating by an angle and then by its complement against the
	// rotated viewport restores the original rectangle.
	const sw, sh = 640, 480
	rects := []Rect{
		{X: 0, Y: 0, W: 100, H: 50},
		{X: 53, Y: 0, W: 533, H: 400},
		{X: 300, Y: 200, W: 340, H: 280},
	}
	pairs := []struct {
		a, b Rotation
	}{
		{Rotate0, Rotate0},
		{Rotate90, Rotate270},
		{Rotate180, Rotate180},
		{Rotate270, Rotate90},
	}

	for _, r := range rects {
		for _, p := range pairs {
			rotated := RotateRect(r, sw, sh, p.a)
			w2, h2 := sw, sh
			if p.a.Swapped() {
				w2, h2 = sh, sw
			}
			back := RotateRect(rotated, w2, h2, p.b)
			if back != r {
				t.Errorf("RotateRect round trip %v+%v: %+v -> %+v -> %+v", p.a, p.b, r, rotated, back)
			}
		}
	}
}

func TestCompute_ZoomIdentity(t *testing.T) {
	for _, zoom := range []float64{0, 1.0, 9.5, -2} {
		p, err := Compute(Input{
			SrcWidth: 320, SrcHeight: 240,
			Render:       Rect{W: 640, H: 480},
			SurfaceWidth: 640, SurfaceHeight: 480,
			Method: LetterBox,
			Zoom:   zoom,
			// Anchors must be ignored without an effective zoom.
			ZoomAnchorX: 100, ZoomAnchorY: 100,
		})
		if err != nil {
			t.Fatalf("Compute(zoom=%v): %v", zoom, err)
		}
		if want := (Rect{X: 0, Y: 0, W: 320, H: 240}); p.SrcCrop != want {
			t.Errorf("zoom %v: SrcCrop = %+v, want full source %+v", zoom, p.SrcCrop, want)
		}
	}
}

func TestCompute_ZoomCrop(t *testing.T) {
	base := Input{
		SrcWidth: 320, SrcHeight: 240,
		Render:       Rect{W: 640, H: 480},
		SurfaceWidth: 640, SurfaceHeight: 480,
		Method:      LetterBox,
		Zoom:        2.0,
		ZoomAnchorX: -1,
		ZoomAnchorY: -1,
	}

	t.Run("centered by default", func(t *testing.T) {
		p, err := Compute(base)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if want := (Rect{X: 80, Y: 60, W: 160, H: 120}); p.SrcCrop != want {
			t.Errorf("SrcCrop = %+v, want %+v", p.SrcCrop, want)
		}
	})

	t.Run("anchor positions the crop", func(t *testing.T) {
		in := base
		in.ZoomAnchorX, in.ZoomAnchorY = 10, 20
		p, err := Compute(in)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if want := (Rect{X: 10, Y: 20, W: 160, H: 120}); p.SrcCrop != want {
			t.Errorf("SrcCrop = %+v, want %+v", p.SrcCrop, want)
		}
	})

	t.Run("anchor clamps to the source bounds", func(t *testing.T) {
		in := base
		in.ZoomAnchorX, in.ZoomAnchorY = 5000, 5000
		p, err := Compute(in)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if want := (Rect{X: 160, Y: 120, W: 160, H: 120}); p.SrcCrop != want {
			t.Errorf("SrcCrop = %+v, want %+v", p.SrcCrop, want)
		}
		src := Rect{W: 320, H: 240}
		if !src.Contains(p.SrcCrop) {
			t.Errorf("clamped crop %+v exceeds source", p.SrcCrop)
		}
	})

	t.Run("rotated presentation swaps anchor axes", func(t *testing.T) {
		// Under a quarter-turn rotation the horizontal anchor drives
		// the source vertical axis, mirrored, and vice versa.
		in := base
		in.Rotation = Rotate90
		in.ZoomAnchorX, in.ZoomAnchorY = 10, 20
		p, err := Compute(in)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if want := (Rect{X: 20, Y: 110, W: 160, H: 120}); p.SrcCrop != want {
			t.Errorf("SrcCrop = %+v, want %+v", p.SrcCrop, want)
		}
	})

	t.Run("rotated presentation centers the free axis", func(t *testing.T) {
		in := base
		in.Rotation = Rotate90
		in.ZoomAnchorX = 10
		p, err := Compute(in)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if want := (Rect{X: 80, Y: 110, W: 160, H: 120}); p.SrcCrop != want {
			t.Errorf("SrcCrop = %+v, want %+v", p.SrcCrop, want)
		}
	})

	t.Run("orientation cancels the rotation swap", func(t *testing.T) {
		// Rotation equal to the display orientation leaves the
		// effective presentation upright, so anchors map directly.
		in := base
		in.Rotation = Rotate90
		in.Orientation = Rotate90
		in.ZoomAnchorX, in.ZoomAnchorY = 10, 20
		p, err := Compute(in)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if want := (Rect{X: 10, Y: 20, W: 160, H: 120}); p.SrcCrop != want {
			t.Errorf("SrcCrop = %+v, want %+v", p.SrcCrop, want)
		}
	})

	t.Run("odd crops round up to even", func(t *testing.T) {
		in := base
		in.Zoom = 3.0 // 320/3 = 106, 240/3 = 80; force odd via source size
		in.SrcWidth, in.SrcHeight = 321, 241
		p, err := Compute(in)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if p.SrcCrop.W%2 != 0 || p.SrcCrop.H%2 != 0 {
			t.Errorf("SrcCrop = %+v, want even dimensions", p.SrcCrop)
		}
	})
}

func TestCompute_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{
			name: "zero source",
			in: Input{
				Render: Rect{W: 640, H: 480}, Method: LetterBox,
			},
		},
		{
			name: "empty render rectangle",
			in: Input{
				SrcWidth: 320, SrcHeight: 240, Method: LetterBox,
			},
		},
		{
			name: "empty ROI",
			in: Input{
				SrcWidth: 320, SrcHeight: 240,
				Render: Rect{W: 640, H: 480},
				Method: CustomROI,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compute(tt.in); err == nil {
				t.Error("Compute() = nil error, want failure")
			}
		})
	}

	// Degenerate aspect ratios collapse to a zero-size destination.
	_, err := Compute(Input{
		SrcWidth: 1000, SrcHeight: 1,
		Render:       Rect{W: 1, H: 1000},
		SurfaceWidth: 1, SurfaceHeight: 1000,
		Method: LetterBox,
	})
	if !errors.Is(err, ErrEmptyGeometry) {
		t.Errorf("Compute degenerate = %v, want ErrEmptyGeometry", err)
	}
}

func TestRotationHelpers(t *testing.T) {
	if Rotate90.Degrees() != 90 || Rotate270.Degrees() != 270 {
		t.Error("Degrees mapping is off")
	}
	if !Rotate90.Swapped() || !Rotate270.Swapped() || Rotate180.Swapped() {
		t.Error("Swapped mapping is off")
	}
	if got := Rotate90.Minus(Rotate180); got != Rotate270 {
		t.Errorf("Rotate90.Minus(Rotate180) = %v, want %v", got, Rotate270)
	}
	if got := FlipBoth; !got.Horizontal() || !got.Vertical() {
		t.Error("FlipBoth must mirror both axes")
	}
	if got := FlipHorizontal; !got.Horizontal() || got.Vertical() {
		t.Error("FlipHorizontal mapping is off")
	}
}
