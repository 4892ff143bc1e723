package xvsink

import (
	"errors"
	"testing"
)

func capsWith(formats ...PixelFormat) displayCaps {
	set := map[uint32]bool{}
	for _, f := range formats {
		set[uint32(f)] = true
	}
	return displayCaps{
		hasPort:  true,
		supports: func(id uint32) bool { return set[id] },
		parN:     1, parD: 1,
	}
}

func TestNegotiateAcceptsSupported(t *testing.T) {
	caps := capsWith(FormatI420, FormatYUY2)
	in := Format{Pixel: FormatI420, Width: 640, Height: 480, PAR: Fraction{1, 1}}
	out, err := negotiateFormat(in, caps, true, nil)
	if err != nil {
		t.Fatalf("negotiateFormat: %v", err)
	}
	if out != in {
		t.Errorf("accepted = %v, want proposal unchanged %v", out, in)
	}
}

func TestNegotiateCountersWithFamily(t *testing.T) {
	tests := []struct {
		name      string
		supported []PixelFormat
		propose   PixelFormat
		want      PixelFormat
	}{
		{"planar sibling", []PixelFormat{FormatYV12}, FormatI420, FormatYV12},
		{"packed sibling", []PixelFormat{FormatUYVY}, FormatYUY2, FormatUYVY},
		{"falls to packed", []PixelFormat{FormatYUY2}, FormatI420, FormatYUY2},
		{"falls to rgb", nil, FormatI420, FormatBGRX},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Format{Pixel: tt.propose, Width: 320, Height: 240, PAR: Fraction{1, 1}}
			out, err := negotiateFormat(in, capsWith(tt.supported...), true, nil)
			if err != nil {
				t.Fatalf("negotiateFormat: %v", err)
			}
			if out.Pixel != tt.want {
				t.Errorf("counter format = %v, want %v", out.Pixel, tt.want)
			}
		})
	}
}

func TestNegotiateSoftwareOnlyDisplay(t *testing.T) {
	caps := displayCaps{hasPort: false, parN: 1, parD: 1}

	in := Format{Pixel: FormatI420, Width: 320, Height: 240, PAR: Fraction{1, 1}}
	out, err := negotiateFormat(in, caps, true, nil)
	if err != nil {
		t.Fatalf("negotiateFormat: %v", err)
	}
	if out.Pixel != FormatBGRX {
		t.Errorf("counter format = %v, want BGRX on portless display", out.Pixel)
	}
}

func TestNegotiateRejectsInvalid(t *testing.T) {
	_, err := negotiateFormat(Format{Pixel: FormatI420, Width: 0, Height: 240}, capsWith(FormatI420), true, nil)
	if !errors.Is(err, ErrFormatUnsupported) {
		t.Errorf("zero width: err = %v, want ErrFormatUnsupported", err)
	}
}

func TestNegotiatePARScaling(t *testing.T) {
	tests := []struct {
		name        string
		srcPAR      Fraction
		dispN       int
		dispD       int
		width       int
		wantWidth   int
		forceAspect bool
	}{
		{"square on square", Fraction{1, 1}, 1, 1, 704, 704, true},
		{"anamorphic source", Fraction{16, 15}, 1, 1, 720, 768, true},
		{"narrow display pixels", Fraction{1, 1}, 54, 59, 708, 774, true},
		{"disabled", Fraction{16, 15}, 1, 1, 720, 720, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := capsWith(FormatI420)
			caps.parN, caps.parD = tt.dispN, tt.dispD
			in := Format{Pixel: FormatI420, Width: tt.width, Height: 480, PAR: tt.srcPAR}
			out, err := negotiateFormat(in, caps, tt.forceAspect, nil)
			if err != nil {
				t.Fatalf("negotiateFormat: %v", err)
			}
			if out.Width != tt.wantWidth {
				t.Errorf("width = %d, want %d", out.Width, tt.wantWidth)
			}
			if out.Height != 480 {
				t.Errorf("height = %d, want unchanged 480", out.Height)
			}
		})
	}
}

func TestNegotiatePAROverride(t *testing.T) {
	caps := capsWith(FormatI420)
	caps.parN, caps.parD = 54, 59
	in := Format{Pixel: FormatI420, Width: 704, Height: 480, PAR: Fraction{1, 1}}

	override := Fraction{1, 1}
	out, err := negotiateFormat(in, caps, true, &override)
	if err != nil {
		t.Fatalf("negotiateFormat: %v", err)
	}
	if out.Width != 704 {
		t.Errorf("width = %d, want 704 with square override", out.Width)
	}
}
