package xvsink

import "fmt"

// PixelFormat identifies a frame layout by its FourCC code, matching
// the identifiers XVideo ports advertise.
type PixelFormat uint32

// fourcc packs four characters into a PixelFormat.
func fourcc(a, b, c, d byte) PixelFormat {
	return PixelFormat(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// Pixel formats the sink understands. Planar and packed YUV map onto
// hardware ports; BGRX is the software blit format.
var (
	FormatI420 = fourcc('I', '4', '2', '0')
	FormatYV12 = fourcc('Y', 'V', '1', '2')
	FormatNV12 = fourcc('N', 'V', '1', '2')
	FormatYUY2 = fourcc('Y', 'U', 'Y', '2')
	FormatUYVY = fourcc('U', 'Y', 'V', 'Y')
	FormatBGRX = fourcc('B', 'G', 'R', 'X')
)

// String renders the FourCC characters.
func (f PixelFormat) String() string {
	return fmt.Sprintf("%c%c%c%c", byte(f), byte(f>>8), byte(f>>16), byte(f>>24))
}

// FrameBytes returns the byte size of a w x h frame in this format,
// or 0 for an unknown format.
func (f PixelFormat) FrameBytes(w, h int) int {
	switch f {
	case FormatI420, FormatYV12, FormatNV12:
		return w * h * 3 / 2
	case FormatYUY2, FormatUYVY:
		return w * h * 2
	case FormatBGRX:
		return w * h * 4
	default:
		return 0
	}
}

// Fraction is a positive rational, used for pixel aspect ratios.
type Fraction struct {
	Num, Den int
}

func (f Fraction) String() string { return fmt.Sprintf("%d/%d", f.Num, f.Den) }

// Float returns the fraction as a float64, or 0 for a zero denominator.
func (f Fraction) Float() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// Format is a negotiated frame format: pixel layout, dimensions and
// the pixel aspect ratio of the content.
type Format struct {
	Pixel  PixelFormat
	Width  int
	Height int
	PAR    Fraction
}

func (f Format) String() string {
	return fmt.Sprintf("%v %dx%d par %v", f.Pixel, f.Width, f.Height, f.PAR)
}

// valid reports whether the format has renderable dimensions and a
// known pixel layout.
func (f Format) valid() bool {
	return f.Width > 0 && f.Height > 0 && f.Pixel.FrameBytes(2, 2) > 0
}
