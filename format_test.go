package xvsink

import "testing"

func TestPixelFormatString(t *testing.T) {
	tests := []struct {
		f    PixelFormat
		want string
	}{
		{FormatI420, "I420"},
		{FormatYV12, "YV12"},
		{FormatNV12, "NV12"},
		{FormatYUY2, "YUY2"},
		{FormatUYVY, "UYVY"},
		{FormatBGRX, "BGRX"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestFrameBytes(t *testing.T) {
	tests := []struct {
		f    PixelFormat
		want int
	}{
		{FormatI420, 640 * 480 * 3 / 2},
		{FormatYV12, 640 * 480 * 3 / 2},
		{FormatNV12, 640 * 480 * 3 / 2},
		{FormatYUY2, 640 * 480 * 2},
		{FormatUYVY, 640 * 480 * 2},
		{FormatBGRX, 640 * 480 * 4},
		{PixelFormat(0), 0},
	}
	for _, tt := range tests {
		if got := tt.f.FrameBytes(640, 480); got != tt.want {
			t.Errorf("%v.FrameBytes(640, 480) = %d, want %d", tt.f, got, tt.want)
		}
	}
}

func TestFormatValid(t *testing.T) {
	good := Format{Pixel: FormatI420, Width: 2, Height: 2}
	if !good.valid() {
		t.Errorf("%v reported invalid", good)
	}
	for _, bad := range []Format{
		{Pixel: FormatI420, Width: 0, Height: 240},
		{Pixel: FormatI420, Width: 320, Height: -1},
		{Pixel: PixelFormat(123), Width: 320, Height: 240},
	} {
		if bad.valid() {
			t.Errorf("%v reported valid", bad)
		}
	}
}
