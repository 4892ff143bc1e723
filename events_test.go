package xvsink

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"
)

func TestButtonEventTranslation(t *testing.T) {
	tests := []struct {
		detail byte
		want   mouse.Button
	}{
		{1, mouse.ButtonLeft},
		{2, mouse.ButtonMiddle},
		{3, mouse.ButtonRight},
		{4, mouse.ButtonWheelUp},
		{5, mouse.ButtonWheelDown},
		{9, mouse.ButtonNone},
	}
	for _, tt := range tests {
		e := buttonEvent(xproto.Button(tt.detail), 120, 45, mouse.DirPress)
		if e.Button != tt.want {
			t.Errorf("detail %d: button = %v, want %v", tt.detail, e.Button, tt.want)
		}
		if e.X != 120 || e.Y != 45 {
			t.Errorf("detail %d: position = %.0f,%.0f, want 120,45", tt.detail, e.X, e.Y)
		}
		if e.Direction != mouse.DirPress {
			t.Errorf("detail %d: direction = %v, want press", tt.detail, e.Direction)
		}
	}
}

func TestKeyEventTranslation(t *testing.T) {
	tests := []struct {
		name     string
		keysym   uint32
		wantRune rune
		wantCode key.Code
	}{
		{"lowercase letter", 'q', 'q', key.CodeQ},
		{"uppercase letter", 'Q', 'Q', key.CodeQ},
		{"digit", '7', '7', key.Code7},
		{"zero", '0', '0', key.Code0},
		{"space", ' ', ' ', key.CodeSpacebar},
		{"return", ksReturn, -1, key.CodeReturnEnter},
		{"escape", ksEscape, -1, key.CodeEscape},
		{"left arrow", ksLeft, -1, key.CodeLeftArrow},
		{"up arrow", ksUp, -1, key.CodeUpArrow},
		{"punctuation", '/', '/', key.CodeUnknown},
		{"function key", 0xffbe, -1, key.CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := keyEvent(tt.keysym, key.DirRelease)
			if e.Rune != tt.wantRune {
				t.Errorf("rune = %q, want %q", e.Rune, tt.wantRune)
			}
			if e.Code != tt.wantCode {
				t.Errorf("code = %v, want %v", e.Code, tt.wantCode)
			}
			if e.Direction != key.DirRelease {
				t.Errorf("direction = %v, want release", e.Direction)
			}
		})
	}
}

func TestRedrawWanted(t *testing.T) {
	tests := []struct {
		name                            string
		redraw, uncovered, handleExpose bool
		want                            bool
	}{
		{"expose with handling", true, false, true, true},
		{"expose without handling", true, false, false, false},
		{"uncovered without handling", false, true, false, true},
		{"uncovered with handling", false, true, true, true},
		{"nothing happened", false, false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redrawWanted(tt.redraw, tt.uncovered, tt.handleExpose); got != tt.want {
				t.Errorf("redrawWanted(%v, %v, %v) = %v, want %v",
					tt.redraw, tt.uncovered, tt.handleExpose, got, tt.want)
			}
		})
	}
}
