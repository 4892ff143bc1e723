package xvsink

import (
	"os"
	"path/filepath"

	"github.com/gogpu/xvsink/dmabuf"
	"github.com/gogpu/xvsink/geometry"
)

// Option configures a Sink at construction. Everything here can also
// be changed at runtime through the corresponding setter.
type Option func(*config)

type config struct {
	display  string
	adaptor  int
	title    string
	windowID uint32
	pixmapID uint32

	synchronous  bool
	forceAspect  bool
	drawBorders  bool
	handleEvents bool
	handleExpose bool
	visible      bool

	method      geometry.Method
	rotation    geometry.Rotation
	orientation geometry.Rotation
	flip        geometry.Flip
	zoom        float64
	zoomAnchorX int
	zoomAnchorY int
	roi         geometry.Rect
	roiMethod   geometry.ROIMethod
	par         *Fraction

	externalDisplay func() bool
	exchanger       dmabuf.Exchanger
}

func defaultConfig() config {
	return config{
		adaptor:      0,
		title:        filepath.Base(os.Args[0]),
		forceAspect:  true,
		drawBorders:  true,
		handleEvents: true,
		handleExpose: true,
		visible:      true,
		method:       geometry.LetterBox,
		zoom:         1.0,
		zoomAnchorX:  -1,
		zoomAnchorY:  -1,
	}
}

// WithDisplay selects the display server to connect to, in the usual
// ":0" form. Empty uses the DISPLAY environment variable.
func WithDisplay(name string) Option {
	return func(c *config) { c.display = name }
}

// WithAdaptor selects which image-capable adaptor's port to grab when
// the display offers more than one.
func WithAdaptor(n int) Option {
	return func(c *config) { c.adaptor = n }
}

// WithTitle overrides the created window's title. The default is the
// running binary's name.
func WithTitle(title string) Option {
	return func(c *config) { c.title = title }
}

// WithWindowHandle renders into an existing native window instead of
// creating one. Equivalent to calling SetWindowHandle after New.
func WithWindowHandle(id uint32) Option {
	return func(c *config) { c.windowID = id }
}

// WithPixmapHandle renders into an off-screen pixmap instead of a
// window. Equivalent to calling SetPixmapHandle after New. Takes
// precedence over WithWindowHandle when both are given.
func WithPixmapHandle(id uint32) Option {
	return func(c *config) { c.pixmapID = id }
}

// WithSynchronous turns on synchronous protocol mode: every draw is
// round-tripped so errors surface at the call that caused them. Slow;
// intended for debugging.
func WithSynchronous(on bool) Option {
	return func(c *config) { c.synchronous = on }
}

// WithForceAspectRatio controls whether negotiation scales proposed
// dimensions by the display's pixel aspect ratio. On by default.
func WithForceAspectRatio(on bool) Option {
	return func(c *config) { c.forceAspect = on }
}

// WithDrawBorders controls filling the letterbox gaps around the
// frame. On by default.
func WithDrawBorders(on bool) Option {
	return func(c *config) { c.drawBorders = on }
}

// WithEventHandling controls translating pointer and key input into
// navigation events. On by default.
func WithEventHandling(on bool) Option {
	return func(c *config) { c.handleEvents = on }
}

// WithExposeHandling controls redrawing the last frame when the
// window is exposed or resized. On by default.
func WithExposeHandling(on bool) Option {
	return func(c *config) { c.handleExpose = on }
}

// WithVisible controls whether frames are actually drawn. A hidden
// sink keeps accepting and retaining frames so the newest one appears
// as soon as visibility returns.
func WithVisible(on bool) Option {
	return func(c *config) { c.visible = on }
}

// WithGeometryMethod selects the frame placement method.
func WithGeometryMethod(m geometry.Method) Option {
	return func(c *config) { c.method = m }
}

// WithRotation sets the presentation rotation.
func WithRotation(r geometry.Rotation) Option {
	return func(c *config) { c.rotation = r }
}

// WithOrientation declares the display's own orientation, subtracted
// from the rotation when placing an explicit ROI.
func WithOrientation(r geometry.Rotation) Option {
	return func(c *config) { c.orientation = r }
}

// WithFlip mirrors the frame along one or both axes.
func WithFlip(f geometry.Flip) Option {
	return func(c *config) { c.flip = f }
}

// WithZoom crops into the source by the given factor in (1, 9].
// Anchor coordinates position the crop in source pixels; negative
// values center that axis.
func WithZoom(factor float64, anchorX, anchorY int) Option {
	return func(c *config) {
		c.zoom = factor
		c.zoomAnchorX = anchorX
		c.zoomAnchorY = anchorY
	}
}

// WithROI places frames into an explicit destination rectangle,
// switching the geometry method to CustomROI.
func WithROI(r geometry.Rect, m geometry.ROIMethod) Option {
	return func(c *config) {
		c.method = geometry.CustomROI
		c.roi = r
		c.roiMethod = m
	}
}

// WithPixelAspectRatio overrides the pixel aspect ratio probed from
// the display.
func WithPixelAspectRatio(par Fraction) Option {
	return func(c *config) { c.par = &par }
}

// WithExternalDisplayCheck installs the probe consulted when the
// window becomes fully obscured: if it reports true, hardware output
// keeps running for the external display instead of being stopped.
func WithExternalDisplayCheck(fn func() bool) Option {
	return func(c *config) { c.externalDisplay = fn }
}

// WithExchanger enables the zero-copy path using the given buffer
// exchanger, typically dmabuf.OpenGEM.
func WithExchanger(e dmabuf.Exchanger) Option {
	return func(c *config) { c.exchanger = e }
}
