package xvsink

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/xvsink/dmabuf"
	"github.com/gogpu/xvsink/geometry"
	"github.com/gogpu/xvsink/internal/xdisplay"
)

type sinkState int

const (
	stateCreated sinkState = iota
	stateReady
	stateClosing
	stateClosed
)

// Sink displays decoded video frames in a native window, preferring
// the display's hardware scaling port with shared-memory transport
// and falling back to a software blit when neither is available.
//
// Two goroutines touch a running sink: the pipeline delivering frames
// and the sink's own event loop. flowMu serializes them.
type Sink struct {
	flowMu sync.Mutex
	cfg    config
	state  sinkState

	disp *xdisplay.Display
	win  *xdisplay.Window
	pres presenter

	pool       *Pool
	cur        *Buffer
	format     Format
	negotiated bool
	lastAsked  Format
	lastGiven  Format

	renderRect geometry.Rect
	rectPinned bool

	firstFrame    bool
	redrawBorders bool
	lastDst       geometry.Rect
	obscured      bool

	portRotation int
	portFlipH    int
	portFlipV    int
	portAttrsOK  bool

	table *dmabuf.Table

	evStop chan struct{}
	evDone chan struct{}

	onNavigation    func(any)
	onPrepareWindow func()
	onRenderError   func(error)
	onFatalError    func(error)
}

// New creates a sink with the given options. No display connection is
// made until Start.
func New(opts ...Option) (*Sink, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	s := &Sink{
		cfg:        cfg,
		firstFrame: true,
	}
	if cfg.exchanger != nil {
		s.table = dmabuf.NewTable()
	}
	return s, nil
}

// Start connects to the display server, grabs a hardware port when
// one is available and probes shared memory. The sink is ready to
// negotiate and accept frames afterwards.
func (s *Sink) Start() error {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	switch s.state {
	case stateReady:
		return nil
	case stateClosing, stateClosed:
		return ErrSinkClosed
	}

	disp, err := xdisplay.Open(s.cfg.display, s.cfg.adaptor, Logger())
	if err != nil {
		return fmt.Errorf("xvsink: open display: %w", err)
	}
	s.disp = disp
	s.pool = NewPool(s.allocator())
	s.state = stateReady

	switch {
	case s.cfg.pixmapID != 0:
		if err := s.setPixmapHandleLocked(s.cfg.pixmapID); err != nil {
			disp.Close()
			s.disp = nil
			s.state = stateCreated
			return err
		}
	case s.cfg.windowID != 0:
		if err := s.setWindowHandleLocked(s.cfg.windowID); err != nil {
			disp.Close()
			s.disp = nil
			s.state = stateCreated
			return err
		}
	}
	if s.cfg.handleEvents || s.cfg.handleExpose {
		s.startEventLoopLocked()
	}
	return nil
}

// Close waits for shared buffers to come back from the server, stops
// the event loop, clears the pool and tears everything down. The sink
// cannot be restarted.
func (s *Sink) Close() error {
	s.flowMu.Lock()
	if s.state == stateClosing || s.state == stateClosed {
		s.flowMu.Unlock()
		return nil
	}
	s.state = stateClosing
	if s.pool != nil {
		s.pool.Invalidate()
	}
	s.flowMu.Unlock()

	// The event loop keeps running through the wait: the server's
	// return messages it pumps are the only thing that empties the
	// table.
	if s.table != nil {
		if !s.table.WaitIdle(5 * time.Second) {
			n := s.table.Drain()
			Logger().Warn("reclaimed in-flight buffers after timeout", "count", n)
		}
	}

	s.flowMu.Lock()
	s.state = stateClosed
	stop, done := s.stopEventLoopLocked()
	s.flowMu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}

	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
	if s.pool != nil {
		s.pool.Clear()
	}
	if s.win != nil && s.disp != nil {
		s.disp.DestroyWindow(s.win)
		s.win = nil
	}
	if s.disp != nil {
		s.disp.Close()
		s.disp = nil
	}
	if s.cfg.exchanger != nil {
		s.cfg.exchanger.Close()
	}
	return nil
}

// readyLocked reports why the sink cannot serve requests, nil when it
// can. flowMu is held.
func (s *Sink) readyLocked() error {
	switch s.state {
	case stateCreated:
		return ErrNotStarted
	case stateClosing, stateClosed:
		return ErrSinkClosed
	}
	return nil
}

// allocator picks the buffer backing strategy: shared-memory segments
// attached to the server when the display negotiated MIT-SHM, plain
// heap memory otherwise.
func (s *Sink) allocator() allocFunc {
	if s.disp == nil || !s.disp.UseShm {
		return nil
	}
	return s.shmAlloc
}

// OnNavigation registers the callback receiving upstream navigation
// events (mouse.Event and key.Event values).
func (s *Sink) OnNavigation(fn func(any)) {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	s.onNavigation = fn
}

// OnPrepareWindowHandle registers the callback fired right before the
// sink creates its own window, giving the embedder a last chance to
// call SetWindowHandle.
func (s *Sink) OnPrepareWindowHandle(fn func()) {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	s.onPrepareWindow = fn
}

// OnRenderError registers the callback for recoverable draw errors.
// The pipeline keeps running; the next frame is attempted normally.
func (s *Sink) OnRenderError(fn func(error)) {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	s.onRenderError = fn
}

// OnFatalError registers the callback for errors the sink cannot
// continue past, such as the window being destroyed externally.
func (s *Sink) OnFatalError(fn func(error)) {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	s.onFatalError = fn
}

// SetWindowHandle renders into the given existing window. Passing 0
// detaches from an injected window, so the sink creates its own on
// the next frame. The previous surface is destroyed first; injected
// surfaces are only unsubscribed, never destroyed.
func (s *Sink) SetWindowHandle(id uint32) error {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	if s.state != stateReady {
		s.cfg.windowID = id
		s.cfg.pixmapID = 0
		return nil
	}
	return s.setWindowHandleLocked(id)
}

func (s *Sink) setWindowHandleLocked(id uint32) error {
	if s.win != nil {
		s.disp.DestroyWindow(s.win)
		s.win = nil
		s.pres = nil
	}
	if id == 0 {
		return nil
	}
	win, err := s.disp.AdoptWindow(id, s.cfg.handleEvents)
	if err != nil {
		return fmt.Errorf("xvsink: adopt window %#x: %w", id, err)
	}
	s.attachWindowLocked(win)
	return nil
}

// SetPixmapHandle renders into the given off-screen pixmap. Pixmaps
// deliver no window events, so frames appear through Deliver and
// Expose only. Passing 0 detaches, so the sink creates its own window
// on the next frame.
func (s *Sink) SetPixmapHandle(id uint32) error {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	if s.state != stateReady {
		s.cfg.pixmapID = id
		s.cfg.windowID = 0
		return nil
	}
	return s.setPixmapHandleLocked(id)
}

func (s *Sink) setPixmapHandleLocked(id uint32) error {
	if s.win != nil {
		s.disp.DestroyWindow(s.win)
		s.win = nil
		s.pres = nil
	}
	if id == 0 {
		return nil
	}
	win, err := s.disp.AdoptPixmap(id)
	if err != nil {
		return fmt.Errorf("xvsink: adopt pixmap %#x: %w", id, err)
	}
	s.attachWindowLocked(win)
	return nil
}

// ensureWindowLocked makes sure a surface exists before a frame is
// presented, firing the prepare callback so the embedder can inject
// one first.
func (s *Sink) ensureWindowLocked() error {
	if s.win != nil {
		return nil
	}
	if s.onPrepareWindow != nil {
		fn := s.onPrepareWindow
		s.flowMu.Unlock()
		fn()
		s.flowMu.Lock()
		// The lock was dropped: the sink may have been closed or got
		// its window injected while the callback ran.
		if err := s.readyLocked(); err != nil {
			return err
		}
		if s.win != nil {
			return nil
		}
	}
	if !s.negotiated {
		return ErrNotNegotiated
	}

	w, h := s.format.Width, s.format.Height
	if s.cfg.rotation.Swapped() {
		w, h = h, w
	}
	win, err := s.disp.CreateWindow(w, h, s.cfg.title, s.cfg.handleEvents)
	if err != nil {
		return fmt.Errorf("xvsink: create window: %w", err)
	}
	s.attachWindowLocked(win)
	return nil
}

func (s *Sink) attachWindowLocked(win *xdisplay.Window) {
	s.win = win
	s.pres = s.pickPresenter()
	s.portAttrsOK = false
	s.firstFrame = true
	s.redrawBorders = true
	if !s.rectPinned {
		s.renderRect = geometry.Rect{W: win.W, H: win.H}
	}
	Logger().Info("surface attached",
		"drawable", fmt.Sprintf("%#x", uint32(win.ID)),
		"size", fmt.Sprintf("%dx%d", win.W, win.H),
		"owned", win.Owned,
		"pixmap", win.Pixmap,
		"path", s.pres.name())
}

func (s *Sink) teardownWindowLocked() {
	if s.win == nil {
		return
	}
	s.disp.DestroyWindow(s.win)
	s.win = nil
	s.pres = nil
}

// fatalLocked reports err through the fatal callback and tears the
// surface down. flowMu is held.
func (s *Sink) fatalLocked(err error) {
	Logger().Error("fatal sink error", "err", err)
	s.teardownWindowLocked()
	if fn := s.onFatalError; fn != nil {
		s.flowMu.Unlock()
		fn(err)
		s.flowMu.Lock()
	}
}

// SetRenderRectangle pins the region of the surface frames are placed
// into. Geometry refreshes stop overwriting it until
// ClearRenderRectangle.
func (s *Sink) SetRenderRectangle(x, y, w, h int) {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	s.renderRect = geometry.Rect{X: x, Y: y, W: w, H: h}
	s.rectPinned = true
	s.redrawBorders = true
}

// ClearRenderRectangle reverts to tracking the surface's own size.
func (s *Sink) ClearRenderRectangle() {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	s.rectPinned = false
	if s.win != nil {
		s.renderRect = geometry.Rect{W: s.win.W, H: s.win.H}
	}
	s.redrawBorders = true
}

// SetEventHandling toggles input translation at runtime, adjusting
// the window's event subscription and starting or stopping the event
// loop as needed.
func (s *Sink) SetEventHandling(on bool) {
	s.flowMu.Lock()
	s.cfg.handleEvents = on
	if s.win != nil && !s.win.Pixmap && s.disp != nil {
		if err := s.disp.SetEventMask(s.win, on); err != nil {
			Logger().Warn("event mask update failed", "err", err)
		}
	}
	stop, done := s.reconcileEventLoopLocked()
	s.flowMu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

// SetExposeHandling toggles redraw-on-expose at runtime.
func (s *Sink) SetExposeHandling(on bool) {
	s.flowMu.Lock()
	s.cfg.handleExpose = on
	stop, done := s.reconcileEventLoopLocked()
	s.flowMu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

// reconcileEventLoopLocked starts or schedules a stop of the event
// loop to match configuration. A non-nil stop channel must be closed
// and joined by the caller after releasing flowMu: the loop itself
// takes flowMu, so joining under it would deadlock.
func (s *Sink) reconcileEventLoopLocked() (stop, done chan struct{}) {
	want := s.state == stateReady && (s.cfg.handleEvents || s.cfg.handleExpose)
	switch {
	case want && s.evStop == nil:
		s.startEventLoopLocked()
	case !want && s.evStop != nil:
		return s.stopEventLoopLocked()
	}
	return nil, nil
}

// SetVisible shows or hides the video. Hidden sinks keep accepting
// frames; the newest is drawn as soon as visibility returns.
func (s *Sink) SetVisible(on bool) {
	s.flowMu.Lock()
	was := s.cfg.visible
	s.cfg.visible = on
	s.flowMu.Unlock()
	if on && !was {
		s.Expose()
	}
}

// SetGeometryMethod changes the frame placement method.
func (s *Sink) SetGeometryMethod(m geometry.Method) {
	s.setGeom(func(c *config) { c.method = m })
}

// SetRotation changes the presentation rotation.
func (s *Sink) SetRotation(r geometry.Rotation) {
	s.setGeom(func(c *config) { c.rotation = r })
}

// SetOrientation changes the display orientation compensation.
func (s *Sink) SetOrientation(r geometry.Rotation) {
	s.setGeom(func(c *config) { c.orientation = r })
}

// SetFlip changes the mirror axes.
func (s *Sink) SetFlip(f geometry.Flip) {
	s.setGeom(func(c *config) { c.flip = f })
}

// SetZoom changes the zoom factor and anchor. Factors outside (1, 9]
// disable zooming; negative anchors center that axis.
func (s *Sink) SetZoom(factor float64, anchorX, anchorY int) {
	s.setGeom(func(c *config) {
		c.zoom = factor
		c.zoomAnchorX = anchorX
		c.zoomAnchorY = anchorY
	})
}

// SetROI changes the explicit destination rectangle and switches the
// placement method to CustomROI.
func (s *Sink) SetROI(r geometry.Rect, m geometry.ROIMethod) {
	s.setGeom(func(c *config) {
		c.method = geometry.CustomROI
		c.roi = r
		c.roiMethod = m
	})
}

// SetPixelAspectRatio overrides the display's probed pixel aspect
// ratio for negotiation.
func (s *Sink) SetPixelAspectRatio(par Fraction) {
	s.setGeom(func(c *config) { c.par = &par })
}

// setGeom applies a config change that affects placement and redraws
// the current frame under the new geometry.
func (s *Sink) setGeom(apply func(*config)) {
	s.flowMu.Lock()
	apply(&s.cfg)
	s.redrawBorders = true
	err := s.presentLocked(nil)
	s.flowMu.Unlock()
	if err != nil {
		Logger().Debug("redraw after config change", "err", err)
	}
}

// Color balance channel range accepted by the setters, mapped onto
// each port attribute's advertised range.
const (
	balanceMin = -1000
	balanceMax = 1000
)

// SetColorBalance adjusts one of the port's color channels: "hue",
// "saturation", "brightness" or "contrast", with value in
// [-1000, 1000]. Without a hardware port this is a no-op.
func (s *Sink) SetColorBalance(channel string, value int) error {
	if value < balanceMin || value > balanceMax {
		return fmt.Errorf("xvsink: color balance %s=%d out of [%d, %d]", channel, value, balanceMin, balanceMax)
	}
	var attr string
	switch channel {
	case "hue":
		attr = "XV_HUE"
	case "saturation":
		attr = "XV_SATURATION"
	case "brightness":
		attr = "XV_BRIGHTNESS"
	case "contrast":
		attr = "XV_CONTRAST"
	default:
		return fmt.Errorf("xvsink: unknown color balance channel %q", channel)
	}

	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	if err := s.readyLocked(); err != nil {
		return err
	}
	if err := s.disp.SetPortAttr(attr, int32(value)); err != nil {
		return err
	}
	Logger().Debug("color balance set", "channel", channel, "value", value)
	return nil
}
