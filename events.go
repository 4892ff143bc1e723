package xvsink

import (
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"

	"github.com/gogpu/xvsink/dmabuf"
	"github.com/gogpu/xvsink/geometry"
)

// eventPollInterval bounds how stale window state can get. The loop
// polls instead of blocking on the connection so it never sits on an
// indefinite read while holding nothing back from teardown.
const eventPollInterval = 50 * time.Millisecond

// Client message the display server posts when it is done reading a
// zero-copy frame; data words carry the plane tokens.
const returnBufferAtom = "XV_RETURN_BUFFER"

func (s *Sink) startEventLoopLocked() {
	if s.evStop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.evStop, s.evDone = stop, done
	go s.eventLoop(stop, done)
}

func (s *Sink) eventLoop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		s.pumpEvents()
	}
}

// stopEventLoopLocked hands back the channels to close and join; the
// caller must do that after releasing flowMu, since the loop itself
// takes flowMu.
func (s *Sink) stopEventLoopLocked() (stop, done chan struct{}) {
	stop, done = s.evStop, s.evDone
	s.evStop, s.evDone = nil, nil
	return stop, done
}

// pumpEvents drains one batch of window events. Pointer motion is
// coalesced to the latest position; button and key events keep their
// order. Structural changes refresh geometry, and anything that
// uncovered the window re-presents the current frame.
func (s *Sink) pumpEvents() {
	s.flowMu.Lock()
	if (s.state != stateReady && s.state != stateClosing) || s.disp == nil || s.win == nil {
		s.flowMu.Unlock()
		return
	}
	// A closing sink still drains the queue: the server's return
	// messages are what lets teardown reclaim in-flight buffers.
	closing := s.state == stateClosing
	disp := s.disp
	winID := s.win.ID
	handleInput := s.cfg.handleEvents && !closing
	handleExpose := s.cfg.handleExpose
	nav := s.onNavigation
	s.flowMu.Unlock()

	wmProtocols, _ := disp.Atom("WM_PROTOCOLS")
	wmDelete, _ := disp.Atom("WM_DELETE_WINDOW")
	xvReturn, _ := disp.Atom(returnBufferAtom)

	var (
		motion     *xproto.MotionNotifyEvent
		navEvents  []any
		expose     bool
		configure  bool
		closeReq   bool
		returned   []dmabuf.Tokens
		visibility = -1
	)

	for {
		ev, xerr := disp.Conn.PollForEvent()
		if ev == nil && xerr == nil {
			break
		}
		if xerr != nil {
			Logger().Debug("event queue error", "err", xerr)
			continue
		}
		switch e := ev.(type) {
		case xproto.MotionNotifyEvent:
			if e.Event == winID && handleInput {
				motion = &e
			}
		case xproto.ButtonPressEvent:
			if e.Event == winID && handleInput {
				navEvents = append(navEvents, buttonEvent(e.Detail, e.EventX, e.EventY, mouse.DirPress))
			}
		case xproto.ButtonReleaseEvent:
			if e.Event == winID && handleInput {
				navEvents = append(navEvents, buttonEvent(e.Detail, e.EventX, e.EventY, mouse.DirRelease))
			}
		case xproto.KeyPressEvent:
			if e.Event == winID && handleInput {
				navEvents = append(navEvents, keyEvent(disp.Keysym(byte(e.Detail)), key.DirPress))
			}
		case xproto.KeyReleaseEvent:
			if e.Event == winID && handleInput {
				navEvents = append(navEvents, keyEvent(disp.Keysym(byte(e.Detail)), key.DirRelease))
			}
		case xproto.ExposeEvent:
			if e.Window == winID && e.Count == 0 {
				expose = true
			}
		case xproto.ConfigureNotifyEvent:
			if e.Window == winID {
				configure = true
			}
		case xproto.VisibilityNotifyEvent:
			if e.Window == winID {
				visibility = int(e.State)
			}
		case xproto.ClientMessageEvent:
			switch {
			case e.Type == wmProtocols && len(e.Data.Data32) > 0 &&
				xproto.Atom(e.Data.Data32[0]) == wmDelete:
				closeReq = true
			case e.Type == xvReturn:
				var t dmabuf.Tokens
				for i := 0; i < dmabuf.MaxPlanes && i < len(e.Data.Data32); i++ {
					t[i] = e.Data.Data32[i]
				}
				returned = append(returned, t)
			}
		}
	}

	// Coalesced pointer position goes out first, then the ordered
	// button/key stream. Callbacks run without the flow lock.
	if nav != nil {
		if motion != nil {
			nav(mouse.Event{
				X: float32(motion.EventX), Y: float32(motion.EventY),
				Direction: mouse.DirNone,
			})
		}
		for _, e := range navEvents {
			nav(e)
		}
	}

	for _, t := range returned {
		if s.table == nil {
			break
		}
		if err := s.table.Remove(t); err != nil {
			Logger().Debug("server returned unknown buffer", "err", err)
		}
	}

	if closing || (!expose && !configure && !closeReq && visibility < 0) {
		return
	}

	s.flowMu.Lock()
	if s.state != stateReady || s.win == nil {
		s.flowMu.Unlock()
		return
	}

	if closeReq {
		s.fatalLocked(ErrWindowClosed)
		s.flowMu.Unlock()
		return
	}

	redraw := false
	if configure {
		if err := s.disp.RefreshGeometry(s.win); err != nil {
			Logger().Debug("geometry refresh failed", "err", err)
		} else if !s.rectPinned {
			s.renderRect = geometry.Rect{W: s.win.W, H: s.win.H}
			s.redrawBorders = true
		}
		redraw = true
	}
	if expose {
		redraw = true
	}

	uncovered := false
	switch {
	case visibility == int(xproto.VisibilityFullyObscured):
		if !s.obscured {
			s.obscured = true
			if s.cfg.externalDisplay != nil && s.cfg.externalDisplay() {
				Logger().Debug("window obscured, keeping output for external display")
				s.obscured = false
			} else {
				s.disp.StopVideo(s.win)
			}
		}
	case visibility >= 0:
		if s.obscured {
			s.obscured = false
			uncovered = true
		}
	}

	if redrawWanted(redraw, uncovered, handleExpose) {
		if err := s.presentLocked(nil); err != nil {
			Logger().Debug("redraw failed", "err", err)
		}
	}
	s.flowMu.Unlock()
}

// redrawWanted decides whether a pump pass re-presents the current
// frame. Expose and configure redraws are opt-in; the window becoming
// visible again always redraws, since the server discarded the video
// while it was obscured.
func redrawWanted(redraw, uncovered, handleExpose bool) bool {
	return uncovered || (redraw && handleExpose)
}

func buttonEvent(detail xproto.Button, x, y int16, dir mouse.Direction) mouse.Event {
	var b mouse.Button
	switch detail {
	case 1:
		b = mouse.ButtonLeft
	case 2:
		b = mouse.ButtonMiddle
	case 3:
		b = mouse.ButtonRight
	case 4:
		b = mouse.ButtonWheelUp
	case 5:
		b = mouse.ButtonWheelDown
	default:
		b = mouse.ButtonNone
	}
	return mouse.Event{X: float32(x), Y: float32(y), Button: b, Direction: dir}
}

// X keysym values for the non-printable keys the sink forwards.
const (
	ksBackspace = 0xff08
	ksTab       = 0xff09
	ksReturn    = 0xff0d
	ksEscape    = 0xff1b
	ksLeft      = 0xff51
	ksUp        = 0xff52
	ksRight     = 0xff53
	ksDown      = 0xff54
	ksDelete    = 0xffff
)

func keyEvent(keysym uint32, dir key.Direction) key.Event {
	e := key.Event{Direction: dir, Rune: -1}
	switch {
	case keysym >= 'a' && keysym <= 'z':
		e.Rune = rune(keysym)
		e.Code = key.CodeA + key.Code(keysym-'a')
	case keysym >= 'A' && keysym <= 'Z':
		e.Rune = rune(keysym)
		e.Code = key.CodeA + key.Code(keysym-'A')
	case keysym >= '1' && keysym <= '9':
		e.Rune = rune(keysym)
		e.Code = key.Code1 + key.Code(keysym-'1')
	case keysym == '0':
		e.Rune = '0'
		e.Code = key.Code0
	case keysym == ' ':
		e.Rune = ' '
		e.Code = key.CodeSpacebar
	case keysym == ksReturn:
		e.Code = key.CodeReturnEnter
	case keysym == ksEscape:
		e.Code = key.CodeEscape
	case keysym == ksBackspace:
		e.Code = key.CodeDeleteBackspace
	case keysym == ksTab:
		e.Code = key.CodeTab
	case keysym == ksLeft:
		e.Code = key.CodeLeftArrow
	case keysym == ksRight:
		e.Code = key.CodeRightArrow
	case keysym == ksUp:
		e.Code = key.CodeUpArrow
	case keysym == ksDown:
		e.Code = key.CodeDownArrow
	case keysym == ksDelete:
		e.Code = key.CodeDeleteForward
	case keysym >= 0x20 && keysym < 0x7f:
		e.Rune = rune(keysym)
		e.Code = key.CodeUnknown
	default:
		e.Code = key.CodeUnknown
	}
	return e
}
