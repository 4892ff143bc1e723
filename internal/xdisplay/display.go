// Package xdisplay wraps the X11 wire protocol for the sink: the
// display connection, XVideo port discovery, MIT-SHM capability
// probing, window lifecycle and the draw calls. All state is scoped to
// a Display instance; nothing is cached at package level, so two sinks
// on different connections never share atoms or port state.
package xdisplay

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xv"

	"github.com/gogpu/xvsink/internal/shmseg"
)

// Display is the sink's connection to the X server plus everything
// negotiated at open time: screen geometry, pixel aspect ratio, the
// grabbed XVideo port and its image formats, and whether the MIT-SHM
// fast path survived the probe.
type Display struct {
	Conn   *xgb.Conn
	Screen *xproto.ScreenInfo

	ScreenW, ScreenH int
	Depth            byte
	ParN, ParD       int

	UseShm  bool
	Port    xv.Port
	formats map[uint32]xv.ImageFormatInfo

	// mu serializes batches of native calls that must observe a
	// consistent server state (draw + sync + error inspection).
	mu  sync.Mutex
	log *slog.Logger

	atomMu sync.Mutex
	atoms  map[string]xproto.Atom

	keysyms *keymap
}

// Open connects to the named display ("" selects $DISPLAY), probes the
// SHM and XVideo extensions and grabs an image port on the requested
// adaptor. adaptor < 0 picks the first adaptor that can put images; a
// missing XVideo extension is not an error, it demotes the sink to the
// software blit path.
func Open(display string, adaptor int, log *slog.Logger) (*Display, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("xdisplay: connect to %q: %w", display, err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	d := &Display{
		Conn:    conn,
		Screen:  screen,
		ScreenW: int(screen.WidthInPixels),
		ScreenH: int(screen.HeightInPixels),
		Depth:   screen.RootDepth,
		log:     log,
		atoms:   make(map[string]xproto.Atom),
		formats: make(map[uint32]xv.ImageFormatInfo),
	}
	d.ParN, d.ParD = pixelAspect(
		int(screen.WidthInPixels), int(screen.HeightInPixels),
		int(screen.WidthInMillimeters), int(screen.HeightInMillimeters),
	)

	if err := shm.Init(conn); err != nil {
		log.Info("MIT-SHM extension unavailable, using copy path", "err", err)
	} else {
		d.UseShm = d.probeShm()
	}

	if err := d.grabPort(adaptor); err != nil {
		log.Info("XVideo unavailable, using software blit", "err", err)
		d.Port = 0
	}

	log.Info("display opened",
		"display", display,
		"screen", fmt.Sprintf("%dx%d", d.ScreenW, d.ScreenH),
		"depth", d.Depth,
		"par", fmt.Sprintf("%d/%d", d.ParN, d.ParD),
		"shm", d.UseShm,
		"xv_port", uint32(d.Port))
	return d, nil
}

// Close ungrabs the port and drops the connection.
func (d *Display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Port != 0 {
		xv.UngrabPort(d.Conn, d.Port, xproto.TimeCurrentTime)
	}
	d.Conn.Close()
}

// grabPort finds an image-capable adaptor and grabs one of its ports.
func (d *Display) grabPort(adaptor int) error {
	if err := xv.Init(d.Conn); err != nil {
		return err
	}
	reply, err := xv.QueryAdaptors(d.Conn, d.Screen.Root).Reply()
	if err != nil {
		return fmt.Errorf("query adaptors: %w", err)
	}

	idx := 0
	for _, info := range reply.Info {
		if info.Type&xv.TypeImageMask == 0 {
			continue
		}
		if adaptor >= 0 && idx != adaptor {
			idx++
			continue
		}
		for p := info.BaseId; p < info.BaseId+xv.Port(info.NumPorts); p++ {
			grab, err := xv.GrabPort(d.Conn, p, xproto.TimeCurrentTime).Reply()
			if err != nil || grab.Result != xv.GrabPortStatusSuccess {
				continue
			}
			d.Port = p
			d.log.Info("grabbed XVideo port", "adaptor", info.Name, "port", uint32(p))
			return d.loadImageFormats()
		}
		idx++
	}
	return fmt.Errorf("no grabbable image port (adaptor %d)", adaptor)
}

func (d *Display) loadImageFormats() error {
	reply, err := xv.ListImageFormats(d.Conn, d.Port).Reply()
	if err != nil {
		return fmt.Errorf("list image formats: %w", err)
	}
	for _, f := range reply.Format {
		d.formats[f.Id] = f
	}
	if len(d.formats) == 0 {
		return fmt.Errorf("port %d advertises no image formats", uint32(d.Port))
	}
	return nil
}

// SupportsFormat reports whether the grabbed port can put images with
// the given FourCC id.
func (d *Display) SupportsFormat(id uint32) bool {
	_, ok := d.formats[id]
	return ok
}

// probeShm round-trips a minimal segment through the server. A failed
// attach (remote displays, exhausted quota) demotes the connection to
// the copy
// path instead of failing the sink.
func (d *Display) probeShm() bool {
	seg, err := shmseg.New(4096)
	if err != nil {
		d.log.Warn("shm probe: segment allocation failed", "err", err)
		return false
	}
	defer seg.Close()

	xseg, err := shm.NewSegId(d.Conn)
	if err != nil {
		return false
	}
	if err := shm.AttachChecked(d.Conn, xseg, uint32(seg.ID()), false).Check(); err != nil {
		d.log.Warn("shm probe: server attach failed, using copy path", "err", err)
		return false
	}
	shm.Detach(d.Conn, xseg)
	seg.MarkRemove()
	return true
}

// AttachSeg registers an already created local segment with the server
// and returns the server-side handle.
func (d *Display) AttachSeg(seg *shmseg.Segment) (uint32, error) {
	xseg, err := shm.NewSegId(d.Conn)
	if err != nil {
		return 0, fmt.Errorf("xdisplay: shm seg id: %w", err)
	}
	if err := shm.AttachChecked(d.Conn, xseg, uint32(seg.ID()), false).Check(); err != nil {
		return 0, fmt.Errorf("xdisplay: shm attach: %w", err)
	}
	// The kernel keeps the segment alive for both attachers from here.
	seg.MarkRemove()
	return uint32(xseg), nil
}

// DetachSeg drops the server-side attachment.
func (d *Display) DetachSeg(xseg uint32) {
	shm.Detach(d.Conn, shm.Seg(xseg))
}

// Atom interns a named atom, memoized per connection.
func (d *Display) Atom(name string) (xproto.Atom, error) {
	d.atomMu.Lock()
	defer d.atomMu.Unlock()
	if a, ok := d.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(d.Conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("xdisplay: intern atom %q: %w", name, err)
	}
	d.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// Sync forces a full round trip, surfacing any queued protocol errors.
func (d *Display) Sync() {
	d.Conn.Sync()
}

// standardPARs are the pixel aspect ratios real display hardware uses;
// the measured physical ratio snaps to the nearest entry.
var standardPARs = [][2]int{
	{1, 1},   // regular screen
	{16, 15}, // PAL TV
	{11, 10}, // 525 line Rec.601 video
	{54, 59}, // 625 line Rec.601 video
	{64, 45}, // 1280x1024 on 16:9 display
	{5, 3},   // 1280x1024 on 4:3 display
	{4, 3},   // 800x600 on 16:9 display
}

// pixelAspect derives the physical pixel aspect ratio from screen
// dimensions and snaps it to the closest standard ratio.
func pixelAspect(wPx, hPx, wMM, hMM int) (int, int) {
	if wPx <= 0 || hPx <= 0 || wMM <= 0 || hMM <= 0 {
		return 1, 1
	}
	ratio := float64(wMM*hPx) / float64(hMM*wPx)
	// Some servers report bogus physical sizes for 720x576 modes.
	if wPx == 720 && hPx == 576 {
		ratio = 4.0 * 576 / (3.0 * 720)
	}

	best := 0
	bestDelta := math.Abs(ratio - float64(standardPARs[0][0])/float64(standardPARs[0][1]))
	for i := 1; i < len(standardPARs); i++ {
		delta := math.Abs(ratio - float64(standardPARs[i][0])/float64(standardPARs[i][1]))
		if delta < bestDelta {
			best, bestDelta = i, delta
		}
	}
	return standardPARs[best][0], standardPARs[best][1]
}
