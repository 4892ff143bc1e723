package xvsink

import (
	"fmt"

	"github.com/gogpu/xvsink/internal/shmseg"
)

// alternates lists, per pixel format, the formats the sink may counter
// with when the display does not support the proposed one. Same
// family first, then the packed formats, then RGB.
var alternates = map[PixelFormat][]PixelFormat{
	FormatI420: {FormatYV12, FormatNV12, FormatYUY2, FormatUYVY, FormatBGRX},
	FormatYV12: {FormatI420, FormatNV12, FormatYUY2, FormatUYVY, FormatBGRX},
	FormatNV12: {FormatI420, FormatYV12, FormatYUY2, FormatUYVY, FormatBGRX},
	FormatYUY2: {FormatUYVY, FormatI420, FormatYV12, FormatBGRX},
	FormatUYVY: {FormatYUY2, FormatI420, FormatYV12, FormatBGRX},
	FormatBGRX: {FormatYUY2, FormatUYVY, FormatI420, FormatYV12},
}

// displayCaps is the slice of display state negotiation looks at,
// separated from the connection so the intersection is testable.
type displayCaps struct {
	hasPort    bool
	supports   func(fourcc uint32) bool
	parN, parD int
}

// supports reports whether the display can present the pixel format.
// Without a hardware port only BGRX works, through the software blit;
// with one, BGRX stays available as the fallback.
func (c displayCaps) supportsPixel(f PixelFormat) bool {
	if !c.hasPort {
		return f == FormatBGRX
	}
	if c.supports(uint32(f)) {
		return true
	}
	return f == FormatBGRX
}

// negotiateFormat intersects a proposal with the display capabilities.
// An unsupported pixel format is countered with a supported relative;
// with forceAspect, frames for non-square display pixels get their
// width rescaled so the picture keeps its shape.
func negotiateFormat(proposed Format, caps displayCaps, forceAspect bool, override *Fraction) (Format, error) {
	if !proposed.valid() {
		return Format{}, fmt.Errorf("xvsink: proposed %v: %w", proposed, ErrFormatUnsupported)
	}

	accepted := proposed
	if accepted.PAR.Num <= 0 || accepted.PAR.Den <= 0 {
		accepted.PAR = Fraction{1, 1}
	}

	if !caps.supportsPixel(accepted.Pixel) {
		found := false
		for _, alt := range alternates[accepted.Pixel] {
			if caps.supportsPixel(alt) {
				accepted.Pixel = alt
				found = true
				break
			}
		}
		if !found {
			return Format{}, fmt.Errorf("xvsink: no display format for %v: %w", proposed.Pixel, ErrFormatUnsupported)
		}
	}

	if forceAspect {
		accepted = scaleToDisplayPAR(accepted, caps, override)
	}
	return accepted, nil
}

// scaleToDisplayPAR adjusts the frame width so that a source with the
// proposed pixel aspect ratio keeps its displayed shape on this
// display's pixels. Widths round to even for chroma alignment.
func scaleToDisplayPAR(f Format, caps displayCaps, override *Fraction) Format {
	dispN, dispD := caps.parN, caps.parD
	if override != nil {
		dispN, dispD = override.Num, override.Den
	}
	if dispN <= 0 || dispD <= 0 {
		return f
	}

	num := f.PAR.Num * dispD
	den := f.PAR.Den * dispN
	if num == den {
		return f
	}
	w := (f.Width*num + den/2) / den
	if w%2 != 0 {
		w++
	}
	if w <= 0 {
		return f
	}
	f.Width = w
	f.PAR = Fraction{dispN, dispD}
	return f
}

// Negotiate intersects the proposed format with what the display
// supports. The returned format may differ from the proposal; callers
// re-propose until the returned format matches what they asked for.
// The last accepted proposal is cached, so steady-state renegotiation
// skips the intersection.
func (s *Sink) Negotiate(proposed Format) (Format, error) {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()

	if err := s.readyLocked(); err != nil {
		return Format{}, err
	}
	if s.negotiated && proposed == s.lastAsked {
		return s.lastGiven, nil
	}

	caps := displayCaps{
		hasPort:  s.disp.Port != 0,
		supports: s.disp.SupportsFormat,
		parN:     s.disp.ParN,
		parD:     s.disp.ParD,
	}
	accepted, err := negotiateFormat(proposed, caps, s.cfg.forceAspect, s.cfg.par)
	if err != nil {
		return Format{}, err
	}

	s.lastAsked = proposed
	s.lastGiven = accepted
	if !s.negotiated || accepted != s.format {
		s.format = accepted
		s.negotiated = true
		s.firstFrame = true
		s.redrawBorders = true
		if s.win != nil {
			s.pres = s.pickPresenter()
		}
		Logger().Info("format negotiated",
			"pixel", accepted.Pixel,
			"size", fmt.Sprintf("%dx%d", accepted.Width, accepted.Height),
			"par", fmt.Sprintf("%d/%d", accepted.PAR.Num, accepted.PAR.Den))
	}
	return accepted, nil
}

// Allocate hands out a pooled buffer for the given dimensions and
// format. A zero format is the caller saying it has no constraints
// yet; that returns (nil, nil) so the pipeline falls back to its own
// allocation and the copy path.
func (s *Sink) Allocate(w, h int, f PixelFormat) (*Buffer, error) {
	if f == 0 {
		return nil, nil
	}

	s.flowMu.Lock()
	if err := s.readyLocked(); err != nil {
		s.flowMu.Unlock()
		return nil, err
	}
	pool := s.pool
	par := s.format.PAR
	s.flowMu.Unlock()

	if par.Num == 0 {
		par = Fraction{1, 1}
	}
	return pool.Acquire(Format{Pixel: f, Width: w, Height: h, PAR: par})
}

// shmBacking is a frame held in a SysV shared-memory segment that is
// also attached on the display-server side, so the fast path can name
// it instead of copying it.
type shmBacking struct {
	seg  *shmseg.Segment
	xseg uint32
	sink *Sink
}

func (b *shmBacking) Data() []byte { return b.seg.Data() }
func (b *shmBacking) ID() int      { return b.seg.ID() }
func (b *shmBacking) XSeg() uint32 { return b.xseg }

func (b *shmBacking) Close() error {
	b.sink.disp.DetachSeg(b.xseg)
	return b.seg.Close()
}

// shmAlloc allocates a server-attached shared segment. Setup failure
// demotes the display to the copy path and falls back to heap memory
// rather than failing the allocation.
func (s *Sink) shmAlloc(size int) (backing, error) {
	seg, err := shmseg.New(size)
	if err != nil {
		Logger().Warn("shared memory unavailable, using copy path", "err", err)
		s.disp.UseShm = false
		return heapAlloc(size)
	}
	xseg, err := s.disp.AttachSeg(seg)
	if err != nil {
		seg.Close()
		Logger().Warn("server shm attach failed, using copy path", "err", err)
		s.disp.UseShm = false
		return heapAlloc(size)
	}
	return &shmBacking{seg: seg, xseg: xseg, sink: s}, nil
}
