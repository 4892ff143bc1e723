package xvsink

import "errors"

// Sentinel errors reported across the pipeline boundary. Recoverable
// conditions are distinct values so callers can branch on them with
// errors.Is.
var (
	// ErrNoSurface reports that presentation was attempted before any
	// window or pixmap exists. Recoverable: the embedder may still
	// inject a handle, and later frames will be shown.
	ErrNoSurface = errors.New("xvsink: no surface to present on")

	// ErrPoolInvalid reports an Acquire against an invalidated pool.
	// Distinct from allocation failure: the pool is tearing down and
	// will never serve buffers again.
	ErrPoolInvalid = errors.New("xvsink: buffer pool is invalidated")

	// ErrNotNegotiated reports an operation that needs a negotiated
	// format before any negotiation succeeded.
	ErrNotNegotiated = errors.New("xvsink: format not negotiated")

	// ErrFormatUnsupported reports a negotiation proposal with no
	// workable intersection against the display capabilities.
	ErrFormatUnsupported = errors.New("xvsink: pixel format not supported by display")

	// ErrNotStarted reports use of a sink before Start.
	ErrNotStarted = errors.New("xvsink: sink not started")

	// ErrSinkClosed reports use of a sink after Close.
	ErrSinkClosed = errors.New("xvsink: sink is closed")

	// ErrSurfaceLost reports that the native window disappeared under
	// us. Terminal: rendering cannot continue without a surface.
	ErrSurfaceLost = errors.New("xvsink: surface lost")

	// ErrWindowClosed reports that the window manager delivered a
	// close request for our window. Terminal for the pipeline.
	ErrWindowClosed = errors.New("xvsink: output window was closed")
)

// RenderError wraps a draw failure for a single frame. The pipeline
// keeps running; the next frame is attempted normally.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return "xvsink: frame render error: " + e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }
