// Package xvsink renders decoded video frames into an X11 window.
//
// The sink prefers the display's XVideo port, which scales and
// color-converts in hardware, and feeds it through MIT-SHM shared
// memory when the server is local. Displays without a usable port
// fall back to a software blit of BGRX frames over the core protocol.
//
// A minimal pipeline looks like:
//
//	sink, err := xvsink.New(xvsink.WithTitle("player"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := sink.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer sink.Close()
//
//	format, err := sink.Negotiate(xvsink.Format{
//		Pixel: xvsink.FormatI420, Width: 1280, Height: 720,
//		PAR: xvsink.Fraction{Num: 1, Den: 1},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for decoding {
//		buf, err := sink.Allocate(format.Width, format.Height, format.Pixel)
//		// fill buf.Data() with one frame
//		sink.Deliver(buf)
//		buf.Release()
//	}
//
// Frame placement (letterbox, crop, rotation, flip, zoom, explicit
// destination region) is configured through options or the Set*
// methods and computed by the geometry package. Embedders can render
// into their own window with SetWindowHandle and receive input back
// through OnNavigation.
package xvsink
