package xdisplay

import (
	"github.com/BurntSushi/xgb/xproto"
)

// Keysym resolves a keycode to its first (unshifted) keysym. The
// keyboard mapping is fetched once per connection.
func (d *Display) Keysym(code byte) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.keysyms == nil {
		setup := xproto.Setup(d.Conn)
		first := setup.MinKeycode
		count := byte(setup.MaxKeycode - first + 1)
		reply, err := xproto.GetKeyboardMapping(d.Conn, first, count).Reply()
		if err != nil {
			d.log.Warn("keyboard mapping unavailable", "err", err)
			d.keysyms = &keymap{}
			return 0
		}
		d.keysyms = &keymap{
			first: byte(first),
			per:   int(reply.KeysymsPerKeycode),
			syms:  reply.Keysyms,
		}
	}

	km := d.keysyms
	if km.per == 0 || code < km.first {
		return 0
	}
	i := int(code-km.first) * km.per
	if i >= len(km.syms) {
		return 0
	}
	return uint32(km.syms[i])
}

type keymap struct {
	first byte
	per   int
	syms  []xproto.Keysym
}
