// Package hotkey grabs a global X11 key combination and reports presses.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"
)

// Manager owns one X11 connection and one grabbed key combination.
type Manager struct {
	conn    *xgb.Conn
	keycode xproto.Keycode
	modMask uint16
	log     *zap.SugaredLogger

	presses  chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New connects to the X server and resolves hotkey, e.g. "Alt-r" or
// "Ctrl+Shift-F9".
func New(hotkey string, log *zap.SugaredLogger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	mods, keyName, err := parseHotkey(hotkey)
	if err != nil {
		return nil, fmt.Errorf("parsing hotkey %q: %w", hotkey, err)
	}
	keysym, err := keysymFor(keyName)
	if err != nil {
		return nil, fmt.Errorf("parsing hotkey %q: %w", hotkey, err)
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connecting to X11: %w", err)
	}
	keycode, err := findKeycode(conn, keysym)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("resolving hotkey %q: %w", hotkey, err)
	}

	return &Manager{
		conn:    conn,
		keycode: keycode,
		modMask: mods,
		log:     log,
		presses: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}, nil
}

// Listen grabs the key on the root window. Each press is delivered on the
// returned channel; presses arriving while one is pending are merged.
func (m *Manager) Listen() (<-chan struct{}, error) {
	root := xproto.Setup(m.conn).DefaultScreen(m.conn).Root

	// Also grab with NumLock (Mod2) and CapsLock so the combination works in
	// every lock state.
	extras := []uint16{0, uint16(xproto.ModMask2), uint16(xproto.ModMaskLock), uint16(xproto.ModMask2) | uint16(xproto.ModMaskLock)}
	for _, extra := range extras {
		mod := m.modMask | extra
		err := xproto.GrabKeyChecked(m.conn, true, root, mod, m.keycode,
			xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
		if err != nil {
			return nil, fmt.Errorf("grabbing key (mod=%d): %w", mod, err)
		}
	}

	go m.eventLoop()
	return m.presses, nil
}

func (m *Manager) eventLoop() {
	for {
		ev, err := m.conn.WaitForEvent()
		select {
		case <-m.stopCh:
			return
		default:
		}
		if err != nil {
			m.log.Warnw("X11 event error", "error", err)
			continue
		}
		if ev == nil {
			m.log.Debugw("X11 connection closed")
			return
		}
		if _, ok := ev.(xproto.KeyPressEvent); ok {
			select {
			case m.presses <- struct{}{}:
			default:
			}
		}
	}
}

// Stop ends the event loop and closes the X11 connection.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.conn.Close()
	})
}

// parseHotkey splits "Ctrl+Shift-a" into a modifier mask and the key name.
func parseHotkey(hotkey string) (uint16, string, error) {
	parts := strings.FieldsFunc(hotkey, func(r rune) bool {
		return r == '+' || r == '-'
	})

	var modMask uint16
	var keyName string
	for _, p := range parts {
		switch strings.ToLower(p) {
		case "alt", "mod1":
			modMask |= uint16(xproto.ModMask1)
		case "ctrl", "control":
			modMask |= uint16(xproto.ModMaskControl)
		case "shift":
			modMask |= uint16(xproto.ModMaskShift)
		case "super", "mod4", "win":
			modMask |= uint16(xproto.ModMask4)
		default:
			if keyName != "" {
				return 0, "", fmt.Errorf("more than one key: %q and %q", keyName, p)
			}
			keyName = p
		}
	}
	if keyName == "" {
		return 0, "", errors.New("no key specified")
	}
	return modMask, keyName, nil
}

var namedKeysyms = map[string]uint32{
	"space":  0x0020,
	"return": 0xff0d,
	"enter":  0xff0d,
	"escape": 0xff1b,
	"esc":    0xff1b,
	"tab":    0xff09,
	"pause":  0xff13,
}

// keysymFor maps a key name to its X11 keysym. Single printable characters
// map to themselves (lower case), F1..F12 are computed.
func keysymFor(keyName string) (uint32, error) {
	if len(keyName) == 1 {
		c := keyName[0]
		if c < 0x20 || c > 0x7e {
			return 0, fmt.Errorf("unprintable key %q", keyName)
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		return uint32(c), nil
	}
	name := strings.ToLower(keyName)
	if ks, ok := namedKeysyms[name]; ok {
		return ks, nil
	}
	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && n >= 1 && n <= 12 && name == fmt.Sprintf("f%d", n) {
		return 0xffbe + uint32(n-1), nil
	}
	return 0, fmt.Errorf("unknown key name: %q", keyName)
}

// findKeycode looks keysym up in the server's keyboard mapping.
func findKeycode(conn *xgb.Conn, keysym uint32) (xproto.Keycode, error) {
	setup := xproto.Setup(conn)
	first := setup.MinKeycode
	last := setup.MaxKeycode

	km, err := xproto.GetKeyboardMapping(conn, first, byte(last-first+1)).Reply()
	if err != nil {
		return 0, fmt.Errorf("getting keyboard mapping: %w", err)
	}

	perKeycode := int(km.KeysymsPerKeycode)
	for i, ks := range km.Keysyms {
		if uint32(ks) == keysym {
			return first + xproto.Keycode(i/perKeycode), nil
		}
	}
	return 0, fmt.Errorf("keysym %#x not in keyboard mapping", keysym)
}
