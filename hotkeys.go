package main

import "github.com/Alijeyrad/gotalk-coach/internal/hotkey"

// listenHotkey grabs the configured hotkey. Without an X server, or with an
// empty hotkey, it returns a nil channel so recording still works from the
// terminal.
func (a *app) listenHotkey() (<-chan struct{}, func()) {
	if a.cfg.Hotkey == "" {
		return nil, func() {}
	}
	h, err := hotkey.New(a.cfg.Hotkey, a.log)
	if err != nil {
		a.log.Warnw("hotkey unavailable", "hotkey", a.cfg.Hotkey, "error", err)
		return nil, func() {}
	}
	presses, err := h.Listen()
	if err != nil {
		h.Stop()
		a.log.Warnw("hotkey already taken", "hotkey", a.cfg.Hotkey, "error", err)
		return nil, func() {}
	}
	return presses, h.Stop
}
